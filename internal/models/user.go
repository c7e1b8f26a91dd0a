package models

import (
	"strings"
	"time"
)

// UserAccountControl flags from Active Directory.
// See http://support.microsoft.com/kb/305144
const (
	AccountControlScript                     = 0x0001
	AccountControlAccountDisabled            = 0x0002
	AccountControlHomedirRequired            = 0x0008
	AccountControlLockout                    = 0x0010
	AccountControlPasswdNotReqd              = 0x0020
	AccountControlPasswdCantChange           = 0x0040
	AccountControlEncryptedTextPwdAllowed    = 0x0080
	AccountControlTempDuplicateAccount       = 0x0100
	AccountControlNormalAccount              = 0x0200
	AccountControlInterdomainTrustAccount    = 0x0800
	AccountControlWorkstationTrustAccount    = 0x1000
	AccountControlServerTrustAccount         = 0x2000
	AccountControlDontExpirePassword         = 0x10000
	AccountControlMNSLogonAccount            = 0x20000
	AccountControlSmartcardRequired          = 0x40000
	AccountControlTrustedForDelegation       = 0x80000
	AccountControlNotDelegated               = 0x100000
	AccountControlUseDESKeyOnly              = 0x200000
	AccountControlDontReqPreauth             = 0x400000
	AccountControlPasswordExpired            = 0x800000
	AccountControlTrustedToAuthForDelegation = 0x1000000
	AccountControlPartialSecretsAccount      = 0x04000000
)

var accountControlNames = []struct {
	flag int
	name string
}{
	{AccountControlScript, "script"},
	{AccountControlAccountDisabled, "account_disabled"},
	{AccountControlHomedirRequired, "homedir_required"},
	{AccountControlLockout, "lockout"},
	{AccountControlPasswdNotReqd, "passwd_notreqd"},
	{AccountControlPasswdCantChange, "passwd_cant_change"},
	{AccountControlEncryptedTextPwdAllowed, "encrypted_text_pwd_allowed"},
	{AccountControlTempDuplicateAccount, "temp_duplicate_account"},
	{AccountControlNormalAccount, "normal_account"},
	{AccountControlInterdomainTrustAccount, "interdomain_trust_account"},
	{AccountControlWorkstationTrustAccount, "workstation_trust_account"},
	{AccountControlServerTrustAccount, "server_trust_account"},
	{AccountControlDontExpirePassword, "dont_expire_password"},
	{AccountControlMNSLogonAccount, "mns_logon_account"},
	{AccountControlSmartcardRequired, "smartcard_required"},
	{AccountControlTrustedForDelegation, "trusted_for_delegation"},
	{AccountControlNotDelegated, "not_delegated"},
	{AccountControlUseDESKeyOnly, "use_des_key_only"},
	{AccountControlDontReqPreauth, "dont_req_preauth"},
	{AccountControlPasswordExpired, "password_expired"},
	{AccountControlTrustedToAuthForDelegation, "trusted_to_auth_for_delegation"},
	{AccountControlPartialSecretsAccount, "partial_secrets_account"},
}

// User represents the authoritative directory identity behind zero or
// more GithubUsers.
type User struct {
	ID                 string     `json:"id" db:"id"`
	Username           string     `json:"username" db:"username"`
	Name               *string    `json:"name" db:"name"`
	Email              *string    `json:"email" db:"email"`
	Department         *string    `json:"department" db:"department"`
	LdapAccountControl int        `json:"ldap_account_control" db:"ldap_account_control"`
	LastLdapSync       *time.Time `json:"last_ldap_sync" db:"last_ldap_sync"`
	LdapSyncError      *string    `json:"ldap_sync_error" db:"ldap_sync_error"`
	LdapSyncErrorAt    *time.Time `json:"ldap_sync_error_at" db:"ldap_sync_error_at"`
	Admin              bool       `json:"admin" db:"admin"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// HasAccountControlFlag reports whether the directory account-control
// bitmask carries the given flag.
func (u *User) HasAccountControlFlag(flag int) bool {
	return u.LdapAccountControl&flag == flag
}

// AccountControlFlags decodes the bitmask into flag names.
func (u *User) AccountControlFlags() []string {
	var flags []string
	for _, entry := range accountControlNames {
		if u.LdapAccountControl&entry.flag != 0 {
			flags = append(flags, entry.name)
		}
	}
	return flags
}

// SetLdapSyncError records a directory sync error and stamps the error
// time. An empty message clears both fields.
func (u *User) SetLdapSyncError(msg string) {
	if msg == "" {
		u.LdapSyncError = nil
		u.LdapSyncErrorAt = nil
		return
	}
	u.LdapSyncError = &msg
	now := time.Now()
	u.LdapSyncErrorAt = &now
}

// NormalizeUsername strips an AD domain prefix ("DOMAIN\user") from a
// login name and lowercases it. Directory logins are case-insensitive.
func NormalizeUsername(username string) string {
	if idx := strings.Index(username, `\`); idx >= 0 {
		username = username[idx+1:]
	}
	return strings.ToLower(username)
}
