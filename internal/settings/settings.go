// Package settings provides typed access to the application's policy
// configuration, stored as key/value pairs in the database.
//
// A Settings value is "connected": every accessor reads through the
// backing store and every setter writes immediately. Snapshot returns a
// disconnected copy that is loaded once and never touches the store
// again; the synchronization executors always operate against a
// snapshot so a run sees consistent policy even if an administrator
// saves changes mid-run.
package settings

import (
	"encoding/json"
	"strconv"
	"time"
)

// Setting keys.
const (
	KeyConfigured          = "configured"
	KeyCompany             = "company"
	KeyLdapHost            = "ldap_host"
	KeyLdapPort            = "ldap_port"
	KeyLdapSSL             = "ldap_ssl"
	KeyLdapAdminUser       = "ldap_admin_user"
	KeyLdapAdminPassword   = "ldap_admin_password"
	KeyLdapAttribute       = "ldap_attribute"
	KeyLdapBase            = "ldap_base"
	KeyGithubAdminToken    = "github_admin_token"
	KeyGithubOrgs          = "github_orgs"
	KeyGithubDefaultTeams  = "github_default_teams"
	KeyGithubCheckMfaTeam  = "github_check_mfa_team"
	KeyGithubExternalTeams = "github_external_teams"
	KeyGithubExcludeUsers  = "github_exclude_users"
	KeyEnforceRules        = "enforce_rules"
	KeyRuleEmailRegex      = "rule_email_regex"
	KeyRuleMaxSyncAge      = "rule_max_sync_age"
	KeyEmailBaseURL        = "email_base_url"
	KeyEmailFrom           = "email_from"
	KeyEmailReplyTo        = "email_reply_to"
	KeySMTPAddress         = "smtp_address"
	KeySMTPPort            = "smtp_port"
	KeySMTPStartTLS        = "smtp_enable_starttls_auto"
	KeySMTPUserName        = "smtp_user_name"
	KeySMTPPassword        = "smtp_password"
)

// EncryptedKeys lists settings whose values are encrypted at rest.
var EncryptedKeys = map[string]bool{
	KeyLdapAdminPassword: true,
	KeyGithubAdminToken:  true,
	KeySMTPPassword:      true,
}

// Store is the persistence contract for settings values. Values returns
// every stored setting with encrypted values already decrypted; SetValue
// persists one value, encrypting it if the key requires it.
type Store interface {
	Values() (map[string]string, error)
	SetValue(key, value string) error
}

// Settings is the connected view over a Store.
type Settings struct {
	store Store
}

func New(store Store) *Settings {
	return &Settings{store: store}
}

// Get returns the raw value for a key.
func (s *Settings) Get(key string) (string, error) {
	values, err := s.store.Values()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Set persists the raw value for a key.
func (s *Settings) Set(key, value string) error {
	return s.store.SetValue(key, value)
}

// SetStrings persists a string-list value for a key.
func (s *Settings) SetStrings(key string, values []string) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.store.SetValue(key, string(encoded))
}

// SetBool persists a boolean value for a key.
func (s *Settings) SetBool(key string, value bool) error {
	return s.store.SetValue(key, strconv.FormatBool(value))
}

// SetInt persists an integer value for a key.
func (s *Settings) SetInt(key string, value int) error {
	return s.store.SetValue(key, strconv.Itoa(value))
}

// Snapshot loads every setting once and returns a disconnected view.
func (s *Settings) Snapshot() (*Snapshot, error) {
	values, err := s.store.Values()
	if err != nil {
		return nil, err
	}
	return newSnapshot(values), nil
}

// Snapshot is an immutable, typed view of the settings at one point in
// time.
type Snapshot struct {
	Configured bool
	Company    string

	LdapHost          string
	LdapPort          int
	LdapSSL           bool
	LdapAdminUser     string
	LdapAdminPassword string
	LdapAttribute     string
	LdapBase          string

	GithubAdminToken    string
	GithubOrgs          []string
	GithubDefaultTeams  []string
	GithubCheckMfaTeam  string
	GithubExternalTeams []string
	GithubExcludeUsers  []string

	EnforceRules bool

	RuleEmailRegex string
	// RuleMaxSyncAge is the maximum age of the last successful sync in
	// seconds. Zero means the recency rules are disabled.
	RuleMaxSyncAge int

	EmailBaseURL string
	EmailFrom    string
	EmailReplyTo string
	SMTPAddress  string
	SMTPPort     int
	SMTPStartTLS bool
	SMTPUserName string
	SMTPPassword string
}

func newSnapshot(values map[string]string) *Snapshot {
	return &Snapshot{
		Configured:          parseBool(values[KeyConfigured]),
		Company:             values[KeyCompany],
		LdapHost:            values[KeyLdapHost],
		LdapPort:            parseInt(values[KeyLdapPort]),
		LdapSSL:             parseBool(values[KeyLdapSSL]),
		LdapAdminUser:       values[KeyLdapAdminUser],
		LdapAdminPassword:   values[KeyLdapAdminPassword],
		LdapAttribute:       values[KeyLdapAttribute],
		LdapBase:            values[KeyLdapBase],
		GithubAdminToken:    values[KeyGithubAdminToken],
		GithubOrgs:          parseStrings(values[KeyGithubOrgs]),
		GithubDefaultTeams:  parseStrings(values[KeyGithubDefaultTeams]),
		GithubCheckMfaTeam:  values[KeyGithubCheckMfaTeam],
		GithubExternalTeams: parseStrings(values[KeyGithubExternalTeams]),
		GithubExcludeUsers:  parseStrings(values[KeyGithubExcludeUsers]),
		EnforceRules:        parseBool(values[KeyEnforceRules]),
		RuleEmailRegex:      values[KeyRuleEmailRegex],
		RuleMaxSyncAge:      parseInt(values[KeyRuleMaxSyncAge]),
		EmailBaseURL:        values[KeyEmailBaseURL],
		EmailFrom:           values[KeyEmailFrom],
		EmailReplyTo:        values[KeyEmailReplyTo],
		SMTPAddress:         values[KeySMTPAddress],
		SMTPPort:            parseInt(values[KeySMTPPort]),
		SMTPStartTLS:        parseBool(values[KeySMTPStartTLS]),
		SMTPUserName:        values[KeySMTPUserName],
		SMTPPassword:        values[KeySMTPPassword],
	}
}

// ExcludedUser reports whether the login is in the global exclusion
// list.
func (s *Snapshot) ExcludedUser(login string) bool {
	for _, excluded := range s.GithubExcludeUsers {
		if excluded == login {
			return true
		}
	}
	return false
}

// MaxSyncAge returns the recency rule threshold as a duration. Zero
// means unconfigured.
func (s *Snapshot) MaxSyncAge() time.Duration {
	return time.Duration(s.RuleMaxSyncAge) * time.Second
}

func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func parseStrings(value string) []string {
	if value == "" {
		return nil
	}
	var parsed []string
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return nil
	}
	return parsed
}
