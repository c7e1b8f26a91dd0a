package rules

import (
	"time"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

// LastLdapSync tests that the linked directory user has synced with
// Active Directory within rule_max_sync_age. The rule is disabled
// entirely when no max age is configured.
type LastLdapSync struct {
	user *models.GithubUser
	snap *settings.Snapshot
}

func (r *LastLdapSync) Name() string { return "last_ldap_sync" }

func (r *LastLdapSync) Result() bool {
	if r.user.User == nil || r.user.User.LastLdapSync == nil {
		return false
	}
	minSyncTime := time.Now().Add(-r.snap.MaxSyncAge())
	return r.user.User.LastLdapSync.After(minSyncTime)
}

func (r *LastLdapSync) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	if r.user.User == nil {
		return "No active directory user"
	}
	if r.user.User.LastLdapSync == nil {
		return "Active Directory has never been synchronized"
	}
	return "Last Active Directory synchronization is too old"
}

func (r *LastLdapSync) Notify() bool { return true }

func (r *LastLdapSync) RequiredForExternal() bool { return false }
