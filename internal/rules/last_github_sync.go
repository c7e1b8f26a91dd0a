package rules

import (
	"time"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

// LastGithubSync tests that the GithubUser has synced with GitHub
// within rule_max_sync_age. The rule is disabled entirely when no max
// age is configured.
type LastGithubSync struct {
	user *models.GithubUser
	snap *settings.Snapshot
}

func (r *LastGithubSync) Name() string { return "last_github_sync" }

func (r *LastGithubSync) Result() bool {
	if r.user.LastSyncAt == nil {
		return false
	}
	minSyncTime := time.Now().Add(-r.snap.MaxSyncAge())
	return r.user.LastSyncAt.After(minSyncTime)
}

func (r *LastGithubSync) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	if r.user.LastSyncAt == nil {
		return "GitHub has never been synchronized"
	}
	return "Last GitHub synchronization is too old"
}

func (r *LastGithubSync) Notify() bool { return true }

func (r *LastGithubSync) RequiredForExternal() bool { return true }
