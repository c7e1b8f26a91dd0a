package rules

import (
	"github.com/ogulcan/ghwarden/internal/models"
)

// Sync error codes that indicate an invalid or missing OAuth token.
const (
	SyncErrorNoToken      = "notoken"
	SyncErrorUnauthorized = "unauthorized"
)

// GithubOauth tests that the GithubUser has valid GitHub OAuth access,
// evaluated from the token presence and the last recorded sync error.
type GithubOauth struct {
	user *models.GithubUser
}

func (r *GithubOauth) Name() string { return "github_oauth" }

func (r *GithubOauth) Result() bool {
	if r.user.Token == "" {
		return false
	}
	if r.user.SyncError != nil {
		switch *r.user.SyncError {
		case SyncErrorNoToken, SyncErrorUnauthorized:
			return false
		}
	}
	return true
}

func (r *GithubOauth) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	if r.user.Token != "" {
		return "Invalid OAuth token"
	}
	return "Missing OAuth token"
}

func (r *GithubOauth) Notify() bool { return true }

func (r *GithubOauth) RequiredForExternal() bool { return false }
