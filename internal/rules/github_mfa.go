package rules

import (
	"github.com/ogulcan/ghwarden/internal/models"
)

// GithubMfa tests that the GithubUser has multi-factor authentication
// enabled. The cached MFA flag is tri-state; both false and unknown
// fail.
type GithubMfa struct {
	user *models.GithubUser
}

func (r *GithubMfa) Name() string { return "github_mfa" }

func (r *GithubMfa) Result() bool {
	return r.user.Mfa != nil && *r.user.Mfa
}

func (r *GithubMfa) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	return "Two factor authentication is disabled"
}

func (r *GithubMfa) Notify() bool { return true }

func (r *GithubMfa) RequiredForExternal() bool { return true }
