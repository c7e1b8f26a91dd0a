package rules

import (
	"github.com/ogulcan/ghwarden/internal/models"
)

// ActiveLdap tests that the linked Active Directory account exists and
// is not disabled. The userAccountControl attribute is checked for the
// disabled flag (0x0002).
type ActiveLdap struct {
	user *models.GithubUser
}

func (r *ActiveLdap) Name() string { return "active_ldap" }

func (r *ActiveLdap) Result() bool {
	if r.user.User == nil {
		return false
	}
	return !r.user.User.HasAccountControlFlag(models.AccountControlAccountDisabled)
}

func (r *ActiveLdap) ErrorMsg() string {
	if r.Result() {
		return ""
	}
	if r.user.User != nil && r.user.User.HasAccountControlFlag(models.AccountControlAccountDisabled) {
		return "Active Directory account is disabled"
	}
	return "Active Directory account does not meet criteria"
}

func (r *ActiveLdap) Notify() bool { return false }

func (r *ActiveLdap) RequiredForExternal() bool { return false }
