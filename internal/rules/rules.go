// Package rules implements the compliance rule engine. Every rule is a
// stateless policy unit bound to one GithubUser and a settings
// snapshot; results are pure with respect to already-loaded identity
// state and never reach the network.
package rules

import (
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

// Rule is one compliance check bound to one GithubUser.
type Rule interface {
	// Name identifies the rule, e.g. "github_mfa".
	Name() string
	// Result reports whether the rule passes.
	Result() bool
	// ErrorMsg describes why the rule fails. Empty when passing.
	ErrorMsg() string
	// Notify reports whether the user should be emailed when this rule
	// causes an access change.
	Notify() bool
	// RequiredForExternal reports whether this rule must pass even for
	// users restricted to external teams.
	RequiredForExternal() bool
}

// Definition pairs a rule constructor with its enablement predicate.
// Enablement is a property of the configuration, not of any one user.
type Definition struct {
	Name    string
	Enabled func(snap *settings.Snapshot) bool
	New     func(user *models.GithubUser, snap *settings.Snapshot) Rule
}

func alwaysEnabled(*settings.Snapshot) bool { return true }

// registry is the static ordered list of known rules.
var registry = []Definition{
	{
		Name:    "active_ldap",
		Enabled: alwaysEnabled,
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &ActiveLdap{user: user}
		},
	},
	{
		Name: "email",
		Enabled: func(snap *settings.Snapshot) bool {
			return snap.RuleEmailRegex != ""
		},
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &Email{user: user, snap: snap}
		},
	},
	{
		Name:    "github_mfa",
		Enabled: alwaysEnabled,
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &GithubMfa{user: user}
		},
	},
	{
		Name:    "github_oauth",
		Enabled: alwaysEnabled,
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &GithubOauth{user: user}
		},
	},
	{
		Name: "last_github_sync",
		Enabled: func(snap *settings.Snapshot) bool {
			return snap.RuleMaxSyncAge > 0
		},
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &LastGithubSync{user: user, snap: snap}
		},
	},
	{
		Name: "last_ldap_sync",
		Enabled: func(snap *settings.Snapshot) bool {
			return snap.RuleMaxSyncAge > 0
		},
		New: func(user *models.GithubUser, snap *settings.Snapshot) Rule {
			return &LastLdapSync{user: user, snap: snap}
		},
	},
}

// Registry returns the static list of rule definitions.
func Registry() []Definition {
	return registry
}

// EnabledDefinitions returns the definitions whose enablement predicate
// passes for the given snapshot.
func EnabledDefinitions(snap *settings.Snapshot) []Definition {
	var enabled []Definition
	for _, def := range registry {
		if def.Enabled(snap) {
			enabled = append(enabled, def)
		}
	}
	return enabled
}

// ForGithubUser builds the enabled rule set bound to the given user.
func ForGithubUser(user *models.GithubUser, snap *settings.Snapshot) *Iterator {
	var bound []Rule
	for _, def := range EnabledDefinitions(snap) {
		bound = append(bound, def.New(user, snap))
	}
	return NewIterator(bound)
}
