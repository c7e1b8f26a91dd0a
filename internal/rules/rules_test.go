package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func linkedUser(control int) *models.User {
	return &models.User{
		ID:                 "u1",
		Username:           "jane",
		LdapAccountControl: control,
	}
}

func TestActiveLdap(t *testing.T) {
	tests := []struct {
		name    string
		user    *models.GithubUser
		result  bool
		message string
	}{
		{
			name:    "unlinked user fails",
			user:    &models.GithubUser{Login: "jane"},
			result:  false,
			message: "Active Directory account does not meet criteria",
		},
		{
			name:   "active account passes",
			user:   &models.GithubUser{Login: "jane", User: linkedUser(models.AccountControlNormalAccount)},
			result: true,
		},
		{
			name: "disabled account fails",
			user: &models.GithubUser{
				Login: "jane",
				User:  linkedUser(models.AccountControlNormalAccount | models.AccountControlAccountDisabled),
			},
			result:  false,
			message: "Active Directory account is disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &ActiveLdap{user: tt.user}
			assert.Equal(t, tt.result, rule.Result())
			assert.Equal(t, tt.message, rule.ErrorMsg())
			assert.False(t, rule.Notify())
			assert.False(t, rule.RequiredForExternal())
		})
	}
}

func TestGithubMfa(t *testing.T) {
	tests := []struct {
		name   string
		mfa    *bool
		result bool
	}{
		{"enabled passes", boolPtr(true), true},
		{"disabled fails", boolPtr(false), false},
		{"unknown fails", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &GithubMfa{user: &models.GithubUser{Login: "jane", Mfa: tt.mfa}}
			assert.Equal(t, tt.result, rule.Result())
			if !tt.result {
				assert.Equal(t, "Two factor authentication is disabled", rule.ErrorMsg())
			}
			assert.True(t, rule.Notify())
			assert.True(t, rule.RequiredForExternal())
		})
	}
}

func TestGithubOauth(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		syncError *string
		result    bool
		message   string
	}{
		{"token without errors passes", "tok", nil, true, ""},
		{"missing token fails", "", nil, false, "Missing OAuth token"},
		{"notoken error fails", "tok", strPtr(SyncErrorNoToken), false, "Invalid OAuth token"},
		{"unauthorized error fails", "tok", strPtr(SyncErrorUnauthorized), false, "Invalid OAuth token"},
		{"unrelated error still passes", "tok", strPtr("rate_limited"), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &GithubOauth{user: &models.GithubUser{Login: "jane", Token: tt.token, SyncError: tt.syncError}}
			assert.Equal(t, tt.result, rule.Result())
			assert.Equal(t, tt.message, rule.ErrorMsg())
		})
	}
}

func TestEmail(t *testing.T) {
	snap := &settings.Snapshot{RuleEmailRegex: `@example\.com$`}

	user := func(addresses ...string) *models.GithubUser {
		u := &models.GithubUser{Login: "jane"}
		for _, address := range addresses {
			u.Emails = append(u.Emails, &models.GithubEmail{Address: address})
		}
		return u
	}

	t.Run("all matching passes", func(t *testing.T) {
		rule := &Email{user: user("jane@example.com", "j@example.com"), snap: snap}
		assert.True(t, rule.Result())
		assert.Empty(t, rule.ErrorMsg())
	})

	t.Run("case insensitive via lowercasing", func(t *testing.T) {
		rule := &Email{user: user("Jane@Example.COM"), snap: snap}
		assert.True(t, rule.Result())
	})

	t.Run("one mismatch fails and is named", func(t *testing.T) {
		rule := &Email{user: user("jane@example.com", "jane@gmail.com"), snap: snap}
		assert.False(t, rule.Result())
		assert.Equal(t, "Email does not meet criteria: jane@gmail.com", rule.ErrorMsg())
	})

	t.Run("multiple mismatches pluralize", func(t *testing.T) {
		rule := &Email{user: user("a@gmail.com", "b@gmail.com"), snap: snap}
		assert.Equal(t, "Emails do not meet criteria: a@gmail.com, b@gmail.com", rule.ErrorMsg())
	})

	t.Run("no addresses passes vacuously", func(t *testing.T) {
		rule := &Email{user: user(), snap: snap}
		assert.True(t, rule.Result())
	})

	t.Run("invalid pattern fails closed", func(t *testing.T) {
		rule := &Email{user: user("jane@example.com"), snap: &settings.Snapshot{RuleEmailRegex: `(`}}
		assert.False(t, rule.Result())
		assert.Contains(t, rule.ErrorMsg(), "Invalid email rule pattern")
	})
}

func TestLastGithubSync(t *testing.T) {
	snap := &settings.Snapshot{RuleMaxSyncAge: 3600}

	t.Run("recent sync passes", func(t *testing.T) {
		rule := &LastGithubSync{
			user: &models.GithubUser{LastSyncAt: timePtr(time.Now().Add(-time.Minute))},
			snap: snap,
		}
		assert.True(t, rule.Result())
	})

	t.Run("stale sync fails", func(t *testing.T) {
		rule := &LastGithubSync{
			user: &models.GithubUser{LastSyncAt: timePtr(time.Now().Add(-2 * time.Hour))},
			snap: snap,
		}
		assert.False(t, rule.Result())
		assert.Equal(t, "Last GitHub synchronization is too old", rule.ErrorMsg())
	})

	t.Run("never synced fails", func(t *testing.T) {
		rule := &LastGithubSync{user: &models.GithubUser{}, snap: snap}
		assert.False(t, rule.Result())
		assert.Equal(t, "GitHub has never been synchronized", rule.ErrorMsg())
	})
}

func TestLastLdapSync(t *testing.T) {
	snap := &settings.Snapshot{RuleMaxSyncAge: 3600}

	t.Run("recent sync passes", func(t *testing.T) {
		user := linkedUser(models.AccountControlNormalAccount)
		user.LastLdapSync = timePtr(time.Now().Add(-time.Minute))
		rule := &LastLdapSync{user: &models.GithubUser{User: user}, snap: snap}
		assert.True(t, rule.Result())
	})

	t.Run("stale sync fails", func(t *testing.T) {
		user := linkedUser(models.AccountControlNormalAccount)
		user.LastLdapSync = timePtr(time.Now().Add(-2 * time.Hour))
		rule := &LastLdapSync{user: &models.GithubUser{User: user}, snap: snap}
		assert.False(t, rule.Result())
		assert.Equal(t, "Last Active Directory synchronization is too old", rule.ErrorMsg())
	})

	t.Run("unlinked fails", func(t *testing.T) {
		rule := &LastLdapSync{user: &models.GithubUser{}, snap: snap}
		assert.False(t, rule.Result())
		assert.Equal(t, "No active directory user", rule.ErrorMsg())
	})
}

func TestEnabledDefinitions(t *testing.T) {
	t.Run("optional rules off by default", func(t *testing.T) {
		defs := EnabledDefinitions(&settings.Snapshot{})
		names := defNames(defs)
		assert.Equal(t, []string{"active_ldap", "github_mfa", "github_oauth"}, names)
	})

	t.Run("email regex enables email rule", func(t *testing.T) {
		defs := EnabledDefinitions(&settings.Snapshot{RuleEmailRegex: ".*"})
		assert.Contains(t, defNames(defs), "email")
	})

	t.Run("max sync age enables recency rules", func(t *testing.T) {
		names := defNames(EnabledDefinitions(&settings.Snapshot{RuleMaxSyncAge: 3600}))
		assert.Contains(t, names, "last_github_sync")
		assert.Contains(t, names, "last_ldap_sync")
	})
}

func TestForGithubUser(t *testing.T) {
	snap := &settings.Snapshot{RuleEmailRegex: `@example\.com$`, RuleMaxSyncAge: 3600}
	user := &models.GithubUser{Login: "jane", Token: "tok", Mfa: boolPtr(true)}

	it := ForGithubUser(user, snap)
	require.Len(t, it.Rules(), 6)
	assert.Equal(t, []string{
		"active_ldap", "email", "github_mfa",
		"github_oauth", "last_github_sync", "last_ldap_sync",
	}, it.Names())
}

func defNames(defs []Definition) []string {
	var names []string
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}
