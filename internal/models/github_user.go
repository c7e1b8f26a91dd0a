package models

import (
	"time"
)

// GithubUser represents one person's binding to a GitHub account in our
// managed organizations. It may be linked to a directory User; unlinked
// records are disposable cache entries mirroring remote membership.
type GithubUser struct {
	ID          int64       `json:"id" db:"id"`
	UserID      *string     `json:"user_id" db:"user_id"`
	Login       string      `json:"login" db:"login"`
	AvatarURL   *string     `json:"avatar_url" db:"avatar_url"`
	HTMLURL     *string     `json:"html_url" db:"html_url"`
	Token       string      `json:"-" db:"encrypted_token"`
	Mfa         *bool       `json:"mfa" db:"mfa"`
	State       AccessState `json:"state" db:"state"`
	LastSyncAt  *time.Time  `json:"last_sync_at" db:"last_sync_at"`
	SyncError   *string     `json:"sync_error" db:"sync_error"`
	SyncErrorAt *time.Time  `json:"sync_error_at" db:"sync_error_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`

	// Loaded relations
	User           *User                           `json:"user,omitempty"`
	Emails         []*GithubEmail                  `json:"emails,omitempty"`
	OrgMemberships []*GithubOrganizationMembership `json:"org_memberships,omitempty"`
	Teams          []*GithubTeam                   `json:"teams,omitempty"`
	DisabledTeams  []*GithubTeam                   `json:"disabled_teams,omitempty"`
}

// Linked reports whether this GitHub user is bound to a directory user.
func (u *GithubUser) Linked() bool {
	return u.UserID != nil && *u.UserID != ""
}

// SetSyncError records a sync error code and stamps the error time.
// A nil code clears both fields.
func (u *GithubUser) SetSyncError(code *string) {
	u.SyncError = code
	if code != nil {
		now := time.Now()
		u.SyncErrorAt = &now
	} else {
		u.SyncErrorAt = nil
	}
}

// Organizations returns the distinct organizations this user belongs to,
// derived from cached team memberships.
func (u *GithubUser) Organizations() []string {
	seen := make(map[string]bool)
	var orgs []string
	for _, team := range u.Teams {
		if team.Organization == "" || seen[team.Organization] {
			continue
		}
		seen[team.Organization] = true
		orgs = append(orgs, team.Organization)
	}
	return orgs
}

// OrganizationAdmin reports whether the user holds the admin role in the
// given organization.
func (u *GithubUser) OrganizationAdmin(org string) bool {
	for _, membership := range u.OrgMemberships {
		if membership.Organization == org {
			return membership.Admin()
		}
	}
	return false
}

// OnExternalTeam reports whether the user currently belongs to at least
// one team in the given external-access team list.
func (u *GithubUser) OnExternalTeam(externalTeams []string) bool {
	for _, team := range u.Teams {
		if team.External(externalTeams) {
			return true
		}
	}
	return false
}
