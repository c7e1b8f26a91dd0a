package models

import (
	"fmt"
	"time"
)

// GithubTeam represents a team in one of our managed GitHub
// organizations, keyed by the remote team id.
type GithubTeam struct {
	ID           int64     `json:"id" db:"id"`
	Organization string    `json:"organization" db:"organization"`
	Slug         string    `json:"slug" db:"slug"`
	Name         *string   `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// FullSlug returns the organization and team slug combined with a slash,
// for example "org1/myteam".
func (t *GithubTeam) FullSlug() string {
	return fmt.Sprintf("%s/%s", t.Organization, t.Slug)
}

// External reports whether this team allows external users. A team is
// external when its slug or full slug appears in the configured
// external-teams list.
func (t *GithubTeam) External(externalTeams []string) bool {
	for _, entry := range externalTeams {
		if entry == t.Slug || entry == t.FullSlug() {
			return true
		}
	}
	return false
}

// SplitFullSlug splits an "org/slug" reference into its parts.
func SplitFullSlug(fullSlug string) (org, slug string, ok bool) {
	for i := 0; i < len(fullSlug); i++ {
		if fullSlug[i] == '/' {
			return fullSlug[:i], fullSlug[i+1:], true
		}
	}
	return "", "", false
}
