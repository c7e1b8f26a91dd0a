package models

import "time"

// GithubOrganizationMembership records a GithubUser's membership state
// and role in one managed organization.
type GithubOrganizationMembership struct {
	ID           string    `json:"id" db:"id"`
	GithubUserID int64     `json:"github_user_id" db:"github_user_id"`
	Organization string    `json:"organization" db:"organization"`
	State        *string   `json:"state" db:"state"`
	Role         *string   `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Admin reports whether the membership role is "admin".
func (m *GithubOrganizationMembership) Admin() bool {
	return m.Role != nil && *m.Role == "admin"
}
