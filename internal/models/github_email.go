package models

import "time"

// GithubEmail is one email address attached to a GithubUser, pulled via
// the user's own token.
type GithubEmail struct {
	ID           string    `json:"id" db:"id"`
	GithubUserID int64     `json:"github_user_id" db:"github_user_id"`
	Address      string    `json:"address" db:"address"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
