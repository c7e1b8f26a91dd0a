package repositories

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/ogulcan/ghwarden/internal/models"
)

type GithubEmailRepository struct {
	db *sql.DB
}

func NewGithubEmailRepository(db *sql.DB) *GithubEmailRepository {
	return &GithubEmailRepository{db: db}
}

func (r *GithubEmailRepository) ListByGithubUserID(githubUserID int64) ([]*models.GithubEmail, error) {
	rows, err := r.db.Query(`
		SELECT id, github_user_id, address, created_at
		FROM github_emails WHERE github_user_id = ? ORDER BY created_at ASC
	`, githubUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*models.GithubEmail
	for rows.Next() {
		var email models.GithubEmail
		if err := rows.Scan(&email.ID, &email.GithubUserID, &email.Address, &email.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, &email)
	}
	return emails, rows.Err()
}

// ReplaceForUser reconciles the user's stored addresses against the
// given set: absent addresses are removed, new ones added, existing
// rows kept.
func (r *GithubEmailRepository) ReplaceForUser(githubUserID int64, addresses []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keep := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		keep[address] = true
	}

	rows, err := tx.Query(`SELECT address FROM github_emails WHERE github_user_id = ?`, githubUserID)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			rows.Close()
			return err
		}
		existing[address] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for address := range existing {
		if !keep[address] {
			if _, err := tx.Exec(
				`DELETE FROM github_emails WHERE github_user_id = ? AND address = ?`,
				githubUserID, address); err != nil {
				return err
			}
		}
	}
	for _, address := range addresses {
		if !existing[address] {
			if _, err := tx.Exec(
				`INSERT INTO github_emails (id, github_user_id, address) VALUES (?, ?, ?)`,
				uuid.New().String(), githubUserID, address); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
