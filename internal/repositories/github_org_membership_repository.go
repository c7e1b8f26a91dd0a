package repositories

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/ogulcan/ghwarden/internal/models"
)

type GithubOrgMembershipRepository struct {
	db *sql.DB
}

func NewGithubOrgMembershipRepository(db *sql.DB) *GithubOrgMembershipRepository {
	return &GithubOrgMembershipRepository{db: db}
}

func (r *GithubOrgMembershipRepository) ListByGithubUserID(githubUserID int64) ([]*models.GithubOrganizationMembership, error) {
	rows, err := r.db.Query(`
		SELECT id, github_user_id, organization, state, role, created_at
		FROM github_organization_memberships WHERE github_user_id = ? ORDER BY created_at ASC
	`, githubUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.GithubOrganizationMembership
	for rows.Next() {
		var membership models.GithubOrganizationMembership
		err := rows.Scan(
			&membership.ID, &membership.GithubUserID, &membership.Organization,
			&membership.State, &membership.Role, &membership.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, &membership)
	}
	return memberships, rows.Err()
}

// ReplaceForUser reconciles the user's stored memberships against the
// given set: absent organizations are removed, new ones added, and
// state/role refreshed on existing rows.
func (r *GithubOrgMembershipRepository) ReplaceForUser(githubUserID int64, memberships []*models.GithubOrganizationMembership) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keep := make(map[string]bool, len(memberships))
	for _, membership := range memberships {
		keep[membership.Organization] = true
	}

	rows, err := tx.Query(
		`SELECT organization FROM github_organization_memberships WHERE github_user_id = ?`, githubUserID)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			rows.Close()
			return err
		}
		existing[org] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for org := range existing {
		if !keep[org] {
			if _, err := tx.Exec(
				`DELETE FROM github_organization_memberships WHERE github_user_id = ? AND organization = ?`,
				githubUserID, org); err != nil {
				return err
			}
		}
	}
	for _, membership := range memberships {
		if existing[membership.Organization] {
			if _, err := tx.Exec(`
				UPDATE github_organization_memberships SET state = ?, role = ?
				WHERE github_user_id = ? AND organization = ?
			`, membership.State, membership.Role, githubUserID, membership.Organization); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(`
				INSERT INTO github_organization_memberships (id, github_user_id, organization, state, role)
				VALUES (?, ?, ?, ?, ?)
			`, uuid.New().String(), githubUserID, membership.Organization, membership.State, membership.Role); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
