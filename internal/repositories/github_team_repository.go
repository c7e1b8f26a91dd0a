package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ogulcan/ghwarden/internal/models"
)

type GithubTeamRepository struct {
	db *sql.DB
}

func NewGithubTeamRepository(db *sql.DB) *GithubTeamRepository {
	return &GithubTeamRepository{db: db}
}

const githubTeamColumns = `id, organization, slug, name, created_at, updated_at`

func (r *GithubTeamRepository) GetByID(id int64) (*models.GithubTeam, error) {
	return r.getOne(`SELECT `+githubTeamColumns+` FROM github_teams WHERE id = ?`, id)
}

// GetByFullSlug finds a team by an "org/slug" reference.
func (r *GithubTeamRepository) GetByFullSlug(fullSlug string) (*models.GithubTeam, error) {
	org, slug, ok := models.SplitFullSlug(fullSlug)
	if !ok {
		return nil, fmt.Errorf("invalid team slug %q", fullSlug)
	}
	return r.getOne(`SELECT `+githubTeamColumns+` FROM github_teams WHERE organization = ? AND slug = ?`, org, slug)
}

// GetBySlug returns every team with the given unqualified slug.
// Unqualified slugs may exist in multiple organizations.
func (r *GithubTeamRepository) GetBySlug(slug string) ([]*models.GithubTeam, error) {
	return r.list(`SELECT `+githubTeamColumns+` FROM github_teams WHERE slug = ?`, slug)
}

func (r *GithubTeamRepository) GetAll() ([]*models.GithubTeam, error) {
	return r.list(`SELECT ` + githubTeamColumns + ` FROM github_teams ORDER BY organization, slug`)
}

func (r *GithubTeamRepository) getOne(query string, args ...interface{}) (*models.GithubTeam, error) {
	var team models.GithubTeam
	err := r.db.QueryRow(query, args...).Scan(
		&team.ID, &team.Organization, &team.Slug, &team.Name, &team.CreatedAt, &team.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *GithubTeamRepository) list(query string, args ...interface{}) ([]*models.GithubTeam, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*models.GithubTeam
	for rows.Next() {
		var team models.GithubTeam
		err := rows.Scan(&team.ID, &team.Organization, &team.Slug, &team.Name, &team.CreatedAt, &team.UpdatedAt)
		if err != nil {
			return nil, err
		}
		teams = append(teams, &team)
	}
	return teams, rows.Err()
}

// Upsert creates or updates the team by its remote id. Returns true
// when a new row was created.
func (r *GithubTeamRepository) Upsert(team *models.GithubTeam) (bool, error) {
	existing, err := r.GetByID(team.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		query := `INSERT INTO github_teams (id, organization, slug, name) VALUES (?, ?, ?, ?)`
		_, err := r.db.Exec(query, team.ID, team.Organization, team.Slug, team.Name)
		return true, err
	}

	team.UpdatedAt = time.Now()
	query := `UPDATE github_teams SET organization = ?, slug = ?, name = ?, updated_at = ? WHERE id = ?`
	_, err = r.db.Exec(query, team.Organization, team.Slug, team.Name, team.UpdatedAt, team.ID)
	return false, err
}

// DeleteAbsent deletes every team not in the given remote id set.
// Returns the number of deleted rows.
func (r *GithubTeamRepository) DeleteAbsent(presentIDs []int64) (int, error) {
	placeholders, args := int64Placeholders(presentIDs)
	query := fmt.Sprintf(`DELETE FROM github_teams WHERE id NOT IN (%s)`, placeholders)
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// MemberLogins returns the logins of the team's cached members.
func (r *GithubTeamRepository) MemberLogins(teamID int64) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT gu.login
		FROM github_user_teams j
		INNER JOIN github_users gu ON gu.id = j.github_user_id
		WHERE j.github_team_id = ?
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logins []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		logins = append(logins, login)
	}
	return logins, rows.Err()
}

// SetMembers reconciles the team's member join rows against the given
// login set. Only logins with a local GithubUser row are added.
func (r *GithubTeamRepository) SetMembers(teamID int64, logins []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := "?"
	args := []interface{}{teamID}
	if len(logins) > 0 {
		placeholders = ""
		for _, login := range logins {
			placeholders += "?, "
			args = append(args, login)
		}
		placeholders = placeholders[:len(placeholders)-2]
	} else {
		args = append(args, "")
	}

	query := fmt.Sprintf(`
		DELETE FROM github_user_teams
		WHERE github_team_id = ?
		  AND github_user_id NOT IN (SELECT id FROM github_users WHERE login IN (%s))
	`, placeholders)
	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	for _, login := range logins {
		query := `
			INSERT OR IGNORE INTO github_user_teams (github_user_id, github_team_id)
			SELECT id, ? FROM github_users WHERE login = ?
		`
		if _, err := tx.Exec(query, teamID, login); err != nil {
			return err
		}
	}

	return tx.Commit()
}
