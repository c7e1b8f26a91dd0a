package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/pkg/crypto"
)

// GithubUserRepository persists GitHub identities. Tokens are encrypted
// at rest; callers always see the plaintext token on the model.
type GithubUserRepository struct {
	db     *sql.DB
	cipher *crypto.Cipher
}

func NewGithubUserRepository(db *sql.DB, cipher *crypto.Cipher) *GithubUserRepository {
	return &GithubUserRepository{db: db, cipher: cipher}
}

const githubUserColumns = `id, user_id, login, avatar_url, html_url, encrypted_token, mfa,
	state, last_sync_at, sync_error, sync_error_at, created_at, updated_at`

func (r *GithubUserRepository) Create(user *models.GithubUser) error {
	if user.State == "" {
		user.State = models.StateUnknown
	}
	token, err := r.cipher.Encrypt(user.Token)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO github_users (
			id, user_id, login, avatar_url, html_url, encrypted_token, mfa,
			state, last_sync_at, sync_error, sync_error_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		user.ID, user.UserID, user.Login, user.AvatarURL, user.HTMLURL, token, user.Mfa,
		user.State, user.LastSyncAt, user.SyncError, user.SyncErrorAt,
	)

	return err
}

func (r *GithubUserRepository) Update(user *models.GithubUser) error {
	user.UpdatedAt = time.Now()
	token, err := r.cipher.Encrypt(user.Token)
	if err != nil {
		return err
	}

	query := `
		UPDATE github_users SET
			user_id = ?, login = ?, avatar_url = ?, html_url = ?, encrypted_token = ?, mfa = ?,
			state = ?, last_sync_at = ?, sync_error = ?, sync_error_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.Exec(query,
		user.UserID, user.Login, user.AvatarURL, user.HTMLURL, token, user.Mfa,
		user.State, user.LastSyncAt, user.SyncError, user.SyncErrorAt, user.UpdatedAt,
		user.ID,
	)

	return err
}

func (r *GithubUserRepository) GetByID(id int64) (*models.GithubUser, error) {
	return r.getOne(`SELECT `+githubUserColumns+` FROM github_users WHERE id = ?`, id)
}

func (r *GithubUserRepository) GetByLogin(login string) (*models.GithubUser, error) {
	return r.getOne(`SELECT `+githubUserColumns+` FROM github_users WHERE login = ?`, login)
}

func (r *GithubUserRepository) getOne(query string, arg interface{}) (*models.GithubUser, error) {
	row := r.db.QueryRow(query, arg)
	user, err := r.scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *GithubUserRepository) scan(scan func(dest ...interface{}) error) (*models.GithubUser, error) {
	var user models.GithubUser
	var token sql.NullString
	err := scan(
		&user.ID, &user.UserID, &user.Login, &user.AvatarURL, &user.HTMLURL, &token, &user.Mfa,
		&user.State, &user.LastSyncAt, &user.SyncError, &user.SyncErrorAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		plain, err := r.cipher.Decrypt(token.String)
		if err != nil {
			return nil, fmt.Errorf("decrypting token for %s: %w", user.Login, err)
		}
		user.Token = plain
	}
	return &user, nil
}

func (r *GithubUserRepository) list(query string, args ...interface{}) ([]*models.GithubUser, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.GithubUser
	for rows.Next() {
		user, err := r.scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetAll returns every GitHub user with relations loaded.
func (r *GithubUserRepository) GetAll() ([]*models.GithubUser, error) {
	users, err := r.list(`SELECT ` + githubUserColumns + ` FROM github_users ORDER BY login ASC`)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetByState returns every GitHub user in the given state with
// relations loaded.
func (r *GithubUserRepository) GetByState(state models.AccessState) ([]*models.GithubUser, error) {
	users, err := r.list(`SELECT `+githubUserColumns+` FROM github_users WHERE state = ? ORDER BY login ASC`, state)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateState writes the access state only.
func (r *GithubUserRepository) UpdateState(id int64, state models.AccessState) error {
	_, err := r.db.Exec(`UPDATE github_users SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, state, id)
	return err
}

// DeleteUnlinkedAbsent deletes every GitHub user that is not in the
// given remote id set and has no linked directory user. Linked users
// are preserved even when temporarily absent remotely. Returns the
// number of deleted rows.
func (r *GithubUserRepository) DeleteUnlinkedAbsent(presentIDs []int64) (int, error) {
	placeholders, args := int64Placeholders(presentIDs)
	query := fmt.Sprintf(
		`DELETE FROM github_users WHERE user_id IS NULL AND id NOT IN (%s)`, placeholders)
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// Team membership joins

func (r *GithubUserRepository) AddTeam(userID, teamID int64) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO github_user_teams (github_user_id, github_team_id) VALUES (?, ?)`,
		userID, teamID)
	return err
}

func (r *GithubUserRepository) RemoveTeam(userID, teamID int64) error {
	_, err := r.db.Exec(
		`DELETE FROM github_user_teams WHERE github_user_id = ? AND github_team_id = ?`,
		userID, teamID)
	return err
}

func (r *GithubUserRepository) ClearTeams(userID int64) error {
	_, err := r.db.Exec(`DELETE FROM github_user_teams WHERE github_user_id = ?`, userID)
	return err
}

// ReplaceDisabledTeams replaces the set of teams to restore when the
// user is re-enabled.
func (r *GithubUserRepository) ReplaceDisabledTeams(userID int64, teamIDs []int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM github_user_disabled_teams WHERE github_user_id = ?`, userID); err != nil {
		return err
	}
	for _, teamID := range teamIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO github_user_disabled_teams (github_user_id, github_team_id) VALUES (?, ?)`,
			userID, teamID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *GithubUserRepository) ClearDisabledTeams(userID int64) error {
	_, err := r.db.Exec(`DELETE FROM github_user_disabled_teams WHERE github_user_id = ?`, userID)
	return err
}

// loadRelations populates User, Emails, OrgMemberships, Teams, and
// DisabledTeams on the given users.
func (r *GithubUserRepository) loadRelations(users []*models.GithubUser) error {
	byID := make(map[int64]*models.GithubUser, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	if len(byID) == 0 {
		return nil
	}

	// Directory users
	rows, err := r.db.Query(`
		SELECT gu.id, u.id, u.username, u.name, u.email, u.department, u.ldap_account_control,
		       u.last_ldap_sync, u.ldap_sync_error, u.ldap_sync_error_at, u.admin, u.created_at, u.updated_at
		FROM github_users gu
		INNER JOIN users u ON u.id = gu.user_id
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var ghID int64
		var user models.User
		err := rows.Scan(
			&ghID, &user.ID, &user.Username, &user.Name, &user.Email, &user.Department,
			&user.LdapAccountControl, &user.LastLdapSync, &user.LdapSyncError, &user.LdapSyncErrorAt,
			&user.Admin, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			rows.Close()
			return err
		}
		if gh, ok := byID[ghID]; ok {
			gh.User = &user
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Emails
	rows, err = r.db.Query(`
		SELECT id, github_user_id, address, created_at FROM github_emails ORDER BY created_at ASC
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var email models.GithubEmail
		if err := rows.Scan(&email.ID, &email.GithubUserID, &email.Address, &email.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		if gh, ok := byID[email.GithubUserID]; ok {
			gh.Emails = append(gh.Emails, &email)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Organization memberships
	rows, err = r.db.Query(`
		SELECT id, github_user_id, organization, state, role, created_at
		FROM github_organization_memberships ORDER BY created_at ASC
	`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var membership models.GithubOrganizationMembership
		err := rows.Scan(
			&membership.ID, &membership.GithubUserID, &membership.Organization,
			&membership.State, &membership.Role, &membership.CreatedAt,
		)
		if err != nil {
			rows.Close()
			return err
		}
		if gh, ok := byID[membership.GithubUserID]; ok {
			gh.OrgMemberships = append(gh.OrgMemberships, &membership)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Team joins, current and disabled
	for _, join := range []struct {
		table  string
		assign func(gh *models.GithubUser, team *models.GithubTeam)
	}{
		{"github_user_teams", func(gh *models.GithubUser, team *models.GithubTeam) {
			gh.Teams = append(gh.Teams, team)
		}},
		{"github_user_disabled_teams", func(gh *models.GithubUser, team *models.GithubTeam) {
			gh.DisabledTeams = append(gh.DisabledTeams, team)
		}},
	} {
		rows, err = r.db.Query(fmt.Sprintf(`
			SELECT j.github_user_id, t.id, t.organization, t.slug, t.name, t.created_at, t.updated_at
			FROM %s j
			INNER JOIN github_teams t ON t.id = j.github_team_id
		`, join.table))
		if err != nil {
			return err
		}
		for rows.Next() {
			var ghID int64
			var team models.GithubTeam
			err := rows.Scan(&ghID, &team.ID, &team.Organization, &team.Slug, &team.Name, &team.CreatedAt, &team.UpdatedAt)
			if err != nil {
				rows.Close()
				return err
			}
			if gh, ok := byID[ghID]; ok {
				join.assign(gh, &team)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	return nil
}

// int64Placeholders builds a "?, ?, ..." list and matching args. An
// empty input yields a single impossible value so NOT IN matches all.
func int64Placeholders(ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "?", []interface{}{int64(-1)}
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
