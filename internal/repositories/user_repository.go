package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcan/ghwarden/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, name, email, department, ldap_account_control,
	last_ldap_sync, ldap_sync_error, ldap_sync_error_at, admin, created_at, updated_at`

func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (
			id, username, name, email, department, ldap_account_control,
			last_ldap_sync, ldap_sync_error, ldap_sync_error_at, admin
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		user.ID, user.Username, user.Name, user.Email, user.Department, user.LdapAccountControl,
		user.LastLdapSync, user.LdapSyncError, user.LdapSyncErrorAt, user.Admin,
	)

	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.getOne(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	return r.getOne(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) getOne(query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(query, arg).Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.Department, &user.LdapAccountControl,
		&user.LastLdapSync, &user.LdapSyncError, &user.LdapSyncErrorAt, &user.Admin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			username = ?, name = ?, email = ?, department = ?, ldap_account_control = ?,
			last_ldap_sync = ?, ldap_sync_error = ?, ldap_sync_error_at = ?, admin = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.Exec(query,
		user.Username, user.Name, user.Email, user.Department, user.LdapAccountControl,
		user.LastLdapSync, user.LdapSyncError, user.LdapSyncErrorAt, user.Admin,
		user.UpdatedAt, user.ID,
	)

	return err
}

// GetAll returns every directory user.
func (r *UserRepository) GetAll() ([]*models.User, error) {
	rows, err := r.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID, &user.Username, &user.Name, &user.Email, &user.Department, &user.LdapAccountControl,
			&user.LastLdapSync, &user.LdapSyncError, &user.LdapSyncErrorAt, &user.Admin,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}
