package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/crypto"
)

// SettingRepository persists settings values, transparently encrypting
// the keys listed in settings.EncryptedKeys. Implements settings.Store.
type SettingRepository struct {
	db     *sql.DB
	cipher *crypto.Cipher
}

func NewSettingRepository(db *sql.DB, cipher *crypto.Cipher) *SettingRepository {
	return &SettingRepository{db: db, cipher: cipher}
}

func (r *SettingRepository) Values() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value, encrypted FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		var encrypted bool
		if err := rows.Scan(&key, &value, &encrypted); err != nil {
			return nil, err
		}
		if !value.Valid {
			continue
		}
		if encrypted {
			plain, err := r.cipher.Decrypt(value.String)
			if err != nil {
				return nil, fmt.Errorf("decrypting setting %s: %w", key, err)
			}
			values[key] = plain
		} else {
			values[key] = value.String
		}
	}
	return values, rows.Err()
}

func (r *SettingRepository) SetValue(key, value string) error {
	encrypted := settings.EncryptedKeys[key]
	if encrypted {
		sealed, err := r.cipher.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypting setting %s: %w", key, err)
		}
		value = sealed
	}

	query := `
		INSERT INTO settings (key, value, encrypted, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, encrypted = excluded.encrypted, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.Exec(query, key, value, encrypted)
	return err
}
