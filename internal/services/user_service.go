package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/ogulcan/ghwarden/internal/directory"
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// UserStore is the persistence surface the service needs for directory
// users.
type UserStore interface {
	GetByUsername(username string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
	GetAll() ([]*models.User, error)
}

// UserService refreshes directory users from Active Directory.
type UserService struct {
	users UserStore
	dir   directory.Client
}

func NewUserService(users UserStore, dir directory.Client) *UserService {
	return &UserService{users: users, dir: dir}
}

// SyncFromLDAP refreshes one user's attributes from the directory.
// Directory protocol errors are recorded in the ldap-sync-error field
// and yield OutcomeDegraded; only a failed save yields OutcomeFailed.
func (s *UserService) SyncFromLDAP(ctx context.Context, user *models.User) (Outcome, error) {
	entry, err := s.dir.SearchPrincipal(ctx, user.Username)
	if err != nil {
		var protoErr *directory.ProtocolError
		if !errors.As(err, &protoErr) {
			return OutcomeFailed, err
		}
		logger.WithError(err).Errorf("Error syncing %s with Active Directory", user.Username)
		user.SetLdapSyncError(err.Error())
		if saveErr := s.users.Update(user); saveErr != nil {
			return OutcomeFailed, saveErr
		}
		return OutcomeDegraded, nil
	}
	if entry == nil {
		user.SetLdapSyncError("no directory entry for " + user.Username)
		if saveErr := s.users.Update(user); saveErr != nil {
			return OutcomeFailed, saveErr
		}
		return OutcomeDegraded, nil
	}

	name := entry.First("name")
	email := entry.First("mail")
	department := entry.First("department")
	user.Name = optional(name)
	user.Email = optional(email)
	user.Department = optional(department)
	if control, err := strconv.Atoi(entry.First("userAccountControl")); err == nil {
		user.LdapAccountControl = control
	}
	now := time.Now()
	user.LastLdapSync = &now
	user.SetLdapSyncError("")

	if err := s.users.Update(user); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeOK, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
