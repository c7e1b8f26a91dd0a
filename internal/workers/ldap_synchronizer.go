package workers

import (
	"context"
	"time"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/services"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// LdapSyncUserStore lists the directory principals to refresh.
type LdapSyncUserStore interface {
	GetAll() ([]*models.User, error)
}

// LdapUserSyncer refreshes one principal from the directory.
type LdapUserSyncer interface {
	SyncFromLDAP(ctx context.Context, user *models.User) (services.Outcome, error)
}

// LdapStats are the counters for one directory synchronization run.
type LdapStats struct {
	UsersSynced int
	UserErrors  int
	UsersTime   time.Duration
}

// LdapSynchronizer refreshes every known directory principal from
// Active Directory concurrently.
type LdapSynchronizer struct {
	*Executor

	users   LdapSyncUserStore
	userSvc LdapUserSyncer

	Stats LdapStats
}

func NewLdapSynchronizer(executor *Executor, users LdapSyncUserStore, userSvc LdapUserSyncer) *LdapSynchronizer {
	return &LdapSynchronizer{Executor: executor, users: users, userSvc: userSvc}
}

// Run refreshes all principals and returns true when no errors were
// accumulated. A degraded per-user sync counts as an error for the run
// but does not stop the remaining users.
func (s *LdapSynchronizer) Run(ctx context.Context) bool {
	start := time.Now()
	s.ResetErrors()
	s.Stats = LdapStats{}

	users, err := s.users.GetAll()
	if err != nil {
		s.AddError(err)
		return false
	}

	ForEach(s.Executor, users, func(user *models.User) {
		err := capture(func() error {
			_, err := s.userSvc.SyncFromLDAP(ctx, user)
			return err
		})
		s.Synchronize(func() {
			switch {
			case err != nil:
				s.Stats.UserErrors++
				s.errors = append(s.errors, err)
			case user.LdapSyncError != nil:
				s.Stats.UserErrors++
			default:
				s.Stats.UsersSynced++
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("Error synchronizing user %s", user.Username)
		}
	})

	s.Stats.UsersTime = time.Since(start)
	return len(s.Errors()) == 0 && s.Stats.UserErrors == 0
}
