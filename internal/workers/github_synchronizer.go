package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcan/ghwarden/internal/githubclient"
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/services"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// RateLimitThreshold is the remaining-quota floor below which a sync
// run refuses to start.
const RateLimitThreshold = 100

// GithubSyncUserStore is the persistence surface for user sync.
type GithubSyncUserStore interface {
	GetByID(id int64) (*models.GithubUser, error)
	Create(user *models.GithubUser) error
	Update(user *models.GithubUser) error
	DeleteUnlinkedAbsent(presentIDs []int64) (int, error)
}

// GithubSyncTeamStore is the persistence surface for team sync.
type GithubSyncTeamStore interface {
	DeleteAbsent(presentIDs []int64) (int, error)
}

// GithubUserSyncer performs a per-user token sync.
type GithubUserSyncer interface {
	Sync(ctx context.Context, user *models.GithubUser) (services.Outcome, error)
}

// GithubTeamSyncer reconciles one team.
type GithubTeamSyncer interface {
	Sync(ctx context.Context, teamID int64) (created bool, err error)
}

// GithubStats are the counters for one GitHub synchronization run.
type GithubStats struct {
	UsersAdded   int
	UsersDeleted int
	UsersSynced  int
	UserErrors   int
	TeamsAdded   int
	TeamsDeleted int
	TeamsSynced  int
	TeamErrors   int
	APIRequests  int
	UsersTime    time.Duration
	TeamsTime    time.Duration
	TotalTime    time.Duration
}

// GithubSynchronizer reconciles the local GitHub user and team cache
// against the remote organization listings. It runs against one
// settings snapshot and one fresh Admin client per run.
type GithubSynchronizer struct {
	*Executor

	admin   *githubclient.Admin
	users   GithubSyncUserStore
	teams   GithubSyncTeamStore
	userSvc GithubUserSyncer
	teamSvc GithubTeamSyncer

	Stats GithubStats
}

func NewGithubSynchronizer(
	executor *Executor,
	admin *githubclient.Admin,
	users GithubSyncUserStore,
	teams GithubSyncTeamStore,
	userSvc GithubUserSyncer,
	teamSvc GithubTeamSyncer,
) *GithubSynchronizer {
	return &GithubSynchronizer{
		Executor: executor,
		admin:    admin,
		users:    users,
		teams:    teams,
		userSvc:  userSvc,
		teamSvc:  teamSvc,
	}
}

// SyncUsers reconciles local GitHub users against the remote
// organization member listings. Unlinked users absent remotely are
// deleted; every remote user is upserted concurrently, deduplicated by
// login; users holding a token get a full per-token sync.
func (s *GithubSynchronizer) SyncUsers(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		s.Stats.UsersTime = time.Since(start)
	}()

	orgUsers, err := s.admin.OrgUsers(ctx)
	if err != nil {
		s.AddError(err)
		s.Synchronize(func() { s.Stats.UserErrors++ })
		logger.WithError(err).Error("Error listing organization users")
		return false
	}

	presentIDs := make([]int64, 0, len(orgUsers))
	remote := make([]*githubclient.OrgUser, 0, len(orgUsers))
	for _, orgUser := range orgUsers {
		presentIDs = append(presentIDs, orgUser.ID)
		remote = append(remote, orgUser)
	}

	deleted, err := s.users.DeleteUnlinkedAbsent(presentIDs)
	if err != nil {
		s.AddError(err)
		s.Synchronize(func() { s.Stats.UserErrors++ })
		return false
	}
	s.Stats.UsersDeleted = deleted

	// Two workers can observe the same login when a user belongs to
	// multiple organizations; the guarded processed set ensures only
	// one of them upserts.
	processed := make(map[string]bool)

	ForEach(s.Executor, remote, func(orgUser *githubclient.OrgUser) {
		var skip bool
		s.Synchronize(func() {
			skip = processed[orgUser.Login]
			processed[orgUser.Login] = true
		})
		if skip {
			return
		}

		if err := capture(func() error { return s.syncUser(ctx, orgUser) }); err != nil {
			s.Synchronize(func() {
				s.Stats.UserErrors++
				s.errors = append(s.errors, err)
			})
			logger.WithError(err).Errorf("Error processing user %s", orgUser.Login)
		}
	})

	return s.Stats.UserErrors == 0
}

func (s *GithubSynchronizer) syncUser(ctx context.Context, orgUser *githubclient.OrgUser) error {
	user, err := s.users.GetByID(orgUser.ID)
	if err != nil {
		return err
	}
	isNew := user == nil
	if isNew {
		user = &models.GithubUser{ID: orgUser.ID, State: models.StateUnknown}
	}

	user.Login = orgUser.Login
	user.AvatarURL = optional(orgUser.AvatarURL)
	user.HTMLURL = optional(orgUser.HTMLURL)
	mfa := orgUser.MfaEnabled
	user.Mfa = &mfa
	if user.Token == "" {
		// The org listing itself is the sync for tokenless users.
		now := time.Now()
		user.LastSyncAt = &now
	}

	if isNew {
		if err := s.users.Create(user); err != nil {
			return err
		}
	} else {
		if err := s.users.Update(user); err != nil {
			return err
		}
	}

	// Sync with the user's token, if available
	if user.Token != "" {
		if _, err := s.userSvc.Sync(ctx, user); err != nil {
			return err
		}
	}

	s.Synchronize(func() {
		if user.SyncError != nil {
			s.Stats.UserErrors++
			s.errors = append(s.errors, fmt.Errorf("error synchronizing %s: %s", user.Login, *user.SyncError))
		} else if isNew {
			s.Stats.UsersAdded++
		} else {
			s.Stats.UsersSynced++
		}
	})
	return nil
}

// SyncTeams reconciles local teams against the remote team listings.
func (s *GithubSynchronizer) SyncTeams(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		s.Stats.TeamsTime = time.Since(start)
	}()

	teams, err := s.admin.Teams(ctx)
	if err != nil {
		s.AddError(err)
		s.Synchronize(func() { s.Stats.TeamErrors++ })
		logger.WithError(err).Error("Error listing organization teams")
		return false
	}

	presentIDs := make([]int64, 0, len(teams))
	remote := make([]githubclient.TeamInfo, 0, len(teams))
	for id, team := range teams {
		presentIDs = append(presentIDs, id)
		remote = append(remote, team)
	}

	deleted, err := s.teams.DeleteAbsent(presentIDs)
	if err != nil {
		s.AddError(err)
		s.Synchronize(func() { s.Stats.TeamErrors++ })
		return false
	}
	s.Stats.TeamsDeleted = deleted

	ForEach(s.Executor, remote, func(team githubclient.TeamInfo) {
		var created bool
		err := capture(func() error {
			var err error
			created, err = s.teamSvc.Sync(ctx, team.ID)
			return err
		})
		s.Synchronize(func() {
			if err != nil {
				s.Stats.TeamErrors++
				s.errors = append(s.errors, err)
			} else if created {
				s.Stats.TeamsAdded++
			} else {
				s.Stats.TeamsSynced++
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("Error processing team %s/%s", team.Organization, team.Slug)
		}
	})

	return s.Stats.TeamErrors == 0
}

// Run checks the remaining rate limit and executes the user and team
// sync phases. The rate limit is checked once at the top of the run
// only. Returns true when no errors were accumulated.
func (s *GithubSynchronizer) Run(ctx context.Context) bool {
	start := time.Now()
	s.ResetErrors()
	s.Stats = GithubStats{}

	rate, err := s.admin.RateLimit(ctx)
	if err != nil {
		s.AddError(err)
		return false
	}
	if rate.Remaining <= RateLimitThreshold {
		s.AddError(fmt.Errorf(
			"not running because GitHub rate limit is too low: %d remaining, try again after %s",
			rate.Remaining, time.Now().Add(rate.ResetsIn).Format(time.RFC3339)))
		return false
	}

	s.SyncUsers(ctx)
	s.SyncTeams(ctx)

	if after, err := s.admin.RateLimit(ctx); err == nil {
		s.Stats.APIRequests = rate.Remaining - after.Remaining
	}
	s.Stats.TotalTime = time.Since(start)

	return len(s.Errors()) == 0
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
