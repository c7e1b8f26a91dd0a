package workers

import (
	"context"
	"time"

	"github.com/ogulcan/ghwarden/internal/lifecycle"
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// TransitionMachine drives one user through the access state machine.
type TransitionMachine interface {
	Transition(ctx context.Context, user *models.GithubUser) (lifecycle.Event, error)
}

// TransitionUserStore lists the users to transition and enforce.
type TransitionUserStore interface {
	GetAll() ([]*models.GithubUser, error)
	GetByState(state models.AccessState) ([]*models.GithubUser, error)
	ReplaceDisabledTeams(id int64, teamIDs []int64) error
}

// EnforcementService re-applies the remote effects of a restricted or
// disabled state.
type EnforcementService interface {
	RemoveFromOrganizations(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error)
	RemoveFromInternalTeams(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error)
}

// TransitionStats are the counters for one transition run.
type TransitionStats struct {
	UsersTransitioned int
	UsersRemoved      int
	UsersRestricted   int
	TransitionErrors  int
	UsersEnforced     int
	EnforceErrors     int
	TransitionTime    time.Duration
	EnforceTime       time.Duration
	TotalTime         time.Duration
}

// TransitionExecutor runs the access state machine over every GitHub
// user and then re-applies the effects of terminal states, so access
// revoked out of band cannot silently return.
type TransitionExecutor struct {
	*Executor

	machine TransitionMachine
	users   TransitionUserStore
	members EnforcementService
	snap    *settings.Snapshot

	// Users, when non-nil, is the working set for the run instead of
	// every stored user.
	Users []*models.GithubUser

	Stats TransitionStats

	// Transitioned, Removed, and Restricted record the logins affected
	// by the most recent run.
	Transitioned []string
	Removed      []string
	Restricted   []string
}

func NewTransitionExecutor(
	executor *Executor,
	machine TransitionMachine,
	users TransitionUserStore,
	members EnforcementService,
	snap *settings.Snapshot,
) *TransitionExecutor {
	return &TransitionExecutor{
		Executor: executor,
		machine:  machine,
		users:    users,
		members:  members,
		snap:     snap,
	}
}

// TransitionUsers runs the state machine over the working set.
func (t *TransitionExecutor) TransitionUsers(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		t.Stats.TransitionTime = time.Since(start)
	}()

	users := t.Users
	if users == nil {
		all, err := t.users.GetAll()
		if err != nil {
			t.AddError(err)
			return false
		}
		users = all
	}

	ForEach(t.Executor, users, func(user *models.GithubUser) {
		var event lifecycle.Event
		err := capture(func() error {
			var err error
			event, err = t.machine.Transition(ctx, user)
			return err
		})
		t.Synchronize(func() {
			switch {
			case err != nil:
				t.Stats.TransitionErrors++
				t.errors = append(t.errors, err)
			case event == "":
			default:
				t.Stats.UsersTransitioned++
				t.Transitioned = append(t.Transitioned, user.Login)
				if event == lifecycle.EventDisable {
					t.Stats.UsersRemoved++
					t.Removed = append(t.Removed, user.Login)
				}
				if event == lifecycle.EventRestrict {
					t.Stats.UsersRestricted++
					t.Restricted = append(t.Restricted, user.Login)
				}
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("Error transitioning user %s", user.Login)
		}
	})

	return t.Stats.TransitionErrors == 0
}

// EnforceState re-applies the remote effects of the disabled and
// external states. Catches users whose access was restored outside the
// connector; each pass is idempotent, so re-applying an already
// enforced state removes nothing. Does nothing when rule enforcement
// is off.
func (t *TransitionExecutor) EnforceState(ctx context.Context) bool {
	if !t.snap.EnforceRules {
		logger.Info("Skipping state enforcement, rule enforcement is off")
		return false
	}

	start := time.Now()
	defer func() {
		t.Stats.EnforceTime = time.Since(start)
	}()

	disabled, err := t.users.GetByState(models.StateDisabled)
	if err != nil {
		t.AddError(err)
		return false
	}
	external, err := t.users.GetByState(models.StateExternal)
	if err != nil {
		t.AddError(err)
		return false
	}

	type enforcement struct {
		user  *models.GithubUser
		apply func(context.Context, *models.GithubUser) ([]*models.GithubTeam, error)
	}
	work := make([]enforcement, 0, len(disabled)+len(external))
	for _, user := range disabled {
		work = append(work, enforcement{user, t.members.RemoveFromOrganizations})
	}
	for _, user := range external {
		work = append(work, enforcement{user, t.members.RemoveFromInternalTeams})
	}

	ForEach(t.Executor, work, func(item enforcement) {
		var removed []*models.GithubTeam
		err := capture(func() error {
			var err error
			removed, err = item.apply(ctx, item.user)
			if err != nil {
				return err
			}
			if len(removed) > 0 {
				ids := make([]int64, len(removed))
				for i, team := range removed {
					ids[i] = team.ID
				}
				return t.users.ReplaceDisabledTeams(item.user.ID, ids)
			}
			return nil
		})
		t.Synchronize(func() {
			if err != nil {
				t.Stats.EnforceErrors++
				t.errors = append(t.errors, err)
				return
			}
			if len(removed) > 0 {
				t.Stats.UsersEnforced++
			}
		})
		if err != nil {
			logger.WithError(err).Errorf("Error enforcing state for user %s", item.user.Login)
		}
	})

	return t.Stats.EnforceErrors == 0
}

// Run transitions everyone and then enforces terminal states. Returns
// true when no errors were accumulated.
func (t *TransitionExecutor) Run(ctx context.Context) bool {
	start := time.Now()
	t.ResetErrors()
	t.Stats = TransitionStats{}
	t.Transitioned = nil
	t.Removed = nil
	t.Restricted = nil

	t.TransitionUsers(ctx)
	t.EnforceState(ctx)

	t.Stats.TotalTime = time.Since(start)
	return len(t.Errors()) == 0
}
