package lifecycle

import (
	"context"
	"strings"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/notify"
	"github.com/ogulcan/ghwarden/internal/rules"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// MembershipService performs the remote membership mutations a
// transition requires.
type MembershipService interface {
	AddBackDisabledTeams(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error)
	RemoveFromOrganizations(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error)
	RemoveFromInternalTeams(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error)
}

// StateStore persists transition results.
type StateStore interface {
	UpdateState(id int64, state models.AccessState) error
	ReplaceDisabledTeams(id int64, teamIDs []int64) error
}

// Machine drives one user through a transition: evaluate rules, decide
// the target state, apply side effects, persist, then notify. Side
// effects execute exactly once, before the state commits; the
// notification fires after.
type Machine struct {
	members  MembershipService
	store    StateStore
	notifier notify.Notifier
	snap     *settings.Snapshot
}

func NewMachine(members MembershipService, store StateStore, notifier notify.Notifier, snap *settings.Snapshot) *Machine {
	return &Machine{members: members, store: store, notifier: notifier, snap: snap}
}

// Transition evaluates the user's rules and moves the user to the
// correct state. Returns the event that fired, or "" when no
// transition occurred. Remote mutations and notifications are gated by
// the enforce_rules setting; with enforcement off the state still
// changes for reporting purposes.
func (m *Machine) Transition(ctx context.Context, user *models.GithubUser) (Event, error) {
	base := rules.ForGithubUser(user, m.snap)
	failing := base.Clone().Failing()

	in := Inputs{
		Excluded:           m.snap.ExcludedUser(user.Login),
		AllRulesValid:      base.Valid(),
		ExternalRulesValid: base.Clone().External().Valid(),
		OnExternalTeam:     user.OnExternalTeam(m.snap.GithubExternalTeams),
	}

	event, target, ok := Decide(user.State, in)
	if !ok {
		return "", nil
	}

	logger.Infof("Transitioning %s from %s to %s via %s event. Failing rules: %s",
		user.Login, user.State, target, event, strings.Join(failing.Names(), ", "))

	// Side effects run before the state field commits.
	switch target {
	case models.StateEnabled:
		if _, err := m.members.AddBackDisabledTeams(ctx, user); err != nil {
			return "", err
		}
	case models.StateExternal:
		if m.snap.EnforceRules {
			removed, err := m.members.RemoveFromInternalTeams(ctx, user)
			if err != nil {
				return "", err
			}
			if err := m.recordDisabledTeams(user, removed); err != nil {
				return "", err
			}
		}
	case models.StateDisabled:
		if m.snap.EnforceRules {
			removed, err := m.members.RemoveFromOrganizations(ctx, user)
			if err != nil {
				return "", err
			}
			if err := m.recordDisabledTeams(user, removed); err != nil {
				return "", err
			}
		}
	}

	if err := m.store.UpdateState(user.ID, target); err != nil {
		return "", err
	}
	user.State = target

	if target == models.StateExternal || target == models.StateDisabled {
		m.notifyRevoked(user, failing)
	}

	return event, nil
}

func (m *Machine) recordDisabledTeams(user *models.GithubUser, removed []*models.GithubTeam) error {
	if len(removed) == 0 {
		return nil
	}
	ids := make([]int64, len(removed))
	for i, team := range removed {
		ids[i] = team.ID
	}
	if err := m.store.ReplaceDisabledTeams(user.ID, ids); err != nil {
		return err
	}
	user.DisabledTeams = removed
	return nil
}

// notifyRevoked emails the linked directory user when any of the
// failing rules that caused the transition wants notification. Gated
// by enforcement so dry runs stay silent.
func (m *Machine) notifyRevoked(user *models.GithubUser, failing *rules.Iterator) {
	if !m.snap.EnforceRules || user.User == nil {
		return
	}
	wantsNotify := failing.Any(func(rule rules.Rule) bool {
		return rule.Notify()
	})
	if wantsNotify {
		m.notifier.AccessRevoked(user.User, user)
	}
}
