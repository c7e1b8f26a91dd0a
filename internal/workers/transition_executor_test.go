package workers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcan/ghwarden/internal/lifecycle"
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

// fakeMachine maps logins to canned transition outcomes.
type fakeMachine struct {
	mu     sync.Mutex
	events map[string]lifecycle.Event
	errs   map[string]error
	seen   []string
}

func (f *fakeMachine) Transition(_ context.Context, user *models.GithubUser) (lifecycle.Event, error) {
	f.mu.Lock()
	f.seen = append(f.seen, user.Login)
	f.mu.Unlock()
	if err := f.errs[user.Login]; err != nil {
		return "", err
	}
	return f.events[user.Login], nil
}

// fakeTransitionStore is an in-memory TransitionUserStore.
type fakeTransitionStore struct {
	mu            sync.Mutex
	users         []*models.GithubUser
	disabledTeams map[int64][]int64
}

func (f *fakeTransitionStore) GetAll() ([]*models.GithubUser, error) {
	return f.users, nil
}

func (f *fakeTransitionStore) GetByState(state models.AccessState) ([]*models.GithubUser, error) {
	var matched []*models.GithubUser
	for _, user := range f.users {
		if user.State == state {
			matched = append(matched, user)
		}
	}
	return matched, nil
}

func (f *fakeTransitionStore) ReplaceDisabledTeams(id int64, teamIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabledTeams == nil {
		f.disabledTeams = make(map[int64][]int64)
	}
	f.disabledTeams[id] = teamIDs
	return nil
}

// fakeEnforcer returns canned removed-team lists per login.
type fakeEnforcer struct {
	mu           sync.Mutex
	removed      map[string][]*models.GithubTeam
	orgRemovals  []string
	teamRemovals []string
}

func (f *fakeEnforcer) RemoveFromOrganizations(_ context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgRemovals = append(f.orgRemovals, user.Login)
	return f.removed[user.Login], nil
}

func (f *fakeEnforcer) RemoveFromInternalTeams(_ context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamRemovals = append(f.teamRemovals, user.Login)
	return f.removed[user.Login], nil
}

func transitionUsers() []*models.GithubUser {
	return []*models.GithubUser{
		{ID: 1, Login: "enabled-stays", State: models.StateEnabled},
		{ID: 2, Login: "gets-enabled", State: models.StateUnknown},
		{ID: 3, Login: "gets-disabled", State: models.StateEnabled},
		{ID: 4, Login: "gets-restricted", State: models.StateEnabled},
	}
}

func TestTransitionUsersCountsOutcomes(t *testing.T) {
	machine := &fakeMachine{events: map[string]lifecycle.Event{
		"gets-enabled":    lifecycle.EventEnable,
		"gets-disabled":   lifecycle.EventDisable,
		"gets-restricted": lifecycle.EventRestrict,
	}}
	store := &fakeTransitionStore{users: transitionUsers()}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 5}, machine, store, &fakeEnforcer{},
		&settings.Snapshot{EnforceRules: true})

	ok := exec.TransitionUsers(context.Background())
	require.True(t, ok)

	assert.Len(t, machine.seen, 4)
	assert.Equal(t, 3, exec.Stats.UsersTransitioned)
	assert.Equal(t, 1, exec.Stats.UsersRemoved)
	assert.Equal(t, 1, exec.Stats.UsersRestricted)
	assert.Equal(t, []string{"gets-disabled"}, exec.Removed)
	assert.Equal(t, []string{"gets-restricted"}, exec.Restricted)
}

func TestTransitionUsersCollectsErrorsWithoutStopping(t *testing.T) {
	machine := &fakeMachine{
		events: map[string]lifecycle.Event{"gets-enabled": lifecycle.EventEnable},
		errs:   map[string]error{"gets-disabled": errors.New("api down")},
	}
	store := &fakeTransitionStore{users: transitionUsers()}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 1}, machine, store, &fakeEnforcer{},
		&settings.Snapshot{EnforceRules: true})

	ok := exec.TransitionUsers(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 1, exec.Stats.TransitionErrors)
	assert.Len(t, machine.seen, 4, "one failure must not stop the remaining users")
	assert.Equal(t, 1, exec.Stats.UsersTransitioned)
}

func TestEnforceStateSkipsWhenEnforcementOff(t *testing.T) {
	enforcer := &fakeEnforcer{}
	store := &fakeTransitionStore{users: []*models.GithubUser{
		{ID: 1, Login: "disabled", State: models.StateDisabled},
	}}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 5}, &fakeMachine{}, store, enforcer,
		&settings.Snapshot{EnforceRules: false})

	ok := exec.EnforceState(context.Background())

	assert.False(t, ok)
	assert.Empty(t, enforcer.orgRemovals)
	assert.Empty(t, enforcer.teamRemovals)
}

func TestEnforceStateReappliesTerminalStates(t *testing.T) {
	enforcer := &fakeEnforcer{removed: map[string][]*models.GithubTeam{
		"sneaky": {{ID: 7, Organization: "org1", Slug: "devs"}},
	}}
	store := &fakeTransitionStore{users: []*models.GithubUser{
		{ID: 1, Login: "sneaky", State: models.StateDisabled},
		{ID: 2, Login: "already-out", State: models.StateDisabled},
		{ID: 3, Login: "restricted", State: models.StateExternal},
		{ID: 4, Login: "fine", State: models.StateEnabled},
	}}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 5}, &fakeMachine{}, store, enforcer,
		&settings.Snapshot{EnforceRules: true})

	ok := exec.EnforceState(context.Background())
	require.True(t, ok)

	assert.ElementsMatch(t, []string{"sneaky", "already-out"}, enforcer.orgRemovals)
	assert.Equal(t, []string{"restricted"}, enforcer.teamRemovals)
	// Only the user who still had access counts as enforced, and the
	// teams taken away are recorded for later restoration.
	assert.Equal(t, 1, exec.Stats.UsersEnforced)
	assert.Equal(t, []int64{7}, store.disabledTeams[1])
	assert.NotContains(t, store.disabledTeams, int64(2))
}

func TestEnforceStateIsIdempotent(t *testing.T) {
	enforcer := &fakeEnforcer{}
	store := &fakeTransitionStore{users: []*models.GithubUser{
		{ID: 1, Login: "gone", State: models.StateDisabled},
	}}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 5}, &fakeMachine{}, store, enforcer,
		&settings.Snapshot{EnforceRules: true})

	require.True(t, exec.EnforceState(context.Background()))
	require.True(t, exec.EnforceState(context.Background()))

	// Nothing was removed either time, so nothing is recorded.
	assert.Equal(t, 0, exec.Stats.UsersEnforced)
	assert.Empty(t, store.disabledTeams)
}

func TestRunResetsBetweenInvocations(t *testing.T) {
	machine := &fakeMachine{events: map[string]lifecycle.Event{
		"gets-disabled": lifecycle.EventDisable,
	}}
	store := &fakeTransitionStore{users: []*models.GithubUser{
		{ID: 3, Login: "gets-disabled", State: models.StateEnabled},
	}}
	exec := NewTransitionExecutor(
		&Executor{ThreadCount: 5}, machine, store, &fakeEnforcer{},
		&settings.Snapshot{EnforceRules: true})

	require.True(t, exec.Run(context.Background()))
	first := exec.Stats.UsersTransitioned

	// The fake machine reports the same event again, so the counters
	// repeat rather than accumulate.
	machine.seen = nil
	require.True(t, exec.Run(context.Background()))

	assert.Equal(t, first, exec.Stats.UsersTransitioned)
	assert.Equal(t, []string{"gets-disabled"}, exec.Removed)
}
