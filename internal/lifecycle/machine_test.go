package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
)

type fakeMembers struct {
	addedBack       []string
	removedOrgs     []string
	removedInternal []string
	removedTeams    []*models.GithubTeam
}

func (f *fakeMembers) AddBackDisabledTeams(_ context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	f.addedBack = append(f.addedBack, user.Login)
	return user.DisabledTeams, nil
}

func (f *fakeMembers) RemoveFromOrganizations(_ context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	f.removedOrgs = append(f.removedOrgs, user.Login)
	return f.removedTeams, nil
}

func (f *fakeMembers) RemoveFromInternalTeams(_ context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	f.removedInternal = append(f.removedInternal, user.Login)
	return f.removedTeams, nil
}

type fakeStateStore struct {
	states        map[int64]models.AccessState
	disabledTeams map[int64][]int64
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{
		states:        make(map[int64]models.AccessState),
		disabledTeams: make(map[int64][]int64),
	}
}

func (f *fakeStateStore) UpdateState(id int64, state models.AccessState) error {
	f.states[id] = state
	return nil
}

func (f *fakeStateStore) ReplaceDisabledTeams(id int64, teamIDs []int64) error {
	f.disabledTeams[id] = teamIDs
	return nil
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) AccessRevoked(_ *models.User, githubUser *models.GithubUser) {
	f.notified = append(f.notified, githubUser.Login)
}

func compliantUser(id int64, login string) *models.GithubUser {
	mfa := true
	userID := "u-" + login
	return &models.GithubUser{
		ID:     id,
		UserID: &userID,
		Login:  login,
		Token:  "tok",
		Mfa:    &mfa,
		State:  models.StateUnknown,
		User: &models.User{
			ID:                 userID,
			Username:           login,
			LdapAccountControl: models.AccountControlNormalAccount,
		},
	}
}

func machineFixture(snap *settings.Snapshot) (*Machine, *fakeMembers, *fakeStateStore, *fakeNotifier) {
	members := &fakeMembers{}
	store := newFakeStateStore()
	notifier := &fakeNotifier{}
	return NewMachine(members, store, notifier, snap), members, store, notifier
}

func TestMachineEnablesCompliantUser(t *testing.T) {
	machine, members, store, notifier := machineFixture(&settings.Snapshot{EnforceRules: true})
	user := compliantUser(1, "jane")

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, EventEnable, event)
	assert.Equal(t, models.StateEnabled, user.State)
	assert.Equal(t, models.StateEnabled, store.states[1])
	assert.Equal(t, []string{"jane"}, members.addedBack)
	assert.Empty(t, notifier.notified)
}

func TestMachineDisablesAndNotifies(t *testing.T) {
	machine, members, store, notifier := machineFixture(&settings.Snapshot{EnforceRules: true})
	members.removedTeams = []*models.GithubTeam{{ID: 10, Organization: "org1", Slug: "devs"}}

	user := compliantUser(1, "jane")
	mfa := false
	user.Mfa = &mfa

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, EventDisable, event)
	assert.Equal(t, models.StateDisabled, store.states[1])
	assert.Equal(t, []string{"jane"}, members.removedOrgs)
	assert.Equal(t, []int64{10}, store.disabledTeams[1])
	assert.Equal(t, []string{"jane"}, notifier.notified)
}

func TestMachineDryRunChangesStateWithoutSideEffects(t *testing.T) {
	machine, members, store, notifier := machineFixture(&settings.Snapshot{EnforceRules: false})

	user := compliantUser(1, "jane")
	mfa := false
	user.Mfa = &mfa

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, EventDisable, event)
	assert.Equal(t, models.StateDisabled, store.states[1])
	assert.Empty(t, members.removedOrgs)
	assert.Empty(t, notifier.notified)
}

func TestMachineRestrictsToExternalTeams(t *testing.T) {
	snap := &settings.Snapshot{
		EnforceRules:        true,
		GithubExternalTeams: []string{"contractors"},
	}
	machine, members, store, notifier := machineFixture(snap)
	members.removedTeams = []*models.GithubTeam{{ID: 20, Organization: "org1", Slug: "devs"}}

	// No linked directory account fails active_ldap, which is not
	// required for external access; MFA and token keep the external
	// rules passing.
	mfa := true
	user := &models.GithubUser{
		ID:    2,
		Login: "contractor",
		Token: "tok",
		Mfa:   &mfa,
		State: models.StateEnabled,
		Teams: []*models.GithubTeam{{ID: 21, Organization: "org1", Slug: "contractors"}},
	}

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, EventRestrict, event)
	assert.Equal(t, models.StateExternal, store.states[2])
	assert.Equal(t, []string{"contractor"}, members.removedInternal)
	assert.Equal(t, []int64{20}, store.disabledTeams[2])
	// Unlinked users have nobody to notify.
	assert.Empty(t, notifier.notified)
}

func TestMachineExcludedUserNeverDisabled(t *testing.T) {
	snap := &settings.Snapshot{
		EnforceRules:       true,
		GithubExcludeUsers: []string{"robot"},
	}
	machine, members, store, notifier := machineFixture(snap)

	user := compliantUser(3, "robot")
	mfa := false
	user.Mfa = &mfa

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, EventExclude, event)
	assert.Equal(t, models.StateExcluded, store.states[3])
	assert.Empty(t, members.removedOrgs)
	assert.Empty(t, members.removedInternal)
	assert.Empty(t, notifier.notified)

	// Settled: a second pass does nothing.
	event, err = machine.Transition(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, Event(""), event)
}

func TestMachineNoopLeavesStateUntouched(t *testing.T) {
	machine, members, store, _ := machineFixture(&settings.Snapshot{EnforceRules: true})

	user := compliantUser(4, "jane")
	user.State = models.StateEnabled

	event, err := machine.Transition(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, Event(""), event)
	assert.NotContains(t, store.states, int64(4))
	assert.Empty(t, members.addedBack)
}
