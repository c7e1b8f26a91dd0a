package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcan/ghwarden/internal/directory"
	"github.com/ogulcan/ghwarden/internal/models"
)

// fakeDirectory serves canned entries per username.
type fakeDirectory struct {
	entries map[string]directory.Entry
	err     error
}

func (f *fakeDirectory) SearchPrincipal(_ context.Context, username string) (directory.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[username], nil
}

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	byUsername map[string]*models.User
	updates    int
	updateErr  error
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	store := &fakeUsers{byUsername: make(map[string]*models.User)}
	for _, user := range users {
		store.byUsername[user.Username] = user
	}
	return store
}

func (f *fakeUsers) GetByUsername(username string) (*models.User, error) {
	return f.byUsername[username], nil
}

func (f *fakeUsers) Create(user *models.User) error {
	f.byUsername[user.Username] = user
	return nil
}

func (f *fakeUsers) Update(user *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.byUsername[user.Username] = user
	f.updates++
	return nil
}

func (f *fakeUsers) GetAll() ([]*models.User, error) {
	var all []*models.User
	for _, user := range f.byUsername {
		all = append(all, user)
	}
	return all, nil
}

func TestSyncFromLDAPUpdatesAttributes(t *testing.T) {
	user := &models.User{ID: "u1", Username: "jane"}
	store := newFakeUsers(user)
	dir := &fakeDirectory{entries: map[string]directory.Entry{
		"jane": {
			"name":               {"Jane Doe"},
			"mail":               {"jane@example.com"},
			"department":         {"Engineering"},
			"userAccountControl": {"512"},
		},
	}}
	svc := NewUserService(store, dir)

	outcome, err := svc.SyncFromLDAP(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, OutcomeOK, outcome)
	require.NotNil(t, user.Name)
	assert.Equal(t, "Jane Doe", *user.Name)
	assert.Equal(t, models.AccountControlNormalAccount, user.LdapAccountControl)
	assert.NotNil(t, user.LastLdapSync)
	assert.Nil(t, user.LdapSyncError)
}

func TestSyncFromLDAPMissingEntryDegrades(t *testing.T) {
	user := &models.User{ID: "u1", Username: "ghost"}
	store := newFakeUsers(user)
	svc := NewUserService(store, &fakeDirectory{entries: map[string]directory.Entry{}})

	outcome, err := svc.SyncFromLDAP(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDegraded, outcome)
	require.NotNil(t, user.LdapSyncError)
	assert.Contains(t, *user.LdapSyncError, "no directory entry")
	assert.Nil(t, user.LastLdapSync, "a failed lookup must not count as a sync")
}

func TestSyncFromLDAPProtocolErrorDegrades(t *testing.T) {
	user := &models.User{ID: "u1", Username: "jane"}
	store := newFakeUsers(user)
	dir := &fakeDirectory{err: &directory.ProtocolError{Op: "bind", Err: errors.New("connection refused")}}
	svc := NewUserService(store, dir)

	outcome, err := svc.SyncFromLDAP(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, OutcomeDegraded, outcome)
	require.NotNil(t, user.LdapSyncError)
	assert.Contains(t, *user.LdapSyncError, "ldap bind")
}

func TestSyncFromLDAPUnexpectedErrorFails(t *testing.T) {
	user := &models.User{ID: "u1", Username: "jane"}
	svc := NewUserService(newFakeUsers(user), &fakeDirectory{err: errors.New("boom")})

	outcome, err := svc.SyncFromLDAP(context.Background(), user)

	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestSyncFromLDAPSaveFailureFails(t *testing.T) {
	user := &models.User{ID: "u1", Username: "ghost"}
	store := newFakeUsers(user)
	store.updateErr = errors.New("disk full")
	svc := NewUserService(store, &fakeDirectory{entries: map[string]directory.Entry{}})

	outcome, err := svc.SyncFromLDAP(context.Background(), user)

	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}
