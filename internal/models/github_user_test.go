package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinked(t *testing.T) {
	id := "u1"
	empty := ""

	assert.True(t, (&GithubUser{UserID: &id}).Linked())
	assert.False(t, (&GithubUser{}).Linked())
	assert.False(t, (&GithubUser{UserID: &empty}).Linked())
}

func TestSetSyncError(t *testing.T) {
	user := &GithubUser{}
	code := "unauthorized"

	user.SetSyncError(&code)
	assert.Equal(t, &code, user.SyncError)
	assert.NotNil(t, user.SyncErrorAt)

	user.SetSyncError(nil)
	assert.Nil(t, user.SyncError)
	assert.Nil(t, user.SyncErrorAt)
}

func TestOrganizations(t *testing.T) {
	user := &GithubUser{Teams: []*GithubTeam{
		{ID: 1, Organization: "org1", Slug: "devs"},
		{ID: 2, Organization: "org1", Slug: "ops"},
		{ID: 3, Organization: "org2", Slug: "devs"},
	}}

	assert.Equal(t, []string{"org1", "org2"}, user.Organizations())
	assert.Empty(t, (&GithubUser{}).Organizations())
}

func TestOrganizationAdmin(t *testing.T) {
	admin := "admin"
	member := "member"

	user := &GithubUser{OrgMemberships: []*GithubOrganizationMembership{
		{Organization: "org1", Role: &admin},
		{Organization: "org2", Role: &member},
	}}

	assert.True(t, user.OrganizationAdmin("org1"))
	assert.False(t, user.OrganizationAdmin("org2"))
	assert.False(t, user.OrganizationAdmin("org3"))
}

func TestOnExternalTeam(t *testing.T) {
	user := &GithubUser{Teams: []*GithubTeam{
		{ID: 1, Organization: "org1", Slug: "contractors"},
	}}

	assert.True(t, user.OnExternalTeam([]string{"contractors"}))
	assert.True(t, user.OnExternalTeam([]string{"org1/contractors"}))
	assert.False(t, user.OnExternalTeam([]string{"org2/contractors"}))
	assert.False(t, user.OnExternalTeam(nil))
}

func TestTeamExternal(t *testing.T) {
	team := &GithubTeam{ID: 1, Organization: "org1", Slug: "devs"}

	assert.Equal(t, "org1/devs", team.FullSlug())
	assert.True(t, team.External([]string{"devs"}))
	assert.True(t, team.External([]string{"org1/devs"}))
	assert.False(t, team.External([]string{"org2/devs"}))
}

func TestSplitFullSlug(t *testing.T) {
	org, slug, ok := SplitFullSlug("org1/devs")
	assert.True(t, ok)
	assert.Equal(t, "org1", org)
	assert.Equal(t, "devs", slug)

	_, _, ok = SplitFullSlug("devs")
	assert.False(t, ok)
}
