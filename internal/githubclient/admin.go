package githubclient

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// OrgUser is a member of one or more of our organizations with the
// MFA flag and the union of organizations the member belongs to.
type OrgUser struct {
	Member
	MfaEnabled bool
	Orgs       []string
}

// Admin is a cached read layer over the admin-token API. Listings are
// fetched once per instance and memoized; construct a new Admin for a
// fresh view of the remote state. Mutating calls go through API() and
// are never cached.
type Admin struct {
	api  API
	orgs []string

	mu          sync.Mutex
	orgUsers    map[string]*OrgUser
	teams       map[int64]TeamInfo
	teamMembers map[int64]map[string]Member
}

// NewAdmin creates an Admin for the given configured organizations.
func NewAdmin(api API, orgs []string) *Admin {
	return &Admin{api: api, orgs: orgs}
}

// API exposes the underlying client for pass-through mutating calls.
func (a *Admin) API() API {
	return a.api
}

// Orgs returns the configured organizations.
func (a *Admin) Orgs() []string {
	return a.orgs
}

// OrgUsers returns every member of every configured organization,
// keyed by login. Users appearing in multiple organizations are merged
// with the union of organizations. MfaEnabled is true unless the user
// appears in an organization's 2fa_disabled listing.
func (a *Admin) OrgUsers(ctx context.Context) (map[string]*OrgUser, error) {
	a.mu.Lock()
	if a.orgUsers != nil {
		defer a.mu.Unlock()
		return a.orgUsers, nil
	}
	a.mu.Unlock()

	users := make(map[string]*OrgUser)
	for _, org := range a.orgs {
		members, err := a.api.OrganizationMembers(ctx, org, "")
		if err != nil {
			return nil, fmt.Errorf("listing members of %s: %w", org, err)
		}
		for _, member := range members {
			if existing, ok := users[member.Login]; ok {
				existing.Orgs = append(existing.Orgs, org)
				continue
			}
			users[member.Login] = &OrgUser{
				Member:     member,
				MfaEnabled: true,
				Orgs:       []string{org},
			}
		}
	}
	for _, org := range a.orgs {
		members, err := a.api.OrganizationMembers(ctx, org, FilterMfaDisabled)
		if err != nil {
			return nil, fmt.Errorf("listing 2fa-disabled members of %s: %w", org, err)
		}
		for _, member := range members {
			if user, ok := users[member.Login]; ok {
				user.MfaEnabled = false
			}
		}
	}

	a.mu.Lock()
	a.orgUsers = users
	a.mu.Unlock()
	return users, nil
}

// Teams returns all teams of every configured organization, keyed by
// team id.
func (a *Admin) Teams(ctx context.Context) (map[int64]TeamInfo, error) {
	a.mu.Lock()
	if a.teams != nil {
		defer a.mu.Unlock()
		return a.teams, nil
	}
	a.mu.Unlock()

	teams := make(map[int64]TeamInfo)
	for _, org := range a.orgs {
		orgTeams, err := a.api.OrganizationTeams(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("listing teams of %s: %w", org, err)
		}
		for _, team := range orgTeams {
			teams[team.ID] = team
		}
	}

	a.mu.Lock()
	a.teams = teams
	a.mu.Unlock()
	return teams, nil
}

// Team resolves a team id to its info via the memoized team map.
func (a *Admin) Team(ctx context.Context, teamID int64) (TeamInfo, error) {
	teams, err := a.Teams(ctx)
	if err != nil {
		return TeamInfo{}, err
	}
	team, ok := teams[teamID]
	if !ok {
		return TeamInfo{}, fmt.Errorf("team %d not found in configured organizations", teamID)
	}
	return team, nil
}

// ResolveTeamID converts a team reference into the canonical team id.
// The reference may be a numeric id, a bare slug, or an "org/slug"
// pair; slugs are resolved through the memoized team map.
func (a *Admin) ResolveTeamID(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	teams, err := a.Teams(ctx)
	if err != nil {
		return 0, err
	}
	for _, team := range teams {
		if ref == team.Slug || ref == team.Organization+"/"+team.Slug {
			return team.ID, nil
		}
	}
	return 0, fmt.Errorf("no team matches %q", ref)
}

// TeamMembers returns the members of the given team keyed by login.
func (a *Admin) TeamMembers(ctx context.Context, teamID int64) (map[string]Member, error) {
	a.mu.Lock()
	if a.teamMembers == nil {
		a.teamMembers = make(map[int64]map[string]Member)
	}
	if cached, ok := a.teamMembers[teamID]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	team, err := a.Team(ctx, teamID)
	if err != nil {
		return nil, err
	}
	listed, err := a.api.TeamMembers(ctx, team.Organization, team.Slug)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s/%s: %w", team.Organization, team.Slug, err)
	}
	members := make(map[string]Member, len(listed))
	for _, member := range listed {
		members[member.Login] = member
	}

	a.mu.Lock()
	a.teamMembers[teamID] = members
	a.mu.Unlock()
	return members, nil
}

// UserMfa returns the MFA status for a login. The memoized OrgUsers
// cache is preferred when populated; otherwise the owning organization
// is determined (by membership check when not supplied) and its
// 2fa_disabled listing is queried. Returns nil when no owning
// organization can be found.
//
// The user must already be a member of an organization; this does not
// verify that.
func (a *Admin) UserMfa(ctx context.Context, login, org string) (*bool, error) {
	a.mu.Lock()
	if a.orgUsers != nil {
		if user, ok := a.orgUsers[login]; ok {
			a.mu.Unlock()
			mfa := user.MfaEnabled
			return &mfa, nil
		}
	}
	a.mu.Unlock()

	if org == "" {
		for _, candidate := range a.orgs {
			member, err := a.api.IsOrganizationMember(ctx, candidate, login)
			if err != nil {
				return nil, err
			}
			if member {
				org = candidate
				break
			}
		}
	}
	if org == "" {
		return nil, nil
	}

	disabled, err := a.api.OrganizationMembers(ctx, org, FilterMfaDisabled)
	if err != nil {
		return nil, err
	}
	mfa := true
	for _, member := range disabled {
		if member.Login == login {
			mfa = false
			break
		}
	}
	return &mfa, nil
}

// RateLimit is a pass-through to the underlying API; never cached.
func (a *Admin) RateLimit(ctx context.Context) (RateLimit, error) {
	return a.api.RateLimit(ctx)
}
