// Package githubclient wraps the GitHub REST API behind narrow
// interfaces and provides a memoizing admin read layer over them.
package githubclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Member is a GitHub account as seen through an organization or team
// member listing.
type Member struct {
	ID        int64
	Login     string
	AvatarURL string
	HTMLURL   string
}

// TeamInfo is a team in one of our organizations.
type TeamInfo struct {
	ID           int64
	Slug         string
	Name         string
	Organization string
}

// Membership is the caller's membership in one organization.
type Membership struct {
	Organization string
	State        string
	Role         string
}

// RateLimit is the remaining core API quota.
type RateLimit struct {
	Remaining int
	ResetsIn  time.Duration
}

// FilterMfaDisabled selects organization members without two-factor
// authentication in OrganizationMembers.
const FilterMfaDisabled = "2fa_disabled"

// API is the admin-token view of the GitHub API.
type API interface {
	OrganizationMembers(ctx context.Context, org, filter string) ([]Member, error)
	OrganizationTeams(ctx context.Context, org string) ([]TeamInfo, error)
	TeamMembers(ctx context.Context, org, slug string) ([]Member, error)
	AddTeamMembership(ctx context.Context, org, slug, login string) error
	RemoveTeamMember(ctx context.Context, org, slug, login string) error
	RemoveOrganizationMember(ctx context.Context, org, login string) error
	IsOrganizationMember(ctx context.Context, org, login string) (bool, error)
	RateLimit(ctx context.Context) (RateLimit, error)
}

// UserAPI is the user-token view of the GitHub API, used for per-user
// synchronization.
type UserAPI interface {
	User(ctx context.Context) (Member, error)
	Emails(ctx context.Context) ([]string, error)
	OrganizationMemberships(ctx context.Context) ([]Membership, error)
	ActivateOrganizationMembership(ctx context.Context, org string) error
	RateLimit(ctx context.Context) (RateLimit, error)
}

const pageSize = 100

type restAPI struct {
	client *github.Client
}

// NewAPI returns an API backed by the given OAuth token.
func NewAPI(token string) API {
	return &restAPI{client: newClient(token)}
}

// NewUserAPI returns a UserAPI backed by the given user OAuth token.
func NewUserAPI(token string) UserAPI {
	return &userRestAPI{client: newClient(token)}
}

func newClient(token string) *github.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(context.Background(), src))
}

func (a *restAPI) OrganizationMembers(ctx context.Context, org, filter string) ([]Member, error) {
	opts := &github.ListMembersOptions{
		Filter:      filter,
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var members []Member
	for {
		users, resp, err := a.client.Organizations.ListMembers(ctx, org, opts)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			members = append(members, Member{
				ID:        user.GetID(),
				Login:     user.GetLogin(),
				AvatarURL: user.GetAvatarURL(),
				HTMLURL:   user.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return members, nil
}

func (a *restAPI) OrganizationTeams(ctx context.Context, org string) ([]TeamInfo, error) {
	opts := &github.ListOptions{PerPage: pageSize}
	var teams []TeamInfo
	for {
		ghTeams, resp, err := a.client.Teams.ListTeams(ctx, org, opts)
		if err != nil {
			return nil, err
		}
		for _, team := range ghTeams {
			teams = append(teams, TeamInfo{
				ID:           team.GetID(),
				Slug:         team.GetSlug(),
				Name:         team.GetName(),
				Organization: org,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return teams, nil
}

func (a *restAPI) TeamMembers(ctx context.Context, org, slug string) ([]Member, error) {
	opts := &github.TeamListTeamMembersOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var members []Member
	for {
		users, resp, err := a.client.Teams.ListTeamMembersBySlug(ctx, org, slug, opts)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			members = append(members, Member{
				ID:        user.GetID(),
				Login:     user.GetLogin(),
				AvatarURL: user.GetAvatarURL(),
				HTMLURL:   user.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return members, nil
}

func (a *restAPI) AddTeamMembership(ctx context.Context, org, slug, login string) error {
	_, _, err := a.client.Teams.AddTeamMembershipBySlug(ctx, org, slug, login, nil)
	return err
}

func (a *restAPI) RemoveTeamMember(ctx context.Context, org, slug, login string) error {
	_, err := a.client.Teams.RemoveTeamMembershipBySlug(ctx, org, slug, login)
	return err
}

func (a *restAPI) RemoveOrganizationMember(ctx context.Context, org, login string) error {
	_, err := a.client.Organizations.RemoveOrgMembership(ctx, login, org)
	return err
}

func (a *restAPI) IsOrganizationMember(ctx context.Context, org, login string) (bool, error) {
	member, _, err := a.client.Organizations.IsMember(ctx, org, login)
	return member, err
}

func (a *restAPI) RateLimit(ctx context.Context) (RateLimit, error) {
	limits, _, err := a.client.RateLimit.Get(ctx)
	if err != nil {
		return RateLimit{}, err
	}
	core := limits.GetCore()
	return RateLimit{
		Remaining: core.Remaining,
		ResetsIn:  time.Until(core.Reset.Time),
	}, nil
}

type userRestAPI struct {
	client *github.Client
}

func (a *userRestAPI) User(ctx context.Context) (Member, error) {
	user, _, err := a.client.Users.Get(ctx, "")
	if err != nil {
		return Member{}, err
	}
	return Member{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
		HTMLURL:   user.GetHTMLURL(),
	}, nil
}

func (a *userRestAPI) Emails(ctx context.Context) ([]string, error) {
	opts := &github.ListOptions{PerPage: pageSize}
	var addresses []string
	for {
		emails, resp, err := a.client.Users.ListEmails(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, email := range emails {
			addresses = append(addresses, email.GetEmail())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return addresses, nil
}

func (a *userRestAPI) OrganizationMemberships(ctx context.Context) ([]Membership, error) {
	opts := &github.ListOrgMembershipsOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var memberships []Membership
	for {
		ghMemberships, resp, err := a.client.Organizations.ListOrgMemberships(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, membership := range ghMemberships {
			memberships = append(memberships, Membership{
				Organization: membership.GetOrganization().GetLogin(),
				State:        membership.GetState(),
				Role:         membership.GetRole(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return memberships, nil
}

func (a *userRestAPI) ActivateOrganizationMembership(ctx context.Context, org string) error {
	state := "active"
	_, _, err := a.client.Organizations.EditOrgMembership(ctx, "", org, &github.Membership{State: &state})
	return err
}

func (a *userRestAPI) RateLimit(ctx context.Context) (RateLimit, error) {
	limits, _, err := a.client.RateLimit.Get(ctx)
	if err != nil {
		return RateLimit{}, err
	}
	core := limits.GetCore()
	return RateLimit{
		Remaining: core.Remaining,
		ResetsIn:  time.Until(core.Reset.Time),
	}, nil
}

// SyncErrorCode classifies an API error into the short code recorded on
// the entity's sync_error field.
func SyncErrorCode(err error) string {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return "rate_limited"
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return "unauthorized"
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		}
		if respErr.Response.StatusCode >= 500 {
			return "server_error"
		}
	}
	return "api_error"
}
