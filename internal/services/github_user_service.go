package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ogulcan/ghwarden/internal/githubclient"
	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/rules"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// GithubUserStore is the persistence surface the service needs for
// GitHub users.
type GithubUserStore interface {
	GetByID(id int64) (*models.GithubUser, error)
	GetByLogin(login string) (*models.GithubUser, error)
	Create(user *models.GithubUser) error
	Update(user *models.GithubUser) error
	UpdateState(id int64, state models.AccessState) error
	AddTeam(userID, teamID int64) error
	RemoveTeam(userID, teamID int64) error
	ClearTeams(userID int64) error
	ReplaceDisabledTeams(userID int64, teamIDs []int64) error
	ClearDisabledTeams(userID int64) error
}

// GithubEmailStore replaces a user's cached email addresses.
type GithubEmailStore interface {
	ReplaceForUser(githubUserID int64, addresses []string) error
}

// GithubOrgMembershipStore replaces a user's cached org memberships.
type GithubOrgMembershipStore interface {
	ReplaceForUser(githubUserID int64, memberships []*models.GithubOrganizationMembership) error
}

// GithubTeamStore resolves locally cached teams.
type GithubTeamStore interface {
	GetByFullSlug(fullSlug string) (*models.GithubTeam, error)
	GetBySlug(slug string) ([]*models.GithubTeam, error)
}

// GithubUserService owns per-user GitHub synchronization and the
// membership mutations used by the access lifecycle.
type GithubUserService struct {
	users       GithubUserStore
	emails      GithubEmailStore
	memberships GithubOrgMembershipStore
	teams       GithubTeamStore
	admin       *githubclient.Admin
	snap        *settings.Snapshot

	// newUserAPI builds the user-token API; overridable in tests.
	newUserAPI func(token string) githubclient.UserAPI
}

func NewGithubUserService(
	users GithubUserStore,
	emails GithubEmailStore,
	memberships GithubOrgMembershipStore,
	teams GithubTeamStore,
	admin *githubclient.Admin,
	snap *settings.Snapshot,
) *GithubUserService {
	return &GithubUserService{
		users:       users,
		emails:      emails,
		memberships: memberships,
		teams:       teams,
		admin:       admin,
		snap:        snap,
		newUserAPI:  githubclient.NewUserAPI,
	}
}

// Sync refreshes the user's login, emails, and organization
// memberships via the user's own token. Remote API errors are recorded
// in the sync-error field and yield OutcomeDegraded; only a failed
// save yields OutcomeFailed.
func (s *GithubUserService) Sync(ctx context.Context, user *models.GithubUser) (Outcome, error) {
	if user.Token == "" {
		code := rules.SyncErrorNoToken
		user.SetSyncError(&code)
		if err := s.users.Update(user); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeDegraded, nil
	}

	api := s.newUserAPI(user.Token)

	ghUser, err := api.User(ctx)
	var emails []string
	var memberships []*models.GithubOrganizationMembership
	if err == nil {
		emails, err = api.Emails(ctx)
	}
	if err == nil {
		var listed []githubclient.Membership
		listed, err = api.OrganizationMemberships(ctx)
		for _, membership := range listed {
			if !contains(s.snap.GithubOrgs, membership.Organization) {
				continue
			}
			state, role := membership.State, membership.Role
			memberships = append(memberships, &models.GithubOrganizationMembership{
				GithubUserID: user.ID,
				Organization: membership.Organization,
				State:        &state,
				Role:         &role,
			})
		}
	}
	if err != nil {
		code := githubclient.SyncErrorCode(err)
		logger.WithError(err).WithField("login", user.Login).Errorf("Error syncing %s with GitHub", user.Login)
		user.SetSyncError(&code)
		if saveErr := s.users.Update(user); saveErr != nil {
			return OutcomeFailed, saveErr
		}
		return OutcomeDegraded, nil
	}

	if err := s.emails.ReplaceForUser(user.ID, emails); err != nil {
		return OutcomeFailed, err
	}
	if err := s.memberships.ReplaceForUser(user.ID, memberships); err != nil {
		return OutcomeFailed, err
	}

	user.Login = ghUser.Login
	now := time.Now()
	user.LastSyncAt = &now
	user.SetSyncError(nil)
	if err := s.users.Update(user); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeOK, nil
}

// NormalizeTeams resolves slugs, full slugs, and ids into cached
// GithubTeams, dropping duplicates and unknown references.
func (s *GithubUserService) NormalizeTeams(refs []string) ([]*models.GithubTeam, error) {
	seen := make(map[int64]bool)
	var teams []*models.GithubTeam

	add := func(team *models.GithubTeam) {
		if team != nil && !seen[team.ID] {
			seen[team.ID] = true
			teams = append(teams, team)
		}
	}

	for _, ref := range refs {
		if _, _, ok := models.SplitFullSlug(ref); ok {
			team, err := s.teams.GetByFullSlug(ref)
			if err != nil {
				return nil, err
			}
			add(team)
			continue
		}
		// Unqualified slugs may exist in multiple organizations
		matched, err := s.teams.GetBySlug(ref)
		if err != nil {
			return nil, err
		}
		for _, team := range matched {
			add(team)
		}
	}
	return teams, nil
}

// AddToTeams adds the user to the given teams, skipping ones the user
// is already a member of. Returns the teams actually added.
func (s *GithubUserService) AddToTeams(ctx context.Context, user *models.GithubUser, teams []*models.GithubTeam) ([]*models.GithubTeam, error) {
	current := make(map[int64]bool, len(user.Teams))
	for _, team := range user.Teams {
		current[team.ID] = true
	}

	var added []*models.GithubTeam
	for _, team := range teams {
		if current[team.ID] {
			continue
		}
		logger.Infof("Adding %s to team %s", user.Login, team.FullSlug())
		if err := s.admin.API().AddTeamMembership(ctx, team.Organization, team.Slug, user.Login); err != nil {
			return added, fmt.Errorf("adding %s to %s: %w", user.Login, team.FullSlug(), err)
		}
		if err := s.users.AddTeam(user.ID, team.ID); err != nil {
			return added, err
		}
		user.Teams = append(user.Teams, team)
		added = append(added, team)
	}
	return added, nil
}

// AddBackDisabledTeams re-adds the user to the teams recorded when the
// user was disabled or restricted, then clears that set.
func (s *GithubUserService) AddBackDisabledTeams(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	if len(user.DisabledTeams) == 0 {
		return nil, nil
	}
	added, err := s.AddToTeams(ctx, user, user.DisabledTeams)
	if err != nil {
		return added, err
	}
	if err := s.users.ClearDisabledTeams(user.ID); err != nil {
		return added, err
	}
	user.DisabledTeams = nil
	return added, nil
}

// RemoveFromOrganizations removes the user from every managed
// organization, including normally excluded teams. Returns the teams
// the user was removed from.
func (s *GithubUserService) RemoveFromOrganizations(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	orgs := s.snap.GithubOrgs
	if len(orgs) == 0 {
		return nil, nil
	}
	removed := user.Teams

	logger.Infof("Removing %s from organizations %v", user.Login, orgs)
	for _, org := range orgs {
		if err := s.admin.API().RemoveOrganizationMember(ctx, org, user.Login); err != nil {
			return nil, fmt.Errorf("removing %s from %s: %w", user.Login, org, err)
		}
	}
	if err := s.users.ClearTeams(user.ID); err != nil {
		return nil, err
	}
	user.Teams = nil

	return removed, nil
}

// RemoveFromInternalTeams removes the user from every non-external
// team. Returns the teams the user was removed from.
func (s *GithubUserService) RemoveFromInternalTeams(ctx context.Context, user *models.GithubUser) ([]*models.GithubTeam, error) {
	var removeTeams, keepTeams []*models.GithubTeam
	for _, team := range user.Teams {
		if team.External(s.snap.GithubExternalTeams) {
			keepTeams = append(keepTeams, team)
		} else {
			removeTeams = append(removeTeams, team)
		}
	}
	if len(removeTeams) == 0 {
		return nil, nil
	}

	for _, team := range removeTeams {
		logger.Infof("Removing %s from team %s", user.Login, team.FullSlug())
		if err := s.admin.API().RemoveTeamMember(ctx, team.Organization, team.Slug, user.Login); err != nil {
			return nil, fmt.Errorf("removing %s from %s: %w", user.Login, team.FullSlug(), err)
		}
		if err := s.users.RemoveTeam(user.ID, team.ID); err != nil {
			return nil, err
		}
	}
	user.Teams = keepTeams

	return removeTeams, nil
}

// AddToOrganizations walks a new user through onboarding: invite via
// the check-MFA team, accept the invitation with the user's token,
// probe MFA once a member, add to the default teams when every rule
// passes, and drop the temporary check-MFA team membership. Returns
// true when the user passed all rules.
func (s *GithubUserService) AddToOrganizations(ctx context.Context, user *models.GithubUser) (bool, error) {
	orgs := s.snap.GithubOrgs
	if len(orgs) == 0 {
		return true, nil
	}
	checkMfaTeam := s.snap.GithubCheckMfaTeam
	if checkMfaTeam == "" {
		return false, fmt.Errorf("github_check_mfa_team setting is required")
	}
	if len(s.snap.GithubDefaultTeams) == 0 {
		return false, fmt.Errorf("github_default_teams setting is required")
	}

	api := s.newUserAPI(user.Token)
	checkedMfa := false

	for _, org := range orgs {
		member, err := s.admin.API().IsOrganizationMember(ctx, org, user.Login)
		if err != nil {
			return false, err
		}
		if member {
			continue
		}

		logger.Infof("Adding %s to organization %s", user.Login, org)
		team, err := s.teams.GetByFullSlug(org + "/" + checkMfaTeam)
		if err != nil {
			return false, err
		}
		if team == nil {
			return false, fmt.Errorf("cannot find the team %q for %s", checkMfaTeam, org)
		}

		// Generate the invitation
		if err := s.admin.API().AddTeamMembership(ctx, team.Organization, team.Slug, user.Login); err != nil {
			return false, err
		}
		// Accept the invitation
		if err := api.ActivateOrganizationMembership(ctx, org); err != nil {
			return false, err
		}

		// MFA status can only be verified once the user is a member of
		// our organization.
		if !checkedMfa {
			mfa, err := s.admin.UserMfa(ctx, user.Login, org)
			if err != nil {
				return false, err
			}
			user.Mfa = mfa
			if err := s.users.Update(user); err != nil {
				return false, err
			}
			checkedMfa = true
			if mfa == nil || !*mfa {
				break
			}
		}
	}

	if !checkedMfa && (user.Mfa == nil || !*user.Mfa) {
		mfa, err := s.admin.UserMfa(ctx, user.Login, "")
		if err != nil {
			return false, err
		}
		user.Mfa = mfa
		if err := s.users.Update(user); err != nil {
			return false, err
		}
	}

	valid := rules.ForGithubUser(user, s.snap).Valid()

	if valid {
		defaultTeams, err := s.NormalizeTeams(s.snap.GithubDefaultTeams)
		if err != nil {
			return false, err
		}
		if _, err := s.AddToTeams(ctx, user, defaultTeams); err != nil {
			return false, err
		}
	}

	// Remove from the temporary MFA check team
	for _, org := range orgs {
		team, err := s.teams.GetByFullSlug(org + "/" + checkMfaTeam)
		if err != nil {
			return false, err
		}
		if team == nil {
			continue
		}
		if err := s.admin.API().RemoveTeamMember(ctx, team.Organization, team.Slug, user.Login); err != nil {
			return false, err
		}
	}

	return valid, nil
}

// ValidToken probes the user's token with a rate-limit call, a fast
// and free way to test it.
func (s *GithubUserService) ValidToken(ctx context.Context, user *models.GithubUser) bool {
	if user.Token == "" {
		return false
	}
	_, err := s.newUserAPI(user.Token).RateLimit(ctx)
	return err == nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
