package services

import (
	"context"

	"github.com/ogulcan/ghwarden/internal/githubclient"
	"github.com/ogulcan/ghwarden/internal/models"
)

// TeamSyncStore is the persistence surface the team service needs.
type TeamSyncStore interface {
	Upsert(team *models.GithubTeam) (created bool, err error)
	SetMembers(teamID int64, logins []string) error
}

// GithubTeamService reconciles one team's attributes and cached member
// joins against the remote listing.
type GithubTeamService struct {
	teams TeamSyncStore
	admin *githubclient.Admin
}

func NewGithubTeamService(teams TeamSyncStore, admin *githubclient.Admin) *GithubTeamService {
	return &GithubTeamService{teams: teams, admin: admin}
}

// Sync upserts the team by remote id and replaces its member joins
// with the remote member list. Returns true when the team was newly
// created locally.
func (s *GithubTeamService) Sync(ctx context.Context, teamID int64) (bool, error) {
	info, err := s.admin.Team(ctx, teamID)
	if err != nil {
		return false, err
	}

	team := &models.GithubTeam{
		ID:           info.ID,
		Organization: info.Organization,
		Slug:         info.Slug,
		Name:         optional(info.Name),
	}
	created, err := s.teams.Upsert(team)
	if err != nil {
		return created, err
	}

	members, err := s.admin.TeamMembers(ctx, teamID)
	if err != nil {
		return created, err
	}
	logins := make([]string, 0, len(members))
	for login := range members {
		logins = append(logins, login)
	}
	return created, s.teams.SetMembers(teamID, logins)
}
