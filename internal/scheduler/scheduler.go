// Package scheduler wires the synchronization executors to cron
// schedules. Every run builds a fresh settings snapshot and a fresh
// GitHub client so configuration changes take effect on the next run
// without a restart.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ogulcan/ghwarden/internal/directory"
	"github.com/ogulcan/ghwarden/internal/githubclient"
	"github.com/ogulcan/ghwarden/internal/lifecycle"
	"github.com/ogulcan/ghwarden/internal/notify"
	"github.com/ogulcan/ghwarden/internal/repositories"
	"github.com/ogulcan/ghwarden/internal/services"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/internal/workers"
	"github.com/ogulcan/ghwarden/pkg/config"
	"github.com/ogulcan/ghwarden/pkg/database"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// Runner builds and executes one synchronization run at a time. The
// repositories are long-lived; everything snapshot-dependent is
// constructed per run.
type Runner struct {
	settings    *settings.Settings
	users       *repositories.UserRepository
	githubUsers *repositories.GithubUserRepository
	emails      *repositories.GithubEmailRepository
	memberships *repositories.GithubOrgMembershipRepository
	teams       *repositories.GithubTeamRepository
}

func NewRunner(
	settings *settings.Settings,
	users *repositories.UserRepository,
	githubUsers *repositories.GithubUserRepository,
	emails *repositories.GithubEmailRepository,
	memberships *repositories.GithubOrgMembershipRepository,
	teams *repositories.GithubTeamRepository,
) *Runner {
	return &Runner{
		settings:    settings,
		users:       users,
		githubUsers: githubUsers,
		emails:      emails,
		memberships: memberships,
		teams:       teams,
	}
}

func (r *Runner) snapshot() (*settings.Snapshot, error) {
	snap, err := r.settings.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if !snap.Configured {
		return nil, fmt.Errorf("connector is not configured")
	}
	return snap, nil
}

func (r *Runner) admin(snap *settings.Snapshot) *githubclient.Admin {
	return githubclient.NewAdmin(githubclient.NewAPI(snap.GithubAdminToken), snap.GithubOrgs)
}

func (r *Runner) notifier(snap *settings.Snapshot) notify.Notifier {
	if snap.SMTPAddress == "" {
		return notify.Noop{}
	}
	return notify.NewMailer(snap)
}

// RunGithubSync reconciles the GitHub user and team cache.
func (r *Runner) RunGithubSync(ctx context.Context) (*workers.GithubStats, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	admin := r.admin(snap)
	userSvc := services.NewGithubUserService(r.githubUsers, r.emails, r.memberships, r.teams, admin, snap)
	teamSvc := services.NewGithubTeamService(r.teams, admin)

	sync := workers.NewGithubSynchronizer(
		workers.NewExecutor(database.MaxOpenConns()),
		admin, r.githubUsers, r.teams, userSvc, teamSvc)

	ok := sync.Run(ctx)
	logRunResult("github sync", ok, sync.Errors())
	logger.WithFields(map[string]interface{}{
		"users_added":  sync.Stats.UsersAdded,
		"users_synced": sync.Stats.UsersSynced,
		"teams_synced": sync.Stats.TeamsSynced,
		"api_requests": sync.Stats.APIRequests,
		"total_time":   sync.Stats.TotalTime.String(),
	}).Info("GitHub sync finished")
	if !ok {
		return &sync.Stats, fmt.Errorf("github sync finished with %d errors", len(sync.Errors()))
	}
	return &sync.Stats, nil
}

// RunLdapSync refreshes every directory principal.
func (r *Runner) RunLdapSync(ctx context.Context) (*workers.LdapStats, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	userSvc := services.NewUserService(r.users, directory.NewLdapClient(snap))

	sync := workers.NewLdapSynchronizer(workers.NewExecutor(database.MaxOpenConns()), r.users, userSvc)

	ok := sync.Run(ctx)
	logRunResult("ldap sync", ok, sync.Errors())
	logger.WithFields(map[string]interface{}{
		"users_synced": sync.Stats.UsersSynced,
		"user_errors":  sync.Stats.UserErrors,
		"users_time":   sync.Stats.UsersTime.String(),
	}).Info("LDAP sync finished")
	if !ok {
		return &sync.Stats, fmt.Errorf("ldap sync finished with %d errors", sync.Stats.UserErrors+len(sync.Errors()))
	}
	return &sync.Stats, nil
}

// RunTransitions runs the access state machine and state enforcement.
func (r *Runner) RunTransitions(ctx context.Context) (*workers.TransitionStats, error) {
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	admin := r.admin(snap)
	userSvc := services.NewGithubUserService(r.githubUsers, r.emails, r.memberships, r.teams, admin, snap)
	machine := lifecycle.NewMachine(userSvc, r.githubUsers, r.notifier(snap), snap)

	exec := workers.NewTransitionExecutor(
		workers.NewExecutor(database.MaxOpenConns()),
		machine, r.githubUsers, userSvc, snap)

	ok := exec.Run(ctx)
	logRunResult("transitions", ok, exec.Errors())
	logger.WithFields(map[string]interface{}{
		"transitioned": exec.Stats.UsersTransitioned,
		"removed":      exec.Stats.UsersRemoved,
		"restricted":   exec.Stats.UsersRestricted,
		"enforced":     exec.Stats.UsersEnforced,
		"total_time":   exec.Stats.TotalTime.String(),
	}).Info("Transition run finished")
	if !ok {
		return &exec.Stats, fmt.Errorf("transition run finished with %d errors", len(exec.Errors()))
	}
	return &exec.Stats, nil
}

// Scheduler runs the three synchronization jobs on their cron
// schedules.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	cfg    config.SchedulerConfig
}

func New(runner *Runner, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		runner: runner,
		cfg:    cfg,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"github_sync", s.cfg.GithubSyncSpec, func(ctx context.Context) error {
			_, err := s.runner.RunGithubSync(ctx)
			return err
		}},
		{"ldap_sync", s.cfg.LdapSyncSpec, func(ctx context.Context) error {
			_, err := s.runner.RunLdapSync(ctx)
			return err
		}},
		{"transitions", s.cfg.TransitionSpec, func(ctx context.Context) error {
			_, err := s.runner.RunTransitions(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(job.spec, func() {
			start := time.Now()
			logger.Infof("Starting scheduled %s", job.name)
			if err := job.run(context.Background()); err != nil {
				logger.WithError(err).Errorf("Scheduled %s failed", job.name)
				return
			}
			logger.Infof("Scheduled %s completed in %s", job.name, time.Since(start))
		})
		if err != nil {
			return fmt.Errorf("scheduling %s (%q): %w", job.name, job.spec, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func logRunResult(name string, ok bool, errs []error) {
	if ok {
		return
	}
	for _, err := range errs {
		logger.WithError(err).Errorf("Error during %s", name)
	}
}
