package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogulcan/ghwarden/internal/repositories"
	"github.com/ogulcan/ghwarden/internal/scheduler"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/config"
	"github.com/ogulcan/ghwarden/pkg/crypto"
	"github.com/ogulcan/ghwarden/pkg/database"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

func main() {
	runOnce := flag.String("run", "", "run one job and exit: github, ldap, or transition")
	flag.Parse()

	if err := config.Load(); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init()

	cipher, err := crypto.NewCipher(config.AppConfig.Crypto.Key)
	if err != nil {
		logger.Fatalf("Failed to initialize encryption: %v", err)
	}

	if err := database.Init(config.AppConfig.Database.Path, config.AppConfig.Database.MaxOpenConns); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	runner := scheduler.NewRunner(
		settings.New(repositories.NewSettingRepository(database.DB, cipher)),
		repositories.NewUserRepository(database.DB),
		repositories.NewGithubUserRepository(database.DB, cipher),
		repositories.NewGithubEmailRepository(database.DB),
		repositories.NewGithubOrgMembershipRepository(database.DB),
		repositories.NewGithubTeamRepository(database.DB),
	)

	if *runOnce != "" {
		if err := runJob(runner, *runOnce); err != nil {
			logger.Fatalf("Job %s failed: %v", *runOnce, err)
		}
		return
	}

	if config.AppConfig.Scheduler.DisableScheduler {
		logger.Info("Scheduler is disabled, nothing to do")
		return
	}

	sched := scheduler.New(runner, config.AppConfig.Scheduler)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	logger.Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down, waiting for running jobs")
	sched.Stop()
}

func runJob(runner *scheduler.Runner, name string) error {
	ctx := context.Background()
	switch name {
	case "github":
		_, err := runner.RunGithubSync(ctx)
		return err
	case "ldap":
		_, err := runner.RunLdapSync(ctx)
		return err
	case "transition":
		_, err := runner.RunTransitions(ctx)
		return err
	default:
		logger.Fatalf("Unknown job %q, expected github, ldap, or transition", name)
		return nil
	}
}
