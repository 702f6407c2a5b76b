// The harvester runs one or more adapters once and exits. It exists for
// manual backfills and debugging a single provider without the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/budget-gamer-hq/offer-harvester/internal/app"
	"github.com/budget-gamer-hq/offer-harvester/internal/config"
	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/internal/logger"
)

const articleSourceReddit = "reddit"

var defaultJobs = []string{articleSourceReddit, "amazon_games", "epic_games", "humble_choice", "ps_plus"}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "harvester failed: %v\n", err)
		os.Exit(1)
	}
}

func run(jobs []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	if len(jobs) == 0 {
		jobs = defaultJobs
	}
	logger.InfoObj("harvester starting", "jobs", jobs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger.Default())
	if err != nil {
		logger.ErrorObj("failed to initialize application", "error", err)
		return err
	}
	defer application.Close()

	svc := application.Service()
	failed := 0
	for _, job := range jobs {
		var tally domain.Tally
		var err error
		if job == articleSourceReddit {
			tally, err = svc.RunArticleSource(ctx, job)
		} else {
			tally, err = svc.RunBatch(ctx, job)
		}
		if err != nil {
			failed++
			logger.ErrorObj("job failed", job, err)
			continue
		}
		logger.InfoObj("job finished", job, tally)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}
