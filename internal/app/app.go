// Package app wires configuration, storage, adapters, and publishers into a
// runnable ingest service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/budget-gamer-hq/offer-harvester/internal/config"
	"github.com/budget-gamer-hq/offer-harvester/internal/ingest"
	"github.com/budget-gamer-hq/offer-harvester/internal/logger"
	"github.com/budget-gamer-hq/offer-harvester/internal/preview"
	"github.com/budget-gamer-hq/offer-harvester/internal/seencache"
	"github.com/budget-gamer-hq/offer-harvester/internal/store/postgres"
	"github.com/budget-gamer-hq/offer-harvester/pkg/adapters"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
	"github.com/budget-gamer-hq/offer-harvester/pkg/httpclient"
	"github.com/budget-gamer-hq/offer-harvester/pkg/publishers"
)

// App owns the wired service plus everything that needs closing on shutdown.
type App struct {
	cfg *config.Config
	log logger.Logger
	svc *ingest.Service

	db   *sqlx.DB
	seen *seencache.Cache
}

// New builds the full application graph from config.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NopLogger{}
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, err
	}

	seen, err := seencache.Open(cfg.SeenCachePath, seencache.Options{
		TTL:             cfg.SeenCacheTTL,
		CleanupInterval: cfg.SeenCacheCleanup,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open seen cache: %w", err)
	}

	client := httpclient.NewRestyClient(cfg.HTTPTimeout)
	renderer := browser.NewChromeRenderer(cfg.BrowserTimeout)

	registry := buildRegistry(client, renderer, cfg.RedditAuthToken)

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		seen.Close()
		db.Close()
		return nil, err
	}
	if fanout != nil {
		log.InfoObj("publishers configured", "app_publishers", map[string]any{
			"count": fanout.Size(),
		})
	}

	svc := ingest.NewService(ingest.Options{
		FreeGames: postgres.NewFreeGameStore(db),
		SubGames:  postgres.NewSubscriptionGameStore(db),
		Articles:  postgres.NewArticleStore(db),
		Tx:        postgres.NewTransactionManager(db),
		Registry:  registry,
		Preview:   preview.NewResolver(client),
		Seen:      seen,
		Fanout:    fanout,
		Log:       log,
	})

	return &App{cfg: cfg, log: log, svc: svc, db: db, seen: seen}, nil
}

// buildRegistry registers every provider adapter and article source.
func buildRegistry(client httpclient.Client, renderer browser.Renderer, redditAuthToken string) *adapters.Registry {
	registry := adapters.NewRegistry()

	steam := adapters.NewSteamAdapter(client, renderer)
	gog := adapters.NewGOGAdapter(client, renderer)
	humble := adapters.NewHumbleAdapter(client)
	playstation := adapters.NewPlayStationAdapter(client, renderer)

	registry.RegisterLink(steam.ID(), steam)
	registry.RegisterLink(gog.ID(), gog)
	registry.RegisterLink(humble.ID(), humble)
	registry.RegisterLink(playstation.ID(), playstation)

	registry.RegisterBatch(adapters.NewEpicAdapter(client))
	registry.RegisterBatch(adapters.NewAmazonAdapter(renderer))
	registry.RegisterBatch(adapters.NewHumbleChoiceAdapter(renderer))
	registry.RegisterBatch(adapters.NewPSPlusAdapter(renderer, playstation))

	registry.RegisterSource(adapters.NewRedditSource(client, redditAuthToken))

	return registry
}

// buildFanout loads the publishers file and instantiates every enabled sink.
// An empty path means no downstream publication.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return nil, nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}

	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), reg.Enabled(), log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	return publishers.NewFanout(pubs), nil
}

// Service returns the wired ingest service.
func (a *App) Service() *ingest.Service { return a.svc }

// Close releases the database and cache handles.
func (a *App) Close() error {
	var errs []error
	if a.seen != nil {
		if err := a.seen.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close seen cache: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
