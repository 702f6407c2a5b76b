// Package store defines the persistence contracts the ingest gate and the
// read queries depend on. The concrete PostgreSQL implementation lives in
// the postgres subpackage.
package store

import (
	"context"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

// OfferStore persists one offer table (free_games or subscription_games).
type OfferStore interface {
	Insert(ctx context.Context, offer *domain.Offer) (int64, error)
	Update(ctx context.Context, offer *domain.Offer) error
	GetByProviderURL(ctx context.Context, providerURL string) (*domain.Offer, error)
	GetByNameAndProvider(ctx context.Context, name, providerID string) (*domain.Offer, error)
	ListAvailable(ctx context.Context, now time.Time) ([]domain.Offer, error)
	DeleteByProvider(ctx context.Context, providerID string) (int64, error)
}

// ArticleStore persists giveaway articles.
type ArticleStore interface {
	Insert(ctx context.Context, article *domain.Article) (int64, error)
	ExistsByLink(ctx context.Context, link string) (bool, error)
	ListAvailable(ctx context.Context, now time.Time) ([]domain.Article, error)
}

// TransactionManager scopes a function to a single database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
