// Package adapters contains one acquisition adapter per external provider.
// Each adapter knows how to fetch and normalize offers from one source; the
// ingest gate decides what gets persisted. Site-specific selectors and URL
// shapes live here so selector rot stays contained per provider.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/httpclient"
)

// ErrNotEligible marks an offer that exists but is not currently free
// (discount below 100%, price above zero). No side effect follows.
var ErrNotEligible = errors.New("offer is not free")

// DedupKey selects the lookup used by the persistence gate to detect an
// already-ingested record.
type DedupKey string

const (
	DedupByProviderURL     = DedupKey("provider_url")
	DedupByNameAndProvider = DedupKey("name_provider")
)

// BatchAdapter harvests a provider's current catalog during a scheduled run.
type BatchAdapter interface {
	ID() string
	Kind() domain.OfferKind
	Policy() domain.DedupPolicy
	DedupKey() DedupKey
	Fetch(ctx context.Context) ([]domain.Offer, error)
}

// LinkAdapter resolves one user-submitted store link into an offer.
type LinkAdapter interface {
	ID() string
	FetchLink(ctx context.Context, link string) (*domain.Offer, error)
}

// ArticleSource produces candidate giveaway article links.
type ArticleSource interface {
	ID() string
	FetchLinks(ctx context.Context) ([]string, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within adapters.
type HTTPClient = httpclient.Client

// Registry resolves adapters by id.
type Registry struct {
	mu      sync.RWMutex
	batch   map[string]BatchAdapter
	link    map[string]LinkAdapter
	sources map[string]ArticleSource
}

// NewRegistry builds an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		batch:   make(map[string]BatchAdapter),
		link:    make(map[string]LinkAdapter),
		sources: make(map[string]ArticleSource),
	}
}

// RegisterBatch adds a scheduled batch adapter.
func (r *Registry) RegisterBatch(a BatchAdapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(a.ID()))
	if key == "" {
		return
	}
	r.mu.Lock()
	r.batch[key] = a
	r.mu.Unlock()
}

// RegisterLink adds a user-submission link adapter.
func (r *Registry) RegisterLink(id string, a LinkAdapter) {
	if a == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		return
	}
	r.mu.Lock()
	r.link[key] = a
	r.mu.Unlock()
}

// Batch returns the batch adapter registered under id.
func (r *Registry) Batch(id string) (BatchAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.batch[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("no batch adapter registered for %q", id)
	}
	return a, nil
}

// Link returns the link adapter registered under id.
func (r *Registry) Link(id string) (LinkAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.link[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("no link adapter registered for %q", id)
	}
	return a, nil
}

// RegisterSource adds an article link source.
func (r *Registry) RegisterSource(s ArticleSource) {
	if s == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(s.ID()))
	if key == "" {
		return
	}
	r.mu.Lock()
	r.sources[key] = s
	r.mu.Unlock()
}

// Source returns the article source registered under id.
func (r *Registry) Source(id string) (ArticleSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("no article source registered for %q", id)
	}
	return s, nil
}
