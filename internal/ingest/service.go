// Package ingest is the persistence gate between the provider adapters and
// the database. It owns the dedup policies, the article pipeline, and the
// downstream event fanout; adapters never touch storage directly.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/internal/logger"
	"github.com/budget-gamer-hq/offer-harvester/internal/preview"
	"github.com/budget-gamer-hq/offer-harvester/internal/seencache"
	"github.com/budget-gamer-hq/offer-harvester/internal/store"
	"github.com/budget-gamer-hq/offer-harvester/pkg/adapters"
	"github.com/budget-gamer-hq/offer-harvester/pkg/links"
	"github.com/budget-gamer-hq/offer-harvester/pkg/publishers"
)

const articleVisibilityWindow = 7 * 24 * time.Hour

// Service coordinates adapter runs and user submissions against storage.
type Service struct {
	freeGames store.OfferStore
	subGames  store.OfferStore
	articles  store.ArticleStore
	tx        store.TransactionManager

	registry *adapters.Registry
	preview  *preview.Resolver
	seen     *seencache.Cache
	fanout   *publishers.Fanout

	log logger.Logger
	now func() time.Time
}

// Options carries the collaborators a Service needs. Seen and Fanout are
// optional; a nil cache disables source-link skipping, a nil fanout disables
// event publication.
type Options struct {
	FreeGames store.OfferStore
	SubGames  store.OfferStore
	Articles  store.ArticleStore
	Tx        store.TransactionManager
	Registry  *adapters.Registry
	Preview   *preview.Resolver
	Seen      *seencache.Cache
	Fanout    *publishers.Fanout
	Log       logger.Logger
}

// NewService wires the persistence gate.
func NewService(opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		freeGames: opts.FreeGames,
		subGames:  opts.SubGames,
		articles:  opts.Articles,
		tx:        opts.Tx,
		registry:  opts.Registry,
		preview:   opts.Preview,
		seen:      opts.Seen,
		fanout:    opts.Fanout,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) storeFor(kind domain.OfferKind) store.OfferStore {
	if kind == domain.KindSubscriptionGame {
		return s.subGames
	}
	return s.freeGames
}

// RunBatch executes one scheduled batch adapter and applies its dedup policy
// to every fetched offer. Per-offer failures are recorded in the tally; a
// whole-fetch failure, or any failure inside a replace-batch transaction,
// is returned as an error.
func (s *Service) RunBatch(ctx context.Context, adapterID string) (domain.Tally, error) {
	var tally domain.Tally

	adapter, err := s.registry.Batch(adapterID)
	if err != nil {
		return tally, err
	}

	offers, err := adapter.Fetch(ctx)
	if err != nil {
		return tally, fmt.Errorf("fetch %s: %w", adapterID, err)
	}
	tally.Total = len(offers)

	if adapter.Policy() == domain.PolicyReplaceBatch {
		return s.replaceBatch(ctx, adapter, offers, tally)
	}

	target := s.storeFor(adapter.Kind())
	for i := range offers {
		offer := offers[i]
		existing, err := s.lookup(ctx, target, adapter.DedupKey(), &offer)
		if err != nil {
			tally.RecordError(offer.Name, err)
			continue
		}

		switch {
		case existing == nil:
			if err := s.insertOffer(ctx, target, adapter.Kind(), &offer); err != nil {
				tally.RecordError(offer.Name, err)
				continue
			}
			tally.Added++
		case adapter.Policy() == domain.PolicyUpdateOnExists:
			offer.ID = existing.ID
			if err := target.Update(ctx, &offer); err != nil {
				tally.RecordError(offer.Name, err)
				continue
			}
			s.publish(ctx, publishers.NewOfferEvent(adapter.Kind(), publishers.ActionUpdated, offer))
			tally.Updated++
		default:
			tally.Skipped++
		}
	}

	s.log.InfoObj("batch adapter run finished", "ingest_batch", map[string]any{
		"adapter": adapterID,
		"tally":   tally,
	})
	return tally, nil
}

// replaceBatch handles monthly snapshot providers. When the first offer of
// the batch is already stored the whole snapshot is assumed known and
// skipped; otherwise the provider's previous rows are purged and the batch
// inserted inside one transaction. A failed insert aborts the transaction,
// so the snapshot is stored entirely or not at all.
func (s *Service) replaceBatch(ctx context.Context, adapter adapters.BatchAdapter, offers []domain.Offer, tally domain.Tally) (domain.Tally, error) {
	if len(offers) == 0 {
		return tally, nil
	}

	target := s.storeFor(adapter.Kind())

	existing, err := s.lookup(ctx, target, adapter.DedupKey(), &offers[0])
	if err != nil {
		return tally, err
	}
	if existing != nil {
		tally.Skipped = len(offers)
		s.log.InfoObj("snapshot already stored, skipping batch", "ingest_batch", map[string]any{
			"adapter": adapter.ID(),
			"total":   tally.Total,
		})
		return tally, nil
	}

	var inserted []domain.Offer
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := target.DeleteByProvider(txCtx, offers[0].ProviderID); err != nil {
			return err
		}
		for i := range offers {
			offer := offers[i]
			id, err := target.Insert(txCtx, &offer)
			if err != nil {
				return fmt.Errorf("insert %s: %w", offer.Name, err)
			}
			offer.ID = id
			inserted = append(inserted, offer)
		}
		return nil
	})
	if err != nil {
		return tally, fmt.Errorf("replace %s batch: %w", adapter.ID(), err)
	}
	tally.Added = len(inserted)

	// Events go out only after the transaction commits.
	for i := range inserted {
		s.publish(ctx, publishers.NewOfferEvent(adapter.Kind(), publishers.ActionAdded, inserted[i]))
	}

	s.log.InfoObj("batch adapter run finished", "ingest_batch", map[string]any{
		"adapter": adapter.ID(),
		"tally":   tally,
	})
	return tally, nil
}

func (s *Service) lookup(ctx context.Context, target store.OfferStore, key adapters.DedupKey, offer *domain.Offer) (*domain.Offer, error) {
	if key == adapters.DedupByNameAndProvider {
		return target.GetByNameAndProvider(ctx, offer.Name, offer.ProviderID)
	}
	return target.GetByProviderURL(ctx, offer.ProviderURL)
}

func (s *Service) insertOffer(ctx context.Context, target store.OfferStore, kind domain.OfferKind, offer *domain.Offer) error {
	id, err := target.Insert(ctx, offer)
	if err != nil {
		return err
	}
	offer.ID = id
	s.publish(ctx, publishers.NewOfferEvent(kind, publishers.ActionAdded, *offer))
	return nil
}

// RunArticleSource harvests links from one article source and runs each
// through the article pipeline. Already-seen links are skipped before any
// network work via the TTL cache.
func (s *Service) RunArticleSource(ctx context.Context, sourceID string) (domain.Tally, error) {
	var tally domain.Tally

	source, err := s.registry.Source(sourceID)
	if err != nil {
		return tally, err
	}

	sourceLinks, err := source.FetchLinks(ctx)
	if err != nil {
		return tally, fmt.Errorf("fetch %s links: %w", sourceID, err)
	}
	tally.Total = len(sourceLinks)

	for _, link := range sourceLinks {
		if s.seen != nil {
			if seen, err := s.seen.Seen(link); err == nil && seen {
				tally.Skipped++
				continue
			}
		}

		if _, err := s.SubmitArticle(ctx, link); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				tally.Skipped++
			} else {
				tally.RecordError(link, err)
			}
			s.markSeen(link)
			continue
		}
		s.markSeen(link)
		tally.Added++
	}

	s.log.InfoObj("article source run finished", "ingest_articles", map[string]any{
		"source": sourceID,
		"tally":  tally,
	})
	return tally, nil
}

func (s *Service) markSeen(link string) {
	if s.seen == nil {
		return
	}
	if err := s.seen.Mark(link); err != nil {
		s.log.WarnObj("could not mark link as seen", "ingest_seencache", map[string]any{
			"link":  link,
			"error": err.Error(),
		})
	}
}

// SubmitArticle validates, previews, and stores one giveaway article link.
// Disallowed domains surface preview.ErrDomainNotAllowed; duplicates surface
// ErrAlreadyExists.
func (s *Service) SubmitArticle(ctx context.Context, link string) (*domain.Article, error) {
	if !links.IsAllowedArticleDomain(link) {
		return nil, preview.ErrDomainNotAllowed
	}

	exists, err := s.articles.ExistsByLink(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("check article: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	meta, err := s.preview.Resolve(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("resolve preview: %w", err)
	}

	now := s.now()
	article := domain.Article{
		Title:       meta.Title,
		Description: meta.Description,
		Cover:       meta.Cover,
		Link:        link,
		Domain:      meta.Domain,
		StartDate:   now,
		EndDate:     now.Add(articleVisibilityWindow),
	}

	id, err := s.articles.Insert(ctx, &article)
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}
	article.ID = id

	s.publish(ctx, publishers.NewArticleEvent(article))
	return &article, nil
}

// SubmitGameLink classifies a user-submitted store link, resolves it through
// the matching provider adapter, and stores the offer as a free game.
func (s *Service) SubmitGameLink(ctx context.Context, link string) (*domain.Offer, error) {
	kind, err := links.Classify(link)
	if err != nil {
		return nil, err
	}

	var adapterID string
	switch kind {
	case links.KindSteam:
		adapterID = domain.ProviderSteam
	case links.KindGOG:
		adapterID = domain.ProviderGOG
	case links.KindPlayStation:
		adapterID = domain.ProviderPlayStation
	case links.KindHumble:
		adapterID = domain.ProviderHumbleBundle
	case links.KindEpicGames:
		return nil, ErrEpicLinksNotSupported
	default:
		return nil, links.ErrUnsupportedLink
	}

	adapter, err := s.registry.Link(adapterID)
	if err != nil {
		return nil, err
	}

	offer, err := adapter.FetchLink(ctx, link)
	if err != nil {
		return nil, err
	}

	existing, err := s.freeGames.GetByProviderURL(ctx, offer.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("check offer: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	if err := s.insertOffer(ctx, s.freeGames, domain.KindFreeGame, offer); err != nil {
		return nil, fmt.Errorf("insert offer: %w", err)
	}

	s.log.InfoObj("game link ingested", "ingest_submission", map[string]any{
		"provider": offer.ProviderID,
		"name":     offer.Name,
	})
	return offer, nil
}

func (s *Service) publish(ctx context.Context, evt publishers.Event) {
	if s.fanout == nil || s.fanout.Size() == 0 {
		return
	}
	if _, err := s.fanout.Publish(ctx, evt); err != nil {
		s.log.WarnObj("event fanout failed", "ingest_fanout", map[string]any{
			"kind":     evt.Kind,
			"provider": evt.ProviderID,
			"error":    err.Error(),
		})
	}
}

// Queries exposes the availability reads used by the HTTP API.

// FreeGames returns free-game offers whose window contains now.
func (s *Service) FreeGames(ctx context.Context) ([]domain.Offer, error) {
	return s.freeGames.ListAvailable(ctx, s.now())
}

// SubscriptionGames returns subscription offers whose window contains now.
func (s *Service) SubscriptionGames(ctx context.Context) ([]domain.Offer, error) {
	return s.subGames.ListAvailable(ctx, s.now())
}

// Articles returns giveaway articles whose window contains now.
func (s *Service) Articles(ctx context.Context) ([]domain.Article, error) {
	return s.articles.ListAvailable(ctx, s.now())
}
