package publishers

import (
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

// Event actions.
const (
	ActionAdded   = "added"
	ActionUpdated = "updated"
)

// Event kinds.
const (
	KindFreeGame         = "free_game"
	KindSubscriptionGame = "subscription_game"
	KindArticle          = "article"
)

// Event represents the payload published downstream when an offer or article
// passes the persistence gate. Exactly one of Offer and Article is set.
type Event struct {
	Kind       string          `json:"kind"`
	Action     string          `json:"action"`
	ProviderID string          `json:"provider_id"`
	Offer      *domain.Offer   `json:"offer,omitempty"`
	Article    *domain.Article `json:"article,omitempty"`
	IngestedAt time.Time       `json:"ingested_at"`
}

// NewOfferEvent constructs an Event for a persisted offer.
func NewOfferEvent(kind domain.OfferKind, action string, offer domain.Offer) Event {
	eventKind := KindFreeGame
	if kind == domain.KindSubscriptionGame {
		eventKind = KindSubscriptionGame
	}
	return Event{
		Kind:       eventKind,
		Action:     action,
		ProviderID: offer.ProviderID,
		Offer:      &offer,
		IngestedAt: time.Now().UTC(),
	}
}

// NewArticleEvent constructs an Event for a persisted article.
func NewArticleEvent(article domain.Article) Event {
	return Event{
		Kind:       KindArticle,
		Action:     ActionAdded,
		ProviderID: article.Domain,
		Article:    &article,
		IngestedAt: time.Now().UTC(),
	}
}
