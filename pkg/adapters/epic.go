package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

const (
	epicPromotionsURL   = "https://store-site-backend-static-ipv4.ak.epicgames.com/freeGamesPromotions"
	epicStorePagePrefix = "https://store.epicgames.com/en-US/p/"
)

// EpicAdapter harvests the Epic store weekly giveaway rotation. Existing rows
// are refreshed in place because Epic reuses the same store URL when a
// giveaway's window shifts.
type EpicAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewEpicAdapter builds the Epic batch adapter.
func NewEpicAdapter(client HTTPClient) *EpicAdapter {
	return &EpicAdapter{client: client, now: time.Now}
}

func (a *EpicAdapter) ID() string                 { return domain.ProviderEpicGames }
func (a *EpicAdapter) Kind() domain.OfferKind     { return domain.KindFreeGame }
func (a *EpicAdapter) Policy() domain.DedupPolicy { return domain.PolicyUpdateOnExists }
func (a *EpicAdapter) DedupKey() DedupKey         { return DedupByProviderURL }

type epicPromotionWindow struct {
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	DiscountSetting struct {
		DiscountPercentage *float64 `json:"discountPercentage"`
	} `json:"discountSetting"`
}

type epicElement struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EffectiveDate string `json:"effectiveDate"`
	ProductSlug   string `json:"productSlug"`
	CatalogNs     struct {
		Mappings []struct {
			PageSlug string `json:"pageSlug"`
		} `json:"mappings"`
	} `json:"catalogNs"`
	KeyImages []struct {
		URL string `json:"url"`
	} `json:"keyImages"`
	Price struct {
		TotalPrice struct {
			DiscountPrice float64 `json:"discountPrice"`
		} `json:"totalPrice"`
	} `json:"price"`
	Seller struct {
		Name string `json:"name"`
	} `json:"seller"`
	Promotions *struct {
		PromotionalOffers []struct {
			PromotionalOffers []epicPromotionWindow `json:"promotionalOffers"`
		} `json:"promotionalOffers"`
		UpcomingPromotionalOffers []struct {
			PromotionalOffers []epicPromotionWindow `json:"promotionalOffers"`
		} `json:"upcomingPromotionalOffers"`
	} `json:"promotions"`
}

type epicPromotionsResponse struct {
	Data struct {
		Catalog struct {
			SearchStore struct {
				Elements []epicElement `json:"elements"`
			} `json:"searchStore"`
		} `json:"Catalog"`
	} `json:"data"`
}

// Fetch returns the giveaways that are free and inside their promotion window
// right now. Upcoming rotations are carried in the feed but skipped until
// their window opens.
func (a *EpicAdapter) Fetch(ctx context.Context) ([]domain.Offer, error) {
	resp, err := a.client.Get(ctx, epicPromotionsURL, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("fetch epic promotions: %w", err)
	}
	if err := checkStatus(resp.StatusCode(), "epic promotions", resp.Body()); err != nil {
		return nil, err
	}

	var feed epicPromotionsResponse
	if err := json.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("decode epic promotions: %w", err)
	}

	now := a.now()
	var offers []domain.Offer
	for _, game := range feed.Data.Catalog.SearchStore.Elements {
		if game.Promotions == nil {
			continue
		}

		window, ok := epicActiveWindow(game)
		if !ok {
			continue
		}
		if !(window.start.Before(now) || window.start.Equal(now)) || !now.Before(window.end) {
			continue
		}
		if game.Price.TotalPrice.DiscountPrice != 0 {
			continue
		}

		slug := game.ProductSlug
		if slug == "" && len(game.CatalogNs.Mappings) > 0 {
			slug = game.CatalogNs.Mappings[0].PageSlug
		}
		if slug == "" {
			continue
		}

		if len(game.KeyImages) < 2 || game.KeyImages[0].URL == "" || game.KeyImages[1].URL == "" {
			continue
		}

		var releaseDate *time.Time
		if t, err := time.Parse(time.RFC3339, game.EffectiveDate); err == nil {
			releaseDate = &t
		}

		offers = append(offers, domain.Offer{
			Name:          game.Title,
			Cover:         encodeSpaces(game.KeyImages[0].URL),
			CoverPortrait: encodeSpaces(game.KeyImages[1].URL),
			Description:   game.Description,
			Developer:     game.Seller.Name,
			Publisher:     strptr(game.Seller.Name),
			PlatformIDs:   []string{domain.PlatformWindows},
			ProviderID:    domain.ProviderEpicGames,
			ProviderURL:   encodeSpaces(epicStorePagePrefix + slug),
			StartDate:     window.start,
			EndDate:       window.end,
			Free:          true,
			ReleaseDate:   releaseDate,
		})
	}
	return offers, nil
}

type epicWindow struct {
	start, end time.Time
}

// epicActiveWindow picks the first current promotion window, falling back to
// the first upcoming one. Windows without a discount setting do not count.
func epicActiveWindow(game epicElement) (epicWindow, bool) {
	pick := func(groups []struct {
		PromotionalOffers []epicPromotionWindow `json:"promotionalOffers"`
	}) (epicWindow, bool) {
		if len(groups) == 0 || len(groups[0].PromotionalOffers) == 0 {
			return epicWindow{}, false
		}
		promo := groups[0].PromotionalOffers[0]
		if promo.DiscountSetting.DiscountPercentage == nil {
			return epicWindow{}, false
		}
		start, err1 := time.Parse(time.RFC3339, promo.StartDate)
		end, err2 := time.Parse(time.RFC3339, promo.EndDate)
		if err1 != nil || err2 != nil {
			return epicWindow{}, false
		}
		return epicWindow{start: start, end: end}, true
	}

	if w, ok := pick(game.Promotions.PromotionalOffers); ok {
		return w, true
	}
	return pick(game.Promotions.UpcomingPromotionalOffers)
}
