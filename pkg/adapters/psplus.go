package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
)

const (
	psPlusMonthlyGamesURL = "https://www.playstation.com/en-gb/ps-plus/whats-new/#monthly-games"
	psStoreSearchURL      = "https://store.playstation.com/en-gb/search/%s"

	psPlusMonthlySection = ".cmp-experiencefragment--your-latest-monthly-games"
	psPlusTitleSelector  = ".txt-style-medium-title.txt-block-paragraph__title"
	psSearchGridSelector = ".psw-grid-list.psw-l-grid"

	// Search results carry a service-tier badge; only the Essential tier games
	// are part of the monthly drop.
	psEssentialTier = "Essential"
)

// PSPlusAdapter harvests the monthly PlayStation Plus drop. The marketing
// page only lists titles, so each title is searched on the store and the
// Essential-tagged hit is resolved through the product fetcher shared with
// user submissions.
type PSPlusAdapter struct {
	renderer browser.Renderer
	product  *PlayStationAdapter
}

// NewPSPlusAdapter builds the PS Plus batch adapter on top of the product fetcher.
func NewPSPlusAdapter(renderer browser.Renderer, product *PlayStationAdapter) *PSPlusAdapter {
	return &PSPlusAdapter{renderer: renderer, product: product}
}

func (a *PSPlusAdapter) ID() string                 { return "ps_plus" }
func (a *PSPlusAdapter) Kind() domain.OfferKind     { return domain.KindSubscriptionGame }
func (a *PSPlusAdapter) Policy() domain.DedupPolicy { return domain.PolicySkipOnExists }
func (a *PSPlusAdapter) DedupKey() DedupKey         { return DedupByProviderURL }

// Fetch resolves the current monthly titles into subscription offers. A title
// that cannot be resolved fails the whole run only when every title fails.
func (a *PSPlusAdapter) Fetch(ctx context.Context) ([]domain.Offer, error) {
	titles, err := a.fetchMonthlyTitles(ctx)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, errors.New("no monthly titles found on the ps plus page")
	}

	var offers []domain.Offer
	var errs []error
	for _, title := range titles {
		productURLs, err := a.searchEssentialProducts(ctx, title)
		if err != nil {
			errs = append(errs, fmt.Errorf("search %q: %w", title, err))
			continue
		}
		for _, productURL := range productURLs {
			// Essential drops stay priced on the store; carry them as
			// subscription entries regardless of the listed price.
			offer, err := a.product.fetchAnyPrice(ctx, productURL)
			if err != nil {
				errs = append(errs, fmt.Errorf("resolve %q: %w", productURL, err))
				continue
			}
			offer.ProviderID = domain.ProviderPlayStation
			offer.Free = false
			offers = append(offers, *offer)
		}
	}

	if len(offers) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return offers, nil
}

// fetchMonthlyTitles scrapes the game titles off the monthly-games section.
func (a *PSPlusAdapter) fetchMonthlyTitles(ctx context.Context) ([]string, error) {
	html, err := a.renderer.HTML(ctx, psPlusMonthlyGamesURL, browser.PageOptions{
		WaitVisible: psPlusMonthlySection,
		Settle:      2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render ps plus page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return nil, fmt.Errorf("parse ps plus page: %w", err)
	}

	var titles []string
	doc.Find(psPlusTitleSelector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			titles = append(titles, t)
		}
	})
	return titles, nil
}

// searchEssentialProducts searches the store for a title and returns product
// URLs for hits carrying the Essential tier badge.
func (a *PSPlusAdapter) searchEssentialProducts(ctx context.Context, title string) ([]string, error) {
	html, err := a.renderer.HTML(ctx, fmt.Sprintf(psStoreSearchURL, url.PathEscape(title)), browser.PageOptions{
		WaitVisible: psSearchGridSelector,
		Settle:      time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render store search: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return nil, fmt.Errorf("parse store search: %w", err)
	}

	var urls []string
	doc.Find(psSearchGridSelector + " li").Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find("div > a").First()
		meta, ok := anchor.Attr("data-telemetry-meta")
		if !ok {
			return
		}

		var telemetry struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(meta), &telemetry); err != nil || telemetry.ID == "" {
			return
		}

		tier := strings.TrimSpace(item.Find("div > a > div > section div").First().Text())
		if tier != psEssentialTier {
			return
		}
		urls = append(urls, fmt.Sprintf("https://store.playstation.com/en-gb/product/%s", telemetry.ID))
	})
	return urls, nil
}
