package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
)

const (
	humbleMembershipURL = "https://www.humblebundle.com/membership?hmb_source=search_bar"

	// The monthly catalog ships embedded in a data attribute on this button.
	humbleChoiceDataSelector = "button.read-our-recommendation.js-read-our-recommendation.mobile-only.text-button.no-style-button"
	humbleChoiceDataAttr     = "data-content-choice-data"

	humbleSearchURLPrefix = "https://www.humblebundle.com/store/search?sort=bestselling&search="
)

var humbleTitlePunctuation = regexp.MustCompile("[.,/#!$%^&*;:{}=\\-_`'~()]")

// HumbleChoiceAdapter harvests the current month's Humble Choice catalog.
// The whole month is replaced as one batch whenever a new catalog appears.
type HumbleChoiceAdapter struct {
	renderer browser.Renderer
	now      func() time.Time
}

// NewHumbleChoiceAdapter builds the Humble Choice batch adapter.
func NewHumbleChoiceAdapter(renderer browser.Renderer) *HumbleChoiceAdapter {
	return &HumbleChoiceAdapter{renderer: renderer, now: time.Now}
}

func (a *HumbleChoiceAdapter) ID() string             { return "humble_choice" }
func (a *HumbleChoiceAdapter) Kind() domain.OfferKind { return domain.KindSubscriptionGame }
func (a *HumbleChoiceAdapter) Policy() domain.DedupPolicy {
	return domain.PolicyReplaceBatch
}
func (a *HumbleChoiceAdapter) DedupKey() DedupKey { return DedupByProviderURL }

type humbleChoiceEntry struct {
	Title                  string `json:"title"`
	Image                  string `json:"image"`
	RecommendationCopyDict struct {
		Copy string `json:"copy"`
	} `json:"recommendation_copy_dict"`
	Platforms []string `json:"platforms"`
}

// Fetch renders the membership page and decodes the embedded catalog JSON.
// Choice titles have no store page of their own, so the provider URL is a
// store search seeded with the first words of the title.
func (a *HumbleChoiceAdapter) Fetch(ctx context.Context) ([]domain.Offer, error) {
	html, err := a.renderer.HTML(ctx, humbleMembershipURL, browser.PageOptions{
		WaitVisible: humbleChoiceDataSelector,
		Settle:      2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render humble membership page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return nil, fmt.Errorf("parse humble membership page: %w", err)
	}

	raw, ok := doc.Find(humbleChoiceDataSelector).First().Attr(humbleChoiceDataAttr)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("humble membership page has no %s attribute", humbleChoiceDataAttr)
	}

	var catalog map[string]humbleChoiceEntry
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		return nil, fmt.Errorf("decode humble choice catalog: %w", err)
	}

	// The catalog is visible from mid-month, so the window is anchored a
	// month back and runs two months total.
	now := a.now()
	startDate := now.Add(-30 * 24 * time.Hour)
	endDate := startDate.Add(60 * 24 * time.Hour)

	offers := make([]domain.Offer, 0, len(catalog))
	for _, entry := range catalog {
		platforms := make([]string, 0, len(entry.Platforms))
		for _, p := range entry.Platforms {
			switch normalizePlatform(p) {
			case domain.PlatformWindows:
				platforms = append(platforms, domain.PlatformWindows)
			case domain.PlatformMacOS:
				platforms = append(platforms, domain.PlatformMacOS)
			case domain.PlatformLinux:
				platforms = append(platforms, domain.PlatformLinux)
			}
		}
		if len(platforms) == 0 {
			platforms = []string{domain.PlatformWindows}
		}

		offers = append(offers, domain.Offer{
			Name:          entry.Title,
			Cover:         encodeSpaces(entry.Image),
			CoverPortrait: encodeSpaces(entry.Image),
			Description:   stripHTML(entry.RecommendationCopyDict.Copy),
			PlatformIDs:   platforms,
			ProviderID:    domain.ProviderHumbleBundle,
			ProviderURL:   encodeSpaces(humbleSearchURL(entry.Title)),
			StartDate:     startDate,
			EndDate:       endDate,
			Free:          false,
		})
	}
	return offers, nil
}

func humbleSearchURL(title string) string {
	cleaned := humbleTitlePunctuation.ReplaceAllString(strings.ToLower(title), "")
	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	return humbleSearchURLPrefix + strings.Join(words, " ")
}
