package adapters

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
)

const (
	amazonGamingHome = "https://gaming.amazon.com/home?filter=Game"
	amazonHost       = "https://gaming.amazon.com"

	amazonCardSelector = `[data-a-target="offer-list-FGWP_FULL"] .offer-list__content__grid .tw-block [data-a-target="item-card"]`
	amazonAgeSelector  = "p.tw-c-text-white.tw-font-size-7"

	amazonDetailPublisherSelector = `[data-a-target="gms-content-supertext"] h2`
	amazonDetailTaglineSelector   = ".highlight-card__overlay__content, .highlight-card__overlay, .highlight-card__content"
	amazonDetailBodySelector      = "div.tw-font-size-5.tw-typeset p.tw-amazon-ember-light.tw-md-font-size-4"

	amazonDefaultDaysRemaining = 30
)

var digitsPattern = regexp.MustCompile(`\D`)

// AmazonAdapter harvests the Prime Gaming monthly free-games grid. The grid
// carries title, cover and an "Ends in N days" badge; the description and
// publisher come from each card's detail page.
type AmazonAdapter struct {
	renderer browser.Renderer
	now      func() time.Time
}

// NewAmazonAdapter builds the Prime Gaming batch adapter.
func NewAmazonAdapter(renderer browser.Renderer) *AmazonAdapter {
	return &AmazonAdapter{renderer: renderer, now: time.Now}
}

func (a *AmazonAdapter) ID() string                 { return domain.ProviderAmazonGames }
func (a *AmazonAdapter) Kind() domain.OfferKind     { return domain.KindSubscriptionGame }
func (a *AmazonAdapter) Policy() domain.DedupPolicy { return domain.PolicySkipOnExists }

// The grid links rotate per visit, so identity is the game name.
func (a *AmazonAdapter) DedupKey() DedupKey { return DedupByNameAndProvider }

// Fetch scrapes the current free-games grid into subscription offers.
func (a *AmazonAdapter) Fetch(ctx context.Context) ([]domain.Offer, error) {
	html, err := a.renderer.HTML(ctx, amazonGamingHome, browser.PageOptions{
		WaitVisible:    amazonCardSelector,
		ScrollToBottom: true,
		Settle:         3 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render prime gaming home: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return nil, fmt.Errorf("parse prime gaming home: %w", err)
	}

	now := a.now()
	startDate := firstOfMonth(now)

	var offers []domain.Offer
	doc.Find(amazonCardSelector).Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find("h3").First().Text())
		if title == "" {
			return
		}

		cover, _ := card.Find("img.tw-image").First().Attr("src")

		providerURL := amazonGamingHome
		if href, ok := card.Find("a").First().Attr("href"); ok && href != "" {
			providerURL = amazonHost + href
		}

		ageText := strings.TrimSpace(card.Find(amazonAgeSelector).First().Text())
		endDate := now.Add(time.Duration(amazonDaysRemaining(ageText)) * 24 * time.Hour)

		description, publisher := a.fetchDetail(ctx, providerURL)

		offers = append(offers, domain.Offer{
			Name:          title,
			Cover:         cover,
			CoverPortrait: cover,
			Description:   description,
			Publisher:     strptr(publisher),
			PlatformIDs:   []string{domain.PlatformWindows},
			ProviderID:    domain.ProviderAmazonGames,
			ProviderURL:   providerURL,
			StartDate:     startDate,
			EndDate:       endDate,
			Free:          false,
			ReleaseDate:   &startDate,
		})
	})
	return offers, nil
}

// amazonDaysRemaining parses the badge text. "Ends today" counts as one day;
// unparseable badges fall back to a month.
func amazonDaysRemaining(ageText string) int {
	if strings.EqualFold(ageText, "Ends today") {
		return 1
	}
	digits := digitsPattern.ReplaceAllString(ageText, "")
	if days, err := strconv.Atoi(digits); err == nil && days > 0 {
		return days
	}
	return amazonDefaultDaysRemaining
}

// fetchDetail scrapes the card's detail page for description and publisher.
// Detail failures degrade to empty fields rather than dropping the offer.
func (a *AmazonAdapter) fetchDetail(ctx context.Context, detailURL string) (description, publisher string) {
	if detailURL == amazonGamingHome {
		return "", ""
	}

	html, err := a.renderer.HTML(ctx, detailURL, browser.PageOptions{
		WaitVisible: "h2.tw-amazon-ember-light.tw-font-size-2",
		Settle:      time.Second,
	})
	if err != nil {
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return "", ""
	}

	tagline := strings.TrimSpace(doc.Find(amazonDetailTaglineSelector).First().Text())
	tagline = strings.ReplaceAll(tagline, "\n\n", ". ")
	body := strings.TrimSpace(doc.Find(amazonDetailBodySelector).First().Text())

	switch {
	case tagline != "" && body != "":
		description = tagline + ". " + body
	case tagline != "":
		description = tagline
	default:
		description = body
	}

	publisher = strings.TrimSpace(doc.Find(amazonDetailPublisherSelector).First().Text())
	return description, publisher
}
