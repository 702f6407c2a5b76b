package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
)

const (
	gogSearchURL  = "https://embed.gog.com/games/ajax/filtered?mediaType=game&search=%s"
	gogProductURL = "https://api.gog.com/products/%s?expand=description,screenshots"

	// The sitewide countdown lives on the landing page, not the product page.
	gogGiveawayPage = "https://www.gog.com/#giveaway"

	gogTitleSelector     = ".productcard-basics.hide-when-content-is-expanded .productcard-basics__title"
	gogGiveawaySelector  = ".cart-button__state-giveaway span.cart-button__state-default"
	gogCountdownSelector = ".giveaway__countdown"

	gogDefaultOfferWindow = 7 * 24 * time.Hour
)

// GOGAdapter resolves a submitted GOG product link into a free-game offer.
// The product page only shows a giveaway button, so the title scraped there is
// fed back through the catalog search API for the full metadata.
type GOGAdapter struct {
	client   HTTPClient
	renderer browser.Renderer
	now      func() time.Time
}

// NewGOGAdapter builds the GOG link adapter.
func NewGOGAdapter(client HTTPClient, renderer browser.Renderer) *GOGAdapter {
	return &GOGAdapter{client: client, renderer: renderer, now: time.Now}
}

func (a *GOGAdapter) ID() string { return domain.ProviderGOG }

type gogSearchResult struct {
	TotalGamesFound int `json:"totalGamesFound"`
	Products        []struct {
		Title string `json:"title"`
		ID    int64  `json:"id"`
		Price struct {
			DiscountPercentage float64 `json:"discountPercentage"`
		} `json:"price"`
		SupportedOperatingSystems []string `json:"supportedOperatingSystems"`
		Image                     string   `json:"image"`
		ReleaseDate               int64    `json:"releaseDate"`
		Developer                 string   `json:"developer"`
		Publisher                 string   `json:"publisher"`
	} `json:"products"`
}

type gogProduct struct {
	Description struct {
		Full string `json:"full"`
	} `json:"description"`
}

// FetchLink resolves the GOG product behind link. Products without an active
// giveaway are rejected with ErrNotEligible.
func (a *GOGAdapter) FetchLink(ctx context.Context, link string) (*domain.Offer, error) {
	title, pageIsGiveaway, err := a.scrapeProductPage(ctx, link)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, fmt.Errorf("could not find a game title at %q", link)
	}

	match, err := a.searchCatalog(ctx, title)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("gog catalog has no entry titled %q", title)
	}

	if !pageIsGiveaway && match.discount != 100 {
		return nil, fmt.Errorf("gog product %q: %w", title, ErrNotEligible)
	}

	description := a.fetchDescription(ctx, match.id)

	now := a.now()
	endDate := now.Add(gogDefaultOfferWindow)
	if remaining, ok := a.scrapeCountdown(ctx); ok {
		endDate = now.Add(remaining)
	}

	var releaseDate *time.Time
	if match.releaseUnix > 0 {
		t := time.Unix(match.releaseUnix, 0)
		releaseDate = &t
	}

	return &domain.Offer{
		Name:          match.title,
		Cover:         match.cover,
		CoverPortrait: match.cover,
		Description:   description,
		Developer:     match.developer,
		Publisher:     strptr(match.publisher),
		PlatformIDs:   match.platforms,
		ProviderID:    domain.ProviderGOG,
		ProviderURL:   link,
		StartDate:     now,
		EndDate:       endDate,
		Free:          true,
		ReleaseDate:   releaseDate,
	}, nil
}

// scrapeProductPage renders the product page and reads the title plus the
// giveaway state of the cart button.
func (a *GOGAdapter) scrapeProductPage(ctx context.Context, link string) (title string, giveaway bool, err error) {
	html, err := a.renderer.HTML(ctx, link, browser.PageOptions{
		WaitVisible: gogTitleSelector,
		Settle:      2 * time.Second,
	})
	if err != nil {
		return "", false, fmt.Errorf("render gog product page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return "", false, fmt.Errorf("parse gog product page: %w", err)
	}

	title = strings.TrimSpace(doc.Find(gogTitleSelector).First().Text())
	giveaway = strings.TrimSpace(doc.Find(gogGiveawaySelector).First().Text()) == "Go to giveaway"
	return title, giveaway, nil
}

type gogMatch struct {
	id          string
	title       string
	cover       string
	discount    int
	platforms   []string
	developer   string
	publisher   string
	releaseUnix int64
}

// searchCatalog looks the exact title up in the catalog search API.
func (a *GOGAdapter) searchCatalog(ctx context.Context, title string) (*gogMatch, error) {
	resp, err := a.client.Get(ctx, fmt.Sprintf(gogSearchURL, url.QueryEscape(title)), nil)
	if err != nil {
		return nil, fmt.Errorf("search gog catalog: %w", err)
	}
	if err := checkStatus(resp.StatusCode(), "gog catalog search", resp.Body()); err != nil {
		return nil, err
	}

	var result gogSearchResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode gog catalog search: %w", err)
	}

	for _, p := range result.Products {
		if p.Title != title {
			continue
		}
		platforms := make([]string, 0, len(p.SupportedOperatingSystems))
		for _, os := range p.SupportedOperatingSystems {
			platforms = append(platforms, normalizePlatform(os))
		}
		return &gogMatch{
			id:          fmt.Sprintf("%d", p.ID),
			title:       p.Title,
			cover:       "https:" + p.Image + ".jpg",
			discount:    int(p.Price.DiscountPercentage),
			platforms:   platforms,
			developer:   p.Developer,
			publisher:   p.Publisher,
			releaseUnix: p.ReleaseDate,
		}, nil
	}
	return nil, nil
}

// fetchDescription pulls the long-form description. Failures degrade to an
// empty description rather than dropping the offer.
func (a *GOGAdapter) fetchDescription(ctx context.Context, productID string) string {
	resp, err := a.client.Get(ctx, fmt.Sprintf(gogProductURL, productID), nil)
	if err != nil || resp.StatusCode() != 200 {
		return ""
	}

	var product gogProduct
	if err := json.Unmarshal(resp.Body(), &product); err != nil {
		return ""
	}
	return stripHTML(product.Description.Full)
}

// scrapeCountdown reads the sitewide giveaway countdown off the landing page.
func (a *GOGAdapter) scrapeCountdown(ctx context.Context) (time.Duration, bool) {
	html, err := a.renderer.HTML(ctx, gogGiveawayPage, browser.PageOptions{
		WaitVisible:    gogCountdownSelector,
		ScrollToBottom: true,
		Settle:         3 * time.Second,
	})
	if err != nil {
		return 0, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return 0, false
	}

	text := strings.TrimSpace(doc.Find(gogCountdownSelector).First().Text())
	if text == "" {
		return 0, false
	}
	return parseCountdown(text)
}
