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
	psChihiroURL     = "https://store.playstation.com/store/api/chihiro/00_09_000/container/gb/en/999/%s"
	psProductPageURL = "https://store.playstation.com/en-gb/product/%s/"

	// The apollo CDN mirrors the image API but is frequently unreachable from
	// outside PSN, so its URLs are rewritten onto the image host.
	psApolloHost = "https://apollo2.dl.playstation.net/"
	psImageHost  = "https://image.api.playstation.com/"
)

var psProductLinkPattern = regexp.MustCompile(`(?i)https://store\.playstation\.com/[a-zA-Z]+(?:-[a-zA-Z]+)+/product/([^/,\s]+)`)

// PlayStationAdapter resolves a submitted PlayStation store link into a
// free-game offer. The legacy chihiro API is tried first; when it is gone for
// a product the details are recovered from the JSON blobs embedded in the
// product page scripts.
type PlayStationAdapter struct {
	client   HTTPClient
	renderer browser.Renderer
	now      func() time.Time
}

// NewPlayStationAdapter builds the PlayStation link adapter.
func NewPlayStationAdapter(client HTTPClient, renderer browser.Renderer) *PlayStationAdapter {
	return &PlayStationAdapter{client: client, renderer: renderer, now: time.Now}
}

func (a *PlayStationAdapter) ID() string { return domain.ProviderPlayStation }

// psGameDetails is the provider-shaped intermediate both fetch paths produce.
type psGameDetails struct {
	Name          string
	Cover         string
	CoverPortrait string
	Description   string
	Publisher     string
	PlatformIDs   []string
	Free          bool
	ReleaseDate   *time.Time
}

// FetchLink resolves the product behind link. Non-free products are rejected
// with ErrNotEligible.
func (a *PlayStationAdapter) FetchLink(ctx context.Context, link string) (*domain.Offer, error) {
	offer, err := a.fetchAnyPrice(ctx, link)
	if err != nil {
		return nil, err
	}
	if !offer.Free {
		return nil, fmt.Errorf("playstation product %s: %w", link, ErrNotEligible)
	}
	return offer, nil
}

// fetchAnyPrice resolves a product regardless of its price. The Free field
// carries whether the store lists it at zero.
func (a *PlayStationAdapter) fetchAnyPrice(ctx context.Context, link string) (*domain.Offer, error) {
	productID, ok := psProductID(link)
	if !ok {
		return nil, fmt.Errorf("could not extract a playstation product id from %q", link)
	}

	details, err := a.fetchFromAPI(ctx, productID)
	if err != nil || details == nil {
		details, err = a.scrapeProductPage(ctx, productID)
		if err != nil {
			return nil, err
		}
	}
	if details == nil {
		return nil, fmt.Errorf("no product data found for playstation product %s", productID)
	}

	// Monthly catalog convention: the offer is anchored to the first of the
	// current month and runs thirty days.
	startDate := firstOfMonth(a.now())
	return &domain.Offer{
		Name:          details.Name,
		Cover:         details.Cover,
		CoverPortrait: details.CoverPortrait,
		Description:   details.Description,
		Developer:     details.Publisher,
		Publisher:     strptr(details.Publisher),
		PlatformIDs:   details.PlatformIDs,
		ProviderID:    domain.ProviderPlayStation,
		ProviderURL:   link,
		StartDate:     startDate,
		EndDate:       startDate.Add(30 * 24 * time.Hour),
		Free:          details.Free,
		ReleaseDate:   details.ReleaseDate,
	}, nil
}

type psChihiroResponse struct {
	Name             string `json:"name"`
	LongDesc         string `json:"long_desc"`
	ProviderName     string `json:"provider_name"`
	PlayablePlatform string `json:"playable_platform"`
	DefaultSKU       *struct {
		Price float64 `json:"price"`
	} `json:"default_sku"`
	ReleaseDate string `json:"release_date"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func (a *PlayStationAdapter) fetchFromAPI(ctx context.Context, productID string) (*psGameDetails, error) {
	resp, err := a.client.Get(ctx, fmt.Sprintf(psChihiroURL, productID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch playstation api: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, nil
	}

	var data psChihiroResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode playstation api: %w", err)
	}

	cover, coverPortrait := "", ""
	switch {
	case len(data.Images) > 1:
		coverPortrait = rewriteApolloURL(data.Images[0].URL)
		cover = rewriteApolloURL(data.Images[1].URL)
	case len(data.Images) == 1:
		coverPortrait = rewriteApolloURL(data.Images[0].URL)
		cover = coverPortrait
	}

	platforms := make([]string, 0, 2)
	for _, p := range strings.Split(data.PlayablePlatform, ",") {
		if p = normalizePlatform(p); p != "" {
			platforms = append(platforms, p)
		}
	}

	var releaseDate *time.Time
	if data.ReleaseDate != "" {
		if t, err := time.Parse(time.RFC3339, data.ReleaseDate); err == nil {
			releaseDate = &t
		}
	}

	return &psGameDetails{
		Name:          data.Name,
		Cover:         cover,
		CoverPortrait: coverPortrait,
		Description:   stripHTML(data.LongDesc),
		Publisher:     data.ProviderName,
		PlatformIDs:   platforms,
		Free:          data.DefaultSKU != nil && data.DefaultSKU.Price == 0,
		ReleaseDate:   releaseDate,
	}, nil
}

type psPageMedia struct {
	Cache map[string]struct {
		Name  string `json:"name"`
		Media []struct {
			Role string `json:"role"`
			URL  string `json:"url"`
		} `json:"media"`
	} `json:"cache"`
}

type psPageDetails struct {
	Cache map[string]struct {
		Descriptions []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"descriptions"`
		ReleaseDate   string   `json:"releaseDate"`
		PublisherName string   `json:"publisherName"`
		Platforms     []string `json:"platforms"`
	} `json:"cache"`
}

type psPagePrice struct {
	Offers struct {
		Price *float64 `json:"price"`
	} `json:"offers"`
}

// scrapeProductPage recovers the same record from the script tags of the
// rendered product page.
func (a *PlayStationAdapter) scrapeProductPage(ctx context.Context, productID string) (*psGameDetails, error) {
	html, err := a.renderer.HTML(ctx, fmt.Sprintf(psProductPageURL, productID), browser.PageOptions{
		WaitVisible: "script",
		Settle:      2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render playstation product page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return nil, fmt.Errorf("parse playstation product page: %w", err)
	}

	var media *psPageMedia
	var pageDetails *psPageDetails
	var price *psPagePrice

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if media == nil && strings.Contains(text, "media") && strings.Contains(text, "cache") {
			var m psPageMedia
			if json.Unmarshal([]byte(text), &m) == nil && len(m.Cache) > 0 {
				media = &m
			}
		}
		if pageDetails == nil && strings.Contains(text, "Description") && strings.Contains(text, "cache") {
			var d psPageDetails
			if json.Unmarshal([]byte(text), &d) == nil && len(d.Cache) > 0 {
				pageDetails = &d
			}
		}
		if price == nil && strings.Contains(text, "price") {
			var p psPagePrice
			if json.Unmarshal([]byte(text), &p) == nil && p.Offers.Price != nil {
				price = &p
			}
		}
		return media == nil || pageDetails == nil || price == nil
	})

	if media == nil || pageDetails == nil || price == nil {
		return nil, fmt.Errorf("playstation product page for %s is missing embedded data", productID)
	}

	productKey := "Product:" + productID
	mediaEntry := media.Cache[productKey]
	detailsEntry := pageDetails.Cache[productKey]

	cover, coverPortrait := "", ""
	for _, m := range mediaEntry.Media {
		switch m.Role {
		case "MASTER":
			coverPortrait = m.URL
		case "GAMEHUB_COVER_ART":
			cover = m.URL
		}
	}
	if cover == "" {
		cover = coverPortrait
	}

	description := ""
	for _, d := range detailsEntry.Descriptions {
		if d.Type == "LONG" {
			description = stripHTML(d.Value)
			break
		}
	}

	platforms := make([]string, 0, len(detailsEntry.Platforms))
	for _, p := range detailsEntry.Platforms {
		platforms = append(platforms, normalizePlatform(p))
	}

	var releaseDate *time.Time
	if detailsEntry.ReleaseDate != "" {
		if t, err := time.Parse(time.RFC3339, detailsEntry.ReleaseDate); err == nil {
			releaseDate = &t
		}
	}

	return &psGameDetails{
		Name:          mediaEntry.Name,
		Cover:         cover,
		CoverPortrait: coverPortrait,
		Description:   description,
		Publisher:     detailsEntry.PublisherName,
		PlatformIDs:   platforms,
		Free:          *price.Offers.Price == 0,
		ReleaseDate:   releaseDate,
	}, nil
}

func psProductID(link string) (string, bool) {
	for _, part := range strings.Split(link, ",") {
		m := psProductLinkPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m != nil {
			return m[1], true
		}
	}
	return "", false
}

func rewriteApolloURL(u string) string {
	if strings.Contains(u, psApolloHost) {
		return strings.Replace(u, psApolloHost, psImageHost, 1)
	}
	return u
}
