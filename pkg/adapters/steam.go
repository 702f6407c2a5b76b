package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/pkg/browser"
	"github.com/budget-gamer-hq/offer-harvester/pkg/links"
)

const (
	steamAppDetailsURL = "https://store.steampowered.com/api/appdetails?appids=%s"

	// End date is scraped from the store page promo text; when the text is
	// missing the offer is assumed to run this long.
	steamDefaultOfferWindow = 4 * 24 * time.Hour

	steamDiscountSelector = ".game_purchase_discount_quantity"
)

var nonNumericPattern = regexp.MustCompile(`[^0-9.-]+`)

// SteamAdapter resolves a submitted Steam store link into a free-game offer.
// Metadata comes from the public appdetails API; the promotional end date is
// only present in the rendered store page.
type SteamAdapter struct {
	client   HTTPClient
	renderer browser.Renderer
	now      func() time.Time
}

// NewSteamAdapter builds the Steam link adapter.
func NewSteamAdapter(client HTTPClient, renderer browser.Renderer) *SteamAdapter {
	return &SteamAdapter{client: client, renderer: renderer, now: time.Now}
}

func (a *SteamAdapter) ID() string { return domain.ProviderSteam }

type steamAppDetails struct {
	Success bool           `json:"success"`
	Data    *steamGameData `json:"data"`
}

type steamGameData struct {
	Name             string   `json:"name"`
	HeaderImage      string   `json:"header_image"`
	ShortDescription string   `json:"short_description"`
	Developers       []string `json:"developers"`
	Publishers       []string `json:"publishers"`
	IsFree           bool     `json:"is_free"`
	Screenshots      []struct {
		PathFull string `json:"path_full"`
	} `json:"screenshots"`
	Platforms struct {
		Windows bool `json:"windows"`
		Mac     bool `json:"mac"`
		Linux   bool `json:"linux"`
	} `json:"platforms"`
	PriceOverview *struct {
		DiscountPercent float64 `json:"discount_percent"`
	} `json:"price_overview"`
	PackageGroups []struct {
		Subs []struct {
			PercentSavingsText string `json:"percent_savings_text"`
		} `json:"subs"`
	} `json:"package_groups"`
	ReleaseDate struct {
		Date string `json:"date"`
	} `json:"release_date"`
}

// FetchLink resolves the Steam app behind link. Games whose discount is not
// 100% are rejected with ErrNotEligible.
func (a *SteamAdapter) FetchLink(ctx context.Context, link string) (*domain.Offer, error) {
	appID, ok := links.SteamAppID(link)
	if !ok {
		return nil, fmt.Errorf("could not extract steam app id from %q", link)
	}

	data, err := a.fetchDetails(ctx, appID)
	if err != nil {
		return nil, err
	}

	if discountPercent(data) != 100 {
		return nil, fmt.Errorf("steam app %s: %w", appID, ErrNotEligible)
	}

	now := a.now()
	endDate, found := a.scrapeEndDate(ctx, link, now)
	if !found {
		endDate = now.Add(steamDefaultOfferWindow)
	}

	platforms := make([]string, 0, 3)
	if data.Platforms.Windows {
		platforms = append(platforms, domain.PlatformWindows)
	}
	if data.Platforms.Mac {
		platforms = append(platforms, domain.PlatformMacOS)
	}
	if data.Platforms.Linux {
		platforms = append(platforms, domain.PlatformLinux)
	}

	coverPortrait := data.HeaderImage
	if len(data.Screenshots) > 0 {
		coverPortrait = data.Screenshots[0].PathFull
	}

	var releaseDate *time.Time
	if data.ReleaseDate.Date != "" {
		if t, err := time.Parse("2 Jan, 2006", data.ReleaseDate.Date); err == nil {
			releaseDate = &t
		}
	}

	developer := ""
	if len(data.Developers) > 0 {
		developer = data.Developers[0]
	}
	publisher := ""
	if len(data.Publishers) > 0 {
		publisher = data.Publishers[0]
	}

	return &domain.Offer{
		Name:          data.Name,
		Cover:         data.HeaderImage,
		CoverPortrait: coverPortrait,
		Description:   data.ShortDescription,
		Developer:     developer,
		Publisher:     strptr(publisher),
		PlatformIDs:   platforms,
		ProviderID:    domain.ProviderSteam,
		ProviderURL:   link,
		StartDate:     now,
		EndDate:       endDate,
		Free:          data.IsFree,
		ReleaseDate:   releaseDate,
	}, nil
}

func (a *SteamAdapter) fetchDetails(ctx context.Context, appID string) (*steamGameData, error) {
	resp, err := a.client.Get(ctx, fmt.Sprintf(steamAppDetailsURL, appID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch steam appdetails: %w", err)
	}
	if err := checkStatus(resp.StatusCode(), "steam appdetails", resp.Body()); err != nil {
		return nil, err
	}

	var payload map[string]steamAppDetails
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode steam appdetails: %w", err)
	}

	entry, ok := payload[appID]
	if !ok || !entry.Success || entry.Data == nil {
		return nil, fmt.Errorf("steam appdetails has no data for app %s", appID)
	}
	return entry.Data, nil
}

// discountPercent reads the discount from the price overview, falling back to
// the package-group savings text for listings without one.
func discountPercent(data *steamGameData) int {
	if data.PriceOverview != nil {
		return int(data.PriceOverview.DiscountPercent)
	}
	if len(data.PackageGroups) > 0 && len(data.PackageGroups[0].Subs) > 0 {
		text := data.PackageGroups[0].Subs[0].PercentSavingsText
		numeric := nonNumericPattern.ReplaceAllString(text, "")
		if v, err := strconv.ParseFloat(numeric, 64); err == nil {
			return int(math.Abs(v))
		}
	}
	return 0
}

// scrapeEndDate renders the store page and parses the promo countdown text.
// A missing selector is normal for listings without a visible countdown.
func (a *SteamAdapter) scrapeEndDate(ctx context.Context, link string, now time.Time) (time.Time, bool) {
	if a.renderer == nil {
		return time.Time{}, false
	}

	html, err := a.renderer.HTML(ctx, link, browser.PageOptions{
		WaitVisible: steamDiscountSelector,
		Settle:      2 * time.Second,
	})
	if err != nil {
		return time.Time{}, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		return time.Time{}, false
	}

	text := strings.TrimSpace(doc.Find(steamDiscountSelector).First().Text())
	if text == "" {
		return time.Time{}, false
	}
	return parseSteamEndDate(text, now)
}
