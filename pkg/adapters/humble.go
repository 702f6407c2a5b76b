package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

const (
	humbleLookupURL = "https://www.humblebundle.com/store/api/lookup?products%%5B%%5D=%s&request=1&edit_mode=false"

	humbleDefaultOfferWindow = 7 * 24 * time.Hour
)

var (
	humbleStoreLinkPattern = regexp.MustCompile(`(?i)https://www\.humblebundle\.com/store/([a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*)`)
)

// HumbleAdapter resolves submitted Humble store links into a free-game offer.
// A submission may carry several comma-separated links for the same giveaway;
// the first one becomes the provider URL and the lookup API is queried with
// every extracted product slug.
type HumbleAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewHumbleAdapter builds the Humble store link adapter.
func NewHumbleAdapter(client HTTPClient) *HumbleAdapter {
	return &HumbleAdapter{client: client, now: time.Now}
}

func (a *HumbleAdapter) ID() string { return domain.ProviderHumbleBundle }

type humbleLookupResponse struct {
	Result []struct {
		HumanName    string `json:"human_name"`
		LargeCapsule string `json:"large_capsule"`
		Description  string `json:"description"`
		Developers   []struct {
			DeveloperName string `json:"developer-name"`
		} `json:"developers"`
		Publishers []struct {
			PublisherName string `json:"publisher-name"`
		} `json:"publishers"`
		Platforms    []string `json:"platforms"`
		CurrentPrice struct {
			Amount float64 `json:"amount"`
		} `json:"current_price"`
	} `json:"result"`
}

// FetchLink resolves the Humble products behind link. Products with a nonzero
// current price are rejected with ErrNotEligible.
func (a *HumbleAdapter) FetchLink(ctx context.Context, link string) (*domain.Offer, error) {
	slugs, firstURL := humbleProductSlugs(link)
	if slugs == "" {
		return nil, fmt.Errorf("could not extract a humble product slug from %q", link)
	}

	resp, err := a.client.Get(ctx, fmt.Sprintf(humbleLookupURL, slugs), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch humble lookup: %w", err)
	}
	if err := checkStatus(resp.StatusCode(), "humble lookup", resp.Body()); err != nil {
		return nil, err
	}

	var lookup humbleLookupResponse
	if err := json.Unmarshal(resp.Body(), &lookup); err != nil {
		return nil, fmt.Errorf("decode humble lookup: %w", err)
	}
	if len(lookup.Result) == 0 {
		return nil, fmt.Errorf("humble lookup has no result for %q", slugs)
	}

	game := lookup.Result[0]
	if game.CurrentPrice.Amount != 0 {
		return nil, fmt.Errorf("humble product %q: %w", game.HumanName, ErrNotEligible)
	}

	platforms := make([]string, 0, len(game.Platforms))
	for _, p := range game.Platforms {
		platforms = append(platforms, normalizePlatform(p))
	}

	developer := ""
	if len(game.Developers) > 0 {
		developer = game.Developers[0].DeveloperName
	}
	publisher := ""
	if len(game.Publishers) > 0 {
		publisher = game.Publishers[0].PublisherName
	}

	now := a.now()
	return &domain.Offer{
		Name:          game.HumanName,
		Cover:         game.LargeCapsule,
		CoverPortrait: game.LargeCapsule,
		Description:   stripHTML(game.Description),
		Developer:     developer,
		Publisher:     strptr(publisher),
		PlatformIDs:   platforms,
		ProviderID:    domain.ProviderHumbleBundle,
		ProviderURL:   firstURL,
		StartDate:     now,
		EndDate:       now.Add(humbleDefaultOfferWindow),
		Free:          true,
	}, nil
}

// humbleProductSlugs extracts comma-joined product slugs from one or more
// comma-separated store links, plus the first raw link.
func humbleProductSlugs(raw string) (slugs string, firstURL string) {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		m := humbleStoreLinkPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		ids = append(ids, m[1])
	}
	if len(parts) > 0 {
		firstURL = strings.TrimSpace(parts[0])
	}
	return strings.Join(ids, ","), firstURL
}
