package adapters

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

const psFreeGameJSON = `{
  "name": "Monthly Platformer",
  "long_desc": "<p>Jump around.</p>",
  "provider_name": "Platform Studios",
  "playable_platform": "PS4™,PS5™",
  "default_sku": {"price": 0},
  "release_date": "2023-04-20T00:00:00Z",
  "images": [
    {"url": "https://apollo2.dl.playstation.net/cdn/portrait.png"},
    {"url": "https://image.api.playstation.com/vulcan/cover.png"}
  ]
}`

const psPaidGameJSON = `{
  "name": "Monthly Platformer",
  "playable_platform": "PS5™",
  "default_sku": {"price": 5999}
}`

const psProductLink = "https://store.playstation.com/en-gb/product/EP1234-CUSA05678_00-MONTHLYPLATFORM0"

func psAPIFor(productID string) string {
	return fmt.Sprintf(psChihiroURL, productID)
}

func TestPlayStationFetchLinkFreeGame(t *testing.T) {
	client := newMockHTTPClient()
	client.respond(psAPIFor("EP1234-CUSA05678_00-MONTHLYPLATFORM0"), psFreeGameJSON)

	adapter := NewPlayStationAdapter(client, nil)
	now := time.Date(2025, time.November, 15, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return now }

	offer, err := adapter.FetchLink(context.Background(), psProductLink)
	if err != nil {
		t.Fatalf("FetchLink: %v", err)
	}

	if offer.Name != "Monthly Platformer" {
		t.Fatalf("unexpected name %q", offer.Name)
	}
	if offer.ProviderID != domain.ProviderPlayStation {
		t.Fatalf("unexpected provider %q", offer.ProviderID)
	}
	if offer.Description != "Jump around." {
		t.Fatalf("expected stripped description, got %q", offer.Description)
	}
	if len(offer.PlatformIDs) != 2 || offer.PlatformIDs[0] != domain.PlatformPS4 || offer.PlatformIDs[1] != domain.PlatformPS5 {
		t.Fatalf("unexpected platforms %v", offer.PlatformIDs)
	}

	// The apollo CDN URL is rewritten onto the image API host.
	if offer.CoverPortrait != "https://image.api.playstation.com/cdn/portrait.png" {
		t.Fatalf("unexpected portrait %q", offer.CoverPortrait)
	}
	if offer.Cover != "https://image.api.playstation.com/vulcan/cover.png" {
		t.Fatalf("unexpected cover %q", offer.Cover)
	}

	if !offer.StartDate.Equal(firstOfMonth(now)) {
		t.Fatalf("unexpected start date %v", offer.StartDate)
	}
	if !offer.EndDate.Equal(offer.StartDate.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected end date %v", offer.EndDate)
	}
	if !offer.Free {
		t.Fatalf("expected free flag set")
	}
}

func TestPlayStationFetchLinkRejectsPaidGame(t *testing.T) {
	client := newMockHTTPClient()
	client.respond(psAPIFor("EP1234-CUSA05678_00-MONTHLYPLATFORM0"), psPaidGameJSON)

	adapter := NewPlayStationAdapter(client, nil)
	_, err := adapter.FetchLink(context.Background(), psProductLink)
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestPlayStationFetchAnyPriceKeepsPaidGame(t *testing.T) {
	client := newMockHTTPClient()
	client.respond(psAPIFor("EP1234-CUSA05678_00-MONTHLYPLATFORM0"), psPaidGameJSON)

	adapter := NewPlayStationAdapter(client, nil)
	offer, err := adapter.fetchAnyPrice(context.Background(), psProductLink)
	if err != nil {
		t.Fatalf("fetchAnyPrice: %v", err)
	}
	if offer.Free {
		t.Fatalf("priced product must not be flagged free")
	}
}

func TestPSProductID(t *testing.T) {
	cases := []struct {
		link string
		want string
		ok   bool
	}{
		{psProductLink, "EP1234-CUSA05678_00-MONTHLYPLATFORM0", true},
		{"https://store.playstation.com/en-us/product/UP9000-PPSA01234_00-SOMEGAME00000000/", "UP9000-PPSA01234_00-SOMEGAME00000000", true},
		{"first junk, " + psProductLink, "EP1234-CUSA05678_00-MONTHLYPLATFORM0", true},
		{"https://store.playstation.com/en-gb/latest", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := psProductID(tc.link)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("psProductID(%q) = %q, %v; want %q, %v", tc.link, got, ok, tc.want, tc.ok)
		}
	}
}
