package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

const steamFreeGameJSON = `{
  "440": {
    "success": true,
    "data": {
      "name": "Sample Shooter",
      "header_image": "https://cdn.example.com/header.jpg",
      "short_description": "A sample shooter.",
      "developers": ["Sample Dev"],
      "publishers": ["Sample Pub"],
      "is_free": true,
      "screenshots": [{"path_full": "https://cdn.example.com/shot1.jpg"}],
      "platforms": {"windows": true, "mac": true, "linux": false},
      "price_overview": {"discount_percent": 100},
      "release_date": {"date": "10 Oct, 2007"}
    }
  }
}`

const steamPaidGameJSON = `{
  "440": {
    "success": true,
    "data": {
      "name": "Sample Shooter",
      "platforms": {"windows": true},
      "price_overview": {"discount_percent": 50}
    }
  }
}`

func TestSteamFetchLinkFreeGame(t *testing.T) {
	client := newMockHTTPClient()
	client.respond("https://store.steampowered.com/api/appdetails?appids=440", steamFreeGameJSON)

	adapter := NewSteamAdapter(client, nil)
	now := time.Date(2025, time.November, 1, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return now }

	offer, err := adapter.FetchLink(context.Background(), "https://store.steampowered.com/app/440/Sample_Shooter/")
	if err != nil {
		t.Fatalf("FetchLink: %v", err)
	}

	if offer.Name != "Sample Shooter" {
		t.Fatalf("unexpected name %q", offer.Name)
	}
	if offer.ProviderID != domain.ProviderSteam {
		t.Fatalf("unexpected provider %q", offer.ProviderID)
	}
	if !offer.Free {
		t.Fatalf("expected free flag set")
	}
	if len(offer.PlatformIDs) != 2 || offer.PlatformIDs[0] != domain.PlatformWindows || offer.PlatformIDs[1] != domain.PlatformMacOS {
		t.Fatalf("unexpected platforms %v", offer.PlatformIDs)
	}
	if offer.CoverPortrait != "https://cdn.example.com/shot1.jpg" {
		t.Fatalf("expected first screenshot as portrait, got %q", offer.CoverPortrait)
	}

	// No renderer, so the end date falls back to the default window.
	if !offer.EndDate.Equal(now.Add(steamDefaultOfferWindow)) {
		t.Fatalf("unexpected end date %v", offer.EndDate)
	}
	if offer.ReleaseDate == nil || offer.ReleaseDate.Year() != 2007 {
		t.Fatalf("unexpected release date %v", offer.ReleaseDate)
	}
}

func TestSteamFetchLinkRejectsPartialDiscount(t *testing.T) {
	client := newMockHTTPClient()
	client.respond("https://store.steampowered.com/api/appdetails?appids=440", steamPaidGameJSON)

	adapter := NewSteamAdapter(client, nil)
	_, err := adapter.FetchLink(context.Background(), "https://store.steampowered.com/app/440/")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestSteamFetchLinkRejectsBadLink(t *testing.T) {
	adapter := NewSteamAdapter(newMockHTTPClient(), nil)
	if _, err := adapter.FetchLink(context.Background(), "https://store.steampowered.com/bundle/232/"); err == nil {
		t.Fatalf("expected error for link without app id")
	}
}

func TestDiscountPercentFallsBackToPackageGroups(t *testing.T) {
	data := &steamGameData{}
	data.PackageGroups = []struct {
		Subs []struct {
			PercentSavingsText string `json:"percent_savings_text"`
		} `json:"subs"`
	}{
		{Subs: []struct {
			PercentSavingsText string `json:"percent_savings_text"`
		}{{PercentSavingsText: "-100%"}}},
	}

	if got := discountPercent(data); got != 100 {
		t.Fatalf("discountPercent = %d, want 100", got)
	}
}
