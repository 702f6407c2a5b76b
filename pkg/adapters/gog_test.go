package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

const gogProductHTML = `<html><body>
<div class="productcard-basics hide-when-content-is-expanded">
  <h1 class="productcard-basics__title">Sample RPG</h1>
</div>
<div class="cart-button__state-giveaway">
  <span class="cart-button__state-default">Go to giveaway</span>
</div>
</body></html>`

const gogPaidProductHTML = `<html><body>
<div class="productcard-basics hide-when-content-is-expanded">
  <h1 class="productcard-basics__title">Sample RPG</h1>
</div>
<div class="cart-button__state-giveaway">
  <span class="cart-button__state-default">Add to cart</span>
</div>
</body></html>`

const gogSearchJSON = `{
  "totalGamesFound": 1,
  "products": [
    {
      "title": "Sample RPG",
      "id": 1207658924,
      "price": {"discountPercentage": 0},
      "supportedOperatingSystems": ["windows", "mac"],
      "image": "//images.gog.example.com/sample_rpg",
      "releaseDate": 1275000000,
      "developer": "RPG House",
      "publisher": "RPG Publishing"
    }
  ]
}`

const gogDescriptionJSON = `{"description": {"full": "<p>A classic role playing game.</p>"}}`

func TestGOGFetchLinkGiveaway(t *testing.T) {
	renderer := newStubRenderer()
	renderer.serve("https://www.gog.com/en/game/sample_rpg", gogProductHTML)
	// No countdown page is served, so the default window applies.

	client := newMockHTTPClient()
	client.respond(fmt.Sprintf(gogSearchURL, url.QueryEscape("Sample RPG")), gogSearchJSON)
	client.respond(fmt.Sprintf(gogProductURL, "1207658924"), gogDescriptionJSON)

	adapter := NewGOGAdapter(client, renderer)
	now := time.Date(2025, time.November, 15, 12, 0, 0, 0, time.UTC)
	adapter.now = func() time.Time { return now }

	offer, err := adapter.FetchLink(context.Background(), "https://www.gog.com/en/game/sample_rpg")
	if err != nil {
		t.Fatalf("FetchLink: %v", err)
	}

	if offer.Name != "Sample RPG" {
		t.Fatalf("unexpected name %q", offer.Name)
	}
	if offer.ProviderID != domain.ProviderGOG {
		t.Fatalf("unexpected provider %q", offer.ProviderID)
	}
	if offer.Cover != "https://images.gog.example.com/sample_rpg.jpg" {
		t.Fatalf("unexpected cover %q", offer.Cover)
	}
	if offer.Description != "A classic role playing game." {
		t.Fatalf("expected stripped description, got %q", offer.Description)
	}
	if len(offer.PlatformIDs) != 2 || offer.PlatformIDs[1] != domain.PlatformMacOS {
		t.Fatalf("unexpected platforms %v", offer.PlatformIDs)
	}
	if !offer.EndDate.Equal(now.Add(gogDefaultOfferWindow)) {
		t.Fatalf("unexpected end date %v", offer.EndDate)
	}
	if !offer.Free {
		t.Fatalf("expected free flag set")
	}
	if offer.ReleaseDate == nil || offer.ReleaseDate.Year() != 2010 {
		t.Fatalf("unexpected release date %v", offer.ReleaseDate)
	}
}

func TestGOGFetchLinkRejectsPaidProduct(t *testing.T) {
	renderer := newStubRenderer()
	renderer.serve("https://www.gog.com/en/game/sample_rpg", gogPaidProductHTML)

	client := newMockHTTPClient()
	client.respond(fmt.Sprintf(gogSearchURL, url.QueryEscape("Sample RPG")), gogSearchJSON)

	adapter := NewGOGAdapter(client, renderer)
	_, err := adapter.FetchLink(context.Background(), "https://www.gog.com/en/game/sample_rpg")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestGOGFetchLinkWithoutCatalogMatch(t *testing.T) {
	renderer := newStubRenderer()
	renderer.serve("https://www.gog.com/en/game/sample_rpg", gogProductHTML)

	client := newMockHTTPClient()
	client.respond(fmt.Sprintf(gogSearchURL, url.QueryEscape("Sample RPG")), `{"totalGamesFound": 0, "products": []}`)

	adapter := NewGOGAdapter(client, renderer)
	if _, err := adapter.FetchLink(context.Background(), "https://www.gog.com/en/game/sample_rpg"); err == nil {
		t.Fatalf("expected error without a catalog match")
	}
}
