package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
	"github.com/budget-gamer-hq/offer-harvester/internal/preview"
	"github.com/budget-gamer-hq/offer-harvester/internal/seencache"
	"github.com/budget-gamer-hq/offer-harvester/pkg/adapters"
	"github.com/budget-gamer-hq/offer-harvester/pkg/httpclient"
	"github.com/budget-gamer-hq/offer-harvester/pkg/links"
)

type fakeOfferStore struct {
	offers  []domain.Offer
	nextID  int64
	updates []domain.Offer
	deleted []string

	failInsertName string
}

func (f *fakeOfferStore) Insert(_ context.Context, offer *domain.Offer) (int64, error) {
	if f.failInsertName != "" && offer.Name == f.failInsertName {
		return 0, errors.New("insert rejected")
	}
	f.nextID++
	stored := *offer
	stored.ID = f.nextID
	f.offers = append(f.offers, stored)
	return f.nextID, nil
}

func (f *fakeOfferStore) Update(_ context.Context, offer *domain.Offer) error {
	f.updates = append(f.updates, *offer)
	for i := range f.offers {
		if f.offers[i].ID == offer.ID {
			f.offers[i] = *offer
		}
	}
	return nil
}

func (f *fakeOfferStore) GetByProviderURL(_ context.Context, providerURL string) (*domain.Offer, error) {
	for i := range f.offers {
		if f.offers[i].ProviderURL == providerURL {
			found := f.offers[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeOfferStore) GetByNameAndProvider(_ context.Context, name, providerID string) (*domain.Offer, error) {
	for i := range f.offers {
		if f.offers[i].Name == name && f.offers[i].ProviderID == providerID {
			found := f.offers[i]
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeOfferStore) ListAvailable(_ context.Context, now time.Time) ([]domain.Offer, error) {
	var out []domain.Offer
	for i := range f.offers {
		o := f.offers[i]
		if !o.StartDate.After(now) && !o.EndDate.Before(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferStore) DeleteByProvider(_ context.Context, providerID string) (int64, error) {
	f.deleted = append(f.deleted, providerID)
	var kept []domain.Offer
	var removed int64
	for i := range f.offers {
		if f.offers[i].ProviderID == providerID {
			removed++
			continue
		}
		kept = append(kept, f.offers[i])
	}
	f.offers = kept
	return removed, nil
}

type fakeArticleStore struct {
	articles []domain.Article
	nextID   int64
}

func (f *fakeArticleStore) Insert(_ context.Context, article *domain.Article) (int64, error) {
	f.nextID++
	stored := *article
	stored.ID = f.nextID
	f.articles = append(f.articles, stored)
	return f.nextID, nil
}

func (f *fakeArticleStore) ExistsByLink(_ context.Context, link string) (bool, error) {
	for i := range f.articles {
		if f.articles[i].Link == link {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeArticleStore) ListAvailable(_ context.Context, now time.Time) ([]domain.Article, error) {
	var out []domain.Article
	for i := range f.articles {
		a := f.articles[i]
		if !a.StartDate.After(now) && !a.EndDate.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTx struct {
	rolledBack bool
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		f.rolledBack = true
		return err
	}
	return nil
}

type fakeBatch struct {
	id     string
	kind   domain.OfferKind
	policy domain.DedupPolicy
	dedup  adapters.DedupKey
	offers []domain.Offer
	err    error
}

func (f *fakeBatch) ID() string                 { return f.id }
func (f *fakeBatch) Kind() domain.OfferKind     { return f.kind }
func (f *fakeBatch) Policy() domain.DedupPolicy { return f.policy }
func (f *fakeBatch) DedupKey() adapters.DedupKey {
	if f.dedup == "" {
		return adapters.DedupByProviderURL
	}
	return f.dedup
}
func (f *fakeBatch) Fetch(context.Context) ([]domain.Offer, error) { return f.offers, f.err }

type fakeLink struct {
	id    string
	offer *domain.Offer
	err   error
}

func (f *fakeLink) ID() string { return f.id }
func (f *fakeLink) FetchLink(context.Context, string) (*domain.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.offer
	return &clone, nil
}

type fakeSource struct {
	id    string
	links []string
	err   error
}

func (f *fakeSource) ID() string                                  { return f.id }
func (f *fakeSource) FetchLinks(context.Context) ([]string, error) { return f.links, f.err }

// offlineClient always fails so the preview resolver falls back to the
// per-domain defaults without touching the network.
type offlineClient struct{}

func (offlineClient) Get(context.Context, string, map[string]string) (httpclient.Response, error) {
	return nil, errors.New("offline")
}

func (offlineClient) Post(context.Context, string, map[string]string, any) (httpclient.Response, error) {
	return nil, errors.New("offline")
}

type testHarness struct {
	svc       *Service
	freeGames *fakeOfferStore
	subGames  *fakeOfferStore
	articles  *fakeArticleStore
	tx        *fakeTx
	registry  *adapters.Registry
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		freeGames: &fakeOfferStore{},
		subGames:  &fakeOfferStore{},
		articles:  &fakeArticleStore{},
		tx:        &fakeTx{},
		registry:  adapters.NewRegistry(),
	}
	h.svc = NewService(Options{
		FreeGames: h.freeGames,
		SubGames:  h.subGames,
		Articles:  h.articles,
		Tx:        h.tx,
		Registry:  h.registry,
		Preview:   preview.NewResolver(offlineClient{}),
	})
	return h
}

func offerNamed(name, providerID, providerURL string) domain.Offer {
	now := time.Now()
	return domain.Offer{
		Name:        name,
		ProviderID:  providerID,
		ProviderURL: providerURL,
		StartDate:   now,
		EndDate:     now.Add(24 * time.Hour),
	}
}

func TestRunBatchSkipsExistingOffers(t *testing.T) {
	h := newTestHarness(t)

	known := offerNamed("Known Game", domain.ProviderEpicGames, "https://example.com/known")
	_, err := h.freeGames.Insert(context.Background(), &known)
	require.NoError(t, err)

	h.registry.RegisterBatch(&fakeBatch{
		id:     "epic_games",
		kind:   domain.KindFreeGame,
		policy: domain.PolicySkipOnExists,
		offers: []domain.Offer{
			offerNamed("Known Game", domain.ProviderEpicGames, "https://example.com/known"),
			offerNamed("New Game", domain.ProviderEpicGames, "https://example.com/new"),
		},
	})

	tally, err := h.svc.RunBatch(context.Background(), "epic_games")
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Total)
	assert.Equal(t, 1, tally.Added)
	assert.Equal(t, 1, tally.Skipped)
	assert.Len(t, h.freeGames.offers, 2)
}

func TestRunBatchUpdateOnExistsPreservesID(t *testing.T) {
	h := newTestHarness(t)

	known := offerNamed("Rotating Game", domain.ProviderEpicGames, "https://example.com/rotating")
	id, err := h.freeGames.Insert(context.Background(), &known)
	require.NoError(t, err)

	refreshed := offerNamed("Rotating Game", domain.ProviderEpicGames, "https://example.com/rotating")
	refreshed.Description = "refreshed copy"

	h.registry.RegisterBatch(&fakeBatch{
		id:     "epic_games",
		kind:   domain.KindFreeGame,
		policy: domain.PolicyUpdateOnExists,
		offers: []domain.Offer{refreshed},
	})

	tally, err := h.svc.RunBatch(context.Background(), "epic_games")
	require.NoError(t, err)

	assert.Equal(t, 1, tally.Updated)
	assert.Equal(t, 0, tally.Added)
	require.Len(t, h.freeGames.updates, 1)
	assert.Equal(t, id, h.freeGames.updates[0].ID)
	assert.Equal(t, "refreshed copy", h.freeGames.updates[0].Description)
}

func TestRunBatchReplaceBatchSkipsKnownSnapshot(t *testing.T) {
	h := newTestHarness(t)

	known := offerNamed("Choice One", domain.ProviderHumbleBundle, "https://example.com/choice-one")
	_, err := h.subGames.Insert(context.Background(), &known)
	require.NoError(t, err)

	h.registry.RegisterBatch(&fakeBatch{
		id:     "humble_choice",
		kind:   domain.KindSubscriptionGame,
		policy: domain.PolicyReplaceBatch,
		offers: []domain.Offer{
			offerNamed("Choice One", domain.ProviderHumbleBundle, "https://example.com/choice-one"),
			offerNamed("Choice Two", domain.ProviderHumbleBundle, "https://example.com/choice-two"),
		},
	})

	tally, err := h.svc.RunBatch(context.Background(), "humble_choice")
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Skipped)
	assert.Equal(t, 0, tally.Added)
	assert.Empty(t, h.subGames.deleted)
	assert.Len(t, h.subGames.offers, 1)
}

func TestRunBatchReplaceBatchPurgesAndInserts(t *testing.T) {
	h := newTestHarness(t)

	stale := offerNamed("Last Month", domain.ProviderHumbleBundle, "https://example.com/last-month")
	_, err := h.subGames.Insert(context.Background(), &stale)
	require.NoError(t, err)

	h.registry.RegisterBatch(&fakeBatch{
		id:     "humble_choice",
		kind:   domain.KindSubscriptionGame,
		policy: domain.PolicyReplaceBatch,
		offers: []domain.Offer{
			offerNamed("Choice One", domain.ProviderHumbleBundle, "https://example.com/choice-one"),
			offerNamed("Choice Two", domain.ProviderHumbleBundle, "https://example.com/choice-two"),
		},
	})

	tally, err := h.svc.RunBatch(context.Background(), "humble_choice")
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Added)
	assert.Equal(t, []string{domain.ProviderHumbleBundle}, h.subGames.deleted)
	require.Len(t, h.subGames.offers, 2)
	assert.Equal(t, "Choice One", h.subGames.offers[0].Name)
}

func TestRunBatchReplaceBatchAbortsOnInsertFailure(t *testing.T) {
	h := newTestHarness(t)

	// A single bad row aborts the transaction; the snapshot must not be
	// reported as partially stored.
	h.subGames.failInsertName = "Choice Two"

	h.registry.RegisterBatch(&fakeBatch{
		id:     "humble_choice",
		kind:   domain.KindSubscriptionGame,
		policy: domain.PolicyReplaceBatch,
		offers: []domain.Offer{
			offerNamed("Choice One", domain.ProviderHumbleBundle, "https://example.com/choice-one"),
			offerNamed("Choice Two", domain.ProviderHumbleBundle, "https://example.com/choice-two"),
		},
	})

	tally, err := h.svc.RunBatch(context.Background(), "humble_choice")
	require.Error(t, err)

	assert.Equal(t, 0, tally.Added)
	assert.True(t, h.tx.rolledBack)
}

func TestRunBatchDedupByNameAndProvider(t *testing.T) {
	h := newTestHarness(t)

	known := offerNamed("Prime Drop", domain.ProviderAmazonGames, "https://example.com/old-url")
	_, err := h.subGames.Insert(context.Background(), &known)
	require.NoError(t, err)

	// The same title comes back under a different URL; the name keyed
	// lookup still treats it as known.
	h.registry.RegisterBatch(&fakeBatch{
		id:     "amazon_games",
		kind:   domain.KindSubscriptionGame,
		policy: domain.PolicySkipOnExists,
		dedup:  adapters.DedupByNameAndProvider,
		offers: []domain.Offer{offerNamed("Prime Drop", domain.ProviderAmazonGames, "https://example.com/new-url")},
	})

	tally, err := h.svc.RunBatch(context.Background(), "amazon_games")
	require.NoError(t, err)

	assert.Equal(t, 1, tally.Skipped)
	assert.Len(t, h.subGames.offers, 1)
}

func TestRunBatchUnknownAdapter(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.RunBatch(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSubmitGameLinkStoresFreeGame(t *testing.T) {
	h := newTestHarness(t)

	resolved := offerNamed("Sample Shooter", domain.ProviderSteam, "https://store.steampowered.com/app/440/")
	h.registry.RegisterLink(domain.ProviderSteam, &fakeLink{id: domain.ProviderSteam, offer: &resolved})

	offer, err := h.svc.SubmitGameLink(context.Background(), "https://store.steampowered.com/app/440/Sample_Shooter/")
	require.NoError(t, err)

	assert.NotZero(t, offer.ID)
	assert.Equal(t, "Sample Shooter", offer.Name)
	assert.Len(t, h.freeGames.offers, 1)
}

func TestSubmitGameLinkRejectsDuplicate(t *testing.T) {
	h := newTestHarness(t)

	resolved := offerNamed("Sample Shooter", domain.ProviderSteam, "https://store.steampowered.com/app/440/")
	h.registry.RegisterLink(domain.ProviderSteam, &fakeLink{id: domain.ProviderSteam, offer: &resolved})

	_, err := h.svc.SubmitGameLink(context.Background(), "https://store.steampowered.com/app/440/")
	require.NoError(t, err)

	_, err = h.svc.SubmitGameLink(context.Background(), "https://store.steampowered.com/app/440/")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSubmitGameLinkRejectsEpicLinks(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.SubmitGameLink(context.Background(), "https://store.epicgames.com/en-US/p/some-game")
	assert.ErrorIs(t, err, ErrEpicLinksNotSupported)
}

func TestSubmitGameLinkRejectsUnsupportedLinks(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.SubmitGameLink(context.Background(), "https://example.com/not-a-store")
	assert.ErrorIs(t, err, links.ErrUnsupportedLink)
}

func TestSubmitArticleStoresWithVisibilityWindow(t *testing.T) {
	h := newTestHarness(t)

	fixed := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }

	article, err := h.svc.SubmitArticle(context.Background(), "https://gleam.io/abc/giveaway")
	require.NoError(t, err)

	assert.NotZero(t, article.ID)
	assert.Equal(t, "gleam.io", article.Domain)
	assert.True(t, article.StartDate.Equal(fixed))
	assert.True(t, article.EndDate.Equal(fixed.Add(articleVisibilityWindow)))
}

func TestSubmitArticleRejectsDisallowedDomain(t *testing.T) {
	h := newTestHarness(t)
	_, err := h.svc.SubmitArticle(context.Background(), "https://example.com/article")
	assert.ErrorIs(t, err, preview.ErrDomainNotAllowed)
}

func TestSubmitArticleRejectsDuplicate(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.svc.SubmitArticle(context.Background(), "https://gleam.io/abc/giveaway")
	require.NoError(t, err)

	_, err = h.svc.SubmitArticle(context.Background(), "https://gleam.io/abc/giveaway")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRunArticleSourceSkipsSeenLinks(t *testing.T) {
	h := newTestHarness(t)

	seen, err := seencache.Open(filepath.Join(t.TempDir(), "seen.db"), seencache.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { seen.Close() })
	h.svc.seen = seen

	require.NoError(t, seen.Mark("https://gleam.io/seen/giveaway"))

	h.registry.RegisterSource(&fakeSource{
		id: "reddit",
		links: []string{
			"https://gleam.io/seen/giveaway",
			"https://gleam.io/fresh/giveaway",
		},
	})

	tally, err := h.svc.RunArticleSource(context.Background(), "reddit")
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Total)
	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 1, tally.Added)
	assert.Len(t, h.articles.articles, 1)

	// The fresh link is marked so the next run skips it before fetching.
	marked, err := seen.Seen("https://gleam.io/fresh/giveaway")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestRunArticleSourceCountsDuplicatesAsSkipped(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.svc.SubmitArticle(context.Background(), "https://gleam.io/abc/giveaway")
	require.NoError(t, err)

	h.registry.RegisterSource(&fakeSource{
		id:    "reddit",
		links: []string{"https://gleam.io/abc/giveaway"},
	})

	tally, err := h.svc.RunArticleSource(context.Background(), "reddit")
	require.NoError(t, err)

	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 0, tally.Added)
}

func TestAvailabilityReadsFilterByWindow(t *testing.T) {
	h := newTestHarness(t)

	fixed := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }

	live := offerNamed("Live Game", domain.ProviderSteam, "https://example.com/live")
	live.StartDate = fixed.Add(-time.Hour)
	live.EndDate = fixed.Add(time.Hour)
	expired := offerNamed("Expired Game", domain.ProviderSteam, "https://example.com/expired")
	expired.StartDate = fixed.Add(-48 * time.Hour)
	expired.EndDate = fixed.Add(-24 * time.Hour)

	_, err := h.freeGames.Insert(context.Background(), &live)
	require.NoError(t, err)
	_, err = h.freeGames.Insert(context.Background(), &expired)
	require.NoError(t, err)

	games, err := h.svc.FreeGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Live Game", games[0].Name)
}

func TestAvailabilityReadsIncludeWindowBoundaries(t *testing.T) {
	h := newTestHarness(t)

	fixed := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }

	// Both window boundaries are inclusive.
	starting := offerNamed("Starting Now", domain.ProviderSteam, "https://example.com/starting")
	starting.StartDate = fixed
	starting.EndDate = fixed.Add(24 * time.Hour)
	ending := offerNamed("Ending Now", domain.ProviderSteam, "https://example.com/ending")
	ending.StartDate = fixed.Add(-24 * time.Hour)
	ending.EndDate = fixed
	upcoming := offerNamed("Upcoming", domain.ProviderSteam, "https://example.com/upcoming")
	upcoming.StartDate = fixed.Add(time.Second)
	upcoming.EndDate = fixed.Add(24 * time.Hour)

	for _, offer := range []*domain.Offer{&starting, &ending, &upcoming} {
		_, err := h.freeGames.Insert(context.Background(), offer)
		require.NoError(t, err)
	}

	games, err := h.svc.FreeGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Starting Now", games[0].Name)
	assert.Equal(t, "Ending Now", games[1].Name)
}
