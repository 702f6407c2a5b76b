package domain

import "time"

// Domain contains the persisted record shapes and the fixed vocabularies
// shared by the adapters, the ingest gate, and the read queries.

// Provider ids persisted in the provider_id column.
const (
	ProviderSteam        = "steam"
	ProviderGOG          = "gog"
	ProviderEpicGames    = "epic_games"
	ProviderHumbleBundle = "humble_bundle"
	ProviderAmazonGames  = "amazon_games"
	ProviderPlayStation  = "playstation"
	ProviderOrigin       = "origin"
	ProviderBattle       = "battle"
	ProviderNone         = "none"
)

// Platform tags persisted in the platform_ids column.
const (
	PlatformWindows        = "windows"
	PlatformMacOS          = "mac_os"
	PlatformLinux          = "linux"
	PlatformPS4            = "ps4"
	PlatformPS5            = "ps5"
	PlatformXboxOne        = "xbox_one"
	PlatformXboxSeries     = "xbox_series"
	PlatformNintendoSwitch = "nintendo_switch"
)

// OfferKind selects the table an offer is stored in.
type OfferKind string

const (
	KindFreeGame         OfferKind = "free_game"
	KindSubscriptionGame OfferKind = "subscription_game"
)

// DedupPolicy decides what happens when an incoming offer already exists.
// The variation is deliberate: rotating catalogs (Epic) revisit the same
// slugs and need updates, monthly snapshots (Humble Choice) replace the
// whole prior batch, everything else skips.
type DedupPolicy string

const (
	PolicySkipOnExists   DedupPolicy = "skip-on-exists"
	PolicyUpdateOnExists DedupPolicy = "update-on-exists"
	PolicyReplaceBatch   DedupPolicy = "replace-batch"
)

// Offer is a free-to-claim or subscription game listing normalized from one
// of the provider adapters. Free is only meaningful for KindFreeGame rows.
type Offer struct {
	ID            int64      `db:"id"`
	Name          string     `db:"name"`
	Cover         string     `db:"cover"`
	CoverPortrait string     `db:"cover_portrait"`
	Description   string     `db:"description"`
	Developer     string     `db:"developer"`
	Publisher     *string    `db:"publisher"`
	PlatformIDs   []string   `db:"-"`
	ProviderID    string     `db:"provider_id"`
	ProviderURL   string     `db:"provider_url"`
	StartDate     time.Time  `db:"start_date"`
	EndDate       time.Time  `db:"end_date"`
	Free          bool       `db:"free"`
	ReleaseDate   *time.Time `db:"release_date"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at"`
}

// Article is a giveaway article submitted by a user or harvested from Reddit.
type Article struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Cover       string     `db:"cover"`
	Link        string     `db:"link"`
	Domain      string     `db:"domain"`
	StartDate   time.Time  `db:"start_date"`
	EndDate     time.Time  `db:"end_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// Tally summarizes one adapter run. Per-item failures are recorded here and
// never abort the batch; a whole-adapter failure is returned as an error by
// the caller instead.
type Tally struct {
	Total   int      `json:"total"`
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// RecordError notes a per-item failure against the tally.
func (t *Tally) RecordError(subject string, err error) {
	t.Failed++
	t.Errors = append(t.Errors, subject+": "+err.Error())
}
