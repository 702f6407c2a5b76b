package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

// offerRow mirrors one row of free_games / subscription_games. platform_ids
// needs pq.StringArray so it cannot scan straight into domain.Offer.
type offerRow struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	Cover         string         `db:"cover"`
	CoverPortrait string         `db:"cover_portrait"`
	Description   string         `db:"description"`
	Developer     string         `db:"developer"`
	Publisher     *string        `db:"publisher"`
	PlatformIDs   pq.StringArray `db:"platform_ids"`
	ProviderID    string         `db:"provider_id"`
	ProviderURL   string         `db:"provider_url"`
	StartDate     time.Time      `db:"start_date"`
	EndDate       time.Time      `db:"end_date"`
	Free          bool           `db:"free"`
	ReleaseDate   *time.Time     `db:"release_date"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     *time.Time     `db:"updated_at"`
}

func (r offerRow) toDomain() domain.Offer {
	return domain.Offer{
		ID:            r.ID,
		Name:          r.Name,
		Cover:         r.Cover,
		CoverPortrait: r.CoverPortrait,
		Description:   r.Description,
		Developer:     r.Developer,
		Publisher:     r.Publisher,
		PlatformIDs:   []string(r.PlatformIDs),
		ProviderID:    r.ProviderID,
		ProviderURL:   r.ProviderURL,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Free:          r.Free,
		ReleaseDate:   r.ReleaseDate,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// OfferStore persists offers in one of the two offer tables.
type OfferStore struct {
	db    *sqlx.DB
	table string
}

// NewFreeGameStore returns the store backed by the free_games table.
func NewFreeGameStore(db *sqlx.DB) *OfferStore {
	return &OfferStore{db: db, table: "free_games"}
}

// NewSubscriptionGameStore returns the store backed by the subscription_games table.
func NewSubscriptionGameStore(db *sqlx.DB) *OfferStore {
	return &OfferStore{db: db, table: "subscription_games"}
}

// Insert stores a new offer and returns its generated id.
func (s *OfferStore) Insert(ctx context.Context, offer *domain.Offer) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			name, cover, cover_portrait, description, developer, publisher,
			platform_ids, provider_id, provider_url, start_date, end_date,
			free, release_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`, s.table)

	var id int64
	err := getExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		offer.Name,
		offer.Cover,
		offer.CoverPortrait,
		offer.Description,
		offer.Developer,
		offer.Publisher,
		pq.StringArray(offer.PlatformIDs),
		offer.ProviderID,
		offer.ProviderURL,
		offer.StartDate,
		offer.EndDate,
		offer.Free,
		offer.ReleaseDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return id, nil
}

// Update replaces the mutable fields of an existing row, preserving its id.
func (s *OfferStore) Update(ctx context.Context, offer *domain.Offer) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			name = $1, cover = $2, cover_portrait = $3, description = $4,
			developer = $5, publisher = $6, platform_ids = $7, provider_id = $8,
			provider_url = $9, start_date = $10, end_date = $11, free = $12,
			release_date = $13, updated_at = CURRENT_TIMESTAMP
		WHERE id = $14`, s.table)

	_, err := getExecutor(ctx, s.db).ExecContext(ctx, query,
		offer.Name,
		offer.Cover,
		offer.CoverPortrait,
		offer.Description,
		offer.Developer,
		offer.Publisher,
		pq.StringArray(offer.PlatformIDs),
		offer.ProviderID,
		offer.ProviderURL,
		offer.StartDate,
		offer.EndDate,
		offer.Free,
		offer.ReleaseDate,
		offer.ID,
	)
	if err != nil {
		return fmt.Errorf("update %s id %d: %w", s.table, offer.ID, err)
	}
	return nil
}

// GetByProviderURL returns the offer with the given provider_url, or nil if
// none exists.
func (s *OfferStore) GetByProviderURL(ctx context.Context, providerURL string) (*domain.Offer, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE provider_url = $1 LIMIT 1`, s.table)

	var row offerRow
	err := sqlx.GetContext(ctx, getExecutor(ctx, s.db), &row, query, providerURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s by provider_url: %w", s.table, err)
	}
	offer := row.toDomain()
	return &offer, nil
}

// GetByNameAndProvider returns the offer with the given name for one
// provider, or nil. Used where the provider has no stable per-item URL.
func (s *OfferStore) GetByNameAndProvider(ctx context.Context, name, providerID string) (*domain.Offer, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 AND provider_id = $2 LIMIT 1`, s.table)

	var row offerRow
	err := sqlx.GetContext(ctx, getExecutor(ctx, s.db), &row, query, name, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s by name+provider: %w", s.table, err)
	}
	offer := row.toDomain()
	return &offer, nil
}

// ListAvailable returns offers whose availability window contains now, both
// boundaries inclusive, soonest-expiring first.
func (s *OfferStore) ListAvailable(ctx context.Context, now time.Time) ([]domain.Offer, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE start_date <= $1 AND end_date >= $1
		ORDER BY end_date ASC`, s.table)

	var rows []offerRow
	if err := sqlx.SelectContext(ctx, getExecutor(ctx, s.db), &rows, query, now); err != nil {
		return nil, fmt.Errorf("select available %s: %w", s.table, err)
	}

	offers := make([]domain.Offer, 0, len(rows))
	for _, row := range rows {
		offers = append(offers, row.toDomain())
	}
	return offers, nil
}

// DeleteByProvider removes every row belonging to a provider and reports how
// many were deleted.
func (s *OfferStore) DeleteByProvider(ctx context.Context, providerID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE provider_id = $1`, s.table)

	res, err := getExecutor(ctx, s.db).ExecContext(ctx, query, providerID)
	if err != nil {
		return 0, fmt.Errorf("delete %s by provider: %w", s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
