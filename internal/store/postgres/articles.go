package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

// ArticleStore persists giveaway articles.
type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// Insert stores a new article and returns its generated id.
func (s *ArticleStore) Insert(ctx context.Context, article *domain.Article) (int64, error) {
	query := `
		INSERT INTO articles (title, description, cover, link, domain, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err := getExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		article.Title,
		article.Description,
		article.Cover,
		article.Link,
		article.Domain,
		article.StartDate,
		article.EndDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// ExistsByLink reports whether an article with this external link is stored.
func (s *ArticleStore) ExistsByLink(ctx context.Context, link string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM articles WHERE link = $1)`
	if err := sqlx.GetContext(ctx, getExecutor(ctx, s.db), &exists, query, link); err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// ListAvailable returns articles whose visibility window contains now, both
// boundaries inclusive, soonest-expiring first.
func (s *ArticleStore) ListAvailable(ctx context.Context, now time.Time) ([]domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE start_date <= $1 AND end_date >= $1
		ORDER BY end_date ASC`

	var articles []domain.Article
	if err := sqlx.SelectContext(ctx, getExecutor(ctx, s.db), &articles, query, now); err != nil {
		return nil, fmt.Errorf("select available articles: %w", err)
	}
	return articles, nil
}
