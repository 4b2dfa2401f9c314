package store

import (
	"context"
	"fmt"
)

// DefaultSearchLimit bounds Search when no positive limit is given.
const DefaultSearchLimit = 50

// topCategoryCount is how many level-1 categories Stats reports.
const topCategoryCount = 10

// Stats summarizes the whole product set.
type Stats struct {
	TotalProducts  int             `json:"total_products"`
	AvgPrice       float64         `json:"avg_price"`
	MinPrice       float64         `json:"min_price"`
	MaxPrice       float64         `json:"max_price"`
	AvgAPK         float64         `json:"avg_apk"`
	PriceIncreases int             `json:"price_increases"`
	PriceDecreases int             `json:"price_decreases"`
	PriceStable    int             `json:"price_stable"`
	TopCategories  []CategoryStats `json:"top_categories"`
	BestValue      []Product       `json:"best_value"`
}

// CategoryStats aggregates one level-1 category.
type CategoryStats struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avg_price"`
	AvgAPK   float64 `json:"avg_apk"`
}

// Stats computes fleet statistics. topN bounds the best-value list.
func (s *Store) Stats(ctx context.Context, topN int) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(price), 0),
			COALESCE(MIN(price), 0),
			COALESCE(MAX(price), 0),
			COALESCE(AVG(apk), 0),
			COUNT(CASE WHEN price_change_percent > 0 THEN 1 END),
			COUNT(CASE WHEN price_change_percent < 0 THEN 1 END),
			COUNT(CASE WHEN price_change_percent = 0 THEN 1 END)
		FROM products
	`).Scan(
		&st.TotalProducts, &st.AvgPrice, &st.MinPrice, &st.MaxPrice, &st.AvgAPK,
		&st.PriceIncreases, &st.PriceDecreases, &st.PriceStable,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	if st.TopCategories, err = s.topCategories(ctx); err != nil {
		return Stats{}, err
	}
	if st.BestValue, err = s.bestValue(ctx, topN); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *Store) topCategories(ctx context.Context) ([]CategoryStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_level1, COUNT(*), COALESCE(AVG(price), 0), COALESCE(AVG(apk), 0)
		FROM products
		WHERE category_level1 <> ''
		GROUP BY category_level1
		ORDER BY COUNT(*) DESC, category_level1 ASC
		LIMIT ?
	`, topCategoryCount)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	cats := []CategoryStats{}
	for rows.Next() {
		var c CategoryStats
		if err := rows.Scan(&c.Category, &c.Count, &c.AvgPrice, &c.AvgAPK); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

func (s *Store) bestValue(ctx context.Context, topN int) ([]Product, error) {
	if topN <= 0 {
		return []Product{}, nil
	}
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE apk IS NOT NULL AND apk > 0
		ORDER BY apk DESC, product_id ASC
		LIMIT ?
	`, topN)
}

// Search returns products whose bold name, thin name or producer contains
// query, ignoring case and diacritics. Results are ordered by APK, best
// first, with unpriced products last.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE search_text LIKE ? ESCAPE '\'
		ORDER BY apk DESC, product_id ASC
		LIMIT ?
	`, likePattern(searchKey(query)), limit)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
