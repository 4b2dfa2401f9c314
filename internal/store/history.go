package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HistoryEntry is one immutable price observation.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	ProductID  string    `json:"product_id"`
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// AppendHistory adds one price observation for a product and returns it as
// stored. If at is earlier than the product's latest observation, the entry
// is stamped with that latest time instead, so per-product timestamps never
// go backwards even when the wall clock does.
func (t *Tx) AppendHistory(ctx context.Context, productID string, price float64, at time.Time) (HistoryEntry, error) {
	at = at.UTC()

	var latest sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT MAX(observed_at) FROM price_history WHERE product_id = ?
	`, productID).Scan(&latest)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("append history %s: latest: %w", productID, err)
	}
	if latest.Valid {
		lt, err := parseTime(latest.String)
		if err != nil {
			return HistoryEntry{}, fmt.Errorf("append history %s: %w", productID, err)
		}
		if lt.After(at) {
			at = lt
		}
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO price_history (product_id, price, observed_at)
		VALUES (?, ?, ?)
	`, productID, price, formatTime(at))
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("append history %s: %w", productID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("append history %s: last insert id: %w", productID, err)
	}

	return HistoryEntry{ID: id, ProductID: productID, Price: price, ObservedAt: at}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func firstPrice(ctx context.Context, q queryRower, productID string) (float64, bool, error) {
	var price float64
	err := q.QueryRowContext(ctx, `
		SELECT price FROM price_history
		WHERE product_id = ?
		ORDER BY observed_at ASC, id ASC
		LIMIT 1
	`, productID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("first price %s: %w", productID, err)
	}
	return price, true, nil
}

// FirstPrice returns the baseline (earliest) price for a product.
// ok is false when the product has no history.
func (t *Tx) FirstPrice(ctx context.Context, productID string) (price float64, ok bool, err error) {
	return firstPrice(ctx, t.tx, productID)
}

// FirstPrice returns the baseline (earliest) price for a product.
// ok is false when the product has no history.
func (s *Store) FirstPrice(ctx context.Context, productID string) (price float64, ok bool, err error) {
	return firstPrice(ctx, s.db, productID)
}

// HistorySince returns a product's observations at or after cutoff, oldest
// first. Returns an empty slice (not nil) when there are none.
func (s *Store) HistorySince(ctx context.Context, productID string, cutoff time.Time) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, price, observed_at
		FROM price_history
		WHERE product_id = ? AND observed_at >= ?
		ORDER BY observed_at ASC, id ASC
	`, productID, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var observed string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &observed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}

// History returns every observation for a product, oldest first.
func (s *Store) History(ctx context.Context, productID string) ([]HistoryEntry, error) {
	return s.HistorySince(ctx, productID, time.Time{})
}

// CountHistory returns the total number of ledger entries.
func (s *Store) CountHistory(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}
