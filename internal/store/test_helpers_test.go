package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

var testEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testProduct creates a product with minimal required fields.
func testProduct(id string, price float64) Product {
	return Product{
		ID:             id,
		NameBold:       "Product " + id,
		Category:       [3]string{"Vin", "Rött vin", ""},
		Price:          price,
		LastUpdatedAt:  testEpoch,
		VolumeML:       750,
		AlcoholPercent: 13,
	}
}

// seedProduct inserts p together with one history entry at p.LastUpdatedAt.
func seedProduct(t *testing.T, s *Store, p Product) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx *Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		_, err := tx.AppendHistory(ctx, p.ID, p.Price, p.LastUpdatedAt)
		return err
	})
	if err != nil {
		t.Fatalf("seed %s: %v", p.ID, err)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
