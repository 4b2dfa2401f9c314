package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Product is the persisted current state of one catalog product.
type Product struct {
	ID                 string    `json:"product_id"`
	ProductNumber      string    `json:"product_number"`
	ProductNumberShort string    `json:"product_number_short"`
	NameBold           string    `json:"name_bold"`
	NameThin           string    `json:"name_thin"`
	Producer           string    `json:"producer"`
	Supplier           string    `json:"supplier"`
	Category           [3]string `json:"category"`
	Country            string    `json:"country"`
	LaunchDate         string    `json:"launch_date"`

	TemporarilyOutOfStock bool `json:"temporarily_out_of_stock"`
	CompletelyOutOfStock  bool `json:"completely_out_of_stock"`

	Price              float64   `json:"price"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
	PriceChangePercent float64   `json:"price_change_percent"`

	VolumeML       float64  `json:"volume_ml"`
	AlcoholPercent float64  `json:"alcohol_percent"`
	APK            *float64 `json:"apk"`
}

// DisplayName joins the bold and thin name parts.
func (p Product) DisplayName() string {
	if p.NameThin == "" {
		return p.NameBold
	}
	if p.NameBold == "" {
		return p.NameThin
	}
	return p.NameBold + " " + p.NameThin
}

// ProductUpdate carries the mutable fields of a product. Identity, names,
// producer, supplier, categories and country are fixed at insert.
type ProductUpdate struct {
	Price                 float64
	LastUpdatedAt         time.Time
	PriceChangePercent    float64
	APK                   *float64
	TemporarilyOutOfStock bool
	CompletelyOutOfStock  bool
	VolumeML              float64
	AlcoholPercent        float64
	LaunchDate            string
}

const productColumns = `
	product_id, product_number, product_number_short, name_bold, name_thin,
	producer, supplier, category_level1, category_level2, category_level3,
	country, launch_date, temporarily_out_of_stock, completely_out_of_stock,
	price, last_updated_at, price_change_percent, volume_ml, alcohol_percent, apk`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var lastUpdated string
	var apk sql.NullFloat64

	if err := row.Scan(
		&p.ID, &p.ProductNumber, &p.ProductNumberShort, &p.NameBold, &p.NameThin,
		&p.Producer, &p.Supplier, &p.Category[0], &p.Category[1], &p.Category[2],
		&p.Country, &p.LaunchDate, &p.TemporarilyOutOfStock, &p.CompletelyOutOfStock,
		&p.Price, &lastUpdated, &p.PriceChangePercent, &p.VolumeML, &p.AlcoholPercent, &apk,
	); err != nil {
		return Product{}, err
	}

	t, err := parseTime(lastUpdated)
	if err != nil {
		return Product{}, err
	}
	p.LastUpdatedAt = t
	if apk.Valid {
		v := apk.Float64
		p.APK = &v
	}
	return p, nil
}

func getProduct(ctx context.Context, q queryRower, id string) (Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// GetProduct returns the current state of a product, or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (Product, error) {
	return getProduct(ctx, s.db, id)
}

// GetProduct returns the current state of a product, or ErrNotFound.
func (t *Tx) GetProduct(ctx context.Context, id string) (Product, error) {
	return getProduct(ctx, t.tx, id)
}

// InsertProduct stores a new product. Returns ErrProductExists if the id is
// already present.
func (t *Tx) InsertProduct(ctx context.Context, p Product) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.ProductNumber, p.ProductNumberShort, p.NameBold, p.NameThin,
		p.Producer, p.Supplier, p.Category[0], p.Category[1], p.Category[2],
		p.Country, p.LaunchDate, p.TemporarilyOutOfStock, p.CompletelyOutOfStock,
		p.Price, formatTime(p.LastUpdatedAt), p.PriceChangePercent, p.VolumeML, p.AlcoholPercent,
		nullFloat(p.APK),
		searchKey(p.NameBold, p.NameThin, p.Producer),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("insert product %s: %w", p.ID, ErrProductExists)
		}
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	return nil
}

// UpdateProduct overwrites the mutable fields of an existing product.
// Returns ErrNotFound if the id does not exist.
func (t *Tx) UpdateProduct(ctx context.Context, id string, u ProductUpdate) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET
			price = ?,
			last_updated_at = ?,
			price_change_percent = ?,
			apk = ?,
			temporarily_out_of_stock = ?,
			completely_out_of_stock = ?,
			volume_ml = ?,
			alcohol_percent = ?,
			launch_date = ?
		WHERE product_id = ?
	`,
		u.Price, formatTime(u.LastUpdatedAt), u.PriceChangePercent, nullFloat(u.APK),
		u.TemporarilyOutOfStock, u.CompletelyOutOfStock,
		u.VolumeML, u.AlcoholPercent, u.LaunchDate,
		id,
	)
	if err != nil {
		return fmt.Errorf("update product %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update product %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountProducts returns the number of stored products.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
