package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/systemet/internal/catalog"
	"github.com/roach88/systemet/internal/store"
	"github.com/roach88/systemet/internal/valuation"
)

// Clock supplies observation timestamps.
// Implemented by SystemClock (production) and testutil.DeterministicClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Engine reconciles snapshots into a store.
type Engine struct {
	store  *store.Store
	clock  Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp ledger entries.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine writing to s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReconcileSnapshot applies one snapshot.
//
// A snapshot without an id returns OutcomeSkipped and a snapshot that fails
// validation returns OutcomeInvalid with its *catalog.ValidationError; neither
// touches storage. Any other error means the product's transaction was rolled
// back and nothing about it changed.
func (e *Engine) ReconcileSnapshot(ctx context.Context, snap catalog.ProductSnapshot) (Change, error) {
	change := Change{
		ProductID: snap.ID,
		Name:      snap.DisplayName(),
		NewPrice:  snap.Price,
	}

	if snap.ID == "" {
		change.Outcome = OutcomeSkipped
		return change, nil
	}
	if err := catalog.Validate(snap); err != nil {
		change.Outcome = OutcomeInvalid
		return change, err
	}

	now := e.clock.Now()
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		current, err := tx.GetProduct(ctx, snap.ID)
		if errors.Is(err, store.ErrNotFound) {
			return e.insert(ctx, tx, snap, now, &change)
		}
		if err != nil {
			return err
		}
		return e.update(ctx, tx, snap, current, now, &change)
	})
	if err != nil {
		return change, err
	}
	return change, nil
}

func (e *Engine) insert(ctx context.Context, tx *store.Tx, snap catalog.ProductSnapshot, now time.Time, change *Change) error {
	apk := valuation.APKPtr(snap.VolumeML, snap.AlcoholPercent, snap.Price)

	// The record goes first: ledger rows reference it.
	p := store.Product{
		ID:                    snap.ID,
		ProductNumber:         snap.ProductNumber,
		ProductNumberShort:    snap.ProductNumberShort,
		NameBold:              snap.NameBold,
		NameThin:              snap.NameThin,
		Producer:              snap.Producer,
		Supplier:              snap.Supplier,
		Category:              snap.Category,
		Country:               snap.Country,
		LaunchDate:            snap.LaunchDate,
		TemporarilyOutOfStock: snap.TemporarilyOutOfStock,
		CompletelyOutOfStock:  snap.CompletelyOutOfStock,
		Price:                 snap.Price,
		LastUpdatedAt:         now,
		PriceChangePercent:    0,
		VolumeML:              snap.VolumeML,
		AlcoholPercent:        snap.AlcoholPercent,
		APK:                   apk,
	}
	if err := tx.InsertProduct(ctx, p); err != nil {
		return err
	}
	entry, err := tx.AppendHistory(ctx, snap.ID, snap.Price, now)
	if err != nil {
		return err
	}

	change.Outcome = OutcomeInserted
	change.APK = apk
	change.ObservedAt = entry.ObservedAt
	return nil
}

func (e *Engine) update(ctx context.Context, tx *store.Tx, snap catalog.ProductSnapshot, current store.Product, now time.Time, change *Change) error {
	change.OldPrice = current.Price
	if valuation.PricesEqual(snap.Price, current.Price) {
		change.Outcome = OutcomeUnchanged
		change.PriceChangePercent = current.PriceChangePercent
		change.APK = current.APK
		change.ObservedAt = current.LastUpdatedAt
		return nil
	}

	baseline, ok, err := tx.FirstPrice(ctx, snap.ID)
	if err != nil {
		return err
	}
	if !ok {
		baseline = snap.Price
	}

	pct := valuation.PriceChangePercent(snap.Price, baseline)
	apk := valuation.APKPtr(snap.VolumeML, snap.AlcoholPercent, snap.Price)

	entry, err := tx.AppendHistory(ctx, snap.ID, snap.Price, now)
	if err != nil {
		return err
	}

	err = tx.UpdateProduct(ctx, snap.ID, store.ProductUpdate{
		Price:                 snap.Price,
		LastUpdatedAt:         entry.ObservedAt,
		PriceChangePercent:    pct,
		APK:                   apk,
		TemporarilyOutOfStock: snap.TemporarilyOutOfStock,
		CompletelyOutOfStock:  snap.CompletelyOutOfStock,
		VolumeML:              snap.VolumeML,
		AlcoholPercent:        snap.AlcoholPercent,
		LaunchDate:            snap.LaunchDate,
	})
	if err != nil {
		return err
	}

	change.Outcome = OutcomeUpdated
	change.PriceChangePercent = pct
	change.APK = apk
	change.ObservedAt = entry.ObservedAt
	return nil
}

// Reconcile applies a batch in order. A snapshot id repeated within the batch
// is applied each time, so the last occurrence wins.
//
// Per-snapshot problems are collected in the result and never stop the
// batch. The only error is ctx's, returned with the partial result when the
// context is cancelled between snapshots.
func (e *Engine) Reconcile(ctx context.Context, batch []catalog.ProductSnapshot) (BatchResult, error) {
	var result BatchResult

	for _, snap := range batch {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		change, err := e.ReconcileSnapshot(ctx, snap)
		if err != nil {
			var verr *catalog.ValidationError
			switch {
			case errors.As(err, &verr):
				e.logger.Warn("skipping invalid product",
					"product_id", snap.ID,
					"error", verr.Error())
				result.Warnings = append(result.Warnings, Warning{ProductID: snap.ID, Reason: verr.Error()})
				result.record(change)
			case ctx.Err() != nil:
				return result, ctx.Err()
			default:
				e.logger.Error("product reconciliation failed",
					"product_id", snap.ID,
					"error", err)
				result.Failures = append(result.Failures, Failure{ProductID: snap.ID, Err: err})
			}
			continue
		}

		if change.Outcome == OutcomeSkipped {
			e.logger.Warn("skipping product without id", "name", change.Name)
			result.Warnings = append(result.Warnings, Warning{Reason: "missing product id"})
		}
		if change.Outcome == OutcomeInserted || change.Outcome == OutcomeUpdated {
			e.logger.Debug("product reconciled",
				"product_id", change.ProductID,
				"outcome", change.Outcome.String(),
				"old_price", change.OldPrice,
				"new_price", change.NewPrice)
		}
		result.record(change)
	}

	return result, nil
}
