package reconcile

import (
	"fmt"
	"time"
)

// Outcome is what reconciling one snapshot did.
type Outcome int

const (
	// OutcomeUnchanged means the stored price matched; nothing was written.
	OutcomeUnchanged Outcome = iota

	// OutcomeInserted means a new product record and its first ledger entry
	// were written.
	OutcomeInserted

	// OutcomeUpdated means a ledger entry was appended and the record updated.
	OutcomeUpdated

	// OutcomeSkipped means the snapshot had no product id.
	OutcomeSkipped

	// OutcomeInvalid means the snapshot failed validation.
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Change describes the effect of one reconciled snapshot.
// OldPrice is zero for inserts.
type Change struct {
	ProductID          string    `json:"product_id"`
	Name               string    `json:"name"`
	Outcome            Outcome   `json:"outcome"`
	OldPrice           float64   `json:"old_price"`
	NewPrice           float64   `json:"new_price"`
	PriceChangePercent float64   `json:"price_change_percent"`
	APK                *float64  `json:"apk"`
	ObservedAt         time.Time `json:"observed_at"`
}

// String renders the change the way the CLI change log prints it.
func (c Change) String() string {
	switch c.Outcome {
	case OutcomeInserted:
		return fmt.Sprintf("%s: new at %.2f kr", c.Name, c.NewPrice)
	case OutcomeUpdated:
		return fmt.Sprintf("%s: %.2f kr -> %.2f kr (%+.1f%%)", c.Name, c.OldPrice, c.NewPrice, c.PriceChangePercent)
	default:
		return fmt.Sprintf("%s: %s", c.Name, c.Outcome)
	}
}

// Failure records a snapshot whose transaction was rolled back.
type Failure struct {
	ProductID string
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("reconcile %s: %v", f.ProductID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Warning records a snapshot that was skipped without touching storage.
type Warning struct {
	ProductID string
	Reason    string
}

// BatchResult is the per-batch change log and counters.
type BatchResult struct {
	// Changes lists inserted and updated products in batch order.
	Changes []Change

	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Invalid   int

	Failures []Failure
	Warnings []Warning
}

// Processed returns how many snapshots the batch accounted for.
func (r BatchResult) Processed() int {
	return r.Inserted + r.Updated + r.Unchanged + r.Skipped + r.Invalid + len(r.Failures)
}

// Merge appends other's log and adds its counters to r.
func (r *BatchResult) Merge(other BatchResult) {
	r.Changes = append(r.Changes, other.Changes...)
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Skipped += other.Skipped
	r.Invalid += other.Invalid
	r.Failures = append(r.Failures, other.Failures...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

func (r *BatchResult) record(c Change) {
	switch c.Outcome {
	case OutcomeInserted:
		r.Inserted++
		r.Changes = append(r.Changes, c)
	case OutcomeUpdated:
		r.Updated++
		r.Changes = append(r.Changes, c)
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeInvalid:
		r.Invalid++
	}
}
