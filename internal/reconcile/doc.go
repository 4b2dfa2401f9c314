// Package reconcile folds catalog snapshots into stored product state.
//
// For each snapshot the engine decides whether the product is new, changed
// or unchanged, and writes the result in a single store transaction:
//
//   - new: insert the record (change 0.0) and append the first ledger entry
//   - changed: append a ledger entry and update the record, recomputing the
//     percent change against the product's first ledger price and the APK
//   - unchanged (price within valuation.PriceEpsilon): no writes at all
//
// Because unchanged prices are no-ops, reconciling the same batch twice
// leaves the store exactly as one pass did.
//
// Snapshots without an id are skipped; snapshots that fail validation are
// skipped with a warning. A storage error rolls back that one product and is
// reported as a Failure while the rest of the batch proceeds.
//
// Engine is not safe for concurrent use. The store is the single writer.
package reconcile
