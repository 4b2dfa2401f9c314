// Package store provides SQLite-backed durable storage for product state and
// price history.
//
// The store holds three tables:
//   - products: current denormalized state, one row per product id
//   - price_history: append-only price observations (the ledger)
//   - sync_runs: one summary row per finished sync run
//
// # Invariants
//
// Append-only ledger:
//   - price_history rows are never updated or deleted (enforced by triggers)
//   - products rows are never deleted (enforced by trigger)
//   - per product, observed_at is non-decreasing in append order
//
// Deterministic ordering:
//   - ledger queries ORDER BY observed_at ASC, id ASC
//   - the first row in that order is the product's baseline price
//
// Atomic product writes:
//   - Update runs a callback inside one transaction; ledger append and
//     record insert/update for one product commit or roll back together
//
// # Database Configuration
//
//   - WAL mode: report queries keep reading while a sync writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: history rows must reference a product
//   - one open connection: the store is the single writer
//
// Schema changes are embedded migrations applied with golang-migrate on Open.
package store
