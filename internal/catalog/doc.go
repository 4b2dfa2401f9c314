// Package catalog models the external product catalog: the typed
// ProductSnapshot observed on each fetch, its validation, and the paginated
// sources that produce snapshots.
//
// Snapshots are built from the wire payload at the boundary. Absent numeric
// fields become 0 and a time-qualified launch date is cut down to its calendar
// date, so nothing downstream ever sees the raw payload shape.
package catalog
