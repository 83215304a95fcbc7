// Package index implements the persisted path -> (min_time, max_time)
// mapping: the IndexStore component. Two variants exist behind the same
// Store interface: a local single-process sqlite store, and an NFS-safe
// decorator that wraps it with an external advisory lock.
package index

// Row is one persisted index entry. Times are epoch seconds.
type Row struct {
	Path    string
	MinTime float64
	MaxTime float64
}

// Store is the capability set both index variants implement: add, remove,
// indexed, query, clean, close. The NFS variant composes the local one
// with a lock decorator rather than inheriting from it.
type Store interface {
	// Add inserts a row. A path already present is a caller error
	// (tferrors.ErrDuplicatePath).
	Add(path string, minTime, maxTime float64) error

	// Remove deletes a row by path. No-op if the path is absent.
	Remove(path string) error

	// Indexed reports whether path already has a row.
	Indexed(path string) (bool, error)

	// Query returns rows overlapping [begin, end]; a nil bound is
	// unbounded on that side.
	Query(begin, end *float64) ([]Row, error)

	// Clean removes rows whose path no longer exists on disk.
	Clean() error

	// Close releases underlying resources.
	Close() error
}
