// Package tferrors holds the sentinel error kinds the resolver surfaces to
// callers. See section 7 of the design for the propagation policy: fatal
// kinds are returned unchanged, extraction failures and store-lock
// contention are recovered internally and never reach this layer.
package tferrors

import "errors"

var (
	// ErrConfigInvalid covers malformed configuration: missing required
	// fields, duplicate index paths across data sources, and similar.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrExtractorUnknown is returned when a descriptor names an extractor
	// that isn't registered.
	ErrExtractorUnknown = errors.New("unknown extractor")

	// ErrIndexMissingAttrs is returned when a descriptor is used for
	// indexed resolution but lacks index_type or index_path.
	ErrIndexMissingAttrs = errors.New("descriptor missing index_type or index_path")

	// ErrIndexerFailed covers a non-zero exit or unparseable output from
	// an external indexer subprocess. Fatal to the current index run.
	ErrIndexerFailed = errors.New("indexer subprocess failed")

	// ErrIndexIO covers a missing index file at query time, or any other
	// I/O failure while opening or reading the backing store.
	ErrIndexIO = errors.New("index I/O error")

	// ErrDuplicatePath is the caller error raised by Store.Add when a path
	// is already present in the index.
	ErrDuplicatePath = errors.New("path already indexed")
)
