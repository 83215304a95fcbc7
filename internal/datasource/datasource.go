// Package datasource composes a data source's descriptors into the
// operations callers actually invoke: query, index, and clean.
package datasource

import (
	"context"
	"log/slog"

	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/internal/indexbuild"
	"github.com/watsonlog/tfresolve/internal/resolver"
	"github.com/watsonlog/tfresolve/pkg/config"
)

// StoreOpener opens the IndexStore for a descriptor's (index_type,
// index_path), returning the same *SQLiteStore (wrapped for sqlite_nfs)
// for descriptors that share an index_path, so repeated Opens within one
// call don't race each other or double-open the backing file.
type StoreOpener func(desc config.Descriptor) (index.Store, error)

// DataSource composes a named set of descriptors and dispatches
// operations across them per section 4.7: queries flatten fuzzy results
// per descriptor, or indexed results per unique index_path; indexing
// operates per descriptor without dedup; clean operates over the
// unique-index set.
type DataSource struct {
	Name        string
	Descriptors []config.Descriptor
	OpenStore   StoreOpener
	Logger      *slog.Logger
}

// FromConfig builds a DataSource view over one configured source.
func FromConfig(src config.DataSource, open StoreOpener, logger *slog.Logger) *DataSource {
	return &DataSource{Name: src.Name, Descriptors: src.Descriptors, OpenStore: open, Logger: logger}
}

// uniqueIndexDescriptors returns one descriptor per distinct index_path,
// the first encountered in Descriptors order, so a shared index is only
// consulted once.
func (ds *DataSource) uniqueIndexDescriptors() []config.Descriptor {
	seen := make(map[string]struct{})
	var out []config.Descriptor
	for _, d := range ds.Descriptors {
		if !d.HasIndex() {
			continue
		}
		if _, dup := seen[d.IndexPath]; dup {
			continue
		}
		seen[d.IndexPath] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Query dispatches to FuzzyResolver per descriptor (useFuzzy true) or to
// IndexedResolver per unique index_path (useFuzzy false), flattening
// results across all descriptors it visits.
func (ds *DataSource) Query(ctx context.Context, win resolver.Window, useFuzzy bool) ([]resolver.FileInterval, error) {
	var out []resolver.FileInterval

	if useFuzzy {
		for _, d := range ds.Descriptors {
			intervals, err := resolver.Fuzzy(ctx, d, win)
			if err != nil {
				return nil, err
			}
			out = append(out, intervals...)
		}
		return out, nil
	}

	for _, d := range ds.uniqueIndexDescriptors() {
		store, err := ds.OpenStore(d)
		if err != nil {
			return nil, err
		}
		intervals, err := resolver.Indexed(d, store, win, ds.Logger)
		if err != nil {
			return nil, err
		}
		out = append(out, intervals...)
	}
	return out, nil
}

// Index runs IndexBuilder once per descriptor, without deduplicating
// shared index_paths: each descriptor's own candidate-path set (fuzzy
// windowed, or full walk) is indexed independently, per section 4.7.
func (ds *DataSource) Index(ctx context.Context, win *resolver.Window, opts indexbuild.Options) error {
	opts.Window = win
	for _, d := range ds.Descriptors {
		if !d.HasIndex() {
			continue
		}
		store, err := ds.OpenStore(d)
		if err != nil {
			return err
		}
		if err := indexbuild.Run(ctx, d, store, opts); err != nil {
			return err
		}
	}
	return nil
}

// Clean runs IndexStore.clean over the unique-index set.
func (ds *DataSource) Clean() error {
	for _, d := range ds.uniqueIndexDescriptors() {
		store, err := ds.OpenStore(d)
		if err != nil {
			return err
		}
		if err := store.Clean(); err != nil {
			return err
		}
	}
	return nil
}
