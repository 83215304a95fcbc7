package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/internal/indexbuild"
	"github.com/watsonlog/tfresolve/internal/resolver"
	"github.com/watsonlog/tfresolve/pkg/config"
)

func openerFor(t *testing.T) (StoreOpener, func()) {
	t.Helper()
	opened := make(map[string]index.Store)
	opener := func(desc config.Descriptor) (index.Store, error) {
		if s, ok := opened[desc.IndexPath]; ok {
			return s, nil
		}
		s, err := index.Open(desc.IndexPath)
		if err != nil {
			return nil, err
		}
		opened[desc.IndexPath] = s
		return s, nil
	}
	closeAll := func() {
		for _, s := range opened {
			s.Close()
		}
	}
	return opener, closeAll
}

func TestDataSourceQueryFuzzyFlattensAcrossDescriptors(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	if err := os.WriteFile(filepath.Join(dirA, "a.20140101.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dirB, "b.20140101.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ds := &DataSource{
		Name: "s",
		Descriptors: []config.Descriptor{
			{SourceName: "s", Paths: []string{dirA}},
			{SourceName: "s", Paths: []string{dirB}},
		},
	}

	intervals, err := ds.Query(context.Background(), resolver.Window{}, true)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(intervals) != 2 {
		t.Fatalf("expected results flattened across both descriptors, got %+v", intervals)
	}
}

func TestDataSourceQueryIndexedDedupsSharedIndexPath(t *testing.T) {
	opener, closeAll := openerFor(t)
	defer closeAll()

	indexPath := filepath.Join(t.TempDir(), "shared.db")
	descA := config.Descriptor{SourceName: "s", Paths: []string{"/a"}, IndexType: "sqlite", IndexPath: indexPath}
	descB := config.Descriptor{SourceName: "s", Paths: []string{"/b"}, IndexType: "sqlite", IndexPath: indexPath}

	store, err := opener(descA)
	if err != nil {
		t.Fatalf("opener: %v", err)
	}
	if err := store.Add("/a/one.gz", 10, 20); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ds := &DataSource{Name: "s", Descriptors: []config.Descriptor{descA, descB}, OpenStore: opener}

	intervals, err := ds.Query(context.Background(), resolver.Window{}, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected the shared index_path to be queried exactly once, got %+v", intervals)
	}
}

func TestDataSourceIndexIndexesDescriptorFiles(t *testing.T) {
	opener, closeAll := openerFor(t)
	defer closeAll()

	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "a.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	indexerDir := t.TempDir()
	indexerPath := filepath.Join(indexerDir, "fake.sh")
	if err := os.WriteFile(indexerPath, []byte(fmt.Sprintf("#!/bin/sh\necho \"%g %g\"\n", 1.0, 2.0)), 0o755); err != nil {
		t.Fatalf("writing fake indexer: %v", err)
	}

	indexPath := filepath.Join(t.TempDir(), "idx.db")
	desc := config.Descriptor{
		SourceName: "s",
		Paths:      []string{filepath.Join(dataDir, "*")},
		IndexType:  "sqlite",
		IndexPath:  indexPath,
		Indexer:    indexerPath,
	}

	ds := &DataSource{Name: "s", Descriptors: []config.Descriptor{desc}, OpenStore: opener}
	if err := ds.Index(context.Background(), nil, indexbuild.Options{}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	store, err := opener(desc)
	if err != nil {
		t.Fatalf("opener: %v", err)
	}
	ok, err := store.Indexed(filepath.Join(dataDir, "a.log"))
	if err != nil {
		t.Fatalf("Indexed: %v", err)
	}
	if !ok {
		t.Fatalf("expected descriptor's file to be indexed")
	}
}
