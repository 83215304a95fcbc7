package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/watsonlog/tfresolve/pkg/config"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func collect(t *testing.T, desc config.Descriptor) []string {
	t.Helper()
	var paths []string
	for res := range Walk(context.Background(), desc) {
		if res.Err != nil {
			t.Fatalf("walk error: %v", res.Err)
		}
		paths = append(paths, res.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestWalkIncludeFilter(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.log.gz"))
	touch(t, filepath.Join(dir, "b.tmp"))
	touch(t, filepath.Join(dir, "sub", "c.log.gz"))

	desc := config.Descriptor{
		Paths:   []string{dir},
		Include: []string{"*.log.gz"},
	}

	paths := collect(t, desc)
	if len(paths) != 2 {
		t.Fatalf("expected 2 matches, got %v", paths)
	}
}

func TestWalkExcludeWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "keep.log"))
	touch(t, filepath.Join(dir, "skip.log"))

	desc := config.Descriptor{
		Paths:   []string{dir},
		Exclude: []string{"skip*"},
	}

	paths := collect(t, desc)
	if len(paths) != 1 || filepath.Base(paths[0]) != "keep.log" {
		t.Fatalf("unexpected result: %v", paths)
	}
}

func TestWalkNoFiltersEmitsEverything(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "one"))
	touch(t, filepath.Join(dir, "two"))

	desc := config.Descriptor{Paths: []string{dir}}
	paths := collect(t, desc)
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}
}
