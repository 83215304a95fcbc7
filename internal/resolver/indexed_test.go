package resolver

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/pkg/config"
	"github.com/watsonlog/tfresolve/pkg/timeutil"
)

func openTestIndex(t *testing.T) *index.SQLiteStore {
	t.Helper()
	s, err := index.Open(filepath.Join(t.TempDir(), "idx.db"))
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexedRequiresIndexAttrs(t *testing.T) {
	store := openTestIndex(t)
	desc := config.Descriptor{SourceName: "s", Paths: []string{"/data"}}

	if _, err := Indexed(desc, store, Window{}, nil); err == nil {
		t.Fatal("expected an error for a descriptor missing index_type/index_path")
	}
}

func TestIndexedTranslatesEpochRowsToLocalTime(t *testing.T) {
	store := openTestIndex(t)
	desc := config.Descriptor{
		SourceName: "s",
		Paths:      []string{"/data"},
		IndexType:  "sqlite",
		IndexPath:  "irrelevant-for-this-store-instance",
	}

	begin := time.Date(2014, 1, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2014, 1, 3, 0, 0, 0, 0, time.Local)
	if err := store.Add("/data/a.gz", timeutil.LocalToEpoch(begin), timeutil.LocalToEpoch(end)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	intervals, err := Indexed(desc, store, Window{}, nil)
	if err != nil {
		t.Fatalf("Indexed: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %+v", intervals)
	}
	if !intervals[0].Begin.Equal(begin) || !intervals[0].End.Equal(end) {
		t.Fatalf("got [%v, %v], want [%v, %v]", intervals[0].Begin, intervals[0].End, begin, end)
	}
}

func TestIndexedFiltersByWindow(t *testing.T) {
	store := openTestIndex(t)
	desc := config.Descriptor{SourceName: "s", Paths: []string{"/data"}, IndexType: "sqlite", IndexPath: store.Path()}

	inWindow := time.Date(2014, 1, 1, 0, 0, 0, 0, time.Local)
	outOfWindow := time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local)
	if err := store.Add("/data/in.gz", timeutil.LocalToEpoch(inWindow), timeutil.LocalToEpoch(inWindow.Add(time.Hour))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add("/data/out.gz", timeutil.LocalToEpoch(outOfWindow), timeutil.LocalToEpoch(outOfWindow.Add(time.Hour))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	begin := time.Date(2013, 12, 31, 0, 0, 0, 0, time.Local)
	end := time.Date(2014, 1, 2, 0, 0, 0, 0, time.Local)
	intervals, err := Indexed(desc, store, Window{Begin: &begin, End: &end}, nil)
	if err != nil {
		t.Fatalf("Indexed: %v", err)
	}
	if len(intervals) != 1 || filepath.Base(intervals[0].Path) != "in.gz" {
		t.Fatalf("expected only in.gz to survive the window filter, got %+v", intervals)
	}
}

func TestIndexedWarnsOnStaleIndex(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "idx.db")
	store, err := index.Open(indexPath)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	desc := config.Descriptor{SourceName: "s", Paths: []string{"/data"}, IndexType: "sqlite", IndexPath: indexPath}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	future := time.Now().Add(24 * time.Hour)
	win := Window{End: &future}

	if _, err := Indexed(desc, store, win, logger); err != nil {
		t.Fatalf("Indexed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a staleness warning to be logged for a query end beyond the index file's mtime")
	}
}
