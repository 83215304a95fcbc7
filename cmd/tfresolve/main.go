package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/watsonlog/tfresolve/internal/datasource"
	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/internal/indexbuild"
	"github.com/watsonlog/tfresolve/internal/resolver"
	"github.com/watsonlog/tfresolve/pkg/config"
	"github.com/watsonlog/tfresolve/pkg/tferrors"
	"github.com/watsonlog/tfresolve/pkg/timeutil"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(os.Args[2:])
	case "listx":
		runListX(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "tfresolve v%s\n", version)
	fmt.Fprintln(os.Stderr, "usage: tfresolve <list|listx|query|index> [flags] SOURCE...")
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configFile := fs.String("config", "tfresolve.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	for _, name := range cfg.SourceNames() {
		fmt.Println(name)
	}
}

func runListX(args []string) {
	fs := flag.NewFlagSet("listx", flag.ExitOnError)
	fs.Parse(args)

	names := timeutil.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configFile := fs.String("config", "tfresolve.yaml", "path to configuration file")
	beginStr := fs.String("begin", "", "window begin, RFC3339 (optional)")
	endStr := fs.String("end", "", "window end, RFC3339 (optional)")
	useIndex := fs.Bool("index", false, "use the persisted index instead of fuzzy resolution")
	showTimes := fs.Bool("times", false, "print path\\tbegin_epoch\\tend_epoch instead of just paths")
	showBytes := fs.Bool("bytes", false, "print date\\tbytes: file sizes aggregated by each file's begin calendar date, zero-filled across the window")
	fs.Parse(args)

	sources := fs.Args()
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "query: at least one SOURCE is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	win, err := parseWindow(*beginStr, *endStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var all []resolver.FileInterval
	for _, name := range sources {
		src, ok := cfg.Sources[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "query: unknown source %q\n", name)
			os.Exit(1)
		}

		ds := datasource.FromConfig(src, queryStoreOpener(), logger)
		intervals, err := ds.Query(context.Background(), win, !*useIndex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed for source %q: %v\n", name, err)
			os.Exit(1)
		}
		all = append(all, intervals...)
	}

	switch {
	case *showBytes:
		printBytesByDate(all, win)
	case *showTimes:
		for _, iv := range all {
			fmt.Printf("%s\t%v\t%v\n", iv.Path, timeutil.LocalToEpoch(iv.Begin), timeutil.LocalToEpoch(iv.End))
		}
	default:
		for _, iv := range all {
			fmt.Println(iv.Path)
		}
	}
}

// printBytesByDate aggregates each interval's file size under its begin
// timestamp's calendar date, and zero-fills any date within the window
// ([win.Begin, win.End], truncated to calendar dates) that had no files.
func printBytesByDate(intervals []resolver.FileInterval, win resolver.Window) {
	byDate := make(map[time.Time]int64)

	for _, iv := range intervals {
		info, err := os.Stat(iv.Path)
		if err != nil {
			continue // vanished since resolution; skip
		}
		date := truncateToDate(iv.Begin)
		byDate[date] += info.Size()
	}

	var from, to time.Time
	haveRange := win.Begin != nil && win.End != nil
	if haveRange {
		from = truncateToDate(*win.Begin)
		to = truncateToDate(*win.End)
	} else {
		for d := range byDate {
			if from.IsZero() || d.Before(from) {
				from = d
			}
			if to.IsZero() || d.After(to) {
				to = d
			}
		}
	}

	if from.IsZero() && to.IsZero() {
		return
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		fmt.Printf("%s\t%d\n", d.Format("2006-01-02"), byDate[d])
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configFile := fs.String("config", "tfresolve.yaml", "path to configuration file")
	beginStr := fs.String("begin", "", "window begin, RFC3339 (optional; restricts indexing to fuzzy-windowed candidates)")
	endStr := fs.String("end", "", "window end, RFC3339 (optional)")
	processes := fs.Int("processes", 0, "worker pool size (0 = host CPU count)")
	clean := fs.Bool("clean", false, "run IndexStore.clean before indexing")
	continueOnError := fs.Bool("continue-on-error", false, "keep indexing remaining paths after one indexer invocation fails")
	fs.Parse(args)

	sources := fs.Args()
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "index: at least one SOURCE is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	var win *resolver.Window
	if *beginStr != "" || *endStr != "" {
		w, err := parseWindow(*beginStr, *endStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "index: %v\n", err)
			os.Exit(1)
		}
		win = &w
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	opts := indexbuild.Options{Workers: *processes, Clean: *clean, ContinueOnError: *continueOnError}

	for _, name := range sources {
		src, ok := cfg.Sources[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "index: unknown source %q\n", name)
			os.Exit(1)
		}

		ds := datasource.FromConfig(src, buildStoreOpener(), logger)
		if err := ds.Index(context.Background(), win, opts); err != nil {
			fmt.Fprintf(os.Stderr, "index failed for source %q: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("indexed source %q\n", name)
	}
}

func parseWindow(beginStr, endStr string) (resolver.Window, error) {
	var win resolver.Window
	if beginStr != "" {
		t, err := time.ParseInLocation(time.RFC3339, beginStr, time.Local)
		if err != nil {
			return win, fmt.Errorf("parsing -begin: %w", err)
		}
		win.Begin = &t
	}
	if endStr != "" {
		t, err := time.ParseInLocation(time.RFC3339, endStr, time.Local)
		if err != nil {
			return win, fmt.Errorf("parsing -end: %w", err)
		}
		win.End = &t
	}
	return win, nil
}

// openVariant opens the sqlite-backed store at desc.IndexPath, wrapping it
// with the NFS lock decorator when the descriptor asks for sqlite_nfs.
func openVariant(desc config.Descriptor) (index.Store, error) {
	local, err := index.Open(desc.IndexPath)
	if err != nil {
		return nil, err
	}
	var store index.Store = local
	if desc.IndexType == "sqlite_nfs" {
		store = index.WrapNFS(local, desc.IndexPath, 0)
	}
	return store, nil
}

// queryStoreOpener returns a StoreOpener for the query path: a missing
// index_path at query time is an operational error (section 4.5/7), so the
// backing file's existence is checked before it would otherwise be
// auto-created by index.Open. One store per index_path is cached for
// descriptors sharing an index_path within a single invocation.
func queryStoreOpener() datasource.StoreOpener {
	opened := make(map[string]index.Store)
	return func(desc config.Descriptor) (index.Store, error) {
		if s, ok := opened[desc.IndexPath]; ok {
			return s, nil
		}
		if _, err := os.Stat(desc.IndexPath); err != nil {
			return nil, fmt.Errorf("%w: index_path %s: %v", tferrors.ErrIndexIO, desc.IndexPath, err)
		}
		store, err := openVariant(desc)
		if err != nil {
			return nil, err
		}
		opened[desc.IndexPath] = store
		return store, nil
	}
}

// buildStoreOpener returns a StoreOpener for the index-build path, where
// auto-creating a not-yet-existing backing file is the whole point.
func buildStoreOpener() datasource.StoreOpener {
	opened := make(map[string]index.Store)
	return func(desc config.Descriptor) (index.Store, error) {
		if s, ok := opened[desc.IndexPath]; ok {
			return s, nil
		}
		store, err := openVariant(desc)
		if err != nil {
			return nil, err
		}
		opened[desc.IndexPath] = store
		return store, nil
	}
}
