// Package indexbuild implements the IndexBuilder: a worker pool that walks
// candidate files, skips already-indexed ones, runs an external per-format
// indexer subprocess, and commits results to an IndexStore.
package indexbuild

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/internal/resolver"
	"github.com/watsonlog/tfresolve/internal/walker"
	"github.com/watsonlog/tfresolve/pkg/config"
	"github.com/watsonlog/tfresolve/pkg/tferrors"
)

// Options configures one Run.
type Options struct {
	// Workers is the worker pool size. Zero selects runtime.NumCPU().
	Workers int

	// Window, if non-nil, restricts candidate paths to FuzzyResolver's
	// belief of what falls within it; nil drives from the full walk.
	Window *resolver.Window

	// Clean runs IndexStore.Clean before indexing, if true.
	Clean bool

	// ContinueOnError keeps processing remaining paths after one
	// indexer invocation fails, collecting all errors instead of
	// aborting on the first. The default (false) aborts the run on the
	// first failure; results already computed are still committed.
	ContinueOnError bool
}

type result struct {
	path             string
	minTime, maxTime float64
}

// Run materializes or extends the index for one descriptor against store,
// per section 4.6's source-of-candidate-paths, dispatch, and commit rules.
func Run(ctx context.Context, desc config.Descriptor, store index.Store, opts Options) error {
	if !desc.HasIndex() {
		return fmt.Errorf("%w: source %q", tferrors.ErrIndexMissingAttrs, desc.SourceName)
	}
	if desc.Indexer == "" {
		return fmt.Errorf("%w: source %q: no indexer configured", tferrors.ErrIndexMissingAttrs, desc.SourceName)
	}

	if opts.Clean {
		if err := store.Clean(); err != nil {
			return fmt.Errorf("%w: %v", tferrors.ErrIndexIO, err)
		}
	}

	paths, err := candidatePaths(ctx, desc, opts.Window)
	if err != nil {
		return err
	}

	results, dispatchErr := dispatch(ctx, desc.Indexer, store, paths, opts)

	// Commit whatever was computed before propagating any dispatch error:
	// per section 4.6, partial progress is durable because each add
	// commits immediately, even when the overall run ends in failure.
	for _, r := range results {
		if err := store.Add(r.path, r.minTime, r.maxTime); err != nil {
			return fmt.Errorf("%w: committing %s: %v", tferrors.ErrIndexIO, r.path, err)
		}
	}

	return dispatchErr
}

func candidatePaths(ctx context.Context, desc config.Descriptor, win *resolver.Window) ([]string, error) {
	if win != nil {
		return resolver.Paths(ctx, desc, *win)
	}

	var paths []string
	for res := range walker.Walk(ctx, desc) {
		if res.Err != nil {
			return nil, res.Err
		}
		paths = append(paths, res.Path)
	}
	return paths, nil
}

// dispatch runs the worker pool: check-indexed, run indexer, parse output.
// Results are collected and returned only once every task has finished;
// a single failing task cancels the remaining ones (unless ContinueOnError)
// and the run aborts with that error, per section 4.6's "failed task
// aborts the run" rule.
func dispatch(ctx context.Context, indexerPath string, store index.Store, paths []string, opts Options) ([]result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	type outcome struct {
		r   result
		err error
		ok  bool
	}
	outcomes := make([]outcome, len(paths))

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			already, err := store.Indexed(path)
			if err != nil {
				return fmt.Errorf("%w: checking %s: %v", tferrors.ErrIndexIO, path, err)
			}
			if already {
				return nil
			}

			r, err := runIndexer(gctx, indexerPath, path)
			if err != nil {
				if opts.ContinueOnError {
					outcomes[i] = outcome{err: err}
					return nil
				}
				return err
			}
			outcomes[i] = outcome{r: r, ok: true}
			return nil
		})
	}

	// g.Wait's error (set only in strict, non-ContinueOnError mode) is
	// captured but the outcomes slice is still drained for results:
	// tasks that completed successfully before a sibling task failed and
	// cancelled gctx must not be discarded.
	waitErr := g.Wait()

	var results []result
	var failed []string
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o.err.Error())
			continue
		}
		if o.ok {
			results = append(results, o.r)
		}
	}

	if waitErr != nil {
		return results, waitErr
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%w: %d of %d paths failed: %s", tferrors.ErrIndexerFailed, len(failed), len(paths), strings.Join(failed, "; "))
	}
	return results, nil
}

// runIndexer invokes the external indexer contract of section 6: exit 0
// and a first stdout line "<min_time> <max_time>".
func runIndexer(ctx context.Context, indexerPath, path string) (result, error) {
	cmd := exec.CommandContext(ctx, indexerPath, path)
	out, err := cmd.Output()
	if err != nil {
		return result{}, fmt.Errorf("%w: %s %s: %v", tferrors.ErrIndexerFailed, indexerPath, path, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return result{}, fmt.Errorf("%w: %s produced no output for %s", tferrors.ErrIndexerFailed, indexerPath, path)
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) != 2 {
		return result{}, fmt.Errorf("%w: %s: malformed output line %q", tferrors.ErrIndexerFailed, path, scanner.Text())
	}
	minTime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return result{}, fmt.Errorf("%w: %s: bad min_time %q", tferrors.ErrIndexerFailed, path, fields[0])
	}
	maxTime, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return result{}, fmt.Errorf("%w: %s: bad max_time %q", tferrors.ErrIndexerFailed, path, fields[1])
	}

	return result{path: path, minTime: minTime, maxTime: maxTime}, nil
}
