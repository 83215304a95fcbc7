// Package walker enumerates files under a descriptor's path globs,
// applying include/exclude filename filters. It is the FileWalker
// component: a lazy, non-restartable sequence of absolute paths.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/watsonlog/tfresolve/pkg/config"
)

// Result is one item of the walk's lazy output sequence.
type Result struct {
	Path string
	Err  error
}

// matcher compiles a descriptor's include/exclude filename patterns once,
// rather than per file, mirroring the fan-out worker in the pack's own
// file-exploring CLI, which also compiles its glob matchers up front.
type matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

func newMatcher(desc config.Descriptor) (*matcher, error) {
	m := &matcher{}
	for _, pat := range desc.Include {
		g, err := glob.Compile(pat)
		if err != nil {
			return nil, err
		}
		m.include = append(m.include, g)
	}
	for _, pat := range desc.Exclude {
		g, err := glob.Compile(pat)
		if err != nil {
			return nil, err
		}
		m.exclude = append(m.exclude, g)
	}
	return m, nil
}

// accepts reports whether a file with the given basename should be
// emitted: included (or no include list) AND not excluded.
func (m *matcher) accepts(base string) bool {
	if len(m.include) > 0 {
		included := false
		for _, g := range m.include {
			if g.Match(base) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, g := range m.exclude {
		if g.Match(base) {
			return false
		}
	}
	return true
}

// Walk enumerates absolute file paths under desc.Paths, applying the
// include/exclude filters. Glob-expanded roots are processed in
// configuration order; within a root, traversal order is not guaranteed.
// The returned channel is closed when the walk completes or ctx is
// cancelled; consumers may abandon it early.
func Walk(ctx context.Context, desc config.Descriptor) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		m, err := newMatcher(desc)
		if err != nil {
			select {
			case out <- Result{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		visited := make(map[string]struct{})

		for _, pattern := range desc.Paths {
			roots, err := filepath.Glob(pattern)
			if err != nil {
				select {
				case out <- Result{Err: err}:
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, root := range roots {
				abs, err := filepath.Abs(root)
				if err != nil {
					select {
					case out <- Result{Err: err}:
					case <-ctx.Done():
						return
					}
					continue
				}
				if !walkOne(ctx, abs, m, visited, out) {
					return
				}
			}
		}
	}()

	return out
}

// walkOne walks a single expanded root, following symlinked directories.
// It returns false if the caller should stop (context cancelled).
func walkOne(ctx context.Context, root string, m *matcher, visited map[string]struct{}, out chan<- Result) bool {
	if _, seen := visited[root]; seen {
		return true
	}
	visited[root] = struct{}{}

	info, err := os.Lstat(root)
	if err != nil {
		select {
		case out <- Result{Err: err}:
		case <-ctx.Done():
			return false
		}
		return true
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(root)
		if err != nil {
			select {
			case out <- Result{Err: err}:
			case <-ctx.Done():
				return false
			}
			return true
		}
		return walkOne(ctx, target, m, visited, out)
	}

	if !info.IsDir() {
		base := filepath.Base(root)
		if m.accepts(base) {
			select {
			case out <- Result{Path: root}:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			select {
			case out <- Result{Path: path, Err: err}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				select {
				case out <- Result{Path: path, Err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
				return nil
			}
			if !walkOne(ctx, target, m, visited, out) {
				return ctx.Err()
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if m.accepts(base) {
			select {
			case out <- Result{Path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if walkErr != nil && walkErr == ctx.Err() {
		return false
	}
	return true
}
