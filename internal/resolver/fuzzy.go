package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/watsonlog/tfresolve/internal/walker"
	"github.com/watsonlog/tfresolve/pkg/config"
	"github.com/watsonlog/tfresolve/pkg/timeutil"
)

const fallbackSpan = 48 * time.Hour

type candidate struct {
	path string
	ts   time.Time
}

// pathKey derives the partition key for a path: the non-time-like tokens
// of the full path, concatenated. Files sharing a path-key form one time
// series; this is what separates proxy-s1/squid.20140101.gz from
// proxy-s2/squid.20140101.gz into distinct series despite identical
// basenames.
func pathKey(path string) string {
	tokens := timeutil.Tokenize(path)
	var kept []string
	for _, tok := range tokens {
		if !timeutil.IsTimeLikeToken(tok) {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, "/")
}

// Fuzzy partitions the files a descriptor enumerates into non-overlapping
// time series by path-key, sorts each partition ascending by extracted
// timestamp, derives per-file intervals from neighbors, and filters by
// window. Files that fail timestamp extraction are discarded.
func Fuzzy(ctx context.Context, desc config.Descriptor, win Window) ([]FileInterval, error) {
	seen := make(map[string]struct{})
	partitions := make(map[string][]candidate)

	for res := range walker.Walk(ctx, desc) {
		if res.Err != nil {
			return nil, res.Err
		}

		info, err := os.Stat(res.Path)
		if err != nil {
			continue // vanished between walk and stat; skip
		}
		dedupKey := fmt.Sprintf("%s:%d", filepath.Base(res.Path), info.Size())
		if _, dup := seen[dedupKey]; dup {
			continue
		}

		ts, ok := timeutil.Extract(res.Path, desc.Extractor)
		if !ok {
			continue
		}
		seen[dedupKey] = struct{}{}

		key := pathKey(res.Path)
		partitions[key] = append(partitions[key], candidate{path: res.Path, ts: ts})
	}

	var out []FileInterval
	for _, files := range partitions {
		out = append(out, resolvePartition(files, desc.IsEndTime(), win)...)
	}
	return out, nil
}

// Paths is Fuzzy reduced to just the selected paths, used by IndexBuilder's
// windowed mode to drive indexing from what the fuzzy method believes
// falls within a window.
func Paths(ctx context.Context, desc config.Descriptor, win Window) ([]string, error) {
	intervals, err := Fuzzy(ctx, desc, win)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(intervals))
	for i, iv := range intervals {
		paths[i] = iv.Path
	}
	return paths, nil
}

func resolvePartition(files []candidate, endTime bool, win Window) []FileInterval {
	sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })

	var deltaMax time.Duration
	haveDelta := len(files) > 1
	for i := 1; i < len(files); i++ {
		gap := files[i].ts.Sub(files[i-1].ts)
		if gap < 0 {
			gap = -gap
		}
		if gap > deltaMax {
			deltaMax = gap
		}
	}

	now := time.Now().In(time.Local)
	epoch0 := time.Unix(0, 0).In(time.Local)

	var out []FileInterval
	for i, f := range files {
		var begin, end time.Time

		if !endTime {
			begin = f.ts
			switch {
			case i+1 < len(files):
				end = files[i+1].ts
			case haveDelta:
				end = f.ts.Add(deltaMax)
				if end.After(now) {
					end = now
				}
			default:
				end = f.ts.Add(fallbackSpan)
			}
		} else {
			end = f.ts
			switch {
			case i-1 >= 0:
				begin = files[i-1].ts
			case haveDelta:
				begin = f.ts.Add(-deltaMax)
				if begin.Before(epoch0) {
					begin = epoch0
				}
			default:
				begin = f.ts.Add(-fallbackSpan)
			}
		}

		if !win.Overlaps(begin, end) {
			if win.End != nil && begin.After(*win.End) {
				break // sorted ascending: no later file in this partition can qualify
			}
			continue
		}
		out = append(out, FileInterval{Path: f.path, Begin: begin, End: end})
	}
	return out
}
