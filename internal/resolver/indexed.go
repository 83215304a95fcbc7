package resolver

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/watsonlog/tfresolve/internal/index"
	"github.com/watsonlog/tfresolve/pkg/config"
	"github.com/watsonlog/tfresolve/pkg/tferrors"
	"github.com/watsonlog/tfresolve/pkg/timeutil"
)

// Indexed looks up file intervals in store, translating the window's local
// endpoints to epoch seconds and the store's epoch rows back to local
// timestamps. If an end bound is given and the index file's modification
// time predates it, a staleness advisory is logged (not returned as an
// error).
func Indexed(desc config.Descriptor, store index.Store, win Window, logger *slog.Logger) ([]FileInterval, error) {
	if !desc.HasIndex() {
		return nil, fmt.Errorf("%w: source %q", tferrors.ErrIndexMissingAttrs, desc.SourceName)
	}

	var beginEpoch, endEpoch *float64
	if win.Begin != nil {
		v := timeutil.LocalToEpoch(*win.Begin)
		beginEpoch = &v
	}
	if win.End != nil {
		v := timeutil.LocalToEpoch(*win.End)
		endEpoch = &v
	}

	if win.End != nil {
		if info, err := os.Stat(desc.IndexPath); err == nil {
			if info.ModTime().Before(*win.End) {
				if logger == nil {
					logger = slog.Default()
				}
				logger.Warn("index may be stale", "index_path", desc.IndexPath, "index_mtime", info.ModTime(), "query_end", *win.End)
			}
		} else {
			return nil, fmt.Errorf("%w: stat %s: %v", tferrors.ErrIndexIO, desc.IndexPath, err)
		}
	}

	rows, err := store.Query(beginEpoch, endEpoch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tferrors.ErrIndexIO, err)
	}

	out := make([]FileInterval, len(rows))
	for i, row := range rows {
		out[i] = FileInterval{
			Path:  row.Path,
			Begin: timeutil.EpochToLocal(row.MinTime),
			End:   timeutil.EpochToLocal(row.MaxTime),
		}
	}
	return out, nil
}
