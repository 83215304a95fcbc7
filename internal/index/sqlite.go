package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/watsonlog/tfresolve/pkg/tferrors"
)

const schema = `CREATE TABLE IF NOT EXISTS idx (
	path TEXT PRIMARY KEY,
	min_time REAL NOT NULL,
	max_time REAL NOT NULL
)`

// SQLiteStore is the local, single-process IndexStore variant. It
// serializes all access on one connection and retries transparently on a
// transient "database locked" error, per section 4.4.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// Open opens (creating if needed) a sqlite-backed index at path, applying
// the schema idempotently.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", tferrors.ErrIndexIO, path, err)
	}
	// A single connection is the cheapest way to get the in-process
	// serialization section 4.4 asks for; sqlite otherwise allows
	// concurrent readers to race a writer within this process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema in %s: %v", tferrors.ErrIndexIO, path, err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

// Path returns the backing file path, used by the indexed resolver's
// staleness check.
func (s *SQLiteStore) Path() string {
	return s.path
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// withRetry loops a mutating/reading call until it succeeds or fails with
// a non-transient error, per the busy-retry discipline of section 4.4.
func withRetry(fn func() error) error {
	backoff := 5 * time.Millisecond
	for {
		err := fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(backoff)
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// Add inserts a row. A duplicate path is a caller error.
func (s *SQLiteStore) Add(path string, minTime, maxTime float64) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`INSERT INTO idx(path, min_time, max_time) VALUES (?, ?, ?)`, path, minTime, maxTime)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s", tferrors.ErrDuplicatePath, path)
			}
			return err
		}
		return nil
	})
}

// Remove deletes a row by path. No-op if absent.
func (s *SQLiteStore) Remove(path string) error {
	return withRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM idx WHERE path = ?`, path)
		return err
	})
}

// Indexed reports whether path already has a row.
func (s *SQLiteStore) Indexed(path string) (bool, error) {
	var exists bool
	err := withRetry(func() error {
		row := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM idx WHERE path = ?)`, path)
		return row.Scan(&exists)
	})
	return exists, err
}

// Query returns rows where (begin is none OR begin <= max_time) AND
// (end is none OR min_time <= end).
func (s *SQLiteStore) Query(begin, end *float64) ([]Row, error) {
	var rows *sql.Rows
	var err error

	err = withRetry(func() error {
		var innerErr error
		switch {
		case begin != nil && end != nil:
			rows, innerErr = s.db.Query(`SELECT path, min_time, max_time FROM idx WHERE ? <= max_time AND min_time <= ?`, *begin, *end)
		case begin != nil:
			rows, innerErr = s.db.Query(`SELECT path, min_time, max_time FROM idx WHERE ? <= max_time`, *begin)
		case end != nil:
			rows, innerErr = s.db.Query(`SELECT path, min_time, max_time FROM idx WHERE min_time <= ?`, *end)
		default:
			rows, innerErr = s.db.Query(`SELECT path, min_time, max_time FROM idx`)
		}
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Path, &r.MinTime, &r.MaxTime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clean removes rows whose path no longer exists on the filesystem.
func (s *SQLiteStore) Clean() error {
	var paths []string
	err := withRetry(func() error {
		rows, innerErr := s.db.Query(`SELECT path FROM idx`)
		if innerErr != nil {
			return innerErr
		}
		defer rows.Close()
		paths = paths[:0]
		for rows.Next() {
			var p string
			if innerErr := rows.Scan(&p); innerErr != nil {
				return innerErr
			}
			paths = append(paths, p)
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		if _, statErr := os.Stat(p); statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				if err := s.Remove(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
