package index

import (
	"fmt"
	"os"
	"time"
)

const (
	lockSuffix   = ".lock"
	defaultLease = 600 * time.Second
	lockPollWait = 50 * time.Millisecond
)

// NFSStore wraps a Store with an external lock file, held for the
// duration of each call, so that multiple hosts sharing an index over NFS
// don't interleave writes. NFS client caching means a plain os.O_EXCL
// create is the only primitive that is reasonably safe to rely on across
// hosts; sqlite's own locking is not, hence the separate lock file rather
// than relying on SQLiteStore alone.
type NFSStore struct {
	inner    Store
	lockPath string
	lease    time.Duration
}

// WrapNFS decorates inner with NFS-safe locking. lease bounds how long a
// stale lock (left by a crashed holder) is honored before a new caller is
// allowed to steal it; zero selects the default of 600s.
func WrapNFS(inner Store, backingPath string, lease time.Duration) *NFSStore {
	if lease <= 0 {
		lease = defaultLease
	}
	return &NFSStore{inner: inner, lockPath: backingPath + lockSuffix, lease: lease}
}

func (s *NFSStore) acquire() (func(), error) {
	deadline := time.Now().Add(s.lease + 5*time.Second)
	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(s.lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring nfs lock %s: %w", s.lockPath, err)
		}

		if s.lockIsStale() {
			os.Remove(s.lockPath)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for nfs lock %s", s.lockPath)
		}
		time.Sleep(lockPollWait)
	}
}

func (s *NFSStore) lockIsStale() bool {
	info, err := os.Stat(s.lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > s.lease
}

func (s *NFSStore) Add(path string, minTime, maxTime float64) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.inner.Add(path, minTime, maxTime)
}

func (s *NFSStore) Remove(path string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.inner.Remove(path)
}

func (s *NFSStore) Indexed(path string) (bool, error) {
	release, err := s.acquire()
	if err != nil {
		return false, err
	}
	defer release()
	return s.inner.Indexed(path)
}

func (s *NFSStore) Query(begin, end *float64) ([]Row, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.inner.Query(begin, end)
}

func (s *NFSStore) Clean() error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.inner.Clean()
}

func (s *NFSStore) Close() error {
	return s.inner.Close()
}
