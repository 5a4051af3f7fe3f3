package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gridironlab/pbp-refresh/internal/platform/logging"
)

// ErrBusy means a live refresh currently holds the lock. Callers must treat it
// as a normal, reportable outcome and must not retry in a loop.
var ErrBusy = errors.New("refresh already in progress")

const DefaultStaleAfter = 30 * time.Minute

// Guard serializes refresh invocations through a single lock file. A lock left
// behind by a crashed run is reclaimed once it is older than StaleAfter.
type Guard struct {
	path       string
	staleAfter time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// Handle represents one held acquisition. Release is safe to call more than once.
type Handle struct {
	guard    *Guard
	file     *os.File
	released bool
}

func NewGuard(path string, staleAfter time.Duration, logger *logging.Logger) *Guard {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{
		path:       path,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Acquire creates the lock file exclusively. A live lock yields ErrBusy
// immediately; a stale one is removed first and the reclaim is logged.
func (g *Guard) Acquire() (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	if info, err := os.Stat(g.path); err == nil {
		age := g.now().Sub(info.ModTime())
		if age > g.staleAfter {
			g.logger.Warn("reclaiming stale run lock",
				"path", g.path,
				"age", age.Round(time.Second).String(),
			)
			if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("remove stale lock: %w", err)
			}
		}
	}

	file, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	fmt.Fprintf(file, "pid=%d acquired_at=%s\n", os.Getpid(), g.now().UTC().Format(time.RFC3339))

	return &Handle{guard: g, file: file}, nil
}

// Release closes and removes the lock file. It must run on every exit path of
// the refresh it guards, success or failure.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true

	if h.file != nil {
		_ = h.file.Close()
	}
	if err := os.Remove(h.guard.path); err != nil && !os.IsNotExist(err) {
		h.guard.logger.Warn("remove run lock failed", "path", h.guard.path, "error", err)
	}
}
