package store

import (
	"context"
	"log/slog"
	"time"
)

// Retainer periodically prunes records older than a fixed retention window.
// A zero retention disables pruning entirely.
type Retainer struct {
	store     Store
	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

// NewRetainer creates a Retainer for st.
func NewRetainer(st Store, retention time.Duration) *Retainer {
	return &Retainer{store: st, retention: retention, now: time.Now}
}

// PruneOnce removes records older than now minus the retention window and
// returns how many were removed.
func (r *Retainer) PruneOnce() (int, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.retention).UnixMilli()
	return r.store.Prune(cutoff)
}

// Run prunes at half the retention interval (minimum 1 second) until ctx is
// cancelled. It returns immediately when retention is disabled.
func (r *Retainer) Run(ctx context.Context) {
	if r.retention <= 0 {
		return
	}
	interval := r.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.PruneOnce()
			if err != nil {
				slog.Error("store: prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("store: pruned expired records", "count", n)
			}
		}
	}
}
