package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/sharebin/internal/apperror"
)

const (
	// SnapshotKey is the local store key auto-save writes to.
	SnapshotKey = "sharebin_files"
	// DefaultAutoSaveInterval matches the editor's default setting.
	DefaultAutoSaveInterval = 5 * time.Second
)

// Store is the slice of the local key-value store auto-save needs.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Snapshot is the JSON document written under SnapshotKey.
type Snapshot struct {
	ActiveID string    `json:"activeId"`
	Buffers  []Buffer  `json:"files"`
	SavedAt  time.Time `json:"savedAt"`
}

// AutoSaver periodically writes the whole Set to a Store.
//
// Writes are fire-and-forget: a failed write is logged at debug level and
// the next tick simply tries again with fresher content. Nothing queues.
type AutoSaver struct {
	set      *Set
	store    Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutoSaver builds a stopped AutoSaver. A non-positive interval uses
// DefaultAutoSaveInterval.
func NewAutoSaver(set *Set, store Store, interval time.Duration, logger *slog.Logger) *AutoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	return &AutoSaver{set: set, store: store, interval: interval, logger: logger}
}

// Start begins ticking. Calling Start on a running saver restarts it, which
// is how an interval change is applied.
func (a *AutoSaver) Start(ctx context.Context) {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go a.loop(ctx, done)
}

// SetInterval changes the tick interval; a running saver is restarted.
func (a *AutoSaver) SetInterval(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = DefaultAutoSaveInterval
	}
	a.mu.Lock()
	a.interval = d
	running := a.cancel != nil
	a.mu.Unlock()

	if running {
		a.Start(ctx)
	}
}

// Stop halts the ticker and waits for the loop to exit. Safe to call twice.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (a *AutoSaver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	a.mu.Lock()
	interval := a.interval
	a.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.SaveNow(ctx); err != nil {
				a.logger.Debug("auto-save dropped", slog.String("error", err.Error()))
			}
		}
	}
}

// SaveNow writes one snapshot. Errors are returned for callers that care;
// the ticker ignores them.
func (a *AutoSaver) SaveNow(ctx context.Context) error {
	a.set.mu.RLock()
	snap := Snapshot{
		ActiveID: a.set.activeLocked().ID,
		Buffers:  append([]Buffer(nil), a.set.buffers...),
		SavedAt:  time.Now().UTC(),
	}
	a.set.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("buffer: encoding snapshot: %w", err)
	}
	if err := a.store.Put(ctx, SnapshotKey, data); err != nil {
		return apperror.Storage("write", err)
	}
	return nil
}

// Restore loads the last snapshot from store into set. It reports false
// when there is nothing usable to restore; a corrupt snapshot is treated
// the same as a missing one.
func Restore(ctx context.Context, set *Set, store Store) (bool, error) {
	data, err := store.Get(ctx, SnapshotKey)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, apperror.Storage("read", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || len(snap.Buffers) == 0 {
		return false, nil
	}
	set.restore(snap)
	return true, nil
}
