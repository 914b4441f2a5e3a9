// Package application implements the rating ledger: vote bookkeeping,
// incremental per-problem statistics, snapshot persistence and
// cross-process freshness reconciliation.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Catalog = (*Ledger)(nil)

// PersistError reports that a mutation was applied in memory but the
// snapshot could not be written. The in-memory state is consistent and
// reflects the mutation; only durability failed.
type PersistError struct {
	Err error
}

// Error implements the error interface for PersistError.
func (e *PersistError) Error() string {
	return fmt.Sprintf("mutation applied but not persisted: %v", e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistError) Unwrap() error { return e.Err }

// Ledger owns the rating state of one process. Every operation is atomic
// with respect to aggregate state: mutations hold the write lock from
// validation through persistence, reads hold the read lock.
//
// Multiple processes may share one snapshot file. Before each operation
// the ledger asks the store whether the file differs from the version it
// last loaded or saved, and reloads on any difference. Two processes
// writing concurrently can still overwrite each other; the last full
// write wins.
type Ledger struct {
	cfg      Config
	store    ports.SnapshotStore
	logger   *slog.Logger
	observer ports.OperationObserver
	metrics  ports.MetricsCollector
	validate *validator.Validate
	now      func() time.Time
	limiter  *reportLimiter

	mu      sync.RWMutex
	st      *state
	version ports.Version
	loaded  bool

	// reload coalesces concurrent stale detections into one reload.
	reload singleflight.Group
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver sets the per-operation observer used for tracing.
func WithObserver(obs ports.OperationObserver) Option {
	return func(l *Ledger) {
		if obs != nil {
			l.observer = obs
		}
	}
}

// WithMetrics sets the collector used for state gauges and reload counts.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides the time source used for vote and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger validates cfg and returns an unloaded ledger. The first
// operation, or an explicit Load, reads the snapshot.
func NewLedger(cfg Config, store ports.SnapshotStore, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	l := &Ledger{
		cfg:      cfg,
		store:    store,
		logger:   slog.Default(),
		observer: ports.NopObserver{},
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
		st:       newEmptyState(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.limiter = newReportLimiter(cfg.ReportRate)
	return l, nil
}

// Config returns the ledger's configuration.
func (l *Ledger) Config() Config { return l.cfg }

// Load unconditionally reads the snapshot and replaces in-memory state.
func (l *Ledger) Load(ctx context.Context) (err error) {
	ctx, finish := l.observer.Begin(ctx, "load")
	defer func() { finish(err) }()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reloadLocked(ctx)
}

// Save writes the current in-memory state to the snapshot.
func (l *Ledger) Save(ctx context.Context) (err error) {
	ctx, finish := l.observer.Begin(ctx, "save")
	defer func() { finish(err) }()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

// EnsureFresh reloads the snapshot when the backing file differs from the
// version last loaded or saved by this ledger. Aggregate blocks are seeded
// from the persisted summaries rather than replayed from votes.
func (l *Ledger) EnsureFresh(ctx context.Context) error {
	l.mu.RLock()
	loaded, seen := l.loaded, l.version
	l.mu.RUnlock()
	if loaded {
		changed, err := l.store.Changed(ctx, seen)
		if err != nil || !changed {
			return err
		}
	}

	_, err, _ := l.reload.Do("reload", func() (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.loaded {
			changed, err := l.store.Changed(ctx, l.version)
			if err != nil || !changed {
				return nil, err
			}
		}
		return nil, l.reloadLocked(ctx)
	})
	return err
}

func (l *Ledger) reloadLocked(ctx context.Context) error {
	snap, version, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	l.st = newState(snap, l.logger)
	l.version = version
	if l.loaded {
		l.record("ledger_reloads_total")
	}
	l.loaded = true
	l.logger.Info("snapshot loaded",
		slog.String("path", l.store.Path()),
		slog.Int("problems", len(l.st.problems)),
		slog.Int("votes", len(l.st.votes)),
		slog.Int("reports", len(l.st.reports)),
		slog.Int("users", len(l.st.users)))
	l.publishGauges()
	return nil
}

// persistLocked serializes the whole state and writes it once. On failure
// memory keeps the mutation and the caller receives a PersistError.
func (l *Ledger) persistLocked(ctx context.Context) error {
	version, err := l.store.Save(ctx, l.st.snapshot())
	if err != nil {
		l.logger.Error("snapshot write failed",
			slog.String("path", l.store.Path()),
			slog.String("error", err.Error()))
		return &PersistError{Err: err}
	}
	l.version = version
	l.loaded = true
	l.publishGauges()
	return nil
}

func (l *Ledger) record(metric string) {
	if l.metrics != nil {
		l.metrics.RecordCounter(metric, 1, nil)
	}
}

func (l *Ledger) publishGauges() {
	if l.metrics == nil {
		return
	}
	l.metrics.RecordGauge("ledger_live_votes", float64(len(l.st.live)), nil)
	l.metrics.RecordGauge("ledger_reports", float64(len(l.st.reports)), nil)
	l.metrics.RecordGauge("ledger_problems", float64(len(l.st.problems)), nil)
}

// beginWrite reconciles with disk and takes the write lock. The returned
// func releases it.
func (l *Ledger) beginWrite(ctx context.Context) (func(), error) {
	if err := l.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return l.mu.Unlock, nil
}

// beginRead reconciles with disk and takes the read lock.
func (l *Ledger) beginRead(ctx context.Context) (func(), error) {
	if err := l.EnsureFresh(ctx); err != nil {
		return nil, err
	}
	l.mu.RLock()
	return l.mu.RUnlock, nil
}
