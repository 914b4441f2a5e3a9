package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tally/internal/domain"
)

// Version fingerprints one generation of a stored snapshot. Two versions
// describe the same generation only when Equal reports true; any other
// difference, including an older modification time, is a change.
type Version struct {
	ModTime time.Time
	Size    int64
	// Digest is a hash of the encoded snapshot.
	Digest uint64
	// Observed is when the fingerprint was taken. Stores use it to decide
	// whether the modification time alone can be trusted.
	Observed time.Time
}

// IsZero reports whether v describes no stored snapshot.
func (v Version) IsZero() bool {
	return v.ModTime.IsZero() && v.Size == 0 && v.Digest == 0
}

// Equal reports whether v and o describe the same stored generation.
// Observed is ignored.
func (v Version) Equal(o Version) bool {
	return v.ModTime.Equal(o.ModTime) && v.Size == o.Size && v.Digest == o.Digest
}

// SnapshotStore persists the ledger's full entity snapshot as one unit.
// Implementations must make Save all-or-nothing at the filesystem level:
// a reader never observes a partially written snapshot.
type SnapshotStore interface {
	// Load reads the current snapshot and its version. A missing backing
	// file yields an empty snapshot and a zero version.
	Load(ctx context.Context) (*domain.Snapshot, Version, error)

	// Save replaces the stored snapshot and returns the new version.
	Save(ctx context.Context, snap *domain.Snapshot) (Version, error)

	// Changed reports whether the stored snapshot differs from since. A
	// missing backing file is not a change.
	Changed(ctx context.Context, since Version) (bool, error)

	// Path returns a human readable location of the snapshot for logs.
	Path() string
}

// Catalog answers existence checks consumed by the vote ledger.
type Catalog interface {
	ProblemExists(ctx context.Context, id int) bool
	UserExists(ctx context.Context, id int) bool
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)
}

// OperationObserver brackets a ledger operation for tracing and metrics.
// Begin returns a derived context and a finish func that must be called
// exactly once with the operation's outcome.
type OperationObserver interface {
	Begin(ctx context.Context, operation string) (context.Context, func(err error))
}

// NopObserver is an OperationObserver that records nothing.
type NopObserver struct{}

// Begin implements OperationObserver.
func (NopObserver) Begin(ctx context.Context, _ string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
