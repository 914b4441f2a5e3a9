package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

const tracerName = "github.com/ahrav/go-tally/ledger"

var _ ports.OperationObserver = (*OTelObserver)(nil)

// OTelObserver wraps each ledger operation in an OpenTelemetry span and
// reports its latency and outcome to a MetricsCollector.
type OTelObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
	now     func() time.Time
}

// NewOTelObserver creates an observer using the global tracer provider.
// metrics may be nil.
func NewOTelObserver(metrics ports.MetricsCollector) *OTelObserver {
	return &OTelObserver{
		tracer:  otel.Tracer(tracerName),
		metrics: metrics,
		now:     time.Now,
	}
}

// Begin implements ports.OperationObserver.
func (o *OTelObserver) Begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := o.tracer.Start(ctx, "Ledger."+operation,
		trace.WithAttributes(attribute.String("ledger.operation", operation)))
	start := o.now()

	return ctx, func(err error) {
		defer span.End()
		elapsed := o.now().Sub(start)
		status := Outcome(err)
		span.SetAttributes(attribute.String("ledger.status", status))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if o.metrics != nil {
			o.metrics.RecordLatency(operation, elapsed, map[string]string{"status": status})
			o.metrics.RecordCounter(MetricOperations, 1, map[string]string{
				"operation": operation,
				"status":    status,
			})
		}
	}
}

// Outcome classifies an operation error into a low-cardinality label.
func Outcome(err error) string {
	var storeErr *ports.StoreError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateReport), errors.Is(err, domain.ErrDuplicateUser):
		return "duplicate"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &storeErr):
		return "store_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
