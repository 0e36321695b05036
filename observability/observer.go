package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
)

// ProvisionObserver traces and measures the top-level provisionings of an
// injector. Any of its fields may be nil.
type ProvisionObserver struct {
	Tracer  trace.Tracer
	Metrics *Metrics
	Log     *logger.Logger
}

var _ di.Observer = (*ProvisionObserver)(nil)

// NewProvisionObserver creates an observer using the package tracer.
func NewProvisionObserver(metrics *Metrics, log *logger.Logger) *ProvisionObserver {
	return &ProvisionObserver{
		Tracer:  Tracer(InstrumentationName),
		Metrics: metrics,
		Log:     log,
	}
}

// ObserveProvision implements di.Observer.
func (o *ProvisionObserver) ObserveProvision(ctx context.Context, key di.Key) (context.Context, func(error)) {
	name := key.String()
	var span trace.Span
	if o.Tracer != nil {
		ctx, span = o.Tracer.Start(ctx, SpanProvision, trace.WithAttributes(
			attribute.String(AttrKey, key.Type().String()),
			attribute.String(AttrQualifier, key.Qualifier()),
		))
	}
	if o.Metrics != nil {
		o.Metrics.RecordProvisionStart(ctx)
	}
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		status := StatusOK
		if err != nil {
			status = StatusError
		}

		if span != nil {
			span.SetAttributes(
				attribute.String(AttrStatus, status),
				attribute.Int64(AttrDurationMs, elapsed.Milliseconds()),
			)
			if err != nil {
				code := string(codeOf(err))
				span.RecordError(err)
				span.SetStatus(codes.Error, code)
				span.SetAttributes(
					attribute.String(AttrErrorCode, code),
					attribute.String(AttrErrorMessage, err.Error()),
				)
			}
			span.End()
		}
		if o.Metrics != nil {
			o.Metrics.RecordProvisionEnd(ctx, name, status, elapsed)
			if err != nil {
				o.Metrics.RecordError(ctx, string(codeOf(err)), name)
			}
		}
		if err != nil && o.Log != nil {
			o.Log.WithContext(ctx).Warn("Provisioning failed", logger.Fields(
				logger.FieldKey, name,
				logger.FieldCode, string(codeOf(err)),
				logger.FieldDuration, elapsed.Milliseconds(),
			))
		}
	}
}
