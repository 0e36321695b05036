package observability

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/errors"
)

// TracingInterceptor opens a span around every intercepted call. The span is
// named Interface.Method. When the call takes a context.Context, the first
// one is replaced with the span's context so the target's own spans nest
// under it.
func TracingInterceptor(tracer trace.Tracer) aop.Interceptor {
	return aop.InterceptorFunc(func(inv *aop.Invocation) (any, error) {
		iface, method := callName(inv)
		ctx, span := tracer.Start(inv.Context(), iface+"."+method,
			trace.WithAttributes(
				attribute.String(AttrInterface, iface),
				attribute.String(AttrMethod, method),
			),
		)
		defer span.End()

		replaceContext(inv.Arguments(), ctx)

		res, err := inv.Proceed()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(AttrStatus, StatusError))
			return res, err
		}
		span.SetAttributes(attribute.String(AttrStatus, StatusOK))
		return res, nil
	})
}

// MetricsInterceptor records the count and duration of every intercepted call.
func MetricsInterceptor(m *Metrics) aop.Interceptor {
	return aop.InterceptorFunc(func(inv *aop.Invocation) (any, error) {
		iface, method := callName(inv)
		start := time.Now()
		res, err := inv.Proceed()

		ctx := inv.Context()
		status := StatusOK
		if err != nil {
			status = StatusError
			m.RecordError(ctx, string(codeOf(err)), iface+"."+method)
		}
		m.RecordInvocation(ctx, iface, method, status, time.Since(start))
		return res, err
	})
}

func callName(inv *aop.Invocation) (iface, method string) {
	method = inv.Method().Name
	if class, ok := aop.ClassOf(inv.This()); ok {
		return class.Interface().String(), method
	}
	return "unknown", method
}

func replaceContext(args []any, ctx context.Context) {
	for i, a := range args {
		if _, ok := a.(context.Context); ok {
			args[i] = ctx
			return
		}
	}
}

// codeOf returns the code of the first message of a provision or creation
// error, or of the first AppError in the chain.
func codeOf(err error) errors.ErrorCode {
	var pe *errors.ProvisionError
	if stderrors.As(err, &pe) && len(pe.Messages) > 0 {
		return pe.Messages[0].Code
	}
	var ce *errors.CreationError
	if stderrors.As(err, &ce) && len(ce.Messages) > 0 {
		return ce.Messages[0].Code
	}
	return errors.CodeOf(err, errors.ErrCodeInternal)
}
