// Package observability connects an injector to OpenTelemetry.
//
// Provisioning is traced and measured by a ProvisionObserver passed to the
// injector:
//
//	tp, err := observability.InitTracer(ctx, observability.TracerConfigFrom(cfg, version))
//	defer tp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter(observability.InstrumentationName))
//	inj, err := di.New(decls, di.WithObserver(observability.NewProvisionObserver(metrics, log)))
//
// Intercepted methods get spans and call metrics through aspects:
//
//	di.BindInterceptor(aop.InPackage("example.com/orders"), aop.Any[reflect.Method](),
//	    observability.TracingInterceptor(observability.Tracer("orders")),
//	    observability.MetricsInterceptor(metrics))
//
// Component health rolls up into a ServiceHealth:
//
//	health := observability.NewServiceHealth("orders", version).AddComponents(inj.Health(ctx))
package observability
