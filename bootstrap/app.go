package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/component"
	"github.com/kbukum/injectkit/config"
	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/observability"
	"github.com/kbukum/injectkit/scopes"
	"github.com/kbukum/injectkit/version"
)

// App assembles an injector from a typed config and declarations, and runs
// the lifecycle of the components it creates.
// The type parameter C is the config type, which must satisfy the Config interface.
//
// Example:
//
//	app, err := bootstrap.NewApp(&myConfig, bootstrap.WithVersion("1.4.0"))
//	app.Install(orders.Declarations()...)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    svc := di.MustResolve[*orders.Service](ctx, a.Injector)
//	    return svc.Warmup(ctx)
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name     string
	Version  string
	Cfg      C
	Injector *di.Injector
	Logger   *logger.Logger
	Summary  *Summary
	// Scopes holds the context scopes named in the config, by annotation.
	Scopes map[string]*scopes.ContextScope

	decls           []di.Declaration
	tracedPackages  []string
	output          io.Writer
	gracefulTimeout time.Duration
	telemetry       []func(context.Context) error
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         o.version,
		Cfg:             cfg,
		Scopes:          make(map[string]*scopes.ContextScope, len(base.Scopes)),
		tracedPackages:  o.tracedPackages,
		output:          o.output,
		gracefulTimeout: 15 * time.Second,
	}
	if app.Version == "" {
		app.Version = version.Get().Short()
	}
	if app.output == nil {
		app.output = os.Stdout
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	logger.Register("di", app.Logger.WithComponent("di"))
	for _, name := range base.Scopes {
		logger.Register("scope."+name, app.Logger.WithComponent("scope."+name))
		if name == scopes.SessionAnnotation {
			app.Scopes[name] = scopes.Session()
		} else {
			app.Scopes[name] = scopes.New(name)
		}
	}

	app.Summary = NewSummary(base.Name, app.Version)
	return app, nil
}

// Install adds declarations to the injector the app builds.
func (a *App[C]) Install(decls ...di.Declaration) {
	a.decls = append(a.decls, decls...)
}

// OnConfigure registers a callback to run once the injector is created and
// its components are started.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// Build creates the injector. The config, the configured scopes and, when
// tracing is enabled, the telemetry observer and aspects are added to the
// installed declarations. Build is a no-op once the injector exists.
func (a *App[C]) Build(ctx context.Context) error {
	if a.Injector != nil {
		return nil
	}
	base := a.Cfg.GetConfig()
	stage, err := di.ParseStage(base.Stage)
	if err != nil {
		return err
	}

	decls := []di.Declaration{
		di.Bind(di.KeyOf[C](), di.ToInstance(a.Cfg), di.WithSource("bootstrap config")),
	}
	if reflect.TypeFor[C]() != reflect.TypeFor[*config.Config]() {
		decls = append(decls, di.Bind(di.KeyOf[*config.Config](), di.ToInstance(base), di.WithSource("bootstrap config")))
	}
	for _, name := range base.Scopes {
		s := a.Scopes[name]
		decls = append(decls, s.Declaration(),
			di.Bind(di.Named[*scopes.ContextScope](name), di.ToInstance(s), di.WithSource("bootstrap scopes")))
	}

	opts := []di.Option{
		di.WithStage(stage),
		di.WithLogger(logger.Get("di")),
	}
	if base.Tracing.Enabled {
		obs, aspects, err := a.initTelemetry(ctx)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		opts = append(opts, di.WithObserver(obs))
		decls = append(decls, aspects...)
	}
	decls = append(decls, a.decls...)

	inj, err := di.New(decls, opts...)
	if err != nil {
		a.shutdownTelemetry(ctx)
		return err
	}
	a.Injector = inj
	return nil
}

// initTelemetry starts the OpenTelemetry providers and returns the provisioning
// observer plus the aspects tracing the configured packages.
func (a *App[C]) initTelemetry(ctx context.Context) (di.Observer, []di.Declaration, error) {
	base := a.Cfg.GetConfig()

	tp, err := observability.InitTracer(ctx, observability.TracerConfigFrom(base, a.Version))
	if err != nil {
		return nil, nil, err
	}
	a.telemetry = append(a.telemetry, tp.Shutdown)
	interceptors := []aop.Interceptor{
		observability.TracingInterceptor(observability.Tracer(observability.InstrumentationName)),
	}

	var metrics *observability.Metrics
	if base.Tracing.Metrics {
		mp, err := observability.InitMeter(ctx, observability.MeterConfigFrom(base, a.Version))
		if err != nil {
			a.shutdownTelemetry(ctx)
			return nil, nil, err
		}
		a.telemetry = append(a.telemetry, mp.Shutdown)
		if metrics, err = observability.NewMetrics(observability.Meter(observability.InstrumentationName)); err != nil {
			a.shutdownTelemetry(ctx)
			return nil, nil, err
		}
		interceptors = append(interceptors, observability.MetricsInterceptor(metrics))
	}

	aspects := make([]di.Declaration, 0, len(a.tracedPackages))
	for _, path := range a.tracedPackages {
		aspects = append(aspects, di.BindInterceptor(aop.InPackage(path), aop.Any[reflect.Method](), interceptors...))
	}
	return observability.NewProvisionObserver(metrics, a.Logger.WithComponent("observability")), aspects, nil
}

func (a *App[C]) shutdownTelemetry(ctx context.Context) error {
	var errs []error
	for i := len(a.telemetry) - 1; i >= 0; i-- {
		if err := a.telemetry[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.telemetry = nil
	return stderrors.Join(errs...)
}

// Report describes the injector's bindings and component health.
// It returns nil before the injector is built.
func (a *App[C]) Report(ctx context.Context) *Report {
	if a.Injector == nil {
		return nil
	}
	r := NewReport(a.Name, a.Version, a.Injector, a.Injector.Health(ctx))
	r.Build = version.Get()
	return r
}

// ReadyCheck verifies that all started components are healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	if a.Injector == nil {
		return nil
	}
	health := observability.NewServiceHealth(a.Name, a.Version).AddComponents(a.Injector.Health(ctx))
	var unhealthy []string
	for _, h := range health.Components {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("%s components: %v", health.Status, unhealthy)
	}
	return nil
}

// Run executes the full application lifecycle for long-running services:
// Build → Start components → OnStart hooks → Configure → ReadyCheck →
// OnReady hooks → Block on signal → OnStop hooks → Graceful Shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the full bootstrap lifecycle.
// Unlike Run, it does not block on shutdown signals: it runs the task and
// shuts down when the task completes or the context is canceled.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// startup performs the common initialization sequence shared by Run and RunTask.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()

	a.Logger.Info("Starting application", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		"stage", a.Cfg.GetConfig().Stage,
	))

	if err := a.Build(ctx); err != nil {
		return fmt.Errorf("injector creation failed: %w", err)
	}

	if err := a.Injector.Start(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	if a.Cfg.GetConfig().Summary {
		a.DisplaySummary(ctx)
	}
	return nil
}

// DisplaySummary prints the binding summary to the app's output.
func (a *App[C]) DisplaySummary(ctx context.Context) {
	if r := a.Report(ctx); r != nil {
		a.Summary.Display(a.output, r)
	}
}

// configure runs registered configuration callbacks.
func (a *App[C]) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Info("Running configuration callbacks", logger.Fields("count", len(a.onConfigure)))
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// stop runs the stop hooks, stops components in reverse order and flushes
// telemetry, all within the graceful timeout.
func (a *App[C]) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error

	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}

	if a.Injector != nil {
		if err := a.Injector.Stop(ctx); err != nil {
			a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
			if shutdownErr == nil {
				shutdownErr = err
			}
		}
	}

	for name, s := range a.Scopes {
		if n := s.Active(); n > 0 {
			a.Logger.Warn("Scope instances still active at shutdown", logger.Fields("scope", name, "active", n))
		}
	}

	if err := a.shutdownTelemetry(ctx); err != nil {
		a.Logger.Error("Telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
