package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/injectkit/logger"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	version         string
	output          io.Writer
	tracedPackages  []string
	gracefulTimeout *time.Duration
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is auto-initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithVersion sets the version reported in the summary and telemetry.
// Defaults to the build version of the binary.
func WithVersion(v string) Option {
	return func(o *appOptions) {
		o.version = v
	}
}

// WithOutput sets where the binding summary is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *appOptions) {
		o.output = w
	}
}

// WithTracedPackages intercepts every method of the types declared in the
// given import paths with the tracing and metrics interceptors. It has no
// effect unless tracing is enabled in the config.
func WithTracedPackages(paths ...string) Option {
	return func(o *appOptions) {
		o.tracedPackages = append(o.tracedPackages, paths...)
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}
