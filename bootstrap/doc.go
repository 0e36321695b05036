// Package bootstrap assembles an application around an injector.
//
// It validates a typed configuration, initializes the logger, binds the
// configured context scopes and optional OpenTelemetry instrumentation,
// creates the injector from the installed declarations, and runs the
// lifecycle of the components the injector created.
//
// # Quick Start
//
//	var cfg MyConfig
//	if err := bootstrap.LoadConfig("orders", &cfg); err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(&cfg, bootstrap.WithVersion(version))
//	app.Install(orders.Declarations()...)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// When the config enables the summary, the bindings and component health
// are printed after startup. Report returns the same information as data
// and renders it as YAML.
package bootstrap
