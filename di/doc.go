// Package di is a dependency injection container that builds object graphs
// from declarative bindings.
//
// An injector is created once from an ordered list of declarations. Creation
// validates the whole configuration and reports every problem in a single
// *errors.CreationError. Afterwards the injector is immutable and safe for
// concurrent use.
//
// # Declaring bindings
//
//	decls := []di.Declaration{
//	    di.Constructor(orders.NewService),
//	    di.Bind(di.KeyOf[orders.Repository](), di.ToConstructor(postgres.NewRepository), di.In(di.Singleton)),
//	    di.Bind(di.Named[string]("dsn"), di.ToInstance(cfg.DSN)),
//	    di.Setter[*orders.Service]("SetClock", (*orders.Service).SetClock),
//	}
//	injector, err := di.New(decls, di.WithStage(di.Production))
//
// Constructor parameters are dependencies keyed by their type, qualified
// with di.Param. A context.Context parameter receives the context of the
// request.
//
// # Resolution
//
//	svc := di.MustResolve[*orders.Service](ctx, injector)
//
// Failures while producing an instance are returned as one
// *errors.ProvisionError listing the injection sites it crossed.
//
// # Cycles
//
// A dependency cycle through an interface is broken with a stand-in
// registered with di.StandIn. The stand-in delegates to the real instance
// once its construction completes.
//
// # Scopes
//
// Bindings are unscoped by default. di.Singleton keeps one instance per
// injector tree, and custom scopes are bound with di.BindScope. In the
// Production stage every singleton is created with the injector.
//
// # Interception
//
// di.BindInterceptor weaves aop interceptors around the methods of
// instances bound under an interface. See package aop.
package di
