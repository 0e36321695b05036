// Package aop weaves method interceptors around instances produced by the
// injector.
//
// An aspect pairs a type matcher, tested against the concrete type being
// produced, with a method matcher tested against the methods of the interface
// it is bound under. For every interface that can be intercepted a wrapper is
// registered once per process. The wrapper embeds Handle and routes each
// method through Call, Exec or Value:
//
//	type carWrapper struct {
//	    aop.Handle
//	    target Car
//	}
//
//	func (w *carWrapper) Drive(ctx context.Context, km int) (int, error) {
//	    return aop.Call(&w.Handle, "Drive", []any{ctx, km}, func(args []any) (int, error) {
//	        return w.target.Drive(args[0].(context.Context), args[1].(int))
//	    })
//	}
//
//	func init() {
//	    aop.RegisterWrapper(func(c Car) Car { return &carWrapper{target: c} })
//	}
//
// Methods that no aspect matches go straight to the target. Wrapper classes
// are cached process-wide by (interface, concrete type, intercepted methods),
// so graphs built from the same configuration share them.
package aop
