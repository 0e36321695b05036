package di

import (
	"reflect"
	"sync/atomic"

	"github.com/kbukum/injectkit/errors"
)

// Deferred is the cell a stand-in delegates to. It is empty while the real
// instance is under construction and set exactly once when construction
// completes.
type Deferred[T any] struct {
	target atomic.Pointer[T]
}

// Get returns the real instance. It panics with a NOT_YET_CONSTRUCTED
// error when called before construction completed, such as from the
// constructor the cycle runs through.
func (d *Deferred[T]) Get() T {
	v, err := d.Resolve()
	if err != nil {
		panic(err)
	}
	return v
}

// Resolve returns the real instance, or a NOT_YET_CONSTRUCTED error.
func (d *Deferred[T]) Resolve() (T, error) {
	if p := d.target.Load(); p != nil {
		return *p, nil
	}
	var zero T
	return zero, errors.NotYetConstructed(typeOf[T]().String())
}

// Resolved reports whether the real instance is available.
func (d *Deferred[T]) Resolved() bool {
	return d.target.Load() != nil
}

func (d *Deferred[T]) redirect(instance any) error {
	v, ok := instance.(T)
	if !ok {
		return errors.Newf(errors.ErrCodeCircularDependency,
			"stand-in for %s cannot delegate to %T", typeOf[T](), instance)
	}
	d.target.CompareAndSwap(nil, &v)
	return nil
}

type redirector interface {
	redirect(instance any) error
}

// standInFactory creates a stand-in and the cell it delegates to.
type standInFactory func() (any, redirector)

// findStandIn walks the injector chain for the stand-in factory of iface.
func (i *Injector) findStandIn(iface reflect.Type) standInFactory {
	for cur := i; cur != nil; cur = cur.parent {
		if f, ok := cur.standIns[iface]; ok {
			return f
		}
	}
	return nil
}
