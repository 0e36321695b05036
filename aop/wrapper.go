package aop

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/kbukum/injectkit/errors"
)

// Handle carries the interception state of a wrapper. Wrapper types embed it
// and pass &w.Handle to Call, Exec or Value. A zero Handle dispatches every
// method straight to its body.
type Handle struct {
	plan *Plan
	self any
}

func (h *Handle) handle() *Handle { return h }

// Woven is implemented by every type embedding Handle.
type Woven interface {
	handle() *Handle
}

type wrapperFunc func(target any) any

var wrappers sync.Map // reflect.Type -> wrapperFunc

// RegisterWrapper registers the wrapper constructor for interface T. It
// panics if T is not an interface or already has a wrapper.
func RegisterWrapper[T any](wrap func(target T) T) {
	t := TypeOf[T]()
	if t.Kind() != reflect.Interface {
		panic("aop: RegisterWrapper requires an interface type, got " + t.String())
	}
	fn := wrapperFunc(func(target any) any { return wrap(target.(T)) })
	if _, loaded := wrappers.LoadOrStore(t, fn); loaded {
		panic("aop: wrapper already registered for " + t.String())
	}
}

// HasWrapper reports whether a wrapper is registered for the interface t.
func HasWrapper(t reflect.Type) bool {
	_, ok := wrappers.Load(t)
	return ok
}

func lookupWrapper(t reflect.Type) (wrapperFunc, bool) {
	fn, ok := wrappers.Load(t)
	if !ok {
		return nil, false
	}
	return fn.(wrapperFunc), true
}

func (h *Handle) chain(method string) []Interceptor {
	if h == nil || h.plan == nil {
		return nil
	}
	return h.plan.dispatch[method]
}

func (h *Handle) invoke(method string, chain []Interceptor, args []any, body func([]any) (any, error)) (any, error) {
	inv := &Invocation{
		method: h.plan.methods[method],
		this:   h.self,
		args:   args,
		chain:  chain,
		body:   body,
	}
	return inv.Proceed()
}

// Call dispatches a method returning (R, error) through its interceptor chain.
func Call[R any](h *Handle, method string, args []any, body func(args []any) (R, error)) (R, error) {
	chain := h.chain(method)
	if len(chain) == 0 {
		return body(args)
	}
	res, err := h.invoke(method, chain, args, func(a []any) (any, error) { return body(a) })
	return result[R](method, res, err)
}

// Exec dispatches a method returning only an error.
func Exec(h *Handle, method string, args []any, body func(args []any) error) error {
	chain := h.chain(method)
	if len(chain) == 0 {
		return body(args)
	}
	_, err := h.invoke(method, chain, args, func(a []any) (any, error) { return nil, body(a) })
	return err
}

// Value dispatches a method without an error result. An interceptor error
// cannot be returned through such a method and panics instead.
func Value[R any](h *Handle, method string, args []any, body func(args []any) R) R {
	chain := h.chain(method)
	if len(chain) == 0 {
		return body(args)
	}
	res, err := h.invoke(method, chain, args, func(a []any) (any, error) { return body(a), nil })
	r, err := result[R](method, res, err)
	if err != nil {
		panic(err)
	}
	return r
}

func result[R any](method string, res any, err error) (R, error) {
	var zero R
	if res == nil {
		return zero, err
	}
	r, ok := res.(R)
	if !ok {
		return zero, errors.Newf(errors.ErrCodeInterception,
			"interceptor for %s returned %T, expected %s", method, res, TypeOf[R]())
	}
	return r, err
}

// describe is used in error messages for a target that cannot be wrapped.
func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
