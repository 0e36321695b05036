package aop

import (
	"context"
	"reflect"
)

// Interceptor runs around an intercepted method call. It calls
// inv.Proceed to continue down the chain, or returns without proceeding to
// short-circuit the call.
type Interceptor interface {
	Invoke(inv *Invocation) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(inv *Invocation) (any, error)

// Invoke calls f(inv).
func (f InterceptorFunc) Invoke(inv *Invocation) (any, error) { return f(inv) }

// Invocation is one intercepted method call at one position of its chain.
type Invocation struct {
	method reflect.Method
	this   any
	args   []any
	chain  []Interceptor
	index  int
	body   func(args []any) (any, error)
}

// Method returns the interface method being called.
func (inv *Invocation) Method() reflect.Method { return inv.method }

// This returns the woven wrapper the call was made on, not the target.
func (inv *Invocation) This() any { return inv.this }

// Arguments returns the call arguments. Interceptors may replace elements
// before proceeding.
func (inv *Invocation) Arguments() []any { return inv.args }

// Context returns the first context.Context argument, or context.Background.
func (inv *Invocation) Context() context.Context {
	for _, a := range inv.args {
		if ctx, ok := a.(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// Proceed calls the next interceptor, or the method body once the chain is
// exhausted.
func (inv *Invocation) Proceed() (any, error) {
	if inv.index >= len(inv.chain) {
		return inv.body(inv.args)
	}
	next := *inv
	next.index = inv.index + 1
	return inv.chain[inv.index].Invoke(&next)
}
