package di

import (
	"context"
	"fmt"

	"github.com/kbukum/injectkit/errors"
)

// MustResolve resolves the unqualified binding of T, panics on error.
// Use this in wiring code where a missing dependency is a bug.
//
// Example:
//
//	repo := di.MustResolve[orders.Repository](ctx, injector)
func MustResolve[T any](ctx context.Context, inj *Injector) T {
	v, err := Resolve[T](ctx, inj)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", KeyOf[T](), err))
	}
	return v
}

// Resolve resolves the unqualified binding of T.
//
// Example:
//
//	svc, err := di.Resolve[*billing.Service](ctx, injector)
//	if err != nil {
//	    return fmt.Errorf("failed to get billing service: %w", err)
//	}
func Resolve[T any](ctx context.Context, inj *Injector) (T, error) {
	return resolveKey[T](ctx, inj, KeyOf[T]())
}

// ResolveNamed resolves the binding of T qualified by qualifier.
func ResolveNamed[T any](ctx context.Context, inj *Injector, qualifier string) (T, error) {
	return resolveKey[T](ctx, inj, Named[T](qualifier))
}

// TryResolve resolves T, returns the zero value and false when T is unbound
// or cannot be provisioned.
//
// Example:
//
//	if metrics, ok := di.TryResolve[MetricsClient](ctx, injector); ok {
//	    metrics.RecordEvent(...)
//	}
func TryResolve[T any](ctx context.Context, inj *Injector) (T, bool) {
	v, err := Resolve[T](ctx, inj)
	return v, err == nil
}

func resolveKey[T any](ctx context.Context, inj *Injector, key Key) (T, error) {
	var zero T
	instance, err := inj.GetInstance(ctx, key)
	if err != nil {
		return zero, err
	}
	if instance == nil {
		return zero, nil
	}
	result, ok := instance.(T)
	if !ok {
		return zero, errors.NewProvisionError(errors.ErrCodeProvision,
			fmt.Sprintf("binding for %s produced %T, expected %s", key, instance, key.Type()), nil)
	}
	return result, nil
}
