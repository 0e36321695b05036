package di

import "context"

// Observer is notified of every top-level provisioning of an injector.
// ObserveProvision returns the context the provisioning runs with and a
// function called with its outcome.
type Observer interface {
	ObserveProvision(ctx context.Context, key Key) (context.Context, func(err error))
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, key Key) (context.Context, func(err error))

// ObserveProvision calls f(ctx, key).
func (f ObserverFunc) ObserveProvision(ctx context.Context, key Key) (context.Context, func(error)) {
	return f(ctx, key)
}
