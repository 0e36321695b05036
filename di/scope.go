package di

import (
	"sync/atomic"
)

// Producer produces an instance within a resolution.
type Producer func(rc *ResolutionContext) (any, error)

// Scope decorates the unscoped producer of a binding with an instance reuse
// policy. Scope is called once per binding when the injector is created; the
// returned producer is called concurrently.
type Scope interface {
	Scope(key Key, unscoped Producer) Producer
	String() string
}

// SingletonAnnotation is the annotation Singleton is bound to in every
// injector.
const SingletonAnnotation = "singleton"

var (
	// Unscoped produces a new instance on every request.
	Unscoped Scope = unscopedScope{}
	// Singleton produces one instance per injector tree. Failed creations
	// are retried on the next request.
	Singleton Scope = singletonScope{}
)

type unscopedScope struct{}

func (unscopedScope) Scope(_ Key, unscoped Producer) Producer { return unscoped }
func (unscopedScope) String() string                          { return "unscoped" }

type singletonScope struct{}

func (singletonScope) Scope(key Key, unscoped Producer) Producer {
	return newSingletonCell(key, unscoped).get
}

func (singletonScope) String() string { return SingletonAnnotation }

type singletonValue struct{ v any }

type singletonCell struct {
	key      Key
	unscoped Producer
	value    atomic.Pointer[singletonValue]
}

func newSingletonCell(key Key, unscoped Producer) *singletonCell {
	return &singletonCell{key: key, unscoped: unscoped}
}

func (c *singletonCell) load() (any, bool) {
	if v := c.value.Load(); v != nil {
		return v.v, true
	}
	return nil, false
}

func (c *singletonCell) get(rc *ResolutionContext) (any, error) {
	if v, ok := c.load(); ok {
		return v, nil
	}
	// A re-entrant request comes from a construction cycle. The unscoped
	// producer answers it with a stand-in, which must not be cached.
	if rc.Reentrant(c) {
		return c.unscoped(rc)
	}
	return rc.Exclusive(c, func() (any, error) {
		if v, ok := c.load(); ok {
			return v, nil
		}
		v, err := c.unscoped(rc)
		if err != nil {
			return nil, err
		}
		c.value.Store(&singletonValue{v: v})
		return v, nil
	})
}
