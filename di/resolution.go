package di

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/kbukum/injectkit/errors"
)

// ResolutionContext is the state of one top-level request to an injector.
// It is confined to the goroutine serving that request and passed explicitly
// to every Producer.
type ResolutionContext struct {
	ctx           context.Context
	injector      *Injector
	constructions map[any]*constructionContext
	dependency    *Dependency
	inFlight      map[any]struct{}
	locked        bool
	active        atomic.Bool
	goroutine     int64
}

type resolutionKey struct{}

// newResolutionContext starts a resolution on behalf of inj. A context
// carrying a resolution that is still running on the calling goroutine
// continues it, so a constructor resolving through its own context joins the
// resolution that called it. Other goroutines handed that context start their
// own resolution.
func newResolutionContext(ctx context.Context, inj *Injector) (rc *ResolutionContext, fresh bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	gid := goid()
	if outer, ok := ctx.Value(resolutionKey{}).(*ResolutionContext); ok && outer.active.Load() &&
		outer.goroutine == gid && outer.injector.creationLock == inj.creationLock {
		return outer, false
	}
	rc = &ResolutionContext{
		injector:      inj,
		constructions: make(map[any]*constructionContext),
		inFlight:      make(map[any]struct{}),
		goroutine:     gid,
	}
	rc.ctx = context.WithValue(ctx, resolutionKey{}, rc)
	rc.active.Store(true)
	return rc, true
}

func (rc *ResolutionContext) finish() {
	rc.active.Store(false)
}

// Context returns the context of the request. Constructors and providers
// taking a context.Context receive it.
func (rc *ResolutionContext) Context() context.Context { return rc.ctx }

// Dependency returns the dependency currently being resolved, or nil at the
// top level.
func (rc *ResolutionContext) Dependency() *Dependency { return rc.dependency }

// Reentrant reports whether token is being produced further up this
// resolution. Scopes use it to hand re-entrant requests straight to the
// unscoped producer, where construction cycles are handled.
func (rc *ResolutionContext) Reentrant(token any) bool {
	_, ok := rc.inFlight[token]
	return ok
}

// Exclusive runs fn holding the creation lock shared by an injector tree,
// with token marked in flight. The lock is taken once per resolution and is
// re-entrant for the goroutine holding it, so nested scoped creations do not
// block, even when they run in a fresh resolution.
func (rc *ResolutionContext) Exclusive(token any, fn func() (any, error)) (any, error) {
	if !rc.locked {
		lock := rc.injector.creationLock
		lock.lock(rc.goroutine)
		rc.locked = true
		defer func() {
			rc.locked = false
			lock.unlock()
		}()
	}
	rc.inFlight[token] = struct{}{}
	defer delete(rc.inFlight, token)
	return fn()
}

func (rc *ResolutionContext) construction(site any) *constructionContext {
	cc, ok := rc.constructions[site]
	if !ok {
		cc = &constructionContext{}
		rc.constructions[site] = cc
	}
	return cc
}

type standInRecord struct {
	iface reflect.Type
	cell  redirector
}

// constructionContext tracks one construction site within a resolution:
// idle, constructing (re-entry gets a stand-in) or complete with a current
// instance during member injection.
type constructionContext struct {
	constructing bool
	current      any
	hasCurrent   bool
	standIns     []standInRecord
}

// standIn returns a stand-in for the type expected by the dependency being
// resolved. Only interfaces with a registered stand-in qualify.
func (cc *constructionContext) standIn(rc *ResolutionContext, owner *Injector, produced reflect.Type) (any, error) {
	expected := produced
	if d := rc.dependency; d != nil {
		expected = d.Key.Type()
	}
	if expected.Kind() != reflect.Interface {
		return nil, errors.CircularDependency(expected.String(), "it is not an interface")
	}
	factory := owner.findStandIn(expected)
	if factory == nil {
		return nil, errors.CircularDependency(expected.String(), "no stand-in is registered for it")
	}
	proxy, cell := factory()
	cc.standIns = append(cc.standIns, standInRecord{iface: expected, cell: cell})
	return proxy, nil
}

// complete redirects every stand-in to instance and leaves the constructing
// state.
func (cc *constructionContext) complete(instance any) error {
	cc.constructing = false
	standIns := cc.standIns
	cc.standIns = nil
	for _, s := range standIns {
		if instance == nil || !reflect.TypeOf(instance).Implements(s.iface) {
			return errors.CircularDependency(s.iface.String(), "the constructed instance does not implement it")
		}
		if err := s.cell.redirect(instance); err != nil {
			return err
		}
	}
	return nil
}

func (cc *constructionContext) abort() {
	cc.constructing = false
	cc.standIns = nil
}

func (cc *constructionContext) setCurrent(v any) {
	cc.current = v
	cc.hasCurrent = true
}

func (cc *constructionContext) clearCurrent() {
	cc.current = nil
	cc.hasCurrent = false
}
