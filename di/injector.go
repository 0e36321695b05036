package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/component"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

// Stage selects when singletons are created.
type Stage int

const (
	// Development creates singletons on first use.
	Development Stage = iota
	// Production creates every singleton with the injector.
	Production
)

func (s Stage) String() string {
	if s == Production {
		return "production"
	}
	return "development"
}

// ParseStage parses "development" or "production".
func ParseStage(s string) (Stage, error) {
	switch s {
	case "", "development":
		return Development, nil
	case "production":
		return Production, nil
	}
	return Development, errors.Newf(errors.ErrCodeInvalidInput, "unknown stage %q", s)
}

// Option configures an injector.
type Option func(*options)

type options struct {
	stage    *Stage
	log      *logger.Logger
	observer Observer
}

// WithStage sets the stage. Children inherit their parent's stage unless set.
func WithStage(stage Stage) Option {
	return func(o *options) { o.stage = &stage }
}

// WithLogger sets the logger of the injector.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver observes every top-level provisioning.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Injector builds object graphs from bindings. It is created from an ordered
// list of declarations and is immutable and safe for concurrent use
// afterwards.
type Injector struct {
	parent   *Injector
	stage    Stage
	log      *logger.Logger
	observer Observer

	bindings         map[Key]*Binding
	order            []*Binding
	self             *Binding
	scopes           map[string]scopeEntry
	constructors     map[reflect.Type]*constructorEntry
	constructorOrder []reflect.Type
	setters          []*setter
	members          sync.Map // reflect.Type -> []*setter
	standIns         map[reflect.Type]standInFactory
	weaver           *aop.Weaver

	// creationLock serializes scoped creation across an injector tree.
	creationLock *creationLock

	mu         sync.Mutex
	components *component.Registry
}

// New creates an injector from decls. All configuration problems are
// reported together in one *errors.CreationError.
func New(decls []Declaration, opts ...Option) (*Injector, error) {
	return newInjector(nil, decls, opts)
}

// CreateChild creates an injector that inherits the bindings, scopes,
// interceptors and stand-ins of i. The child cannot rebind a key bound by
// any ancestor.
func (i *Injector) CreateChild(decls []Declaration, opts ...Option) (*Injector, error) {
	return newInjector(i, decls, opts)
}

func newInjector(parent *Injector, decls []Declaration, opts []Option) (*Injector, error) {
	start := time.Now()
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	b := &builder{}
	for _, d := range decls {
		if d != nil {
			d.apply(b)
		}
	}

	inj := &Injector{
		parent:       parent,
		bindings:     make(map[Key]*Binding),
		scopes:       make(map[string]scopeEntry),
		constructors: make(map[reflect.Type]*constructorEntry),
		standIns:     make(map[reflect.Type]standInFactory),
	}
	switch {
	case o.stage != nil:
		inj.stage = *o.stage
	case parent != nil:
		inj.stage = parent.stage
	}
	switch {
	case o.log != nil:
		inj.log = o.log
	case parent != nil:
		inj.log = parent.log
	default:
		inj.log = logger.Get("di")
	}
	inj.observer = o.observer
	if inj.observer == nil && parent != nil {
		inj.observer = parent.observer
	}
	if parent != nil {
		inj.creationLock = parent.creationLock
		inj.weaver = parent.weaver.Extend(b.aspects...)
	} else {
		inj.creationLock = &creationLock{}
		inj.weaver = aop.NewWeaver(b.aspects...)
		inj.scopes[SingletonAnnotation] = scopeEntry{scope: Singleton, source: "built-in"}
	}
	inj.self = &Binding{
		key:      injectorKey,
		kind:     KindInstance,
		source:   "built-in",
		target:   instanceTarget{value: inj},
		owner:    inj,
		unscoped: instanceProducer(inj),
		producer: instanceProducer(inj),
	}

	c := &creation{inj: inj, b: b, errs: errors.NewCollector(), specs: make(map[*Binding]*bindingSpec)}
	c.run()
	if !c.errs.HasErrors() {
		inj.injectRequests(c)
	}
	if !c.errs.HasErrors() {
		inj.preload(c)
	}
	if err := c.errs.Err(); err != nil {
		inj.log.Error("Injector creation failed", logger.Fields(
			logger.FieldErrorCount, c.errs.Len(),
			logger.FieldError, err.Error(),
		))
		return nil, err
	}

	inj.log.Info("Injector created", logger.Fields(
		logger.FieldStage, inj.stage.String(),
		logger.FieldBindings, len(inj.order),
		"child", parent != nil,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return inj, nil
}

// injectRequests member-injects instance and provider objects once.
func (i *Injector) injectRequests(c *creation) {
	for _, b := range c.instances {
		var obj any
		switch t := b.target.(type) {
		case instanceTarget:
			obj = t.value
		case providerTarget:
			obj = t.provider
		}
		if err := i.InjectMembers(context.Background(), obj); err != nil {
			c.errs.Add(errors.CodeOf(err, errors.ErrCodeProvision), b.source,
				fmt.Sprintf("error injecting members of %s", b.key), err)
		}
	}
}

// preload creates eager singletons, and in Production every singleton, in
// registration order.
func (i *Injector) preload(c *creation) {
	for _, b := range i.order {
		if b.invalid || b.cell == nil {
			continue
		}
		if !b.eager && i.stage != Production {
			continue
		}
		if _, err := i.provide(context.Background(), b); err != nil {
			c.errs.Add(errors.CodeOf(err, errors.ErrCodeProvision), b.source,
				fmt.Sprintf("error preloading singleton %s", b.key), err)
			continue
		}
		i.log.Debug("Singleton preloaded", logger.Fields(logger.FieldKey, b.key.String()))
	}
}

// lookup finds the binding of key in i or an ancestor.
func (i *Injector) lookup(key Key) *Binding {
	if key == injectorKey {
		return i.self
	}
	for cur := i; cur != nil; cur = cur.parent {
		if b, ok := cur.bindings[key]; ok {
			return b
		}
	}
	return nil
}

func (i *Injector) lookupScope(annotation string) (scopeEntry, bool) {
	for cur := i; cur != nil; cur = cur.parent {
		if s, ok := cur.scopes[annotation]; ok {
			return s, true
		}
	}
	return scopeEntry{}, false
}

func (i *Injector) findConstructor(t reflect.Type) *constructorEntry {
	for cur := i; cur != nil; cur = cur.parent {
		if e, ok := cur.constructors[t]; ok {
			return e
		}
	}
	return nil
}

// GetInstance returns the instance bound to key. Called with the context a
// constructor or provider received, it continues the resolution that is
// running, so a cycle through GetInstance is detected like any other.
func (i *Injector) GetInstance(ctx context.Context, key Key) (any, error) {
	b := i.lookup(key)
	if b == nil {
		return nil, errors.Tracef(errors.NewProvisionError(errors.ErrCodeMissingBinding,
			fmt.Sprintf("no binding for %s", key), nil), "while locating %s", key)
	}
	return i.provide(ctx, b)
}

func (i *Injector) provide(ctx context.Context, b *Binding) (any, error) {
	rc, fresh := newResolutionContext(ctx, i)
	if fresh {
		defer rc.finish()
	}
	var done func(error)
	if fresh && i.observer != nil {
		rc.ctx, done = i.observer.ObserveProvision(rc.ctx, b.key)
	}

	prev := rc.dependency
	rc.dependency = &Dependency{Key: b.key}
	v, err := b.get(rc)
	rc.dependency = prev
	if err == nil && v != nil && !reflect.TypeOf(v).AssignableTo(b.key.Type()) {
		err = errors.NewProvisionError(errors.ErrCodeProvision,
			fmt.Sprintf("binding for %s produced %T, which is not assignable to it", b.key, v), nil)
	}
	if err != nil {
		err = errors.Tracef(err, "while locating %s", b.key)
		v = nil
	}
	if done != nil {
		done(err)
	}
	return v, err
}

// InjectMembers runs the setters declared for v's type on v.
func (i *Injector) InjectMembers(ctx context.Context, v any) error {
	rc, fresh := newResolutionContext(ctx, i)
	if fresh {
		defer rc.finish()
	}
	if err := i.injectMembers(rc, v); err != nil {
		return errors.Tracef(err, "while injecting members of %T", v)
	}
	return nil
}

// Parent returns the parent injector, nil for a root.
func (i *Injector) Parent() *Injector { return i.parent }

// Stage returns the stage of the injector.
func (i *Injector) Stage() Stage { return i.stage }

// Bindings returns the bindings of this injector in registration order.
// Inherited bindings are not included.
func (i *Injector) Bindings() []*Binding {
	return append([]*Binding(nil), i.order...)
}

// Binding returns the binding of key, searching ancestors.
func (i *Injector) Binding(key Key) (*Binding, bool) {
	b := i.lookup(key)
	return b, b != nil
}

// Start starts every created singleton or instance of this injector that
// implements component.Component, in registration order.
func (i *Injector) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.components != nil {
		return errors.New(errors.ErrCodeConfiguration, "injector already started")
	}

	registry := component.NewRegistry()
	for _, b := range i.order {
		v, ok := b.Singleton()
		if !ok && b.kind == KindInstance && !b.invalid {
			v, ok = b.target.(instanceTarget).value, true
		}
		c, isComponent := v.(component.Component)
		if !ok || !isComponent {
			continue
		}
		if registry.Get(c.Name()) != nil {
			continue
		}
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	i.components = registry
	return registry.StartAll(ctx)
}

// Stop stops the components started by Start, in reverse order.
func (i *Injector) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.components == nil {
		return nil
	}
	err := i.components.StopAll(ctx)
	i.components = nil
	return err
}

// Health reports the health of the started components.
func (i *Injector) Health(ctx context.Context) []component.Health {
	i.mu.Lock()
	registry := i.components
	i.mu.Unlock()
	if registry == nil {
		return nil
	}
	return registry.HealthAll(ctx)
}
