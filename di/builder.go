package di

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

// builder collects the declarations of one injector.
type builder struct {
	bindings     []*bindingSpec
	constructors []*ConstructorDecl
	setters      []*setterSpec
	aspects      []aop.MethodAspect
	scopes       []*scopeSpec
	standIns     []*standInSpec
}

type scopeEntry struct {
	scope  Scope
	source string
}

// constructorEntry is a declared constructor compiled once per injector.
type constructorEntry struct {
	decl *ConstructorDecl
	fn   *function
}

// creation materializes declarations into an injector's registry. Problems
// are collected, never returned early, so one failed creation reports
// everything that is wrong with the configuration.
type creation struct {
	inj   *Injector
	b     *builder
	errs  *errors.Collector
	specs map[*Binding]*bindingSpec
	// instances lists objects member-injected once at creation.
	instances []*Binding
}

func (c *creation) run() {
	c.registerScopes()
	c.registerStandIns()
	c.registerConstructors()
	c.registerSetters()
	c.registerBindings()
	c.registerImplicitBindings()
	c.index()
}

func (c *creation) registerScopes() {
	for _, s := range c.b.scopes {
		switch {
		case s.annotation == "":
			c.errs.Add(errors.ErrCodeConfiguration, s.source, "scope annotation is empty", nil)
		case s.scope == nil:
			c.errs.Addf(errors.ErrCodeConfiguration, s.source, "scope bound to %q is nil", s.annotation)
		default:
			if prev, ok := c.inj.lookupScope(s.annotation); ok {
				c.errs.Addf(errors.ErrCodeDuplicateBinding, s.source,
					"scope annotation %q is already bound to %s at %s", s.annotation, prev.scope, prev.source)
				continue
			}
			c.inj.scopes[s.annotation] = scopeEntry{scope: s.scope, source: s.source}
		}
	}
}

func (c *creation) registerStandIns() {
	for _, s := range c.b.standIns {
		if s.iface.Kind() != reflect.Interface {
			c.errs.Addf(errors.ErrCodeConfiguration, s.source, "stand-ins can only be registered for interfaces, not %s", s.iface)
			continue
		}
		if c.inj.findStandIn(s.iface) != nil {
			c.errs.Addf(errors.ErrCodeDuplicateBinding, s.source, "a stand-in for %s is already registered", s.iface)
			continue
		}
		c.inj.standIns[s.iface] = s.factory
	}
}

func (c *creation) registerConstructors() {
	for _, d := range c.b.constructors {
		fn, err := inspectFunction(ConstructorPoint, d.fn, d.params, nil, 0)
		if err != nil {
			c.errs.Add(errors.CodeOf(err, errors.ErrCodeInvalidConstructor), d.source, errors.MessageOf(err), err)
			continue
		}
		if prev := c.inj.findConstructor(fn.out); prev != nil {
			c.errs.Addf(errors.ErrCodeDuplicateBinding, d.source,
				"a constructor for %s is already declared at %s", fn.out, prev.decl.source)
			continue
		}
		c.inj.constructors[fn.out] = &constructorEntry{decl: d, fn: fn}
		c.inj.constructorOrder = append(c.inj.constructorOrder, fn.out)
	}
}

func (c *creation) registerSetters() {
	for _, s := range c.b.setters {
		fn, err := inspectFunction(SetterPoint, s.fn, s.params, s.target, 0)
		if err != nil {
			c.errs.Add(errors.CodeOf(err, errors.ErrCodeInvalidConstructor), s.source, errors.MessageOf(err), err)
			continue
		}
		fn.point.Name = s.name
		c.inj.setters = append(c.inj.setters, &setter{owner: c.inj, fn: fn, source: s.source})
	}
}

func (c *creation) registerBindings() {
	for _, spec := range c.b.bindings {
		if spec.key.IsZero() {
			c.errs.Add(errors.ErrCodeConfiguration, spec.source, "binding key is missing", nil)
			continue
		}
		for _, conflict := range spec.conflicts {
			c.errs.Addf(errors.ErrCodeScopeConflict, spec.source, "binding for %s: %s", spec.key, conflict)
		}
		c.put(&Binding{
			key:    spec.key,
			kind:   spec.target.kind(),
			source: spec.source,
			target: spec.target,
			eager:  spec.eager,
			throws: spec.throws,
			owner:  c.inj,
		}, spec)
	}
}

// registerImplicitBindings binds every declared constructor whose type has
// no unqualified binding yet.
func (c *creation) registerImplicitBindings() {
	for _, t := range c.inj.constructorOrder {
		key := KeyFor(t, "")
		if c.inj.lookup(key) != nil {
			continue
		}
		entry := c.inj.constructors[t]
		c.put(&Binding{
			key:    key,
			kind:   KindImplicit,
			source: entry.decl.source,
			target: selfTarget{},
			owner:  c.inj,
		}, &bindingSpec{key: key, target: selfTarget{}, source: entry.decl.source})
	}
}

// put registers b unless its key is bound already, in this injector or an
// ancestor. The first binding wins.
func (c *creation) put(b *Binding, spec *bindingSpec) {
	if b.key == injectorKey {
		c.errs.Addf(errors.ErrCodeDuplicateBinding, b.source,
			"%s is bound by the injector itself and cannot be rebound", b.key)
		return
	}
	if prev := c.inj.lookup(b.key); prev != nil {
		c.errs.Addf(errors.ErrCodeDuplicateBinding, b.source,
			"a binding for %s was already configured at %s", b.key, prev.source)
		return
	}
	c.inj.bindings[b.key] = b
	c.inj.order = append(c.inj.order, b)
	c.specs[b] = spec
}

// index builds the producer of every binding and validates the graph. After
// index the registry is read-only.
func (c *creation) index() {
	for _, b := range c.inj.order {
		c.resolveScope(b, c.specs[b])
		c.buildProducer(b)
	}
	for _, b := range c.inj.order {
		c.checkLinks(b)
		c.checkDeclaredErrors(b)
	}
	for _, s := range c.inj.setters {
		s.deps = c.resolveDeps(s.fn.point, s.source, nil)
	}
	for _, b := range c.inj.order {
		c.finish(b)
	}
}

// resolveScope applies the explicit scope of the binding or, failing that,
// the annotation of the constructed type.
func (c *creation) resolveScope(b *Binding, spec *bindingSpec) {
	explicit := spec.scope != nil || spec.annotation != ""
	if b.kind == KindInstance && (explicit || spec.eager) {
		c.errs.Addf(errors.ErrCodeScopeConflict, b.source, "instance binding for %s cannot be scoped", b.key)
		return
	}

	annotation := spec.annotation
	if typeAnnotation := c.typeAnnotation(b); typeAnnotation != "" {
		if explicit {
			c.inj.log.Warn("Explicit binding scope overrides type annotation", logger.Fields(
				logger.FieldKey, b.key.String(),
				logger.FieldSource, b.source,
				logger.FieldScope, typeAnnotation,
			))
		} else {
			annotation = typeAnnotation
		}
	}

	scope := spec.scope
	if annotation != "" && scope == nil {
		entry, ok := c.inj.lookupScope(annotation)
		if !ok {
			c.errs.Addf(errors.ErrCodeScopeNotFound, b.source, "no scope is bound to annotation %q used by %s", annotation, b.key)
			b.invalid = true
			return
		}
		scope = entry.scope
		b.scopeName = annotation
	}
	if spec.eager {
		if scope != nil && scope != Singleton {
			c.errs.Addf(errors.ErrCodeScopeConflict, b.source,
				"eager singleton %s cannot also be scoped with %s", b.key, scope)
			return
		}
		scope = Singleton
	}
	if scope != nil && b.scopeName == "" {
		b.scopeName = scope.String()
	}
	b.scope = scope
}

func (c *creation) typeAnnotation(b *Binding) string {
	var t reflect.Type
	switch target := b.target.(type) {
	case selfTarget:
		t = b.key.Type()
	case constructorTarget:
		if fn := reflect.TypeOf(target.fn); fn != nil && fn.Kind() == reflect.Func && fn.NumOut() > 0 {
			t = fn.Out(0)
		}
	default:
		return ""
	}
	if entry := c.inj.findConstructor(t); entry != nil {
		return entry.decl.annotation
	}
	return ""
}

func (c *creation) buildProducer(b *Binding) {
	switch target := b.target.(type) {
	case constructorTarget:
		fn, err := inspectFunction(ConstructorPoint, target.fn, target.params, nil, 0)
		if err != nil {
			c.invalid(b, errors.CodeOf(err, errors.ErrCodeInvalidConstructor), err)
			return
		}
		c.constructorBinding(b, fn)

	case selfTarget:
		entry := c.inj.findConstructor(b.key.Type())
		if entry == nil {
			c.invalid(b, errors.ErrCodeInvalidConstructor,
				fmt.Errorf("no constructor is declared for %s", b.key.Type()))
			return
		}
		c.constructorBinding(b, entry.fn)

	case linkTarget:
		b.link = c.inj.lookup(target.key)
		if b.link == nil {
			c.errs.Addf(errors.ErrCodeMissingBinding, b.source, "%s links to %s, which is not bound", b.key, target.key)
			b.invalid = true
			return
		}
		if !target.key.Type().AssignableTo(b.key.Type()) {
			c.invalid(b, errors.ErrCodeConfiguration,
				fmt.Errorf("%s links to %s, which is not assignable to it", b.key, target.key))
			return
		}
		b.unscoped = linkProducer(b.link, c.linkWeave(b))

	case instanceTarget:
		if target.value == nil || !reflect.TypeOf(target.value).AssignableTo(b.key.Type()) {
			c.invalid(b, errors.ErrCodeConfiguration,
				fmt.Errorf("instance %s is not assignable to %s", describeValue(target.value), b.key.Type()))
			return
		}
		b.unscoped = instanceProducer(target.value)
		c.instances = append(c.instances, b)

	case providerTarget:
		if target.provider == nil {
			c.invalid(b, errors.ErrCodeConfiguration, fmt.Errorf("provider for %s is nil", b.key))
			return
		}
		b.unscoped = providerProducer(target.provider)
		c.instances = append(c.instances, b)

	case providerFuncTarget:
		fn, err := inspectFunction(ProviderPoint, target.fn, target.params, nil, 0)
		if err != nil {
			c.invalid(b, errors.CodeOf(err, errors.ErrCodeInvalidConstructor), err)
			return
		}
		if !fn.out.AssignableTo(b.key.Type()) {
			c.invalid(b, errors.ErrCodeInvalidConstructor,
				fmt.Errorf("%s returns %s, which is not assignable to %s", fn.point.Name, fn.out, b.key.Type()))
			return
		}
		p := &providerFuncInjector{owner: c.inj, fn: fn}
		b.point = fn.point
		p.deps = c.resolveDeps(fn.point, b.source, b)
		b.unscoped = p.provide

	case providerKeyTarget:
		if !target.key.Type().Implements(providerType) {
			c.invalid(b, errors.ErrCodeConfiguration,
				fmt.Errorf("%s is provided by %s, which does not implement di.Provider", b.key, target.key))
			return
		}
		b.link = c.inj.lookup(target.key)
		if b.link == nil {
			c.errs.Addf(errors.ErrCodeMissingBinding, b.source, "%s is provided by %s, which is not bound", b.key, target.key)
			b.invalid = true
			return
		}
		b.unscoped = providerKeyProducer(b.link)

	case factoryTarget:
		f, err := newFactory(c.inj, b.key.Type(), target)
		if err != nil {
			c.invalid(b, errors.CodeOf(err, errors.ErrCodeInvalidConstructor), err)
			return
		}
		b.point = f.fn.point
		f.deps = c.resolveDeps(f.fn.point, b.source, b)
		value := f.value.Interface()
		b.unscoped = instanceProducer(value)
	}
}

func (c *creation) constructorBinding(b *Binding, fn *function) {
	if !fn.out.AssignableTo(b.key.Type()) {
		c.invalid(b, errors.ErrCodeInvalidConstructor,
			fmt.Errorf("%s returns %s, which is not assignable to %s", fn.point.Name, fn.out, b.key.Type()))
		return
	}
	ci := &constructorInjector{owner: c.inj, fn: fn}
	b.point = fn.point
	ci.deps = c.resolveDeps(fn.point, b.source, b)
	ci.weave = c.constructorWeave(b, fn.out)
	b.unscoped = ci.construct
}

// constructorWeave returns the weaving step of a constructor binding, nil
// when nothing intercepts it.
func (c *creation) constructorWeave(b *Binding, out reflect.Type) func(any) (any, error) {
	w := c.inj.weaver
	if w.Empty() {
		return nil
	}
	if !b.key.isInterface() {
		if w.Matches(out) {
			c.inj.log.Debug("Skipping interception of binding not keyed by an interface", logger.Fields(
				logger.FieldKey, b.key.String(),
				logger.FieldSource, b.source,
			))
		}
		return nil
	}
	if out.Kind() == reflect.Interface {
		b.woven = true
		return (&deferredPlans{weaver: w, iface: b.key.Type()}).weave
	}
	plan, err := w.Plan(b.key.Type(), out)
	if err != nil {
		c.invalid(b, errors.CodeOf(err, errors.ErrCodeInterception), err)
		return nil
	}
	if plan == nil {
		return nil
	}
	b.woven = true
	c.inj.log.Debug("Weaving binding", logger.Fields(
		logger.FieldKey, b.key.String(),
		logger.FieldType, plan.Class().String(),
	))
	return plan.Wrap
}

// linkWeave weaves a link from an interface to a constructed concrete type.
func (c *creation) linkWeave(b *Binding) func(any) (any, error) {
	target := b.link
	if !b.key.isInterface() || target.key.isInterface() {
		return nil
	}
	if target.kind != KindConstructor && target.kind != KindImplicit {
		return nil
	}
	return c.constructorWeave(b, target.key.Type())
}

// resolveDeps finds the binding of each dependency of point. A missing
// required dependency invalidates owner.
func (c *creation) resolveDeps(point *InjectionPoint, source string, owner *Binding) []*Binding {
	deps := make([]*Binding, len(point.Dependencies))
	for n := range point.Dependencies {
		dep := &point.Dependencies[n]
		deps[n] = c.inj.lookup(dep.Key)
		if deps[n] == nil && !dep.Optional {
			c.errs.Addf(errors.ErrCodeMissingBinding, source, "no binding for %s, required by %s", dep.Key, dep)
			if owner != nil {
				owner.invalid = true
			}
		}
	}
	return deps
}

// checkLinks reports link chains that loop back on themselves.
func (c *creation) checkLinks(b *Binding) {
	if b.kind != KindLinked || b.link == nil {
		return
	}
	seen := map[*Binding]bool{b: true}
	path := []string{b.key.String()}
	for cur := b.link; cur != nil; cur = cur.link {
		path = append(path, cur.key.String())
		if cur.kind != KindLinked {
			return
		}
		if seen[cur] {
			c.errs.Addf(errors.ErrCodeConfiguration, b.source, "linked bindings form a cycle: %s", strings.Join(path, " -> "))
			b.invalid = true
			return
		}
		seen[cur] = true
	}
}

// checkDeclaredErrors verifies that a consumer tolerating a fixed set of
// errors only depends on producers declaring a subset of it.
func (c *creation) checkDeclaredErrors(b *Binding) {
	if b.point == nil {
		return
	}
	for n := range b.point.Dependencies {
		dep := &b.point.Dependencies[n]
		if len(dep.Tolerates) == 0 {
			continue
		}
		producer := c.inj.lookup(dep.Key)
		if producer == nil {
			continue
		}
		for _, thrown := range producer.throws {
			if !tolerated(thrown, dep.Tolerates) {
				c.errs.Addf(errors.ErrCodeIncompatibleErrors, b.source,
					"%s declares %v, which %s does not tolerate", dep.Key, thrown, dep)
				b.invalid = true
			}
		}
	}
}

func tolerated(err error, accepted []error) bool {
	for _, a := range accepted {
		if stderrors.Is(err, a) {
			return true
		}
	}
	return false
}

// finish applies the scope to the unscoped producer.
func (c *creation) finish(b *Binding) {
	if b.invalid || b.unscoped == nil {
		b.invalid = true
		b.producer = b.invalidProducer()
		return
	}
	switch b.scope {
	case nil, Unscoped:
		b.producer = b.unscoped
	case Singleton:
		b.cell = newSingletonCell(b.key, b.unscoped)
		b.producer = b.cell.get
	default:
		b.producer = b.scope.Scope(b.key, b.unscoped)
	}
}

func (c *creation) invalid(b *Binding, code errors.ErrorCode, err error) {
	c.errs.Add(code, b.source, errors.MessageOf(err), err)
	b.invalid = true
}

func describeValue(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("of type %T", v)
}
