package di

import (
	"context"
	"reflect"

	"github.com/kbukum/injectkit/aop"
)

// Declaration is one entry of an injector configuration. Declarations are
// produced by the functions of this file and applied in order.
type Declaration interface {
	apply(b *builder)
}

type declarationFunc func(b *builder)

func (f declarationFunc) apply(b *builder) { f(b) }

// Provider produces instances for a key from outside the injector.
type Provider interface {
	Get(ctx context.Context) (any, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (any, error)

// Get calls f(ctx).
func (f ProviderFunc) Get(ctx context.Context) (any, error) { return f(ctx) }

// Target is the production strategy of a binding.
type Target interface {
	kind() Kind
}

type (
	constructorTarget struct {
		fn     any
		params []ParamOption
	}
	selfTarget         struct{}
	linkTarget         struct{ key Key }
	instanceTarget     struct{ value any }
	providerTarget     struct{ provider Provider }
	providerFuncTarget struct {
		fn     any
		params []ParamOption
	}
	providerKeyTarget struct{ key Key }
	factoryTarget     struct {
		fn     any
		params []ParamOption
	}
)

func (constructorTarget) kind() Kind  { return KindConstructor }
func (selfTarget) kind() Kind         { return KindImplicit }
func (linkTarget) kind() Kind         { return KindLinked }
func (instanceTarget) kind() Kind     { return KindInstance }
func (providerTarget) kind() Kind     { return KindProvider }
func (providerFuncTarget) kind() Kind { return KindProviderFunc }
func (providerKeyTarget) kind() Kind  { return KindProviderKey }
func (factoryTarget) kind() Kind      { return KindFactory }

// ToConstructor constructs instances by calling fn with injected parameters.
// fn returns (T) or (T, error) where T is assignable to the bound type.
func ToConstructor(fn any, params ...ParamOption) Target {
	return constructorTarget{fn: fn, params: params}
}

// ToSelf constructs the bound type with the constructor declared for it.
func ToSelf() Target { return selfTarget{} }

// ToKey delegates to the binding of another key.
func ToKey(key Key) Target { return linkTarget{key: key} }

// ToInstance always returns v. Instances are member-injected once when the
// injector is created.
func ToInstance(v any) Target { return instanceTarget{value: v} }

// ToProvider delegates to an external producer.
func ToProvider(p Provider) Target { return providerTarget{provider: p} }

// ToProviderFunc calls fn with injected parameters on every request.
func ToProviderFunc(fn any, params ...ParamOption) Target {
	return providerFuncTarget{fn: fn, params: params}
}

// ToProviderKey delegates to the Provider bound under key.
func ToProviderKey(key Key) Target { return providerKeyTarget{key: key} }

// ToFactory binds a function type F to a factory calling ctor. F's parameters
// are the trailing parameters of ctor; the leading ones are injected at call
// time.
func ToFactory(ctor any, params ...ParamOption) Target {
	return factoryTarget{fn: ctor, params: params}
}

type bindingSpec struct {
	key        Key
	target     Target
	source     string
	scope      Scope
	annotation string
	eager      bool
	throws     []error
	conflicts  []string
}

// BindingOption configures a binding.
type BindingOption func(*bindingSpec)

// In scopes the binding with scope.
func In(scope Scope) BindingOption {
	return func(s *bindingSpec) {
		if s.scope != nil || s.annotation != "" {
			s.conflicts = append(s.conflicts, "scope set more than once")
		}
		s.scope = scope
	}
}

// InScope scopes the binding with the scope bound to annotation.
func InScope(annotation string) BindingOption {
	return func(s *bindingSpec) {
		if s.scope != nil || s.annotation != "" {
			s.conflicts = append(s.conflicts, "scope set more than once")
		}
		s.annotation = annotation
	}
}

// AsEagerSingleton makes the binding a singleton created with the injector
// in every stage.
func AsEagerSingleton() BindingOption {
	return func(s *bindingSpec) { s.eager = true }
}

// Throws declares the errors the binding's producer may fail with.
func Throws(errs ...error) BindingOption {
	return func(s *bindingSpec) { s.throws = append(s.throws, errs...) }
}

// WithSource overrides the captured declaration source.
func WithSource(source string) BindingOption {
	return func(s *bindingSpec) { s.source = source }
}

// Bind declares a binding of key to target. A nil target is ToSelf.
func Bind(key Key, target Target, opts ...BindingOption) Declaration {
	spec := &bindingSpec{key: key, target: target, source: callerSource(1)}
	if spec.target == nil {
		spec.target = selfTarget{}
	}
	for _, opt := range opts {
		opt(spec)
	}
	return declarationFunc(func(b *builder) { b.bindings = append(b.bindings, spec) })
}

// ConstructorDecl declares the injectable constructor of a type.
type ConstructorDecl struct {
	fn         any
	params     []ParamOption
	source     string
	annotation string
}

// Constructor declares fn as the constructor of its result type. Types with
// a declared constructor and no explicit binding are bound implicitly.
func Constructor(fn any, params ...ParamOption) *ConstructorDecl {
	return &ConstructorDecl{fn: fn, params: params, source: callerSource(1)}
}

// ScopedAs attaches a type-level scope annotation, used when the binding of
// the type has no explicit scope.
func (d *ConstructorDecl) ScopedAs(annotation string) *ConstructorDecl {
	d.annotation = annotation
	return d
}

func (d *ConstructorDecl) apply(b *builder) { b.constructors = append(b.constructors, d) }

type setterSpec struct {
	target reflect.Type
	name   string
	fn     any
	params []ParamOption
	source string
}

// Setter declares a member injection point of T. fn takes T first, then
// injected parameters, and returns nothing or an error. Setters run in
// declaration order after construction and on InjectMembers.
func Setter[T any](name string, fn any, params ...ParamOption) Declaration {
	spec := &setterSpec{target: typeOf[T](), name: name, fn: fn, params: params, source: callerSource(1)}
	return declarationFunc(func(b *builder) { b.setters = append(b.setters, spec) })
}

// BindInterceptor applies interceptors to the methods matched by methods on
// instances whose concrete type is matched by types.
func BindInterceptor(types aop.TypeMatcher, methods aop.MethodMatcher, interceptors ...aop.Interceptor) Declaration {
	aspect := aop.MethodAspect{Types: types, Methods: methods, Interceptors: interceptors}
	return declarationFunc(func(b *builder) { b.aspects = append(b.aspects, aspect) })
}

type scopeSpec struct {
	annotation string
	scope      Scope
	source     string
}

// BindScope makes scope available under annotation.
func BindScope(annotation string, scope Scope) Declaration {
	spec := &scopeSpec{annotation: annotation, scope: scope, source: callerSource(1)}
	return declarationFunc(func(b *builder) { b.scopes = append(b.scopes, spec) })
}

type standInSpec struct {
	iface   reflect.Type
	factory standInFactory
	source  string
}

// StandIn registers the stand-in used to break construction cycles through
// interface T. newStandIn receives the deferred cell the stand-in must delegate to.
func StandIn[T any](newStandIn func(target *Deferred[T]) T) Declaration {
	spec := &standInSpec{iface: typeOf[T](), source: callerSource(1)}
	spec.factory = func() (any, redirector) {
		cell := &Deferred[T]{}
		return newStandIn(cell), cell
	}
	return declarationFunc(func(b *builder) { b.standIns = append(b.standIns, spec) })
}

// Declarations flattens groups of declarations, so modules can be returned
// as slices and combined.
func Declarations(groups ...[]Declaration) []Declaration {
	var out []Declaration
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
