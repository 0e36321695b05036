package di

import (
	"reflect"

	"github.com/kbukum/injectkit/errors"
)

// Kind is the production strategy of a binding.
type Kind int

const (
	KindConstructor Kind = iota
	KindImplicit
	KindLinked
	KindInstance
	KindProvider
	KindProviderFunc
	KindProviderKey
	KindFactory
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindImplicit:
		return "implicit"
	case KindLinked:
		return "linked"
	case KindInstance:
		return "instance"
	case KindProvider:
		return "provider"
	case KindProviderFunc:
		return "provider-func"
	case KindProviderKey:
		return "provider-key"
	case KindFactory:
		return "factory"
	default:
		return "unknown"
	}
}

// Binding maps a key to the scoped producer of its instances. Bindings are
// immutable once the injector that owns them has been created.
type Binding struct {
	key       Key
	kind      Kind
	source    string
	target    Target
	scope     Scope
	scopeName string
	eager     bool
	throws    []error
	owner     *Injector

	point *InjectionPoint
	// deps holds the binding satisfying each dependency of point, nil for an
	// unbound optional one.
	deps  []*Binding
	link  *Binding
	woven bool

	invalid  bool
	unscoped Producer
	producer Producer
	cell     *singletonCell
}

// Key returns the bound key.
func (b *Binding) Key() Key { return b.key }

// Kind returns the production strategy.
func (b *Binding) Kind() Kind { return b.kind }

// Source returns where the binding was declared.
func (b *Binding) Source() string { return b.source }

// Scope returns the scope applied to the binding, Unscoped when none.
func (b *Binding) Scope() Scope {
	if b.scope == nil {
		return Unscoped
	}
	return b.scope
}

// Eager reports whether the binding is created with the injector in every stage.
func (b *Binding) Eager() bool { return b.eager }

// Target returns the key a linked or provider-key binding delegates to.
func (b *Binding) Target() (Key, bool) {
	switch t := b.target.(type) {
	case linkTarget:
		return t.key, true
	case providerKeyTarget:
		return t.key, true
	}
	return Key{}, false
}

// Dependencies returns the injected parameters of the binding's
// constructor, provider function or factory.
func (b *Binding) Dependencies() []Dependency {
	if b.point == nil {
		return nil
	}
	return append([]Dependency(nil), b.point.Dependencies...)
}

// Intercepted reports whether instances are woven with interceptors.
func (b *Binding) Intercepted() bool { return b.woven }

// DeclaredErrors returns the errors declared with Throws.
func (b *Binding) DeclaredErrors() []error { return append([]error(nil), b.throws...) }

// Singleton returns the instance of a singleton binding when it has been
// created already. It never creates the instance.
func (b *Binding) Singleton() (any, bool) {
	if b.cell == nil {
		return nil, false
	}
	return b.cell.load()
}

func (b *Binding) String() string {
	s := b.kind.String() + " binding for " + b.key.String()
	if b.scope != nil && b.scope != Unscoped {
		s += " in " + b.scope.String()
	}
	return s + " at " + b.source
}

// get runs the scoped producer, recording the binding as a trace frame.
func (b *Binding) get(rc *ResolutionContext) (any, error) {
	v, err := b.producer(rc)
	if err != nil {
		return nil, errors.Tracef(err, "at binding for %s (%s)", b.key, b.source)
	}
	return v, nil
}

func (b *Binding) invalidProducer() Producer {
	return func(*ResolutionContext) (any, error) {
		return nil, errors.NewProvisionError(errors.ErrCodeInvalidBinding,
			"binding for "+b.key.String()+" is invalid; its configuration errors were reported when the injector was created", nil)
	}
}

var injectorKey = KeyFor(reflect.TypeOf((*Injector)(nil)), "")
