package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/injectkit/errors"
)

var providerType = typeOf[Provider]()

func instanceProducer(v any) Producer {
	return func(*ResolutionContext) (any, error) { return v, nil }
}

func providerProducer(p Provider) Producer {
	return func(rc *ResolutionContext) (any, error) {
		v, err := p.Get(rc.Context())
		if err != nil {
			return nil, errors.Trace(errors.Provision(err, "error in provider"), fmt.Sprintf("at %T", p))
		}
		return v, nil
	}
}

// providerFuncInjector calls a provider function. Like constructors it is a
// construction site, so cycles through provider functions resolve to
// stand-ins or fail instead of recursing.
type providerFuncInjector struct {
	owner *Injector
	fn    *function
	deps  []*Binding
}

func (p *providerFuncInjector) provide(rc *ResolutionContext) (any, error) {
	cc := rc.construction(p)
	if cc.constructing {
		return cc.standIn(rc, p.owner, p.fn.out)
	}
	cc.constructing = true
	args, err := p.owner.arguments(rc, p.fn, p.deps, reflect.Value{}, nil)
	if err != nil {
		cc.abort()
		return nil, err
	}
	v, err := p.fn.invoke(args)
	if err != nil {
		cc.abort()
		return nil, errors.Trace(errors.Provision(err, "error in provider function"), "at "+p.fn.point.Source)
	}
	if err := cc.complete(v); err != nil {
		return nil, errors.Trace(errors.Provision(err, "error redirecting stand-ins"), "at "+p.fn.point.Source)
	}
	return v, nil
}

// providerKeyProducer resolves the Provider bound under target and calls it.
func providerKeyProducer(target *Binding) Producer {
	return func(rc *ResolutionContext) (any, error) {
		v, err := target.get(rc)
		if err != nil {
			return nil, err
		}
		p, ok := v.(Provider)
		if !ok {
			return nil, errors.NewProvisionError(errors.ErrCodeProvision,
				fmt.Sprintf("binding for %s produced %T, which is not a di.Provider", target.key, v), nil)
		}
		return providerProducer(p)(rc)
	}
}

// linkProducer delegates to target, weaving the result when the link exposes
// a constructed concrete type under an intercepted interface.
func linkProducer(target *Binding, weave func(any) (any, error)) Producer {
	return func(rc *ResolutionContext) (any, error) {
		v, err := target.get(rc)
		if err != nil || weave == nil {
			return v, err
		}
		woven, err := weave(v)
		if err != nil {
			return nil, errors.Trace(errors.Provision(err, "error weaving instance"), "at "+target.source)
		}
		return woven, nil
	}
}

// factory implements an assisted factory: a function value of type F whose
// arguments are the trailing parameters of a constructor. The leading
// parameters are injected on each call.
type factory struct {
	owner   *Injector
	typ     reflect.Type
	fn      *function
	deps    []*Binding
	returns bool // F returns (T, error)
	value   reflect.Value
}

// newFactory validates fn against the function type typ.
func newFactory(owner *Injector, typ reflect.Type, target factoryTarget) (*factory, error) {
	if typ.Kind() != reflect.Func {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor, "factory key %s is not a function type", typ)
	}
	fn, err := inspectFunction(FactoryPoint, target.fn, target.params, nil, typ.NumIn())
	if err != nil {
		return nil, err
	}
	assisted := fn.assistedTypes()
	for n, t := range assisted {
		if !typ.In(n).AssignableTo(t) {
			return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
				"factory %s passes %s as parameter %d of %s, which takes %s", typ, typ.In(n), n, fn.point.Name, t)
		}
	}
	f := &factory{owner: owner, typ: typ, fn: fn}
	switch {
	case typ.NumOut() == 1 && typ.Out(0) != errorType:
	case typ.NumOut() == 2 && typ.Out(1) == errorType:
		f.returns = true
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor, "factory %s must return (T) or (T, error)", typ)
	}
	if !fn.out.AssignableTo(typ.Out(0)) {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
			"factory %s returns %s, but %s builds %s", typ, typ.Out(0), fn.point.Name, fn.out)
	}
	f.value = reflect.MakeFunc(typ, f.call)
	return f, nil
}

func (f *factory) call(in []reflect.Value) []reflect.Value {
	ctx := context.Background()
	for _, v := range in {
		if v.Type() == contextType && !v.IsNil() {
			ctx = v.Interface().(context.Context)
			break
		}
	}
	v, err := f.create(ctx, in)
	out := f.typ.Out(0)
	result := reflect.Zero(out)
	if err == nil && v != nil {
		result = reflect.ValueOf(v).Convert(out)
	}
	if !f.returns {
		if err != nil {
			panic(err)
		}
		return []reflect.Value{result}
	}
	errValue := reflect.Zero(errorType)
	if err != nil {
		errValue = reflect.ValueOf(&err).Elem()
	}
	return []reflect.Value{result, errValue}
}

func (f *factory) create(ctx context.Context, assisted []reflect.Value) (any, error) {
	rc, fresh := newResolutionContext(ctx, f.owner)
	if fresh {
		defer rc.finish()
	}
	args, err := f.owner.arguments(rc, f.fn, f.deps, reflect.Value{}, assisted)
	if err != nil {
		return nil, err
	}
	v, err := f.fn.invoke(args)
	if err != nil {
		return nil, errors.Trace(errors.Provision(err, "error in assisted factory"), "at "+f.fn.point.Source)
	}
	if err := f.owner.injectMembers(rc, v); err != nil {
		return nil, err
	}
	return v, nil
}
