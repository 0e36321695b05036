package di

import (
	"reflect"
	"sync"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/errors"
)

// constructorInjector creates instances of one binding with its constructor,
// weaves them when the binding is intercepted and injects their members.
type constructorInjector struct {
	owner *Injector
	fn    *function
	deps  []*Binding
	weave func(raw any) (any, error)
}

func (c *constructorInjector) construct(rc *ResolutionContext) (any, error) {
	cc := rc.construction(c)
	if cc.constructing {
		return cc.standIn(rc, c.owner, c.fn.out)
	}
	if cc.hasCurrent {
		return cc.current, nil
	}

	cc.constructing = true
	args, err := c.owner.arguments(rc, c.fn, c.deps, reflect.Value{}, nil)
	if err != nil {
		cc.abort()
		return nil, err
	}
	raw, err := c.fn.invoke(args)
	if err != nil {
		cc.abort()
		return nil, errors.Trace(errors.Provision(err, "error injecting constructor"), "at "+c.fn.point.Source)
	}

	instance := raw
	if c.weave != nil {
		if instance, err = c.weave(raw); err != nil {
			cc.abort()
			return nil, errors.Trace(errors.Provision(err, "error weaving instance"), "at "+c.fn.point.Source)
		}
	}
	if err := cc.complete(instance); err != nil {
		return nil, errors.Trace(errors.Provision(err, "error redirecting stand-ins"), "at "+c.fn.point.Source)
	}

	cc.setCurrent(instance)
	defer cc.clearCurrent()
	if err := c.owner.injectMembers(rc, raw); err != nil {
		return nil, err
	}
	return instance, nil
}

// deferredPlans weaves instances whose concrete type is only known once the
// constructor returned. Plans are computed once per concrete type.
type deferredPlans struct {
	weaver *aop.Weaver
	iface  reflect.Type
	plans  sync.Map // reflect.Type -> *aop.Plan, nil when nothing matches
}

func (d *deferredPlans) weave(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	t := reflect.TypeOf(raw)
	p, ok := d.plans.Load(t)
	if !ok {
		plan, err := d.weaver.Plan(d.iface, t)
		if err != nil {
			return nil, err
		}
		p, _ = d.plans.LoadOrStore(t, plan)
	}
	plan := p.(*aop.Plan)
	if plan == nil {
		return raw, nil
	}
	return plan.Wrap(raw)
}

// arguments resolves the parameters of f. target is the injected object of
// a setter and assisted the caller-supplied trailing parameters of a factory.
func (i *Injector) arguments(rc *ResolutionContext, f *function, deps []*Binding, target reflect.Value, assisted []reflect.Value) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(f.params))
	next := 0
	for n, p := range f.params {
		switch p.kind {
		case paramContext:
			args[n] = reflect.ValueOf(rc.Context())
		case paramTarget:
			args[n] = target
		case paramAssisted:
			args[n] = assisted[next]
			next++
		default:
			dep := &f.point.Dependencies[p.dep]
			v, err := resolveDependency(rc, dep, deps[p.dep])
			if err != nil {
				return nil, err
			}
			if args[n], err = valueFor(v, p.typ, dep.Key); err != nil {
				return nil, errors.Tracef(err, "while locating %s for %s", dep.Key, dep)
			}
		}
	}
	return args, nil
}

func resolveDependency(rc *ResolutionContext, dep *Dependency, b *Binding) (any, error) {
	if b == nil {
		return nil, nil
	}
	prev := rc.dependency
	rc.dependency = dep
	defer func() { rc.dependency = prev }()

	v, err := b.get(rc)
	if err != nil {
		return nil, errors.Tracef(err, "while locating %s for %s", dep.Key, dep)
	}
	return v, nil
}
