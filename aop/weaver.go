package aop

import (
	"reflect"
	"sort"

	"github.com/kbukum/injectkit/errors"
)

// MethodAspect binds interceptors to the methods selected by two matchers.
type MethodAspect struct {
	Types        TypeMatcher
	Methods      MethodMatcher
	Interceptors []Interceptor
}

// Weaver computes interception plans from an ordered list of aspects.
type Weaver struct {
	aspects []MethodAspect
}

// NewWeaver creates a weaver. Interceptors run in the order aspects are given.
func NewWeaver(aspects ...MethodAspect) *Weaver {
	return &Weaver{aspects: append([]MethodAspect(nil), aspects...)}
}

// Extend returns a weaver applying w's aspects followed by more.
func (w *Weaver) Extend(more ...MethodAspect) *Weaver {
	all := make([]MethodAspect, 0, len(w.aspects)+len(more))
	all = append(all, w.aspects...)
	all = append(all, more...)
	return &Weaver{aspects: all}
}

// Aspects returns the aspects in registration order.
func (w *Weaver) Aspects() []MethodAspect {
	return append([]MethodAspect(nil), w.aspects...)
}

// Empty reports whether the weaver has no aspects.
func (w *Weaver) Empty() bool { return w == nil || len(w.aspects) == 0 }

// Matches reports whether any aspect applies to the concrete type target.
func (w *Weaver) Matches(target reflect.Type) bool {
	if w == nil {
		return false
	}
	for _, a := range w.aspects {
		if a.Types.Matches(target) {
			return true
		}
	}
	return false
}

// Plan computes the interception of target instances exposed as iface. It
// returns nil when no aspect intercepts any method of iface.
func (w *Weaver) Plan(iface, target reflect.Type) (*Plan, error) {
	if !w.Matches(target) {
		return nil, nil
	}
	if iface.Kind() != reflect.Interface {
		return nil, errors.Newf(errors.ErrCodeInterception,
			"%s cannot be intercepted: only instances bound under an interface are woven", iface)
	}

	dispatch := make(map[string][]Interceptor)
	methods := make(map[string]reflect.Method, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		methods[m.Name] = m
		for _, a := range w.aspects {
			if len(a.Interceptors) > 0 && a.Types.Matches(target) && a.Methods.Matches(m) {
				dispatch[m.Name] = append(dispatch[m.Name], a.Interceptors...)
			}
		}
	}
	if len(dispatch) == 0 {
		return nil, nil
	}

	wrap, ok := lookupWrapper(iface)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInterception,
			"no wrapper registered for %s; call aop.RegisterWrapper to intercept %s", iface, target)
	}
	names := make([]string, 0, len(dispatch))
	for name := range dispatch {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Plan{
		class:    classFor(iface, target, names, wrap),
		dispatch: dispatch,
		methods:  methods,
	}, nil
}

// Plan is the interception of one binding: a shared class plus the
// interceptor chain of each intercepted method.
type Plan struct {
	class    *Class
	dispatch map[string][]Interceptor
	methods  map[string]reflect.Method
}

// Class returns the shared woven class.
func (p *Plan) Class() *Class { return p.class }

// Interceptors returns the chain for method, in registration order.
func (p *Plan) Interceptors(method string) []Interceptor {
	return p.dispatch[method]
}

// Wrap returns target wrapped in the plan's class.
func (p *Plan) Wrap(target any) (any, error) {
	if target == nil || !reflect.TypeOf(target).Implements(p.class.iface) {
		return nil, errors.Newf(errors.ErrCodeInterception, "cannot wrap %s as %s", describe(target), p.class.iface)
	}
	w := p.class.wrap(target)
	woven, ok := w.(Woven)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInterception,
			"wrapper %T for %s does not embed aop.Handle", w, p.class.iface)
	}
	h := woven.handle()
	h.plan = p
	h.self = w
	return w, nil
}
