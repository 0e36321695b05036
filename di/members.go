package di

import (
	"reflect"

	"github.com/kbukum/injectkit/errors"
)

// setter is a compiled member injection point.
type setter struct {
	owner  *Injector
	fn     *function
	deps   []*Binding
	source string
}

// skipped reports whether an optional dependency of the setter is unbound.
func (s *setter) skipped() bool {
	for n, d := range s.fn.point.Dependencies {
		if d.Optional && s.deps[n] == nil {
			return true
		}
	}
	return false
}

func (s *setter) applies(t reflect.Type) bool {
	target := s.fn.point.Owner
	if target.Kind() == reflect.Interface {
		return t.Implements(target)
	}
	return t == target
}

func (s *setter) inject(rc *ResolutionContext, v reflect.Value) error {
	if s.skipped() {
		return nil
	}
	target := v
	if t := s.fn.point.Owner; target.Type() != t {
		target = v.Convert(t)
	}
	args, err := s.owner.arguments(rc, s.fn, s.deps, target, nil)
	if err != nil {
		return err
	}
	if _, err := s.fn.invoke(args); err != nil {
		return errors.Trace(errors.Provision(err, "error injecting "+s.fn.point.String()), "at "+s.source)
	}
	return nil
}

// membersFor returns the setters applying to instances of t: ancestors'
// setters first, each injector's in declaration order.
func (i *Injector) membersFor(t reflect.Type) []*setter {
	if cached, ok := i.members.Load(t); ok {
		return cached.([]*setter)
	}
	var chain []*Injector
	for cur := i; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	var out []*setter
	for n := len(chain) - 1; n >= 0; n-- {
		for _, s := range chain[n].setters {
			if s.applies(t) {
				out = append(out, s)
			}
		}
	}
	actual, _ := i.members.LoadOrStore(t, out)
	return actual.([]*setter)
}

// injectMembers runs the setters of v's dynamic type.
func (i *Injector) injectMembers(rc *ResolutionContext, v any) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for _, s := range i.membersFor(rv.Type()) {
		if err := s.inject(rc, rv); err != nil {
			return err
		}
	}
	return nil
}
