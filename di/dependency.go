package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/injectkit/errors"
)

// PointKind classifies an injection point.
type PointKind int

const (
	ConstructorPoint PointKind = iota
	ProviderPoint
	SetterPoint
	FactoryPoint
)

func (k PointKind) String() string {
	switch k {
	case ConstructorPoint:
		return "constructor"
	case ProviderPoint:
		return "provider"
	case SetterPoint:
		return "setter"
	case FactoryPoint:
		return "factory"
	default:
		return "unknown"
	}
}

// InjectionPoint is a function whose parameters the injector supplies.
type InjectionPoint struct {
	Kind PointKind
	// Owner is the produced type, or the injected type for setters.
	Owner reflect.Type
	// Name is the function name, or the setter name.
	Name string
	// Source is "pkg.Func (file.go:line)".
	Source       string
	Dependencies []Dependency
}

func (p *InjectionPoint) String() string {
	if p.Kind == SetterPoint {
		return fmt.Sprintf("setter %s of %s at %s", p.Name, p.Owner, p.Source)
	}
	return p.Source
}

// Dependency is one injected parameter of an injection point.
type Dependency struct {
	Point *InjectionPoint
	Key   Key
	// Index is the position of the parameter in the function signature.
	Index    int
	Optional bool
	// Tolerates lists the errors a checked consumer accepts from the producer of Key.
	Tolerates []error
}

func (d *Dependency) String() string {
	if d.Point == nil {
		return d.Key.String()
	}
	return fmt.Sprintf("parameter %d at %s", d.Index, d.Point)
}

// ParamOption configures one parameter of a constructor, provider, setter or
// factory, by its position in the function signature.
type ParamOption struct {
	index int
	apply func(*Dependency)
}

// Param qualifies the key injected at parameter index.
func Param(index int, qualifier string) ParamOption {
	return ParamOption{index: index, apply: func(d *Dependency) {
		d.Key = KeyFor(d.Key.Type(), qualifier)
	}}
}

// Optional injects the zero value at parameter index when its key is unbound.
// A setter with an unbound optional parameter is not called.
func Optional(index int) ParamOption {
	return ParamOption{index: index, apply: func(d *Dependency) { d.Optional = true }}
}

// Tolerate marks parameter index as a checked consumer that accepts errs from
// its producer. Producers declaring other errors with Throws are rejected
// when the injector is created.
func Tolerate(index int, errs ...error) ParamOption {
	return ParamOption{index: index, apply: func(d *Dependency) {
		d.Tolerates = append(d.Tolerates, errs...)
	}}
}

var (
	contextType = typeOf[context.Context]()
	errorType   = typeOf[error]()
)

type paramKind int

const (
	paramDependency paramKind = iota
	paramContext
	paramTarget
	paramAssisted
)

type param struct {
	kind paramKind
	typ  reflect.Type
	dep  int // index into point.Dependencies
}

// function is an introspected constructor, provider, setter or factory
// constructor. It is built once per declaration and shared by every
// injector that uses it.
type function struct {
	fn         reflect.Value
	point      *InjectionPoint
	params     []param
	out        reflect.Type // nil for setters
	returnsErr bool
}

// inspectFunction validates fn and derives its injection point. For setters
// target is the type of the first parameter. For factories the last assisted
// parameters are supplied by the caller.
func inspectFunction(kind PointKind, fn any, opts []ParamOption, target reflect.Type, assisted int) (*function, error) {
	if fn == nil {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor, "%s function is nil", kind)
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor, "%s must be a function, got %s", kind, t)
	}
	if t.IsVariadic() {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor, "%s %s must not be variadic", kind, funcName(v))
	}

	f := &function{fn: v, point: &InjectionPoint{Kind: kind, Name: funcName(v), Source: funcSource(v)}}

	switch kind {
	case SetterPoint:
		if t.NumIn() == 0 || t.In(0) != target {
			return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
				"setter %s must take %s as its first parameter", f.point.Name, target)
		}
		if t.NumOut() > 1 || (t.NumOut() == 1 && t.Out(0) != errorType) {
			return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
				"setter %s must return nothing or error", f.point.Name)
		}
		f.returnsErr = t.NumOut() == 1
		f.point.Owner = target
	default:
		switch {
		case t.NumOut() == 1 && t.Out(0) != errorType:
		case t.NumOut() == 2 && t.Out(1) == errorType:
			f.returnsErr = true
		default:
			return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
				"%s %s must return (T) or (T, error)", kind, f.point.Name)
		}
		f.out = t.Out(0)
		f.point.Owner = f.out
	}

	if assisted > t.NumIn() {
		return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
			"%s %s takes %d parameters, fewer than the %d assisted ones", kind, f.point.Name, t.NumIn(), assisted)
	}

	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		switch {
		case kind == SetterPoint && i == 0:
			f.params = append(f.params, param{kind: paramTarget, typ: in})
		case i >= t.NumIn()-assisted:
			f.params = append(f.params, param{kind: paramAssisted, typ: in})
		case in == contextType:
			f.params = append(f.params, param{kind: paramContext, typ: in})
		default:
			f.params = append(f.params, param{kind: paramDependency, typ: in, dep: len(f.point.Dependencies)})
			f.point.Dependencies = append(f.point.Dependencies, Dependency{Key: KeyFor(in, ""), Index: i})
		}
	}

	for _, opt := range opts {
		dep := f.dependencyAt(opt.index)
		if dep == nil {
			return nil, errors.Newf(errors.ErrCodeInvalidConstructor,
				"parameter %d of %s is not injected", opt.index, f.point.Name)
		}
		opt.apply(dep)
	}
	for i := range f.point.Dependencies {
		f.point.Dependencies[i].Point = f.point
	}
	return f, nil
}

func (f *function) dependencyAt(index int) *Dependency {
	for i := range f.point.Dependencies {
		if f.point.Dependencies[i].Index == index {
			return &f.point.Dependencies[i]
		}
	}
	return nil
}

// assistedTypes returns the types of the caller-supplied parameters.
func (f *function) assistedTypes() []reflect.Type {
	var out []reflect.Type
	for _, p := range f.params {
		if p.kind == paramAssisted {
			out = append(out, p.typ)
		}
	}
	return out
}

// invoke calls the function. A panic inside it becomes an error.
func (f *function) invoke(args []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()

	out := f.fn.Call(args)
	if f.returnsErr {
		if e := out[len(out)-1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
	}
	if f.out != nil {
		result = out[0].Interface()
	}
	return result, nil
}

// valueFor converts a produced instance into an argument of type t.
func valueFor(v any, t reflect.Type, key Key) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, errors.Newf(errors.ErrCodeProvision,
			"binding for %s produced %s, which is not assignable to %s", key, rv.Type(), t)
	}
	return rv, nil
}
