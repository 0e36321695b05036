package aop

import (
	"reflect"
	"strings"
)

// Matcher decides whether an aspect applies to a value.
type Matcher[T any] interface {
	Matches(v T) bool
	String() string
}

// TypeMatcher matches the concrete type an instance is constructed as.
type TypeMatcher = Matcher[reflect.Type]

// MethodMatcher matches interface methods. Method.Type has no receiver.
type MethodMatcher = Matcher[reflect.Method]

type matcherFunc[T any] struct {
	desc string
	fn   func(T) bool
}

func (m matcherFunc[T]) Matches(v T) bool { return m.fn(v) }
func (m matcherFunc[T]) String() string   { return m.desc }

// NewMatcher builds a matcher from a predicate.
func NewMatcher[T any](desc string, fn func(T) bool) Matcher[T] {
	return matcherFunc[T]{desc: desc, fn: fn}
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Any matches everything.
func Any[T any]() Matcher[T] {
	return NewMatcher("any()", func(T) bool { return true })
}

// Only matches exactly t.
func Only(t reflect.Type) TypeMatcher {
	return NewMatcher("only("+t.String()+")", func(x reflect.Type) bool { return x == t })
}

// SubtypeOf matches types implementing the interface t, or t itself and
// pointers to it when t is concrete.
func SubtypeOf(t reflect.Type) TypeMatcher {
	return NewMatcher("subtypeOf("+t.String()+")", func(x reflect.Type) bool {
		if t.Kind() == reflect.Interface {
			return x.Implements(t)
		}
		return x == t || (x.Kind() == reflect.Pointer && x.Elem() == t)
	})
}

// InPackage matches types declared in the package with the given import path.
func InPackage(path string) TypeMatcher {
	return NewMatcher("inPackage("+path+")", func(x reflect.Type) bool {
		if x.Kind() == reflect.Pointer {
			x = x.Elem()
		}
		return x.PkgPath() == path
	})
}

// Named matches a method by name.
func Named(name string) MethodMatcher {
	return NewMatcher("named("+name+")", func(m reflect.Method) bool { return m.Name == name })
}

// Prefix matches methods whose name starts with prefix.
func Prefix(prefix string) MethodMatcher {
	return NewMatcher("prefix("+prefix+")", func(m reflect.Method) bool {
		return strings.HasPrefix(m.Name, prefix)
	})
}

// Returns matches methods whose first result type satisfies tm.
func Returns(tm TypeMatcher) MethodMatcher {
	return NewMatcher("returns("+tm.String()+")", func(m reflect.Method) bool {
		return m.Type.NumOut() > 0 && tm.Matches(m.Type.Out(0))
	})
}

// Not inverts m.
func Not[T any](m Matcher[T]) Matcher[T] {
	return NewMatcher("not("+m.String()+")", func(v T) bool { return !m.Matches(v) })
}

// And matches when every matcher matches.
func And[T any](ms ...Matcher[T]) Matcher[T] {
	return NewMatcher(join("and", ms), func(v T) bool {
		for _, m := range ms {
			if !m.Matches(v) {
				return false
			}
		}
		return true
	})
}

// Or matches when any matcher matches.
func Or[T any](ms ...Matcher[T]) Matcher[T] {
	return NewMatcher(join("or", ms), func(v T) bool {
		for _, m := range ms {
			if m.Matches(v) {
				return true
			}
		}
		return false
	})
}

func join[T any](op string, ms []Matcher[T]) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}
