package di

import (
	"reflect"
)

// Key identifies a binding: a type plus an optional qualifier. Keys are
// comparable and used directly as map keys.
type Key struct {
	typ       reflect.Type
	qualifier string
}

// KeyOf returns the unqualified key of T.
func KeyOf[T any]() Key {
	return Key{typ: typeOf[T]()}
}

// Named returns the key of T qualified by name.
func Named[T any](qualifier string) Key {
	return Key{typ: typeOf[T](), qualifier: qualifier}
}

// KeyFor returns the key of t with an optional qualifier.
func KeyFor(t reflect.Type, qualifier string) Key {
	return Key{typ: t, qualifier: qualifier}
}

// Type returns the bound type.
func (k Key) Type() reflect.Type { return k.typ }

// Qualifier returns the qualifier, or "" for an unqualified key.
func (k Key) Qualifier() string { return k.qualifier }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.typ == nil }

func (k Key) String() string {
	if k.typ == nil {
		return "<nil>"
	}
	if k.qualifier == "" {
		return k.typ.String()
	}
	return k.typ.String() + "@" + k.qualifier
}

func (k Key) isInterface() bool {
	return k.typ != nil && k.typ.Kind() == reflect.Interface
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
