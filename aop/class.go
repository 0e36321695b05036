package aop

import (
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Class is a woven wrapper class: the wrapper of one interface around one
// concrete type with a fixed set of intercepted methods. Classes are cached
// for the life of the process and shared by every injector.
type Class struct {
	iface   reflect.Type
	target  reflect.Type
	methods []string
	wrap    wrapperFunc
}

// Interface returns the interface the wrapper implements.
func (c *Class) Interface() reflect.Type { return c.iface }

// Target returns the concrete type being wrapped.
func (c *Class) Target() reflect.Type { return c.target }

// Methods returns the intercepted method names, sorted.
func (c *Class) Methods() []string {
	out := make([]string, len(c.methods))
	copy(out, c.methods)
	return out
}

func (c *Class) String() string {
	return c.iface.String() + "$$" + c.target.String() + "[" + strings.Join(c.methods, ",") + "]"
}

type classKey struct {
	iface     reflect.Type
	target    reflect.Type
	signature string
}

var (
	classes    sync.Map // classKey -> *Class
	classCount atomic.Int64
)

// classFor returns the cached class for the signature, creating it on first use.
func classFor(iface, target reflect.Type, methods []string, wrap wrapperFunc) *Class {
	key := classKey{iface: iface, target: target, signature: strings.Join(methods, ",")}
	if c, ok := classes.Load(key); ok {
		return c.(*Class)
	}
	c, loaded := classes.LoadOrStore(key, &Class{iface: iface, target: target, methods: methods, wrap: wrap})
	if !loaded {
		classCount.Add(1)
	}
	return c.(*Class)
}

// CachedClasses returns how many woven classes this process has created.
func CachedClasses() int {
	return int(classCount.Load())
}

// ClassOf returns the woven class of v, if v is a woven wrapper.
func ClassOf(v any) (*Class, bool) {
	w, ok := v.(Woven)
	if !ok {
		return nil, false
	}
	h := w.handle()
	if h.plan == nil {
		return nil, false
	}
	return h.plan.class, true
}
