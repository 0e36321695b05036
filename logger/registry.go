package logger

import (
	"sort"
	"sync"
)

// named holds loggers registered for injector components such as "di" or
// "scope.request". Components look themselves up by name when they are
// created, so registration has to happen first.
var named = struct {
	sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register makes l the logger handed out for name. A nil l removes the entry.
func Register(name string, l *Logger) {
	named.Lock()
	defer named.Unlock()
	if l == nil {
		delete(named.loggers, name)
		return
	}
	named.loggers[name] = l
}

// Get returns the logger registered for name, or the global logger tagged
// with name as its component.
func Get(name string) *Logger {
	named.RLock()
	l, ok := named.loggers[name]
	named.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// Registered lists the registered names in order.
func Registered() []string {
	named.RLock()
	defer named.RUnlock()
	names := make([]string, 0, len(named.loggers))
	for name := range named.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
