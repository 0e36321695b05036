package di

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// callerSource returns "file.go:line" of the caller skip frames above.
func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown source"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// funcName returns the package-qualified name of fn, e.g. "orders.NewService".
func funcName(fn reflect.Value) string {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return fn.Type().String()
	}
	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	return name
}

// funcSource returns "pkg.Func (file.go:line)" for fn.
func funcSource(fn reflect.Value) string {
	f := runtime.FuncForPC(fn.Pointer())
	if f == nil {
		return funcName(fn)
	}
	file, line := f.FileLine(f.Entry())
	return fmt.Sprintf("%s (%s:%d)", funcName(fn), filepath.Base(file), line)
}
