package di

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// goid returns the id of the calling goroutine, parsed from its stack header.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(field, 10, 64)
	return id
}

// creationLock serializes scoped creation across an injector tree. The
// goroutine holding it may take it again, so a constructor that resolves
// through a fresh context does not wait on its own resolution.
type creationLock struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (l *creationLock) lock(gid int64) {
	if l.owner.Load() == gid {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(gid)
	l.depth = 1
}

func (l *creationLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}
