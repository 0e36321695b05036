package scopes

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

// Annotations the built-in scopes are usually bound to.
const (
	RequestAnnotation = "request"
	SessionAnnotation = "session"
)

// DefaultSessionIdleTimeout ends sessions nobody entered for this long.
const DefaultSessionIdleTimeout = 30 * time.Minute

// ContextScope is a di.Scope whose instances are entered explicitly and
// carried by a context.Context. Each entered instance caches one value per
// key until it ends.
type ContextScope struct {
	name string
	log  *logger.Logger
	idle time.Duration

	mu        sync.RWMutex
	live      map[string]*Instance
	nextSweep atomic.Int64
}

// Option configures a ContextScope.
type Option func(*ContextScope)

// WithIdleTimeout ends instances that were not entered for d. Expiry runs
// while new instances are entered, and on Expire.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *ContextScope) { s.idle = d }
}

// New creates a context scope named name.
func New(name string, opts ...Option) *ContextScope {
	s := &ContextScope{
		name: name,
		log:  logger.Get("scope." + name),
		live: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request returns a new scope for HTTP requests.
func Request(opts ...Option) *ContextScope { return New(RequestAnnotation, opts...) }

// Session returns a new scope for sessions spanning requests. Sessions idle
// for DefaultSessionIdleTimeout are ended unless opts say otherwise.
func Session(opts ...Option) *ContextScope {
	return New(SessionAnnotation, append([]Option{WithIdleTimeout(DefaultSessionIdleTimeout)}, opts...)...)
}

// Declaration binds s under its name.
func (s *ContextScope) Declaration() di.Declaration {
	return di.BindScope(s.name, s)
}

func (s *ContextScope) String() string { return s.name }

type contextKey struct{ scope *ContextScope }

// Enter returns ctx carrying the instance identified by id, creating it when
// it is not live. An empty id creates a fresh instance.
func (s *ContextScope) Enter(ctx context.Context, id string) (context.Context, *Instance) {
	s.sweep(time.Now())
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	inst, ok := s.live[id]
	if !ok {
		inst = s.newInstance(id)
	}
	inst.touch()
	s.mu.Unlock()

	if !ok {
		s.log.Debug("Scope instance entered", logger.Fields(logger.FieldScopeID, id))
	}
	return s.carry(ctx, inst), inst
}

// Begin enters a new instance. id is used when it is not empty and no live
// instance has it, otherwise the instance gets a fresh uuid.
func (s *ContextScope) Begin(ctx context.Context, id string) (context.Context, *Instance) {
	s.sweep(time.Now())
	s.mu.Lock()
	if _, taken := s.live[id]; id == "" || taken {
		id = uuid.NewString()
	}
	inst := s.newInstance(id)
	inst.touch()
	s.mu.Unlock()

	s.log.Debug("Scope instance entered", logger.Fields(logger.FieldScopeID, id))
	return s.carry(ctx, inst), inst
}

// Resume enters the live instance identified by id. It never creates one, so
// ids coming from clients cannot grow the live set.
func (s *ContextScope) Resume(ctx context.Context, id string) (context.Context, *Instance, bool) {
	s.mu.Lock()
	inst, ok := s.live[id]
	if ok {
		inst.touch()
	}
	s.mu.Unlock()
	if !ok {
		return ctx, nil, false
	}
	return s.carry(ctx, inst), inst, true
}

// newInstance registers a new instance. s.mu must be held.
func (s *ContextScope) newInstance(id string) *Instance {
	inst := &Instance{id: id, scope: s, values: make(map[di.Key]any)}
	s.live[id] = inst
	return inst
}

func (s *ContextScope) carry(ctx context.Context, inst *Instance) context.Context {
	ctx = logger.ContextWithFields(ctx, logger.Fields(logger.FieldScope, s.name, logger.FieldScopeID, inst.id))
	return context.WithValue(ctx, contextKey{scope: s}, inst)
}

// Current returns the live instance carried by ctx.
func (s *ContextScope) Current(ctx context.Context) (*Instance, bool) {
	if ctx == nil {
		return nil, false
	}
	inst, ok := ctx.Value(contextKey{scope: s}).(*Instance)
	if !ok || inst.Ended() {
		return nil, false
	}
	return inst, true
}

// Instance returns the live instance identified by id.
func (s *ContextScope) Instance(id string) (*Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.live[id]
	return inst, ok
}

// Active returns the number of live instances.
func (s *ContextScope) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// Expire ends every instance not entered since now minus the idle timeout
// and returns how many it ended. Without an idle timeout it does nothing.
func (s *ContextScope) Expire(now time.Time) int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idle).UnixNano()

	s.mu.Lock()
	var stale []*Instance
	for id, inst := range s.live {
		if inst.lastUsed.Load() < cutoff {
			stale = append(stale, inst)
			delete(s.live, id)
		}
	}
	s.mu.Unlock()

	for _, inst := range stale {
		if err := inst.End(); err != nil {
			s.log.Warn("Ending idle scope instance failed", logFields(inst, err))
		}
	}
	if len(stale) > 0 {
		s.log.Debug("Idle scope instances ended", logger.Fields("count", len(stale)))
	}
	return len(stale)
}

// sweep runs Expire at most once per idle timeout.
func (s *ContextScope) sweep(now time.Time) {
	if s.idle <= 0 {
		return
	}
	next := s.nextSweep.Load()
	if now.UnixNano() < next || !s.nextSweep.CompareAndSwap(next, now.Add(s.idle).UnixNano()) {
		return
	}
	s.Expire(now)
}

// End ends the instance identified by id. Ending an unknown id is a no-op.
func (s *ContextScope) End(id string) error {
	inst, ok := s.Instance(id)
	if !ok {
		return nil
	}
	return inst.End()
}

// Scope implements di.Scope.
func (s *ContextScope) Scope(key di.Key, unscoped di.Producer) di.Producer {
	return func(rc *di.ResolutionContext) (any, error) {
		inst, ok := s.Current(rc.Context())
		if !ok {
			return nil, errors.OutOfScope(s.name, key.String())
		}
		return inst.get(rc, key, unscoped)
	}
}

type instanceToken struct {
	inst *Instance
	key  di.Key
}

// Instance is one entered instance of a ContextScope.
type Instance struct {
	id    string
	scope *ContextScope

	lastUsed atomic.Int64

	mu      sync.Mutex
	values  map[di.Key]any
	created []any
	ended   bool
}

func (i *Instance) touch() { i.lastUsed.Store(time.Now().UnixNano()) }

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Ended reports whether End was called.
func (i *Instance) Ended() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ended
}

// Len returns the number of cached values.
func (i *Instance) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.values)
}

func (i *Instance) load(key di.Key) (any, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ended {
		return nil, false, errors.OutOfScope(i.scope.name, key.String())
	}
	v, ok := i.values[key]
	return v, ok, nil
}

func (i *Instance) get(rc *di.ResolutionContext, key di.Key, unscoped di.Producer) (any, error) {
	if v, ok, err := i.load(key); ok || err != nil {
		return v, err
	}
	token := instanceToken{inst: i, key: key}
	if rc.Reentrant(token) {
		return unscoped(rc)
	}
	return rc.Exclusive(token, func() (any, error) {
		if v, ok, err := i.load(key); ok || err != nil {
			return v, err
		}
		v, err := unscoped(rc)
		if err != nil {
			return nil, err
		}

		i.mu.Lock()
		defer i.mu.Unlock()
		if i.ended {
			return nil, errors.OutOfScope(i.scope.name, key.String())
		}
		i.values[key] = v
		i.created = append(i.created, v)
		return v, nil
	})
}

// End clears the instance, closes cached values implementing io.Closer in
// reverse creation order and removes it from the live set.
func (i *Instance) End() error {
	i.mu.Lock()
	if i.ended {
		i.mu.Unlock()
		return nil
	}
	i.ended = true
	created := i.created
	i.created = nil
	i.values = make(map[di.Key]any)
	i.mu.Unlock()

	i.scope.mu.Lock()
	if i.scope.live[i.id] == i {
		delete(i.scope.live, i.id)
	}
	i.scope.mu.Unlock()

	var errs []error
	for n := len(created) - 1; n >= 0; n-- {
		if c, ok := created[n].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	i.scope.log.Debug("Scope instance ended", logger.Fields(
		logger.FieldScopeID, i.id,
		"closed", len(created),
	))
	if len(errs) > 0 {
		return errors.Newf(errors.ErrCodeInternal, "closing %s scope %s", i.scope.name, i.id).WithCause(stderrors.Join(errs...))
	}
	return nil
}
