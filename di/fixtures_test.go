package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/aop"
	"github.com/kbukum/injectkit/component"
	"github.com/kbukum/injectkit/logger"
)

var (
	errNotFound = stderrors.New("not found")
	errTimeout  = stderrors.New("timeout")
)

type Repository interface {
	Find(id int) string
}

type memRepo struct{ prefix string }

func newMemRepo(prefix string) *memRepo { return &memRepo{prefix: prefix} }

func (r *memRepo) Find(id int) string { return fmt.Sprintf("%s%d", r.prefix, id) }

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

type Clock interface{ Now() int64 }

type Reporter struct{ clock Clock }

func newReporter(clock Clock) *Reporter { return &Reporter{clock: clock} }

type counter struct{ n atomic.Int32 }

type Counted struct{ id int32 }

func (c *counter) newCounted() *Counted { return &Counted{id: c.n.Add(1)} }

// Ping and Pong depend on each other.
type Ping interface {
	Ping() string
	Name() string
}

type Pong interface {
	Pong() string
}

type pingImpl struct{ pong Pong }

func newPing(p Pong) *pingImpl { return &pingImpl{pong: p} }

func (p *pingImpl) Ping() string { return "ping->" + p.pong.Pong() }
func (p *pingImpl) Name() string { return "ping" }

type pongImpl struct{ ping Ping }

func newPong(p Ping) *pongImpl { return &pongImpl{ping: p} }

func (p *pongImpl) Pong() string { return "pong->" + p.ping.Name() }

type pingStandIn struct{ target *Deferred[Ping] }

func (s pingStandIn) Ping() string { return s.target.Get().Ping() }
func (s pingStandIn) Name() string { return s.target.Get().Name() }

type pongStandIn struct{ target *Deferred[Pong] }

func (s pongStandIn) Pong() string { return s.target.Get().Pong() }

func pingStandIns() Declaration {
	return StandIn[Ping](func(d *Deferred[Ping]) Ping { return pingStandIn{target: d} })
}

// Calculator is intercepted in the weaving tests.
type Calculator interface {
	Add(a, b int) int
	Divide(a, b int) (int, error)
}

type basicCalc struct{}

func newBasicCalc() *basicCalc { return &basicCalc{} }

func (basicCalc) Add(a, b int) int { return a + b }

func (basicCalc) Divide(a, b int) (int, error) {
	if b == 0 {
		return 0, stderrors.New("division by zero")
	}
	return a / b, nil
}

type calcWrapper struct {
	aop.Handle
	target Calculator
}

func (w *calcWrapper) Add(a, b int) int {
	return aop.Value(&w.Handle, "Add", []any{a, b}, func(args []any) int {
		return w.target.Add(args[0].(int), args[1].(int))
	})
}

func (w *calcWrapper) Divide(a, b int) (int, error) {
	return aop.Call(&w.Handle, "Divide", []any{a, b}, func(args []any) (int, error) {
		return w.target.Divide(args[0].(int), args[1].(int))
	})
}

func init() {
	aop.RegisterWrapper(func(c Calculator) Calculator { return &calcWrapper{target: c} })
}

// worker is a lifecycle-managed singleton.
type worker struct {
	name    string
	started bool
	stopped bool
}

func newWorker() *worker { return &worker{name: "worker"} }

func (w *worker) Name() string { return w.name }

func (w *worker) Start(context.Context) error {
	w.started = true
	return nil
}

func (w *worker) Stop(context.Context) error {
	w.stopped = true
	return nil
}

func (w *worker) Health(context.Context) component.Health {
	return component.Health{Name: w.name, Status: component.StatusHealthy}
}

func mustNew(t *testing.T, decls []Declaration, opts ...Option) *Injector {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	inj, err := New(decls, opts...)
	require.NoError(t, err)
	return inj
}

func newQuiet(decls []Declaration, opts ...Option) (*Injector, error) {
	return New(decls, append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func repoDecls() []Declaration {
	return []Declaration{
		Bind(Named[string]("prefix"), ToInstance("item-")),
		Bind(KeyOf[Repository](), ToConstructor(newMemRepo, Param(0, "prefix"))),
		Constructor(NewService),
	}
}
