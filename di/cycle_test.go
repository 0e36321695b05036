package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/errors"
)

func pingPongDecls(opts ...BindingOption) []Declaration {
	return []Declaration{
		Bind(KeyOf[Ping](), ToConstructor(newPing), opts...),
		Bind(KeyOf[Pong](), ToConstructor(newPong), opts...),
		pingStandIns(),
	}
}

func TestCycleThroughInterfaceUsesStandIn(t *testing.T) {
	inj := mustNew(t, pingPongDecls())

	ping := MustResolve[Ping](context.Background(), inj)
	assert.Equal(t, "ping->pong->ping", ping.Ping())

	pong := ping.(*pingImpl).pong.(*pongImpl)
	_, isReal := pong.ping.(*pingImpl)
	assert.False(t, isReal, "the cycle is closed by a stand-in")
	assert.Equal(t, "ping", pong.ping.Name())
}

func TestSingletonCycleCachesRealInstances(t *testing.T) {
	inj := mustNew(t, pingPongDecls(In(Singleton)))

	ping := MustResolve[Ping](context.Background(), inj)
	pong := MustResolve[Pong](context.Background(), inj)

	assert.Same(t, ping, MustResolve[Ping](context.Background(), inj))
	assert.Same(t, ping.(*pingImpl).pong, pong)
	_, isStandIn := ping.(pingStandIn)
	assert.False(t, isStandIn)
	assert.Equal(t, "pong->ping", pong.Pong())
}

func TestCycleWithoutStandInFails(t *testing.T) {
	inj := mustNew(t, pingPongDecls())

	// Entering through Pong means the cycle closes on Pong, which has no
	// stand-in registered.
	_, err := Resolve[Pong](context.Background(), inj)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircularDependency))
	assert.Contains(t, err.Error(), "no stand-in is registered")

	inj = mustNew(t, append(pingPongDecls(),
		StandIn[Pong](func(d *Deferred[Pong]) Pong { return pongStandIn{target: d} })))
	pong := MustResolve[Pong](context.Background(), inj)
	assert.Equal(t, "pong->ping", pong.Pong())
}

type left struct{ r *right }
type right struct{ l *left }

func TestConcreteCycleFails(t *testing.T) {
	inj := mustNew(t, []Declaration{
		Constructor(func(r *right) *left { return &left{r: r} }),
		Constructor(func(l *left) *right { return &right{l: l} }),
	})

	_, err := Resolve[*left](context.Background(), inj)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircularDependency))
	assert.Contains(t, err.Error(), "*di.left: it is not an interface")
}

func TestStandInUsedDuringConstruction(t *testing.T) {
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Ping](), ToConstructor(newPing)),
		Bind(KeyOf[Pong](), ToConstructor(func(p Ping) *pongImpl {
			_ = p.Name()
			return &pongImpl{ping: p}
		})),
		pingStandIns(),
	})

	_, err := Resolve[Ping](context.Background(), inj)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotYetConstructed))
}

func TestDeferredBeforeAndAfterRedirect(t *testing.T) {
	d := &Deferred[Ping]{}
	assert.False(t, d.Resolved())
	_, err := d.Resolve()
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotYetConstructed))
	assert.Panics(t, func() { d.Get() })

	impl := &pingImpl{}
	require.NoError(t, d.redirect(impl))
	require.Error(t, d.redirect("not a ping"))
	assert.True(t, d.Resolved())
	assert.Same(t, impl, d.Get())
}

func TestCycleThroughProviderFunc(t *testing.T) {
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Ping](), ToProviderFunc(func(p Pong) (Ping, error) { return newPing(p), nil })),
		Bind(KeyOf[Pong](), ToConstructor(newPong)),
		pingStandIns(),
	})

	ping := MustResolve[Ping](context.Background(), inj)
	assert.Equal(t, "ping->pong->ping", ping.Ping())
}

func TestNestedResolutionJoinsRunningResolution(t *testing.T) {
	inj := mustNew(t, []Declaration{
		Bind(KeyOf[Ping](), ToProviderFunc(func(ctx context.Context, i *Injector) (Ping, error) {
			pong, err := Resolve[Pong](ctx, i)
			if err != nil {
				return nil, err
			}
			return newPing(pong), nil
		}), In(Singleton)),
		Bind(KeyOf[Pong](), ToConstructor(newPong), In(Singleton)),
		pingStandIns(),
	})

	ping := MustResolve[Ping](context.Background(), inj)
	assert.Equal(t, "ping->pong->ping", ping.Ping())
}
