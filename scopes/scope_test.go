package scopes

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/errors"
	"github.com/kbukum/injectkit/logger"
)

type cart struct {
	id     int64
	closed bool
}

func (c *cart) Close() error {
	c.closed = true
	return nil
}

type checkout struct{ cart *cart }

func newInjector(t *testing.T, s *ContextScope) (*di.Injector, *atomic.Int64) {
	t.Helper()
	var seq atomic.Int64
	inj, err := di.New([]di.Declaration{
		s.Declaration(),
		di.Constructor(func() *cart { return &cart{id: seq.Add(1)} }).ScopedAs(s.String()),
		di.Constructor(func(c *cart) *checkout { return &checkout{cart: c} }),
	}, di.WithLogger(logger.Nop()))
	require.NoError(t, err)
	return inj, &seq
}

func TestInstanceCachesPerKey(t *testing.T) {
	s := Request()
	inj, _ := newInjector(t, s)

	ctx, inst := s.Enter(context.Background(), "")
	require.NotEmpty(t, inst.ID())

	a := di.MustResolve[*checkout](ctx, inj)
	b := di.MustResolve[*checkout](ctx, inj)
	assert.NotSame(t, a, b)
	assert.Same(t, a.cart, b.cart)
	assert.Equal(t, 1, inst.Len())

	other, _ := s.Enter(context.Background(), "")
	assert.NotSame(t, a.cart, di.MustResolve[*cart](other, inj))
	assert.Equal(t, 2, s.Active())
}

func TestOutOfScope(t *testing.T) {
	s := Request()
	inj, _ := newInjector(t, s)

	_, err := di.Resolve[*checkout](context.Background(), inj)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutOfScope))

	ctx, inst := s.Enter(context.Background(), "")
	require.NoError(t, inst.End())
	_, err = di.Resolve[*cart](ctx, inj)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutOfScope))
}

func TestEndClosesAndForgets(t *testing.T) {
	s := Session()
	inj, _ := newInjector(t, s)

	ctx, inst := s.Enter(context.Background(), "user-1")
	c := di.MustResolve[*cart](ctx, inj)

	found, ok := s.Instance("user-1")
	require.True(t, ok)
	assert.Same(t, inst, found)

	require.NoError(t, s.End("user-1"))
	assert.True(t, c.closed)
	assert.True(t, inst.Ended())
	assert.Equal(t, 0, s.Active())
	require.NoError(t, s.End("user-1"))

	ctx, _ = s.Enter(context.Background(), "user-1")
	assert.NotSame(t, c, di.MustResolve[*cart](ctx, inj))
}

type failingCloser struct{}

func (failingCloser) Close() error { return stderrors.New("close failed") }

func TestEndReportsCloseErrors(t *testing.T) {
	s := New("batch")
	inj, err := di.New([]di.Declaration{
		s.Declaration(),
		di.Bind(di.KeyOf[failingCloser](), di.ToProviderFunc(func() failingCloser { return failingCloser{} }), di.InScope("batch")),
	}, di.WithLogger(logger.Nop()))
	require.NoError(t, err)

	ctx, inst := s.Enter(context.Background(), "")
	_, err = di.Resolve[failingCloser](ctx, inj)
	require.NoError(t, err)

	err = inst.End()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
}

func TestEnterReusesLiveInstance(t *testing.T) {
	s := Session()
	_, first := s.Enter(context.Background(), "abc")
	ctx, second := s.Enter(context.Background(), "abc")
	assert.Same(t, first, second)

	current, ok := s.Current(ctx)
	require.True(t, ok)
	assert.Same(t, first, current)

	_, ok = Request().Current(ctx)
	assert.False(t, ok)
}

func TestMiddlewareWithChi(t *testing.T) {
	s := Request()
	inj, seq := newInjector(t, s)

	var seen []*cart
	r := chi.NewRouter()
	r.Use(Middleware(s))
	r.Get("/checkout", func(w http.ResponseWriter, req *http.Request) {
		co, err := di.Resolve[*checkout](req.Context(), inj)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		again := di.MustResolve[*cart](req.Context(), inj)
		if again != co.cart {
			http.Error(w, "cart not shared within request", http.StatusInternalServerError)
			return
		}
		seen = append(seen, co.cart)
		w.WriteHeader(http.StatusNoContent)
	})

	for n := 0; n < 2; n++ {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout", http.NoBody))
		require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	}

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.True(t, seen[0].closed)
	assert.Equal(t, int64(2), seq.Load())
	assert.Equal(t, 0, s.Active())
}

func TestSessionMiddlewareKeepsInstance(t *testing.T) {
	s := Session()
	inj, _ := newInjector(t, s)

	var ids []int64
	r := chi.NewRouter()
	r.Use(SessionMiddleware(s, ""))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		ids = append(ids, di.MustResolve[*cart](req.Context(), inj).id)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(cookies[0])
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, 1, s.Active())
}

func TestSessionMiddlewareIgnoresUnknownCookie(t *testing.T) {
	s := Session()
	inj, _ := newInjector(t, s)

	r := chi.NewRouter()
	r.Use(SessionMiddleware(s, ""))
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		di.MustResolve[*cart](req.Context(), inj)
	})

	for n := 0; n < 3; n++ {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.NotEqual(t, "forged", cookies[0].Value)
	}

	_, ok := s.Instance("forged")
	assert.False(t, ok)
	assert.Equal(t, 3, s.Active())
	assert.Equal(t, 3, s.Expire(time.Now().Add(DefaultSessionIdleTimeout+time.Second)))
	assert.Equal(t, 0, s.Active())
}

func TestResumeOnlyLiveInstances(t *testing.T) {
	s := Session()
	ctx := context.Background()

	_, _, ok := s.Resume(ctx, "missing")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Active())

	_, inst := s.Begin(ctx, "")
	resumed, found, ok := s.Resume(ctx, inst.ID())
	require.True(t, ok)
	assert.Same(t, inst, found)
	current, ok := s.Current(resumed)
	require.True(t, ok)
	assert.Same(t, inst, current)
}

func TestBeginNeverJoinsLiveInstance(t *testing.T) {
	s := Request()
	_, first := s.Begin(context.Background(), "req-1")
	_, second := s.Begin(context.Background(), "req-1")

	assert.Equal(t, "req-1", first.ID())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, s.Active())
}

func TestExpireEndsIdleInstances(t *testing.T) {
	s := Session(WithIdleTimeout(time.Minute))
	inj, _ := newInjector(t, s)

	ctx, idle := s.Enter(context.Background(), "")
	c := di.MustResolve[*cart](ctx, inj)

	assert.Equal(t, 0, s.Expire(time.Now()))
	assert.Equal(t, 1, s.Expire(time.Now().Add(2*time.Minute)))
	assert.True(t, idle.Ended())
	assert.True(t, c.closed)
	assert.Equal(t, 0, s.Active())

	assert.Equal(t, 0, Request().Expire(time.Now().Add(time.Hour)))
}

func TestEnterSweepsIdleInstances(t *testing.T) {
	s := New("batch", WithIdleTimeout(time.Millisecond))
	_, stale := s.Enter(context.Background(), "")

	time.Sleep(5 * time.Millisecond)
	_, fresh := s.Enter(context.Background(), "")

	assert.True(t, stale.Ended())
	assert.False(t, fresh.Ended())
	assert.Equal(t, 1, s.Active())
}

func TestFailedCreationIsNotCachedInInstance(t *testing.T) {
	s := Request()
	var calls atomic.Int32
	inj, err := di.New([]di.Declaration{
		s.Declaration(),
		di.Bind(di.KeyOf[*cart](), di.ToProviderFunc(func() (*cart, error) {
			n := calls.Add(1)
			if n == 1 {
				return nil, stderrors.New("warming up")
			}
			return &cart{id: int64(n)}, nil
		}), di.InScope(s.String())),
	}, di.WithLogger(logger.Nop()))
	require.NoError(t, err)

	ctx, inst := s.Enter(context.Background(), "")
	_, err = di.Resolve[*cart](ctx, inj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warming up")
	assert.Equal(t, 0, inst.Len())

	first := di.MustResolve[*cart](ctx, inj)
	second := di.MustResolve[*cart](ctx, inj)
	assert.Same(t, first, second)
	assert.Equal(t, int64(2), first.id)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, inst.Len())
}
