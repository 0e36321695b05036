package ginscope

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/scopes"
)

type visit struct{ path string }

func init() {
	gin.SetMode(gin.TestMode)
}

func newInjector(t *testing.T, s *scopes.ContextScope) *di.Injector {
	t.Helper()
	inj, err := di.New([]di.Declaration{
		s.Declaration(),
		di.Bind(di.KeyOf[*visit](), di.ToProviderFunc(func() *visit { return &visit{} }), di.InScope(s.String())),
	}, di.WithLogger(logger.Nop()))
	require.NoError(t, err)
	return inj
}

func TestMiddlewareScopesRequest(t *testing.T) {
	s := scopes.Request()
	inj := newInjector(t, s)

	var ids []string
	r := gin.New()
	r.Use(Middleware(s))
	r.GET("/orders", func(c *gin.Context) {
		v, err := Resolve[*visit](c, inj)
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		again, _ := Resolve[*visit](c, inj)
		if again != v {
			c.String(http.StatusInternalServerError, "not shared")
			return
		}
		ids = append(ids, c.GetString(ScopeIDKey))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", http.NoBody)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", http.NoBody))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Len(t, ids, 2)
	assert.Equal(t, "req-42", ids[0])
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, 0, s.Active())
}

func TestResolveOutsideScopeFails(t *testing.T) {
	s := scopes.Request()
	inj := newInjector(t, s)

	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		if _, err := Resolve[*visit](c, inj); err != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSessionMiddleware(t *testing.T) {
	s := scopes.Session()
	inj := newInjector(t, s)

	var visits []*visit
	r := gin.New()
	r.Use(SessionMiddleware(s, "sid"))
	r.GET("/", func(c *gin.Context) {
		v, err := Resolve[*visit](c, inj)
		require.NoError(t, err)
		visits = append(visits, v)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(cookies[0])
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, visits, 2)
	assert.Same(t, visits[0], visits[1])
	assert.Equal(t, 1, s.Active())
	assert.NotNil(t, Context(&gin.Context{Request: req}))
}

func TestSessionMiddlewareStartsSessionForUnknownCookie(t *testing.T) {
	s := scopes.Session()
	inj := newInjector(t, s)

	r := gin.New()
	r.Use(SessionMiddleware(s, "sid"))
	r.GET("/", func(c *gin.Context) {
		_, err := Resolve[*visit](c, inj)
		require.NoError(t, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "made-up"})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "made-up", cookies[0].Value)
	_, ok := s.Instance("made-up")
	assert.False(t, ok)
	_, ok = s.Instance(cookies[0].Value)
	assert.True(t, ok)
}
