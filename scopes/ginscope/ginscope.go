// Package ginscope enters scopes.ContextScope instances from gin handlers.
package ginscope

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/injectkit/di"
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/scopes"
)

// ScopeIDKey is the gin context key holding the entered scope instance id.
const ScopeIDKey = "scope_id"

// Middleware enters a fresh instance of s for every request and ends it
// after the remaining handlers ran. The X-Request-Id header names the
// instance unless a live instance already has that id.
func Middleware(s *scopes.ContextScope) gin.HandlerFunc {
	log := logger.Get("ginscope")
	return func(c *gin.Context) {
		ctx, inst := s.Begin(c.Request.Context(), c.GetHeader("X-Request-Id"))
		c.Request = c.Request.WithContext(ctx)
		c.Set(ScopeIDKey, inst.ID())
		defer func() {
			if err := inst.End(); err != nil {
				log.Warn("Ending request scope failed", logger.Fields(
					logger.FieldScopeID, inst.ID(),
					logger.FieldError, err.Error(),
				))
			}
		}()
		c.Next()
	}
}

// SessionMiddleware resumes the live instance of s named by the session
// cookie. Unknown or missing cookies start a new session with a new cookie.
func SessionMiddleware(s *scopes.ContextScope, cookie string) gin.HandlerFunc {
	if cookie == "" {
		cookie = scopes.SessionCookie
	}
	return func(c *gin.Context) {
		if id, err := c.Cookie(cookie); err == nil && id != "" {
			if ctx, _, ok := s.Resume(c.Request.Context(), id); ok {
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
		}
		ctx, inst := s.Begin(c.Request.Context(), "")
		c.SetCookie(cookie, inst.ID(), 0, "/", "", false, true)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Context returns the request context, which carries the entered scopes.
func Context(c *gin.Context) context.Context {
	return c.Request.Context()
}

// Resolve resolves T with the scopes entered for the request.
func Resolve[T any](c *gin.Context, inj *di.Injector) (T, error) {
	return di.Resolve[T](c.Request.Context(), inj)
}
