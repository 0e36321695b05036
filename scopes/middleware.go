package scopes

import (
	"net/http"

	"github.com/kbukum/injectkit/logger"
)

// SessionCookie is the default cookie carrying the session scope id.
const SessionCookie = "session_id"

// Middleware enters a fresh instance of s for every request and ends it when
// the handler returns. It has the func(http.Handler) http.Handler shape used
// by net/http routers such as chi.
func Middleware(s *ContextScope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, inst := s.Begin(r.Context(), "")
			defer func() {
				if err := inst.End(); err != nil {
					s.log.Warn("Ending request scope failed", logFields(inst, err))
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionMiddleware resumes the live instance of s named by the cookie. A
// request without one, or naming a session that is not live, starts a new
// session and gets its cookie. Sessions outlive requests; they are ended with
// ContextScope.End or by the scope's idle timeout.
func SessionMiddleware(s *ContextScope, cookie string) func(http.Handler) http.Handler {
	if cookie == "" {
		cookie = SessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
				if ctx, _, ok := s.Resume(r.Context(), c.Value); ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			ctx, inst := s.Begin(r.Context(), "")
			http.SetCookie(w, &http.Cookie{Name: cookie, Value: inst.ID(), Path: "/", HttpOnly: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logFields(inst *Instance, err error) map[string]interface{} {
	return logger.Fields(
		logger.FieldScope, inst.scope.name,
		logger.FieldScopeID, inst.id,
		logger.FieldError, err.Error(),
	)
}
