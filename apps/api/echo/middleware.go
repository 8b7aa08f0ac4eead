package echoapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core/session"
	"github.com/mwinyimoha/darasa/core/user"
)

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// tokenRevocationMiddleware rejects tokens that were logged out. It must run
// after the JWT middleware.
func tokenRevocationMiddleware(revoker *session.Revoker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if revoker.IsRevoked(claims.Id) {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

// sessionTrackingMiddleware records every web request in the session Tracker.
// A tracked session terminated by an admin loses its user binding here, so
// its cookie behaves as logged out from its next request on.
func sessionTrackingMiddleware(tracker *session.Tracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess := getSession(ctx)
			sid := sessionID(sess)

			terminated := false
			if sessionUserID(sess) != "" {
				if _, ok := tracker.Get(sid); !ok {
					unbindSessionUser(sess)
					terminated = true
				}
			}

			tracker.Touch(sid, ctx.RealIP())
			if uid := sessionUserID(sess); uid != "" {
				tracker.Bind(sid, uid, sessionUsername(sess))
			}

			if sess.IsNew || terminated {
				if err := saveSession(ctx, sess); err != nil {
					return err
				}
			}

			// expose the CSRF token to browser clients
			ctx.Response().Header().Set(csrfHeader, sessionCSRFToken(sess))

			return next(ctx)
		}
	}
}

// webCSRFMiddleware enforces the session CSRF token on mutating form
// submissions. JSON and other API-style requests are exempt; they carry
// their own credentials on every call.
func webCSRFMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(ctx)
			}

			ctype := req.Header.Get(echo.HeaderContentType)
			if !(strings.HasPrefix(ctype, echo.MIMEApplicationForm) || strings.HasPrefix(ctype, echo.MIMEMultipartForm)) {
				return next(ctx)
			}

			if err := checkCSRF(ctx, getSession(ctx)); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// webAdminMiddleware guards the admin dashboard: the cookie session must be
// bound to an active admin. The user is stashed in the context for handlers.
func webAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			uid := sessionUserID(getSession(ctx))
			if uid == "" {
				return errUnauthorized
			}

			usr, err := svc.GetByID(ctx.Request().Context(), uid)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.IsActive || !usr.IsAdmin() {
				return errHttpForbidden
			}

			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// rateLimiter is a fixed-window request counter keyed by client IP.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
	}
}

// take consumes one unit of key's quota. It reports whether the request is
// allowed, the remaining quota and when the current window resets.
func (rl *rateLimiter) take(key string, now time.Time) (allowed bool, remaining int, reset time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.window {
		w = &rateWindow{start: now}
		rl.windows[key] = w
	}
	reset = w.start.Add(rl.window)
	if w.count >= rl.limit {
		return false, 0, reset
	}
	w.count++
	return true, rl.limit - w.count, reset
}

func rateLimitMiddleware(rl *rateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			now := time.Now()
			allowed, remaining, reset := rl.take(ctx.RealIP(), now)

			h := ctx.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				h.Set("Retry-After", strconv.Itoa(int(reset.Sub(now).Seconds())+1))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
