package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/session"
	"github.com/mwinyimoha/darasa/core/user"
)

type (
	// ServerDeps holds the Server's dependencies.
	ServerDeps struct {
		Logger     core.Logger
		UserSvc    user.Service
		ContentSvc content.Service
		Tracker    *session.Tracker
		Revoker    *session.Revoker

		DisableReqLogs    bool
		DisableRateLimits bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errChan  chan error
		shutChan chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errChan:  make(chan error, 1),
		shutChan: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutChan, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(metricsMiddleware())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authLimit := s.rateLimit(core.Conf.RateLimit.AuthLimit)
	apiLimit := s.rateLimit(core.Conf.RateLimit.APILimit)

	registerWebRoutes(s.app, authLimit, &s.deps)
	registerAdminWeb(s.app, &s.deps)

	jwt := middleware.JWTWithConfig(appJWTConfig)
	revoked := tokenRevocationMiddleware(s.deps.Revoker)

	// auth endpoints carry no token and get the stricter limit
	registerAuthAPI(s.app.Group("/api", authLimit), &s.deps)

	api := s.app.Group("/api", apiLimit, jwt, revoked)
	registerUserAPI(api, &s.deps)
	registerContentAPI(api, &s.deps)
}

func (s *server) rateLimit(limit int) echo.MiddlewareFunc {
	if s.deps.DisableRateLimits {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return rateLimitMiddleware(newRateLimiter(limit, core.Conf.RateLimit.Window))
}

func (s *server) Start() {
	if err := s.app.Start(core.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errChan <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errChan
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutChan
}

// signalShutdown requests a graceful shutdown when an unrecoverable error is caught.
func (s *server) signalShutdown() {
	s.shutChan <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
