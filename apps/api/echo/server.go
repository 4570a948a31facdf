package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/auth"
	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/permission"
	"github.com/maktab-uz/maktab/core/user"
	"github.com/maktab-uz/maktab/services/metrics"
)

type (
	// Deps holds everything the HTTP handlers depend on.
	Deps struct {
		Conf          *core.Config
		Logger        core.Logger
		UserSvc       user.Service
		ParentSvc     parent.Service
		Tokens        *auth.TokenService
		Authenticator *auth.Authenticator
		OTP           *auth.OTPService
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server struct {
		app      *echo.Echo
		address  string
		errors   chan error
		shutdown chan os.Signal
		deps     *Deps
	}
)

func NewServer(deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		address:  deps.Conf.Server.Address,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		deps:     deps,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(metricsMiddleware)
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(s.deps.Tokens))
	session := sessionMiddleware(s.deps.Tokens, s.deps.UserSvc)

	registerAccountAPI(v1, s.deps, jwt, session)
	registerUserAPI(v1, s.deps, jwt, session)
	registerProfileAPI(v1, user.KindStudent, permission.AdminOrStudent, s.deps, jwt, session)
	registerProfileAPI(v1, user.KindTeacher, permission.AdminOrTeacher, s.deps, jwt, session)
	registerParentAPI(v1, s.deps, jwt, session)
}

// Start listens on the configured address. Errors other than a closed server are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

// Shutdown stops accepting requests then waits for the pending OTP deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.Shutdown(ctx); err != nil {
		return err
	}
	return s.deps.OTP.Wait(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Maktab API!")
}

// metricsMiddleware records the duration of every request by route and final status code.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		req := ctx.Request()
		metrics.ObserveRequest(req.Method, ctx.Path(), ctx.Response().Status, time.Since(start))
		return nil
	}
}
