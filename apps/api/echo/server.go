package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
	mediasvc "github.com/trezcool/shule/services/media"
)

// ServerDeps are the Server's dependencies. dig fills them in.
type ServerDeps struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc    *user.Service
	RoleSvc    *role.Service
	Broker     *content.Broker
	Notices    *content.Service[content.Notice, *content.Notice]
	Events     *content.Service[content.Event, *content.Event]
	Timetables *content.Service[content.TimetableEntry, *content.TimetableEntry]
	Gallery    *content.GalleryService
	Feedback   *content.FeedbackService
	Media      *mediasvc.Storage
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	jwt      middleware.JWTConfig
	metrics  *metrics
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		jwt:      newJWTConfig(deps.Conf),
		metrics:  newMetrics(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.AllowedOrigins}))
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.jwt), ctxUserMiddleware(s.deps.UserSvc)}
	optional := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.optionalJWT()), ctxUserMiddleware(s.deps.UserSvc)}

	registerUserAPI(v1, s, authed)
	registerRoleAPI(v1, s, authed)
	registerContentAPI[content.Notice](v1.Group("/notices", optional...), s.deps.Notices)
	registerContentAPI[content.Event](v1.Group("/events", optional...), s.deps.Events)
	registerContentAPI[content.TimetableEntry](v1.Group("/timetables", optional...), s.deps.Timetables)
	registerGalleryAPI(v1.Group("/gallery", optional...), s.deps.Gallery)
	registerFeedbackAPI(v1.Group("/feedback", optional...), s.deps.Feedback)
	v1.GET("/changes", s.changes)

	if s.deps.Media != nil {
		s.app.GET(conf.Media.BaseURL+"/*", s.serveMedia)
	}
}

// Start blocks until the Server stops. Errors other than a graceful stop are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
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
	default: // already shutting down
	}
}

// Shutdown stops the Server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// MetricsHandler exposes the Server's metrics, for the debug server.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.handler()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
