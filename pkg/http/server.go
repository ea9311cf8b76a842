package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"EdgePulse/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server runs the API over an echo instance with recovery, CORS, request
// logging and a Prometheus scrape endpoint pre-wired.
type Server struct {
	e               *echo.Echo
	addr            string
	shutdownTimeout time.Duration
	log             *logger.Logger
}

type serverOptions struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	log             *logger.Logger
}

type ServerOption func(*serverOptions)

func WithPort(port int) ServerOption {
	return func(o *serverOptions) { o.port = port }
}

func WithHost(host string) ServerOption {
	return func(o *serverOptions) { o.host = host }
}

func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.readTimeout = read
		o.writeTimeout = write
		o.shutdownTimeout = shutdown
	}
}

func WithServerLogger(l *logger.Logger) ServerOption {
	return func(o *serverOptions) { o.log = l }
}

func NewServer(handler Handler, opts ...ServerOption) *Server {
	o := &serverOptions{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 10 * time.Second,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = o.readTimeout
	e.Server.WriteTimeout = o.writeTimeout

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(requestLog(o.log))

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		e:               e,
		addr:            fmt.Sprintf("%s:%d", o.host, o.port),
		shutdownTimeout: o.shutdownTimeout,
		log:             o.log,
	}
}

// Start begins serving in the background. Listen errors other than a clean
// close are logged, not returned; callers learn about a dead listener from
// their own health checks.
func (s *Server) Start() error {
	go func() {
		s.log.Info("http server listening", logger.String("addr", s.addr))
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", logger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.e.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Echo exposes the underlying instance for tests and extra routes.
func (s *Server) Echo() *echo.Echo { return s.e }

func requestLog(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			l.Info("http request",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.Int("status", c.Response().Status),
				logger.Duration("took_ms", time.Since(start)),
			)
			return err
		}
	}
}
