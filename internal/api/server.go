package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
)

// Server serves the JSON API over the configured bind address.
type Server struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	httpSrv *http.Server
	addr    string
}

// NewServer constructs an API server backed by store.
func NewServer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// Router builds the gin engine with all routes registered. Exposed so tests
// can drive handlers without a listening socket.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.requestLogger(), gin.Recovery())

	apiGroup := router.Group("/api")
	apiGroup.GET("/health", s.handleHealth)
	apiGroup.POST("/tasks", s.handleSubmit)
	apiGroup.GET("/tasks", s.handleList)
	apiGroup.GET("/tasks/:id", s.handleGet)
	apiGroup.GET("/tasks/:id/text", s.handleText)
	apiGroup.GET("/tasks/:id/subtitles", s.handleSubtitles)
	apiGroup.GET("/pending", s.handlePending)
	apiGroup.GET("/stats", s.handleStats)
	return router
}

// Start begins listening on the configured bind address. It returns once the
// listener is established; request serving continues in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server terminated", logging.Error(err))
		}
	}()
	s.logger.Info("api listening", logging.String("addr", s.addr))
	return nil
}

// Addr reports the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)))
	}
}
