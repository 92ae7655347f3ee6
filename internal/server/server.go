package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/handler"
	"github.com/akash-mondal/feed-alpha/internal/metrics"
	"github.com/akash-mondal/feed-alpha/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "feed-alpha"

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth     handler.AuthHandler
	Topics   handler.TopicHandler
	Profiles handler.ProfileHandler
	Feedback handler.FeedbackHandler
	Telegram handler.TelegramHandler
}

type Server struct {
	router  *gin.Engine
	db      *sqlx.DB
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewServer builds the router. db is pinged by /health and may be nil in tests.
func NewServer(h Handlers, tokens middleware.TokenParser, db *sqlx.DB, m *metrics.Metrics, allowedOrigins []string, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), m.Middleware(), middleware.CORS(allowedOrigins))

	s := &Server{
		router:  router,
		db:      db,
		metrics: m,
		logger:  logger,
	}
	s.setupRoutes(h, tokens)
	return s
}

func (s *Server) setupRoutes(h Handlers, tokens middleware.TokenParser) {
	s.router.GET("/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", s.metrics.Handler())
	}

	s.router.POST("/api/auth/telegram", h.Auth.Login)

	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(tokens, s.logger))
	{
		api.GET("/topics", h.Topics.List)
		api.POST("/topics", h.Topics.Add)
		api.POST("/topics/reorder", h.Topics.Reorder)
		api.POST("/topics/:id/refresh", h.Topics.Refresh)
		api.PATCH("/topics/:id", h.Topics.UpdateSettings)
		api.DELETE("/topics/:id", h.Topics.Delete)

		api.GET("/profiles", h.Profiles.List)
		api.POST("/profiles", h.Profiles.Create)
		api.PUT("/profiles/:id", h.Profiles.Update)
		api.DELETE("/profiles/:id", h.Profiles.Delete)
		api.GET("/profiles/:id/summary", h.Profiles.Summary)

		api.POST("/feedback", h.Feedback.Submit)
		api.GET("/feedback/consent", h.Feedback.GetConsent)
		api.PUT("/feedback/consent", h.Feedback.SetConsent)

		api.GET("/telegram/check/:name", h.Telegram.CheckChannel)
		api.POST("/telegram/join", h.Telegram.JoinChannel)
		api.POST("/telegram/auth/code", h.Telegram.SubmitCode)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.db != nil {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			s.logger.Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	s.logger.Info("Server shutting down")
	return srv.Shutdown(shutdownCtx)
}
