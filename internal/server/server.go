// Package server is the examiz HTTP backend. It stores the remote copy of
// live sessions and serves grading, review scheduling, study pulls and
// question generation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/examiz/internal/grading"
	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/store"
)

// Server wires the HTTP routes to the store and grading service.
type Server struct {
	store     *store.Store
	grading   *grading.Service
	generator questiongen.Generator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGenerator enables POST /api/quiz/generate.
func WithGenerator(g questiongen.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the time source of the server and its services.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server over st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{store: st, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.grading = grading.NewService(st, s.logger)
	s.grading.SetClock(s.now)
	st.SetClock(s.now)
	return s
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/quiz/session/:key", s.getSession)
		api.PUT("/quiz/session/:key", s.putSession)
		api.DELETE("/quiz/session/:key", s.deleteSession)

		api.POST("/quiz/finish", s.finish)
		api.POST("/quiz/generate", s.generate)
		api.GET("/quiz/study", s.study)
		api.GET("/quiz/gap-test", s.gapTest)

		api.POST("/questions/:id/submit", s.submit)
		api.POST("/questions/:id/review", s.review)
		api.POST("/questions/:id/favorite", s.toggleFavorite)
		api.DELETE("/questions/:id", s.deleteQuestion)

		api.GET("/wrong-questions", s.wrongQuestions)
		api.GET("/wrong-questions/review", s.wrongReview)

		api.GET("/stats/sessions", s.sessionLogs)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds())
	}
}
