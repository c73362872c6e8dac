// Package api serves recorded backtest runs over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
)

// Store is the read side of a journal. *journal.SQLite implements it.
type Store interface {
	ListRuns(ctx context.Context, limit int) ([]journal.Run, error)
	GetRun(ctx context.Context, runID string) (journal.Run, error)
	ListEquity(ctx context.Context, runID string) ([]sim.EquityPoint, error)
	ListFills(ctx context.Context, runID string) ([]sim.Fill, error)
	ListTrades(ctx context.Context, runID string) ([]metrics.RoundTrip, error)
	ExportOrg(ctx context.Context, runID string) (string, error)
	DeleteRun(ctx context.Context, runID string) error
}

// Server is the HTTP results server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	log    *slog.Logger
}

// NewServer wires the routes. The gin mode is left to the caller.
func NewServer(store Store, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(log))

	s := &Server{
		engine: engine,
		log:    log,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes(NewHandler(store))
	return s
}

func (s *Server) setupRoutes(h *Handler) {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", validRunID, h.GetRun)
		api.DELETE("/runs/:id", validRunID, h.DeleteRun)
		api.GET("/runs/:id/equity", validRunID, h.GetEquity)
		api.GET("/runs/:id/fills", validRunID, h.GetFills)
		api.GET("/runs/:id/trades", validRunID, h.GetTrades)
		api.GET("/runs/:id/drawdown", validRunID, h.GetDrawdown)
		api.GET("/runs/:id/org", validRunID, h.GetOrg)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("api listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains open requests, waiting at most five seconds.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Debug("api request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
