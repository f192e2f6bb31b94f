package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/db"
	"github.com/creatorpulse/creatorpulse/internal/progress"
	"github.com/creatorpulse/creatorpulse/internal/sync"
	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
)

// EventSource lets a handler attach to one job's event stream
type EventSource interface {
	Subscribe(jobID string) (<-chan progress.Event, func())
}

// Router sets up API routes
type Router struct {
	pipeline *sync.Pipeline
	registry *sync.Registry
	events   EventSource
	db       *db.DB
	accounts *db.AccountRepository
	cfg      *config.ServerConfig
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(pipeline *sync.Pipeline, registry *sync.Registry, events EventSource, database *db.DB, cfg *config.ServerConfig) *Router {
	return &Router{
		pipeline: pipeline,
		registry: registry,
		events:   events,
		db:       database,
		accounts: db.NewAccountRepository(db.NewRepository(database.DB)),
		cfg:      cfg,
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := engine.Group("/api/v1")
	v1.Use(r.authMiddleware())

	v1.POST("/accounts", r.createAccount)
	v1.POST("/accounts/:account_id/sync", r.startSync)
	v1.GET("/accounts/:account_id/snapshot", r.getSnapshot)
	v1.GET("/accounts/:account_id/growth", r.getGrowth)
	v1.GET("/jobs/:job_id", r.getJob)
	v1.GET("/jobs/:job_id/events", r.streamJobEvents)
}

// authMiddleware enforces the configured bearer token. An empty configured
// token disables authentication, which is only sensible in development.
func (r *Router) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.cfg.APIToken == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header || token != r.cfg.APIToken {
			NewError(http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token").respond(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "FAIL",
			"service": "creatorpulse-api",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "creatorpulse-api",
	})
}
