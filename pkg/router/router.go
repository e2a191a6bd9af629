package router

import (
	"context"
	"net/http"
	"time"

	"matscigpt/backend/internal/api"
	"matscigpt/backend/pkg/config"
	"matscigpt/backend/pkg/di"
	"matscigpt/backend/pkg/errors"
	"matscigpt/backend/pkg/health"
	"matscigpt/backend/pkg/logger"
	"matscigpt/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Checker   *health.Checker
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	// Use the container's logger
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	engine := gin.New()

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Request IDs for log correlation
	engine.Use(middleware.RequestIDMiddleware())

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	// Create rate limiter from security settings
	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	rateLimiter := middleware.NewRateLimiter(container.Logger, limiterOpts)

	// Apply rate limiting to all routes
	engine.Use(rateLimiter.Middleware())

	// Health checker watches provider configuration and the deck cache
	checker := health.NewChecker(container.Logger, time.Minute)
	checker.RegisterProviderCheck(container.OpenAI.Name(), container.OpenAI.Available)
	checker.RegisterProviderCheck(container.Gemini.Name(), container.Gemini.Available)
	if container.Redis != nil {
		checker.RegisterCacheCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return container.Redis.Ping(ctx)
		})
	}

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Checker:   checker,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	// Add CORS middleware
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	// Inline attachments make chat bodies large but not unbounded
	r.Engine.Use(maxBodySize(r.Config.Security.MaxBodySize))

	// Initialize controllers
	chatController := api.NewChatController(r.Container.ChatService, r.Container.Metrics, r.Logger)
	slideController := api.NewSlideController(r.Container.SlideService, r.Container.Metrics, r.Logger)

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")

	chatController.RegisterRoutesV1(v1)
	slideController.RegisterRoutesV1(v1)

	// Health endpoints
	r.setupHealthRoutes()
	r.Checker.Start()
}

// corsMiddleware answers preflight and sets CORS headers, the contract the
// browser client expects. A "*" entry in origins keeps the original
// wide-open behavior.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := "*"
		if !allowAll {
			origin = c.GetHeader("Origin")
			if !allowed[origin] {
				origin = ""
			}
		}
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.String(200, "ok")
			c.Abort()
			return
		}

		c.Next()
	}
}

// maxBodySize caps request body reads; oversize bodies fail the JSON bind
// with a 400 instead of exhausting memory.
func maxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
