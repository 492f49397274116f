package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AI2HU/brandlens/internal/analytics"
	"github.com/AI2HU/brandlens/internal/auth"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

// Error codes carried in error bodies
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeAllProvidersFailed  = "ALL_PROVIDERS_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

const userIDKey = "userID"

// ProviderService runs queries against the registered providers
type ProviderService interface {
	ExecuteRequest(ctx context.Context, req *models.ProviderRequest) *models.JobResult
	GetAvailableProviders() []string
	GetProviderStatus(ctx context.Context) map[string]bool
}

// BrandProcessor starts and cancels processing sessions
type BrandProcessor interface {
	Start(ctx context.Context, brandID string, opts processing.Options) (*models.ProcessingSession, error)
	Cancel(ctx context.Context, sessionID string) error
}

// Deps are the services behind the API
type Deps struct {
	Providers ProviderService
	Brands    db.BrandStore
	Credits   db.CreditStore // nil disables credit accounting
	Processor BrandProcessor
	Tokens    *auth.Manager
}

// Server is the HTTP API
type Server struct {
	router     *gin.Engine
	providers  ProviderService
	brands     db.BrandStore
	credits    db.CreditStore
	processor  BrandProcessor
	tokens     *auth.Manager
	aggregator *analytics.Aggregator
	creditsCfg config.CreditsConfig
	corsOrigin string
	log        *logger.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(deps Deps, cfg *config.Config) *Server {
	if !logger.IsDebugEnabled() {
		gin.SetMode(gin.ReleaseMode)
	}

	corsOrigin := cfg.Server.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	s := &Server{
		router:     gin.New(),
		providers:  deps.Providers,
		brands:     deps.Brands,
		credits:    deps.Credits,
		processor:  deps.Processor,
		tokens:     deps.Tokens,
		aggregator: analytics.NewAggregator(analytics.BrandHistory{}, analytics.LegacyResults{Store: deps.Brands}),
		creditsCfg: cfg.Credits,
		corsOrigin: corsOrigin,
		log:        logger.Named("api"),
	}
	if !cfg.Credits.Enabled {
		s.credits = nil
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), s.corsMiddleware())

	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1", s.authMiddleware())
	{
		v1.POST("/query", s.query)

		v1.GET("/providers", s.listProviders)
		v1.GET("/providers/status", s.providerStatus)

		v1.GET("/brands", s.listBrands)
		v1.POST("/brands", s.createBrand)
		v1.GET("/brands/:id", s.getBrand)
		v1.POST("/brands/:id/queries", s.addQueries)
		v1.POST("/brands/:id/suggestions", s.suggestQueries)
		v1.POST("/brands/:id/process", s.processBrand)
		v1.POST("/brands/:id/process/:sessionId/cancel", s.cancelProcessing)
		v1.GET("/brands/:id/sessions", s.sessionSummary)
		v1.GET("/brands/:id/sessions/:sessionId", s.getSession)
		v1.GET("/brands/:id/analytics", s.getAnalytics)
		v1.GET("/brands/:id/analytics/lifetime", s.getLifetimeAnalytics)

		v1.GET("/credits", s.getCredits)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": s.providers.GetAvailableProviders(),
		"time":      time.Now().UTC(),
	})
}

func (s *Server) successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (s *Server) errorResponse(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message, "code": code})
}

// storeError maps a store error to a response
func (s *Server) storeError(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.errorResponse(c, http.StatusNotFound, CodeNotFound, what+" not found")
	case errors.Is(err, db.ErrConflict):
		s.errorResponse(c, http.StatusConflict, CodeConflict, err.Error())
	default:
		s.log.Error("Failed to load %s: %v", what, err)
		s.errorResponse(c, http.StatusInternalServerError, CodeInternal, "Failed to load "+what)
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			s.errorResponse(c, http.StatusUnauthorized, CodeAuthRequired, "Authentication required")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			s.log.Debug("Rejected token: %v", err)
			s.errorResponse(c, http.StatusUnauthorized, CodeAuthRequired, "Invalid or expired token")
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := s.corsOrigin
		if origin != "*" {
			requested := c.GetHeader("Origin")
			if requested == "" || !allowedOrigin(origin, requested) {
				origin = ""
			} else {
				origin = requested
			}
		}
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// allowedOrigin matches against a comma separated list
func allowedOrigin(allowed, origin string) bool {
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("%s %s -> %d (%s)", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
