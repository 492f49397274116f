package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

// CreateBrandRequest is the body of POST /api/v1/brands
type CreateBrandRequest struct {
	Name     string              `json:"name" binding:"required"`
	Domain   string              `json:"domain" binding:"required"`
	Queries  []models.BrandQuery `json:"queries"`
	Schedule string              `json:"schedule,omitempty"`
}

// ProcessRequest is the optional body of POST /api/v1/brands/:id/process
type ProcessRequest struct {
	Context   string   `json:"context,omitempty"`
	Location  string   `json:"location,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// loadBrand returns the brand if it belongs to the caller. It writes the
// error response otherwise.
func (s *Server) loadBrand(c *gin.Context) (*models.Brand, bool) {
	brand, err := s.brands.GetBrand(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, "brand", err)
		return nil, false
	}
	if brand.UserID != userID(c) {
		s.errorResponse(c, http.StatusNotFound, CodeNotFound, "brand not found")
		return nil, false
	}
	return brand, true
}

// listBrands handles GET /api/v1/brands
func (s *Server) listBrands(c *gin.Context) {
	brands, err := s.brands.ListBrands(c.Request.Context(), userID(c))
	if err != nil {
		s.storeError(c, "brands", err)
		return
	}
	if brands == nil {
		brands = []*models.Brand{}
	}
	s.successResponse(c, brands)
}

// createBrand handles POST /api/v1/brands
func (s *Server) createBrand(c *gin.Context) {
	var req CreateBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: "+err.Error())
		return
	}

	queries := make([]models.BrandQuery, 0, len(req.Queries))
	for _, q := range req.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: empty query")
			return
		}
		queries = append(queries, q)
	}

	if req.Schedule != "" {
		if _, err := cron.ParseStandard(req.Schedule); err != nil {
			s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid cron expression: "+err.Error())
			return
		}
	}

	brand := &models.Brand{
		ID:       uuid.New().String(),
		UserID:   userID(c),
		Name:     strings.TrimSpace(req.Name),
		Domain:   strings.TrimSpace(req.Domain),
		Queries:  queries,
		Schedule: req.Schedule,
	}
	if err := s.brands.CreateBrand(c.Request.Context(), brand); err != nil {
		s.log.Error("Failed to create brand: %v", err)
		s.errorResponse(c, http.StatusInternalServerError, CodeInternal, "Failed to create brand")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": brand})
}

// getBrand handles GET /api/v1/brands/:id
func (s *Server) getBrand(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}
	s.successResponse(c, brand)
}

// processBrand handles POST /api/v1/brands/:id/process
func (s *Server) processBrand(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}

	var req ProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: "+err.Error())
			return
		}
	}
	if len(brand.Queries) == 0 {
		s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Brand has no queries to process")
		return
	}

	session, err := s.processor.Start(c.Request.Context(), brand.ID, processing.Options{
		Context:   req.Context,
		Location:  req.Location,
		Providers: req.Providers,
	})
	if err != nil {
		s.storeError(c, "brand", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "data": session})
}

// cancelProcessing handles POST /api/v1/brands/:id/process/:sessionId/cancel
func (s *Server) cancelProcessing(c *gin.Context) {
	if _, ok := s.loadSession(c); !ok {
		return
	}

	err := s.processor.Cancel(c.Request.Context(), c.Param("sessionId"))
	switch {
	case errors.Is(err, processing.ErrNotRunning):
		s.errorResponse(c, http.StatusConflict, CodeConflict, "Session is not running")
	case err != nil:
		s.storeError(c, "session", err)
	default:
		s.successResponse(c, gin.H{"sessionId": c.Param("sessionId"), "cancelRequested": true})
	}
}

func (s *Server) loadSession(c *gin.Context) (*models.ProcessingSession, bool) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return nil, false
	}
	session, err := s.brands.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		s.storeError(c, "session", err)
		return nil, false
	}
	if session.BrandID != brand.ID {
		s.errorResponse(c, http.StatusNotFound, CodeNotFound, "session not found")
		return nil, false
	}
	return session, true
}

// getSession handles GET /api/v1/brands/:id/sessions/:sessionId
func (s *Server) getSession(c *gin.Context) {
	session, ok := s.loadSession(c)
	if !ok {
		return
	}
	s.successResponse(c, session)
}

// sessionSummary handles GET /api/v1/brands/:id/sessions
func (s *Server) sessionSummary(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}
	summary, err := s.brands.SessionSummary(c.Request.Context(), brand.ID)
	if err != nil {
		s.storeError(c, "sessions", err)
		return
	}
	s.successResponse(c, summary)
}

// getAnalytics handles GET /api/v1/brands/:id/analytics
func (s *Server) getAnalytics(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}
	data, err := s.brands.LatestAnalytics(c.Request.Context(), brand.ID)
	if err != nil {
		s.storeError(c, "analytics", err)
		return
	}
	s.successResponse(c, data)
}

// getLifetimeAnalytics handles GET /api/v1/brands/:id/analytics/lifetime.
// The snapshot is recomputed when missing or when refresh=true.
func (s *Server) getLifetimeAnalytics(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if c.Query("refresh") != "true" {
		data, err := s.brands.GetLifetimeAnalytics(ctx, brand.ID)
		if err == nil {
			s.successResponse(c, data)
			return
		}
		if !errors.Is(err, db.ErrNotFound) {
			s.storeError(c, "lifetime analytics", err)
			return
		}
	}

	data := s.aggregator.FoldLifetime(ctx, brand)
	if err := s.brands.SaveLifetimeAnalytics(ctx, data); err != nil {
		s.log.Warning("Failed to save lifetime analytics for brand %s: %v", brand.ID, err)
	}
	s.successResponse(c, data)
}
