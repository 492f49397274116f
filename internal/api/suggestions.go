package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/services"
)

// AddQueriesRequest is the body of POST /api/v1/brands/:id/queries
type AddQueriesRequest struct {
	Queries []models.BrandQuery `json:"queries" binding:"required,min=1"`
}

// SuggestRequest is the body of POST /api/v1/brands/:id/suggestions
type SuggestRequest struct {
	Language string `json:"language"`
	Topic    string `json:"topic"`
	Count    int    `json:"count"`
	Provider string `json:"provider"`
}

// addQueries handles POST /api/v1/brands/:id/queries
func (s *Server) addQueries(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}

	var req AddQueriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: "+err.Error())
		return
	}
	for i := range req.Queries {
		req.Queries[i].Query = strings.TrimSpace(req.Queries[i].Query)
		if req.Queries[i].Query == "" {
			s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: empty query")
			return
		}
	}

	ctx := c.Request.Context()
	if err := s.brands.AddBrandQueries(ctx, brand.ID, req.Queries); err != nil {
		s.storeError(c, "brand", err)
		return
	}
	updated, err := s.brands.GetBrand(ctx, brand.ID)
	if err != nil {
		s.storeError(c, "brand", err)
		return
	}
	s.successResponse(c, updated)
}

// suggestQueries handles POST /api/v1/brands/:id/suggestions. Suggestions
// are returned, not stored.
func (s *Server) suggestQueries(c *gin.Context) {
	brand, ok := s.loadBrand(c)
	if !ok {
		return
	}

	req := SuggestRequest{Language: "EN", Count: 10}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: "+err.Error())
			return
		}
	}

	cfg := &services.SuggestionConfig{LanguageCode: req.Language, Topic: req.Topic, Count: req.Count}
	if err := services.ValidateSuggestionConfig(cfg); err != nil {
		s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	suggestions, err := services.NewQuerySuggestionService(s.providers, req.Provider).SuggestQueries(c.Request.Context(), brand, cfg)
	if err != nil {
		s.log.Warning("Query suggestion for brand %s failed: %v", brand.ID, err)
		s.errorResponse(c, http.StatusBadGateway, CodeAllProvidersFailed, err.Error())
		return
	}
	s.successResponse(c, suggestions)
}
