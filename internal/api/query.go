package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/metrics"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Query     string   `json:"query" binding:"required"`
	Context   string   `json:"context,omitempty"`
	Location  string   `json:"location,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// QueryResponse is the body returned by POST /api/v1/query
type QueryResponse struct {
	Success        bool                       `json:"success"`
	RequestID      string                     `json:"requestId"`
	Results        []*models.ProviderResponse `json:"results"`
	AggregatedData models.AggregatedData      `json:"aggregatedData"`
	TotalCost      float64                    `json:"totalCost"`
	UserCredits    *float64                   `json:"userCredits,omitempty"`
	Error          string                     `json:"error,omitempty"`
	Code           string                     `json:"code,omitempty"`
}

// query handles POST /api/v1/query
func (s *Server) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		s.errorResponse(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request: query is required")
		return
	}

	ctx := c.Request.Context()
	user := userID(c)

	if s.credits != nil {
		balance, err := s.credits.EnsureAccount(ctx, user, s.creditsCfg.InitialGrant)
		if err != nil {
			s.log.Error("Failed to load credits for %s: %v", user, err)
			s.errorResponse(c, http.StatusInternalServerError, CodeInternal, "Failed to load credits")
			return
		}
		if balance < s.creditsCfg.PerQuery {
			s.errorResponse(c, http.StatusPaymentRequired, CodeInsufficientCredits, "Insufficient credits")
			return
		}
	}

	meta := map[string]string{}
	if req.Location != "" {
		meta[models.MetaLocation] = req.Location
	}
	if req.Context != "" {
		meta[models.MetaContext] = req.Context
	}

	job := s.providers.ExecuteRequest(ctx, &models.ProviderRequest{
		ID:        uuid.New().String(),
		Prompt:    processing.Prompt(req.Query, req.Context),
		Providers: req.Providers,
		UserID:    user,
		Metadata:  meta,
	})

	resp := QueryResponse{
		Success:        true,
		RequestID:      job.RequestID,
		Results:        job.Results,
		AggregatedData: job.AggregatedData,
		TotalCost:      job.TotalCost,
	}

	if job.AllFailed() {
		resp.Success = false
		resp.Error = "all providers failed"
		resp.Code = CodeAllProvidersFailed
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	if s.credits != nil {
		balance, err := s.credits.Debit(ctx, user, s.creditsCfg.PerQuery, "query "+job.RequestID)
		switch {
		case errors.Is(err, db.ErrInsufficientCredits):
			s.errorResponse(c, http.StatusPaymentRequired, CodeInsufficientCredits, "Insufficient credits")
			return
		case err != nil:
			s.log.Error("Failed to debit credits for %s: %v", user, err)
			s.errorResponse(c, http.StatusInternalServerError, CodeInternal, "Failed to debit credits")
			return
		}
		metrics.CreditsDebitedTotal.Add(s.creditsCfg.PerQuery)
		resp.UserCredits = &balance
	}

	c.JSON(http.StatusOK, resp)
}

// getCredits handles GET /api/v1/credits
func (s *Server) getCredits(c *gin.Context) {
	if s.credits == nil {
		s.errorResponse(c, http.StatusNotFound, CodeNotFound, "Credits are disabled")
		return
	}

	ctx := c.Request.Context()
	balance, err := s.credits.EnsureAccount(ctx, userID(c), s.creditsCfg.InitialGrant)
	if err != nil {
		s.storeError(c, "credits", err)
		return
	}
	ledger, err := s.credits.Ledger(ctx, userID(c), 20)
	if err != nil {
		s.storeError(c, "credits", err)
		return
	}

	s.successResponse(c, gin.H{"balance": balance, "ledger": ledger})
}

// listProviders handles GET /api/v1/providers
func (s *Server) listProviders(c *gin.Context) {
	s.successResponse(c, s.providers.GetAvailableProviders())
}

// providerStatus handles GET /api/v1/providers/status
func (s *Server) providerStatus(c *gin.Context) {
	s.successResponse(c, s.providers.GetProviderStatus(c.Request.Context()))
}
