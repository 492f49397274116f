package analytics

import (
	"context"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/models"
)

// BrandHistory reads the history embedded in the brand document
type BrandHistory struct{}

// Name implements HistorySource
func (BrandHistory) Name() string { return "brand_history" }

// QueryResults implements HistorySource
func (BrandHistory) QueryResults(_ context.Context, brand *models.Brand) ([]models.QueryProcessingResult, error) {
	return brand.History, nil
}

// LegacyLister lists documents of the legacy query result collection
type LegacyLister interface {
	ListLegacyQueryResults(ctx context.Context, brandID string) ([]models.LegacyQueryResult, error)
}

// LegacyResults converts legacy query documents into the current shape
type LegacyResults struct {
	Store LegacyLister
}

// Name implements HistorySource
func (LegacyResults) Name() string { return "legacy_query_results" }

// QueryResults implements HistorySource
func (l LegacyResults) QueryResults(ctx context.Context, brand *models.Brand) ([]models.QueryProcessingResult, error) {
	docs, err := l.Store.ListLegacyQueryResults(ctx, brand.ID)
	if err != nil {
		return nil, err
	}
	out := make([]models.QueryProcessingResult, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ConvertLegacy(doc))
	}
	return out, nil
}

// ConvertLegacy maps a legacy document to a QueryProcessingResult. Legacy
// documents without a session id stay unscoped.
func ConvertLegacy(doc models.LegacyQueryResult) models.QueryProcessingResult {
	qr := models.QueryProcessingResult{
		Date:                       doc.ProcessedAt,
		ProcessingSessionID:        doc.SessionID,
		ProcessingSessionTimestamp: doc.ProcessedAt,
		Query:                      doc.Query,
		Keyword:                    doc.Keyword,
		Category:                   doc.Category,
		Results:                    make(map[string]*models.ProviderQueryResult),
	}

	for name, r := range map[string]*models.LegacyProviderResult{
		"chatgpt":    doc.ChatGPT,
		"google":     doc.Google,
		"perplexity": doc.Perplexity,
	} {
		if r == nil {
			continue
		}
		converted := &models.ProviderQueryResult{
			Status:         models.StatusSuccess,
			Response:       r.Response,
			Citations:      []models.Citation{},
			ResponseTimeMs: r.ResponseTime,
			Cost:           r.Cost,
			Error:          r.Error,
		}
		if r.Error != "" || r.Response == "" {
			converted.Status = models.StatusError
		}
		seen := make(map[string]bool)
		for _, raw := range r.Citations {
			u, ok := citations.ValidURL(raw)
			if !ok || seen[u] {
				continue
			}
			seen[u] = true
			converted.Citations = append(converted.Citations, models.Citation{URL: u, Text: u, Source: citations.Hostname(u)})
		}
		qr.Results[name] = converted
	}
	return qr
}
