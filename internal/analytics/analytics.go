package analytics

import (
	"context"
	"time"

	"github.com/AI2HU/brandlens/internal/analysis"
	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
)

// TrendThreshold is the visibility delta, in points, above which a change is a trend
const TrendThreshold = 1.0

// FoldSession folds one session's query results into session analytics
func FoldSession(brand *models.Brand, results []models.QueryProcessingResult) *models.BrandAnalyticsData {
	data := fold(brand, results)
	for _, r := range results {
		if r.ProcessingSessionID != "" {
			data.ProcessingSessionID = r.ProcessingSessionID
			break
		}
	}
	data.ID = brand.ID + ":" + data.ProcessingSessionID
	return data
}

// providerInputs keeps the successful answers of one query. Stored citations
// are used as is; results stored without citations are re-extracted.
func providerInputs(qr models.QueryProcessingResult) (map[string]analysis.ProviderInput, map[string]int64) {
	inputs := make(map[string]analysis.ProviderInput, len(qr.Results))
	times := make(map[string]int64, len(qr.Results))
	for name, r := range qr.Results {
		if r == nil || r.Status != models.StatusSuccess {
			continue
		}
		cits := r.Citations
		if len(cits) == 0 {
			cits = citations.ForProvider(name).Extract(r.Response, nil)
		}
		inputs[name] = analysis.ProviderInput{Text: r.Response, Citations: cits}
		times[name] = r.ResponseTimeMs
	}
	return inputs, times
}

func fold(brand *models.Brand, results []models.QueryProcessingResult) *models.BrandAnalyticsData {
	data := &models.BrandAnalyticsData{
		BrandID:       brand.ID,
		UserID:        brand.UserID,
		ProviderStats: make(map[string]*models.ProviderStats),
		CalculatedAt:  time.Now().UTC(),
	}

	for _, qr := range results {
		data.TotalQueriesProcessed++

		inputs, times := providerInputs(qr)
		if len(inputs) == 0 {
			continue
		}

		result := analysis.Analyze(brand.Name, brand.Domain, inputs)
		for _, pm := range result.Providers {
			stats, ok := data.ProviderStats[pm.Provider]
			if !ok {
				stats = &models.ProviderStats{}
				data.ProviderStats[pm.Provider] = stats
			}
			stats.QueriesProcessed++
			if pm.BrandMentioned {
				stats.QueriesWithMention++
			}
			stats.BrandMentions += pm.BrandMentionCount
			stats.Citations += pm.CitationCount
			stats.DomainCitations += pm.DomainCitationCount
			stats.TotalResponseTimeMs += max(times[pm.Provider], 0)
		}
	}

	entries := make([]analysis.RankInput, 0, len(data.ProviderStats))
	providersWithMention := 0
	for name, s := range data.ProviderStats {
		data.TotalBrandMentions += s.BrandMentions
		data.TotalCitations += s.Citations
		data.TotalDomainCitations += s.DomainCitations
		if s.QueriesWithMention > 0 {
			providersWithMention++
		}
		if s.QueriesProcessed > 0 {
			s.AverageResponseTimeMs = analysis.Round2(float64(s.TotalResponseTimeMs) / float64(s.QueriesProcessed))
			s.MentionsPerQuery = analysis.Round2(float64(s.BrandMentions) / float64(s.QueriesProcessed))
			s.CitationsPerQuery = analysis.Round2(float64(s.Citations) / float64(s.QueriesProcessed))
		}
		entries = append(entries, analysis.RankInput{
			Provider:         name,
			QueriesProcessed: s.QueriesProcessed,
			BrandMentions:    s.BrandMentions,
			DomainCitations:  s.DomainCitations,
			TotalCitations:   s.Citations,
		})
	}

	totalProviders := len(data.ProviderStats)
	data.BrandVisibilityScore = analysis.VisibilityScore(providersWithMention, totalProviders)

	ranking := analysis.Rank(entries)
	data.Insights = models.Insights{
		TopPerformingProvider:     ranking.TopPerformingProvider,
		TopProviders:              ranking.TopProviders,
		ProviderRanking:           ranking.Details,
		ProvidersWithBrandMention: providersWithMention,
		TotalProviders:            totalProviders,
	}
	if data.TotalQueriesProcessed > 0 {
		data.Insights.AverageMentionsPerQuery = analysis.Round2(float64(data.TotalBrandMentions) / float64(data.TotalQueriesProcessed))
		data.Insights.AverageCitationsPerQuery = analysis.Round2(float64(data.TotalCitations) / float64(data.TotalQueriesProcessed))
	}
	return data
}

// Trend compares two snapshots by visibility score
func Trend(previous, current *models.BrandAnalyticsData) (models.Trend, float64) {
	delta := analysis.Round2(current.BrandVisibilityScore - previous.BrandVisibilityScore)
	switch {
	case delta > TrendThreshold:
		return models.TrendImproving, delta
	case delta < -TrendThreshold:
		return models.TrendDeclining, delta
	default:
		return models.TrendStable, delta
	}
}

// ApplyTrend records the trend against previous in current's insights. It is
// a no-op without a previous snapshot.
func ApplyTrend(previous, current *models.BrandAnalyticsData) {
	if previous == nil || current == nil {
		return
	}
	trend, delta := Trend(previous, current)
	current.Insights.Trend = trend
	current.Insights.VisibilityChange = &delta
}

// HistorySource yields stored query results for a brand
type HistorySource interface {
	Name() string
	QueryResults(ctx context.Context, brand *models.Brand) ([]models.QueryProcessingResult, error)
}

// Aggregator computes lifetime analytics over several history sources
type Aggregator struct {
	sources []HistorySource
	log     *logger.Logger
}

// NewAggregator creates an aggregator. Sources are read in order; a session
// found in an earlier source hides the same session in later ones.
func NewAggregator(sources ...HistorySource) *Aggregator {
	return &Aggregator{sources: sources, log: logger.Named("analytics")}
}

// FoldLifetime folds every stored query result of the brand. A failing source
// is logged and skipped.
func (a *Aggregator) FoldLifetime(ctx context.Context, brand *models.Brand) *models.LifetimeBrandAnalytics {
	var all []models.QueryProcessingResult
	owner := make(map[string]string)
	seenUnscoped := make(map[string]bool)

	for _, src := range a.sources {
		entries, err := src.QueryResults(ctx, brand)
		if err != nil {
			a.log.Warning("History source %s failed for brand %s: %v", src.Name(), brand.ID, err)
			continue
		}

		claimed := make(map[string]bool)
		for _, e := range entries {
			if e.ProcessingSessionID == "" {
				key := e.Query + "|" + e.Date.UTC().Format(time.RFC3339Nano)
				if seenUnscoped[key] {
					continue
				}
				seenUnscoped[key] = true
				all = append(all, e)
				continue
			}
			if o, ok := owner[e.ProcessingSessionID]; ok && o != src.Name() {
				continue
			}
			claimed[e.ProcessingSessionID] = true
			all = append(all, e)
		}
		for id := range claimed {
			owner[id] = src.Name()
		}
	}

	data := fold(brand, all)
	data.ID = brand.ID

	lifetime := &models.LifetimeBrandAnalytics{
		BrandAnalyticsData:      *data,
		TotalProcessingSessions: len(owner),
		LastUpdated:             data.CalculatedAt,
	}
	for _, e := range all {
		if e.Date.IsZero() {
			continue
		}
		d := e.Date
		if lifetime.FirstQueryProcessed == nil || d.Before(*lifetime.FirstQueryProcessed) {
			lifetime.FirstQueryProcessed = &d
		}
		if lifetime.LastQueryProcessed == nil || d.After(*lifetime.LastQueryProcessed) {
			lifetime.LastQueryProcessed = &d
		}
	}
	return lifetime
}
