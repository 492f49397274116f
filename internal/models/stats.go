package models

import (
	"time"
)

// TopPerformerNone is reported when no provider mentions or cites the brand
const TopPerformerNone = "none"

// ProviderMention is the brand analysis of one provider's answer to one query
type ProviderMention struct {
	Provider            string `json:"provider"`
	BrandMentioned      bool   `json:"brandMentioned"`
	BrandMentionCount   int    `json:"brandMentionCount"`
	DomainCited         bool   `json:"domainCited"`
	DomainCitationCount int    `json:"domainCitationCount"`
	CitationCount       int    `json:"citationCount"`
}

// RankingDetail is one row of the provider ranking
type RankingDetail struct {
	Rank                 int     `json:"rank" bson:"rank"`
	Provider             string  `json:"provider" bson:"provider"`
	BrandMentions        int     `json:"brandMentions" bson:"brand_mentions"`
	DomainCitations      int     `json:"domainCitations" bson:"domain_citations"`
	DomainCitationsRatio float64 `json:"domainCitationsRatio" bson:"domain_citations_ratio"` // percent
	TotalCitations       int     `json:"totalCitations" bson:"total_citations"`
}

// BrandMentionAnalysis is the analysis of one query across providers
type BrandMentionAnalysis struct {
	BrandName                   string            `json:"brandName"`
	BrandDomain                 string            `json:"brandDomain"`
	Providers                   []ProviderMention `json:"providers"`
	TotalBrandMentions          int               `json:"totalBrandMentions"`
	TotalDomainCitations        int               `json:"totalDomainCitations"`
	TotalCitations              int               `json:"totalCitations"`
	ProvidersWithBrandMention   int               `json:"providersWithBrandMention"`
	ProvidersWithDomainCitation int               `json:"providersWithDomainCitation"`
	TotalProviders              int               `json:"totalProviders"`
	BrandVisibilityScore        float64           `json:"brandVisibilityScore"`
	TopPerformingProvider       string            `json:"topPerformingProvider"`
	TopProviders                []string          `json:"topProviders"`
	ProviderRanking             []RankingDetail   `json:"providerRanking"`
}

// Provider returns the mention entry of a provider, or nil
func (a *BrandMentionAnalysis) Provider(name string) *ProviderMention {
	for i := range a.Providers {
		if a.Providers[i].Provider == name {
			return &a.Providers[i]
		}
	}
	return nil
}

// Trend compares two analytics snapshots
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// ProviderStats accumulates one provider's figures over a fold
type ProviderStats struct {
	QueriesProcessed      int     `json:"queriesProcessed" bson:"queries_processed"`
	QueriesWithMention    int     `json:"queriesWithMention" bson:"queries_with_mention"`
	BrandMentions         int     `json:"brandMentions" bson:"brand_mentions"`
	Citations             int     `json:"citations" bson:"citations"`
	DomainCitations       int     `json:"domainCitations" bson:"domain_citations"`
	TotalResponseTimeMs   int64   `json:"totalResponseTimeMs" bson:"total_response_time_ms"`
	AverageResponseTimeMs float64 `json:"averageResponseTimeMs" bson:"average_response_time_ms"`
	MentionsPerQuery      float64 `json:"mentionsPerQuery" bson:"mentions_per_query"`
	CitationsPerQuery     float64 `json:"citationsPerQuery" bson:"citations_per_query"`
}

// Insights holds the derived ranking and averages of a fold
type Insights struct {
	TopPerformingProvider     string          `json:"topPerformingProvider" bson:"top_performing_provider"`
	TopProviders              []string        `json:"topProviders" bson:"top_providers"`
	ProviderRanking           []RankingDetail `json:"providerRanking" bson:"provider_ranking"`
	AverageMentionsPerQuery   float64         `json:"averageMentionsPerQuery" bson:"average_mentions_per_query"`
	AverageCitationsPerQuery  float64         `json:"averageCitationsPerQuery" bson:"average_citations_per_query"`
	ProvidersWithBrandMention int             `json:"providersWithBrandMention" bson:"providers_with_brand_mention"`
	TotalProviders            int             `json:"totalProviders" bson:"total_providers"`
	Trend                     Trend           `json:"trend,omitempty" bson:"trend,omitempty"`
	VisibilityChange          *float64        `json:"visibilityChange,omitempty" bson:"visibility_change,omitempty"`
}

// BrandAnalyticsData is the analytics of one processing session
type BrandAnalyticsData struct {
	ID                    string                    `json:"id" bson:"_id"`
	BrandID               string                    `json:"brandId" bson:"brand_id"`
	UserID                string                    `json:"userId" bson:"user_id"`
	ProcessingSessionID   string                    `json:"processingSessionId,omitempty" bson:"processing_session_id,omitempty"`
	TotalQueriesProcessed int                       `json:"totalQueriesProcessed" bson:"total_queries_processed"`
	TotalBrandMentions    int                       `json:"totalBrandMentions" bson:"total_brand_mentions"`
	BrandVisibilityScore  float64                   `json:"brandVisibilityScore" bson:"brand_visibility_score"`
	TotalCitations        int                       `json:"totalCitations" bson:"total_citations"`
	TotalDomainCitations  int                       `json:"totalDomainCitations" bson:"total_domain_citations"`
	ProviderStats         map[string]*ProviderStats `json:"providerStats" bson:"provider_stats"`
	Insights              Insights                  `json:"insights" bson:"insights"`
	CalculatedAt          time.Time                 `json:"calculatedAt" bson:"calculated_at"`
}

// LifetimeBrandAnalytics is the fold over a brand's entire history
type LifetimeBrandAnalytics struct {
	BrandAnalyticsData      `bson:",inline"`
	TotalProcessingSessions int        `json:"totalProcessingSessions" bson:"total_processing_sessions"`
	FirstQueryProcessed     *time.Time `json:"firstQueryProcessed,omitempty" bson:"first_query_processed,omitempty"`
	LastQueryProcessed      *time.Time `json:"lastQueryProcessed,omitempty" bson:"last_query_processed,omitempty"`
	LastUpdated             time.Time  `json:"lastUpdated" bson:"last_updated"`
}
