package models

import "time"

// LegacyQueryResult is the older per-query document stored in its own
// collection, with one fixed field per provider and plain URL citations.
type LegacyQueryResult struct {
	ID          string                `json:"id" bson:"_id"`
	BrandID     string                `json:"brandId" bson:"brand_id"`
	SessionID   string                `json:"sessionId,omitempty" bson:"session_id,omitempty"`
	Query       string                `json:"query" bson:"query"`
	Keyword     string                `json:"keyword,omitempty" bson:"keyword,omitempty"`
	Category    string                `json:"category,omitempty" bson:"category,omitempty"`
	ProcessedAt time.Time             `json:"processedAt" bson:"processed_at"`
	ChatGPT     *LegacyProviderResult `json:"chatgpt,omitempty" bson:"chatgpt,omitempty"`
	Google      *LegacyProviderResult `json:"google,omitempty" bson:"google,omitempty"`
	Perplexity  *LegacyProviderResult `json:"perplexity,omitempty" bson:"perplexity,omitempty"`
}

// LegacyProviderResult is one provider's answer in a LegacyQueryResult
type LegacyProviderResult struct {
	Response     string   `json:"response" bson:"response"`
	Citations    []string `json:"citations,omitempty" bson:"citations,omitempty"`
	ResponseTime int64    `json:"responseTime" bson:"response_time"`
	Cost         float64  `json:"cost" bson:"cost"`
	Error        string   `json:"error,omitempty" bson:"error,omitempty"`
}
