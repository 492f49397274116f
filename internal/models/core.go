package models

import (
	"time"
)

// Provider request/response models

// ResponseStatus is the settled state of one adapter invocation
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
	StatusTimeout ResponseStatus = "timeout"
)

// Well-known ProviderRequest metadata keys
const (
	MetaLocation  = "location"
	MetaModel     = "model"
	MetaMaxTokens = "maxTokens"
	MetaContext   = "context"
)

// ProviderRequest is one logical query fanned out to providers. It is not
// modified once dispatched.
type ProviderRequest struct {
	ID        string            `json:"id" bson:"id"`
	Prompt    string            `json:"prompt" bson:"prompt"`
	Providers []string          `json:"providers,omitempty" bson:"providers,omitempty"`
	Priority  int               `json:"priority" bson:"priority"`
	UserID    string            `json:"userId" bson:"user_id"`
	Metadata  map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Meta returns a metadata value or the fallback
func (r *ProviderRequest) Meta(key, fallback string) string {
	if r == nil || r.Metadata == nil {
		return fallback
	}
	if v, ok := r.Metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Citation is a source URL referenced by a provider response
type Citation struct {
	URL     string `json:"url" bson:"url"`
	Text    string `json:"text" bson:"text"`
	Source  string `json:"source" bson:"source"`
	ChunkID string `json:"chunkId,omitempty" bson:"chunk_id,omitempty"`
}

// Usage is the token accounting reported by a provider
type Usage struct {
	PromptTokens     int64 `json:"promptTokens" bson:"prompt_tokens"`
	CompletionTokens int64 `json:"completionTokens" bson:"completion_tokens"`
	TotalTokens      int64 `json:"totalTokens" bson:"total_tokens"`
}

// NormalizedData is the provider-independent shape of a response
type NormalizedData struct {
	Content   string                 `json:"content" bson:"content"`
	Citations []Citation             `json:"citations" bson:"citations"`
	Usage     *Usage                 `json:"usage,omitempty" bson:"usage,omitempty"`
	Model     string                 `json:"model,omitempty" bson:"model,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ProviderResponse is the outcome of one adapter invocation
type ProviderResponse struct {
	ProviderID     string          `json:"providerId" bson:"provider_id"`
	RequestID      string          `json:"requestId" bson:"request_id"`
	Status         ResponseStatus  `json:"status" bson:"status"`
	Data           *NormalizedData `json:"data,omitempty" bson:"data,omitempty"`
	Error          string          `json:"error,omitempty" bson:"error,omitempty"`
	ResponseTimeMs int64           `json:"responseTimeMs" bson:"response_time_ms"`
	Cost           float64         `json:"cost" bson:"cost"`
	Timestamp      time.Time       `json:"timestamp" bson:"timestamp"`
}

// Succeeded reports whether the response carries usable data
func (r *ProviderResponse) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess && r.Data != nil
}

// AggregatedResponse is one successful response with its confidence
type AggregatedResponse struct {
	ProviderID    string  `json:"providerId"`
	Content       string  `json:"content"`
	Confidence    float64 `json:"confidence"`
	CitationCount int     `json:"citationCount"`
}

// AggregatedData is a naive summary over the successful responses
type AggregatedData struct {
	Responses    []AggregatedResponse `json:"responses"`
	Consensus    string               `json:"consensus"`
	SuccessCount int                  `json:"successCount"`
	ErrorCount   int                  `json:"errorCount"`
}

// JobResult collects every settled response of one dispatched request
type JobResult struct {
	RequestID      string              `json:"requestId"`
	Results        []*ProviderResponse `json:"results"`
	AggregatedData AggregatedData      `json:"aggregatedData"`
	TotalCost      float64             `json:"totalCost"`
	CompletedAt    time.Time           `json:"completedAt"`
}

// AllFailed reports whether no provider produced a successful response
func (j *JobResult) AllFailed() bool {
	for _, r := range j.Results {
		if r.Succeeded() {
			return false
		}
	}
	return true
}

// Response returns the response for a provider, or nil
func (j *JobResult) Response(providerID string) *ProviderResponse {
	for _, r := range j.Results {
		if r.ProviderID == providerID {
			return r
		}
	}
	return nil
}
