package models

import (
	"time"
)

// Brand is a tracked brand with its bounded query history
type Brand struct {
	ID        string                  `json:"id" bson:"_id"`
	UserID    string                  `json:"userId" bson:"user_id"`
	Name      string                  `json:"name" bson:"name"`
	Domain    string                  `json:"domain" bson:"domain"`
	Queries   []BrandQuery            `json:"queries" bson:"queries"`
	Schedule  string                  `json:"schedule,omitempty" bson:"schedule,omitempty"` // Cron expression for automatic processing
	History   []QueryProcessingResult `json:"history,omitempty" bson:"history"`             // Most recent first
	Version   int64                   `json:"version" bson:"version"`
	CreatedAt time.Time               `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time               `json:"updatedAt" bson:"updated_at"`
}

// BrandQuery is one query tracked for a brand
type BrandQuery struct {
	Query    string `json:"query" bson:"query"`
	Keyword  string `json:"keyword,omitempty" bson:"keyword,omitempty"`
	Category string `json:"category,omitempty" bson:"category,omitempty"`
}

// ProviderQueryResult is what is kept of one provider's answer in history
type ProviderQueryResult struct {
	Status         ResponseStatus `json:"status" bson:"status"`
	Response       string         `json:"response" bson:"response"`
	Citations      []Citation     `json:"citations" bson:"citations"`
	ResponseTimeMs int64          `json:"responseTimeMs" bson:"response_time_ms"`
	Cost           float64        `json:"cost" bson:"cost"`
	Error          string         `json:"error,omitempty" bson:"error,omitempty"`
}

// QueryProcessingResult is one historical query run, keyed by provider name
type QueryProcessingResult struct {
	Date                       time.Time                       `json:"date" bson:"date"`
	ProcessingSessionID        string                          `json:"processingSessionId" bson:"processing_session_id"`
	ProcessingSessionTimestamp time.Time                       `json:"processingSessionTimestamp" bson:"processing_session_timestamp"`
	Query                      string                          `json:"query" bson:"query"`
	Keyword                    string                          `json:"keyword,omitempty" bson:"keyword,omitempty"`
	Category                   string                          `json:"category,omitempty" bson:"category,omitempty"`
	Results                    map[string]*ProviderQueryResult `json:"results" bson:"results"`
}

// SessionStatus is the state of a processing session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionFailed    SessionStatus = "failed"
)

// ProcessingSession is one batch run of a brand's queries
type ProcessingSession struct {
	ID               string        `json:"id" bson:"_id"`
	BrandID          string        `json:"brandId" bson:"brand_id"`
	UserID           string        `json:"userId" bson:"user_id"`
	Status           SessionStatus `json:"status" bson:"status"`
	QueriesTotal     int           `json:"queriesTotal" bson:"queries_total"`
	QueriesProcessed int           `json:"queriesProcessed" bson:"queries_processed"`
	TotalCost        float64       `json:"totalCost" bson:"total_cost"`
	Errors           []string      `json:"errors,omitempty" bson:"errors,omitempty"`
	StartedAt        time.Time     `json:"startedAt" bson:"started_at"`
	FinishedAt       *time.Time    `json:"finishedAt,omitempty" bson:"finished_at,omitempty"`
}
