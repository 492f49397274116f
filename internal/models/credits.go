package models

import "time"

// CreditEntry is one movement on a user's credit balance
type CreditEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"` // negative for debits
	Balance   float64   `json:"balance"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionSummary aggregates the processing sessions of a brand
type SessionSummary struct {
	BrandID          string         `json:"brandId" bson:"_id"`
	TotalSessions    int            `json:"totalSessions" bson:"total_sessions"`
	ByStatus         map[string]int `json:"byStatus" bson:"-"`
	QueriesProcessed int            `json:"queriesProcessed" bson:"queries_processed"`
	TotalCost        float64        `json:"totalCost" bson:"total_cost"`
	LastStartedAt    *time.Time     `json:"lastStartedAt,omitempty" bson:"last_started_at,omitempty"`
}
