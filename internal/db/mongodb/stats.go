package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/AI2HU/brandlens/internal/models"
)

// SessionSummary aggregates the processing sessions of a brand on-demand
func (m *MongoDB) SessionSummary(ctx context.Context, brandID string) (*models.SessionSummary, error) {
	pipeline := []bson.M{
		{
			"$match": bson.M{
				"brand_id": brandID,
			},
		},
		{
			"$group": bson.M{
				"_id":               "$status",
				"sessions":          bson.M{"$sum": 1},
				"queries_processed": bson.M{"$sum": "$queries_processed"},
				"total_cost":        bson.M{"$sum": "$total_cost"},
				"last_started_at":   bson.M{"$max": "$started_at"},
			},
		},
	}

	cursor, err := m.database.Collection(collSessions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session summary: %w", err)
	}
	defer cursor.Close(ctx)

	summary := &models.SessionSummary{BrandID: brandID, ByStatus: make(map[string]int)}
	for cursor.Next(ctx) {
		var group struct {
			Status           string    `bson:"_id"`
			Sessions         int       `bson:"sessions"`
			QueriesProcessed int       `bson:"queries_processed"`
			TotalCost        float64   `bson:"total_cost"`
			LastStartedAt    time.Time `bson:"last_started_at"`
		}
		if err := cursor.Decode(&group); err != nil {
			return nil, fmt.Errorf("failed to decode session summary: %w", err)
		}

		summary.ByStatus[group.Status] = group.Sessions
		summary.TotalSessions += group.Sessions
		summary.QueriesProcessed += group.QueriesProcessed
		summary.TotalCost += group.TotalCost
		if summary.LastStartedAt == nil || group.LastStartedAt.After(*summary.LastStartedAt) {
			last := group.LastStartedAt.UTC()
			summary.LastStartedAt = &last
		}
	}
	return summary, cursor.Err()
}
