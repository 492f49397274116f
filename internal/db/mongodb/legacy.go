package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AI2HU/brandlens/internal/models"
)

// ListLegacyQueryResults reads the legacy per-query documents of a brand,
// newest first. Documents are decoded field by field since older writers
// used ObjectIDs, numeric timestamps and object citations.
func (m *MongoDB) ListLegacyQueryResults(ctx context.Context, brandID string) ([]models.LegacyQueryResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "processed_at", Value: -1}})
	cursor, err := m.database.Collection(collQueryResults).Find(ctx, bson.M{"brand_id": brandID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy query results: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.LegacyQueryResult
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode legacy query result: %w", err)
		}
		out = append(out, decodeLegacy(doc))
	}
	return out, cursor.Err()
}

func decodeLegacy(doc bson.M) models.LegacyQueryResult {
	return models.LegacyQueryResult{
		ID:          getID(doc),
		BrandID:     getString(doc, "brand_id"),
		SessionID:   getStringFromEither(doc, "session_id", "processing_session_id"),
		Query:       getString(doc, "query"),
		Keyword:     getString(doc, "keyword"),
		Category:    getString(doc, "category"),
		ProcessedAt: getTime(doc, "processed_at"),
		ChatGPT:     getProvider(doc, "chatgpt"),
		Google:      getProvider(doc, "google"),
		Perplexity:  getProvider(doc, "perplexity"),
	}
}

func getID(doc bson.M) string {
	switch id := doc["_id"].(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	}
	return ""
}

func getProvider(doc bson.M, key string) *models.LegacyProviderResult {
	sub, ok := doc[key].(bson.M)
	if !ok {
		return nil
	}
	return &models.LegacyProviderResult{
		Response:     getString(sub, "response"),
		Citations:    getCitations(sub),
		ResponseTime: getInt64(sub, "response_time"),
		Cost:         getFloat(sub, "cost"),
		Error:        getString(sub, "error"),
	}
}

// getCitations accepts plain URL strings or {url: ...} objects
func getCitations(doc bson.M) []string {
	arr, ok := doc["citations"].(bson.A)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case bson.M:
			if u := getString(v, "url"); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

func getString(doc bson.M, key string) string {
	if val, ok := doc[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// getStringFromEither gets a string value from either of two possible field names
func getStringFromEither(doc bson.M, field1, field2 string) string {
	if s := getString(doc, field1); s != "" {
		return s
	}
	return getString(doc, field2)
}

func getInt64(doc bson.M, key string) int64 {
	switch v := doc[key].(type) {
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func getFloat(doc bson.M, key string) float64 {
	switch v := doc[key].(type) {
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

func getTime(doc bson.M, key string) time.Time {
	if val, ok := doc[key]; ok && val != nil {
		if t, ok := val.(time.Time); ok {
			return t.UTC()
		}
		if dt, ok := val.(primitive.DateTime); ok {
			return dt.Time().UTC()
		}
		if ts, ok := val.(int64); ok {
			return time.Unix(ts, 0).UTC()
		}
		if ts, ok := val.(float64); ok {
			return time.Unix(int64(ts), 0).UTC()
		}
	}
	return time.Time{}
}
