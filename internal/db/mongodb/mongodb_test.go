package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
)

var _ db.BrandStore = (*MongoDB)(nil)

func newStore(t *testing.T) *MongoDB {
	t.Helper()
	uri := os.Getenv("BRANDLENS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BRANDLENS_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	m := New(config.DatabaseConfig{URI: uri, Database: fmt.Sprintf("brandlens_test_%d", time.Now().UnixNano())})
	require.NoError(t, m.Connect(ctx))
	t.Cleanup(func() {
		m.GetDatabase().Drop(ctx)
		m.Disconnect(ctx)
	})
	return m
}

func TestBrandHistoryConflict(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	require.NoError(t, m.CreateBrand(ctx, &models.Brand{ID: "b1", UserID: "u1", Name: "Acme", Domain: "acme.com"}))
	history := []models.QueryProcessingResult{{ProcessingSessionID: "s1", Query: "best crm"}}

	require.NoError(t, m.UpdateBrandHistory(ctx, "b1", 0, history))
	assert.ErrorIs(t, m.UpdateBrandHistory(ctx, "b1", 0, history), db.ErrConflict)
	assert.ErrorIs(t, m.UpdateBrandHistory(ctx, "ghost", 0, history), db.ErrNotFound)

	b, err := m.GetBrand(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Version)
	require.Len(t, b.History, 1)
	assert.Equal(t, "best crm", b.History[0].Query)

	_, err = m.GetBrand(ctx, "ghost")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAddBrandQueries(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	require.NoError(t, m.CreateBrand(ctx, &models.Brand{ID: "b1", UserID: "u1", Name: "Acme"}))
	require.NoError(t, m.AddBrandQueries(ctx, "b1", []models.BrandQuery{{Query: "best crm"}, {Query: "crm pricing"}}))
	assert.ErrorIs(t, m.AddBrandQueries(ctx, "ghost", []models.BrandQuery{{Query: "x"}}), db.ErrNotFound)

	b, err := m.GetBrand(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, b.Queries, 2)
	assert.Equal(t, int64(0), b.Version)
}

func TestAnalyticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.SaveAnalytics(ctx, &models.BrandAnalyticsData{ID: "b1:s1", BrandID: "b1", CalculatedAt: t0}))
	require.NoError(t, m.SaveAnalytics(ctx, &models.BrandAnalyticsData{ID: "b1:s2", BrandID: "b1", CalculatedAt: t0.Add(time.Hour), BrandVisibilityScore: 50}))

	latest, err := m.LatestAnalytics(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1:s2", latest.ID)
	assert.Equal(t, 50.0, latest.BrandVisibilityScore)

	lifetime := &models.LifetimeBrandAnalytics{BrandAnalyticsData: models.BrandAnalyticsData{ID: "b1", BrandID: "b1"}, TotalProcessingSessions: 2}
	require.NoError(t, m.SaveLifetimeAnalytics(ctx, lifetime))
	lifetime.TotalProcessingSessions = 3
	require.NoError(t, m.SaveLifetimeAnalytics(ctx, lifetime))

	got, err := m.GetLifetimeAnalytics(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalProcessingSessions)
}

func TestSessionSummaryAggregation(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.SaveSession(ctx, &models.ProcessingSession{ID: "s1", BrandID: "b1", Status: models.SessionCompleted, QueriesProcessed: 2, TotalCost: 0.5, StartedAt: t0}))
	require.NoError(t, m.SaveSession(ctx, &models.ProcessingSession{ID: "s2", BrandID: "b1", Status: models.SessionFailed, TotalCost: 0.25, StartedAt: t0.Add(time.Hour)}))

	summary, err := m.SessionSummary(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 0.75, summary.TotalCost)
	assert.Equal(t, 1, summary.ByStatus["failed"])
	assert.Equal(t, t0.Add(time.Hour), *summary.LastStartedAt)
}

func TestListLegacyQueryResults(t *testing.T) {
	ctx := context.Background()
	m := newStore(t)

	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := m.GetDatabase().Collection(collQueryResults).InsertOne(ctx, bson.M{
		"_id":          primitive.NewObjectID(),
		"brand_id":     "b1",
		"query":        "best crm",
		"processed_at": at,
		"chatgpt": bson.M{
			"response":      "Acme",
			"citations":     bson.A{"https://acme.com", bson.M{"url": "https://other.com"}},
			"response_time": int32(1200),
		},
	})
	require.NoError(t, err)

	docs, err := m.ListLegacyQueryResults(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
	assert.Equal(t, at, docs[0].ProcessedAt)
	require.NotNil(t, docs[0].ChatGPT)
	assert.Equal(t, []string{"https://acme.com", "https://other.com"}, docs[0].ChatGPT.Citations)
	assert.Equal(t, int64(1200), docs[0].ChatGPT.ResponseTime)
	assert.Nil(t, docs[0].Google)
}

func TestDecodeLegacyHelpers(t *testing.T) {
	doc := bson.M{
		"_id":                   "abc",
		"processing_session_id": "s9",
		"processed_at":          int64(1700000000),
		"perplexity":            bson.M{"cost": int64(2), "error": "quota"},
	}
	legacy := decodeLegacy(doc)
	assert.Equal(t, "abc", legacy.ID)
	assert.Equal(t, "s9", legacy.SessionID)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), legacy.ProcessedAt)
	require.NotNil(t, legacy.Perplexity)
	assert.Equal(t, 2.0, legacy.Perplexity.Cost)
	assert.Equal(t, "quota", legacy.Perplexity.Error)
	assert.Nil(t, legacy.ChatGPT)
}
