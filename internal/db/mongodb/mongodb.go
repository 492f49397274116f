package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
)

// MongoDB implements db.BrandStore
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	config   config.DatabaseConfig
}

const (
	collBrands       = "brands"
	collAnalytics    = "brand_analytics"
	collLifetime     = "lifetime_analytics"
	collSessions     = "processing_sessions"
	collQueryResults = "query_results"
)

// New creates a new MongoDB store
func New(cfg config.DatabaseConfig) *MongoDB {
	return &MongoDB{config: cfg}
}

// Connect establishes connection to MongoDB
func (m *MongoDB) Connect(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(m.config.URI)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.database = client.Database(m.config.Database)

	if err := m.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Ping checks the database connection
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not connected to database")
	}
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collBrands: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		collAnalytics: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "calculated_at", Value: -1}}},
		},
		collSessions: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "started_at", Value: -1}}},
		},
		collQueryResults: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "processed_at", Value: -1}}},
		},
	}

	for coll, idx := range indexes {
		if _, err := m.database.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBrand inserts a new brand at version 0
func (m *MongoDB) CreateBrand(ctx context.Context, brand *models.Brand) error {
	now := time.Now().UTC()
	brand.CreatedAt, brand.UpdatedAt = now, now
	brand.Version = 0
	if brand.History == nil {
		brand.History = []models.QueryProcessingResult{}
	}
	if brand.Queries == nil {
		brand.Queries = []models.BrandQuery{}
	}

	if _, err := m.database.Collection(collBrands).InsertOne(ctx, brand); err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

// GetBrand retrieves a brand by ID
func (m *MongoDB) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	brand, err := findOne[models.Brand](ctx, m.database.Collection(collBrands), bson.M{"_id": id})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return brand, err
}

// ListBrands lists the brands of a user, or all brands for an empty userID
func (m *MongoDB) ListBrands(ctx context.Context, userID string) ([]*models.Brand, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"history": 0})
	cursor, err := m.database.Collection(collBrands).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer cursor.Close(ctx)

	var brands []*models.Brand
	if err := cursor.All(ctx, &brands); err != nil {
		return nil, fmt.Errorf("failed to decode brands: %w", err)
	}
	return brands, nil
}

// UpdateBrandHistory implements db.BrandStore with a version-conditional update
func (m *MongoDB) UpdateBrandHistory(ctx context.Context, brandID string, expectedVersion int64, history []models.QueryProcessingResult) error {
	coll := m.database.Collection(collBrands)
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": brandID, "version": expectedVersion},
		bson.M{
			"$set": bson.M{"history": history, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update brand history: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": brandID})
	if err != nil {
		return fmt.Errorf("failed to check brand: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return db.ErrConflict
}

// AddBrandQueries implements db.BrandStore
func (m *MongoDB) AddBrandQueries(ctx context.Context, brandID string, queries []models.BrandQuery) error {
	res, err := m.database.Collection(collBrands).UpdateOne(ctx,
		bson.M{"_id": brandID},
		bson.M{
			"$push": bson.M{"queries": bson.M{"$each": queries}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add brand queries: %w", err)
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

// SaveSession upserts a processing session
func (m *MongoDB) SaveSession(ctx context.Context, session *models.ProcessingSession) error {
	_, err := m.database.Collection(collSessions).ReplaceOne(ctx,
		bson.M{"_id": session.ID}, session, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a processing session
func (m *MongoDB) GetSession(ctx context.Context, id string) (*models.ProcessingSession, error) {
	session, err := findOne[models.ProcessingSession](ctx, m.database.Collection(collSessions), bson.M{"_id": id})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, err
}

// SaveAnalytics upserts a session analytics snapshot
func (m *MongoDB) SaveAnalytics(ctx context.Context, data *models.BrandAnalyticsData) error {
	_, err := m.database.Collection(collAnalytics).ReplaceOne(ctx,
		bson.M{"_id": data.ID}, data, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

// LatestAnalytics returns the most recently calculated session snapshot
func (m *MongoDB) LatestAnalytics(ctx context.Context, brandID string) (*models.BrandAnalyticsData, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "calculated_at", Value: -1}})
	data, err := findOne[models.BrandAnalyticsData](ctx, m.database.Collection(collAnalytics), bson.M{"brand_id": brandID}, opts)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return data, err
}

// SaveLifetimeAnalytics replaces the lifetime snapshot, keyed by brand
func (m *MongoDB) SaveLifetimeAnalytics(ctx context.Context, data *models.LifetimeBrandAnalytics) error {
	_, err := m.database.Collection(collLifetime).ReplaceOne(ctx,
		bson.M{"_id": data.BrandID}, data, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save lifetime analytics: %w", err)
	}
	return nil
}

// GetLifetimeAnalytics returns the lifetime snapshot of a brand
func (m *MongoDB) GetLifetimeAnalytics(ctx context.Context, brandID string) (*models.LifetimeBrandAnalytics, error) {
	data, err := findOne[models.LifetimeBrandAnalytics](ctx, m.database.Collection(collLifetime), bson.M{"_id": brandID})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get lifetime analytics: %w", err)
	}
	return data, err
}

// GetDatabase returns the underlying MongoDB database instance
func (m *MongoDB) GetDatabase() *mongo.Database {
	return m.database
}
