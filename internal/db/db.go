package db

import (
	"context"
	"errors"

	"github.com/AI2HU/brandlens/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a versioned write lost against a concurrent writer
	ErrConflict = errors.New("version conflict")
	// ErrInsufficientCredits is returned when a debit exceeds the balance
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// BrandStore holds brands, their bounded history and the analytics computed from it
type BrandStore interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error

	// Brand operations
	CreateBrand(ctx context.Context, brand *models.Brand) error
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, userID string) ([]*models.Brand, error)
	// UpdateBrandHistory replaces the history if the stored version still
	// equals expectedVersion, and bumps the version. It returns ErrConflict
	// otherwise.
	UpdateBrandHistory(ctx context.Context, brandID string, expectedVersion int64, history []models.QueryProcessingResult) error
	// AddBrandQueries appends tracked queries without touching the history version
	AddBrandQueries(ctx context.Context, brandID string, queries []models.BrandQuery) error

	// Processing sessions
	SaveSession(ctx context.Context, session *models.ProcessingSession) error
	GetSession(ctx context.Context, id string) (*models.ProcessingSession, error)
	SessionSummary(ctx context.Context, brandID string) (*models.SessionSummary, error)

	// Analytics
	SaveAnalytics(ctx context.Context, data *models.BrandAnalyticsData) error
	LatestAnalytics(ctx context.Context, brandID string) (*models.BrandAnalyticsData, error)
	SaveLifetimeAnalytics(ctx context.Context, data *models.LifetimeBrandAnalytics) error
	GetLifetimeAnalytics(ctx context.Context, brandID string) (*models.LifetimeBrandAnalytics, error)

	// Read-only legacy per-query documents
	ListLegacyQueryResults(ctx context.Context, brandID string) ([]models.LegacyQueryResult, error)
}

// CreditStore is the per-user credit ledger
type CreditStore interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// EnsureAccount creates the account with the initial grant if it does not
	// exist and returns the balance.
	EnsureAccount(ctx context.Context, userID string, initial float64) (float64, error)
	Balance(ctx context.Context, userID string) (float64, error)
	Grant(ctx context.Context, userID string, amount float64, reason string) (float64, error)
	// Debit fails with ErrInsufficientCredits and leaves the balance untouched
	// when amount exceeds it.
	Debit(ctx context.Context, userID string, amount float64, reason string) (float64, error)
	Ledger(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error)
}
