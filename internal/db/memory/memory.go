// Package memory keeps brands, analytics and credits in process memory. It
// backs tests and single-process runs without MongoDB.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
)

// Store implements db.BrandStore and db.CreditStore
type Store struct {
	mu        sync.RWMutex
	brands    map[string]*models.Brand
	sessions  map[string]*models.ProcessingSession
	analytics map[string][]*models.BrandAnalyticsData
	lifetime  map[string]*models.LifetimeBrandAnalytics
	legacy    map[string][]models.LegacyQueryResult
	balances  map[string]float64
	ledger    map[string][]models.CreditEntry
	nextEntry int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		brands:    make(map[string]*models.Brand),
		sessions:  make(map[string]*models.ProcessingSession),
		analytics: make(map[string][]*models.BrandAnalyticsData),
		lifetime:  make(map[string]*models.LifetimeBrandAnalytics),
		legacy:    make(map[string][]models.LegacyQueryResult),
		balances:  make(map[string]float64),
		ledger:    make(map[string][]models.CreditEntry),
	}
}

func (s *Store) Connect(context.Context) error    { return nil }
func (s *Store) Disconnect(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error       { return nil }

func cloneBrand(b *models.Brand) *models.Brand {
	c := *b
	c.Queries = append([]models.BrandQuery(nil), b.Queries...)
	c.History = append([]models.QueryProcessingResult(nil), b.History...)
	return &c
}

// CreateBrand stores a new brand
func (s *Store) CreateBrand(_ context.Context, brand *models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[brand.ID]; ok {
		return fmt.Errorf("brand already exists: %s", brand.ID)
	}
	now := time.Now().UTC()
	brand.CreatedAt, brand.UpdatedAt = now, now
	s.brands[brand.ID] = cloneBrand(brand)
	return nil
}

// GetBrand returns a copy of the brand
func (s *Store) GetBrand(_ context.Context, id string) (*models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brands[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cloneBrand(b), nil
}

// ListBrands returns the brands of a user, or all brands for an empty userID
func (s *Store) ListBrands(_ context.Context, userID string) ([]*models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Brand
	for _, b := range s.brands {
		if userID == "" || b.UserID == userID {
			out = append(out, cloneBrand(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBrandHistory implements db.BrandStore
func (s *Store) UpdateBrandHistory(_ context.Context, brandID string, expectedVersion int64, history []models.QueryProcessingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.brands[brandID]
	if !ok {
		return db.ErrNotFound
	}
	if b.Version != expectedVersion {
		return db.ErrConflict
	}
	b.History = append([]models.QueryProcessingResult(nil), history...)
	b.Version++
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// AddBrandQueries implements db.BrandStore
func (s *Store) AddBrandQueries(_ context.Context, brandID string, queries []models.BrandQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.brands[brandID]
	if !ok {
		return db.ErrNotFound
	}
	b.Queries = append(b.Queries, queries...)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveSession upserts a processing session
func (s *Store) SaveSession(_ context.Context, session *models.ProcessingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	c.Errors = append([]string(nil), session.Errors...)
	s.sessions[session.ID] = &c
	return nil
}

// GetSession returns a processing session
func (s *Store) GetSession(_ context.Context, id string) (*models.ProcessingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *session
	return &c, nil
}

// SessionSummary aggregates the sessions of a brand
func (s *Store) SessionSummary(_ context.Context, brandID string) (*models.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &models.SessionSummary{BrandID: brandID, ByStatus: make(map[string]int)}
	for _, session := range s.sessions {
		if session.BrandID != brandID {
			continue
		}
		summary.TotalSessions++
		summary.ByStatus[string(session.Status)]++
		summary.QueriesProcessed += session.QueriesProcessed
		summary.TotalCost += session.TotalCost
		if summary.LastStartedAt == nil || session.StartedAt.After(*summary.LastStartedAt) {
			started := session.StartedAt
			summary.LastStartedAt = &started
		}
	}
	return summary, nil
}

// SaveAnalytics stores a session analytics snapshot
func (s *Store) SaveAnalytics(_ context.Context, data *models.BrandAnalyticsData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *data
	snapshots := s.analytics[data.BrandID]
	for i, existing := range snapshots {
		if existing.ID == data.ID {
			snapshots[i] = &c
			return nil
		}
	}
	s.analytics[data.BrandID] = append(snapshots, &c)
	return nil
}

// LatestAnalytics returns the most recently calculated session snapshot
func (s *Store) LatestAnalytics(_ context.Context, brandID string) (*models.BrandAnalyticsData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.BrandAnalyticsData
	for _, a := range s.analytics[brandID] {
		if latest == nil || !a.CalculatedAt.Before(latest.CalculatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, db.ErrNotFound
	}
	c := *latest
	return &c, nil
}

// SaveLifetimeAnalytics replaces the lifetime snapshot of a brand
func (s *Store) SaveLifetimeAnalytics(_ context.Context, data *models.LifetimeBrandAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *data
	s.lifetime[data.BrandID] = &c
	return nil
}

// GetLifetimeAnalytics returns the lifetime snapshot of a brand
func (s *Store) GetLifetimeAnalytics(_ context.Context, brandID string) (*models.LifetimeBrandAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lifetime[brandID]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *l
	return &c, nil
}

// AddLegacyQueryResult seeds a legacy document
func (s *Store) AddLegacyQueryResult(doc models.LegacyQueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[doc.BrandID] = append(s.legacy[doc.BrandID], doc)
}

// ListLegacyQueryResults implements db.BrandStore
func (s *Store) ListLegacyQueryResults(_ context.Context, brandID string) ([]models.LegacyQueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LegacyQueryResult(nil), s.legacy[brandID]...), nil
}

// EnsureAccount implements db.CreditStore
func (s *Store) EnsureAccount(_ context.Context, userID string, initial float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[userID]; ok {
		return b, nil
	}
	initial = max(initial, 0)
	s.balances[userID] = initial
	if initial > 0 {
		s.appendLedger(userID, initial, "initial grant")
	}
	return initial, nil
}

// Balance implements db.CreditStore
func (s *Store) Balance(_ context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[userID]
	if !ok {
		return 0, db.ErrNotFound
	}
	return b, nil
}

// Grant implements db.CreditStore
func (s *Store) Grant(_ context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %v", amount)
	}
	return s.apply(userID, amount, reason)
}

// Debit implements db.CreditStore
func (s *Store) Debit(ctx context.Context, userID string, amount float64, reason string) (float64, error) {
	if amount <= 0 {
		return s.Balance(ctx, userID)
	}
	return s.apply(userID, -amount, reason)
}

func (s *Store) apply(userID string, delta float64, reason string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[userID]
	if !ok {
		return 0, db.ErrNotFound
	}
	if b+delta < 0 {
		return 0, db.ErrInsufficientCredits
	}
	s.balances[userID] = b + delta
	s.appendLedger(userID, delta, reason)
	return b + delta, nil
}

func (s *Store) appendLedger(userID string, amount float64, reason string) {
	s.nextEntry++
	s.ledger[userID] = append(s.ledger[userID], models.CreditEntry{
		ID:        s.nextEntry,
		UserID:    userID,
		Amount:    amount,
		Balance:   s.balances[userID],
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

// Ledger implements db.CreditStore, most recent entries first
func (s *Store) Ledger(_ context.Context, userID string, limit int) ([]models.CreditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.ledger[userID]
	out := make([]models.CreditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, entries[i])
	}
	return out, nil
}
