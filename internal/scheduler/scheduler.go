package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

// Retry configuration constants
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 30 * time.Second
)

// Processor runs one processing session for a brand
type Processor interface {
	Process(ctx context.Context, brandID string, opts processing.Options) (*processing.Outcome, error)
}

// Scheduler reprocesses brands on their cron schedules
type Scheduler struct {
	store      db.BrandStore
	processor  Processor
	cron       *cron.Cron
	entries    map[string]cron.EntryID
	running    bool
	mu         sync.RWMutex
	maxRetries int
	retryDelay time.Duration
	log        *logger.Logger
}

// New creates a new scheduler
func New(store db.BrandStore, processor Processor) *Scheduler {
	return &Scheduler{
		store:      store,
		processor:  processor,
		cron:       newCron(),
		entries:    make(map[string]cron.EntryID),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		log:        logger.Named("scheduler"),
	}
}

// a brand whose previous run is still going skips the tick
func newCron() *cron.Cron {
	return cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

// SetRetry overrides the retry policy for failed runs
func (s *Scheduler) SetRetry(maxRetries int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxRetries < 1 {
		maxRetries = 1
	}
	s.maxRetries = maxRetries
	s.retryDelay = delay
}

// Start loads every scheduled brand and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	brands, err := s.store.ListBrands(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load brands: %w", err)
	}

	for _, brand := range brands {
		if brand.Schedule == "" {
			continue
		}
		if err := s.register(brand); err != nil {
			s.log.Error("Failed to register brand %s: %v", brand.ID, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.log.Info("Scheduler started with %d scheduled brands", len(s.entries))
	return nil
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopped := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	<-stopped.Done()
	s.log.Info("Scheduler stopped")
}

// Scheduled returns the ids of the registered brands
func (s *Scheduler) Scheduled() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// NextRun returns the next activation time of a scheduled brand
func (s *Scheduler) NextRun(brandID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[brandID]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// register must be called with s.mu held
func (s *Scheduler) register(brand *models.Brand) error {
	brandID := brand.ID
	id, err := s.cron.AddFunc(brand.Schedule, func() {
		if err := s.ExecuteNow(context.Background(), brandID); err != nil {
			s.log.Error("Scheduled run for brand %s failed: %v", brandID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entries[brandID] = id
	s.log.Info("Registered brand %s with cron expression: %s", brandID, brand.Schedule)
	return nil
}

// ExecuteNow processes a brand immediately, retrying failed runs
func (s *Scheduler) ExecuteNow(ctx context.Context, brandID string) error {
	s.mu.RLock()
	maxRetries, retryDelay := s.maxRetries, s.retryDelay
	s.mu.RUnlock()

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		outcome, err := s.processor.Process(ctx, brandID, processing.Options{})
		if err == nil {
			s.log.Info("Scheduled run for brand %s finished: session %s %s", brandID, outcome.Session.ID, outcome.Session.Status)
			return nil
		}

		lastErr = err
		s.log.Warning("Attempt %d/%d for brand %s failed: %v", attempt, maxRetries, brandID, err)

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts, last error: %w", maxRetries, lastErr)
}

// Reload re-reads the schedules from the store
func (s *Scheduler) Reload(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	s.cron = newCron()
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()

	return s.Start(ctx)
}
