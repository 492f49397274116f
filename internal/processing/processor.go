package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AI2HU/brandlens/internal/analytics"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/history"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/metrics"
	"github.com/AI2HU/brandlens/internal/models"
)

// maxHistoryAttempts bounds the optimistic history write loop
const maxHistoryAttempts = 3

// ErrNotRunning is returned when cancelling a session that already finished
var ErrNotRunning = errors.New("session is not running")

// Executor fans one request out to providers
type Executor interface {
	ExecuteRequest(ctx context.Context, req *models.ProviderRequest) *models.JobResult
}

// Options tune one processing run
type Options struct {
	Context   string   // appended to every query prompt
	Location  string   // country hint forwarded to providers
	Providers []string // empty targets every registered provider
}

// Outcome is everything a processing run produced
type Outcome struct {
	Session   *models.ProcessingSession       `json:"session"`
	Results   []models.QueryProcessingResult `json:"results"`
	Analytics *models.BrandAnalyticsData      `json:"analytics,omitempty"`
	Lifetime  *models.LifetimeBrandAnalytics  `json:"lifetime,omitempty"`
}

// Processor runs a brand's tracked queries one after another and records
// history and analytics for the session
type Processor struct {
	store      db.BrandStore
	executor   Executor
	cancels    CancelRegistry
	aggregator *analytics.Aggregator
	limits     history.Limits
	delay      time.Duration
	log        *logger.Logger
	wg         sync.WaitGroup
}

// New creates a processor
func New(store db.BrandStore, executor Executor, cancels CancelRegistry, cfg config.ProcessingConfig) *Processor {
	if cancels == nil {
		cancels = NewMemoryCancelRegistry()
	}
	return &Processor{
		store:      store,
		executor:   executor,
		cancels:    cancels,
		aggregator: analytics.NewAggregator(analytics.BrandHistory{}, analytics.LegacyResults{Store: store}),
		limits:     history.Limits{MaxEntries: cfg.HistoryCap, MaxResponseChars: cfg.MaxResponseChars},
		delay:      cfg.QueryDelay(),
		log:        logger.Named("processing"),
	}
}

// Process runs every query of the brand and waits for the outcome
func (p *Processor) Process(ctx context.Context, brandID string, opts Options) (*Outcome, error) {
	brand, session, err := p.begin(ctx, brandID)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, brand, session, opts), nil
}

// Start creates the session and runs it in the background. The run outlives
// ctx; use Cancel to stop it.
func (p *Processor) Start(ctx context.Context, brandID string, opts Options) (*models.ProcessingSession, error) {
	brand, session, err := p.begin(ctx, brandID)
	if err != nil {
		return nil, err
	}

	started := *session
	runCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(runCtx, brand, session, opts)
	}()
	return &started, nil
}

// Wait blocks until background runs have finished
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Cancel flags a running session. The flag is observed before the next query starts.
func (p *Processor) Cancel(ctx context.Context, sessionID string) error {
	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionRunning {
		return ErrNotRunning
	}
	return p.cancels.Cancel(ctx, sessionID)
}

func (p *Processor) begin(ctx context.Context, brandID string) (*models.Brand, *models.ProcessingSession, error) {
	brand, err := p.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load brand %s: %w", brandID, err)
	}

	session := &models.ProcessingSession{
		ID:           uuid.New().String(),
		BrandID:      brand.ID,
		UserID:       brand.UserID,
		Status:       models.SessionRunning,
		QueriesTotal: len(brand.Queries),
		StartedAt:    time.Now().UTC(),
	}
	if err := p.store.SaveSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return brand, session, nil
}

func (p *Processor) cancelled(ctx context.Context, sessionID string) bool {
	if ctx.Err() != nil {
		return true
	}
	flagged, err := p.cancels.IsCancelled(ctx, sessionID)
	if err != nil {
		p.log.Warning("Failed to read cancellation flag for session %s: %v", sessionID, err)
		return false
	}
	return flagged
}

func (p *Processor) wait(ctx context.Context) {
	if p.delay <= 0 {
		return
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Processor) run(ctx context.Context, brand *models.Brand, session *models.ProcessingSession, opts Options) *Outcome {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	p.log.Info("Processing %d queries for brand %s (session %s)", len(brand.Queries), brand.ID, session.ID)

	var results []models.QueryProcessingResult
	failedQueries := 0
	wasCancelled := false

	for i, q := range brand.Queries {
		if i > 0 {
			p.wait(ctx)
		}
		if p.cancelled(ctx, session.ID) {
			wasCancelled = true
			p.log.Info("Session %s cancelled after %d of %d queries", session.ID, i, len(brand.Queries))
			break
		}

		job := p.executor.ExecuteRequest(ctx, buildRequest(session, brand, i, q, opts))
		results = append(results, toQueryResult(job, q, session))

		session.QueriesProcessed++
		session.TotalCost += job.TotalCost
		metrics.QueriesProcessedTotal.Inc()
		if job.AllFailed() {
			failedQueries++
			session.Errors = append(session.Errors, fmt.Sprintf("query %q: all providers failed", q.Query))
		}
	}

	// persistence must survive the cancellation that stopped the loop
	persistCtx := context.WithoutCancel(ctx)

	switch {
	case wasCancelled:
		session.Status = models.SessionCancelled
	case len(results) > 0 && failedQueries == len(results):
		session.Status = models.SessionFailed
	default:
		session.Status = models.SessionCompleted
	}

	outcome := &Outcome{Session: session, Results: results}
	if len(results) > 0 {
		p.record(persistCtx, brand, outcome)
	}

	finished := time.Now().UTC()
	session.FinishedAt = &finished
	if err := p.store.SaveSession(persistCtx, session); err != nil {
		p.log.Error("Failed to save session %s: %v", session.ID, err)
	}
	if err := p.cancels.Clear(persistCtx, session.ID); err != nil {
		p.log.Warning("Failed to clear cancellation flag for session %s: %v", session.ID, err)
	}

	metrics.RecordSession(string(session.Status))
	p.log.Info("Session %s %s: %d queries, cost $%.4f", session.ID, session.Status, session.QueriesProcessed, session.TotalCost)
	return outcome
}

// record writes history and analytics. Failures are kept on the session and
// the computed results are still returned.
func (p *Processor) record(ctx context.Context, brand *models.Brand, outcome *Outcome) {
	session := outcome.Session
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		p.log.Error("Session %s: %s", session.ID, msg)
		session.Errors = append(session.Errors, msg)
	}

	updated, err := p.writeHistory(ctx, brand.ID, session.ID, outcome.Results)
	if err != nil {
		fail("failed to write history: %v", err)
		updated = brand
		updated.History = history.Merge(brand.History, outcome.Results, session.ID, p.limits)
	}

	current := analytics.FoldSession(updated, outcome.Results)
	previous, err := p.store.LatestAnalytics(ctx, brand.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		p.log.Warning("Failed to load previous analytics for brand %s: %v", brand.ID, err)
	}
	if previous != nil && previous.ID != current.ID {
		analytics.ApplyTrend(previous, current)
	}
	if err := p.store.SaveAnalytics(ctx, current); err != nil {
		fail("failed to save analytics: %v", err)
	}
	outcome.Analytics = current

	lifetime := p.aggregator.FoldLifetime(ctx, updated)
	if prev, err := p.store.GetLifetimeAnalytics(ctx, brand.ID); err == nil {
		analytics.ApplyTrend(&prev.BrandAnalyticsData, &lifetime.BrandAnalyticsData)
	}
	if err := p.store.SaveLifetimeAnalytics(ctx, lifetime); err != nil {
		fail("failed to save lifetime analytics: %v", err)
	}
	outcome.Lifetime = lifetime
}

func (p *Processor) writeHistory(ctx context.Context, brandID, sessionID string, incoming []models.QueryProcessingResult) (*models.Brand, error) {
	for attempt := 1; attempt <= maxHistoryAttempts; attempt++ {
		brand, err := p.store.GetBrand(ctx, brandID)
		if err != nil {
			return nil, err
		}

		merged := history.Merge(brand.History, incoming, sessionID, p.limits)
		err = p.store.UpdateBrandHistory(ctx, brandID, brand.Version, merged)
		if err == nil {
			brand.History = merged
			brand.Version++
			return brand, nil
		}
		if !errors.Is(err, db.ErrConflict) {
			return nil, err
		}
		p.log.Debug("History write for brand %s conflicted (attempt %d)", brandID, attempt)
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", maxHistoryAttempts, db.ErrConflict)
}

// Prompt joins a query with optional context
func Prompt(query, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return query
	}
	return query + "\n\n" + extra
}

func buildRequest(session *models.ProcessingSession, brand *models.Brand, index int, q models.BrandQuery, opts Options) *models.ProviderRequest {
	meta := map[string]string{}
	if opts.Location != "" {
		meta[models.MetaLocation] = opts.Location
	}
	if opts.Context != "" {
		meta[models.MetaContext] = opts.Context
	}
	return &models.ProviderRequest{
		ID:        fmt.Sprintf("%s:%d", session.ID, index),
		Prompt:    Prompt(q.Query, opts.Context),
		Providers: opts.Providers,
		UserID:    brand.UserID,
		Metadata:  meta,
	}
}

func toQueryResult(job *models.JobResult, q models.BrandQuery, session *models.ProcessingSession) models.QueryProcessingResult {
	qr := models.QueryProcessingResult{
		Date:                       job.CompletedAt,
		ProcessingSessionID:        session.ID,
		ProcessingSessionTimestamp: session.StartedAt,
		Query:                      q.Query,
		Keyword:                    q.Keyword,
		Category:                   q.Category,
		Results:                    make(map[string]*models.ProviderQueryResult, len(job.Results)),
	}
	if qr.Date.IsZero() {
		qr.Date = time.Now().UTC()
	}

	for _, r := range job.Results {
		entry := &models.ProviderQueryResult{
			Status:         r.Status,
			Citations:      []models.Citation{},
			ResponseTimeMs: r.ResponseTimeMs,
			Cost:           r.Cost,
			Error:          r.Error,
		}
		if r.Data != nil {
			entry.Response = r.Data.Content
			if r.Data.Citations != nil {
				entry.Citations = r.Data.Citations
			}
		}
		qr.Results[r.ProviderID] = entry
	}
	return qr
}
