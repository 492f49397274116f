package manager

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/metrics"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

// DefaultTimeout bounds a whole fan-out when none is configured
const DefaultTimeout = 3 * time.Minute

// Manager fans a request out to provider adapters and aggregates the results
type Manager struct {
	registry *providers.Registry
	timeout  time.Duration
	group    singleflight.Group
	log      *logger.Logger
}

// New creates a manager over a registry. timeout bounds each dispatch.
func New(registry *providers.Registry, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		registry: registry,
		timeout:  timeout,
		log:      logger.Named("manager"),
	}
}

// ExecuteRequest dispatches req to its target providers and waits for every
// one of them to settle or for the deadline. Concurrent calls with the same
// request id share a single dispatch.
func (m *Manager) ExecuteRequest(ctx context.Context, req *models.ProviderRequest) *models.JobResult {
	if req.ID == "" {
		clone := *req
		clone.ID = uuid.New().String()
		req = &clone
	}

	// the shared dispatch is bounded by the manager deadline only, so one
	// caller going away does not fail the others
	dispatchCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(req.ID, func() (interface{}, error) {
		return m.dispatch(dispatchCtx, req), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.DedupedRequestsTotal.Inc()
			m.log.Debug("Request %s shared an in-flight dispatch", req.ID)
		}
		return res.Val.(*models.JobResult)
	case <-ctx.Done():
		m.log.Debug("Caller of request %s left before it settled: %v", req.ID, ctx.Err())
		return m.abandoned(req, ctx.Err())
	}
}

// abandoned reports every target as timed out for a caller whose context
// ended while the dispatch was still running
func (m *Manager) abandoned(req *models.ProviderRequest, cause error) *models.JobResult {
	targets := m.targets(req)
	results := make([]*models.ProviderResponse, 0, len(targets))
	for _, name := range targets {
		results = append(results, failed(name, req.ID, models.StatusTimeout, "request abandoned: "+cause.Error(), 0))
	}
	return &models.JobResult{
		RequestID:      req.ID,
		Results:        results,
		AggregatedData: Aggregate(results),
		CompletedAt:    time.Now().UTC(),
	}
}

type settled struct {
	name string
	resp *models.ProviderResponse
}

func (m *Manager) targets(req *models.ProviderRequest) []string {
	if len(req.Providers) == 0 {
		return m.registry.Names()
	}
	seen := make(map[string]bool, len(req.Providers))
	out := make([]string, 0, len(req.Providers))
	for _, name := range req.Providers {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) dispatch(ctx context.Context, req *models.ProviderRequest) *models.JobResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	targets := m.targets(req)
	results := make([]*models.ProviderResponse, 0, len(targets))
	out := make(chan settled, len(targets))
	pending := make(map[string]bool, len(targets))

	for _, name := range targets {
		adapter, ok := m.registry.Get(name)
		if !ok {
			results = append(results, failed(name, req.ID, models.StatusError, "Provider not found: "+name, 0))
			continue
		}
		if !adapter.ValidateRequest(req) {
			results = append(results, failed(name, req.ID, models.StatusError, "Invalid request for provider: "+name, 0))
			continue
		}
		pending[name] = true
		go m.invoke(ctx, name, adapter, req, out)
	}

	start := time.Now()
	for len(pending) > 0 {
		select {
		case s := <-out:
			delete(pending, s.name)
			results = append(results, s.resp)
		case <-ctx.Done():
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				m.log.Warning("Provider %s did not settle request %s before the deadline", name, req.ID)
				results = append(results, failed(name, req.ID, models.StatusTimeout, "request deadline exceeded", time.Since(start).Milliseconds()))
			}
			pending = nil
		}
	}

	job := &models.JobResult{
		RequestID:   req.ID,
		Results:     results,
		CompletedAt: time.Now().UTC(),
	}
	for _, r := range results {
		job.TotalCost += r.Cost
		citationCount := 0
		if r.Data != nil {
			citationCount = len(r.Data.Citations)
		}
		metrics.RecordProviderResponse(r.ProviderID, string(r.Status), time.Duration(r.ResponseTimeMs)*time.Millisecond, r.Cost, citationCount)
	}
	job.AggregatedData = Aggregate(results)

	m.log.Info("Request %s settled: %d succeeded, %d failed, cost $%.4f",
		req.ID, job.AggregatedData.SuccessCount, job.AggregatedData.ErrorCount, job.TotalCost)
	return job
}

// invoke runs one adapter and always reports exactly one settled response
func (m *Manager) invoke(ctx context.Context, name string, adapter providers.Adapter, req *models.ProviderRequest, out chan<- settled) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Provider %s panicked on request %s: %v", name, req.ID, r)
			out <- settled{name: name, resp: failed(name, req.ID, models.StatusError, fmt.Sprintf("provider panicked: %v", r), time.Since(start).Milliseconds())}
		}
	}()

	resp, err := adapter.Execute(ctx, req)
	switch {
	case err != nil:
		resp = failed(name, req.ID, models.StatusError, err.Error(), time.Since(start).Milliseconds())
	case resp == nil:
		resp = failed(name, req.ID, models.StatusError, "provider returned no response", time.Since(start).Milliseconds())
	}
	resp.ProviderID = name
	resp.RequestID = req.ID
	out <- settled{name: name, resp: resp}
}

func failed(name, requestID string, status models.ResponseStatus, msg string, elapsedMs int64) *models.ProviderResponse {
	return &models.ProviderResponse{
		ProviderID:     name,
		RequestID:      requestID,
		Status:         status,
		Error:          msg,
		ResponseTimeMs: elapsedMs,
		Timestamp:      time.Now().UTC(),
	}
}

// Confidence decays linearly with response time
func Confidence(responseTimeMs int64) float64 {
	return math.Max(0, 0.9-float64(responseTimeMs)/100000)
}

// Aggregate summarizes settled responses. The consensus is the content of the
// first successful response.
func Aggregate(results []*models.ProviderResponse) models.AggregatedData {
	agg := models.AggregatedData{Responses: []models.AggregatedResponse{}}
	for _, r := range results {
		if !r.Succeeded() {
			agg.ErrorCount++
			continue
		}
		agg.SuccessCount++
		agg.Responses = append(agg.Responses, models.AggregatedResponse{
			ProviderID:    r.ProviderID,
			Content:       r.Data.Content,
			Confidence:    Confidence(r.ResponseTimeMs),
			CitationCount: len(r.Data.Citations),
		})
		if agg.SuccessCount == 1 {
			agg.Consensus = r.Data.Content
		}
	}
	return agg
}

// GetProviderStatus runs every adapter's health check concurrently
func (m *Manager) GetProviderStatus(ctx context.Context) map[string]bool {
	names := m.registry.Names()
	status := make(map[string]bool, len(names))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		adapter, _ := m.registry.Get(name)
		g.Go(func() (err error) {
			healthy := false
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("Health check for %s panicked: %v", name, r)
				}
				mu.Lock()
				status[name] = healthy
				mu.Unlock()
			}()
			healthy = adapter.HealthCheck(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return status
}

// GetAvailableProviders returns the registered provider names, sorted
func (m *Manager) GetAvailableProviders() []string {
	return m.registry.Names()
}
