package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

type fakeAdapter struct {
	name    string
	content string
	cost    float64
	delay   time.Duration
	err     error
	panics  bool
	healthy bool
	invalid bool
	calls   int32
	block   chan struct{}
	started chan struct{}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) ValidateRequest(req *models.ProviderRequest) bool {
	return !f.invalid && req.Prompt != ""
}

func (f *fakeAdapter) Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("adapter bug")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return &models.ProviderResponse{
		Status:         models.StatusSuccess,
		Data:           &models.NormalizedData{Content: f.content, Citations: []models.Citation{{URL: "https://acme.com"}}},
		Cost:           f.cost,
		ResponseTimeMs: 1000,
		Timestamp:      time.Now(),
	}, nil
}

func (f *fakeAdapter) TransformResponse(raw []byte) (*models.NormalizedData, error) {
	return &models.NormalizedData{Content: string(raw)}, nil
}

func (f *fakeAdapter) HealthCheck(ctx context.Context) bool {
	if f.panics {
		panic("health bug")
	}
	return f.healthy
}

func newManager(t *testing.T, timeout time.Duration, adapters ...providers.Adapter) *Manager {
	t.Helper()
	registry := providers.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}
	return New(registry, timeout)
}

func TestExecuteRequestSettlesEveryProvider(t *testing.T) {
	m := newManager(t, time.Second,
		&fakeAdapter{name: "chatgpt", content: "Acme is great", cost: 0.01},
		&fakeAdapter{name: "perplexity", err: errors.New("connection refused")},
		&fakeAdapter{name: "google", panics: true},
		&fakeAdapter{name: "gemini", content: "Acme again", cost: 0.02},
	)

	job := m.ExecuteRequest(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "best crm"})

	require.Len(t, job.Results, 4)
	assert.Equal(t, "r1", job.RequestID)
	assert.InDelta(t, 0.03, job.TotalCost, 1e-9)
	assert.Equal(t, 2, job.AggregatedData.SuccessCount)
	assert.Equal(t, 2, job.AggregatedData.ErrorCount)
	assert.False(t, job.AllFailed())

	perplexity := job.Response("perplexity")
	require.NotNil(t, perplexity)
	assert.Equal(t, models.StatusError, perplexity.Status)
	assert.Equal(t, "connection refused", perplexity.Error)

	google := job.Response("google")
	require.NotNil(t, google)
	assert.Equal(t, models.StatusError, google.Status)
	assert.Contains(t, google.Error, "panicked")

	for _, r := range job.AggregatedData.Responses {
		assert.InDelta(t, 0.89, r.Confidence, 1e-9)
		assert.Equal(t, 1, r.CitationCount)
	}
	assert.Contains(t, []string{"Acme is great", "Acme again"}, job.AggregatedData.Consensus)
}

func TestExecuteRequestUnknownProvider(t *testing.T) {
	chatgpt := &fakeAdapter{name: "chatgpt", content: "ok"}
	m := newManager(t, time.Second, chatgpt)

	job := m.ExecuteRequest(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q", Providers: []string{"chatgpt", "bing", "chatgpt"}})

	require.Len(t, job.Results, 2)
	bing := job.Response("bing")
	require.NotNil(t, bing)
	assert.Equal(t, models.StatusError, bing.Status)
	assert.Equal(t, "Provider not found: bing", bing.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&chatgpt.calls))
}

func TestExecuteRequestInvalidRequestSkipsCall(t *testing.T) {
	a := &fakeAdapter{name: "chatgpt", invalid: true}
	m := newManager(t, time.Second, a)

	job := m.ExecuteRequest(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
	require.Len(t, job.Results, 1)
	assert.Equal(t, models.StatusError, job.Results[0].Status)
	assert.Zero(t, atomic.LoadInt32(&a.calls))
	assert.True(t, job.AllFailed())
}

func TestExecuteRequestDeadline(t *testing.T) {
	m := newManager(t, 50*time.Millisecond,
		&fakeAdapter{name: "chatgpt", content: "fast"},
		&fakeAdapter{name: "google", content: "slow", delay: 2 * time.Second},
	)

	start := time.Now()
	job := m.ExecuteRequest(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, job.Results, 2)
	assert.Equal(t, models.StatusSuccess, job.Response("chatgpt").Status)
	google := job.Response("google")
	assert.Equal(t, models.StatusTimeout, google.Status)
	assert.Zero(t, google.Cost)
}

func TestExecuteRequestDeduplicatesInFlight(t *testing.T) {
	a := &fakeAdapter{name: "chatgpt", content: "ok", block: make(chan struct{}), started: make(chan struct{}, 2)}
	m := newManager(t, 5*time.Second, a)
	req := &models.ProviderRequest{ID: "same", Prompt: "q"}

	var wg sync.WaitGroup
	jobs := make([]*models.JobResult, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		jobs[0] = m.ExecuteRequest(context.Background(), req)
	}()
	<-a.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		jobs[1] = m.ExecuteRequest(context.Background(), req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(a.block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.calls))
	assert.Same(t, jobs[0], jobs[1])
}

func TestExecuteRequestSharedDispatchOutlivesCaller(t *testing.T) {
	a := &fakeAdapter{name: "chatgpt", content: "ok", block: make(chan struct{}), started: make(chan struct{}, 2)}
	m := newManager(t, 5*time.Second, a)
	req := &models.ProviderRequest{ID: "same", Prompt: "q"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan *models.JobResult, 1)
	go func() { first <- m.ExecuteRequest(ctx, req) }()
	<-a.started

	second := make(chan *models.JobResult, 1)
	go func() { second <- m.ExecuteRequest(context.Background(), req) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	left := <-first
	require.Len(t, left.Results, 1)
	assert.Equal(t, models.StatusTimeout, left.Results[0].Status)
	assert.True(t, left.AllFailed())

	close(a.block)
	job := <-second
	require.NotNil(t, job.Response("chatgpt"))
	assert.Equal(t, models.StatusSuccess, job.Response("chatgpt").Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a.calls))
}

func TestExecuteRequestAssignsMissingID(t *testing.T) {
	m := newManager(t, time.Second, &fakeAdapter{name: "chatgpt", content: "ok"})
	req := &models.ProviderRequest{Prompt: "q"}

	job := m.ExecuteRequest(context.Background(), req)
	assert.NotEmpty(t, job.RequestID)
	assert.Empty(t, req.ID)
	assert.Equal(t, job.RequestID, job.Results[0].RequestID)
}

func TestGetProviderStatus(t *testing.T) {
	m := newManager(t, time.Second,
		&fakeAdapter{name: "chatgpt", healthy: true},
		&fakeAdapter{name: "google", healthy: false},
		&fakeAdapter{name: "gemini", panics: true},
	)

	status := m.GetProviderStatus(context.Background())
	assert.Equal(t, map[string]bool{"chatgpt": true, "google": false, "gemini": false}, status)
	assert.Equal(t, []string{"chatgpt", "gemini", "google"}, m.GetAvailableProviders())
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.9, Confidence(0), 1e-9)
	assert.InDelta(t, 0.4, Confidence(50000), 1e-9)
	assert.Equal(t, 0.0, Confidence(500000))
}

func TestAggregateConsensusIsFirstSuccess(t *testing.T) {
	ok := func(id, content string) *models.ProviderResponse {
		return &models.ProviderResponse{ProviderID: id, Status: models.StatusSuccess, Data: &models.NormalizedData{Content: content}}
	}
	agg := Aggregate([]*models.ProviderResponse{
		{ProviderID: "google", Status: models.StatusTimeout},
		ok("perplexity", "first"),
		ok("chatgpt", "second"),
	})
	assert.Equal(t, "first", agg.Consensus)
	assert.Equal(t, 2, agg.SuccessCount)
	assert.Equal(t, 1, agg.ErrorCount)
}
