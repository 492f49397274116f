package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/auth"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db/memory"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

type fakeProviders struct {
	mu       sync.Mutex
	fail     bool
	requests []*models.ProviderRequest
}

func (f *fakeProviders) ExecuteRequest(_ context.Context, req *models.ProviderRequest) *models.JobResult {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fail := f.fail
	f.mu.Unlock()

	r := &models.ProviderResponse{ProviderID: "chatgpt", RequestID: req.ID, ResponseTimeMs: 40}
	if fail {
		r.Status = models.StatusError
		r.Error = "upstream down"
	} else {
		r.Status = models.StatusSuccess
		r.Cost = 0.02
		r.Data = &models.NormalizedData{
			Content:   "Acme leads the market",
			Citations: []models.Citation{{URL: "https://acme.com/crm", Source: "acme.com"}},
		}
	}
	return &models.JobResult{
		RequestID:   req.ID,
		Results:     []*models.ProviderResponse{r},
		TotalCost:   r.Cost,
		CompletedAt: time.Now().UTC(),
	}
}

func (f *fakeProviders) GetAvailableProviders() []string { return []string{"chatgpt"} }

func (f *fakeProviders) GetProviderStatus(context.Context) map[string]bool {
	return map[string]bool{"chatgpt": true}
}

type harness struct {
	server    *Server
	store     *memory.Store
	providers *fakeProviders
	processor *processing.Processor
	tokens    *auth.Manager
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Credits = config.CreditsConfig{Enabled: true, PerQuery: 1, InitialGrant: 2}
	cfg.Processing = config.ProcessingConfig{HistoryCap: 50, MaxResponseChars: 500}
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.New()
	providers := &fakeProviders{}
	processor := processing.New(store, providers, nil, cfg.Processing)
	tokens := auth.NewManager("test-secret", "brandlens", time.Hour)

	server := NewServer(Deps{
		Providers: providers,
		Brands:    store,
		Credits:   store,
		Processor: processor,
		Tokens:    tokens,
	}, cfg)
	return &harness{server: server, store: store, providers: providers, processor: processor, tokens: tokens}
}

func (h *harness) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := h.tokens.Issue(user, user+"@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestQueryAuthAndValidation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name   string
		user   string
		body   interface{}
		status int
		code   string
	}{
		{"no token", "", QueryRequest{Query: "best crm"}, http.StatusUnauthorized, CodeAuthRequired},
		{"empty query", "u1", QueryRequest{Query: "  "}, http.StatusBadRequest, CodeInvalidRequest},
		{"missing body", "u1", nil, http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/query", tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
		})
	}
	assert.Empty(t, h.providers.requests)
}

func TestQueryRejectsForgedToken(t *testing.T) {
	h := newHarness(t, nil)
	other := auth.NewManager("other-secret", "brandlens", time.Hour)
	token, err := other.Issue("u1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString(`{"query":"x"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeAuthRequired, decode(t, w)["code"])
}

func TestQueryDebitsCredits(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm", Context: "for startups", Location: "UK"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 0.02, resp.TotalCost)
	require.NotNil(t, resp.UserCredits)
	assert.Equal(t, 1.0, *resp.UserCredits)

	require.Len(t, h.providers.requests, 1)
	sent := h.providers.requests[0]
	assert.Equal(t, "best crm\n\nfor startups", sent.Prompt)
	assert.Equal(t, "u1", sent.UserID)
	assert.Equal(t, "UK", sent.Metadata[models.MetaLocation])

	// second query spends the last credit, third is refused
	w = h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm"})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, CodeInsufficientCredits, decode(t, w)["code"])
	assert.Len(t, h.providers.requests, 2)
}

func TestQueryAllProvidersFailedKeepsCredits(t *testing.T) {
	h := newHarness(t, nil)
	h.providers.fail = true

	w := h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "all providers failed", resp.Error)
	assert.Equal(t, CodeAllProvidersFailed, resp.Code)
	assert.Len(t, resp.Results, 1)
	assert.Nil(t, resp.UserCredits)

	balance, err := h.store.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, balance)
}

func TestQueryWithoutCredits(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Credits.Enabled = false })

	w := h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "userCredits")

	w = h.do(t, http.MethodGet, "/api/v1/credits", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreditsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/api/v1/query", "u1", QueryRequest{Query: "best crm"})

	w := h.do(t, http.MethodGet, "/api/v1/credits", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 1.0, data["balance"])
	assert.Len(t, data["ledger"], 2)
}

func TestBrandLifecycle(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/brands", "u1", CreateBrandRequest{
		Name:   "Acme",
		Domain: "acme.com",
		Queries: []models.BrandQuery{
			{Query: "best crm", Keyword: "crm"},
			{Query: "crm pricing", Keyword: "pricing"},
		},
		Schedule: "0 6 * * *",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	brandID := decode(t, w)["data"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, brandID)

	w = h.do(t, http.MethodGet, "/api/v1/brands", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID+"/analytics", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/brands/"+brandID+"/process", "u1", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	sessionID := decode(t, w)["data"].(map[string]interface{})["id"].(string)
	h.processor.Wait()

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID+"/sessions/"+sessionID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	session := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, string(models.SessionCompleted), session["status"])

	w = h.do(t, http.MethodPost, "/api/v1/brands/"+brandID+"/process/"+sessionID+"/cancel", "u1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID+"/analytics", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	analytics := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 100.0, analytics["brandVisibilityScore"])

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID+"/analytics/lifetime?refresh=true", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lifetime := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 1.0, lifetime["totalProcessingSessions"])

	w = h.do(t, http.MethodGet, "/api/v1/brands/"+brandID+"/sessions", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 1.0, summary["totalSessions"])
}

func TestCreateBrandValidation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		req  CreateBrandRequest
	}{
		{"missing domain", CreateBrandRequest{Name: "Acme"}},
		{"bad schedule", CreateBrandRequest{Name: "Acme", Domain: "acme.com", Schedule: "every day"}},
		{"blank query", CreateBrandRequest{Name: "Acme", Domain: "acme.com", Queries: []models.BrandQuery{{Query: " "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/brands", "u1", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeInvalidRequest, decode(t, w)["code"])
		})
	}
}

func TestProcessBrandWithoutQueries(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.CreateBrand(context.Background(), &models.Brand{ID: "b1", UserID: "u1", Name: "Acme", Domain: "acme.com"}))

	w := h.do(t, http.MethodPost, "/api/v1/brands/b1/process", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/brands/missing/process", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProviderEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/v1/providers", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"chatgpt"}, decode(t, w)["data"])

	w = h.do(t, http.MethodGet, "/api/v1/providers/status", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"chatgpt": true}, decode(t, w)["data"])
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORS(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.CORSOrigin = "https://app.example.com, https://admin.example.com" })

	tests := []struct {
		origin string
		want   string
	}{
		{"https://admin.example.com", "https://admin.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		h.server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAddQueriesAndSuggestions(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.CreateBrand(context.Background(), &models.Brand{ID: "b1", UserID: "u1", Name: "Acme", Domain: "acme.com"}))

	w := h.do(t, http.MethodPost, "/api/v1/brands/b1/queries", "u1", AddQueriesRequest{Queries: []models.BrandQuery{{Query: " best crm "}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	brand, err := h.store.GetBrand(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, brand.Queries, 1)
	assert.Equal(t, "best crm", brand.Queries[0].Query)

	w = h.do(t, http.MethodPost, "/api/v1/brands/b1/queries", "u1", AddQueriesRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/brands/b1/queries", "u2", AddQueriesRequest{Queries: []models.BrandQuery{{Query: "x"}}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/brands/b1/suggestions", "u1", SuggestRequest{Language: "EN", Count: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []interface{}{
		map[string]interface{}{"query": "Acme leads the market", "category": "suggested"},
	}, decode(t, w)["data"])

	w = h.do(t, http.MethodPost, "/api/v1/brands/b1/suggestions", "u1", SuggestRequest{Language: "EN", Count: 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
