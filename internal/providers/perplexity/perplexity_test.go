package perplexity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/models"
)

const completionJSON = `{
  "id": "pplx-1",
  "model": "sonar",
  "object": "chat.completion",
  "created": 1700000000,
  "citations": ["https://acme.com/crm", "https://www.g2.com/categories/crm"],
  "search_results": [
    {"title": "Acme CRM", "url": "https://acme.com/crm"},
    {"title": "Best CRM 2025", "url": "https://www.g2.com/categories/crm"}
  ],
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Acme is a strong pick [1]. Reviews agree [2][3]."}}],
  "usage": {"prompt_tokens": 8, "completion_tokens": 120, "total_tokens": 128}
}`

func TestTransformResponseResolvesMarkers(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})

	data, err := a.TransformResponse([]byte(completionJSON))
	require.NoError(t, err)

	assert.Equal(t, "Acme is a strong pick [1]. Reviews agree [2][3].", data.Content)
	assert.Equal(t, "sonar", data.Model)
	require.NotNil(t, data.Usage)
	assert.Equal(t, int64(128), data.Usage.TotalTokens)

	require.Len(t, data.Citations, 2)
	assert.Equal(t, "https://acme.com/crm", data.Citations[0].URL)
	assert.Equal(t, "Acme CRM", data.Citations[0].Text)
	assert.Equal(t, "1", data.Citations[0].ChunkID)
	assert.Equal(t, "https://www.g2.com/categories/crm", data.Citations[1].URL)
}

func TestTransformResponseWithoutCitationArray(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})

	data, err := a.TransformResponse([]byte(`{"choices":[{"message":{"content":"Acme [1] is good"}}]}`))
	require.NoError(t, err)
	assert.Empty(t, data.Citations)
	assert.Nil(t, data.Usage)

	_, err = a.TransformResponse([]byte(`<html>`))
	assert.Error(t, err)
}

func TestExecuteAgainstEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pplx-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON))
	}))
	defer srv.Close()

	a := New(config.ProviderConfig{Enabled: true, APIKey: "pplx-key", BaseURL: srv.URL, MaxAttempts: 1})

	resp, err := a.Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "best crm"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, "perplexity", resp.ProviderID)
	assert.Contains(t, resp.Data.Content, "Acme is a strong pick")
	assert.Greater(t, resp.Cost, 0.0)
}

func TestExecuteDoesNotRetryClientError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid API key","type":"invalid_request_error","code":401}}`))
	}))
	defer srv.Close()

	a := New(config.ProviderConfig{Enabled: true, APIKey: "bad", BaseURL: srv.URL, MaxAttempts: 3, RetryDelaySeconds: -1})

	resp, err := a.Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Zero(t, resp.Cost)
}

func TestExecuteRetriesServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionJSON))
	}))
	defer srv.Close()

	a := New(config.ProviderConfig{Enabled: true, APIKey: "k", BaseURL: srv.URL, MaxAttempts: 3, RetryDelaySeconds: -1})

	resp, err := a.Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSendHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := New(config.ProviderConfig{Enabled: true, APIKey: "k", BaseURL: srv.URL, MaxAttempts: 1, TimeoutSeconds: 30})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := a.Execute(ctx, &models.ProviderRequest{ID: "r1", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, resp.Status)
}
