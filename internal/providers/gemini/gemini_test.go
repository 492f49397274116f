package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/models"
)

const groundedJSON = `{
  "modelVersion": "gemini-2.0-flash-001",
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "Acme leads the CRM market "}, {"text": "for startups."}]},
    "groundingMetadata": {
      "webSearchQueries": ["best crm for startups"],
      "groundingChunks": [
        {"web": {"uri": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc", "title": "acme.com", "domain": "acme.com"}},
        {"web": {"uri": "https://example.org/crm-guide", "title": "example.org"}},
        {"retrievedContext": {"uri": "gs://bucket/file"}}
      ]
    }
  }],
  "usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 20, "totalTokenCount": 30}
}`

func TestTransformResponseGrounding(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})

	data, err := a.TransformResponse([]byte(groundedJSON))
	require.NoError(t, err)

	assert.Equal(t, "Acme leads the CRM market for startups.", data.Content)
	assert.Equal(t, "gemini-2.0-flash-001", data.Model)
	require.NotNil(t, data.Usage)
	assert.Equal(t, int64(20), data.Usage.CompletionTokens)

	require.Len(t, data.Citations, 2)
	assert.Equal(t, "acme.com", data.Citations[0].Source)
	assert.Equal(t, "0", data.Citations[0].ChunkID)
	assert.Equal(t, "https://example.org/crm-guide", data.Citations[1].URL)
}

func TestTransformResponseSkipsThoughts(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":"thinking...","thought":true},{"text":"Answer"}]}}]}`)

	data, err := a.TransformResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Answer", data.Content)
	assert.Empty(t, data.Citations)
	assert.Nil(t, data.Usage)
}

func TestTransformResponseToleratesEmptyCandidates(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})

	data, err := a.TransformResponse([]byte(`{"candidates":[{}]}`))
	require.NoError(t, err)
	assert.Empty(t, data.Content)

	_, err = a.TransformResponse([]byte(`nope`))
	assert.Error(t, err)
}

func TestValidateRequest(t *testing.T) {
	a := New(config.ProviderConfig{APIKey: "k"})
	assert.Equal(t, "gemini", a.Name())
	assert.True(t, a.ValidateRequest(&models.ProviderRequest{Prompt: "best crm"}))
	assert.False(t, a.ValidateRequest(&models.ProviderRequest{}))
}

func testConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:           true,
		APIKey:            "gemini-key",
		BaseURL:           baseURL,
		MaxAttempts:       3,
		RetryDelaySeconds: -1,
	}
}

func TestExecuteAgainstEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(groundedJSON))
	}))
	defer srv.Close()

	resp, err := New(testConfig(srv.URL)).Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "best crm"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, "gemini", resp.ProviderID)
	assert.Equal(t, "Acme leads the CRM market for startups.", resp.Data.Content)
	assert.Len(t, resp.Data.Citations, 2)
}

func TestExecuteDoesNotRetryClientError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"permission denied","status":"PERMISSION_DENIED"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := New(testConfig(srv.URL)).Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
			require.NoError(t, err)
			assert.Equal(t, models.StatusError, resp.Status)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
			assert.Zero(t, resp.Cost)
		})
	}
}

func TestExecuteRetriesServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(groundedJSON))
	}))
	defer srv.Close()

	resp, err := New(testConfig(srv.URL)).Execute(context.Background(), &models.ProviderRequest{ID: "r1", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, resp.Status, resp.Error)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
