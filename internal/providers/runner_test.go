package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/models"
)

func testRunner(attempts int) *Runner {
	r := NewRunner("test", config.ProviderConfig{MaxAttempts: attempts})
	r.RetryDelay = time.Millisecond
	r.Timeout = time.Second
	return r
}

func httpCall(url string) CallFunc {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if err := CheckStatus(resp); err != nil {
			return nil, err
		}
		return []byte(`{"ok":true}`), nil
	}
}

func passthrough(raw []byte) (*models.NormalizedData, error) {
	return &models.NormalizedData{Content: string(raw), Citations: []models.Citation{}}, nil
}

var testReq = &models.ProviderRequest{ID: "req-1", Prompt: "best crm"}

func TestRunnerRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp := testRunner(3).Run(context.Background(), testReq, httpCall(srv.URL), passthrough, FlatCost(0.5))

	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, 0.5, resp.Cost)
	assert.Equal(t, "test", resp.ProviderID)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestRunnerDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	resp := testRunner(3).Run(context.Background(), testReq, httpCall(srv.URL), passthrough, nil)

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Contains(t, resp.Error, "status 401")
	assert.Contains(t, resp.Error, "failed after 1 attempts")
	assert.Nil(t, resp.Data)
}

func TestRunnerRetriesRateLimited(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp := testRunner(2).Run(context.Background(), testReq, httpCall(srv.URL), passthrough, nil)

	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Contains(t, resp.Error, "status 429")
}

func TestRunnerReportsTimeout(t *testing.T) {
	r := testRunner(1)
	r.Timeout = 20 * time.Millisecond

	slow := func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp := r.Run(ctx, testReq, slow, passthrough, nil)
	assert.Equal(t, models.StatusTimeout, resp.Status)
}

func TestRunnerPermanentErrorStopsRetries(t *testing.T) {
	var calls int
	call := func(context.Context) ([]byte, error) {
		calls++
		return nil, fmt.Errorf("empty prompt: %w", ErrPermanent)
	}

	resp := testRunner(5).Run(context.Background(), testReq, call, passthrough, nil)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, 1, calls)
}

func TestRunnerTransformFailure(t *testing.T) {
	call := func(context.Context) ([]byte, error) { return []byte("not json"), nil }
	transform := func([]byte) (*models.NormalizedData, error) { return nil, errors.New("invalid payload") }

	resp := testRunner(1).Run(context.Background(), testReq, call, transform, FlatCost(1))
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "failed to transform response")
	assert.Zero(t, resp.Cost)
}

func TestRunnerClampsNegativeCost(t *testing.T) {
	call := func(context.Context) ([]byte, error) { return []byte("{}"), nil }

	resp := testRunner(1).Run(context.Background(), testReq, call, passthrough, FlatCost(-3))
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, 0.0, resp.Cost)
}

func TestRunnerWaitsOnLimiter(t *testing.T) {
	r := testRunner(1)
	r.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	call := func(context.Context) ([]byte, error) { return []byte("{}"), nil }

	first := r.Run(context.Background(), testReq, call, passthrough, nil)
	require.Equal(t, models.StatusSuccess, first.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := r.Run(ctx, testReq, call, passthrough, nil)
	assert.NotEqual(t, models.StatusSuccess, second.Status)
}

func TestNewRunnerRateBudget(t *testing.T) {
	r := NewRunner("p", config.ProviderConfig{RequestsPerMinute: 120})
	assert.Equal(t, rate.Limit(2), r.Limiter.Limit())
	assert.Equal(t, 2, r.Limiter.Burst())

	unlimited := NewRunner("p", config.ProviderConfig{})
	assert.Equal(t, rate.Inf, unlimited.Limiter.Limit())
	assert.Equal(t, 3, unlimited.MaxAttempts)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("connection reset"), true},
		{"server error", &StatusError{StatusCode: 503}, true},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad request", &StatusError{StatusCode: 400}, false},
		{"wrapped client error", fmt.Errorf("call: %w", &StatusError{StatusCode: 403}), false},
		{"permanent", ErrPermanent, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestStatusFromMessage(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		transient bool
	}{
		{"status code field", errors.New("unexpected status code: 401 - invalid key"), 401, false},
		{"status line", errors.New("error sending request: 400 Bad Request"), 400, false},
		{"server error", errors.New("status code 503"), 503, true},
		{"rate limited", errors.New("429 Too Many Requests"), 429, true},
		{"no status", errors.New("dial tcp: connection refused"), 0, true},
		{"number without status text", errors.New("took 404 ms to fail"), 0, true},
		{"already classified", &StatusError{StatusCode: 404}, 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StatusFromMessage(tt.err)

			var statusErr *StatusError
			if tt.status == 0 {
				assert.False(t, errors.As(got, &statusErr))
			} else {
				require.True(t, errors.As(got, &statusErr))
				assert.Equal(t, tt.status, statusErr.StatusCode)
			}
			assert.Equal(t, tt.transient, IsTransient(got))
		})
	}
	assert.NoError(t, StatusFromMessage(nil))
}

func TestTokenCost(t *testing.T) {
	usage := &models.Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 12.5, TokenCost("gpt-4o-search-preview", usage), 1e-9)
	assert.InDelta(t, 10.0, TokenCost("gpt-4.1-2025-04-14", usage), 1e-9)
	assert.InDelta(t, 2.0, TokenCost("sonar", usage), 1e-9)
	assert.InDelta(t, 12.5, TokenCost("unknown-model", usage), 1e-9)
	assert.Zero(t, TokenCost("sonar", nil))
	assert.Zero(t, TokenCost("sonar", &models.Usage{PromptTokens: -5}))

	withSearch := TokenCostWithSearch("sonar", PerplexityWebSearchPer1000)
	assert.InDelta(t, 0.008, withSearch(&models.NormalizedData{}), 1e-9)
}

func TestCountryCode(t *testing.T) {
	tests := map[string]string{
		"":               "US",
		"UK":             "GB",
		"United Kingdom": "GB",
		"de":             "DE",
		"Narnia":         "US",
		" canada ":       "CA",
	}
	for in, want := range tests {
		assert.Equal(t, want, CountryCode(in), in)
	}
}
