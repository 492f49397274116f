package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
)

// StatusError is a non-2xx answer from a provider API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, body)
}

// Transient reports whether the status is worth retrying
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ErrPermanent marks errors that must not be retried
var ErrPermanent = errors.New("permanent provider error")

// IsTransient reports whether an attempt error is worth retrying
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return true
}

var (
	statusFieldPattern = regexp.MustCompile(`(?i)status(?:[ _]?code)?\s*[:=]?\s*(\d{3})\b`)
	statusLinePattern  = regexp.MustCompile(`\b([1-5]\d{2}) ([A-Z][A-Za-z' -]+)`)
)

// StatusFromMessage recovers the HTTP status of an SDK error that only
// carries it in its text, such as "unexpected status code: 401" or
// "401 Unauthorized". err is returned unchanged when no status is found.
func StatusFromMessage(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return err
	}

	msg := err.Error()
	if m := statusFieldPattern.FindStringSubmatch(msg); m != nil {
		if code, _ := strconv.Atoi(m[1]); code >= 100 && code < 600 {
			return &StatusError{StatusCode: code, Body: msg}
		}
	}
	for _, m := range statusLinePattern.FindAllStringSubmatch(msg, -1) {
		code, _ := strconv.Atoi(m[1])
		if text := http.StatusText(code); text != "" && strings.HasPrefix(m[2], text) {
			return &StatusError{StatusCode: code, Body: msg}
		}
	}
	return err
}

// CheckStatus converts a non-2xx HTTP response into a StatusError
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// CallFunc performs one attempt and returns the raw provider payload
type CallFunc func(ctx context.Context) ([]byte, error)

// CostFunc prices a normalized response
type CostFunc func(data *models.NormalizedData) float64

// Runner holds the call policy shared by adapters: a rate budget, a
// per-attempt timeout and a bounded retry with fixed delay.
type Runner struct {
	Provider    string
	Limiter     *rate.Limiter
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration

	log *logger.Logger
}

// NewRunner builds a runner from provider configuration
func NewRunner(name string, cfg config.ProviderConfig) *Runner {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
		burst = int(math.Max(1, math.Ceil(cfg.RequestsPerMinute/60)))
	}

	return &Runner{
		Provider:    name,
		Limiter:     rate.NewLimiter(limit, burst),
		Timeout:     cfg.Timeout(),
		MaxAttempts: cfg.Attempts(),
		RetryDelay:  cfg.RetryDelay(),
		log:         logger.Named(name),
	}
}

// Run executes call under the policy, normalizes the payload and prices it.
// It always returns a response; failures are reported in its status.
func (r *Runner) Run(ctx context.Context, req *models.ProviderRequest, call CallFunc, transform func([]byte) (*models.NormalizedData, error), cost CostFunc) *models.ProviderResponse {
	start := time.Now()
	resp := &models.ProviderResponse{
		ProviderID: r.Provider,
		RequestID:  req.ID,
	}

	finish := func(status models.ResponseStatus, errMsg string) *models.ProviderResponse {
		resp.Status = status
		resp.Error = errMsg
		resp.ResponseTimeMs = time.Since(start).Milliseconds()
		resp.Timestamp = time.Now().UTC()
		return resp
	}

	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			r.log.Warning("Rate limit wait aborted for request %s: %v", req.ID, err)
			if ctx.Err() == context.DeadlineExceeded {
				return finish(models.StatusTimeout, "rate limit wait exceeded deadline")
			}
			return finish(models.StatusError, fmt.Sprintf("rate limit: %v", err))
		}
	}

	raw, err := r.retry(ctx, req, call)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return finish(models.StatusTimeout, err.Error())
		}
		return finish(models.StatusError, err.Error())
	}

	data, err := transform(raw)
	if err != nil {
		return finish(models.StatusError, fmt.Sprintf("failed to transform response: %v", err))
	}

	resp.Data = data
	if cost != nil {
		resp.Cost = math.Max(0, cost(data))
	}
	return finish(models.StatusSuccess, "")
}

// retry runs call up to MaxAttempts times, waiting RetryDelay between
// transient failures.
func (r *Runner) retry(ctx context.Context, req *models.ProviderRequest, call CallFunc) ([]byte, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		attemptCtx := ctx
		cancel := func() {}
		if r.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		}

		raw, err := call(attemptCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				r.log.Info("Request %s succeeded on attempt %d after %d previous failures", req.ID, attempt, attempt-1)
			}
			return raw, nil
		}

		lastErr = err
		r.log.Warning("Attempt %d/%d failed for request %s: %v", attempt, attempts, req.ID, err)

		if !IsTransient(err) || ctx.Err() != nil {
			break
		}

		if attempt < attempts && r.RetryDelay > 0 {
			timer := time.NewTimer(r.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("failed after %d attempts, last error: %w", attempt, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts, last error: %w", made, lastErr)
}
