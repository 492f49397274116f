package perplexity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sgaunet/perplexity-go/v2"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

const defaultModel = "sonar"

// Adapter implements providers.Adapter for the Perplexity chat API
type Adapter struct {
	client    *perplexity.Client
	model     string
	runner    *providers.Runner
	extractor citations.Extractor
	log       *logger.Logger
}

// New creates a new Perplexity adapter
func New(cfg config.ProviderConfig) *Adapter {
	client := perplexity.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		client.SetEndpoint(cfg.BaseURL)
	}
	client.SetHTTPTimeout(cfg.Timeout())

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Adapter{
		client:    client,
		model:     model,
		runner:    providers.NewRunner(config.ProviderPerplexity, cfg),
		extractor: citations.ForProvider(config.ProviderPerplexity),
		log:       logger.Named(config.ProviderPerplexity),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return config.ProviderPerplexity
}

// ValidateRequest validates the request
func (a *Adapter) ValidateRequest(req *models.ProviderRequest) bool {
	return req != nil && strings.TrimSpace(req.Prompt) != ""
}

// Execute sends the prompt to Perplexity
func (a *Adapter) Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	model := req.Meta(models.MetaModel, a.model)
	completion := perplexity.NewCompletionRequest(
		perplexity.WithMessages([]perplexity.Message{{Role: "user", Content: req.Prompt}}),
		perplexity.WithModel(model),
	)

	call := func(ctx context.Context) ([]byte, error) {
		return a.send(ctx, completion)
	}

	a.log.Debug("Sending request %s to %s", req.ID, model)
	return a.runner.Run(ctx, req, call, a.TransformResponse, providers.TokenCostWithSearch(model, providers.PerplexityWebSearchPer1000)), nil
}

// send runs the blocking client call and abandons it when ctx ends first.
// The client's own HTTP timeout bounds the abandoned call.
func (a *Adapter) send(ctx context.Context, completion *perplexity.CompletionRequest) ([]byte, error) {
	type result struct {
		raw []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		res, err := a.client.SendCompletionRequest(completion)
		if err != nil {
			done <- result{err: providers.StatusFromMessage(err)}
			return
		}
		raw, err := json.Marshal(res)
		done <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.raw, r.err
	}
}

type completionPayload struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// TransformResponse normalizes a Perplexity completion. Citation markers in
// the answer are resolved against the citations array sent alongside it.
func (a *Adapter) TransformResponse(raw []byte) (*models.NormalizedData, error) {
	var payload completionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var content string
	if n := len(payload.Choices); n > 0 {
		content = payload.Choices[n-1].Message.Content
	}

	data := &models.NormalizedData{
		Content:   content,
		Citations: a.extractor.Extract(content, raw),
		Model:     payload.Model,
	}
	if payload.Usage != nil {
		data.Usage = &models.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		}
	}
	return data, nil
}

// HealthCheck sends a one word prompt
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	completion := perplexity.NewCompletionRequest(
		perplexity.WithMessages([]perplexity.Message{{Role: "user", Content: "ping"}}),
		perplexity.WithModel(a.model),
	)
	if _, err := a.send(ctx, completion); err != nil {
		a.log.Warning("Health check failed: %v", err)
		return false
	}
	return true
}
