package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

const defaultModel = "gemini-2.0-flash"

// Adapter implements providers.Adapter for Gemini with Google Search grounding
type Adapter struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int

	mu     sync.Mutex
	client *genai.Client

	runner    *providers.Runner
	extractor citations.Extractor
	log       *logger.Logger
}

// New creates a new Gemini adapter. The SDK client is created lazily on the
// first call.
func New(cfg config.ProviderConfig) *Adapter {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Adapter{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     model,
		maxTokens: cfg.MaxTokens,
		runner:    providers.NewRunner(config.ProviderGemini, cfg),
		extractor: citations.ForProvider(config.ProviderGemini),
		log:       logger.Named(config.ProviderGemini),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return config.ProviderGemini
}

// ValidateRequest validates the request
func (a *Adapter) ValidateRequest(req *models.ProviderRequest) bool {
	return req != nil && strings.TrimSpace(req.Prompt) != ""
}

func (a *Adapter) getClient(ctx context.Context) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if a.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: a.baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v: %w", err, providers.ErrPermanent)
	}
	a.client = client
	return client, nil
}

// Execute generates a grounded answer for the prompt
func (a *Adapter) Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	model := req.Meta(models.MetaModel, a.model)

	generationConfig := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}
	maxTokens := a.maxTokens
	if v, err := strconv.Atoi(req.Meta(models.MetaMaxTokens, "")); err == nil && v > 0 {
		maxTokens = v
	}
	if maxTokens > 0 {
		generationConfig.MaxOutputTokens = int32(maxTokens)
	}

	call := func(ctx context.Context) ([]byte, error) {
		client, err := a.getClient(ctx)
		if err != nil {
			return nil, err
		}
		result, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), generationConfig)
		if err != nil {
			return nil, classify(err)
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %v: %w", err, providers.ErrPermanent)
		}
		return raw, nil
	}

	a.log.Debug("Sending request %s to %s", req.ID, model)
	cost := func(data *models.NormalizedData) float64 {
		if data == nil {
			return 0
		}
		return providers.TokenCost(model, data.Usage)
	}
	return a.runner.Run(ctx, req, call, a.TransformResponse, cost), nil
}

// classify turns a Gemini API error into a StatusError so that client
// errors are not retried
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &providers.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Code != 0 {
		return &providers.StatusError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return fmt.Errorf("Gemini API error: %w", err)
}

type generateResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content *struct {
			Parts []struct {
				Text    string `json:"text"`
				Thought bool   `json:"thought"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// TransformResponse normalizes a GenerateContent response. Text parts of the
// first candidate are concatenated; grounding chunks become citations.
func (a *Adapter) TransformResponse(raw []byte) (*models.NormalizedData, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if !part.Thought {
				b.WriteString(part.Text)
			}
		}
	}
	content := b.String()

	data := &models.NormalizedData{
		Content:   content,
		Citations: a.extractor.Extract(content, raw),
		Model:     resp.ModelVersion,
	}
	if u := resp.UsageMetadata; u != nil {
		data.Usage = &models.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return data, nil
}

// HealthCheck lists models with the configured key
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	client, err := a.getClient(ctx)
	if err != nil {
		a.log.Warning("Health check failed: %v", err)
		return false
	}
	if _, err := client.Models.List(ctx, &genai.ListModelsConfig{}); err != nil {
		a.log.Warning("Health check failed: %v", err)
		return false
	}
	return true
}
