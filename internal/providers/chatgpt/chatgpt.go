package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

const defaultModel = "gpt-4o-search-preview"

// Options describe an adapter speaking the OpenAI chat completions protocol
type Options struct {
	Name      string
	Client    openai.Client
	Model     string
	MaxTokens int
	WebSearch bool
	Extractor citations.Extractor
	Cost      func(model string) providers.CostFunc
	Runner    *providers.Runner
}

// Adapter calls an OpenAI compatible chat completions endpoint
type Adapter struct {
	name      string
	client    openai.Client
	model     string
	maxTokens int
	webSearch bool
	extractor citations.Extractor
	cost      func(model string) providers.CostFunc
	runner    *providers.Runner
	log       *logger.Logger
}

// New creates the ChatGPT search adapter
func New(cfg config.ProviderConfig) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return NewAdapter(Options{
		Name:      config.ProviderChatGPT,
		Client:    openai.NewClient(opts...),
		Model:     model,
		MaxTokens: cfg.MaxTokens,
		WebSearch: true,
		Extractor: citations.ForProvider(config.ProviderChatGPT),
		Cost: func(model string) providers.CostFunc {
			return providers.TokenCostWithSearch(model, providers.OpenAIWebSearchPer1000)
		},
		Runner: providers.NewRunner(config.ProviderChatGPT, cfg),
	})
}

// NewAdapter creates an adapter from explicit options
func NewAdapter(o Options) *Adapter {
	if o.Extractor == nil {
		o.Extractor = citations.NewTextExtractor()
	}
	if o.Cost == nil {
		o.Cost = func(model string) providers.CostFunc {
			return func(data *models.NormalizedData) float64 {
				if data == nil {
					return 0
				}
				return providers.TokenCost(model, data.Usage)
			}
		}
	}
	if o.Runner == nil {
		o.Runner = providers.NewRunner(o.Name, config.ProviderConfig{})
	}

	return &Adapter{
		name:      o.Name,
		client:    o.Client,
		model:     o.Model,
		maxTokens: o.MaxTokens,
		webSearch: o.WebSearch,
		extractor: o.Extractor,
		cost:      o.Cost,
		runner:    o.Runner,
		log:       logger.Named(o.Name),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return a.name
}

// ValidateRequest validates the request
func (a *Adapter) ValidateRequest(req *models.ProviderRequest) bool {
	return req != nil && strings.TrimSpace(req.Prompt) != ""
}

// Execute sends the prompt as a single user message
func (a *Adapter) Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	model := req.Meta(models.MetaModel, a.model)
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Model: openai.ChatModel(model),
	}

	maxTokens := a.maxTokens
	if v, err := strconv.Atoi(req.Meta(models.MetaMaxTokens, "")); err == nil && v > 0 {
		maxTokens = v
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	if a.webSearch {
		params.WebSearchOptions = openai.ChatCompletionNewParamsWebSearchOptions{
			UserLocation: openai.ChatCompletionNewParamsWebSearchOptionsUserLocation{
				Approximate: openai.ChatCompletionNewParamsWebSearchOptionsUserLocationApproximate{
					Country: openai.String(providers.CountryCode(req.Meta(models.MetaLocation, ""))),
				},
			},
		}
	}

	call := func(ctx context.Context) ([]byte, error) {
		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classify(err)
		}
		return []byte(completion.RawJSON()), nil
	}

	a.log.Debug("Sending request %s to %s", req.ID, model)
	return a.runner.Run(ctx, req, call, a.TransformResponse, a.cost(model)), nil
}

// TransformResponse normalizes a chat completion payload
func (a *Adapter) TransformResponse(raw []byte) (*models.NormalizedData, error) {
	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var content string
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}

	data := &models.NormalizedData{
		Content:   content,
		Citations: a.extractor.Extract(content, raw),
		Model:     completion.Model,
		Metadata:  map[string]interface{}{"id": completion.ID},
	}
	if completion.Usage.TotalTokens > 0 || completion.Usage.PromptTokens > 0 {
		data.Usage = &models.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		}
	}
	return data, nil
}

// HealthCheck looks up the configured model
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if _, err := a.client.Models.Get(ctx, a.model); err != nil {
		a.log.Warning("Health check failed: %v", err)
		return false
	}
	return true
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &providers.StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return err
}
