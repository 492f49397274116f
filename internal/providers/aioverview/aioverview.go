package aioverview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/providers"
)

const (
	defaultEndpoint = "https://api.brightdata.com/request"
	defaultZone     = "serp_api1"

	// NoOverviewMessage is the content reported when Google returned no AI Overview
	NoOverviewMessage = "No AI Overview was generated for this query."
)

// Adapter fetches Google AI Overviews through the BrightData SERP API
type Adapter struct {
	apiKey     string
	zone       string
	endpoint   string
	httpClient *http.Client
	runner     *providers.Runner
	extractor  citations.Extractor
	log        *logger.Logger
}

type serpRequest struct {
	Zone   string `json:"zone"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// New creates a new AI Overview adapter
func New(cfg config.ProviderConfig) *Adapter {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	zone := cfg.Zone
	if zone == "" {
		zone = defaultZone
	}

	return &Adapter{
		apiKey:     cfg.APIKey,
		zone:       zone,
		endpoint:   endpoint,
		httpClient: &http.Client{},
		runner:     providers.NewRunner(config.ProviderGoogle, cfg),
		extractor:  citations.ForProvider(config.ProviderGoogle),
		log:        logger.Named(config.ProviderGoogle),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return config.ProviderGoogle
}

// ValidateRequest validates the request
func (a *Adapter) ValidateRequest(req *models.ProviderRequest) bool {
	return req != nil && strings.TrimSpace(req.Prompt) != ""
}

// SearchURL builds the Google search URL asking for parsed JSON and an AI Overview
func SearchURL(query, location string) string {
	return fmt.Sprintf(
		"https://www.google.com/search?q=%s&gl=%s&brd_json=1&brd_ai_overview=2",
		url.QueryEscape(query),
		providers.CountryCode(location),
	)
}

// Execute runs the search for the prompt
func (a *Adapter) Execute(ctx context.Context, req *models.ProviderRequest) (*models.ProviderResponse, error) {
	searchURL := SearchURL(req.Prompt, req.Meta(models.MetaLocation, ""))
	a.log.Debug("Search URL for request %s: %s", req.ID, searchURL)

	call := func(ctx context.Context) ([]byte, error) {
		return a.fetch(ctx, searchURL)
	}
	return a.runner.Run(ctx, req, call, a.TransformResponse, providers.FlatCost(providers.SERPFlatCost)), nil
}

func (a *Adapter) fetch(ctx context.Context, searchURL string) ([]byte, error) {
	jsonBody, err := json.Marshal(serpRequest{Zone: a.zone, URL: searchURL, Format: "raw"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// TransformResponse normalizes a SERP payload. The content is the AI
// Overview text, or the organic snippets when Google produced no overview.
func (a *Adapter) TransformResponse(raw []byte) (*models.NormalizedData, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("failed to unmarshal response: invalid JSON")
	}

	doc := citations.ParseSERP(raw)
	hasOverview := doc != nil && doc.HasOverview()

	var content string
	switch {
	case hasOverview:
		content = doc.OverviewText()
	case doc != nil && len(doc.Organic) > 0:
		var b strings.Builder
		b.WriteString(NoOverviewMessage)
		for _, o := range doc.Organic {
			if o.Title == "" && o.Description == "" {
				continue
			}
			b.WriteString("\n\n")
			b.WriteString(strings.TrimSpace(o.Title + "\n" + o.Description))
		}
		content = b.String()
	default:
		content = NoOverviewMessage
	}

	return &models.NormalizedData{
		Content:   content,
		Citations: a.extractor.Extract(content, raw),
		Metadata:  map[string]interface{}{"aiOverview": hasOverview},
	}, nil
}

// HealthCheck runs a one word search
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if _, err := a.fetch(ctx, SearchURL("ping", "")); err != nil {
		a.log.Warning("Health check failed: %v", err)
		return false
	}
	return true
}
