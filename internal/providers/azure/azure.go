package azure

import (
	"github.com/openai/openai-go/v3"
	oaiazure "github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"github.com/AI2HU/brandlens/internal/citations"
	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/providers"
	"github.com/AI2HU/brandlens/internal/providers/chatgpt"
)

const defaultAPIVersion = "2024-12-01-preview"

// Configured reports whether the endpoint, key and deployment are all set
func Configured(cfg config.ProviderConfig) bool {
	return cfg.Configured() && cfg.BaseURL != "" && cfg.Model != ""
}

// New creates the Azure OpenAI adapter. BaseURL holds the resource endpoint
// and Model the deployment name.
func New(cfg config.ProviderConfig) *chatgpt.Adapter {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	client := openai.NewClient(
		oaiazure.WithEndpoint(cfg.BaseURL, version),
		oaiazure.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)

	return chatgpt.NewAdapter(chatgpt.Options{
		Name:      config.ProviderAzure,
		Client:    client,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Extractor: citations.ForProvider(config.ProviderAzure),
		Runner:    providers.NewRunner(config.ProviderAzure, cfg),
	})
}
