package providers

import (
	"strings"

	"github.com/AI2HU/brandlens/internal/models"
)

// ModelPricing is the price per 1M tokens
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var modelPricing = map[string]ModelPricing{
	"gpt-4o-search-preview":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini-search-preview": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o":                     {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":                {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":                    {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini":               {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"sonar":                      {InputPerMillion: 1.00, OutputPerMillion: 1.00},
	"sonar-pro":                  {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"sonar-reasoning":            {InputPerMillion: 1.00, OutputPerMillion: 5.00},
	"gemini-2.0-flash":           {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash":           {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-pro":             {InputPerMillion: 1.25, OutputPerMillion: 10.00},
}

var defaultPricing = ModelPricing{InputPerMillion: 2.50, OutputPerMillion: 10.00}

// Web search fees per 1000 calls
const (
	OpenAIWebSearchPer1000     = 35.0
	PerplexityWebSearchPer1000 = 8.0
	SERPFlatCost               = 0.0015
)

// PricingFor returns the pricing of a model. Dated variants such as
// "gpt-4.1-2025-04-14" resolve to their base model.
func PricingFor(model string) ModelPricing {
	m := strings.ToLower(strings.TrimSpace(model))
	if p, ok := modelPricing[m]; ok {
		return p
	}

	best := ""
	for name := range modelPricing {
		if strings.HasPrefix(m, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return modelPricing[best]
	}
	return defaultPricing
}

// TokenCost prices token usage linearly
func TokenCost(model string, usage *models.Usage) float64 {
	if usage == nil {
		return 0
	}
	p := PricingFor(model)
	in := float64(max(usage.PromptTokens, 0))
	out := float64(max(usage.CompletionTokens, 0))
	return in/1_000_000*p.InputPerMillion + out/1_000_000*p.OutputPerMillion
}

// TokenCostWithSearch adds a per-call search fee to the token cost
func TokenCostWithSearch(model string, perThousand float64) CostFunc {
	return func(data *models.NormalizedData) float64 {
		if data == nil {
			return 0
		}
		return TokenCost(firstNonEmpty(data.Model, model), data.Usage) + perThousand/1000
	}
}

// FlatCost prices every successful call the same
func FlatCost(amount float64) CostFunc {
	return func(*models.NormalizedData) float64 {
		return amount
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
