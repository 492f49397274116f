package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/models"
)

// Executor runs a prompt against providers
type Executor interface {
	ExecuteRequest(ctx context.Context, req *models.ProviderRequest) *models.JobResult
}

// QuerySuggestionService asks an answer engine for the questions customers
// would type when looking for a brand's category
type QuerySuggestionService struct {
	executor Executor
	provider string
}

// NewQuerySuggestionService creates a suggestion service. An empty provider
// defaults to chatgpt.
func NewQuerySuggestionService(executor Executor, provider string) *QuerySuggestionService {
	if provider == "" {
		provider = config.ProviderChatGPT
	}
	return &QuerySuggestionService{executor: executor, provider: provider}
}

// SuggestionConfig represents configuration for query generation
type SuggestionConfig struct {
	LanguageCode string `json:"languageCode"`
	Topic        string `json:"topic"`
	Count        int    `json:"count"`
}

// ValidateSuggestionConfig validates generation configuration
func ValidateSuggestionConfig(cfg *SuggestionConfig) error {
	if err := ValidateLanguageCode(cfg.LanguageCode); err != nil {
		return err
	}
	if cfg.Count < 1 {
		return fmt.Errorf("query count must be at least 1")
	}
	if cfg.Count > 50 {
		return fmt.Errorf("query count cannot exceed 50")
	}
	return nil
}

// SuggestQueries generates new tracked queries for a brand. Queries the brand
// already tracks are left out.
func (s *QuerySuggestionService) SuggestQueries(ctx context.Context, brand *models.Brand, cfg *SuggestionConfig) ([]models.BrandQuery, error) {
	if err := ValidateSuggestionConfig(cfg); err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(brand.Queries))
	for _, q := range brand.Queries {
		existing = append(existing, q.Query)
	}

	job := s.executor.ExecuteRequest(ctx, &models.ProviderRequest{
		ID:        uuid.New().String(),
		Prompt:    suggestionPrompt(brand, cfg, existing),
		Providers: []string{s.provider},
		UserID:    brand.UserID,
	})

	resp := job.Response(s.provider)
	if !resp.Succeeded() {
		msg := "no response"
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		return nil, fmt.Errorf("failed to generate queries with %s: %s", s.provider, msg)
	}

	seen := make(map[string]bool, len(existing))
	for _, q := range existing {
		seen[strings.ToLower(q)] = true
	}

	var out []models.BrandQuery
	for _, line := range ParseSuggestions(resp.Data.Content) {
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.BrandQuery{Query: line, Keyword: cfg.Topic, Category: "suggested"})
		if len(out) == cfg.Count {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid queries were generated")
	}
	return out, nil
}

func suggestionPrompt(brand *models.Brand, cfg *SuggestionConfig, existing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List %d questions a potential customer would ask an AI assistant when looking for products or services like those of %s (%s)", cfg.Count, brand.Name, brand.Domain)
	if cfg.Topic != "" {
		fmt.Fprintf(&b, " in the area of %s", cfg.Topic)
	}
	fmt.Fprintf(&b, ". Write them in %s. Do not mention %s in the questions.", GetLanguageName(cfg.LanguageCode), brand.Name)
	if len(existing) > 0 {
		b.WriteString(" Avoid these questions, already tracked:\n")
		for _, q := range existing {
			b.WriteString("- " + q + "\n")
		}
	}
	b.WriteString("\nAnswer with one question per line and nothing else.")
	return b.String()
}

var listMarker = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s*`)

// ParseSuggestions splits an answer into one query per line, dropping list
// markers, quotes and markdown emphasis
func ParseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(line, "\"'*` ")
		if line == "" || len([]rune(line)) > 300 {
			continue
		}
		out = append(out, line)
	}
	return out
}

// GetLanguageName returns the display name for a language code
func GetLanguageName(languageCode string) string {
	languageNames := map[string]string{
		"EN": "English", "FR": "Français", "IT": "Italiano", "ES": "Español", "DE": "Deutsch",
		"PT": "Português", "RU": "Русский", "JA": "日本語", "KO": "한국어", "ZH": "中文",
		"AR": "العربية", "NL": "Nederlands", "SV": "Svenska", "NO": "Norsk", "DA": "Dansk",
		"FI": "Suomi", "PL": "Polski", "CS": "Čeština", "HU": "Magyar", "RO": "Română",
		"TR": "Türkçe", "HE": "עברית", "HI": "हिन्दी", "ID": "Bahasa Indonesia",
	}

	languageName := languageNames[strings.ToUpper(languageCode)]
	if languageName == "" {
		return languageCode
	}
	return languageName
}

// ValidateLanguageCode validates a language code
func ValidateLanguageCode(languageCode string) error {
	languageCode = strings.ToUpper(strings.TrimSpace(languageCode))
	if languageCode == "" {
		return fmt.Errorf("language code is required")
	}
	if len(languageCode) < 2 || len(languageCode) > 3 {
		return fmt.Errorf("language code should be 2-3 characters (e.g., FR, EN, IT)")
	}
	return nil
}
