package analysis

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/AI2HU/brandlens/internal/models"
)

// CanonicalOrder is the display order of known providers. Providers outside
// this list sort after it, alphabetically.
var CanonicalOrder = []string{"chatgpt", "google", "perplexity", "gemini", "azure-openai"}

// ProviderInput is one provider's answer to a query
type ProviderInput struct {
	Text      string
	Citations []models.Citation
}

// SortProviders orders provider names canonically
func SortProviders(names []string) []string {
	pos := make(map[string]int, len(CanonicalOrder))
	for i, name := range CanonicalOrder {
		pos[name] = i
	}

	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iKnown := pos[out[i]]
		pj, jKnown := pos[out[j]]
		switch {
		case iKnown && jKnown:
			return pi < pj
		case iKnown != jKnown:
			return iKnown
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// CountMentions counts non-overlapping case-insensitive occurrences of the brand name
func CountMentions(text, brandName string) int {
	brandName = strings.TrimSpace(brandName)
	if text == "" || brandName == "" {
		return 0
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(brandName))
	return len(re.FindAllStringIndex(text, -1))
}

// NormalizeDomain reduces a configured brand domain to a bare lower-case host
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// CountDomainCitations counts citations whose URL contains the brand domain
func CountDomainCitations(citations []models.Citation, brandDomain string) int {
	domain := NormalizeDomain(brandDomain)
	if domain == "" {
		return 0
	}
	count := 0
	for _, c := range citations {
		if strings.Contains(strings.ToLower(c.URL), domain) {
			count++
		}
	}
	return count
}

// Round2 rounds to two decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// VisibilityScore is the share of providers mentioning the brand, in percent,
// clamped to [0,100] and rounded to two decimals.
func VisibilityScore(providersWithMention, totalProviders int) float64 {
	if totalProviders <= 0 || providersWithMention <= 0 {
		return 0
	}
	score := float64(providersWithMention) / float64(totalProviders) * 100
	return Round2(math.Max(0, math.Min(100, score)))
}

// Analyze computes brand mentions and domain citations for one query across
// the providers that answered it.
func Analyze(brandName, brandDomain string, inputs map[string]ProviderInput) *models.BrandMentionAnalysis {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	names = SortProviders(names)

	result := &models.BrandMentionAnalysis{
		BrandName:      brandName,
		BrandDomain:    brandDomain,
		Providers:      make([]models.ProviderMention, 0, len(names)),
		TotalProviders: len(names),
	}

	lowerBrand := strings.ToLower(strings.TrimSpace(brandName))
	entries := make([]RankInput, 0, len(names))

	for _, name := range names {
		in := inputs[name]
		mentions := CountMentions(in.Text, brandName)
		domainCitations := CountDomainCitations(in.Citations, brandDomain)

		m := models.ProviderMention{
			Provider:            name,
			BrandMentioned:      lowerBrand != "" && strings.Contains(strings.ToLower(in.Text), lowerBrand),
			BrandMentionCount:   mentions,
			DomainCited:         domainCitations > 0,
			DomainCitationCount: domainCitations,
			CitationCount:       len(in.Citations),
		}
		result.Providers = append(result.Providers, m)

		result.TotalBrandMentions += m.BrandMentionCount
		result.TotalDomainCitations += m.DomainCitationCount
		result.TotalCitations += m.CitationCount
		if m.BrandMentioned {
			result.ProvidersWithBrandMention++
		}
		if m.DomainCited {
			result.ProvidersWithDomainCitation++
		}

		entries = append(entries, RankInput{
			Provider:         name,
			QueriesProcessed: 1,
			BrandMentions:    m.BrandMentionCount,
			DomainCitations:  m.DomainCitationCount,
			TotalCitations:   m.CitationCount,
		})
	}

	result.BrandVisibilityScore = VisibilityScore(result.ProvidersWithBrandMention, result.TotalProviders)

	ranking := Rank(entries)
	result.TopPerformingProvider = ranking.TopPerformingProvider
	result.TopProviders = ranking.TopProviders
	result.ProviderRanking = ranking.Details
	return result
}
