// Package citations turns provider responses into validated citation lists.
//
// Each provider reports its sources differently: free text with numbered
// markers, SERP documents with typed result items, or native annotation
// arrays. Extractors never panic and never return a citation whose URL does
// not parse.
package citations

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/models"
)

// Extractor extracts citations from a response text and the provider's raw payload
type Extractor interface {
	Extract(text string, raw []byte) []models.Citation
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(text string, raw []byte) []models.Citation

// Extract calls f
func (f ExtractorFunc) Extract(text string, raw []byte) []models.Citation {
	return f(text, raw)
}

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"'\x60\]\)]+`)
	markerPattern = regexp.MustCompile(`\[(\d{1,3})\]`)
)

// ValidURL normalizes a candidate URL and reports whether it is usable. A
// usable URL has an http(s) scheme and a host.
func ValidURL(raw string) (string, bool) {
	candidate := strings.TrimSpace(raw)
	candidate = strings.TrimRight(candidate, ".,;:!?*'\"")
	if candidate == "" {
		return "", false
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t\n") {
		return "", false
	}
	return candidate, true
}

// Hostname returns the host of a URL without a leading "www."
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// collector deduplicates citations by exact URL and drops invalid ones
type collector struct {
	seen  map[string]bool
	items []models.Citation
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(rawURL, text, source, chunkID string) {
	u, ok := ValidURL(rawURL)
	if !ok || c.seen[u] {
		return
	}
	c.seen[u] = true

	if text == "" {
		text = u
	}
	if source == "" {
		source = Hostname(u)
	}
	c.items = append(c.items, models.Citation{
		URL:     u,
		Text:    strings.TrimSpace(text),
		Source:  source,
		ChunkID: chunkID,
	})
}

func (c *collector) result() []models.Citation {
	if c.items == nil {
		return []models.Citation{}
	}
	return c.items
}

// guard runs fn and converts a panic into an empty result
func guard(name string, fn func() []models.Citation) (out []models.Citation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warning("Citation extractor %s recovered from panic: %v", name, r)
			out = []models.Citation{}
		}
	}()
	out = fn()
	if out == nil {
		out = []models.Citation{}
	}
	return out
}

// Chain returns the result of the first extractor that yields citations
func Chain(extractors ...Extractor) Extractor {
	return ExtractorFunc(func(text string, raw []byte) []models.Citation {
		for _, e := range extractors {
			if found := e.Extract(text, raw); len(found) > 0 {
				return found
			}
		}
		return []models.Citation{}
	})
}

// ForProvider returns the extractor matching a provider's response format
func ForProvider(provider string) Extractor {
	switch provider {
	case "chatgpt":
		return Chain(NewAnnotationExtractor(), NewTextExtractor())
	case "gemini":
		return Chain(NewAnnotationExtractor(), NewTextExtractor())
	case "google":
		return NewSERPExtractor()
	default:
		return NewTextExtractor()
	}
}
