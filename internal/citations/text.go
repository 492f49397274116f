package citations

import (
	"encoding/json"
	"strconv"

	"github.com/AI2HU/brandlens/internal/models"
)

// TextExtractor handles free-text answers. Numbered markers like [1] only
// become citations when the payload carries a parallel citation array;
// bare URLs in the text are always picked up.
type TextExtractor struct{}

// NewTextExtractor creates a free-text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

type parallelSource struct {
	URL   string
	Title string
}

// parallelCitations reads the citation arrays a provider may return next to
// its text: "citations" (plain URLs) and "search_results" (titled entries).
func parallelCitations(raw []byte) []parallelSource {
	if len(raw) == 0 {
		return nil
	}

	var payload struct {
		Citations     []string `json:"citations"`
		SearchResults []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"search_results"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	titles := make(map[string]string, len(payload.SearchResults))
	for _, r := range payload.SearchResults {
		titles[r.URL] = r.Title
	}

	if len(payload.Citations) > 0 {
		out := make([]parallelSource, 0, len(payload.Citations))
		for _, u := range payload.Citations {
			out = append(out, parallelSource{URL: u, Title: titles[u]})
		}
		return out
	}

	out := make([]parallelSource, 0, len(payload.SearchResults))
	for _, r := range payload.SearchResults {
		out = append(out, parallelSource{URL: r.URL, Title: r.Title})
	}
	return out
}

// Extract implements Extractor
func (e *TextExtractor) Extract(text string, raw []byte) []models.Citation {
	return guard("text", func() []models.Citation {
		c := newCollector()
		sources := parallelCitations(raw)

		for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > len(sources) {
				continue
			}
			src := sources[n-1]
			c.add(src.URL, src.Title, "", m[1])
		}

		for _, u := range urlPattern.FindAllString(text, -1) {
			c.add(u, "", "", "")
		}

		for i, src := range sources {
			c.add(src.URL, src.Title, "", strconv.Itoa(i+1))
		}

		return c.result()
	})
}
