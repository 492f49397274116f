package citations

import (
	"encoding/json"
	"strconv"

	"github.com/AI2HU/brandlens/internal/models"
)

// AnnotationExtractor maps native citation arrays: OpenAI url_citation
// annotations (chat completions and responses API) and Gemini grounding chunks.
type AnnotationExtractor struct{}

// NewAnnotationExtractor creates an annotation extractor
func NewAnnotationExtractor() *AnnotationExtractor {
	return &AnnotationExtractor{}
}

type urlAnnotation struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
	URLCitation *struct {
		URL        string `json:"url"`
		Title      string `json:"title"`
		StartIndex int    `json:"start_index"`
		EndIndex   int    `json:"end_index"`
	} `json:"url_citation"`
}

type annotationPayload struct {
	Choices []struct {
		Message struct {
			Annotations []urlAnnotation `json:"annotations"`
		} `json:"message"`
	} `json:"choices"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type        string          `json:"type"`
			Annotations []urlAnnotation `json:"annotations"`
		} `json:"content"`
	} `json:"output"`
	Candidates []struct {
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI    string `json:"uri"`
					Title  string `json:"title"`
					Domain string `json:"domain"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// Extract implements Extractor
func (e *AnnotationExtractor) Extract(text string, raw []byte) []models.Citation {
	return guard("annotation", func() []models.Citation {
		if len(raw) == 0 {
			return nil
		}

		var payload annotationPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil
		}

		c := newCollector()
		addAnnotation := func(a urlAnnotation) {
			u, title, start, end := a.URL, a.Title, a.StartIndex, a.EndIndex
			if a.URLCitation != nil {
				u, title, start, end = a.URLCitation.URL, a.URLCitation.Title, a.URLCitation.StartIndex, a.URLCitation.EndIndex
			}
			if title == "" {
				title = span(text, start, end)
			}
			c.add(u, title, "", "")
		}

		for _, choice := range payload.Choices {
			for _, a := range choice.Message.Annotations {
				addAnnotation(a)
			}
		}
		for _, out := range payload.Output {
			for _, content := range out.Content {
				for _, a := range content.Annotations {
					addAnnotation(a)
				}
			}
		}
		for _, cand := range payload.Candidates {
			if cand.GroundingMetadata == nil {
				continue
			}
			for i, chunk := range cand.GroundingMetadata.GroundingChunks {
				if chunk.Web == nil {
					continue
				}
				c.add(chunk.Web.URI, chunk.Web.Title, firstNonEmpty(chunk.Web.Domain, chunk.Web.Title), strconv.Itoa(i))
			}
		}

		return c.items
	})
}

// span returns text[start:end] when the indexes are a valid byte range
func span(text string, start, end int) string {
	if start < 0 || end <= start || end > len(text) {
		return ""
	}
	return text[start:end]
}
