package citations

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/AI2HU/brandlens/internal/models"
)

// SERPDocument is a parsed search results page. It accepts the BrightData
// parsed-SERP layout (ai_overview, organic) as well as a flat list of typed
// result items, since AI overview payloads are not consistent between
// responses.
type SERPDocument struct {
	AIOverview *AIOverview   `json:"ai_overview,omitempty"`
	Organic    []OrganicItem `json:"organic,omitempty"`
	Items      []SERPItem    `json:"items,omitempty"`
}

// AIOverview is the AI generated block at the top of a results page
type AIOverview struct {
	Texts      []OverviewText      `json:"texts"`
	References []OverviewReference `json:"references"`
}

// OverviewText is a paragraph or list block of an AI overview
type OverviewText struct {
	Type             string         `json:"type"`
	Snippet          string         `json:"snippet"`
	Title            string         `json:"title,omitempty"`
	Link             string         `json:"link,omitempty"`
	List             []OverviewText `json:"list,omitempty"`
	ReferenceIndexes []int          `json:"reference_indexes,omitempty"`
}

// OverviewReference is a source listed by an AI overview
type OverviewReference struct {
	Href   string `json:"href"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Index  int    `json:"index"`
}

// OrganicItem is a classic organic search result
type OrganicItem struct {
	Link        string `json:"link"`
	Source      string `json:"source"`
	DisplayLink string `json:"display_link"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
	GlobalRank  int    `json:"global_rank"`
}

// SERPItem is a typed entry of a flat results list
type SERPItem struct {
	Type            string          `json:"type"`
	Title           string          `json:"title,omitempty"`
	URL             string          `json:"url,omitempty"`
	Domain          string          `json:"domain,omitempty"`
	Description     string          `json:"description,omitempty"`
	Text            string          `json:"text,omitempty"`
	References      []SERPReference `json:"references,omitempty"`
	Items           []SERPItem      `json:"items,omitempty"`
	ExpandedElement []SERPItem      `json:"expanded_element,omitempty"`
	Links           []SERPReference `json:"links,omitempty"`
}

// SERPReference is a source attached to a typed item
type SERPReference struct {
	Source string `json:"source,omitempty"`
	Domain string `json:"domain,omitempty"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Item types that map to citations in the structured-items strategy
var citableItemTypes = map[string]bool{
	"organic":          true,
	"people_also_ask":  true,
	"related_searches": true,
	"video":            true,
	"featured_snippet": true,
	"knowledge_graph":  true,
	"top_stories":      true,
	"perspectives":     true,
}

// ParseSERP decodes a results page. A nil document is returned for payloads
// that are not JSON objects.
func ParseSERP(raw []byte) *SERPDocument {
	if len(raw) == 0 {
		return nil
	}
	var doc SERPDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return &doc
}

// OverviewText flattens the AI overview into plain text: paragraphs as is,
// lists with their title and "- " prefixed items.
func (d *SERPDocument) OverviewText() string {
	if d == nil {
		return ""
	}

	var parts []string
	if d.AIOverview != nil {
		for _, t := range d.AIOverview.Texts {
			if block := textBlock(t); block != "" {
				parts = append(parts, block)
			}
		}
	}
	for _, item := range d.Items {
		if item.Type != "ai_overview" {
			continue
		}
		for _, sub := range item.Items {
			if sub.Text != "" {
				parts = append(parts, sub.Text)
			}
		}
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HasOverview reports whether the page carried an AI overview
func (d *SERPDocument) HasOverview() bool {
	if d == nil {
		return false
	}
	if d.AIOverview != nil && len(d.AIOverview.Texts) > 0 {
		return true
	}
	for _, item := range d.Items {
		if item.Type == "ai_overview" {
			return true
		}
	}
	return false
}

func textBlock(t OverviewText) string {
	switch t.Type {
	case "paragraph":
		return t.Snippet
	case "list":
		var lines []string
		if t.Title != "" {
			lines = append(lines, t.Title)
		}
		for _, item := range t.List {
			if item.Snippet != "" {
				lines = append(lines, "- "+item.Snippet)
			}
		}
		return strings.Join(lines, "\n")
	default:
		return t.Snippet
	}
}

// Strategy is one way of finding citations in a results page. It returns nil
// when it finds nothing.
type Strategy struct {
	Name string
	Find func(doc *SERPDocument, text string) []models.Citation
}

// SERPExtractor tries its strategies in order; the first non-empty result wins
type SERPExtractor struct {
	Strategies []Strategy
}

// NewSERPExtractor creates an extractor with the default strategy order:
// direct references, structured items, expanded sub-elements, text heuristic.
func NewSERPExtractor() *SERPExtractor {
	return &SERPExtractor{
		Strategies: []Strategy{
			{Name: "direct", Find: directReferences},
			{Name: "structured", Find: structuredItems},
			{Name: "expanded", Find: expandedElements},
			{Name: "heuristic", Find: textHeuristic},
		},
	}
}

// Extract implements Extractor
func (e *SERPExtractor) Extract(text string, raw []byte) []models.Citation {
	return guard("serp", func() []models.Citation {
		doc := ParseSERP(raw)
		if doc == nil {
			doc = &SERPDocument{}
		}
		for _, s := range e.Strategies {
			if found := s.Find(doc, text); len(found) > 0 {
				return found
			}
		}
		return nil
	})
}

func directReferences(doc *SERPDocument, _ string) []models.Citation {
	c := newCollector()
	if doc.AIOverview != nil {
		for _, ref := range doc.AIOverview.References {
			c.add(ref.Href, ref.Title, ref.Source, strconv.Itoa(ref.Index))
		}
	}
	for _, item := range doc.Items {
		if item.Type != "ai_overview" {
			continue
		}
		for i, ref := range item.References {
			c.add(ref.URL, firstNonEmpty(ref.Title, ref.Text), firstNonEmpty(ref.Source, ref.Domain), strconv.Itoa(i))
		}
	}
	return c.items
}

func structuredItems(doc *SERPDocument, _ string) []models.Citation {
	c := newCollector()
	for _, item := range doc.Items {
		if !citableItemTypes[item.Type] {
			continue
		}
		c.add(item.URL, firstNonEmpty(item.Title, item.Description), item.Domain, "")
	}
	for _, o := range doc.Organic {
		c.add(o.Link, firstNonEmpty(o.Title, o.Description), o.Source, "")
	}
	return c.items
}

func expandedElements(doc *SERPDocument, _ string) []models.Citation {
	c := newCollector()
	for _, item := range doc.Items {
		for _, sub := range item.Items {
			c.add(sub.URL, firstNonEmpty(sub.Title, sub.Text), sub.Domain, "")
			for _, ref := range sub.References {
				c.add(ref.URL, firstNonEmpty(ref.Title, ref.Text), firstNonEmpty(ref.Source, ref.Domain), "")
			}
		}
		for _, exp := range item.ExpandedElement {
			c.add(exp.URL, firstNonEmpty(exp.Title, exp.Description), exp.Domain, "")
		}
		for _, link := range item.Links {
			c.add(link.URL, link.Title, link.Domain, "")
		}
	}
	if doc.AIOverview != nil {
		for _, t := range doc.AIOverview.Texts {
			c.add(t.Link, t.Title, "", "")
			for _, sub := range t.List {
				c.add(sub.Link, firstNonEmpty(sub.Title, sub.Snippet), "", "")
			}
		}
	}
	return c.items
}

func textHeuristic(doc *SERPDocument, text string) []models.Citation {
	c := newCollector()
	for _, u := range urlPattern.FindAllString(doc.OverviewText(), -1) {
		c.add(u, "", "", "")
	}
	for _, u := range urlPattern.FindAllString(text, -1) {
		c.add(u, "", "", "")
	}
	return c.items
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
