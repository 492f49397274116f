package history

import (
	"github.com/AI2HU/brandlens/internal/models"
)

// Limits bound a brand's stored history
type Limits struct {
	MaxEntries       int // 0 keeps everything
	MaxResponseChars int // 0 disables truncation
}

// Merge returns the history after storing a session's results. Entries already
// stored for sessionID are replaced, the incoming entries go first, response
// texts are truncated and the result is capped to MaxEntries.
func Merge(existing, incoming []models.QueryProcessingResult, sessionID string, limits Limits) []models.QueryProcessingResult {
	merged := make([]models.QueryProcessingResult, 0, len(existing)+len(incoming))
	for _, entry := range incoming {
		merged = append(merged, truncateEntry(entry, limits.MaxResponseChars))
	}
	for _, entry := range existing {
		if sessionID != "" && entry.ProcessingSessionID == sessionID {
			continue
		}
		merged = append(merged, entry)
	}

	if limits.MaxEntries > 0 && len(merged) > limits.MaxEntries {
		merged = merged[:limits.MaxEntries]
	}
	return merged
}

func truncateEntry(entry models.QueryProcessingResult, maxChars int) models.QueryProcessingResult {
	if maxChars <= 0 || len(entry.Results) == 0 {
		return entry
	}

	results := make(map[string]*models.ProviderQueryResult, len(entry.Results))
	for name, r := range entry.Results {
		if r == nil {
			continue
		}
		copied := *r
		copied.Response = Truncate(copied.Response, maxChars)
		results[name] = &copied
	}
	entry.Results = results
	return entry
}

// Truncate cuts s to at most maxChars runes
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count == maxChars {
			return s[:i]
		}
		count++
	}
	return s
}

// Sessions returns the distinct session ids in history order
func Sessions(entries []models.QueryProcessingResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.ProcessingSessionID == "" || seen[e.ProcessingSessionID] {
			continue
		}
		seen[e.ProcessingSessionID] = true
		out = append(out, e.ProcessingSessionID)
	}
	return out
}
