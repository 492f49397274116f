package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/AI2HU/brandlens/internal/models"
)

// RatioEpsilon is the resolution at which domain-citation ratios are compared
const RatioEpsilon = 0.001

// RankInput is one provider's figures to rank
type RankInput struct {
	Provider         string
	QueriesProcessed int
	BrandMentions    int
	DomainCitations  int
	TotalCitations   int
}

// DomainCitationRatio is domain citations over all citations, 0 without citations
func (r RankInput) DomainCitationRatio() float64 {
	if r.TotalCitations <= 0 {
		return 0
	}
	return float64(r.DomainCitations) / float64(r.TotalCitations)
}

// ratioKey buckets the ratio to RatioEpsilon so that ordering and tie
// detection use the same total order
func (r RankInput) ratioKey() int64 {
	return int64(math.Round(r.DomainCitationRatio() / RatioEpsilon))
}

func (r RankInput) performs() bool {
	return r.BrandMentions > 0 || r.DomainCitations > 0
}

// Ranking is the outcome of Rank
type Ranking struct {
	TopPerformingProvider string
	TopProviders          []string
	Details               []models.RankingDetail
}

func noneRanking(details []models.RankingDetail) Ranking {
	if details == nil {
		details = []models.RankingDetail{}
	}
	return Ranking{
		TopPerformingProvider: models.TopPerformerNone,
		TopProviders:          []string{},
		Details:               details,
	}
}

// Rank orders providers by brand mentions, then domain-citation ratio, then
// total citations, and names the top performer. Providers that processed no
// query are not ranked. Providers tied with the top entry on mentions and
// ratio (to RatioEpsilon) are all reported and joined with " & ".
func Rank(entries []RankInput) Ranking {
	totalMentions, totalDomain := 0, 0
	for _, e := range entries {
		totalMentions += e.BrandMentions
		totalDomain += e.DomainCitations
	}
	if totalMentions == 0 && totalDomain == 0 {
		return noneRanking(nil)
	}

	byName := make(map[string]RankInput, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.QueriesProcessed < 1 {
			continue
		}
		if _, dup := byName[e.Provider]; !dup {
			names = append(names, e.Provider)
		}
		byName[e.Provider] = e
	}
	if len(names) == 0 {
		return noneRanking(nil)
	}

	ranked := make([]RankInput, 0, len(names))
	for _, name := range SortProviders(names) {
		ranked = append(ranked, byName[name])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.BrandMentions != b.BrandMentions {
			return a.BrandMentions > b.BrandMentions
		}
		if ka, kb := a.ratioKey(), b.ratioKey(); ka != kb {
			return ka > kb
		}
		return a.TotalCitations > b.TotalCitations
	})

	details := make([]models.RankingDetail, 0, len(ranked))
	for i, r := range ranked {
		details = append(details, models.RankingDetail{
			Rank:                 i + 1,
			Provider:             r.Provider,
			BrandMentions:        r.BrandMentions,
			DomainCitations:      r.DomainCitations,
			DomainCitationsRatio: Round2(r.DomainCitationRatio() * 100),
			TotalCitations:       r.TotalCitations,
		})
	}

	top := ranked[0]
	if !top.performs() {
		return noneRanking(details)
	}

	var tied []string
	for _, r := range ranked {
		if r.BrandMentions == top.BrandMentions &&
			r.ratioKey() == top.ratioKey() &&
			r.performs() {
			tied = append(tied, r.Provider)
		}
	}

	return Ranking{
		TopPerformingProvider: strings.Join(tied, " & "),
		TopProviders:          tied,
		Details:               details,
	}
}
