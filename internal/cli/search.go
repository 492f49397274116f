package cli

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/models"
)

var (
	searchLimit         int
	searchCaseSensitive bool
)

var searchCmd = &cobra.Command{
	Use:   "search [brand-id] [keyword]",
	Short: "Search a keyword in the stored answers of a brand",
	Long:  `Search the provider answers kept in a brand's history and display the context around each match.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 50, "Maximum number of results to display")
	searchCmd.Flags().BoolVarP(&searchCaseSensitive, "case-sensitive", "c", false, "Make search case-sensitive")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	brandID, keyword := args[0], args[1]

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	brand, err := a.brands.GetBrand(ctx, brandID)
	if err != nil {
		return fmt.Errorf("failed to get brand: %w", err)
	}

	fmt.Printf("%s🔍 Searching for keyword: \"%s\"%s\n", HeaderStyle, CountStyle+keyword+Reset, Reset)
	fmt.Println()

	matches := findMatches(brand.History, keywordPattern(keyword, searchCaseSensitive))
	if len(matches) == 0 {
		fmt.Printf("%s❌ No matches found for keyword \"%s\"%s\n", ErrorStyle, CountStyle+keyword+Reset, Reset)
		return nil
	}

	fmt.Printf("%s✅ Found %s matches for keyword \"%s\"%s\n", SuccessStyle, CountStyle+fmt.Sprintf("%d", len(matches))+Reset, CountStyle+keyword+Reset, Reset)
	fmt.Println()

	for i, match := range matches {
		if i >= searchLimit {
			fmt.Printf("\n%s... and %s more matches (use --limit to see more)%s\n", DimStyle, CountStyle+fmt.Sprintf("%d", len(matches)-i)+Reset, Reset)
			break
		}

		fmt.Printf("%s📄 Match %s:%s\n", TitleStyle, CountStyle+fmt.Sprintf("%d", i+1)+Reset, Reset)
		fmt.Printf("   %s🏷️  Query:%s %s\n", LabelStyle, Reset, FormatValue(match.Query))
		fmt.Printf("   %s🤖 Provider:%s %s\n", LabelStyle, Reset, FormatValue(match.Provider))
		fmt.Printf("   %s📅 Date:%s %s\n", LabelStyle, Reset, FormatMeta(match.Date.Format("2006-01-02 15:04:05")))
		fmt.Println()
		fmt.Printf("   %s📝 Context:%s\n", SuccessStyle, Reset)
		fmt.Printf("   %s\n", match.Context)
		fmt.Println()
		fmt.Printf("   %s%s%s\n", DimStyle, strings.Repeat("─", 80), Reset)
		fmt.Println()
	}

	return nil
}

// SearchMatch is one keyword occurrence in a stored answer
type SearchMatch struct {
	Query    string
	Provider string
	Session  string
	Context  string
	Date     time.Time
}

func keywordPattern(keyword string, caseSensitive bool) *regexp.Regexp {
	if caseSensitive {
		return regexp.MustCompile(regexp.QuoteMeta(keyword))
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(keyword))
}

// findMatches returns every occurrence with 100 bytes of context on each side
func findMatches(history []models.QueryProcessingResult, regex *regexp.Regexp) []SearchMatch {
	var matches []SearchMatch

	for _, entry := range history {
		providers := make([]string, 0, len(entry.Results))
		for name := range entry.Results {
			providers = append(providers, name)
		}
		sort.Strings(providers)

		for _, name := range providers {
			r := entry.Results[name]
			if r == nil || r.Response == "" {
				continue
			}
			text := r.Response
			for _, index := range regex.FindAllStringIndex(text, -1) {
				start := max(index[0]-100, 0)
				end := min(index[1]+100, len(text))
				snippet := strings.ToValidUTF8(text[start:index[0]], "") +
					FormatHighlight(text[index[0]:index[1]]) +
					strings.ToValidUTF8(text[index[1]:end], "")

				matches = append(matches, SearchMatch{
					Query:    entry.Query,
					Provider: name,
					Session:  entry.ProcessingSessionID,
					Context:  snippet,
					Date:     entry.Date,
				})
			}
		}
	}

	return matches
}
