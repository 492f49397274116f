package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/analytics"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/models"
)

var (
	analyticsLifetime bool
	analyticsRefresh  bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics [brand-id]",
	Short: "View brand visibility analytics",
	Long: `Show the analytics of the latest processing session of a brand, or with
--lifetime the fold over its entire history.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalytics,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [brand-id]",
	Short: "Summarize the processing sessions of a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessions,
}

func init() {
	analyticsCmd.AddCommand(sessionsCmd)
	analyticsCmd.Flags().BoolVar(&analyticsLifetime, "lifetime", false, "Show lifetime analytics")
	analyticsCmd.Flags().BoolVar(&analyticsRefresh, "refresh", false, "Recompute lifetime analytics before showing them")
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	brandID := args[0]
	if !analyticsLifetime {
		data, err := a.brands.LatestAnalytics(ctx, brandID)
		if errors.Is(err, db.ErrNotFound) {
			fmt.Printf("%sNo analytics available yet. Run 'brandlens process %s' first!%s\n", WarningStyle, brandID, Reset)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get analytics: %w", err)
		}
		printAnalytics(data)
		return nil
	}

	lifetime, err := a.brands.GetLifetimeAnalytics(ctx, brandID)
	if analyticsRefresh || errors.Is(err, db.ErrNotFound) {
		brand, berr := a.brands.GetBrand(ctx, brandID)
		if berr != nil {
			return fmt.Errorf("failed to get brand: %w", berr)
		}
		agg := analytics.NewAggregator(analytics.BrandHistory{}, analytics.LegacyResults{Store: a.brands})
		lifetime = agg.FoldLifetime(ctx, brand)
		if err := a.brands.SaveLifetimeAnalytics(ctx, lifetime); err != nil {
			return fmt.Errorf("failed to save lifetime analytics: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to get lifetime analytics: %w", err)
	}

	fmt.Println(FormatCountLabel("Sessions:", lifetime.TotalProcessingSessions))
	if lifetime.FirstQueryProcessed != nil && lifetime.LastQueryProcessed != nil {
		fmt.Println(FormatLabelValue("Period:", lifetime.FirstQueryProcessed.Format("2006-01-02")+" → "+lifetime.LastQueryProcessed.Format("2006-01-02")))
	}
	printAnalytics(&lifetime.BrandAnalyticsData)
	return nil
}

func printAnalytics(data *models.BrandAnalyticsData) {
	fmt.Printf("%s📊 Brand Analytics%s %s(%s)%s\n", HeaderStyle, Reset, MetaStyle, data.CalculatedAt.Format("2006-01-02 15:04:05"), Reset)
	fmt.Printf("%s=================%s\n", DimStyle, Reset)
	fmt.Println(FormatCountLabel("Queries processed:", data.TotalQueriesProcessed))
	fmt.Println(FormatCountLabel("Brand mentions:", data.TotalBrandMentions))
	fmt.Println(FormatLabelValue("Visibility score:", fmt.Sprintf("%.2f%%", data.BrandVisibilityScore)))
	fmt.Println(FormatCountLabel("Citations:", data.TotalCitations))
	fmt.Println(FormatCountLabel("Domain citations:", data.TotalDomainCitations))
	fmt.Println(FormatLabelValue("Top provider:", data.Insights.TopPerformingProvider))
	if data.Insights.Trend != "" {
		trend := string(data.Insights.Trend)
		if data.Insights.VisibilityChange != nil {
			trend += fmt.Sprintf(" (%+.2f)", *data.Insights.VisibilityChange)
		}
		fmt.Println(FormatLabelValue("Trend:", trend))
	}
	fmt.Println()

	if len(data.ProviderStats) == 0 {
		return
	}

	names := make([]string, 0, len(data.ProviderStats))
	for name := range data.ProviderStats {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sPROVIDER\tQUERIES\tWITH MENTION\tMENTIONS\tCITATIONS\tDOMAIN\tAVG TIME%s\n", LabelStyle, Reset)
	for _, name := range names {
		s := data.ProviderStats[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%.0fms\n", name, s.QueriesProcessed, s.QueriesWithMention, s.BrandMentions, s.Citations, s.DomainCitations, s.AverageResponseTimeMs)
	}
	w.Flush()
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	summary, err := a.brands.SessionSummary(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to summarize sessions: %w", err)
	}

	fmt.Printf("%s🗂️  Sessions for %s%s\n", HeaderStyle, args[0], Reset)
	fmt.Println(FormatCountLabel("Total:", summary.TotalSessions))
	for status, n := range summary.ByStatus {
		fmt.Println(FormatCountLabel("  "+status+":", n))
	}
	fmt.Println(FormatCountLabel("Queries processed:", summary.QueriesProcessed))
	fmt.Println(FormatLabelValue("Total cost:", fmt.Sprintf("$%.4f", summary.TotalCost)))
	if summary.LastStartedAt != nil {
		fmt.Println(FormatLabelValue("Last run:", summary.LastStartedAt.Format("2006-01-02 15:04:05")))
	}
	return nil
}
