package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

var (
	queryContext   string
	queryLocation  string
	queryProviders []string
	queryFull      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Run one query against every configured provider",
	Long:  `Send a query to all configured providers in parallel and print each answer with its citations.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryContext, "context", "", "Extra context appended to the query")
	queryCmd.Flags().StringVarP(&queryLocation, "location", "l", "", "Country or country code for localized answers")
	queryCmd.Flags().StringSliceVarP(&queryProviders, "providers", "p", nil, "Providers to query (default all)")
	queryCmd.Flags().BoolVar(&queryFull, "full", false, "Print full answers")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	text := strings.Join(args, " ")
	meta := map[string]string{}
	if queryLocation != "" {
		meta[models.MetaLocation] = queryLocation
	}
	if queryContext != "" {
		meta[models.MetaContext] = queryContext
	}

	fmt.Printf("%s🔍 %s%s\n\n", HeaderStyle, text, Reset)
	job := a.manager.ExecuteRequest(ctx, &models.ProviderRequest{
		ID:        uuid.New().String(),
		Prompt:    processing.Prompt(text, queryContext),
		Providers: queryProviders,
		Metadata:  meta,
	})

	printJob(job, queryFull)

	if job.AllFailed() {
		return fmt.Errorf("all providers failed")
	}
	return nil
}

func printJob(job *models.JobResult, full bool) {
	for _, r := range job.Results {
		elapsed := formatDuration(time.Duration(r.ResponseTimeMs) * time.Millisecond)
		if !r.Succeeded() {
			fmt.Printf("%s❌ %s%s %s(%s, %s)%s\n", ErrorStyle, r.ProviderID, Reset, MetaStyle, r.Status, elapsed, Reset)
			if r.Error != "" {
				fmt.Printf("   %s\n", FormatDim(r.Error))
			}
			fmt.Println()
			continue
		}

		fmt.Printf("%s✅ %s%s %s(%s, $%.4f)%s\n", SuccessStyle, r.ProviderID, Reset, MetaStyle, elapsed, r.Cost, Reset)
		content := r.Data.Content
		if !full {
			content = truncate(content, 300)
		}
		fmt.Printf("   %s\n", content)
		if len(r.Data.Citations) > 0 {
			fmt.Printf("   %sCitations (%s):%s\n", LabelStyle, FormatCount(len(r.Data.Citations)), Reset)
			for _, c := range r.Data.Citations {
				fmt.Printf("     - %s\n", FormatSecondary(c.URL))
			}
		}
		fmt.Println()
	}

	fmt.Printf("%s%s\n", DimStyle+strings.Repeat("─", 60), Reset)
	fmt.Println(FormatCountLabel("Succeeded:", job.AggregatedData.SuccessCount))
	fmt.Println(FormatCountLabel("Failed:", job.AggregatedData.ErrorCount))
	fmt.Println(FormatLabelValue("Consensus:", job.AggregatedData.Consensus))
	fmt.Println(FormatLabelValue("Total cost:", fmt.Sprintf("$%.4f", job.TotalCost)))
}
