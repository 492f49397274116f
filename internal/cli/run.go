package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

var (
	processContext   string
	processLocation  string
	processProviders []string
)

var processCmd = &cobra.Command{
	Use:   "process [brand-id]",
	Short: "Run every tracked query of a brand once",
	Long: `Process all tracked queries of a brand sequentially against the configured
providers, merge the answers into the brand history and compute the session
and lifetime analytics. Ctrl+C stops after the current query and keeps the
partial results.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processContext, "context", "", "Extra context appended to every query")
	processCmd.Flags().StringVarP(&processLocation, "location", "l", "", "Country or country code for localized answers")
	processCmd.Flags().StringSliceVarP(&processProviders, "providers", "p", nil, "Providers to query (default all)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	fmt.Printf("%s🔄 Processing brand %s%s\n", InfoStyle, args[0], Reset)
	fmt.Printf("%s====================================%s\n", DimStyle, Reset)
	fmt.Println(FormatLabelValue("Providers:", fmt.Sprint(a.registry.Names())))
	fmt.Println()

	outcome, err := a.processor.Process(ctx, args[0], processing.Options{
		Context:   processContext,
		Location:  processLocation,
		Providers: processProviders,
	})
	if err != nil {
		return err
	}

	session := outcome.Session
	for i, r := range outcome.Results {
		ok := 0
		for _, pr := range r.Results {
			if pr.Status == models.StatusSuccess {
				ok++
			}
		}
		style := SuccessStyle
		if ok == 0 {
			style = ErrorStyle
		}
		fmt.Printf("%s%d/%d%s %s %s(%d/%d providers)%s\n", style, i+1, session.QueriesTotal, Reset, truncate(r.Query, 60), MetaStyle, ok, len(r.Results), Reset)
	}
	fmt.Println()

	fmt.Println(FormatLabelValue("Session:", session.ID))
	fmt.Println(FormatLabelValue("Status:", string(session.Status)))
	fmt.Println(FormatLabelValue("Queries:", fmt.Sprintf("%d/%d", len(outcome.Results), session.QueriesTotal)))
	fmt.Println(FormatLabelValue("Cost:", fmt.Sprintf("$%.4f", session.TotalCost)))
	for _, e := range session.Errors {
		fmt.Printf("%s⚠️  %s%s\n", WarningStyle, e, Reset)
	}

	if outcome.Analytics != nil {
		fmt.Println()
		printAnalytics(outcome.Analytics)
	}
	return nil
}
