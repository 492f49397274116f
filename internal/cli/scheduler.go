package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/scheduler"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the scheduler",
	Long:  `Run scheduled brand processing without the API server.`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler",
	RunE:  runSchedulerStart,
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd)
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	fmt.Printf("%s🚀 Start Scheduler%s\n", HeaderStyle, Reset)
	fmt.Printf("%s================%s\n", DimStyle, Reset)
	fmt.Println()

	sched := scheduler.New(a.brands, a.processor)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	scheduled := sched.Scheduled()
	if len(scheduled) == 0 {
		sched.Stop()
		fmt.Printf("%s❌ No scheduled brands found%s\n", ErrorStyle, Reset)
		fmt.Printf("%s💡 Use 'brandlens brand add --schedule \"0 6 * * *\"' to create one%s\n", InfoStyle, Reset)
		return nil
	}

	fmt.Printf("%sScheduled brands:%s\n", LabelStyle, Reset)
	for i, id := range scheduled {
		next, _ := sched.NextRun(id)
		fmt.Printf("  %s%d. %s%s %snext run %s%s\n", CountStyle, i+1, Reset, FormatValue(id), DimStyle, next.Format("2006-01-02 15:04"), Reset)
	}
	fmt.Println()
	fmt.Printf("%s📝 Press Ctrl+C to stop the scheduler%s\n", InfoStyle, Reset)

	<-ctx.Done()
	fmt.Printf("\n%s⏹️  Stopping scheduler...%s\n", InfoStyle, Reset)
	sched.Stop()
	fmt.Printf("%s✅ Scheduler stopped%s\n", SuccessStyle, Reset)

	return nil
}
