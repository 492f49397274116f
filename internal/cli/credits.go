package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	creditsReason string
	creditsLimit  int
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and grant user credits",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance [user-id]",
	Short: "Show a user's balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreditsBalance,
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant [user-id] [amount]",
	Short: "Add credits to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreditsGrant,
}

func init() {
	creditsCmd.AddCommand(creditsBalanceCmd)
	creditsCmd.AddCommand(creditsGrantCmd)

	creditsBalanceCmd.Flags().IntVarP(&creditsLimit, "limit", "l", 10, "Number of ledger entries to show")
	creditsGrantCmd.Flags().StringVarP(&creditsReason, "reason", "r", "manual grant", "Ledger reason")
}

func runCreditsBalance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	user := args[0]
	balance, err := a.credits.EnsureAccount(ctx, user, cfg.Credits.InitialGrant)
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}
	entries, err := a.credits.Ledger(ctx, user, creditsLimit)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	fmt.Println(FormatLabelValue("Balance:", fmt.Sprintf("%.2f", balance)))
	fmt.Println()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sDATE\tAMOUNT\tBALANCE\tREASON%s\n", LabelStyle, Reset)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%+.2f\t%.2f\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Amount, e.Balance, truncate(e.Reason, 50))
	}
	return w.Flush()
}

func runCreditsGrant(cmd *cobra.Command, args []string) error {
	var amount float64
	if _, err := fmt.Sscan(args[1], &amount); err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount: %s", args[1])
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if _, err := a.credits.EnsureAccount(ctx, args[0], cfg.Credits.InitialGrant); err != nil {
		return fmt.Errorf("failed to open account: %w", err)
	}
	balance, err := a.credits.Grant(ctx, args[0], amount, creditsReason)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}

	fmt.Printf("%s✅ Granted %.2f credits to %s, new balance %.2f%s\n", SuccessStyle, amount, args[0], balance, Reset)
	return nil
}
