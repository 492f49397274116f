package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/db/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage credit ledger migrations",
	Long:  `Apply the embedded SQLite migrations of the credit ledger and report the schema version.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"version"},
	Short:   "Show the current migration version",
	RunE:    runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// runMigrateUp serves both subcommands since connecting applies pending migrations
func runMigrateUp(cmd *cobra.Command, args []string) error {
	if cfg.SQLDatabase.Provider != "" && cfg.SQLDatabase.Provider != "sqlite" {
		return fmt.Errorf("migrations only apply to the sqlite ledger, configured provider is %s", cfg.SQLDatabase.Provider)
	}

	fmt.Println("🔄 Running ledger migrations...")
	ctx := context.Background()
	store := sqlite.New(cfg.SQLDatabase)
	if err := store.Connect(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer store.Disconnect(ctx)

	version, dirty, err := store.SchemaVersion()
	if err != nil {
		return err
	}

	fmt.Println(FormatLabelValue("Ledger:", cfg.SQLDatabase.URI))
	fmt.Println(FormatLabelValue("Schema version:", fmt.Sprint(version)))
	if dirty {
		fmt.Printf("%s⚠️  The last migration did not complete; fix the database and rerun%s\n", WarningStyle, Reset)
		return nil
	}
	fmt.Printf("%s✅ Ledger schema is up to date%s\n", SuccessStyle, Reset)
	return nil
}
