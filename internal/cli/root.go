package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/logger"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
	cfg      *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "brandlens",
	Short: "GEO brand monitoring across AI answer engines",
	Long: `BrandLens sends the queries your customers ask to ChatGPT, Perplexity,
Google AI Overview, Gemini and Azure OpenAI, then tracks where your brand is
mentioned and which domains get cited.

Register brands with tracked queries, process them on demand or on a cron
schedule, and read per-session and lifetime analytics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, set := os.LookupEnv("NO_COLOR"); set || noColor {
			disableColors()
		}

		// init writes the config file, everything else needs it
		if cmd.Name() == "init" {
			return nil
		}

		if cfgFile == "" {
			cfgFile = config.GetConfigPath()
		}

		if config.Exists(cfgFile) {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else {
			cfg = config.DefaultConfig()
			cfg.ApplyEnv(os.LookupEnv)
		}

		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logger.Init(logger.ParseLogLevel(level), os.Stderr)
		logger.Debug("Using configuration %s", cfgFile)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.brandlens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARNING, ERROR)")

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(brandCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(schedulerCmd)
	rootCmd.AddCommand(migrateCmd)
}
