package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db/mongodb"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize brandlens configuration",
	Long:  `Interactive wizard to set up the brand store, the credit ledger and the API server.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("%s🚀 Welcome to BrandLens Setup%s\n", HeaderStyle, Reset)
	fmt.Printf("%s============================%s\n", DimStyle, Reset)
	fmt.Println()

	configPath := cfgFile
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	if config.Exists(configPath) {
		fmt.Printf("Configuration file already exists at: %s\n", configPath)
		confirmed, err := promptYesNo(reader, "Do you want to overwrite it? (y/N): ")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Setup cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()

	fmt.Printf("\n%s📊 Brand Store (MongoDB)%s\n", TitleStyle, Reset)
	fmt.Printf("%s------------------------%s\n", DimStyle, Reset)

	uri, err := promptWithRetry(reader, "MongoDB URI [mongodb://localhost:27017]: ", validateMongoURI)
	if err != nil {
		return err
	}
	cfg.NoSQLDatabase.URI = uri

	dbName, err := promptOptional(reader, "Database name [brandlens]: ", "brandlens")
	if err != nil {
		return err
	}
	cfg.NoSQLDatabase.Database = dbName

	fmt.Println("\n🔌 Testing database connection...")
	ctx := context.Background()
	store := mongodb.New(cfg.NoSQLDatabase)
	if err := store.Connect(ctx); err != nil {
		fmt.Printf("%s❌ Failed to connect to database: %v%s\n", ErrorStyle, err, Reset)
		fmt.Println("\nPlease check your database configuration and try again.")
		return err
	}
	store.Disconnect(ctx)
	fmt.Printf("%s✅ Database connection successful!%s\n", SuccessStyle, Reset)

	fmt.Printf("\n%s💳 Credit Ledger (SQLite)%s\n", TitleStyle, Reset)
	fmt.Printf("%s-------------------------%s\n", DimStyle, Reset)

	ledger, err := promptOptional(reader, "Ledger file ["+cfg.SQLDatabase.URI+"]: ", cfg.SQLDatabase.URI)
	if err != nil {
		return err
	}
	cfg.SQLDatabase.URI = ledger

	grant, err := promptWithRetry(reader, fmt.Sprintf("Initial credits per user [%.0f]: ", cfg.Credits.InitialGrant), func(input string) (string, error) {
		n, err := validateNumber(input, int(cfg.Credits.InitialGrant), 0, 1000000)
		return fmt.Sprint(n), err
	})
	if err != nil {
		return err
	}
	fmt.Sscan(grant, &cfg.Credits.InitialGrant)

	fmt.Printf("\n%s🌐 API Server%s\n", TitleStyle, Reset)
	fmt.Printf("%s-------------%s\n", DimStyle, Reset)

	port, err := promptWithRetry(reader, "Port [8989]: ", func(input string) (string, error) {
		n, err := validateNumber(input, 8989, 1, 65535)
		return fmt.Sprint(n), err
	})
	if err != nil {
		return err
	}
	cfg.Server.Port = port

	secret, err := promptOptional(reader, "JWT signing secret (leave empty to generate one): ", "")
	if err != nil {
		return err
	}
	if strings.TrimSpace(secret) == "" {
		secret = strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	}
	cfg.Server.JWTSecret = secret

	fmt.Println("\n💾 Saving configuration...")
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("%s✅ Configuration saved to: %s%s\n", SuccessStyle, configPath, Reset)

	fmt.Printf("\n%s📋 Configuration Summary%s\n", HeaderStyle, Reset)
	fmt.Printf("%s========================%s\n", DimStyle, Reset)
	fmt.Println(FormatLabelValue("MongoDB:", cfg.NoSQLDatabase.URI+"/"+cfg.NoSQLDatabase.Database))
	fmt.Println(FormatLabelValue("Ledger:", cfg.SQLDatabase.URI))
	fmt.Println(FormatLabelValue("API port:", cfg.Server.Port))
	fmt.Println(FormatLabelValue("JWT secret:", maskSensitiveData(cfg.Server.JWTSecret)))
	fmt.Println()
	fmt.Println("Provider keys are read from the environment (or a .env file):")
	fmt.Println("  OPENAI_API_KEY, PERPLEXITY_API_KEY, BRIGHTDATA_API_KEY, GEMINI_API_KEY,")
	fmt.Println("  AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, AZURE_OPENAI_DEPLOYMENT")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Register a brand: brandlens brand add --name Acme --domain acme.com -q \"best crm\"")
	fmt.Println("  2. Process it:       brandlens process <brand-id>")
	fmt.Println("  3. Read analytics:   brandlens analytics <brand-id>")
	fmt.Println("  4. Serve the API:    brandlens serve")

	return nil
}
