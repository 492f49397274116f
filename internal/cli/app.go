package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/AI2HU/brandlens/internal/config"
	"github.com/AI2HU/brandlens/internal/db"
	"github.com/AI2HU/brandlens/internal/db/memory"
	"github.com/AI2HU/brandlens/internal/db/mongodb"
	"github.com/AI2HU/brandlens/internal/db/sqlite"
	"github.com/AI2HU/brandlens/internal/logger"
	"github.com/AI2HU/brandlens/internal/manager"
	"github.com/AI2HU/brandlens/internal/processing"
	"github.com/AI2HU/brandlens/internal/providers"
	"github.com/AI2HU/brandlens/internal/providers/aioverview"
	"github.com/AI2HU/brandlens/internal/providers/azure"
	"github.com/AI2HU/brandlens/internal/providers/chatgpt"
	"github.com/AI2HU/brandlens/internal/providers/gemini"
	"github.com/AI2HU/brandlens/internal/providers/perplexity"
)

// app holds the services shared by the commands
type app struct {
	cfg       *config.Config
	brands    db.BrandStore
	credits   db.CreditStore
	registry  *providers.Registry
	manager   *manager.Manager
	processor *processing.Processor
	redis     *redis.Client
}

// newApp connects the stores and builds the provider stack
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	brands, err := newBrandStore(cfg.NoSQLDatabase)
	if err != nil {
		return nil, err
	}
	if err := brands.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to brand store: %w", err)
	}
	a.brands = brands

	credits, err := newCreditStore(cfg.SQLDatabase, brands)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := credits.Connect(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to connect to credit store: %w", err)
	}
	a.credits = credits

	a.registry, err = buildRegistry(cfg.Providers)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.manager = manager.New(a.registry, cfg.Processing.RequestTimeout())

	var cancels processing.CancelRegistry
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		cancels = processing.NewRedisCancelRegistry(a.redis, "", 0)
		logger.Debug("Cancellation flags stored in redis at %s", cfg.Redis.Addr)
	}
	a.processor = processing.New(a.brands, a.manager, cancels, cfg.Processing)

	return a, nil
}

// Close releases every connection opened by newApp
func (a *app) Close(ctx context.Context) {
	if a.processor != nil {
		a.processor.Wait()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.credits != nil {
		if err := a.credits.Disconnect(ctx); err != nil {
			logger.Warning("Failed to close credit store: %v", err)
		}
	}
	if a.brands != nil {
		if err := a.brands.Disconnect(ctx); err != nil {
			logger.Warning("Failed to close brand store: %v", err)
		}
	}
}

func newBrandStore(cfg config.DatabaseConfig) (db.BrandStore, error) {
	switch cfg.Provider {
	case "mongodb", "":
		return mongodb.New(cfg), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported brand store provider: %s", cfg.Provider)
	}
}

// newCreditStore shares the in-memory brand store when both are in memory
func newCreditStore(cfg config.DatabaseConfig, brands db.BrandStore) (db.CreditStore, error) {
	switch cfg.Provider {
	case "sqlite", "":
		return sqlite.New(cfg), nil
	case "memory":
		if m, ok := brands.(*memory.Store); ok {
			return m, nil
		}
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported credit store provider: %s", cfg.Provider)
	}
}

// buildRegistry registers every enabled provider that has its credentials
func buildRegistry(cfg config.ProvidersConfig) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	var adapters []providers.Adapter
	if cfg.ChatGPT.Configured() {
		adapters = append(adapters, chatgpt.New(cfg.ChatGPT))
	}
	if cfg.Perplexity.Configured() {
		adapters = append(adapters, perplexity.New(cfg.Perplexity))
	}
	if cfg.Google.Configured() {
		adapters = append(adapters, aioverview.New(cfg.Google))
	}
	if cfg.Gemini.Configured() {
		adapters = append(adapters, gemini.New(cfg.Gemini))
	}
	if azure.Configured(cfg.Azure) {
		adapters = append(adapters, azure.New(cfg.Azure))
	}

	for _, adapter := range adapters {
		if err := registry.Register(adapter); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", adapter.Name(), err)
		}
	}

	if registry.Len() == 0 {
		logger.Warning("No provider is configured; set OPENAI_API_KEY, PERPLEXITY_API_KEY, BRIGHTDATA_API_KEY, GEMINI_API_KEY or the AZURE_OPENAI_* variables")
	}
	return registry, nil
}
