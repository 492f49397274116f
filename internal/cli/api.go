package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/api"
	"github.com/AI2HU/brandlens/internal/auth"
	"github.com/AI2HU/brandlens/internal/scheduler"
)

var (
	apiPort       string
	apiHost       string
	corsOrigin    string
	withScheduler bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"api"},
	Short:   "Start the BrandLens REST API server",
	Long: `Start the REST API server:
- POST /api/v1/query runs one query against every configured provider
- /api/v1/brands registers brands, starts and cancels processing sessions
- /api/v1/brands/:id/analytics returns session and lifetime analytics
- /metrics exposes Prometheus metrics

Every /api/v1 route requires a bearer token (see 'brandlens token').`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&apiPort, "port", "p", "", "Port to run the API server on (overrides config file)")
	serveCmd.Flags().StringVarP(&apiHost, "host", "H", "", "Host to bind the API server to (overrides config file)")
	serveCmd.Flags().StringVarP(&corsOrigin, "cors-origin", "c", "", "CORS origins to allow, comma separated (use '*' for all origins)")
	serveCmd.Flags().BoolVar(&withScheduler, "scheduler", false, "Also run scheduled brand processing")
}

func runServe(cmd *cobra.Command, args []string) error {
	if apiPort != "" {
		cfg.Server.Port = apiPort
	}
	if apiHost != "" {
		cfg.Server.Host = apiHost
	}
	if corsOrigin != "" {
		cfg.Server.CORSOrigin = corsOrigin
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("no JWT secret configured; set server.jwt_secret or BRANDLENS_JWT_SECRET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("%s🚀 Starting BrandLens API Server%s\n", HeaderStyle, Reset)
	fmt.Printf("%s===============================%s\n", DimStyle, Reset)
	fmt.Println(FormatLabelValue("Address:", addr))
	fmt.Println(FormatLabelValue("Providers:", fmt.Sprint(a.registry.Names())))
	fmt.Println(FormatLabelValue("Credits:", fmt.Sprint(cfg.Credits.Enabled)))
	fmt.Printf("%sURL: http://%s/api/v1%s\n", MetaStyle, addr, Reset)
	fmt.Println()

	if withScheduler || cfg.Scheduler.Enabled {
		sched := scheduler.New(a.brands, a.processor)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	server := api.NewServer(api.Deps{
		Providers: a.manager,
		Brands:    a.brands,
		Credits:   a.credits,
		Processor: a.processor,
		Tokens:    auth.NewManager(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, 0),
	}, cfg)

	if err := server.Run(ctx, addr); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	fmt.Printf("\n%s🛑 API server stopped%s\n", InfoStyle, Reset)
	return nil
}
