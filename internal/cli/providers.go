package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/config"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and check their health",
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	status := a.manager.GetProviderStatus(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sPROVIDER\tCONFIGURED\tHEALTHY\tMODEL\tKEY%s\n", LabelStyle, Reset)
	for _, p := range []struct {
		name string
		cfg  config.ProviderConfig
	}{
		{config.ProviderChatGPT, cfg.Providers.ChatGPT},
		{config.ProviderPerplexity, cfg.Providers.Perplexity},
		{config.ProviderGoogle, cfg.Providers.Google},
		{config.ProviderGemini, cfg.Providers.Gemini},
		{config.ProviderAzure, cfg.Providers.Azure},
	} {
		_, registered := a.registry.Get(p.name)
		healthy := "-"
		if registered {
			healthy = FormatError("no")
			if status[p.name] {
				healthy = FormatSuccess("yes")
			}
		}
		model := p.cfg.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\n", p.name, registered, healthy, model, maskSensitiveData(p.cfg.APIKey))
	}
	return w.Flush()
}
