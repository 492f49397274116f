package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/services"
)

var (
	suggestCount    int
	suggestLanguage string
	suggestTopic    string
	suggestProvider string
	suggestAdd      bool
)

var (
	brandName     string
	brandDomain   string
	brandUser     string
	brandQueries  []string
	brandKeyword  string
	brandCategory string
	brandSchedule string
)

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage tracked brands",
	Long:  `Register brands with the queries to track, and inspect their stored history.`,
}

var brandAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a brand with its tracked queries",
	RunE:  runBrandAdd,
}

var brandListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered brands",
	RunE:  runBrandList,
}

var brandGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a brand with its recent history",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrandGet,
}

var brandSuggestCmd = &cobra.Command{
	Use:   "suggest [id]",
	Short: "Generate new tracked queries for a brand with an answer engine",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrandSuggest,
}

func init() {
	brandCmd.AddCommand(brandAddCmd)
	brandCmd.AddCommand(brandListCmd)
	brandCmd.AddCommand(brandGetCmd)
	brandCmd.AddCommand(brandSuggestCmd)

	brandSuggestCmd.Flags().IntVarP(&suggestCount, "count", "c", 10, "Number of queries to generate")
	brandSuggestCmd.Flags().StringVarP(&suggestLanguage, "language", "l", "EN", "Language code of the queries")
	brandSuggestCmd.Flags().StringVarP(&suggestTopic, "topic", "t", "", "Topic to focus on, stored as the query keyword")
	brandSuggestCmd.Flags().StringVarP(&suggestProvider, "provider", "p", "", "Provider generating the queries (default chatgpt)")
	brandSuggestCmd.Flags().BoolVar(&suggestAdd, "add", false, "Add the generated queries to the brand")

	brandCmd.PersistentFlags().StringVarP(&brandUser, "user", "u", "", "Owner user id (list: filter, empty lists every brand)")

	brandAddCmd.Flags().StringVarP(&brandName, "name", "n", "", "Brand name")
	brandAddCmd.Flags().StringVarP(&brandDomain, "domain", "d", "", "Brand domain, e.g. acme.com")
	brandAddCmd.Flags().StringArrayVarP(&brandQueries, "query", "q", nil, "Tracked query (repeatable)")
	brandAddCmd.Flags().StringVarP(&brandKeyword, "keyword", "k", "", "Keyword attached to every query")
	brandAddCmd.Flags().StringVar(&brandCategory, "category", "", "Category attached to every query")
	brandAddCmd.Flags().StringVarP(&brandSchedule, "schedule", "s", "", "Cron expression for scheduled processing")
	brandAddCmd.MarkFlagRequired("name")
	brandAddCmd.MarkFlagRequired("domain")
}

func runBrandAdd(cmd *cobra.Command, args []string) error {
	schedule, err := validateCronExpression(brandSchedule)
	if err != nil {
		return err
	}

	brand := &models.Brand{
		ID:       uuid.New().String(),
		UserID:   brandUser,
		Name:     strings.TrimSpace(brandName),
		Domain:   strings.TrimSpace(brandDomain),
		Schedule: schedule,
	}
	for _, q := range brandQueries {
		if q = strings.TrimSpace(q); q != "" {
			brand.Queries = append(brand.Queries, models.BrandQuery{Query: q, Keyword: brandKeyword, Category: brandCategory})
		}
	}
	if brand.UserID == "" {
		brand.UserID = "local"
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if err := a.brands.CreateBrand(ctx, brand); err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}

	fmt.Printf("%s✅ Brand created%s\n", SuccessStyle, Reset)
	fmt.Println(FormatLabelValue("ID:", brand.ID))
	fmt.Println(FormatLabelValue("Name:", brand.Name))
	fmt.Println(FormatCountLabel("Queries:", len(brand.Queries)))
	if brand.Schedule != "" {
		fmt.Println(FormatLabelValue("Schedule:", brand.Schedule))
	}
	return nil
}

func runBrandList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	brands, err := a.brands.ListBrands(ctx, brandUser)
	if err != nil {
		return fmt.Errorf("failed to list brands: %w", err)
	}
	if len(brands) == 0 {
		fmt.Printf("%sNo brands registered yet. Use 'brandlens brand add' to create one.%s\n", WarningStyle, Reset)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sID\tNAME\tDOMAIN\tQUERIES\tSCHEDULE\tUSER%s\n", LabelStyle, Reset)
	for _, b := range brands {
		schedule := b.Schedule
		if schedule == "" {
			schedule = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", b.ID, b.Name, b.Domain, len(b.Queries), schedule, b.UserID)
	}
	return w.Flush()
}

func runBrandGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	brand, err := a.brands.GetBrand(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get brand: %w", err)
	}

	fmt.Printf("%s🏷️  %s%s %s(%s)%s\n", HeaderStyle, brand.Name, Reset, MetaStyle, brand.Domain, Reset)
	fmt.Println(FormatLabelValue("ID:", brand.ID))
	fmt.Println(FormatLabelValue("Owner:", brand.UserID))
	fmt.Println(FormatLabelValue("Created:", brand.CreatedAt.Format("2006-01-02 15:04:05")))
	if brand.Schedule != "" {
		fmt.Println(FormatLabelValue("Schedule:", brand.Schedule))
	}
	fmt.Println()

	fmt.Printf("%sTracked queries:%s\n", SuccessStyle, Reset)
	for i, q := range brand.Queries {
		fmt.Printf("  %s %s", FormatCount(i+1), q.Query)
		if q.Keyword != "" {
			fmt.Printf(" %s[%s]%s", MetaStyle, q.Keyword, Reset)
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Printf("%sHistory (%s entries, version %d):%s\n", SuccessStyle, formatCount(len(brand.History)), brand.Version, Reset)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%sDATE\tQUERY\tPROVIDERS\tSESSION%s\n", LabelStyle, Reset)
	for i, h := range brand.History {
		if i >= 20 {
			break
		}
		ok := 0
		for _, r := range h.Results {
			if r != nil && r.Status == models.StatusSuccess {
				ok++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", h.Date.Format("2006-01-02 15:04"), truncate(h.Query, 40), ok, len(h.Results), h.ProcessingSessionID)
	}
	return w.Flush()
}

func runBrandSuggest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	brand, err := a.brands.GetBrand(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get brand: %w", err)
	}

	fmt.Printf("%s🤖 Generating %d queries for %s in %s%s\n\n", InfoStyle, suggestCount, brand.Name, services.GetLanguageName(suggestLanguage), Reset)
	queries, err := services.NewQuerySuggestionService(a.manager, suggestProvider).SuggestQueries(ctx, brand, &services.SuggestionConfig{
		LanguageCode: suggestLanguage,
		Topic:        suggestTopic,
		Count:        suggestCount,
	})
	if err != nil {
		return err
	}

	for i, q := range queries {
		fmt.Printf("  %s %s\n", FormatCount(i+1), q.Query)
	}
	fmt.Println()

	if !suggestAdd {
		fmt.Printf("%s💡 Rerun with --add to track these queries%s\n", InfoStyle, Reset)
		return nil
	}
	if err := a.brands.AddBrandQueries(ctx, brand.ID, queries); err != nil {
		return fmt.Errorf("failed to add queries: %w", err)
	}
	fmt.Printf("%s✅ Added %d queries to %s%s\n", SuccessStyle, len(queries), brand.Name, Reset)
	return nil
}
