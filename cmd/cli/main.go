package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"social-scraper/internal/app"
	"social-scraper/internal/auth"
	"social-scraper/internal/config"
	"social-scraper/internal/export"
	"social-scraper/internal/pipeline"
	"social-scraper/internal/server"
	"social-scraper/internal/storage"
	"social-scraper/internal/utils"
	"social-scraper/pkg/models"
)

var (
	configPath string
	outputPath string
	format     string
	platform   string
	maxItems   int
	withExtra  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "social-scraper",
	Short: "Extract profile and post data from YouTube, Instagram, TikTok and Facebook",
	Long: `Social Scraper turns a profile or post link into a table of records.

Features:
- Automatic platform and link type detection
- Profiles with their most recent posts
- CSV, XLSX, JSON and TXT export
- Batch scraping from CSV, XLSX or text files
- Run history in SQLite
- HTTP API and terminal UI`,
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadApp loads the configuration and wires the scraper
func loadApp() (*app.App, error) {
	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return app.New(cfg, configManager.GetLogger())
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func parseHint() (models.Platform, error) {
	hint, ok := models.ParsePlatform(platform)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedPlatform, platform)
	}
	return hint, nil
}

// exportTable writes table to outputPath, or to a timestamped file in the
// export directory
func exportTable(a *app.App, table *models.Table, p models.Platform) (string, error) {
	f := format
	if f == "" {
		f = a.Config.Export.Format
	}
	ef, err := export.ParseFormat(f)
	if err != nil {
		return "", err
	}

	path := outputPath
	if path == "" {
		path = filepath.Join(a.Config.Export.Dir, export.DefaultFilename(p, ef, time.Now()))
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.DefaultFilename(p, ef, time.Now()))
	}

	if err := a.Exporter(ef, withExtra).ExportToFile(path, table); err != nil {
		return "", err
	}
	return path, nil
}

// printTable renders the main columns of table to stdout
func printTable(t *models.Table) {
	columns := []string{models.ColPlatform, models.ColKind, models.ColHandle, models.ColTitle, models.ColFollowers, models.ColViews, models.ColLikes}

	rows := make([][]string, 0, t.Len())
	for _, rec := range t.Records {
		row := rec.Row(columns)
		for i, v := range row {
			if r := []rune(v); len(r) > 40 {
				row[i] = string(r[:37]) + "..."
			}
		}
		rows = append(rows, row)
	}

	fmt.Println(table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columns...).
		Rows(rows...).
		String())
}

func printFailure(err error) {
	fmt.Printf("❌ %s: %v\n", models.ErrorKind(err), err)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape a profile or post and export the records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint, err := parseHint()
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("Scraping: %s\n", args[0])
		result, err := a.Pipeline.Run(ctx, args[0], hint, maxItems)
		if err != nil {
			printFailure(err)
			return err
		}

		printTable(result.Table)
		if n := len(result.Table.Skipped); n > 0 {
			fmt.Printf("⚠️  %d items skipped\n", n)
		}

		path, err := exportTable(a, result.Table, result.Link.Platform)
		if err != nil {
			return fmt.Errorf("error exporting records: %w", err)
		}

		fmt.Printf("✅ %d records (%s, %s) written to %s\n",
			result.Table.Len(), result.Strategy, utils.FormatDuration(result.Duration), path)
		return nil
	},
}

var templatePath string

var batchCmd = &cobra.Command{
	Use:   "batch [links-file]",
	Short: "Scrape every link of a CSV, XLSX or text file into one export",
	Args: func(cmd *cobra.Command, args []string) error {
		if templatePath != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if templatePath != "" {
			return writeTemplate(templatePath)
		}

		rows, err := export.ReadLinks(args[0])
		if err != nil {
			return fmt.Errorf("error reading links file: %w", err)
		}
		if len(rows) == 0 {
			fmt.Println("No links found in file")
			return nil
		}

		items := make([]pipeline.BatchItem, 0, len(rows))
		for _, row := range rows {
			hint, ok := models.ParsePlatform(row.Platform)
			if !ok {
				fmt.Printf("⚠️  Ignoring unknown platform %q for %s\n", row.Platform, row.URL)
			}
			items = append(items, pipeline.BatchItem{URL: row.URL, Platform: hint})
		}
		fmt.Printf("Found %d links to scrape\n", len(items))

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		job, err := a.Pipeline.RunBatch(ctx, items, maxItems, func(job *pipeline.BatchJob, result pipeline.BatchResult) {
			done := job.Progress.Completed + job.Progress.Failed + job.Progress.Skipped
			switch result.Status {
			case "completed":
				fmt.Printf("[%d/%d] ✅ %s (%d records)\n", done, job.Progress.Total, result.URL, result.Records)
			case "failed":
				fmt.Printf("[%d/%d] ❌ %s: %s\n", done, job.Progress.Total, result.URL, result.ErrorKind)
			default:
				fmt.Printf("[%d/%d] ⏭  %s\n", done, job.Progress.Total, result.URL)
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("\nBatch %s: %d completed, %d failed, %d skipped\n",
			job.Status, job.Progress.Completed, job.Progress.Failed, job.Progress.Skipped)
		if job.Table.Len() == 0 {
			return fmt.Errorf("no records extracted")
		}

		path, err := exportTable(a, job.Table, models.PlatformUnknown)
		if err != nil {
			return fmt.Errorf("error exporting records: %w", err)
		}
		fmt.Printf("✅ %d records written to %s\n", job.Table.Len(), path)
		return nil
	},
}

func writeTemplate(path string) error {
	ef, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := export.WriteTemplate(file, ef); err != nil {
		return err
	}
	fmt.Printf("✅ Template written to %s\n", path)
	return nil
}

var classifyCmd = &cobra.Command{
	Use:   "classify [url]",
	Short: "Show how a link is classified without loading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hint, err := parseHint()
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		l, strategy, err := a.Pipeline.Classify(args[0], hint)
		if err != nil {
			printFailure(err)
			return err
		}

		fmt.Printf("🔎 Link\n")
		fmt.Printf("   Normalized: %s\n", l.Normalized)
		fmt.Printf("   Platform: %s\n", l.Platform)
		fmt.Printf("   Kind: %s\n", l.Kind)
		fmt.Printf("   Strategy: %s\n", strategy.ID)
		fmt.Printf("   Fields: %s\n", strings.Join(strategy.Extractor.Fields(l.Kind), ", "))
		return nil
	},
}

var (
	historyLimit int
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scrape runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Storage == nil {
			return fmt.Errorf("history is disabled (database.enabled is false)")
		}

		if historyPrune > 0 {
			removed, err := a.Storage.CleanupOldRuns(historyPrune)
			if err != nil {
				return fmt.Errorf("error pruning history: %w", err)
			}
			fmt.Printf("🧹 Removed %d runs older than %s\n", removed, historyPrune)
		}

		runs, err := a.Storage.ListRuns(historyLimit)
		if err != nil {
			return fmt.Errorf("error listing runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs found")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				string(run.Platform),
				string(run.Kind),
				fmt.Sprintf("%d", run.RecordCount),
				utils.FormatDuration(time.Duration(run.DurationMS) * time.Millisecond),
				run.URL,
			})
		}
		fmt.Println(table.New().
			Border(lipgloss.NormalBorder()).
			Headers("When", "Platform", "Kind", "Records", "Duration", "URL").
			Rows(rows...).
			String())

		if stats, err := a.Storage.GetStats(); err == nil {
			fmt.Printf("%d runs, %d stored records\n", stats.TotalRuns, stats.TotalRecords)
		}
		return nil
	},
}

var (
	exportKind   string
	exportSource string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Storage == nil {
			return fmt.Errorf("history is disabled (database.enabled is false)")
		}

		filter := models.RecordFilter{SourceURL: exportSource, Limit: exportLimit}
		p, err := parseHint()
		if err != nil {
			return err
		}
		if p != models.PlatformUnknown {
			filter.Platform = &p
		}
		if exportKind != "" {
			k := models.Kind(exportKind)
			filter.Kind = &k
		}

		stored, err := a.Storage.ListRecords(filter)
		if err != nil {
			return fmt.Errorf("error listing records: %w", err)
		}
		if len(stored) == 0 {
			fmt.Println("No records found")
			return nil
		}

		t, err := storage.ToTable(a.Normalizer.Columns(), a.Normalizer.Placeholder(), stored)
		if err != nil {
			return err
		}

		path, err := exportTable(a, t, p)
		if err != nil {
			return fmt.Errorf("error exporting records: %w", err)
		}
		fmt.Printf("✅ %d records written to %s\n", t.Len(), path)
		return nil
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and link types",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, info := range a.Registry.GetPlatformInfo() {
			fmt.Printf("%s (%s)\n", info.Name, strings.Join(info.Domains, ", "))
			for _, k := range info.Kinds {
				fmt.Printf("   %s: %s\n", k, strings.Join(info.Fields[k], ", "))
			}
			for _, ex := range info.Examples {
				fmt.Printf("   e.g. %s\n", ex)
			}
		}
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.NewServer(a.Config, server.Deps{
			Pipeline: a.Pipeline,
			Registry: a.Registry,
			Storage:  a.History(),
			Monitor:  a.Monitor,
			Logger:   &a.Logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		fmt.Printf("🚀 Server listening on http://%s:%d\n", a.Config.Server.Host, a.Config.Server.Port)
		fmt.Println("Press Ctrl+C to stop the server")
		return srv.Run(ctx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var forceInit bool

var initConfigCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join("config", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, forceInit); err != nil {
			return err
		}
		fmt.Printf("Configuration file created at %s\n", path)
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		fmt.Printf("📋 Current Configuration (%s)\n", configManager.ConfigFile())
		fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("   Renderer: %s (timeout %ds, %d retries)\n", cfg.Renderer.Engine, cfg.Renderer.Timeout, cfg.Renderer.Retries)
		fmt.Printf("   Max Items: %d\n", cfg.Scrape.MaxItems)
		fmt.Printf("   Placeholder: %s\n", cfg.Scrape.Placeholder)
		fmt.Printf("   Export: %s to %s\n", cfg.Export.Format, cfg.Export.Dir)
		fmt.Printf("   Database: %s (enabled %v)\n", cfg.Database.Path, cfg.Database.Enabled)
		fmt.Printf("   Log Level: %s\n", cfg.Log.Level)
		fmt.Printf("   Proxy Enabled: %v\n", cfg.Proxy.Enabled)
		fmt.Printf("   Auth Enabled: %v\n", cfg.Auth.Enabled)
		return nil
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting, e.g. scrape.max_items 20, and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		if _, err := configManager.Load(configPath); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		if err := configManager.UpdateConfig(map[string]interface{}{args[0]: args[1]}); err != nil {
			return err
		}
		if err := configManager.Save(); err != nil {
			return err
		}
		fmt.Printf("✅ %s = %s saved to %s\n", args[0], args[1], configManager.ConfigFile())
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for auth.admin_password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file or directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Scrape and export flags
	for _, cmd := range []*cobra.Command{scrapeCmd, batchCmd, exportCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file or directory")
		cmd.Flags().StringVarP(&format, "format", "f", "", "Export format (csv, xlsx, json, txt)")
		cmd.Flags().BoolVar(&withExtra, "extra", false, "Add platform specific fields as extra columns")
	}
	for _, cmd := range []*cobra.Command{scrapeCmd, batchCmd} {
		cmd.Flags().IntVarP(&maxItems, "max-items", "n", -1, "Posts to load per profile (default from config)")
	}
	for _, cmd := range []*cobra.Command{scrapeCmd, classifyCmd, exportCmd} {
		cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform (youtube, instagram, tiktok, facebook); detected when empty")
	}
	batchCmd.Flags().StringVar(&templatePath, "template", "", "Write an example links file (.csv or .xlsx) and exit")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to show")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Remove runs and records older than this age first (e.g. 720h)")
	exportCmd.Flags().StringVarP(&exportKind, "kind", "k", "", "Only records of this kind (profile, post)")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "Only records scraped from this normalized URL")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "l", 0, "Maximum number of records (0 for all)")
	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")

	// Add commands
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)

	// Config subcommands
	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)
	configCmd.AddCommand(hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
