package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/janlim/eventscout/internal/collect"
	"github.com/janlim/eventscout/internal/collection"
	"github.com/janlim/eventscout/internal/config"
	"github.com/janlim/eventscout/internal/dedup"
	"github.com/janlim/eventscout/internal/extract"
	"github.com/janlim/eventscout/internal/filter"
	"github.com/janlim/eventscout/internal/ledger"
	"github.com/janlim/eventscout/internal/llm"
	"github.com/janlim/eventscout/internal/pipeline"
	"github.com/janlim/eventscout/internal/server"
	"github.com/janlim/eventscout/internal/similarity"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "eventscout",
	Short:   "Family event extraction from local blogs",
	Long:    "eventscout collects blog articles, extracts family events with an LLM, deduplicates them, and maintains reviewed event collections.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// API keys commonly live in a local .env during development.
		if err := godotenv.Load(); err == nil {
			log.Println("Loaded environment from .env")
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("eventscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/eventscout/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, API keys, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger and collection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Ledger:")
		fmt.Printf("  Articles processed: %d\n", stats.TotalArticles)
		fmt.Printf("  Events extracted: %d\n", stats.TotalEvents)
		fmt.Printf("  Sources: %d\n", stats.Sources)
		fmt.Printf("  Runs: %d\n", stats.Runs)

		store := collection.NewStore(cfg.EventsDir())
		names, err := store.List()
		if err != nil {
			return err
		}
		fmt.Printf("\nCollections (%d):\n", len(names))
		for _, name := range names {
			c, err := store.Open(name)
			if err != nil {
				return err
			}
			fmt.Printf("  %s: %d events, %d non-relevant\n", name, len(c.Events), len(c.NonRelevant))
		}

		if latest, _ := db.LatestRunReport(); latest != nil {
			fmt.Printf("\nLast run %s at %s: %d processed, %d kept, %d duplicates, %d non-relevant, %d errored\n",
				latest.RunID, latest.GeneratedAt, latest.Processed, latest.Kept, latest.Duplicates, latest.NonRelevant, latest.Errored)
		}
		return nil
	},
}

// --- run command ---

var daysBack int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: collect -> extract -> filter -> dedup -> geocode -> images -> merge",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		result := pipe.Run(context.Background(), daysBack)

		printSteps(result)
		if result.Failed() {
			return fmt.Errorf("pipeline finished with errors")
		}
		fmt.Println("\nPipeline complete! Run 'eventscout serve' to review the events.")
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&daysBack, "days-back", 7, "Feed lookback window (days)")
}

// --- submit command ---

var submitBucket string

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Extract events from a single article URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()

		collector := collect.New(db, cfg.Sources)
		article, err := collector.Submit(ctx, args[0])
		if err != nil {
			return err
		}

		ext := cfg.Extraction
		provider := llm.CreateProvider(ext.Provider, ext.Model, ext.OllamaURL, ext.GeminiModel, ext.GeminiKeyEnv, ext.OpenAIModel, ext.APIKeyEnv)
		if provider == nil {
			return fmt.Errorf("no LLM provider available")
		}

		events, err := extract.New(provider, ext.MaxTokens).Extract(ctx, *article)
		if err != nil {
			return err
		}
		if err := db.Record(article.SourceID, article.ID, len(events)); err != nil {
			return fmt.Errorf("recording article: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No events found in the article.")
			return nil
		}

		relevant, nonRelevant := filter.New(provider).Run(ctx, events)

		store := collection.NewStore(cfg.EventsDir())
		c, err := store.Open(submitBucket)
		if err != nil {
			return err
		}

		merger := collection.NewMerger(newDeduplicator())
		if err := merger.Merge(ctx, c, relevant); err != nil {
			return err
		}
		if err := merger.MergeNonRelevant(c, nonRelevant); err != nil {
			return err
		}

		fmt.Printf("Added %d events (%d non-relevant) to %s:\n", len(relevant), len(nonRelevant), submitBucket)
		for _, ev := range relevant {
			fmt.Printf("  - %s", ev.Title)
			if ev.VenueName != "" {
				fmt.Printf(" @ %s", ev.VenueName)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitBucket, "bucket", collection.NonEvergreenBucket, "Target collection bucket")
}

// --- dedup command ---

var dedupYes bool

var dedupCmd = &cobra.Command{
	Use:   "dedup [collection...]",
	Short: "Deduplicate across collections (all of them by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		names := args
		store := collection.NewStore(cfg.EventsDir())
		if len(names) == 0 {
			names, err = store.List()
			if err != nil {
				return err
			}
		}

		if !dedupYes {
			fmt.Printf("Deduplicate across %d collections (%s)? [y/N]: ", len(names), strings.Join(names, ", "))
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				return fmt.Errorf("aborted")
			}
		}

		pipe := pipeline.New(cfg, db)
		result, err := pipe.CrossFolderDedup(context.Background(), names)
		if err != nil {
			return err
		}

		printSteps(result)
		if result.Failed() {
			return fmt.Errorf("dedup finished with errors")
		}
		return nil
	},
}

func init() {
	dedupCmd.Flags().BoolVarP(&dedupYes, "yes", "y", false, "Skip the confirmation prompt")
}

// --- ledger command ---

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and manage the processed-articles ledger",
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history [source]",
	Short: "List processed articles for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.HistoryFor(args[0])
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Printf("No processed articles for source %q.\n", args[0])
			return nil
		}

		fmt.Printf("Processed articles for %s:\n", args[0])
		for _, a := range articles {
			fmt.Printf("  %s  %-3d events  %s\n", a.ProcessedAt, a.EventCount, a.ArticleID)
		}
		return nil
	},
}

var resetSource string

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget processed articles so they can be reprocessed",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		var n int64
		if resetSource != "" {
			n, err = db.ResetSource(resetSource)
		} else {
			n, err = db.Reset()
		}
		if err != nil {
			return err
		}
		fmt.Printf("Forgot %d processed articles.\n", n)
		return nil
	},
}

func init() {
	ledgerResetCmd.Flags().StringVar(&resetSource, "source", "", "Reset only one source")
	ledgerCmd.AddCommand(ledgerHistoryCmd)
	ledgerCmd.AddCommand(ledgerResetCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local collection viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(collection.NewStore(cfg.EventsDir()), db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func newDeduplicator() *dedup.Deduplicator {
	ext := cfg.Extraction
	embModel := ext.EmbeddingModel
	if embModel == "" {
		embModel = "nomic-embed-text"
	}
	baseURL := ext.OllamaURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	engine := similarity.New(llm.NewOllamaEmbedder(embModel, baseURL), cfg.Dedup.PrimaryThreshold, cfg.Dedup.VenueTitleThreshold)
	return dedup.New(engine, nil)
}

func openLedger() (*ledger.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return ledger.Open(cfg.LedgerPath())
}
