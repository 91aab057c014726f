package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pothi-dev/pothi/internal/config"
	"github.com/pothi-dev/pothi/internal/crawler"
	"github.com/pothi-dev/pothi/internal/fetch"
	"github.com/pothi-dev/pothi/internal/ledger"
	"github.com/pothi-dev/pothi/internal/log"
	"github.com/pothi-dev/pothi/internal/model"
	"github.com/pothi-dev/pothi/internal/politeness"
	"github.com/pothi-dev/pothi/internal/report"
	"github.com/pothi-dev/pothi/internal/store"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl archive sites and download the documents they link to",
		Long: `Crawl walks each seed site recursively, downloading every PDF/EPUB/DOC
file it discovers into the document store and appending one JSONL record
per acquisition. Every stored document is also registered in the
change-detection ledger so later delta runs know what to track.

Without arguments the built-in seed list of scanned-document archives is
used; a .pothi config file or positional arguments replace it.

Examples:
  # Crawl the built-in archive seed list
  pothi crawl

  # Crawl specific sites only
  pothi crawl https://sanskritdocuments.org/scannedbooks/asisanskritpdfs.html

  # Shallow run with a JSON summary written to a file
  pothi crawl --depth 2 --json -o report.json

  # Use a custom configuration file
  pothi crawl -c myconfig.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link-following depth per seed (0 = seed page only)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per seed")
	cmd.Flags().IntP("batch", "b", config.DefaultSeedConcurrency,
		"Number of seeds crawled concurrently")
	cmd.Flags().DurationP("delay", "w", config.DefaultRequestDelay,
		"Minimum spacing between requests to the same origin")
	cmd.Flags().IntP("retries", "r", config.DefaultRetryAttempts,
		"Retry budget for retryable fetch failures")
	cmd.Flags().StringP("user-agent", "A", "",
		"Pin the browser identity instead of rotating one per run")
	cmd.Flags().StringP("dir", "D", "",
		"Data directory for documents, records and the ledger (default: XDG data dir)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pothi in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.SeedConcurrency, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.RequestDelay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.RetryAttempts, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	dataDir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DocumentsDir = filepath.Join(dataDir, "files")
		cfg.RecordsDir = filepath.Join(dataDir, "records")
		cfg.LedgerDir = dataDir
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load seed and site configurations from the config file.
	// If the user explicitly specified a path, a missing file is an error;
	// a missing default file is not.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs.Merge(file)
		if len(file.Seeds) > 0 {
			cfg.Seeds = append([]string(nil), file.Seeds...)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	// Positional arguments trump both the built-in list and the file.
	if len(args) > 0 {
		cfg.Seeds = args
	}

	return cfg, nil
}

// runCrawl wires the run components together and executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	runID := uuid.NewString()

	logger.Info("starting crawl",
		"run_id", runID,
		"seeds", len(cfg.Seeds),
		"depth", cfg.MaxDepth,
		"concurrency", cfg.SeedConcurrency,
	)

	gate := politeness.NewGate(
		politeness.WithDefaultDelay(cfg.RequestDelay),
		politeness.WithDownloadDelay(cfg.DownloadDelay),
		politeness.WithSiteConfigs(cfg.SiteConfigs),
		politeness.WithLogger(logger),
	)

	fetcher := fetch.NewFetcher(gate, cfg.ConnectTimeout, cfg.ReadTimeout,
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
		fetch.WithSiteConfigs(cfg.SiteConfigs),
		fetch.WithDocumentTypes(cfg.DocumentExtensions, cfg.DocumentContentTypes),
		fetch.WithLogger(logger),
	)

	docStore, err := store.NewDocumentStore(cfg.DocumentsDir,
		store.WithSizeBounds(cfg.MinFileSize, cfg.MaxFileSize),
		store.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}

	recorder, err := store.NewRecorder(cfg.RecordsDir)
	if err != nil {
		return fmt.Errorf("failed to open records file: %w", err)
	}
	defer func() { _ = recorder.Close() }()

	led, err := ledger.Open(cfg.LedgerDir, ledger.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = led.Close() }()

	batch := crawler.NewBatch(
		func() *crawler.Engine {
			return crawler.NewEngine(fetcher, docStore, recorder,
				crawler.WithLimits(cfg.MaxDepth, cfg.MaxPages),
				crawler.WithMaxBodySize(cfg.MaxBodySize),
				crawler.WithDocumentExtensions(cfg.DocumentExtensions),
				crawler.WithLedger(led),
				crawler.WithRunID(runID),
				crawler.WithLogger(logger),
			)
		},
		crawler.WithConcurrency(cfg.SeedConcurrency),
		crawler.WithBatchLogger(logger),
	)

	runReport := batch.Run(ctx, runID, cfg.Seeds)

	logger.Info("crawl finished",
		"run_id", runID,
		"pages", runReport.PagesVisited,
		"stored", runReport.DocumentsStored,
		"failures", runReport.FailureCount(),
	)

	return outputReport(cfg, runReport)
}

// outputReport writes the run summary in the requested format.
func outputReport(cfg *config.Config, runReport *model.RunReport) error {
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(runReport)
	return err
}
