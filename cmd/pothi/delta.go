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
	"github.com/pothi-dev/pothi/internal/fetch"
	"github.com/pothi-dev/pothi/internal/ledger"
	"github.com/pothi-dev/pothi/internal/log"
	"github.com/pothi-dev/pothi/internal/politeness"
	"github.com/pothi-dev/pothi/internal/store"
)

// NewDeltaCmd creates the delta command.
func NewDeltaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Re-check tracked documents and re-download the ones that changed",
		Long: `Delta walks every URL in the change-detection ledger, probes the server
for its freshness token, and re-downloads only what changed or went
missing locally. Unchanged documents transfer zero bytes.

The ledger is populated by crawl runs; delta refuses to run before any
crawl has stored state.

Examples:
  # Check all tracked URLs
  pothi delta

  # Check against a non-default data directory
  pothi delta -D /srv/pothi

  # JSON summary
  pothi delta --json -o delta.json`,
		Args: cobra.NoArgs,
		RunE: runDeltaCmd,
	}

	cmd.Flags().IntP("retries", "r", config.DefaultRetryAttempts,
		"Retry budget for retryable fetch failures")
	cmd.Flags().DurationP("delay", "w", config.DefaultRequestDelay,
		"Minimum spacing between requests to the same origin")
	cmd.Flags().StringP("user-agent", "A", "",
		"Pin the browser identity instead of rotating one per run")
	cmd.Flags().StringP("dir", "D", "",
		"Data directory for documents, records and the ledger (default: XDG data dir)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pothi in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runDeltaCmd executes the delta command.
func runDeltaCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildDeltaConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runDelta(ctx, cfg, logger)
}

// buildDeltaConfig creates a Config from delta command flags.
// Delta has no seeds of its own; the ledger supplies the URL list.
func buildDeltaConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.RetryAttempts, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.RequestDelay, err = cmd.Flags().GetDuration("delay")
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

	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs.Merge(file)
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

	return cfg, nil
}

// runDelta wires the delta components together and executes the pass.
func runDelta(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	runID := uuid.NewString()

	// A missing ledger means no crawl has run yet; refuse rather than
	// silently report zero URLs checked.
	led, err := ledger.Open(cfg.LedgerDir, ledger.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

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

	checker := ledger.NewChecker(led, fetcher, docStore, logger)

	logger.Info("starting delta pass", "run_id", runID)

	runReport, err := checker.Run(ctx, runID)
	if err != nil && runReport == nil {
		return err
	}

	logger.Info("delta pass finished",
		"run_id", runID,
		"checked", runReport.URLsChecked,
		"refetched", runReport.URLsRefetched,
		"unchanged", runReport.URLsUnchanged,
		"failures", runReport.FailureCount(),
	)

	return outputReport(cfg, runReport)
}
