package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewCrawlCmd tests crawl command construction.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"depth", "max-pages", "batch", "delay", "retries",
			"user-agent", "dir", "config", "json", "markdown", "output",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q", name)
			}
		}
	})
}

// TestBuildConfig tests Config assembly from crawl flags and arguments.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults without flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.MaxDepth != 25 {
			t.Errorf("expected default depth 25, got %d", cfg.MaxDepth)
		}
		if len(cfg.Seeds) == 0 {
			t.Error("expected built-in seed list")
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{
			"--depth", "3",
			"--max-pages", "50",
			"--batch", "2",
			"--delay", "500ms",
			"--retries", "1",
		}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.MaxDepth != 3 {
			t.Errorf("expected depth 3, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 50 {
			t.Errorf("expected max pages 50, got %d", cfg.MaxPages)
		}
		if cfg.SeedConcurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", cfg.SeedConcurrency)
		}
		if cfg.RequestDelay != 500*time.Millisecond {
			t.Errorf("expected 500ms delay, got %v", cfg.RequestDelay)
		}
		if cfg.RetryAttempts != 1 {
			t.Errorf("expected 1 retry, got %d", cfg.RetryAttempts)
		}
	})

	t.Run("positional arguments replace seeds", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.org/books"})
		if err != nil {
			t.Fatal(err)
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.org/books" {
			t.Errorf("expected positional seed, got %v", cfg.Seeds)
		}
	})

	t.Run("data dir flag rebases all data paths", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--dir", dir}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.DocumentsDir != filepath.Join(dir, "files") {
			t.Errorf("expected documents under data dir, got %s", cfg.DocumentsDir)
		}
		if cfg.RecordsDir != filepath.Join(dir, "records") {
			t.Errorf("expected records under data dir, got %s", cfg.RecordsDir)
		}
		if cfg.LedgerDir != dir {
			t.Errorf("expected ledger in data dir, got %s", cfg.LedgerDir)
		}
	})

	t.Run("config file seeds and sites are applied", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "conf.yaml")
		content := `seeds:
  - https://example.org/from-file
sites:
  slow.example.org:
    delay: 9s
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", path}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.org/from-file" {
			t.Errorf("expected file seeds, got %v", cfg.Seeds)
		}
		if sc := cfg.SiteConfigs.GetSiteConfig("slow.example.org"); sc.Delay != 9*time.Second {
			t.Errorf("expected 9s delay from file, got %v", sc.Delay)
		}
		// Built-in table entries survive the merge.
		if sc := cfg.SiteConfigs.GetSiteConfig("archive.org"); !sc.RequireReferer {
			t.Error("expected built-in archive.org entry to survive merge")
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
			t.Fatal(err)
		}

		_, err := buildConfig(cmd, nil)
		if err == nil {
			t.Fatal("expected an error for missing explicit config")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}

// TestNewDeltaCmd tests delta command construction.
func TestNewDeltaCmd(t *testing.T) {
	t.Parallel()

	cmd := NewDeltaCmd()

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"retries", "delay", "user-agent", "dir", "config",
			"json", "markdown", "output",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q", name)
			}
		}
	})

	t.Run("missing ledger fails cleanly", func(t *testing.T) {
		t.Parallel()

		cmd := NewDeltaCmd()
		cmd.SetArgs([]string{"-D", t.TempDir()})
		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected an error when no crawl has run")
		}
		if !strings.Contains(err.Error(), "run a crawl first") {
			t.Errorf("expected guidance to crawl first, got %v", err)
		}
	})
}
