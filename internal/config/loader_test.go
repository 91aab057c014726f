package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadConfigFile verifies YAML parsing of the .pothi file format.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("full config file", func(t *testing.T) {
		t.Parallel()

		content := `seeds:
  - https://example.org/books
  - https://archive.example.net/pdfs
sites:
  archive.org:
    delay: 5s
    maxRetries: 5
    requireReferer: true
  private.example.org:
    cookie: "session=abc123"
    headers:
      Authorization: "Bearer token"
defaults:
  delay: 2s
`
		path := filepath.Join(t.TempDir(), ".pothi")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		file, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(file.Seeds) != 2 {
			t.Errorf("expected 2 seeds, got %d", len(file.Seeds))
		}
		sc := file.GetSiteConfig("archive.org")
		if sc.Delay != 5*time.Second {
			t.Errorf("expected 5s delay, got %v", sc.Delay)
		}
		if sc.MaxRetries != 5 {
			t.Errorf("expected 5 retries, got %d", sc.MaxRetries)
		}
		if !sc.RequireReferer {
			t.Error("expected RequireReferer")
		}
		private := file.GetSiteConfig("private.example.org")
		if private.Cookie != "session=abc123" {
			t.Errorf("expected cookie, got %q", private.Cookie)
		}
		if private.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header, got %v", private.Headers)
		}
		if file.Defaults.Delay != 2*time.Second {
			t.Errorf("expected 2s default delay, got %v", file.Defaults.Delay)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".pothi")
		if err := os.WriteFile(path, []byte("seeds: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for invalid yaml")
		}
	})

	t.Run("empty file yields usable zero config", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".pothi")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal(err)
		}
		file, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if file.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile verifies the explicit-path branch; the cwd/home search
// depends on the test environment and is not asserted here.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("seeds: []\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})
}
