package config

import (
	"testing"
	"time"
)

// TestGetSiteConfig verifies host matching and default merging.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	file := &File{
		Sites: map[string]SiteConfig{
			"archive.org": {
				Delay:          5 * time.Second,
				MaxRetries:     5,
				RequireReferer: true,
			},
			"example.org": {
				Cookie:  "session=abc",
				Headers: map[string]string{"X-Custom": "1"},
			},
		},
		Defaults: SiteConfig{
			Delay: time.Second,
		},
	}

	t.Run("exact host match", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("archive.org")
		if sc.Delay != 5*time.Second {
			t.Errorf("expected 5s delay, got %v", sc.Delay)
		}
		if sc.MaxRetries != 5 {
			t.Errorf("expected 5 retries, got %d", sc.MaxRetries)
		}
		if !sc.RequireReferer {
			t.Error("expected RequireReferer to be true")
		}
	})

	t.Run("subdomain inherits parent entry", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("ia800504.us.archive.org")
		if sc.Delay != 5*time.Second {
			t.Errorf("expected subdomain to inherit 5s delay, got %v", sc.Delay)
		}
		if !sc.RequireReferer {
			t.Error("expected subdomain to inherit RequireReferer")
		}
	})

	t.Run("unknown host gets defaults only", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("unknown.example.net")
		if sc.Delay != time.Second {
			t.Errorf("expected default 1s delay, got %v", sc.Delay)
		}
		if sc.RequireReferer {
			t.Error("expected RequireReferer to be false")
		}
	})

	t.Run("entry fields overlay defaults field by field", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("example.org")
		// Entry has no delay, so the default survives.
		if sc.Delay != time.Second {
			t.Errorf("expected default 1s delay, got %v", sc.Delay)
		}
		if sc.Cookie != "session=abc" {
			t.Errorf("expected cookie from entry, got %q", sc.Cookie)
		}
		if sc.Headers["X-Custom"] != "1" {
			t.Errorf("expected X-Custom header, got %v", sc.Headers)
		}
	})

	t.Run("suffix match requires a dot boundary", func(t *testing.T) {
		t.Parallel()
		// "notarchive.org" must not match "archive.org".
		sc := file.GetSiteConfig("notarchive.org")
		if sc.RequireReferer {
			t.Error("expected no match for notarchive.org")
		}
	})
}

// TestBuiltinSiteConfigs verifies the special-site table covers the fragile
// hosts from the default seed list.
func TestBuiltinSiteConfigs(t *testing.T) {
	t.Parallel()

	file := BuiltinSiteConfigs()

	t.Run("archive.org requires referer with extra delay and retries", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("archive.org")
		if !sc.RequireReferer {
			t.Error("expected RequireReferer")
		}
		if sc.Delay != 5*time.Second {
			t.Errorf("expected 5s delay, got %v", sc.Delay)
		}
		if sc.MaxRetries != 5 {
			t.Errorf("expected 5 retries, got %d", sc.MaxRetries)
		}
	})

	t.Run("indianculture.gov.in requires referer", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("indianculture.gov.in")
		if !sc.RequireReferer {
			t.Error("expected RequireReferer")
		}
		if sc.Delay != 3*time.Second {
			t.Errorf("expected 3s delay, got %v", sc.Delay)
		}
	})

	t.Run("ignca.gov.in has delay and retry overrides", func(t *testing.T) {
		t.Parallel()
		sc := file.GetSiteConfig("ignca.gov.in")
		if sc.Delay != 4*time.Second {
			t.Errorf("expected 4s delay, got %v", sc.Delay)
		}
		if sc.MaxRetries != 3 {
			t.Errorf("expected 3 retries, got %d", sc.MaxRetries)
		}
	})
}

// TestFileMerge verifies a user config file overlays the built-in table.
func TestFileMerge(t *testing.T) {
	t.Parallel()

	t.Run("user seeds replace built-in seeds", func(t *testing.T) {
		t.Parallel()
		base := BuiltinSiteConfigs()
		base.Merge(&File{Seeds: []string{"https://example.org/books"}})
		if len(base.Seeds) != 1 || base.Seeds[0] != "https://example.org/books" {
			t.Errorf("expected user seed list, got %v", base.Seeds)
		}
	})

	t.Run("user site entry replaces built-in entry for the host", func(t *testing.T) {
		t.Parallel()
		base := BuiltinSiteConfigs()
		base.Merge(&File{
			Sites: map[string]SiteConfig{
				"archive.org": {Delay: 10 * time.Second},
			},
		})
		sc := base.GetSiteConfig("archive.org")
		if sc.Delay != 10*time.Second {
			t.Errorf("expected user 10s delay, got %v", sc.Delay)
		}
		// Whole-entry replacement: the built-in RequireReferer is gone.
		if sc.RequireReferer {
			t.Error("expected user entry to replace built-in entry entirely")
		}
	})

	t.Run("other hosts keep built-in entries", func(t *testing.T) {
		t.Parallel()
		base := BuiltinSiteConfigs()
		base.Merge(&File{
			Sites: map[string]SiteConfig{
				"example.org": {Delay: time.Second},
			},
		})
		if sc := base.GetSiteConfig("ignca.gov.in"); sc.Delay != 4*time.Second {
			t.Errorf("expected built-in ignca entry to survive, got %v", sc.Delay)
		}
	})

	t.Run("nil merge is a no-op", func(t *testing.T) {
		t.Parallel()
		base := BuiltinSiteConfigs()
		base.Merge(nil)
		if sc := base.GetSiteConfig("archive.org"); !sc.RequireReferer {
			t.Error("expected built-in table to be unchanged")
		}
	})

	t.Run("user defaults overlay base defaults", func(t *testing.T) {
		t.Parallel()
		base := &File{Defaults: SiteConfig{Delay: time.Second}}
		base.Merge(&File{Defaults: SiteConfig{MaxRetries: 7}})
		if base.Defaults.Delay != time.Second {
			t.Errorf("expected base delay to survive, got %v", base.Defaults.Delay)
		}
		if base.Defaults.MaxRetries != 7 {
			t.Errorf("expected merged retries, got %d", base.Defaults.MaxRetries)
		}
	})
}
