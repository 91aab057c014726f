package config

import (
	"strings"
	"time"
)

// SiteConfig holds per-host overrides for crawl behavior.
// Keys are hostnames; a config matches a host or any of its subdomains.
type SiteConfig struct {
	// Delay overrides the global request spacing for this host.
	// Zero means use the global RequestDelay.
	Delay time.Duration `yaml:"delay,omitempty"`

	// MaxRetries overrides the global retry budget for this host.
	// Zero means use the global RetryAttempts.
	MaxRetries int `yaml:"maxRetries,omitempty"`

	// RequireReferer injects a Referer header (the discovering page URL,
	// or the site root when unknown) into requests to this host. Some
	// archives refuse document downloads without one.
	RequireReferer bool `yaml:"requireReferer,omitempty"`

	// Headers are extra HTTP headers for requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is an HTTP cookie to send with requests to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`
}

// File represents the structure of the .pothi configuration file.
type File struct {
	// Seeds replaces the built-in seed list when non-empty.
	Seeds []string `yaml:"seeds,omitempty"`

	// Sites maps hostnames to their overrides (e.g., "archive.org").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains overrides applied to all hosts unless a
	// site-specific entry overrides them again.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// BuiltinSiteConfigs returns the special-site table for hosts in the
// default seed list that are known to be fragile or to require a Referer
// header. A .pothi file merges over these entries.
func BuiltinSiteConfigs() *File {
	return &File{
		Sites: map[string]SiteConfig{
			"archive.org": {
				RequireReferer: true,
				Delay:          5 * time.Second,
				MaxRetries:     5,
			},
			"indianculture.gov.in": {
				RequireReferer: true,
				Delay:          3 * time.Second,
			},
			"ignca.gov.in": {
				Delay:      4 * time.Second,
				MaxRetries: 3,
			},
		},
	}
}

// GetSiteConfig returns the configuration for a host, merging the
// site-specific entry (exact host first, then parent-domain entries) over
// the file defaults. A host matches an entry when it equals the entry key
// or is a subdomain of it, so "web.archive.org" picks up "archive.org".
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	entry, ok := cf.Sites[host]
	if !ok {
		// Walk up the domain looking for a parent entry.
		for key, sc := range cf.Sites {
			if strings.HasSuffix(host, "."+key) {
				entry, ok = sc, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if entry.Delay != 0 {
		result.Delay = entry.Delay
	}
	if entry.MaxRetries != 0 {
		result.MaxRetries = entry.MaxRetries
	}
	if entry.RequireReferer {
		result.RequireReferer = true
	}
	if entry.Cookie != "" {
		result.Cookie = entry.Cookie
	}
	if len(entry.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range entry.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// Merge overlays other onto cf: seeds replace when non-empty, site entries
// replace per host, defaults replace field-by-field. Used to apply a user
// config file over the built-in special-site table.
func (cf *File) Merge(other *File) {
	if other == nil {
		return
	}
	if len(other.Seeds) > 0 {
		cf.Seeds = append([]string(nil), other.Seeds...)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	for host, sc := range other.Sites {
		cf.Sites[host] = sc
	}
	if other.Defaults.Delay != 0 {
		cf.Defaults.Delay = other.Defaults.Delay
	}
	if other.Defaults.MaxRetries != 0 {
		cf.Defaults.MaxRetries = other.Defaults.MaxRetries
	}
	if other.Defaults.RequireReferer {
		cf.Defaults.RequireReferer = true
	}
	if other.Defaults.Cookie != "" {
		cf.Defaults.Cookie = other.Defaults.Cookie
	}
	if len(other.Defaults.Headers) > 0 {
		if cf.Defaults.Headers == nil {
			cf.Defaults.Headers = make(map[string]string)
		}
		for k, v := range other.Defaults.Headers {
			cf.Defaults.Headers[k] = v
		}
	}
}
