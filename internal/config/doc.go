// Package config provides configuration structures and utilities for pothi.
// It defines crawl behavior defaults, per-host site overrides, and the
// loader for the optional .pothi YAML configuration file.
package config
