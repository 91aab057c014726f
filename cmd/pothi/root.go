// Package main provides the entry point for the pothi CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pothi.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pothi",
		Short: "Polite crawler and change tracker for scanned-document archives",
		Long: `Pothi crawls a fixed list of scanned-document archive sites, downloads
PDF/EPUB/DOC files it discovers, and records every acquisition in an
append-only log for downstream metadata and text-extraction stages.

A change-detection ledger tracks every downloaded document; the delta
command re-checks known URLs and re-downloads only what changed.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewDeltaCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
