package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"flickrgeo/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flickrgeo",
	Short: "Extract geotagged photo metadata from the Flickr API",
	Long: `flickrgeo queries the Flickr photo search API for geotagged photos
inside a bounding box and exports their metadata as CSV.

The API never returns more than a few thousand results per query, no
matter how many actually match. flickrgeo works around the cap by
dividing the area into a grid of sub-areas and walking each one through
the date range in adaptively sized time windows, so dense city centers
and empty countryside both get covered with a sensible number of
queries.

Features:
  - Secure API key storage using system keychain
  - Grid subdivision with per-cell checkpointing and resume
  - Adaptive time windowing driven by observed photo density
  - Rate limiting within the API's hourly query budget
  - Automatic retry with exponential backoff`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		}
		if !quiet && cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .flickrgeo.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`flickrgeo {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
