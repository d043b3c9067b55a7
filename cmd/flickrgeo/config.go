package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"flickrgeo/pkg/config"
	"flickrgeo/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage flickrgeo configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FLICKRGEO_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.flickrgeo.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like the API key will be masked.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".flickrgeo.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# flickrgeo configuration file
#
# You can also use environment variables prefixed with FLICKRGEO_
# For example: FLICKRGEO_API_KEY, FLICKRGEO_OUTPUT_DIR

# API access
flickr:
  # API key (required)
  # Request one at https://www.flickr.com/services/apps/create/
  api_key: ""

  # API secret (optional, only needed for authenticated calls)
  api_secret: ""

# Search parameters
search:
  # Bounding box as min_lon,min_lat,max_lon,max_lat
  bbox: ""

  # Divide the box into num_seg x num_seg sub-areas.
  # Use higher values for dense areas so sub-queries stay under the cap.
  num_seg: 1

  # Date range in years, inclusive
  start_year: 2010
  end_year: 2020

  # Per-query result cap to plan around. The API serves at most this
  # many results per query no matter how many match.
  cap: 4000

  # Results per page, maximum 250
  per_page: 250

# Rate limiting
rate_limit:
  # Query budget per rolling hour
  queries_per_hour: 3600

  # Maximum retry attempts for failed queries
  max_retries: 3

# Output
output:
  # Directory for exports and intermediate part files
  directory: "./output"

  # Compress the final CSV into a zip archive
  zip: false

# Extraction
extract:
  # Number of grid cells fetched concurrently
  workers: 1

  # Per-query timeout in nanoseconds (default 60s)
  # query_timeout: 60000000000

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file and add your API key")
	fmt.Println("2. Run 'flickrgeo config validate' to check the configuration")
	fmt.Println("3. Start an extraction with 'flickrgeo extract <run-name>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	displayCfg.Flickr.APIKey = maskValue(displayCfg.Flickr.APIKey)
	displayCfg.Flickr.APISecret = maskValue(displayCfg.Flickr.APISecret)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FLICKRGEO_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			".flickrgeo.yaml",
			".flickrgeo.yml",
			filepath.Join(os.Getenv("HOME"), ".flickrgeo.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "flickrgeo", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings []string
	var errs []string

	if cfg.Flickr.APIKey == "" {
		warnings = append(warnings, "API key not configured")
	}
	if cfg.Search.BBox == "" {
		warnings = append(warnings, "bounding box not configured; pass --bbox at extraction time")
	}

	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(errs) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Grid: %dx%d\n", cfg.Search.NumSeg, cfg.Search.NumSeg)
	fmt.Printf("  Query cap: %d\n", cfg.Search.Cap)
	fmt.Printf("  Rate limit: %d queries/hour\n", cfg.RateLimit.QueriesPerHour)
	fmt.Printf("  Workers: %d\n", cfg.Extract.Workers)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

func maskValue(v string) string {
	if v == "" {
		return v
	}
	if len(v) > 8 {
		return v[:4] + "..." + v[len(v)-4:]
	}
	return "***"
}
