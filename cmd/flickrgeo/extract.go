package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"flickrgeo/pkg/auth"
	"flickrgeo/pkg/checkpoint"
	"flickrgeo/pkg/config"
	"flickrgeo/pkg/export"
	"flickrgeo/pkg/extractor"
	"flickrgeo/pkg/flickr"
	"flickrgeo/pkg/logger"
	"flickrgeo/pkg/ui"
)

var (
	// Extract command flags
	bboxFlag     string
	numSeg       int
	fromYear     int
	toYear       int
	capFlag      int
	outputDir    string
	zipOutput    bool
	workers      int
	accountName  string
	extraParams  []string
	resumeRun    bool
	forceRestart bool
	noProgress   bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <run-name>",
	Short: "Extract geotagged photo metadata from a bounding box",
	Long: `Extract all geotagged photo records inside a bounding box over a range
of years and export them as a single CSV file.

An API key is required, configured either through:
  - Stored credentials (use 'flickrgeo auth login' to store)
  - The FLICKRGEO_API_KEY environment variable
  - Configuration file

The run name identifies the extraction: it names the output file, the
intermediate per-cell part files, and the checkpoint used for resuming.`,
	Example: `  # Extract photos taken in central Amsterdam between 2012 and 2016
  flickrgeo extract amsterdam --bbox "4.85,52.33,4.95,52.40" --from 2012 --to 2016

  # Subdivide a dense area into a 4x4 grid of sub-queries
  flickrgeo extract amsterdam --bbox "4.85,52.33,4.95,52.40" --from 2012 --to 2016 --num-seg 4

  # Resume an interrupted run
  flickrgeo extract amsterdam --resume

  # Zip the export and pass an extra API parameter
  flickrgeo extract amsterdam --bbox "4.85,52.33,4.95,52.40" --zip --param tag_mode=all`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&bboxFlag, "bbox", "b", "", "bounding box as min_lon,min_lat,max_lon,max_lat")
	extractCmd.Flags().IntVar(&numSeg, "num-seg", 0, "divide the box into num-seg x num-seg sub-areas")
	extractCmd.Flags().IntVar(&fromYear, "from", 0, "first year of the date range")
	extractCmd.Flags().IntVar(&toYear, "to", 0, "last year of the date range (inclusive)")
	extractCmd.Flags().IntVar(&capFlag, "cap", 0, "per-query result cap to plan around")
	extractCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./output)")
	extractCmd.Flags().BoolVar(&zipOutput, "zip", false, "compress the final CSV into a zip archive")
	extractCmd.Flags().IntVar(&workers, "workers", 0, "number of cells fetched concurrently")
	extractCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored API key")
	extractCmd.Flags().StringArrayVar(&extraParams, "param", nil, "extra API parameter as key=value (repeatable)")
	extractCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the run's checkpoint")
	extractCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard any previous artifacts of this run and start over")
	extractCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
}

func runExtract(cmd *cobra.Command, args []string) {
	runName := strings.TrimSpace(args[0])

	flags := map[string]interface{}{
		"run-name": runName,
	}
	if bboxFlag != "" {
		flags["bbox"] = bboxFlag
	}
	if numSeg > 0 {
		flags["num-seg"] = numSeg
	}
	if fromYear > 0 {
		flags["from"] = fromYear
	}
	if toYear > 0 {
		flags["to"] = toYear
	}
	if capFlag > 0 {
		flags["cap"] = capFlag
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if zipOutput {
		flags["zip"] = true
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if resumeRun {
		flags["resume"] = true
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if len(extraParams) > 0 {
		params, err := parseParams(extraParams)
		if err != nil {
			ui.PrintError("Invalid --param value", err.Error())
			os.Exit(1)
		}
		flags["params"] = params
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := resolveCredentials(cfg); err != nil {
		ui.PrintError("No API key found", err.Error())
		fmt.Println("\nTo store an API key securely, run:")
		fmt.Println("  flickrgeo auth login")
		fmt.Println("\nYou can also set an environment variable:")
		fmt.Println("  export FLICKRGEO_API_KEY=your_api_key")
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("flickrgeo starting")

	if !quiet {
		ui.PrintInfo("Run", runName)
		ui.PrintInfo("Bounding box", cfg.Search.BBox)
		ui.PrintInfo("Years", fmt.Sprintf("%d..%d", cfg.Search.StartYear, cfg.Search.EndYear))
		ui.PrintInfo("Grid", fmt.Sprintf("%dx%d", cfg.Search.NumSeg, cfg.Search.NumSeg))
	}

	client := flickr.NewClient(cfg, log)
	writer, err := export.NewWriter(cfg.Output.Directory, cfg.Output.OverwriteExisting, log)
	if err != nil {
		ui.PrintError("Failed to prepare output directory", err.Error())
		os.Exit(1)
	}
	store, err := checkpoint.NewStore("")
	if err != nil {
		ui.PrintError("Failed to prepare checkpoint store", err.Error())
		os.Exit(1)
	}

	ext := extractor.New(cfg, client, writer, store, log)

	if forceRestart {
		if err := ext.CleanRun(runName); err != nil {
			ui.PrintError("Failed to clean previous run", err.Error())
			os.Exit(1)
		}
		log.WithField("run_name", runName).Info("previous run artifacts removed")
	}

	var progress *ui.CellProgress
	if !quiet && !noProgress {
		progress = ui.NewCellProgress(cfg.Search.NumSeg*cfg.Search.NumSeg, nil)
		ext.OnProgress = progress.Update
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := ext.Run(ctx)
	if progress != nil {
		progress.Wait()
	}
	if err != nil {
		log.WithError(err).WithField("run_name", runName).Error("extraction failed")
		ui.PrintError("Extraction failed", err.Error())
		os.Exit(1)
	}

	log.WithField("run_name", runName).Info("extraction completed successfully")
	ui.PrintSuccess(fmt.Sprintf("Extracted %d records", summary.Records))
	ui.PrintInfo("Output", summary.OutputPath)
}

// resolveCredentials fills in the API key from stored accounts when the
// config and environment did not provide one
func resolveCredentials(cfg *config.Config) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}

	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found; use 'flickrgeo auth list' to see stored accounts", accountName)
		}
		cfg.Flickr.APIKey = account.APIKey
		cfg.Flickr.APISecret = account.APISecret
		if !quiet {
			ui.PrintInfo("Using account", account.Label)
		}
		return nil
	}

	if cfg.Flickr.APIKey != "" {
		return nil
	}

	account, err := manager.RetrieveDefault()
	if err != nil {
		return err
	}
	cfg.Flickr.APIKey = account.APIKey
	cfg.Flickr.APISecret = account.APISecret
	if !quiet {
		ui.PrintInfo("Using account", account.Label)
	}
	return nil
}

// parseParams splits repeated key=value flags into a map
func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		params[key] = value
	}
	return params, nil
}
