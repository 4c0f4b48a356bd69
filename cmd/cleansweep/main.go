// Package main provides the CLI entry point for the Cleansweep engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleansweep/engine/internal/cli"
	"github.com/cleansweep/engine/internal/config"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitValidationError = 1
	ExitParseError      = 2
	ExitRuntimeError    = 3
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	logFormat string
	logFile   string

	// Run command flags
	dryRun     bool
	inputPath  string
	outputPath string

	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWith(ExitRuntimeError)
	}
}

// exitWith flushes the log file before terminating with code.
func exitWith(code int) {
	logger.CloseLogFile()
	os.Exit(code)
}

var rootCmd = &cobra.Command{
	Use:   "cleansweep",
	Short: "Cleansweep - Document curation engine",
	Long: `Cleansweep runs rule-based cleaning passes over document batches.

It parses and validates curation settings (JSON/YAML format), then runs
the configured pass: read the source files, apply the cleaning rules in
order, evaluate data-quality expectations and write the cleaned target.

Examples:
  # Validate a settings file
  cleansweep validate curation.yaml

  # Run a curation pass
  cleansweep run curation.yaml

  # Preview a pass without writing the target
  cleansweep run --dry-run curation.yaml`,
}

var validateCmd = &cobra.Command{
	Use:   "validate <settings-file>",
	Short: "Validate a curation settings file",
	Long: `Validate a curation settings file against the schema.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Settings are valid
  1 - Validation errors (schema violations)
  2 - Parse errors (invalid JSON/YAML syntax)

Examples:
  cleansweep validate curation.json
  cleansweep validate curation.yaml
  cleansweep validate --verbose curation.json`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

var runCmd = &cobra.Command{
	Use:   "run <settings-file>",
	Short: "Run a curation pass from a settings file",
	Long: `Run the curation pass defined in the settings file.

The settings file is first validated against the schema. If validation
fails, the pass will not run.

Flags:
  --dry-run         Apply the rules without writing the target file
  --input <path>    Override the configured source path or glob
  --output <path>   Override the configured target path

Exit codes:
  0 - Curation pass completed successfully
  1 - Validation errors
  2 - Parse errors
  3 - Runtime errors

Examples:
  cleansweep run curation.json
  cleansweep run --verbose curation.yaml
  cleansweep run --dry-run curation.json`,
	Args: cobra.ExactArgs(1),
	Run:  runCuration,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, commit hash, and build date information.",
	Run:   runVersion,
}

func init() {
	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle (configureLogging reads rootCmd's flags)
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		// Flags-only logging setup; run re-applies it once the settings
		// file is loaded
		configureLogging(config.LogSettings{})
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log output format (json, human)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")

	// Run command flags
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Apply the rules without writing the target file")
	runCmd.Flags().StringVar(&inputPath, "input", "", "Override the configured source path or glob")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Override the configured target path")

	// Add commands
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// configureLogging applies the resolved log settings. Command-line
// flags take precedence over the settings file.
func configureLogging(fromSettings config.LogSettings) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	case fromSettings.Level != "":
		level = parseLogLevel(fromSettings.Level)
	}

	format := logFormat
	if !rootCmd.PersistentFlags().Changed("log-format") && fromSettings.Format != "" {
		format = fromSettings.Format
	}
	consoleFormat := logger.FormatJSON
	if format == "human" {
		consoleFormat = logger.FormatHuman
	}

	file := logFile
	if file == "" {
		file = fromSettings.File
	}
	if file != "" {
		if err := logger.SetLogFile(file, level, consoleFormat); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to open log file: %v\n", err)
			logger.SetLevelAndFormat(level, consoleFormat)
		}
		return
	}
	logger.SetLevelAndFormat(level, consoleFormat)
}

// parseLogLevel maps a settings level name to a slog level.
func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runValidate(_ *cobra.Command, args []string) {
	settingsPath := args[0]

	if !quiet {
		fmt.Printf("Validating settings: %s\n", settingsPath)
	}

	// Parse and validate settings
	result := config.ParseConfig(settingsPath)

	// Handle parse errors
	if len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(result.ParseErrors, verbose)
		exitWith(ExitParseError)
	}

	// Handle validation errors
	if len(result.ValidationErrors) > 0 {
		cli.PrintValidationErrors(result.ValidationErrors, verbose, quiet)
		exitWith(ExitValidationError)
	}

	// Success
	if !quiet {
		fmt.Printf("✓ Settings are valid (format: %s)\n", result.Format)
		if verbose {
			cli.PrintSettingsSummary(result.Data)
		}
	}
	exitWith(ExitSuccess)
}

func runCuration(_ *cobra.Command, args []string) {
	settingsPath := args[0]

	if !quiet {
		fmt.Printf("Loading curation settings: %s\n", settingsPath)
	}

	// Parse and validate settings
	result := config.ParseConfig(settingsPath)

	// Handle parse errors
	if len(result.ParseErrors) > 0 {
		cli.PrintParseErrors(result.ParseErrors, verbose)
		exitWith(ExitParseError)
	}

	// Handle validation errors
	if len(result.ValidationErrors) > 0 {
		cli.PrintValidationErrors(result.ValidationErrors, verbose, quiet)
		exitWith(ExitValidationError)
	}

	if !quiet {
		fmt.Printf("✓ Settings loaded successfully (format: %s)\n", result.Format)
	}

	// Convert settings into the typed form the runner consumes
	settings, err := config.ConvertToSettings(result.Data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to convert settings: %v\n", err)
		exitWith(ExitRuntimeError)
	}
	configureLogging(settings.Log)

	if verbose {
		fmt.Printf("  Curation: %s\n", settings.Name)
		fmt.Printf("  Source: %s\n", settings.Source.Path)
		fmt.Printf("  Rules: %d\n", len(settings.Rules))
	}

	runner := pipeline.NewRunner(settings, pipeline.Options{
		DryRun:     dryRun,
		SourcePath: inputPath,
		TargetPath: outputPath,
	})

	if !quiet {
		if dryRun {
			fmt.Println("Running curation pass (dry-run mode - target will not be written)...")
		} else {
			fmt.Println("Running curation pass...")
		}
	}

	// Interrupt signals cancel the pass between rules
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runResult, err := runner.Run(ctx)
	stop()

	cli.PrintRunResult(runResult, err, cli.OutputOptions{Verbose: verbose, Quiet: quiet, DryRun: dryRun})

	if err != nil {
		exitWith(ExitRuntimeError)
	}
	exitWith(ExitSuccess)
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Build Date: %s\n", buildDate)
}
