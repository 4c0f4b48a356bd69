// Package cli provides CLI output formatting and display functions.
package cli

import (
	"fmt"
	"os"

	"github.com/cleansweep/engine/pkg/curation"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintRunResult displays the outcome of a curation run.
func PrintRunResult(result *curation.RunResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(os.Stderr, "✗ No run result available")
		return
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Curation run failed")
		if result.Error != nil {
			if result.Error.Stage != "" {
				fmt.Fprintf(os.Stderr, "  Stage: %s\n", result.Error.Stage)
			}
			fmt.Fprintf(os.Stderr, "  Error: %s\n", result.Error.Message)
			if opts.Verbose && result.Error.Category != "" {
				fmt.Fprintf(os.Stderr, "  Category: %s\n", result.Error.Category)
			}
		}
		if result.DQ != nil && result.DQ.Failed > 0 {
			printDQSummary(os.Stderr, result.DQ, opts.Verbose)
		}
		return
	}

	if opts.Quiet {
		return
	}

	fmt.Println("✓ Curation run completed")
	fmt.Printf("  Run ID: %s\n", result.RunID)
	fmt.Printf("  Documents read: %d\n", result.DocumentsRead)
	fmt.Printf("  Documents cleaned: %d\n", result.DocumentsCleaned)
	if removed := result.DocumentsRead - result.DocumentsCleaned; removed > 0 {
		fmt.Printf("  Documents removed: %d\n", removed)
	}
	fmt.Printf("  Rules applied: %d\n", result.RulesApplied)

	if result.DQ != nil {
		printDQSummary(os.Stdout, result.DQ, opts.Verbose)
	}

	switch {
	case opts.DryRun:
		fmt.Println("  Dry run: no target file was written")
	case result.OutputPath != "":
		fmt.Printf("  Output: %s\n", result.OutputPath)
	default:
		fmt.Println("  Output: skipped (no documents survived)")
	}

	if opts.Verbose {
		fmt.Printf("  Duration: %v\n", result.Duration())
	}
}

// printDQSummary displays the data-quality expectation outcome. Failure
// details show one line each in verbose mode.
func printDQSummary(w *os.File, s *curation.DQSummary, verbose bool) {
	if s.Expectations == 0 {
		return
	}
	if s.Passed() {
		fmt.Fprintf(w, "  Data quality: %d expectations passed\n", s.Expectations)
		return
	}

	fmt.Fprintf(w, "  Data quality: %d of %d expectations failed\n", s.Failed, s.Expectations)
	if verbose {
		for _, failure := range s.Failures {
			fmt.Fprintf(w, "    - %s\n", failure)
		}
	}
}

// PrintSettingsSummary prints the curation name, source and rule count
// from parsed settings data.
func PrintSettingsSummary(data map[string]interface{}) {
	if data == nil {
		return
	}

	if name, ok := data["name"].(string); ok && name != "" {
		fmt.Printf("  Curation: %s\n", name)
	}
	if source, ok := data["source"].(map[string]interface{}); ok {
		if path, ok := source["path"].(string); ok && path != "" {
			fmt.Printf("  Source: %s\n", path)
		}
	}
	if rules, ok := data["rules"].([]interface{}); ok {
		fmt.Printf("  Rules: %d\n", len(rules))
	}
	if plugins, ok := data["plugins"].([]interface{}); ok && len(plugins) > 0 {
		fmt.Printf("  Plugins: %d\n", len(plugins))
	}
}
