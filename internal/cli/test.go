package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/atomicfu/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string // glob over scenario names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Note   string   `json:"note,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios through the harness.

Each scenario names a unit, runs the pass over it and checks its
assertions. When golden/<scenario>.golden exists next to the scenario,
the rendered unit must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  atomicfu test ./scenarios
  atomicfu test ./scenarios --filter "counter_*"
  atomicfu test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], opts.formatter(cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, formatter *OutputFormatter) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to find scenarios: %v", err))
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
		if !formatter.isJSON() {
			printScenario(formatter, sr)
		}
	}

	if formatter.isJSON() {
		if result.Failed > 0 {
			return formatter.Failure(ErrCodeScenarios, fmt.Sprintf("%d scenario(s) failed", result.Failed), result)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}

func printScenario(formatter *OutputFormatter, sr ScenarioResult) {
	w := formatter.Writer
	switch {
	case !sr.Pass:
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	case sr.Note == noteNoGolden:
		fmt.Fprintf(w, "- %s (%s)\n", sr.Name, sr.Note)
	case sr.Note != "":
		fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.Note)
	default:
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
	}
}

// findScenarioFiles lists the YAML files directly in dir, sorted by name.
// Subdirectories hold units and golden files, not scenarios.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

const (
	noteGoldenUpdated = "golden updated"
	noteNoGolden      = "no output, golden not written"
)

// runScenario runs one scenario file. A golden file, when present, is
// compared only for a pass that produced output; the assertions decide
// the rest.
func runScenario(file string, update bool) ScenarioResult {
	failed := func(name string, errs ...string) ScenarioResult {
		return ScenarioResult{Name: name, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}
	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	golden := goldenFilePath(file)
	sr := ScenarioResult{Name: scenario.Name, Pass: true}
	switch {
	case update && result.Output == "":
		sr.Note = noteNoGolden
	case update:
		if err := writeGolden(golden, result.Output); err != nil {
			return failed(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		sr.Note = noteGoldenUpdated
	case result.Output != "":
		want, err := os.ReadFile(golden)
		if err != nil && !os.IsNotExist(err) {
			return failed(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if err == nil && !bytes.Equal(want, []byte(result.Output)) {
			return failed(scenario.Name, "output does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return failed(scenario.Name, result.Errors...)
	}
	return sr
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path, output string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, []byte(output), 0o644)
}
