package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/atomicfu/internal/transform"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Library     string
	NoTransform bool // check the units as written instead of after the pass
}

// CheckedUnit holds the leftovers of one unit.
type CheckedUnit struct {
	Path      string               `json:"path"`
	Unit      string               `json:"unit,omitempty"`
	Leftovers []transform.Leftover `json:"leftovers"`
	Code      string               `json:"code,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// CheckResult holds the outcome of a check invocation.
type CheckResult struct {
	Units     []CheckedUnit `json:"units"`
	Leftovers int           `json:"leftovers"`
	Failed    int           `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <unit-files or dirs...>",
		Short: "Report wrapper references left after the pass",
		Long: `Decode units, run the pass and report every wrapper type that is
still reachable: declared types, expression types, unexpanded inline
extensions and calls on wrapper receivers.

With --no-transform the units are checked as written, which lists every
place the pass would have to rewrite.

Exit codes:
  0 - No leftovers
  1 - Leftovers found or a unit failed
  2 - Command error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Library, "library", "", "runtime library surface file (default embedded)")
	cmd.Flags().BoolVar(&opts.NoTransform, "no-transform", false, "check units without running the pass")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.project()
	if cmd.Flags().Changed("library") {
		cfg.Library = opts.Library
	}
	logger := opts.logger()

	files, err := FindUnitFiles(paths)
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}
	surface, err := LoadSurface(commandContext(cmd), cfg, logger)
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}

	result := CheckResult{Units: make([]CheckedUnit, 0, len(files))}
	for _, path := range files {
		checked := CheckedUnit{Path: path, Leftovers: []transform.Leftover{}}

		u, err := LoadUnit(path, surface)
		if err == nil && !opts.NoTransform {
			formatter.VerboseLog("Transforming %s", path)
			_, err = transform.Transform(u.File, surface.Context(u.File), transform.Options{Logger: logger})
		}
		if err != nil {
			checked.Code = ErrorCode(err)
			checked.Error = err.Error()
			result.Failed++
			result.Units = append(result.Units, checked)
			continue
		}

		checked.Unit = u.File.Name
		if leftovers := transform.Check(u.File); len(leftovers) > 0 {
			checked.Leftovers = leftovers
		}
		result.Leftovers += len(checked.Leftovers)
		result.Units = append(result.Units, checked)
	}

	return outputCheckResult(formatter, result)
}

func outputCheckResult(formatter *OutputFormatter, result CheckResult) error {
	failed := result.Failed > 0 || result.Leftovers > 0
	message := fmt.Sprintf("%d leftover(s), %d unit(s) failed", result.Leftovers, result.Failed)
	code := ErrCodeLeftovers
	if result.Failed > 0 {
		code = ErrCodeUnitsFailed
	}

	if formatter.Format == "json" {
		if failed {
			return formatter.Failure(code, message, result)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, u := range result.Units {
		switch {
		case u.Error != "":
			fmt.Fprintf(w, "✗ %s\n  Error [%s]: %s\n", u.Path, u.Code, u.Error)
		case len(u.Leftovers) > 0:
			fmt.Fprintf(w, "✗ %s\n", u.Unit)
			for _, l := range u.Leftovers {
				fmt.Fprintf(w, "  %s\n", l)
			}
		default:
			fmt.Fprintf(w, "✓ %s\n", u.Unit)
		}
	}

	if failed {
		fmt.Fprintf(w, "\n%s\n", message)
		return NewExitError(ExitFailure, message)
	}
	return nil
}
