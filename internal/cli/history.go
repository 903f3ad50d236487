package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/atomicfu/internal/config"
	"github.com/roach88/atomicfu/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Status  string // optional - filter to one status
}

// HistoryResult holds the journaled runs of one unit, or of all units.
type HistoryResult struct {
	Unit  string       `json:"unit,omitempty"`
	Runs  []store.Run  `json:"runs"`
	Stats HistoryStats `json:"stats"`
}

// HistoryStats counts runs by status.
type HistoryStats struct {
	Total   int `json:"total"`
	OK      int `json:"ok"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [unit]",
		Short: "Show journaled runs",
		Long: `Show the runs recorded in the journal, oldest first.

Without a unit name every run is shown.

Examples:
  atomicfu history --journal atomicfu.db
  atomicfu history counter.kt --journal atomicfu.db
  atomicfu history counter.kt --journal atomicfu.db --status failed --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			unit := ""
			if len(args) == 1 {
				unit = args[0]
			}
			return runHistory(opts, unit, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite run journal path (default from config)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter to runs with this status (ok|failed|skipped)")

	return cmd
}

func runHistory(opts *HistoryOptions, unit string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	journal := opts.project().Journal
	if cmd.Flags().Changed("journal") {
		journal = opts.Journal
	}
	if journal == "" {
		return NewExitError(ExitCommandError, "no journal configured: pass --journal or set journal in "+config.FileName)
	}
	// Opening creates a journal; history only reads existing ones.
	if _, err := os.Stat(journal); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", journal))
	}
	switch store.Status(opts.Status) {
	case "", store.StatusOK, store.StatusFailed, store.StatusSkipped:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be one of ok, failed, skipped", opts.Status))
	}

	st, err := store.Open(journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	runs, err := st.ReadRuns(context.Background(), unit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	result := HistoryResult{Unit: unit, Runs: []store.Run{}}
	for _, run := range runs {
		if opts.Status != "" && string(run.Status) != opts.Status {
			continue
		}
		result.Runs = append(result.Runs, run)
		result.Stats.Total++
		switch run.Status {
		case store.StatusOK:
			result.Stats.OK++
		case store.StatusFailed:
			result.Stats.Failed++
		case store.StatusSkipped:
			result.Stats.Skipped++
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result)
}

func outputHistoryText(formatter *OutputFormatter, result HistoryResult) error {
	w := formatter.Writer
	if len(result.Runs) == 0 {
		if result.Unit != "" {
			fmt.Fprintf(w, "No runs found for unit: %s\n", result.Unit)
		} else {
			fmt.Fprintln(w, "No runs found.")
		}
		return nil
	}

	for _, run := range result.Runs {
		fmt.Fprintf(w, "[%d] %s %-7s %s", run.Seq, run.ID, run.Status, run.Unit)
		switch run.Status {
		case store.StatusOK:
			fmt.Fprintf(w, " (%d rewrites)", run.Rewrites)
		case store.StatusFailed:
			fmt.Fprintf(w, ": %s", run.Error)
		}
		fmt.Fprintln(w)

		if formatter.Verbose {
			fmt.Fprintf(w, "    input:  %s\n", run.InputHash)
			if run.OutputHash != "" {
				fmt.Fprintf(w, "    output: %s\n", run.OutputHash)
			}
			fmt.Fprintf(w, "    library %s, pass %s\n", run.LibraryVersion, run.PassVersion)
			if counts := formatCounts(run.Counts); counts != "" {
				fmt.Fprintf(w, "    %s\n", counts)
			}
		}
	}

	fmt.Fprintf(w, "\n%d run(s): %d ok, %d skipped, %d failed\n",
		result.Stats.Total, result.Stats.OK, result.Stats.Skipped, result.Stats.Failed)
	return nil
}

// formatCounts renders non-zero counters in key order.
func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
