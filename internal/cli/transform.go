package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/atomicfu/internal/config"
	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/store"
	"github.com/roach88/atomicfu/internal/transform"
)

// TransformOptions holds flags for the transform command.
type TransformOptions struct {
	*RootOptions
	Library string // runtime surface file
	Output  string // output directory, "-" for stdout
	Journal string // SQLite run journal
	Jobs    int    // concurrent passes
	Force   bool   // transform even when the journal says the output is current
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Path     string           `json:"path"`
	Unit     string           `json:"unit,omitempty"`
	Status   store.Status     `json:"status"`
	RunID    string           `json:"run_id,omitempty"`
	Rewrites int              `json:"rewrites"`
	Stats    *transform.Stats `json:"stats,omitempty"`
	Output   string           `json:"output,omitempty"`   // written file
	Rendered string           `json:"rendered,omitempty"` // stdout mode only
	Code     string           `json:"code,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// TransformResult holds the outcome of a transform invocation.
type TransformResult struct {
	Units   []UnitResult `json:"units"`
	OK      int          `json:"ok"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
}

// NewTransformCommand creates the transform command.
func NewTransformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transform <unit-files or dirs...>",
		Short: "Erase atomic wrappers from units",
		Long: `Decode unit documents, run the wrapper-erasure pass over each of
them and write the rendered result.

Units are transformed concurrently. With a journal, every pass is recorded
and units whose input, library version and pass version are unchanged since
their last successful run are skipped unless --force is given.

Exit codes:
  0 - All units transformed or skipped
  1 - One or more units failed
  2 - Command error (invalid paths, unloadable library, journal errors)

Examples:
  atomicfu transform ./units
  atomicfu transform counter.yaml -o out/
  atomicfu transform ./units -o out/ --journal atomicfu.db --jobs 4`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(opts, args, cmd)
		},
	}

	addPipelineFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Force, "force", false, "transform units even when their journaled output is current")

	return cmd
}

// addPipelineFlags registers the flags shared by transform and watch.
func addPipelineFlags(cmd *cobra.Command, opts *TransformOptions) {
	cmd.Flags().StringVar(&opts.Library, "library", "", "runtime library surface file (default embedded)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "output directory, - for stdout")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite run journal path")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "concurrent passes (0 = one per unit)")
}

// settings merges the flags that were set over the project configuration.
func (o *TransformOptions) settings(cmd *cobra.Command) config.Config {
	cfg := o.project()
	flags := cmd.Flags()
	if flags.Changed("library") {
		cfg.Library = o.Library
	}
	if flags.Changed("output") {
		cfg.Output = o.Output
	}
	if flags.Changed("journal") {
		cfg.Journal = o.Journal
	}
	if flags.Changed("jobs") {
		cfg.Jobs = o.Jobs
	}
	return cfg
}

func runTransform(opts *TransformOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings(cmd)
	if err := cfg.Validate(); err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err)
	}

	files, err := FindUnitFiles(paths)
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}
	formatter.VerboseLog("Found %d unit file(s)", len(files))

	ctx := commandContext(cmd)
	p, err := newPipeline(ctx, cfg, opts.Force, opts.logger())
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}
	defer p.Close()

	results, err := p.run(ctx, files)
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}

	return outputTransformResult(formatter, summarize(results), cfg.Output == "-")
}

// pipeline decodes, transforms, writes and journals units.
// Safe for concurrent use by the goroutines of one run.
type pipeline struct {
	cfg     config.Config
	force   bool
	surface *library.Surface
	journal *store.Store // nil when journaling is disabled
	clock   *store.Clock
	ids     store.IDGenerator
	logger  *slog.Logger
}

func newPipeline(ctx context.Context, cfg config.Config, force bool, logger *slog.Logger) (*pipeline, error) {
	surface, err := LoadSurface(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     cfg,
		force:   force,
		surface: surface,
		clock:   store.NewClockAt(0),
		ids:     store.UUIDv7Generator{},
		logger:  logger,
	}
	if cfg.Journal == "" {
		return p, nil
	}

	st, err := store.Open(cfg.Journal)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeJournal, Message: err.Error(), Path: cfg.Journal}
	}
	next, err := st.NextSeq(ctx)
	if err != nil {
		st.Close()
		return nil, &LoadError{Code: ErrCodeJournal, Message: err.Error(), Path: cfg.Journal}
	}
	p.journal = st
	p.clock = store.NewClockAt(next - 1)
	return p, nil
}

// Close closes the journal, if any.
func (p *pipeline) Close() error {
	if p.journal == nil {
		return nil
	}
	return p.journal.Close()
}

// run processes files concurrently, bounded by cfg.Jobs. Results are in
// input order. Unit failures are reported in the results; the returned
// error is reserved for duplicate units and output and journal failures.
//
// Every file is decoded before any is transformed. Outputs and journal
// entries are keyed by unit name, so two files declaring the same unit are
// rejected before either is written.
func (p *pipeline) run(ctx context.Context, files []string) ([]UnitResult, error) {
	results := make([]UnitResult, len(files))
	units := make([]*Unit, len(files))

	err := p.each(ctx, len(files), func(ctx context.Context, i int) error {
		u, err := LoadUnit(files[i], p.surface)
		if err != nil {
			p.logger.Warn("unit not decoded", "path", files[i], "error", err)
			results[i] = UnitResult{Path: files[i], Status: store.StatusFailed, Code: ErrorCode(err), Error: err.Error()}
			return nil
		}
		units[i] = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := checkUnitNames(units); err != nil {
		return nil, err
	}

	err = p.each(ctx, len(units), func(ctx context.Context, i int) error {
		if units[i] == nil {
			return nil
		}
		res, err := p.unit(ctx, units[i])
		if err != nil {
			return err
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// each calls fn for 0..n-1 concurrently, bounded by cfg.Jobs, and stops at
// the first error.
func (p *pipeline) each(ctx context.Context, n int, fn func(context.Context, int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if p.cfg.Jobs > 0 {
		g.SetLimit(p.cfg.Jobs)
	}
	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}

// checkUnitNames rejects decoded units that would share an output file.
// Nil entries are units that failed to decode.
func checkUnitNames(units []*Unit) error {
	seen := make(map[string]string, len(units))
	for _, u := range units {
		if u == nil {
			continue
		}
		key := outputPath("", u.File.Name)
		if first, ok := seen[key]; ok {
			return &LoadError{
				Code:    ErrCodeDuplicateUnit,
				Message: fmt.Sprintf("unit %s is declared by both %s and %s", u.File.Name, first, u.Path),
				Path:    u.Path,
			}
		}
		seen[key] = u.Path
	}
	return nil
}

// unit transforms one decoded unit.
func (p *pipeline) unit(ctx context.Context, u *Unit) (UnitResult, error) {
	if err := ctx.Err(); err != nil {
		return UnitResult{}, err
	}
	path := u.Path

	run := store.Run{
		Unit:           u.File.Name,
		InputHash:      ir.SourceHash(u.Data),
		LibraryVersion: p.surface.Version.String(),
		PassVersion:    ir.PassVersion,
	}
	res := UnitResult{Path: path, Unit: u.File.Name}

	if p.cfg.Output != "-" {
		res.Output = outputPath(p.cfg.Output, u.File.Name)
	}

	if prev, ok, err := p.current(ctx, run, res.Output); err != nil {
		return UnitResult{}, err
	} else if ok {
		run.Status = store.StatusSkipped
		run.OutputHash = prev.OutputHash
		p.logger.Debug("unit skipped", "unit", run.Unit, "previous_run", prev.ID)
		return p.record(ctx, run, res)
	}

	stats, err := transform.Transform(u.File, p.surface.Context(u.File), transform.Options{Logger: p.logger})
	res.Stats = &stats
	res.Rewrites = stats.Rewrites()
	run.Rewrites = int64(stats.Rewrites())
	run.Counts = stats.Counts()
	if err != nil {
		p.logger.Warn("unit failed", "unit", run.Unit, "error", err)
		run.Status = store.StatusFailed
		run.Error = err.Error()
		res.Code = ErrorCode(err)
		res.Error = err.Error()
		res.Output = ""
		return p.record(ctx, run, res)
	}

	rendered := ir.Render(u.File)
	if run.OutputHash, err = ir.UnitHash(u.File); err != nil {
		return UnitResult{}, err
	}
	run.Status = store.StatusOK

	if res.Output == "" {
		res.Rendered = rendered
	} else if err := writeOutput(res.Output, rendered); err != nil {
		return UnitResult{}, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Path: res.Output}
	}
	return p.record(ctx, run, res)
}

// current reports whether the journal shows an up-to-date output for run.
// Stdout mode and --force never skip.
func (p *pipeline) current(ctx context.Context, run store.Run, output string) (store.Run, bool, error) {
	if p.journal == nil || p.force || output == "" {
		return store.Run{}, false, nil
	}
	prev, ok, err := p.journal.LastOutput(ctx, run.Unit)
	if err != nil {
		return store.Run{}, false, &LoadError{Code: ErrCodeJournal, Message: err.Error(), Path: p.cfg.Journal}
	}
	if !ok ||
		prev.InputHash != run.InputHash ||
		prev.LibraryVersion != run.LibraryVersion ||
		prev.PassVersion != run.PassVersion {
		return store.Run{}, false, nil
	}
	if _, err := os.Stat(output); err != nil {
		return store.Run{}, false, nil
	}
	return prev, true, nil
}

// record stamps run with an id and seq and journals it.
func (p *pipeline) record(ctx context.Context, run store.Run, res UnitResult) (UnitResult, error) {
	res.Status = run.Status
	if p.journal == nil {
		return res, nil
	}
	run.ID = p.ids.Generate()
	run.Seq = p.clock.Next()
	if err := p.journal.WriteRun(ctx, run); err != nil {
		return UnitResult{}, &LoadError{Code: ErrCodeJournal, Message: err.Error(), Path: p.cfg.Journal}
	}
	res.RunID = run.ID
	return res, nil
}

// outputPath names the rendered file of a unit: counter.kt -> dir/counter.kt.txt.
func outputPath(dir, unit string) string {
	name := unit
	if !strings.HasSuffix(name, ".kt") {
		name += ".kt"
	}
	return filepath.Join(dir, name+".txt")
}

func writeOutput(path, rendered string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(rendered), 0644)
}

func summarize(units []UnitResult) TransformResult {
	result := TransformResult{Units: units}
	for _, u := range units {
		switch u.Status {
		case store.StatusOK:
			result.OK++
		case store.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result
}

// outputTransformResult prints the results. In stdout mode the text format
// prints the rendered units to stdout and failures to stderr.
func outputTransformResult(formatter *OutputFormatter, result TransformResult, stdout bool) error {
	if formatter.Format == "json" {
		if result.Failed > 0 {
			return formatter.Failure(ErrCodeUnitsFailed, fmt.Sprintf("%d unit(s) failed", result.Failed), result)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, u := range result.Units {
		switch {
		case u.Status == store.StatusFailed:
			out := w
			if stdout {
				out = formatter.GetErrWriter()
			}
			fmt.Fprintf(out, "✗ %s\n  Error [%s]: %s\n", u.Path, u.Code, u.Error)
		case stdout:
			fmt.Fprint(w, u.Rendered)
		case u.Status == store.StatusSkipped:
			fmt.Fprintf(w, "- %s (unchanged) → %s\n", u.Unit, u.Output)
		default:
			fmt.Fprintf(w, "✓ %s (%d rewrites) → %s\n", u.Unit, u.Rewrites, u.Output)
		}
	}

	if !stdout {
		fmt.Fprintf(w, "\n%d transformed, %d skipped, %d failed\n", result.OK, result.Skipped, result.Failed)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", result.Failed))
	}
	return nil
}

// outputCommandError reports an error that prevented the command from
// running and returns the command error exit code.
func outputCommandError(formatter *OutputFormatter, code string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if ferr := formatter.Error(code, err.Error(), nil); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitCommandError, code, err)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
