package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// LibraryOptions holds flags for the library command.
type LibraryOptions struct {
	*RootOptions
	Library string
	Source  bool // print the surface source instead of the summary
}

// PackageSummary describes one package of the surface.
type PackageSummary struct {
	Package   string   `json:"package"`
	Classes   []string `json:"classes"`
	Functions []string `json:"functions"`
	Helpers   int      `json:"helpers"`
}

// LibrarySummary describes a compiled surface.
type LibrarySummary struct {
	Version  string           `json:"version"`
	Source   string           `json:"source"`
	Packages []PackageSummary `json:"packages"`
}

// NewLibraryCommand creates the library command.
func NewLibraryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Show the runtime library surface",
		Long: `Compile the runtime library surface and summarize it: its version,
and the classes, functions and runtime helpers of every package.

Examples:
  atomicfu library
  atomicfu library --library surface-0.21.cue -v
  atomicfu library --source > surface.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLibrary(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Library, "library", "", "runtime library surface file (default embedded)")
	cmd.Flags().BoolVar(&opts.Source, "source", false, "print the surface source")

	return cmd
}

func runLibrary(opts *LibraryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.project()
	if cmd.Flags().Changed("library") {
		cfg.Library = opts.Library
	}

	surface, err := LoadSurface(commandContext(cmd), cfg, opts.logger())
	if err != nil {
		return outputCommandError(formatter, ErrorCode(err), err)
	}

	if opts.Source {
		src := library.Embedded()
		if cfg.Library != "" {
			if src, err = os.ReadFile(cfg.Library); err != nil {
				return WrapExitError(ExitCommandError, "failed to read library surface", err)
			}
		}
		_, err := cmd.OutOrStdout().Write(src)
		return err
	}

	summary := summarizeSurface(surface)
	if opts.Format == "json" {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Library %s (%s)\n\n", summary.Version, summary.Source)
	for _, pkg := range summary.Packages {
		fmt.Fprintf(w, "%s: %d class(es), %d function(s)", pkg.Package, len(pkg.Classes), len(pkg.Functions))
		if pkg.Helpers > 0 {
			fmt.Fprintf(w, ", %d runtime helper(s)", pkg.Helpers)
		}
		fmt.Fprintln(w)
		if opts.Verbose {
			if len(pkg.Classes) > 0 {
				fmt.Fprintf(w, "  classes:   %s\n", strings.Join(pkg.Classes, ", "))
			}
			if len(pkg.Functions) > 0 {
				fmt.Fprintf(w, "  functions: %s\n", strings.Join(pkg.Functions, ", "))
			}
		}
	}
	return nil
}

// summarizeSurface lists the declarations of every package, sorted by name.
// Overloads are listed once.
func summarizeSurface(s *library.Surface) LibrarySummary {
	summary := LibrarySummary{
		Version:  s.Version.String(),
		Source:   s.Source,
		Packages: make([]PackageSummary, 0, len(s.Files)),
	}
	for _, f := range s.Files {
		pkg := PackageSummary{Package: f.Package, Classes: []string{}, Functions: []string{}}
		seen := make(map[string]bool)
		for _, d := range f.Decls {
			switch n := d.(type) {
			case *ir.Class:
				pkg.Classes = append(pkg.Classes, n.Name)
			case *ir.Function:
				if seen[n.Name] {
					continue
				}
				seen[n.Name] = true
				pkg.Functions = append(pkg.Functions, n.Name)
				if strings.HasPrefix(n.Name, wrapper.HelperPrefix) {
					pkg.Helpers++
				}
			}
		}
		sort.Strings(pkg.Classes)
		sort.Strings(pkg.Functions)
		summary.Packages = append(summary.Packages, pkg)
	}
	sort.Slice(summary.Packages, func(i, j int) bool {
		return summary.Packages[i].Package < summary.Packages[j].Package
	})
	return summary
}
