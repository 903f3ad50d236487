// Package library loads the declarations of the atomic wrapper library and
// the platform builtins the transformation lowers onto.
//
// The surface is written in CUE and embedded in the binary. A different
// surface file can be supplied at load time, for example to target a newer
// library release; its declared version must satisfy a semver constraint.
package library

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/Masterminds/semver/v3"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/resolve"
)

//go:embed surface.cue
var embedded []byte

// EmbeddedFilename is the filename reported for positions in the embedded surface.
const EmbeddedFilename = "surface.cue"

// DefaultConstraint is the library version range the pass is known to handle.
const DefaultConstraint = ">= 0.20.0"

// Embedded returns the embedded surface source.
func Embedded() []byte {
	return embedded
}

// Options configures Load.
type Options struct {
	// Path selects a surface file. Empty uses the embedded surface.
	Path string

	// Constraint restricts the accepted surface version.
	// Empty uses DefaultConstraint.
	Constraint string

	Logger *slog.Logger
}

// Surface is a compiled library surface: one ir.File per package.
//
// A Surface is read-only after Load and may be shared by concurrent passes.
type Surface struct {
	Version *semver.Version
	Source  string
	Files   []*ir.File

	index *resolve.Index
}

// Load reads and compiles a surface.
func Load(ctx context.Context, opts Options) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	src, name := embedded, EmbeddedFilename
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read library surface: %w", err)
		}
		src, name = b, opts.Path
	}

	v := cuecontext.New().CompileBytes(src, cue.Filename(name))
	s, err := Compile(v)
	if err != nil {
		return nil, err
	}
	s.Source = name

	constraint := opts.Constraint
	if constraint == "" {
		constraint = DefaultConstraint
	}
	if err := s.Require(constraint); err != nil {
		return nil, err
	}

	logger.Debug("library surface loaded",
		"source", name,
		"version", s.Version.String(),
		"packages", len(s.Files),
	)
	return s, nil
}

// Require checks the surface version against a semver constraint.
func (s *Surface) Require(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &CompileError{Field: "constraint", Message: err.Error()}
	}
	if !c.Check(s.Version) {
		return &CompileError{
			Field:   "version",
			Message: fmt.Sprintf("library version %s does not satisfy %q", s.Version, constraint),
		}
	}
	return nil
}

// Index returns the lookup index over the surface alone.
func (s *Surface) Index() *resolve.Index {
	return s.index
}

// Context returns a lookup context over the given units and the surface.
// Unit declarations shadow nothing; both are searched.
func (s *Surface) Context(units ...*ir.File) resolve.PluginContext {
	return s.index.With(units...)
}

// Package returns the surface file for pkg, or nil.
func (s *Surface) Package(pkg string) *ir.File {
	for _, f := range s.Files {
		if f.Package == pkg {
			return f
		}
	}
	return nil
}
