// Package transform erases atomic wrapper types from a translation unit.
//
// The pass runs in three phases over one file:
//
//  1. Every inline extension function whose receiver is a scalar wrapper is
//     replaced in its declaration slot by an expanded form that takes the
//     wrapper's getter and setter as two trailing parameters.
//  2. Every declaration is walked bottom-up. Wrapper casts are erased,
//     wrapper initializers are reduced to plain values, and calls on wrapper
//     receivers are redirected to runtime helpers or expanded siblings.
//  3. Declared types of fields and variables are erased to their plain form.
//
// The pass is not safe for concurrent use on one file. Distinct files may be
// transformed concurrently with distinct Pass values sharing a read-only
// PluginContext.
package transform

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/resolve"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// Parameter names of the two accessor parameters appended by expansion.
const (
	GetterParamName = "atomicfu$getter"
	SetterParamName = "atomicfu$setter"
)

// Options configures a Pass.
type Options struct {
	// Logger receives per-rewrite debug records and a per-unit summary.
	// A nil Logger discards output.
	Logger *slog.Logger
}

// Stats counts the rewrites a pass performed.
type Stats struct {
	Expanded     int `json:"expanded"`
	HelperCalls  int `json:"helper_calls"`
	Redirected   int `json:"redirected"`
	CastsErased  int `json:"casts_erased"`
	Initializers int `json:"initializers"`
	Accessors    int `json:"accessors"`
	TypesErased  int `json:"types_erased"`
}

// Rewrites returns the total number of rewrites.
func (s Stats) Rewrites() int {
	return s.Expanded + s.HelperCalls + s.Redirected + s.CastsErased + s.Initializers + s.TypesErased
}

// Counts returns the per-kind counters keyed by their JSON names.
func (s Stats) Counts() map[string]int64 {
	return map[string]int64{
		"expanded":     int64(s.Expanded),
		"helper_calls": int64(s.HelperCalls),
		"redirected":   int64(s.Redirected),
		"casts_erased": int64(s.CastsErased),
		"initializers": int64(s.Initializers),
		"accessors":    int64(s.Accessors),
		"types_erased": int64(s.TypesErased),
	}
}

// accessorPair holds the trailing accessor parameters of an expanded
// function, keyed in Pass.receivers by the receiver parameter they replace.
type accessorPair struct {
	getter *ir.ValueParam
	setter *ir.ValueParam
}

// Pass is one run of the transformation over one file.
type Pass struct {
	resolver *resolve.Resolver
	logger   *slog.Logger

	unit      string
	stats     Stats
	visited   map[ir.Decl]bool
	receivers map[*ir.ValueParam]accessorPair
}

// New creates a pass resolving library symbols through ctx.
func New(ctx resolve.PluginContext, opts Options) *Pass {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pass{
		resolver:  resolve.New(ctx),
		logger:    logger,
		visited:   make(map[ir.Decl]bool),
		receivers: make(map[*ir.ValueParam]accessorPair),
	}
}

// Transform runs a fresh pass over f.
func Transform(f *ir.File, ctx resolve.PluginContext, opts Options) (Stats, error) {
	return New(ctx, opts).Run(f)
}

// Run transforms f in place.
//
// On error the file is left partially rewritten and must be discarded.
func (p *Pass) Run(f *ir.File) (Stats, error) {
	p.unit = f.Name

	if err := p.expandAll(f); err != nil {
		return p.stats, p.annotate(err, nil)
	}

	var decls []ir.Decl
	ir.InspectDecls(f, func(d ir.Decl) { decls = append(decls, d) })
	for _, d := range decls {
		if err := p.rewriteDecl(d); err != nil {
			return p.stats, p.annotate(err, d)
		}
	}

	p.eraseTypes(f)

	p.logger.Info("unit transformed",
		"unit", f.Name,
		"expanded", p.stats.Expanded,
		"helper_calls", p.stats.HelperCalls,
		"redirected", p.stats.Redirected,
		"casts_erased", p.stats.CastsErased,
		"initializers", p.stats.Initializers,
		"accessors", p.stats.Accessors,
	)
	return p.stats, nil
}

// annotate fills the unit and declaration context of a PassError.
func (p *Pass) annotate(err error, d ir.Decl) error {
	pe, ok := err.(*PassError)
	if !ok {
		return fmt.Errorf("transform %s: %w", p.unit, err)
	}
	pe.Unit = p.unit
	if pe.Decl == "" && d != nil {
		pe.Decl = declName(d)
	}
	return pe
}

func declName(d ir.Decl) string {
	switch n := d.(type) {
	case *ir.Function:
		return n.FQName()
	case *ir.Class:
		return n.FQName()
	case *ir.Field:
		if c, ok := n.Parent().(*ir.Class); ok {
			return c.FQName() + "." + n.Name
		}
	}
	return d.DeclName()
}

// rewriteDecl rewrites the initializer or body of one declaration.
// Classes are not descended here; their members are listed separately.
func (p *Pass) rewriteDecl(d ir.Decl) error {
	if p.visited[d] {
		return nil
	}
	p.visited[d] = true

	switch n := d.(type) {
	case *ir.Field:
		if n.Init == nil {
			return nil
		}
		init, err := p.initializer(n.Init, n.Type, n, "field "+n.Name)
		if err != nil {
			return err
		}
		n.Init = init
	case *ir.Function:
		if n.Body == nil {
			return nil
		}
		return p.block(n.Body, n)
	case *ir.Class, *ir.Constructor:
	default:
		return fmt.Errorf("unexpected declaration %T", d)
	}
	return nil
}

// eraseTypes replaces wrapper declared types of fields, local variables and
// catch parameters with their erased forms.
func (p *Pass) eraseTypes(f *ir.File) {
	erase := func(t **ir.Type) {
		if wrapper.IsWrapper(*t) {
			*t = wrapper.ErasedType(*t)
			p.stats.TypesErased++
		}
	}
	ir.InspectDecls(f, func(d ir.Decl) {
		switch n := d.(type) {
		case *ir.Field:
			erase(&n.Type)
		case *ir.Function:
			if n.Property != nil {
				erase(&n.Return)
			}
			if n.Body == nil {
				return
			}
			ir.Inspect(n.Body, func(s ir.Stmt) bool {
				if v, ok := s.(*ir.Variable); ok {
					erase(&v.Type)
				}
				return true
			})
		}
	})
}
