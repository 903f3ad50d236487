package resolve

import (
	"errors"
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
)

// SymbolErrorCode categorizes resolution failures.
type SymbolErrorCode string

const (
	// ErrCodeMissingSymbol indicates no declaration matched.
	ErrCodeMissingSymbol SymbolErrorCode = "MISSING_SYMBOL"

	// ErrCodeAmbiguousSymbol indicates more than one declaration matched.
	ErrCodeAmbiguousSymbol SymbolErrorCode = "AMBIGUOUS_SYMBOL"
)

// SymbolError reports a lookup that did not produce exactly one match.
// Ambiguity is a defect in the runtime library, never something to recover
// from by picking a candidate.
type SymbolError struct {
	Code       SymbolErrorCode
	Name       string
	Candidates int
}

// Error implements the error interface.
func (e *SymbolError) Error() string {
	if e.Code == ErrCodeAmbiguousSymbol {
		return fmt.Sprintf("%s: %d declarations match %s", e.Code, e.Candidates, e.Name)
	}
	return fmt.Sprintf("%s: no declaration matches %s", e.Code, e.Name)
}

// IsMissing reports whether err is a SymbolError for a missing declaration.
func IsMissing(err error) bool {
	var se *SymbolError
	return errors.As(err, &se) && se.Code == ErrCodeMissingSymbol
}

// IsAmbiguous reports whether err is a SymbolError for an ambiguous lookup.
func IsAmbiguous(err error) bool {
	var se *SymbolError
	return errors.As(err, &se) && se.Code == ErrCodeAmbiguousSymbol
}

// Resolver performs single-match-or-fail lookups through a PluginContext.
type Resolver struct {
	ctx PluginContext
}

// New creates a Resolver over ctx.
func New(ctx PluginContext) *Resolver {
	return &Resolver{ctx: ctx}
}

// Context returns the underlying lookup service.
func (r *Resolver) Context() PluginContext {
	return r.ctx
}

func single[T any](name string, candidates []T) (T, error) {
	var zero T
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return zero, &SymbolError{Code: ErrCodeMissingSymbol, Name: name}
	default:
		return zero, &SymbolError{Code: ErrCodeAmbiguousSymbol, Name: name, Candidates: len(candidates)}
	}
}

func filter[T any](in []T, pred func(T) bool) []T {
	var out []T
	for _, v := range in {
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// PackageFunction resolves the top-level function pkg.name satisfying pred.
// A nil pred accepts every candidate.
func (r *Resolver) PackageFunction(pkg, name string, pred func(*ir.Function) bool) (*ir.Function, error) {
	fq := pkg + "." + name
	topLevel := filter(r.ctx.ReferenceFunctions(fq), func(fn *ir.Function) bool {
		return fn.Class() == nil
	})
	return single(fq, filter(topLevel, pred))
}

// Class resolves a class by qualified name.
func (r *Resolver) Class(fqName string) (*ir.Class, error) {
	if c := r.ctx.ReferenceClass(fqName); c != nil {
		return c, nil
	}
	return nil, &SymbolError{Code: ErrCodeMissingSymbol, Name: fqName}
}

// Constructor resolves the constructor of cls satisfying pred.
func (r *Resolver) Constructor(cls *ir.Class, pred func(*ir.Constructor) bool) (*ir.Constructor, error) {
	return single(cls.FQName()+".<init>", filter(cls.Constructors(), pred))
}

// MemberFunction resolves the member cls.name satisfying pred.
func (r *Resolver) MemberFunction(cls *ir.Class, name string, pred func(*ir.Function) bool) (*ir.Function, error) {
	return single(cls.FQName()+"."+name, filter(cls.Functions(name), pred))
}

// ExpandedSibling resolves the expanded form of an inline extension function:
// the declaration in the same scope with the same name, no extension
// receiver, the original parameters, and two trailing accessor parameters
// typed getter-of-value and setter-of-value.
func (r *Resolver) ExpandedSibling(fn *ir.Function, value *ir.Type) (*ir.Function, error) {
	var candidates []*ir.Function
	if cls := fn.Class(); cls != nil {
		candidates = cls.Functions(fn.Name)
	} else {
		candidates = filter(r.ctx.ReferenceFunctions(fn.FQName()), func(c *ir.Function) bool {
			return c.Class() == nil
		})
	}
	return single(fn.FQName(), filter(candidates, func(c *ir.Function) bool {
		return c != fn && IsExpansionOf(c, fn, value)
	}))
}

// IsExpansionOf reports whether candidate has the expanded shape of fn.
func IsExpansionOf(candidate, fn *ir.Function, value *ir.Type) bool {
	if candidate.Extension != nil || candidate.Name != fn.Name {
		return false
	}
	n := len(fn.Params)
	if len(candidate.Params) != n+2 {
		return false
	}
	for i, p := range fn.Params {
		if !candidate.Params[i].Type.Equal(p.Type) {
			return false
		}
	}
	return candidate.Params[n].Type.Equal(ir.GetterType(value)) &&
		candidate.Params[n+1].Type.Equal(ir.SetterType(value))
}
