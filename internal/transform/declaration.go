package transform

import (
	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// isExpandable reports whether fn is an inline extension over a scalar wrapper.
func isExpandable(fn *ir.Function) bool {
	return fn.Inline && fn.Extension != nil && wrapper.IsScalar(fn.Extension.Type)
}

// expandAll expands every eligible function before any call is rewritten,
// so calls to them always find their expanded sibling.
func (p *Pass) expandAll(f *ir.File) error {
	var targets []*ir.Function
	ir.InspectDecls(f, func(d ir.Decl) {
		if fn, ok := d.(*ir.Function); ok && isExpandable(fn) {
			targets = append(targets, fn)
		}
	})
	for _, fn := range targets {
		if _, err := p.expand(fn); err != nil {
			return err
		}
	}
	return nil
}

// expand builds the expanded form of old and replaces old with it in its
// owner's declaration list.
//
// The expanded function drops the extension receiver and appends the getter
// and setter parameters. The original body is moved, not copied: locals,
// closures and return targets that pointed at old are reparented to the new
// function.
func (p *Pass) expand(old *ir.Function) (*ir.Function, error) {
	value := wrapper.ValueType(old.Extension.Type)

	fn := &ir.Function{
		Name:       old.Name,
		Package:    old.Package,
		Visibility: old.Visibility,
		Inline:     old.Inline,
		Origin:     old.Origin,
		TypeParams: old.TypeParams,
		Dispatch:   old.Dispatch,
		Return:     old.Return,
		Body:       old.Body,
		Property:   old.Property,
	}
	fn.SetParent(old.Parent())
	if fn.Dispatch != nil {
		fn.Dispatch.SetParent(fn)
	}
	for _, prm := range old.Params {
		prm.SetParent(fn)
		fn.Params = append(fn.Params, prm)
	}
	getter := fn.AddParam(GetterParamName, ir.GetterType(value))
	setter := fn.AddParam(SetterParamName, ir.SetterType(value))

	if fn.Body != nil {
		reparent(fn.Body, old, fn)
	}
	if !replaceInSlot(old, fn) {
		return nil, shapeViolation("inline extension %s is not a member of a file or class", old.FQName())
	}

	p.receivers[old.Extension] = accessorPair{getter: getter, setter: setter}
	p.stats.Expanded++
	p.logger.Debug("inline extension expanded",
		"function", fn.FQName(),
		"receiver", old.Extension.Type.String(),
		"params", len(fn.Params),
	)
	return fn, nil
}

// reparent moves ownership of everything in body that old owned to fn.
func reparent(body *ir.Block, old, fn *ir.Function) {
	ir.Inspect(body, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Variable:
			if n.Parent() == old {
				n.SetParent(fn)
			}
		case *ir.FunctionExpr:
			if n.Fn.Parent() == old {
				n.Fn.SetParent(fn)
			}
		case *ir.Return:
			if n.Target == old {
				n.Target = fn
			}
		}
		return true
	})
}

// replaceInSlot substitutes fn for old at old's position in its owner.
func replaceInSlot(old, fn *ir.Function) bool {
	var decls []ir.Decl
	switch owner := old.Parent().(type) {
	case *ir.File:
		decls = owner.Decls
	case *ir.Class:
		decls = owner.Decls
	default:
		return false
	}
	for i, d := range decls {
		if d == ir.Decl(old) {
			decls[i] = fn
			return true
		}
	}
	return false
}
