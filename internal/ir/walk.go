package ir

import "fmt"

// Inspect traverses s in depth-first pre-order, calling fn for every
// statement. If fn returns false, the children of that statement are skipped.
// Closure bodies are traversed as children of their FunctionExpr.
func Inspect(s Stmt, fn func(Stmt) bool) {
	if s == nil || isNilExpr(s) || !fn(s) {
		return
	}
	switch n := s.(type) {
	case *Variable:
		inspectExpr(n.Init, fn)
	case *Const, *GetValue:
	case *SetValue:
		inspectExpr(n.Value, fn)
	case *GetField:
		inspectExpr(n.Receiver, fn)
	case *SetField:
		inspectExpr(n.Receiver, fn)
		inspectExpr(n.Value, fn)
	case *Call:
		inspectExpr(n.Dispatch, fn)
		inspectExpr(n.Extension, fn)
		for _, a := range n.Args {
			inspectExpr(a, fn)
		}
	case *ConstructorCall:
		for _, a := range n.Args {
			inspectExpr(a, fn)
		}
	case *TypeOp:
		inspectExpr(n.Operand, fn)
	case *Return:
		inspectExpr(n.Value, fn)
	case *When:
		for _, b := range n.Branches {
			inspectExpr(b.Cond, fn)
			inspectExpr(b.Result, fn)
		}
	case *Try:
		inspectExpr(n.Body, fn)
		for _, c := range n.Catches {
			Inspect(c.Param, fn)
			inspectExpr(c.Result, fn)
		}
		inspectExpr(n.Finally, fn)
	case *Block:
		for _, st := range n.Stmts {
			Inspect(st, fn)
		}
	case *FunctionExpr:
		if n.Fn.Body != nil {
			Inspect(n.Fn.Body, fn)
		}
	default:
		panic(fmt.Sprintf("ir.Inspect: unexpected node %T", s))
	}
}

func inspectExpr(e Expr, fn func(Stmt) bool) {
	if e != nil {
		Inspect(e, fn)
	}
}

// InspectDecls calls fn for every declaration reachable from the file's
// declaration lists, in order, descending into class members.
func InspectDecls(f *File, fn func(Decl)) {
	var walk func(ds []Decl)
	walk = func(ds []Decl) {
		for _, d := range ds {
			fn(d)
			if c, ok := d.(*Class); ok {
				walk(c.Decls)
			}
		}
	}
	walk(f.Decls)
}

// isNilExpr guards against typed nil pointers stored in interfaces.
func isNilExpr(s Stmt) bool {
	switch n := s.(type) {
	case *Block:
		return n == nil
	case *Variable:
		return n == nil
	}
	return false
}
