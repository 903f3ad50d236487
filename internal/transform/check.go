package transform

import (
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// Leftover is a wrapper reference that survived the pass.
type Leftover struct {
	Decl   string `json:"decl"`
	Node   string `json:"node"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (l Leftover) String() string {
	return fmt.Sprintf("%s: %s (%s): %s", l.Decl, l.Node, l.Type, l.Reason)
}

// Check reports every wrapper type still reachable from f: declared types,
// expression types, unexpanded inline extensions and calls on wrapper
// receivers. A fully transformed file has no leftovers.
func Check(f *ir.File) []Leftover {
	var out []Leftover
	add := func(d ir.Decl, node string, t *ir.Type, reason string) {
		out = append(out, Leftover{Decl: declName(d), Node: node, Type: t.String(), Reason: reason})
	}

	ir.InspectDecls(f, func(d ir.Decl) {
		switch n := d.(type) {
		case *ir.Field:
			if wrapper.IsWrapper(n.Type) {
				add(d, n.Name, n.Type, "wrapper-typed field")
			}
			if n.Init != nil {
				checkBody(n.Init, d, add)
			}
		case *ir.Function:
			switch {
			case isExpandable(n):
				add(d, n.Name, n.Extension.Type, "unexpanded inline extension")
			case n.Extension != nil && wrapper.IsWrapper(n.Extension.Type):
				add(d, n.Name, n.Extension.Type, "wrapper extension receiver")
			}
			if n.Dispatch != nil && wrapper.IsWrapper(n.Dispatch.Type) {
				add(d, n.Name, n.Dispatch.Type, "wrapper dispatch receiver")
			}
			if wrapper.IsWrapper(n.Return) {
				add(d, n.Name, n.Return, "wrapper-typed return")
			}
			for _, prm := range n.Params {
				if wrapper.IsWrapper(prm.Type) {
					add(d, prm.Name, prm.Type, "wrapper-typed parameter")
				}
			}
			if n.Body != nil {
				checkBody(n.Body, d, add)
			}
		}
	})
	return out
}

func checkBody(s ir.Stmt, d ir.Decl, add func(ir.Decl, string, *ir.Type, string)) {
	ir.Inspect(s, func(s ir.Stmt) bool {
		switch n := s.(type) {
		case *ir.Variable:
			if wrapper.IsWrapper(n.Type) {
				add(d, n.Name, n.Type, "wrapper-typed variable")
			}
		case *ir.FunctionExpr:
			// Closure signatures never mention wrappers; only the body matters.
		case *ir.Call:
			if ext := n.Callee.Extension; ext != nil && wrapper.IsWrapper(ext.Type) {
				add(d, ir.RenderExpr(n), ext.Type, "call to wrapper extension")
				return false
			}
			if recv := n.Receiver(); recv != nil && wrapper.IsWrapper(recv.Type()) && !wrapper.IsArrayElementGet(n) {
				add(d, ir.RenderExpr(n), recv.Type(), "call on wrapper receiver")
				return false
			}
			if wrapper.IsWrapper(n.Typ) && !wrapper.IsArrayElementGet(n) {
				add(d, ir.RenderExpr(n), n.Typ, "wrapper-typed expression")
			}
		case ir.Expr:
			if t := n.Type(); wrapper.IsWrapper(t) {
				add(d, ir.RenderExpr(n), t, "wrapper-typed expression")
			}
		}
		return true
	})
}
