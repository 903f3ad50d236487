package ir

import (
	"fmt"
	"strings"
)

const indentUnit = "  "

// Render returns a deterministic pseudo-source rendering of f.
//
// Declaration bodies render one statement per line. Blocks in expression
// position (closure bodies, branch results) render inline as `{ a; b }`.
// Top-level callees render with their qualified name so helper redirection
// is visible in the output.
func Render(f *File) string {
	r := &renderer{}
	fmt.Fprintf(&r.b, "package %s\n", f.Package)
	for _, d := range f.Decls {
		r.b.WriteByte('\n')
		r.decl(d, 0)
	}
	return r.b.String()
}

// RenderExpr renders a single expression inline.
func RenderExpr(e Expr) string {
	r := &renderer{}
	r.expr(e)
	return r.b.String()
}

// RenderDecl renders a single declaration.
func RenderDecl(d Decl) string {
	r := &renderer{}
	r.decl(d, 0)
	return strings.TrimSuffix(r.b.String(), "\n")
}

type renderer struct {
	b strings.Builder
}

func (r *renderer) indent(depth int) {
	r.b.WriteString(strings.Repeat(indentUnit, depth))
}

func (r *renderer) decl(d Decl, depth int) {
	r.indent(depth)
	switch n := d.(type) {
	case *Class:
		fmt.Fprintf(&r.b, "class %s%s {\n", n.Name, typeParams(n.TypeParams))
		for _, m := range n.Decls {
			r.decl(m, depth+1)
		}
		r.indent(depth)
		r.b.WriteString("}\n")
	case *Field:
		r.b.WriteString(keyword(n.Mutable))
		fmt.Fprintf(&r.b, " %s: %s", n.Name, n.Type)
		if n.Init != nil {
			r.b.WriteString(" = ")
			r.expr(n.Init)
		}
		r.b.WriteByte('\n')
	case *Function:
		r.signature(n)
		if n.Body == nil {
			r.b.WriteByte('\n')
			return
		}
		r.b.WriteString(" {\n")
		for _, s := range n.Body.Stmts {
			r.indent(depth + 1)
			r.stmt(s)
			r.b.WriteByte('\n')
		}
		r.indent(depth)
		r.b.WriteString("}\n")
	case *Constructor:
		r.b.WriteString("constructor")
		r.params(n.Params)
		r.b.WriteByte('\n')
	case *Variable:
		r.stmt(n)
		r.b.WriteByte('\n')
	case *ValueParam:
		fmt.Fprintf(&r.b, "%s: %s\n", n.Name, n.Type)
	default:
		panic(fmt.Sprintf("ir.Render: unexpected declaration %T", d))
	}
}

func (r *renderer) signature(fn *Function) {
	if fn.Visibility != "" && fn.Visibility != Public {
		r.b.WriteString(string(fn.Visibility) + " ")
	}
	if fn.Inline {
		r.b.WriteString("inline ")
	}
	r.b.WriteString("fun ")
	if len(fn.TypeParams) > 0 {
		r.b.WriteString(typeParams(fn.TypeParams) + " ")
	}
	if fn.Extension != nil {
		r.b.WriteString(fn.Extension.Type.String() + ".")
	}
	r.b.WriteString(fn.Name)
	r.params(fn.Params)
	fmt.Fprintf(&r.b, ": %s", fn.Return)
}

func (r *renderer) params(ps []*ValueParam) {
	r.b.WriteByte('(')
	for i, p := range ps {
		if i > 0 {
			r.b.WriteString(", ")
		}
		fmt.Fprintf(&r.b, "%s: %s", p.Name, p.Type)
	}
	r.b.WriteByte(')')
}

func (r *renderer) stmt(s Stmt) {
	if v, ok := s.(*Variable); ok {
		fmt.Fprintf(&r.b, "%s %s: %s", keyword(v.Mutable), v.Name, v.Type)
		if v.Init != nil {
			r.b.WriteString(" = ")
			r.expr(v.Init)
		}
		return
	}
	r.expr(s.(Expr))
}

func (r *renderer) exprs(es []Expr) {
	r.b.WriteByte('(')
	for i, e := range es {
		if i > 0 {
			r.b.WriteString(", ")
		}
		r.expr(e)
	}
	r.b.WriteByte(')')
}

func (r *renderer) receiver(e Expr) {
	if e != nil {
		r.expr(e)
		r.b.WriteByte('.')
	}
}

func (r *renderer) expr(e Expr) {
	switch n := e.(type) {
	case *Const:
		r.b.WriteString(FormatValue(n.Value))
	case *GetValue:
		r.b.WriteString(n.Target.DeclName())
	case *SetValue:
		fmt.Fprintf(&r.b, "%s = ", n.Target.Name)
		r.expr(n.Value)
	case *GetField:
		r.receiver(n.Receiver)
		r.b.WriteString(n.Field.Name)
	case *SetField:
		r.receiver(n.Receiver)
		fmt.Fprintf(&r.b, "%s = ", n.Field.Name)
		r.expr(n.Value)
	case *Call:
		recv := n.Receiver()
		switch {
		case recv != nil:
			r.receiver(recv)
			r.b.WriteString(n.Callee.Name)
		case n.Callee.Class() != nil:
			r.b.WriteString(n.Callee.Name)
		default:
			r.b.WriteString(n.Callee.FQName())
		}
		r.b.WriteString(typeArgs(n.TypeArgs))
		r.exprs(n.Args)
	case *ConstructorCall:
		r.b.WriteString(n.Constructor.Class().FQName())
		r.b.WriteString(typeArgs(n.TypeArgs))
		r.exprs(n.Args)
	case *TypeOp:
		r.b.WriteByte('(')
		r.expr(n.Operand)
		fmt.Fprintf(&r.b, " %s %s)", n.Op, n.Target)
	case *Return:
		r.b.WriteString("return")
		if n.Value != nil {
			r.b.WriteByte(' ')
			r.expr(n.Value)
		}
	case *When:
		r.b.WriteString("when { ")
		for i, br := range n.Branches {
			if i > 0 {
				r.b.WriteString("; ")
			}
			if br.Cond == nil {
				r.b.WriteString("else")
			} else {
				r.expr(br.Cond)
			}
			r.b.WriteString(" -> ")
			r.expr(br.Result)
		}
		r.b.WriteString(" }")
	case *Try:
		r.b.WriteString("try ")
		r.expr(n.Body)
		for _, c := range n.Catches {
			fmt.Fprintf(&r.b, " catch (%s: %s) ", c.Param.Name, c.Param.Type)
			r.expr(c.Result)
		}
		if n.Finally != nil {
			r.b.WriteString(" finally ")
			r.expr(n.Finally)
		}
	case *Block:
		r.inlineBlock(n)
	case *FunctionExpr:
		r.signature(n.Fn)
		r.b.WriteByte(' ')
		if n.Fn.Body == nil {
			r.b.WriteString("{ }")
			return
		}
		r.inlineBlock(n.Fn.Body)
	default:
		panic(fmt.Sprintf("ir.Render: unexpected expression %T", e))
	}
}

func (r *renderer) inlineBlock(b *Block) {
	if len(b.Stmts) == 0 {
		r.b.WriteString("{ }")
		return
	}
	r.b.WriteString("{ ")
	for i, s := range b.Stmts {
		if i > 0 {
			r.b.WriteString("; ")
		}
		r.stmt(s)
	}
	r.b.WriteString(" }")
}

func keyword(mutable bool) string {
	if mutable {
		return "var"
	}
	return "val"
}

func typeParams(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "<" + strings.Join(names, ", ") + ">"
}

func typeArgs(ts []*Type) string {
	if len(ts) == 0 {
		return ""
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
