package source

import (
	"math"

	"github.com/roach88/atomicfu/internal/ir"
)

// node is one decoded expression map.
type node map[string]any

func (d *decoder) node(raw any) (node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, d.errorf("expression must be a map with an op, got %T", raw)
	}
	return node(m), nil
}

func (n node) op() string { return n.str("op") }

func (n node) str(key string) string {
	s, _ := n[key].(string)
	return s
}

func (n node) list(key string) []any {
	l, _ := n[key].([]any)
	return l
}

func (n node) flag(key string) bool {
	b, _ := n[key].(bool)
	return b
}

func (d *decoder) stmts(raws []any, sc *scope) ([]ir.Stmt, error) {
	out := make([]ir.Stmt, 0, len(raws))
	for _, raw := range raws {
		n, err := d.node(raw)
		if err != nil {
			return nil, err
		}
		if n.op() == "var" {
			v, err := d.variable(n, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}
		e, err := d.exprNode(n, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) variable(n node, sc *scope) (*ir.Variable, error) {
	name := n.str("name")
	if name == "" {
		return nil, d.errorf("var needs a name")
	}
	v := &ir.Variable{Name: name, Mutable: n.flag("mutable")}
	if raw, ok := n["value"]; ok {
		init, err := d.expr(raw, sc)
		if err != nil {
			return nil, err
		}
		v.Init = init
		v.Type = init.Type()
	}
	if s := n.str("type"); s != "" {
		t, err := d.typ(s, sc.allTypeParams())
		if err != nil {
			return nil, err
		}
		v.Type = t
	}
	if v.Type == nil {
		return nil, d.errorf("var %s needs a type or a value", name)
	}
	v.SetParent(sc.owner)
	sc.declare(name, v)
	return v, nil
}

func (d *decoder) expr(raw any, sc *scope) (ir.Expr, error) {
	n, err := d.node(raw)
	if err != nil {
		return nil, err
	}
	return d.exprNode(n, sc)
}

func (d *decoder) optExpr(n node, key string, sc *scope) (ir.Expr, error) {
	raw, ok := n[key]
	if !ok || raw == nil {
		return nil, nil
	}
	return d.expr(raw, sc)
}

func (d *decoder) exprs(raws []any, sc *scope) ([]ir.Expr, error) {
	out := make([]ir.Expr, 0, len(raws))
	for _, raw := range raws {
		e, err := d.expr(raw, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// optType parses the "type" key of n, or returns nil when absent.
func (d *decoder) optType(n node, sc *scope) (*ir.Type, error) {
	s := n.str("type")
	if s == "" {
		return nil, nil
	}
	return d.typ(s, sc.allTypeParams())
}

func (d *decoder) exprNode(n node, sc *scope) (ir.Expr, error) {
	switch op := n.op(); op {
	case "const":
		return d.constant(n, sc)
	case "null":
		t, err := d.optType(n, sc)
		if err != nil {
			return nil, err
		}
		if t == nil {
			t = ir.Nothing
		}
		return ir.NullConst(t), nil
	case "get":
		v := sc.lookup(n.str("name"))
		if v == nil {
			return nil, d.errorf("unknown name %q", n.str("name"))
		}
		return &ir.GetValue{Target: v}, nil
	case "set":
		v, ok := sc.lookup(n.str("name")).(*ir.Variable)
		if !ok {
			return nil, d.errorf("%q is not a local variable", n.str("name"))
		}
		val, err := d.expr(n["value"], sc)
		if err != nil {
			return nil, err
		}
		return &ir.SetValue{Target: v, Value: val}, nil
	case "field":
		recv, f, err := d.field(n, sc)
		if err != nil {
			return nil, err
		}
		return &ir.GetField{Receiver: recv, Field: f}, nil
	case "setfield":
		recv, f, err := d.field(n, sc)
		if err != nil {
			return nil, err
		}
		val, err := d.expr(n["value"], sc)
		if err != nil {
			return nil, err
		}
		return &ir.SetField{Receiver: recv, Field: f, Value: val}, nil
	case "call":
		return d.call(n, sc)
	case "new":
		return d.construct(n, sc)
	case "cast", "safecast", "is", "implicit":
		return d.typeOp(op, n, sc)
	case "return":
		return d.ret(n, sc)
	case "when":
		return d.when(n, sc)
	case "try":
		return d.try(n, sc)
	case "block":
		return d.block(n, sc)
	case "lambda":
		return d.lambda(n, sc)
	case "var":
		return nil, d.errorf("var is only allowed as a statement")
	case "":
		return nil, d.errorf("expression has no op")
	default:
		return nil, d.errorf("unknown op %q", op)
	}
}

func (d *decoder) constant(n node, sc *scope) (ir.Expr, error) {
	c := &ir.Const{}
	switch v := n["value"].(type) {
	case int:
		c.Value, c.Typ = ir.IRInt(v), ir.Int
	case int64:
		c.Value, c.Typ = ir.IRInt(v), ir.Int
	case uint64:
		if v > math.MaxInt64 {
			return nil, d.errorf("literal %d overflows", v)
		}
		c.Value, c.Typ = ir.IRInt(v), ir.Int
	case float64:
		if v != math.Trunc(v) {
			return nil, d.errorf("non-integral literal %v", v)
		}
		c.Value, c.Typ = ir.IRInt(v), ir.Int
	case bool:
		c.Value, c.Typ = ir.IRBool(v), ir.Boolean
	case string:
		c.Value, c.Typ = ir.IRString(v), ir.String
	case nil:
		return nil, d.errorf("const needs a value; use op null for null")
	default:
		return nil, d.errorf("unsupported literal %T", v)
	}
	t, err := d.optType(n, sc)
	if err != nil {
		return nil, err
	}
	if t != nil {
		c.Typ = t
	}
	return c, nil
}

// field resolves the receiver and field of a field access. Without an
// explicit receiver the innermost dispatch receiver is tried before the
// unit's top-level fields.
func (d *decoder) field(n node, sc *scope) (ir.Expr, *ir.Field, error) {
	name := n.str("name")
	if name == "" {
		return nil, nil, d.errorf("%s needs a name", n.op())
	}
	if raw, ok := n["receiver"]; ok {
		recv, err := d.expr(raw, sc)
		if err != nil {
			return nil, nil, err
		}
		cls := d.classOf(recv.Type())
		if cls == nil {
			return nil, nil, d.errorf("no class for receiver type %s", recv.Type())
		}
		f := cls.Field(name)
		if f == nil {
			return nil, nil, d.errorf("class %s has no field %s", cls.FQName(), name)
		}
		return recv, f, nil
	}
	if this, cls := sc.dispatch(); this != nil && cls != nil {
		if f := cls.Field(name); f != nil {
			return &ir.GetValue{Target: this}, f, nil
		}
	}
	if f := d.topField(name); f != nil {
		return nil, f, nil
	}
	return nil, nil, d.errorf("unknown field %s", name)
}

func (d *decoder) typeOp(op string, n node, sc *scope) (ir.Expr, error) {
	kinds := map[string]ir.TypeOpKind{
		"cast":     ir.OpCast,
		"safecast": ir.OpSafeCast,
		"is":       ir.OpInstanceOf,
		"implicit": ir.OpImplicitCast,
	}
	operand, err := d.expr(n["value"], sc)
	if err != nil {
		return nil, err
	}
	t, err := d.optType(n, sc)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, d.errorf("%s needs a type", op)
	}
	return &ir.TypeOp{Op: kinds[op], Operand: operand, Target: t}, nil
}

func (d *decoder) ret(n node, sc *scope) (ir.Expr, error) {
	target := sc.function()
	if from := n.str("from"); from != "" {
		target = sc.named(from)
		if target == nil {
			return nil, d.errorf("return from unknown function %s", from)
		}
	}
	if target == nil {
		return nil, d.errorf("return outside a function")
	}
	val, err := d.optExpr(n, "value", sc)
	if err != nil {
		return nil, err
	}
	return &ir.Return{Target: target, Value: val}, nil
}

func (d *decoder) when(n node, sc *scope) (ir.Expr, error) {
	w := &ir.When{}
	for _, raw := range n.list("branches") {
		bn, ok := raw.(map[string]any)
		if !ok {
			return nil, d.errorf("when branch must be a map")
		}
		cond, err := d.optExpr(node(bn), "cond", sc)
		if err != nil {
			return nil, err
		}
		res, err := d.expr(bn["result"], sc)
		if err != nil {
			return nil, err
		}
		w.Branches = append(w.Branches, &ir.Branch{Cond: cond, Result: res})
	}
	if len(w.Branches) == 0 {
		return nil, d.errorf("when needs at least one branch")
	}
	t, err := d.optType(n, sc)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = ir.Unit
		for _, b := range w.Branches {
			if rt := b.Result.Type(); !rt.Equal(ir.Nothing) {
				t = rt
				break
			}
		}
	}
	w.Typ = t
	return w, nil
}

func (d *decoder) try(n node, sc *scope) (ir.Expr, error) {
	body, err := d.expr(n["body"], sc.child())
	if err != nil {
		return nil, err
	}
	tr := &ir.Try{Body: body}
	for _, raw := range n.list("catches") {
		cn, ok := raw.(map[string]any)
		if !ok {
			return nil, d.errorf("catch clause must be a map")
		}
		c := node(cn)
		csc := sc.child()
		t, err := d.typ(c.str("type"), sc.allTypeParams())
		if err != nil {
			return nil, err
		}
		param := &ir.Variable{Name: c.str("name"), Type: t}
		if param.Name == "" {
			param.Name = "e"
		}
		param.SetParent(sc.owner)
		csc.declare(param.Name, param)
		res, err := d.expr(c["result"], csc)
		if err != nil {
			return nil, err
		}
		tr.Catches = append(tr.Catches, &ir.Catch{Param: param, Result: res})
	}
	if tr.Finally, err = d.optExpr(n, "finally", sc.child()); err != nil {
		return nil, err
	}
	if tr.Typ, err = d.optType(n, sc); err != nil {
		return nil, err
	}
	if tr.Typ == nil {
		tr.Typ = body.Type()
	}
	return tr, nil
}

func (d *decoder) block(n node, sc *scope) (ir.Expr, error) {
	stmts, err := d.stmts(n.list("stmts"), sc.child())
	if err != nil {
		return nil, err
	}
	b := &ir.Block{Stmts: stmts}
	if b.Typ, err = d.optType(n, sc); err != nil {
		return nil, err
	}
	if b.Typ == nil && len(stmts) > 0 {
		if last, ok := stmts[len(stmts)-1].(ir.Expr); ok {
			b.Typ = last.Type()
		}
	}
	return b, nil
}

func (d *decoder) lambda(n node, sc *scope) (ir.Expr, error) {
	fn := &ir.Function{Name: "<anonymous>", Package: d.file.Package, Origin: ir.OriginLambda, Return: ir.Unit}
	fn.SetParent(sc.owner)
	tps := sc.allTypeParams()
	for _, raw := range n.list("params") {
		pn, ok := raw.(map[string]any)
		if !ok {
			return nil, d.errorf("lambda parameter must be a map")
		}
		p := node(pn)
		t, err := d.typ(p.str("type"), tps)
		if err != nil {
			return nil, err
		}
		fn.AddParam(p.str("name"), t)
	}
	if s := n.str("returns"); s != "" {
		t, err := d.typ(s, tps)
		if err != nil {
			return nil, err
		}
		fn.Return = t
	}
	lsc := functionScope(fn, sc, nil)
	stmts, err := d.stmts(n.list("body"), lsc)
	if err != nil {
		return nil, err
	}
	fn.Body = &ir.Block{Stmts: stmts}
	return &ir.FunctionExpr{Fn: fn}, nil
}
