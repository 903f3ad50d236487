package ir

import "fmt"

// DeepCopy returns a structural copy of e.
//
// Declarations referenced from outside the subtree (fields, callees,
// parameters of enclosing functions) are shared with the original.
// Declarations owned by the subtree (local variables, closure functions and
// their parameters) are cloned, and references to them inside the copy are
// remapped to the clones. Cloned declarations keep their original owner
// unless that owner was itself cloned.
func DeepCopy(e Expr) Expr {
	if e == nil {
		return nil
	}
	c := &copier{
		values: make(map[ValueDecl]ValueDecl),
		fns:    make(map[*Function]*Function),
	}
	return c.expr(e)
}

type copier struct {
	values map[ValueDecl]ValueDecl
	fns    map[*Function]*Function
}

func (c *copier) parent(p Container) Container {
	if fn, ok := p.(*Function); ok {
		if cp, ok := c.fns[fn]; ok {
			return cp
		}
	}
	return p
}

func (c *copier) value(v ValueDecl) ValueDecl {
	if cp, ok := c.values[v]; ok {
		return cp
	}
	return v
}

func (c *copier) variable(v *Variable) *Variable {
	if v == nil {
		return nil
	}
	cp := &Variable{Name: v.Name, Type: v.Type, Mutable: v.Mutable}
	cp.SetParent(c.parent(v.Parent()))
	c.values[v] = cp
	cp.Init = c.expr(v.Init)
	return cp
}

func (c *copier) param(p *ValueParam, owner *Function) *ValueParam {
	if p == nil {
		return nil
	}
	cp := &ValueParam{Name: p.Name, Type: p.Type, Index: p.Index}
	cp.SetParent(owner)
	c.values[p] = cp
	return cp
}

func (c *copier) function(fn *Function) *Function {
	cp := &Function{
		Name:       fn.Name,
		Package:    fn.Package,
		Visibility: fn.Visibility,
		Inline:     fn.Inline,
		Origin:     fn.Origin,
		TypeParams: fn.TypeParams,
		Return:     fn.Return,
		Property:   fn.Property,
	}
	cp.SetParent(c.parent(fn.Parent()))
	c.fns[fn] = cp
	cp.Dispatch = c.param(fn.Dispatch, cp)
	cp.Extension = c.param(fn.Extension, cp)
	for _, p := range fn.Params {
		cp.Params = append(cp.Params, c.param(p, cp))
	}
	if fn.Body != nil {
		cp.Body = c.block(fn.Body)
	}
	return cp
}

func (c *copier) block(b *Block) *Block {
	cp := &Block{Typ: b.Typ, Stmts: make([]Stmt, 0, len(b.Stmts))}
	for _, s := range b.Stmts {
		cp.Stmts = append(cp.Stmts, c.stmt(s))
	}
	return cp
}

func (c *copier) stmt(s Stmt) Stmt {
	if v, ok := s.(*Variable); ok {
		return c.variable(v)
	}
	return c.expr(s.(Expr))
}

func (c *copier) exprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = c.expr(e)
	}
	return out
}

func (c *copier) expr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *Const:
		return &Const{Value: n.Value, Typ: n.Typ}
	case *GetValue:
		return &GetValue{Target: c.value(n.Target)}
	case *SetValue:
		target := n.Target
		if cp, ok := c.values[n.Target].(*Variable); ok {
			target = cp
		}
		return &SetValue{Target: target, Value: c.expr(n.Value)}
	case *GetField:
		return &GetField{Receiver: c.expr(n.Receiver), Field: n.Field}
	case *SetField:
		return &SetField{Receiver: c.expr(n.Receiver), Field: n.Field, Value: c.expr(n.Value)}
	case *Call:
		return &Call{
			Callee:    n.Callee,
			Dispatch:  c.expr(n.Dispatch),
			Extension: c.expr(n.Extension),
			Args:      c.exprs(n.Args),
			TypeArgs:  n.TypeArgs,
			Typ:       n.Typ,
		}
	case *ConstructorCall:
		return &ConstructorCall{Constructor: n.Constructor, Args: c.exprs(n.Args), TypeArgs: n.TypeArgs, Typ: n.Typ}
	case *TypeOp:
		return &TypeOp{Op: n.Op, Operand: c.expr(n.Operand), Target: n.Target}
	case *Return:
		target := n.Target
		if cp, ok := c.fns[n.Target]; ok {
			target = cp
		}
		return &Return{Target: target, Value: c.expr(n.Value)}
	case *When:
		cp := &When{Typ: n.Typ}
		for _, b := range n.Branches {
			cp.Branches = append(cp.Branches, &Branch{Cond: c.expr(b.Cond), Result: c.expr(b.Result)})
		}
		return cp
	case *Try:
		cp := &Try{Body: c.expr(n.Body), Typ: n.Typ}
		for _, k := range n.Catches {
			cp.Catches = append(cp.Catches, &Catch{Param: c.variable(k.Param), Result: c.expr(k.Result)})
		}
		cp.Finally = c.expr(n.Finally)
		return cp
	case *Block:
		return c.block(n)
	case *FunctionExpr:
		return &FunctionExpr{Fn: c.function(n.Fn)}
	default:
		panic(fmt.Sprintf("ir.DeepCopy: unexpected node %T", e))
	}
}
