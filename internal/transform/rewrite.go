package transform

import (
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// block rewrites the statements of b in place. encl owns any closures
// synthesized for calls inside b.
func (p *Pass) block(b *ir.Block, encl ir.Container) error {
	for i, s := range b.Stmts {
		out, err := p.stmt(s, encl)
		if err != nil {
			return err
		}
		b.Stmts[i] = out
	}
	return nil
}

func (p *Pass) stmt(s ir.Stmt, encl ir.Container) (ir.Stmt, error) {
	v, ok := s.(*ir.Variable)
	if !ok {
		return p.expr(s.(ir.Expr), encl)
	}
	if v.Init == nil {
		return v, nil
	}
	init, err := p.initializer(v.Init, v.Type, encl, "variable "+v.Name)
	if err != nil {
		return nil, err
	}
	v.Init = init
	return v, nil
}

// initializer rewrites the initial value of a declaration of type declared.
// A wrapper-typed declaration must be initialized by a recognized
// construction pattern.
func (p *Pass) initializer(init ir.Expr, declared *ir.Type, encl ir.Container, what string) (ir.Expr, error) {
	if wrapper.IsWrapper(declared) && !wrapper.IsConstruction(init) {
		return nil, shapeViolation("illegal initializer for %s of type %s: %s", what, declared, ir.RenderExpr(init))
	}
	return p.expr(init, encl)
}

func (p *Pass) exprs(es []ir.Expr, encl ir.Container) error {
	for i, e := range es {
		out, err := p.expr(e, encl)
		if err != nil {
			return err
		}
		es[i] = out
	}
	return nil
}

// opt rewrites an optional child expression.
func (p *Pass) opt(e ir.Expr, encl ir.Container) (ir.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return p.expr(e, encl)
}

// expr rewrites e bottom-up and returns its replacement.
//
// The switch is exhaustive over ir.Expr; an unknown node is a programming
// error in the IR package, not an input error.
func (p *Pass) expr(e ir.Expr, encl ir.Container) (ir.Expr, error) {
	var err error
	switch n := e.(type) {
	case *ir.Const, *ir.GetValue:
		return n, nil

	case *ir.SetValue:
		if n.Value, err = p.expr(n.Value, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.GetField:
		if n.Receiver, err = p.opt(n.Receiver, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.SetField:
		if n.Receiver, err = p.opt(n.Receiver, encl); err != nil {
			return nil, err
		}
		if n.Value, err = p.expr(n.Value, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.Call:
		if wrapper.IsConstruction(n) {
			return p.reduce(n, encl)
		}
		if n.Dispatch, err = p.opt(n.Dispatch, encl); err != nil {
			return nil, err
		}
		if n.Extension, err = p.opt(n.Extension, encl); err != nil {
			return nil, err
		}
		if err := p.exprs(n.Args, encl); err != nil {
			return nil, err
		}
		recv := n.Receiver()
		switch {
		case recv == nil:
		case wrapper.IsScalar(recv.Type()):
			return p.wrapperCall(n, encl)
		case wrapper.IsArray(recv.Type()) && !wrapper.IsArrayElementGet(n):
			return p.arrayMemberCall(n)
		}
		return n, nil

	case *ir.ConstructorCall:
		if wrapper.IsConstruction(n) {
			return p.reduce(n, encl)
		}
		if err := p.exprs(n.Args, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.TypeOp:
		if n.Operand, err = p.expr(n.Operand, encl); err != nil {
			return nil, err
		}
		if n.Op != ir.OpInstanceOf && wrapper.IsScalar(n.Target) {
			p.stats.CastsErased++
			p.logger.Debug("wrapper cast erased", "op", string(n.Op), "target", n.Target.String())
			return n.Operand, nil
		}
		return n, nil

	case *ir.Return:
		if n.Value, err = p.opt(n.Value, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.When:
		for _, b := range n.Branches {
			if b.Cond, err = p.opt(b.Cond, encl); err != nil {
				return nil, err
			}
			if b.Result, err = p.expr(b.Result, encl); err != nil {
				return nil, err
			}
		}
		return n, nil

	case *ir.Try:
		if n.Body, err = p.expr(n.Body, encl); err != nil {
			return nil, err
		}
		for _, c := range n.Catches {
			if c.Result, err = p.expr(c.Result, encl); err != nil {
				return nil, err
			}
		}
		if n.Finally, err = p.opt(n.Finally, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.Block:
		if err := p.block(n, encl); err != nil {
			return nil, err
		}
		return n, nil

	case *ir.FunctionExpr:
		if p.visited[n.Fn] || n.Fn.Body == nil {
			return n, nil
		}
		p.visited[n.Fn] = true
		if err := p.block(n.Fn.Body, n.Fn); err != nil {
			return nil, err
		}
		return n, nil

	default:
		panic(fmt.Sprintf("transform: unexpected expression %T", e))
	}
}

// reduce replaces a wrapper construction by the plain value it stands for.
func (p *Pass) reduce(e ir.Expr, encl ir.Container) (ir.Expr, error) {
	p.stats.Initializers++
	switch {
	case wrapper.IsScalarFactory(e):
		call := e.(*ir.Call)
		if len(call.Args) == 0 {
			return nil, shapeViolation("%s without initial value", ir.RenderExpr(e))
		}
		p.logger.Debug("scalar initializer reduced", "type", call.Typ.String())
		return p.expr(call.Args[0], encl)

	case wrapper.IsLockConstruction(e):
		p.logger.Debug("lock initializer reduced")
		return ir.NullConst(ir.NullableAny), nil

	case wrapper.IsArrayFactory(e):
		call := e.(*ir.Call)
		return p.arrayOfNulls(call.Typ, call.TypeArgs, call.Args, encl)

	case wrapper.IsArrayConstructor(e):
		cc := e.(*ir.ConstructorCall)
		if d, _ := wrapper.Classify(cc.Typ); d.Kind == wrapper.KindRef {
			return p.arrayOfNulls(cc.Typ, cc.TypeArgs, cc.Args, encl)
		}
		return p.primitiveArray(cc, encl)
	}
	return nil, shapeViolation("unrecognized wrapper construction %s", ir.RenderExpr(e))
}

// arrayOfNulls rewrites an object wrapper array construction into a call to
// the platform arrayOfNulls<T>(size).
func (p *Pass) arrayOfNulls(t *ir.Type, typeArgs []*ir.Type, args []ir.Expr, encl ir.Container) (ir.Expr, error) {
	if len(args) != 1 {
		return nil, shapeViolation("object array construction of %s takes exactly a size, got %d arguments", t, len(args))
	}
	size, err := p.expr(args[0], encl)
	if err != nil {
		return nil, err
	}
	elem := wrapper.ValueType(t)
	if len(typeArgs) == 1 {
		elem = typeArgs[0]
	}
	fn, err := p.resolver.PackageFunction(ir.BuiltinPackage, wrapper.PlainArrayFactory, func(fn *ir.Function) bool {
		return len(fn.Params) == 1
	})
	if err != nil {
		return nil, symbolFailure(err, "plain array factory")
	}
	p.logger.Debug("object array initializer reduced", "element", elem.String())
	return &ir.Call{
		Callee:   fn,
		Args:     []ir.Expr{size},
		TypeArgs: []*ir.Type{elem},
		Typ:      ir.ArrayOf(elem.WithNullable(true)),
	}, nil
}

// primitiveArray rewrites an Int, Long or Boolean wrapper array constructor
// into the matching plain array constructor.
func (p *Pass) primitiveArray(cc *ir.ConstructorCall, encl ir.Container) (ir.Expr, error) {
	if len(cc.Args) != 1 {
		return nil, shapeViolation("array construction of %s takes exactly a size, got %d arguments", cc.Typ, len(cc.Args))
	}
	size, err := p.expr(cc.Args[0], encl)
	if err != nil {
		return nil, err
	}
	plain := wrapper.ArrayType(cc.Typ)
	cls, err := p.resolver.Class(plain.FQName())
	if err != nil {
		return nil, symbolFailure(err, "plain array class")
	}
	ctor, err := p.resolver.Constructor(cls, func(c *ir.Constructor) bool {
		return len(c.Params) == 1 && c.Params[0].Type.Equal(ir.Int)
	})
	if err != nil {
		return nil, symbolFailure(err, "plain array constructor")
	}
	p.logger.Debug("primitive array initializer reduced", "array", plain.String())
	return &ir.ConstructorCall{Constructor: ctor, Args: []ir.Expr{size}, Typ: plain}, nil
}

// wrapperCall rewrites a call whose receiver is a scalar wrapper.
//
// Library operations become runtime helper calls taking the receiver's
// accessors as trailing arguments. Calls to inline extensions declared
// outside the library are redirected to their expanded sibling. Any other
// callee would keep a wrapper receiver after erasure, so it is rejected.
func (p *Pass) wrapperCall(call *ir.Call, encl ir.Container) (ir.Expr, error) {
	callee := call.Callee
	switch {
	case wrapper.IsWrapperPackage(callee.PackageName()):
		return p.helperCall(call, encl)
	case isExpandable(callee):
		return p.redirect(call, encl)
	}
	return nil, shapeViolation("unsupported call %s on wrapper receiver %s",
		callee.FQName(), call.Receiver().Type())
}

func (p *Pass) helperCall(call *ir.Call, encl ir.Container) (ir.Expr, error) {
	value := wrapper.ValueType(call.Receiver().Type())
	helper, err := p.helper(call.Callee.Name, value)
	if err != nil {
		return nil, err
	}
	getter, setter, err := p.accessors(call.Receiver(), encl)
	if err != nil {
		return nil, err
	}

	out := &ir.Call{
		Callee: helper,
		Args:   withAccessors(call.Args, getter, setter),
		Typ:    call.Typ,
	}
	if len(helper.TypeParams) == 1 {
		out.TypeArgs = []*ir.Type{value}
	}
	p.stats.HelperCalls++
	p.logger.Debug("wrapper call rewritten",
		"op", call.Callee.Name,
		"helper", helper.FQName(),
		"value", value.String(),
	)
	return out, nil
}

// helper resolves the runtime helper for op over value. A candidate
// matches when the type argument of its getter parameter is either
// non-primitive (a generic helper) or exactly the value type.
func (p *Pass) helper(op string, value *ir.Type) (*ir.Function, error) {
	name := wrapper.HelperPrefix + wrapper.HelperName(op)
	fn, err := p.resolver.PackageFunction(wrapper.Package, name, func(fn *ir.Function) bool {
		if len(fn.Params) < 2 {
			return false
		}
		getter := fn.Params[len(fn.Params)-2].Type
		if !getter.IsFunction() || getter.Result == nil {
			return false
		}
		return !getter.Result.IsPrimitive() || getter.Result.Equal(value)
	})
	if err != nil {
		return nil, symbolFailure(err, "runtime helper "+name)
	}
	return fn, nil
}

// redirect points a call to an inline extension at its expanded sibling.
func (p *Pass) redirect(call *ir.Call, encl ir.Container) (ir.Expr, error) {
	callee := call.Callee
	sibling, err := p.resolver.ExpandedSibling(callee, wrapper.ValueType(callee.Extension.Type))
	if err != nil {
		return nil, &PassError{
			Code:    ErrCodeMissingSibling,
			Message: "no expanded declaration for " + callee.FQName(),
			Err:     err,
		}
	}
	getter, setter, err := p.accessors(call.Receiver(), encl)
	if err != nil {
		return nil, err
	}
	p.stats.Redirected++
	p.logger.Debug("inline extension call redirected", "callee", sibling.FQName())
	return &ir.Call{
		Callee:   sibling,
		Dispatch: call.Dispatch,
		Args:     withAccessors(call.Args, getter, setter),
		TypeArgs: call.TypeArgs,
		Typ:      call.Typ,
	}, nil
}

// arrayMemberCall points a non-element member call on an atomic array, such
// as its size getter, at the same member of the plain array type. Only
// members of the atomic array class itself have a plain counterpart.
func (p *Pass) arrayMemberCall(call *ir.Call) (ir.Expr, error) {
	owner := call.Callee.Class()
	if call.Extension != nil || call.Dispatch == nil || owner == nil || !wrapper.IsArray(owner.Type()) {
		return nil, shapeViolation("unsupported call %s on wrapper receiver %s",
			call.Callee.FQName(), call.Receiver().Type())
	}
	plain := wrapper.ArrayType(call.Dispatch.Type())
	if plain == nil {
		return nil, shapeViolation("unsupported array receiver %s", call.Dispatch.Type())
	}
	cls, err := p.resolver.Class(plain.FQName())
	if err != nil {
		return nil, symbolFailure(err, "plain array class")
	}
	arity := len(call.Callee.Params)
	fn, err := p.resolver.MemberFunction(cls, call.Callee.Name, func(fn *ir.Function) bool {
		return len(fn.Params) == arity
	})
	if err != nil {
		return nil, symbolFailure(err, "plain array member "+call.Callee.Name)
	}
	p.stats.Redirected++
	p.logger.Debug("array member call redirected", "member", fn.FQName())
	return &ir.Call{Callee: fn, Dispatch: call.Dispatch, Args: call.Args, Typ: call.Typ}, nil
}

func withAccessors(args []ir.Expr, getter, setter ir.Expr) []ir.Expr {
	out := make([]ir.Expr, 0, len(args)+2)
	out = append(out, args...)
	return append(out, getter, setter)
}
