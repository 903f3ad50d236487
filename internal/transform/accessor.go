package transform

import (
	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// accessors returns the getter and setter closure arguments for a wrapper
// receiver expression. Receivers that are the removed extension receiver of
// an expanded function reuse that function's accessor parameters; every
// other receiver gets a freshly synthesized pair owned by encl.
func (p *Pass) accessors(receiver ir.Expr, encl ir.Container) (getter, setter ir.Expr, err error) {
	switch r := receiver.(type) {
	case *ir.GetValue:
		if prm, ok := r.Target.(*ir.ValueParam); ok {
			if pair, ok := p.receivers[prm]; ok {
				return &ir.GetValue{Target: pair.getter}, &ir.GetValue{Target: pair.setter}, nil
			}
		}
		if v, ok := r.Target.(*ir.Variable); ok {
			getter, setter := p.variableAccessors(v, encl)
			return getter, setter, nil
		}
	case *ir.GetField:
		getter, setter := p.fieldAccessors(r.Receiver, r.Field, encl)
		return getter, setter, nil
	case *ir.Call:
		if wrapper.IsArrayElementGet(r) {
			return p.elementAccessors(r, encl)
		}
		if fld := r.Callee.Property; fld != nil && r.Callee.Origin == ir.OriginPropertyGetter {
			getter, setter := p.fieldAccessors(r.Dispatch, fld, encl)
			return getter, setter, nil
		}
	}
	return nil, nil, shapeViolation("unsupported wrapper receiver %s", ir.RenderExpr(receiver))
}

// closure creates an accessor function owned by encl.
func (p *Pass) closure(name string, ret *ir.Type, encl ir.Container) *ir.Function {
	fn := &ir.Function{
		Name:   name,
		Origin: ir.OriginAccessorLambda,
		Return: ret,
		Body:   &ir.Block{},
	}
	fn.SetParent(encl)
	p.stats.Accessors++
	return fn
}

// accessorPairOf builds a getter returning read() and a setter evaluating
// write(value), named after the storage location.
func (p *Pass) accessorPairOf(
	name string,
	value *ir.Type,
	encl ir.Container,
	read func() ir.Expr,
	write func(v ir.Expr) ir.Expr,
) (getter, setter ir.Expr) {
	get := p.closure("<get-"+name+">", value, encl)
	get.Body.Stmts = []ir.Stmt{&ir.Return{Target: get, Value: read()}}
	get.Body.Typ = ir.Nothing

	set := p.closure("<set-"+name+">", ir.Unit, encl)
	v := set.AddParam("value", value)
	set.Body.Stmts = []ir.Stmt{write(&ir.GetValue{Target: v})}

	return &ir.FunctionExpr{Fn: get}, &ir.FunctionExpr{Fn: set}
}

// fieldAccessors synthesizes accessors over a field. The receiver expression
// is copied into each closure so no node is shared between them.
func (p *Pass) fieldAccessors(recv ir.Expr, field *ir.Field, encl ir.Container) (getter, setter ir.Expr) {
	value := wrapper.ValueType(field.Type)
	return p.accessorPairOf(field.Name, value, encl,
		func() ir.Expr {
			return &ir.GetField{Receiver: ir.DeepCopy(recv), Field: field}
		},
		func(v ir.Expr) ir.Expr {
			return &ir.SetField{Receiver: ir.DeepCopy(recv), Field: field, Value: v}
		},
	)
}

// variableAccessors synthesizes accessors over a local wrapper variable.
func (p *Pass) variableAccessors(v *ir.Variable, encl ir.Container) (getter, setter ir.Expr) {
	value := wrapper.ValueType(v.Type)
	return p.accessorPairOf(v.Name, value, encl,
		func() ir.Expr { return &ir.GetValue{Target: v} },
		func(val ir.Expr) ir.Expr { return &ir.SetValue{Target: v, Value: val} },
	)
}

// elementAccessors synthesizes accessors over one slot of an atomic array.
// Both the array receiver and the index are copied into each closure.
func (p *Pass) elementAccessors(get *ir.Call, encl ir.Container) (getter, setter ir.Expr, err error) {
	arr, idx := get.Dispatch, get.Args[0]
	value := wrapper.ValueType(arr.Type())
	plain := wrapper.ArrayType(arr.Type())

	cls, err := p.resolver.Class(plain.FQName())
	if err != nil {
		return nil, nil, symbolFailure(err, "array class "+plain.FQName())
	}
	load, err := p.resolver.MemberFunction(cls, "get", func(fn *ir.Function) bool { return len(fn.Params) == 1 })
	if err != nil {
		return nil, nil, symbolFailure(err, "array element getter")
	}
	store, err := p.resolver.MemberFunction(cls, "set", func(fn *ir.Function) bool { return len(fn.Params) == 2 })
	if err != nil {
		return nil, nil, symbolFailure(err, "array element setter")
	}

	getter, setter = p.accessorPairOf(storageName(arr)+"[]", value, encl,
		func() ir.Expr {
			return &ir.Call{Callee: load, Dispatch: ir.DeepCopy(arr), Args: []ir.Expr{ir.DeepCopy(idx)}, Typ: value}
		},
		func(v ir.Expr) ir.Expr {
			return &ir.Call{Callee: store, Dispatch: ir.DeepCopy(arr), Args: []ir.Expr{ir.DeepCopy(idx), v}, Typ: ir.Unit}
		},
	)
	return getter, setter, nil
}

// storageName names the storage location an expression reads.
func storageName(e ir.Expr) string {
	switch n := e.(type) {
	case *ir.GetField:
		return n.Field.Name
	case *ir.GetValue:
		return n.Target.DeclName()
	case *ir.Call:
		if n.Callee.Property != nil {
			return n.Callee.Property.Name
		}
		return n.Callee.Name
	}
	return "array"
}
