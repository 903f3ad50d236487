package source

import (
	"strings"

	"github.com/roach88/atomicfu/internal/ir"
)

// candidate is a function reachable from a call site together with the
// receivers it would be invoked on.
type candidate struct {
	fn        *ir.Function
	dispatch  ir.Expr
	extension ir.Expr
	bindings  map[string]*ir.Type
}

func (d *decoder) call(n node, sc *scope) (ir.Expr, error) {
	name := n.str("fn")
	if name == "" {
		return nil, d.errorf("call needs fn")
	}
	args, err := d.exprs(n.list("args"), sc)
	if err != nil {
		return nil, err
	}
	typeArgs, err := d.typeList(n.list("type_args"), sc)
	if err != nil {
		return nil, err
	}
	var recv ir.Expr
	if raw, ok := n["receiver"]; ok {
		if recv, err = d.expr(raw, sc); err != nil {
			return nil, err
		}
	}

	var picked *candidate
	for _, tier := range d.candidates(name, recv, sc) {
		c, err := d.pick(name, tier, args, typeArgs)
		if err != nil {
			return nil, err
		}
		if c != nil {
			picked = c
			break
		}
	}
	if picked == nil {
		return nil, d.errorf("no function %s applicable to %d argument(s)", name, len(args))
	}

	call := &ir.Call{
		Callee:    picked.fn,
		Dispatch:  picked.dispatch,
		Extension: picked.extension,
		Args:      args,
		TypeArgs:  typeArgs,
	}
	if call.TypeArgs == nil && len(picked.fn.TypeParams) > 0 {
		for _, tp := range picked.fn.TypeParams {
			t, ok := picked.bindings[tp]
			if !ok {
				t = ir.NullableAny
			}
			call.TypeArgs = append(call.TypeArgs, t)
		}
	}
	if call.Typ, err = d.optType(n, sc); err != nil {
		return nil, err
	}
	if call.Typ == nil {
		call.Typ = picked.fn.Return.Substitute(picked.bindings)
	}
	return call, nil
}

func (d *decoder) typeList(raws []any, sc *scope) ([]*ir.Type, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]*ir.Type, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			return nil, d.errorf("type argument must be a string, got %T", raw)
		}
		t, err := d.typ(s, sc.allTypeParams())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// candidates lists the functions a call may resolve to, in tiers of
// decreasing precedence. With a receiver, members of the receiver's class
// come before extensions. Unqualified names search the enclosing class,
// then the unit, then the default imports.
func (d *decoder) candidates(name string, recv ir.Expr, sc *scope) [][]candidate {
	var tiers [][]candidate
	if recv != nil {
		if cls := d.classOf(recv.Type()); cls != nil {
			var members []candidate
			for _, fn := range cls.Functions(name) {
				if fn.Extension == nil {
					members = append(members, candidate{fn: fn, dispatch: recv, bindings: classBindings(cls, recv.Type())})
				}
			}
			tiers = append(tiers, members)
		}
	}

	wantExt := recv != nil
	filter := func(fns []*ir.Function, dispatch ir.Expr) []candidate {
		var out []candidate
		for _, fn := range fns {
			if (fn.Extension != nil) != wantExt {
				continue
			}
			c := candidate{fn: fn, extension: recv, bindings: map[string]*ir.Type{}}
			if fn.Dispatch != nil {
				if dispatch == nil {
					continue
				}
				c.dispatch = dispatch
			}
			out = append(out, c)
		}
		return out
	}

	if strings.Contains(name, ".") {
		pkg, simple := name[:strings.LastIndexByte(name, '.')], name[strings.LastIndexByte(name, '.')+1:]
		var fns []*ir.Function
		if pkg == d.file.Package {
			fns = append(fns, d.topFunctions(simple)...)
		}
		fns = append(fns, d.ctx.ReferenceFunctions(name)...)
		return append(tiers, filter(fns, nil))
	}

	if this, cls := sc.dispatch(); this != nil && cls != nil {
		tiers = append(tiers, filter(cls.Functions(name), &ir.GetValue{Target: this}))
	}
	tiers = append(tiers, filter(d.topFunctions(name), nil))
	var imported []*ir.Function
	for _, pkg := range DefaultImports {
		imported = append(imported, d.ctx.ReferenceFunctions(pkg+"."+name)...)
	}
	return append(tiers, filter(imported, nil))
}

func (d *decoder) topFunctions(name string) []*ir.Function {
	var out []*ir.Function
	for _, decl := range d.file.Decls {
		if fn, ok := decl.(*ir.Function); ok && fn.Name == name {
			out = append(out, fn)
		}
	}
	return out
}

// pick selects the single applicable candidate of a tier. Candidates are
// filtered by arity and then by argument types; among several applicable
// overloads the one with the fewest type-parameter parameters wins.
// A nil result with no error means the tier has no applicable candidate.
func (d *decoder) pick(name string, tier []candidate, args []ir.Expr, typeArgs []*ir.Type) (*candidate, error) {
	var ok []candidate
	for _, c := range tier {
		fn := c.fn
		if len(fn.Params) != len(args) {
			continue
		}
		if typeArgs != nil && len(typeArgs) != len(fn.TypeParams) {
			continue
		}
		b := make(map[string]*ir.Type, len(c.bindings)+len(fn.TypeParams))
		for k, v := range c.bindings {
			b[k] = v
		}
		for i, tp := range fn.TypeParams {
			if typeArgs != nil {
				b[tp] = typeArgs[i]
			}
		}
		if c.extension != nil && !bind(fn.Extension.Type, c.extension.Type(), b) {
			continue
		}
		applicable := true
		for i, p := range fn.Params {
			if !bind(p.Type, args[i].Type(), b) {
				applicable = false
				break
			}
		}
		if !applicable {
			continue
		}
		c.bindings = b
		ok = append(ok, c)
	}
	if len(ok) <= 1 {
		if len(ok) == 0 {
			return nil, nil
		}
		return &ok[0], nil
	}

	best, bestScore, tied := 0, generality(ok[0].fn), false
	for i := 1; i < len(ok); i++ {
		switch s := generality(ok[i].fn); {
		case s < bestScore:
			best, bestScore, tied = i, s, false
		case s == bestScore:
			tied = true
		}
	}
	if tied {
		return nil, d.errorf("call to %s is ambiguous between %d overloads", name, len(ok))
	}
	return &ok[best], nil
}

// generality counts the parameters typed by a bare type parameter.
func generality(fn *ir.Function) int {
	n := 0
	for _, p := range fn.Params {
		if p.Type.TypeParam {
			n++
		}
	}
	if fn.Extension != nil && fn.Extension.Type.TypeParam {
		n++
	}
	return n
}

func classBindings(cls *ir.Class, t *ir.Type) map[string]*ir.Type {
	b := make(map[string]*ir.Type, len(cls.TypeParams))
	if len(t.Args) != len(cls.TypeParams) {
		return b
	}
	for i, tp := range cls.TypeParams {
		b[tp] = t.Args[i]
	}
	return b
}

// bind reports whether a value of type actual may be passed where pattern
// is expected, recording type parameter bindings in b.
func bind(pattern, actual *ir.Type, b map[string]*ir.Type) bool {
	if pattern == nil || actual == nil {
		return true
	}
	if !actual.TypeParam && actual.FQName() == ir.Nothing.FQName() {
		return !actual.Nullable || pattern.Nullable || pattern.TypeParam
	}
	if pattern.TypeParam {
		bound, ok := b[pattern.Name]
		if !ok {
			if pattern.Nullable {
				actual = actual.WithNullable(false)
			}
			b[pattern.Name] = actual
			return true
		}
		if pattern.Nullable {
			bound = bound.WithNullable(true)
		}
		return assignable(bound, actual)
	}
	if pattern.IsFunction() || actual.IsFunction() {
		if pattern.IsFunction() != actual.IsFunction() || len(pattern.Params) != len(actual.Params) {
			return false
		}
		for i := range pattern.Params {
			if !bind(pattern.Params[i], actual.Params[i], b) {
				return false
			}
		}
		return bind(pattern.Result, actual.Result, b)
	}
	if pattern.FQName() == ir.Any.FQName() {
		return pattern.Nullable || !actual.Nullable
	}
	if actual.TypeParam || pattern.FQName() != actual.FQName() {
		return false
	}
	if actual.Nullable && !pattern.Nullable {
		return false
	}
	if len(pattern.Args) == len(actual.Args) {
		for i := range pattern.Args {
			if !bind(pattern.Args[i], actual.Args[i], b) {
				return false
			}
		}
	}
	return true
}

func assignable(to, from *ir.Type) bool {
	if to.TypeParam || from.TypeParam {
		return true
	}
	if to.FQName() == ir.Any.FQName() {
		return to.Nullable || !from.Nullable
	}
	if from.Nullable && !to.Nullable {
		return false
	}
	return to.WithNullable(false).Equal(from.WithNullable(false))
}

func (d *decoder) construct(n node, sc *scope) (ir.Expr, error) {
	t, err := d.optType(n, sc)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, d.errorf("new needs a type")
	}
	cls := d.classOf(t)
	if cls == nil {
		return nil, d.errorf("unknown class %s", t.FQName())
	}
	args, err := d.exprs(n.list("args"), sc)
	if err != nil {
		return nil, err
	}
	var found []*ir.Constructor
	for _, ctor := range cls.Constructors() {
		if len(ctor.Params) != len(args) {
			continue
		}
		b := classBindings(cls, t)
		applicable := true
		for i, p := range ctor.Params {
			if !bind(p.Type, args[i].Type(), b) {
				applicable = false
				break
			}
		}
		if applicable {
			found = append(found, ctor)
		}
	}
	switch len(found) {
	case 0:
		return nil, d.errorf("no constructor of %s applicable to %d argument(s)", cls.FQName(), len(args))
	case 1:
		return &ir.ConstructorCall{Constructor: found[0], Args: args, TypeArgs: t.Args, Typ: t}, nil
	default:
		return nil, d.errorf("constructor call of %s is ambiguous", cls.FQName())
	}
}
