package transform

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/wrapper"
)

var (
	surfaceOnce sync.Once
	surface     *library.Surface
	surfaceErr  error
)

func testSurface(t *testing.T) *library.Surface {
	t.Helper()
	surfaceOnce.Do(func() {
		surface, surfaceErr = library.Load(context.Background(), library.Options{})
	})
	require.NoError(t, surfaceErr)
	return surface
}

var (
	atomicIntType     = ir.ClassType(wrapper.Package, "AtomicInt")
	atomicLongType    = ir.ClassType(wrapper.Package, "AtomicLong")
	atomicIntArray    = ir.ClassType(wrapper.Package, "AtomicIntArray")
	reentrantLockType = ir.ClassType(wrapper.LocksPackage, "ReentrantLock")
)

func atomicRefType(arg *ir.Type) *ir.Type {
	return ir.ClassType(wrapper.Package, "AtomicRef", arg)
}

func atomicArrayType(arg *ir.Type) *ir.Type {
	return ir.ClassType(wrapper.Package, "AtomicArray", arg)
}

// libMember returns the single library member cls.name.
func libMember(t *testing.T, cls, name string) *ir.Function {
	t.Helper()
	c := testSurface(t).Index().ReferenceClass(cls)
	require.NotNil(t, c, cls)
	fns := c.Functions(name)
	require.Len(t, fns, 1, "%s.%s", cls, name)
	return fns[0]
}

// libFunction returns the single top-level library function pkg.name
// accepted by pred.
func libFunction(t *testing.T, pkg, name string, pred func(*ir.Function) bool) *ir.Function {
	t.Helper()
	var out []*ir.Function
	for _, fn := range testSurface(t).Index().ReferenceFunctions(pkg + "." + name) {
		if pred == nil || pred(fn) {
			out = append(out, fn)
		}
	}
	require.Len(t, out, 1, "%s.%s", pkg, name)
	return out[0]
}

// atomicFactory returns the atomic(initial) overload for a primitive value
// type, or the generic overload for any other type.
func atomicFactory(t *testing.T, value *ir.Type) *ir.Function {
	return libFunction(t, wrapper.Package, wrapper.ScalarFactory, func(fn *ir.Function) bool {
		if value.IsPrimitive() {
			return fn.Params[0].Type.Equal(value)
		}
		return len(fn.TypeParams) == 1
	})
}

func atomicCall(t *testing.T, value *ir.Type, wrapped *ir.Type, initial ir.Expr) *ir.Call {
	return &ir.Call{Callee: atomicFactory(t, value), Args: []ir.Expr{initial}, Typ: wrapped}
}

func newUnit() *ir.File {
	return &ir.File{Name: "counter.kt", Package: "demo"}
}

func newClass(f *ir.File, name string) *ir.Class {
	c := &ir.Class{Name: name, Package: f.Package}
	f.Add(c)
	return c
}

func addField(cls *ir.Class, name string, t *ir.Type, init ir.Expr) *ir.Field {
	f := &ir.Field{Name: name, Type: t, Init: init}
	cls.Add(f)
	return f
}

func addMethod(cls *ir.Class, name string, ret *ir.Type) *ir.Function {
	fn := &ir.Function{Name: name, Package: cls.Package, Return: ret, Body: &ir.Block{}}
	fn.Dispatch = &ir.ValueParam{Name: "this", Type: cls.Type(), Index: -1}
	fn.Dispatch.SetParent(fn)
	cls.Add(fn)
	return fn
}

func this(fn *ir.Function) ir.Expr {
	return &ir.GetValue{Target: fn.Dispatch}
}

func fieldOf(fn *ir.Function, f *ir.Field) *ir.GetField {
	return &ir.GetField{Receiver: this(fn), Field: f}
}

func memberCall(t *testing.T, recv ir.Expr, cls, name string, typ *ir.Type, args ...ir.Expr) *ir.Call {
	m := libMember(t, cls, name)
	if typ == nil {
		typ = m.Return
	}
	return &ir.Call{Callee: m, Dispatch: recv, Args: args, Typ: typ}
}

func ret(fn *ir.Function, v ir.Expr) *ir.Return {
	return &ir.Return{Target: fn, Value: v}
}

func run(t *testing.T, f *ir.File) Stats {
	t.Helper()
	stats, err := Transform(f, testSurface(t).Context(f), Options{})
	require.NoError(t, err)
	return stats
}

// closureArgs returns the trailing getter and setter closures of a call.
func closureArgs(t *testing.T, call *ir.Call) (getter, setter *ir.Function) {
	t.Helper()
	require.GreaterOrEqual(t, len(call.Args), 2)
	g, ok := call.Args[len(call.Args)-2].(*ir.FunctionExpr)
	require.True(t, ok, "getter argument is %T", call.Args[len(call.Args)-2])
	s, ok := call.Args[len(call.Args)-1].(*ir.FunctionExpr)
	require.True(t, ok, "setter argument is %T", call.Args[len(call.Args)-1])
	return g.Fn, s.Fn
}

// incrementSafeUnit builds:
//
//	class Counter {
//	  val a: AtomicInt = atomic(0)
//	  inline fun AtomicInt.incrementSafe(): Int { return this.incrementAndGet() }
//	  fun bump(): Int { return this.a.incrementSafe() }
//	}
type incrementSafeUnit struct {
	file  *ir.File
	class *ir.Class
	field *ir.Field
	ext   *ir.Function
	bump  *ir.Function
}

func newIncrementSafeUnit(t *testing.T) *incrementSafeUnit {
	f := newUnit()
	cls := newClass(f, "Counter")
	a := addField(cls, "a", atomicIntType, atomicCall(t, ir.Int, atomicIntType, ir.IntConst(0)))

	ext := &ir.Function{Name: "incrementSafe", Package: cls.Package, Inline: true, Return: ir.Int, Body: &ir.Block{}}
	ext.Dispatch = &ir.ValueParam{Name: "this@Counter", Type: cls.Type(), Index: -1}
	ext.Dispatch.SetParent(ext)
	ext.Extension = &ir.ValueParam{Name: "this", Type: atomicIntType, Index: -1}
	ext.Extension.SetParent(ext)
	cls.Add(ext)
	ext.Body.Stmts = []ir.Stmt{
		ret(ext, memberCall(t, &ir.GetValue{Target: ext.Extension}, "kotlinx.atomicfu.AtomicInt", "incrementAndGet", nil)),
	}

	bump := addMethod(cls, "bump", ir.Int)
	bump.Body.Stmts = []ir.Stmt{
		ret(bump, &ir.Call{Callee: ext, Dispatch: this(bump), Extension: fieldOf(bump, a), Typ: ir.Int}),
	}
	return &incrementSafeUnit{file: f, class: cls, field: a, ext: ext, bump: bump}
}
