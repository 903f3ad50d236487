package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/library"
	"github.com/roach88/atomicfu/internal/resolve"
)

var (
	surfaceOnce sync.Once
	surface     *library.Surface
	surfaceErr  error
)

func testContext(t *testing.T) resolve.PluginContext {
	t.Helper()
	surfaceOnce.Do(func() {
		surface, surfaceErr = library.Load(context.Background(), library.Options{})
	})
	require.NoError(t, surfaceErr)
	return surface.Index()
}

func decodeFile(t *testing.T, name string) *ir.File {
	t.Helper()
	path := filepath.Join("testdata", name)
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	f, err := Decode(path, fh, testContext(t))
	require.NoError(t, err)
	return f
}

func decodeString(t *testing.T, path, doc string) (*ir.File, error) {
	t.Helper()
	return Decode(path, strings.NewReader(doc), testContext(t))
}

func class(t *testing.T, f *ir.File, name string) *ir.Class {
	t.Helper()
	for _, d := range f.Decls {
		if c, ok := d.(*ir.Class); ok && c.Name == name {
			return c
		}
	}
	t.Fatalf("class %s not found", name)
	return nil
}

func method(t *testing.T, c *ir.Class, name string) *ir.Function {
	t.Helper()
	fns := c.Functions(name)
	require.Len(t, fns, 1, name)
	return fns[0]
}

// returned extracts the value of the single return statement of fn.
func returned(t *testing.T, fn *ir.Function) ir.Expr {
	t.Helper()
	require.NotNil(t, fn.Body)
	r, ok := fn.Body.Stmts[len(fn.Body.Stmts)-1].(*ir.Return)
	require.True(t, ok, "last statement is %T", fn.Body.Stmts[len(fn.Body.Stmts)-1])
	assert.Same(t, fn, r.Target)
	return r.Value
}

func TestDecodeCounter(t *testing.T) {
	f := decodeFile(t, "counter.yaml")

	assert.Equal(t, "counter.kt", f.Name)
	assert.Equal(t, "demo", f.Package)
	cls := class(t, f, "Counter")

	a := cls.Field("a")
	require.NotNil(t, a)
	assert.Equal(t, "kotlinx.atomicfu.AtomicInt", a.Type.String())
	init, ok := a.Init.(*ir.Call)
	require.True(t, ok)
	assert.Equal(t, "kotlinx.atomicfu.atomic", init.Callee.FQName())
	assert.True(t, init.Callee.Params[0].Type.Equal(ir.Int), "Int overload is preferred over the generic one")
	assert.Equal(t, "kotlinx.atomicfu.AtomicInt", init.Typ.String())

	ext := method(t, cls, "incrementSafe")
	assert.True(t, ext.Inline)
	require.NotNil(t, ext.Extension)
	assert.Equal(t, "this@Counter", ext.Dispatch.Name)
	inner, ok := returned(t, ext).(*ir.Call)
	require.True(t, ok)
	assert.Equal(t, "kotlinx.atomicfu.AtomicInt.incrementAndGet", inner.Callee.FQName())
	assert.Same(t, ext.Extension, inner.Dispatch.(*ir.GetValue).Target)

	bump := method(t, cls, "bump")
	call, ok := returned(t, bump).(*ir.Call)
	require.True(t, ok)
	assert.Same(t, ext, call.Callee)
	assert.Same(t, bump.Dispatch, call.Dispatch.(*ir.GetValue).Target)
	field, ok := call.Extension.(*ir.GetField)
	require.True(t, ok)
	assert.Same(t, a, field.Field)
	assert.True(t, call.Typ.Equal(ir.Int))
}

func TestDecodeCUEMatchesYAML(t *testing.T) {
	fromYAML := decodeFile(t, "counter.yaml")
	fromCUE := decodeFile(t, "counter.cue")

	assert.Equal(t, ir.Render(fromYAML), ir.Render(fromCUE))
}

func TestDecodeRegistry(t *testing.T) {
	f := decodeFile(t, "registry.yaml")
	cls := class(t, f, "Registry")

	t.Run("generic factory with explicit type argument", func(t *testing.T) {
		init := cls.Field("head").Init.(*ir.Call)
		assert.Equal(t, "kotlinx.atomicfu.AtomicRef<kotlin.String?>", init.Typ.String())
		require.Len(t, init.TypeArgs, 1)
		assert.Equal(t, "kotlin.String?", init.TypeArgs[0].String())
	})

	t.Run("array constructor", func(t *testing.T) {
		init, ok := cls.Field("slots").Init.(*ir.ConstructorCall)
		require.True(t, ok)
		assert.Equal(t, "kotlinx.atomicfu.AtomicIntArray", init.Constructor.Class().FQName())
	})

	t.Run("lock factory", func(t *testing.T) {
		init := cls.Field("lock").Init.(*ir.Call)
		assert.Equal(t, "kotlinx.atomicfu.locks.reentrantLock", init.Callee.FQName())
	})

	t.Run("member type substituted from receiver", func(t *testing.T) {
		swap := method(t, cls, "swap")
		prev, ok := swap.Body.Stmts[0].(*ir.Variable)
		require.True(t, ok)
		assert.Equal(t, "kotlin.String?", prev.Type.String())
		assert.Same(t, swap, prev.Parent())
	})

	t.Run("qualified extension with lambda argument", func(t *testing.T) {
		swap := method(t, cls, "swap")
		update, ok := swap.Body.Stmts[1].(*ir.Call)
		require.True(t, ok)
		assert.Equal(t, "kotlinx.atomicfu.update", update.Callee.FQName())
		assert.Equal(t, "kotlinx.atomicfu.AtomicRef<T>", update.Callee.Extension.Type.String())
		lambda, ok := update.Args[0].(*ir.FunctionExpr)
		require.True(t, ok)
		assert.Equal(t, ir.OriginLambda, lambda.Fn.Origin)
		assert.Same(t, swap, lambda.Fn.Parent())
		r := lambda.Fn.Body.Stmts[0].(*ir.Return)
		assert.Same(t, lambda.Fn, r.Target)
		assert.Same(t, swap.Params[0], r.Value.(*ir.GetValue).Target)
	})

	t.Run("array element call", func(t *testing.T) {
		call := returned(t, method(t, cls, "bumpSlot")).(*ir.Call)
		get, ok := call.Dispatch.(*ir.Call)
		require.True(t, ok)
		assert.Equal(t, "kotlinx.atomicfu.AtomicIntArray.get", get.Callee.FQName())
		assert.Equal(t, "kotlinx.atomicfu.AtomicInt.incrementAndGet", call.Callee.FQName())
	})
}

func TestDecodeStatements(t *testing.T) {
	doc := `
package: demo
declarations:
  - kind: field
    name: total
    type: Long
    mutable: true
    init: {op: const, value: 0, type: Long}
  - kind: function
    name: work
    params: [{name: flag, type: Boolean}]
    returns: Long
    body:
      - {op: var, name: n, type: Long, mutable: true, value: {op: field, name: total}}
      - {op: set, name: n, value: {op: const, value: 5, type: Long}}
      - {op: setfield, name: total, value: {op: get, name: n}}
      - op: return
        value:
          op: when
          branches:
            - cond: {op: get, name: flag}
              result: {op: get, name: n}
            - result:
                op: try
                body: {op: block, stmts: [{op: field, name: total}]}
                catches: [{name: e, type: Throwable, result: {op: const, value: -1, type: Long}}]
`
	f, err := decodeString(t, "work.yaml", doc)
	require.NoError(t, err)

	assert.Equal(t, "work", f.Name, "unit name falls back to the file name")
	require.Len(t, f.Decls, 2)
	total := f.Decls[0].(*ir.Field)
	assert.Equal(t, ir.IRInt(0), total.Init.(*ir.Const).Value)
	assert.True(t, total.Init.Type().Equal(ir.Long))

	work := f.Decls[1].(*ir.Function)
	require.Len(t, work.Body.Stmts, 4)
	n := work.Body.Stmts[0].(*ir.Variable)
	assert.True(t, n.Mutable)
	set := work.Body.Stmts[1].(*ir.SetValue)
	assert.Same(t, n, set.Target)
	sf := work.Body.Stmts[2].(*ir.SetField)
	assert.Nil(t, sf.Receiver, "top-level fields have no receiver")

	w := returned(t, work).(*ir.When)
	require.Len(t, w.Branches, 2)
	assert.Nil(t, w.Branches[1].Cond)
	assert.True(t, w.Typ.Equal(ir.Long))
	tr := w.Branches[1].Result.(*ir.Try)
	require.Len(t, tr.Catches, 1)
	assert.Equal(t, "e", tr.Catches[0].Param.Name)
	assert.True(t, tr.Typ.Equal(ir.Long))
}

func TestDecodePropertyAndCasts(t *testing.T) {
	doc := `
package: demo
declarations:
  - kind: class
    name: Holder
    declarations:
      - kind: field
        name: ref
        type: kotlinx.atomicfu.AtomicRef<Any?>
        init: {op: call, fn: atomic, type_args: ['Any?'], args: [{op: null}]}
      - kind: function
        name: <get-ref>
        property: ref
        returns: kotlinx.atomicfu.AtomicRef<Any?>
        body:
          - {op: return, value: {op: field, name: ref}}
      - kind: function
        name: narrow
        params: [{name: x, type: 'Any?'}]
        returns: Boolean
        body:
          - {op: var, name: y, value: {op: cast, type: kotlinx.atomicfu.AtomicInt, value: {op: get, name: x}}}
          - {op: var, name: z, value: {op: safecast, type: String, value: {op: get, name: x}}}
          - {op: return, value: {op: is, type: String, value: {op: get, name: x}}}
`
	f, err := decodeString(t, "holder.yaml", doc)
	require.NoError(t, err)
	cls := f.Decls[0].(*ir.Class)

	getter := method(t, cls, "<get-ref>")
	assert.Equal(t, ir.OriginPropertyGetter, getter.Origin)
	assert.Same(t, cls.Field("ref"), getter.Property)

	narrow := method(t, cls, "narrow")
	y := narrow.Body.Stmts[0].(*ir.Variable)
	assert.Equal(t, ir.OpCast, y.Init.(*ir.TypeOp).Op)
	assert.Equal(t, "kotlinx.atomicfu.AtomicInt", y.Type.String())
	z := narrow.Body.Stmts[1].(*ir.Variable)
	assert.Equal(t, "kotlin.String?", z.Type.String())
	assert.True(t, returned(t, narrow).Type().Equal(ir.Boolean))
}

func TestDecodeUnitClassTypes(t *testing.T) {
	doc := `
package: demo
declarations:
  - kind: function
    name: make
    returns: Node
    body:
      - {op: return, value: {op: new, type: Node, args: [{op: const, value: 1}]}}
  - kind: class
    name: Node
    declarations:
      - {kind: constructor, params: [{name: v, type: Int}]}
      - {kind: field, name: v, type: Int}
`
	f, err := decodeString(t, "node.yaml", doc)
	require.NoError(t, err)

	mk := f.Decls[0].(*ir.Function)
	assert.Equal(t, "demo.Node", mk.Return.String(), "unit classes shadow builtins")
	cc := returned(t, mk).(*ir.ConstructorCall)
	assert.Same(t, f.Decls[1], cc.Constructor.Class())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		doc  string
		want string
	}{
		{
			name: "unsupported extension",
			path: "unit.json",
			doc:  `{}`,
			want: "unsupported extension .json",
		},
		{
			name: "missing package",
			path: "unit.yaml",
			doc:  `declarations: []`,
			want: "package is required",
		},
		{
			name: "unknown kind",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: struct, name: S}]",
			want: `unknown declaration kind "struct"`,
		},
		{
			name: "malformed type",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: field, name: f, type: 'Array<'}]",
			want: "type \"Array<\"",
		},
		{
			name: "unknown op",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: field, name: f, type: Int, init: {op: frob}}]",
			want: `unknown op "frob"`,
		},
		{
			name: "unknown name",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: function, name: f, body: [{op: get, name: nope}]}]",
			want: `unknown name "nope"`,
		},
		{
			name: "no applicable overload",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: field, name: f, type: Int, init: {op: call, fn: atomic, args: []}}]",
			want: "no function atomic applicable to 0 argument(s)",
		},
		{
			name: "var as expression",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: field, name: f, type: Int, init: {op: var, name: x}}]",
			want: "var is only allowed as a statement",
		},
		{
			name: "duplicate class",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: class, name: A}, {kind: class, name: A}]",
			want: "duplicate class A",
		},
		{
			name: "misspelled declaration key",
			path: "unit.yaml",
			doc:  "package: p\ndeclarations: [{kind: function, name: f, inlne: true}]",
			want: "field inlne not found",
		},
		{
			name: "unknown top-level key",
			path: "unit.yaml",
			doc:  "package: p\nimports: [q]",
			want: "field imports not found",
		},
		{
			name: "misspelled key in cue",
			path: "unit.cue",
			doc:  "package: \"p\"\ndeclarations: [{kind: \"function\", name: \"f\", inlne: true}]",
			want: "field inlne not found",
		},
		{
			name: "invalid cue",
			path: "unit.cue",
			doc:  "name: \"a\"\nname: \"b\"\npackage: \"p\"",
			want: "conflicting values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeString(t, tt.path, tt.doc)
			require.Error(t, err)
			var de *DecodeError
			require.True(t, errors.As(err, &de), "error is %T", err)
			assert.Equal(t, tt.path, de.Path)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yaml": FormatYAML, "a.YML": FormatYAML, "b.cue": FormatCUE} {
		got, ok := FormatOf(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	assert.False(t, IsUnitFile("notes.txt"))
}
