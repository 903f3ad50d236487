package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomicfu/internal/ir"
)

// libraryFile builds a small package with an overloaded top-level helper,
// a class with members and constructors, and a top-level field.
func libraryFile() *ir.File {
	f := &ir.File{Name: "lib", Package: "lib"}

	for _, t := range []*ir.Type{ir.Int, ir.Long} {
		fn := &ir.Function{Name: "getAndAdd", Package: "lib", Return: t}
		fn.AddParam("delta", t)
		f.Add(fn)
	}
	f.Add(&ir.Function{Name: "single", Package: "lib", Return: ir.Unit})

	c := &ir.Class{Name: "Box", Package: "lib"}
	c.Add(&ir.Constructor{})
	withSize := &ir.Constructor{}
	withSize.Params = []*ir.ValueParam{{Name: "size", Type: ir.Int}}
	c.Add(withSize)
	c.Add(&ir.Function{Name: "get", Return: ir.Int})
	c.Add(&ir.Function{Name: "single", Return: ir.Int})
	f.Add(c)

	f.Add(&ir.Field{Name: "limit", Type: ir.Int})
	return f
}

func TestIndexLookups(t *testing.T) {
	idx := NewIndex(libraryFile())

	assert.Len(t, idx.ReferenceFunctions("lib.getAndAdd"), 2)
	assert.Len(t, idx.ReferenceFunctions("lib.Box.get"), 1)
	assert.Empty(t, idx.ReferenceFunctions("other.getAndAdd"))

	require.NotNil(t, idx.ReferenceClass("lib.Box"))
	assert.Nil(t, idx.ReferenceClass("lib.Crate"))

	assert.Len(t, idx.Fields("lib.limit"), 1)
	assert.Empty(t, idx.Fields("lib.Box"))
}

func TestIndexWithDoesNotModifyReceiver(t *testing.T) {
	base := NewIndex(libraryFile())
	unit := &ir.File{Name: "unit.kt", Package: "demo"}
	unit.Add(&ir.Function{Name: "main", Package: "demo", Return: ir.Unit})

	ext := base.With(unit)
	assert.Len(t, ext.Files(), 2)
	assert.Len(t, base.Files(), 1)
	assert.Len(t, ext.ReferenceFunctions("demo.main"), 1)
	assert.Empty(t, base.ReferenceFunctions("demo.main"))
}

func TestIndexSeesReplacedDeclarations(t *testing.T) {
	f := libraryFile()
	idx := NewIndex(f)

	replacement := &ir.Function{Name: "renamed", Package: "lib", Return: ir.Unit}
	for i, d := range f.Decls {
		if fn, ok := d.(*ir.Function); ok && fn.Name == "single" {
			f.Decls[i] = replacement
		}
	}
	assert.Empty(t, idx.ReferenceFunctions("lib.single"))
	assert.Equal(t, []*ir.Function{replacement}, idx.ReferenceFunctions("lib.renamed"))
}

func TestPackageFunction(t *testing.T) {
	r := New(NewIndex(libraryFile()))

	byParam := func(typ *ir.Type) func(*ir.Function) bool {
		return func(fn *ir.Function) bool { return len(fn.Params) == 1 && fn.Params[0].Type.Equal(typ) }
	}

	fn, err := r.PackageFunction("lib", "getAndAdd", byParam(ir.Long))
	require.NoError(t, err)
	assert.True(t, ir.Long.Equal(fn.Return))

	_, err = r.PackageFunction("lib", "getAndAdd", nil)
	require.Error(t, err)
	assert.True(t, IsAmbiguous(err))
	assert.Equal(t, "AMBIGUOUS_SYMBOL: 2 declarations match lib.getAndAdd", err.Error())

	_, err = r.PackageFunction("lib", "getAndAdd", byParam(ir.Boolean))
	assert.True(t, IsMissing(err))

	// Members named like a top-level function are not package functions.
	fn, err = r.PackageFunction("lib", "single", nil)
	require.NoError(t, err)
	assert.Nil(t, fn.Class())
}

func TestClassAndMembers(t *testing.T) {
	r := New(NewIndex(libraryFile()))

	cls, err := r.Class("lib.Box")
	require.NoError(t, err)

	_, err = r.Class("lib.Crate")
	require.Error(t, err)
	assert.Equal(t, "MISSING_SYMBOL: no declaration matches lib.Crate", err.Error())

	ctor, err := r.Constructor(cls, func(c *ir.Constructor) bool { return len(c.Params) == 1 })
	require.NoError(t, err)
	assert.Equal(t, "size", ctor.Params[0].Name)

	_, err = r.Constructor(cls, nil)
	assert.True(t, IsAmbiguous(err))

	get, err := r.MemberFunction(cls, "get", nil)
	require.NoError(t, err)
	assert.Equal(t, "lib.Box.get", get.FQName())

	_, err = r.MemberFunction(cls, "set", nil)
	assert.True(t, IsMissing(err))
}

// extensionPair declares an inline extension on a wrapper type and its
// expanded sibling taking a getter and setter of value.
func extensionPair(value *ir.Type) (*ir.File, *ir.Function, *ir.Function) {
	f := &ir.File{Name: "unit.kt", Package: "demo"}

	ext := &ir.Function{Name: "incrementSafe", Package: "demo", Inline: true, Return: ir.Unit}
	ext.Extension = &ir.ValueParam{Name: "<this>", Type: ir.ClassType("kotlinx.atomicfu", "AtomicInt"), Index: -1}
	ext.AddParam("step", ir.Int)
	f.Add(ext)

	sibling := &ir.Function{Name: "incrementSafe", Package: "demo", Inline: true, Return: ir.Unit}
	sibling.AddParam("step", ir.Int)
	sibling.AddParam("get", ir.GetterType(value))
	sibling.AddParam("set", ir.SetterType(value))
	f.Add(sibling)

	return f, ext, sibling
}

func TestExpandedSibling(t *testing.T) {
	f, ext, sibling := extensionPair(ir.Int)
	r := New(NewIndex(f))

	got, err := r.ExpandedSibling(ext, ir.Int)
	require.NoError(t, err)
	assert.Same(t, sibling, got)

	_, err = r.ExpandedSibling(ext, ir.Long)
	assert.True(t, IsMissing(err))
}

func TestExpandedSiblingInClass(t *testing.T) {
	_, ext, sibling := extensionPair(ir.Int)
	cls := &ir.Class{Name: "Counter", Package: "demo"}
	ext.Package, sibling.Package = "", ""
	cls.Add(ext)
	cls.Add(sibling)

	got, err := New(NewIndex()).ExpandedSibling(ext, ir.Int)
	require.NoError(t, err)
	assert.Same(t, sibling, got)
}

func TestIsExpansionOf(t *testing.T) {
	_, ext, sibling := extensionPair(ir.Int)
	assert.True(t, IsExpansionOf(sibling, ext, ir.Int))
	assert.False(t, IsExpansionOf(ext, ext, ir.Int), "extension receiver")

	swapped := &ir.Function{Name: "incrementSafe", Return: ir.Unit}
	swapped.AddParam("step", ir.Int)
	swapped.AddParam("set", ir.SetterType(ir.Int))
	swapped.AddParam("get", ir.GetterType(ir.Int))
	assert.False(t, IsExpansionOf(swapped, ext, ir.Int), "accessor order")

	short := &ir.Function{Name: "incrementSafe", Return: ir.Unit}
	short.AddParam("step", ir.Int)
	assert.False(t, IsExpansionOf(short, ext, ir.Int), "arity")

	renamed := &ir.Function{Name: "incrementFast", Return: ir.Unit, Params: sibling.Params}
	assert.False(t, IsExpansionOf(renamed, ext, ir.Int), "name")
}
