package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeRoundTrip(t *testing.T) {
	tests := []string{
		"kotlin.Int",
		"kotlin.Int?",
		"kotlinx.atomicfu.AtomicInt",
		"kotlinx.atomicfu.AtomicRef<kotlin.String?>",
		"kotlin.Array<kotlinx.atomicfu.AtomicRef<T>>",
		"() -> kotlin.Int",
		"(kotlin.Int) -> kotlin.Unit",
		"(T, kotlin.Int) -> T",
		"((T) -> kotlin.Unit)?",
		"kotlin.collections.Map<kotlin.String, kotlin.Int>",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			typ, err := ParseType(s, []string{"T"})
			require.NoError(t, err)
			assert.Equal(t, s, typ.String())
		})
	}
}

func TestParseTypeUnqualifiedIsBuiltin(t *testing.T) {
	typ, err := ParseType("Int", nil)
	require.NoError(t, err)
	assert.True(t, typ.Equal(Int))
	assert.Equal(t, "kotlin.Int", typ.String())

	typ, err = ParseType("T", nil)
	require.NoError(t, err)
	assert.False(t, typ.TypeParam, "T is a builtin name unless declared as a parameter")

	typ, err = ParseType("T?", []string{"T"})
	require.NoError(t, err)
	assert.True(t, typ.TypeParam)
	assert.True(t, typ.Nullable)
}

func TestParseTypeErrors(t *testing.T) {
	tests := []string{
		"",
		"kotlin.",
		".Int",
		"Array<Int",
		"(Int, Long)",
		"(Int",
		"Int Long",
		"Map<Int;Long>",
	}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := ParseType(s, nil)
			require.Error(t, err)
			var syntaxErr *TypeSyntaxError
			require.ErrorAs(t, err, &syntaxErr)
			assert.Equal(t, s, syntaxErr.Input)
		})
	}
}

func TestMustParseTypePanics(t *testing.T) {
	assert.Panics(t, func() { MustParseType("Array<") })
	assert.NotPanics(t, func() { MustParseType("Array<T>", "T") })
}

func TestTypeEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{"same builtin", Int, ClassType(BuiltinPackage, "Int"), true},
		{"nullability differs", Int, Int.WithNullable(true), false},
		{"package differs", Int, ClassType("demo", "Int"), false},
		{"args differ", ArrayOf(Int), ArrayOf(Long), false},
		{"function types", SetterType(Int), FuncType(Unit, Int), true},
		{"function result differs", GetterType(Int), GetterType(Long), false},
		{"param vs class", TypeParamRef("T"), ClassType(BuiltinPackage, "T"), false},
		{"both nil", nil, nil, true},
		{"one nil", Int, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestTypeWithNullableCopies(t *testing.T) {
	n := Int.WithNullable(true)
	assert.True(t, n.Nullable)
	assert.False(t, Int.Nullable, "builtins are shared and must not be mutated")
	assert.Nil(t, (*Type)(nil).WithNullable(true))
}

func TestTypeSubstitute(t *testing.T) {
	ref := MustParseType("kotlinx.atomicfu.AtomicRef<T>", "T")
	bound := ref.Substitute(map[string]*Type{"T": String.WithNullable(true)})
	assert.Equal(t, "kotlinx.atomicfu.AtomicRef<kotlin.String?>", bound.String())
	assert.Equal(t, "kotlinx.atomicfu.AtomicRef<T>", ref.String(), "substitution copies")

	fn := MustParseType("(T?) -> U", "T", "U")
	got := fn.Substitute(map[string]*Type{"T": Int})
	assert.Equal(t, "(kotlin.Int?) -> U", got.String())

	assert.Same(t, ref, ref.Substitute(nil))
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, Int.IsPrimitive())
	assert.True(t, Boolean.IsPrimitive())
	assert.False(t, Int.WithNullable(true).IsPrimitive())
	assert.False(t, String.IsPrimitive())
	assert.False(t, ClassType("demo", "Int").IsPrimitive())

	assert.True(t, GetterType(Int).IsFunction())
	assert.False(t, Int.IsFunction())

	assert.Equal(t, "kotlin.Int", Int.FQName())
	assert.Equal(t, "T", TypeParamRef("T").FQName())
	assert.Empty(t, SetterType(Int).FQName())
}

func TestAccessorTypes(t *testing.T) {
	assert.Equal(t, "() -> kotlin.Long", GetterType(Long).String())
	assert.Equal(t, "(kotlin.Long) -> kotlin.Unit", SetterType(Long).String())
	assert.Equal(t, "kotlin.Array<kotlin.Any?>", ArrayOf(NullableAny).String())
}
