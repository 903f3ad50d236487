package ir

import "strings"

// BuiltinPackage is the package of the ambient language builtins.
const BuiltinPackage = "kotlin"

// Type is the declared static type of a declaration or expression.
//
// A Type is one of three shapes:
//   - class type: Package + Name (+ Args), e.g. kotlin.Array<kotlin.Any?>
//   - function type: Params + Result, e.g. (kotlin.Int) -> kotlin.Unit
//   - type parameter reference: Name with TypeParam set, e.g. T
//
// Types are values; they are never mutated after construction and may be
// shared freely between nodes.
type Type struct {
	Package   string
	Name      string
	Args      []*Type
	Nullable  bool
	TypeParam bool

	// Function types only.
	Params []*Type
	Result *Type
}

// Builtin types used throughout the pass.
var (
	Int          = ClassType(BuiltinPackage, "Int")
	Long         = ClassType(BuiltinPackage, "Long")
	Boolean      = ClassType(BuiltinPackage, "Boolean")
	String       = ClassType(BuiltinPackage, "String")
	Unit         = ClassType(BuiltinPackage, "Unit")
	Nothing      = ClassType(BuiltinPackage, "Nothing")
	Any          = ClassType(BuiltinPackage, "Any")
	NullableAny  = Any.WithNullable(true)
	IntArray     = ClassType(BuiltinPackage, "IntArray")
	LongArray    = ClassType(BuiltinPackage, "LongArray")
	BooleanArray = ClassType(BuiltinPackage, "BooleanArray")
)

var primitiveNames = map[string]bool{
	"Int":     true,
	"Long":    true,
	"Boolean": true,
	"Byte":    true,
	"Short":   true,
	"Char":    true,
	"Float":   true,
	"Double":  true,
}

// ClassType creates a non-null class type.
func ClassType(pkg, name string, args ...*Type) *Type {
	return &Type{Package: pkg, Name: name, Args: args}
}

// FuncType creates a function type with the given result and parameter types.
func FuncType(result *Type, params ...*Type) *Type {
	return &Type{Params: params, Result: result}
}

// TypeParamRef creates a reference to a type parameter in scope.
func TypeParamRef(name string) *Type {
	return &Type{Name: name, TypeParam: true}
}

// ArrayOf creates kotlin.Array<elem>.
func ArrayOf(elem *Type) *Type {
	return ClassType(BuiltinPackage, "Array", elem)
}

// GetterType is the type of a zero-argument accessor returning t: () -> t.
func GetterType(t *Type) *Type {
	return FuncType(t)
}

// SetterType is the type of a one-argument accessor storing t: (t) -> kotlin.Unit.
func SetterType(t *Type) *Type {
	return FuncType(Unit, t)
}

// IsFunction reports whether t is a function type.
func (t *Type) IsFunction() bool {
	return t != nil && t.Result != nil
}

// FQName returns the qualified class name ("pkg.Name"), or the bare name for
// type parameters. Function types have no qualified name.
func (t *Type) FQName() string {
	if t == nil || t.IsFunction() {
		return ""
	}
	if t.TypeParam || t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

// IsPrimitive reports whether t is a non-null builtin primitive.
func (t *Type) IsPrimitive() bool {
	if t == nil || t.Nullable || t.TypeParam || t.IsFunction() {
		return false
	}
	return t.Package == BuiltinPackage && primitiveNames[t.Name]
}

// WithNullable returns a copy of t with the given nullability.
func (t *Type) WithNullable(nullable bool) *Type {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Nullable = nullable
	return &cp
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Package != o.Package || t.Name != o.Name || t.Nullable != o.Nullable || t.TypeParam != o.TypeParam {
		return false
	}
	if !equalTypes(t.Args, o.Args) || !equalTypes(t.Params, o.Params) {
		return false
	}
	return t.Result.Equal(o.Result)
}

func equalTypes(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Substitute replaces type parameter references using bindings.
// Unbound parameters are left as they are.
func (t *Type) Substitute(bindings map[string]*Type) *Type {
	if t == nil || len(bindings) == 0 {
		return t
	}
	if t.TypeParam {
		if b, ok := bindings[t.Name]; ok {
			if t.Nullable {
				return b.WithNullable(true)
			}
			return b
		}
		return t
	}
	cp := *t
	cp.Args = substituteAll(t.Args, bindings)
	cp.Params = substituteAll(t.Params, bindings)
	cp.Result = t.Result.Substitute(bindings)
	return &cp
}

func substituteAll(ts []*Type, bindings map[string]*Type) []*Type {
	if ts == nil {
		return nil
	}
	out := make([]*Type, len(ts))
	for i, t := range ts {
		out[i] = t.Substitute(bindings)
	}
	return out
}

// String renders t in source form.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.IsFunction() {
		b.WriteByte('(')
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteString(") -> ")
		b.WriteString(t.Result.String())
		if t.Nullable {
			return "(" + b.String() + ")?"
		}
		return b.String()
	}
	b.WriteString(t.FQName())
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.Nullable {
		b.WriteByte('?')
	}
	return b.String()
}
