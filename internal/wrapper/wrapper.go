// Package wrapper classifies the library wrapper types the pass erases.
//
// Classification is a whitelist lookup by qualified type name. It is a pure
// function of the declared static type: no runtime information exists at
// this stage of compilation.
package wrapper

import (
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
)

// Wrapper packages.
const (
	Package      = "kotlinx.atomicfu"
	LocksPackage = "kotlinx.atomicfu.locks"
)

// Shape is the wrapper category.
type Shape int

const (
	Scalar Shape = iota + 1
	Array
	Lock
)

func (s Shape) String() string {
	switch s {
	case Scalar:
		return "scalar"
	case Array:
		return "array"
	case Lock:
		return "lock"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Kind is the value kind held by a scalar wrapper or array slot.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindLong
	KindBool
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindLong:
		return "Long"
	case KindBool:
		return "Boolean"
	case KindRef:
		return "Ref"
	default:
		return "None"
	}
}

// Descriptor classifies one wrapper type.
type Descriptor struct {
	Shape Shape
	Kind  Kind
}

func (d Descriptor) String() string {
	if d.Shape == Lock {
		return d.Shape.String()
	}
	return fmt.Sprintf("%s(%s)", d.Shape, d.Kind)
}

// table is the total whitelist of recognized wrapper types.
var table = map[string]Descriptor{
	Package + ".AtomicInt":          {Scalar, KindInt},
	Package + ".AtomicLong":         {Scalar, KindLong},
	Package + ".AtomicBoolean":      {Scalar, KindBool},
	Package + ".AtomicRef":          {Scalar, KindRef},
	Package + ".AtomicIntArray":     {Array, KindInt},
	Package + ".AtomicLongArray":    {Array, KindLong},
	Package + ".AtomicBooleanArray": {Array, KindBool},
	Package + ".AtomicArray":        {Array, KindRef},
	LocksPackage + ".ReentrantLock": {Lock, KindNone},
}

// Names returns the qualified names of all recognized wrapper types.
func Names() []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	return out
}

// Classify returns the descriptor of t, or false for unrelated types.
// Function types and type parameters never classify.
func Classify(t *ir.Type) (Descriptor, bool) {
	if t == nil || t.IsFunction() || t.TypeParam {
		return Descriptor{}, false
	}
	d, ok := table[t.FQName()]
	return d, ok
}

// IsScalar reports whether t is a scalar atomic holder.
func IsScalar(t *ir.Type) bool {
	d, ok := Classify(t)
	return ok && d.Shape == Scalar
}

// IsArray reports whether t is an atomic array.
func IsArray(t *ir.Type) bool {
	d, ok := Classify(t)
	return ok && d.Shape == Array
}

// IsLock reports whether t is the lock type.
func IsLock(t *ir.Type) bool {
	d, ok := Classify(t)
	return ok && d.Shape == Lock
}

// IsWrapper reports whether t is any recognized wrapper type.
func IsWrapper(t *ir.Type) bool {
	_, ok := Classify(t)
	return ok
}

// IsWrapperPackage reports whether pkg is one of the wrapper packages.
func IsWrapperPackage(pkg string) bool {
	return pkg == Package || pkg == LocksPackage
}

// kindType maps primitive kinds to their builtin value type.
func kindType(k Kind) *ir.Type {
	switch k {
	case KindInt:
		return ir.Int
	case KindLong:
		return ir.Long
	case KindBool:
		return ir.Boolean
	}
	return nil
}

// ValueType returns the unwrapped value type of a scalar wrapper or of the
// slots of an atomic array. A Ref wrapper unwraps to its type argument, or
// kotlin.Any? when none is given.
func ValueType(t *ir.Type) *ir.Type {
	d, ok := Classify(t)
	if !ok || d.Shape == Lock {
		return nil
	}
	if d.Kind == KindRef {
		if len(t.Args) == 1 {
			return t.Args[0]
		}
		return ir.NullableAny
	}
	return kindType(d.Kind)
}

// ArrayType returns the plain array type replacing an atomic array type.
// Object arrays become null-fillable: AtomicArray<T> -> kotlin.Array<T?>.
func ArrayType(t *ir.Type) *ir.Type {
	d, ok := Classify(t)
	if !ok || d.Shape != Array {
		return nil
	}
	switch d.Kind {
	case KindInt:
		return ir.IntArray
	case KindLong:
		return ir.LongArray
	case KindBool:
		return ir.BooleanArray
	}
	return ir.ArrayOf(ValueType(t).WithNullable(true))
}

// ErasedType returns the declared type a wrapper-typed declaration has
// after the pass. Unrelated types are returned unchanged.
func ErasedType(t *ir.Type) *ir.Type {
	d, ok := Classify(t)
	if !ok {
		return t
	}
	var erased *ir.Type
	switch d.Shape {
	case Scalar:
		erased = ValueType(t)
	case Array:
		erased = ArrayType(t)
	default:
		erased = ir.NullableAny
	}
	if t.Nullable {
		return erased.WithNullable(true)
	}
	return erased
}
