package wrapper

import "github.com/roach88/atomicfu/internal/ir"

// Library entry points recognized as wrapper constructions.
const (
	ScalarFactory     = "atomic"
	ArrayFactory      = "atomicArrayOfNulls"
	LockFactory       = "reentrantLock"
	ArrayElementGet   = "get"
	ValueGetter       = "<get-value>"
	ValueSetter       = "<set-value>"
	PlainArrayFactory = "arrayOfNulls"
)

// isLibraryFunction reports whether fn is a top-level function of pkg named name.
func isLibraryFunction(fn *ir.Function, pkg, name string) bool {
	return fn != nil && fn.Class() == nil && fn.Package == pkg && fn.Name == name
}

// IsScalarFactory matches atomic(initial) producing a scalar wrapper.
func IsScalarFactory(e ir.Expr) bool {
	call, ok := e.(*ir.Call)
	return ok && isLibraryFunction(call.Callee, Package, ScalarFactory) && IsScalar(call.Typ)
}

// IsArrayFactory matches atomicArrayOfNulls<T>(size).
func IsArrayFactory(e ir.Expr) bool {
	call, ok := e.(*ir.Call)
	return ok && isLibraryFunction(call.Callee, Package, ArrayFactory) && IsArray(call.Typ)
}

// IsArrayConstructor matches a direct atomic array constructor call.
func IsArrayConstructor(e ir.Expr) bool {
	cc, ok := e.(*ir.ConstructorCall)
	return ok && IsArray(cc.Typ)
}

// IsLockConstruction matches reentrantLock() and a direct lock constructor call.
func IsLockConstruction(e ir.Expr) bool {
	switch n := e.(type) {
	case *ir.Call:
		return isLibraryFunction(n.Callee, LocksPackage, LockFactory) && IsLock(n.Typ)
	case *ir.ConstructorCall:
		return IsLock(n.Typ)
	}
	return false
}

// IsConstruction reports whether e builds a wrapper value.
func IsConstruction(e ir.Expr) bool {
	return IsScalarFactory(e) || IsArrayFactory(e) || IsArrayConstructor(e) || IsLockConstruction(e)
}

// IsArrayElementGet matches arr.get(index) on an atomic array.
func IsArrayElementGet(e ir.Expr) bool {
	call, ok := e.(*ir.Call)
	if !ok || call.Callee.Name != ArrayElementGet || call.Dispatch == nil || len(call.Args) != 1 {
		return false
	}
	return IsArray(call.Dispatch.Type())
}

// HelperName maps a wrapper operation name to its runtime helper's
// operation name. Value property accessors map to getValue/setValue;
// every other operation keeps its name.
func HelperName(op string) string {
	switch op {
	case ValueGetter:
		return "getValue"
	case ValueSetter:
		return "setValue"
	default:
		return op
	}
}

// HelperPrefix prefixes every runtime helper function name.
const HelperPrefix = "atomicfu_"
