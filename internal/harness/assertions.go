package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/transform"
	"github.com/roach88/atomicfu/internal/wrapper"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Output   string // Rendered unit for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Output != "" {
		fmt.Fprintf(&buf, "\nTransformed unit:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Output, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// AssertionContext carries what assertions evaluate against.
type AssertionContext struct {
	// Unit is the unit after the pass (partially rewritten if Err is set).
	Unit *ir.File

	// Err is the pass error, if any.
	Err error
}

// assertNoWrappers checks that no wrapper type survives the pass.
func assertNoWrappers(unit *ir.File, output string) error {
	leftovers := transform.Check(unit)
	if len(leftovers) == 0 {
		return nil
	}
	actual := make([]string, len(leftovers))
	for i, l := range leftovers {
		actual[i] = l.String()
	}
	return &AssertionError{
		Type:     AssertNoWrappers,
		Expected: "no wrapper references",
		Actual:   strings.Join(actual, "; "),
		Output:   output,
	}
}

// assertHelperCalled counts calls to a runtime helper.
// A zero Count accepts any positive number of calls.
func assertHelperCalled(unit *ir.File, assertion Assertion, output string) error {
	name := assertion.Helper
	if !strings.HasPrefix(name, wrapper.HelperPrefix) {
		name = wrapper.HelperPrefix + name
	}

	count := 0
	for _, call := range calls(unit) {
		if call.Callee.PackageName() == wrapper.Package && call.Callee.Name == name {
			count++
		}
	}

	switch {
	case assertion.Count == 0 && count > 0:
		return nil
	case assertion.Count == count:
		return nil
	}
	expected := fmt.Sprintf("%d calls to %s", assertion.Count, name)
	if assertion.Count == 0 {
		expected = fmt.Sprintf("at least one call to %s", name)
	}
	return &AssertionError{
		Type:     AssertHelperCalled,
		Expected: expected,
		Actual:   fmt.Sprintf("%d calls", count),
		Output:   output,
	}
}

// assertParamCount checks the value parameter count of every function
// matching the name.
func assertParamCount(unit *ir.File, assertion Assertion, output string) error {
	var found []*ir.Function
	ir.InspectDecls(unit, func(d ir.Decl) {
		if fn, ok := d.(*ir.Function); ok && matchesName(fn.Name, fn.FQName(), assertion.Function) {
			found = append(found, fn)
		}
	})
	if len(found) == 0 {
		return &AssertionError{
			Type:     AssertParamCount,
			Expected: fmt.Sprintf("function %s", assertion.Function),
			Actual:   "not declared",
			Output:   output,
		}
	}
	for _, fn := range found {
		if len(fn.Params) != assertion.Count {
			return &AssertionError{
				Type:     AssertParamCount,
				Expected: fmt.Sprintf("%s with %d parameters", fn.FQName(), assertion.Count),
				Actual:   fmt.Sprintf("%d parameters", len(fn.Params)),
				Output:   output,
			}
		}
	}
	return nil
}

// assertFieldType checks the declared type of a field.
func assertFieldType(unit *ir.File, assertion Assertion, output string) error {
	want, err := ir.ParseType(assertion.Expect, nil)
	if err != nil {
		return fmt.Errorf("field_type: %w", err)
	}

	var field *ir.Field
	ir.InspectDecls(unit, func(d ir.Decl) {
		f, ok := d.(*ir.Field)
		if !ok || field != nil {
			return
		}
		qualified := f.Name
		if c, ok := f.Parent().(*ir.Class); ok {
			qualified = c.Name + "." + f.Name
		}
		if matchesName(f.Name, qualified, assertion.Field) {
			field = f
		}
	})
	if field == nil {
		return &AssertionError{
			Type:     AssertFieldType,
			Expected: fmt.Sprintf("field %s", assertion.Field),
			Actual:   "not declared",
			Output:   output,
		}
	}
	if !field.Type.Equal(want) {
		return &AssertionError{
			Type:     AssertFieldType,
			Expected: fmt.Sprintf("%s: %s", assertion.Field, want),
			Actual:   fmt.Sprintf("%s: %s", assertion.Field, field.Type),
			Output:   output,
		}
	}
	return nil
}

// assertAccessorOrder checks that every helper call and every call to an
// expanded declaration passes the getter before the setter as its last two
// arguments.
func assertAccessorOrder(unit *ir.File, output string) error {
	checked := 0
	for _, call := range calls(unit) {
		if !takesAccessors(call.Callee) {
			continue
		}
		checked++
		if err := accessorArgs(call); err != "" {
			return &AssertionError{
				Type:     AssertAccessorOrder,
				Expected: "getter then setter as trailing arguments of " + ir.RenderExpr(call),
				Actual:   err,
				Output:   output,
			}
		}
	}
	if checked == 0 {
		return &AssertionError{
			Type:     AssertAccessorOrder,
			Expected: "at least one call taking accessors",
			Actual:   "none found",
			Output:   output,
		}
	}
	return nil
}

// assertFailsWith checks the pass error code.
func assertFailsWith(passErr error, assertion Assertion, output string) error {
	if passErr == nil {
		return &AssertionError{
			Type:     AssertFailsWith,
			Expected: "pass failure " + assertion.Code,
			Actual:   "pass succeeded",
			Output:   output,
		}
	}
	if code := string(transform.CodeOf(passErr)); code != assertion.Code {
		return &AssertionError{
			Type:     AssertFailsWith,
			Expected: "pass failure " + assertion.Code,
			Actual:   passErr.Error(),
		}
	}
	return nil
}

func takesAccessors(fn *ir.Function) bool {
	if fn.PackageName() == wrapper.Package && strings.HasPrefix(fn.Name, wrapper.HelperPrefix) {
		return true
	}
	n := len(fn.Params)
	return n >= 2 &&
		fn.Params[n-2].Name == transform.GetterParamName &&
		fn.Params[n-1].Name == transform.SetterParamName
}

// accessorArgs describes what is wrong with the trailing accessor
// arguments of call, or returns "".
func accessorArgs(call *ir.Call) string {
	n := len(call.Args)
	if n < 2 {
		return fmt.Sprintf("%d arguments", n)
	}
	getter, setter := call.Args[n-2], call.Args[n-1]

	// Inside an expanded declaration the accessors are forwarded parameters.
	if g, ok := getter.(*ir.GetValue); ok {
		s, ok := setter.(*ir.GetValue)
		if ok && g.Target.DeclName() == transform.GetterParamName && s.Target.DeclName() == transform.SetterParamName {
			return ""
		}
		return "forwarded accessors out of order"
	}

	g, ok := getter.(*ir.FunctionExpr)
	if !ok || g.Fn.Origin != ir.OriginAccessorLambda || !strings.HasPrefix(g.Fn.Name, "<get-") || len(g.Fn.Params) != 0 {
		return "second to last argument is " + ir.RenderExpr(getter)
	}
	s, ok := setter.(*ir.FunctionExpr)
	if !ok || s.Fn.Origin != ir.OriginAccessorLambda || !strings.HasPrefix(s.Fn.Name, "<set-") || len(s.Fn.Params) != 1 {
		return "last argument is " + ir.RenderExpr(setter)
	}
	return ""
}

// calls returns every call in the unit's initializers and bodies.
func calls(unit *ir.File) []*ir.Call {
	var out []*ir.Call
	visit := func(s ir.Stmt) bool {
		if c, ok := s.(*ir.Call); ok {
			out = append(out, c)
		}
		return true
	}
	ir.InspectDecls(unit, func(d ir.Decl) {
		switch n := d.(type) {
		case *ir.Field:
			if n.Init != nil {
				ir.Inspect(n.Init, visit)
			}
		case *ir.Function:
			if n.Body != nil {
				ir.Inspect(n.Body, visit)
			}
		}
	})
	return out
}

func matchesName(simple, qualified, want string) bool {
	return want == simple || want == qualified || strings.HasSuffix(qualified, "."+want)
}

// EvaluateAssertions runs every assertion against the result and returns
// error messages for the failed ones.
//
// When the pass failed, only fails_with is meaningful; every other
// assertion reports the pass failure instead.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Unit == nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: no unit to evaluate", i))
			continue
		}
		if actx.Err != nil && assertion.Type != AssertFailsWith {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s: pass failed: %v", i, assertion.Type, actx.Err))
			continue
		}

		switch assertion.Type {
		case AssertNoWrappers:
			err = assertNoWrappers(actx.Unit, result.Output)
		case AssertHelperCalled:
			err = assertHelperCalled(actx.Unit, assertion, result.Output)
		case AssertParamCount:
			err = assertParamCount(actx.Unit, assertion, result.Output)
		case AssertFieldType:
			err = assertFieldType(actx.Unit, assertion, result.Output)
		case AssertAccessorOrder:
			err = assertAccessorOrder(actx.Unit, result.Output)
		case AssertFailsWith:
			err = assertFailsWith(actx.Err, assertion, result.Output)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
