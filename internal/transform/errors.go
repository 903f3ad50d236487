package transform

import (
	"errors"
	"fmt"

	"github.com/roach88/atomicfu/internal/resolve"
)

// PassErrorCode categorizes fatal pass failures.
type PassErrorCode string

const (
	// ErrCodeShapeViolation indicates an initializer or receiver that does
	// not match any recognized pattern for its wrapper type.
	ErrCodeShapeViolation PassErrorCode = "SHAPE_VIOLATION"

	// ErrCodeAmbiguousSymbol indicates several declarations matched a lookup.
	ErrCodeAmbiguousSymbol PassErrorCode = "AMBIGUOUS_SYMBOL"

	// ErrCodeMissingSymbol indicates no declaration matched a lookup.
	ErrCodeMissingSymbol PassErrorCode = "MISSING_SYMBOL"

	// ErrCodeMissingSibling indicates a call to an inline extension whose
	// expanded declaration could not be found.
	ErrCodeMissingSibling PassErrorCode = "MISSING_SIBLING"
)

// PassError is a fatal error that aborts the pass.
//
// There is no partial result: a tree that was only partly rewritten cannot
// be lowered by later compiler stages, so callers must treat the unit as
// failed.
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Message is a human-readable description naming the offending node.
	Message string

	// Unit is the translation unit being transformed.
	Unit string

	// Decl is the qualified name of the enclosing declaration, when known.
	Decl string

	// Err is the underlying cause, typically a *resolve.SymbolError.
	Err error
}

// Error implements the error interface.
func (e *PassError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Unit != "" && e.Decl != "" {
		msg = fmt.Sprintf("%s (unit=%s, decl=%s)", msg, e.Unit, e.Decl)
	} else if e.Unit != "" {
		msg = fmt.Sprintf("%s (unit=%s)", msg, e.Unit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PassError) Unwrap() error {
	return e.Err
}

// CodeOf returns the PassErrorCode of err, or "" if err is not a PassError.
func CodeOf(err error) PassErrorCode {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsShapeViolation reports whether err is a shape violation.
func IsShapeViolation(err error) bool {
	return CodeOf(err) == ErrCodeShapeViolation
}

// IsSymbolError reports whether err is an ambiguous or missing symbol error.
func IsSymbolError(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeAmbiguousSymbol || code == ErrCodeMissingSymbol
}

// IsMissingSibling reports whether err is a missing expanded sibling error.
func IsMissingSibling(err error) bool {
	return CodeOf(err) == ErrCodeMissingSibling
}

func shapeViolation(format string, args ...any) *PassError {
	return &PassError{Code: ErrCodeShapeViolation, Message: fmt.Sprintf(format, args...)}
}

// symbolFailure converts a resolver failure into a PassError.
func symbolFailure(err error, what string) *PassError {
	code := ErrCodeMissingSymbol
	if resolve.IsAmbiguous(err) {
		code = ErrCodeAmbiguousSymbol
	}
	return &PassError{Code: code, Message: "resolving " + what, Err: err}
}
