package library

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/Masterminds/semver/v3"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/resolve"
)

// Compile converts a CUE surface value into a Surface.
// The version constraint is not checked; see Surface.Require.
func Compile(v cue.Value) (*Surface, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	versionVal := v.LookupPath(cue.ParsePath("version"))
	if !versionVal.Exists() {
		return nil, &CompileError{Field: "version", Message: "version is required", Pos: v.Pos()}
	}
	raw, err := versionVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return nil, &CompileError{Field: "version", Message: err.Error(), Pos: versionVal.Pos()}
	}

	pkgs := v.LookupPath(cue.ParsePath("packages"))
	if !pkgs.Exists() {
		return nil, &CompileError{Field: "packages", Message: "packages is required", Pos: v.Pos()}
	}
	iter, err := pkgs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s := &Surface{Version: version}
	for iter.Next() {
		f, err := compilePackage(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Files = append(s.Files, f)
	}
	s.index = resolve.NewIndex(s.Files...)
	return s, nil
}

func compilePackage(pkg string, v cue.Value) (*ir.File, error) {
	f := &ir.File{Name: pkg, Package: pkg}

	if classes := v.LookupPath(cue.ParsePath("classes")); classes.Exists() {
		iter, err := classes.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			cls, err := compileClass(pkg, iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			f.Add(cls)
		}
	}

	if fns := v.LookupPath(cue.ParsePath("functions")); fns.Exists() {
		iter, err := fns.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fn, err := compileFunction(pkg, iter.Value())
			if err != nil {
				return nil, err
			}
			f.Add(fn)
		}
	}
	return f, nil
}

func compileClass(pkg, name string, v cue.Value) (*ir.Class, error) {
	cls := &ir.Class{Name: name, Package: pkg}
	var err error
	if cls.TypeParams, err = stringList(v, "typeParams"); err != nil {
		return nil, err
	}

	if ctors := v.LookupPath(cue.ParsePath("constructors")); ctors.Exists() {
		iter, err := ctors.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			ctor := &ir.Constructor{}
			params, err := compileParams(iter.Value(), cls.TypeParams)
			if err != nil {
				return nil, err
			}
			for _, p := range params {
				p.SetParent(ctor)
				ctor.Params = append(ctor.Params, p)
			}
			cls.Add(ctor)
		}
	}

	if members := v.LookupPath(cue.ParsePath("members")); members.Exists() {
		iter, err := members.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fn := &ir.Function{Name: iter.Selector().Unquoted(), Visibility: ir.Public}
			if err := compileSignature(fn, iter.Value(), cls.TypeParams); err != nil {
				return nil, err
			}
			origin, err := optionalString(iter.Value(), "origin")
			if err != nil {
				return nil, err
			}
			fn.Origin = ir.Origin(origin)
			fn.Dispatch = &ir.ValueParam{Name: "this", Type: cls.Type(), Index: -1}
			fn.Dispatch.SetParent(fn)
			cls.Add(fn)
		}
	}
	return cls, nil
}

func compileFunction(pkg string, v cue.Value) (*ir.Function, error) {
	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	fn := &ir.Function{Name: name, Package: pkg, Visibility: ir.Public}
	if fn.TypeParams, err = stringList(v, "typeParams"); err != nil {
		return nil, err
	}
	if inline := v.LookupPath(cue.ParsePath("inline")); inline.Exists() {
		if fn.Inline, err = inline.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	recv, err := optionalString(v, "extension")
	if err != nil {
		return nil, err
	}
	if recv != "" {
		t, err := parseType(v.LookupPath(cue.ParsePath("extension")), recv, fn.TypeParams)
		if err != nil {
			return nil, err
		}
		fn.Extension = &ir.ValueParam{Name: "<this>", Type: t, Index: -1}
		fn.Extension.SetParent(fn)
	}
	if err := compileSignature(fn, v, fn.TypeParams); err != nil {
		return nil, err
	}
	return fn, nil
}

// compileSignature fills the parameters and return type of fn from v.
func compileSignature(fn *ir.Function, v cue.Value, typeParams []string) error {
	if pv := v.LookupPath(cue.ParsePath("params")); pv.Exists() {
		params, err := compileParams(pv, typeParams)
		if err != nil {
			return err
		}
		for _, p := range params {
			p.SetParent(fn)
			fn.Params = append(fn.Params, p)
		}
	}
	ret, err := requiredString(v, "returns")
	if err != nil {
		return err
	}
	fn.Return, err = parseType(v.LookupPath(cue.ParsePath("returns")), ret, typeParams)
	return err
}

func compileParams(v cue.Value, typeParams []string) ([]*ir.ValueParam, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*ir.ValueParam
	for iter.Next() {
		pv := iter.Value()
		name, err := requiredString(pv, "name")
		if err != nil {
			return nil, err
		}
		raw, err := requiredString(pv, "type")
		if err != nil {
			return nil, err
		}
		t, err := parseType(pv.LookupPath(cue.ParsePath("type")), raw, typeParams)
		if err != nil {
			return nil, err
		}
		out = append(out, &ir.ValueParam{Name: name, Type: t, Index: len(out)})
	}
	return out, nil
}

func parseType(v cue.Value, raw string, typeParams []string) (*ir.Type, error) {
	t, err := ir.ParseType(raw, typeParams)
	if err != nil {
		return nil, &CompileError{Field: "type", Message: err.Error(), Pos: v.Pos()}
	}
	return t, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError is a surface compilation error with CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
