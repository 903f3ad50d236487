package source

import "github.com/roach88/atomicfu/internal/ir"

// scope is one level of name visibility inside a body.
type scope struct {
	parent *scope

	// fn is set on the outermost scope of a function or lambda body.
	fn    *ir.Function
	class *ir.Class

	owner      ir.Container
	names      map[string]ir.ValueDecl
	typeParams []string
}

// functionScope opens the body scope of fn. Inside an extension, "this"
// names the extension receiver and "this@Class" the dispatch receiver.
func functionScope(fn *ir.Function, parent *scope, cls *ir.Class) *scope {
	sc := &scope{parent: parent, fn: fn, class: cls, owner: fn, names: map[string]ir.ValueDecl{}}
	if cls != nil {
		sc.typeParams = append(sc.typeParams, cls.TypeParams...)
	}
	sc.typeParams = append(sc.typeParams, fn.TypeParams...)
	if fn.Dispatch != nil {
		sc.names[fn.Dispatch.Name] = fn.Dispatch
		sc.names["this"] = fn.Dispatch
	}
	if fn.Extension != nil {
		sc.names["this"] = fn.Extension
	}
	for _, p := range fn.Params {
		sc.names[p.Name] = p
	}
	return sc
}

func (s *scope) child() *scope {
	return &scope{parent: s, owner: s.owner, names: map[string]ir.ValueDecl{}}
}

func (s *scope) declare(name string, v ir.ValueDecl) {
	s.names[name] = v
}

func (s *scope) lookup(name string) ir.ValueDecl {
	for ; s != nil; s = s.parent {
		if v, ok := s.names[name]; ok {
			return v
		}
	}
	return nil
}

// function returns the innermost enclosing function or lambda.
func (s *scope) function() *ir.Function {
	for ; s != nil; s = s.parent {
		if s.fn != nil {
			return s.fn
		}
	}
	return nil
}

// named returns the innermost enclosing function called name.
func (s *scope) named(name string) *ir.Function {
	for ; s != nil; s = s.parent {
		if s.fn != nil && s.fn.Name == name {
			return s.fn
		}
	}
	return nil
}

// dispatch returns the innermost dispatch receiver and the class it belongs to.
func (s *scope) dispatch() (*ir.ValueParam, *ir.Class) {
	for ; s != nil; s = s.parent {
		if s.fn != nil && s.fn.Dispatch != nil {
			return s.fn.Dispatch, s.class
		}
	}
	return nil, nil
}

func (s *scope) allTypeParams() []string {
	var out []string
	for ; s != nil; s = s.parent {
		out = append(out, s.typeParams...)
	}
	return out
}
