package ir

import (
	"fmt"
	"strings"
	"unicode"
)

// TypeSyntaxError reports a malformed type string.
type TypeSyntaxError struct {
	Input  string
	Offset int
	Msg    string
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("type %q: offset %d: %s", e.Input, e.Offset, e.Msg)
}

// ParseType parses the source form produced by Type.String.
//
// Names listed in typeParams parse as type parameter references. Any other
// unqualified name is a builtin of BuiltinPackage, so "Int" and "kotlin.Int"
// denote the same type.
func ParseType(s string, typeParams []string) (*Type, error) {
	p := &typeParser{in: s, params: typeParams}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.in) {
		return nil, p.errorf("unexpected %q", p.in[p.pos:])
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(s string, typeParams ...string) *Type {
	t, err := ParseType(s, typeParams)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	in     string
	pos    int
	params []string
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &TypeSyntaxError{Input: p.in, Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.in) && p.in[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek(tok string) bool {
	p.skipSpace()
	return strings.HasPrefix(p.in[p.pos:], tok)
}

func (p *typeParser) accept(tok string) bool {
	if p.peek(tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *typeParser) parse() (*Type, error) {
	if p.accept("(") {
		return p.parenthesized()
	}
	return p.class()
}

// parenthesized parses after an opening paren: either a function type's
// parameter list or a grouped type such as ((A) -> B)?.
func (p *typeParser) parenthesized() (*Type, error) {
	var list []*Type
	if !p.accept(")") {
		for {
			t, err := p.parse()
			if err != nil {
				return nil, err
			}
			list = append(list, t)
			if p.accept(")") {
				break
			}
			if !p.accept(",") {
				return nil, p.errorf("expected ',' or ')'")
			}
		}
	}
	if p.accept("->") {
		result, err := p.parse()
		if err != nil {
			return nil, err
		}
		return FuncType(result, list...), nil
	}
	if len(list) != 1 {
		return nil, p.errorf("expected '->' after parameter list")
	}
	t := list[0]
	if p.accept("?") {
		t = t.WithNullable(true)
	}
	return t, nil
}

func (p *typeParser) class() (*Type, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.in) {
		r := rune(p.in[p.pos])
		if r == '.' || r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			p.pos++
			continue
		}
		break
	}
	name := p.in[start:p.pos]
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return nil, p.errorf("expected type name")
	}

	var t *Type
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		t = ClassType(name[:i], name[i+1:])
	} else if p.isParam(name) {
		t = TypeParamRef(name)
	} else {
		t = ClassType(BuiltinPackage, name)
	}

	if p.accept("<") {
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			t.Args = append(t.Args, arg)
			if p.accept(">") {
				break
			}
			if !p.accept(",") {
				return nil, p.errorf("expected ',' or '>'")
			}
		}
	}
	if p.accept("?") {
		t.Nullable = true
	}
	return t, nil
}

func (p *typeParser) isParam(name string) bool {
	for _, tp := range p.params {
		if tp == name {
			return true
		}
	}
	return false
}
