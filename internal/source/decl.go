package source

import (
	"fmt"

	"github.com/roach88/atomicfu/internal/ir"
	"github.com/roach88/atomicfu/internal/resolve"
)

type decoder struct {
	path    string
	ctx     resolve.PluginContext
	file    *ir.File
	classes map[string]*ir.Class

	// at names the declaration being decoded, for error messages.
	at      string
	pending []pending
}

// pending is a declaration whose initializer or body is decoded after every
// signature in the unit is known.
type pending struct {
	name  string
	doc   *declDoc
	field *ir.Field
	fn    *ir.Function
	class *ir.Class
}

func (d *decoder) errorf(format string, args ...any) error {
	return &DecodeError{Path: d.path, Decl: d.at, Message: fmt.Sprintf(format, args...)}
}

// declareAll creates every class first so member signatures may refer to
// classes declared later in the document.
func (d *decoder) declareAll(docs []declDoc) error {
	for i := range docs {
		doc := &docs[i]
		if doc.Kind != "class" {
			continue
		}
		d.at = doc.Name
		if doc.Name == "" {
			return d.errorf("class name is required")
		}
		if _, dup := d.classes[doc.Name]; dup {
			return d.errorf("duplicate class %s", doc.Name)
		}
		d.classes[doc.Name] = &ir.Class{Name: doc.Name, Package: d.file.Package, TypeParams: doc.TypeParams}
	}

	for i := range docs {
		doc := &docs[i]
		d.at = doc.Name
		switch doc.Kind {
		case "class":
			cls := d.classes[doc.Name]
			d.file.Add(cls)
			if err := d.declareMembers(cls, doc.Declarations); err != nil {
				return err
			}
		case "field":
			f, err := d.declareField(doc, nil)
			if err != nil {
				return err
			}
			d.file.Add(f)
		case "function":
			fn, err := d.declareFunction(doc, nil)
			if err != nil {
				return err
			}
			d.file.Add(fn)
		case "constructor":
			return d.errorf("constructor outside a class")
		default:
			return d.errorf("unknown declaration kind %q", doc.Kind)
		}
	}
	return nil
}

func (d *decoder) declareMembers(cls *ir.Class, docs []declDoc) error {
	for i := range docs {
		doc := &docs[i]
		d.at = cls.Name + "." + doc.Name
		switch doc.Kind {
		case "field":
			f, err := d.declareField(doc, cls)
			if err != nil {
				return err
			}
			cls.Add(f)
		case "function":
			fn, err := d.declareFunction(doc, cls)
			if err != nil {
				return err
			}
			cls.Add(fn)
		case "constructor":
			d.at = cls.Name + ".<init>"
			ctor := &ir.Constructor{}
			for j, p := range doc.Params {
				t, err := d.typ(p.Type, cls.TypeParams)
				if err != nil {
					return err
				}
				vp := &ir.ValueParam{Name: p.Name, Type: t, Index: j}
				vp.SetParent(ctor)
				ctor.Params = append(ctor.Params, vp)
			}
			cls.Add(ctor)
		case "class":
			return d.errorf("nested classes are not supported")
		default:
			return d.errorf("unknown declaration kind %q", doc.Kind)
		}
	}
	return nil
}

func (d *decoder) declareField(doc *declDoc, cls *ir.Class) (*ir.Field, error) {
	if doc.Name == "" {
		return nil, d.errorf("field name is required")
	}
	if doc.Type == "" {
		return nil, d.errorf("field %s needs a type", doc.Name)
	}
	var tps []string
	if cls != nil {
		tps = cls.TypeParams
	}
	t, err := d.typ(doc.Type, tps)
	if err != nil {
		return nil, err
	}
	f := &ir.Field{Name: doc.Name, Type: t, Mutable: doc.Mutable}
	if doc.Init != nil {
		d.pending = append(d.pending, pending{name: d.at, doc: doc, field: f, class: cls})
	}
	return f, nil
}

func (d *decoder) declareFunction(doc *declDoc, cls *ir.Class) (*ir.Function, error) {
	if doc.Name == "" {
		return nil, d.errorf("function name is required")
	}
	vis, err := visibility(doc.Visibility)
	if err != nil {
		return nil, d.errorf("%v", err)
	}
	fn := &ir.Function{
		Name:       doc.Name,
		Package:    d.file.Package,
		Visibility: vis,
		Inline:     doc.Inline,
		TypeParams: doc.TypeParams,
	}
	tps := doc.TypeParams
	if cls != nil {
		tps = append(append([]string(nil), cls.TypeParams...), doc.TypeParams...)
		name := "this"
		if doc.Receiver != "" {
			name = "this@" + cls.Name
		}
		fn.Dispatch = &ir.ValueParam{Name: name, Type: cls.Type(), Index: -1}
		fn.Dispatch.SetParent(fn)
	}
	if doc.Receiver != "" {
		t, err := d.typ(doc.Receiver, tps)
		if err != nil {
			return nil, err
		}
		fn.Extension = &ir.ValueParam{Name: "this", Type: t, Index: -1}
		fn.Extension.SetParent(fn)
	}
	for _, p := range doc.Params {
		if p.Name == "" {
			return nil, d.errorf("parameter name is required")
		}
		t, err := d.typ(p.Type, tps)
		if err != nil {
			return nil, err
		}
		fn.AddParam(p.Name, t)
	}
	fn.Return = ir.Unit
	if doc.Returns != "" {
		if fn.Return, err = d.typ(doc.Returns, tps); err != nil {
			return nil, err
		}
	}
	if doc.Body != nil || doc.Property != "" {
		d.pending = append(d.pending, pending{name: d.at, doc: doc, fn: fn, class: cls})
	}
	return fn, nil
}

func visibility(s string) (ir.Visibility, error) {
	switch v := ir.Visibility(s); v {
	case "", ir.Public, ir.Internal, ir.Private, ir.Protected:
		return v, nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

// defineAll decodes initializers and bodies in declaration order.
func (d *decoder) defineAll() error {
	for _, p := range d.pending {
		d.at = p.name
		switch {
		case p.field != nil:
			sc := &scope{owner: p.field, names: map[string]ir.ValueDecl{}}
			if p.class != nil {
				sc.typeParams = p.class.TypeParams
			}
			init, err := d.expr(p.doc.Init, sc)
			if err != nil {
				return err
			}
			p.field.Init = init
		case p.fn != nil:
			if err := d.defineFunction(p.fn, p.doc, p.class); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) defineFunction(fn *ir.Function, doc *declDoc, cls *ir.Class) error {
	if doc.Property != "" {
		var f *ir.Field
		if cls != nil {
			f = cls.Field(doc.Property)
		} else {
			f = d.topField(doc.Property)
		}
		if f == nil {
			return d.errorf("property %s has no backing field", doc.Property)
		}
		fn.Origin = ir.OriginPropertyGetter
		fn.Property = f
	}
	if doc.Body == nil {
		return nil
	}
	sc := functionScope(fn, nil, cls)
	stmts, err := d.stmts(doc.Body, sc)
	if err != nil {
		return err
	}
	fn.Body = &ir.Block{Stmts: stmts}
	return nil
}

func (d *decoder) topField(name string) *ir.Field {
	for _, decl := range d.file.Decls {
		if f, ok := decl.(*ir.Field); ok && f.Name == name {
			return f
		}
	}
	return nil
}

// typ parses a type string. Unqualified names of classes declared in the
// unit resolve to the unit's package rather than the builtins.
func (d *decoder) typ(s string, typeParams []string) (*ir.Type, error) {
	if s == "" {
		return nil, d.errorf("type is required")
	}
	t, err := ir.ParseType(s, typeParams)
	if err != nil {
		return nil, d.errorf("%v", err)
	}
	return d.localize(t), nil
}

func (d *decoder) localize(t *ir.Type) *ir.Type {
	if t == nil {
		return nil
	}
	cp := *t
	if !t.TypeParam && !t.IsFunction() && t.Package == ir.BuiltinPackage {
		if _, ok := d.classes[t.Name]; ok {
			cp.Package = d.file.Package
		}
	}
	cp.Args = d.localizeAll(t.Args)
	cp.Params = d.localizeAll(t.Params)
	cp.Result = d.localize(t.Result)
	return &cp
}

func (d *decoder) localizeAll(ts []*ir.Type) []*ir.Type {
	if ts == nil {
		return nil
	}
	out := make([]*ir.Type, len(ts))
	for i, t := range ts {
		out[i] = d.localize(t)
	}
	return out
}

// classOf returns the class declaring t, from the unit or the context.
func (d *decoder) classOf(t *ir.Type) *ir.Class {
	if t == nil || t.TypeParam || t.IsFunction() {
		return nil
	}
	if t.Package == d.file.Package {
		if c, ok := d.classes[t.Name]; ok {
			return c
		}
	}
	return d.ctx.ReferenceClass(t.FQName())
}
