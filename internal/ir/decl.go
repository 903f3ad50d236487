package ir

// Container is a node that owns declarations.
// Implemented by *File, *Class, *Function, *Constructor and *Field (initializer scope).
type Container interface {
	containerMarker()
}

// Decl is a sealed interface over all declarations in a translation unit.
// Every declaration records its owner explicitly; ownership changes are
// always done through SetParent, never implied by tree position.
type Decl interface {
	DeclName() string
	Parent() Container
	SetParent(Container)
	declMarker()
}

// ValueDecl is a declaration that can be read with GetValue.
type ValueDecl interface {
	Decl
	ValueType() *Type
}

type declBase struct {
	parent Container
}

func (d *declBase) Parent() Container    { return d.parent }
func (d *declBase) SetParent(p Container) { d.parent = p }
func (*declBase) declMarker()             {}

// Visibility of a declaration.
type Visibility string

const (
	Public    Visibility = "public"
	Internal  Visibility = "internal"
	Private   Visibility = "private"
	Protected Visibility = "protected"
)

// Origin records how a function came to exist.
type Origin string

const (
	OriginDefined        Origin = ""
	OriginLambda         Origin = "lambda"
	OriginAccessorLambda Origin = "accessor"
	OriginPropertyGetter Origin = "getter"
	OriginPropertySetter Origin = "setter"
)

// File is one translation unit.
type File struct {
	Name    string
	Package string
	Decls   []Decl
}

func (*File) containerMarker() {}

// Add appends d and makes the file its owner.
func (f *File) Add(d Decl) {
	d.SetParent(f)
	f.Decls = append(f.Decls, d)
}

// Class declares a class and its members.
type Class struct {
	declBase
	Name       string
	Package    string
	TypeParams []string
	Decls      []Decl
}

func (*Class) containerMarker() {}

// DeclName implements Decl.
func (c *Class) DeclName() string { return c.Name }

// FQName returns the qualified class name.
func (c *Class) FQName() string { return qualify(c.Package, c.Name) }

// Type returns the class type with its own type parameters as arguments.
func (c *Class) Type() *Type {
	var args []*Type
	for _, p := range c.TypeParams {
		args = append(args, TypeParamRef(p))
	}
	return ClassType(c.Package, c.Name, args...)
}

// Add appends a member and makes the class its owner.
func (c *Class) Add(d Decl) {
	d.SetParent(c)
	c.Decls = append(c.Decls, d)
}

// Functions returns the member functions named name.
func (c *Class) Functions(name string) []*Function {
	var out []*Function
	for _, d := range c.Decls {
		if fn, ok := d.(*Function); ok && fn.Name == name {
			out = append(out, fn)
		}
	}
	return out
}

// Constructors returns the class constructors in declaration order.
func (c *Class) Constructors() []*Constructor {
	var out []*Constructor
	for _, d := range c.Decls {
		if ctor, ok := d.(*Constructor); ok {
			out = append(out, ctor)
		}
	}
	return out
}

// Field returns the member field named name, or nil.
func (c *Class) Field(name string) *Field {
	for _, d := range c.Decls {
		if f, ok := d.(*Field); ok && f.Name == name {
			return f
		}
	}
	return nil
}

// Field is a property backing field, either a class member or top-level.
type Field struct {
	declBase
	Name    string
	Type    *Type
	Init    Expr
	Mutable bool
}

func (*Field) containerMarker() {}

// DeclName implements Decl.
func (f *Field) DeclName() string { return f.Name }

// Function is a named function, a lambda body, or a synthesized accessor.
type Function struct {
	declBase
	Name       string
	Package    string
	Visibility Visibility
	Inline     bool
	Origin     Origin
	TypeParams []string

	// Dispatch is the implicit `this` of member functions.
	Dispatch *ValueParam
	// Extension is the special receiver of extension functions.
	Extension *ValueParam
	Params    []*ValueParam
	Return    *Type
	Body      *Block

	// Property is the backing field when this function is a property accessor.
	Property *Field
}

func (*Function) containerMarker() {}

// DeclName implements Decl.
func (fn *Function) DeclName() string { return fn.Name }

// Class returns the owning class of a member function, or nil.
func (fn *Function) Class() *Class {
	c, _ := fn.parent.(*Class)
	return c
}

// FQName returns the qualified name: pkg.name for top-level functions and
// pkg.Class.name for members.
func (fn *Function) FQName() string {
	if c := fn.Class(); c != nil {
		return c.FQName() + "." + fn.Name
	}
	return qualify(fn.Package, fn.Name)
}

// PackageName returns the package the function is declared in.
func (fn *Function) PackageName() string {
	if c := fn.Class(); c != nil {
		return c.Package
	}
	return fn.Package
}

// Type returns the function type of fn, ignoring receivers.
func (fn *Function) Type() *Type {
	params := make([]*Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type
	}
	return FuncType(fn.Return, params...)
}

// AddParam appends a value parameter owned by fn.
func (fn *Function) AddParam(name string, t *Type) *ValueParam {
	p := &ValueParam{Name: name, Type: t, Index: len(fn.Params)}
	p.SetParent(fn)
	fn.Params = append(fn.Params, p)
	return p
}

// Constructor constructs instances of its owning class.
type Constructor struct {
	declBase
	Params []*ValueParam
}

// DeclName implements Decl.
func (*Constructor) DeclName() string { return "<init>" }

func (*Constructor) containerMarker() {}

// Class returns the constructed class.
func (c *Constructor) Class() *Class {
	cls, _ := c.parent.(*Class)
	return cls
}

// ValueParam is a function parameter or receiver.
type ValueParam struct {
	declBase
	Name  string
	Type  *Type
	Index int
}

// DeclName implements Decl.
func (p *ValueParam) DeclName() string { return p.Name }

// ValueType implements ValueDecl.
func (p *ValueParam) ValueType() *Type { return p.Type }

// Variable is a local variable; it is also a statement.
type Variable struct {
	declBase
	Name    string
	Type    *Type
	Init    Expr
	Mutable bool
}

// DeclName implements Decl.
func (v *Variable) DeclName() string { return v.Name }

// ValueType implements ValueDecl.
func (v *Variable) ValueType() *Type { return v.Type }

func (*Variable) stmtMarker() {}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
