package ir

// Stmt is a sealed interface over statements. Every Expr is a Stmt;
// *Variable is the only non-expression statement.
type Stmt interface {
	stmtMarker()
}

// Expr is a sealed interface over expressions.
// Only the node types in this file implement it.
type Expr interface {
	Stmt
	Type() *Type
	exprMarker()
}

type exprBase struct{}

func (exprBase) stmtMarker() {}
func (exprBase) exprMarker() {}

// Const is a literal. A nil-typed IRNull constant is the null literal.
type Const struct {
	exprBase
	Value IRValue
	Typ   *Type
}

func (e *Const) Type() *Type { return e.Typ }

// NullConst creates a null literal of type t.
func NullConst(t *Type) *Const {
	return &Const{Value: IRNull{}, Typ: t.WithNullable(true)}
}

// IntConst creates an Int literal.
func IntConst(n int64) *Const {
	return &Const{Value: IRInt(n), Typ: Int}
}

// GetValue reads a parameter or variable.
type GetValue struct {
	exprBase
	Target ValueDecl
}

func (e *GetValue) Type() *Type { return e.Target.ValueType() }

// SetValue assigns a local variable.
type SetValue struct {
	exprBase
	Target *Variable
	Value  Expr
}

func (*SetValue) Type() *Type { return Unit }

// GetField reads a field. Receiver is nil for top-level fields.
type GetField struct {
	exprBase
	Receiver Expr
	Field    *Field
}

func (e *GetField) Type() *Type { return e.Field.Type }

// SetField writes a field. Receiver is nil for top-level fields.
type SetField struct {
	exprBase
	Receiver Expr
	Field    *Field
	Value    Expr
}

func (*SetField) Type() *Type { return Unit }

// Call invokes a function.
type Call struct {
	exprBase
	Callee    *Function
	Dispatch  Expr
	Extension Expr
	Args      []Expr
	TypeArgs  []*Type
	Typ       *Type
}

func (e *Call) Type() *Type { return e.Typ }

// Receiver returns the extension receiver if present, else the dispatch receiver.
func (e *Call) Receiver() Expr {
	if e.Extension != nil {
		return e.Extension
	}
	return e.Dispatch
}

// ConstructorCall creates an instance of a class.
type ConstructorCall struct {
	exprBase
	Constructor *Constructor
	Args        []Expr
	TypeArgs    []*Type
	Typ         *Type
}

func (e *ConstructorCall) Type() *Type { return e.Typ }

// TypeOpKind selects the type operator.
type TypeOpKind string

const (
	OpCast         TypeOpKind = "as"
	OpSafeCast     TypeOpKind = "as?"
	OpInstanceOf   TypeOpKind = "is"
	OpImplicitCast TypeOpKind = "implicit"
)

// TypeOp applies a type operator to Operand.
type TypeOp struct {
	exprBase
	Op      TypeOpKind
	Operand Expr
	Target  *Type
}

func (e *TypeOp) Type() *Type {
	switch e.Op {
	case OpInstanceOf:
		return Boolean
	case OpSafeCast:
		return e.Target.WithNullable(true)
	default:
		return e.Target
	}
}

// Return leaves Target with an optional value.
type Return struct {
	exprBase
	Target *Function
	Value  Expr
}

func (*Return) Type() *Type { return Nothing }

// Branch is one arm of a When. A nil Cond is the else arm.
type Branch struct {
	Cond   Expr
	Result Expr
}

// When evaluates the first branch whose condition holds.
type When struct {
	exprBase
	Branches []*Branch
	Typ      *Type
}

func (e *When) Type() *Type { return e.Typ }

// Catch is a catch clause of a Try.
type Catch struct {
	Param  *Variable
	Result Expr
}

// Try evaluates Body with catch clauses and an optional finally block.
type Try struct {
	exprBase
	Body    Expr
	Catches []*Catch
	Finally Expr
	Typ     *Type
}

func (e *Try) Type() *Type { return e.Typ }

// Block is a sequence of statements; its value is the last expression.
type Block struct {
	exprBase
	Stmts []Stmt
	Typ   *Type
}

func (e *Block) Type() *Type {
	if e.Typ == nil {
		return Unit
	}
	return e.Typ
}

// FunctionExpr is a closure value over Fn.
type FunctionExpr struct {
	exprBase
	Fn *Function
}

func (e *FunctionExpr) Type() *Type { return e.Fn.Type() }
