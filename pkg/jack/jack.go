package jack

import "github.com/hmny-n2t/jackc/pkg/utils"

// ----------------------------------------------------------------------------
// Program & Classes

// Program is a set of classes keyed by name; each class lowers to its own VM
// module, the way each Jack class compiles to its own .vm file.
type Program map[string]Class

// Class holds the state (Fields) and behavior (Subroutines) of one Jack
// class. Both maps preserve declaration order, which matters: a field's
// position among the entries of its own kind (statics are counted apart
// from fields) is its memory-segment offset once lowered.
type Class struct {
	Name        string
	Fields      utils.OrderedMap[string, Variable]
	Subroutines utils.OrderedMap[string, Subroutine]
}

// ----------------------------------------------------------------------------
// Subroutines

type SubroutineType string

const (
	Method      SubroutineType = "method"
	Function    SubroutineType = "function"
	Constructor SubroutineType = "constructor"
)

// Subroutine is one of Jack's three callable kinds (method/function/
// constructor). Type determines what prelude code it needs once lowered:
// constructors allocate their own instance memory, methods recover 'this'
// from a hidden first argument, functions need neither.
type Subroutine struct {
	Name string
	Type SubroutineType

	Return    DataType // 'void' for no return value
	Arguments []Variable

	Statements []Statement
}

// ----------------------------------------------------------------------------
// Statements

// Statement is the marker interface shared by every statement kind below.
// Lowering dispatches on the dynamic type via a type switch.
type Statement interface{}

// DoStmt calls a subroutine purely for its side effect; any returned value
// is dropped.
type DoStmt struct {
	FuncCall FuncCallExpr
}

// VarStmt declares one or more variables without assigning them a value.
type VarStmt struct {
	Vars []Variable
}

// LetStmt assigns Rhs to Lhs. Lhs must be a VarExpr or an ArrayExpr; any
// other Expression is a lowering-time error.
type LetStmt struct {
	Lhs Expression
	Rhs Expression
}

// ReturnStmt hands control back to the caller along with Expr's value. Expr
// is nil for a subroutine that declares no return value.
type ReturnStmt struct {
	Expr Expression
}

// IfStmt forks control flow on Condition; ElseBlock may be empty.
type IfStmt struct {
	Condition Expression
	ThenBlock []Statement
	ElseBlock []Statement
}

// WhileStmt repeats Block for as long as Condition holds.
type WhileStmt struct {
	Condition Expression
	Block     []Statement
}

// ----------------------------------------------------------------------------
// Expressions

type ExprType string

const (
	Plus     ExprType = "plus"
	Minus    ExprType = "minus" // binary subtraction; see Negation for unary minus
	Negation ExprType = "negation"
	Divide   ExprType = "divide"
	Multiply ExprType = "multiply"

	BoolOr  ExprType = "bool_or"
	BoolAnd ExprType = "bool_and"
	BoolNot ExprType = "bool_neg"

	Equal     ExprType = "equal"
	LessThan  ExprType = "less_than"
	GreatThan ExprType = "greater_than"
)

// Expression is the marker interface shared by every expression kind below.
type Expression interface{}

// VarExpr reads a named variable's current value.
type VarExpr struct {
	Var string
}

// LiteralExpr produces a constant value of the given DataType.
type LiteralExpr struct {
	Type  DataType
	Value string
}

// ArrayExpr reads the element at Index of the array named Var.
type ArrayExpr struct {
	Var   string
	Index Expression
}

// UnaryExpr applies a prefix operator (Negation or BoolNot) to Rhs.
type UnaryExpr struct {
	Type ExprType
	Rhs  Expression
}

// BinaryExpr applies a two-operand operator to Lhs and Rhs, evaluated in
// that order.
type BinaryExpr struct {
	Type ExprType
	Lhs  Expression
	Rhs  Expression
}

// FuncCallExpr calls a subroutine. IsExtCall distinguishes a call resolved
// within the current class ('doSomething()') from one qualified by a variable
// or class name ('var.method()', 'Class.function()'); Var only carries
// meaning in the latter case.
type FuncCallExpr struct {
	IsExtCall bool
	Var       string
	FuncName  string
	Arguments []Expression
}

// ----------------------------------------------------------------------------
// Variables

type VarType string

const (
	Local     VarType = "local"
	Field     VarType = "field"
	Static    VarType = "static"
	Parameter VarType = "parameter"
)

type DataType string

const (
	Int    DataType = "int"
	Bool   DataType = "bool"
	Char   DataType = "char"
	Null   DataType = "null"
	String DataType = "string"
	Void   DataType = "void"
	Object DataType = "object"
)

// Variable describes one declared name: a local, a parameter, a static, or
// an instance field, distinguished by Type. ClassName only carries meaning
// when DataType is Object, naming the variable's declared class.
type Variable struct {
	Name      string
	Type      VarType
	DataType  DataType
	ClassName string
}
