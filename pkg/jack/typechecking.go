package jack

import "fmt"

// TypeChecker walks a 'jack.Program' confirming every construct is well-formed:
// every referenced variable resolves in scope, every 'let' target is assignable,
// every subroutine body's statements recurse cleanly. It does not unify or infer
// types across expressions (e.g. it never rejects 'let x = "a" + 1'); that level
// of static typing is out of scope here, matching the dynamically-weak typing
// the Jack language itself specifies (every value is one word wide at runtime).
type TypeChecker struct {
	program Program
	scopes  ScopeTable // Keeps track of the scopes and declared variables inside each one
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error handling lowering of class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and nested fields.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name) // Keep track of the current scope being processed
	defer tc.scopes.PopClassScope()      // Reset the function name after processing

	for _, field := range class.Fields.Entries() {
		if _, err := tc.HandleVarStmt(VarStmt{Vars: []Variable{field}}); err != nil {
			return false, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
	}

	for _, subroutine := range class.Subroutines.Entries() {
		if _, err := tc.HandleSubroutine(subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and nested fields.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name) // Keep track of the current subroutine function being processed
	defer tc.scopes.PopSubroutineScope()           // Reset the function name after processing

	if subroutine.Type == Method {
		tc.scopes.RegisterVariable(Variable{Name: "__obj", Type: Parameter, DataType: Object, ClassName: subroutine.Name})
	}

	// We add to the current scope also all of the arguments of the subroutine
	for _, arg := range subroutine.Arguments {
		// Like this we're actually supporting shadowing of variables, so if a variable
		// with the same name is already present in the current scope, we just temporarily
		// override it with the most update one instead of returning an error (like Go does BTW).
		tc.scopes.RegisterVariable(arg)
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statements types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return tc.HandleExprOK(tStmt.FuncCall)
	case VarStmt:
		return tc.HandleVarStmt(tStmt)
	case LetStmt:
		return tc.HandleLetStmt(tStmt)
	case IfStmt:
		return tc.HandleIfStmt(tStmt)
	case WhileStmt:
		return tc.HandleWhileStmt(tStmt)
	case ReturnStmt:
		if tStmt.Expr == nil {
			return true, nil
		}
		return tc.HandleExprOK(tStmt.Expr)
	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// Specialized function to type-check a 'jack.VarStmt': registers each declared
// variable in the current scope, rejecting a declaration that has no name.
func (tc *TypeChecker) HandleVarStmt(statement VarStmt) (bool, error) {
	for _, variable := range statement.Vars {
		if variable.Name == "" {
			return false, fmt.Errorf("variable declaration is missing a name")
		}
		tc.scopes.RegisterVariable(variable)
	}
	return true, nil
}

// Specialized function to type-check a 'jack.LetStmt': the LHS must be an
// assignable reference (a plain variable or an array cell) that resolves in
// scope, and the RHS must itself be a well-formed expression.
func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
			return false, fmt.Errorf("error resolving 'let' target: %w", err)
		}
	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(lhs.Var); err != nil {
			return false, fmt.Errorf("error resolving 'let' array target: %w", err)
		}
		if ok, err := tc.HandleExprOK(lhs.Index); !ok {
			return false, fmt.Errorf("error handling 'let' array index: %w", err)
		}
	default:
		return false, fmt.Errorf("'let' LHS must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}

	return tc.HandleExprOK(statement.Rhs)
}

// Specialized function to type-check a 'jack.IfStmt'.
func (tc *TypeChecker) HandleIfStmt(statement IfStmt) (bool, error) {
	if ok, err := tc.HandleExprOK(statement.Condition); !ok {
		return false, fmt.Errorf("error handling if condition: %w", err)
	}
	for _, stmt := range append(statement.ThenBlock, statement.ElseBlock...) {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Specialized function to type-check a 'jack.WhileStmt'.
func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt) (bool, error) {
	if ok, err := tc.HandleExprOK(statement.Condition); !ok {
		return false, fmt.Errorf("error handling while condition: %w", err)
	}
	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, err
		}
	}
	return true, nil
}

// HandleExprOK confirms an expression tree is structurally well-formed: every
// 'VarExpr' it contains resolves in the current scope, every nested expression
// recurses cleanly. It deliberately returns no type, only a verdict.
func (tc *TypeChecker) HandleExprOK(expr Expression) (bool, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		if tExpr.Var == "this" {
			return true, nil
		}
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			return false, err
		}
		return true, nil

	case LiteralExpr:
		return true, nil

	case ArrayExpr:
		if _, _, err := tc.scopes.ResolveVariable(tExpr.Var); err != nil {
			return false, err
		}
		return tc.HandleExprOK(tExpr.Index)

	case UnaryExpr:
		return tc.HandleExprOK(tExpr.Rhs)

	case BinaryExpr:
		if ok, err := tc.HandleExprOK(tExpr.Lhs); !ok {
			return false, err
		}
		return tc.HandleExprOK(tExpr.Rhs)

	case FuncCallExpr:
		for _, arg := range tExpr.Arguments {
			if ok, err := tc.HandleExprOK(arg); !ok {
				return false, err
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("unrecognized expression: %T", expr)
	}
}
