package jack

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hmny-n2t/jackc/pkg/utils"
	"github.com/hmny-n2t/jackc/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Lowerer

// Lowerer walks a jack.Program depth-first and emits the equivalent vm.Program.
// Each Handle* method below covers exactly one AST node kind, mirroring the
// shape of a recursive-descent parser but producing VM operations instead of
// consuming tokens. Control constructs (if/while) thread a monotonic counter
// through their generated label names so that repeated or nested constructs
// never collide.
type Lowerer struct {
	program     utils.OrderedMap[string, Class]
	scopes      ScopeTable
	nRandomizer uint
}

// NewLowerer sorts the input classes by name before storing them. Go's map
// iteration order is randomized, and label names are derived purely from an
// incrementing counter, so lowering the same program twice without this step
// could legitimately produce two different (if equally correct) outputs.
// Sorting first pins one deterministic traversal order and makes the result
// reproducible across runs.
func NewLowerer(p Program) Lowerer {
	entries := make([]utils.MapEntry[string, Class], 0, len(p))
	for _, class := range p {
		entries = append(entries, utils.MapEntry[string, Class]{Key: class.Name, Value: class})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	return Lowerer{program: utils.NewOrderedMapFromList(entries)}
}

// Lowerer runs the lowering pass over every class in the program, in the
// deterministic order NewLowerer established, and assembles the per-class VM
// modules into a single vm.Program.
func (l *Lowerer) Lowerer() (vm.Program, error) {
	if l.program.Size() == 0 {
		return nil, fmt.Errorf("the given 'program' is empty or nil")
	}

	out := vm.Program{}
	for name, class := range l.program.Entries() {
		operations, err := l.HandleClass(class)
		if err != nil {
			return nil, fmt.Errorf("error handling lowering of class '%s': %w", name, err)
		}
		out[name] = vm.Module(operations)
	}
	return out, nil
}

// HandleClass lowers one class's fields (which only need to be registered in
// scope, not emitted) and subroutines (which each produce a VM function).
func (l *Lowerer) HandleClass(class Class) ([]vm.Operation, error) {
	l.scopes.PushClassScope(class.Name)
	defer l.scopes.PopClassScope()

	var operations []vm.Operation

	for _, field := range class.Fields.Entries() {
		ops, err := l.HandleVarStmt(VarStmt{Vars: []Variable{field}})
		if err != nil {
			return nil, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
		operations = append(operations, ops...)
	}

	for _, subroutine := range class.Subroutines.Entries() {
		ops, err := l.HandleSubroutine(subroutine)
		if err != nil {
			return nil, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
		operations = append(operations, ops...)
	}

	return operations, nil
}

// HandleSubroutine lowers one subroutine to a vm.FuncDecl followed by its
// instance-setup prelude (if any) and its statement bodies, in that order.
func (l *Lowerer) HandleSubroutine(subroutine Subroutine) ([]vm.Operation, error) {
	l.scopes.PushSubRoutineScope(subroutine.Name)
	defer l.scopes.PopSubroutineScope()

	// Methods receive the target instance as a hidden first argument; it is
	// registered here under a placeholder name purely to reserve its argument
	// slot, the prelude below is what actually recovers it into 'this'.
	if subroutine.Type == Method {
		l.scopes.RegisterVariable(Variable{Name: "__obj", Type: Parameter, DataType: Object, ClassName: subroutine.Name})
	}
	for _, arg := range subroutine.Arguments {
		// Registering over an existing name implements shadowing rather than
		// rejecting the redeclaration outright.
		l.scopes.RegisterVariable(arg)
	}

	var body []vm.Operation
	for _, stmt := range subroutine.Statements {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling nested statement %T': %w", stmt, err)
		}
		body = append(body, ops...)
	}

	decl := vm.FuncDecl{Name: l.scopes.GetScope(), NLocal: uint8(len(l.scopes.local.entries))}

	prelude, err := l.subroutinePrelude(subroutine.Type)
	if err != nil {
		return nil, err
	}

	return append(append([]vm.Operation{decl}, prelude...), body...), nil
}

// subroutinePrelude returns the instance-setup code a subroutine's own body
// depends on before it runs. Constructors allocate their object's backing
// memory themselves and point 'this' at the fresh block (unlike e.g. C++,
// where a constructor only initializes memory the caller already allocated).
// Methods instead recover 'this' from the hidden first argument pushed by
// their caller. Plain functions need no setup at all.
func (l *Lowerer) subroutinePrelude(kind SubroutineType) ([]vm.Operation, error) {
	switch kind {
	case Constructor:
		nFields, err := l.countInstanceFields()
		if err != nil {
			return nil, err
		}
		return []vm.Operation{
			// Each field is exactly one word, so the field count is the allocation size.
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: nFields},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}, nil

	case Method:
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		}, nil

	default:
		return nil, nil
	}
}

// countInstanceFields looks up the class currently in scope and counts its
// non-static fields, i.e. how many words a fresh instance of it occupies.
func (l *Lowerer) countInstanceFields() (uint16, error) {
	className := strings.Split(l.scopes.GetScope(), ".")[0]
	class, exists := l.program.Get(className)
	if !exists {
		return 0, fmt.Errorf("class '%s' not found", className)
	}

	var nFields uint16
	for _, field := range class.Fields.Entries() {
		if field.Type == Field {
			nFields++
		}
	}
	return nFields, nil
}

// HandleStatement dispatches a statement node to its dedicated handler.
func (l *Lowerer) HandleStatement(stmt Statement) ([]vm.Operation, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return l.HandleDoStmt(tStmt)
	case VarStmt:
		return l.HandleVarStmt(tStmt)
	case LetStmt:
		return l.HandleLetStmt(tStmt)
	case IfStmt:
		return l.HandleIfStmt(tStmt)
	case WhileStmt:
		return l.HandleWhileStmt(tStmt)
	case ReturnStmt:
		return l.HandleReturnStmt(tStmt)
	default:
		return nil, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

// HandleDoStmt lowers a bare call statement; its result value is unused, so
// it is popped into the temp segment rather than kept on the stack.
func (l *Lowerer) HandleDoStmt(statement DoStmt) ([]vm.Operation, error) {
	ops, err := l.HandleFuncCallExpr(statement.FuncCall)
	if err != nil {
		return nil, fmt.Errorf("error handling nested function call expression: %w", err)
	}
	return append(ops, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

// HandleVarStmt only updates scope bookkeeping; a local/field declaration has
// no runtime effect of its own.
func (l *Lowerer) HandleVarStmt(statement VarStmt) ([]vm.Operation, error) {
	for _, variable := range statement.Vars {
		l.scopes.RegisterVariable(variable)
	}
	return nil, nil
}

// HandleLetStmt lowers an assignment. The right-hand side is lowered first;
// for a plain variable its code is emitted before the pop, for an array cell
// it is emitted after the cell's address computation.
func (l *Lowerer) HandleLetStmt(statement LetStmt) ([]vm.Operation, error) {
	rhsOps, err := l.HandleExpression(statement.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling RHS expression: %w", err)
	}

	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		return l.lowerVarAssign(lhs, rhsOps)
	case ArrayExpr:
		return l.lowerArrayAssign(lhs, rhsOps)
	default:
		return nil, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}
}

// lowerVarAssign pops the already-evaluated RHS straight into the segment
// slot backing the named variable.
func (l *Lowerer) lowerVarAssign(lhs VarExpr, rhsOps []vm.Operation) ([]vm.Operation, error) {
	offset, variable, err := l.scopes.ResolveVariable(lhs.Var)
	if err != nil {
		return nil, fmt.Errorf("error resolving variable '%s' in array expression: %w", lhs.Var, err)
	}

	segment, err := segmentForVarType(variable.Type)
	if err != nil {
		return nil, err
	}

	return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: segment, Offset: offset}), nil
}

// lowerArrayAssign computes the target cell's address, stashes the RHS value
// in temp so the address computation can safely reuse the stack, then
// repoints 'that' at the target cell and writes the value through it.
func (l *Lowerer) lowerArrayAssign(lhs ArrayExpr, rhsOps []vm.Operation) ([]vm.Operation, error) {
	addrOps, err := l.arrayElementAddress(lhs.Var, lhs.Index)
	if err != nil {
		return nil, err
	}

	writeOps := []vm.Operation{
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
	}

	return append(append(addrOps, rhsOps...), writeOps...), nil
}

// arrayElementAddress emits the base-variable push, the index evaluation, and
// the add that together leave an array cell's absolute address on the stack.
// Both reading an array element (HandleArrayExpr) and writing one
// (lowerArrayAssign) start from this same address computation.
func (l *Lowerer) arrayElementAddress(baseVar string, index Expression) ([]vm.Operation, error) {
	baseOps, err := l.HandleVarExpr(VarExpr{Var: baseVar})
	if err != nil {
		return nil, fmt.Errorf("error handling base variable expression: %w", err)
	}

	indexOps, err := l.HandleExpression(index)
	if err != nil {
		return nil, fmt.Errorf("error handling index expression: %w", err)
	}

	return append(append(baseOps, indexOps...), vm.ArithmeticOp{Operation: vm.Add}), nil
}

// HandleWhileStmt lowers a while loop to a test-at-top jump pair. Each
// emission claims two consecutive counter values (loop start, loop end) so
// concurrently-open loops never share a label.
func (l *Lowerer) HandleWhileStmt(statement WhileStmt) ([]vm.Operation, error) {
	condOps, err := l.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling while condition expression: %w", err)
	}

	var blockOps []vm.Operation
	for _, stmt := range statement.Block {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in while block: %w", err)
		}
		blockOps = append(blockOps, ops...)
	}

	start, end := l.nRandomizer, l.nRandomizer+1
	defer func() { l.nRandomizer += 2 }()

	ops := []vm.Operation{vm.LabelDecl{Name: fmt.Sprintf("WHILE_START_%d", start)}}
	ops = append(ops, condOps...)
	ops = append(ops,
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Label: fmt.Sprintf("WHILE_END_%d", end), Jump: vm.Conditional},
	)
	ops = append(ops, blockOps...)
	ops = append(ops,
		vm.GotoOp{Label: fmt.Sprintf("WHILE_START_%d", start), Jump: vm.Unconditional},
		vm.LabelDecl{Name: fmt.Sprintf("WHILE_END_%d", end)},
	)
	return ops, nil
}

// HandleIfStmt lowers an if/else. An else-less if only needs a single forward
// jump past the then-block; an if/else needs the usual two-way fork plus a
// join label, which is why the two shapes claim a different number of
// counter values (one versus three).
func (l *Lowerer) HandleIfStmt(statement IfStmt) ([]vm.Operation, error) {
	condOps, err := l.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling if condition expression: %w", err)
	}

	thenOps, err := l.lowerBlock(statement.ThenBlock, "then")
	if err != nil {
		return nil, err
	}
	elseOps, err := l.lowerBlock(statement.ElseBlock, "else")
	if err != nil {
		return nil, err
	}

	if len(elseOps) == 0 {
		skip := l.nRandomizer
		defer func() { l.nRandomizer += 1 }()

		ops := append(condOps,
			vm.ArithmeticOp{Operation: vm.Not},
			vm.GotoOp{Label: fmt.Sprintf("ELSE_%d", skip), Jump: vm.Conditional},
		)
		ops = append(ops, thenOps...)
		ops = append(ops, vm.LabelDecl{Name: fmt.Sprintf("ELSE_%d", skip)})
		return ops, nil
	}

	then, els, end := l.nRandomizer, l.nRandomizer+1, l.nRandomizer+2
	defer func() { l.nRandomizer += 3 }()

	ops := append([]vm.Operation{}, condOps...)
	ops = append(ops,
		vm.GotoOp{Label: fmt.Sprintf("THEN_%d", then), Jump: vm.Conditional},
		vm.GotoOp{Label: fmt.Sprintf("ELSE_%d", els), Jump: vm.Unconditional},
		vm.LabelDecl{Name: fmt.Sprintf("THEN_%d", then)},
	)
	ops = append(ops, thenOps...)
	ops = append(ops,
		vm.GotoOp{Label: fmt.Sprintf("END_%d", end), Jump: vm.Unconditional},
		vm.LabelDecl{Name: fmt.Sprintf("ELSE_%d", els)},
	)
	ops = append(ops, elseOps...)
	ops = append(ops, vm.LabelDecl{Name: fmt.Sprintf("END_%d", end)})
	return ops, nil
}

// lowerBlock lowers a statement list, used for both branches of an if.
func (l *Lowerer) lowerBlock(block []Statement, name string) ([]vm.Operation, error) {
	var ops []vm.Operation
	for _, stmt := range block {
		out, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in '%s' block: %w", name, err)
		}
		ops = append(ops, out...)
	}
	return ops, nil
}

// HandleReturnStmt lowers a return. Jack has no true void: a subroutine with
// no explicit return value still pushes a dummy constant so every call site
// can uniformly pop a result.
func (l *Lowerer) HandleReturnStmt(statement ReturnStmt) ([]vm.Operation, error) {
	if statement.Expr == nil {
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	ops, err := l.HandleExpression(statement.Expr)
	if err != nil {
		return nil, fmt.Errorf("error handling return expression: %w", err)
	}
	return append(ops, vm.ReturnOp{}), nil
}

// HandleExpression dispatches an expression node to its dedicated handler.
func (l *Lowerer) HandleExpression(expr Expression) ([]vm.Operation, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return l.HandleVarExpr(tExpr)
	case LiteralExpr:
		return l.HandleLiteralExpr(tExpr)
	case ArrayExpr:
		return l.HandleArrayExpr(tExpr)
	case UnaryExpr:
		return l.HandleUnaryExpr(tExpr)
	case BinaryExpr:
		return l.HandleBinaryExpr(tExpr)
	case FuncCallExpr:
		return l.HandleFuncCallExpr(tExpr)
	default:
		return nil, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

// segmentForVarType maps a declared variable's kind to the VM memory segment
// a reference to it reads from or writes to. Shared by HandleVarExpr (reads)
// and lowerVarAssign (writes), since the two must always agree on where a
// given variable actually lives.
func segmentForVarType(kind VarType) (vm.SegmentType, error) {
	switch kind {
	case Local:
		return vm.Local, nil
	case Parameter:
		return vm.Argument, nil
	case Field:
		return vm.This, nil
	case Static:
		return vm.Static, nil
	default:
		return "", fmt.Errorf("variable type '%s' is not supported yet", kind)
	}
}

// HandleVarExpr lowers a bare variable reference. 'this' is special-cased
// since it names the pointer segment itself rather than a declared variable.
func (l *Lowerer) HandleVarExpr(expression VarExpr) ([]vm.Operation, error) {
	if expression.Var == "this" {
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil
	}

	offset, variable, err := l.scopes.ResolveVariable(expression.Var)
	if err != nil {
		return nil, fmt.Errorf("error resolving variable '%s' in array expression: %w", expression.Var, err)
	}

	segment, err := segmentForVarType(variable.Type)
	if err != nil {
		return nil, err
	}
	return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset}}, nil
}

// HandleLiteralExpr lowers a literal constant. Strings are the odd case out:
// Jack has no string literal support in the VM, so one is built at runtime
// via repeated calls into the String OS class.
func (l *Lowerer) HandleLiteralExpr(expression LiteralExpr) ([]vm.Operation, error) {
	switch expression.Type {
	case Int:
		value, err := strconv.ParseUint(expression.Value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("error parsing integer literal '%s': %w", expression.Value, err)
		}
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(value)}}, nil

	case Bool:
		value, err := strconv.ParseBool(expression.Value)
		if err != nil {
			return nil, fmt.Errorf("error parsing integer literal '%s': %w", expression.Value, err)
		}
		if value {
			return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1}, vm.ArithmeticOp{Operation: vm.Neg}}, nil
		}
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil

	case Char:
		if len(expression.Value) != 1 {
			return nil, fmt.Errorf("error parsing char literal '%s'", expression.Value)
		}
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(expression.Value[0])}}, nil

	case Object:
		if expression.Value != "null" {
			return nil, fmt.Errorf("object literal are not supported '%s'", expression.Value)
		}
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil

	case String:
		ops := []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(expression.Value))},
			vm.FuncCallOp{Name: "String.new", NArgs: 1},
		}
		for _, char := range expression.Value {
			ops = append(ops,
				vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(char)},
				vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
			)
		}
		return ops, nil

	default:
		return nil, fmt.Errorf("unrecognized literal expression type: %s", expression.Type)
	}
}

// HandleArrayExpr lowers a read of an array element: compute its address,
// then dereference it through the 'that' segment.
func (l *Lowerer) HandleArrayExpr(expression ArrayExpr) ([]vm.Operation, error) {
	addrOps, err := l.arrayElementAddress(expression.Var, expression.Index)
	if err != nil {
		return nil, err
	}

	return append(addrOps,
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	), nil
}

// HandleUnaryExpr lowers a prefix operator applied to its single operand.
func (l *Lowerer) HandleUnaryExpr(expression UnaryExpr) ([]vm.Operation, error) {
	ops, err := l.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Type {
	case Negation:
		return append(ops, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case BoolNot:
		return append(ops, vm.ArithmeticOp{Operation: vm.Not}), nil
	default:
		return nil, fmt.Errorf("unrecognized unary expression type: %s", expression.Type)
	}
}

// HandleBinaryExpr lowers a two-operand operator. Operands are pushed
// left-then-right; '*' and '/' have no VM opcode and instead become calls
// into the Math OS class.
func (l *Lowerer) HandleBinaryExpr(expression BinaryExpr) ([]vm.Operation, error) {
	lhsOps, err := l.HandleExpression(expression.Lhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested LHS expression: %w", err)
	}
	rhsOps, err := l.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested RHS expression: %w", err)
	}
	operands := append(lhsOps, rhsOps...)

	switch expression.Type {
	case Plus:
		return append(operands, vm.ArithmeticOp{Operation: vm.Add}), nil
	case Minus:
		return append(operands, vm.ArithmeticOp{Operation: vm.Sub}), nil
	case Divide:
		return append(operands, vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	case Multiply:
		return append(operands, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case BoolOr:
		return append(operands, vm.ArithmeticOp{Operation: vm.Or}), nil
	case BoolAnd:
		return append(operands, vm.ArithmeticOp{Operation: vm.And}), nil
	case BoolNot:
		return append(operands, vm.ArithmeticOp{Operation: vm.Not}), nil
	case Equal:
		return append(operands, vm.ArithmeticOp{Operation: vm.Eq}), nil
	case LessThan:
		return append(operands, vm.ArithmeticOp{Operation: vm.Lt}), nil
	case GreatThan:
		return append(operands, vm.ArithmeticOp{Operation: vm.Gt}), nil
	default:
		return nil, fmt.Errorf("unrecognized binary expression type: %s", expression.Type)
	}
}

// HandleFuncCallExpr lowers a call expression. A call is one of three shapes:
// a same-instance call within the current class, a call on some other
// object's variable, or a call into a class's function/constructor by name.
// Each shape needs a different 'this' argument (or none at all), so each is
// resolved by its own helper below.
func (l *Lowerer) HandleFuncCallExpr(expression FuncCallExpr) ([]vm.Operation, error) {
	argsInit, err := l.lowerCallArguments(expression.Arguments)
	if err != nil {
		return nil, err
	}
	argsLen := uint8(len(expression.Arguments))

	if !expression.IsExtCall {
		return l.lowerInternalCall(expression, argsInit, argsLen)
	}
	if ops, handled, err := l.lowerInstanceExtCall(expression, argsInit, argsLen); handled || err != nil {
		return ops, err
	}
	return l.lowerClassExtCall(expression, argsInit, argsLen)
}

func (l *Lowerer) lowerCallArguments(args []Expression) ([]vm.Operation, error) {
	var ops []vm.Operation
	for _, expr := range args {
		argOps, err := l.HandleExpression(expr)
		if err != nil {
			return nil, fmt.Errorf("error handling argument expression: %w", err)
		}
		ops = append(ops, argOps...)
	}
	return ops, nil
}

// lowerInternalCall handles a bare call ('doSomething(...)') resolved within
// the class currently in scope. Methods need the current instance's 'this'
// pointer pushed ahead of the explicit arguments; functions and constructors
// don't.
func (l *Lowerer) lowerInternalCall(expression FuncCallExpr, argsInit []vm.Operation, argsLen uint8) ([]vm.Operation, error) {
	className := strings.Split(l.scopes.GetScope(), ".")[0]

	class, exists := l.program.Get(className)
	if !exists {
		return nil, fmt.Errorf("class defintion not found for '%s'", className)
	}
	routine, exists := class.Subroutines.Get(expression.FuncName)
	if !exists {
		return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, className)
	}

	fName := fmt.Sprintf("%s.%s", className, expression.FuncName)
	if routine.Type != Method {
		return append(argsInit, vm.FuncCallOp{Name: fName, NArgs: argsLen}), nil
	}

	thisOp := vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}
	return append([]vm.Operation{thisOp}, append(argsInit, vm.FuncCallOp{Name: fName, NArgs: argsLen + 1})...), nil
}

// lowerInstanceExtCall handles 'someVar.method(...)' where 'someVar' is an
// object held in a variable already in scope. Reports handled=false (with no
// error) when expression.Var doesn't actually name such a variable, so the
// caller falls through to lowerClassExtCall.
func (l *Lowerer) lowerInstanceExtCall(expression FuncCallExpr, argsInit []vm.Operation, argsLen uint8) (ops []vm.Operation, handled bool, err error) {
	_, variable, _ := l.scopes.ResolveVariable(expression.Var)
	if variable == (Variable{}) {
		return nil, false, nil
	}
	if variable.DataType != Object {
		return nil, true, fmt.Errorf("variable '%s' is not an object", expression.Var)
	}

	thisArg, err := l.HandleVarExpr(VarExpr{Var: expression.Var})
	if err != nil {
		return nil, true, fmt.Errorf("error handling variable expression for 'this' pointer: %w", err)
	}

	fName := fmt.Sprintf("%s.%s", variable.ClassName, expression.FuncName)
	return append(append(thisArg, argsInit...), vm.FuncCallOp{Name: fName, NArgs: argsLen + 1}), true, nil
}

// lowerClassExtCall handles 'ClassName.routine(...)', i.e. a call to a
// function or constructor looked up by class name rather than through an
// instance variable. There is no 'this' to set up in either case; a
// constructor's memory allocation is the callee's own responsibility (see
// subroutinePrelude), not the call site's. A class that is not part of the
// program is not checked: the call is emitted as 'call Class.routine nArgs'.
func (l *Lowerer) lowerClassExtCall(expression FuncCallExpr, argsInit []vm.Operation, argsLen uint8) ([]vm.Operation, error) {
	class, isClass := l.program.Get(expression.Var)
	if !isClass {
		fName := fmt.Sprintf("%s.%s", expression.Var, expression.FuncName)
		return append(argsInit, vm.FuncCallOp{Name: fName, NArgs: argsLen}), nil
	}

	routine, exists := class.Subroutines.Get(expression.FuncName)
	if !exists {
		return nil, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, class.Name)
	}

	switch routine.Type {
	case Function, Constructor:
		fName := fmt.Sprintf("%s.%s", class.Name, expression.FuncName)
		return append(argsInit, vm.FuncCallOp{Name: fName, NArgs: argsLen}), nil
	default:
		return nil, fmt.Errorf("subroutine '%s' in class '%s' is not a function or constructor, got %s", expression.FuncName, class.Name, routine.Type)
	}
}
