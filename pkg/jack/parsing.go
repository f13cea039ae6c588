package jack

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hmny-n2t/jackc/pkg/utils"
	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// This section defines the Parser Combinator for every token & construct of the Jack language.
//
// Each parser combinator either manages a top-level construct (class, class var dec, subroutine
// dec, statement, expression) or some piece of it: tokens, identifiers, literals. Expression and
// statement productions are mutually and self recursive ('term' can contain a parenthesized
// 'expression', 'if'/'while' bodies contain further 'statement's), so the three combinators that
// would otherwise need to reference a not-yet-declared package level var ('pExprRef', 'pTermRef',
// 'pStatementRef') are instead plain closures that call the real combinator through 'lazyRules',
// at parse time rather than at package-init time. Go counts every name referenced inside a
// function literal as an initialization dependency, so a closure naming 'pExpr' directly would
// still form a cycle; 'lazyRules' has no initializer and is filled in by init() once every
// package level var has been initialized.

// Top level object, will generate the traversable AST based on the input plus the PCs below.
var ast = pc.NewAST("jack_program", 0)

var lazyRules struct{ expr, term, statement pc.Parser }

func init() { lazyRules.expr, lazyRules.term, lazyRules.statement = pExpr, pTerm, pStatement }

var pExprRef pc.Parser = func(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return lazyRules.expr(s) }
var pTermRef pc.Parser = func(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return lazyRules.term(s) }
var pStatementRef pc.Parser = func(s pc.Scanner) (pc.ParsecNode, pc.Scanner) { return lazyRules.statement(s) }

var (
	pClass = ast.And("class", nil,
		pc.Atom("class", "CLASS"), pIdent, pLBrace,
		pClassVarDecs, pSubroutineDecs,
		pRBrace,
	)

	pClassVarDecs   = ast.Kleene("class_var_decs", nil, ast.OrdChoice("class_var_item", nil, pComment, pClassVarDec))
	pSubroutineDecs = ast.Kleene("subroutine_decs", nil, ast.OrdChoice("subroutine_item", nil, pComment, pSubroutineDec))

	// "static" or "field" declaration, e.g. 'field int x, y;'
	pClassVarDec = ast.And("class_var_dec", nil, pVarScope, pDataType, pNameList, pSemi)
	pVarScope    = ast.OrdChoice("var_scope", nil, pc.Atom("static", "STATIC"), pc.Atom("field", "FIELD"))

	pSubroutineDec = ast.And("subroutine_dec", nil,
		pSubroutineKind, pReturnType, pIdent,
		pLParen, pParams, pRParen,
		pSubroutineBody,
	)
	pSubroutineKind = ast.OrdChoice("subroutine_kind", nil,
		pc.Atom("constructor", "CONSTRUCTOR"), pc.Atom("function", "FUNCTION"), pc.Atom("method", "METHOD"),
	)
	pReturnType = ast.OrdChoice("return_type", nil, pc.Atom("void", "VOID"), pDataType)

	pParams = ast.Kleene("params", nil, ast.And("param", nil, pDataType, pIdent), pComma)

	pSubroutineBody = ast.And("subroutine_body", nil, pLBrace, pVarDecs, pStatements, pRBrace)
	pVarDecs        = ast.Kleene("var_decs", nil, pVarDec)
	pVarDec         = ast.And("var_dec", nil, pc.Atom("var", "VAR"), pDataType, pNameList, pSemi)

	// Comma separated list of identifiers, e.g. a class-var or var-dec's 'x, y, z'
	pNameList = ast.And("var_names", nil, pIdent, ast.Kleene("more_var_names", nil, ast.And("more_name", nil, pComma, pIdent)))
)

var (
	pStatements = ast.Kleene("statements", nil, ast.OrdChoice("statement_item", nil, pComment, pStatementRef))
	pStatement  = ast.OrdChoice("statement", nil, pLetStmt, pIfStmt, pWhileStmt, pDoStmt, pReturnStmt)

	pLetStmt = ast.And("let_stmt", nil,
		pc.Atom("let", "LET"), pIdent,
		ast.Maybe("maybe_index", nil, ast.And("index", nil, pLBracket, pExprRef, pRBracket)),
		pc.Atom("=", "ASSIGN"), pExprRef, pSemi,
	)

	pIfStmt = ast.And("if_stmt", nil,
		pc.Atom("if", "IF"), pLParen, pExprRef, pRParen, pLBrace, pStatements, pRBrace,
		ast.Maybe("maybe_else", nil, ast.And("else_block", nil, pc.Atom("else", "ELSE"), pLBrace, pStatements, pRBrace)),
	)

	pWhileStmt = ast.And("while_stmt", nil,
		pc.Atom("while", "WHILE"), pLParen, pExprRef, pRParen, pLBrace, pStatements, pRBrace,
	)

	pDoStmt = ast.And("do_stmt", nil, pc.Atom("do", "DO"), pSubroutineCall, pSemi)

	pReturnStmt = ast.And("return_stmt", nil, pc.Atom("return", "RETURN"), ast.Maybe("maybe_expr", nil, pExprRef), pSemi)
)

var (
	// Order matters: the qualified ('Class.method(...)') form must be tried before the local one
	// since both start with an identifier, and array access / bare var must be tried after any
	// form that expects a following '(' or '[' so a plain variable reference doesn't greedily win.
	pSubroutineCall = ast.OrdChoice("subroutine_call", nil,
		ast.And("qualified_call", nil, pIdent, pDot, pIdent, pLParen, pExprList, pRParen),
		ast.And("local_call", nil, pIdent, pLParen, pExprList, pRParen),
	)
	pExprList = ast.Kleene("expr_list", nil, pExprRef, pComma)

	pExpr = ast.And("expression", nil, pTerm, ast.Kleene("expr_tail", nil, ast.And("op_term", nil, pOp, pTerm)))
	pOp   = ast.OrdChoice("op", nil,
		pc.Atom("+", "PLUS"), pc.Atom("-", "MINUS"), pc.Atom("*", "STAR"), pc.Atom("/", "SLASH"),
		pc.Atom("&", "AMP"), pc.Atom("|", "PIPE"), pc.Atom("<", "LT"), pc.Atom(">", "GT"), pc.Atom("=", "EQ"),
	)

	pTerm = ast.OrdChoice("term", nil,
		pc.Int(), pStrConst, pKeywordConst,
		pSubroutineCall,
		ast.And("array_access", nil, pIdent, pLBracket, pExprRef, pRBracket),
		ast.And("paren_expr", nil, pLParen, pExprRef, pRParen),
		ast.And("unary_term", nil, pUnaryOp, pTermRef),
		pIdent,
	)

	pUnaryOp      = ast.OrdChoice("unary_op", nil, pc.Atom("-", "MINUS"), pc.Atom("~", "TILDE"))
	pKeywordConst = ast.OrdChoice("keyword_const", nil,
		pc.Atom("true", "TRUE"), pc.Atom("false", "FALSE"), pc.Atom("null", "NULL"), pc.Atom("this", "THIS"),
	)
	pStrConst = pc.Token(`"(?:\\.|[^"\\])*"`, "STRING")
)

var (
	// Generic Identifier parser (for class, variable and subroutine names)
	// NOTE: An ident can be any sequence of letters, digits, and symbols (_, $).
	// NOTE: An ident cannot begin with a leading digit.
	pIdent = pc.Token(`[A-Za-z_$][0-9a-zA-Z_$]*`, "IDENT")

	pDot      = pc.Atom(".", "DOT")
	pSemi     = pc.Atom(";", "SEMI")
	pComma    = pc.Atom(",", "COMMA")
	pLBrace   = pc.Atom("{", "LBRACE")
	pRBrace   = pc.Atom("}", "RBRACE")
	pLParen   = pc.Atom("(", "LPAREN")
	pRParen   = pc.Atom(")", "RPAREN")
	pLBracket = pc.Atom("[", "LBRACKET")
	pRBracket = pc.Atom("]", "RBRACKET")

	pComment = ast.OrdChoice("comment", nil,
		// Single line comments (e.g. "// This is a comment")
		ast.And("sl_comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT")),
		// Multi line comments (e.g. "/* This is a comment */")
		ast.And("ml_comment", nil, pc.Token(`/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`, "COMMENT")),
	)

	// Primitive or class type, used for class-var/var/param declarations and non-void return types.
	pDataType = ast.OrdChoice("data_type", nil,
		pc.Atom("int", "INT"), pc.Atom("char", "CHAR"), pc.Atom("boolean", "BOOLEAN"), pIdent,
	)
)

// isComment reports whether a node name is either variant of 'pComment's transparently
// bubbled-up result, so callers walking a Kleene node's children can skip them uniformly.
func isComment(name string) bool { return name == "sl_comment" || name == "ml_comment" }

// ----------------------------------------------------------------------------
// Jack Parser

// This section defines the Parser for the nand2tetris Jack language.
//
// It uses parser combinator(s) to obtain the AST from the source code (the latter can be provided)
// in multiple ways using a generic io.Reader, the library reads up the feature flags (as env vars):
// - PARSEC_DEBUG: Verbose logging to inspect which of the PCs gets triggered and match
// - EXPORT_AST:   Exports in the DEBUG_FOLDER a Graphviz representation of the AST
// - PRINT_AST:    Print on the stdout a textual representation of the AST
type Parser struct{ reader io.Reader }

// Initializes and returns to the caller a brand new 'Parser' struct.
// Requires the argument io.Reader 'r' to be valid and usable.
func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parser entrypoint divides the 2 phases of the parsing pipeline
// Text --> AST: This step is done using PCs and returns a generic traversable AST
// AST --> IR: This step is done by traversing the AST and extracting the 'jack.Class'
func (p *Parser) Parse() (Class, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return Class{}, fmt.Errorf("cannot read from 'io.Reader': %s", err)
	}

	root, success := p.FromSource(content)
	if !success {
		return Class{}, fmt.Errorf("failed to parse AST from input content")
	}

	return p.FromAST(root)
}

// Scans the textual input stream coming from the 'reader' method and returns a traversable AST
// (Abstract Syntax Tree) that can be eventually visited to extract/transform the info available.
func (p *Parser) FromSource(source []byte) (pc.Queryable, bool) {

	// Feature flag: Enable 'goparsec' library's debug logs
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	// We generate the traversable Abstract Syntax Tree from the source content
	root, _ := ast.Parsewith(pClass, pc.NewScanner(source))

	// Feature flag: Enables export of the AST as Dot file (debug.ast.dot)
	if os.Getenv("EXPORT_AST") != "" {
		file, _ := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER")))
		defer file.Close()

		file.Write([]byte(ast.Dotstring("\"Jack AST\"")))
	}

	// Feature flag: Enables pretty printing of the AST on the console
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	return root, root != nil && root.GetName() == "class"
}

// This function takes the root node of the raw parsed AST and does a DFS on it parsing
// one by one each subtree and returning a 'jack.Class' that can be used as in-memory and
// type-safe AST not dependent on the parsing library used.
func (p *Parser) FromAST(root pc.Queryable) (Class, error) {
	if root.GetName() != "class" {
		return Class{}, fmt.Errorf("expected node 'class', found %s", root.GetName())
	}

	children := root.GetChildren()
	name := children[1].GetValue()

	class := Class{
		Name:        name,
		Fields:      utils.OrderedMap[string, Variable]{},
		Subroutines: utils.OrderedMap[string, Subroutine]{},
	}

	for _, item := range children[3].GetChildren() { // class_var_decs
		if isComment(item.GetName()) {
			continue
		}

		vars, err := p.HandleClassVarDec(item)
		if err != nil {
			return Class{}, fmt.Errorf("error handling class var dec in class '%s': %w", name, err)
		}
		for _, v := range vars {
			class.Fields.Set(v.Name, v)
		}
	}

	for _, item := range children[4].GetChildren() { // subroutine_decs
		if isComment(item.GetName()) {
			continue
		}

		subroutine, err := p.HandleSubroutineDec(item)
		if err != nil {
			return Class{}, fmt.Errorf("error handling subroutine dec in class '%s': %w", name, err)
		}
		class.Subroutines.Set(subroutine.Name, subroutine)
	}

	return class, nil
}

// Specialized function to convert a "class_var_dec" node to a list of 'jack.Variable'.
func (p *Parser) HandleClassVarDec(node pc.Queryable) ([]Variable, error) {
	if node.GetName() != "class_var_dec" {
		return nil, fmt.Errorf("expected node 'class_var_dec', got %s", node.GetName())
	}

	children := node.GetChildren()
	varType, err := varTypeFromScope(children[0].GetName())
	if err != nil {
		return nil, err
	}

	dataType, className, err := p.HandleDataType(children[1])
	if err != nil {
		return nil, err
	}

	names, err := p.HandleNameList(children[2])
	if err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(names))
	for _, n := range names {
		vars = append(vars, Variable{Name: n, Type: varType, DataType: dataType, ClassName: className})
	}
	return vars, nil
}

// Specialized function to extract the identifiers out of a "var_names" node.
func (p *Parser) HandleNameList(node pc.Queryable) ([]string, error) {
	if node.GetName() != "var_names" {
		return nil, fmt.Errorf("expected node 'var_names', got %s", node.GetName())
	}

	children := node.GetChildren()
	names := []string{children[0].GetValue()}
	for _, more := range children[1].GetChildren() { // "more_var_names" -> each "more_name"
		names = append(names, more.GetChildren()[1].GetValue())
	}
	return names, nil
}

// Specialized function to convert a "data_type"/"return_type" node to a 'jack.DataType'.
// Returns the class name too, populated only when the type resolves to an 'Object'.
func (p *Parser) HandleDataType(node pc.Queryable) (DataType, string, error) {
	switch node.GetName() {
	case "INT":
		return Int, "", nil
	case "CHAR":
		return Char, "", nil
	case "BOOLEAN":
		return Bool, "", nil
	case "VOID":
		return Void, "", nil
	case "IDENT":
		return Object, node.GetValue(), nil
	default:
		return "", "", fmt.Errorf("unrecognized data type node '%s'", node.GetName())
	}
}

// Specialized function to convert a "subroutine_dec" node to a 'jack.Subroutine'.
func (p *Parser) HandleSubroutineDec(node pc.Queryable) (Subroutine, error) {
	if node.GetName() != "subroutine_dec" {
		return Subroutine{}, fmt.Errorf("expected node 'subroutine_dec', got %s", node.GetName())
	}

	children := node.GetChildren()
	kind, err := subroutineTypeFromKind(children[0].GetName())
	if err != nil {
		return Subroutine{}, err
	}

	retType, _, err := p.HandleDataType(children[1])
	if err != nil {
		return Subroutine{}, err
	}

	name := children[2].GetValue()

	args := []Variable{}
	for _, param := range children[4].GetChildren() { // "params" -> each "param"
		dt, className, err := p.HandleDataType(param.GetChildren()[0])
		if err != nil {
			return Subroutine{}, fmt.Errorf("error handling param of subroutine '%s': %w", name, err)
		}
		args = append(args, Variable{
			Name: param.GetChildren()[1].GetValue(), Type: Parameter, DataType: dt, ClassName: className,
		})
	}

	stmts, err := p.HandleSubroutineBody(children[6])
	if err != nil {
		return Subroutine{}, fmt.Errorf("error handling body of subroutine '%s': %w", name, err)
	}

	return Subroutine{Name: name, Type: kind, Return: retType, Arguments: args, Statements: stmts}, nil
}

// Specialized function to convert a "subroutine_body" node to a list of 'jack.Statement'.
// Local var declarations are flattened to leading 'jack.VarStmt'(s), matching the order
// the Jack grammar requires them to appear in (all before the first real statement).
func (p *Parser) HandleSubroutineBody(node pc.Queryable) ([]Statement, error) {
	if node.GetName() != "subroutine_body" {
		return nil, fmt.Errorf("expected node 'subroutine_body', got %s", node.GetName())
	}

	children := node.GetChildren()
	statements := []Statement{}

	for _, decl := range children[1].GetChildren() { // "var_decs" -> each "var_dec"
		vars, err := p.HandleVarDec(decl)
		if err != nil {
			return nil, err
		}
		statements = append(statements, VarStmt{Vars: vars})
	}

	stmts, err := p.HandleStatements(children[2])
	if err != nil {
		return nil, err
	}

	return append(statements, stmts...), nil
}

// Specialized function to convert a "var_dec" node to a list of 'jack.Variable'.
func (p *Parser) HandleVarDec(node pc.Queryable) ([]Variable, error) {
	if node.GetName() != "var_dec" {
		return nil, fmt.Errorf("expected node 'var_dec', got %s", node.GetName())
	}

	children := node.GetChildren()
	dataType, className, err := p.HandleDataType(children[1])
	if err != nil {
		return nil, err
	}

	names, err := p.HandleNameList(children[2])
	if err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(names))
	for _, n := range names {
		vars = append(vars, Variable{Name: n, Type: Local, DataType: dataType, ClassName: className})
	}
	return vars, nil
}

// Specialized function to convert a "statements" node to a list of 'jack.Statement'.
func (p *Parser) HandleStatements(node pc.Queryable) ([]Statement, error) {
	if node.GetName() != "statements" {
		return nil, fmt.Errorf("expected node 'statements', got %s", node.GetName())
	}

	statements := []Statement{}
	for _, item := range node.GetChildren() {
		if isComment(item.GetName()) {
			continue
		}

		stmt, err := p.HandleStatement(item)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// Generalized function to convert a statement node to its specific 'jack.Statement'.
func (p *Parser) HandleStatement(node pc.Queryable) (Statement, error) {
	switch node.GetName() {
	case "let_stmt":
		return p.HandleLetStmt(node)
	case "if_stmt":
		return p.HandleIfStmt(node)
	case "while_stmt":
		return p.HandleWhileStmt(node)
	case "do_stmt":
		return p.HandleDoStmt(node)
	case "return_stmt":
		return p.HandleReturnStmt(node)
	default:
		return nil, fmt.Errorf("unrecognized statement node '%s'", node.GetName())
	}
}

// Specialized function to convert a "let_stmt" node to a 'jack.LetStmt'.
func (p *Parser) HandleLetStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()
	varName := children[1].GetValue()

	rhs, err := p.HandleExpression(children[4])
	if err != nil {
		return nil, fmt.Errorf("error handling RHS of let statement: %w", err)
	}

	maybeIndex := children[2]
	if maybeIndex.GetName() == "index" {
		index, err := p.HandleExpression(maybeIndex.GetChildren()[1])
		if err != nil {
			return nil, fmt.Errorf("error handling index of let statement: %w", err)
		}
		return LetStmt{Lhs: ArrayExpr{Var: varName, Index: index}, Rhs: rhs}, nil
	}

	return LetStmt{Lhs: VarExpr{Var: varName}, Rhs: rhs}, nil
}

// Specialized function to convert an "if_stmt" node to a 'jack.IfStmt'.
func (p *Parser) HandleIfStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()

	cond, err := p.HandleExpression(children[2])
	if err != nil {
		return nil, fmt.Errorf("error handling if condition: %w", err)
	}

	thenBlock, err := p.HandleStatements(children[5])
	if err != nil {
		return nil, fmt.Errorf("error handling if 'then' block: %w", err)
	}

	elseBlock := []Statement{}
	maybeElse := children[7]
	if maybeElse.GetName() == "else_block" {
		elseBlock, err = p.HandleStatements(maybeElse.GetChildren()[2])
		if err != nil {
			return nil, fmt.Errorf("error handling if 'else' block: %w", err)
		}
	}

	return IfStmt{Condition: cond, ThenBlock: thenBlock, ElseBlock: elseBlock}, nil
}

// Specialized function to convert a "while_stmt" node to a 'jack.WhileStmt'.
func (p *Parser) HandleWhileStmt(node pc.Queryable) (Statement, error) {
	children := node.GetChildren()

	cond, err := p.HandleExpression(children[2])
	if err != nil {
		return nil, fmt.Errorf("error handling while condition: %w", err)
	}

	block, err := p.HandleStatements(children[5])
	if err != nil {
		return nil, fmt.Errorf("error handling while block: %w", err)
	}

	return WhileStmt{Condition: cond, Block: block}, nil
}

// Specialized function to convert a "do_stmt" node to a 'jack.DoStmt'.
func (p *Parser) HandleDoStmt(node pc.Queryable) (Statement, error) {
	call, err := p.HandleSubroutineCall(node.GetChildren()[1])
	if err != nil {
		return nil, fmt.Errorf("error handling do statement's function call: %w", err)
	}
	return DoStmt{FuncCall: call}, nil
}

// Specialized function to convert a "return_stmt" node to a 'jack.ReturnStmt'.
func (p *Parser) HandleReturnStmt(node pc.Queryable) (Statement, error) {
	maybeExpr := node.GetChildren()[1]
	if maybeExpr.GetName() != "expression" {
		return ReturnStmt{Expr: nil}, nil
	}

	expr, err := p.HandleExpression(maybeExpr)
	if err != nil {
		return nil, fmt.Errorf("error handling return expression: %w", err)
	}
	return ReturnStmt{Expr: expr}, nil
}

// Specialized function to convert an "expression" node to a 'jack.Expression', folding
// left-to-right over any trailing '(op term)' pairs into nested 'jack.BinaryExpr'.
func (p *Parser) HandleExpression(node pc.Queryable) (Expression, error) {
	if node.GetName() != "expression" {
		return nil, fmt.Errorf("expected node 'expression', got %s", node.GetName())
	}

	children := node.GetChildren()
	lhs, err := p.HandleTerm(children[0])
	if err != nil {
		return nil, err
	}

	for _, opTerm := range children[1].GetChildren() { // "expr_tail" -> each "op_term"
		opChildren := opTerm.GetChildren()
		exprType, err := exprTypeFromOp(opChildren[0].GetName())
		if err != nil {
			return nil, err
		}

		rhs, err := p.HandleTerm(opChildren[1])
		if err != nil {
			return nil, err
		}

		lhs = BinaryExpr{Type: exprType, Lhs: lhs, Rhs: rhs}
	}

	return lhs, nil
}

// Generalized function to convert a term node to its specific 'jack.Expression'.
func (p *Parser) HandleTerm(node pc.Queryable) (Expression, error) {
	switch node.GetName() {
	case "INT":
		return LiteralExpr{Type: Int, Value: node.GetValue()}, nil

	case "STRING":
		raw := node.GetValue()
		return LiteralExpr{Type: String, Value: strings.Trim(raw, `"`)}, nil

	case "TRUE":
		return LiteralExpr{Type: Bool, Value: "true"}, nil
	case "FALSE":
		return LiteralExpr{Type: Bool, Value: "false"}, nil
	case "NULL":
		return LiteralExpr{Type: Object, Value: "null"}, nil
	case "THIS":
		return VarExpr{Var: "this"}, nil

	case "qualified_call", "local_call":
		return p.HandleSubroutineCall(node)

	case "array_access":
		children := node.GetChildren()
		index, err := p.HandleExpression(children[2])
		if err != nil {
			return nil, fmt.Errorf("error handling array index: %w", err)
		}
		return ArrayExpr{Var: children[0].GetValue(), Index: index}, nil

	case "paren_expr":
		return p.HandleExpression(node.GetChildren()[1])

	case "unary_term":
		children := node.GetChildren()
		rhs, err := p.HandleTerm(children[1])
		if err != nil {
			return nil, fmt.Errorf("error handling unary operand: %w", err)
		}

		switch children[0].GetName() {
		case "MINUS":
			return UnaryExpr{Type: Negation, Rhs: rhs}, nil
		case "TILDE":
			return UnaryExpr{Type: BoolNot, Rhs: rhs}, nil
		default:
			return nil, fmt.Errorf("unrecognized unary operator '%s'", children[0].GetName())
		}

	case "IDENT":
		return VarExpr{Var: node.GetValue()}, nil

	default:
		return nil, fmt.Errorf("unrecognized term node '%s'", node.GetName())
	}
}

// Specialized function to convert a "qualified_call"/"local_call" node to a 'jack.FuncCallExpr'.
func (p *Parser) HandleSubroutineCall(node pc.Queryable) (FuncCallExpr, error) {
	switch node.GetName() {
	case "qualified_call":
		children := node.GetChildren()
		args, err := p.HandleExprList(children[4])
		if err != nil {
			return FuncCallExpr{}, err
		}
		return FuncCallExpr{
			IsExtCall: true, Var: children[0].GetValue(), FuncName: children[2].GetValue(), Arguments: args,
		}, nil

	case "local_call":
		children := node.GetChildren()
		args, err := p.HandleExprList(children[2])
		if err != nil {
			return FuncCallExpr{}, err
		}
		return FuncCallExpr{IsExtCall: false, FuncName: children[0].GetValue(), Arguments: args}, nil

	default:
		return FuncCallExpr{}, fmt.Errorf("expected node 'qualified_call' or 'local_call', got %s", node.GetName())
	}
}

// Specialized function to convert an "expr_list" node to a list of 'jack.Expression'.
func (p *Parser) HandleExprList(node pc.Queryable) ([]Expression, error) {
	if node.GetName() != "expr_list" {
		return nil, fmt.Errorf("expected node 'expr_list', got %s", node.GetName())
	}

	args := []Expression{}
	for _, exprNode := range node.GetChildren() {
		arg, err := p.HandleExpression(exprNode)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// ----------------------------------------------------------------------------
// Small enum-mapping helpers shared by the Handle* functions above.

func varTypeFromScope(name string) (VarType, error) {
	switch name {
	case "STATIC":
		return Static, nil
	case "FIELD":
		return Field, nil
	default:
		return "", fmt.Errorf("unrecognized var scope node '%s'", name)
	}
}

func subroutineTypeFromKind(name string) (SubroutineType, error) {
	switch name {
	case "CONSTRUCTOR":
		return Constructor, nil
	case "FUNCTION":
		return Function, nil
	case "METHOD":
		return Method, nil
	default:
		return "", fmt.Errorf("unrecognized subroutine kind node '%s'", name)
	}
}

func exprTypeFromOp(name string) (ExprType, error) {
	switch name {
	case "PLUS":
		return Plus, nil
	case "MINUS":
		return Minus, nil
	case "STAR":
		return Multiply, nil
	case "SLASH":
		return Divide, nil
	case "AMP":
		return BoolAnd, nil
	case "PIPE":
		return BoolOr, nil
	case "LT":
		return LessThan, nil
	case "GT":
		return GreatThan, nil
	case "EQ":
		return Equal, nil
	default:
		return "", fmt.Errorf("unrecognized operator node '%s'", name)
	}
}
