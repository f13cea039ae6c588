package vm

import (
	"fmt"
	"io"
	"os"
	"strconv"

	pc "github.com/prataprc/goparsec"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

// The VM language's grammar, expressed with goparsec combinators. A program
// is a flat sequence of operations and comments - there is no nesting beyond
// that, unlike Jack's statement/expression trees - so every combinator below
// is a sibling in a single OrdChoice rather than a recursive grammar.
var ast = pc.NewAST("virtual_machine", 0)

var (
	// A VM module mirrors a single '.vm' file (a Jack class's translation unit):
	// a sequence of operations and comments, read until the scanner is exhausted.
	pModule = ast.ManyUntil("module", nil, ast.OrdChoice("node", nil, pComment, pOperation), pc.End())

	pComment = ast.And("comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT"))

	pOperation = ast.OrdChoice("operation", nil,
		pMemoryOp, pArithmeticOp, pLabelDecl, pGotoOp,
		pFuncDecl, pFunCallOp, pReturnOp,
	)

	// "{push|pop} {segment} {index}"
	pMemoryOp = ast.And("memory_op", nil, pMemOpType, pSegment, pc.Int())
	// A unary or binary stack operation; it carries no operand of its own.
	pArithmeticOp = ast.And("arithmetic_op", nil, pArithOpType)

	// "label {symbol}"
	pLabelDecl = ast.And("label_decl", nil, pc.Atom("label", "LABEL"), pIdent)
	// "{if-goto|goto} {symbol}"
	pGotoOp = ast.And("goto_op", nil, pJumpType, pIdent)

	// "function {name} {n_locals}"
	pFuncDecl = ast.And("func_decl", nil, pc.Atom("function", "FUNC"), pIdent, pc.Int())
	// "call {name} {n_args}"
	pFunCallOp = ast.And("func_call", nil, pc.Atom("call", "CALL"), pIdent, pc.Int())
	// "return"
	pReturnOp = ast.And("return_op", nil, pc.Atom("return", "RETURN"))
)

var (
	// Labels and function/call names: letters, digits, and '_.$:', never
	// leading with a digit (a symbol character may lead, though).
	pIdent = pc.Token(`[A-Za-z_.$:][0-9a-zA-Z_.$:]*`, "IDENT")

	pMemOpType = ast.OrdChoice("mem_op_type", nil, pc.Atom("push", "PUSH"), pc.Atom("pop", "POP"))

	pSegment = ast.OrdChoice("mem_segment", nil,
		pc.Atom("argument", "ARGUMENT"), pc.Atom("local", "LOCAL"),
		pc.Atom("static", "STATIC"), pc.Atom("constant", "CONSTANT"),
		pc.Atom("this", "THIS"), pc.Atom("that", "THAT"),
		pc.Atom("temp", "TEMP"), pc.Atom("pointer", "POINTER"),
	)

	pArithOpType = ast.OrdChoice("operations", nil,
		pc.Atom("eq", "EQ"), pc.Atom("gt", "GT"), pc.Atom("lt", "LT"),
		pc.Atom("add", "ADD"), pc.Atom("sub", "SUB"), pc.Atom("neg", "NEG"),
		pc.Atom("not", "NOT"), pc.Atom("and", "AND"), pc.Atom("or", "OR"),
	)

	pJumpType = ast.OrdChoice("jump_type", nil, pc.Atom("goto", "GOTO"), pc.Atom("if-goto", "IF-GOTO"))
)

// ----------------------------------------------------------------------------
// Vm Parser

// Parser turns VM source text into a vm.Module in two phases: Text -> AST via
// the combinators above, then AST -> IR via FromAST's per-node-kind visitor.
// Three environment variables toggle goparsec's own diagnostics while
// debugging a grammar change:
//   - PARSEC_DEBUG: verbose trace of which combinator matched where
//   - EXPORT_AST:   dumps a Graphviz rendering of the AST to DEBUG_FOLDER
//   - PRINT_AST:    pretty-prints the AST to stdout
type Parser struct{ reader io.Reader }

// NewParser returns a Parser that reads VM source from 'r'.
func NewParser(r io.Reader) Parser {
	return Parser{reader: r}
}

// Parse reads the whole input, builds its AST, then converts that AST into a
// vm.Module.
func (p *Parser) Parse() (Module, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read from 'io.Reader': %s", err)
	}

	root, ok := p.FromSource(content)
	if !ok {
		return nil, fmt.Errorf("failed to parse AST from input content")
	}

	return p.FromAST(root)
}

// FromSource runs the combinator grammar over 'source' and returns the
// resulting AST root, applying whichever goparsec debug flags are set in the
// environment.
func (p *Parser) FromSource(source []byte) (pc.Queryable, bool) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		ast.SetDebug()
	}

	root, _ := ast.Parsewith(pModule, pc.NewScanner(source))

	if os.Getenv("EXPORT_AST") != "" {
		if file, err := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER"))); err == nil {
			defer file.Close()
			file.Write([]byte(ast.Dotstring("\"VM AST\"")))
		}
	}
	if os.Getenv("PRINT_AST") != "" {
		ast.Prettyprint()
	}

	return root, true
}

// nodeHandler converts one AST subtree into its typed Operation. 'wantName'
// and 'wantChildren' let FromAST validate shape uniformly across every node
// kind instead of each Handle* method repeating the same two checks.
type nodeHandler struct {
	wantName     string
	wantChildren int
	convert      func(node pc.Queryable) (Operation, error)
}

// FromAST walks the root "module" node's children and converts each operation
// subtree to its Operation value via the table below; "comment" subtrees
// carry no semantic value and are dropped.
func (p *Parser) FromAST(root pc.Queryable) (Module, error) {
	if root.GetName() != "module" {
		return nil, fmt.Errorf("expected node 'program', found %s", root.GetName())
	}

	handlers := map[string]nodeHandler{
		"memory_op":     {"memory_op", 3, p.HandleMemoryOp},
		"arithmetic_op": {"arithmetic_op", 1, p.HandleArithmeticOp},
		"label_decl":    {"label_decl", 2, p.HandleLabelDecl},
		"goto_op":       {"goto_op", 2, p.HandleGotoOp},
		"func_decl":     {"func_decl", 3, p.HandleFuncDecl},
		"return_op":     {"return_op", 1, p.HandleReturnOp},
		"func_call":     {"func_call", 3, p.HandleFuncCall},
	}

	module := make(Module, 0, len(root.GetChildren()))
	for _, child := range root.GetChildren() {
		if child.GetName() == "comment" {
			continue
		}

		handler, known := handlers[child.GetName()]
		if !known {
			return nil, fmt.Errorf("unrecognized node '%s'", child.GetName())
		}
		if len(child.GetChildren()) != handler.wantChildren {
			return nil, fmt.Errorf("expected node '%s' with %d leaf, got %d", handler.wantName, handler.wantChildren, len(child.GetChildren()))
		}

		op, err := handler.convert(child)
		if err != nil {
			return nil, err
		}
		module = append(module, op)
	}

	return module, nil
}

// HandleMemoryOp converts a "memory_op" node to a MemoryOp.
func (Parser) HandleMemoryOp(node pc.Queryable) (Operation, error) {
	operation := OperationType(node.GetChildren()[0].GetValue())
	segment := SegmentType(node.GetChildren()[1].GetValue())

	offsetText := node.GetChildren()[2].GetValue()
	offset, err := strconv.ParseUint(offsetText, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to parse 'offset' in MemoryOp, got '%s'", offsetText)
	}

	return MemoryOp{Operation: operation, Segment: segment, Offset: uint16(offset)}, nil
}

// HandleArithmeticOp converts an "arithmetic_op" node to an ArithmeticOp.
func (Parser) HandleArithmeticOp(node pc.Queryable) (Operation, error) {
	return ArithmeticOp{Operation: ArithOpType(node.GetChildren()[0].GetValue())}, nil
}

// HandleLabelDecl converts a "label_decl" node to a LabelDecl.
func (Parser) HandleLabelDecl(node pc.Queryable) (Operation, error) {
	return LabelDecl{Name: node.GetChildren()[1].GetValue()}, nil
}

// HandleGotoOp converts a "goto_op" node to a GotoOp.
func (Parser) HandleGotoOp(node pc.Queryable) (Operation, error) {
	jump := JumpType(node.GetChildren()[0].GetValue())
	label := node.GetChildren()[1].GetValue()
	return GotoOp{Jump: jump, Label: label}, nil
}

// HandleFuncDecl converts a "func_decl" node to a FuncDecl.
func (Parser) HandleFuncDecl(node pc.Queryable) (Operation, error) {
	name := node.GetChildren()[1].GetValue()

	argsText := node.GetChildren()[2].GetValue()
	nLocal, err := strconv.ParseUint(argsText, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse 'args' in FuncDecl, got '%s'", argsText)
	}

	return FuncDecl{Name: name, NLocal: uint8(nLocal)}, nil
}

// HandleReturnOp converts a "return_op" node to a ReturnOp.
func (Parser) HandleReturnOp(node pc.Queryable) (Operation, error) {
	return ReturnOp{}, nil
}

// HandleFuncCall converts a "func_call" node to a FuncCallOp.
func (Parser) HandleFuncCall(node pc.Queryable) (Operation, error) {
	name := node.GetChildren()[1].GetValue()

	argsText := node.GetChildren()[2].GetValue()
	nArgs, err := strconv.ParseUint(argsText, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse 'args' in FuncCallOp, got '%s'", argsText)
	}

	return FuncCallOp{Name: name, NArgs: uint8(nArgs)}, nil
}
