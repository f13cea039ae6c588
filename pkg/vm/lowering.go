package vm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hmny-n2t/jackc/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (a set of already-parsed translation units, one
// per .vm file) and produces its 'asm.Program' counterpart.
//
// Each vm.Operation is translated independently into a short, self-contained run of
// Asm instructions; the runs are concatenated module by module (in sorted file-name
// order, for reproducible output) and prefixed with the bootstrap sequence that every
// Hack program needs regardless of whether the source defines a 'Sys.init' or not.
type Lowerer struct {
	program Program

	nCompare uint // Counter used to keep 'eq'/'gt'/'lt' labels unique across the whole program
	nReturn  uint // Counter used to keep 'call' return-address labels unique across the whole program
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program 'p' to be not nil.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process. Modules are visited in lexicographic file-name order (map
// iteration order is not stable in Go) so that the same 'vm.Program' always lowers to the
// exact same 'asm.Program', instruction for instruction.
func (l *Lowerer) Lowerer() (asm.Program, error) {
	program := append(asm.Program{}, l.bootstrap()...)

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fileName := strings.TrimSuffix(name, ".vm")

		for _, operation := range l.program[name] {
			inst, err := l.handleOperation(operation, fileName)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			program = append(program, inst...)
		}
	}

	return program, nil
}

// Every Hack program, regardless of what the source defines, starts by setting the Stack
// Pointer to its conventional base address and initializing the 'this/that/local/argument'
// segment pointers to the sentinel values the OS tests expect before any frame is pushed.
// It then unconditionally jumps into 'Sys.init', the well-known VM program entrypoint.
func (l *Lowerer) bootstrap() asm.Program {
	program := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.CInstruction{Dest: "D", Comp: "-1"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.CInstruction{Dest: "D", Comp: "D-1"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.CInstruction{Dest: "D", Comp: "D-1"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.CInstruction{Dest: "D", Comp: "D-1"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	call, _ := l.handleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	return append(program, call...)
}

// Dispatches a single 'vm.Operation' to its specialized handler based on its concrete type.
func (l *Lowerer) handleOperation(operation Operation, fileName string) (asm.Program, error) {
	switch op := operation.(type) {
	case MemoryOp:
		return l.handleMemoryOp(op, fileName)
	case ArithmeticOp:
		return l.handleArithmeticOp(op)
	case LabelDecl:
		return l.handleLabelDecl(op)
	case GotoOp:
		return l.handleGotoOp(op)
	case FuncDecl:
		return l.handleFuncDecl(op)
	case FuncCallOp:
		return l.handleFuncCallOp(op)
	case ReturnOp:
		return l.handleReturnOp(op)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", operation)
	}
}

// Specialized function to convert a 'vm.MemoryOp' (push/pop) to its Asm counterpart.
//
// 'constant', 'temp' and 'pointer' are resolved directly (either as literals or as a fixed
// RAM offset); 'local/argument/this/that' are resolved indirectly through their segment
// base pointer; 'static' is resolved through a per-file symbolic label so that each class
// gets its own bank of shared variables.
func (l *Lowerer) handleMemoryOp(op MemoryOp, fileName string) (asm.Program, error) {
	switch op.Segment {
	case Constant:
		if op.Operation != Push {
			return nil, fmt.Errorf("the 'constant' segment cannot be written to")
		}
		return pushD(asm.Program{
			asm.AInstruction{Location: strconv.FormatUint(uint64(op.Offset), 10)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}), nil

	case Temp:
		if op.Offset > 7 {
			return nil, fmt.Errorf("offset %d out of bound for 'temp' segment (0-7)", op.Offset)
		}
		return l.memoryOpDirect(op, strconv.FormatUint(uint64(5+op.Offset), 10)), nil

	case Pointer:
		if op.Offset > 1 {
			return nil, fmt.Errorf("offset %d out of bound for 'pointer' segment (0-1)", op.Offset)
		}
		location := "THIS"
		if op.Offset == 1 {
			location = "THAT"
		}
		return l.memoryOpDirect(op, location), nil

	case Static:
		return l.memoryOpDirect(op, fmt.Sprintf("%s.%d", fileName, op.Offset)), nil

	case Local, Argument, This, That:
		base := map[SegmentType]string{Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT"}[op.Segment]
		return l.memoryOpIndirect(op, base), nil

	default:
		return nil, fmt.Errorf("unrecognized segment '%s'", op.Segment)
	}
}

// Handles push/pop for the segments that live at a single, fixed RAM location (temp,
// pointer, static): no base-pointer indirection is required.
func (l *Lowerer) memoryOpDirect(op MemoryOp, location string) asm.Program {
	if op.Operation == Push {
		return pushD(asm.Program{
			asm.AInstruction{Location: location},
			asm.CInstruction{Dest: "D", Comp: "M"},
		})
	}
	return append(popIntoD(), asm.Program{
		asm.AInstruction{Location: location},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}...)
}

// Handles push/pop for the segments addressed as 'base[offset]' (local, argument, this, that).
func (l *Lowerer) memoryOpIndirect(op MemoryOp, base string) asm.Program {
	offset := strconv.FormatUint(uint64(op.Offset), 10)

	if op.Operation == Push {
		return pushD(asm.Program{
			asm.AInstruction{Location: offset},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: base},
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		})
	}

	program := asm.Program{
		asm.AInstruction{Location: offset},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: base},
		asm.CInstruction{Dest: "D", Comp: "D+M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	return append(append(program, popIntoD()...), asm.Program{
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}...)
}

// Specialized function to convert a 'vm.ArithmeticOp' to its Asm counterpart.
//
// Binary operators (add/sub/and/or) pop both operands and push a single result; unary
// operators (neg/not) rewrite the top of the stack in place; comparisons (eq/gt/lt) need
// a pair of uniquely-named labels since the Hack ISA has no ternary/select instruction.
func (l *Lowerer) handleArithmeticOp(op ArithmeticOp) (asm.Program, error) {
	switch op.Operation {
	case Neg:
		return l.unaryOp("-M"), nil
	case Not:
		return l.unaryOp("!M"), nil
	case Add:
		return l.binaryOp("D+M"), nil
	case Sub:
		return l.binaryOp("M-D"), nil
	case And:
		return l.binaryOp("D&M"), nil
	case Or:
		return l.binaryOp("D|M"), nil
	case Eq:
		return l.comparisonOp("JEQ"), nil
	case Gt:
		return l.comparisonOp("JGT"), nil
	case Lt:
		return l.comparisonOp("JLT"), nil
	default:
		return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
	}
}

func (Lowerer) unaryOp(comp string) asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

func (Lowerer) binaryOp(comp string) asm.Program {
	return append(popIntoD(), asm.Program{
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}...)
}

func (l *Lowerer) comparisonOp(jump string) asm.Program {
	n := l.nCompare
	l.nCompare++

	onTrue := fmt.Sprintf("CHECK%dTRUE", n)
	onFalse := fmt.Sprintf("CHECK%dFALSE", n)

	program := append(popIntoD(), asm.Program{
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: onTrue},
		asm.CInstruction{Comp: "D", Jump: jump},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: onFalse},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: onTrue},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},
		asm.LabelDecl{Name: onFalse},
	}...)

	return program
}

// Specialized function to convert a 'vm.LabelDecl' to its Asm counterpart. Label names are
// assumed to already be unique across the whole program (the upstream Jack Lowerer hands out
// a single monotonic counter for the entire compilation), so no further qualification happens here.
func (Lowerer) handleLabelDecl(op LabelDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("expected non empty label name")
	}
	return asm.Program{asm.LabelDecl{Name: op.Name}}, nil
}

// Specialized function to convert a 'vm.GotoOp' to its Asm counterpart.
func (Lowerer) handleGotoOp(op GotoOp) (asm.Program, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("expected non empty goto target")
	}

	if op.Jump == Unconditional {
		return asm.Program{
			asm.AInstruction{Location: op.Label},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return append(popIntoD(), asm.Program{
		asm.AInstruction{Location: op.Label},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	}...), nil
}

// Specialized function to convert a 'vm.FuncDecl' to its Asm counterpart: a label marking the
// function's entrypoint, followed by zero-initializing as many local slots as it declares.
func (Lowerer) handleFuncDecl(op FuncDecl) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("expected non empty function name")
	}

	program := asm.Program{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		program = append(program, pushD(asm.Program{
			asm.CInstruction{Dest: "D", Comp: "0"},
		})...)
	}
	return program, nil
}

// Specialized function to convert a 'vm.FuncCallOp' to its Asm counterpart: saves the caller's
// frame (return address, LCL, ARG, THIS, THAT), repositions ARG/LCL for the callee and jumps
// into it. The return address is a freshly synthesized, program-wide unique label.
func (l *Lowerer) handleFuncCallOp(op FuncCallOp) (asm.Program, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("expected non empty callee name")
	}

	retLabel := fmt.Sprintf("%s$ret.%d", op.Name, l.nReturn)
	l.nReturn++

	program := pushD(asm.Program{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	})

	for _, segment := range []string{"LCL", "ARG", "THIS", "THAT"} {
		program = append(program, pushD(asm.Program{
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "D", Comp: "M"},
		})...)
	}

	program = append(program, asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: strconv.FormatUint(uint64(5+op.NArgs), 10)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: retLabel},
	}...)

	return program, nil
}

// Specialized function to convert a 'vm.ReturnOp' to its Asm counterpart: unwinds the callee's
// frame, hands the top of the stack back to the caller as the call's result, and restores the
// caller's segment pointers before jumping back to the saved return address.
//
// The frame pointer and return address are stashed in R13/R14 before any restoration begins,
// since writing THAT/THIS/ARG/LCL destroys the very pointers needed to locate them.
func (Lowerer) handleReturnOp(ReturnOp) (asm.Program, error) {
	program := asm.Program{
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	program = append(append(program, popIntoD()...), asm.Program{
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}...)

	for _, segment := range []string{"THAT", "THIS", "ARG", "LCL"} {
		program = append(program, asm.Program{
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}...)
	}

	return append(program, asm.Program{
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}...), nil
}

// ----------------------------------------------------------------------------
// Shared stack-manipulation helpers

// pushD appends the Asm sequence that pushes the value already held in the D register onto
// the top of the stack, after whatever instructions already load D with that value.
func pushD(seed asm.Program) asm.Program {
	return append(seed, asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}...)
}

// popIntoD decrements the Stack Pointer and loads the value it pointed to into D, leaving A
// pointing at the now-former top of the stack.
func popIntoD() asm.Program {
	return asm.Program{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}
