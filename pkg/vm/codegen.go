package vm

import "fmt"

// ----------------------------------------------------------------------------
// Code Generator

// CodeGenerator renders a vm.Program back into the VM's textual instruction
// format, one line per operation, grouped by module/class name.
type CodeGenerator struct {
	program Program
}

// NewCodeGenerator returns a CodeGenerator ready to render 'p'.
func NewCodeGenerator(p Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// Generate renders every operation of every module, validating each as it
// goes, and returns the rendered lines keyed by module name.
func (cg *CodeGenerator) Generate() (map[string][]string, error) {
	rendered := make(map[string][]string, len(cg.program))

	for modName, module := range cg.program {
		lines := make([]string, 0, len(module))
		for _, operation := range module {
			line, err := cg.render(operation)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", modName, err)
			}
			lines = append(lines, line)
		}
		rendered[modName] = lines
	}

	return rendered, nil
}

// render dispatches a single operation to its format-specific renderer.
func (cg *CodeGenerator) render(operation Operation) (string, error) {
	switch op := operation.(type) {
	case MemoryOp:
		return cg.GenerateMemoryOp(op)
	case ArithmeticOp:
		return cg.GenerateArithmeticOp(op)
	case LabelDecl:
		return cg.GenerateLabelDecl(op)
	case GotoOp:
		return cg.GenerateGotoOp(op)
	case FuncDecl:
		return cg.GenerateFuncDecl(op)
	case ReturnOp:
		return cg.GenerateReturnOp(op)
	case FuncCallOp:
		return cg.GenerateFuncCallOp(op)
	default:
		return "", fmt.Errorf("unrecognized vm operation: %T", operation)
	}
}

// maxSegmentOffset bounds the two segments whose valid offsets are fixed by
// the platform rather than by program size: 'pointer' only ever addresses
// 'this'/'that' (index 0/1), and 'temp' is a fixed eight-word window.
var maxSegmentOffset = map[SegmentType]uint16{
	Pointer: 1,
	Temp:    7,
}

// GenerateMemoryOp renders a push/pop, rejecting an offset that would fall
// outside the segment's fixed size.
func (cg *CodeGenerator) GenerateMemoryOp(op MemoryOp) (string, error) {
	if max, bounded := maxSegmentOffset[op.Segment]; bounded && op.Offset > max {
		return "", fmt.Errorf("invalid '%s' offset, got %d", op.Segment, op.Offset)
	}
	return fmt.Sprintf("%s %s %d", op.Operation, op.Segment, op.Offset), nil
}

// GenerateArithmeticOp renders a stack-top arithmetic/logic operation.
func (cg *CodeGenerator) GenerateArithmeticOp(op ArithmeticOp) (string, error) {
	return string(op.Operation), nil
}

// GenerateLabelDecl renders a jump target declaration.
func (cg *CodeGenerator) GenerateLabelDecl(op LabelDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}
	return fmt.Sprintf("label %s", op.Name), nil
}

// GenerateGotoOp renders an unconditional or conditional jump.
func (cg *CodeGenerator) GenerateGotoOp(op GotoOp) (string, error) {
	if op.Label == "" {
		return "", fmt.Errorf("unable to produce empty jump label")
	}
	return fmt.Sprintf("%s %s", op.Jump, op.Label), nil
}

// GenerateFuncDecl renders a function entry point and its local count.
func (cg *CodeGenerator) GenerateFuncDecl(op FuncDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function declaration")
	}
	return fmt.Sprintf("function %s %d", op.Name, op.NLocal), nil
}

// GenerateReturnOp renders a return; it carries no operands.
func (cg *CodeGenerator) GenerateReturnOp(op ReturnOp) (string, error) {
	return "return", nil
}

// GenerateFuncCallOp renders a call and its argument count.
func (cg *CodeGenerator) GenerateFuncCallOp(op FuncCallOp) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function call")
	}
	return fmt.Sprintf("call %s %d", op.Name, op.NArgs), nil
}
