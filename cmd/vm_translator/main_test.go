package main

import (
	"strings"
	"testing"

	"github.com/hmny-n2t/jackc/pkg/asm"
	"github.com/hmny-n2t/jackc/pkg/vm"
)

// translate runs a single .vm module through the Lowerer + Asm CodeGenerator and
// returns the resulting assembly, one instruction per line.
func translate(t *testing.T, module vm.Module) []string {
	t.Helper()

	lowerer := vm.NewLowerer(vm.Program{"Main.vm": module})
	program, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error during lowering: %s", err)
	}

	codegen := asm.NewCodeGenerator(program)
	compiled, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error during codegen: %s", err)
	}

	return compiled
}

func TestBootstrap(t *testing.T) {
	// Even a module with nothing but 'Sys.init' should yield the bootstrap preamble
	// as the very first instructions of the translated program: SP=256, LCL/ARG/THIS/THAT
	// set to -1/-2/-3/-4, then a call into 'Sys.init'.
	lines := translate(t, vm.Module{
		vm.FuncDecl{Name: "Sys.init", NLocal: 0},
		vm.ReturnOp{},
	})

	expectedPrefix := []string{
		"@256", "D=A", "@SP", "M=D",
		"D=-1", "@LCL", "M=D",
		"D=D-1", "@ARG", "M=D",
		"D=D-1", "@THIS", "M=D",
		"D=D-1", "@THAT", "M=D",
	}

	if len(lines) < len(expectedPrefix) {
		t.Fatalf("expected at least %d instructions, got %d", len(expectedPrefix), len(lines))
	}
	for i, expected := range expectedPrefix {
		if lines[i] != expected {
			t.Fatalf("instruction %d: expected %q, got %q", i, expected, lines[i])
		}
	}
	// Bootstrap always ends by jumping into 'Sys.init', never falling through to user code.
	if !strings.Contains(strings.Join(lines, "\n"), "@Sys.init") {
		t.Fatalf("expected bootstrap to reference '@Sys.init'")
	}
}

func TestComparisonLabelsAreUnique(t *testing.T) {
	// Three consecutive 'eq' commands must never reuse a label, each emission gets
	// its own disjoint 'CHECK<n>TRUE'/'CHECK<n>FALSE' pair with a monotonic counter.
	lines := translate(t, vm.Module{
		vm.FuncDecl{Name: "Sys.init", NLocal: 0},
		vm.ArithmeticOp{Operation: vm.Eq},
		vm.ArithmeticOp{Operation: vm.Eq},
		vm.ArithmeticOp{Operation: vm.Eq},
		vm.ReturnOp{},
	})

	seen := map[string]int{}
	for _, line := range lines {
		if strings.HasPrefix(line, "(CHECK") {
			seen[line]++
		}
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 distinct CHECK labels (3 eq x 2 each), got %d: %v", len(seen), seen)
	}
	for label, count := range seen {
		if count != 1 {
			t.Fatalf("label %s emitted %d times, expected exactly once", label, count)
		}
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	// 'push constant 7' followed by 'pop local 0' should move the value into the local
	// segment's first slot without touching any other segment.
	lines := translate(t, vm.Module{
		vm.FuncDecl{Name: "Sys.init", NLocal: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 0},
		vm.ReturnOp{},
	})

	if len(lines) == 0 {
		t.Fatalf("expected non-empty translated program")
	}

	start := -1
	for i, line := range lines {
		if line == "(Sys.init)" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		t.Fatalf("expected a '(Sys.init)' label in the translated program")
	}
	expected := []string{
		// Zero-initialize the single local
		"D=0", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		// push constant 7
		"@7", "D=A", "@SP", "A=M", "M=D", "@SP", "M=M+1",
		// pop local 0: only LCL (through R13) is addressed
		"@0", "D=A", "@LCL", "D=D+M", "@R13", "M=D",
		"@SP", "AM=M-1", "D=M", "@R13", "A=M", "M=D",
	}
	if len(lines) < start+len(expected) {
		t.Fatalf("expected at least %d instructions after '(Sys.init)', got %d", len(expected), len(lines)-start)
	}
	for i, want := range expected {
		if lines[start+i] != want {
			t.Fatalf("instruction %d after '(Sys.init)': expected %q, got %q", i, want, lines[start+i])
		}
	}
}

func TestCallPushesFiveFrameSlots(t *testing.T) {
	// 'call F n' must push exactly 5 values (return address, LCL, ARG, THIS, THAT) before
	// jumping, regardless of 'n'. Each push writes through an "A=M / M=D" pair, so we count
	// those pairs across the whole translated program.
	lines := translate(t, vm.Module{
		vm.FuncDecl{Name: "Sys.init", NLocal: 0},
		vm.FuncCallOp{Name: "Math.multiply", NArgs: 2},
		vm.ReturnOp{},
	})

	writes := 0
	for i := 0; i+1 < len(lines); i++ {
		if lines[i] == "A=M" && lines[i+1] == "M=D" {
			writes++
		}
	}
	// Five pushes for the frame saved by the bootstrap's own call into 'Sys.init', five
	// for the frame saved by the explicit 'call Math.multiply 2' inside it.
	if writes < 10 {
		t.Fatalf("expected at least 10 stack writes (2 calls x 5 frame slots), got %d", writes)
	}
}
