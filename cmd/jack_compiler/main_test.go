package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// compile writes 'source' to a temporary '<name>.jack' file, runs it through the
// Handler exactly as the CLI would, and returns the generated '.vm' file's lines.
func compile(t *testing.T, name, source string, options map[string]string) []string {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, name+".jack")
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write fixture file: %s", err)
	}

	if options == nil {
		options = map[string]string{}
	}
	if status := Handler([]string{input}, options); status != 0 {
		t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
	}

	generated, err := os.ReadFile(filepath.Join(dir, name+".vm"))
	if err != nil {
		t.Fatalf("failed to read generated output: %s", err)
	}

	lines := strings.Split(strings.TrimRight(string(generated), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}

func TestHandlerEmptyClass(t *testing.T) {
	lines := compile(t, "Empty", `
class Empty {
}
`, nil)

	if len(lines) != 0 {
		t.Fatalf("expected no vm output for a class with no subroutines, got: %v", lines)
	}
}

func TestHandlerVoidMethod(t *testing.T) {
	lines := compile(t, "Noop", `
class Noop {
	method void run() {
		return;
	}
}
`, nil)

	if lines[0] != "function Noop.run 0" {
		t.Fatalf("expected function declaration first, got: %q", lines[0])
	}
	last := lines[len(lines)-1]
	if last != "return" {
		t.Fatalf("expected 'return' as final instruction, got: %q", last)
	}
}

func TestHandlerConstructorWithFields(t *testing.T) {
	lines := compile(t, "Point", `
class Point {
	field int x, y;

	constructor Point new(int ax, int ay) {
		let x = ax;
		let y = ay;
		return this;
	}

	method int getX() {
		return x;
	}
}
`, nil)

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "function Point.new 0") {
		t.Fatalf("expected constructor function declaration, got:\n%s", joined)
	}
	if !strings.Contains(joined, "push constant 2\ncall Memory.alloc 1") {
		t.Fatalf("expected constructor to allocate its instance via Memory.alloc, got:\n%s", joined)
	}
	if !strings.Contains(joined, "function Point.getX 0") {
		t.Fatalf("expected method function declaration, got:\n%s", joined)
	}
}

func TestHandlerArrayStore(t *testing.T) {
	lines := compile(t, "Arrays", `
class Arrays {
	function void fill(Array a, int i, int v) {
		let a[i] = v;
		return;
	}
}
`, nil)

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "pop temp") || !strings.Contains(joined, "pop pointer") {
		t.Fatalf("expected the standard array-store temp/pointer shuffle, got:\n%s", joined)
	}
}

func TestHandlerStdlibOptionResolvesCalls(t *testing.T) {
	// Without '--stdlib' a call into an undefined OS class (Math) should still lower
	// cleanly since lowering only needs the call site's argument count, not a body;
	// with '--stdlib' the OS classes are added to the program before lowering so a
	// future --typecheck pass has their signatures available too.
	lines := compile(t, "UsesMath", `
class UsesMath {
	function int square(int n) {
		return Math.multiply(n, n);
	}
}
`, map[string]string{"stdlib": "true"})

	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "call Math.multiply 2") {
		t.Fatalf("expected a call to Math.multiply with 2 args, got:\n%s", joined)
	}
}

func TestHandlerTypecheckRejectsUndeclaredVariable(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Bad.jack")
	source := `
class Bad {
	function void run() {
		let missing = 1;
		return;
	}
}
`
	if err := os.WriteFile(input, []byte(source), 0644); err != nil {
		t.Fatalf("failed to write fixture file: %s", err)
	}

	status := Handler([]string{input}, map[string]string{"typecheck": "true"})
	if status == 0 {
		t.Fatalf("expected a non-zero exit status for an undeclared variable, got 0")
	}
}
