package compiler

import (
	"bytes"
	"os"
	"testing"

	"bullettrain/internal/btcontext"
	"bullettrain/internal/vm"
)

func compileAndRun(t *testing.T, source string) string {
	t.Helper()
	ctx := btcontext.New()
	fn, err := Compile(ctx, source)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	th := vm.NewThread()
	var out bytes.Buffer
	th.Stdout = &out
	if err := th.Run(fn, ctx.RootShape, ctx.Heap); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

// spec §8.4 scenario 1.
func TestArithmeticScenario(t *testing.T) {
	if got := compileAndRun(t, "print 1 + 2 * 3"); got != "7\n" {
		t.Errorf("got %q, want %q", got, "7\n")
	}
}

// spec §8.4 scenario 2: `or`'s RHS must never execute once the LHS is a
// known-true literal.
func TestShortCircuitOrSkipsRHS(t *testing.T) {
	src := `x = {}
if true or (x.y = 1) { print 0 }
print x.y`
	if got := compileAndRun(t, src); got != "0\nnil\n" {
		t.Errorf("got %q, want %q", got, "0\nnil\n")
	}
}

// spec §8.4 scenario 3.
func TestWhileLoopSum(t *testing.T) {
	src := `i = 0
s = 0
while i < 10 { s = s + i  i = i + 1 }
print s`
	if got := compileAndRun(t, src); got != "45\n" {
		t.Errorf("got %q, want %q", got, "45\n")
	}
}

// spec §8.4 scenario 4.
func TestIfElifElse(t *testing.T) {
	src := `x = 2
if x == 1 { print 10 } elif x == 2 { print 20 } else { print 30 }`
	if got := compileAndRun(t, src); got != "20\n" {
		t.Errorf("got %q, want %q", got, "20\n")
	}
}

// spec §8.4 scenario 5: struct field chain & shape sharing (output only —
// the shape-sharing invariant itself is covered directly in
// internal/shape's tests).
func TestStructFieldChain(t *testing.T) {
	src := `a = {}
b = {}
a.x = 1
a.y = 2
b.x = 3
b.y = 4
print a.y + b.x`
	if got := compileAndRun(t, src); got != "5\n" {
		t.Errorf("got %q, want %q", got, "5\n")
	}
}

// spec §8.4 scenario 6: boolean materialization.
func TestBooleanMaterialization(t *testing.T) {
	src := `r = 3 < 4 and 5 == 5
print r`
	if got := compileAndRun(t, src); got != "true\n" {
		t.Errorf("got %q, want %q", got, "true\n")
	}
}

func TestIfWithNoElseFalseConditionLeavesStateUnchanged(t *testing.T) {
	src := `x = 1
if x == 2 { x = 99 }
print x`
	if got := compileAndRun(t, src); got != "1\n" {
		t.Errorf("got %q, want %q", got, "1\n")
	}
}

func TestWhileAlwaysFalseRunsZeroTimes(t *testing.T) {
	src := `x = 1
while x == 2 { x = 99 }
print x`
	if got := compileAndRun(t, src); got != "1\n" {
		t.Errorf("got %q, want %q", got, "1\n")
	}
}

func TestMissingFieldReadIsNil(t *testing.T) {
	src := `a = {}
print a.missing`
	if got := compileAndRun(t, src); got != "nil\n" {
		t.Errorf("got %q, want %q", got, "nil\n")
	}
}

func TestGreaterAndGreaterEqualLowering(t *testing.T) {
	src := `print 5 > 3
print 3 >= 3`
	if got := compileAndRun(t, src); got != "true\ntrue\n" {
		t.Errorf("got %q, want %q", got, "true\ntrue\n")
	}
}

func TestNotNotIsIdentityForBooleans(t *testing.T) {
	src := `print !!true
print !!false`
	if got := compileAndRun(t, src); got != "true\nfalse\n" {
		t.Errorf("got %q, want %q", got, "true\nfalse\n")
	}
}

func TestCompileFileReadsAndCompilesSource(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/script.bt"
	if err := os.WriteFile(path, []byte("print 1 + 2 * 3"), 0o644); err != nil {
		t.Fatalf("could not write fixture: %v", err)
	}

	ctx := btcontext.New()
	fn, err := CompileFile(ctx, path)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}

	th := vm.NewThread()
	var out bytes.Buffer
	th.Stdout = &out
	if err := th.Run(fn, ctx.RootShape, ctx.Heap); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if out.String() != "7\n" {
		t.Errorf("got %q, want %q", out.String(), "7\n")
	}
}

func TestCompileFileMissingFileReturnsError(t *testing.T) {
	ctx := btcontext.New()
	if _, err := CompileFile(ctx, "/nonexistent/path/does/not/exist.bt"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestUndeclaredIdentifierIsSyntaxError(t *testing.T) {
	ctx := btcontext.New()
	_, err := Compile(ctx, "print x")
	if err == nil {
		t.Fatal("expected a syntax error for an undeclared identifier")
	}
}

// spec §8.1: registers high-water mark covers every register operand used.
func TestFunctionRegistersCoversOperands(t *testing.T) {
	ctx := btcontext.New()
	fn, err := Compile(ctx, "a = 1\nb = 2\nc = a + b\nprint c")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var maxSeen uint8
	for _, instr := range fn.Program {
		if a := instr.A(); a > maxSeen {
			maxSeen = a
		}
		if !instr.KB() {
			if b := instr.B(); b > maxSeen {
				maxSeen = b
			}
		}
		if !instr.KC() {
			if cc := instr.C(); cc > maxSeen {
				maxSeen = cc
			}
		}
	}
	if fn.Registers <= maxSeen {
		t.Errorf("registers=%d does not cover max operand %d", fn.Registers, maxSeen)
	}
}
