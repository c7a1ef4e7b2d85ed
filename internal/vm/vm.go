// Package vm implements BT's register-based bytecode interpreter (spec
// §4.4): a Thread owning a register file and a reusable stack of Call
// frames, dispatching the nineteen opcodes of spec §4.2.
//
// Grounded on the teacher's internal/vmregister.RegisterVM/CallFrame
// (internal/vmregister/vm.go): the registers-as-a-flat-slice-plus-frame-base
// layout and the switch-on-opcode dispatch loop both carry over. Everything
// the teacher bolts on beyond the spec's nineteen opcodes — the JIT, module
// system, security-product module integrations, fiber/coroutine state — is
// dropped: spec §1 excludes optimizing compilation, and BT has no
// user-defined functions to call into (spec §9), so there is no call-stack
// growth to exercise beyond a single frame.
package vm

import (
	"fmt"
	"io"
	"os"

	"bullettrain/internal/bterrors"
	"bullettrain/internal/bytecode"
	"bullettrain/internal/gc"
	"bullettrain/internal/object"
	"bullettrain/internal/shape"
	"bullettrain/internal/value"
)

// CallFrame is one frame of a Thread's call stack (spec §4.4: "a frame
// holds {base, ip, closure}").
type CallFrame struct {
	fn      *object.Function
	closure *object.Closure
	base    int // first register index owned by this frame
	ip      int
}

// Thread owns a value stack (register file) and a reusable list of Call
// frames (spec §4.4; reuse across Context.Call invocations is spec §4.5's
// thread-freelist contract).
type Thread struct {
	registers []value.Value
	frames    []*CallFrame // pre-allocated, reused; frames[:frameTop] are live
	frameTop  int

	inlineCaches map[int]*inlineCache

	Stdout io.Writer
}

const initialRegisterCount = 64

// NewThread allocates a thread with an empty frame freelist (spec §4.4
// step 1: "create one" when the context's freelist is empty).
func NewThread() *Thread {
	return &Thread{
		registers: make([]value.Value, initialRegisterCount),
		Stdout:    os.Stdout,
	}
}

func (t *Thread) acquireFrame() *CallFrame {
	if t.frameTop < len(t.frames) {
		f := t.frames[t.frameTop]
		t.frameTop++
		return f
	}
	f := &CallFrame{}
	t.frames = append(t.frames, f)
	t.frameTop++
	return f
}

func (t *Thread) releaseFrame() {
	t.frameTop--
}

// growRegisters doubles the register file until it can hold minSize
// registers (spec §4.4's register-growth contract). Run calls it when
// fn.Registers exceeds the current register file, which starts at
// initialRegisterCount (64) registers.
func (t *Thread) growRegisters(minSize int) {
	newSize := len(t.registers) * 2
	for newSize < minSize {
		newSize *= 2
	}
	grown := make([]value.Value, newSize)
	copy(grown, t.registers)
	t.registers = grown
}

// Run executes fn's body synchronously to RETURN (spec §4.4, §6.3 call).
// root is the context's root shape, used by NEWSTRUCT to allocate new
// structs with no fields yet. heap roots every struct NEWSTRUCT allocates
// so it stays reachable from Go's own collector for as long as the owning
// context lives (spec §4.5/§9: "every allocation is discoverable from the
// context"), rather than surviving only as a bit pattern inside a Value.
func (t *Thread) Run(fn *object.Function, root *shape.Shape, heap *gc.Heap) error {
	frame := t.acquireFrame()
	defer t.releaseFrame()

	frame.fn = fn
	frame.closure = &object.Closure{Fn: fn}
	frame.base = 0
	frame.ip = 0

	needed := frame.base + int(fn.Registers)
	if needed > len(t.registers) {
		t.growRegisters(needed)
	}

	t.inlineCaches = make(map[int]*inlineCache)

	return t.dispatch(frame, root, heap)
}

func (t *Thread) reg(frame *CallFrame, i uint8) value.Value {
	return t.registers[frame.base+int(i)]
}

func (t *Thread) setReg(frame *CallFrame, i uint8, v value.Value) {
	t.registers[frame.base+int(i)] = v
}

// rk resolves an RK operand: the constant pool if k is set, a register
// otherwise (spec §3.7 "RK operand").
func (t *Thread) rk(frame *CallFrame, x uint8, k bool) value.Value {
	if k {
		return frame.fn.Constants[x]
	}
	return t.reg(frame, x)
}

func boolToA(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// dispatch runs frame's program to completion. Arithmetic and comparison
// opcodes on non-number operands, and GETSTRUCT/SETSTRUCT on a non-struct
// register, fail with a *bterrors.Error of kind TypeError (spec §7:
// every runtime failure surfaces as a typed error, never a panic).
func (t *Thread) dispatch(frame *CallFrame, root *shape.Shape, heap *gc.Heap) error {
	code := frame.fn.Program
	for {
		instr := code[frame.ip]
		op := instr.OpCode()
		frame.ip++

		switch op {
		case bytecode.LOAD:
			t.setReg(frame, instr.A(), frame.fn.Constants[instr.Bx()])

		case bytecode.LOADBOOL:
			t.setReg(frame, instr.A(), value.Bool(instr.B() != 0))
			if instr.C() != 0 {
				frame.ip += int(instr.C())
			}

		case bytecode.MOVE:
			t.setReg(frame, instr.A(), t.reg(frame, uint8(instr.Bx())))

		case bytecode.NEWSTRUCT:
			s := object.NewStruct(root)
			heap.Root(&s.Object)
			t.setReg(frame, instr.A(), s.Box())

		case bytecode.GETSTRUCT:
			structVal := t.reg(frame, instr.B())
			if !value.IsPtr(structVal) || value.Kind(structVal) != value.ObjStruct {
				return bterrors.NewType(0, "GETSTRUCT on a non-struct value")
			}
			s := object.AsStruct(structVal)
			key := frame.fn.Keys[instr.C()]
			t.setReg(frame, instr.A(), t.getWithCache(frame.ip-1, s, key))

		case bytecode.SETSTRUCT:
			structVal := t.reg(frame, instr.A())
			if !value.IsPtr(structVal) || value.Kind(structVal) != value.ObjStruct {
				return bterrors.NewType(0, "SETSTRUCT on a non-struct value")
			}
			s := object.AsStruct(structVal)
			key := frame.fn.Keys[instr.B()]
			v := t.rk(frame, instr.C(), instr.KC())
			t.setWithCache(frame.ip-1, s, key, v)

		case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV:
			a := t.rk(frame, instr.B(), instr.KB())
			b := t.rk(frame, instr.C(), instr.KC())
			if !value.IsNumber(a) || !value.IsNumber(b) {
				return bterrors.NewType(0, "arithmetic on a non-number operand")
			}
			x, y := value.AsNumber(a), value.AsNumber(b)
			var r float64
			switch op {
			case bytecode.ADD:
				r = x + y
			case bytecode.SUB:
				r = x - y
			case bytecode.MUL:
				r = x * y
			case bytecode.DIV:
				r = x / y
			}
			t.setReg(frame, instr.A(), value.Number(r))

		case bytecode.NEG:
			c := t.rk(frame, instr.C(), instr.KC())
			if !value.IsNumber(c) {
				return bterrors.NewType(0, "unary - on a non-number operand")
			}
			t.setReg(frame, instr.A(), value.Number(-value.AsNumber(c)))

		case bytecode.NOT:
			c := t.rk(frame, instr.C(), instr.KC())
			t.setReg(frame, instr.A(), value.Bool(!value.Truthy(c)))

		case bytecode.EQUAL:
			a := t.rk(frame, instr.B(), instr.KB())
			b := t.rk(frame, instr.C(), instr.KC())
			if boolToA(value.Equal(a, b)) == instr.A() {
				frame.ip++
			}

		case bytecode.LESS, bytecode.LEQUAL:
			a := t.rk(frame, instr.B(), instr.KB())
			b := t.rk(frame, instr.C(), instr.KC())
			if !value.IsNumber(a) || !value.IsNumber(b) {
				return bterrors.NewType(0, "comparison on a non-number operand")
			}
			x, y := value.AsNumber(a), value.AsNumber(b)
			var outcome bool
			if op == bytecode.LESS {
				outcome = x < y
			} else {
				outcome = x <= y
			}
			if boolToA(outcome) == instr.A() {
				frame.ip++
			}

		case bytecode.TEST:
			c := t.rk(frame, instr.C(), instr.KC())
			if boolToA(value.Truthy(c)) == instr.A() {
				frame.ip++
			}

		case bytecode.JUMP:
			frame.ip = int(instr.Bx())

		case bytecode.PRINT:
			v := t.rk(frame, instr.C(), instr.KC())
			fmt.Fprintln(t.Stdout, value.ToString(v))

		case bytecode.RETURN:
			return nil

		default:
			return bterrors.NewRuntime(fmt.Sprintf("unknown opcode %d", op))
		}
	}
}
