// Package compiler implements BT's single-pass code generator (spec
// §4.1): it consumes a token stream directly and emits register bytecode
// with no intermediate AST, backpatching jumps for short-circuit logic
// and control flow as it goes.
//
// Grounded on the teacher's internal/compregister.Compiler/
// RegisterAllocator (internal/compregister/compiler.go): the bump/free-list
// register allocator with a tracked high-water mark carries over almost
// unchanged. What does not carry over is the teacher's control flow — it
// walks an AST built beforehand by internal/parser; BT's generator walks
// tokens directly, which is the one place this repo departs from the
// teacher's shape rather than just its idiom, because spec §4.1.1 requires
// no AST ever be materialized.
package compiler

import (
	"fmt"
	"os"

	"bullettrain/internal/bterrors"
	"bullettrain/internal/bytecode"
	"bullettrain/internal/lexer"
	"bullettrain/internal/object"
	"bullettrain/internal/token"
	"bullettrain/internal/value"
)

// KeyInterner resolves identifier text to the context's interned *value.Key
// (spec §3.2). internal/btcontext.Context satisfies this.
type KeyInterner interface {
	Intern(text string) *value.Key
}

// local is a compile-time binding (spec §3.6): a name bound to a register,
// released when its scope ends.
type local struct {
	name  string
	reg   uint8
	scope int
}

// registerAllocator is the compile-time register cursor (spec §4.1.3),
// grounded on compregister.RegisterAllocator: a bump counter for the
// high-water mark plus a free list for reclaimed temporaries.
type registerAllocator struct {
	next    int
	max     int
	freeRegs []int
}

func (ra *registerAllocator) alloc() uint8 {
	if n := len(ra.freeRegs); n > 0 {
		r := ra.freeRegs[n-1]
		ra.freeRegs = ra.freeRegs[:n-1]
		return uint8(r)
	}
	r := ra.next
	ra.next++
	if ra.next > ra.max {
		ra.max = ra.next
	}
	return uint8(r)
}

func (ra *registerAllocator) free(r uint8) {
	ra.freeRegs = append(ra.freeRegs, int(r))
}

// compiler holds all single-pass compilation state for one Function.
type compiler struct {
	keys   KeyInterner
	sc     *lexer.Scanner
	cur    token.Token
	ahead  token.Token
	hasAhead bool

	code      []bytecode.Instruction
	constants []value.Value
	keyPool   []*value.Key
	keyIndex  map[*value.Key]int

	alloc      registerAllocator
	locals     []local
	scopeDepth int

	// discard suppresses emit()/resolve()/routeTo() side effects while the
	// parser still walks an operand's tokens — used to compile-time
	// short-circuit an `and`/`or` whose left operand is a literal bool
	// (spec §8.4 scenario 2: the right operand's side effects must never
	// run, not just be skipped at runtime).
	discard bool
}

// Compile lowers source into a top-level Function (spec §6.3 compile).
// keys interns field/identifier names into the context's key table.
func Compile(keys KeyInterner, source string) (*object.Function, error) {
	c := &compiler{
		keys:     keys,
		sc:       lexer.New(source),
		keyIndex: make(map[*value.Key]int),
	}
	c.advance()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if pe, ok := r.(*bterrors.Error); ok {
					err = pe
					return
				}
				panic(r)
			}
		}()
		for c.cur.Kind != token.EOF {
			c.statement()
		}
	}()
	if err != nil {
		return nil, err
	}

	c.emit(bytecode.CreateABC(bytecode.RETURN, 0, 0, 0, false, false))

	if c.alloc.max > bytecode.MaxRegisters {
		return nil, bterrors.NewType(c.cur.Line, fmt.Sprintf("function uses %d registers, exceeds %d", c.alloc.max, bytecode.MaxRegisters))
	}

	return &object.Function{
		Program:   c.code,
		Constants: c.constants,
		Keys:      c.keyPool,
		Registers: uint8(c.alloc.max),
		Kind:      object.KindFunc,
	}, nil
}

// CompileFile reads path and compiles its contents (spec §6.3 compile_file).
func CompileFile(keys KeyInterner, path string) (*object.Function, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(keys, string(source))
}

// advance pulls the next token into cur, consuming the lookahead buffer
// set by peek() if one is pending.
func (c *compiler) advance() {
	if c.hasAhead {
		c.cur = c.ahead
		c.hasAhead = false
		return
	}
	c.cur = c.sc.Next()
}

func (c *compiler) peek() token.Token {
	if !c.hasAhead {
		c.ahead = c.sc.Next()
		c.hasAhead = true
	}
	return c.ahead
}

func (c *compiler) check(k token.Kind) bool { return c.cur.Kind == k }

func (c *compiler) match(k token.Kind) bool {
	if c.check(k) {
		c.advance()
		return true
	}
	return false
}

// expect consumes cur if it matches k, else raises a syntax error — this
// is BT's resolution of spec §9's open question about expect() silently
// swallowing errors: it never does (spec §7).
func (c *compiler) expect(k token.Kind) token.Token {
	if !c.check(k) {
		panic(bterrors.NewSyntax(c.cur.Line, k.String(), c.cur.Kind.String()))
	}
	t := c.cur
	c.advance()
	return t
}

func (c *compiler) emit(i bytecode.Instruction) int {
	if c.discard {
		return -1
	}
	c.code = append(c.code, i)
	return len(c.code) - 1
}

// addConstant interns v into the constant pool, reusing an existing slot
// for an equal number (small pools, linear scan is fine).
func (c *compiler) addConstant(v value.Value) uint16 {
	for i, existing := range c.constants {
		if value.IsNumber(existing) && value.IsNumber(v) && value.AsNumber(existing) == value.AsNumber(v) {
			return uint16(i)
		}
	}
	c.constants = append(c.constants, v)
	return uint16(len(c.constants) - 1)
}

// addKey interns name and returns its index in this function's key pool
// (spec §3.3's keys array), reusing a slot if already present.
func (c *compiler) addKey(name string) uint8 {
	k := c.keys.Intern(name)
	if i, ok := c.keyIndex[k]; ok {
		return uint8(i)
	}
	idx := len(c.keyPool)
	c.keyPool = append(c.keyPool, k)
	c.keyIndex[k] = idx
	return uint8(idx)
}

func (c *compiler) findLocal(name string) (uint8, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].reg, true
		}
	}
	return 0, false
}

func (c *compiler) declareLocal(name string) uint8 {
	r := c.alloc.alloc()
	c.locals = append(c.locals, local{name: name, reg: r, scope: c.scopeDepth})
	return r
}

func (c *compiler) beginScope() { c.scopeDepth++ }

// endScope releases every local declared in the ending scope back to the
// register allocator's free list (spec §3.6: "released when their scope
// ends").
func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].scope > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		c.locals = c.locals[:len(c.locals)-1]
		c.alloc.free(last.reg)
	}
}
