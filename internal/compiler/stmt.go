package compiler

import (
	"bullettrain/internal/bterrors"
	"bullettrain/internal/bytecode"
	"bullettrain/internal/token"
)

// statement lowers one statement (spec §4.1.8).
func (c *compiler) statement() {
	switch c.cur.Kind {
	case token.IF:
		c.ifStatement()
	case token.WHILE:
		c.whileStatement()
	case token.PRINT:
		c.printStatement()
	case token.ID:
		c.assignOrFieldStatement()
	default:
		panic(bterrors.NewSyntax(c.cur.Line, "a statement", c.cur.Kind.String()))
	}
	c.match(token.SEMI)
}

func (c *compiler) block() {
	c.expect(token.LBRACE)
	c.beginScope()
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.statement()
	}
	c.expect(token.RBRACE)
	c.endScope()
}

// assignOrFieldStatement covers both forms of spec §4.1.8's first two
// bullets: `name = expr` (declaring a new local on first use) and
// `name.k1.k2…kn = expr` (walking interior GETSTRUCTs, then a single
// SETSTRUCT on the last key).
func (c *compiler) assignOrFieldStatement() {
	name := c.cur.CurrentText()
	line := c.cur.Line
	c.advance()

	if c.check(token.DOT) {
		base, ok := c.findLocal(name)
		if !ok {
			panic(bterrors.NewSyntax(line, "a declared identifier", name))
		}
		baseTemp := false
		var lastKey uint8
		for {
			c.expect(token.DOT)
			field := c.expect(token.ID)
			keyIdx := c.addKey(field.CurrentText())
			if c.check(token.DOT) {
				dst := c.alloc.alloc()
				c.emit(bytecode.CreateABC(bytecode.GETSTRUCT, dst, base, keyIdx, false, false))
				if baseTemp {
					c.alloc.free(base)
				}
				base, baseTemp = dst, true
				continue
			}
			lastKey = keyIdx
			break
		}
		c.expect(token.ASSIGN)
		e := c.expression()
		v, isK, vTemp := c.toRK(e)
		c.emit(bytecode.CreateABC(bytecode.SETSTRUCT, base, lastKey, v, false, isK))
		c.freeOperand(v, isK, vTemp)
		if baseTemp {
			c.alloc.free(base)
		}
		return
	}

	c.expect(token.ASSIGN)
	e := c.expression()
	reg, ok := c.findLocal(name)
	if !ok {
		reg = c.declareLocal(name)
	}
	c.routeTo(e, reg)
}

// ifStatement lowers if/elif*/else? (spec §4.1.8): each branch's true-chain
// resolves to "here" (the branch body), each branch's false-chain resolves
// to the next elif/else/end, and every branch body ends with a reserved
// jump to the statement's end, patched once the whole chain is compiled.
func (c *compiler) ifStatement() {
	c.expect(token.IF)
	var endJumps []int

	cond := c.ensureLogic(c.expression())
	c.resolve(cond.truePatches, len(c.code))
	c.block()
	endJumps = append(endJumps, c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0)))
	c.resolve(cond.falsePatches, len(c.code))

	for c.check(token.ELIF) {
		c.advance()
		elifCond := c.ensureLogic(c.expression())
		c.resolve(elifCond.truePatches, len(c.code))
		c.block()
		endJumps = append(endJumps, c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0)))
		c.resolve(elifCond.falsePatches, len(c.code))
	}

	if c.match(token.ELSE) {
		c.block()
	}
	c.resolve(endJumps, len(c.code))
}

// whileStatement lowers while (spec §4.1.8): the condition is re-evaluated
// at loop start on every iteration; the body jumps back unconditionally.
func (c *compiler) whileStatement() {
	c.expect(token.WHILE)
	start := len(c.code)
	cond := c.ensureLogic(c.expression())
	c.resolve(cond.truePatches, len(c.code))
	c.block()
	c.emit(bytecode.CreateABx(bytecode.JUMP, 0, uint16(start)))
	c.resolve(cond.falsePatches, len(c.code))
}

func (c *compiler) printStatement() {
	c.expect(token.PRINT)
	e := c.expression()
	v, isK, vTemp := c.toRK(e)
	c.emit(bytecode.CreateABC(bytecode.PRINT, 0, 0, v, false, isK))
	c.freeOperand(v, isK, vTemp)
}
