package compiler

import (
	"bullettrain/internal/bterrors"
	"bullettrain/internal/bytecode"
	"bullettrain/internal/token"
	"bullettrain/internal/value"
)

// resolve implements spec §4.1.2's resolve(list, target): every open jump
// in list is rewritten to target target. A no-op while discard-compiling a
// short-circuited operand (see compiler.discard).
func (c *compiler) resolve(list []int, target int) {
	if c.discard {
		return
	}
	for _, idx := range list {
		c.code[idx] = c.code[idx].WithBx(uint16(target))
	}
}

// routeTo implements spec §4.1.7: materialize e into register dst.
func (c *compiler) routeTo(e expInfo, dst uint8) {
	if c.discard {
		return
	}
	switch e.kind {
	case expConst:
		c.emit(bytecode.CreateABx(bytecode.LOAD, dst, c.addConstant(e.value)))
	case expReg:
		if e.reg != dst {
			c.emit(bytecode.CreateABx(bytecode.MOVE, dst, uint16(e.reg)))
			if e.temp {
				c.alloc.free(e.reg)
			}
		}
	case expRoute:
		c.code[e.routeAt] = c.code[e.routeAt].WithA(dst)
	case expTrue:
		c.emit(bytecode.CreateABC(bytecode.LOADBOOL, dst, 1, 0, false, false))
	case expFalse:
		c.emit(bytecode.CreateABC(bytecode.LOADBOOL, dst, 0, 0, false, false))
	case expLogic:
		// Boolean-materialization epilogue (spec §4.1.7). The true-writer
		// is placed first: a comparison/TEST chain with an empty true list
		// (the common case — a bare comparison never emits an explicit
		// "jump when true") falls straight through after its last
		// comparison lands here, so the first writer after that fallthrough
		// must be the one that writes true.
		pt := c.emit(bytecode.CreateABC(bytecode.LOADBOOL, dst, 1, 1, false, false))
		pf := c.emit(bytecode.CreateABC(bytecode.LOADBOOL, dst, 0, 0, false, false))
		c.resolve(e.falsePatches, pf)
		c.resolve(e.truePatches, pt)
	}
}

// toRK materializes e into an RK operand: Const becomes a constant-pool
// reference, Reg is used directly, anything else routes into a fresh
// temporary (spec §4.1.4 "to_rk"). temp reports whether operand is a
// compiler-allocated temporary the caller must free (via freeOperand) once
// the instruction consuming it has been emitted (spec §4.1.3's stack
// discipline) — a named local's register, or a constant-pool index, is
// never freed here.
func (c *compiler) toRK(e expInfo) (operand uint8, isConst bool, temp bool) {
	switch e.kind {
	case expConst:
		return uint8(c.addConstant(e.value)), true, false
	case expReg:
		return e.reg, false, e.temp
	default:
		r := c.alloc.alloc()
		c.routeTo(e, r)
		return r, false, true
	}
}

// freeOperand releases operand back to the register allocator if it is a
// compiler-allocated temporary (spec §4.1.3: "pop on consumption") — call
// once the instruction reading operand has been emitted.
func (c *compiler) freeOperand(operand uint8, isConst, temp bool) {
	if !isConst && temp {
		c.alloc.free(operand)
	}
}

// ensureLogic wraps a non-Logic descriptor with a TEST so it participates
// in patch-chain combination (spec §4.1.6).
func (c *compiler) ensureLogic(e expInfo) expInfo {
	if e.kind == expLogic {
		return e
	}
	r, isK, temp := c.toRK(e)
	c.emit(bytecode.CreateABC(bytecode.TEST, 1, 0, r, false, isK))
	c.freeOperand(r, isK, temp)
	jmp := c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0))
	return expInfo{kind: expLogic, falsePatches: []int{jmp}}
}

func mergePatches(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// expression is the entry point of precedence climbing (spec §4.1.4's
// table, lowest precedence first).
func (c *compiler) expression() expInfo { return c.orExpr() }

func (c *compiler) orExpr() expInfo {
	left := c.andExpr()
	for c.match(token.OR) {
		switch left.kind {
		case expTrue:
			// `true or R`: R's side effects must never run (spec §8.4
			// scenario 2), not merely be skipped at runtime.
			c.discard = true
			c.andExpr()
			c.discard = false
			continue
		case expFalse:
			left = c.andExpr()
			continue
		}
		l := c.ensureLogic(left)
		// l falls through when it holds; this jump carries that outcome onto
		// the true chain instead of into the right operand.
		tj := c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0))
		c.resolve(l.falsePatches, len(c.code))
		r := c.ensureLogic(c.andExpr())
		left = expInfo{kind: expLogic, truePatches: mergePatches(appendPatch(l.truePatches, tj), r.truePatches), falsePatches: r.falsePatches}
	}
	return left
}

func (c *compiler) andExpr() expInfo {
	left := c.comparisonExpr()
	for c.match(token.AND) {
		switch left.kind {
		case expFalse:
			c.discard = true
			c.comparisonExpr()
			c.discard = false
			continue
		case expTrue:
			left = c.comparisonExpr()
			continue
		}
		l := c.ensureLogic(left)
		c.resolve(l.truePatches, len(c.code))
		r := c.ensureLogic(c.comparisonExpr())
		left = expInfo{kind: expLogic, truePatches: r.truePatches, falsePatches: mergePatches(l.falsePatches, r.falsePatches)}
	}
	return left
}

// comparisonExpr lowers exactly one relational operator (spec doesn't
// define chained comparisons) into a skip-if-not instruction plus a
// reserved jump, per the table in spec §4.1.4.
func (c *compiler) comparisonExpr() expInfo {
	left := c.additiveExpr()
	switch c.cur.Kind {
	case token.EQ, token.NE:
		isEq := c.cur.Kind == token.EQ
		c.advance()
		right := c.additiveExpr()
		b, kB, tB := c.toRK(left)
		cc, kC, tC := c.toRK(right)
		sense := uint8(1)
		if !isEq {
			sense = 0
		}
		c.emit(bytecode.CreateABC(bytecode.EQUAL, sense, b, cc, kB, kC))
		c.freeOperand(cc, kC, tC)
		c.freeOperand(b, kB, tB)
		jmp := c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0))
		return expInfo{kind: expLogic, falsePatches: []int{jmp}}

	case token.LESS, token.LE, token.GREATER, token.GE:
		op := c.cur.Kind
		c.advance()
		right := c.additiveExpr()
		b, kB, tB := c.toRK(left)
		cc, kC, tC := c.toRK(right)
		var opcode bytecode.OpCode
		var sense uint8
		switch op {
		case token.LESS:
			opcode, sense = bytecode.LESS, 1
		case token.LE:
			opcode, sense = bytecode.LEQUAL, 1
		case token.GREATER: // a > b  ==  !(a <= b)
			opcode, sense = bytecode.LEQUAL, 0
		case token.GE: // a >= b  ==  !(a < b)
			opcode, sense = bytecode.LESS, 0
		}
		c.emit(bytecode.CreateABC(opcode, sense, b, cc, kB, kC))
		c.freeOperand(cc, kC, tC)
		c.freeOperand(b, kB, tB)
		jmp := c.emit(bytecode.CreateABx(bytecode.JUMP, 0, 0))
		return expInfo{kind: expLogic, falsePatches: []int{jmp}}
	}
	return left
}

func (c *compiler) additiveExpr() expInfo {
	left := c.termExpr()
	for c.cur.Kind == token.PLUS || c.cur.Kind == token.MINUS {
		op := c.cur.Kind
		c.advance()
		right := c.termExpr()
		b, kB, tB := c.toRK(left)
		cc, kC, tC := c.toRK(right)
		opcode := bytecode.ADD
		if op == token.MINUS {
			opcode = bytecode.SUB
		}
		idx := c.emit(bytecode.CreateABC(opcode, 0, b, cc, kB, kC))
		c.freeOperand(cc, kC, tC)
		c.freeOperand(b, kB, tB)
		left = routeExp(idx)
	}
	return left
}

func (c *compiler) termExpr() expInfo {
	left := c.unaryExpr()
	for c.cur.Kind == token.STAR || c.cur.Kind == token.SLASH {
		op := c.cur.Kind
		c.advance()
		right := c.unaryExpr()
		b, kB, tB := c.toRK(left)
		cc, kC, tC := c.toRK(right)
		opcode := bytecode.MUL
		if op == token.SLASH {
			opcode = bytecode.DIV
		}
		idx := c.emit(bytecode.CreateABC(opcode, 0, b, cc, kB, kC))
		c.freeOperand(cc, kC, tC)
		c.freeOperand(b, kB, tB)
		left = routeExp(idx)
	}
	return left
}

// unaryExpr binds `-`/`!` tighter than any binary operator (spec §4.1.4).
func (c *compiler) unaryExpr() expInfo {
	if c.match(token.MINUS) {
		r, k, t := c.toRK(c.unaryExpr())
		idx := c.emit(bytecode.CreateABC(bytecode.NEG, 0, 0, r, false, k))
		c.freeOperand(r, k, t)
		return routeExp(idx)
	}
	if c.match(token.BANG) {
		r, k, t := c.toRK(c.unaryExpr())
		idx := c.emit(bytecode.CreateABC(bytecode.NOT, 0, 0, r, false, k))
		c.freeOperand(r, k, t)
		return routeExp(idx)
	}
	return c.primary()
}

func (c *compiler) primary() expInfo {
	switch c.cur.Kind {
	case token.NUMBER:
		n := c.cur.CurrentNumber()
		c.advance()
		return constExp(value.Number(n))

	case token.NIL:
		c.advance()
		return constExp(value.Nil())

	case token.TRUE:
		c.advance()
		return boolExp(true)

	case token.FALSE:
		c.advance()
		return boolExp(false)

	case token.LPAREN:
		c.advance()
		e := c.expression()
		c.expect(token.RPAREN)
		return e

	case token.LBRACE:
		c.advance()
		c.expect(token.RBRACE)
		idx := c.emit(bytecode.CreateABC(bytecode.NEWSTRUCT, 0, 0, 0, false, false))
		return routeExp(idx)

	case token.ID:
		return c.identifierExpr()
	}
	panic(bterrors.NewSyntax(c.cur.Line, "an expression", c.cur.Kind.String()))
}

// identifierExpr parses an identifier, an optional `.field` chain off it,
// and — if what follows is `=` — an assignment, whose value is the
// expression's result (spec §8.4 scenario 2's worked example,
// `if true or (x.y = 1) { ... }`, embeds exactly this production inside a
// parenthesized expression). Outside of an assignment this is a plain
// field-chain read, identical to the read path primary() used to inline
// directly.
func (c *compiler) identifierExpr() expInfo {
	name := c.cur.CurrentText()
	line := c.cur.Line
	c.advance()
	reg, ok := c.findLocal(name)
	if !ok {
		panic(bterrors.NewSyntax(line, "a declared identifier", name))
	}

	if !c.check(token.DOT) {
		if c.match(token.ASSIGN) {
			rhs := c.expression()
			c.routeTo(rhs, reg)
		}
		return regExp(reg)
	}

	// base walks the chain's intermediate struct registers; baseTemp tracks
	// whether the current base is a compiler-allocated scratch register (and
	// so must be freed once used as an operand) rather than the named
	// local's own register (spec §4.1.3's stack discipline).
	base := reg
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

	if c.match(token.ASSIGN) {
		rhs := c.expression()
		dst := c.alloc.alloc()
		c.routeTo(rhs, dst)
		c.emit(bytecode.CreateABC(bytecode.SETSTRUCT, base, lastKey, dst, false, false))
		if baseTemp {
			c.alloc.free(base)
		}
		return tempExp(dst)
	}

	dst := c.alloc.alloc()
	c.emit(bytecode.CreateABC(bytecode.GETSTRUCT, dst, base, lastKey, false, false))
	if baseTemp {
		c.alloc.free(base)
	}
	return tempExp(dst)
}
