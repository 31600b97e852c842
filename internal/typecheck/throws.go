package typecheck

import (
	"tilc/internal/ast"
	"tilc/internal/scope"
	"tilc/internal/source"
)

// throwState is the function whose throws set is being collected, or the
// root context of the file.
func (c *checker) throwState() *fnState {
	if c.fn != nil {
		return c.fn
	}
	return c.top
}

func (c *checker) addThrow(typ string, pos source.Pos) {
	st := c.throwState()
	if n := len(st.blocks); n > 0 {
		blk := st.blocks[n-1]
		blk.pending = append(blk.pending, pendingThrow{typ: typ, pos: pos, mark: blk.frame.Mark()})
		return
	}
	st.pending = append(st.pending, pendingThrow{typ: typ, pos: pos})
}

func (c *checker) checkThrow(s *ast.Expr) {
	v := s.Params[0]
	t := c.checkExpr(v, valueUsed)
	if t.IsInfer() {
		return
	}
	if t.Kind != ast.TCustom || t.IsVoid() {
		c.errorf(s.Pos, "Cannot throw a value of type '%s'", t)
		return
	}
	c.addThrow(t.Name, s.Pos)
}

// checkCatch consumes the pending throws of the caught type raised earlier
// in the same statement sequence, then checks the body with the error
// bound. The body runs where the error was raised, so locals declared
// after that point are out of its scope.
func (c *checker) checkCatch(s *ast.Expr) {
	v, typ, body := s.Params[0], s.Params[1], s.Params[2]
	t := ast.Custom(typ.CombinedName())
	if !c.knownType(t) {
		c.errorf(typ.Pos, "Undefined type '%s'", t)
	}
	st := c.throwState()
	list := &st.pending
	var blk *throwBlock
	if n := len(st.blocks); n > 0 {
		blk = st.blocks[n-1]
		list = &blk.pending
	}
	kept := (*list)[:0]
	caught := false
	mark := -1
	for _, p := range *list {
		if p.typ == t.Name {
			if !caught || p.mark < mark {
				mark = p.mark
			}
			caught = true
			continue
		}
		kept = append(kept, p)
	}
	*list = kept
	if !caught {
		c.errorf(s.Pos, "Catch for '%s' is not preceded by a call or throw that can throw it", t.Name)
	}
	restore := func() {}
	if blk != nil && caught {
		restore = blk.frame.Hide(mark)
	}
	c.st.Branches(false, func() {
		c.pushFrame(scope.Block)
		if v.Value != "_" {
			// Catch bindings are exempt from unused checks.
			c.st.Insert(v.Value, &scope.Symbol{Type: t, Pos: v.Pos, Used: true})
		}
		c.checkStmts(body.Params)
		c.popFrame()
	})
	restore()
}

// checkFunctionThrows compares the throws left uncaught at the end of the
// current function with its declared throws.
func (c *checker) checkFunctionThrows(pos source.Pos) {
	fn := c.fn
	for _, p := range fn.pending {
		fn.escaped[p.typ] = true
	}
	reported := map[string]bool{}
	for _, p := range fn.pending {
		if fn.def.ThrowIndex(p.typ) >= 0 || reported[p.typ] {
			continue
		}
		reported[p.typ] = true
		c.errorf(p.pos, "Function '%s' throws '%s' but it is not declared in its throws", fn.name, p.typ)
	}
	for _, t := range fn.def.Throws {
		if !fn.escaped[t.Name] {
			c.errorf(pos, "Function '%s' declares that it throws '%s' but never throws it", fn.name, t.Name)
		}
	}
	fn.pending = nil
}

// checkTopLevelThrows reports throws that escape the root context.
func (c *checker) checkTopLevelThrows() {
	seen := map[string]bool{}
	for _, p := range c.top.pending {
		if seen[p.typ] {
			continue
		}
		seen[p.typ] = true
		c.errorf(p.pos, "Uncaught throw of '%s' in the root context of the file", p.typ)
	}
	c.top.pending = nil
}
