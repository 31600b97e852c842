package typecheck

import (
	"strings"

	"tilc/internal/ast"
	"tilc/internal/scope"
	"tilc/internal/source"
)

// checkStmts checks a statement sequence in the current frame.
func (c *checker) checkStmts(stmts []*ast.Expr) {
	ts := c.throwState()
	blk := &throwBlock{frame: c.st.Top()}
	ts.blocks = append(ts.blocks, blk)
	defer func() {
		ts.blocks = ts.blocks[:len(ts.blocks)-1]
		for _, p := range blk.pending {
			c.addThrow(p.typ, p.pos)
		}
	}()

	var stop *ast.Expr
	reported := false
	for _, s := range stmts {
		if stop != nil && !reported && s.Kind != ast.NCatch {
			c.errorf(s.Pos, "Unreachable code after '%s'", strings.ToLower(stop.Kind.String()))
			reported = true
		}
		c.checkStmt(s)
		switch s.Kind {
		case ast.NReturn, ast.NThrow, ast.NBreak, ast.NContinue:
			if stop == nil {
				stop = s
			}
		}
	}
}

func (c *checker) checkBlock(b *ast.Expr) {
	c.pushFrame(scope.Block)
	c.checkStmts(b.Params)
	c.popFrame()
}

func (c *checker) checkStmt(s *ast.Expr) {
	switch s.Kind {
	case ast.NDeclaration:
		c.checkLocalDecl(s)
	case ast.NAssignment:
		c.checkAssign(s)
	case ast.NFCall:
		c.checkCall(s, valueDiscarded)
	case ast.NIf:
		c.checkIf(s)
	case ast.NWhile:
		cond := c.checkExpr(s.Params[0], valueUsed)
		if cond != ast.Bool && !cond.IsInfer() {
			c.errorf(s.Params[0].Pos, "'while' can only accept a bool condition first, found %s.", cond)
		}
		c.inLoop(func() {
			c.st.Branches(false, func() { c.checkBlock(s.Params[1]) })
		})
	case ast.NForIn:
		c.checkForIn(s)
	case ast.NSwitch:
		c.checkSwitch(s)
	case ast.NReturn:
		c.checkReturn(s)
	case ast.NThrow:
		c.checkThrow(s)
	case ast.NCatch:
		c.checkCatch(s)
	case ast.NBreak, ast.NContinue:
		if c.loopDepth == 0 {
			c.errorf(s.Pos, "'%s' outside of a loop", strings.ToLower(s.Kind.String()))
		}
	case ast.NDefer:
		inner := s.Params[0]
		switch inner.Kind {
		case ast.NReturn, ast.NThrow, ast.NBreak, ast.NContinue, ast.NDeclaration, ast.NCatch, ast.NDefer:
			c.errorf(s.Pos, "Cannot defer a '%s' statement", strings.ToLower(inner.Kind.String()))
			return
		}
		c.checkStmt(inner)
	case ast.NBody:
		c.checkBlock(s)
	default:
		c.checkExpr(s, valueDiscarded)
		c.errorf(s.Pos, "Expression of kind '%s' has no effect as a statement", s.Kind)
	}
}

func (c *checker) checkLocalDecl(s *ast.Expr) {
	if c.fn == nil && c.st.AtGlobal() {
		c.checkGlobalDecl(s)
		return
	}
	init := s.Init()
	if init != nil && (init.Kind == ast.NFuncDef || init.Kind == ast.NStructDef || init.Kind == ast.NEnumDef) {
		// Definitions can refer to themselves.
		sym, ok := c.declareLocal(s)
		if !ok {
			return
		}
		c.checkDeclInit(s, sym)
		return
	}
	got := c.checkDeclInit(s, nil)
	sym, ok := c.declareLocal(s)
	if ok && sym != nil && sym.Type.IsInfer() {
		sym.Type = got
	}
}

func (c *checker) checkAssign(s *ast.Expr) {
	parts := strings.Split(s.Value, ".")
	rhs := s.Init()
	sym, ok := c.st.Lookup(parts[0])
	if !ok {
		c.errorf(s.Pos, "Suggestion: try changing '%s =' for '%s :='\nExplanation: Cannot assign to undefined symbol '%s'.", s.Value, s.Value, s.Value)
		c.checkExpr(rhs, valueUsed)
		return
	}
	sym.Used = true
	if c.st.IsClosureCapture(parts[0]) {
		c.errorf(s.Pos, "Closures are not supported: '%s' is captured from an enclosing function", parts[0])
	}
	if !sym.IsMut {
		c.errorf(s.Pos, "Cannot assign to constant '%s', Suggestion: declare it as 'mut'.", parts[0])
	}
	lhs, err := TypeOf(c.st, ast.NewChain(s.Pos, parts))
	if err != nil {
		c.errorErr(s.Pos, err)
		c.checkExpr(rhs, valueUsed)
		return
	}
	if len(parts) > 1 {
		c.checkFieldPathMutable(s.Pos, sym.Type, parts)
	}
	got := c.checkExpr(rhs, valueUsed)
	if !c.assignable(lhs, got, rhs) {
		c.errorf(s.Pos, "Cannot assign a value of type '%s' to '%s' of type '%s'", got, s.Value, lhs)
	}
}

// checkFieldPathMutable reports assignments through constant members.
func (c *checker) checkFieldPathMutable(pos source.Pos, t ast.ValueType, parts []string) {
	for _, field := range parts[1:] {
		sd, ok := c.st.LookupStruct(t.Name)
		if !ok {
			return
		}
		m, ok := sd.Member(field)
		if !ok || !m.IsMut {
			c.errorf(pos, "Cannot assign to constant field '%s' of struct '%s'", field, t.Name)
			return
		}
		t = m.Type
	}
}

func (c *checker) checkIf(s *ast.Expr) {
	cond := c.checkExpr(s.Params[0], valueUsed)
	if cond != ast.Bool && !cond.IsInfer() {
		c.errorf(s.Params[0].Pos, "'if' can only accept a bool condition first, found %s.", cond)
	}
	branches := []func(){func() { c.checkBlock(s.Params[1]) }}
	if len(s.Params) > 2 {
		els := s.Params[2]
		branches = append(branches, func() {
			if els.Kind == ast.NIf {
				c.checkIf(els)
			} else {
				c.checkBlock(els)
			}
		})
	}
	c.st.Branches(len(s.Params) > 2, branches...)
}

func (c *checker) checkForIn(s *ast.Expr) {
	v, rng, body := s.Params[0], s.Params[1], s.Params[2]
	lo := c.checkExpr(rng.Params[0], valueUsed)
	hi := c.checkExpr(rng.Params[1], valueUsed)
	t := s.VarType
	if t.IsInfer() {
		t = lo
	}
	if !t.IsInfer() && !ast.IsIntegral(t.Name) {
		c.errorf(rng.Pos, "'for' ranges only support integer types, found '%s'", t)
	} else if !c.assignable(t, lo, rng.Params[0]) || !c.assignable(t, hi, rng.Params[1]) {
		c.errorf(rng.Pos, "'for' range bounds must be of type '%s', found '%s' and '%s'", t, lo, hi)
	}
	c.inLoop(func() {
		c.pushFrame(scope.Block)
		if v.Value != "_" {
			c.st.Insert(v.Value, &scope.Symbol{Type: t, IsMut: true, Pos: v.Pos})
		}
		c.st.Branches(false, func() { c.checkBlock(body) })
		c.popFrame()
	})
}

// inLoop runs f as the body of a loop opened at the current depth.
func (c *checker) inLoop(f func()) {
	savedFrame := c.loopFrame
	c.loopDepth++
	c.loopFrame = c.st.Depth()
	f()
	c.loopDepth--
	c.loopFrame = savedFrame
}

func (c *checker) checkReturn(s *ast.Expr) {
	if c.fn == nil {
		c.errorf(s.Pos, "'return' outside of a function")
		for _, v := range s.Params {
			c.checkExpr(v, valueUsed)
		}
		return
	}
	want := c.fn.def.Returns
	if len(s.Params) != len(want) {
		c.errorf(s.Pos, "Returning %d values when %d were expected.", len(s.Params), len(want))
	}
	for i, v := range s.Params {
		got := c.checkExpr(v, valueUsed)
		if i < len(want) && !c.assignable(want[i], got, v) {
			c.errorf(v.Pos, "Return value %d of '%s' has type '%s', expected '%s'", i+1, c.fn.name, got, want[i])
		}
	}
}

// returnsOnAllPaths reports whether a statement sequence always leaves
// the function. Trailing catch and defer statements do not count.
func (c *checker) returnsOnAllPaths(stmts []*ast.Expr) bool {
	for i := len(stmts) - 1; i >= 0; i-- {
		s := stmts[i]
		if s.Kind == ast.NCatch || s.Kind == ast.NDefer {
			continue
		}
		return c.alwaysExits(s)
	}
	return false
}

func (c *checker) alwaysExits(s *ast.Expr) bool {
	switch s.Kind {
	case ast.NReturn, ast.NThrow:
		return true
	case ast.NBody:
		return c.returnsOnAllPaths(s.Params)
	case ast.NIf:
		if len(s.Params) < 3 || !c.returnsOnAllPaths(s.Params[1].Params) {
			return false
		}
		if s.Params[2].Kind == ast.NIf {
			return c.alwaysExits(s.Params[2])
		}
		return c.returnsOnAllPaths(s.Params[2].Params)
	case ast.NSwitch:
		if !c.exhaustive[s] {
			return false
		}
		for i := 2; i < len(s.Params); i += 2 {
			if !c.returnsOnAllPaths(s.Params[i].Params) {
				return false
			}
		}
		return true
	case ast.NWhile:
		cond := s.Params[0]
		return cond.Kind == ast.NLiteral && cond.Lit == ast.LitBool && cond.Value == "true" && !hasBreak(s.Params[1])
	case ast.NFCall:
		n := s.CalleeName()
		return n == "panic" || n == "exit"
	}
	return false
}

// hasBreak reports a break that leaves the loop owning body.
func hasBreak(body *ast.Expr) bool {
	found := false
	var walk func(e *ast.Expr)
	walk = func(e *ast.Expr) {
		for _, p := range e.Params {
			switch p.Kind {
			case ast.NBreak:
				found = true
			case ast.NWhile, ast.NForIn, ast.NFuncDef:
			default:
				walk(p)
			}
		}
	}
	walk(body)
	return found
}
