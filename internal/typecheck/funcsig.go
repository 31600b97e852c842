package typecheck

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/scope"
	"tilc/internal/source"
)

// checkFuncDef checks a function definition bound to name.
func (c *checker) checkFuncDef(name string, fd *ast.FuncDef, pos source.Pos) {
	if fd.Kind.IsProc() && !c.mode.AllowsProcs {
		c.errorLevel(pos, diag.Mode, "mode %s doesn't allow procs, but '%s' is a proc", c.mode.Name, name)
	}
	for _, a := range fd.Args {
		if a.Name == "" && !fd.IsSig() && !fd.Kind.IsExt() {
			c.errorf(pos, "Parameters of '%s' need a name", name)
		}
		if !c.knownType(a.Type) {
			c.errorf(pos, "Undefined type '%s' for parameter '%s' of '%s'", a.Type, a.Name, name)
		}
	}
	for _, t := range append(append([]ast.ValueType{}, fd.Returns...), fd.Throws...) {
		if !c.knownType(t) {
			c.errorf(pos, "Undefined type '%s' in the signature of '%s'", t, name)
		}
	}
	if fd.Kind.IsExt() || fd.IsSig() {
		return
	}
	if fd.Kind == ast.FTFunc && len(fd.Returns) == 0 && len(fd.Throws) == 0 {
		c.errorf(pos, "funcs must return or throw something, use a proc instead")
	}

	savedFn, savedLoop, savedFrame := c.fn, c.loopDepth, c.loopFrame
	c.fn = newFnState(name, fd)
	c.loopDepth, c.loopFrame = 0, 0
	c.pushFrame(scope.Function)
	for _, a := range fd.Args {
		if a.Default != nil {
			got := c.checkExpr(a.Default, valueUsed)
			if !c.assignable(a.Type, got, a.Default) {
				c.errorf(a.Default.Pos, "Default value of parameter '%s' of '%s' has type '%s', expected '%s'", a.Name, name, got, a.Type)
			}
		}
		if a.Name == "" || a.Name == "_" {
			continue
		}
		c.st.Insert(a.Name, &scope.Symbol{
			Type:    a.Type,
			IsMut:   a.IsMut || a.Type.Kind == ast.TMulti,
			IsCopy:  a.IsCopy,
			IsOwn:   a.IsOwn,
			IsParam: true,
			Pos:     pos,
		})
		c.st.DeclareLocal(a.Name, pos)
	}
	c.checkStmts(fd.Body)
	if len(fd.Returns) > 0 && !c.returnsOnAllPaths(fd.Body) {
		c.errorf(pos, "Function '%s' returns %s but not every path returns a value", name, typeNames(fd.Returns))
	}
	c.checkFunctionThrows(pos)
	c.popFrame()
	c.fn, c.loopDepth, c.loopFrame = savedFn, savedLoop, savedFrame
}

// applySignature completes an inline definition bound to a signature
// typed name: nameless parameters take their names from the written
// identifiers and their types from the signature.
func applySignature(fd, sig *ast.FuncDef) {
	if len(fd.Args) == len(sig.Args) {
		for i := range fd.Args {
			a := &fd.Args[i]
			if a.Name == "" && a.Type.Kind == ast.TCustom {
				a.Name = a.Type.Name
				a.Type = sig.Args[i].Type
				a.IsMut = sig.Args[i].IsMut
			}
		}
	}
	if len(fd.Returns) == 0 {
		fd.Returns = append([]ast.ValueType(nil), sig.Returns...)
	}
	if len(fd.Throws) == 0 {
		fd.Throws = append([]ast.ValueType(nil), sig.Throws...)
	}
}

// sigCompatible compares a definition with a signature and describes the
// first difference, or returns "".
func (c *checker) sigCompatible(sig, fd *ast.FuncDef) string {
	if sig.Kind.Base() != fd.Kind.Base() {
		return fmt.Sprintf("is a %s where a %s was expected", fd.Kind.Base(), sig.Kind.Base())
	}
	if len(sig.Args) != len(fd.Args) {
		return fmt.Sprintf("takes %d arguments where %d were expected", len(fd.Args), len(sig.Args))
	}
	for i := range sig.Args {
		if sig.Args[i].Type != fd.Args[i].Type || sig.Args[i].IsMut != fd.Args[i].IsMut {
			return fmt.Sprintf("argument %d has type '%s' where '%s' was expected", i+1, fd.Args[i].Type, sig.Args[i].Type)
		}
	}
	if typeNames(sig.Returns) != typeNames(fd.Returns) {
		return fmt.Sprintf("returns '%s' where '%s' was expected", typeNames(fd.Returns), typeNames(sig.Returns))
	}
	if typeNames(sig.Throws) != typeNames(fd.Throws) {
		return fmt.Sprintf("throws '%s' where '%s' was expected", typeNames(fd.Throws), typeNames(sig.Throws))
	}
	return ""
}

func (c *checker) checkStructDef(name string, sd *ast.StructDef, pos source.Pos) {
	for _, m := range sd.Members {
		val := sd.Defaults[m.Name]
		if val == nil {
			if !m.IsMut {
				c.errorf(pos, "Constant member '%s' of struct '%s' needs a value", m.Name, name)
			}
			if m.Type.IsInfer() {
				c.errorf(pos, "Member '%s' of struct '%s' needs a type or a default value", m.Name, name)
			}
			continue
		}
		c.checkMember(name, m, val, pos)
	}
	c.checkNamespace(name, &sd.NS, pos)
}

func (c *checker) checkEnumDef(name string, ed *ast.EnumDef, pos source.Pos) {
	for _, v := range ed.Variants {
		if v.Payload != nil && !c.knownType(*v.Payload) {
			c.errorf(pos, "Undefined type '%s' for variant %s.%s", *v.Payload, name, v.Name)
		}
	}
	c.checkNamespace(name, &ed.NS, pos)
}

func (c *checker) checkNamespace(name string, ns *ast.Namespace, pos source.Pos) {
	for _, m := range ns.Members {
		if val := ns.Defaults[m.Name]; val != nil {
			c.checkMember(name, m, val, pos)
		}
	}
}

// checkMember checks the value of a struct or namespace member and settles
// the type of the associated symbol T.member.
func (c *checker) checkMember(typ string, m ast.Declaration, val *ast.Expr, pos source.Pos) {
	qname := typ + "." + m.Name
	if val.Kind == ast.NFuncDef {
		c.checkFuncDef(qname, val.Func, val.Pos)
		return
	}
	got := c.checkExpr(val, valueUsed)
	if !m.Type.IsInfer() && !c.assignable(m.Type, got, val) {
		c.errorf(val.Pos, "'%s' declared of type '%s' but initialized to type '%s'.", qname, m.Type, got)
		return
	}
	if sym, ok := c.st.Lookup(qname); ok && sym.Type.IsInfer() {
		sym.Type = got
	}
}

// declareLocal registers a declaration inside a function or block body.
func (c *checker) declareLocal(e *ast.Expr) (*scope.Symbol, bool) {
	d := e.Decl
	if d.Name == "_" {
		return nil, true
	}
	if c.fn != nil {
		if prev, clash := c.st.DeclareLocal(d.Name, e.Pos); clash {
			c.errorf(e.Pos, "Variable '%s' already declared at %d:%d, shadowing is not allowed", d.Name, prev.Line, prev.Col)
			return nil, false
		}
	}
	if err := index.Declare(c.st, e); err != nil {
		c.errorErr(e.Pos, err)
		return nil, false
	}
	sym, _ := c.st.LookupLocal(d.Name)
	return sym, true
}
