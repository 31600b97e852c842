package typecheck

import (
	"strings"

	"tilc/internal/ast"
	"tilc/internal/diag"
)

// checkExpr checks an expression and returns its type, or ast.Infer when
// the type could not be determined.
func (c *checker) checkExpr(e *ast.Expr, ectx exprCtx) ast.ValueType {
	switch e.Kind {
	case ast.NLiteral:
		if e.Lit == ast.LitList {
			c.errorLevel(e.Pos, diag.Todo, "list literals are not supported yet")
			return ast.Infer
		}
		t, _ := TypeOf(c.st, e)
		return t
	case ast.NIdentifier:
		return c.checkIdent(e)
	case ast.NFCall:
		return c.checkCall(e, ectx)
	case ast.NFuncDef:
		c.checkFuncDef("<lambda>", e.Func, e.Pos)
		t, _ := TypeOf(c.st, e)
		return t
	case ast.NNamedArg:
		c.errorf(e.Pos, "Named argument '%s' outside of a call", e.Value)
		return c.checkExpr(e.Init(), valueUsed)
	case ast.NStructDef, ast.NEnumDef:
		c.errorf(e.Pos, "Type definitions must be bound to a name with ':='")
		return ast.Infer
	}
	c.errorf(e.Pos, "expected expression, found %s", e.Kind)
	return ast.Infer
}

func (c *checker) checkIdent(e *ast.Expr) ast.ValueType {
	head := e.Value
	if sym, ok := c.st.Lookup(head); ok {
		sym.Used = true
		if c.st.IsClosureCapture(head) {
			c.errorf(e.Pos, "Closures are not supported: '%s' is captured from an enclosing function", head)
		}
	}
	t, err := TypeOf(c.st, e)
	if err != nil {
		c.errorErr(e.Pos, err)
		return ast.Infer
	}
	return t
}

// checkCall checks a call, rewriting UFCS calls and named arguments into
// plain positional calls on the resolved function.
func (c *checker) checkCall(e *ast.Expr, ectx exprCtx) ast.ValueType {
	castOK := c.castOK
	c.castOK = false
	defer func() { c.castOK = castOK }()

	cal, err := ResolveCallee(c.st, e)
	if err != nil {
		c.errorErr(e.Pos, err)
		c.checkLooseArgs(e.Args())
		return ast.Infer
	}

	switch cal.Kind {
	case CallImport:
		if c.fn != nil || !c.st.AtGlobal() {
			c.errorf(e.Pos, "import can only be used in the root context of the file")
		}
		return ast.Void
	case CallCast:
		return c.checkCast(e, cal, castOK)
	case CallStruct:
		return c.checkStructCall(e, cal)
	case CallEnum:
		return c.checkEnumCall(e, cal)
	}

	if cal.Receiver != nil {
		callee := ast.NewChain(e.Callee().Pos, strings.Split(cal.Name, "."))
		params := make([]*ast.Expr, 0, len(e.Params)+1)
		params = append(params, callee, cal.Receiver)
		params = append(params, e.Args()...)
		e.Params = params
	}
	if sym, ok := c.st.Lookup(cal.Name); ok {
		sym.Used = true
	}

	fd := cal.Def
	if !c.reorderArgs(e, cal.Name, fd) {
		c.checkLooseArgs(e.Args())
		return retType(fd)
	}
	c.checkArgs(e, cal.Name, fd)
	c.checkCallThrows(e, cal.Name, fd)

	if c.fn != nil && c.fn.def.Kind.Base() == ast.FTFunc && fd.Kind.IsProc() {
		if !c.mode.ProcAllowedInFunc(unqualified(cal.Name)) {
			c.errorf(e.Pos, "Cannot call proc '%s' from func '%s'", cal.Name, c.fn.name)
		}
	}
	if ectx == valueDiscarded && len(fd.Returns) > 0 {
		c.errorf(e.Pos, "Function '%s' returns a value that is not used, Suggestion: capture it with '_ := %s(...)'", cal.Name, cal.Name)
	}
	return retType(fd)
}

func retType(fd *ast.FuncDef) ast.ValueType {
	if fd == nil || len(fd.Returns) == 0 {
		return ast.Void
	}
	return fd.Returns[0]
}

func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// checkLooseArgs checks the arguments of a call whose target is unknown.
func (c *checker) checkLooseArgs(args []*ast.Expr) {
	for _, a := range args {
		if a.Kind == ast.NNamedArg {
			a = a.Init()
		}
		c.checkExpr(a, valueUsed)
	}
}

func (c *checker) checkCallThrows(e *ast.Expr, name string, fd *ast.FuncDef) {
	if !fd.Throwing() {
		switch {
		case e.Call.DoesThrow:
			c.errorf(e.Pos, "Function '%s' does not throw, remove the '?'", name)
		case e.Call.IsBang:
			c.errorf(e.Pos, "Function '%s' does not throw, remove the '!'", name)
		}
		return
	}
	switch {
	case e.Call.IsBang:
	case e.Call.DoesThrow:
		for _, t := range fd.Throws {
			c.addThrow(t.Name, e.Pos)
		}
	default:
		c.errorf(e.Pos, "Function '%s' throws %s but call is missing '?'", name, typeNames(fd.Throws))
	}
}

// reorderArgs puts named arguments into parameter order and fills the
// remaining parameters from their defaults. It reports false after an
// error.
func (c *checker) reorderArgs(e *ast.Expr, name string, fd *ast.FuncDef) bool {
	args := e.Args()
	named := false
	for _, a := range args {
		if a.Kind == ast.NNamedArg {
			named = true
			break
		}
	}
	if fd.VariadicIndex() >= 0 {
		if named {
			c.errorf(e.Pos, "Named arguments are not supported for variadic functions")
			return false
		}
		return true
	}
	if !named && len(args) >= len(fd.Args) {
		return true
	}
	slots := make([]*ast.Expr, len(fd.Args))
	next := 0
	seenNamed := false
	for _, a := range args {
		if a.Kind != ast.NNamedArg {
			if seenNamed {
				c.errorf(a.Pos, "Positional arguments cannot appear after named arguments")
				return false
			}
			if next >= len(slots) {
				// Arity is reported by checkArgs.
				return true
			}
			slots[next] = a
			next++
			continue
		}
		seenNamed = true
		i := paramIndex(fd, a.Value)
		if i < 0 {
			c.errorf(a.Pos, "Unknown parameter name '%s' for '%s'", a.Value, name)
			return false
		}
		if slots[i] != nil {
			c.errorf(a.Pos, "Argument '%s' specified multiple times", a.Value)
			return false
		}
		slots[i] = a.Init()
	}
	for i, s := range slots {
		if s != nil {
			continue
		}
		if d := fd.Args[i].Default; d != nil {
			slots[i] = ast.Clone(d)
			continue
		}
		c.errorf(e.Pos, "Missing argument for parameter '%s' of '%s'", fd.Args[i].Name, name)
		return false
	}
	params := make([]*ast.Expr, 0, len(slots)+1)
	params = append(params, e.Callee())
	e.Params = append(params, slots...)
	return true
}

func paramIndex(fd *ast.FuncDef, name string) int {
	for i, a := range fd.Args {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (c *checker) checkArgs(e *ast.Expr, name string, fd *ast.FuncDef) {
	args := e.Args()
	vi := fd.VariadicIndex()
	if (vi < 0 && len(args) != len(fd.Args)) || (vi >= 0 && len(args) < vi) {
		c.errorf(e.Pos, "Function '%s' expects %d arguments but got %d", name, len(fd.Args), len(args))
		c.checkLooseArgs(args)
		return
	}
	for i, a := range args {
		p := fd.Args[min(i, len(fd.Args)-1)]
		want := p.Type
		if vi >= 0 && i >= vi {
			p = fd.Args[vi]
			want = ast.Custom(p.Type.Name)
		}
		if a.Kind == ast.NNamedArg {
			c.errorf(a.Pos, "Named argument '%s' cannot be passed to '%s' here", a.Value, name)
			a = a.Init()
		}
		if want == ast.TypeT {
			if a.Kind != ast.NIdentifier || !c.knownTypeName(a.CombinedName()) {
				c.errorf(a.Pos, "Function '%s' expects a type for argument '%s'", name, p.Name)
			}
			continue
		}
		if sig := c.sigOf(want); sig != nil {
			c.checkSigArg(name, p, sig, a)
			continue
		}
		got := c.checkExpr(a, valueUsed)
		if !c.assignable(want, got, a) {
			c.errorf(a.Pos, "Function '%s' expects argument '%s' of type '%s', but got '%s'", name, p.Name, want, got)
		}
		switch {
		case p.IsMut:
			c.checkMutArg(name, p, a)
		case p.IsCopy:
			c.checkCopyArg(got, a)
		case p.IsOwn:
			if a.Kind == ast.NIdentifier && len(a.Params) == 0 {
				c.consume(a)
			}
		}
	}
}

// consume removes the binding an own argument names. Later arguments of
// the same call already see it removed. A loop body may not consume a
// binding declared outside the loop, since the next iteration would use
// it again.
func (c *checker) consume(a *ast.Expr) {
	n := a.Value
	sym, ok := c.st.Lookup(n)
	if !ok || c.st.Global().Symbols[n] == sym {
		return
	}
	if c.loopFrame > 0 && c.st.FrameOf(n) < c.loopFrame {
		c.errorf(a.Pos, "Cannot consume '%s' inside a loop, it is declared outside of it", n)
	}
	c.st.Remove(n)
}

// checkSigArg checks an argument bound to a signature typed parameter:
// a function name or an inline definition.
func (c *checker) checkSigArg(name string, p ast.Declaration, sig *ast.FuncDef, a *ast.Expr) {
	var fd *ast.FuncDef
	switch a.Kind {
	case ast.NFuncDef:
		applySignature(a.Func, sig)
		c.checkFuncDef("<lambda>", a.Func, a.Pos)
		fd = a.Func
	default:
		got := c.checkExpr(a, valueUsed)
		if got.IsInfer() {
			return
		}
		if got.Kind == ast.TCustom && got.Name == p.Type.Name {
			return
		}
		fd = c.funcValue(a)
	}
	if fd == nil {
		c.errorf(a.Pos, "Function '%s' expects a function of type '%s' for argument '%s'", name, p.Type, p.Name)
		return
	}
	if msg := c.sigCompatible(sig, fd); msg != "" {
		c.errorf(a.Pos, "Argument '%s' of '%s' %s", p.Name, name, msg)
	}
}

func (c *checker) checkMutArg(name string, p ast.Declaration, a *ast.Expr) {
	switch a.Kind {
	case ast.NLiteral:
		c.errorf(a.Pos, "Cannot pass a literal as mut argument '%s' of '%s'", p.Name, name)
	case ast.NIdentifier:
		sym, ok := c.st.Lookup(a.Value)
		if ok && !sym.IsMut {
			c.errorf(a.Pos, "Cannot pass const '%s' as mut argument '%s', Suggestion: declare it as 'mut %s'", a.Value, p.Name, a.Value)
		}
	default:
		c.errorf(a.Pos, "Cannot pass a temporary value as mut argument")
	}
}

func (c *checker) checkCopyArg(got ast.ValueType, a *ast.Expr) {
	if got.Kind != ast.TCustom || ast.IsCopyExempt(got.Name) {
		return
	}
	sd, ok := c.st.LookupStruct(got.Name)
	if !ok {
		return
	}
	if _, _, ok := sd.Associated("clone"); !ok {
		c.errorf(a.Pos, "struct '%s' does not implement clone() method", got.Name)
	}
}

func (c *checker) checkCast(e *ast.Expr, cal Callee, castOK bool) ast.ValueType {
	if !castOK {
		c.errorf(e.Pos, "cast can only be used to initialize a declaration")
	}
	t := ast.Custom(cal.Name)
	if !c.knownType(t) {
		c.errorf(e.Args()[0].Pos, "Undefined type '%s'", t)
	}
	c.checkExpr(e.Args()[1], valueUsed)
	return t
}

func (c *checker) checkStructCall(e *ast.Expr, cal Callee) ast.ValueType {
	sd := cal.Struct
	if e.Call.DoesThrow {
		c.errorf(e.Pos, "Struct constructor '%s' does not throw, remove the '?'", cal.Name)
	} else if e.Call.IsBang {
		c.errorf(e.Pos, "Struct constructor '%s' does not throw, remove the '!'", cal.Name)
	}
	given := map[string]bool{}
	for _, a := range e.Args() {
		if a.Kind != ast.NNamedArg {
			c.errorf(a.Pos, "Struct '%s' can only be constructed with named arguments", cal.Name)
			c.checkExpr(a, valueUsed)
			continue
		}
		val := a.Init()
		m, ok := sd.Member(a.Value)
		if !ok || !m.IsMut {
			c.errorf(a.Pos, "Struct '%s' has no field '%s'", cal.Name, a.Value)
			c.checkExpr(val, valueUsed)
			continue
		}
		if given[a.Value] {
			c.errorf(a.Pos, "Argument '%s' specified multiple times", a.Value)
		}
		given[a.Value] = true
		got := c.checkExpr(val, valueUsed)
		want := m.Type
		if want.IsInfer() {
			want, _ = TypeOf(c.st, sd.Defaults[m.Name])
		}
		if !c.assignable(want, got, val) {
			c.errorf(val.Pos, "Struct '%s' field '%s' expects type '%s', but got '%s'", cal.Name, m.Name, want, got)
		}
	}
	for _, m := range sd.Fields() {
		if !given[m.Name] && sd.Defaults[m.Name] == nil {
			c.errorf(e.Pos, "Missing value for field '%s' of struct '%s'", m.Name, cal.Name)
		}
	}
	return ast.Custom(cal.Name)
}

func (c *checker) checkEnumCall(e *ast.Expr, cal Callee) ast.ValueType {
	typ := ast.Custom(strings.SplitN(cal.Name, ".", 2)[0])
	if e.Call.DoesThrow || e.Call.IsBang {
		c.errorf(e.Pos, "Enum constructor %s does not throw", cal.Name)
	}
	args := e.Args()
	v := cal.Variant
	if v.Payload == nil {
		if len(args) > 0 {
			c.errorf(e.Pos, "Enum variant %s does not take a payload", cal.Name)
			c.checkLooseArgs(args)
		}
		return typ
	}
	if len(args) != 1 {
		c.errorf(e.Pos, "Enum constructor %s expects payload of type %s, but got %d values", cal.Name, *v.Payload, len(args))
		c.checkLooseArgs(args)
		return typ
	}
	got := c.checkExpr(args[0], valueUsed)
	if !c.assignable(*v.Payload, got, args[0]) {
		c.errorf(args[0].Pos, "Enum constructor %s expects payload of type %s, but got %s", cal.Name, *v.Payload, got)
	}
	return typ
}
