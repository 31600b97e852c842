// Package typecheck enforces the static semantics of an indexed tree and
// then resolves every inferred type in place.
package typecheck

import (
	"fmt"
	"strings"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/mode"
	"tilc/internal/names"
	"tilc/internal/scope"
	"tilc/internal/source"
)

type exprCtx int

const (
	valueUsed exprCtx = iota
	valueDiscarded
)

type checker struct {
	ctx   *scope.Context
	st    *scope.Stack
	diags *diag.Bag
	path  string
	mode  mode.Mode

	fn        *fnState
	loopDepth int
	// loopFrame is the stack depth at the innermost loop of the current
	// function; frames below it live outside the loop. Zero outside loops.
	loopFrame int
	// castOK is set while checking the initializer of a declaration.
	castOK bool
	// top collects the throws of the root context of the current file.
	top *fnState
	// exhaustive records switches that cover every case.
	exhaustive map[*ast.Expr]bool
}

// fnState tracks the function whose body is being checked.
type fnState struct {
	name string
	def  *ast.FuncDef
	// pending are the throws that left the outermost block uncaught.
	pending []pendingThrow
	// blocks are the statement sequences being checked, innermost last.
	blocks []*throwBlock
	// escaped collects the types leaving the function.
	escaped map[string]bool
}

// throwBlock holds the throws raised by earlier statements of one
// statement sequence. Only a catch later in the same sequence can handle
// them; the rest move to the enclosing sequence when it ends.
type throwBlock struct {
	frame   *scope.Frame
	pending []pendingThrow
}

func newFnState(name string, def *ast.FuncDef) *fnState {
	return &fnState{name: name, def: def, escaped: map[string]bool{}}
}

type pendingThrow struct {
	typ string
	pos source.Pos
	// mark is the number of names the block frame held when the throw
	// joined the block. A catch body sees only those.
	mark int
}

// Check type checks the root body of ctx and the imports it reaches.
// Diagnostics accumulate; when there are none the inferred types are
// resolved in place.
func Check(ctx *scope.Context, body *ast.Expr) *diag.Bag {
	c := &checker{
		ctx:        ctx,
		st:         ctx.Stack,
		diags:      &diag.Bag{},
		path:       ctx.Path,
		mode:       ctx.Mode,
		top:        newFnState("", nil),
		exhaustive: map[*ast.Expr]bool{},
	}
	c.checkImport(names.CorePrelude)
	for _, p := range ctx.Mode.Imports {
		c.checkImport(p + names.Ext)
	}
	c.checkFile(body)
	if c.mode.NeedsMainProc {
		c.checkMain(body)
	}
	if c.diags.HasErrors() {
		return c.diags
	}
	Resolve(ctx, body, c.diags)
	return c.diags
}

func (c *checker) errorf(pos source.Pos, format string, args ...any) {
	c.diags.Add(c.path, pos.Line, pos.Col, diag.Type, fmt.Sprintf(format, args...))
}

func (c *checker) errorLevel(pos source.Pos, level diag.Level, format string, args ...any) {
	c.diags.Add(c.path, pos.Line, pos.Col, level, fmt.Sprintf(format, args...))
}

func (c *checker) errorErr(pos source.Pos, err error) {
	c.diags.Add(c.path, pos.Line, pos.Col, diag.Type, err.Error())
}

// checkImport runs the type-check phase of an import once, under the mode
// of the imported file.
func (c *checker) checkImport(p string) {
	body, ok := c.ctx.ImportedASTs[p]
	if !ok || c.ctx.TyperDone[p] {
		return
	}
	c.ctx.TyperDone[p] = true
	savedPath, savedMode, savedFn, savedTop := c.path, c.mode, c.fn, c.top
	c.path, c.mode, c.fn, c.top = p, c.ctx.ImportedModes[p], nil, newFnState("", nil)
	for _, ip := range c.mode.Imports {
		c.checkImport(ip + names.Ext)
	}
	c.checkFile(body)
	c.path, c.mode, c.fn, c.top = savedPath, savedMode, savedFn, savedTop
}

// checkFile checks the top-level statements of one file. Declarations are
// already in the global frame.
func (c *checker) checkFile(body *ast.Expr) {
	for _, s := range body.Params {
		switch {
		case s.Kind == ast.NDeclaration:
			c.checkGlobalDecl(s)
		case s.IsCallTo("import"):
			if p, err := index.ImportPath(c.path, s); err == nil {
				c.checkImport(p)
			}
		default:
			c.checkStmt(s)
		}
	}
	c.checkTopLevelThrows()
}

func (c *checker) checkMain(body *ast.Expr) {
	sym, ok := c.st.Global().Symbols["main"]
	if ok && sym.Type == ast.Function(ast.FTProc) {
		return
	}
	pos := source.Pos{Line: 1, Col: 1}
	if ok {
		pos = sym.Pos
	}
	c.errorLevel(pos, diag.Mode, "mode %s requires 'main' to be defined as a proc", c.mode.Name)
}

// checkGlobalDecl checks a declaration registered by the indexer.
func (c *checker) checkGlobalDecl(e *ast.Expr) {
	sym, ok := c.st.Global().Symbols[e.Decl.Name]
	if !ok || sym.Origin != e {
		// Not registered (duplicate or '_'): check the initializer only.
		if init := e.Init(); init != nil {
			c.withCast(func() { c.checkExpr(init, valueUsed) })
		}
		return
	}
	c.checkDeclInit(e, sym)
}

// checkDeclInit checks the initializer of e, settles the type of sym when
// given and returns the initializer type.
func (c *checker) checkDeclInit(e *ast.Expr, sym *scope.Symbol) ast.ValueType {
	d := e.Decl
	init := e.Init()
	if init == nil {
		return d.Type
	}
	switch init.Kind {
	case ast.NFuncDef:
		if sig := c.sigOf(d.Type); sig != nil {
			applySignature(init.Func, sig)
			if msg := c.sigCompatible(sig, init.Func); msg != "" {
				c.errorf(e.Pos, "'%s' declared of type '%s' but %s", d.Name, d.Type, msg)
			}
		}
		c.checkFuncDef(d.Name, init.Func, init.Pos)
		return index.ShallowType(init)
	case ast.NStructDef:
		c.checkStructDef(d.Name, init.Struct, init.Pos)
		return index.ShallowType(init)
	case ast.NEnumDef:
		c.checkEnumDef(d.Name, init.Enum, init.Pos)
		return index.ShallowType(init)
	}
	var got ast.ValueType
	c.withCast(func() { got = c.checkExpr(init, valueUsed) })
	if init.Kind == ast.NFCall && got.IsVoid() {
		c.errorf(init.Pos, "func '%s' does not return anything", init.CalleeName())
		return ast.Infer
	}
	if d.Type.IsInfer() {
		if sym != nil && sym.Type.IsInfer() && !got.IsInfer() {
			sym.Type = got
		}
		return got
	}
	if !c.knownType(d.Type) {
		c.errorf(e.Pos, "Undefined type '%s'", d.Type)
		return d.Type
	}
	if !c.assignable(d.Type, got, init) {
		c.errorf(e.Pos, "'%s' declared of type '%s' but initialized to type '%s'.", d.Name, d.Type, got)
	}
	return d.Type
}

func (c *checker) withCast(f func()) {
	saved := c.castOK
	c.castOK = true
	f()
	c.castOK = saved
}

// pushFrame and popFrame bracket every scope; popFrame reports unused
// function-local bindings.
func (c *checker) pushFrame(k scope.FrameKind) { c.st.Push(k) }

func (c *checker) popFrame() {
	f := c.st.Pop()
	if f == nil || c.fn == nil {
		return
	}
	for _, n := range f.Names() {
		sym := f.Symbols[n]
		if sym.Used || strings.HasPrefix(n, "_") || strings.Contains(n, ".") {
			continue
		}
		c.errorf(sym.Pos, "Unused variable '%s'", n)
	}
}

// knownType reports whether t names a type visible from the current scope.
func (c *checker) knownType(t ast.ValueType) bool {
	switch t.Kind {
	case ast.TFunction, ast.TType:
		return true
	case ast.TMulti:
		return c.knownTypeName(t.Name)
	}
	if t.IsInfer() || t.IsVoid() {
		return true
	}
	return c.knownTypeName(t.Name)
}

func (c *checker) knownTypeName(n string) bool {
	if ast.IsPrimitive(n) {
		return true
	}
	if _, ok := c.st.LookupStruct(n); ok {
		return true
	}
	if _, ok := c.st.LookupEnum(n); ok {
		return true
	}
	return c.sigOf(ast.Custom(n)) != nil
}

// sigOf returns the signature definition a type names, if any.
func (c *checker) sigOf(t ast.ValueType) *ast.FuncDef {
	if t.Kind != ast.TCustom || t.IsInfer() {
		return nil
	}
	fd, ok := c.st.LookupFunc(t.Name)
	if !ok || !fd.IsSig() {
		return nil
	}
	return fd
}

// assignable reports whether a value of type got, produced by e, may flow
// into a slot of type want.
func (c *checker) assignable(want, got ast.ValueType, e *ast.Expr) bool {
	if want == got || got.IsInfer() || want.IsInfer() || want == ast.Dynamic {
		return true
	}
	if want == ast.U8 && got == ast.I64 && e != nil && e.Kind == ast.NLiteral && e.Lit == ast.LitNumber {
		return true
	}
	if want.IsCustom(ArrayType) && got.Kind == ast.TMulti {
		return true
	}
	if want.Kind == ast.TFunction && got.Kind == ast.TFunction {
		return want.Func.Base() == got.Func.Base()
	}
	if sig := c.sigOf(want); sig != nil && got.Kind == ast.TFunction {
		fd := c.funcValue(e)
		return fd != nil && c.sigCompatible(sig, fd) == ""
	}
	return false
}

// funcValue returns the definition behind a function valued expression.
func (c *checker) funcValue(e *ast.Expr) *ast.FuncDef {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ast.NFuncDef:
		return e.Func
	case ast.NIdentifier:
		if fd, ok := c.st.LookupFunc(e.CombinedName()); ok {
			return fd
		}
	}
	return nil
}

func typeNames(ts []ast.ValueType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
