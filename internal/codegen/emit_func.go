package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"tilc/internal/ast"
	"tilc/internal/names"
)

type local struct {
	typ ast.ValueType
	// ptr is set for C pointers to the value: mut and variadic parameters.
	ptr bool
	// fn is set for local function definitions.
	fn *fnInfo
}

// blockPos is a lexical position: the statement being emitted in a block.
// Catch handlers are searched for after it.
type blockPos struct {
	stmts []*ast.Expr
	idx   int
}

// frame is a runtime nesting level with its pending defers.
type frame struct {
	defers []*ast.Expr
	loop   bool
}

type fnEmitter struct {
	g     *gen
	fn    *fnInfo // nil for the program's top level
	b     *bytes.Buffer
	depth int

	scopes []map[string]*local
	blocks []*blockPos
	frames []*frame
}

func (g *gen) newFnEmitter(fn *fnInfo) *fnEmitter {
	return &fnEmitter{g: g, fn: fn, b: &bytes.Buffer{}}
}

func (f *fnEmitter) line(format string, args ...any) {
	f.b.WriteString(strings.Repeat("    ", f.depth))
	fmt.Fprintf(f.b, format, args...)
	f.b.WriteByte('\n')
}

func (f *fnEmitter) pushScope() { f.scopes = append(f.scopes, map[string]*local{}) }

func (f *fnEmitter) popScope() { f.scopes = f.scopes[:len(f.scopes)-1] }

func (f *fnEmitter) declare(name string, l *local) { f.scopes[len(f.scopes)-1][name] = l }

func (f *fnEmitter) lookup(name string) *local {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if l, ok := f.scopes[i][name]; ok {
			return l
		}
	}
	return nil
}

// atTop reports whether statements are emitted directly in the program's
// top level, where declarations initialize globals.
func (f *fnEmitter) atTop() bool { return f.fn == nil && len(f.frames) == 1 }

func (f *fnEmitter) block(stmts []*ast.Expr, loop bool) error {
	f.pushScope()
	defer f.popScope()
	fr := &frame{loop: loop}
	f.frames = append(f.frames, fr)
	defer func() { f.frames = f.frames[:len(f.frames)-1] }()
	pos := &blockPos{stmts: stmts}
	f.blocks = append(f.blocks, pos)
	defer func() { f.blocks = f.blocks[:len(f.blocks)-1] }()

	for i, s := range stmts {
		pos.idx = i
		if err := f.stmt(s); err != nil {
			return err
		}
	}
	if len(stmts) == 0 || !isExit(stmts[len(stmts)-1]) {
		return f.runDefers(fr)
	}
	return nil
}

// nested emits stmts inside braces at one more level of indentation.
func (f *fnEmitter) nested(open string, stmts []*ast.Expr, loop bool) error {
	f.line("%s", open)
	f.depth++
	err := f.block(stmts, loop)
	f.depth--
	return err
}

func isExit(s *ast.Expr) bool {
	switch s.Kind {
	case ast.NReturn, ast.NThrow, ast.NBreak, ast.NContinue:
		return true
	}
	return false
}

// endsInExit reports whether the last statement that emits code leaves
// the function.
func endsInExit(stmts []*ast.Expr) bool {
	for i := len(stmts) - 1; i >= 0; i-- {
		switch stmts[i].Kind {
		case ast.NCatch, ast.NDefer:
			continue
		case ast.NReturn, ast.NThrow:
			return true
		}
		return false
	}
	return false
}

func (f *fnEmitter) stmt(s *ast.Expr) error {
	switch s.Kind {
	case ast.NDeclaration:
		return f.decl(s)
	case ast.NAssignment:
		return f.assign(s)
	case ast.NFCall:
		v, err := f.call(s)
		if err != nil {
			return err
		}
		// Temporaries already hold the result of hoisted calls.
		if v != "" && !strings.HasPrefix(v, "_") {
			f.line("%s;", v)
		}
		return nil
	case ast.NIf:
		return f.ifStmt(s)
	case ast.NWhile:
		return f.whileStmt(s)
	case ast.NForIn:
		return f.forIn(s)
	case ast.NSwitch:
		return f.switchStmt(s)
	case ast.NReturn:
		return f.returnStmt(s)
	case ast.NThrow:
		return f.throwStmt(s)
	case ast.NCatch:
		// Inlined into the error branches of the calls and throws it handles.
		return nil
	case ast.NBreak, ast.NContinue:
		if err := f.unwindLoop(); err != nil {
			return err
		}
		f.line("%s;", strings.ToLower(s.Kind.String()))
		return nil
	case ast.NDefer:
		fr := f.frames[len(f.frames)-1]
		fr.defers = append(fr.defers, s.Params[0])
		return nil
	case ast.NBody:
		f.line("{")
		f.depth++
		err := f.block(s.Params, false)
		f.depth--
		f.line("}")
		return err
	}
	return fmt.Errorf("cannot emit a %s statement", s.Kind)
}

// runDefers emits the defers of fr, last registered first. The list is
// detached while it runs so that an exit inside a deferred statement does
// not replay it.
func (f *fnEmitter) runDefers(fr *frame) error {
	ds := fr.defers
	fr.defers = nil
	defer func() { fr.defers = ds }()
	for i := len(ds) - 1; i >= 0; i-- {
		if err := f.stmt(ds[i]); err != nil {
			return err
		}
	}
	return nil
}

// unwind runs the defers of every frame from the innermost down to stop.
func (f *fnEmitter) unwind(stop int) error {
	for i := len(f.frames) - 1; i >= stop; i-- {
		if err := f.runDefers(f.frames[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fnEmitter) unwindLoop() error {
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].loop {
			return f.unwind(i)
		}
	}
	return fmt.Errorf("loop exit outside of a loop")
}

func (f *fnEmitter) hasDefers() bool {
	for _, fr := range f.frames {
		if len(fr.defers) > 0 {
			return true
		}
	}
	return false
}

func (f *fnEmitter) decl(s *ast.Expr) error {
	d := s.Decl
	init := s.Init()
	if init == nil {
		if d.Type.IsInfer() {
			return fmt.Errorf("declaration of '%s' has no type", d.Name)
		}
		f.line("%s %s = %s;", cType(d.Type), cName(d.Name), cZero)
		f.declare(d.Name, &local{typ: d.Type})
		return nil
	}
	switch init.Kind {
	case ast.NFuncDef:
		if fn, ok := f.g.byDef[init.Func]; ok {
			f.declare(d.Name, &local{typ: d.Type, fn: fn})
		}
		return nil
	case ast.NStructDef, ast.NEnumDef:
		return fmt.Errorf("local type definitions are not supported yet: '%s'", d.Name)
	case ast.NIdentifier:
		if d.Type.Kind == ast.TFunction {
			if fn := f.funcRef(init); fn != nil {
				f.declare(d.Name, &local{typ: d.Type, fn: fn})
				return nil
			}
		}
	}

	v, err := f.expr(init)
	if err != nil {
		return err
	}
	switch {
	case d.Name == "_":
		f.line("(void)%s;", v)
	case f.atTop():
		f.line("%s = %s;", cName(d.Name), v)
	default:
		if d.Type.IsInfer() || d.Type.Kind == ast.TFunction || d.Type.Kind == ast.TType {
			return fmt.Errorf("declaration of '%s' has no storable type", d.Name)
		}
		f.line("%s %s = %s;", cType(d.Type), cName(d.Name), v)
		f.declare(d.Name, &local{typ: d.Type})
	}
	return nil
}

func (f *fnEmitter) assign(s *ast.Expr) error {
	lv, _, err := f.path(strings.Split(s.Value, "."))
	if err != nil {
		return err
	}
	v, err := f.expr(s.Init())
	if err != nil {
		return err
	}
	f.line("%s = %s;", lv, v)
	return nil
}

func (f *fnEmitter) ifStmt(s *ast.Expr) error {
	cond, err := f.expr(s.Params[0])
	if err != nil {
		return err
	}
	if err := f.nested("if ("+cCond(cond)+") {", s.Params[1].Params, false); err != nil {
		return err
	}
	if len(s.Params) > 2 {
		els := s.Params[2]
		stmts := els.Params
		if els.Kind == ast.NIf {
			stmts = []*ast.Expr{els}
		}
		if err := f.nested("} else {", stmts, false); err != nil {
			return err
		}
	}
	f.line("}")
	return nil
}

// whileStmt re-evaluates the condition on every iteration. A condition
// that needs hoisted statements is evaluated at the top of an endless loop.
func (f *fnEmitter) whileStmt(s *ast.Expr) error {
	saved := f.b
	pre := &bytes.Buffer{}
	f.b = pre
	f.depth++
	cond, err := f.expr(s.Params[0])
	f.depth--
	f.b = saved
	if err != nil {
		return err
	}
	if pre.Len() == 0 {
		if err := f.nested("while ("+cCond(cond)+") {", s.Params[1].Params, true); err != nil {
			return err
		}
		f.line("}")
		return nil
	}
	f.line("while (1) {")
	f.b.Write(pre.Bytes())
	f.depth++
	f.line("if (!%s) break;", cCond(cond))
	err = f.block(s.Params[1].Params, true)
	f.depth--
	f.line("}")
	return err
}

func (f *fnEmitter) forIn(s *ast.Expr) error {
	v := s.Params[0].Value
	rng := s.Params[1]
	lo, err := f.expr(rng.Params[0])
	if err != nil {
		return err
	}
	hi, err := f.expr(rng.Params[1])
	if err != nil {
		return err
	}
	t := s.VarType
	if t.IsInfer() {
		t = ast.I64
	}
	end := cTemp("end", nextTemp())
	cv := cName(v)
	f.line("{")
	f.depth++
	f.line("%s %s = %s;", cType(t), end, hi)
	f.pushScope()
	f.declare(v, &local{typ: t})
	err = f.nested(fmt.Sprintf("for (%s %s = %s; %s < %s; %s++) {", cType(t), cv, lo, cv, end, cv), s.Params[2].Params, true)
	f.popScope()
	f.line("}")
	f.depth--
	f.line("}")
	return err
}

type switchCase struct {
	cond string
	bind string
	typ  ast.ValueType
	val  string
	body *ast.Expr
}

// switchStmt lowers a switch to an if chain so that break and continue
// inside a case keep targeting the enclosing loop.
func (f *fnEmitter) switchStmt(s *ast.Expr) error {
	st, err := f.typeOf(s.Params[0])
	if err != nil {
		return err
	}
	v, err := f.expr(s.Params[0])
	if err != nil {
		return err
	}
	sw := cTemp("sw", nextTemp())
	f.line("{")
	f.depth++
	f.line("%s %s = %s;", cType(st), sw, v)

	var cases []switchCase
	var def *ast.Expr
	for i := 1; i+1 < len(s.Params); i += 2 {
		pat, body := s.Params[i], s.Params[i+1]
		if pat.Kind == ast.NDefaultCase {
			def = body
			continue
		}
		c, err := f.caseOf(st, sw, pat)
		if err != nil {
			return err
		}
		c.body = body
		cases = append(cases, c)
	}

	for i, c := range cases {
		open := "if (" + c.cond + ") {"
		if i > 0 {
			open = "} else " + open
		}
		f.line("%s", open)
		f.depth++
		f.pushScope()
		if c.bind != "" && c.bind != "_" {
			f.line("%s %s = %s;", cType(c.typ), cName(c.bind), c.val)
			f.declare(c.bind, &local{typ: c.typ})
		}
		err := f.block(c.body.Params, false)
		f.popScope()
		f.depth--
		if err != nil {
			return err
		}
	}
	if def != nil {
		open := "{"
		if len(cases) > 0 {
			open = "} else {"
		}
		if err := f.nested(open, def.Params, false); err != nil {
			return err
		}
	}
	if len(cases) > 0 || def != nil {
		f.line("}")
	}
	f.depth--
	f.line("}")
	return nil
}

// caseOf builds the condition testing the scrutinee sw against one pattern.
func (f *fnEmitter) caseOf(st ast.ValueType, sw string, pat *ast.Expr) (switchCase, error) {
	switch pat.Kind {
	case ast.NPattern:
		typ, variant, _ := names.SplitQualified(pat.Pattern.VariantName)
		en, ok := f.g.enums[typ]
		if !ok {
			return switchCase{}, fmt.Errorf("unknown enum '%s'", typ)
		}
		v, _ := en.Variant(variant)
		c := switchCase{cond: sw + ".tag == " + variantTag(typ, variant)}
		if v.Payload != nil {
			c.bind = pat.Pattern.BindingVar
			c.typ = *v.Payload
			c.val = sw + ".payload." + variant
		}
		return c, nil
	case ast.NRange:
		lo, err := f.expr(pat.Params[0])
		if err != nil {
			return switchCase{}, err
		}
		hi, err := f.expr(pat.Params[1])
		if err != nil {
			return switchCase{}, err
		}
		return switchCase{cond: fmt.Sprintf("%s >= %s && %s < %s", sw, lo, sw, hi)}, nil
	case ast.NIdentifier:
		if parts := pat.Chain(); len(parts) == 2 {
			if en, ok := f.g.enums[parts[0]]; ok {
				tag := variantTag(parts[0], parts[1])
				if en.HasPayloads() {
					return switchCase{cond: sw + ".tag == " + tag}, nil
				}
				return switchCase{cond: sw + " == " + tag}, nil
			}
		}
	}
	v, err := f.expr(pat)
	if err != nil {
		return switchCase{}, err
	}
	return switchCase{cond: f.equal(st, sw, v)}, nil
}

func (f *fnEmitter) equal(t ast.ValueType, a, b string) string {
	switch {
	case t == ast.Bool:
		return fmt.Sprintf("%s.data == (%s).data", a, b)
	case t.Kind == ast.TCustom && f.g.structs[t.Name] != nil:
		return cCond(fmt.Sprintf("%s(%s, %s)", cName(names.Qualify(t.Name, "eq")), a, b))
	case t.Kind == ast.TCustom && f.g.isAggregate(t.Name):
		return fmt.Sprintf("%s.tag == (%s).tag", a, b)
	}
	return fmt.Sprintf("%s == %s", a, b)
}

func (f *fnEmitter) returnStmt(s *ast.Expr) error {
	if f.fn == nil {
		return fmt.Errorf("'return' outside of a function")
	}
	fd := f.fn.def
	var v string
	if len(s.Params) > 0 {
		var err error
		if v, err = f.expr(s.Params[0]); err != nil {
			return err
		}
	}
	if fd.Throwing() {
		if v != "" {
			f.line("*_ret = %s;", v)
		}
		if err := f.unwind(0); err != nil {
			return err
		}
		f.line("return 0;")
		return nil
	}
	if v != "" && f.hasDefers() && len(fd.Returns) > 0 {
		tmp := cTemp("result", nextTemp())
		f.line("%s %s = %s;", cType(fd.Returns[0]), tmp, v)
		v = tmp
	}
	if err := f.unwind(0); err != nil {
		return err
	}
	if v == "" {
		f.line("return;")
	} else {
		f.line("return %s;", v)
	}
	return nil
}

func (f *fnEmitter) throwStmt(s *ast.Expr) error {
	t, err := f.typeOf(s.Params[0])
	if err != nil {
		return err
	}
	v, err := f.expr(s.Params[0])
	if err != nil {
		return err
	}
	return f.handle(t.Name, v, s)
}

// handle emits what happens to an error value val of type typ raised at
// site: the body of a later catch in the same function, propagation
// through the function's error out parameter, or a panic.
func (f *fnEmitter) handle(typ, val string, site *ast.Expr) error {
	if c, at := f.findCatch(typ); c != nil {
		return f.inlineCatch(c, at, val)
	}
	if f.fn != nil {
		if j := f.fn.def.ThrowIndex(typ); j >= 0 {
			f.line("*_err%d = %s;", j+1, val)
			if err := f.unwind(0); err != nil {
				return err
			}
			f.line("return %d;", j+1)
			return nil
		}
	}
	f.line("%s", cPanic(fmt.Sprintf("%s:%d:%d: uncaught error '%s'", f.g.opts.Path, site.Pos.Line, site.Pos.Col, typ)))
	return nil
}

// findCatch looks for a catch of typ after the current position in the
// current block and then in each enclosing block. It returns the lexical
// position of the catch, from which its own body searches further.
func (f *fnEmitter) findCatch(typ string) (*ast.Expr, []*blockPos) {
	for k := len(f.blocks) - 1; k >= 0; k-- {
		bp := f.blocks[k]
		for j := bp.idx + 1; j < len(bp.stmts); j++ {
			c := bp.stmts[j]
			if c.Kind == ast.NCatch && c.Params[1].CombinedName() == typ {
				at := make([]*blockPos, k+1)
				for i := 0; i < k; i++ {
					cp := *f.blocks[i]
					at[i] = &cp
				}
				at[k] = &blockPos{stmts: bp.stmts, idx: j}
				return c, at
			}
		}
	}
	return nil, nil
}

func (f *fnEmitter) inlineCatch(c *ast.Expr, at []*blockPos, val string) error {
	saved := f.blocks
	f.blocks = at
	defer func() { f.blocks = saved }()

	name := c.Params[0].Value
	t := ast.Custom(c.Params[1].CombinedName())
	f.line("{")
	f.depth++
	f.pushScope()
	if name != "_" {
		f.line("%s %s = %s;", cType(t), cName(name), val)
		f.declare(name, &local{typ: t})
	}
	err := f.block(c.Params[2].Params, false)
	f.popScope()
	f.depth--
	f.line("}")
	return err
}
