package typecheck

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/names"
	"tilc/internal/scope"
	"tilc/internal/source"
)

// Resolve replaces every inferred type on declarations, struct members,
// namespace members and loop variables with the concrete type. It walks
// the imports in order, then the root body, rebuilding the local frames
// so that lookups see what the typer saw.
func Resolve(ctx *scope.Context, body *ast.Expr, diags *diag.Bag) {
	w := &resolveWalk{st: ctx.Stack, diags: diags}
	for _, p := range ctx.ImportOrder {
		w.path = p
		w.stmts(ctx.ImportedASTs[p].Params)
	}
	w.path = ctx.Path
	w.stmts(body.Params)
}

type resolveWalk struct {
	st    *scope.Stack
	diags *diag.Bag
	path  string
}

func (w *resolveWalk) fail(pos source.Pos, name string) {
	w.diags.Add(w.path, pos.Line, pos.Col, diag.ResolveTypes, fmt.Sprintf("Could not resolve the type of '%s'", name))
}

func (w *resolveWalk) stmts(stmts []*ast.Expr) {
	for _, s := range stmts {
		w.stmt(s)
	}
}

func (w *resolveWalk) block(b *ast.Expr, bind func()) {
	w.st.Push(scope.Block)
	if bind != nil {
		bind()
	}
	w.stmts(b.Params)
	w.st.Pop()
}

func (w *resolveWalk) stmt(s *ast.Expr) {
	switch s.Kind {
	case ast.NDeclaration:
		w.decl(s)
	case ast.NIf:
		w.expr(s.Params[0])
		w.block(s.Params[1], nil)
		if len(s.Params) > 2 {
			if s.Params[2].Kind == ast.NIf {
				w.stmt(s.Params[2])
			} else {
				w.block(s.Params[2], nil)
			}
		}
	case ast.NWhile:
		w.expr(s.Params[0])
		w.block(s.Params[1], nil)
	case ast.NForIn:
		v, rng := s.Params[0], s.Params[1]
		if s.VarType.IsInfer() {
			t, err := TypeOf(w.st, rng.Params[0])
			if err != nil || t.IsInfer() {
				w.fail(s.Pos, v.Value)
			} else {
				s.VarType = t
			}
		}
		w.block(s.Params[2], func() {
			w.st.Insert(v.Value, &scope.Symbol{Type: s.VarType, IsMut: true})
		})
	case ast.NSwitch:
		w.expr(s.Params[0])
		scrut, _ := TypeOf(w.st, s.Params[0])
		for i := 1; i+1 < len(s.Params); i += 2 {
			pat := s.Params[i]
			w.block(s.Params[i+1], func() {
				if pat.Kind != ast.NPattern || pat.Pattern.BindingVar == "_" {
					return
				}
				w.st.Insert(pat.Pattern.BindingVar, &scope.Symbol{Type: payloadType(w.st, scrut, pat)})
			})
		}
	case ast.NCatch:
		v, typ := s.Params[0], s.Params[1]
		w.block(s.Params[2], func() {
			w.st.Insert(v.Value, &scope.Symbol{Type: ast.Custom(typ.CombinedName())})
		})
	case ast.NDefer:
		w.stmt(s.Params[0])
	case ast.NBody:
		w.block(s, nil)
	default:
		w.expr(s)
	}
}

func payloadType(st *scope.Stack, scrut ast.ValueType, pat *ast.Expr) ast.ValueType {
	en, ok := st.LookupEnum(scrut.Name)
	if !ok {
		return ast.Infer
	}
	_, variant, _ := names.SplitQualified(pat.Pattern.VariantName)
	if v, ok := en.Variant(variant); ok && v.Payload != nil {
		return *v.Payload
	}
	return ast.Infer
}

func (w *resolveWalk) decl(s *ast.Expr) {
	d := s.Decl
	init := s.Init()
	if !w.st.AtGlobal() && d.Name != "_" {
		// Revisiting the same declaration is a no-op.
		_ = index.Declare(w.st, s)
	}
	if init != nil {
		if shallow := index.ShallowType(init); shallow.Kind == ast.TType || shallow.Kind == ast.TFunction {
			if d.Type.IsInfer() || d.Type.Kind == ast.TType {
				d.Type = shallow
			}
		}
	}
	if d.Type.IsInfer() {
		w.settle(s, d)
	}
	if sym, ok := w.st.Lookup(d.Name); ok && sym.Origin == s && sym.Type.IsInfer() {
		sym.Type = d.Type
	}
	if init == nil {
		return
	}
	switch init.Kind {
	case ast.NFuncDef:
		w.funcDef(init.Func)
	case ast.NStructDef:
		w.members(d.Name, init.Struct.Members, init.Struct.Defaults)
		w.members(d.Name, init.Struct.NS.Members, init.Struct.NS.Defaults)
	case ast.NEnumDef:
		w.members(d.Name, init.Enum.NS.Members, init.Enum.NS.Defaults)
	default:
		w.expr(init)
	}
}

func (w *resolveWalk) settle(s *ast.Expr, d *ast.Declaration) {
	if sym, ok := w.st.Lookup(d.Name); ok && sym.Origin == s && !sym.Type.IsInfer() {
		d.Type = sym.Type
		return
	}
	init := s.Init()
	if init == nil {
		w.fail(s.Pos, d.Name)
		return
	}
	if init.IsCallTo("cast") {
		d.Type = ast.Custom(init.Args()[0].CombinedName())
		return
	}
	t, err := TypeOf(w.st, init)
	if err != nil || t.IsInfer() || t.IsVoid() {
		w.fail(s.Pos, d.Name)
		return
	}
	d.Type = t
}

// members settles the types of struct or namespace members in place.
func (w *resolveWalk) members(typ string, ms []ast.Declaration, defaults map[string]*ast.Expr) {
	for i := range ms {
		m := &ms[i]
		val := defaults[m.Name]
		if val != nil && val.Kind == ast.NFuncDef {
			if m.Type.IsInfer() {
				m.Type = ast.Function(val.Func.Kind)
			}
			w.funcDef(val.Func)
			continue
		}
		if !m.Type.IsInfer() {
			continue
		}
		if val == nil {
			w.fail(source.Pos{}, typ+"."+m.Name)
			continue
		}
		t, err := TypeOf(w.st, val)
		if err != nil || t.IsInfer() {
			w.fail(val.Pos, typ+"."+m.Name)
			continue
		}
		m.Type = t
		if sym, ok := w.st.Lookup(typ + "." + m.Name); ok && sym.Type.IsInfer() {
			sym.Type = t
		}
	}
}

func (w *resolveWalk) funcDef(fd *ast.FuncDef) {
	if fd.Kind.IsExt() || fd.IsSig() {
		return
	}
	w.st.Push(scope.Function)
	for _, a := range fd.Args {
		if a.Name == "" || a.Name == "_" {
			continue
		}
		w.st.Insert(a.Name, &scope.Symbol{
			Type:    a.Type,
			IsMut:   a.IsMut || a.Type.Kind == ast.TMulti,
			IsCopy:  a.IsCopy,
			IsOwn:   a.IsOwn,
			IsParam: true,
		})
	}
	w.stmts(fd.Body)
	w.st.Pop()
}

// expr descends into expressions looking for inline definitions.
func (w *resolveWalk) expr(e *ast.Expr) {
	if e == nil {
		return
	}
	if e.Kind == ast.NFuncDef {
		w.funcDef(e.Func)
		return
	}
	for _, p := range e.Params {
		w.expr(p)
	}
}
