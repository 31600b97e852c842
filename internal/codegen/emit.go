// Package codegen translates a checked, scavenged program into a single C
// source file that compiles together with the ext.c runtime.
package codegen

import (
	"bytes"
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/names"
	"tilc/internal/stdlib"
)

type EmitOptions struct {
	// Path names the root file in messages the generated program prints.
	Path string
	// CallMain runs the program's main proc after the top-level statements.
	CallMain bool
}

type fnInfo struct {
	name  string
	cname string
	def   *ast.FuncDef
}

// constInfo is an associated constant, T.name, initialized at start-up.
type constInfo struct {
	name string
	typ  ast.ValueType
	val  *ast.Expr
}

type gen struct {
	opts EmitOptions
	body *ast.Expr

	funcs   map[string]*fnInfo
	byDef   map[*ast.FuncDef]*fnInfo
	fnOrder []*fnInfo

	structs   map[string]*ast.StructDef
	enums     map[string]*ast.EnumDef
	sigs      map[string]*ast.FuncDef
	typeOrder []string
	sigOrder  []string

	globals map[string]ast.ValueType
	consts  []constInfo
}

// EmitC renders body as C. body is the merged program: core prelude,
// imports, then the root file, with unreachable definitions removed.
func EmitC(body *ast.Expr, opts EmitOptions) (string, error) {
	g := &gen{
		opts:    opts,
		body:    body,
		funcs:   map[string]*fnInfo{},
		byDef:   map[*ast.FuncDef]*fnInfo{},
		structs: map[string]*ast.StructDef{},
		enums:   map[string]*ast.EnumDef{},
		sigs:    map[string]*ast.FuncDef{},
		globals: map[string]ast.ValueType{},
	}
	if err := g.collect(); err != nil {
		return "", err
	}

	var out bytes.Buffer
	g.emitPrelude(&out)
	for _, name := range g.typeOrder {
		if g.isAggregate(name) {
			emitForwardDecl(&out, name)
		}
	}
	out.WriteString("\n")

	for _, name := range g.typeOrder {
		if en, ok := g.enums[name]; ok && !en.HasPayloads() {
			emitSimpleEnum(&out, name, en)
		}
	}
	for _, name := range g.sigOrder {
		out.WriteString(cSigTypedef(name, g.sigs[name]))
		out.WriteString("\n")
	}
	if len(g.sigOrder) > 0 {
		out.WriteString("\n")
	}

	order, err := g.sortAggregates()
	if err != nil {
		return "", err
	}
	for _, name := range order {
		if en, ok := g.enums[name]; ok {
			emitTaggedUnion(&out, name, en)
		} else {
			emitStruct(&out, name, g.structs[name])
		}
	}

	out.WriteString(sizeOfProto + ";\n")
	for _, fn := range g.fnOrder {
		if !fn.def.Kind.IsExt() {
			out.WriteString(cSignature(fn.cname, fn.def))
			out.WriteString(";\n")
		}
	}
	out.WriteString("\n")

	fmt.Fprintf(&out, "#include %q\n\n", stdlib.ExtCName)

	if err := g.emitConstants(&out); err != nil {
		return "", err
	}
	for _, fn := range g.fnOrder {
		if fn.def.Kind.IsExt() {
			continue
		}
		if err := g.emitFunc(&out, fn); err != nil {
			return "", fmt.Errorf("%s: %w", fn.name, err)
		}
	}
	if err := g.emitMain(&out); err != nil {
		return "", err
	}
	return out.String(), nil
}

const sizeOfProto = "til_I64 til_size_of(const til_Type til_T)"

func (g *gen) emitPrelude(out *bytes.Buffer) {
	out.WriteString("/* Generated by tilc. */\n")
	out.WriteString("#include <stdio.h>\n")
	out.WriteString("#include <stdlib.h>\n")
	out.WriteString("#include <string.h>\n\n")
	out.WriteString("typedef unsigned char til_U8;\n")
	out.WriteString("typedef long long til_I64;\n")
	out.WriteString("typedef struct til_Bool { til_U8 data; } til_Bool;\n")
	out.WriteString("#define true ((til_Bool){1})\n")
	out.WriteString("#define false ((til_Bool){0})\n")
	out.WriteString("typedef void* til_Dynamic;\n")
	out.WriteString("typedef const char* til_Type;\n\n")
}

// collect indexes the definitions of the merged body.
func (g *gen) collect() error {
	for _, st := range g.body.Params {
		if st.Kind != ast.NDeclaration || st.Init() == nil {
			continue
		}
		name, init := st.Decl.Name, st.Init()
		switch init.Kind {
		case ast.NFuncDef:
			if init.Func.IsSig() {
				g.sigs[name] = init.Func
				g.sigOrder = append(g.sigOrder, name)
				continue
			}
			g.addFunc(name, cName(name), init.Func)
		case ast.NStructDef:
			g.structs[name] = init.Struct
			g.typeOrder = append(g.typeOrder, name)
			for _, m := range init.Struct.Members {
				if !m.IsMut {
					g.associated(name, m, init.Struct.Defaults[m.Name])
				}
			}
			g.namespace(name, &init.Struct.NS)
		case ast.NEnumDef:
			g.enums[name] = init.Enum
			g.typeOrder = append(g.typeOrder, name)
			g.namespace(name, &init.Enum.NS)
		default:
			if name != "_" {
				g.globals[name] = st.Decl.Type
			}
		}
	}
	// Aliases of functions, f2 := f, call the original.
	for _, st := range g.body.Params {
		if st.Kind != ast.NDeclaration || st.Init() == nil || st.Init().Kind != ast.NIdentifier {
			continue
		}
		if fn, ok := g.funcs[st.Init().CombinedName()]; ok && st.Decl.Type.Kind == ast.TFunction {
			g.funcs[st.Decl.Name] = fn
			delete(g.globals, st.Decl.Name)
		}
	}
	var top []*ast.Expr
	for _, st := range g.body.Params {
		if st.Kind == ast.NDeclaration && st.Init() != nil {
			switch st.Init().Kind {
			case ast.NFuncDef, ast.NStructDef, ast.NEnumDef:
				continue
			}
		}
		top = append(top, st)
	}
	g.nested("til_top", top)
	for i := 0; i < len(g.fnOrder); i++ {
		fn := g.fnOrder[i]
		g.nested(fn.cname, fn.def.Body)
	}
	for name, t := range g.globals {
		if t.IsInfer() || t.Kind != ast.TCustom && t.Kind != ast.TMulti {
			return fmt.Errorf("global '%s' has no storable type", name)
		}
	}
	return nil
}

func (g *gen) addFunc(name, cname string, fd *ast.FuncDef) *fnInfo {
	if fn, ok := g.byDef[fd]; ok {
		return fn
	}
	fn := &fnInfo{name: name, cname: cname, def: fd}
	g.byDef[fd] = fn
	if name != "" {
		g.funcs[name] = fn
	}
	g.fnOrder = append(g.fnOrder, fn)
	return fn
}

func (g *gen) associated(typ string, m ast.Declaration, val *ast.Expr) {
	full := names.Qualify(typ, m.Name)
	if val != nil && val.Kind == ast.NFuncDef {
		g.addFunc(full, cName(full), val.Func)
		return
	}
	if val != nil {
		g.consts = append(g.consts, constInfo{name: full, typ: m.Type, val: val})
	}
}

func (g *gen) namespace(typ string, ns *ast.Namespace) {
	for _, m := range ns.Members {
		g.associated(typ, m, ns.Defaults[m.Name])
	}
}

// nested hoists local and inline function definitions to C top-level
// functions named after their owner.
func (g *gen) nested(owner string, stmts []*ast.Expr) {
	lambdas := 0
	for _, st := range stmts {
		ast.Inspect(st, func(e *ast.Expr) bool {
			if e.Kind == ast.NDeclaration && e.Init() != nil && e.Init().Kind == ast.NFuncDef {
				if !e.Init().Func.IsSig() {
					g.addFunc("", owner+"_"+e.Decl.Name, e.Init().Func)
				}
				return false
			}
			if e.Kind == ast.NFuncDef {
				lambdas++
				g.addFunc("", fmt.Sprintf("%s_lambda%d", owner, lambdas), e.Func)
				return false
			}
			return true
		})
	}
}

func (g *gen) isConst(name string) (constInfo, bool) {
	for _, c := range g.consts {
		if c.name == name {
			return c, true
		}
	}
	return constInfo{}, false
}

// emitConstants emits storage for globals and associated constants, the
// per-type size constants and the size_of dispatcher.
func (g *gen) emitConstants(out *bytes.Buffer) error {
	for _, c := range g.consts {
		if c.typ.IsInfer() {
			return fmt.Errorf("constant '%s' has no resolved type", c.name)
		}
		fmt.Fprintf(out, "static %s %s;\n", cType(c.typ), cName(c.name))
	}
	for _, st := range g.body.Params {
		if st.Kind != ast.NDeclaration {
			continue
		}
		if t, ok := g.globals[st.Decl.Name]; ok {
			fmt.Fprintf(out, "static %s %s;\n", cType(t), cName(st.Decl.Name))
		}
	}
	for _, name := range g.typeOrder {
		fmt.Fprintf(out, "static const til_I64 %s = sizeof(%s);\n", cName("size_of_"+name), cName(name))
	}
	out.WriteString("\n")

	out.WriteString(sizeOfProto + " {\n")
	for _, p := range ast.PrimitiveNames {
		fmt.Fprintf(out, "    if (strcmp(til_T, %s) == 0) return sizeof(%s);\n", cTypeNameLit(p), cName(p))
	}
	for _, name := range g.typeOrder {
		fmt.Fprintf(out, "    if (strcmp(til_T, %s) == 0) return %s;\n", cTypeNameLit(name), cName("size_of_"+name))
	}
	out.WriteString("    fprintf(stderr, \"size_of: unknown type '%s'\\n\", til_T);\n")
	out.WriteString("    exit(1);\n")
	out.WriteString("}\n\n")
	return nil
}

func (g *gen) emitFunc(out *bytes.Buffer, fn *fnInfo) error {
	f := g.newFnEmitter(fn)
	f.depth = 1
	f.pushScope()
	for _, a := range fn.def.Args {
		if a.Name != "" && a.Name != "_" {
			f.declare(a.Name, &local{typ: a.Type, ptr: isPointerParam(a)})
		}
	}
	if err := f.block(fn.def.Body, false); err != nil {
		return err
	}
	if fn.def.Throwing() && !endsInExit(fn.def.Body) {
		f.line("return 0;")
	}
	out.WriteString(cSignature(fn.cname, fn.def))
	out.WriteString(" {\n")
	out.Write(f.b.Bytes())
	out.WriteString("}\n\n")
	return nil
}

// emitMain emits the C entry point: associated constants, then every
// top-level statement in order, then the main proc when the mode needs one.
func (g *gen) emitMain(out *bytes.Buffer) error {
	f := g.newFnEmitter(nil)
	f.depth = 1
	f.pushScope()
	f.line("(void)argc;")
	f.line("(void)argv;")
	for _, c := range g.consts {
		v, err := f.expr(c.val)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		f.line("%s = %s;", cName(c.name), v)
	}

	var stmts []*ast.Expr
	for _, st := range g.body.Params {
		if st.Kind == ast.NDeclaration && st.Decl.Name != "_" {
			if _, ok := g.globals[st.Decl.Name]; !ok {
				continue
			}
		}
		if st.Kind == ast.NFCall && st.IsCallTo("import") {
			continue
		}
		stmts = append(stmts, st)
	}
	if g.opts.CallMain {
		if fn, ok := g.funcs["main"]; ok {
			stmts = append(stmts, ast.NewCall(g.body.Pos, ast.NewIdent(g.body.Pos, "main"), nil,
				ast.FCallInfo{IsBang: fn.def.Throwing()}))
		}
	}
	if err := f.block(stmts, false); err != nil {
		return err
	}
	f.line("return 0;")

	out.WriteString("int main(int argc, char** argv) {\n")
	out.Write(f.b.Bytes())
	out.WriteString("}\n")
	return nil
}
