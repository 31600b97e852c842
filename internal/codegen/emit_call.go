package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"tilc/internal/ast"
	"tilc/internal/names"
)

type targetKind int

const (
	tFunc targetKind = iota
	tPointer
	tStruct
	tEnum
	tCast
)

// target is what a call resolves to once the checker has rewritten method
// calls and named arguments.
type target struct {
	kind  targetKind
	name  string // language-level name of the callee
	cname string // C expression to call
	def   *ast.FuncDef
	sd    *ast.StructDef
	enum  string
	vr    ast.Variant
}

func (f *fnEmitter) resolve(e *ast.Expr) (target, error) {
	callee := e.Callee()
	if callee == nil || callee.Kind != ast.NIdentifier {
		return target{}, fmt.Errorf("expected an identifier as callee")
	}
	name := callee.CombinedName()
	parts := callee.Chain()
	if name == "cast" {
		args := e.Args()
		if len(args) != 2 {
			return target{}, fmt.Errorf("cast expects a type and a value")
		}
		return target{kind: tCast, name: args[0].CombinedName()}, nil
	}
	if sd, ok := f.g.structs[name]; ok {
		return target{kind: tStruct, name: name, sd: sd}, nil
	}
	if len(parts) == 1 {
		if l := f.lookup(name); l != nil {
			if l.fn != nil {
				return target{kind: tFunc, name: name, cname: l.fn.cname, def: l.fn.def}, nil
			}
			if sig, ok := f.g.sigs[l.typ.Name]; ok && l.typ.Kind == ast.TCustom {
				v, _, err := f.path(parts)
				if err != nil {
					return target{}, err
				}
				return target{kind: tPointer, name: name, cname: v, def: sig}, nil
			}
		}
	}
	if fn, ok := f.g.funcs[name]; ok {
		return target{kind: tFunc, name: name, cname: fn.cname, def: fn.def}, nil
	}
	if len(parts) == 2 {
		if en, ok := f.g.enums[parts[0]]; ok {
			if v, ok := en.Variant(parts[1]); ok {
				return target{kind: tEnum, name: name, enum: parts[0], vr: v}, nil
			}
		}
	}
	// A field or global typed by a signature.
	if v, t, err := f.path(parts); err == nil && t.Kind == ast.TCustom {
		if sig, ok := f.g.sigs[t.Name]; ok {
			return target{kind: tPointer, name: name, cname: v, def: sig}, nil
		}
	}
	return target{}, fmt.Errorf("cannot resolve call to '%s'", name)
}

// call emits a call and returns its value, or "" for calls without one.
// Statements the call needs, variadic packing and error dispatch, are
// emitted before it.
func (f *fnEmitter) call(e *ast.Expr) (string, error) {
	if e.IsCallTo("import") {
		return "", nil
	}
	t, err := f.resolve(e)
	if err != nil {
		return "", err
	}
	args := e.Args()
	switch t.kind {
	case tCast:
		v, err := f.expr(args[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("((%s)(%s))", cType(ast.Custom(t.name)), v), nil
	case tStruct:
		return f.construct(t.name, t.sd, args)
	case tEnum:
		maker := variantMaker(t.enum, t.vr.Name)
		if t.vr.Payload == nil {
			return maker + "()", nil
		}
		if len(args) != 1 {
			return "", fmt.Errorf("enum constructor '%s' expects one payload", t.name)
		}
		v, err := f.expr(args[0])
		if err != nil {
			return "", err
		}
		return maker + "(" + v + ")", nil
	}

	fd := t.def
	vi := fd.VariadicIndex()
	fixed := args
	if vi >= 0 && len(args) > vi {
		fixed = args[:vi]
	}
	if len(fixed) > len(fd.Args) {
		return "", fmt.Errorf("too many arguments to '%s'", t.name)
	}
	vals, err := f.evalArgs(fixed, func(i int, a *ast.Expr) (string, error) {
		return f.arg(fd.Args[i], a)
	}, vi >= 0)
	if err != nil {
		return "", err
	}
	var arr string
	if vi >= 0 {
		var rest []*ast.Expr
		if len(args) > vi {
			rest = args[vi:]
		}
		if arr, err = f.packVariadic(fd.Args[vi].Type.Name, rest, e); err != nil {
			return "", err
		}
		vals = append(vals, "&"+arr)
	}

	if fd.Throwing() {
		return f.throwingCall(e, t, vals, arr)
	}
	c := fmt.Sprintf("%s(%s)", t.cname, strings.Join(vals, ", "))
	if arr == "" {
		return c, nil
	}
	v := ""
	if len(fd.Returns) > 0 {
		v = cTemp("v", nextTemp())
		f.line("%s %s = %s;", cType(fd.Returns[0]), v, c)
	} else {
		f.line("%s;", c)
	}
	f.line("%s(&%s);", cName("Array.delete"), arr)
	return v, nil
}

// throwingCall lowers a call to a throwing function:
//
//	R _ret_N = {0}; E _err1_N = {0};
//	int _status_N = f(&_ret_N, &_err1_N, args...);
//	if (_status_N == 1) { <handler for E> }
//
// and returns _ret_N.
func (f *fnEmitter) throwingCall(e *ast.Expr, t target, vals []string, arr string) (string, error) {
	fd := t.def
	id := nextTemp()
	var outs []string
	ret := ""
	if len(fd.Returns) > 0 {
		ret = cTemp("ret", id)
		f.line("%s %s = %s;", cType(fd.Returns[0]), ret, cZero)
		outs = append(outs, "&"+ret)
	}
	errs := make([]string, len(fd.Throws))
	for k, et := range fd.Throws {
		errs[k] = cTemp(fmt.Sprintf("err%d", k+1), id)
		f.line("%s %s = %s;", cType(et), errs[k], cZero)
		outs = append(outs, "&"+errs[k])
	}
	status := cTemp("status", id)
	f.line("int %s = %s(%s);", status, t.cname, strings.Join(append(outs, vals...), ", "))
	if arr != "" {
		f.line("%s(&%s);", cName("Array.delete"), arr)
	}

	if e.Call.IsBang {
		f.line("if (%s != 0) {", status)
		f.depth++
		f.line("%s", cPanic(fmt.Sprintf("%s:%d:%d: '%s' failed", f.g.opts.Path, e.Pos.Line, e.Pos.Col, t.name)))
		f.depth--
		f.line("}")
		return ret, nil
	}
	for k, et := range fd.Throws {
		open := "if"
		if k > 0 {
			open = "} else if"
		}
		f.line("%s (%s == %d) {", open, status, k+1)
		f.depth++
		if err := f.handle(et.Name, errs[k], e); err != nil {
			return "", err
		}
		f.depth--
	}
	f.line("}")
	return ret, nil
}

// packVariadic collects the trailing arguments of a variadic call into a
// runtime Array and returns the name of the array temporary.
func (f *fnEmitter) packVariadic(elem string, args []*ast.Expr, site *ast.Expr) (string, error) {
	id := nextTemp()
	arr := cTemp("arr", id)
	allocErr := cTemp("alloc_err", id)
	f.line("%s %s;", cName("Array"), arr)
	f.line("%s %s = %s;", cName("BadAlloc"), allocErr, cZero)
	f.line("if (%s(&%s, &%s, %s, %d) != 0) {", cName("Array.new"), arr, allocErr, cTypeNameLit(elem), len(args))
	f.depth++
	if err := f.handle("BadAlloc", allocErr, site); err != nil {
		return "", err
	}
	f.depth--
	f.line("}")

	for i, a := range args {
		v, err := f.expr(a)
		if err != nil {
			return "", err
		}
		eid := nextTemp()
		el := cTemp("el", eid)
		indexErr := cTemp("index_err", eid)
		f.line("%s %s = %s;", cType(ast.Custom(elem)), el, v)
		f.line("%s %s = %s;", cName("IndexOutOfBoundsError"), indexErr, cZero)
		f.line("if (%s(&%s, &%s, %d, &%s) != 0) {", cName("Array.set"), indexErr, arr, i, el)
		f.depth++
		if err := f.handle("IndexOutOfBoundsError", indexErr, site); err != nil {
			return "", err
		}
		f.depth--
		f.line("}")
	}
	return arr, nil
}

// construct renders a struct literal. Fields not given take their default.
func (f *fnEmitter) construct(name string, sd *ast.StructDef, args []*ast.Expr) (string, error) {
	given := map[string]*ast.Expr{}
	for _, a := range args {
		if a.Kind != ast.NNamedArg {
			return "", fmt.Errorf("struct '%s' can only be constructed with named arguments", name)
		}
		given[a.Value] = a.Init()
	}
	fields := sd.Fields()
	vals := make([]*ast.Expr, len(fields))
	for i, m := range fields {
		vals[i] = given[m.Name]
		if vals[i] == nil {
			vals[i] = sd.Defaults[m.Name]
		}
		if vals[i] == nil {
			return "", fmt.Errorf("missing value for field '%s' of struct '%s'", m.Name, name)
		}
	}
	vs, err := f.evalArgs(vals, func(_ int, a *ast.Expr) (string, error) { return f.expr(a) }, false)
	if err != nil {
		return "", err
	}
	var inits []string
	for i, m := range fields {
		inits = append(inits, "."+cName(m.Name)+" = "+vs[i])
	}
	if len(inits) == 0 {
		return fmt.Sprintf("((%s){0})", cName(name)), nil
	}
	return fmt.Sprintf("((%s){%s})", cName(name), strings.Join(inits, ", ")), nil
}

// evalArgs renders args so that they run left to right. Statements hoisted
// out of an argument would run before the arguments preceding it, and C
// leaves the order inside a call open, so every argument before the last
// one that hoists or calls is stored in a temporary when it calls anything.
// tail reports that more hoisted statements follow the arguments.
func (f *fnEmitter) evalArgs(args []*ast.Expr, render func(i int, a *ast.Expr) (string, error), tail bool) ([]string, error) {
	vals := make([]string, len(args))
	pres := make([][]byte, len(args))
	last := -1
	saved := f.b
	for i, a := range args {
		f.b = &bytes.Buffer{}
		v, err := render(i, a)
		pres[i] = f.b.Bytes()
		f.b = saved
		if err != nil {
			return nil, err
		}
		vals[i] = v
		if len(pres[i]) > 0 || callsInline(a, v) {
			last = i
		}
	}
	if tail {
		last = len(args)
	}
	for i, a := range args {
		f.b.Write(pres[i])
		if i >= last || !callsInline(a, vals[i]) {
			continue
		}
		t, err := f.typeOf(a)
		if err != nil {
			return nil, err
		}
		tmp := cTemp("arg", nextTemp())
		f.line("%s %s = %s;", cType(t), tmp, vals[i])
		vals[i] = tmp
	}
	return vals, nil
}

// callsInline reports whether the rendered argument v of a still performs
// a call when evaluated. Hoisted results live in temporaries.
func callsInline(a *ast.Expr, v string) bool {
	if a.Kind == ast.NFuncDef || strings.HasPrefix(v, "_") || strings.HasPrefix(v, "&_") {
		return false
	}
	found := false
	ast.Inspect(a, func(e *ast.Expr) bool {
		if e.Kind == ast.NFCall {
			found = true
		}
		return !found && e.Kind != ast.NFuncDef
	})
	return found
}

// arg renders an argument for parameter p.
func (f *fnEmitter) arg(p ast.Declaration, a *ast.Expr) (string, error) {
	switch {
	case p.Type == ast.TypeT:
		return cTypeNameLit(a.CombinedName()), nil
	case p.Type == ast.Dynamic:
		t, err := f.typeOf(a)
		if err != nil {
			return "", err
		}
		if t == ast.Dynamic {
			return f.expr(a)
		}
		if a.Kind == ast.NIdentifier {
			return f.addressOf(a)
		}
		v, err := f.expr(a)
		if err != nil {
			return "", err
		}
		tmp := cTemp("dyn", nextTemp())
		f.line("%s %s = %s;", cType(t), tmp, v)
		return "&" + tmp, nil
	case p.IsMut:
		return f.addressOf(a)
	}
	return f.expr(a)
}

// addressOf renders a pointer to the place a names. A pointer parameter
// passed on as a whole is already one.
func (f *fnEmitter) addressOf(a *ast.Expr) (string, error) {
	if a.Kind != ast.NIdentifier {
		return "", fmt.Errorf("cannot take the address of a %s", a.Kind)
	}
	if len(a.Params) == 0 {
		if l := f.lookup(a.Value); l != nil && l.ptr {
			return cName(a.Value), nil
		}
	}
	lv, _, err := f.path(a.Chain())
	if err != nil {
		return "", err
	}
	return "&" + lv, nil
}

func (f *fnEmitter) expr(e *ast.Expr) (string, error) {
	switch e.Kind {
	case ast.NLiteral:
		return cLiteral(e)
	case ast.NIdentifier:
		v, _, err := f.path(e.Chain())
		return v, err
	case ast.NFCall:
		v, err := f.call(e)
		if err == nil && v == "" {
			err = fmt.Errorf("call to '%s' has no value", e.CalleeName())
		}
		return v, err
	case ast.NFuncDef:
		if fn, ok := f.g.byDef[e.Func]; ok {
			return fn.cname, nil
		}
		return "", fmt.Errorf("function definition was not hoisted")
	}
	return "", fmt.Errorf("cannot emit a %s expression", e.Kind)
}

// path renders a dotted name as a C expression and returns its type.
func (f *fnEmitter) path(parts []string) (string, ast.ValueType, error) {
	head := parts[0]
	var v string
	var t ast.ValueType
	rest := parts[1:]

	if l := f.lookup(head); l != nil {
		if l.fn != nil && len(rest) == 0 {
			return l.fn.cname, ast.Function(l.fn.def.Kind), nil
		}
		v, t = cName(head), l.typ
		if t.Kind == ast.TMulti {
			t = ast.Custom("Array")
		}
		if l.ptr {
			if len(rest) == 0 {
				return "(*" + v + ")", t, nil
			}
			ft, err := f.fieldType(t, rest[0])
			if err != nil {
				return "", ast.Infer, err
			}
			v, t = v+"->"+cName(rest[0]), ft
			rest = rest[1:]
		}
	} else if gt, ok := f.g.globals[head]; ok {
		v, t = cName(head), gt
	} else if fn, ok := f.g.funcs[strings.Join(parts, ".")]; ok {
		return fn.cname, ast.Function(fn.def.Kind), nil
	} else if len(rest) > 0 {
		full := names.Qualify(head, rest[0])
		if en, ok := f.g.enums[head]; ok {
			if _, ok := en.Variant(rest[0]); ok && len(rest) == 1 {
				return variantMaker(head, rest[0]) + "()", ast.Custom(head), nil
			}
		}
		c, ok := f.g.isConst(full)
		if !ok {
			return "", ast.Infer, fmt.Errorf("Undefined symbol '%s'", full)
		}
		v, t = cName(full), c.typ
		rest = rest[1:]
	} else {
		return "", ast.Infer, fmt.Errorf("Undefined symbol '%s'", head)
	}

	for _, field := range rest {
		ft, err := f.fieldType(t, field)
		if err != nil {
			return "", ast.Infer, err
		}
		v, t = v+"."+cName(field), ft
	}
	return v, t, nil
}

func (f *fnEmitter) fieldType(t ast.ValueType, field string) (ast.ValueType, error) {
	sd, ok := f.g.structs[t.Name]
	if !ok || t.Kind != ast.TCustom {
		return ast.Infer, fmt.Errorf("type '%s' has no field '%s'", t, field)
	}
	m, ok := sd.Member(field)
	if !ok || !m.IsMut {
		return ast.Infer, fmt.Errorf("struct '%s' has no field '%s'", t.Name, field)
	}
	if m.Type.Kind == ast.TMulti {
		return ast.Custom("Array"), nil
	}
	return m.Type, nil
}

// funcRef returns the function an identifier names, if it names one.
func (f *fnEmitter) funcRef(e *ast.Expr) *fnInfo {
	if len(e.Params) == 0 {
		if l := f.lookup(e.Value); l != nil {
			return l.fn
		}
	}
	return f.g.funcs[e.CombinedName()]
}

func (f *fnEmitter) typeOf(e *ast.Expr) (ast.ValueType, error) {
	switch e.Kind {
	case ast.NLiteral:
		switch e.Lit {
		case ast.LitNumber:
			return ast.I64, nil
		case ast.LitStr:
			return ast.Str, nil
		case ast.LitBool:
			return ast.Bool, nil
		}
		return ast.Infer, fmt.Errorf("list literals are not supported yet")
	case ast.NIdentifier:
		_, t, err := f.path(e.Chain())
		return t, err
	case ast.NFuncDef:
		return ast.Function(e.Func.Kind), nil
	case ast.NFCall:
		t, err := f.resolve(e)
		if err != nil {
			return ast.Infer, err
		}
		switch t.kind {
		case tCast, tStruct:
			return ast.Custom(t.name), nil
		case tEnum:
			return ast.Custom(t.enum), nil
		}
		if len(t.def.Returns) == 0 {
			return ast.Void, nil
		}
		return t.def.Returns[0], nil
	}
	return ast.Infer, fmt.Errorf("cannot determine the type of a %s", e.Kind)
}
