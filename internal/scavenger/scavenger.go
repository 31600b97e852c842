// Package scavenger removes the functions and types a program can never
// reach, after type checking and before code generation.
package scavenger

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/mode"
	"tilc/internal/names"
)

// runtimeTypes are referenced by the C runtime and always retained.
var runtimeTypes = []string{"Str", "Array", "BadAlloc", "IndexOutOfBoundsError"}

// arrayMethods back variadic call lowering.
var arrayMethods = []string{"Array.new", "Array.set", "Array.get", "Array.delete", "Array.len"}

// Result is the pruned body and what was kept.
type Result struct {
	Body      *ast.Expr
	Reachable map[string]bool
	Types     map[string]bool
}

type scavenger struct {
	funcs   map[string]*ast.FuncDef
	structs map[string]*ast.StructDef
	enums   map[string]*ast.EnumDef
	sigs    map[string]bool

	reachable map[string]bool
	used      map[string]bool
	work      []string
	// switched are the struct types used as switch scrutinees.
	switched map[string]bool

	path   string
	diags  *diag.Bag
	failed bool
}

// Scavenge prunes a merged, type checked body compiled under root mode m.
// A call that cannot be traced to a definition stops the walk with a
// single scavenger diagnostic.
func Scavenge(path string, m mode.Mode, body *ast.Expr) (*Result, *diag.Bag) {
	s := &scavenger{
		funcs:     map[string]*ast.FuncDef{},
		structs:   map[string]*ast.StructDef{},
		enums:     map[string]*ast.EnumDef{},
		sigs:      map[string]bool{},
		reachable: map[string]bool{},
		used:      map[string]bool{},
		switched:  map[string]bool{},
		path:      path,
		diags:     &diag.Bag{},
	}
	for _, st := range body.Params {
		s.register(st)
	}
	for _, t := range runtimeTypes {
		s.markType(t)
	}
	s.roots(m, body)
	s.run()
	if s.failed {
		return nil, s.diags
	}
	return &Result{Body: s.rebuild(body), Reachable: s.reachable, Types: s.used}, s.diags
}

// register records every definition reachable by name, including local
// definitions nested in function bodies.
func (s *scavenger) register(e *ast.Expr) {
	ast.Inspect(e, func(n *ast.Expr) bool {
		if n.Kind != ast.NDeclaration || n.Init() == nil {
			return true
		}
		name, init := n.Decl.Name, n.Init()
		switch init.Kind {
		case ast.NFuncDef:
			if init.Func.IsSig() {
				s.sigs[name] = true
			} else if _, ok := s.funcs[name]; !ok {
				s.funcs[name] = init.Func
			}
		case ast.NStructDef:
			s.structs[name] = init.Struct
			for _, m := range init.Struct.Members {
				s.registerMember(name, m, init.Struct.Defaults[m.Name])
			}
			for _, m := range init.Struct.NS.Members {
				s.registerMember(name, m, init.Struct.NS.Defaults[m.Name])
			}
		case ast.NEnumDef:
			s.enums[name] = init.Enum
			for _, m := range init.Enum.NS.Members {
				s.registerMember(name, m, init.Enum.NS.Defaults[m.Name])
			}
		}
		return true
	})
}

func (s *scavenger) registerMember(typ string, m ast.Declaration, val *ast.Expr) {
	if val != nil && val.Kind == ast.NFuncDef {
		s.funcs[names.Qualify(typ, m.Name)] = val.Func
	}
}

func (s *scavenger) roots(m mode.Mode, body *ast.Expr) {
	if m.NeedsMainProc {
		s.markFunc("main")
	}
	for _, st := range body.Params {
		if st.Kind == ast.NDeclaration {
			init := st.Init()
			if init == nil {
				continue
			}
			switch init.Kind {
			case ast.NFuncDef, ast.NStructDef, ast.NEnumDef:
				continue
			}
			// Global initializers run before the program body.
			s.markValueType(st.Decl.Type)
			s.walk(init, nil)
			continue
		}
		if m.AllowsBaseCalls || m.AllowsBaseAnything {
			s.walk(st, nil)
		}
	}
}

func (s *scavenger) run() {
	for !s.failed {
		for len(s.work) > 0 && !s.failed {
			name := s.work[len(s.work)-1]
			s.work = s.work[:len(s.work)-1]
			s.process(name)
		}
		if s.failed {
			return
		}
		// The back end compares struct scrutinees with eq.
		for t := range s.switched {
			if sd, ok := s.structs[t]; ok {
				if _, ok := sd.Method("eq"); ok && !s.reachable[names.Qualify(t, "eq")] {
					s.markFunc(names.Qualify(t, "eq"))
				}
			}
		}
		if len(s.work) == 0 {
			return
		}
	}
}

func (s *scavenger) markFunc(name string) {
	if s.reachable[name] {
		return
	}
	s.reachable[name] = true
	s.work = append(s.work, name)
	if typ, _, ok := names.SplitQualified(name); ok {
		if _, isStruct := s.structs[typ]; isStruct {
			s.markType(typ)
		}
	}
}

func (s *scavenger) markValueType(t ast.ValueType) {
	switch t.Kind {
	case ast.TCustom:
		if !t.IsInfer() && !t.IsVoid() {
			s.markType(t.Name)
		}
	case ast.TMulti:
		s.markType(t.Name)
		s.markType("Array")
	}
}

// markType retains a type and whatever its layout depends on.
func (s *scavenger) markType(name string) {
	if s.used[name] {
		return
	}
	if s.sigs[name] {
		s.used[name] = true
		return
	}
	if sd, ok := s.structs[name]; ok {
		s.used[name] = true
		for _, m := range sd.Members {
			val := sd.Defaults[m.Name]
			if val != nil && val.Kind == ast.NFuncDef {
				continue
			}
			s.markValueType(m.Type)
			if val != nil {
				s.walk(val, nil)
			}
		}
		s.namespace(name, &sd.NS)
		return
	}
	if en, ok := s.enums[name]; ok {
		s.used[name] = true
		for _, v := range en.Variants {
			if v.Payload != nil {
				s.markValueType(*v.Payload)
			}
		}
		s.namespace(name, &en.NS)
	}
}

// namespace makes the members of a used type reachable.
func (s *scavenger) namespace(typ string, ns *ast.Namespace) {
	for _, m := range ns.Members {
		val := ns.Defaults[m.Name]
		switch {
		case val == nil:
		case val.Kind == ast.NFuncDef:
			s.markFunc(names.Qualify(typ, m.Name))
		default:
			s.walk(val, nil)
		}
	}
}

func (s *scavenger) process(name string) {
	fd, ok := s.funcs[name]
	if !ok {
		return
	}
	s.funcDef(fd)
}

func (s *scavenger) funcDef(fd *ast.FuncDef) {
	locals := map[string]bool{}
	for _, a := range fd.Args {
		s.markValueType(a.Type)
		if a.Type.Kind == ast.TMulti {
			for _, m := range arrayMethods {
				s.markFunc(m)
			}
		}
		if a.Name != "" {
			locals[a.Name] = true
		}
		if a.Default != nil {
			s.walk(a.Default, nil)
		}
	}
	for _, t := range fd.Returns {
		s.markValueType(t)
	}
	for _, t := range fd.Throws {
		s.markValueType(t)
	}
	if fd.Kind.IsExt() {
		return
	}
	for _, st := range fd.Body {
		s.walk(st, locals)
	}
}

// walk follows calls, references and types in e. locals holds the value
// names bound in the enclosing function.
func (s *scavenger) walk(e *ast.Expr, locals map[string]bool) {
	if e == nil || s.failed {
		return
	}
	if locals == nil {
		locals = map[string]bool{}
	}
	switch e.Kind {
	case ast.NFCall:
		s.call(e, locals)
		for _, a := range e.Args() {
			s.walk(a, locals)
		}
	case ast.NIdentifier:
		s.ref(e, locals)
	case ast.NDeclaration:
		locals[e.Decl.Name] = true
		s.markValueType(e.Decl.Type)
		if init := e.Init(); init != nil && init.Kind != ast.NStructDef && init.Kind != ast.NEnumDef {
			s.walk(init, locals)
		}
	case ast.NFuncDef:
		// Local and inline definitions are emitted with their enclosing function.
		s.funcDef(e.Func)
	case ast.NCatch:
		s.markType(e.Params[1].CombinedName())
		locals[e.Params[0].Value] = true
		s.walk(e.Params[2], locals)
	case ast.NForIn:
		locals[e.Params[0].Value] = true
		s.markValueType(e.VarType)
		s.walk(e.Params[1], locals)
		s.walk(e.Params[2], locals)
	case ast.NSwitch:
		if e.VarType.Kind == ast.TCustom && !e.VarType.IsInfer() {
			s.switched[e.VarType.Name] = true
		}
		s.walk(e.Params[0], locals)
		for i := 1; i+1 < len(e.Params); i += 2 {
			pat := e.Params[i]
			if pat.Kind == ast.NPattern {
				typ, _, _ := names.SplitQualified(pat.Pattern.VariantName)
				s.markType(typ)
				locals[pat.Pattern.BindingVar] = true
			} else {
				s.walk(pat, locals)
			}
			s.walk(e.Params[i+1], locals)
		}
	case ast.NAssignment:
		s.walk(e.Init(), locals)
	default:
		for _, p := range e.Params {
			s.walk(p, locals)
		}
	}
}

func (s *scavenger) call(e *ast.Expr, locals map[string]bool) {
	name := e.CalleeName()
	parts := e.Callee().Chain()
	switch {
	case name == "import" || name == "cast":
	case locals[parts[0]]:
		// Through a signature typed binding.
	case s.funcs[name] != nil:
		s.markFunc(name)
	case s.structs[name] != nil:
		s.markType(name)
	case len(parts) == 2 && s.enums[parts[0]] != nil:
		s.markType(parts[0])
	default:
		s.diags.Add(s.path, e.Pos.Line, e.Pos.Col, diag.Scavenger, fmt.Sprintf("no body found for '%s'", name))
		s.failed = true
	}
}

// ref handles identifiers in value position: function references,
// type names and enum values.
func (s *scavenger) ref(e *ast.Expr, locals map[string]bool) {
	parts := e.Chain()
	if locals[parts[0]] {
		return
	}
	if name := e.CombinedName(); s.funcs[name] != nil {
		s.markFunc(name)
		return
	}
	if s.structs[parts[0]] != nil || s.enums[parts[0]] != nil || s.sigs[parts[0]] {
		s.markType(parts[0])
	}
}

// rebuild keeps every statement except unreachable functions and unused
// types. Retained structs and enums lose their unreachable methods.
func (s *scavenger) rebuild(body *ast.Expr) *ast.Expr {
	out := make([]*ast.Expr, 0, len(body.Params))
	for _, st := range body.Params {
		init := st.Init()
		if st.Kind != ast.NDeclaration || init == nil {
			out = append(out, st)
			continue
		}
		name := st.Decl.Name
		switch init.Kind {
		case ast.NFuncDef:
			if (init.Func.IsSig() && s.used[name]) || s.reachable[name] {
				out = append(out, st)
			}
		case ast.NStructDef:
			if s.used[name] {
				out = append(out, s.pruneStruct(st))
			}
		case ast.NEnumDef:
			if s.used[name] {
				out = append(out, s.pruneEnum(st))
			}
		default:
			out = append(out, st)
		}
	}
	return ast.NewBody(body.Pos, out)
}

func (s *scavenger) pruneStruct(st *ast.Expr) *ast.Expr {
	name := st.Decl.Name
	sd := st.Init().Struct
	members, defaults := s.pruneMembers(name, sd.Members, sd.Defaults)
	nsMembers, nsDefaults := s.pruneMembers(name, sd.NS.Members, sd.NS.Defaults)
	init := *st.Init()
	init.Struct = &ast.StructDef{
		Members:  members,
		Defaults: defaults,
		NS:       ast.Namespace{Members: nsMembers, Defaults: nsDefaults},
	}
	decl := *st
	decl.Params = []*ast.Expr{&init}
	return &decl
}

func (s *scavenger) pruneEnum(st *ast.Expr) *ast.Expr {
	name := st.Decl.Name
	ed := st.Init().Enum
	nsMembers, nsDefaults := s.pruneMembers(name, ed.NS.Members, ed.NS.Defaults)
	init := *st.Init()
	init.Enum = &ast.EnumDef{
		Variants: ed.Variants,
		NS:       ast.Namespace{Members: nsMembers, Defaults: nsDefaults},
	}
	decl := *st
	decl.Params = []*ast.Expr{&init}
	return &decl
}

func (s *scavenger) pruneMembers(typ string, ms []ast.Declaration, defaults map[string]*ast.Expr) ([]ast.Declaration, map[string]*ast.Expr) {
	var out []ast.Declaration
	outDefaults := map[string]*ast.Expr{}
	for _, m := range ms {
		val := defaults[m.Name]
		if val != nil && val.Kind == ast.NFuncDef && !s.reachable[names.Qualify(typ, m.Name)] {
			continue
		}
		out = append(out, m)
		if val != nil {
			outDefaults[m.Name] = val
		}
	}
	return out, outDefaults
}
