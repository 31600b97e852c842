package typecheck

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/names"
	"tilc/internal/scope"
)

// Callee is the resolved target of a call.
type Callee struct {
	Kind CalleeKind
	// Name is the qualified lookup name: "f", "T.m", "Opt.Some" or "Point".
	Name string
	Def  *ast.FuncDef
	// Receiver is the prefix of a UFCS call that has not been rewritten yet.
	Receiver *ast.Expr
	Struct   *ast.StructDef
	Enum     *ast.EnumDef
	Variant  ast.Variant
}

type CalleeKind int

const (
	CallFunc CalleeKind = iota
	// CallPointer calls through a binding typed by a function signature.
	CallPointer
	CallStruct
	CallEnum
	CallCast
	CallImport
)

// ArrayType is the runtime type behind variadic parameters.
const ArrayType = "Array"

// methodTypeName maps a receiver type to the name its methods live under.
func methodTypeName(t ast.ValueType) string {
	if t.Kind == ast.TMulti {
		return ArrayType
	}
	return t.Name
}

// TypeOf computes the type of an expression from the scope stack without
// reporting diagnostics or rewriting anything.
func TypeOf(st *scope.Stack, e *ast.Expr) (ast.ValueType, error) {
	r := &resolver{st: st, visiting: map[*scope.Symbol]bool{}}
	return r.typeOf(e)
}

// ResolveCallee finds the target of a call the way the typer does, without
// rewriting the call.
func ResolveCallee(st *scope.Stack, call *ast.Expr) (Callee, error) {
	r := &resolver{st: st, visiting: map[*scope.Symbol]bool{}}
	return r.callee(call)
}

type resolver struct {
	st       *scope.Stack
	visiting map[*scope.Symbol]bool
}

// symbolType returns the type of a symbol and lazily infers bindings whose
// type is still ast.Infer from their initializer.
func (r *resolver) symbolType(sym *scope.Symbol) (ast.ValueType, error) {
	if !sym.Type.IsInfer() || sym.Origin == nil || sym.Origin.Kind != ast.NDeclaration {
		return sym.Type, nil
	}
	init := sym.Origin.Init()
	if init == nil || r.visiting[sym] {
		return ast.Infer, nil
	}
	r.visiting[sym] = true
	t, err := r.typeOf(init)
	delete(r.visiting, sym)
	if err != nil {
		return ast.Infer, err
	}
	if !t.IsInfer() {
		sym.Type = t
	}
	return t, nil
}

func (r *resolver) typeOf(e *ast.Expr) (ast.ValueType, error) {
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
		return r.identType(e)
	case ast.NFCall:
		return r.callType(e)
	case ast.NFuncDef:
		if e.Func.IsSig() {
			return ast.TypeOfDef(ast.TFuncSig), nil
		}
		return ast.Function(e.Func.Kind), nil
	case ast.NStructDef:
		return ast.TypeOfDef(ast.TStructDef), nil
	case ast.NEnumDef:
		return ast.TypeOfDef(ast.TEnumDef), nil
	case ast.NNamedArg:
		return r.typeOf(e.Init())
	}
	return ast.Infer, fmt.Errorf("expected expression, found %s", e.Kind)
}

// identType resolves plain names, associated names (T.m), enum values
// (E.V) and field chains (a.b.c).
func (r *resolver) identType(e *ast.Expr) (ast.ValueType, error) {
	parts := e.Chain()
	full := e.CombinedName()
	if sym, ok := r.st.Lookup(full); ok {
		return r.symbolType(sym)
	}
	if len(parts) == 2 {
		if en, ok := r.st.LookupEnum(parts[0]); ok {
			v, ok := en.Variant(parts[1])
			if !ok {
				return ast.Infer, fmt.Errorf("Enum '%s' has no variant '%s'", parts[0], parts[1])
			}
			if v.Payload != nil {
				return ast.Infer, fmt.Errorf("Enum variant %s requires a payload", full)
			}
			return ast.Custom(parts[0]), nil
		}
	}
	sym, ok := r.st.Lookup(parts[0])
	if !ok {
		return ast.Infer, fmt.Errorf("Undefined symbol '%s'", parts[0])
	}
	t, err := r.symbolType(sym)
	if err != nil {
		return ast.Infer, err
	}
	for i, field := range parts[1:] {
		next, err := r.fieldType(t, field)
		if err != nil {
			if i == 0 && t.Kind == ast.TType {
				return ast.Infer, fmt.Errorf("Undefined symbol '%s'", full)
			}
			return ast.Infer, err
		}
		t = next
	}
	return t, nil
}

func (r *resolver) fieldType(t ast.ValueType, field string) (ast.ValueType, error) {
	if t.Kind != ast.TCustom {
		return ast.Infer, fmt.Errorf("Type '%s' has no field '%s'", t, field)
	}
	sd, ok := r.st.LookupStruct(t.Name)
	if !ok {
		return ast.Infer, fmt.Errorf("Type '%s' has no field '%s'", t, field)
	}
	m, ok := sd.Member(field)
	if !ok || !m.IsMut {
		if sym, ok := r.st.Lookup(names.Qualify(t.Name, field)); ok {
			return r.symbolType(sym)
		}
		return ast.Infer, fmt.Errorf("Struct '%s' has no field '%s'", t.Name, field)
	}
	if m.Type.IsInfer() {
		return r.typeOf(sd.Defaults[field])
	}
	return m.Type, nil
}

func (r *resolver) callType(call *ast.Expr) (ast.ValueType, error) {
	cal, err := r.callee(call)
	if err != nil {
		return ast.Infer, err
	}
	switch cal.Kind {
	case CallStruct:
		return ast.Custom(cal.Name), nil
	case CallEnum:
		typ, _, _ := names.SplitQualified(cal.Name)
		return ast.Custom(typ), nil
	case CallCast:
		return ast.Custom(cal.Name), nil
	case CallImport:
		return ast.Void, nil
	}
	if len(cal.Def.Returns) == 0 {
		return ast.Void, nil
	}
	return cal.Def.Returns[0], nil
}

// callee resolves the target of call. Lookup order: builtins, the full
// name as a function, struct and enum constructors, signature typed
// bindings, then UFCS on the receiver type followed by free functions.
func (r *resolver) callee(call *ast.Expr) (Callee, error) {
	head := call.Callee()
	if head == nil || head.Kind != ast.NIdentifier {
		return Callee{}, fmt.Errorf("expected an identifier as callee")
	}
	name := head.CombinedName()
	parts := head.Chain()
	switch name {
	case "import":
		return Callee{Kind: CallImport, Name: name}, nil
	case "cast":
		args := call.Args()
		if len(args) != 2 || args[0].Kind != ast.NIdentifier {
			return Callee{}, fmt.Errorf("cast expects a type and a value: cast(Type, value)")
		}
		return Callee{Kind: CallCast, Name: args[0].CombinedName()}, nil
	}
	if sd, ok := r.st.LookupStruct(name); ok {
		return Callee{Kind: CallStruct, Name: name, Struct: sd}, nil
	}
	if fd, ok := r.st.LookupFunc(name); ok {
		return Callee{Kind: CallFunc, Name: name, Def: fd}, nil
	}
	if len(parts) == 2 {
		if en, ok := r.st.LookupEnum(parts[0]); ok {
			v, ok := en.Variant(parts[1])
			if !ok {
				if _, _, ok := en.NS.Get(parts[1]); !ok {
					return Callee{}, fmt.Errorf("Enum '%s' has no variant '%s'", parts[0], parts[1])
				}
				return Callee{}, fmt.Errorf("'%s' is not a function", name)
			}
			return Callee{Kind: CallEnum, Name: name, Enum: en, Variant: v}, nil
		}
	}
	if sym, ok := r.st.Lookup(name); ok {
		t, err := r.symbolType(sym)
		if err != nil {
			return Callee{}, err
		}
		if t.Kind == ast.TCustom {
			if sig, ok := r.st.LookupFunc(t.Name); ok && sig.IsSig() {
				return Callee{Kind: CallPointer, Name: name, Def: sig}, nil
			}
		}
		if len(parts) == 1 {
			return Callee{}, fmt.Errorf("'%s' of type '%s' is not a function", name, t)
		}
	}
	if len(parts) == 1 {
		return Callee{}, fmt.Errorf("Undefined function '%s'", name)
	}

	prefix := ast.NewChain(head.Pos, parts[:len(parts)-1])
	method := parts[len(parts)-1]
	if sym, ok := r.st.Lookup(prefix.CombinedName()); ok && sym.Type.Kind == ast.TType {
		return Callee{}, fmt.Errorf("Type '%s' has no method '%s'", prefix.CombinedName(), method)
	}
	recv, err := r.typeOf(prefix)
	if err != nil {
		return Callee{}, err
	}
	tn := methodTypeName(recv)
	if fd, ok := r.st.LookupFunc(names.Qualify(tn, method)); ok {
		return Callee{Kind: CallFunc, Name: names.Qualify(tn, method), Def: fd, Receiver: prefix}, nil
	}
	if fd, ok := r.st.LookupFunc(method); ok && len(fd.Args) > 0 && acceptsReceiver(fd.Args[0].Type, recv) {
		return Callee{Kind: CallFunc, Name: method, Def: fd, Receiver: prefix}, nil
	}
	return Callee{}, fmt.Errorf("Type '%s' has no method '%s'", recv, method)
}

func acceptsReceiver(param, recv ast.ValueType) bool {
	if param == recv || param == ast.Dynamic {
		return true
	}
	return recv.Kind == ast.TMulti && param.IsCustom(ArrayType)
}
