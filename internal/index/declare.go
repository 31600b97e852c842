// Package index registers the declarations of a body into the scope stack
// before any use is examined, and follows imports.
package index

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/names"
	"tilc/internal/scope"
)

// ShallowType infers the type of an initializer without looking at scope:
// literals, definitions and signatures. Anything else is ast.Infer.
func ShallowType(init *ast.Expr) ast.ValueType {
	if init == nil {
		return ast.Infer
	}
	switch init.Kind {
	case ast.NLiteral:
		switch init.Lit {
		case ast.LitNumber:
			return ast.I64
		case ast.LitStr:
			return ast.Str
		case ast.LitBool:
			return ast.Bool
		}
	case ast.NFuncDef:
		if init.Func.IsSig() {
			return ast.TypeOfDef(ast.TFuncSig)
		}
		return ast.Function(init.Func.Kind)
	case ast.NStructDef:
		return ast.TypeOfDef(ast.TStructDef)
	case ast.NEnumDef:
		return ast.TypeOfDef(ast.TEnumDef)
	}
	return ast.Infer
}

// shallowMismatch reports an annotation that contradicts the initializer
// shape. Integer literals may initialize U8.
func shallowMismatch(annot, inferred ast.ValueType) bool {
	if annot.IsInfer() || inferred.IsInfer() || annot == inferred {
		return false
	}
	if inferred.Kind == ast.TFunction && annot.Kind == ast.TCustom && !ast.IsCopyExempt(annot.Name) {
		// Bound to a signature name; the typer compares the signatures.
		return false
	}
	return !(inferred == ast.I64 && annot == ast.U8)
}

// Declare registers one Declaration node into the innermost frame. A node
// already registered is accepted silently.
func Declare(st *scope.Stack, e *ast.Expr) error {
	d := e.Decl
	init := e.Init()
	if d.Name == "_" {
		return nil
	}
	if prev, ok := st.LookupLocal(d.Name); ok {
		if prev.Origin == e {
			return nil
		}
		return fmt.Errorf("'%s' already declared", d.Name)
	}
	inferred := ShallowType(init)
	if shallowMismatch(d.Type, inferred) {
		return fmt.Errorf("'%s' declared of type '%s' but initialized to type '%s'.", d.Name, d.Type, inferred)
	}
	typ := d.Type
	if typ.IsInfer() {
		typ = inferred
	}
	st.Insert(d.Name, &scope.Symbol{
		Type:            typ,
		IsMut:           d.IsMut,
		IsCopy:          d.IsCopy,
		IsOwn:           d.IsOwn,
		IsComptimeConst: !d.IsMut && init != nil && init.Kind != ast.NFCall,
		Pos:             e.Pos,
		Origin:          e,
	})
	if init == nil {
		return nil
	}
	switch init.Kind {
	case ast.NFuncDef:
		st.InsertFunc(d.Name, init.Func)
	case ast.NStructDef:
		st.InsertStruct(d.Name, init.Struct)
		for _, m := range init.Struct.Members {
			if !m.IsMut {
				declareAssociated(st, d.Name, m, init.Struct.Defaults[m.Name], e)
			}
		}
		declareNamespace(st, d.Name, &init.Struct.NS, e)
	case ast.NEnumDef:
		st.InsertEnum(d.Name, init.Enum)
		declareNamespace(st, d.Name, &init.Enum.NS, e)
	}
	return nil
}

func declareNamespace(st *scope.Stack, typ string, ns *ast.Namespace, origin *ast.Expr) {
	for _, m := range ns.Members {
		declareAssociated(st, typ, m, ns.Defaults[m.Name], origin)
	}
}

// declareAssociated registers T.member so it is discoverable at the scope
// of T itself.
func declareAssociated(st *scope.Stack, typ string, m ast.Declaration, val *ast.Expr, origin *ast.Expr) {
	name := names.Qualify(typ, m.Name)
	t := m.Type
	if t.IsInfer() {
		t = ShallowType(val)
	}
	// The origin of T.member is its own value so inference looks there.
	decl := ast.NewDecl(origin.Pos, ast.Declaration{Name: name, Type: m.Type}, val)
	st.Insert(name, &scope.Symbol{Type: t, IsComptimeConst: true, Pos: origin.Pos, Origin: decl})
	if val != nil && val.Kind == ast.NFuncDef {
		st.InsertFunc(name, val.Func)
	}
}

// DeclareAll registers every top-level Declaration of body in the current
// frame of st and returns one error per declaration it rejected.
func DeclareAll(st *scope.Stack, body *ast.Expr) []error {
	var errs []error
	for _, s := range body.Params {
		if s.Kind != ast.NDeclaration {
			continue
		}
		if err := Declare(st, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
