package codegen

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/stringlit"
)

// cLiteral renders a literal. Strings become runtime Str values; the
// boolean literals are the macros emitted in the prelude.
func cLiteral(e *ast.Expr) (string, error) {
	switch e.Lit {
	case ast.LitNumber:
		return e.Value, nil
	case ast.LitStr:
		return cStrLit(e.Value), nil
	case ast.LitBool:
		if e.Value == "true" {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("list literals are not supported yet")
}

func cStrLit(s string) string {
	return cName("Str_from_literal") + "(" + stringlit.CQuote(s) + ")"
}

// cTypeNameLit is how a Type argument travels at run time: the type name
// as a C string, which the size_of dispatcher understands.
func cTypeNameLit(name string) string { return stringlit.CQuote(name) }

// cCond turns an expression of type Bool into a C condition.
func cCond(v string) string { return "(" + v + ").data" }

func cPanic(msg string) string {
	return cName("panic") + "(" + cStrLit(msg) + ");"
}

// cZero is an initializer valid for scalars and aggregates alike.
const cZero = "{0}"
