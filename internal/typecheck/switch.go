package typecheck

import (
	"tilc/internal/ast"
	"tilc/internal/names"
	"tilc/internal/scope"
)

// switchState accumulates what the cases of one switch cover.
type switchState struct {
	typ        ast.ValueType
	enum       *ast.EnumDef
	enumName   string
	hasDefault bool
	covered    map[string]bool
}

func (c *checker) checkSwitch(s *ast.Expr) {
	t := c.checkExpr(s.Params[0], valueUsed)
	s.VarType = t
	sw := &switchState{typ: t, covered: map[string]bool{}}
	if t.Kind == ast.TCustom && !t.IsInfer() {
		if en, ok := c.st.LookupEnum(t.Name); ok {
			sw.enum, sw.enumName = en, t.Name
		} else if sd, ok := c.st.LookupStruct(t.Name); ok {
			if _, _, ok := sd.Associated("eq"); !ok {
				c.errorf(s.Params[0].Pos, "Switch on struct '%s' requires an 'eq' method", t.Name)
			}
		}
	}

	var branches []func()
	for i := 1; i+1 < len(s.Params); i += 2 {
		pat, body := s.Params[i], s.Params[i+1]
		bind, bindType := c.checkCase(sw, pat)
		branches = append(branches, func() {
			c.pushFrame(scope.Block)
			if bind != "" && bind != "_" {
				c.st.Insert(bind, &scope.Symbol{Type: bindType, Pos: pat.Pos, Used: true})
			}
			c.checkStmts(body.Params)
			c.popFrame()
		})
	}

	exhaustive := sw.hasDefault
	if sw.enum != nil && !sw.hasDefault {
		exhaustive = true
		for _, v := range sw.enum.Variants {
			if !sw.covered[v.Name] {
				exhaustive = false
				c.errorf(s.Pos, "Switch is missing case for variant '%s'", v.Name)
			}
		}
	}
	c.exhaustive[s] = exhaustive
	c.st.Branches(exhaustive, branches...)
}

// checkCase checks one case pattern and returns the payload binding it
// introduces, if any.
func (c *checker) checkCase(sw *switchState, pat *ast.Expr) (string, ast.ValueType) {
	switch pat.Kind {
	case ast.NDefaultCase:
		if sw.hasDefault {
			c.errorf(pat.Pos, "Duplicate default case in switch")
		}
		sw.hasDefault = true
		return "", ast.Infer
	case ast.NPattern:
		typ, variant, _ := names.SplitQualified(pat.Pattern.VariantName)
		v, ok := c.caseVariant(sw, pat, typ, variant)
		if !ok {
			return pat.Pattern.BindingVar, ast.Infer
		}
		if v.Payload == nil {
			c.errorf(pat.Pos, "Enum variant %s does not take a payload", pat.Pattern.VariantName)
			return pat.Pattern.BindingVar, ast.Infer
		}
		return pat.Pattern.BindingVar, *v.Payload
	case ast.NRange:
		lo := c.checkExpr(pat.Params[0], valueUsed)
		hi := c.checkExpr(pat.Params[1], valueUsed)
		if sw.typ.IsInfer() {
			return "", ast.Infer
		}
		if !ast.IsIntegral(sw.typ.Name) || sw.typ.Kind != ast.TCustom {
			c.errorf(pat.Pos, "Range patterns are only supported for integer types")
			return "", ast.Infer
		}
		for _, b := range []struct {
			t ast.ValueType
			e *ast.Expr
		}{{lo, pat.Params[0]}, {hi, pat.Params[1]}} {
			if !c.assignable(sw.typ, b.t, b.e) {
				c.errorf(b.e.Pos, "Switch case type '%s' doesn't match switch expression type '%s'", b.t, sw.typ)
			}
		}
		return "", ast.Infer
	case ast.NIdentifier:
		if parts := pat.Chain(); len(parts) == 2 {
			if _, isEnum := c.st.LookupEnum(parts[0]); isEnum {
				c.caseVariant(sw, pat, parts[0], parts[1])
				return "", ast.Infer
			}
		}
	}
	got := c.checkExpr(pat, valueUsed)
	if !sw.typ.IsInfer() && !c.assignable(sw.typ, got, pat) {
		c.errorf(pat.Pos, "Switch case type '%s' doesn't match switch expression type '%s'", got, sw.typ)
	}
	return "", ast.Infer
}

// caseVariant validates an E.V case against the scrutinee and records the
// variant as covered.
func (c *checker) caseVariant(sw *switchState, pat *ast.Expr, typ, variant string) (ast.Variant, bool) {
	en, ok := c.st.LookupEnum(typ)
	if !ok {
		c.errorf(pat.Pos, "Undefined enum '%s'", typ)
		return ast.Variant{}, false
	}
	if sw.typ.IsInfer() {
		return ast.Variant{}, false
	}
	if sw.enum == nil || sw.enumName != typ {
		c.errorf(pat.Pos, "Mismatched enum type '%s', expected '%s'.", typ, sw.typ)
		return ast.Variant{}, false
	}
	v, ok := en.Variant(variant)
	if !ok {
		c.errorf(pat.Pos, "Enum '%s' has no variant '%s'", typ, variant)
		return ast.Variant{}, false
	}
	if sw.covered[variant] {
		c.errorf(pat.Pos, "Duplicate case for variant '%s'", variant)
	}
	sw.covered[variant] = true
	return v, true
}
