package ast

// Clone returns a deep copy of e.
func Clone(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	c := *e
	c.Params = cloneList(e.Params)
	if e.Decl != nil {
		d := cloneDecl(*e.Decl)
		c.Decl = &d
	}
	if e.Func != nil {
		c.Func = CloneFunc(e.Func)
	}
	if e.Struct != nil {
		c.Struct = &StructDef{
			Members:  cloneDecls(e.Struct.Members),
			Defaults: cloneDefaults(e.Struct.Defaults),
			NS:       cloneNS(e.Struct.NS),
		}
	}
	if e.Enum != nil {
		vs := make([]Variant, len(e.Enum.Variants))
		for i, v := range e.Enum.Variants {
			vs[i] = Variant{Name: v.Name}
			if v.Payload != nil {
				p := *v.Payload
				vs[i].Payload = &p
			}
		}
		c.Enum = &EnumDef{Variants: vs, NS: cloneNS(e.Enum.NS)}
	}
	return &c
}

func CloneFunc(f *FuncDef) *FuncDef {
	return &FuncDef{
		Kind:    f.Kind,
		Args:    cloneDecls(f.Args),
		Returns: append([]ValueType(nil), f.Returns...),
		Throws:  append([]ValueType(nil), f.Throws...),
		Body:    cloneList(f.Body),
		HasBody: f.HasBody,
	}
}

func cloneList(xs []*Expr) []*Expr {
	if xs == nil {
		return nil
	}
	out := make([]*Expr, len(xs))
	for i, x := range xs {
		out[i] = Clone(x)
	}
	return out
}

func cloneDecl(d Declaration) Declaration {
	d.Default = Clone(d.Default)
	return d
}

func cloneDecls(ds []Declaration) []Declaration {
	if ds == nil {
		return nil
	}
	out := make([]Declaration, len(ds))
	for i, d := range ds {
		out[i] = cloneDecl(d)
	}
	return out
}

func cloneDefaults(m map[string]*Expr) map[string]*Expr {
	if m == nil {
		return nil
	}
	out := make(map[string]*Expr, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

func cloneNS(ns Namespace) Namespace {
	return Namespace{Members: cloneDecls(ns.Members), Defaults: cloneDefaults(ns.Defaults)}
}
