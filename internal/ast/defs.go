package ast

// Declaration describes a binding, a parameter or a struct member.
type Declaration struct {
	Name   string
	Type   ValueType
	IsMut  bool
	IsCopy bool
	IsOwn  bool
	// Default is the default value of a parameter or member, if any.
	Default *Expr
}

type FuncDef struct {
	Kind    FunctionType
	Args    []Declaration
	Returns []ValueType
	Throws  []ValueType
	Body    []*Expr
	// HasBody is set when the definition was written with braces.
	HasBody bool
}

// IsSig reports whether the definition only describes a signature: an
// empty body and nameless parameters. Without parameters, empty braces
// make an empty function instead, so `main := proc() {}` stays callable.
func (f *FuncDef) IsSig() bool {
	if len(f.Body) != 0 || f.Kind.IsExt() {
		return false
	}
	if f.HasBody && len(f.Args) == 0 {
		return false
	}
	for _, a := range f.Args {
		if a.Name != "" {
			return false
		}
	}
	return true
}

func (f *FuncDef) Throwing() bool { return len(f.Throws) > 0 }

// VariadicIndex returns the index of the variadic parameter or -1.
func (f *FuncDef) VariadicIndex() int {
	for i, a := range f.Args {
		if a.Type.Kind == TMulti {
			return i
		}
	}
	return -1
}

func (f *FuncDef) ThrowIndex(name string) int {
	for i, t := range f.Throws {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// Namespace holds associated declarations reached as Type.name.
type Namespace struct {
	Members  []Declaration
	Defaults map[string]*Expr
}

func (ns *Namespace) Get(name string) (Declaration, *Expr, bool) {
	if ns == nil {
		return Declaration{}, nil, false
	}
	for _, m := range ns.Members {
		if m.Name == name {
			return m, ns.Defaults[name], true
		}
	}
	return Declaration{}, nil, false
}

type StructDef struct {
	Members  []Declaration
	Defaults map[string]*Expr
	NS       Namespace
}

// Member returns a member declared in the struct body.
func (s *StructDef) Member(name string) (Declaration, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Declaration{}, false
}

// Associated returns a non-mut member or a namespace member and its value.
func (s *StructDef) Associated(name string) (Declaration, *Expr, bool) {
	for _, m := range s.Members {
		if m.Name == name && !m.IsMut {
			return m, s.Defaults[name], true
		}
	}
	return s.NS.Get(name)
}

// Fields returns the mut members in declaration order.
func (s *StructDef) Fields() []Declaration {
	var out []Declaration
	for _, m := range s.Members {
		if m.IsMut {
			out = append(out, m)
		}
	}
	return out
}

// Method returns the function defined under name, if any.
func (s *StructDef) Method(name string) (*FuncDef, bool) {
	_, val, ok := s.Associated(name)
	if !ok || val == nil || val.Kind != NFuncDef {
		return nil, false
	}
	return val.Func, true
}

type Variant struct {
	Name    string
	Payload *ValueType
}

type EnumDef struct {
	Variants []Variant
	NS       Namespace
}

func (e *EnumDef) Variant(name string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantPos returns the declaration index of a variant or -1.
func (e *EnumDef) VariantPos(name string) int {
	for i, v := range e.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

func (e *EnumDef) HasPayloads() bool {
	for _, v := range e.Variants {
		if v.Payload != nil {
			return true
		}
	}
	return false
}

func (e *EnumDef) Method(name string) (*FuncDef, bool) {
	_, val, ok := e.NS.Get(name)
	if !ok || val == nil || val.Kind != NFuncDef {
		return nil, false
	}
	return val.Func, true
}
