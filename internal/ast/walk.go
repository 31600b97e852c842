package ast

import (
	"fmt"
	"sort"
	"strings"
)

// Inspect visits e and its descendants in source order, including function
// bodies and struct/enum member values. Returning false skips the children.
func Inspect(e *Expr, fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, p := range e.Params {
		Inspect(p, fn)
	}
	if e.Func != nil {
		for _, a := range e.Func.Args {
			Inspect(a.Default, fn)
		}
		for _, s := range e.Func.Body {
			Inspect(s, fn)
		}
	}
	if e.Struct != nil {
		for _, m := range e.Struct.Members {
			Inspect(e.Struct.Defaults[m.Name], fn)
		}
		inspectNS(&e.Struct.NS, fn)
	}
	if e.Enum != nil {
		inspectNS(&e.Enum.NS, fn)
	}
}

func inspectNS(ns *Namespace, fn func(*Expr) bool) {
	for _, m := range ns.Members {
		Inspect(ns.Defaults[m.Name], fn)
	}
}

// Format renders e as an indented tree. Two trees format identically iff
// they are structurally equal, which the idempotence tests rely on.
func Format(e *Expr) string {
	var b strings.Builder
	format(&b, e, 0)
	return b.String()
}

func format(b *strings.Builder, e *Expr, depth int) {
	ind := strings.Repeat("  ", depth)
	if e == nil {
		b.WriteString(ind + "<nil>\n")
		return
	}
	fmt.Fprintf(b, "%s%s", ind, e.Kind)
	switch e.Kind {
	case NLiteral, NIdentifier, NNamedArg, NAssignment:
		fmt.Fprintf(b, " %q", e.Value)
	case NFCall:
		if e.Call.DoesThrow {
			b.WriteString(" ?")
		}
		if e.Call.IsBang {
			b.WriteString(" !")
		}
	case NDeclaration:
		d := e.Decl
		fmt.Fprintf(b, " %s:%s mut=%v copy=%v own=%v", d.Name, d.Type, d.IsMut, d.IsCopy, d.IsOwn)
	case NPattern:
		fmt.Fprintf(b, " %s(%s)", e.Pattern.VariantName, e.Pattern.BindingVar)
	case NForIn:
		fmt.Fprintf(b, " %s", e.VarType)
	}
	b.WriteString("\n")
	if e.Func != nil {
		f := e.Func
		fmt.Fprintf(b, "%s  %s(", ind, f.Kind)
		for i, a := range f.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s:%s", a.Name, a.Type)
			if a.IsMut {
				b.WriteString(" mut")
			}
			if a.Default != nil {
				b.WriteString(" =")
			}
		}
		fmt.Fprintf(b, ") returns %v throws %v\n", f.Returns, f.Throws)
		for _, a := range f.Args {
			if a.Default != nil {
				format(b, a.Default, depth+2)
			}
		}
		for _, s := range f.Body {
			format(b, s, depth+1)
		}
	}
	if e.Struct != nil {
		for _, m := range e.Struct.Members {
			fmt.Fprintf(b, "%s  member %s:%s mut=%v\n", ind, m.Name, m.Type, m.IsMut)
			if v := e.Struct.Defaults[m.Name]; v != nil {
				format(b, v, depth+2)
			}
		}
		formatNS(b, &e.Struct.NS, depth)
	}
	if e.Enum != nil {
		for _, v := range e.Enum.Variants {
			if v.Payload != nil {
				fmt.Fprintf(b, "%s  variant %s:%s\n", ind, v.Name, *v.Payload)
			} else {
				fmt.Fprintf(b, "%s  variant %s\n", ind, v.Name)
			}
		}
		formatNS(b, &e.Enum.NS, depth)
	}
	for _, p := range e.Params {
		format(b, p, depth+1)
	}
}

func formatNS(b *strings.Builder, ns *Namespace, depth int) {
	ind := strings.Repeat("  ", depth)
	names := make([]string, 0, len(ns.Members))
	for _, m := range ns.Members {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	for _, n := range names {
		m, v, _ := ns.Get(n)
		fmt.Fprintf(b, "%s  ns %s:%s\n", ind, m.Name, m.Type)
		if v != nil {
			format(b, v, depth+2)
		}
	}
}
