package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"tilc/internal/ast"
	"tilc/internal/names"
)

// byValueDeps lists the nominal types t embeds by value: struct fields and
// enum payloads whose type is a struct or a payload-carrying enum. Simple
// enums, signatures and primitives are complete before any of them.
func (g *gen) byValueDeps(name string) []string {
	var types []ast.ValueType
	if sd, ok := g.structs[name]; ok {
		for _, m := range sd.Fields() {
			types = append(types, m.Type)
		}
	}
	if en, ok := g.enums[name]; ok {
		for _, v := range en.Variants {
			if v.Payload != nil {
				types = append(types, *v.Payload)
			}
		}
	}
	var out []string
	for _, t := range types {
		if t.Kind == ast.TCustom && g.isAggregate(t.Name) {
			out = append(out, t.Name)
		}
	}
	return out
}

// isAggregate reports whether name is emitted as a C struct.
func (g *gen) isAggregate(name string) bool {
	if _, ok := g.structs[name]; ok {
		return true
	}
	en, ok := g.enums[name]
	return ok && en.HasPayloads()
}

// sortAggregates orders structs and payload enums so that every type comes
// after the types it embeds. Ties keep declaration order.
func (g *gen) sortAggregates() ([]string, error) {
	var all []string
	rank := map[string]int{}
	for _, name := range g.typeOrder {
		if g.isAggregate(name) {
			rank[name] = len(all)
			all = append(all, name)
		}
	}

	deps := map[string]map[string]struct{}{}
	indeg := map[string]int{}
	for _, name := range all {
		deps[name] = map[string]struct{}{}
		indeg[name] = 0
	}
	for _, from := range all {
		for _, to := range g.byValueDeps(from) {
			if to == from {
				return nil, fmt.Errorf("type '%s' contains itself by value", from)
			}
			// Emit dependencies first: model the edge as to -> from.
			if _, ok := deps[to][from]; ok {
				continue
			}
			deps[to][from] = struct{}{}
			indeg[from]++
		}
	}

	var ready []string
	for _, name := range all {
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(all))
	for len(ready) > 0 {
		best := 0
		for i := range ready {
			if rank[ready[i]] < rank[ready[best]] {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, n)
		for m := range deps[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(order) != len(all) {
		var remain []string
		for _, name := range all {
			if indeg[name] > 0 {
				remain = append(remain, name)
			}
		}
		return nil, fmt.Errorf("cyclic by-value type dependency: %s", strings.Join(remain, ", "))
	}
	return order, nil
}

func emitForwardDecl(out *bytes.Buffer, name string) {
	fmt.Fprintf(out, "typedef struct %s %s;\n", cName(name), cName(name))
}

func emitStruct(out *bytes.Buffer, name string, sd *ast.StructDef) {
	fmt.Fprintf(out, "struct %s {\n", cName(name))
	fields := sd.Fields()
	if len(fields) == 0 {
		out.WriteString("    char _unused;\n")
	}
	for _, f := range fields {
		fmt.Fprintf(out, "    %s %s;\n", cType(f.Type), cName(f.Name))
	}
	out.WriteString("};\n\n")
}

// emitSimpleEnum emits an enum without payloads as a plain C enum. Tags
// follow declaration order.
func emitSimpleEnum(out *bytes.Buffer, name string, en *ast.EnumDef) {
	out.WriteString("typedef enum {\n")
	for i, v := range en.Variants {
		fmt.Fprintf(out, "    %s = %d,\n", variantTag(name, v.Name), i)
	}
	fmt.Fprintf(out, "} %s;\n\n", cName(name))
	for _, v := range en.Variants {
		fmt.Fprintf(out, "static inline %s %s(void) { return %s; }\n",
			cName(name), variantMaker(name, v.Name), variantTag(name, v.Name))
	}
	out.WriteString("\n")
}

// emitTaggedUnion emits a payload-carrying enum: the tag enum, a union
// holding one field per payload variant, the wrapper struct and one
// constructor per variant.
func emitTaggedUnion(out *bytes.Buffer, name string, en *ast.EnumDef) {
	cn := cName(name)
	out.WriteString("typedef enum {\n")
	for i, v := range en.Variants {
		fmt.Fprintf(out, "    %s = %d,\n", variantTag(name, v.Name), i)
	}
	fmt.Fprintf(out, "} %s_Tag;\n\n", cn)

	out.WriteString("typedef union {\n")
	for _, v := range en.Variants {
		if v.Payload != nil {
			fmt.Fprintf(out, "    %s %s;\n", cType(*v.Payload), v.Name)
		}
	}
	fmt.Fprintf(out, "} %s_Payload;\n\n", cn)

	fmt.Fprintf(out, "struct %s {\n", cn)
	fmt.Fprintf(out, "    %s_Tag tag;\n", cn)
	fmt.Fprintf(out, "    %s_Payload payload;\n", cn)
	out.WriteString("};\n\n")

	for _, v := range en.Variants {
		param := "void"
		if v.Payload != nil {
			param = cType(*v.Payload) + " value"
		}
		fmt.Fprintf(out, "static inline %s %s(%s) {\n", cn, variantMaker(name, v.Name), param)
		fmt.Fprintf(out, "    %s result = { .tag = %s };\n", cn, variantTag(name, v.Name))
		if v.Payload != nil {
			fmt.Fprintf(out, "    result.payload.%s = value;\n", v.Name)
		}
		out.WriteString("    return result;\n")
		out.WriteString("}\n\n")
	}
}

func variantTag(enum, variant string) string { return cName(names.Qualify(enum, variant)) }

func variantMaker(enum, variant string) string { return cName(enum + "_make_" + variant) }
