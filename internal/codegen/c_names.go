package codegen

import (
	"fmt"
	"sync/atomic"

	"tilc/internal/ast"
	"tilc/internal/names"
)

// tempSeq numbers generated temporaries. It is shared by every emission in
// the process and never reset, so two generated files never reuse a name.
var tempSeq atomic.Int64

func nextTemp() int64 { return tempSeq.Add(1) }

func cTemp(prefix string, id int64) string { return fmt.Sprintf("_%s_%d", prefix, id) }

// cName mangles a language-level name, flattening "T.m" to "til_T_m".
func cName(name string) string { return names.Mangle(name) }

// cType maps a value type to its C spelling. Variadic parameters travel as
// pointers to the runtime Array.
func cType(t ast.ValueType) string {
	switch t.Kind {
	case ast.TCustom:
		if t.IsVoid() {
			return "void"
		}
		return cName(t.Name)
	case ast.TMulti:
		return cName("Array") + "*"
	}
	return "void"
}

// cParam renders one parameter. mut parameters are passed by pointer,
// except Dynamic ones, which already are pointers.
func cParam(a ast.Declaration) string {
	var typ string
	switch {
	case a.Type.Kind == ast.TMulti:
		typ = cType(a.Type)
	case a.IsMut && a.Type == ast.Dynamic:
		typ = cType(a.Type)
	case a.IsMut:
		typ = cType(a.Type) + "*"
	case a.IsCopy || a.IsOwn:
		typ = cType(a.Type)
	default:
		typ = "const " + cType(a.Type)
	}
	if a.Name == "" {
		return typ
	}
	return typ + " " + cName(a.Name)
}

// isPointerParam reports whether the parameter is a C pointer that has to be
// dereferenced to reach the value.
func isPointerParam(a ast.Declaration) bool {
	return a.Type.Kind == ast.TMulti || (a.IsMut && a.Type != ast.Dynamic)
}

// cSignature renders the C declarator of a function. Throwing functions
// return an int status and receive the result and one slot per thrown type
// through out pointers: (R* _ret, E1* _err1, ..., params).
func cSignature(cname string, fd *ast.FuncDef) string {
	var params []string
	ret := "void"
	if len(fd.Returns) > 0 {
		ret = cType(fd.Returns[0])
	}
	if fd.Throwing() {
		if len(fd.Returns) > 0 {
			params = append(params, ret+"* _ret")
		}
		for i, t := range fd.Throws {
			params = append(params, fmt.Sprintf("%s* _err%d", cType(t), i+1))
		}
		ret = "int"
	}
	for _, a := range fd.Args {
		params = append(params, cParam(a))
	}
	return fmt.Sprintf("%s %s(%s)", ret, cname, joinParams(params))
}

// cSigTypedef renders a function pointer typedef for a signature type.
func cSigTypedef(name string, fd *ast.FuncDef) string {
	return "typedef " + cSignature("(*"+cName(name)+")", fd) + ";"
}

func joinParams(ps []string) string {
	if len(ps) == 0 {
		return "void"
	}
	out := ps[0]
	for _, p := range ps[1:] {
		out += ", " + p
	}
	return out
}
