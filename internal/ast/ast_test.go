package ast

import (
	"testing"

	"tilc/internal/source"
)

func TestChainAndCallee(t *testing.T) {
	pos := source.Pos{Line: 1, Col: 1}
	call := NewCall(pos, NewIdent(pos, "a", "b", "len"), []*Expr{NewNumber(pos, "1")}, FCallInfo{DoesThrow: true})
	if got := call.CalleeName(); got != "a.b.len" {
		t.Fatalf("CalleeName = %q", got)
	}
	if len(call.Args()) != 1 || call.Args()[0].Value != "1" {
		t.Fatalf("Args = %+v", call.Args())
	}
	chain := call.Callee().Chain()
	if len(chain) != 3 || chain[2] != "len" {
		t.Fatalf("Chain = %v", chain)
	}
}

func TestParseTypeName(t *testing.T) {
	cases := []struct {
		in   string
		want ValueType
	}{
		{in: "I64", want: I64},
		{in: "proc", want: Function(FTProc)},
		{in: "struct", want: TypeOfDef(TStructDef)},
		{in: "..Str", want: Multi("Str")},
		{in: InferName, want: Infer},
	}
	for _, c := range cases {
		if got := ParseTypeName(c.in); got != c.want {
			t.Fatalf("ParseTypeName(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
	if !Infer.IsInfer() || I64.IsInfer() {
		t.Fatalf("IsInfer mismatch")
	}
}

func TestSigDetection(t *testing.T) {
	sig := &FuncDef{Kind: FTFunc, Args: []Declaration{{Type: I64}}, Returns: []ValueType{I64}}
	if !sig.IsSig() {
		t.Fatalf("nameless empty func must be a signature")
	}
	named := &FuncDef{Kind: FTFunc, Args: []Declaration{{Name: "a", Type: I64}}}
	if named.IsSig() {
		t.Fatalf("named params are not a signature")
	}
	braced := &FuncDef{Kind: FTFunc, Args: []Declaration{{Type: I64}, {Type: I64}}, Returns: []ValueType{I64}, HasBody: true}
	if !braced.IsSig() {
		t.Fatalf("nameless params with empty braces must be a signature")
	}
	empty := &FuncDef{Kind: FTProc, HasBody: true}
	if empty.IsSig() {
		t.Fatalf("an empty function without params is not a signature")
	}
	bare := &FuncDef{Kind: FTProc}
	if !bare.IsSig() {
		t.Fatalf("a parameterless definition without braces is a signature")
	}
	ext := &FuncDef{Kind: FTFuncExt}
	if ext.IsSig() {
		t.Fatalf("external functions are not signatures")
	}
}

func TestCloneIsDeep(t *testing.T) {
	pos := source.Pos{Line: 3, Col: 4}
	fn := &Expr{Kind: NFuncDef, Pos: pos, Func: &FuncDef{
		Kind: FTProc,
		Args: []Declaration{{Name: "x", Type: I64}},
		Body: []*Expr{NewCall(pos, NewIdent(pos, "f"), nil, FCallInfo{})},
	}}
	c := Clone(fn)
	c.Func.Args[0].Name = "y"
	c.Func.Body[0].Params[0].Value = "g"
	if fn.Func.Args[0].Name != "x" || fn.Func.Body[0].CalleeName() != "f" {
		t.Fatalf("clone shares state with original")
	}
	if Format(Clone(fn)) != Format(fn) {
		t.Fatalf("clone formats differently")
	}
}

func TestEnumHelpers(t *testing.T) {
	i64 := I64
	e := &EnumDef{Variants: []Variant{{Name: "None"}, {Name: "Some", Payload: &i64}}}
	if e.VariantPos("Some") != 1 || e.VariantPos("Nope") != -1 || !e.HasPayloads() {
		t.Fatalf("enum helpers broken")
	}
}
