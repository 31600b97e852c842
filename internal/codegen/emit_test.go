package codegen

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/mode"
	"tilc/internal/parser"
	"tilc/internal/scavenger"
	"tilc/internal/scope"
	"tilc/internal/source"
	"tilc/internal/stdlib"
	"tilc/internal/typecheck"
)

type coreImporter struct{}

func (coreImporter) Import(path string) (*ast.Program, *diag.Bag, error) {
	src, ok := stdlib.Files()[path]
	if !ok {
		return nil, nil, errors.New("not found")
	}
	prog, diags := parser.Parse(source.NewFile(path, src))
	return prog, diags, nil
}

func emit(t *testing.T, src string) string {
	t.Helper()
	prog, pd := parser.Parse(source.NewFile("main.til", src))
	if pd.HasErrors() {
		t.Fatalf("parse: %+v", pd.Items)
	}
	m, err := mode.Lookup(prog.Mode)
	if err != nil {
		t.Fatal(err)
	}
	ctx := scope.NewContext("main.til", m)
	if d := index.Init(ctx, prog.Body, coreImporter{}); d.HasErrors() {
		t.Fatalf("init: %+v", d.Items)
	}
	if d := typecheck.Check(ctx, prog.Body); d.HasErrors() {
		var msgs []string
		for _, it := range d.Items {
			msgs = append(msgs, it.String())
		}
		t.Fatalf("check: %v", msgs)
	}
	res, d := scavenger.Scavenge("main.til", m, index.Merge(ctx, prog.Body))
	if d.HasErrors() {
		t.Fatalf("scavenge: %+v", d.Items)
	}
	out, err := EmitC(res.Body, EmitOptions{Path: "main.til", CallMain: m.NeedsMainProc})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return out
}

// funcBody returns the definition of the C function whose declarator
// starts with decl.
func funcBody(t *testing.T, out, decl string) string {
	t.Helper()
	i := strings.Index(out, decl+" {\n")
	if i < 0 {
		t.Fatalf("missing definition %q in:\n%s", decl, out)
	}
	rest := out[i:]
	if j := strings.Index(rest, "\n}\n"); j >= 0 {
		rest = rest[:j+3]
	}
	return rest
}

func wantContains(t *testing.T, out string, subs ...string) {
	t.Helper()
	for _, s := range subs {
		if !strings.Contains(out, s) {
			t.Fatalf("output is missing %q:\n%s", s, out)
		}
	}
}

func TestVariadicCallIsPacked(t *testing.T) {
	out := emit(t, `mode cli
print := proc(args: Str..) {
    n := args.len()
    println(to_str(n))
}
main := proc() {
    print("a", "b", "c")
}
`)
	main := funcBody(t, out, "void til_main(void)")
	if n := strings.Count(main, "til_Array_new("); n != 1 {
		t.Fatalf("expected 1 Array_new, got %d:\n%s", n, main)
	}
	if n := strings.Count(main, "til_Array_set("); n != 3 {
		t.Fatalf("expected 3 Array_set, got %d:\n%s", n, main)
	}
	if n := strings.Count(main, "til_Array_delete("); n != 1 {
		t.Fatalf("expected 1 Array_delete, got %d:\n%s", n, main)
	}
	wantContains(t, main, "til_print(&_arr_", `til_Array_new(&_arr_`, `"Str", 3) != 0`)
	if strings.Index(main, "til_print(&") > strings.Index(main, "til_Array_delete(") {
		t.Fatalf("array deleted before the call:\n%s", main)
	}
	// The variadic parameter is a pointer; by-value uses dereference it.
	wantContains(t, funcBody(t, out, "void til_print(til_Array* til_args)"), "til_Array_len((*til_args))")
}

func TestTaggedUnionEnum(t *testing.T) {
	out := emit(t, `mode cli
Opt := enum { None, Some(I64) }
main := proc() {
    o := Opt.Some(3)
    switch o {
    case Opt.Some(v):
        println(to_str(v))
    case Opt.None:
        println("none")
    }
}
`)
	wantContains(t, out,
		"typedef enum {\n    til_Opt_None = 0,\n    til_Opt_Some = 1,\n} til_Opt_Tag;",
		"typedef union {\n    til_I64 Some;\n} til_Opt_Payload;",
		"struct til_Opt {\n    til_Opt_Tag tag;\n    til_Opt_Payload payload;\n};",
		"static inline til_Opt til_Opt_make_None(void)",
		"static inline til_Opt til_Opt_make_Some(til_I64 value)",
	)
	main := funcBody(t, out, "void til_main(void)")
	wantContains(t, main, "til_Opt_make_Some(3)", ".tag == til_Opt_Some", "til_I64 til_v = _sw_", ".payload.Some;")
}

func TestSimpleEnumAndStructLayout(t *testing.T) {
	out := emit(t, `mode cli
Color := enum { Red, Green }
Inner := struct {
    mut v: I64 = 0
}
Outer := struct {
    mut inner: Inner = Inner()
    mut c: Color = Color.Red
}
main := proc() {
    o := Outer()
    println(to_str(o.inner.v))
}
`)
	wantContains(t, out,
		"typedef enum {\n    til_Color_Red = 0,\n    til_Color_Green = 1,\n} til_Color;",
		"typedef struct til_Outer til_Outer;",
		"struct til_Outer {\n    til_Inner til_inner;\n    til_Color til_c;\n};",
	)
	if strings.Index(out, "struct til_Inner {") > strings.Index(out, "struct til_Outer {") {
		t.Fatal("Inner must be defined before Outer")
	}
	wantContains(t, funcBody(t, out, "void til_main(void)"),
		"til_Outer til_o = ((til_Outer){.til_inner = ((til_Inner){.til_v = 0}), .til_c = til_Color_make_Red()});",
		"til_o.til_inner.til_v",
	)
}

func TestSectionOrder(t *testing.T) {
	out := emit(t, `mode cli
P := struct {
    mut x: I64 = 1
}
main := proc() {
    p := P()
    println(to_str(p.x))
}
`)
	order := []string{
		"typedef long long til_I64;",
		"typedef struct til_P til_P;",
		"struct til_P {",
		"til_I64 til_size_of(const til_Type til_T);",
		"void til_main(void);",
		`#include "ext.c"`,
		"static const til_I64 til_size_of_P = sizeof(til_P);",
		"til_I64 til_size_of(const til_Type til_T) {",
		"void til_main(void) {",
		"int main(int argc, char** argv) {",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		if i < 0 {
			t.Fatalf("missing %q:\n%s", s, out)
		}
		if i < last {
			t.Fatalf("%q is out of order:\n%s", s, out)
		}
		last = i
	}
	wantContains(t, funcBody(t, out, "int main(int argc, char** argv)"), "til_main();", "return 0;")
}

func TestThrowingCallLowering(t *testing.T) {
	out := emit(t, `mode cli
DivByZero := struct {
    mut msg: Str = ""
}
safe_div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero(msg="div by zero")
    }
    return a
}
twice := func(a: I64) returns I64 throws DivByZero {
    x := safe_div(a, a)?
    return add(x, x)
}
main := proc() {
    y := twice(3)?
    catch (e: DivByZero) {
        println(e.msg)
    }
    z := twice(y)!
    println(to_str(z))
}
`)
	wantContains(t, out, "int til_safe_div(til_I64* _ret, til_DivByZero* _err1, const til_I64 til_a, const til_I64 til_b);")

	div := funcBody(t, out, "int til_safe_div(til_I64* _ret, til_DivByZero* _err1, const til_I64 til_a, const til_I64 til_b)")
	wantContains(t, div, "*_err1 = ((til_DivByZero){.til_msg = til_Str_from_literal(\"div by zero\")});", "return 1;", "*_ret = til_a;", "return 0;")

	tw := funcBody(t, out, "int til_twice(til_I64* _ret, til_DivByZero* _err1, const til_I64 til_a)")
	wantContains(t, tw, "= til_safe_div(&_ret_", "*_err1 = _err1_", "return 1;")

	main := funcBody(t, out, "void til_main(void)")
	wantContains(t, main, "til_DivByZero til_e = _err1_", "til_println(&_arr_", "if (_status_", "til_panic(")
	if strings.Contains(main, "return 1;") {
		t.Fatalf("main does not throw:\n%s", main)
	}
}

func TestDefersRunOnEveryExit(t *testing.T) {
	out := emit(t, `mode cli
f := proc(a: I64) returns I64 {
    defer println("bye")
    if eq(a, 0) {
        return 1
    }
    return a
}
main := proc() {
    println(to_str(f(2)))
}
`)
	body := funcBody(t, out, "til_I64 til_f(const til_I64 til_a)")
	if n := strings.Count(body, "til_println("); n != 2 {
		t.Fatalf("expected the defer at both returns, got %d:\n%s", n, body)
	}
	wantContains(t, body, "til_I64 _result_")
}

func TestLoopsAndRanges(t *testing.T) {
	out := emit(t, `mode cli
classify := func(n: I64) returns Str {
    switch n {
    case 0..10:
        return "small"
    case 42:
        return "answer"
    default:
        return "big"
    }
}
main := proc() {
    mut i := 0
    while lt(i, 3) {
        i = add(i, 1)
        if eq(i, 2) {
            continue
        }
    }
    for j in 0..i {
        println(classify(j))
    }
}
`)
	wantContains(t, funcBody(t, out, "til_Str til_classify(const til_I64 til_n)"),
		">= 0 && _sw_", "< 10", "== 42", "} else {")
	wantContains(t, funcBody(t, out, "void til_main(void)"),
		"while ((til_lt(til_i, 3)).data) {",
		"continue;",
		"for (til_I64 til_j = 0; til_j < _end_",
	)
}

func TestFunctionValues(t *testing.T) {
	out := emit(t, `mode cli
BinOp := func(I64, I64) returns I64
plus := func(a: I64, b: I64) returns I64 {
    return add(a, b)
}
apply := func(f: BinOp, a: I64, b: I64) returns I64 {
    return f(a, b)
}
main := proc() {
    println(to_str(apply(plus, 1, 2)))
}
`)
	wantContains(t, out, "typedef til_I64 (*til_BinOp)(const til_I64, const til_I64);")
	wantContains(t, funcBody(t, out, "til_I64 til_apply(const til_BinOp til_f, const til_I64 til_a, const til_I64 til_b)"),
		"return til_f(til_a, til_b);")
	wantContains(t, funcBody(t, out, "void til_main(void)"), "til_apply(til_plus, 1, 2)")
}

func TestMutParamsArePointers(t *testing.T) {
	out := emit(t, `mode cli
P := struct {
    mut x: I64 = 0
}
bump := proc(mut p: P) {
    p.x = add(p.x, 1)
}
main := proc() {
    mut p := P()
    bump(p)
    println(to_str(p.x))
}
`)
	wantContains(t, funcBody(t, out, "void til_bump(til_P* til_p)"), "til_p->til_x = til_add(til_p->til_x, 1);")
	wantContains(t, funcBody(t, out, "void til_main(void)"), "til_bump(&til_p);")
}

func TestUnsupportedConstructs(t *testing.T) {
	body := ast.NewBody(source.Pos{}, []*ast.Expr{
		ast.NewDecl(source.Pos{}, ast.Declaration{Name: "xs", Type: ast.I64},
			&ast.Expr{Kind: ast.NLiteral, Lit: ast.LitList}),
	})
	if _, err := EmitC(body, EmitOptions{Path: "main.til"}); err == nil || !strings.Contains(err.Error(), "list literals are not supported yet") {
		t.Fatalf("expected list literal error, got %v", err)
	}
}

func TestTempsAreUnique(t *testing.T) {
	a, b := nextTemp(), nextTemp()
	if a == b || cTemp("arr", a) == cTemp("arr", b) {
		t.Fatalf("temps collide: %d %d", a, b)
	}
	if got := cTemp("status", 7); got != "_status_7" {
		t.Fatalf("cTemp = %q", got)
	}
}

func TestGeneratedProgramRuns(t *testing.T) {
	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("cc not found")
	}
	csrc := emit(t, `mode cli
Opt := enum { None, Some(I64) }
DivByZero := struct {
    mut msg: Str = ""
}
safe_div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero(msg="div by zero")
    }
    return a
}
unwrap := func(o: Opt) returns I64 {
    switch o {
    case Opt.Some(v):
        return v
    case Opt.None:
        return 0
    }
}
main := proc() {
    defer println("done")
    x := safe_div(7, 0)?
    catch (e: DivByZero) {
        println("caught ", e.msg)
    }
    mut total := unwrap(Opt.Some(x))
    for i in 0..4 {
        total = add(total, i)
    }
    println("total ", to_str(total))
}
`)
	out := runC(t, cc, csrc)
	want := "caught div by zero\ntotal 6\ndone\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

// runC compiles csrc together with the runtime and returns what the
// program prints.
func runC(t *testing.T, cc, csrc string) string {
	t.Helper()
	dir := t.TempDir()
	cPath := filepath.Join(dir, "main.c")
	binPath := filepath.Join(dir, "a.out")
	if err := os.WriteFile(cPath, []byte(csrc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, stdlib.ExtCName), []byte(stdlib.ExtC()), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command(cc, "-std=c11", "-O0", "-g", cPath, "-o", binPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("cc failed: %v\n%s\n%s", err, string(out), csrc)
	}
	out, err := exec.Command(binPath).CombinedOutput()
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, string(out))
	}
	return string(out)
}

const payloadInStruct = `mode cli
Inner := enum { A, B(I64) }
S := struct {
    mut i: Inner = Inner.A
}
Outer := enum { X(S), Y }
main := proc() {
    o := Outer.X(S(i=Inner.B(5)))
    switch o {
    case Outer.X(s):
        inner := s.i
        switch inner {
        case Inner.B(n):
            println("b ", to_str(n))
        case Inner.A:
            println("a")
        }
    case Outer.Y:
        println("y")
    }
}
`

func TestPayloadEnumInsideStruct(t *testing.T) {
	out := emit(t, payloadInStruct)
	order := []string{"struct til_Inner {", "struct til_S {", "struct til_Outer {"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		if i < 0 {
			t.Fatalf("missing %q:\n%s", s, out)
		}
		if i < last {
			t.Fatalf("%q is defined before what it contains:\n%s", s, out)
		}
		last = i
	}
	wantContains(t, out, "struct til_S {\n    til_Inner til_i;\n};", "typedef union {\n    til_S X;\n} til_Outer_Payload;")

	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("cc not found")
	}
	if got := runC(t, cc, out); got != "b 5\n" {
		t.Fatalf("output = %q", got)
	}
}

const nestedThrow = `mode cli
DivByZero := struct {
    mut msg: Str = ""
}
safe_div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero(msg="div by zero")
    }
    return a
}
main := proc() {
    mut flag := false
    flag = true
    if flag {
        x := safe_div(1, 0)?
        println("inner ", to_str(x))
    }
    catch (e: DivByZero) {
        println("caught ", e.msg)
    }
    println("after")
}
`

func TestCatchInEnclosingBlock(t *testing.T) {
	out := emit(t, nestedThrow)
	main := funcBody(t, out, "void til_main(void)")
	wantContains(t, main, "if (_status_", "til_DivByZero til_e = _err1_")
	if strings.Contains(main, "uncaught error 'DivByZero'") {
		t.Fatalf("the error is caught in main:\n%s", main)
	}

	cc, err := exec.LookPath("cc")
	if err != nil {
		t.Skip("cc not found")
	}
	want := "caught div by zero\ninner 0\nafter\n"
	if got := runC(t, cc, out); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestArgumentsEvaluateLeftToRight(t *testing.T) {
	out := emit(t, `mode cli
DivByZero := struct {
    mut msg: Str = ""
}
twice := func(a: I64) returns I64 throws DivByZero {
    if eq(a, 0) {
        throw DivByZero(msg="zero")
    }
    return add(a, a)
}
show := proc(a: I64, b: I64) {
    println(to_str(add(a, b)))
}
main := proc() {
    show(add(1, 2), twice(3)?)
    catch (e: DivByZero) {
        println(e.msg)
    }
}
`)
	main := funcBody(t, out, "void til_main(void)")
	spill := strings.Index(main, "= til_add(1, 2);")
	call := strings.Index(main, "= til_twice(")
	if spill < 0 || call < 0 || spill > call {
		t.Fatalf("add(1, 2) must be evaluated before twice(3):\n%s", main)
	}
	wantContains(t, main, "til_I64 _arg_", "til_show(_arg_")
}
