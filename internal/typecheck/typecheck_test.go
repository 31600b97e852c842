package typecheck

import (
	"errors"
	"strings"
	"testing"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/mode"
	"tilc/internal/parser"
	"tilc/internal/scope"
	"tilc/internal/source"
	"tilc/internal/stdlib"
)

type mapImporter map[string]string

func (m mapImporter) Import(path string) (*ast.Program, *diag.Bag, error) {
	src, ok := m[path]
	if !ok {
		src, ok = stdlib.Files()[path]
	}
	if !ok {
		return nil, nil, errors.New("not found")
	}
	prog, diags := parser.Parse(source.NewFile(path, src))
	return prog, diags, nil
}

func checkSrc(t *testing.T, src string) (*scope.Context, *ast.Expr, *diag.Bag) {
	t.Helper()
	prog, pd := parser.Parse(source.NewFile("main.til", src))
	if pd.HasErrors() {
		t.Fatalf("parse: %+v", pd.Items)
	}
	m, err := mode.Lookup(prog.Mode)
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	ctx := scope.NewContext("main.til", m)
	if d := index.Init(ctx, prog.Body, mapImporter{}); d.HasErrors() {
		t.Fatalf("init: %+v", d.Items)
	}
	return ctx, prog.Body, Check(ctx, prog.Body)
}

func wantMsg(t *testing.T, d *diag.Bag, substr string) {
	t.Helper()
	if !d.Contains(substr) {
		t.Fatalf("missing diagnostic %q in:\n%s", substr, dump(d))
	}
}

func wantClean(t *testing.T, d *diag.Bag) {
	t.Helper()
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s", dump(d))
	}
}

func dump(d *diag.Bag) string {
	var b strings.Builder
	diag.Print(&b, d)
	return b.String()
}

func findDecl(body *ast.Expr, name string) *ast.Expr {
	for _, s := range body.Params {
		if s.Kind == ast.NDeclaration && s.Decl.Name == name {
			return s
		}
	}
	return nil
}

const cleanProgram = `mode cli

Point := struct {
    mut x: I64 = 0
    mut y: I64 = 0
    sum := func(self: Point) returns I64 {
        return add(self.x, self.y)
    }
}

DivByZero := struct {
    mut msg: Str = ""
}

safe_div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero(msg="div by zero")
    }
    return a
}

Shape := enum { Dot, Circle(I64) }

area := func(s: Shape) returns I64 {
    switch s {
    case Shape.Dot:
        return 0
    case Shape.Circle(r):
        return mul(r, r)
    }
}

main := proc() {
    p := Point(x=1, y=2)
    total := p.sum()
    q := safe_div(total, 2)?
    catch (err: DivByZero) {
        println(err.msg)
    }
    mut big := area(Shape.Circle(q))
    big = add(big, 1)
    for i in 0..3 {
        big = add(big, i)
    }
    println("total", to_str(big))
}
`

func TestCleanProgram(t *testing.T) {
	_, body, d := checkSrc(t, cleanProgram)
	wantClean(t, d)
	main := findDecl(body, "main").Init().Func
	total := main.Body[1]
	if total.Decl.Type != ast.I64 {
		t.Fatalf("total resolved to %s", total.Decl.Type)
	}
	call := total.Init()
	if call.CalleeName() != "Point.sum" || call.Args()[0].Value != "p" {
		t.Fatalf("UFCS not rewritten: %s", ast.Format(call))
	}
	if fl := main.Body[6]; fl.Kind != ast.NForIn || fl.VarType != ast.I64 {
		t.Fatalf("for-in var type not resolved: %s", ast.Format(fl))
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	ctx, body, d := checkSrc(t, cleanProgram)
	wantClean(t, d)
	before := ast.Format(body)
	d2 := Check(ctx, body)
	wantClean(t, d2)
	if after := ast.Format(body); after != before {
		t.Fatalf("second run changed the tree:\n%s\n---\n%s", before, after)
	}
}

func TestEnumExhaustiveness(t *testing.T) {
	_, _, d := checkSrc(t, `mode lib
Color := enum { Red, Green, Blue }
name := func(c: Color) returns Str {
    switch c {
    case Color.Red:
        return "r"
    case Color.Green:
        return "g"
    }
}
`)
	wantMsg(t, d, "Switch is missing case for variant 'Blue'")
	if d.Contains("variant 'Red'") {
		t.Fatalf("covered variant reported:\n%s", dump(d))
	}
}

func TestSwitchCaseErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"duplicate default", "switch c {\n default:\n return 1\n default:\n return 2\n }", "Duplicate default case in switch"},
		{"duplicate variant", "switch c {\n case Color.Red:\n return 1\n case Color.Red:\n return 2\n default:\n return 3\n }", "Duplicate case for variant 'Red'"},
		{"wrong enum", "switch c {\n case Other.A:\n return 1\n default:\n return 2\n }", "Mismatched enum type 'Other', expected 'Color'."},
		{"range on enum", "switch c {\n case 1..3:\n return 1\n default:\n return 2\n }", "Range patterns are only supported for integer types"},
		{"payload binding", "switch c {\n case Color.Red(x):\n return 1\n default:\n return 2\n }", "Enum variant Color.Red does not take a payload"},
		{"literal type", "switch 3 {\n case \"a\":\n return 1\n default:\n return 2\n }", "Switch case type 'Str' doesn't match switch expression type 'I64'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, d := checkSrc(t, "mode lib\nColor := enum { Red, Green }\nOther := enum { A }\nf := func(c: Color) returns I64 {\n"+tc.body+"\n}\n")
			wantMsg(t, d, tc.want)
		})
	}
}

func TestThrows(t *testing.T) {
	const prelude = `mode lib
DivByZero := struct {
    mut msg: Str = ""
}
div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero()
    }
    return a
}
`
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"missing marker", "use := func() returns I64 {\n x := div(1, 0)\n return x\n}", "Function 'div' throws DivByZero but call is missing '?'"},
		{"marker on non throwing", "use := func() returns I64 {\n x := add(1, 0)?\n return x\n}", "Function 'add' does not throw, remove the '?'"},
		{"undeclared", "use := func() returns I64 {\n x := div(1, 0)?\n return x\n}", "Function 'use' throws 'DivByZero' but it is not declared in its throws"},
		{"never thrown", "use := func() returns I64 throws DivByZero {\n return 1\n}", "Function 'use' declares that it throws 'DivByZero' but never throws it"},
		{"catch without throw", "use := func() returns I64 {\n catch (e: DivByZero) {\n }\n return 1\n}", "Catch for 'DivByZero' is not preceded by a call or throw that can throw it"},
		{"unreachable", "use := func() returns I64 {\n return 1\n x := 2\n}", "Unreachable code after 'return'"},
		{"missing return", "use := func(b: Bool) returns I64 {\n if b {\n return 1\n }\n}", "Function 'use' returns I64 but not every path returns a value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, d := checkSrc(t, prelude+tc.src+"\n")
			wantMsg(t, d, tc.want)
		})
	}

	t.Run("caught and propagated", func(t *testing.T) {
		_, _, d := checkSrc(t, prelude+`caught := func() returns I64 {
    x := div(4, 2)?
    catch (e: DivByZero) {
        return 0
    }
    return x
}
passed := func() returns I64 throws DivByZero {
    x := div(4, 2)?
    return x
}
banged := func() returns I64 {
    x := div(4, 2)!
    return x
}
`)
		wantClean(t, d)
	})
}

func TestCatchPlacement(t *testing.T) {
	const prelude = `mode lib
DivByZero := struct {
    mut msg: Str = ""
}
div := func(a: I64, b: I64) returns I64 throws DivByZero {
    if eq(b, 0) {
        throw DivByZero()
    }
    return a
}
`
	cases := []struct {
		name string
		src  string
		want string // empty means no errors
	}{
		{"catch in nested block after outer call", `use := func(b: Bool) returns I64 {
    x := div(4, 2)?
    if b {
        catch (e: DivByZero) {
            return 0
        }
    }
    return x
}`, "Catch for 'DivByZero' is not preceded by a call or throw that can throw it"},
		{"nested call escapes to outer function", `use := func(b: Bool) returns I64 {
    x := div(4, 2)?
    if b {
        catch (e: DivByZero) {
            return 0
        }
    }
    return x
}`, "Function 'use' throws 'DivByZero' but it is not declared in its throws"},
		{"catch in sibling block", `use := func(b: Bool) returns I64 {
    if b {
        x := div(4, 2)?
        return x
    }
    if b {
        catch (e: DivByZero) {
            return 0
        }
    }
    return 1
}`, "Catch for 'DivByZero' is not preceded by a call or throw that can throw it"},
		{"catch in enclosing block", `use := func(b: Bool) returns I64 {
    if b {
        x := div(4, 2)?
        return x
    }
    catch (e: DivByZero) {
        return 0
    }
    return 1
}`, ""},
		{"catch body sees a later local", `use := func() returns I64 {
    x := div(4, 2)?
    y := 3
    catch (e: DivByZero) {
        return y
    }
    return add(x, y)
}`, "Undefined symbol 'y'"},
		{"catch body sees the result of the call", `use := func() returns I64 {
    x := div(4, 2)?
    catch (e: DivByZero) {
        return x
    }
    return x
}`, "Undefined symbol 'x'"},
		{"catch body sees an earlier local", `use := func() returns I64 {
    y := 3
    x := div(4, 2)?
    catch (e: DivByZero) {
        return y
    }
    return add(x, y)
}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, d := checkSrc(t, prelude+tc.src+"\n")
			if tc.want == "" {
				wantClean(t, d)
				return
			}
			wantMsg(t, d, tc.want)
		})
	}
}

func TestOwnConsumption(t *testing.T) {
	const decls = `mode cli
Buf := struct {
    mut n: I64 = 0
}
consume := proc(x: own Buf) {
    println(to_str(x.n))
}
`
	_, _, d := checkSrc(t, decls+`main := proc() {
    b := Buf()
    consume(b)
    consume(b)
}
`)
	wantMsg(t, d, "Undefined symbol 'b'")

	// Consumed on one branch only: still visible afterwards.
	_, _, d = checkSrc(t, decls+`main := proc() {
    b := Buf()
    mut flag := true
    flag = false
    if flag {
        consume(b)
    }
    consume(b)
}
`)
	wantClean(t, d)

	_, _, d = checkSrc(t, decls+`main := proc() {
    b := Buf()
    mut flag := true
    flag = false
    if flag {
        consume(b)
    } else {
        consume(b)
    }
    consume(b)
}
`)
	wantMsg(t, d, "Undefined symbol 'b'")

	// Two own parameters cannot take the same binding.
	_, _, d = checkSrc(t, decls+`consume2 := proc(x: own Buf, y: own Buf) {
    println(to_str(add(x.n, y.n)))
}
main := proc() {
    b := Buf()
    consume2(b, b)
}
`)
	wantMsg(t, d, "Undefined symbol 'b'")

	loops := []struct {
		name string
		body string
	}{
		{"while", `    mut i := 0
    while lt(i, 2) {
        consume(b)
        i = add(i, 1)
    }`},
		{"for", `    for i in 0..2 {
        println(to_str(i))
        consume(b)
    }`},
		{"nested block in loop", `    mut i := 0
    while lt(i, 2) {
        if true {
            consume(b)
        }
        i = add(i, 1)
    }`},
	}
	for _, tc := range loops {
		t.Run(tc.name, func(t *testing.T) {
			_, _, d := checkSrc(t, decls+"main := proc() {\n    b := Buf()\n"+tc.body+"\n}\n")
			wantMsg(t, d, "Cannot consume 'b' inside a loop, it is declared outside of it")
		})
	}

	// A binding made inside the loop body may be consumed there.
	_, _, d = checkSrc(t, decls+`main := proc() {
    mut i := 0
    while lt(i, 2) {
        c := Buf()
        consume(c)
        i = add(i, 1)
    }
}
`)
	wantClean(t, d)
}

func TestCopyNeedsClone(t *testing.T) {
	_, _, d := checkSrc(t, `mode cli
Buf := struct {
    mut n: I64 = 0
}
dup := proc(b: copy Buf) {
    println(to_str(b.n))
}
main := proc() {
    b := Buf()
    dup(b)
    s := "x"
    show := proc(v: copy Str) {
        println(v)
    }
    show(s)
}
`)
	wantMsg(t, d, "struct 'Buf' does not implement clone() method")
	if strings.Count(dump(d), "clone()") != 1 {
		t.Fatalf("Str must be exempt:\n%s", dump(d))
	}
}

func TestMutability(t *testing.T) {
	_, _, d := checkSrc(t, `mode cli
bump := proc(mut n: I64) {
    n = add(n, 1)
}
main := proc() {
    c := 1
    bump(c)
    bump(5)
    bump(add(1, 2))
    c = 2
    zz = 3
}
`)
	for _, want := range []string{
		"Cannot pass const 'c' as mut argument 'n', Suggestion: declare it as 'mut c'",
		"Cannot pass a literal as mut argument 'n' of 'bump'",
		"Cannot pass a temporary value as mut argument",
		"Cannot assign to constant 'c', Suggestion: declare it as 'mut'.",
		"Explanation: Cannot assign to undefined symbol 'zz'.",
	} {
		wantMsg(t, d, want)
	}
}

func TestScopeRules(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unused", "main := proc() {\n y := 1\n}", "Unused variable 'y'"},
		{"shadowing", "main := proc() {\n x := 1\n println(to_str(x))\n if true {\n x := 2\n println(to_str(x))\n }\n}", "shadowing is not allowed"},
		{"closure", "main := proc() {\n v := 1\n inner := proc() {\n println(to_str(v))\n }\n inner()\n}", "Closures are not supported: 'v' is captured from an enclosing function"},
		{"undefined", "main := proc() {\n println(to_str(b))\n}", "Undefined symbol 'b'"},
		{"discarded value", "main := proc() {\n add(1, 2)\n}", "Function 'add' returns a value that is not used, Suggestion: capture it with '_ := add(...)'"},
		{"proc in func", "f := func() returns I64 {\n println(\"x\")\n return 1\n}\nmain := proc() {\n}", "Cannot call proc 'println' from func 'f'"},
		{"cast position", "f := func() returns I64 {\n return cast(I64, 1)\n}\nmain := proc() {\n}", "cast can only be used to initialize a declaration"},
		{"break outside loop", "main := proc() {\n break\n}", "'break' outside of a loop"},
		{"if condition", "main := proc() {\n if 1 {\n }\n}", "'if' can only accept a bool condition first, found I64."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, d := checkSrc(t, "mode cli\n"+tc.src+"\n")
			wantMsg(t, d, tc.want)
		})
	}
}

func TestMainRequired(t *testing.T) {
	_, _, d := checkSrc(t, "mode cli\nx := 1\n")
	if !d.Has(diag.Mode) {
		t.Fatalf("want a mode diagnostic:\n%s", dump(d))
	}
	wantMsg(t, d, "mode cli requires 'main' to be defined as a proc")

	_, _, d = checkSrc(t, "mode pure\nx := 1\n")
	wantClean(t, d)
}

func TestNamedArguments(t *testing.T) {
	const decl = "mode lib\nscale := func(v: I64, by: I64 = 2, plus: I64 = 0) returns I64 {\n return add(mul(v, by), plus)\n}\n"
	_, body, d := checkSrc(t, decl+"a := scale(3, plus=1)\n")
	wantClean(t, d)
	args := findDecl(body, "a").Init().Args()
	if len(args) != 3 || args[0].Value != "3" || args[1].Value != "2" || args[2].Value != "1" {
		t.Fatalf("arguments not reordered: %s", ast.Format(findDecl(body, "a")))
	}

	errs := []struct{ call, want string }{
		{"scale(v=1, 2)", "Positional arguments cannot appear after named arguments"},
		{"scale(1, nope=2)", "Unknown parameter name 'nope' for 'scale'"},
		{"scale(1, v=2)", "Argument 'v' specified multiple times"},
		{"scale(by=2)", "Missing argument for parameter 'v' of 'scale'"},
		{"to_str(i=1, 2)", "Positional arguments cannot appear after named arguments"},
	}
	for _, tc := range errs {
		t.Run(tc.call, func(t *testing.T) {
			_, _, d := checkSrc(t, decl+"a := "+tc.call+"\n")
			wantMsg(t, d, tc.want)
		})
	}
}

func TestStructAndEnumConstructors(t *testing.T) {
	const decls = "mode lib\nP := struct {\n mut x: I64 = 0\n mut tag: U8\n}\nOpt := enum { None, Some(I64) }\n"
	cases := []struct{ init, want string }{
		{"P(tag=1, y=2)", "Struct 'P' has no field 'y'"},
		{"P(x=1)", "Missing value for field 'tag' of struct 'P'"},
		{"P(tag=1)?", "Struct constructor 'P' does not throw, remove the '?'"},
		{"P(tag=\"a\")", "Struct 'P' field 'tag' expects type 'U8', but got 'Str'"},
		{"Opt.Some(\"a\")", "Enum constructor Opt.Some expects payload of type I64, but got Str"},
		{"Opt.None(1)", "Enum variant Opt.None does not take a payload"},
		{"Opt.Missing(1)", "Enum 'Opt' has no variant 'Missing'"},
	}
	for _, tc := range cases {
		t.Run(tc.init, func(t *testing.T) {
			_, _, d := checkSrc(t, decls+"v := "+tc.init+"\n")
			wantMsg(t, d, tc.want)
		})
	}
	_, _, d := checkSrc(t, decls+"v := P(tag=7)\nw := Opt.Some(3)\nn := Opt.None\n")
	wantClean(t, d)
}

func TestUFCS(t *testing.T) {
	_, body, d := checkSrc(t, `mode lib
s := "abc"
n := s.len()
x := 5
t := x.to_str()
`)
	wantClean(t, d)
	if c := findDecl(body, "n").Init(); c.CalleeName() != "Str.len" || c.Args()[0].Value != "s" {
		t.Fatalf("method call not rewritten: %s", ast.Format(c))
	}
	if c := findDecl(body, "t").Init(); c.CalleeName() != "to_str" || len(c.Args()) != 1 {
		t.Fatalf("free function call not rewritten: %s", ast.Format(c))
	}
	if typ := findDecl(body, "t").Decl.Type; typ != ast.Str {
		t.Fatalf("t resolved to %s", typ)
	}

	_, body, d = checkSrc(t, "mode lib\ns := \"abc\"\nn := s.len()!\n")
	wantMsg(t, d, "Function 'Str.len' does not throw, remove the '!'")
	if c := findDecl(body, "n").Init(); !c.Call.IsBang {
		t.Fatalf("call flags lost in rewrite")
	}

	_, _, d = checkSrc(t, "mode lib\nx := 5\nn := x.nothing()\n")
	wantMsg(t, d, "Type 'I64' has no method 'nothing'")
}

func TestSignatureParameters(t *testing.T) {
	_, _, d := checkSrc(t, `mode lib
BinOp := func(I64, I64) returns I64
apply := func(op: BinOp, a: I64, b: I64) returns I64 {
    return op(a, b)
}
plus := func(a: I64, b: I64) returns I64 {
    return add(a, b)
}
r := apply(plus, 1, 2)
w := apply(func(a: I64, b: I64) returns I64 { return mul(a, b) }, 3, 4)
`)
	wantClean(t, d)

	_, _, d = checkSrc(t, `mode lib
BinOp := func(I64, I64) returns I64
apply := func(op: BinOp, a: I64) returns I64 {
    return op(a, a)
}
neg := func(a: I64) returns I64 {
    return sub(0, a)
}
r := apply(neg, 1)
`)
	wantMsg(t, d, "takes 1 arguments where 2 were expected")

	_, body, d := checkSrc(t, `mode lib
BinOp := func(I64, I64) returns I64 {}
apply := func(op: BinOp, a: I64, b: I64) returns I64 {
    return op(a, b)
}
plus := func(a: I64, b: I64) returns I64 {
    return add(a, b)
}
r := apply(plus, 1, 2)
`)
	wantClean(t, d)
	if got := findDecl(body, "BinOp").Decl.Type; got != ast.TypeOfDef(ast.TFuncSig) {
		t.Fatalf("braced signature resolved to %s", got)
	}
}

func TestTestModeWhitelist(t *testing.T) {
	_, _, d := checkSrc(t, `mode test
check := func(a: I64) returns I64 {
    assert(eq(a, 1))
    return a
}
v := check(1)
`)
	wantClean(t, d)
}
