package index

import (
	"errors"
	"strings"
	"testing"

	"tilc/internal/ast"
	"tilc/internal/diag"
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

func initRoot(t *testing.T, files mapImporter, root string) (*scope.Context, *diag.Bag) {
	t.Helper()
	prog, pd := parser.Parse(source.NewFile(root, files[root]))
	if pd.HasErrors() {
		t.Fatalf("parse: %+v", pd.Items)
	}
	m, err := mode.Lookup(prog.Mode)
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	ctx := scope.NewContext(root, m)
	return ctx, Init(ctx, prog.Body, files)
}

func hasMsg(d *diag.Bag, level diag.Level, substr string) bool {
	for _, it := range d.Items {
		if it.Level == level && strings.Contains(it.Msg, substr) {
			return true
		}
	}
	return false
}

func TestInitRegistersDeclarations(t *testing.T) {
	ctx, diags := initRoot(t, mapImporter{"main.til": `mode lib
x := 1
s := "hi"
f := func(a: I64) returns I64 { return a }
Point := struct {
	mut x: I64 = 0
	origin := func() returns Point { return Point() }
	namespace {
		unit := 1
	}
}
Color := enum { Red, Green }
Sig := func(I64) returns I64 {}
`}, "main.til")
	if diags.HasErrors() {
		t.Fatalf("unexpected diags: %+v", diags.Items)
	}
	st := ctx.Stack
	tests := []struct {
		name string
		want ast.ValueType
	}{
		{"x", ast.I64},
		{"s", ast.Str},
		{"f", ast.Function(ast.FTFunc)},
		{"Point", ast.TypeOfDef(ast.TStructDef)},
		{"Point.origin", ast.Function(ast.FTFunc)},
		{"Point.unit", ast.I64},
		{"Color", ast.TypeOfDef(ast.TEnumDef)},
		{"Sig", ast.TypeOfDef(ast.TFuncSig)},
	}
	for _, tt := range tests {
		sym, ok := st.Lookup(tt.name)
		if !ok {
			t.Fatalf("missing symbol %s", tt.name)
		}
		if sym.Type != tt.want {
			t.Fatalf("%s: got %s, want %s", tt.name, sym.Type, tt.want)
		}
	}
	if _, ok := st.LookupFunc("Point.origin"); !ok {
		t.Fatalf("expected Point.origin in funcs")
	}
	if _, ok := st.LookupStruct("Point"); !ok {
		t.Fatalf("expected Point in structs")
	}
	if _, ok := st.LookupEnum("Color"); !ok {
		t.Fatalf("expected Color in enums")
	}
	if _, ok := st.LookupStruct("Array"); !ok {
		t.Fatalf("expected the core prelude to be indexed")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	files := mapImporter{"main.til": "mode lib\nx := 1\n"}
	prog, _ := parser.Parse(source.NewFile("main.til", files["main.til"]))
	m, _ := mode.Lookup("lib")
	ctx := scope.NewContext("main.til", m)
	if d := Init(ctx, prog.Body, files); d.HasErrors() {
		t.Fatalf("first run: %+v", d.Items)
	}
	if d := Init(ctx, prog.Body, files); d.HasErrors() {
		t.Fatalf("second run: %+v", d.Items)
	}
}

func TestDeclareAll(t *testing.T) {
	body, pd := parser.ParseBody(source.NewFile("body.til", `x := 1
P := struct {
    mut n: I64 = 0
}
x := 2
f(x)
`))
	if pd.HasErrors() {
		t.Fatalf("parse: %+v", pd.Items)
	}
	st := scope.NewStack()
	errs := DeclareAll(st, body)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "'x' already declared") {
		t.Fatalf("expected one redeclaration error, got %v", errs)
	}
	if _, ok := st.Lookup("x"); !ok {
		t.Fatalf("x not declared")
	}
	if _, ok := st.LookupStruct("P"); !ok {
		t.Fatalf("P not registered as a struct")
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name  string
		files mapImporter
		level diag.Level
		want  string
	}{
		{"duplicate", mapImporter{"main.til": "mode lib\nx := 1\nx := 2\n"}, diag.Type, "'x' already declared"},
		{"annotation mismatch", mapImporter{"main.til": "mode lib\nx : Str = 1\n"}, diag.Type, "'x' declared of type 'Str' but initialized to type 'I64'."},
		{"mut in lib", mapImporter{"main.til": "mode lib\nmut x := 1\n"}, diag.Mode, "mode lib doesn't allow mut declarations of 'mut x'"},
		{"mut in pure", mapImporter{"main.til": "mode pure\nmut x := 1\n"}, diag.Mode, "mode pure doesn't allow mut declarations"},
		{"call in lib", mapImporter{"main.til": "mode lib\nprintln(\"a\")\n"}, diag.Mode, "mode lib doesn't allow calls in the root context of the file"},
		{"if in test", mapImporter{"main.til": "mode test\nif true { }\n"}, diag.Mode, "mode test doesn't allow 'If'"},
		{"not found", mapImporter{"main.til": "mode lib\nimport(\"missing\")\n"}, diag.Import, "file not found: missing.til"},
		{"self cycle", mapImporter{"a.til": "mode lib\nimport(\"a\")\n", "main.til": "mode lib\nimport(\"a\")\n"}, diag.Import, "circular import: a.til"},
		{"two cycle", mapImporter{
			"main.til": "mode lib\nimport(\"b\")\n",
			"b.til":    "mode lib\nimport(\"main\")\n",
		}, diag.Import, "circular import: main.til"},
		{"not importable", mapImporter{
			"main.til": "mode lib\nimport(\"app\")\n",
			"app.til":  "mode cli\nmain := proc() {}\n",
		}, diag.Import, "mode cli cannot be imported"},
		{"non literal", mapImporter{"main.til": "mode lib\nimport(p)\n"}, diag.Import, "string literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := initRoot(t, tt.files, "main.til")
			if !hasMsg(diags, tt.level, tt.want) {
				t.Fatalf("expected %s error %q, got %+v", tt.level, tt.want, diags.Items)
			}
		})
	}
}

func TestInitModeBoundaries(t *testing.T) {
	tests := []struct {
		src string
		ok  bool
	}{
		{"mode lib\nx := 1\n", true},
		{"mode pure\nx := 1\n", true},
		{"mode cli\nx := 1\n", true},
		{"mode cli\nmut x := 1\n", true},
		{"mode script\nmut x := 1\nprintln(\"x\")\n", true},
		{"mode lib\nmut x := 1\n", false},
		{"mode pure\nmut x := 1\n", false},
	}
	for _, tt := range tests {
		_, diags := initRoot(t, mapImporter{"main.til": tt.src}, "main.til")
		if diags.HasErrors() == tt.ok {
			t.Fatalf("%q: ok = %v, diags %+v", tt.src, tt.ok, diags.Items)
		}
	}
}

func TestImportsAreCachedInOrder(t *testing.T) {
	files := mapImporter{
		"main.til":  "mode lib\nimport(\"lib/a\")\nimport(\"lib/b\")\n",
		"lib/a.til": "mode lib\nimport(\"b\")\nfa := func() returns I64 { return 1 }\n",
		"lib/b.til": "mode pure\nfb := func() returns I64 { return 2 }\n",
	}
	ctx, diags := initRoot(t, files, "main.til")
	if diags.HasErrors() {
		t.Fatalf("unexpected diags: %+v", diags.Items)
	}
	want := []string{"core/core.til", "lib/b.til", "lib/a.til"}
	if strings.Join(ctx.ImportOrder, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected order: %v", ctx.ImportOrder)
	}
	if ctx.ImportedModes["lib/b.til"].Name != "pure" {
		t.Fatalf("expected cached mode pure")
	}
	if _, ok := ctx.Stack.LookupFunc("fa"); !ok {
		t.Fatalf("expected fa to be indexed")
	}
}

func TestMergeOrdersImportsBeforeRoot(t *testing.T) {
	files := mapImporter{
		"main.til":  "mode script\nimport(\"lib/a\")\nmain_x := a_x\n",
		"lib/a.til": "mode lib\nimport(\"b\")\na_x := b_x\n",
		"lib/b.til": "mode lib\nb_x := 1\n",
	}
	ctx, diags := initRoot(t, files, "main.til")
	if diags.HasErrors() {
		t.Fatalf("init: %+v", diags.Items)
	}
	prog, _ := parser.Parse(source.NewFile("main.til", files["main.til"]))
	merged := Merge(ctx, prog.Body)
	var order []string
	for _, s := range merged.Params {
		if s.IsCallTo("import") {
			t.Fatalf("import call survived the merge")
		}
		if s.Kind == ast.NDeclaration && strings.HasSuffix(s.Decl.Name, "_x") {
			order = append(order, s.Decl.Name)
		}
	}
	if strings.Join(order, ",") != "b_x,a_x,main_x" {
		t.Fatalf("merge order = %v", order)
	}
	if merged.Params[0].Decl == nil || merged.Params[0].Decl.Name != "Str" {
		t.Fatalf("core prelude must come first, got %s", ast.Format(merged.Params[0]))
	}
}
