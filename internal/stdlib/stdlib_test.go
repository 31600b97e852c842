package stdlib

import (
	"io/fs"
	"strings"
	"testing"

	"tilc/internal/names"
	"tilc/internal/parser"
	"tilc/internal/source"
)

func TestCoreSourcesParse(t *testing.T) {
	for p, src := range Files() {
		prog, diags := parser.Parse(source.NewFile(p, src))
		if diags.HasErrors() {
			t.Fatalf("%s: unexpected diags: %+v", p, diags.Items)
		}
		if prog.Mode != "external" {
			t.Fatalf("%s: core files must be external, got %q", p, prog.Mode)
		}
	}
}

func TestFSServesPrelude(t *testing.T) {
	b, err := fs.ReadFile(FS(), names.CorePrelude)
	if err != nil {
		t.Fatalf("read prelude: %v", err)
	}
	if !strings.Contains(string(b), "Array := struct") {
		t.Fatalf("prelude lacks Array")
	}
}

func TestRuntimeDefinesArrayHelpers(t *testing.T) {
	for _, fn := range []string{"til_Array_new", "til_Array_set", "til_Array_get", "til_Array_delete", "til_Array_len", "til_Str_from_literal"} {
		if !strings.Contains(ExtC(), fn+"(") {
			t.Fatalf("runtime lacks %s", fn)
		}
	}
}
