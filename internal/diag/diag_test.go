package diag

import (
	"bytes"
	"testing"
)

func TestPrintSortsAndFormats(t *testing.T) {
	b := &Bag{}
	b.Add("b.til", 1, 1, Type, "second file")
	b.Add("a.til", 3, 2, Mode, "later line")
	b.Add("a.til", 1, 7, Import, "first")
	var out bytes.Buffer
	Print(&out, b)
	want := "a.til:1:7: import error: first\n" +
		"a.til:3:2: mode error: later line\n" +
		"b.til:1:1: type error: second file\n"
	if out.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestLevels(t *testing.T) {
	b := &Bag{}
	if b.HasErrors() {
		t.Fatalf("empty bag reports errors")
	}
	b.AddAt(Loc{Filename: "x.til", Line: 2, Col: 3}, Scavenger, "no body found for 'f'")
	if !b.Has(Scavenger) || b.Has(Type) {
		t.Fatalf("unexpected levels: %+v", b.Items)
	}
	if !Scavenger.Fatal() || Type.Fatal() {
		t.Fatalf("unexpected fatality")
	}
	if !b.Contains("no body found") {
		t.Fatalf("Contains failed")
	}
}
