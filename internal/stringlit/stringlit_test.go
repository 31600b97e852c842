package stringlit

import "testing"

func TestDecodeRegular(t *testing.T) {
	got, err := Decode(`"a\nb\t\"c\"\\"`)
	if err != nil {
		t.Fatalf("decode regular: %v", err)
	}
	if got != "a\nb\t\"c\"\\" {
		t.Fatalf("unexpected decoded regular: %q", got)
	}
}

func TestDecodeNul(t *testing.T) {
	got, err := Decode(`"x\0y"`)
	if err != nil {
		t.Fatalf("decode nul: %v", err)
	}
	if got != "x\x00y" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestDecodeRejectsUnknownEscape(t *testing.T) {
	if _, err := Decode(`"\q"`); err == nil {
		t.Fatalf("expected error for unknown escape")
	}
	if _, err := Decode(`abc`); err == nil {
		t.Fatalf("expected error for unquoted text")
	}
}

func TestCQuote(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "plain", want: `"plain"`},
		{in: "a\"b", want: `"a\"b"`},
		{in: "line\n", want: `"line\n"`},
		{in: "x\x000", want: `"x\0000"`},
	}
	for _, c := range cases {
		if got := CQuote(c.in); got != c.want {
			t.Fatalf("CQuote(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}
