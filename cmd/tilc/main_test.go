package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"tilc/internal/config"
)

func TestParseArgs(t *testing.T) {
	cases := []struct {
		args []string
		want options
	}{
		{[]string{"main.til"}, options{file: "main.til"}},
		{[]string{"-v", "-o", "out", "main.til"}, options{file: "main.til", out: "out", verbose: true}},
		{[]string{"--out=bin", "--cc=clang", "main.til", "--", "a", "-b"}, options{file: "main.til", out: "bin", cc: "clang", progArgs: []string{"a", "-b"}}},
	}
	for _, tc := range cases {
		got, err := parseArgs(tc.args)
		if err != nil {
			t.Fatalf("parseArgs(%q): %v", tc.args, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseArgs(%q) = %+v, want %+v", tc.args, got, tc.want)
		}
	}
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"-o"},
		{"--nope", "main.til"},
		{"a.til", "b.til"},
	} {
		if _, err := parseArgs(args); err == nil {
			t.Fatalf("parseArgs(%q): expected an error", args)
		}
	}
}

func writeRoot(t *testing.T, src string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "main.til")
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCheckPrintsDiagnostics(t *testing.T) {
	p := writeRoot(t, `mode lib
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
	var stdout, stderr bytes.Buffer
	d, err := newDriver(options{file: p}, config.Config{}, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.check(); err == nil {
		t.Fatal("expected check to fail")
	}
	if !strings.Contains(stderr.String(), "main.til:4:5: type error: Switch is missing case for variant 'Blue'") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestEmitC(t *testing.T) {
	p := writeRoot(t, "mode cli\nmain := proc() {\n    println(\"hi\")\n}\n")
	var stdout, stderr bytes.Buffer
	d, err := newDriver(options{file: p}, config.Config{}, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.emitC(); err != nil {
		t.Fatalf("emitC: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "int main(int argc, char** argv)") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRun(t *testing.T) {
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("cc not found")
	}
	p := writeRoot(t, "mode cli\nmain := proc() {\n    println(\"from til\")\n}\n")
	var stdout, stderr bytes.Buffer
	cfg := config.Config{CC: "cc", CFlags: []string{"-std=c11"}, OutDir: "target", KeepC: true}
	d, err := newDriver(options{file: p}, cfg, &stdout, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	if stdout.String() != "from til\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(p), "target", "main.c")); err != nil {
		t.Fatalf("generated C not kept: %v", err)
	}
}
