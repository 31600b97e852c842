// Package loader reads TIL sources and drives the compilation pipeline:
// parse, index, type check, merge, scavenge and C generation.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tilc/internal/ast"
	"tilc/internal/codegen"
	"tilc/internal/config"
	"tilc/internal/diag"
	"tilc/internal/index"
	"tilc/internal/mode"
	"tilc/internal/names"
	"tilc/internal/parser"
	"tilc/internal/scavenger"
	"tilc/internal/scope"
	"tilc/internal/source"
	"tilc/internal/stdlib"
	"tilc/internal/typecheck"
)

type entry struct {
	prog  *ast.Program
	diags *diag.Bag
}

// Loader parses files from a file system rooted at the directory of the
// root file. Paths under core/ come from the embedded core library.
// Parsed files are cached by path.
type Loader struct {
	fsys fs.FS
	core fs.FS

	mu    sync.Mutex
	cache map[string]entry
	order []string
}

func New(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, core: stdlib.FS(), cache: map[string]entry{}}
}

// Load parses the file at the slash separated path p.
func (l *Loader) Load(p string) (*ast.Program, *diag.Bag, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[p]; ok {
		return e.prog, e.diags, nil
	}
	fsys := l.fsys
	if names.IsCore(p) {
		fsys = l.core
	}
	b, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", p, err)
	}
	prog, diags := parser.Parse(source.NewFile(p, string(b)))
	l.cache[p] = entry{prog: prog, diags: diags}
	if !names.IsCore(p) {
		l.order = append(l.order, p)
	}
	return prog, diags, nil
}

// Import implements index.Importer.
func (l *Loader) Import(p string) (*ast.Program, *diag.Bag, error) { return l.Load(p) }

// Files returns the non-core paths loaded so far in load order.
func (l *Loader) Files() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Invalidate drops cached files so the next build reads them again. With
// no arguments the whole cache is dropped.
func (l *Loader) Invalidate(paths ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(paths) == 0 {
		l.cache = map[string]entry{}
		l.order = nil
		return
	}
	for _, p := range paths {
		delete(l.cache, p)
	}
	kept := l.order[:0]
	for _, p := range l.order {
		if _, ok := l.cache[p]; ok {
			kept = append(kept, p)
		}
	}
	l.order = kept
}

// Checked is a root file after indexing and type checking.
type Checked struct {
	Path string
	Mode mode.Mode
	Ctx  *scope.Context
	Body *ast.Expr
}

// Check parses, indexes and type checks the root file at p. Each phase
// runs only when the previous one reported nothing.
func (l *Loader) Check(p string) (*Checked, *diag.Bag, error) {
	prog, pd, err := l.Load(p)
	if err != nil {
		return nil, nil, err
	}
	if pd.HasErrors() {
		return nil, pd, nil
	}
	m, err := mode.Lookup(prog.Mode)
	if err != nil {
		d := &diag.Bag{}
		d.Add(p, prog.ModePos.Line, prog.ModePos.Col, diag.Syntax, err.Error())
		return nil, d, nil
	}
	ctx := scope.NewContext(p, m)
	if d := index.Init(ctx, prog.Body, l); d.HasErrors() {
		return nil, d, nil
	}
	if d := typecheck.Check(ctx, prog.Body); d.HasErrors() {
		return nil, d, nil
	}
	return &Checked{Path: p, Mode: m, Ctx: ctx, Body: prog.Body}, nil, nil
}

type BuildResult struct {
	Path      string
	Mode      mode.Mode
	C         string
	Reachable map[string]bool
}

// Build runs the whole pipeline on the root file at p and returns the
// generated C.
func (l *Loader) Build(p string) (*BuildResult, *diag.Bag, error) {
	ck, d, err := l.Check(p)
	if err != nil || d.HasErrors() {
		return nil, d, err
	}
	res, d := scavenger.Scavenge(p, ck.Mode, index.Merge(ck.Ctx, ck.Body))
	if d.HasErrors() {
		return nil, d, nil
	}
	csrc, err := codegen.EmitC(res.Body, codegen.EmitOptions{Path: p, CallMain: ck.Mode.NeedsMainProc})
	if err != nil {
		return nil, nil, fmt.Errorf("codegen %s: %w", p, err)
	}
	return &BuildResult{Path: p, Mode: ck.Mode, C: csrc, Reachable: res.Reachable}, nil, nil
}

// Artifacts are the files Compile produced.
type Artifacts struct {
	C      string
	ExtC   string
	Binary string
}

// Compile writes the generated C and the runtime into outDir and runs the
// configured C compiler on them. The binary is named after the root file.
func Compile(ctx context.Context, res *BuildResult, outDir string, cfg config.Config) (*Artifacts, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(path.Base(res.Path), names.Ext)
	art := &Artifacts{
		C:      filepath.Join(outDir, base+".c"),
		ExtC:   filepath.Join(outDir, stdlib.ExtCName),
		Binary: filepath.Join(outDir, base),
	}
	if err := os.WriteFile(art.C, []byte(res.C), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(art.ExtC, []byte(stdlib.ExtC()), 0o644); err != nil {
		return nil, err
	}

	cc, err := exec.LookPath(cfg.CC)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH", cfg.CC)
	}
	args := append(append([]string(nil), cfg.CFlags...), art.C, "-o", art.Binary)
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "%s %s\n", cc, strings.Join(args, " "))
	}
	out, err := exec.CommandContext(ctx, cc, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w\n%s", cfg.CC, err, out)
	}
	if !cfg.KeepC {
		os.Remove(art.C)
		os.Remove(art.ExtC)
		art.C, art.ExtC = "", ""
	}
	return art, nil
}

// SortedReachable lists the reachable definitions in name order.
func (r *BuildResult) SortedReachable() []string {
	out := make([]string, 0, len(r.Reachable))
	for n, ok := range r.Reachable {
		if ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
