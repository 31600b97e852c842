package index

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/mode"
	"tilc/internal/names"
	"tilc/internal/scope"
	"tilc/internal/source"
)

// Importer loads and parses an imported file by resolved path.
type Importer interface {
	Import(path string) (*ast.Program, *diag.Bag, error)
}

type indexer struct {
	ctx   *scope.Context
	imp   Importer
	diags *diag.Bag
}

// Init indexes the root body of ctx: the core prelude, the implicit
// imports of the root mode, then every top-level declaration and import.
// It never mutates the tree.
func Init(ctx *scope.Context, body *ast.Expr, imp Importer) *diag.Bag {
	ix := &indexer{ctx: ctx, imp: imp, diags: &diag.Bag{}}
	ctx.Begin(ctx.Path)
	defer ctx.Abort(ctx.Path)
	if ctx.Path != names.CorePrelude {
		ix.importFile(names.CorePrelude, body.Pos)
	}
	ix.body(body)
	return ix.diags
}

func (ix *indexer) errorf(pos source.Pos, level diag.Level, format string, args ...any) {
	ix.diags.Add(ix.ctx.Path, pos.Line, pos.Col, level, fmt.Sprintf(format, args...))
}

// body indexes one file body under the current ctx path and mode.
func (ix *indexer) body(body *ast.Expr) {
	m := ix.ctx.Mode
	for _, p := range m.Imports {
		ix.importFile(p+names.Ext, body.Pos)
	}
	for _, s := range body.Params {
		switch s.Kind {
		case ast.NDeclaration:
			if s.Decl.IsMut && !m.AllowsBaseMut {
				ix.errorf(s.Pos, diag.Mode, "mode %s doesn't allow mut declarations of 'mut %s'.\nSuggestion: remove 'mut' or declare it inside a proc", m.Name, s.Decl.Name)
			}
			if err := Declare(ix.ctx.Stack, s); err != nil {
				ix.errorf(s.Pos, diag.Type, "%s", err)
			}
		case ast.NFCall:
			if s.IsCallTo("import") {
				ix.importCall(s)
				continue
			}
			if !m.AllowsBaseCalls {
				ix.errorf(s.Pos, diag.Mode, "mode %s doesn't allow calls in the root context of the file", m.Name)
			}
		default:
			if !m.AllowsBaseAnything {
				ix.errorf(s.Pos, diag.Mode, "mode %s doesn't allow '%s' in the root context of the file", m.Name, s.Kind)
			}
		}
	}
}

// ImportPath returns the resolved path of an import call written in importer.
func ImportPath(importer string, call *ast.Expr) (string, error) {
	arg, ok := call.StringLiteralArg()
	if !ok {
		return "", fmt.Errorf("import expects a single string literal argument")
	}
	return names.ResolveImport(importer, arg)
}

func (ix *indexer) importCall(call *ast.Expr) {
	p, err := ImportPath(ix.ctx.Path, call)
	if err != nil {
		ix.errorf(call.Pos, diag.Import, "%s", err)
		return
	}
	ix.importFile(p, call.Pos)
}

// importFile runs the declaration phase of an import. Completed imports
// are cached by path; a path already in progress is a cycle.
func (ix *indexer) importFile(p string, at source.Pos) {
	ctx := ix.ctx
	if ctx.Imported(p) {
		return
	}
	if ctx.InProgress(p) {
		ix.errorf(at, diag.Import, "circular import: %s", p)
		return
	}
	prog, pdiags, err := ix.imp.Import(p)
	if err != nil {
		ix.errorf(at, diag.Import, "file not found: %s", p)
		return
	}
	if pdiags.HasErrors() {
		ix.diags.Merge(pdiags)
		return
	}
	m, err := mode.Lookup(prog.Mode)
	if err != nil {
		ix.errorf(at, diag.Import, "%s", err)
		return
	}
	if !m.CanBeImported() {
		ix.errorf(at, diag.Import, "mode %s cannot be imported", m.Name)
		return
	}

	ctx.Begin(p)
	savedPath, savedMode := ctx.Path, ctx.Mode
	ctx.Path, ctx.Mode = p, m
	ix.body(prog.Body)
	ctx.Path, ctx.Mode = savedPath, savedMode
	ctx.Finish(p, prog.Body, m)
}
