package index

import (
	"tilc/internal/ast"
	"tilc/internal/scope"
)

// Merge concatenates the bodies of every completed import, in completion
// order, followed by the root body. Import calls are dropped; the nodes
// themselves are shared with the per-file trees.
func Merge(ctx *scope.Context, root *ast.Expr) *ast.Expr {
	var stmts []*ast.Expr
	add := func(body *ast.Expr) {
		for _, s := range body.Params {
			if s.IsCallTo("import") {
				continue
			}
			stmts = append(stmts, s)
		}
	}
	for _, p := range ctx.ImportOrder {
		add(ctx.ImportedASTs[p])
	}
	add(root)
	return ast.NewBody(root.Pos, stmts)
}
