package scope

import (
	"tilc/internal/ast"
	"tilc/internal/mode"
)

// Context is the compilation context threaded through every pass.
type Context struct {
	Path  string
	Mode  mode.Mode
	Stack *Stack

	// ImportedASTs and ImportedModes are keyed by resolved import path.
	ImportedASTs  map[string]*ast.Expr
	ImportedModes map[string]mode.Mode
	// ImportOrder lists imports in completion order.
	ImportOrder []string
	// TyperDone holds imports already type checked.
	TyperDone map[string]bool

	inProgress map[string]bool
}

func NewContext(path string, m mode.Mode) *Context {
	return &Context{
		Path:          path,
		Mode:          m,
		Stack:         NewStack(),
		ImportedASTs:  map[string]*ast.Expr{},
		ImportedModes: map[string]mode.Mode{},
		TyperDone:     map[string]bool{},
		inProgress:    map[string]bool{},
	}
}

// Begin marks path as being imported. It reports false when path is
// already in progress, which means a cycle.
func (c *Context) Begin(path string) bool {
	if c.inProgress[path] {
		return false
	}
	c.inProgress[path] = true
	return true
}

// Finish records a completed import.
func (c *Context) Finish(path string, body *ast.Expr, m mode.Mode) {
	delete(c.inProgress, path)
	if _, ok := c.ImportedASTs[path]; ok {
		return
	}
	c.ImportedASTs[path] = body
	c.ImportedModes[path] = m
	c.ImportOrder = append(c.ImportOrder, path)
}

// Abort clears an in-progress mark without recording the import.
func (c *Context) Abort(path string) { delete(c.inProgress, path) }

func (c *Context) InProgress(path string) bool { return c.inProgress[path] }

func (c *Context) Imported(path string) bool {
	_, ok := c.ImportedASTs[path]
	return ok
}
