package ast

import "tilc/internal/source"

// Program is one parsed source file.
type Program struct {
	Path    string
	Mode    string
	ModePos source.Pos
	Body    *Expr
}
