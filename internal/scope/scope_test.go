package scope

import (
	"testing"

	"tilc/internal/ast"
	"tilc/internal/mode"
	"tilc/internal/source"
)

func TestLookupInnermostFirst(t *testing.T) {
	s := NewStack()
	s.Insert("x", &Symbol{Type: ast.I64})
	s.Push(Block)
	s.Insert("x", &Symbol{Type: ast.Str})
	sym, ok := s.Lookup("x")
	if !ok || sym.Type != ast.Str {
		t.Fatalf("expected inner x: Str, got %+v", sym)
	}
	s.Pop()
	sym, ok = s.Lookup("x")
	if !ok || sym.Type != ast.I64 {
		t.Fatalf("expected outer x: I64, got %+v", sym)
	}
	if s.Pop() != nil {
		t.Fatalf("global frame must not pop")
	}
}

func TestClosureCapture(t *testing.T) {
	s := NewStack()
	s.Insert("g", &Symbol{Type: ast.I64})
	s.Push(Function)
	s.Insert("a", &Symbol{Type: ast.I64})
	s.Push(Block)
	if s.IsClosureCapture("a") {
		t.Fatalf("a is in the current function")
	}
	s.Push(Function)
	if !s.IsClosureCapture("a") {
		t.Fatalf("a lives in an enclosing function")
	}
	if s.IsClosureCapture("g") {
		t.Fatalf("globals are not captures")
	}
}

func TestInFunction(t *testing.T) {
	s := NewStack()
	if s.InFunction() {
		t.Fatalf("global frame is not a function")
	}
	s.Push(Block)
	if s.InFunction() {
		t.Fatalf("a top-level block is not a function")
	}
	s.Push(Function)
	s.Push(Block)
	if !s.InFunction() {
		t.Fatalf("block inside a function")
	}
	s.Pop()
	s.Pop()
	if s.InFunction() {
		t.Fatalf("function frame was popped")
	}
}

func TestDeclareLocal(t *testing.T) {
	s := NewStack()
	if _, clash := s.DeclareLocal("x", source.Pos{Line: 1, Col: 1}); clash {
		t.Fatalf("global declarations are not tracked")
	}
	s.Push(Function)
	p1 := source.Pos{Line: 2, Col: 3}
	if _, clash := s.DeclareLocal("x", p1); clash {
		t.Fatalf("first declaration clashed")
	}
	if _, clash := s.DeclareLocal("x", p1); clash {
		t.Fatalf("revisiting the same position must not clash")
	}
	s.Push(Block)
	prev, clash := s.DeclareLocal("x", source.Pos{Line: 4, Col: 5})
	if !clash || prev != p1 {
		t.Fatalf("expected clash with %v, got %v %v", p1, prev, clash)
	}
}

func TestBranchesRemoval(t *testing.T) {
	tests := []struct {
		name       string
		exhaustive bool
		removeIn   []bool
		wantGone   bool
	}{
		{"all branches", true, []bool{true, true}, true},
		{"one branch", true, []bool{true, false}, false},
		{"no else", false, []bool{true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack()
			s.Insert("v", &Symbol{Type: ast.I64})
			var bs []func()
			for _, rm := range tt.removeIn {
				rm := rm
				bs = append(bs, func() {
					if rm {
						s.Remove("v")
					}
				})
			}
			s.Branches(tt.exhaustive, bs...)
			_, ok := s.Lookup("v")
			if ok == tt.wantGone {
				t.Fatalf("v present = %v, want gone = %v", ok, tt.wantGone)
			}
		})
	}
}

func TestContextImports(t *testing.T) {
	c := NewContext("main.til", mode.Mode{Name: "cli"})
	if !c.Begin("a.til") {
		t.Fatalf("first Begin must succeed")
	}
	if c.Begin("a.til") {
		t.Fatalf("second Begin must report a cycle")
	}
	c.Finish("a.til", ast.NewBody(source.Pos{}, nil), mode.Mode{Name: "lib"})
	c.Finish("a.til", ast.NewBody(source.Pos{}, nil), mode.Mode{Name: "lib"})
	if len(c.ImportOrder) != 1 || !c.Imported("a.til") || c.InProgress("a.til") {
		t.Fatalf("unexpected import state: %+v", c.ImportOrder)
	}
}
