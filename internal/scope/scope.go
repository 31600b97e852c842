// Package scope implements the scope stack shared by every pass.
package scope

import (
	"tilc/internal/ast"
	"tilc/internal/source"
)

type FrameKind int

const (
	Function FrameKind = iota
	Block
)

type Symbol struct {
	Type            ast.ValueType
	IsMut           bool
	IsCopy          bool
	IsOwn           bool
	IsComptimeConst bool
	// IsParam marks function parameters; mut parameters are passed by pointer.
	IsParam bool
	Used    bool
	Pos     source.Pos
	// Origin is the declaring node, used to recognize a revisited declaration.
	Origin *ast.Expr
}

type Frame struct {
	Kind    FrameKind
	Symbols map[string]*Symbol
	Funcs   map[string]*ast.FuncDef
	Structs map[string]*ast.StructDef
	Enums   map[string]*ast.EnumDef
	// order keeps insertion order for deterministic diagnostics.
	order []string
	// declared tracks (name -> position) of every local declared in the
	// function this frame opens. Only set on Function frames.
	declared map[string]source.Pos
}

func newFrame(k FrameKind) *Frame {
	f := &Frame{
		Kind:    k,
		Symbols: map[string]*Symbol{},
		Funcs:   map[string]*ast.FuncDef{},
		Structs: map[string]*ast.StructDef{},
		Enums:   map[string]*ast.EnumDef{},
	}
	if k == Function {
		f.declared = map[string]source.Pos{}
	}
	return f
}

// Names returns the symbol names of the frame in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, 0, len(f.order))
	for _, n := range f.order {
		if _, ok := f.Symbols[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Mark returns the number of names inserted into f so far.
func (f *Frame) Mark() int { return len(f.order) }

// Hide removes the symbols inserted into f after mark and returns a
// function that puts them back.
func (f *Frame) Hide(mark int) (restore func()) {
	hidden := map[string]*Symbol{}
	for _, n := range f.order[mark:] {
		if sym, ok := f.Symbols[n]; ok {
			hidden[n] = sym
			delete(f.Symbols, n)
		}
	}
	return func() {
		for n, sym := range hidden {
			f.Symbols[n] = sym
		}
	}
}

type removal struct {
	frame int
	name  string
	sym   *Symbol
}

// Stack is a stack of frames. Frame 0 is the global frame.
type Stack struct {
	frames   []*Frame
	removals []removal
}

func NewStack() *Stack {
	return &Stack{frames: []*Frame{newFrame(Function)}}
}

func (s *Stack) Push(k FrameKind) *Frame {
	f := newFrame(k)
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the innermost frame and returns it. The global frame stays.
func (s *Stack) Pop() *Frame {
	if len(s.frames) <= 1 {
		return nil
	}
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	// Removals recorded against a popped frame cannot be restored.
	kept := s.removals[:0]
	for _, r := range s.removals {
		if r.frame < len(s.frames) {
			kept = append(kept, r)
		}
	}
	s.removals = kept
	return f
}

func (s *Stack) Depth() int { return len(s.frames) }

func (s *Stack) Top() *Frame { return s.frames[len(s.frames)-1] }

func (s *Stack) Global() *Frame { return s.frames[0] }

// AtGlobal reports whether only the global frame is open.
func (s *Stack) AtGlobal() bool { return len(s.frames) == 1 }

// functionIndex returns the index of the innermost Function frame.
func (s *Stack) functionIndex() int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == Function {
			return i
		}
	}
	return 0
}

// Insert adds a symbol to the innermost frame.
func (s *Stack) Insert(name string, sym *Symbol) {
	f := s.Top()
	if _, ok := f.Symbols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.Symbols[name] = sym
}

// InsertGlobal adds a symbol to the global frame.
func (s *Stack) InsertGlobal(name string, sym *Symbol) {
	f := s.Global()
	if _, ok := f.Symbols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.Symbols[name] = sym
}

func (s *Stack) InsertFunc(name string, fn *ast.FuncDef) { s.Top().Funcs[name] = fn }

func (s *Stack) InsertStruct(name string, st *ast.StructDef) { s.Top().Structs[name] = st }

func (s *Stack) InsertEnum(name string, en *ast.EnumDef) { s.Top().Enums[name] = en }

// Lookup scans frames from innermost to outermost.
func (s *Stack) Lookup(name string) (*Symbol, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if sym, ok := s.frames[i].Symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// FrameOf returns the index of the innermost frame holding name, or -1.
func (s *Stack) FrameOf(name string) int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].Symbols[name]; ok {
			return i
		}
	}
	return -1
}

// LookupLocal looks only at the innermost frame.
func (s *Stack) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.Top().Symbols[name]
	return sym, ok
}

func (s *Stack) LookupFunc(name string) (*ast.FuncDef, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if f, ok := s.frames[i].Funcs[name]; ok {
			return f, true
		}
	}
	return nil, false
}

func (s *Stack) LookupStruct(name string) (*ast.StructDef, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if st, ok := s.frames[i].Structs[name]; ok {
			return st, true
		}
	}
	return nil, false
}

func (s *Stack) LookupEnum(name string) (*ast.EnumDef, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if en, ok := s.frames[i].Enums[name]; ok {
			return en, true
		}
	}
	return nil, false
}

// IsClosureCapture reports whether name resolves only across a Function
// frame boundary to a frame that is neither global nor the current function.
func (s *Stack) IsClosureCapture(name string) bool {
	fi := s.functionIndex()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i].Symbols[name]; ok {
			return i != 0 && i < fi
		}
	}
	return false
}

// DeclareLocal records a function-local declaration of name at pos.
// It reports the previous position when the same function already
// declared name elsewhere. Revisiting the same (name, pos) is a no-op.
func (s *Stack) DeclareLocal(name string, pos source.Pos) (prev source.Pos, clash bool) {
	fi := s.functionIndex()
	if fi == 0 {
		return source.Pos{}, false
	}
	decl := s.frames[fi].declared
	if p, ok := decl[name]; ok {
		if p == pos {
			return p, false
		}
		return p, true
	}
	decl[name] = pos
	return source.Pos{}, false
}

// InFunction reports whether a Function frame other than the global one is open.
func (s *Stack) InFunction() bool { return s.functionIndex() > 0 }
