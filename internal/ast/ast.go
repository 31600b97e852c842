package ast

import (
	"strings"

	"tilc/internal/source"
)

type NodeType int

const (
	NBody NodeType = iota
	NLiteral
	NIdentifier
	NFCall
	NNamedArg
	NDeclaration
	NAssignment
	NFuncDef
	NStructDef
	NEnumDef
	NIf
	NWhile
	NForIn
	NSwitch
	NDefaultCase
	NPattern
	NRange
	NReturn
	NThrow
	NCatch
	NBreak
	NContinue
	NDefer
)

var nodeNames = [...]string{
	NBody:        "Body",
	NLiteral:     "LLiteral",
	NIdentifier:  "Identifier",
	NFCall:       "FCall",
	NNamedArg:    "NamedArg",
	NDeclaration: "Declaration",
	NAssignment:  "Assignment",
	NFuncDef:     "FuncDef",
	NStructDef:   "StructDef",
	NEnumDef:     "EnumDef",
	NIf:          "If",
	NWhile:       "While",
	NForIn:       "ForIn",
	NSwitch:      "Switch",
	NDefaultCase: "DefaultCase",
	NPattern:     "Pattern",
	NRange:       "Range",
	NReturn:      "Return",
	NThrow:       "Throw",
	NCatch:       "Catch",
	NBreak:       "Break",
	NContinue:    "Continue",
	NDefer:       "Defer",
}

func (n NodeType) String() string {
	if int(n) < len(nodeNames) {
		return nodeNames[n]
	}
	return "?"
}

type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitStr
	LitBool
	LitList
)

// FCallInfo carries the call-site markers: '?' and '!'.
type FCallInfo struct {
	DoesThrow bool
	IsBang    bool
}

type PatternInfo struct {
	// VariantName is the qualified variant, e.g. "Opt.Some".
	VariantName string
	BindingVar  string
}

// Expr is the single node type of the tree. Kind selects which payload
// fields are meaningful; Params holds the ordered children.
//
// Children by kind:
//
//	Identifier  trailing chain elements (a.b.c = a[b, c])
//	FCall       callee, args...
//	NamedArg    value
//	Declaration initializer
//	Assignment  rhs
//	If          cond, then Body, [else Body | If]
//	While       cond, Body
//	ForIn       Identifier(var), Range, Body
//	Switch      scrutinee, (case, Body)...
//	Range       start, end
//	Return      values...
//	Throw       value
//	Catch       Identifier(var), Identifier(type), Body
//	Defer       statement
type Expr struct {
	Kind   NodeType
	Params []*Expr
	Pos    source.Pos

	Lit   LiteralKind
	Value string // literal text, identifier name, NamedArg name, Assignment path

	Call    FCallInfo
	Decl    *Declaration
	Func    *FuncDef
	Struct  *StructDef
	Enum    *EnumDef
	Pattern PatternInfo
	// VarType is the loop variable type of a ForIn and the scrutinee type
	// of a Switch.
	VarType ValueType
}

func (e *Expr) Line() int { return e.Pos.Line }
func (e *Expr) Col() int  { return e.Pos.Col }

func NewBody(pos source.Pos, stmts []*Expr) *Expr {
	return &Expr{Kind: NBody, Pos: pos, Params: stmts}
}

func NewIdent(pos source.Pos, name string, rest ...string) *Expr {
	e := &Expr{Kind: NIdentifier, Pos: pos, Value: name}
	for _, r := range rest {
		e.Params = append(e.Params, &Expr{Kind: NIdentifier, Pos: pos, Value: r})
	}
	return e
}

// NewChain builds an identifier chain from dotted parts.
func NewChain(pos source.Pos, parts []string) *Expr {
	return NewIdent(pos, parts[0], parts[1:]...)
}

func NewCall(pos source.Pos, callee *Expr, args []*Expr, info FCallInfo) *Expr {
	params := make([]*Expr, 0, len(args)+1)
	params = append(params, callee)
	params = append(params, args...)
	return &Expr{Kind: NFCall, Pos: pos, Params: params, Call: info}
}

func NewNumber(pos source.Pos, text string) *Expr {
	return &Expr{Kind: NLiteral, Lit: LitNumber, Pos: pos, Value: text}
}

func NewStr(pos source.Pos, s string) *Expr {
	return &Expr{Kind: NLiteral, Lit: LitStr, Pos: pos, Value: s}
}

func NewBool(pos source.Pos, b bool) *Expr {
	v := "false"
	if b {
		v = "true"
	}
	return &Expr{Kind: NLiteral, Lit: LitBool, Pos: pos, Value: v}
}

func NewDecl(pos source.Pos, d Declaration, init *Expr) *Expr {
	e := &Expr{Kind: NDeclaration, Pos: pos, Decl: &d}
	if init != nil {
		e.Params = []*Expr{init}
	}
	return e
}

// Chain returns the dotted parts of an identifier chain.
func (e *Expr) Chain() []string {
	if e == nil || e.Kind != NIdentifier {
		return nil
	}
	parts := []string{e.Value}
	for _, p := range e.Params {
		parts = append(parts, p.Value)
	}
	return parts
}

// CombinedName joins an identifier chain with dots.
func (e *Expr) CombinedName() string {
	return strings.Join(e.Chain(), ".")
}

// Callee returns the callee of an FCall.
func (e *Expr) Callee() *Expr {
	if e.Kind != NFCall || len(e.Params) == 0 {
		return nil
	}
	return e.Params[0]
}

// Args returns the arguments of an FCall.
func (e *Expr) Args() []*Expr {
	if e.Kind != NFCall || len(e.Params) == 0 {
		return nil
	}
	return e.Params[1:]
}

// CalleeName returns the combined callee name of an FCall.
func (e *Expr) CalleeName() string {
	c := e.Callee()
	if c == nil {
		return ""
	}
	return c.CombinedName()
}

// Init returns the single child of a Declaration, NamedArg or Assignment.
func (e *Expr) Init() *Expr {
	if len(e.Params) == 0 {
		return nil
	}
	return e.Params[0]
}

// IsCallTo reports whether e is a call whose callee is exactly name.
func (e *Expr) IsCallTo(name string) bool {
	return e != nil && e.Kind == NFCall && e.CalleeName() == name
}

// StringLiteralArg returns the literal text of the only argument, if it is a string literal.
func (e *Expr) StringLiteralArg() (string, bool) {
	args := e.Args()
	if len(args) != 1 || args[0].Kind != NLiteral || args[0].Lit != LitStr {
		return "", false
	}
	return args[0].Value, true
}
