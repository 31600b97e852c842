package lexer

import "tilc/internal/source"

type Kind int

const (
	TokenEOF Kind = iota
	TokenBad

	// Literals / identifiers
	TokenIdent
	TokenNumber
	TokenString

	// Keywords
	TokenMode
	TokenMut
	TokenCopy
	TokenOwn
	TokenStruct
	TokenEnum
	TokenNamespace
	TokenReturns
	TokenThrows
	TokenFunc
	TokenProc
	TokenMacro
	TokenExtFunc
	TokenExtProc
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenIn
	TokenSwitch
	TokenCase
	TokenDefault
	TokenReturn
	TokenThrow
	TokenCatch
	TokenBreak
	TokenContinue
	TokenDefer
	TokenTrue
	TokenFalse

	// Punct
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenColon
	TokenDot
	TokenDoubleDot
	TokenEq
	TokenQuestion
	TokenBang
)

var kindNames = map[Kind]string{
	TokenEOF:        "EOF",
	TokenBad:        "invalid token",
	TokenIdent:      "identifier",
	TokenNumber:     "number",
	TokenString:     "string",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLBrace:     "'{'",
	TokenRBrace:     "'}'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenComma:      "','",
	TokenColon:      "':'",
	TokenDot:        "'.'",
	TokenDoubleDot:  "'..'",
	TokenEq:         "'='",
	TokenQuestion:   "'?'",
	TokenBang:       "'!'",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	for word, kw := range keywords {
		if kw == k {
			return "'" + word + "'"
		}
	}
	return "token"
}

var keywords = map[string]Kind{
	"mode":      TokenMode,
	"mut":       TokenMut,
	"copy":      TokenCopy,
	"own":       TokenOwn,
	"struct":    TokenStruct,
	"enum":      TokenEnum,
	"namespace": TokenNamespace,
	"returns":   TokenReturns,
	"throws":    TokenThrows,
	"func":      TokenFunc,
	"proc":      TokenProc,
	"macro":     TokenMacro,
	"ext_func":  TokenExtFunc,
	"ext_proc":  TokenExtProc,
	"if":        TokenIf,
	"else":      TokenElse,
	"while":     TokenWhile,
	"for":       TokenFor,
	"in":        TokenIn,
	"switch":    TokenSwitch,
	"case":      TokenCase,
	"default":   TokenDefault,
	"return":    TokenReturn,
	"throw":     TokenThrow,
	"catch":     TokenCatch,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"defer":     TokenDefer,
	"true":      TokenTrue,
	"false":     TokenFalse,
}

// forbidden maps words other languages reserve to a suggestion.
var forbidden = map[string]string{
	"fn":       "Suggestion: use 'func' or 'proc' instead",
	"function": "Suggestion: use 'func' or 'proc' instead",
	"let":      "Suggestion: use 'name := value' instead",
	"var":      "Suggestion: use 'mut name := value' instead",
	"const":    "Suggestion: declarations are constant by default, use 'name := value'",
	"try":      "Suggestion: mark the call with '?' and add a 'catch' instead",
	"class":    "Suggestion: use 'struct' instead",
	"global":   "Suggestion: declare it at the top level of the file instead",
	"static":   "Suggestion: declare it as a struct member without 'mut' instead",
}

// operators maps operator spellings to the core function that replaces them.
// Division has no core func since it has to throw on a zero divisor.
var operators = map[string]string{
	"+":  "add",
	"-":  "sub",
	"*":  "mul",
	"/":  "",
	"%":  "mod",
	"==": "eq",
	"!=": "not(eq(...))",
	"<":  "lt",
	"<=": "lteq",
	">":  "gt",
	">=": "gteq",
	"&&": "and",
	"||": "or",
}

type Token struct {
	Kind   Kind
	Lexeme string
	Span   source.Span
	// Err explains a TokenBad.
	Err string
}

func (t Token) Is(k Kind) bool { return t.Kind == k }

func (t Token) Pos() source.Pos { return t.Span.Pos() }
