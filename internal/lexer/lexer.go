package lexer

import (
	"fmt"
	"strings"

	"tilc/internal/source"
)

func Lex(file *source.File) []Token {
	lx := &lexer{file: file, input: file.Input}
	for {
		lx.skipSpaceAndComments()
		start := lx.pos
		if lx.pos >= len(lx.input) {
			lx.emit(TokenEOF, "", start, start)
			break
		}
		ch := lx.peek()
		switch {
		case isIdentStart(ch):
			lx.lexIdentOrKeyword()
		case isDigit(ch):
			lx.lexNumber()
		case ch == '-' && lx.pos+1 < len(lx.input) && isDigit(lx.input[lx.pos+1]):
			lx.lexNumber()
		default:
			lx.lexPunct()
		}
	}
	return lx.tokens
}

type lexer struct {
	file   *source.File
	input  string
	pos    int
	tokens []Token
}

func (lx *lexer) peek() byte { return lx.input[lx.pos] }

func (lx *lexer) peekAt(off int) byte {
	if lx.pos+off >= len(lx.input) {
		return 0
	}
	return lx.input[lx.pos+off]
}

func (lx *lexer) emit(k Kind, lex string, start, end int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:   k,
		Lexeme: lex,
		Span:   source.Span{File: lx.file, Start: start, End: end},
	})
}

func (lx *lexer) bad(msg string, start, end int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:   TokenBad,
		Lexeme: lx.input[start:end],
		Span:   source.Span{File: lx.file, Start: start, End: end},
		Err:    msg,
	})
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.input) {
		ch := lx.input[lx.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == ';' {
			lx.pos++
			continue
		}
		if ch == '#' || (ch == '/' && lx.peekAt(1) == '/') {
			for lx.pos < len(lx.input) && lx.input[lx.pos] != '\n' {
				lx.pos++
			}
			continue
		}
		if ch == '/' && lx.peekAt(1) == '*' {
			lx.skipBlockComment()
			continue
		}
		return
	}
}

// skipBlockComment consumes a /* */ comment. Block comments nest.
func (lx *lexer) skipBlockComment() {
	start := lx.pos
	depth := 0
	for lx.pos < len(lx.input) {
		if lx.input[lx.pos] == '/' && lx.peekAt(1) == '*' {
			depth++
			lx.pos += 2
			continue
		}
		if lx.input[lx.pos] == '*' && lx.peekAt(1) == '/' {
			depth--
			lx.pos += 2
			if depth == 0 {
				return
			}
			continue
		}
		lx.pos++
	}
	lx.bad("unterminated block comment", start, start+2)
}

func (lx *lexer) lexIdentOrKeyword() {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.input) && isIdentContinue(lx.input[lx.pos]) {
		lx.pos++
	}
	lex := lx.input[start:lx.pos]
	if k, ok := keywords[lex]; ok {
		lx.emit(k, lex, start, lx.pos)
		return
	}
	if hint, ok := forbidden[lex]; ok {
		lx.bad(fmt.Sprintf("'%s' is a reserved word. %s", lex, hint), start, lx.pos)
		return
	}
	lx.emit(TokenIdent, lex, start, lx.pos)
}

func (lx *lexer) lexNumber() {
	start := lx.pos
	if lx.input[lx.pos] == '-' {
		lx.pos++
	}
	for lx.pos < len(lx.input) && isDigit(lx.input[lx.pos]) {
		lx.pos++
	}
	if lx.pos < len(lx.input) && isIdentStart(lx.input[lx.pos]) {
		for lx.pos < len(lx.input) && isIdentContinue(lx.input[lx.pos]) {
			lx.pos++
		}
		lx.bad(fmt.Sprintf("invalid number literal '%s'", lx.input[start:lx.pos]), start, lx.pos)
		return
	}
	lx.emit(TokenNumber, lx.input[start:lx.pos], start, lx.pos)
}

// lexString keeps the raw quoted text; stringlit decodes it.
func (lx *lexer) lexString() {
	start := lx.pos
	lx.pos++ // opening quote
	for lx.pos < len(lx.input) {
		ch := lx.input[lx.pos]
		if ch == '\\' {
			lx.pos += 2
			continue
		}
		if ch == '"' {
			lx.pos++
			lx.emit(TokenString, lx.input[start:lx.pos], start, lx.pos)
			return
		}
		lx.pos++
	}
	if lx.pos > len(lx.input) {
		lx.pos = len(lx.input)
	}
	lx.bad("unterminated string literal", start, lx.pos)
}

func (lx *lexer) lexPunct() {
	start := lx.pos
	if strings.HasPrefix(lx.input[lx.pos:], "…") {
		lx.pos += len("…")
		lx.emit(TokenDoubleDot, "..", start, lx.pos)
		return
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||"} {
		if strings.HasPrefix(lx.input[lx.pos:], op) {
			lx.pos += len(op)
			lx.badOperator(op, start)
			return
		}
	}
	ch := lx.input[lx.pos]
	lx.pos++
	switch ch {
	case '(':
		lx.emit(TokenLParen, "(", start, lx.pos)
	case ')':
		lx.emit(TokenRParen, ")", start, lx.pos)
	case '{':
		lx.emit(TokenLBrace, "{", start, lx.pos)
	case '}':
		lx.emit(TokenRBrace, "}", start, lx.pos)
	case '[':
		lx.emit(TokenLBracket, "[", start, lx.pos)
	case ']':
		lx.emit(TokenRBracket, "]", start, lx.pos)
	case ',':
		lx.emit(TokenComma, ",", start, lx.pos)
	case ':':
		lx.emit(TokenColon, ":", start, lx.pos)
	case '.':
		if lx.pos < len(lx.input) && lx.input[lx.pos] == '.' {
			lx.pos++
			lx.emit(TokenDoubleDot, "..", start, lx.pos)
		} else {
			lx.emit(TokenDot, ".", start, lx.pos)
		}
	case '=':
		lx.emit(TokenEq, "=", start, lx.pos)
	case '?':
		lx.emit(TokenQuestion, "?", start, lx.pos)
	case '!':
		lx.emit(TokenBang, "!", start, lx.pos)
	case '+', '-', '*', '/', '%', '<', '>':
		lx.badOperator(string(ch), start)
	case '"':
		lx.pos-- // back to opening
		lx.lexString()
	default:
		lx.bad(fmt.Sprintf("unexpected character '%c'", ch), start, lx.pos)
	}
}

func (lx *lexer) badOperator(op string, start int) {
	fn := operators[op]
	if fn == "" {
		lx.bad(fmt.Sprintf("operator '%s' is not supported. Suggestion: declare a func that throws on invalid input instead", op), start, lx.pos)
		return
	}
	lx.bad(fmt.Sprintf("operator '%s' is not supported. Suggestion: use core func '%s' instead", op, fn), start, lx.pos)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
