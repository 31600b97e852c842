package parser

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/diag"
	"tilc/internal/lexer"
	"tilc/internal/mode"
	"tilc/internal/source"
)

type Parser struct {
	file  *source.File
	toks  []lexer.Token
	pos   int
	diags *diag.Bag
}

// Parse parses a whole file. The returned program is never nil; when the
// bag has errors its body holds whatever could be recovered.
func Parse(file *source.File) (*ast.Program, *diag.Bag) {
	toks := lexer.Lex(file)
	p := &Parser{file: file, toks: toks, diags: &diag.Bag{}}
	for _, t := range toks {
		if t.Kind == lexer.TokenBad {
			p.errorAt(t.Span, t.Err)
		}
	}
	p.toks = dropBad(toks)
	return p.parseProgram(), p.diags
}

// ParseBody parses a statement sequence without a mode header.
func ParseBody(file *source.File) (*ast.Expr, *diag.Bag) {
	toks := lexer.Lex(file)
	p := &Parser{file: file, diags: &diag.Bag{}}
	for _, t := range toks {
		if t.Kind == lexer.TokenBad {
			p.errorAt(t.Span, t.Err)
		}
	}
	p.toks = dropBad(toks)
	start := p.peek().Pos()
	return ast.NewBody(start, p.parseStmtsUntil(lexer.TokenEOF)), p.diags
}

func dropBad(toks []lexer.Token) []lexer.Token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.Kind != lexer.TokenBad {
			out = append(out, t)
		}
	}
	return out
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{Path: p.file.Name}
	start := p.peek()
	if !p.match(lexer.TokenMode) {
		p.errorHere("expected 'mode <name>' at the start of the file")
	} else {
		prog.ModePos = p.prev().Pos()
		name := p.expect(lexer.TokenIdent, "expected mode name after 'mode'")
		if name.Kind == lexer.TokenIdent {
			if _, err := mode.Lookup(name.Lexeme); err != nil {
				p.errorAt(name.Span, err.Error())
			}
			prog.Mode = name.Lexeme
		}
	}
	prog.Body = ast.NewBody(start.Pos(), p.parseStmtsUntil(lexer.TokenEOF))
	return prog
}

// parseStmtsUntil parses statements up to (not including) end or EOF.
func (p *Parser) parseStmtsUntil(end lexer.Kind) []*ast.Expr {
	var stmts []*ast.Expr
	for !p.at(end) && !p.at(lexer.TokenEOF) {
		before := p.pos
		st := p.parseStmt()
		if st != nil {
			stmts = append(stmts, st)
		}
		if p.pos == before {
			// No progress: skip the offending token.
			p.advance()
		}
	}
	return stmts
}

func (p *Parser) parseBlock() *ast.Expr {
	open := p.expect(lexer.TokenLBrace, "expected '{'")
	stmts := p.parseStmtsUntil(lexer.TokenRBrace)
	p.expect(lexer.TokenRBrace, "expected '}'")
	return ast.NewBody(open.Pos(), stmts)
}

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) prev() lexer.Token { return p.toks[p.pos-1] }

func (p *Parser) at(k lexer.Kind) bool { return p.peek().Kind == k }

func (p *Parser) match(k lexer.Kind) bool {
	if p.at(k) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if t.Kind != lexer.TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind, msg string) lexer.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorAt(p.peek().Span, fmt.Sprintf("%s, found %s", msg, describe(p.peek())))
	return p.peek()
}

func (p *Parser) errorHere(msg string) {
	p.errorAt(p.peek().Span, msg)
}

func (p *Parser) errorAt(s source.Span, msg string) {
	fn, line, col := s.LocStart()
	p.diags.Add(fn, line, col, diag.Syntax, msg)
}

func describe(t lexer.Token) string {
	switch t.Kind {
	case lexer.TokenIdent, lexer.TokenNumber, lexer.TokenString:
		return fmt.Sprintf("%s '%s'", t.Kind, t.Lexeme)
	}
	return t.Kind.String()
}
