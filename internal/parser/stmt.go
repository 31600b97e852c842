package parser

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/lexer"
	"tilc/internal/source"
)

func (p *Parser) parseStmt() *ast.Expr {
	t := p.peek()
	switch t.Kind {
	case lexer.TokenMut:
		return p.parseDeclStmt()
	case lexer.TokenIdent:
		if p.peekN(1).Kind == lexer.TokenColon {
			return p.parseDeclStmt()
		}
		return p.parseIdentStmt()
	case lexer.TokenReturn:
		return p.parseReturn()
	case lexer.TokenThrow:
		p.advance()
		return &ast.Expr{Kind: ast.NThrow, Pos: t.Pos(), Params: []*ast.Expr{p.parseExpr()}}
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		p.advance()
		cond := p.parseExpr()
		body := p.parseBlock()
		return &ast.Expr{Kind: ast.NWhile, Pos: t.Pos(), Params: []*ast.Expr{cond, body}}
	case lexer.TokenFor:
		return p.parseForIn()
	case lexer.TokenSwitch:
		return p.parseSwitch()
	case lexer.TokenCatch:
		return p.parseCatch()
	case lexer.TokenBreak:
		p.advance()
		return &ast.Expr{Kind: ast.NBreak, Pos: t.Pos()}
	case lexer.TokenContinue:
		p.advance()
		return &ast.Expr{Kind: ast.NContinue, Pos: t.Pos()}
	case lexer.TokenDefer:
		p.advance()
		st := p.parseStmt()
		if st == nil {
			return nil
		}
		return &ast.Expr{Kind: ast.NDefer, Pos: t.Pos(), Params: []*ast.Expr{st}}
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenCase, lexer.TokenDefault:
		p.errorHere(fmt.Sprintf("%s outside of a switch", t.Kind))
		p.advance()
		return nil
	}
	p.errorHere(fmt.Sprintf("expected statement, found %s", describe(t)))
	p.advance()
	return nil
}

// parseDeclStmt parses `[mut] name := e` and `[mut] name : T = e`.
func (p *Parser) parseDeclStmt() *ast.Expr {
	d, init, pos, ok := p.parseDeclaration(false)
	if !ok {
		return nil
	}
	return ast.NewDecl(pos, d, init)
}

// parseDeclaration parses a declaration. With optionalInit a typed
// declaration may omit the initializer, as struct members do.
func (p *Parser) parseDeclaration(optionalInit bool) (ast.Declaration, *ast.Expr, source.Pos, bool) {
	start := p.peek()
	d := ast.Declaration{Type: ast.Infer}
	if p.match(lexer.TokenMut) {
		d.IsMut = true
	}
	name := p.expect(lexer.TokenIdent, "expected declaration name")
	if name.Kind != lexer.TokenIdent {
		return d, nil, start.Pos(), false
	}
	d.Name = name.Lexeme
	p.expect(lexer.TokenColon, fmt.Sprintf("expected ':' after '%s'", d.Name))
	if !p.at(lexer.TokenEq) {
		d.Type = p.parseType()
		if !p.at(lexer.TokenEq) {
			if optionalInit {
				return d, nil, start.Pos(), true
			}
			p.errorHere(fmt.Sprintf("declaration of '%s' needs an initializer", d.Name))
			return d, nil, start.Pos(), false
		}
	}
	p.expect(lexer.TokenEq, "expected '='")
	init := p.parseExpr()
	return d, init, start.Pos(), init != nil
}

// parseIdentStmt parses assignments and call statements.
func (p *Parser) parseIdentStmt() *ast.Expr {
	start := p.peek()
	chain := p.parseChain()
	if p.match(lexer.TokenEq) {
		rhs := p.parseExpr()
		if rhs == nil {
			return nil
		}
		return &ast.Expr{Kind: ast.NAssignment, Pos: start.Pos(), Value: chain.CombinedName(), Params: []*ast.Expr{rhs}}
	}
	if p.at(lexer.TokenLParen) {
		return p.parseCallRest(chain)
	}
	p.errorAt(start.Span, fmt.Sprintf("expected assignment or call after '%s'", chain.CombinedName()))
	return nil
}

func (p *Parser) parseReturn() *ast.Expr {
	t := p.advance()
	ret := &ast.Expr{Kind: ast.NReturn, Pos: t.Pos()}
	// Return values start on the same line as the keyword.
	if !p.startsExpr() || p.peek().Pos().Line != t.Pos().Line {
		return ret
	}
	for {
		v := p.parseExpr()
		if v == nil {
			break
		}
		ret.Params = append(ret.Params, v)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return ret
}

func (p *Parser) parseIf() *ast.Expr {
	t := p.advance()
	cond := p.parseExpr()
	then := p.parseBlock()
	n := &ast.Expr{Kind: ast.NIf, Pos: t.Pos(), Params: []*ast.Expr{cond, then}}
	if p.match(lexer.TokenElse) {
		if p.at(lexer.TokenIf) {
			n.Params = append(n.Params, p.parseIf())
		} else {
			n.Params = append(n.Params, p.parseBlock())
		}
	}
	return n
}

// parseForIn parses `for v [: T] in a..b { body }`.
func (p *Parser) parseForIn() *ast.Expr {
	t := p.advance()
	name := p.expect(lexer.TokenIdent, "expected loop variable after 'for'")
	n := &ast.Expr{Kind: ast.NForIn, Pos: t.Pos(), VarType: ast.Infer}
	if p.match(lexer.TokenColon) {
		n.VarType = p.parseType()
	}
	p.expect(lexer.TokenIn, "expected 'in'")
	lo := p.parseExpr()
	dd := p.expect(lexer.TokenDoubleDot, "expected '..' in range")
	hi := p.parseExpr()
	rng := &ast.Expr{Kind: ast.NRange, Pos: dd.Pos(), Params: []*ast.Expr{lo, hi}}
	body := p.parseBlock()
	n.Params = []*ast.Expr{ast.NewIdent(name.Pos(), name.Lexeme), rng, body}
	return n
}

func (p *Parser) parseSwitch() *ast.Expr {
	t := p.advance()
	scrut := p.parseExpr()
	n := &ast.Expr{Kind: ast.NSwitch, Pos: t.Pos(), Params: []*ast.Expr{scrut}}
	p.expect(lexer.TokenLBrace, "expected '{' after switch expression")
	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		ct := p.peek()
		var pat *ast.Expr
		switch {
		case p.match(lexer.TokenDefault):
			pat = &ast.Expr{Kind: ast.NDefaultCase, Pos: ct.Pos()}
		case p.match(lexer.TokenCase):
			if p.at(lexer.TokenColon) {
				pat = &ast.Expr{Kind: ast.NDefaultCase, Pos: ct.Pos()}
			} else {
				pat = p.parseCasePattern()
			}
		default:
			p.errorHere(fmt.Sprintf("expected 'case' or 'default', found %s", describe(ct)))
			p.advance()
			continue
		}
		p.expect(lexer.TokenColon, "expected ':' after case pattern")
		var stmts []*ast.Expr
		for !p.at(lexer.TokenCase) && !p.at(lexer.TokenDefault) && !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
			before := p.pos
			if st := p.parseStmt(); st != nil {
				stmts = append(stmts, st)
			}
			if p.pos == before {
				p.advance()
			}
		}
		if pat == nil {
			continue
		}
		n.Params = append(n.Params, pat, ast.NewBody(ct.Pos(), stmts))
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close switch")
	return n
}

// parseCasePattern parses literals, ranges, E.V and E.V(binding).
func (p *Parser) parseCasePattern() *ast.Expr {
	start := p.peek()
	e := p.parseExpr()
	if e == nil {
		return nil
	}
	if p.at(lexer.TokenDoubleDot) {
		dd := p.advance()
		hi := p.parseExpr()
		return &ast.Expr{Kind: ast.NRange, Pos: dd.Pos(), Params: []*ast.Expr{e, hi}}
	}
	if e.Kind == ast.NFCall && !e.Call.DoesThrow && !e.Call.IsBang {
		callee, args := e.Callee(), e.Args()
		if len(callee.Chain()) >= 2 && len(args) == 1 && args[0].Kind == ast.NIdentifier && len(args[0].Params) == 0 {
			return &ast.Expr{Kind: ast.NPattern, Pos: start.Pos(), Pattern: ast.PatternInfo{
				VariantName: callee.CombinedName(),
				BindingVar:  args[0].Value,
			}}
		}
	}
	return e
}

// parseCatch parses `catch (v: T) { body }`.
func (p *Parser) parseCatch() *ast.Expr {
	t := p.advance()
	p.expect(lexer.TokenLParen, "expected '(' after 'catch'")
	v := p.expect(lexer.TokenIdent, "expected error variable name")
	p.expect(lexer.TokenColon, "expected ':' after error variable")
	ty := p.expect(lexer.TokenIdent, "expected error type")
	p.expect(lexer.TokenRParen, "expected ')'")
	body := p.parseBlock()
	return &ast.Expr{Kind: ast.NCatch, Pos: t.Pos(), Params: []*ast.Expr{
		ast.NewIdent(v.Pos(), v.Lexeme),
		ast.NewIdent(ty.Pos(), ty.Lexeme),
		body,
	}}
}
