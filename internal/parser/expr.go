package parser

import (
	"fmt"

	"tilc/internal/ast"
	"tilc/internal/lexer"
	"tilc/internal/stringlit"
)

func (p *Parser) startsExpr() bool {
	switch p.peek().Kind {
	case lexer.TokenIdent, lexer.TokenNumber, lexer.TokenString, lexer.TokenTrue, lexer.TokenFalse,
		lexer.TokenLBracket, lexer.TokenLParen,
		lexer.TokenFunc, lexer.TokenProc, lexer.TokenMacro, lexer.TokenExtFunc, lexer.TokenExtProc,
		lexer.TokenStruct, lexer.TokenEnum:
		return true
	}
	return false
}

func (p *Parser) parseExpr() *ast.Expr {
	t := p.peek()
	switch t.Kind {
	case lexer.TokenNumber:
		p.advance()
		return ast.NewNumber(t.Pos(), t.Lexeme)
	case lexer.TokenString:
		p.advance()
		s, err := stringlit.Decode(t.Lexeme)
		if err != nil {
			p.errorAt(t.Span, err.Error())
		}
		return ast.NewStr(t.Pos(), s)
	case lexer.TokenTrue, lexer.TokenFalse:
		p.advance()
		return ast.NewBool(t.Pos(), t.Kind == lexer.TokenTrue)
	case lexer.TokenLBracket:
		return p.parseList()
	case lexer.TokenLParen:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.TokenRParen, "expected ')'")
		return e
	case lexer.TokenIdent:
		chain := p.parseChain()
		if p.at(lexer.TokenLParen) {
			return p.parseCallRest(chain)
		}
		return chain
	case lexer.TokenFunc, lexer.TokenProc, lexer.TokenMacro, lexer.TokenExtFunc, lexer.TokenExtProc:
		return p.parseFuncDef()
	case lexer.TokenStruct:
		return p.parseStructDef()
	case lexer.TokenEnum:
		return p.parseEnumDef()
	}
	p.errorHere(fmt.Sprintf("expected expression, found %s", describe(t)))
	return nil
}

func (p *Parser) parseList() *ast.Expr {
	open := p.advance()
	n := &ast.Expr{Kind: ast.NLiteral, Lit: ast.LitList, Pos: open.Pos()}
	for !p.at(lexer.TokenRBracket) && !p.at(lexer.TokenEOF) {
		item := p.parseExpr()
		if item == nil {
			break
		}
		n.Params = append(n.Params, item)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRBracket, "expected ']'")
	return n
}

// parseChain parses `a.b.c` into a flat identifier chain.
func (p *Parser) parseChain() *ast.Expr {
	first := p.advance()
	parts := []string{first.Lexeme}
	for p.at(lexer.TokenDot) {
		p.advance()
		next := p.expect(lexer.TokenIdent, "expected identifier after '.'")
		if next.Kind != lexer.TokenIdent {
			break
		}
		parts = append(parts, next.Lexeme)
	}
	return ast.NewChain(first.Pos(), parts)
}

// parseCallRest parses the argument list and the '?' or '!' marker.
func (p *Parser) parseCallRest(callee *ast.Expr) *ast.Expr {
	p.expect(lexer.TokenLParen, "expected '('")
	var args []*ast.Expr
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		if p.at(lexer.TokenIdent) && p.peekN(1).Kind == lexer.TokenEq {
			name := p.advance()
			p.advance()
			v := p.parseExpr()
			if v == nil {
				break
			}
			args = append(args, &ast.Expr{Kind: ast.NNamedArg, Pos: name.Pos(), Value: name.Lexeme, Params: []*ast.Expr{v}})
		} else {
			a := p.parseExpr()
			if a == nil {
				break
			}
			args = append(args, a)
		}
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen, "expected ')' to close call")
	var info ast.FCallInfo
	switch {
	case p.match(lexer.TokenQuestion):
		info.DoesThrow = true
	case p.match(lexer.TokenBang):
		info.IsBang = true
	}
	return ast.NewCall(callee.Pos, callee, args, info)
}

var funcKinds = map[lexer.Kind]ast.FunctionType{
	lexer.TokenFunc:    ast.FTFunc,
	lexer.TokenProc:    ast.FTProc,
	lexer.TokenMacro:   ast.FTMacro,
	lexer.TokenExtFunc: ast.FTFuncExt,
	lexer.TokenExtProc: ast.FTProcExt,
}

// parseType parses a type name: T, ..T, T.. or a metatype keyword.
func (p *Parser) parseType() ast.ValueType {
	if p.match(lexer.TokenDoubleDot) {
		name := p.expect(lexer.TokenIdent, "expected element type after '..'")
		return ast.Multi(name.Lexeme)
	}
	t := p.peek()
	switch t.Kind {
	case lexer.TokenIdent:
		p.advance()
		if p.match(lexer.TokenDoubleDot) {
			return ast.Multi(t.Lexeme)
		}
		return ast.ParseTypeName(t.Lexeme)
	case lexer.TokenFunc, lexer.TokenProc, lexer.TokenMacro, lexer.TokenExtFunc, lexer.TokenExtProc,
		lexer.TokenStruct, lexer.TokenEnum:
		p.advance()
		return ast.ParseTypeName(t.Lexeme)
	}
	p.errorHere(fmt.Sprintf("expected type, found %s", describe(t)))
	return ast.Infer
}

func (p *Parser) parseFuncDef() *ast.Expr {
	kw := p.advance()
	fd := &ast.FuncDef{Kind: funcKinds[kw.Kind]}
	p.expect(lexer.TokenLParen, fmt.Sprintf("expected '(' after '%s'", kw.Lexeme))
	for !p.at(lexer.TokenRParen) && !p.at(lexer.TokenEOF) {
		arg, ok := p.parseParam()
		if !ok {
			break
		}
		fd.Args = append(fd.Args, arg)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.expect(lexer.TokenRParen, "expected ')' to close parameters")
	if p.match(lexer.TokenReturns) {
		fd.Returns = p.parseTypeList()
	}
	if p.match(lexer.TokenThrows) {
		fd.Throws = p.parseTypeList()
	}
	if p.at(lexer.TokenLBrace) {
		fd.Body = p.parseBlock().Params
		fd.HasBody = true
	}
	return &ast.Expr{Kind: ast.NFuncDef, Pos: kw.Pos(), Func: fd}
}

func (p *Parser) parseTypeList() []ast.ValueType {
	out := []ast.ValueType{p.parseType()}
	for p.match(lexer.TokenComma) {
		out = append(out, p.parseType())
	}
	return out
}

// parseParam accepts `name: [mut|copy|own] T [= default]`, the older
// `mut name: T`, and nameless signature parameters.
func (p *Parser) parseParam() (ast.Declaration, bool) {
	var d ast.Declaration
	prefixed := p.parseParamFlags(&d)
	if prefixed || (p.at(lexer.TokenIdent) && p.peekN(1).Kind == lexer.TokenColon) {
		name := p.expect(lexer.TokenIdent, "expected parameter name")
		if name.Kind != lexer.TokenIdent {
			return d, false
		}
		d.Name = name.Lexeme
		p.expect(lexer.TokenColon, fmt.Sprintf("expected ':' after parameter '%s'", d.Name))
		if !prefixed {
			p.parseParamFlags(&d)
		}
	}
	d.Type = p.parseType()
	if d.Name != "" && p.match(lexer.TokenEq) {
		d.Default = p.parseExpr()
	}
	return d, true
}

func (p *Parser) parseParamFlags(d *ast.Declaration) bool {
	switch {
	case p.match(lexer.TokenMut):
		d.IsMut = true
	case p.match(lexer.TokenCopy):
		d.IsCopy = true
	case p.match(lexer.TokenOwn):
		d.IsOwn = true
	default:
		return false
	}
	return true
}

func (p *Parser) parseStructDef() *ast.Expr {
	kw := p.advance()
	sd := &ast.StructDef{Defaults: map[string]*ast.Expr{}, NS: ast.Namespace{Defaults: map[string]*ast.Expr{}}}
	p.expect(lexer.TokenLBrace, "expected '{' after 'struct'")
	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		if p.at(lexer.TokenNamespace) {
			p.parseNamespace(&sd.NS)
			continue
		}
		if p.match(lexer.TokenComma) {
			continue
		}
		before := p.pos
		d, init, _, ok := p.parseDeclaration(true)
		if ok {
			sd.Members = append(sd.Members, d)
			if init != nil {
				sd.Defaults[d.Name] = init
			}
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close struct")
	return &ast.Expr{Kind: ast.NStructDef, Pos: kw.Pos(), Struct: sd}
}

// parseEnumDef parses variants `A`, `B: T` and `C(T)` with an optional namespace.
func (p *Parser) parseEnumDef() *ast.Expr {
	kw := p.advance()
	ed := &ast.EnumDef{NS: ast.Namespace{Defaults: map[string]*ast.Expr{}}}
	p.expect(lexer.TokenLBrace, "expected '{' after 'enum'")
	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		if p.at(lexer.TokenNamespace) {
			p.parseNamespace(&ed.NS)
			continue
		}
		if p.match(lexer.TokenComma) {
			continue
		}
		name := p.expect(lexer.TokenIdent, "expected enum variant name")
		if name.Kind != lexer.TokenIdent {
			p.advance()
			continue
		}
		v := ast.Variant{Name: name.Lexeme}
		switch {
		case p.match(lexer.TokenColon):
			t := p.parseType()
			v.Payload = &t
		case p.match(lexer.TokenLParen):
			t := p.parseType()
			v.Payload = &t
			p.expect(lexer.TokenRParen, "expected ')' after variant payload type")
		}
		if _, dup := ed.Variant(v.Name); dup {
			p.errorAt(name.Span, fmt.Sprintf("duplicate enum variant '%s'", v.Name))
			continue
		}
		ed.Variants = append(ed.Variants, v)
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close enum")
	return &ast.Expr{Kind: ast.NEnumDef, Pos: kw.Pos(), Enum: ed}
}

func (p *Parser) parseNamespace(ns *ast.Namespace) {
	p.advance()
	if ns.Defaults == nil {
		ns.Defaults = map[string]*ast.Expr{}
	}
	p.expect(lexer.TokenLBrace, "expected '{' after 'namespace'")
	for !p.at(lexer.TokenRBrace) && !p.at(lexer.TokenEOF) {
		before := p.pos
		d, init, _, ok := p.parseDeclaration(false)
		if ok {
			ns.Members = append(ns.Members, d)
			ns.Defaults[d.Name] = init
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect(lexer.TokenRBrace, "expected '}' to close namespace")
}
