// Package parser builds an Engine syntax tree from a token stream. It
// follows the teacher's recursive-descent shape (peek/previous/advance/
// isMatch/consume, one method per grammar rule) generalized to the full
// Engine statement grammar and precedence-climbing expression chain from
// §4.3.
package parser

import (
	"engine/internal/ast"
	"engine/internal/engerr"
	"engine/internal/token"
)

// Parser consumes a pre-scanned, trivia-free token slice (the caller elides
// WHITESPACE and COMMENT tokens before parsing; NEWLINE is kept because the
// grammar uses it as an explicit statement terminator).
type Parser struct {
	tokens   []token.Token
	position int
}

// Significant filters a raw lexer token stream down to the tokens the
// parser's grammar actually matches against: WHITESPACE and COMMENT are
// elided per §4.3 ("comment, whitespace, newline → discard" covers the
// trivia kinds the parser never needs to see directly; NEWLINE survives
// because several productions consume it explicitly).
func Significant(tokens []token.Token) []token.Token {
	out := make([]token.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type == token.WHITESPACE || t.Type == token.COMMENT {
			continue
		}
		out = append(out, t)
	}
	return out
}

// New constructs a Parser over an already-filtered token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.position]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.position-1]
}

func (p *Parser) isFinished() bool {
	return p.peek().Type == token.EOF
}

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) check(t token.Type) bool {
	if p.isFinished() {
		return t == token.EOF
	}
	return p.peek().Type == t
}

func (p *Parser) match(types ...token.Type) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t token.Type, format string, args ...any) (token.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	tok := p.peek()
	return token.Token{}, engerr.SyntaxError(engerr.StageParser, tok.Line, tok.Column, format, args...)
}

// skipBlank consumes any run of leading NEWLINE tokens, used between
// statements and at block boundaries where blank lines are meaningless.
func (p *Parser) skipBlank() {
	for p.check(token.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) consumeNewline() error {
	if p.check(token.EOF) || p.check(token.RCUR) {
		return nil
	}
	_, err := p.consume(token.NEWLINE, "expected newline")
	return err
}

// Parse consumes the whole token stream and returns the parsed statements.
// Parse errors are collected (not aborted on first failure) so a single
// run can report every syntax error in the source; the parser resyncs at
// the next NEWLINE after a bad statement.
func (p *Parser) Parse() ([]ast.Statement, []error) {
	var statements []ast.Statement
	var errs []error
	p.skipBlank()
	for !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			errs = append(errs, err)
			p.synchronize()
			continue
		}
		if stmt != nil {
			statements = append(statements, stmt)
		}
		p.skipBlank()
	}
	return statements, errs
}

func (p *Parser) synchronize() {
	for !p.isFinished() && !p.check(token.NEWLINE) {
		p.advance()
	}
	p.skipBlank()
}

func (p *Parser) declaration() (ast.Statement, error) {
	switch p.peek().Type {
	case token.BOOL, token.INT, token.DOUBLE, token.CHAR, token.STRING, token.VAR:
		return p.defineStatement()
	case token.IDENTIFIER:
		return p.reassignStatement()
	case token.PRINT:
		return p.printStatement()
	case token.IF:
		return p.ifStatement()
	case token.FOR:
		return p.forStatement()
	case token.CONTINUE:
		tok := p.advance()
		return &ast.Continue{Tok: tok}, p.consumeNewline()
	case token.BREAK:
		tok := p.advance()
		return &ast.Break{Tok: tok}, p.consumeNewline()
	default:
		tok := p.peek()
		return nil, engerr.SyntaxError(engerr.StageParser, tok.Line, tok.Column, "unexpected token %q", tok.Lexeme)
	}
}

var declaredTypes = map[token.Type]ast.ValueType{
	token.BOOL:   ast.Bool,
	token.INT:    ast.Int,
	token.DOUBLE: ast.Double,
	token.CHAR:   ast.Char,
	token.STRING: ast.String,
}

func (p *Parser) defineStatement() (ast.Statement, error) {
	typeTok := p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected identifier after type keyword")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ASSIGN, "expected '=' in declaration of %q", name.Lexeme); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	declared, inferred := declaredTypes[typeTok.Type], false
	if typeTok.Type == token.VAR {
		inferred = true
	}
	return &ast.Define{Tok: typeTok, Name: name, DeclaredType: declared, Inferred: inferred, Value: value}, p.consumeNewline()
}

var reassignOps = map[token.Type]bool{
	token.ASSIGN: true, token.PLUS_EQ: true, token.MINUS_EQ: true,
	token.MUL_EQ: true, token.DIV_EQ: true, token.MOD_EQ: true,
}

func (p *Parser) reassignStatement() (ast.Statement, error) {
	name := p.advance()
	op := p.peek()
	if !reassignOps[op.Type] {
		return nil, engerr.SyntaxError(engerr.StageParser, op.Line, op.Column, "expected assignment operator after %q", name.Lexeme)
	}
	p.advance()
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Reassign{Name: name, Operator: op, Value: value}, p.consumeNewline()
}

func (p *Parser) printStatement() (ast.Statement, error) {
	tok := p.advance()
	if _, err := p.consume(token.LPA, "expected '(' after print"); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "expected ')' to close print"); err != nil {
		return nil, err
	}
	return &ast.Print{Tok: tok, Value: value}, p.consumeNewline()
}

func (p *Parser) block() ([]ast.Statement, error) {
	if _, err := p.consume(token.LCUR, "expected '{'"); err != nil {
		return nil, err
	}
	p.skipBlank()
	var stmts []ast.Statement
	for !p.check(token.RCUR) && !p.isFinished() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipBlank()
	}
	if _, err := p.consume(token.RCUR, "expected '}' to close block"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) ifStatement() (ast.Statement, error) {
	tok := p.advance()
	var branches []ast.Branch

	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	branches = append(branches, ast.Branch{Condition: cond, Body: body})

	for p.check(token.ELSE) {
		p.advance()
		if p.check(token.IF) {
			p.advance()
			cond, err := p.expression()
			if err != nil {
				return nil, err
			}
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.Branch{Condition: cond, Body: body})
			continue
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		branches = append(branches, ast.Branch{Condition: nil, Body: body})
		break
	}

	return &ast.If{Tok: tok, Branches: branches}, p.consumeNewline()
}

func (p *Parser) forStatement() (ast.Statement, error) {
	tok := p.advance()
	name, err := p.consume(token.IDENTIFIER, "expected loop variable after 'for'")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.IN, "expected 'in' after loop variable"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.LPA, "expected '(' after 'in'"); err != nil {
		return nil, err
	}
	start, err := p.optionalExpression(token.COMMA)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COMMA, "expected ',' after for start expression"); err != nil {
		return nil, err
	}
	stop, err := p.optionalExpression(token.COMMA)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.COMMA, "expected ',' after for stop expression"); err != nil {
		return nil, err
	}
	step, err := p.optionalExpression(token.RPA)
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "expected ')' to close for clause"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.For{Tok: tok, Name: name, Start: start, Stop: stop, Step: step, Body: body}, p.consumeNewline()
}

// optionalExpression parses an expression unless the next token is the
// clause's terminator (a bare comma/paren), in which case it returns nil.
func (p *Parser) optionalExpression(terminator token.Type) (ast.Expression, error) {
	if p.check(terminator) {
		return nil, nil
	}
	return p.expression()
}

// --- expression parsing: precedence climbing, lowest to highest ---
// || , && , (reserved | ^ &) , == != , < <= > >= , + - , * / % , atoms.

func (p *Parser) expression() (ast.Expression, error) {
	return p.or()
}

func (p *Parser) or() (ast.Expression, error) {
	return p.binaryLevel(p.and, token.OR)
}

func (p *Parser) and() (ast.Expression, error) {
	return p.binaryLevel(p.equality, token.AND)
}

func (p *Parser) equality() (ast.Expression, error) {
	return p.binaryLevel(p.comparison, token.EQUAL_EQUAL, token.NOT_EQUAL)
}

func (p *Parser) comparison() (ast.Expression, error) {
	return p.binaryLevel(p.term, token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL)
}

func (p *Parser) term() (ast.Expression, error) {
	return p.binaryLevel(p.factor, token.PLUS, token.MINUS)
}

func (p *Parser) factor() (ast.Expression, error) {
	return p.binaryLevel(p.primary, token.MUL, token.DIV, token.MOD)
}

func (p *Parser) binaryLevel(next func() (ast.Expression, error), operators ...token.Type) (ast.Expression, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for containsType(operators, p.peek().Type) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func containsType(types []token.Type, t token.Type) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func (p *Parser) primary() (ast.Expression, error) {
	tok := p.peek()
	switch tok.Type {
	case token.TRUE:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.Bool, Value: true}, nil
	case token.FALSE:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.Bool, Value: false}, nil
	case token.INT_LIT:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.Int, Value: tok.Literal.(int64)}, nil
	case token.DOUBLE_LIT:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.Double, Value: tok.Literal.(float64)}, nil
	case token.CHAR_LIT:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.Char, Value: tok.Literal.(rune)}, nil
	case token.STRING_LIT:
		p.advance()
		return &ast.Literal{Tok: tok, Type: ast.String, Value: tok.Literal.(string)}, nil
	case token.IDENTIFIER:
		p.advance()
		return &ast.Variable{Name: tok}, nil
	case token.INPUT:
		return p.inputExpression()
	case token.LPA:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPA, "expected ')' to close grouping"); err != nil {
			return nil, err
		}
		return &ast.Grouping{Paren: tok, Expression: inner}, nil
	default:
		return nil, engerr.SyntaxError(engerr.StageParser, tok.Line, tok.Column, "unexpected token %q in expression", tok.Lexeme)
	}
}

func (p *Parser) inputExpression() (ast.Expression, error) {
	tok := p.advance()
	if _, err := p.consume(token.LPA, "expected '(' after input"); err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPA, "expected ')' to close input"); err != nil {
		return nil, err
	}
	target := ast.String
	if p.check(token.AS) {
		p.advance()
		typeTok := p.peek()
		declared, ok := declaredTypes[typeTok.Type]
		if !ok {
			return nil, engerr.SyntaxError(engerr.StageParser, typeTok.Line, typeTok.Column, "expected type keyword after 'as'")
		}
		p.advance()
		target = declared
	}
	return &ast.Input{Tok: tok, TargetType: target}, nil
}
