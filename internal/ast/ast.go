// Package ast defines the Engine syntax tree. Per the design notes on the
// source this was distilled from, each node family (Expression, Statement)
// is a single tagged sum type — one concrete Go type per variant, each
// carrying exactly the fields that variant needs, rather than one struct
// with many optional fields. Both families follow the visitor pattern so
// passes (analyzer, interpreter, emitter) add behavior without touching
// the node types themselves.
package ast

import "engine/internal/token"

// ValueType is one of the five primitive types tracked by the analyzer,
// interpreter, and emitter.
type ValueType string

const (
	Bool   ValueType = "Bool"
	Int    ValueType = "Int"
	Double ValueType = "Double"
	Char   ValueType = "Char"
	String ValueType = "String"
)

// Expression is any node that produces a value.
type Expression interface {
	Accept(v ExpressionVisitor) any
	Token() token.Token
}

type ExpressionVisitor interface {
	VisitBinary(e *Binary) any
	VisitLiteral(e *Literal) any
	VisitGrouping(e *Grouping) any
	VisitVariable(e *Variable) any
	VisitInput(e *Input) any
}

// Binary is an interior expression node: a left/right child pair joined by
// one of the operators in the precedence table (§4.3).
type Binary struct {
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (e *Binary) Accept(v ExpressionVisitor) any { return v.VisitBinary(e) }
func (e *Binary) Token() token.Token             { return e.Operator }

// Literal is a leaf node carrying a literal token and its decoded value.
type Literal struct {
	Tok   token.Token
	Type  ValueType
	Value any
}

func (e *Literal) Accept(v ExpressionVisitor) any { return v.VisitLiteral(e) }
func (e *Literal) Token() token.Token             { return e.Tok }

// Grouping is a parenthesized sub-expression, kept so precedence printing
// can reproduce minimal parentheses (testable property 2).
type Grouping struct {
	Paren      token.Token
	Expression Expression
}

func (e *Grouping) Accept(v ExpressionVisitor) any { return v.VisitGrouping(e) }
func (e *Grouping) Token() token.Token             { return e.Paren }

// Variable is a leaf node referencing an identifier.
type Variable struct {
	Name token.Token
}

func (e *Variable) Accept(v ExpressionVisitor) any { return v.VisitVariable(e) }
func (e *Variable) Token() token.Token             { return e.Name }

// Input is the `input(...)[ as <type>]` form, shaped per §4.3 as a unary
// "convert" node: it has no children, only the target type it coerces the
// read line into (defaulting to String when `as` is absent).
type Input struct {
	Tok        token.Token
	TargetType ValueType
}

func (e *Input) Accept(v ExpressionVisitor) any { return v.VisitInput(e) }
func (e *Input) Token() token.Token             { return e.Tok }

// Statement is any node executed for effect.
type Statement interface {
	Accept(v StatementVisitor) any
	Token() token.Token
}

type StatementVisitor interface {
	VisitDefine(s *Define) any
	VisitReassign(s *Reassign) any
	VisitPrint(s *Print) any
	VisitIf(s *If) any
	VisitFor(s *For) any
	VisitContinue(s *Continue) any
	VisitBreak(s *Break) any
}

// Define covers every `<type> <ident> = <expr>` form, including `var`
// (type-inferred: DeclaredType is empty in that case).
type Define struct {
	Tok          token.Token
	Name         token.Token
	DeclaredType ValueType // empty for `var`
	Inferred     bool
	Value        Expression
}

func (s *Define) Accept(v StatementVisitor) any { return v.VisitDefine(s) }
func (s *Define) Token() token.Token            { return s.Tok }

// Reassign covers `<ident> <op> <expr>` where op is one of
// `= += -= *= /= %=`.
type Reassign struct {
	Name     token.Token
	Operator token.Token
	Value    Expression
}

func (s *Reassign) Accept(v StatementVisitor) any { return v.VisitReassign(s) }
func (s *Reassign) Token() token.Token            { return s.Name }

// Print is `print(<expr>)`.
type Print struct {
	Tok   token.Token
	Value Expression
}

func (s *Print) Accept(v StatementVisitor) any { return v.VisitPrint(s) }
func (s *Print) Token() token.Token            { return s.Tok }

// Branch is one arm of an if/else-if/else chain: Condition is nil for a
// trailing `else`.
type Branch struct {
	Condition Expression
	Body      []Statement
}

// If is the full if/else-if/else chain. Branches[0] is the `if`; any
// further branches with a non-nil Condition are `else if`; at most one
// trailing branch may have a nil Condition (the `else`).
type If struct {
	Tok      token.Token
	Branches []Branch
}

func (s *If) Accept(v StatementVisitor) any { return v.VisitIf(s) }
func (s *If) Token() token.Token            { return s.Tok }

// For is `for <ident> in (start, stop, step) { body }`; Start, Stop, and
// Step are nil when omitted (defaulting respectively to 0, unbounded, 1).
type For struct {
	Tok       token.Token
	Name      token.Token
	Start     Expression
	Stop      Expression
	Step      Expression
	Body      []Statement
}

func (s *For) Accept(v StatementVisitor) any { return v.VisitFor(s) }
func (s *For) Token() token.Token            { return s.Tok }

type Continue struct {
	Tok token.Token
}

func (s *Continue) Accept(v StatementVisitor) any { return v.VisitContinue(s) }
func (s *Continue) Token() token.Token            { return s.Tok }

type Break struct {
	Tok token.Token
}

func (s *Break) Accept(v StatementVisitor) any { return v.VisitBreak(s) }
func (s *Break) Token() token.Token            { return s.Tok }
