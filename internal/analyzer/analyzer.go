// Package analyzer type-checks an Engine syntax tree before either
// back-end touches it: it walks the statement tree with a frame stack that
// tracks declared variable types (never values), enforcing the operator
// matrix and assignment-compatibility rules from §4.4.
package analyzer

import (
	"engine/internal/ast"
	"engine/internal/engerr"
	"engine/internal/token"
)

// Scope classifies why a frame exists, mirroring the Environment data
// model's `scope ∈ {Main, If, ForLoop}`.
type Scope int

const (
	ScopeMain Scope = iota
	ScopeIf
	ScopeForLoop
)

type frame struct {
	scope     Scope
	variables map[string]ast.ValueType
}

// Analyzer walks a parsed program and reports the first type error found.
type Analyzer struct {
	frames []*frame
}

// New constructs an Analyzer with a single Main frame, per the Environment
// lifecycle rule: "a frame is created on entry to Main".
func New() *Analyzer {
	return &Analyzer{frames: []*frame{{scope: ScopeMain, variables: map[string]ast.ValueType{}}}}
}

// Depth returns the current frame-stack depth, used by tests to check the
// frame-discipline property (§8 property 6).
func (a *Analyzer) Depth() int { return len(a.frames) }

func (a *Analyzer) push(scope Scope) {
	a.frames = append(a.frames, &frame{scope: scope, variables: map[string]ast.ValueType{}})
}

func (a *Analyzer) pop() {
	a.frames = a.frames[:len(a.frames)-1]
}

func (a *Analyzer) declare(name token.Token, t ast.ValueType) {
	a.frames[len(a.frames)-1].variables[name.Lexeme] = t
}

func (a *Analyzer) resolve(name string) (ast.ValueType, bool) {
	for i := len(a.frames) - 1; i >= 0; i-- {
		if t, ok := a.frames[i].variables[name]; ok {
			return t, true
		}
	}
	return "", false
}

// Analyze type-checks every statement in order, returning the first error
// encountered (analysis aborts there, per §4.4's "Returns either the void
// success or an error").
func (a *Analyzer) Analyze(statements []ast.Statement) error {
	for _, stmt := range statements {
		if err := a.analyzeStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Define:
		return a.analyzeDefine(s)
	case *ast.Reassign:
		return a.analyzeReassign(s)
	case *ast.Print:
		_, err := a.typeOf(s.Value)
		return err
	case *ast.If:
		return a.analyzeIf(s)
	case *ast.For:
		return a.analyzeFor(s)
	case *ast.Continue, *ast.Break:
		return nil
	default:
		tok := stmt.Token()
		return engerr.InternalError(engerr.StageAnalyzer, tok.Line, tok.Column, "unhandled statement node %T", stmt)
	}
}

func (a *Analyzer) analyzeDefine(s *ast.Define) error {
	valueType, err := a.typeOf(s.Value)
	if err != nil {
		return err
	}
	if s.Inferred {
		declared := valueType
		if declared == ast.Char {
			declared = ast.String
		}
		a.declare(s.Name, declared)
		return nil
	}
	if !assignable(s.DeclaredType, valueType) {
		tok := s.Value.Token()
		return engerr.TypeError(engerr.StageAnalyzer, tok.Line, tok.Column, "cannot assign %s to declared %s variable %q", valueType, s.DeclaredType, s.Name.Lexeme)
	}
	a.declare(s.Name, s.DeclaredType)
	return nil
}

func (a *Analyzer) analyzeReassign(s *ast.Reassign) error {
	declared, ok := a.resolve(s.Name.Lexeme)
	if !ok {
		return engerr.TypeError(engerr.StageAnalyzer, s.Name.Line, s.Name.Column, "undefined identifier %q", s.Name.Lexeme)
	}
	if !augmentedLegal(declared, s.Operator.Type) {
		return engerr.TypeError(engerr.StageAnalyzer, s.Operator.Line, s.Operator.Column, "operator %q is not legal on %s variable %q", s.Operator.Lexeme, declared, s.Name.Lexeme)
	}
	valueType, err := a.typeOf(s.Value)
	if err != nil {
		return err
	}
	if !assignable(declared, valueType) {
		tok := s.Value.Token()
		return engerr.TypeError(engerr.StageAnalyzer, tok.Line, tok.Column, "cannot assign %s to %s variable %q", valueType, declared, s.Name.Lexeme)
	}
	return nil
}

func (a *Analyzer) analyzeIf(s *ast.If) error {
	for _, branch := range s.Branches {
		if branch.Condition != nil {
			condType, err := a.typeOf(branch.Condition)
			if err != nil {
				return err
			}
			if condType != ast.Bool {
				tok := branch.Condition.Token()
				return engerr.TypeError(engerr.StageAnalyzer, tok.Line, tok.Column, "if condition must be Bool, got %s", condType)
			}
		}
		a.push(ScopeIf)
		err := a.Analyze(branch.Body)
		a.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeFor(s *ast.For) error {
	for _, e := range []ast.Expression{s.Start, s.Stop, s.Step} {
		if e == nil {
			continue
		}
		t, err := a.typeOf(e)
		if err != nil {
			return err
		}
		if t != ast.Int {
			tok := e.Token()
			return engerr.TypeError(engerr.StageAnalyzer, tok.Line, tok.Column, "for-loop bound must be Int, got %s", t)
		}
	}
	a.push(ScopeForLoop)
	a.declare(s.Name, ast.Int)
	err := a.Analyze(s.Body)
	a.pop()
	return err
}

var arithmeticOps = map[token.Type]bool{token.PLUS: true, token.MINUS: true, token.MUL: true, token.DIV: true, token.MOD: true}
var comparisonOps = map[token.Type]bool{token.EQUAL_EQUAL: true, token.NOT_EQUAL: true, token.LESS: true, token.LESS_EQUAL: true, token.LARGER: true, token.LARGER_EQUAL: true}
var booleanOps = map[token.Type]bool{token.AND: true, token.OR: true, token.EQUAL_EQUAL: true, token.NOT_EQUAL: true}

func numeric(t ast.ValueType) bool { return t == ast.Int || t == ast.Double }

// typeOf computes the result type of an expression per the operator matrix
// in §4.4, recursing into sub-expressions.
func (a *Analyzer) typeOf(e ast.Expression) (ast.ValueType, error) {
	switch expr := e.(type) {
	case *ast.Literal:
		return expr.Type, nil
	case *ast.Grouping:
		return a.typeOf(expr.Expression)
	case *ast.Variable:
		t, ok := a.resolve(expr.Name.Lexeme)
		if !ok {
			return "", engerr.TypeError(engerr.StageAnalyzer, expr.Name.Line, expr.Name.Column, "undefined identifier %q", expr.Name.Lexeme)
		}
		return t, nil
	case *ast.Input:
		return expr.TargetType, nil
	case *ast.Binary:
		return a.typeOfBinary(expr)
	default:
		return "", engerr.InternalError(engerr.StageAnalyzer, e.Token().Line, e.Token().Column, "unhandled expression node %T", e)
	}
}

func (a *Analyzer) typeOfBinary(expr *ast.Binary) (ast.ValueType, error) {
	left, err := a.typeOf(expr.Left)
	if err != nil {
		return "", err
	}
	right, err := a.typeOf(expr.Right)
	if err != nil {
		return "", err
	}
	op := expr.Operator.Type
	line, col := expr.Operator.Line, expr.Operator.Column

	switch {
	case numeric(left) && numeric(right):
		switch {
		case op == token.DIV:
			if !arithmeticOps[op] {
				break
			}
			return ast.Double, nil
		case arithmeticOps[op]:
			if left == ast.Double || right == ast.Double {
				return ast.Double, nil
			}
			return ast.Int, nil
		case comparisonOps[op]:
			return ast.Bool, nil
		}
	case left == ast.Bool && right == ast.Bool:
		if booleanOps[op] {
			return ast.Bool, nil
		}
	case (left == ast.Char || left == ast.String) && (right == ast.Char || right == ast.String):
		if op == token.PLUS {
			return ast.String, nil
		}
	}
	return "", engerr.TypeError(engerr.StageAnalyzer, line, col, "operator %q is not legal between %s and %s", expr.Operator.Lexeme, left, right)
}

func assignable(declared, value ast.ValueType) bool {
	switch declared {
	case ast.Bool:
		return value == ast.Bool
	case ast.Int:
		return value == ast.Int || value == ast.Double
	case ast.Double:
		return value == ast.Int || value == ast.Double
	case ast.Char:
		return value == ast.Char || value == ast.String
	case ast.String:
		return value == ast.String || value == ast.Char
	default:
		return false
	}
}

func augmentedLegal(declared ast.ValueType, op token.Type) bool {
	if op == token.ASSIGN {
		return true
	}
	switch declared {
	case ast.Int, ast.Double:
		switch op {
		case token.PLUS_EQ, token.MINUS_EQ, token.MUL_EQ, token.DIV_EQ, token.MOD_EQ:
			return true
		}
		return false
	case ast.String:
		return op == token.PLUS_EQ
	default:
		return false
	}
}
