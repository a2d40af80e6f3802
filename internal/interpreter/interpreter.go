// Package interpreter is the tree-walking evaluator back-end: it mirrors
// the analyzer's frame-stack walk but with live values instead of types,
// per §4.5.
package interpreter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"engine/internal/ast"
	"engine/internal/engerr"
	"engine/internal/token"
)

// breakSignal and continueSignal are sentinel errors used to unwind the
// statement-execution chain to the nearest enclosing for-loop. A break or
// continue outside any for-loop is not caught and is returned from
// Interpreter.Run as its error.
type breakSignal struct{}

func (breakSignal) Error() string { return "break" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue" }

// Interpreter walks a checked statement tree and executes it directly.
type Interpreter struct {
	out   io.Writer
	in    *bufio.Reader
	frame *Frame
}

// New constructs an Interpreter writing to out and reading `input(...)`
// lines from in.
func New(out io.Writer, in io.Reader) *Interpreter {
	return &Interpreter{out: out, in: bufio.NewReader(in), frame: NewFrame()}
}

// Run executes every statement in order. Pre-condition: the caller has
// already run the analyzer successfully over these statements.
func (it *Interpreter) Run(statements []ast.Statement) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = engerr.InternalError(engerr.StageInterpreter, 0, 0, "unexpected panic: %v", r)
		}
	}()
	return it.execBlock(statements)
}

func (it *Interpreter) execBlock(statements []ast.Statement) error {
	for _, stmt := range statements {
		if err := it.execStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (it *Interpreter) execStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Define:
		return it.execDefine(s)
	case *ast.Reassign:
		return it.execReassign(s)
	case *ast.Print:
		return it.execPrint(s)
	case *ast.If:
		return it.execIf(s)
	case *ast.For:
		return it.execFor(s)
	case *ast.Continue:
		return continueSignal{}
	case *ast.Break:
		return breakSignal{}
	default:
		tok := stmt.Token()
		return engerr.InternalError(engerr.StageInterpreter, tok.Line, tok.Column, "unhandled statement node %T", stmt)
	}
}

func (it *Interpreter) execDefine(s *ast.Define) error {
	v, err := it.eval(s.Value)
	if err != nil {
		return err
	}
	declared := s.DeclaredType
	if s.Inferred {
		declared = v.typ
		if declared == ast.Char {
			declared = ast.String
		}
	}
	coerced, err := coerce(declared, v, s.Name)
	if err != nil {
		return err
	}
	it.frame.declare(s.Name.Lexeme, declared, coerced)
	return nil
}

func (it *Interpreter) execReassign(s *ast.Reassign) error {
	_, current, ok := it.frame.lookup(s.Name.Lexeme)
	if !ok {
		return engerr.RuntimeError(engerr.StageInterpreter, s.Name.Line, s.Name.Column, "undefined variable %q", s.Name.Lexeme)
	}
	rhs, err := it.eval(s.Value)
	if err != nil {
		return err
	}
	var result value
	if s.Operator.Type == token.ASSIGN {
		coerced, err := coerce(current.typ, rhs, s.Name)
		if err != nil {
			return err
		}
		result = value{typ: current.typ, val: coerced}
	} else {
		combined, err := applyArithmetic(s.Operator.BinaryOperatorFor(), current, rhs, s.Operator)
		if err != nil {
			return err
		}
		coerced, err := coerce(current.typ, combined, s.Name)
		if err != nil {
			return err
		}
		result = value{typ: current.typ, val: coerced}
	}
	return it.frame.set(s.Name, result.typ, result.val)
}

func (it *Interpreter) execPrint(s *ast.Print) error {
	v, err := it.eval(s.Value)
	if err != nil {
		return err
	}
	fmt.Fprintln(it.out, formatValue(v))
	return nil
}

func (it *Interpreter) execIf(s *ast.If) error {
	for _, branch := range s.Branches {
		if branch.Condition != nil {
			condVal, err := it.eval(branch.Condition)
			if err != nil {
				return err
			}
			if condVal.val != true {
				continue
			}
		}
		parent := it.frame
		it.frame = parent.Nested(scopeIf)
		err := it.execBlock(branch.Body)
		it.frame = parent
		return err
	}
	return nil
}

func (it *Interpreter) execFor(s *ast.For) error {
	start := int64(0)
	if s.Start != nil {
		v, err := it.eval(s.Start)
		if err != nil {
			return err
		}
		start = asInt64(v)
	}
	step := int64(1)
	if s.Step != nil {
		v, err := it.eval(s.Step)
		if err != nil {
			return err
		}
		step = asInt64(v)
	}
	var stop *int64
	if s.Stop != nil {
		v, err := it.eval(s.Stop)
		if err != nil {
			return err
		}
		stopVal := asInt64(v)
		stop = &stopVal
	}

	parent := it.frame
	it.frame = parent.Nested(scopeForLoop)
	it.frame.declare(s.Name.Lexeme, ast.Int, start)
	defer func() { it.frame = parent }()

	for {
		_, current, _ := it.frame.lookup(s.Name.Lexeme)
		i := current.val.(int64)
		if stop != nil && !(i < *stop) {
			return nil
		}
		err := it.execBlock(s.Body)
		if _, isBreak := err.(breakSignal); isBreak {
			return nil
		}
		if _, isContinue := err.(continueSignal); err != nil && !isContinue {
			return err
		}
		it.frame.values[s.Name.Lexeme] = value{typ: ast.Int, val: i + step}
	}
}

func asInt64(v value) int64 {
	switch n := v.val.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func formatValue(v value) string {
	switch n := v.val.(type) {
	case bool:
		if n {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case rune:
		return string(n)
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}

// eval computes the runtime value of an expression, performing the
// coercions documented in §4.5.
func (it *Interpreter) eval(e ast.Expression) (value, error) {
	switch expr := e.(type) {
	case *ast.Literal:
		return value{typ: expr.Type, val: expr.Value}, nil
	case *ast.Grouping:
		return it.eval(expr.Expression)
	case *ast.Variable:
		_, v, ok := it.frame.lookup(expr.Name.Lexeme)
		if !ok {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Name.Line, expr.Name.Column, "undefined variable %q", expr.Name.Lexeme)
		}
		return v, nil
	case *ast.Input:
		return it.evalInput(expr)
	case *ast.Binary:
		return it.evalBinary(expr)
	default:
		tok := e.Token()
		return value{}, engerr.InternalError(engerr.StageInterpreter, tok.Line, tok.Column, "unhandled expression node %T", e)
	}
}

func (it *Interpreter) evalInput(expr *ast.Input) (value, error) {
	line, err := it.in.ReadString('\n')
	if err != nil && line == "" {
		return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Tok.Line, expr.Tok.Column, "input failed: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	switch expr.TargetType {
	case ast.Int:
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Tok.Line, expr.Tok.Column, "cannot parse %q as int", line)
		}
		return value{typ: ast.Int, val: n}, nil
	case ast.Double:
		n, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Tok.Line, expr.Tok.Column, "cannot parse %q as double", line)
		}
		return value{typ: ast.Double, val: n}, nil
	case ast.Bool:
		b, err := strconv.ParseBool(strings.ToLower(line))
		if err != nil {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Tok.Line, expr.Tok.Column, "cannot parse %q as bool", line)
		}
		return value{typ: ast.Bool, val: b}, nil
	case ast.Char:
		runes := []rune(line)
		if len(runes) != 1 {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, expr.Tok.Line, expr.Tok.Column, "cannot parse %q as char", line)
		}
		return value{typ: ast.Char, val: runes[0]}, nil
	default:
		return value{typ: ast.String, val: line}, nil
	}
}

func (it *Interpreter) evalBinary(expr *ast.Binary) (value, error) {
	left, err := it.eval(expr.Left)
	if err != nil {
		return value{}, err
	}
	// && and || short-circuit: the right operand is only evaluated when
	// its value could change the result, matching the bytecode back-end's
	// jump-based short-circuit for the same operators.
	if expr.Operator.Type == token.AND {
		if left.val == false {
			return value{typ: ast.Bool, val: false}, nil
		}
		right, err := it.eval(expr.Right)
		if err != nil {
			return value{}, err
		}
		return applyArithmetic(expr.Operator.Type, left, right, expr.Operator)
	}
	if expr.Operator.Type == token.OR {
		if left.val == true {
			return value{typ: ast.Bool, val: true}, nil
		}
		right, err := it.eval(expr.Right)
		if err != nil {
			return value{}, err
		}
		return applyArithmetic(expr.Operator.Type, left, right, expr.Operator)
	}
	right, err := it.eval(expr.Right)
	if err != nil {
		return value{}, err
	}
	return applyArithmetic(expr.Operator.Type, left, right, expr.Operator)
}

func coerce(declared ast.ValueType, v value, name any) (any, error) {
	switch declared {
	case ast.Bool:
		return v.val.(bool), nil
	case ast.Int:
		switch n := v.val.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	case ast.Double:
		switch n := v.val.(type) {
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case ast.Char:
		switch n := v.val.(type) {
		case rune:
			return n, nil
		case string:
			r := []rune(n)
			if len(r) == 0 {
				return rune(0), nil
			}
			return r[0], nil
		}
	case ast.String:
		switch n := v.val.(type) {
		case string:
			return n, nil
		case rune:
			return string(n), nil
		}
	}
	return v.val, nil
}
