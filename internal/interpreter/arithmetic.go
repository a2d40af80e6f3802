package interpreter

import (
	"math"

	"engine/internal/ast"
	"engine/internal/engerr"
	"engine/internal/token"
)

// applyArithmetic evaluates a single binary operator over two already-
// evaluated operands, performing the widening coercions documented in
// §4.5. It is shared by plain binary expressions and by compound
// assignment (`+=` etc.), which desugars to the same operator applied to
// the current value and the right-hand side.
func applyArithmetic(op token.Type, left, right value, opTok token.Token) (value, error) {
	if isNumeric(left) && isNumeric(right) {
		return applyNumeric(op, left, right, opTok)
	}
	if left.typ == ast.Bool && right.typ == ast.Bool {
		return applyBoolean(op, left, right, opTok)
	}
	if (left.typ == ast.Char || left.typ == ast.String) && (right.typ == ast.Char || right.typ == ast.String) {
		if op == token.PLUS {
			return value{typ: ast.String, val: widenToString(left) + widenToString(right)}, nil
		}
	}
	return value{}, engerr.RuntimeError(engerr.StageInterpreter, opTok.Line, opTok.Column, "operator %q is not legal between %s and %s", opTok.Lexeme, left.typ, right.typ)
}

func isNumeric(v value) bool { return v.typ == ast.Int || v.typ == ast.Double }

func widenToString(v value) string {
	switch n := v.val.(type) {
	case rune:
		return string(n)
	case string:
		return n
	default:
		return ""
	}
}

func applyNumeric(op token.Type, left, right value, opTok token.Token) (value, error) {
	switch op {
	case token.DIV:
		l, r := asDouble(left), asDouble(right)
		if r == 0 {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, opTok.Line, opTok.Column, "division by zero")
		}
		return value{typ: ast.Double, val: l / r}, nil
	case token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL:
		l, r := asDouble(left), asDouble(right)
		return value{typ: ast.Bool, val: compare(op, l, r)}, nil
	case token.PLUS, token.MINUS, token.MUL, token.MOD:
		if left.typ == ast.Double || right.typ == ast.Double {
			l, r := asDouble(left), asDouble(right)
			return value{typ: ast.Double, val: applyDoubleOp(op, l, r)}, nil
		}
		l, r := left.val.(int64), right.val.(int64)
		if op == token.MOD && r == 0 {
			return value{}, engerr.RuntimeError(engerr.StageInterpreter, opTok.Line, opTok.Column, "modulo by zero")
		}
		return value{typ: ast.Int, val: applyIntOp(op, l, r)}, nil
	default:
		return value{}, engerr.RuntimeError(engerr.StageInterpreter, opTok.Line, opTok.Column, "operator %q is not legal on numeric operands", opTok.Lexeme)
	}
}

func asDouble(v value) float64 {
	switch n := v.val.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func compare(op token.Type, l, r float64) bool {
	switch op {
	case token.EQUAL_EQUAL:
		return l == r
	case token.NOT_EQUAL:
		return l != r
	case token.LESS:
		return l < r
	case token.LESS_EQUAL:
		return l <= r
	case token.LARGER:
		return l > r
	case token.LARGER_EQUAL:
		return l >= r
	default:
		return false
	}
}

func applyDoubleOp(op token.Type, l, r float64) float64 {
	switch op {
	case token.PLUS:
		return l + r
	case token.MINUS:
		return l - r
	case token.MUL:
		return l * r
	case token.MOD:
		return math.Mod(l, r)
	default:
		return 0
	}
}

// applyIntOp operates as 64-bit signed with host-defined overflow (wrap),
// which is Go's native int64 arithmetic behavior.
func applyIntOp(op token.Type, l, r int64) int64 {
	switch op {
	case token.PLUS:
		return l + r
	case token.MINUS:
		return l - r
	case token.MUL:
		return l * r
	case token.MOD:
		return l % r
	default:
		return 0
	}
}

func applyBoolean(op token.Type, left, right value, opTok token.Token) (value, error) {
	l, r := left.val.(bool), right.val.(bool)
	switch op {
	case token.AND:
		return value{typ: ast.Bool, val: l && r}, nil
	case token.OR:
		return value{typ: ast.Bool, val: l || r}, nil
	case token.EQUAL_EQUAL:
		return value{typ: ast.Bool, val: l == r}, nil
	case token.NOT_EQUAL:
		return value{typ: ast.Bool, val: l != r}, nil
	default:
		return value{}, engerr.RuntimeError(engerr.StageInterpreter, opTok.Line, opTok.Column, "operator %q is not legal on Bool operands", opTok.Lexeme)
	}
}
