package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"engine/internal/ast"
	"engine/internal/engerr"
)

// cell is the VM's runtime representation of a variable: its declared
// type plus whatever Go value backs it. Distinct from the interpreter's
// equivalent type on purpose — the two back-ends share no runtime state.
type cell struct {
	typ ast.ValueType
	val any
}

func decodeLiteral(typ ast.ValueType, field string) (any, error) {
	switch typ {
	case ast.Bool:
		return field == "True", nil
	case ast.Int:
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid Int literal %q", field)
		}
		return n, nil
	case ast.Double:
		n, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid Double literal %q", field)
		}
		return n, nil
	case ast.Char:
		inner := field
		if len(inner) >= 2 && inner[0] == '\'' && inner[len(inner)-1] == '\'' {
			inner = inner[1 : len(inner)-1]
		}
		decoded := unquote(`"` + inner + `"`)
		r := []rune(decoded)
		if len(r) == 0 {
			return rune(0), nil
		}
		return r[0], nil
	default:
		return unquote(field), nil
	}
}

func formatCell(c cell) string {
	switch v := c.val.(type) {
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case rune:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// coerceTo converts c's value into the target type, applying the same
// widening/truncation/collapse rules as the analyzer's assignability
// table and the interpreter's coerce function (§4.4/§4.5), so the two
// back-ends agree on observable behavior.
func coerceTo(typ ast.ValueType, c cell) any {
	switch typ {
	case ast.Bool:
		if b, ok := c.val.(bool); ok {
			return b
		}
	case ast.Int:
		switch n := c.val.(type) {
		case int64:
			return n
		case float64:
			return int64(n)
		}
	case ast.Double:
		switch n := c.val.(type) {
		case int64:
			return float64(n)
		case float64:
			return n
		}
	case ast.Char:
		switch n := c.val.(type) {
		case rune:
			return n
		case string:
			r := []rune(n)
			if len(r) == 0 {
				return rune(0)
			}
			return r[0]
		}
	case ast.String:
		switch n := c.val.(type) {
		case string:
			return n
		case rune:
			return string(n)
		}
	}
	return c.val
}

func asDouble(c cell) float64 {
	switch n := c.val.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// applyOp evaluates one Operation instruction's named operator over two
// already-resolved cells, mirroring the widening rules in
// internal/interpreter/arithmetic.go (kept independent, not shared, since
// the VM and the tree-walker are separate back-ends).
func applyOp(op string, left, right cell, line, col int) (cell, error) {
	switch op {
	case "Plus":
		if isString(left) || isString(right) {
			return cell{typ: ast.String, val: widenToString(left) + widenToString(right)}, nil
		}
		return numericOp(op, left, right, line, col)
	case "Minus", "Mul", "Mod":
		return numericOp(op, left, right, line, col)
	case "Div":
		l, r := asDouble(left), asDouble(right)
		if r == 0 {
			return cell{}, engerr.RuntimeError(engerr.StageVM, line, col, "division by zero")
		}
		return cell{typ: ast.Double, val: l / r}, nil
	case "GreaterThan", "GreaterThanOrEqual", "LessThan", "LessThanOrEqual", "Equal", "NotEqual":
		return comparisonOp(op, left, right), nil
	case "And":
		return cell{typ: ast.Bool, val: left.val.(bool) && right.val.(bool)}, nil
	case "Or":
		return cell{typ: ast.Bool, val: left.val.(bool) || right.val.(bool)}, nil
	default:
		return cell{}, engerr.InternalError(engerr.StageVM, line, col, "unknown operation %q", op)
	}
}

func isString(c cell) bool { return c.typ == ast.String || c.typ == ast.Char }

func widenToString(c cell) string {
	switch n := c.val.(type) {
	case rune:
		return string(n)
	case string:
		return n
	default:
		return ""
	}
}

func numericOp(op string, left, right cell, line, col int) (cell, error) {
	if left.typ == ast.Double || right.typ == ast.Double {
		l, r := asDouble(left), asDouble(right)
		switch op {
		case "Plus":
			return cell{typ: ast.Double, val: l + r}, nil
		case "Minus":
			return cell{typ: ast.Double, val: l - r}, nil
		case "Mul":
			return cell{typ: ast.Double, val: l * r}, nil
		case "Mod":
			return cell{typ: ast.Double, val: math.Mod(l, r)}, nil
		}
	}
	l, lok := left.val.(int64)
	r, rok := right.val.(int64)
	if !lok || !rok {
		return cell{}, engerr.RuntimeError(engerr.StageVM, line, col, "operator %q requires numeric operands", op)
	}
	switch op {
	case "Plus":
		return cell{typ: ast.Int, val: l + r}, nil
	case "Minus":
		return cell{typ: ast.Int, val: l - r}, nil
	case "Mul":
		return cell{typ: ast.Int, val: l * r}, nil
	case "Mod":
		if r == 0 {
			return cell{}, engerr.RuntimeError(engerr.StageVM, line, col, "modulo by zero")
		}
		return cell{typ: ast.Int, val: l % r}, nil
	}
	return cell{}, engerr.InternalError(engerr.StageVM, line, col, "unknown numeric operation %q", op)
}

func comparisonOp(op string, left, right cell) cell {
	numeric := isNumeric(left) && isNumeric(right)
	l, r := asDouble(left), asDouble(right)
	var result bool
	switch op {
	case "GreaterThan":
		result = l > r
	case "GreaterThanOrEqual":
		result = l >= r
	case "LessThan":
		result = l < r
	case "LessThanOrEqual":
		result = l <= r
	case "Equal":
		if numeric {
			result = l == r
		} else {
			result = left.val == right.val
		}
	case "NotEqual":
		if numeric {
			result = l != r
		} else {
			result = left.val != right.val
		}
	}
	return cell{typ: ast.Bool, val: result}
}

func isNumeric(c cell) bool { return c.typ == ast.Int || c.typ == ast.Double }
