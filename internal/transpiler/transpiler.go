// Package transpiler is the third back-end: it lowers a checked Engine
// program to readable C99 source text. It never invokes a C compiler or
// linker itself — Transpile only emits text, the same "hand the reader
// a target program" role the bytecode emitter plays for the VM.
package transpiler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"engine/internal/ast"
	"engine/internal/engerr"
	"engine/internal/token"
)

// Transpiler walks a checked statement tree and writes one C99
// translation unit. Variable names are mangled the same way the bytecode
// emitter mangles them (`stack<N>_variable_<name>`) so both back-ends
// agree on how shadowing across nested scopes is resolved.
type Transpiler struct {
	out    io.Writer
	indent int
	frames []map[string]frameEntry
}

type frameEntry struct {
	cName string
	typ   ast.ValueType
}

// New constructs a Transpiler writing to out.
func New(out io.Writer) *Transpiler {
	return &Transpiler{out: out, frames: []map[string]frameEntry{{}}}
}

// Transpile emits the full translation unit: the standard headers the
// runtime support routines need, an `engine_input_line` helper mirroring
// the interpreter's and VM's `input()` semantics, and a `main` wrapping
// every top-level statement.
func (t *Transpiler) Transpile(statements []ast.Statement) error {
	t.writeln(0, "#define _POSIX_C_SOURCE 200809L")
	t.writeln(0, "#include <stdio.h>")
	t.writeln(0, "#include <stdint.h>")
	t.writeln(0, "#include <stdlib.h>")
	t.writeln(0, "#include <string.h>")
	t.writeln(0, "#include <stdbool.h>")
	t.writeln(0, "")
	t.writeln(0, "static char *engine_input_line(void) {")
	t.writeln(1, "char *buf = NULL;")
	t.writeln(1, "size_t cap = 0;")
	t.writeln(1, "ssize_t n = getline(&buf, &cap, stdin);")
	t.writeln(1, "if (n <= 0) { free(buf); return strdup(\"\"); }")
	t.writeln(1, "if (buf[n-1] == '\\n') buf[n-1] = '\\0';")
	t.writeln(1, "return buf;")
	t.writeln(0, "}")
	t.writeln(0, "")
	t.writeln(0, "static char *engine_concat(const char *a, const char *b) {")
	t.writeln(1, "char *out = malloc(strlen(a) + strlen(b) + 1);")
	t.writeln(1, "strcpy(out, a);")
	t.writeln(1, "strcat(out, b);")
	t.writeln(1, "return out;")
	t.writeln(0, "}")
	t.writeln(0, "")
	t.writeln(0, "int main(void) {")
	if err := t.emitStatements(1, statements); err != nil {
		return err
	}
	t.writeln(1, "return 0;")
	t.writeln(0, "}")
	return nil
}

func (t *Transpiler) writeln(depth int, text string) {
	if text == "" {
		fmt.Fprintln(t.out)
		return
	}
	fmt.Fprintln(t.out, strings.Repeat("    ", depth)+text)
}

func (t *Transpiler) pushFrame() { t.frames = append(t.frames, map[string]frameEntry{}) }
func (t *Transpiler) popFrame()  { t.frames = t.frames[:len(t.frames)-1] }

func (t *Transpiler) declare(name string, typ ast.ValueType) string {
	depth := len(t.frames)
	cName := fmt.Sprintf("stack%d_variable_%s", depth, name)
	t.frames[len(t.frames)-1][name] = frameEntry{cName: cName, typ: typ}
	return cName
}

func (t *Transpiler) resolve(name string) (frameEntry, bool) {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if e, ok := t.frames[i][name]; ok {
			return e, true
		}
	}
	return frameEntry{}, false
}

func cType(t ast.ValueType) string {
	switch t {
	case ast.Bool:
		return "bool"
	case ast.Int:
		return "int64_t"
	case ast.Double:
		return "double"
	case ast.Char:
		return "char"
	default:
		return "char *"
	}
}

func (t *Transpiler) emitStatements(depth int, statements []ast.Statement) error {
	for _, stmt := range statements {
		if err := t.emitStatement(depth, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transpiler) emitStatement(depth int, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Define:
		return t.emitDefine(depth, s)
	case *ast.Reassign:
		return t.emitReassign(depth, s)
	case *ast.Print:
		return t.emitPrint(depth, s)
	case *ast.If:
		return t.emitIf(depth, s)
	case *ast.For:
		return t.emitFor(depth, s)
	case *ast.Continue:
		t.writeln(depth, "continue;")
		return nil
	case *ast.Break:
		t.writeln(depth, "break;")
		return nil
	default:
		tok := stmt.Token()
		return engerr.InternalError(engerr.StageEmitter, tok.Line, tok.Column, "unhandled statement node %T", stmt)
	}
}

func (t *Transpiler) emitDefine(depth int, s *ast.Define) error {
	expr, exprType, err := t.expr(s.Value)
	if err != nil {
		return err
	}
	declared := s.DeclaredType
	if s.Inferred {
		declared = exprType
		if declared == ast.Char {
			declared = ast.String
		}
	}
	cName := t.declare(s.Name.Lexeme, declared)
	t.writeln(depth, fmt.Sprintf("%s %s = %s;", cType(declared), cName, t.convert(declared, exprType, expr)))
	return nil
}

func (t *Transpiler) emitReassign(depth int, s *ast.Reassign) error {
	entry, ok := t.resolve(s.Name.Lexeme)
	if !ok {
		return engerr.InternalError(engerr.StageEmitter, s.Name.Line, s.Name.Column, "undefined variable %q", s.Name.Lexeme)
	}
	expr, exprType, err := t.expr(s.Value)
	if err != nil {
		return err
	}
	if s.Operator.Type == token.ASSIGN {
		t.writeln(depth, fmt.Sprintf("%s = %s;", entry.cName, t.convert(entry.typ, exprType, expr)))
		return nil
	}
	cOp := compoundOp(s.Operator.Type)
	t.writeln(depth, fmt.Sprintf("%s %s %s;", entry.cName, cOp, t.convert(entry.typ, exprType, expr)))
	return nil
}

func (t *Transpiler) emitPrint(depth int, s *ast.Print) error {
	expr, exprType, err := t.expr(s.Value)
	if err != nil {
		return err
	}
	format, arg := printFormat(exprType, expr)
	t.writeln(depth, fmt.Sprintf(`printf(%s, %s);`, format, arg))
	return nil
}

func printFormat(typ ast.ValueType, expr string) (string, string) {
	switch typ {
	case ast.Bool:
		return `"%s\n"`, fmt.Sprintf("(%s) ? \"True\" : \"False\"", expr)
	case ast.Int:
		return `"%lld\n"`, fmt.Sprintf("(long long)(%s)", expr)
	case ast.Double:
		return `"%g\n"`, expr
	case ast.Char:
		return `"%c\n"`, expr
	default:
		return `"%s\n"`, expr
	}
}

func (t *Transpiler) emitIf(depth int, s *ast.If) error {
	for i, branch := range s.Branches {
		if branch.Condition != nil {
			cond, _, err := t.expr(branch.Condition)
			if err != nil {
				return err
			}
			keyword := "if"
			if i > 0 {
				keyword = "} else if"
			}
			t.writeln(depth, fmt.Sprintf("%s (%s) {", keyword, cond))
		} else {
			t.writeln(depth, "} else {")
		}
		t.pushFrame()
		err := t.emitStatements(depth+1, branch.Body)
		t.popFrame()
		if err != nil {
			return err
		}
	}
	t.writeln(depth, "}")
	return nil
}

func (t *Transpiler) emitFor(depth int, s *ast.For) error {
	t.pushFrame()
	defer t.popFrame()

	cName := t.declare(s.Name.Lexeme, ast.Int)
	start := "0"
	if s.Start != nil {
		e, _, err := t.expr(s.Start)
		if err != nil {
			return err
		}
		start = e
	}
	step := "1"
	if s.Step != nil {
		e, _, err := t.expr(s.Step)
		if err != nil {
			return err
		}
		step = e
	}
	cond := "1"
	if s.Stop != nil {
		e, _, err := t.expr(s.Stop)
		if err != nil {
			return err
		}
		cond = fmt.Sprintf("%s < %s", cName, e)
	}
	t.writeln(depth, fmt.Sprintf("for (int64_t %s = %s; %s; %s += %s) {", cName, start, cond, cName, step))
	if err := t.emitStatements(depth+1, s.Body); err != nil {
		return err
	}
	t.writeln(depth, "}")
	return nil
}

func compoundOp(tt token.Type) string {
	switch tt {
	case token.PLUS_EQ:
		return "+="
	case token.MINUS_EQ:
		return "-="
	case token.MUL_EQ:
		return "*="
	case token.DIV_EQ:
		return "/="
	case token.MOD_EQ:
		return "%="
	default:
		return "="
	}
}

// convert inserts an explicit C cast when the destination type differs
// from the expression's natural type, mirroring Convert's coercion rules.
func (t *Transpiler) convert(to, from ast.ValueType, expr string) string {
	if to == from {
		return expr
	}
	if to == ast.String && from == ast.Char {
		return fmt.Sprintf("engine_concat((char[]){%s, '\\0'}, \"\")", expr)
	}
	if to == ast.Char && from == ast.String {
		return fmt.Sprintf("(%s)[0]", expr)
	}
	return fmt.Sprintf("(%s)(%s)", cType(to), expr)
}

func (t *Transpiler) expr(e ast.Expression) (string, ast.ValueType, error) {
	switch ex := e.(type) {
	case *ast.Literal:
		return literalText(ex), ex.Type, nil
	case *ast.Grouping:
		inner, typ, err := t.expr(ex.Expression)
		if err != nil {
			return "", "", err
		}
		return "(" + inner + ")", typ, nil
	case *ast.Variable:
		entry, ok := t.resolve(ex.Name.Lexeme)
		if !ok {
			return "", "", engerr.InternalError(engerr.StageEmitter, ex.Name.Line, ex.Name.Column, "undefined variable %q", ex.Name.Lexeme)
		}
		return entry.cName, entry.typ, nil
	case *ast.Input:
		raw := "engine_input_line()"
		switch ex.TargetType {
		case ast.Int:
			return fmt.Sprintf("strtoll(%s, NULL, 10)", raw), ast.Int, nil
		case ast.Double:
			return fmt.Sprintf("strtod(%s, NULL)", raw), ast.Double, nil
		case ast.Bool:
			return fmt.Sprintf("(strcmp(%s, \"true\") == 0)", raw), ast.Bool, nil
		case ast.Char:
			return fmt.Sprintf("(%s)[0]", raw), ast.Char, nil
		default:
			return raw, ast.String, nil
		}
	case *ast.Binary:
		return t.binary(ex)
	default:
		tok := e.Token()
		return "", "", engerr.InternalError(engerr.StageEmitter, tok.Line, tok.Column, "unhandled expression node %T", e)
	}
}

func (t *Transpiler) binary(ex *ast.Binary) (string, ast.ValueType, error) {
	left, leftType, err := t.expr(ex.Left)
	if err != nil {
		return "", "", err
	}
	right, rightType, err := t.expr(ex.Right)
	if err != nil {
		return "", "", err
	}
	if ex.Operator.Type == token.PLUS && (leftType == ast.String || leftType == ast.Char) && (rightType == ast.String || rightType == ast.Char) {
		return fmt.Sprintf("engine_concat(%s, %s)", t.convert(ast.String, leftType, left), t.convert(ast.String, rightType, right)), ast.String, nil
	}
	resultType := ast.Bool
	switch ex.Operator.Type {
	case token.PLUS, token.MINUS, token.MUL, token.MOD:
		resultType = ast.Int
		if leftType == ast.Double || rightType == ast.Double {
			resultType = ast.Double
		}
	case token.DIV:
		resultType = ast.Double
		left = fmt.Sprintf("(double)(%s)", left)
		right = fmt.Sprintf("(double)(%s)", right)
	}
	return fmt.Sprintf("(%s %s %s)", left, ex.Operator.Lexeme, right), resultType, nil
}

func literalText(lit *ast.Literal) string {
	switch v := lit.Value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10) + "LL"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case rune:
		return "'" + escapeC(string(v)) + "'"
	case string:
		return `"` + escapeC(v) + `"`
	default:
		return `""`
	}
}

func escapeC(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
