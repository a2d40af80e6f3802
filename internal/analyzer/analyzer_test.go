package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine/internal/lexer"
	"engine/internal/parser"
)

func analyze(t *testing.T, source string) error {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)
	return New().Analyze(stmts)
}

func TestCoercionMatrix(t *testing.T) {
	cases := []struct {
		name   string
		source string
		wantOK bool
	}{
		{"int accepts int", "int x = 1\n", true},
		{"int accepts double narrows", "int x = 1.5\n", true},
		{"double accepts int widens", "double x = 1\n", true},
		{"bool rejects int", "bool x = 1\n", false},
		{"string accepts char", "string x = 'a'\n", true},
		{"char accepts string", "char x = \"ab\"\n", true},
		{"int rejects string", "int x = \"ab\"\n", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := analyze(t, c.source)
			if c.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestUndefinedIdentifierIsTypeError(t *testing.T) {
	err := analyze(t, "print(x)\n")
	assert.Error(t, err)
}

func TestReassignAssignabilityRespected(t *testing.T) {
	assert.NoError(t, analyze(t, "int x = 1\nx = 2\n"))
	assert.Error(t, analyze(t, "int x = 1\nx = true\n"))
}

func TestAugmentedAssignmentLegality(t *testing.T) {
	assert.NoError(t, analyze(t, "int x = 1\nx += 1\n"))
	assert.NoError(t, analyze(t, "string s = \"a\"\ns += \"b\"\n"))
	assert.Error(t, analyze(t, "string s = \"a\"\ns *= \"b\"\n"), "string does not support *=")
	assert.Error(t, analyze(t, "bool b = true\nb += true\n"), "bool supports no compound operator")
}

func TestDivAlwaysProducesDouble(t *testing.T) {
	err := analyze(t, "double d = 4 / 2\n")
	assert.NoError(t, err)
}

func TestIfConditionMustBeBool(t *testing.T) {
	assert.NoError(t, analyze(t, "if true {\nprint(1)\n}\n"))
	assert.Error(t, analyze(t, "if 1 {\nprint(1)\n}\n"))
}

func TestForBoundsMustBeInt(t *testing.T) {
	assert.NoError(t, analyze(t, "for i in (0, 10, 1) {\nprint(i)\n}\n"))
	assert.Error(t, analyze(t, "for i in (0.0, 10, 1) {\nprint(i)\n}\n"))
}

func TestFrameDisciplineReturnsToMainDepth(t *testing.T) {
	toks, err := lexer.New("if true {\nint x = 1\n}\n").Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)

	a := New()
	require.Equal(t, 1, a.Depth())
	require.NoError(t, a.Analyze(stmts))
	assert.Equal(t, 1, a.Depth(), "analyzer must pop every pushed frame before returning")
}

func TestVariableDeclaredInIfIsNotVisibleOutside(t *testing.T) {
	err := analyze(t, "if true {\nint x = 1\n}\nprint(x)\n")
	assert.Error(t, err, "an if-scoped variable must not leak into the enclosing frame")
}

func TestForLoopVariableTypeIsInt(t *testing.T) {
	err := analyze(t, "for i in (0, 10, 1) {\nbool b = i\n}\n")
	assert.Error(t, err)
}

func TestVarInferredCollapsesCharToString(t *testing.T) {
	// A var declared from a char literal must be reassignable from a
	// string later, since the analyzer widens it to String at
	// declaration time.
	err := analyze(t, "var c = 'a'\nc = \"hello\"\n")
	assert.NoError(t, err)
}

func TestStringConcatenationProducesString(t *testing.T) {
	err := analyze(t, "string s = \"a\" + 'b'\n")
	assert.NoError(t, err)
}
