package transpiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine/internal/analyzer"
	"engine/internal/lexer"
	"engine/internal/parser"
)

func transpile(t *testing.T, source string) string {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)
	require.NoError(t, analyzer.New().Analyze(stmts))

	var buf bytes.Buffer
	require.NoError(t, New(&buf).Transpile(stmts))
	return buf.String()
}

func TestTranspileIncludesRuntimeHelpers(t *testing.T) {
	out := transpile(t, "print(\"hi\")\n")
	assert.Contains(t, out, "engine_input_line")
	assert.Contains(t, out, "engine_concat")
	assert.Contains(t, out, "int main(void) {")
}

func TestTranspileNeverInvokesACompiler(t *testing.T) {
	out := transpile(t, "print(1)\n")
	assert.NotContains(t, out, "exec.Command")
	assert.NotContains(t, out, "/usr/bin/cc")
}

func TestTranspileStringConcatenationUsesEngineConcat(t *testing.T) {
	out := transpile(t, `string s = "foo" + "bar"` + "\n")
	assert.Contains(t, out, "engine_concat(")
}

func TestTranspileDivAlwaysDouble(t *testing.T) {
	out := transpile(t, "double d = 4 / 2\n")
	assert.Contains(t, out, "(double)(")
}

func TestTranspileForLoopUsesNativeCFor(t *testing.T) {
	out := transpile(t, `
for i in (0, 10, 1) {
  print(i)
}
`)
	assert.True(t, strings.Contains(out, "for (int64_t stack"), "want a native C for loop, got:\n%s", out)
}

func TestTranspileFullProgramSnapshot(t *testing.T) {
	out := transpile(t, `
int x = 1 + 2
if x == 3 {
  print("three")
} else {
  print("other")
}
for i in (0, 3, 1) {
  print(i)
}
`)
	snaps.MatchSnapshot(t, out)
}
