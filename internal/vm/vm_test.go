package vm

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engine/internal/analyzer"
	"engine/internal/emitter"
	"engine/internal/lexer"
	"engine/internal/parser"
)

// runViaVM lexes, parses, analyzes, emits, and executes source on the
// virtual machine, exercising the whole bytecode back-end end to end.
func runViaVM(t *testing.T, source, stdin string) string {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)
	require.NoError(t, analyzer.New().Analyze(stmts))

	tmp, err := os.CreateTemp(t.TempDir(), "vm-*.ebc")
	require.NoError(t, err)
	em, err := emitter.New(tmp)
	require.NoError(t, err)
	require.NoError(t, em.Emit(stmts))
	require.NoError(t, tmp.Close())

	in, err := os.Open(tmp.Name())
	require.NoError(t, err)
	defer in.Close()

	var out bytes.Buffer
	machine, err := New(in, &out, strings.NewReader(stdin))
	require.NoError(t, err)
	require.NoError(t, machine.Run())
	return out.String()
}

func TestVMPrintsEachPrimitiveType(t *testing.T) {
	out := runViaVM(t, `
print(true)
print(1)
print(1.5)
print('a')
print("hi")
`, "")
	assert.Equal(t, "True\n1\n1.5\na\nhi\n", out)
}

func TestVMIfElseIfElseChain(t *testing.T) {
	out := runViaVM(t, `
int x = 2
if x == 1 {
  print(1)
} else if x == 2 {
  print(2)
} else {
  print(3)
}
`, "")
	assert.Equal(t, "2\n", out)
}

func TestVMForLoopWithContinue(t *testing.T) {
	out := runViaVM(t, `
for i in (0, 5, 1) {
  if i == 2 {
    continue
  }
  print(i)
}
`, "")
	assert.Equal(t, "0\n1\n3\n4\n", out)
}

func TestVMIntDeclarationTruncatesDoubleValue(t *testing.T) {
	out := runViaVM(t, `
int x = 7 / 2
print(x)
`, "")
	assert.Equal(t, "3\n", out)
}

func TestVMReassignCompoundOperator(t *testing.T) {
	out := runViaVM(t, `
int x = 10
x -= 3
print(x)
`, "")
	assert.Equal(t, "7\n", out)
}

func TestVMCrossTypeNumericComparison(t *testing.T) {
	out := runViaVM(t, `
if 3 == 3.0 {
  print("equal")
} else {
  print("not equal")
}
`, "")
	assert.Equal(t, "equal\n", out)
}

func TestVMInputAsInt(t *testing.T) {
	out := runViaVM(t, `
var x = input() as int
print(x + 1)
`, "42\n")
	assert.Equal(t, "43\n", out)
}

func TestVMStringConcatenation(t *testing.T) {
	out := runViaVM(t, `
string s = "foo" + "bar"
print(s)
`, "")
	assert.Equal(t, "foobar\n", out)
}

func TestVMShortCircuitAndSkipsRightSideSideEffects(t *testing.T) {
	// The right operand of && is input(), which would fail reading from
	// an empty reader if it were materialized despite the left side
	// already being false; the emitter must lower && to a jump rather
	// than an unconditional Operation:And.
	out := runViaVM(t, `
bool x = false && input() as bool
print(x)
`, "")
	assert.Equal(t, "False\n", out)
}

func TestVMShortCircuitOrSkipsRightSideSideEffects(t *testing.T) {
	out := runViaVM(t, `
bool x = true || input() as bool
print(x)
`, "")
	assert.Equal(t, "True\n", out)
}
