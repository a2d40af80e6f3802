package emitter

import (
	"bytes"
	"os"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/require"

	"engine/internal/analyzer"
	"engine/internal/lexer"
	"engine/internal/parser"
)

// emit lexes, parses, analyzes, and emits source, returning the bytecode
// text written for it.
func emit(t *testing.T, source string) string {
	t.Helper()
	toks, err := lexer.New(source).Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)
	require.NoError(t, analyzer.New().Analyze(stmts))

	tmp, err := os.CreateTemp(t.TempDir(), "emit-*.ebc")
	require.NoError(t, err)
	em, err := New(tmp)
	require.NoError(t, err)
	require.NoError(t, em.Emit(stmts))
	require.NoError(t, tmp.Close())

	data, err := os.ReadFile(tmp.Name())
	require.NoError(t, err)
	return string(data)
}

func TestEmitDefineAndPrint(t *testing.T) {
	out := emit(t, "int x = 1 + 2\nprint(x)\n")
	snaps.MatchSnapshot(t, out)
}

func TestEmitIfElseIfElseChain(t *testing.T) {
	out := emit(t, `
int a = 2
if a == 1 {
  print(1)
} else if a == 2 {
  print(2)
} else {
  print(3)
}
`)
	snaps.MatchSnapshot(t, out)
}

func TestEmitForWithContinue(t *testing.T) {
	out := emit(t, `
for i in (0, 10, 1) {
  if i == 2 {
    continue
  }
  print(i)
}
`)
	snaps.MatchSnapshot(t, out)
}

func TestEmitBreakIsRejected(t *testing.T) {
	toks, err := lexer.New("for i in (0, 10, 1) {\nbreak\n}\n").Scan()
	require.NoError(t, err)
	p := parser.New(parser.Significant(toks))
	stmts, errs := p.Parse()
	require.Empty(t, errs)
	require.NoError(t, analyzer.New().Analyze(stmts))

	var buf bytes.Buffer
	w := &seekBuffer{buf: &buf}
	em, err := New(w)
	require.NoError(t, err)
	err = em.Emit(stmts)
	require.Error(t, err, "the bytecode back-end must reject break rather than silently accept it")
}

// seekBuffer is a minimal io.WriteSeeker over an in-memory buffer, used
// only where the test never needs the writer to actually seek backward
// (the break-rejection test fails before any placeholder patch would be
// attempted).
type seekBuffer struct {
	buf *bytes.Buffer
	pos int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	n, err := s.buf.Write(p)
	s.pos += int64(n)
	return n, err
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	if whence == 2 {
		s.pos = int64(s.buf.Len())
		return s.pos, nil
	}
	s.pos = offset
	return s.pos, nil
}
