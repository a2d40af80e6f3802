// Package vm executes the textual bytecode package emitter produces. It
// never parses a source tree; it fetches and decodes each line of the
// instruction stream starting at the instruction pointer, mutates its
// flat variable map according to the opcode, and advances, following the
// same fetch-decode-execute-advance shape as a register machine even
// though the "registers" here are named variables rather than stack
// slots, per §4.7.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"engine/internal/ast"
	"engine/internal/engerr"
)

// VM holds the decoded instruction stream, the flat variable table every
// instruction reads and writes, and the pending-jump state a GoTo or a
// false If leaves behind for the dispatch loop to act on.
type VM struct {
	lines  []string
	vars   map[string]cell
	out    io.Writer
	in     *bufio.Reader
	goTo   int
	hasJmp bool
}

// New constructs a VM that will execute the bytecode read from r, writing
// Print output to out and reading Input lines from in.
func New(r io.Reader, out io.Writer, in io.Reader) (*VM, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return nil, engerr.IOError(engerr.StageVM, 0, 0, "empty bytecode stream")
	}
	header := scanner.Text()
	headerFields := strings.Split(header, ":")
	if len(headerFields) < 2 || headerFields[0] != "0" || headerFields[1] != "EngineByteCode" {
		return nil, engerr.SyntaxError(engerr.StageVM, 0, 0, "missing EngineByteCode header")
	}

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, engerr.IOError(engerr.StageVM, 0, 0, "reading bytecode: %v", err)
	}

	return &VM{
		lines: lines,
		vars:  map[string]cell{},
		out:   out,
		in:    bufio.NewReader(in),
	}, nil
}

// Run drives the dispatch loop until an End instruction is reached, the
// instruction stream is exhausted, or an instruction fails.
func (m *VM) Run() error {
	ip := 1
	for {
		if ip < 1 || ip > len(m.lines) {
			return nil
		}
		line := m.lines[ip-1]
		if strings.TrimSpace(line) == "" {
			ip++
			continue
		}
		done, err := m.step(ip, line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if m.hasJmp {
			ip = m.goTo
			m.hasJmp = false
		} else {
			ip++
		}
	}
}

// step executes the single instruction at lineNo's text, returning true
// when it was an End instruction.
func (m *VM) step(lineNo int, text string) (bool, error) {
	fields := splitFields(text)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "Assign":
		return false, m.execAssign(lineNo, fields)
	case "Convert":
		return false, m.execConvert(lineNo, fields)
	case "Operation":
		return false, m.execOperation(lineNo, fields)
	case "Print":
		return false, m.execPrint(lineNo, fields)
	case "Input":
		return false, m.execInput(lineNo, fields)
	case "If":
		return false, m.execIf(lineNo, fields)
	case "Else":
		return false, nil
	case "GoTo":
		return false, m.execGoTo(lineNo, fields)
	case "End":
		return true, nil
	default:
		return false, engerr.InternalError(engerr.StageVM, lineNo, 0, "unknown opcode %q", fields[0])
	}
}

func (m *VM) execAssign(lineNo int, fields []string) error {
	if len(fields) < 4 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed Assign instruction")
	}
	typ := ast.ValueType(fields[1])
	name := unquote(fields[2])
	val, err := decodeLiteral(typ, fields[3])
	if err != nil {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "%v", err)
	}
	m.vars[name] = cell{typ: typ, val: val}
	return nil
}

func (m *VM) execConvert(lineNo int, fields []string) error {
	if len(fields) < 4 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed Convert instruction")
	}
	typ := ast.ValueType(fields[1])
	to := unquote(fields[2])
	from := unquote(fields[3])
	src, ok := m.vars[from]
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "undefined variable %q", from)
	}
	val := coerceTo(typ, src)
	if s, isStr := src.val.(string); isStr && (typ == ast.Int || typ == ast.Double || typ == ast.Bool) {
		var err error
		switch typ {
		case ast.Int:
			val, err = strconv.ParseInt(s, 10, 64)
		case ast.Double:
			val, err = strconv.ParseFloat(s, 64)
		case ast.Bool:
			val, err = strconv.ParseBool(strings.ToLower(s))
		}
		if err != nil {
			return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "cannot parse %q as %s", s, typ)
		}
	}
	m.vars[to] = cell{typ: typ, val: val}
	return nil
}

func (m *VM) execOperation(lineNo int, fields []string) error {
	if len(fields) < 5 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed Operation instruction")
	}
	op := fields[1]
	dst := unquote(fields[2])
	leftName := unquote(fields[3])
	rightName := unquote(fields[4])
	left, ok := m.vars[leftName]
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "undefined variable %q", leftName)
	}
	right, ok := m.vars[rightName]
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "undefined variable %q", rightName)
	}
	result, err := applyOp(op, left, right, lineNo, 0)
	if err != nil {
		return err
	}
	m.vars[dst] = result
	return nil
}

func (m *VM) execPrint(lineNo int, fields []string) error {
	if len(fields) < 2 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed Print instruction")
	}
	name := unquote(fields[1])
	v, ok := m.vars[name]
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "undefined variable %q", name)
	}
	fmt.Fprintln(m.out, formatCell(v))
	return nil
}

func (m *VM) execInput(lineNo int, fields []string) error {
	if len(fields) < 2 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed Input instruction")
	}
	name := unquote(fields[1])
	line, err := m.in.ReadString('\n')
	if err != nil && line == "" {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "input failed: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	m.vars[name] = cell{typ: ast.String, val: line}
	return nil
}

func (m *VM) execIf(lineNo int, fields []string) error {
	if len(fields) < 3 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed If instruction")
	}
	name := unquote(fields[1])
	target, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed If jump target: %v", err)
	}
	cond, ok := m.vars[name]
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "undefined variable %q", name)
	}
	b, ok := cond.val.(bool)
	if !ok {
		return engerr.RuntimeError(engerr.StageVM, lineNo, 0, "If condition %q is not Bool", name)
	}
	if !b {
		m.goTo = target
		m.hasJmp = true
	}
	return nil
}

func (m *VM) execGoTo(lineNo int, fields []string) error {
	if len(fields) < 2 {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed GoTo instruction")
	}
	target, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return engerr.SyntaxError(engerr.StageVM, lineNo, 0, "malformed GoTo target: %v", err)
	}
	m.goTo = target
	m.hasJmp = true
	return nil
}
