package parser

import (
	"testing"

	"engine/internal/ast"
	"engine/internal/lexer"
	"engine/internal/token"
)

func parse(t *testing.T, source string) ([]ast.Statement, []error) {
	t.Helper()
	l := lexer.New(source)
	toks, err := l.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}
	p := New(Significant(toks))
	return p.Parse()
}

func mustParse(t *testing.T, source string) []ast.Statement {
	t.Helper()
	stmts, errs := parse(t, source)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return stmts
}

func TestPrecedenceClimbing(t *testing.T) {
	stmts := mustParse(t, "int x = 1 + 2 * 3\n")
	if len(stmts) != 1 {
		t.Fatalf("want 1 statement, got %d", len(stmts))
	}
	def, ok := stmts[0].(*ast.Define)
	if !ok {
		t.Fatalf("want *ast.Define, got %T", stmts[0])
	}
	// 1 + (2 * 3): the top node is the PLUS, whose right child is the
	// MUL binary, not the other way around.
	top, ok := def.Value.(*ast.Binary)
	if !ok {
		t.Fatalf("want *ast.Binary, got %T", def.Value)
	}
	if top.Operator.Type != token.PLUS {
		t.Fatalf("top operator = %v, want PLUS", top.Operator.Type)
	}
	right, ok := top.Right.(*ast.Binary)
	if !ok {
		t.Fatalf("want right child *ast.Binary, got %T", top.Right)
	}
	if right.Operator.Type != token.MUL {
		t.Fatalf("right operator = %v, want MUL", right.Operator.Type)
	}
	left, ok := top.Left.(*ast.Literal)
	if !ok || left.Value != int64(1) {
		t.Fatalf("left = %+v, want literal 1", top.Left)
	}
}

func TestOrBindsLooserThanAnd(t *testing.T) {
	stmts := mustParse(t, "bool x = true || false && true\n")
	def := stmts[0].(*ast.Define)
	top, ok := def.Value.(*ast.Binary)
	if !ok || top.Operator.Type != token.OR {
		t.Fatalf("top = %+v, want OR at the top", def.Value)
	}
	if _, ok := top.Right.(*ast.Binary); !ok {
		t.Fatalf("right child of || should be the && binary")
	}
}

func TestDefineVarInferred(t *testing.T) {
	stmts := mustParse(t, "var x = 5\n")
	def := stmts[0].(*ast.Define)
	if !def.Inferred {
		t.Errorf("want Inferred = true for 'var'")
	}
	if def.DeclaredType != "" {
		t.Errorf("want empty DeclaredType for 'var', got %q", def.DeclaredType)
	}
}

func TestDefineTypedNotInferred(t *testing.T) {
	stmts := mustParse(t, "int x = 5\n")
	def := stmts[0].(*ast.Define)
	if def.Inferred {
		t.Errorf("want Inferred = false for typed declaration")
	}
	if def.DeclaredType != ast.Int {
		t.Errorf("DeclaredType = %q, want Int", def.DeclaredType)
	}
}

func TestReassignCompoundOperator(t *testing.T) {
	stmts := mustParse(t, "x += 1\n")
	re, ok := stmts[0].(*ast.Reassign)
	if !ok {
		t.Fatalf("want *ast.Reassign, got %T", stmts[0])
	}
	if re.Operator.Type != token.PLUS_EQ {
		t.Errorf("operator = %v, want PLUS_EQ", re.Operator.Type)
	}
}

func TestPrintStatement(t *testing.T) {
	stmts := mustParse(t, "print(x)\n")
	pr, ok := stmts[0].(*ast.Print)
	if !ok {
		t.Fatalf("want *ast.Print, got %T", stmts[0])
	}
	if _, ok := pr.Value.(*ast.Variable); !ok {
		t.Errorf("print value = %T, want *ast.Variable", pr.Value)
	}
}

func TestIfElseIfElseChain(t *testing.T) {
	source := "if a {\nprint(1)\n} else if b {\nprint(2)\n} else {\nprint(3)\n}\n"
	stmts := mustParse(t, source)
	ifStmt, ok := stmts[0].(*ast.If)
	if !ok {
		t.Fatalf("want *ast.If, got %T", stmts[0])
	}
	if len(ifStmt.Branches) != 3 {
		t.Fatalf("want 3 branches, got %d", len(ifStmt.Branches))
	}
	if ifStmt.Branches[0].Condition == nil {
		t.Errorf("first branch (if) must have a condition")
	}
	if ifStmt.Branches[1].Condition == nil {
		t.Errorf("second branch (else if) must have a condition")
	}
	if ifStmt.Branches[2].Condition != nil {
		t.Errorf("trailing else branch must have a nil condition")
	}
}

func TestForStatementFullClause(t *testing.T) {
	stmts := mustParse(t, "for i in (0, 10, 1) {\nprint(i)\n}\n")
	f, ok := stmts[0].(*ast.For)
	if !ok {
		t.Fatalf("want *ast.For, got %T", stmts[0])
	}
	if f.Start == nil || f.Stop == nil || f.Step == nil {
		t.Errorf("full for-clause must not leave Start/Stop/Step nil")
	}
}

func TestForStatementOmittedClauses(t *testing.T) {
	stmts := mustParse(t, "for i in (, 10, ) {\nprint(i)\n}\n")
	f, ok := stmts[0].(*ast.For)
	if !ok {
		t.Fatalf("want *ast.For, got %T", stmts[0])
	}
	if f.Start != nil {
		t.Errorf("omitted start should parse to nil")
	}
	if f.Stop == nil {
		t.Errorf("stop was given, should not be nil")
	}
	if f.Step != nil {
		t.Errorf("omitted step should parse to nil")
	}
}

func TestContinueAndBreak(t *testing.T) {
	stmts := mustParse(t, "for i in (0, 10, 1) {\ncontinue\nbreak\n}\n")
	f := stmts[0].(*ast.For)
	if len(f.Body) != 2 {
		t.Fatalf("want 2 body statements, got %d", len(f.Body))
	}
	if _, ok := f.Body[0].(*ast.Continue); !ok {
		t.Errorf("body[0] = %T, want *ast.Continue", f.Body[0])
	}
	if _, ok := f.Body[1].(*ast.Break); !ok {
		t.Errorf("body[1] = %T, want *ast.Break", f.Body[1])
	}
}

func TestInputDefaultsToString(t *testing.T) {
	stmts := mustParse(t, "var x = input()\n")
	def := stmts[0].(*ast.Define)
	in, ok := def.Value.(*ast.Input)
	if !ok {
		t.Fatalf("want *ast.Input, got %T", def.Value)
	}
	if in.TargetType != ast.String {
		t.Errorf("TargetType = %q, want String", in.TargetType)
	}
}

func TestInputAsType(t *testing.T) {
	stmts := mustParse(t, "var x = input() as int\n")
	def := stmts[0].(*ast.Define)
	in := def.Value.(*ast.Input)
	if in.TargetType != ast.Int {
		t.Errorf("TargetType = %q, want Int", in.TargetType)
	}
}

func TestGroupingPreserved(t *testing.T) {
	stmts := mustParse(t, "int x = (1 + 2) * 3\n")
	def := stmts[0].(*ast.Define)
	top := def.Value.(*ast.Binary)
	if top.Operator.Type != token.MUL {
		t.Fatalf("top operator = %v, want MUL", top.Operator.Type)
	}
	if _, ok := top.Left.(*ast.Grouping); !ok {
		t.Errorf("left child = %T, want *ast.Grouping", top.Left)
	}
}

func TestSyntaxErrorsCollectAndSynchronize(t *testing.T) {
	// Two independently broken lines: a missing '=' in the first
	// declaration, and a bad token starting the second statement. Both
	// should be reported rather than stopping at the first.
	source := "int x 5\n@@@\nprint(x)\n"
	stmts, errs := parse(t, source)
	if len(errs) != 2 {
		t.Fatalf("want 2 parse errors, got %d: %v", len(errs), errs)
	}
	// Resynchronization should still let the trailing valid print
	// statement through.
	found := false
	for _, s := range stmts {
		if _, ok := s.(*ast.Print); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the trailing print statement to still parse after errors")
	}
}

func TestUnterminatedBlockIsSyntaxError(t *testing.T) {
	_, errs := parse(t, "if true {\nprint(1)\n")
	if len(errs) == 0 {
		t.Fatal("expected a syntax error for an unterminated block")
	}
}
