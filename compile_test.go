package sievevm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
)

func compileErr(t *testing.T, src string) *CompileError {
	t.Helper()
	_, err := Compile(strings.NewReader(src), DefaultOptions())
	if err == nil {
		t.Fatalf("expected compile error for %q", src)
	}
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	return ce
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name   string
		script string
		kind   lexer.ErrorKind
	}{
		{"missing require fileinto", `fileinto "x";`, lexer.ErrMissingRequire},
		{"missing require for tag", `require "fileinto"; fileinto :copy "x";`, lexer.ErrMissingRequire},
		{"duplicate require", `require ["fileinto", "fileinto"];`, lexer.ErrDuplicateRequire},
		{"notify without method", `require "enotify"; notify :message "x";`, lexer.ErrUnexpectedToken},
		{"notify fcc group without fcc", `require ["enotify", "mailbox"]; notify :create "mailto:u@x";`, lexer.ErrInvalidCombination},
		{"vacation fcc group without fcc", `require ["vacation", "imap4flags"]; vacation :flags ["\\Seen"] "x";`, lexer.ErrInvalidCombination},
		{"size both bounds", `if size :over :under 10 { keep; }`, lexer.ErrInvalidCombination},
		{"size no bound", `if size 10 { keep; }`, lexer.ErrInvalidCombination},
		{"deleteheader last without index", `require "editheader"; deleteheader :last "X-Test";`, lexer.ErrInvalidCombination},
		{"unknown test", `if frobnicate { keep; }`, lexer.ErrUnknownCommand},
		{"regex without require", `if header :regex "Subject" ".*" { keep; }`, lexer.ErrMissingRequire},
		{"relational without require", `if header :count "ge" "To" "1" { keep; }`, lexer.ErrMissingRequire},
		{"subaddress without require", `if address :detail "To" "x" { keep; }`, lexer.ErrMissingRequire},
		{"numeric comparator without require", `if header :is :comparator "i;ascii-numeric" "To" "1" { keep; }`, lexer.ErrMissingRequire},
		{"string test without variables", `if string :is "a" "a" { keep; }`, lexer.ErrMissingRequire},
		{"break outside loop", `require "foreverypart"; break;`, lexer.ErrInvalidCombination},
		{"trailing garbage", `keep`, lexer.ErrUnexpectedToken},
		{"bad string list", `require ["fileinto", 42];`, lexer.ErrUnexpectedToken},
		{"multiple address parts", `if address :localpart :domain "To" "x" { keep; }`, lexer.ErrInvalidCombination},
		{"duplicate uniqueid and header", `require "duplicate"; if duplicate :header "a" :uniqueid "b" { keep; }`, lexer.ErrInvalidCombination},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileErr(t, tc.script)
			if ce.Kind != tc.kind {
				t.Errorf("kind = %v, want %v (error: %v)", ce.Kind, tc.kind, ce)
			}
			if ce.Line == 0 {
				t.Error("error carries no position")
			}
		})
	}
}

func TestNestingTooDeep(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("if true { ")
	}
	b.WriteString("keep;")
	for i := 0; i < 20; i++ {
		b.WriteString(" }")
	}
	ce := compileErr(t, b.String())
	if ce.Kind != lexer.ErrNestingTooDeep {
		t.Errorf("kind = %v, want nesting too deep", ce.Kind)
	}
}

func TestScriptTooLarge(t *testing.T) {
	opts := DefaultOptions()
	opts.Lexer.MaxScriptSize = 16
	_, err := Compile(strings.NewReader(`keep; keep; keep; keep;`), opts)
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != lexer.ErrScriptTooLarge {
		t.Fatalf("expected script too large, got %v", err)
	}
}

// Conditional jump targets are strictly forward; unconditional jumps never
// target themselves and stay in range.
func checkJumpInvariants(t *testing.T, prog *Sieve) {
	t.Helper()
	n := len(prog.Instructions)
	for i, ins := range prog.Instructions {
		switch ins := ins.(type) {
		case interp.Jz:
			if int(ins.Pos) <= i || int(ins.Pos) > n {
				t.Errorf("Jz at %d targets %d", i, ins.Pos)
			}
		case interp.Jnz:
			if int(ins.Pos) <= i || int(ins.Pos) > n {
				t.Errorf("Jnz at %d targets %d", i, ins.Pos)
			}
		case interp.ForEveryPart:
			if int(ins.JzPos) <= i || int(ins.JzPos) > n {
				t.Errorf("ForEveryPart at %d targets %d", i, ins.JzPos)
			}
		case interp.Jmp:
			if int(ins.Pos) == i || int(ins.Pos) > n {
				t.Errorf("Jmp at %d targets %d", i, ins.Pos)
			}
		}
	}
}

func TestJumpInvariants(t *testing.T) {
	scripts := []string{
		`if true { keep; }`,
		`if true { keep; } else { discard; }`,
		`if false { keep; } elsif false { discard; } elsif true { stop; } else { keep; }`,
		`if anyof (true, false, allof (true, not false)) { keep; }`,
		`require "foreverypart"; foreverypart { foreverypart { break; } break; }`,
		`require ["fileinto", "variables"];
		 if header :matches "Subject" "*" { set "x" "${1}"; fileinto "${x}"; }`,
	}
	for _, src := range scripts {
		prog := compileScript(t, src)
		checkJumpInvariants(t, prog)
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := `require ["fileinto", "variables", "foreverypart"];
set "dest" "Folder";
foreverypart { if exists "content-type" { break; } }
if header :matches "Subject" "*" { fileinto "${dest}"; }`
	a := compileScript(t, src)
	b := compileScript(t, src)
	if !reflect.DeepEqual(a, b) {
		t.Error("compiling the same script twice differs")
	}
}

func TestVariableAllocation(t *testing.T) {
	prog := compileScript(t, `require "variables"; set "a" "1"; set "b" "2"; set "a" "3";`)
	if prog.NumVars != 2 {
		t.Errorf("NumVars = %d, want 2", prog.NumVars)
	}

	prog = compileScript(t, `require "variables"; if true { set "inner" "1"; }`)
	if prog.NumVars != 1 {
		t.Errorf("NumVars = %d, want 1", prog.NumVars)
	}
	// Block exit releases the slot range.
	foundClear := false
	for _, ins := range prog.Instructions {
		if cl, ok := ins.(interp.Clear); ok {
			foundClear = true
			if cl.LocalVarsIdx != 0 || cl.LocalVarsNum != 1 {
				t.Errorf("Clear = %+v", cl)
			}
		}
	}
	if !foundClear {
		t.Error("no Clear emitted at block exit")
	}
}

func TestMatchVariableAllocation(t *testing.T) {
	prog := compileScript(t, `require "variables"; if header :matches "Subject" "*x?y*" { keep; }`)
	// Three wildcards plus the whole-match group.
	if prog.NumMatchVars != 4 {
		t.Errorf("NumMatchVars = %d, want 4", prog.NumMatchVars)
	}

	prog = compileScript(t, `require "variables"; set "a" "${7}";`)
	if prog.NumMatchVars != 8 {
		t.Errorf("NumMatchVars = %d, want 8", prog.NumMatchVars)
	}
}

func TestUnknownCommandLowersToInvalid(t *testing.T) {
	prog := compileScript(t, `frobnicate "a" ["b"]; keep;`)
	found := false
	for _, ins := range prog.Instructions {
		if inv, ok := ins.(interp.Invalid); ok {
			found = true
			if inv.Name != "frobnicate" {
				t.Errorf("Invalid.Name = %q", inv.Name)
			}
		}
	}
	if !found {
		t.Error("unknown command did not lower to Invalid")
	}
}

func TestNumPartsTracksNesting(t *testing.T) {
	prog := compileScript(t, `require "foreverypart";
foreverypart { foreverypart { keep; } }`)
	if prog.NumParts != 2 {
		t.Errorf("NumParts = %d, want 2", prog.NumParts)
	}
}
