package interp

import "testing"

func runProgram(t *testing.T, s *Sieve, raw []byte, answers []bool) ([]Event, error) {
	t.Helper()
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	c := NewContext(rt, raw)

	var events []Event
	in := InputScript("main", s)
	for i := 0; ; i++ {
		if i > 100 {
			t.Fatal("runaway loop")
		}
		ev, err := c.Run(in)
		if err != nil {
			return events, err
		}
		if ev == nil {
			return events, nil
		}
		events = append(events, ev)
		in = InputTrue
		if len(answers) > 0 {
			if !answers[0] {
				in = InputFalse
			}
			answers = answers[1:]
		}
	}
}

func TestExternalInstruction(t *testing.T) {
	prog := &Sieve{Instructions: []Instruction{
		External{Command: "test_fail", Params: []StringItem{Literal("oops")}},
		Keep{},
	}}
	events, err := runProgram(t, prog, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	tc, ok := events[0].(EventTestCommand)
	if !ok || tc.Command != "test_fail" || tc.Params[0] != "oops" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
}

func TestBackwardConditionalJumpRejected(t *testing.T) {
	prog := &Sieve{Instructions: []Instruction{
		Test{Expr: TestBool{Value: false}},
		Jz{Pos: 0},
	}}
	_, err := runProgram(t, prog, nil, nil)
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != IllegalAction {
		t.Fatalf("expected IllegalAction for backward Jz, got %v", err)
	}
}

func TestClearInstruction(t *testing.T) {
	prog := &Sieve{
		Instructions: []Instruction{
			Set{Dest: VarRef{Local: true, Idx: 0}, Value: Literal("a")},
			Set{Dest: VarRef{Local: true, Idx: 1}, Value: Literal("b")},
			Clear{LocalVarsIdx: 1, LocalVarsNum: 1, MatchVars: 1 << 1},
			Keep{},
		},
		NumVars:      2,
		NumMatchVars: 2,
	}
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	c := NewContext(rt, nil)
	if _, err := c.Run(InputScript("main", prog)); err != nil {
		t.Fatal(err)
	}
	if c.varsLocal[0] != "a" || c.varsLocal[1] != "" {
		t.Errorf("varsLocal = %v", c.varsLocal)
	}
}

func TestScriptStackDepthRestored(t *testing.T) {
	sub := &Sieve{Instructions: []Instruction{Keep{}, Return{}}}
	main := &Sieve{Instructions: []Instruction{
		Include{Value: Literal("sub")},
		Keep{},
	}}

	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	c := NewContext(rt, nil)

	ev, err := c.Run(InputScript("", main))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(EventIncludeScript); !ok {
		t.Fatalf("expected include request, got %+v", ev)
	}
	ev, err = c.Run(InputScript("sub", sub))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(EventKeep); !ok {
		t.Fatalf("expected keep from sub, got %+v", ev)
	}
	if len(c.scriptStack) != 2 {
		t.Errorf("stack depth = %d during include", len(c.scriptStack))
	}
	ev, err = c.Run(InputTrue)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(EventKeep); !ok {
		t.Fatalf("expected keep from main after return, got %+v", ev)
	}
	if len(c.scriptStack) != 1 {
		t.Errorf("stack depth = %d after return", len(c.scriptStack))
	}
	if ev, err = c.Run(InputTrue); ev != nil || err != nil {
		t.Fatalf("expected completion, got %v %v", ev, err)
	}
}

func TestIncludeRecursionRejected(t *testing.T) {
	self := &Sieve{Instructions: []Instruction{
		Include{Value: Literal("loop")},
	}}
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	c := NewContext(rt, nil)

	ev, err := c.Run(InputScript("main", self))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(EventIncludeScript); !ok {
		t.Fatalf("expected include request, got %+v", ev)
	}
	// The host hands back a script that includes itself.
	if _, err := c.Run(InputScript("loop", self)); err == nil {
		t.Fatal("expected recursion error")
	} else if rerr, ok := err.(*RuntimeError); !ok || rerr.Kind != IncludeRecursionLimit {
		t.Fatalf("expected IncludeRecursionLimit, got %v", err)
	}
}

func TestMessageParsing(t *testing.T) {
	raw := []byte("From: a@example.org\r\n" +
		"Content-Type: multipart/mixed; boundary=\"xx\"\r\n" +
		"\r\n" +
		"--xx\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hello\r\n" +
		"--xx\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"data\r\n" +
		"--xx--\r\n")
	m := ParseMessage(raw)
	if len(m.Parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(m.Parts))
	}
	if got := m.NestedPartIDs(0, false); len(got) != 2 {
		t.Errorf("root children = %v", got)
	}
	if got := m.NestedPartIDs(0, true); len(got) != 2 {
		t.Errorf("flat message subtree = %v", got)
	}
	if m.Parts[1].ContentType != "text/plain" {
		t.Errorf("part 1 type = %q", m.Parts[1].ContentType)
	}
	if string(m.Parts[1].Body) != "hello\r\n" && string(m.Parts[1].Body) != "hello" {
		t.Errorf("part 1 body = %q", m.Parts[1].Body)
	}
	if got := m.headerValues(0, "From"); len(got) != 1 || got[0] != "a@example.org" {
		t.Errorf("From = %v", got)
	}

	// Garbage degrades to a single empty part.
	if m := ParseMessage([]byte("\x00\x01")); len(m.Parts) == 0 {
		t.Error("no fallback part for unparsable input")
	}
}
