package sievevm

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/migadu/sievevm/interp"
)

var eml = "Date: Tue, 1 Apr 1997 09:06:31 -0800 (PST)\r\n" +
	"Message-ID: <anvil-1@desert.example.org>\r\n" +
	"From: coyote@desert.example.org\r\n" +
	"To: roadrunner@acme.example.com\r\n" +
	"Subject: I have a present for you\r\n" +
	"\r\n" +
	"Look, I'm sorry about the whole anvil thing, and I really\r\n" +
	"didn't mean to try and drop it on you from the top of the cliff.\r\n"

var multipartEml = "From: sender@example.org\r\n" +
	"To: rcpt@example.org\r\n" +
	"Subject: mixed content\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--b1--\r\n"

// nestedEml is two levels deep: multipart/mixed wrapping a
// multipart/alternative plus an attachment. Parts: 0=mixed, 1=alternative,
// 2=text/plain, 3=text/html, 4=application/octet-stream.
var nestedEml = "From: sender@example.org\r\n" +
	"To: rcpt@example.org\r\n" +
	"Subject: nested content\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain body\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>html body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"\r\n" +
	"attachment data\r\n" +
	"--outer--\r\n"

func compileScript(t *testing.T, src string) *Sieve {
	t.Helper()
	prog, err := Compile(strings.NewReader(src), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

// runAll drives a script to completion, collecting the event stream. Test
// events are answered by the optional answer callback; everything else is
// acknowledged with InputTrue.
func runAll(t *testing.T, src, eml string, rt *Runtime, answer func(Event) Input) ([]Event, *Context, error) {
	t.Helper()
	prog := compileScript(t, src)
	if rt == nil {
		rt = NewRuntime(AllCapabilities(), DefaultLimits())
	}
	ctx := NewContext(rt, []byte(eml))
	ctx.SetEnvelope(interp.EnvelopeFrom, "from@test.com")
	ctx.SetEnvelope(interp.EnvelopeTo, "alice@x")

	var events []Event
	in := InputScript("", prog)
	for i := 0; ; i++ {
		if i > 1000 {
			t.Fatal("runaway event loop")
		}
		ev, err := ctx.Run(in)
		if err != nil {
			return events, ctx, err
		}
		if ev == nil {
			return events, ctx, nil
		}
		events = append(events, ev)
		if answer != nil {
			in = answer(ev)
		} else {
			in = InputTrue
		}
	}
}

func expectEvents(t *testing.T, src, eml string, want []Event) {
	t.Helper()
	got, _, err := runAll(t, src, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Log(spew.Sdump(got))
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestFileinto(t *testing.T) {
	expectEvents(t, `require ["fileinto"]; fileinto "INBOX.spam";`, eml, []Event{
		interp.EventFileInto{Folder: "INBOX.spam"},
	})
}

func TestHeaderIfElse(t *testing.T) {
	script := `if header :is "Subject" "I have a present for you" { keep; } else { discard; }`
	t.Run("match", func(t *testing.T) {
		expectEvents(t, script, eml, []Event{interp.EventKeep{}})
	})
	t.Run("no-match", func(t *testing.T) {
		other := strings.Replace(eml, "I have a present for you", "something else", 1)
		events, ctx, err := runAll(t, script, other, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 0 {
			t.Errorf("expected no events, got %v", events)
		}
		if ctx.ImplicitKeep() {
			t.Error("discard did not cancel implicit keep")
		}
	})
}

func TestVariables(t *testing.T) {
	expectEvents(t, `require ["variables"]; set "x" "hello"; if string :is "${x}" "hello" { keep; }`,
		eml, []Event{interp.EventKeep{}})
}

func TestNotifyFcc(t *testing.T) {
	script := `require ["enotify", "fcc", "imap4flags", "mailbox"];
notify :fcc "Sent" :flags ["\\Seen"] :create "mailto:u@x";`
	expectEvents(t, script, eml, []Event{
		interp.EventNotify{
			Method: "mailto:u@x",
			Fcc: &interp.EventFcc{
				Target: "Sent",
				Create: true,
				Flags:  []string{`\Seen`},
			},
		},
	})
}

func TestForEveryPartBreak(t *testing.T) {
	script := `require ["foreverypart"];
foreverypart { if header :is "content-type" "text/html" { break; } }`
	expectEvents(t, script, multipartEml, nil)
}

func TestForEveryPartVisitsAllParts(t *testing.T) {
	script := `require ["foreverypart", "imap4flags"]; foreverypart { addflag "\\Seen"; }`
	got, _, err := runAll(t, script, multipartEml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected one event per part, got %d: %v", len(got), got)
	}
}

func TestForEveryPartFlattensNestedParts(t *testing.T) {
	// The outermost loop walks the whole subtree, so deeply nested leaves
	// are visited too, not just the root's direct children.
	script := `require ["foreverypart", "imap4flags"]; foreverypart { addflag "\\Seen"; }`
	got, _, err := runAll(t, script, nestedEml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected one event per non-root part, got %d: %v", len(got), got)
	}

	// The text/html leaf sits two levels down and must still be reachable.
	script = `require ["foreverypart", "imap4flags"];
foreverypart { if header :is "content-type" "text/html" { setflag "\\Flagged"; } }`
	got, _, err = runAll(t, script, nestedEml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	flagged := 0
	for _, ev := range got {
		if _, ok := ev.(interp.EventSetFlag); ok {
			flagged++
		}
	}
	if flagged != 1 {
		t.Errorf("expected exactly one flagged part, got %d: %v", flagged, got)
	}
}

func TestForEveryPartNestedLoopTakesDirectChildren(t *testing.T) {
	// An inner loop over the multipart/alternative sees its two leaves and
	// nothing else; the break after it then ends the outer loop.
	script := `require ["foreverypart", "imap4flags"];
foreverypart {
	if header :contains "content-type" "multipart/alternative" {
		foreverypart { addflag "\\Seen"; }
		break;
	}
}`
	got, _, err := runAll(t, script, nestedEml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two inner-loop events, got %d: %v", len(got), got)
	}
}

func TestForEveryPartOnFlatMessage(t *testing.T) {
	// A non-MIME message has no nested parts: the body never runs.
	script := `require ["foreverypart", "imap4flags"]; foreverypart { addflag "\\Seen"; } keep;`
	expectEvents(t, script, eml, []Event{interp.EventKeep{}})
}

func TestInclude(t *testing.T) {
	sub := compileScript(t, `keep;`)
	got, _, err := runAll(t, `require ["include"]; include "sub";`, eml, nil, func(ev Event) Input {
		if inc, ok := ev.(interp.EventIncludeScript); ok {
			if inc.Name != "sub" {
				t.Errorf("include name = %q", inc.Name)
			}
			return InputScript(inc.Name, sub)
		}
		return InputTrue
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{
		interp.EventIncludeScript{Name: "sub"},
		interp.EventKeep{},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestIncludeCachedAndOnce(t *testing.T) {
	sub := compileScript(t, `keep;`)
	answer := func(ev Event) Input {
		if inc, ok := ev.(interp.EventIncludeScript); ok {
			return InputScript(inc.Name, sub)
		}
		return InputTrue
	}

	got, _, err := runAll(t, `require ["include"]; include "sub"; include "sub";`, eml, nil, answer)
	if err != nil {
		t.Fatal(err)
	}
	// Second include is served from the cache: no second request event.
	var requests, keeps int
	for _, ev := range got {
		switch ev.(type) {
		case interp.EventIncludeScript:
			requests++
		case interp.EventKeep:
			keeps++
		}
	}
	if requests != 1 || keeps != 2 {
		t.Errorf("requests=%d keeps=%d, want 1 and 2", requests, keeps)
	}

	got, _, err = runAll(t, `require ["include"]; include :once "sub"; include :once "sub";`, eml, nil, answer)
	if err != nil {
		t.Fatal(err)
	}
	keeps = 0
	for _, ev := range got {
		if _, ok := ev.(interp.EventKeep); ok {
			keeps++
		}
	}
	if keeps != 1 {
		t.Errorf("keeps=%d, want 1 with :once", keeps)
	}
}

func TestIncludeGlobals(t *testing.T) {
	sub := compileScript(t, `require ["include", "variables"]; global "x";
if string :is "${x}" "shared" { keep; }`)
	script := `require ["include", "variables"]; global "x"; set "x" "shared"; include "sub";`
	got, _, err := runAll(t, script, eml, nil, func(ev Event) Input {
		if inc, ok := ev.(interp.EventIncludeScript); ok {
			return InputScript(inc.Name, sub)
		}
		return InputTrue
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ev := range got {
		if _, ok := ev.(interp.EventKeep); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("global variable not visible in included script: %v", got)
	}
}

func TestElsifChain(t *testing.T) {
	script := `require ["fileinto"];
if header :is "Subject" "nope" { fileinto "a"; }
elsif header :contains "Subject" "present" { fileinto "b"; }
else { fileinto "c"; }`
	expectEvents(t, script, eml, []Event{interp.EventFileInto{Folder: "b"}})
}

func TestAnyOfAllOfNot(t *testing.T) {
	t.Run("anyof", func(t *testing.T) {
		expectEvents(t, `if anyof (false, header :contains "Subject" "present") { keep; }`,
			eml, []Event{interp.EventKeep{}})
	})
	t.Run("allof", func(t *testing.T) {
		expectEvents(t, `if allof (exists "From", header :contains "Subject" "present") { keep; }`,
			eml, []Event{interp.EventKeep{}})
	})
	t.Run("allof-shortcircuit", func(t *testing.T) {
		expectEvents(t, `if allof (false, true) { keep; }`, eml, nil)
	})
	t.Run("not", func(t *testing.T) {
		expectEvents(t, `if not header :is "Subject" "nope" { keep; }`,
			eml, []Event{interp.EventKeep{}})
	})
	t.Run("not-anyof", func(t *testing.T) {
		expectEvents(t, `if not anyof (false, false) { keep; }`,
			eml, []Event{interp.EventKeep{}})
	})
}

func TestMatchVariables(t *testing.T) {
	script := `require ["variables", "fileinto"];
if header :matches "Subject" "* present *" { fileinto "${1}"; }`
	expectEvents(t, script, eml, []Event{interp.EventFileInto{Folder: "I have a"}})
}

func TestAddressTest(t *testing.T) {
	expectEvents(t, `if address :is :domain "From" "desert.example.org" { keep; }`,
		eml, []Event{interp.EventKeep{}})
	expectEvents(t, `require ["subaddress"];
if address :is :user "To" "roadrunner" { keep; }`,
		eml, []Event{interp.EventKeep{}})
}

func TestEnvelopeTest(t *testing.T) {
	expectEvents(t, `require ["envelope"]; if envelope :is "from" "from@test.com" { keep; }`,
		eml, []Event{interp.EventKeep{}})
	expectEvents(t, `require ["envelope"]; if envelope :is :domain "to" "x" { keep; }`,
		eml, []Event{interp.EventKeep{}})
}

func TestSizeTest(t *testing.T) {
	expectEvents(t, `if size :over 10 { keep; }`, eml, []Event{interp.EventKeep{}})
	expectEvents(t, `if size :under 10 { keep; }`, eml, nil)
}

func TestRelationalCount(t *testing.T) {
	script := `require ["relational", "comparator-i;ascii-numeric"];
if header :count "ge" :comparator "i;ascii-numeric" ["To", "From"] ["2"] { keep; }`
	expectEvents(t, script, eml, []Event{interp.EventKeep{}})
}

func TestRegexMatch(t *testing.T) {
	script := `require ["regex", "variables", "fileinto"];
if header :regex "Subject" "present (for) (you)" { fileinto "${2}"; }`
	expectEvents(t, script, eml, []Event{interp.EventFileInto{Folder: "you"}})
}

func TestRedirectAndCopy(t *testing.T) {
	got, ctx, err := runAll(t, `redirect "other@example.org";`, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{interp.EventRedirect{Address: "other@example.org"}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if ctx.ImplicitKeep() {
		t.Error("redirect did not cancel implicit keep")
	}

	_, ctx, err = runAll(t, `require ["copy"]; redirect :copy "other@example.org";`, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ctx.ImplicitKeep() {
		t.Error("redirect :copy cancelled implicit keep")
	}
}

func TestRejectStop(t *testing.T) {
	expectEvents(t, `require ["reject"]; reject "go away"; keep;`, eml, []Event{
		interp.EventReject{Reason: "go away"},
		interp.EventKeep{},
	})
	expectEvents(t, `require ["ereject"]; ereject "nope";`, eml, []Event{
		interp.EventReject{Reason: "nope", Ereject: true},
	})
	expectEvents(t, `keep; stop; keep;`, eml, []Event{interp.EventKeep{}})
}

func TestFlags(t *testing.T) {
	script := `require ["imap4flags"];
setflag ["\\Seen"];
addflag ["\\Flagged", "\\Seen"];
removeflag "\\Seen";
if hasflag "\\Flagged" { keep; }`
	got, ctx, err := runAll(t, script, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{
		interp.EventSetFlag{Flags: []string{`\Seen`}},
		interp.EventAddFlag{Flags: []string{`\Flagged`, `\Seen`}},
		interp.EventRemoveFlag{Flags: []string{`\Seen`}},
		interp.EventKeep{Flags: []string{`\Flagged`}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`\Flagged`}, ctx.Flags()); diff != "" {
		t.Errorf("flag state (-want +got):\n%s", diff)
	}
}

func TestVacation(t *testing.T) {
	script := `require ["vacation", "vacation-seconds"];
vacation :seconds 1800 :subject "Out" :handle "h1" :addresses ["me@example.org"] "back soon";`
	expectEvents(t, script, eml, []Event{
		interp.EventVacation{
			Reason:    "back soon",
			Subject:   "Out",
			Handle:    "h1",
			Addresses: []string{"me@example.org"},
			Seconds:   1800,
		},
	})
}

func TestDuplicate(t *testing.T) {
	script := `require ["duplicate", "fileinto"];
if duplicate :handle "h" :seconds 60 { fileinto "Dup"; }`
	seen := false
	answer := func(ev Event) Input {
		if d, ok := ev.(interp.EventDuplicateId); ok {
			if d.Id != "<anvil-1@desert.example.org>" || d.Handle != "h" || d.Seconds != 60 {
				t.Errorf("unexpected duplicate event: %+v", d)
			}
			if seen {
				return InputTrue
			}
			return InputFalse
		}
		return InputTrue
	}

	got, _, err := runAll(t, script, eml, nil, answer)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("first run: %v", got)
	}

	seen = true
	got, _, err = runAll(t, script, eml, nil, answer)
	if err != nil {
		t.Fatal(err)
	}
	foundFileInto := false
	for _, ev := range got {
		if fi, ok := ev.(interp.EventFileInto); ok && fi.Folder == "Dup" {
			foundFileInto = true
		}
	}
	if !foundFileInto {
		t.Errorf("second run did not file into Dup: %v", got)
	}
}

func TestNotDuplicateSuspension(t *testing.T) {
	// The is_not recorded at suspension must XOR with the host's answer.
	script := `require ["duplicate"]; if not duplicate { keep; }`
	got, _, err := runAll(t, script, eml, nil, func(ev Event) Input {
		if _, ok := ev.(interp.EventDuplicateId); ok {
			return InputFalse // not seen
		}
		return InputTrue
	})
	if err != nil {
		t.Fatal(err)
	}
	keeps := 0
	for _, ev := range got {
		if _, ok := ev.(interp.EventKeep); ok {
			keeps++
		}
	}
	if keeps != 1 {
		t.Errorf("not duplicate with false answer should keep, got %v", got)
	}
}

func TestEnvironment(t *testing.T) {
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	rt.Environment["name"] = "sievevm"

	got, _, err := runAll(t, `require ["environment"]; if environment :is "name" "sievevm" { keep; }`,
		eml, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("inline environment test failed: %v", got)
	}

	// Unknown items suspend.
	sawEvent := false
	got, _, err = runAll(t, `require ["environment"]; if environment :is "phase" "during" { keep; }`,
		eml, rt, func(ev Event) Input {
			if e, ok := ev.(interp.EventEnvironmentGet); ok {
				sawEvent = true
				if e.Name != "phase" {
					t.Errorf("event name = %q", e.Name)
				}
				return InputFalse
			}
			return InputTrue
		})
	if err != nil {
		t.Fatal(err)
	}
	if !sawEvent {
		t.Error("expected EventEnvironmentGet")
	}
	for _, ev := range got {
		if _, ok := ev.(interp.EventKeep); ok {
			t.Error("false answer still executed keep")
		}
	}
}

func TestSpamTestInline(t *testing.T) {
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	rt.SpamScore = 7
	script := `require ["spamtest", "relational", "comparator-i;ascii-numeric"];
if spamtest :value "ge" :comparator "i;ascii-numeric" "5" { discard; }`
	got, ctx, err := runAll(t, script, eml, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unexpected events: %v", got)
	}
	if ctx.ImplicitKeep() {
		t.Error("discard did not run")
	}
}

func TestEditHeader(t *testing.T) {
	script := `require ["editheader"];
addheader "X-Filter" "matched";
if header :is "X-Filter" "matched" { keep; }
deleteheader "Subject";
if exists "Subject" { discard; }`
	got, ctx, err := runAll(t, script, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{interp.EventKeep{}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
	if len(ctx.HeaderInsertions()) != 1 || len(ctx.HeaderDeletions()) != 1 {
		t.Errorf("pending edits: +%d -%d", len(ctx.HeaderInsertions()), len(ctx.HeaderDeletions()))
	}
	if ctx.ImplicitKeep() != true {
		t.Error("deleted header still visible to exists")
	}
}

func TestErrorCommand(t *testing.T) {
	_, _, err := runAll(t, `require ["ihave"]; error "boom";`, eml, nil, nil)
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != interp.ScriptErrorMessage || rerr.Message != "boom" {
		t.Fatalf("expected script error, got %v", err)
	}
}

func TestIhaveGuardsUnknownCommand(t *testing.T) {
	script := `require ["ihave"]; if ihave "frobnicate" { frobnicate "x"; } keep;`
	expectEvents(t, script, eml, []Event{interp.EventKeep{}})

	// Reaching the unknown command is a runtime error.
	_, _, err := runAll(t, `require ["ihave"]; if ihave "fileinto" { frobnicate "x"; }`, eml, nil, nil)
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != interp.InvalidInstruction {
		t.Fatalf("expected invalid instruction, got %v", err)
	}
}

func TestVariableLimitBoundary(t *testing.T) {
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	ctx := NewContext(rt, []byte(eml))
	bad := &Sieve{NumVars: interp.MaxLocalVariables + 1}
	_, err := ctx.Run(InputScript("", bad))
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != interp.IllegalAction {
		t.Fatalf("expected IllegalAction, got %v", err)
	}

	ctx = NewContext(rt, []byte(eml))
	bad = &Sieve{NumMatchVars: interp.MaxMatchVariables + 1}
	if _, err := ctx.Run(InputScript("", bad)); err == nil {
		t.Fatal("match variable limit not enforced")
	}
}

func TestInstructionLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxInstructions = 5
	rt := NewRuntime(AllCapabilities(), limits)
	script := `if true { if true { if true { if true { keep; } } } }`
	_, _, err := runAll(t, script, eml, rt, nil)
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != interp.ScriptTooLong {
		t.Fatalf("expected ScriptTooLong, got %v", err)
	}
}

func TestCapabilityNotAllowed(t *testing.T) {
	rt := NewRuntime([]Capability{interp.CapFileInto}, DefaultLimits())
	_, _, err := runAll(t, `require ["vacation"]; vacation "x";`, eml, rt, nil)
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != interp.CapabilityNotAllowed {
		t.Fatalf("expected CapabilityNotAllowed, got %v", err)
	}

	_, _, err = runAll(t, `require ["vnd.example.custom"]; keep;`, eml, rt, nil)
	rerr, ok = err.(*RuntimeError)
	if !ok || rerr.Kind != interp.CapabilityNotSupported {
		t.Fatalf("expected CapabilityNotSupported, got %v", err)
	}
}

func TestDeterministicEvaluation(t *testing.T) {
	script := `require ["fileinto", "variables"];
if header :matches "Subject" "*present*" { set "dest" "Gifts"; fileinto "${dest}"; }
keep;`
	first, _, err := runAll(t, script, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := runAll(t, script, eml, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two runs differ:\n%s", diff)
	}
}
