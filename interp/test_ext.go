package interp

import (
	"strconv"
	"strings"
)

// TestDuplicate (RFC 7352) consults the host's duplicate-tracking store via
// an event; without a tracking value it is false and emits no event.
type TestDuplicate struct {
	Handle   *StringItem
	Header   *StringItem
	UniqueId *StringItem
	Seconds  uint64
	Last     bool
	IsNot    bool
}

func (t TestDuplicate) exec(c *Context) TestResult {
	var id string
	switch {
	case t.UniqueId != nil:
		id = c.evalString(*t.UniqueId)
	case t.Header != nil:
		if values := c.headerWithEdits(0, c.evalString(*t.Header)); len(values) > 0 {
			id = strings.TrimSpace(values[0])
		}
	default:
		if values := c.headerWithEdits(0, "Message-ID"); len(values) > 0 {
			id = strings.TrimSpace(values[0])
		}
	}
	if id == "" {
		// No tracking value; the test never matches.
		return boolResult(false, t.IsNot)
	}
	return TestResult{
		Event: EventDuplicateId{
			Id:      id,
			Handle:  c.evalOptString(t.Handle),
			Seconds: t.Seconds,
			Last:    t.Last,
		},
		IsNot: t.IsNot,
	}
}

// TestSpamTest (RFC 5235, plus :percent from spamtestplus). When the
// runtime carries a score the comparison happens inline; otherwise the host
// answers via EventSpamTest.
type TestSpamTest struct {
	Matcher Matcher
	Percent bool
	Value   StringItem
	IsNot   bool
}

func (t TestSpamTest) exec(c *Context) TestResult {
	if c.runtime.SpamScore < 0 {
		return TestResult{
			Event: EventSpamTest{Value: c.evalString(t.Value), Percent: t.Percent},
			IsNot: t.IsNot,
		}
	}
	score := c.runtime.SpamScore
	if t.Percent {
		score *= 10
	}
	m := t.Matcher
	m.Keys = []StringItem{t.Value}
	ok, err := c.tryMatch(m, strconv.Itoa(score))
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(ok, t.IsNot)
}

// TestVirusTest (RFC 5235).
type TestVirusTest struct {
	Matcher Matcher
	Value   StringItem
	IsNot   bool
}

func (t TestVirusTest) exec(c *Context) TestResult {
	if c.runtime.VirusScore < 0 {
		return TestResult{
			Event: EventVirusTest{Value: c.evalString(t.Value)},
			IsNot: t.IsNot,
		}
	}
	m := t.Matcher
	m.Keys = []StringItem{t.Value}
	ok, err := c.tryMatch(m, strconv.Itoa(c.runtime.VirusScore))
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(ok, t.IsNot)
}

// TestEnvironment (RFC 5183). Items bound on the runtime evaluate inline;
// anything else asks the host.
type TestEnvironment struct {
	Matcher Matcher
	Name    StringItem
	IsNot   bool
}

func (t TestEnvironment) exec(c *Context) TestResult {
	name := strings.ToLower(c.evalString(t.Name))
	value, ok := c.runtime.Environment[name]
	if !ok {
		return TestResult{
			Event: EventEnvironmentGet{Name: name, Keys: c.evalStrings(t.Matcher.Keys)},
			IsNot: t.IsNot,
		}
	}
	match, err := c.tryMatch(t.Matcher, value)
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(match, t.IsNot)
}

// TestIhave (RFC 5463) is true when every listed extension is allowed by
// the runtime.
type TestIhave struct {
	Capabilities []Capability
	IsNot        bool
}

func (t TestIhave) exec(c *Context) TestResult {
	for _, cap := range t.Capabilities {
		if !cap.Known() || !c.runtime.AllowsCapability(cap) {
			return boolResult(false, t.IsNot)
		}
	}
	return boolResult(true, t.IsNot)
}

// TestHasFlag (RFC 5232) matches the internal flag set, or the contents of
// the named flag variables.
type TestHasFlag struct {
	Matcher   Matcher
	Variables []StringItem
	IsNot     bool
}

func (t TestHasFlag) exec(c *Context) TestResult {
	var flags []string
	if len(t.Variables) > 0 {
		for _, v := range t.Variables {
			flags = append(flags, strings.Fields(c.evalString(v))...)
		}
	} else {
		flags = c.flags
	}
	if t.Matcher.IsCount() {
		return boolResult(c.countMatches(t.Matcher, uint64(len(flags))), t.IsNot)
	}
	for _, f := range flags {
		ok, err := c.tryMatch(t.Matcher, f)
		if err != nil {
			return TestResult{Err: err}
		}
		if ok {
			return boolResult(true, t.IsNot)
		}
	}
	return boolResult(false, t.IsNot)
}

// TestMailboxExists (RFC 5490). Without a MailboxChecker policy the test is
// optimistic, mirroring deferred mailbox creation at delivery time.
type TestMailboxExists struct {
	Mailboxes  []StringItem
	SpecialUse bool // specialuse_exists: names are special-use attributes
	IsNot      bool
}

func (t TestMailboxExists) exec(c *Context) TestResult {
	checker, ok := c.runtime.Policy.(MailboxChecker)
	if !ok {
		return boolResult(true, t.IsNot)
	}
	for _, mbx := range t.Mailboxes {
		if !checker.MailboxExists(c.evalString(mbx)) {
			return boolResult(false, t.IsNot)
		}
	}
	return boolResult(true, t.IsNot)
}

// TestMetadata covers metadata, metadataexists, servermetadata and
// servermetadataexists (RFC 5490). Server variants carry no mailbox.
type TestMetadata struct {
	Matcher     Matcher
	Mailbox     *StringItem
	Annotations []StringItem
	ExistsOnly  bool
	IsNot       bool
}

func (t TestMetadata) exec(c *Context) TestResult {
	reader, ok := c.runtime.Policy.(MetadataReader)
	if !ok {
		return boolResult(false, t.IsNot)
	}
	mailbox := c.evalOptString(t.Mailbox)
	if t.ExistsOnly {
		for _, ann := range t.Annotations {
			if _, ok := reader.Metadata(mailbox, c.evalString(ann)); !ok {
				return boolResult(false, t.IsNot)
			}
		}
		return boolResult(true, t.IsNot)
	}
	for _, ann := range t.Annotations {
		value, ok := reader.Metadata(mailbox, c.evalString(ann))
		if !ok {
			continue
		}
		match, err := c.tryMatch(t.Matcher, value)
		if err != nil {
			return TestResult{Err: err}
		}
		if match {
			return boolResult(true, t.IsNot)
		}
	}
	return boolResult(false, t.IsNot)
}

// TestValidExtList (RFC 6134) asks the host policy whether the named lists
// are valid.
type TestValidExtList struct {
	Lists []StringItem
	IsNot bool
}

func (t TestValidExtList) exec(c *Context) TestResult {
	checker, ok := c.runtime.Policy.(ListChecker)
	if !ok {
		return boolResult(false, t.IsNot)
	}
	for _, list := range t.Lists {
		if !checker.ListValid(c.evalString(list)) {
			return boolResult(false, t.IsNot)
		}
	}
	return boolResult(true, t.IsNot)
}

// TestValidNotifyMethod (RFC 5435) checks method URIs syntactically.
type TestValidNotifyMethod struct {
	Methods []StringItem
	IsNot   bool
}

func (t TestValidNotifyMethod) exec(c *Context) TestResult {
	for _, m := range t.Methods {
		if !validNotifyURI(c.evalString(m)) {
			return boolResult(false, t.IsNot)
		}
	}
	return boolResult(true, t.IsNot)
}

func validNotifyURI(uri string) bool {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" || rest == "" {
		return false
	}
	for i := 0; i < len(scheme); i++ {
		c := scheme[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

// TestNotifyMethodCapability (RFC 5435). Only the "online" item is defined;
// without host knowledge its value is "maybe".
type TestNotifyMethodCapability struct {
	Matcher Matcher
	URI     StringItem
	Name    StringItem
	IsNot   bool
}

func (t TestNotifyMethodCapability) exec(c *Context) TestResult {
	if !validNotifyURI(c.evalString(t.URI)) {
		return boolResult(false, t.IsNot)
	}
	value := "maybe"
	if !strings.EqualFold(c.evalString(t.Name), "online") {
		return boolResult(false, t.IsNot)
	}
	ok, err := c.tryMatch(t.Matcher, value)
	if err != nil {
		return TestResult{Err: err}
	}
	return boolResult(ok, t.IsNot)
}
