package interp

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// TestExpr is a compiled test node. exec returns a boolean outcome, an
// event to suspend on, or an error.
type TestExpr interface {
	exec(c *Context) TestResult
}

// TestResult is the outcome of one test execution. A non-nil Event suspends
// the run; IsNot then seeds the pending test result so the host's answer is
// XOR-combined with the recorded not prefix.
type TestResult struct {
	Bool  bool
	Event Event
	IsNot bool
	Err   error
}

func boolResult(v, isNot bool) TestResult {
	return TestResult{Bool: v != isNot}
}

// TestBool is the constant true/false test.
type TestBool struct {
	Value bool
	IsNot bool
}

func (t TestBool) exec(*Context) TestResult {
	return boolResult(t.Value, t.IsNot)
}

// AddressPart selects which part of an address a test compares.
type AddressPart uint8

const (
	AddressPartAll AddressPart = iota
	AddressPartLocalPart
	AddressPartDomain
	// RFC 5233 subaddress parts.
	AddressPartUser
	AddressPartDetail
)

// subaddressSeparator splits user from detail in a local-part.
const subaddressSeparator = "+"

func splitAddress(addr string) (localPart, domain string, ok bool) {
	if strings.EqualFold(addr, "postmaster") {
		return addr, "", true
	}
	idx := strings.LastIndexByte(addr, '@')
	if idx <= 0 || idx == len(addr)-1 {
		return "", "", false
	}
	return addr[:idx], addr[idx+1:], true
}

func splitSubaddress(localPart string) (user, detail string, found bool) {
	idx := strings.Index(localPart, subaddressSeparator)
	if idx == -1 {
		return localPart, "", false
	}
	return localPart[:idx], localPart[idx+len(subaddressSeparator):], true
}

// addressValue extracts the requested part. The second return is false when
// the address cannot match any key (no detail present, unparsable address).
func addressValue(addr string, part AddressPart) (string, bool) {
	if addr == "<>" {
		addr = ""
	}
	if addr == "" || part == AddressPartAll {
		return addr, true
	}
	localPart, domain, ok := splitAddress(addr)
	if !ok {
		return "", false
	}
	switch part {
	case AddressPartLocalPart:
		return localPart, true
	case AddressPartDomain:
		return domain, true
	case AddressPartUser:
		user, _, _ := splitSubaddress(localPart)
		return user, true
	case AddressPartDetail:
		_, detail, found := splitSubaddress(localPart)
		if !found {
			return "", false
		}
		return detail, true
	}
	return addr, true
}

// TestHeader is the header test, extended with RFC 5260 :index and RFC 5703
// :mime/:anychild.
type TestHeader struct {
	Matcher  Matcher
	Headers  []StringItem
	Index    int32
	Last     bool
	Mime     bool
	AnyChild bool
	IsNot    bool
}

func (t TestHeader) exec(c *Context) TestResult {
	parts := c.testParts(t.Mime, t.AnyChild)

	var values []string
	for _, hdr := range t.Headers {
		name := c.evalString(hdr)
		var hdrValues []string
		for _, part := range parts {
			hdrValues = append(hdrValues, c.headerWithEdits(part, name)...)
		}
		hdrValues = selectIndexed(hdrValues, t.Index, t.Last)
		values = append(values, hdrValues...)
	}

	if t.Matcher.IsList() {
		return TestResult{
			Event: EventListContains{Lists: c.evalStrings(t.Matcher.ListNames), Values: values},
			IsNot: t.IsNot,
		}
	}
	if t.Matcher.IsCount() {
		return boolResult(c.countMatches(t.Matcher, uint64(len(values))), t.IsNot)
	}
	for _, value := range values {
		ok, err := c.tryMatch(t.Matcher, value)
		if err != nil {
			return TestResult{Err: err}
		}
		if ok {
			return boolResult(true, t.IsNot)
		}
	}
	return boolResult(false, t.IsNot)
}

func selectIndexed(values []string, index int32, last bool) []string {
	if index <= 0 {
		return values
	}
	idx := int(index) - 1
	if last {
		idx = len(values) - int(index)
	}
	if idx < 0 || idx >= len(values) {
		return nil
	}
	return values[idx : idx+1]
}

var allowedAddrHeaders = map[string]struct{}{
	// Required by Sieve.
	"from":        {},
	"to":          {},
	"cc":          {},
	"bcc":         {},
	"sender":      {},
	"resent-from": {},
	"resent-to":   {},
	// Misc (RFC 2822)
	"reply-to":        {},
	"resent-reply-to": {},
	"resent-sender":   {},
	"resent-cc":       {},
	"resent-bcc":      {},
	// Non-standard (RFC 2076, draft-palme-mailext-headers-08.txt)
	"for-approval":         {},
	"for-handling":         {},
	"for-comment":          {},
	"apparently-to":        {},
	"errors-to":            {},
	"delivered-to":         {},
	"return-receipt-to":    {},
	"x-admin":              {},
	"read-receipt-to":      {},
	"x-confirm-reading-to": {},
	"mail-followup-to":     {},
	"mail-reply-to":        {},
	"abuse-reports-to":     {},
	"x-complaints-to":      {},
	"x-report-abuse-to":    {},
	"x-beenthere":          {},
	"x-original-from":      {},
	"x-original-to":        {},
}

// TestAddress is the address test over structured address headers.
type TestAddress struct {
	Matcher     Matcher
	AddressPart AddressPart
	Headers     []StringItem
	Index       int32
	Last        bool
	Mime        bool
	AnyChild    bool
	IsNot       bool
}

func (t TestAddress) exec(c *Context) TestResult {
	parts := c.testParts(t.Mime, t.AnyChild)

	var addrs []string
	for _, hdr := range t.Headers {
		name := strings.ToLower(c.evalString(hdr))
		if _, ok := allowedAddrHeaders[name]; !ok {
			continue
		}
		var values []string
		for _, part := range parts {
			values = append(values, c.headerWithEdits(part, name)...)
		}
		values = selectIndexed(values, t.Index, t.Last)
		for _, value := range values {
			list, err := mail.ParseAddressList(value)
			if err != nil || len(list) == 0 {
				// Unparsable values are matched literally, like the
				// whole header were one address.
				addrs = append(addrs, strings.TrimSpace(value))
				continue
			}
			for _, a := range list {
				addrs = append(addrs, a.Address)
			}
		}
	}

	if t.Matcher.IsList() {
		return TestResult{
			Event: EventListContains{Lists: c.evalStrings(t.Matcher.ListNames), Values: addrs},
			IsNot: t.IsNot,
		}
	}
	if t.Matcher.IsCount() {
		return boolResult(c.countMatches(t.Matcher, uint64(len(addrs))), t.IsNot)
	}
	for _, addr := range addrs {
		value, ok := addressValue(addr, t.AddressPart)
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

// TestEnvelope compares bound envelope slots.
type TestEnvelope struct {
	Matcher     Matcher
	AddressPart AddressPart
	Fields      []StringItem
	IsNot       bool
}

func (t TestEnvelope) exec(c *Context) TestResult {
	var values []string
	for _, field := range t.Fields {
		slot := ParseEnvelope(c.evalString(field))
		for _, entry := range c.envelope {
			if entry.envelope == slot {
				values = append(values, entry.value)
			}
		}
	}

	if t.Matcher.IsList() {
		return TestResult{
			Event: EventListContains{Lists: c.evalStrings(t.Matcher.ListNames), Values: values},
			IsNot: t.IsNot,
		}
	}
	if t.Matcher.IsCount() {
		return boolResult(c.countMatches(t.Matcher, uint64(len(values))), t.IsNot)
	}
	for _, v := range values {
		value, ok := addressValue(v, t.AddressPart)
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

// TestExists is true only if every named header exists.
type TestExists struct {
	Headers  []StringItem
	Mime     bool
	AnyChild bool
	IsNot    bool
}

func (t TestExists) exec(c *Context) TestResult {
	parts := c.testParts(t.Mime, t.AnyChild)
	for _, hdr := range t.Headers {
		name := c.evalString(hdr)
		found := false
		for _, part := range parts {
			if len(c.headerWithEdits(part, name)) > 0 {
				found = true
				break
			}
		}
		if !found {
			return boolResult(false, t.IsNot)
		}
	}
	return boolResult(true, t.IsNot)
}

// TestSize compares the raw message size.
type TestSize struct {
	Limit uint64
	Over  bool
	IsNot bool
}

func (t TestSize) exec(c *Context) TestResult {
	size := uint64(c.messageSize)
	if t.Over {
		return boolResult(size > t.Limit, t.IsNot)
	}
	return boolResult(size < t.Limit, t.IsNot)
}

// TestString applies a match to already-expanded source strings (RFC 5229).
type TestString struct {
	Matcher Matcher
	Sources []StringItem
	IsNot   bool
}

func (t TestString) exec(c *Context) TestResult {
	values := c.evalStrings(t.Sources)
	if t.Matcher.IsList() {
		return TestResult{
			Event: EventListContains{Lists: c.evalStrings(t.Matcher.ListNames), Values: values},
			IsNot: t.IsNot,
		}
	}
	if t.Matcher.IsCount() {
		var count uint64
		for _, v := range values {
			if v != "" {
				count++
			}
		}
		return boolResult(c.countMatches(t.Matcher, count), t.IsNot)
	}
	for _, v := range values {
		ok, err := c.tryMatch(t.Matcher, v)
		if err != nil {
			return TestResult{Err: err}
		}
		if ok {
			return boolResult(true, t.IsNot)
		}
	}
	return boolResult(false, t.IsNot)
}

// testParts resolves which MIME parts a header-reading test looks at: the
// current part when :mime is given or the test runs inside foreverypart,
// optionally all its descendants with :anychild. A bare header test inside
// foreverypart deliberately follows the part cursor; the break-on-part-type
// idiom (foreverypart { if header :is "content-type" ... { break; } })
// depends on it.
func (c *Context) testParts(mime, anyChild bool) []int {
	base := 0
	if mime || len(c.partIterStack) > 0 {
		base = c.part
	}
	if !anyChild {
		return []int{base}
	}
	return append([]int{base}, c.message.NestedPartIDs(base, true)...)
}
