package interp

import (
	"strconv"
	"strings"
	"unicode"
)

type Match uint8

const (
	MatchIs Match = iota
	MatchContains
	MatchMatches
	MatchRegex
	MatchValue
	MatchCount
	MatchList
)

type Comparator string

const (
	ComparatorOctet        Comparator = "i;octet"
	ComparatorAsciiCaseMap Comparator = "i;ascii-casemap"
	ComparatorAsciiNumeric Comparator = "i;ascii-numeric"

	DefaultComparator = ComparatorAsciiCaseMap
)

type Relational uint8

const (
	RelNone Relational = iota
	RelGt
	RelGe
	RelLt
	RelLe
	RelEq
	RelNe
)

// ParseRelational maps a relational match argument ("gt", "ge", ...).
func ParseRelational(s string) (Relational, bool) {
	switch strings.ToLower(s) {
	case "gt":
		return RelGt, true
	case "ge":
		return RelGe, true
	case "lt":
		return RelLt, true
	case "le":
		return RelLe, true
	case "eq":
		return RelEq, true
	case "ne":
		return RelNe, true
	}
	return RelNone, false
}

func (r Relational) CompareString(value, key string) bool {
	cmp := strings.Compare(value, key)
	return r.holds(cmp)
}

// CompareNumericValue follows RFC 4790 i;ascii-numeric: values that do not
// start with a digit are equal to each other and greater than any number.
func (r Relational) CompareNumericValue(value, key *uint64) bool {
	var cmp int
	switch {
	case value == nil && key == nil:
		cmp = 0
	case value == nil:
		cmp = 1
	case key == nil:
		cmp = -1
	case *value < *key:
		cmp = -1
	case *value > *key:
		cmp = 1
	}
	return r.holds(cmp)
}

func (r Relational) holds(cmp int) bool {
	switch r {
	case RelGt:
		return cmp > 0
	case RelGe:
		return cmp >= 0
	case RelLt:
		return cmp < 0
	case RelLe:
		return cmp <= 0
	case RelEq:
		return cmp == 0
	case RelNe:
		return cmp != 0
	}
	return cmp == 0
}

// numericValue extracts the leading decimal digit string, per RFC 4790
// section 9.1. Nil means the value does not represent a number.
func numericValue(s string) *uint64 {
	if len(s) == 0 {
		return nil
	}
	runes := []rune(s)
	if !unicode.IsDigit(runes[0]) {
		return nil
	}
	var sl string
	for i, r := range runes {
		if !unicode.IsDigit(r) {
			sl = string(runes[:i])
			break
		}
	}
	if sl == "" {
		sl = s
	}
	digit, err := strconv.ParseUint(sl, 10, 64)
	if err != nil {
		return nil
	}
	return &digit
}

// ComparatorFunc implements one comparator for all match types except
// :count. Capture groups are returned for :matches and :regex.
type ComparatorFunc func(c *Context, match Match, rel Relational, value, key string) (bool, []string, error)

func registerBuiltinComparators(r *Runtime) {
	r.RegisterComparator(ComparatorOctet, compareOctet)
	r.RegisterComparator(ComparatorAsciiCaseMap, compareAsciiCaseMap)
	r.RegisterComparator(ComparatorAsciiNumeric, compareAsciiNumeric)
}

func compareOctet(c *Context, match Match, rel Relational, value, key string) (bool, []string, error) {
	switch match {
	case MatchContains:
		return strings.Contains(value, key), nil, nil
	case MatchIs:
		return value == key, nil, nil
	case MatchMatches:
		caps, ok := globMatch(key, value, false)
		return ok, caps, nil
	case MatchRegex:
		return c.matchRegex(key, value)
	case MatchValue:
		return rel.CompareString(value, key), nil, nil
	}
	return false, nil, nil
}

func compareAsciiCaseMap(c *Context, match Match, rel Relational, value, key string) (bool, []string, error) {
	switch match {
	case MatchContains:
		return strings.Contains(toLowerASCII(value), toLowerASCII(key)), nil, nil
	case MatchIs:
		return toLowerASCII(value) == toLowerASCII(key), nil, nil
	case MatchMatches:
		// Fold case during matching but capture from the original value.
		caps, ok := globMatch(key, value, true)
		return ok, caps, nil
	case MatchRegex:
		return c.matchRegex("(?i)"+key, value)
	case MatchValue:
		return rel.CompareString(toLowerASCII(value), toLowerASCII(key)), nil, nil
	}
	return false, nil, nil
}

func compareAsciiNumeric(c *Context, match Match, rel Relational, value, key string) (bool, []string, error) {
	switch match {
	case MatchIs:
		return RelEq.CompareNumericValue(numericValue(value), numericValue(key)), nil, nil
	case MatchValue:
		return rel.CompareNumericValue(numericValue(value), numericValue(key)), nil, nil
	}
	return false, nil, runtimeErr(IllegalAction, "match-comparator combination not supported")
}

// Matcher is the compiled match-type/comparator/key triple shared by all
// matcher-bearing tests and deleteheader.
type Matcher struct {
	Match      Match
	Comparator Comparator
	Relation   Relational
	Keys       []StringItem
	// ListNames carries the external lists named by :list.
	ListNames []StringItem
}

func NewMatcher() Matcher {
	return Matcher{Match: MatchIs, Comparator: DefaultComparator}
}

func (m Matcher) IsCount() bool { return m.Match == MatchCount }
func (m Matcher) IsList() bool  { return m.Match == MatchList }

// tryMatch matches one value against every key, storing capture groups into
// the match variables on the first success.
func (c *Context) tryMatch(m Matcher, value string) (bool, error) {
	fn, ok := c.runtime.comparator(m.Comparator)
	if !ok {
		return false, runtimeErr(IllegalAction, "unknown comparator "+string(m.Comparator))
	}
	for _, key := range m.Keys {
		ok, caps, err := fn(c, m.Match, m.Relation, value, c.evalString(key))
		if err != nil {
			return false, err
		}
		if ok {
			if caps != nil {
				c.setMatchVars(caps)
			}
			return true, nil
		}
	}
	return false, nil
}

// countMatches applies the :count relation to the number of entries.
func (c *Context) countMatches(m Matcher, count uint64) bool {
	for _, key := range m.Keys {
		if m.Relation.CompareNumericValue(&count, numericValue(c.evalString(key))) {
			return true
		}
	}
	return false
}

// globMatch matches an RFC 5228 wildcard pattern. Capture group 0 is the
// whole value, followed by the text consumed by each wildcard in order,
// taken from the original value even when folding case. A backslash quotes
// the next character (produced by :quotewildcard).
func globMatch(pattern, value string, fold bool) ([]string, bool) {
	caps, ok := globCapture(pattern, value, fold)
	if !ok {
		return nil, false
	}
	return append([]string{value}, caps...), true
}

func globCapture(p, v string, fold bool) ([]string, bool) {
	if p == "" {
		if v == "" {
			return nil, true
		}
		return nil, false
	}
	switch p[0] {
	case '*':
		// Greedy with backtracking, longest capture first.
		for i := len(v); i >= 0; i-- {
			if rest, ok := globCapture(p[1:], v[i:], fold); ok {
				return append([]string{v[:i]}, rest...), true
			}
		}
		return nil, false
	case '?':
		if v == "" {
			return nil, false
		}
		rest, ok := globCapture(p[1:], v[1:], fold)
		if !ok {
			return nil, false
		}
		return append([]string{v[:1]}, rest...), true
	case '\\':
		if len(p) > 1 {
			if v == "" || !byteEq(v[0], p[1], fold) {
				return nil, false
			}
			return globCapture(p[2:], v[1:], fold)
		}
		return nil, v == "\\"
	default:
		if v == "" || !byteEq(v[0], p[0], fold) {
			return nil, false
		}
		return globCapture(p[1:], v[1:], fold)
	}
}

func byteEq(a, b byte, fold bool) bool {
	if a == b {
		return true
	}
	if !fold {
		return false
	}
	if 'A' <= a && a <= 'Z' {
		a += 'a' - 'A'
	}
	if 'A' <= b && b <= 'Z' {
		b += 'a' - 'A'
	}
	return a == b
}

func toLowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		hasUpper = hasUpper || ('A' <= c && c <= 'Z')
	}
	if !hasUpper {
		return s
	}
	var (
		b   strings.Builder
		pos int
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
			if pos < i {
				b.WriteString(s[pos:i])
			}
			b.WriteByte(c)
			pos = i + 1
		}
	}
	if pos < len(s) {
		b.WriteString(s[pos:])
	}
	return b.String()
}
