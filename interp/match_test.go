package interp

import (
	"reflect"
	"testing"
)

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		ok      bool
		caps    []string
	}{
		{"*", "anything", true, []string{"anything", "anything"}},
		{"a*c", "abc", true, []string{"abc", "b"}},
		{"a*c", "ac", true, []string{"ac", ""}},
		{"a?c", "abc", true, []string{"abc", "b"}},
		{"a?c", "ac", false, nil},
		{"*@*", "user@example.org", true, []string{"user@example.org", "user", "example.org"}},
		{"exact", "exact", true, []string{"exact"}},
		{"exact", "other", false, nil},
		{`\*`, "*", true, []string{"*"}},
		{`\*`, "x", false, nil},
		{"", "", true, []string{""}},
	}
	for _, tc := range tests {
		caps, ok := globMatch(tc.pattern, tc.value, false)
		if ok != tc.ok {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.value, ok, tc.ok)
			continue
		}
		if ok && !reflect.DeepEqual(caps, tc.caps) {
			t.Errorf("globMatch(%q, %q) captures = %v, want %v", tc.pattern, tc.value, caps, tc.caps)
		}
	}
}

func TestGlobGreedy(t *testing.T) {
	// The first * takes the longest possible prefix.
	caps, ok := globMatch("*.*", "a.b.c", false)
	if !ok {
		t.Fatal("no match")
	}
	if caps[1] != "a.b" || caps[2] != "c" {
		t.Errorf("captures = %v, want [a.b c]", caps[1:])
	}
}

func TestNumericValue(t *testing.T) {
	if v := numericValue("123abc"); v == nil || *v != 123 {
		t.Errorf("numericValue(123abc) = %v", v)
	}
	if v := numericValue("abc"); v != nil {
		t.Errorf("numericValue(abc) = %v, want nil", v)
	}
	if v := numericValue(""); v != nil {
		t.Errorf("numericValue(\"\") = %v, want nil", v)
	}
}

func TestRelationalNumeric(t *testing.T) {
	n := func(v uint64) *uint64 { return &v }
	tests := []struct {
		rel  Relational
		l, r *uint64
		want bool
	}{
		{RelGt, n(5), n(3), true},
		{RelGt, n(3), n(5), false},
		{RelEq, n(4), n(4), true},
		{RelEq, nil, nil, true},
		// Non-numbers compare greater than any number.
		{RelGt, nil, n(9999), true},
		{RelLt, n(1), nil, true},
	}
	for i, tc := range tests {
		if got := tc.rel.CompareNumericValue(tc.l, tc.r); got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestToLowerASCII(t *testing.T) {
	if got := toLowerASCII("MiXeD"); got != "mixed" {
		t.Errorf("got %q", got)
	}
	// Non-ASCII bytes are left alone.
	if got := toLowerASCII("ÜBER"); got != "Über" {
		t.Errorf("got %q", got)
	}
	s := "already lower"
	if got := toLowerASCII(s); got != s {
		t.Errorf("got %q", got)
	}
}

func testContext(t *testing.T) *Context {
	t.Helper()
	rt := NewRuntime(AllCapabilities(), DefaultLimits())
	return NewContext(rt, nil)
}

func TestComparatorDispatch(t *testing.T) {
	c := testContext(t)
	tests := []struct {
		m     Matcher
		value string
		want  bool
	}{
		{Matcher{Match: MatchIs, Comparator: ComparatorAsciiCaseMap, Keys: []StringItem{Literal("HELLO")}}, "hello", true},
		{Matcher{Match: MatchIs, Comparator: ComparatorOctet, Keys: []StringItem{Literal("HELLO")}}, "hello", false},
		{Matcher{Match: MatchContains, Comparator: ComparatorAsciiCaseMap, Keys: []StringItem{Literal("ell")}}, "hELLo", true},
		{Matcher{Match: MatchMatches, Comparator: ComparatorOctet, Keys: []StringItem{Literal("h*o")}}, "hello", true},
		{Matcher{Match: MatchValue, Relation: RelGe, Comparator: ComparatorAsciiNumeric, Keys: []StringItem{Literal("10")}}, "42", true},
		{Matcher{Match: MatchValue, Relation: RelLt, Comparator: ComparatorAsciiNumeric, Keys: []StringItem{Literal("10")}}, "42", false},
	}
	for i, tc := range tests {
		got, err := c.tryMatch(tc.m, tc.value)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestRegexCaptures(t *testing.T) {
	c := testContext(t)
	ok, caps, err := c.matchRegex(`^(\w+)@(\w+)\.org$`, "user@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("no match")
	}
	if caps[1] != "user" || caps[2] != "example" {
		t.Errorf("captures = %v", caps)
	}

	if _, _, err := c.matchRegex(`(unclosed`, "x"); err == nil {
		t.Error("expected compile error for bad pattern")
	}
}

func TestEvalString(t *testing.T) {
	c := testContext(t)
	c.varsLocal = []string{"world"}
	c.varsMatch = []string{"whole", "first"}
	c.varsGlobal["g"] = "global-value"

	si := StringItem{Text: "${x}", Parts: []StringPart{
		{Kind: PartText, Text: "hello "},
		{Kind: PartLocal, Num: 0},
		{Kind: PartText, Text: " "},
		{Kind: PartMatch, Num: 1},
		{Kind: PartText, Text: " "},
		{Kind: PartGlobal, Text: "g"},
		{Kind: PartGlobal, Text: "missing"},
	}}
	if got := c.evalString(si); got != "hello world first global-value" {
		t.Errorf("got %q", got)
	}

	// Out-of-range references expand to empty.
	si = StringItem{Parts: []StringPart{{Kind: PartLocal, Num: 9}, {Kind: PartMatch, Num: 9}}}
	if got := c.evalString(si); got != "" {
		t.Errorf("got %q, want empty", got)
	}

	if got := c.evalString(Literal("no expansion ${here}")); got != "no expansion ${here}" {
		t.Errorf("literal was re-parsed: %q", got)
	}
}

func TestApplyModifiers(t *testing.T) {
	// :length wins last regardless of order given.
	got := applyModifiers("Hello", []Modifier{ModLength, ModUpper})
	if got != "5" {
		t.Errorf("got %q, want 5", got)
	}
	got = applyModifiers("hello", []Modifier{ModUpperFirst, ModLower})
	if got != "Hello" {
		t.Errorf("got %q, want Hello", got)
	}
	got = applyModifiers("a*b", []Modifier{ModQuoteWildcard})
	if got != `a\*b` {
		t.Errorf("got %q", got)
	}
}
