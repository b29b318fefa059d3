package interp

import "strings"

// PartKind discriminates the segments of a compiled string.
type PartKind uint8

const (
	PartText PartKind = iota
	PartLocal
	PartMatch
	PartGlobal
)

// StringPart is one segment of a string containing variable references.
type StringPart struct {
	Kind PartKind
	Text string // PartText: literal bytes; PartGlobal: lowercase name
	Num  uint16 // PartLocal: slot; PartMatch: group number
}

// StringItem is either a literal byte string or a string containing
// variable references that must be expanded at evaluation time. Literals are
// never re-parsed; expansion is lazy and non-recursive.
type StringItem struct {
	Text  string
	Parts []StringPart // nil means Text is the literal value
}

// Literal wraps a plain string with no variable references.
func Literal(s string) StringItem {
	return StringItem{Text: s}
}

// IsLiteral reports whether the item needs no expansion.
func (s StringItem) IsLiteral() bool {
	return s.Parts == nil
}

// evalString expands a string item against the current variable state.
// Unknown variables expand to the empty string. ${NN} references resolve to
// the match group captured by the most recent successful match.
func (c *Context) evalString(s StringItem) string {
	if s.Parts == nil {
		return s.Text
	}
	var b strings.Builder
	for _, p := range s.Parts {
		switch p.Kind {
		case PartText:
			b.WriteString(p.Text)
		case PartLocal:
			if int(p.Num) < len(c.varsLocal) {
				b.WriteString(c.varsLocal[p.Num])
			}
		case PartMatch:
			if int(p.Num) < len(c.varsMatch) {
				b.WriteString(c.varsMatch[p.Num])
			}
		case PartGlobal:
			b.WriteString(c.varsGlobal[p.Text])
		}
	}
	return b.String()
}

func (c *Context) evalStrings(items []StringItem) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = c.evalString(s)
	}
	return out
}

func (c *Context) evalOptString(s *StringItem) string {
	if s == nil {
		return ""
	}
	return c.evalString(*s)
}
