package interp

import (
	"net/url"
	"strings"
)

var modifierPrecedence = map[Modifier]int{
	ModLower:         40,
	ModUpper:         40,
	ModLowerFirst:    30,
	ModUpperFirst:    30,
	ModQuoteWildcard: 20,
	ModQuoteRegex:    20,
	ModEncodeURL:     15,
	ModLength:        10,
}

// applyModifiers applies set-modifiers highest precedence first (RFC 5229
// section 4.1).
func applyModifiers(value string, mods []Modifier) string {
	ordered := make([]Modifier, len(mods))
	copy(ordered, mods)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && modifierPrecedence[ordered[j]] > modifierPrecedence[ordered[j-1]]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	for _, m := range ordered {
		switch m {
		case ModLower:
			value = strings.ToLower(value)
		case ModUpper:
			value = strings.ToUpper(value)
		case ModLowerFirst:
			if value != "" {
				value = strings.ToLower(value[:1]) + value[1:]
			}
		case ModUpperFirst:
			if value != "" {
				value = strings.ToUpper(value[:1]) + value[1:]
			}
		case ModQuoteWildcard:
			value = quoteChars(value, `*?\`)
		case ModQuoteRegex:
			value = quoteChars(value, `*?\.[]()+|^$`)
		case ModEncodeURL:
			value = url.QueryEscape(value)
		case ModLength:
			value = lengthOf(value)
		}
	}
	return value
}

func quoteChars(s, set string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(set, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func lengthOf(s string) string {
	n := len([]rune(s))
	digits := 1
	for v := n; v >= 10; v /= 10 {
		digits++
	}
	buf := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf)
}

// setVar stores a value into a local slot or a global, truncating to the
// configured limit.
func (c *Context) setVar(ref VarRef, value string) {
	if max := c.runtime.Limits.MaxVariableLen; max > 0 && len(value) > max {
		value = value[:max]
	}
	if ref.Local {
		if int(ref.Idx) < len(c.varsLocal) {
			c.varsLocal[ref.Idx] = value
		}
		return
	}
	c.varsGlobal[ref.Name] = value
}

// setMatchVars records capture groups from the most recent successful
// match, bounded by the frame's allocated match variables.
func (c *Context) setMatchVars(caps []string) {
	for i := range c.varsMatch {
		if i < len(caps) {
			c.varsMatch[i] = caps[i]
		} else {
			c.varsMatch[i] = ""
		}
	}
}

func (c *Context) clearMatchVars(mask uint64) {
	for i := range c.varsMatch {
		if mask&(1<<uint(i)) != 0 {
			c.varsMatch[i] = ""
		}
	}
}

func (c *Context) execSet(s Set) {
	c.setVar(s.Dest, applyModifiers(c.evalString(s.Value), s.Modifiers))
}

// execExtractText captures the first First characters of the current part's
// text into a variable (RFC 5703). First zero takes the whole part.
func (c *Context) execExtractText(e ExtractText) {
	var text string
	if c.part < len(c.message.Parts) {
		text = string(c.message.Parts[c.part].Body)
	}
	if e.First > 0 {
		runes := []rune(text)
		if uint64(len(runes)) > e.First {
			text = string(runes[:e.First])
		}
	}
	c.setVar(e.Dest, applyModifiers(text, e.Modifiers))
}

// PartReplacement is a pending replace edit against one MIME part.
type PartReplacement struct {
	Part    int
	Mime    bool
	Subject string
	From    string
	Body    string
}

// PartEnclosure is a pending enclose edit wrapping the whole message.
type PartEnclosure struct {
	Subject string
	Headers []string
	Body    string
}

// PartConversion is a pending convert edit (RFC 6558).
type PartConversion struct {
	Part     int
	FromType string
	ToType   string
	Params   []string
}

func (c *Context) execReplace(r Replace) {
	c.partReplacements = append(c.partReplacements, PartReplacement{
		Part:    c.part,
		Mime:    r.Mime,
		Subject: c.evalOptString(r.Subject),
		From:    c.evalOptString(r.From),
		Body:    c.evalString(r.Replacement),
	})
	// Replacing a multipart supersedes everything nested below it.
	c.partDeletions = append(c.partDeletions, c.message.NestedPartIDs(c.part, true)...)
}

func (c *Context) execEnclose(e Enclose) {
	c.enclosures = append(c.enclosures, PartEnclosure{
		Subject: c.evalOptString(e.Subject),
		Headers: c.evalStrings(e.Headers),
		Body:    c.evalString(e.Value),
	})
}

func (c *Context) execConvert(conv Convert) {
	c.partConversions = append(c.partConversions, PartConversion{
		Part:     c.part,
		FromType: c.evalString(conv.FromType),
		ToType:   c.evalString(conv.ToType),
		Params:   c.evalStrings(conv.Params),
	})
}

// PartReplacements exposes pending replace edits for the host.
func (c *Context) PartReplacements() []PartReplacement { return c.partReplacements }

// PartDeletions exposes the part ids superseded by replace edits.
func (c *Context) PartDeletions() []int { return c.partDeletions }

// Enclosures exposes pending enclose edits for the host.
func (c *Context) Enclosures() []PartEnclosure { return c.enclosures }

// PartConversions exposes pending convert edits for the host.
func (c *Context) PartConversions() []PartConversion { return c.partConversions }

// evalFlags splits evaluated flag strings on whitespace, RFC 5232 style.
func (c *Context) evalFlags(items []StringItem) []string {
	var out []string
	for _, item := range items {
		out = append(out, strings.Fields(c.evalString(item))...)
	}
	return out
}

// applyFlagOp updates the internal flag set (or a flag variable) and
// returns the evaluated flag list for the event.
func (c *Context) applyFlagOp(variable *VarRef, items []StringItem, op func(cur, change []string) []string) []string {
	change := c.evalFlags(items)
	if variable != nil {
		cur := strings.Fields(c.varValue(*variable))
		c.setVar(*variable, strings.Join(op(cur, change), " "))
		return change
	}
	c.flags = op(c.flags, change)
	return change
}

func (c *Context) varValue(ref VarRef) string {
	if ref.Local {
		if int(ref.Idx) < len(c.varsLocal) {
			return c.varsLocal[ref.Idx]
		}
		return ""
	}
	return c.varsGlobal[ref.Name]
}

func flagsSet(_, change []string) []string {
	return dedupFlags(change)
}

func flagsAdd(cur, change []string) []string {
	return dedupFlags(append(append([]string{}, cur...), change...))
}

func flagsRemove(cur, change []string) []string {
	var out []string
	for _, f := range cur {
		keep := true
		for _, r := range change {
			if strings.EqualFold(f, r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, f)
		}
	}
	return out
}

func dedupFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		dup := false
		for _, seen := range out {
			if strings.EqualFold(f, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

// Flags exposes the internal imap4flags state.
func (c *Context) Flags() []string { return c.flags }

func (c *Context) evalFcc(f *Fcc) *EventFcc {
	if f == nil {
		return nil
	}
	return &EventFcc{
		Target:     c.evalString(f.Target),
		Create:     f.Create,
		Flags:      c.evalFlags(f.Flags),
		SpecialUse: c.evalOptString(f.SpecialUse),
		MailboxId:  c.evalOptString(f.MailboxId),
	}
}
