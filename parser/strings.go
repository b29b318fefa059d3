package parser

import (
	"strconv"
	"strings"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
)

// compileString turns a raw string literal into a StringItem. Variable
// references are resolved to compile-time slots when "variables" is
// required; encoded-character sequences are decoded in place when
// "encoded-character" is required. Anything unrecognized stays verbatim.
func (p *Parser) compileString(raw string) interp.StringItem {
	variables := p.hasCap(interp.CapVariables)
	encoded := p.hasCap(interp.CapEncodedCharacter)
	if !variables && !encoded {
		return interp.Literal(raw)
	}

	var (
		parts   []interp.StringPart
		text    strings.Builder
		hasVars bool
	)
	flushText := func() {
		if text.Len() > 0 {
			parts = append(parts, interp.StringPart{Kind: interp.PartText, Text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); {
		if raw[i] != '$' || i+1 >= len(raw) || raw[i+1] != '{' {
			text.WriteByte(raw[i])
			i++
			continue
		}
		end := strings.IndexByte(raw[i+2:], '}')
		if end == -1 {
			text.WriteByte(raw[i])
			i++
			continue
		}
		inner := raw[i+2 : i+2+end]
		consumed := i + 2 + end + 1

		switch {
		case encoded && strings.HasPrefix(strings.ToLower(inner), "hex:"):
			decoded, ok := decodeHexPairs(inner[4:])
			if !ok {
				text.WriteString(raw[i:consumed])
			} else {
				text.WriteString(decoded)
			}
			i = consumed
		case encoded && strings.HasPrefix(strings.ToLower(inner), "unicode:"):
			decoded, ok := decodeUnicodePoints(inner[8:])
			if !ok {
				text.WriteString(raw[i:consumed])
			} else {
				text.WriteString(decoded)
			}
			i = consumed
		case variables && isMatchVarRef(inner):
			num, _ := strconv.ParseUint(inner, 10, 16)
			p.noteMatchVars(uint16(num) + 1)
			flushText()
			parts = append(parts, interp.StringPart{Kind: interp.PartMatch, Num: uint16(num)})
			hasVars = true
			i = consumed
		case variables && isVariableName(inner):
			flushText()
			parts = append(parts, p.variableRef(inner))
			hasVars = true
			i = consumed
		default:
			text.WriteString(raw[i:consumed])
			i = consumed
		}
	}

	if !hasVars {
		// Only text (possibly with decoded characters) remains; keep it a
		// plain literal so it is never re-parsed.
		return interp.Literal(text.String())
	}
	flushText()
	return interp.StringItem{Text: raw, Parts: parts}
}

// variableRef resolves a name to a local slot or a global reference.
// Undeclared names fall back to globals, which expand to the empty string.
func (p *Parser) variableRef(name string) interp.StringPart {
	lower := strings.ToLower(name)
	if ns, rest, ok := strings.Cut(lower, "."); ok {
		if ns == "global" {
			return interp.StringPart{Kind: interp.PartGlobal, Text: rest}
		}
		return interp.StringPart{Kind: interp.PartGlobal, Text: lower}
	}
	if slot, ok := p.localVars[lower]; ok {
		return interp.StringPart{Kind: interp.PartLocal, Num: slot}
	}
	return interp.StringPart{Kind: interp.PartGlobal, Text: lower}
}

// allocVariable resolves an assignment target, interning a new local slot
// on first use unless the name was declared global.
func (p *Parser) allocVariable(name string, ti lexer.TokenInfo) (interp.VarRef, error) {
	if name == "" || !isVariableName(name) {
		return interp.VarRef{}, ti.Invalid("invalid variable name " + strconv.Quote(name))
	}
	if max := p.opts.MaxVariableNameLen; max > 0 && len(name) > max {
		return interp.VarRef{}, ti.Invalid("variable name too long")
	}
	lower := strings.ToLower(name)
	if ns, rest, ok := strings.Cut(lower, "."); ok {
		if ns != "global" {
			return interp.VarRef{}, ti.Invalid("unknown variable namespace " + strconv.Quote(ns))
		}
		return interp.VarRef{Name: rest}, nil
	}
	if _, ok := p.globalVars[lower]; ok {
		return interp.VarRef{Name: lower}, nil
	}
	if slot, ok := p.localVars[lower]; ok {
		return interp.VarRef{Local: true, Idx: slot}, nil
	}
	slot := p.numVars
	p.numVars++
	p.localVars[lower] = slot
	p.scopeVars = append(p.scopeVars, lower)
	return interp.VarRef{Local: true, Idx: slot}, nil
}

func isMatchVarRef(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isVariableName(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		c := seg[0]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
			return false
		}
		for i := 1; i < len(seg); i++ {
			c := seg[i]
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
				return false
			}
		}
	}
	return true
}

func decodeHexPairs(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, f := range fields {
		if len(f) != 2 {
			return "", false
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return "", false
		}
		b.WriteByte(byte(v))
	}
	return b.String(), true
}

func decodeUnicodePoints(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 16, 32)
		if err != nil || v > 0x10FFFF {
			return "", false
		}
		b.WriteRune(rune(v))
	}
	return b.String(), true
}

// stringArg consumes one string token and compiles it.
func (p *Parser) stringArg() (interp.StringItem, error) {
	ti, err := p.tok.UnwrapString()
	if err != nil {
		return interp.StringItem{}, err
	}
	return p.compileString(ti.Text), nil
}

// stringListArg consumes a string or bracketed list and compiles every
// element.
func (p *Parser) stringListArg(allowSingle bool) ([]interp.StringItem, error) {
	tis, err := p.tok.ParseStrings(allowSingle)
	if err != nil {
		return nil, err
	}
	out := make([]interp.StringItem, len(tis))
	for i, ti := range tis {
		out[i] = p.compileString(ti.Text)
	}
	return out, nil
}
