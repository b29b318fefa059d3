package interp

import "strings"

// HeaderInsertion is a pending addheader edit. The host applies pending
// edits when it materializes the delivered message.
type HeaderInsertion struct {
	Name  string
	Value string
	Last  bool
}

// HeaderDeletion is a pending deleteheader edit. All deletes every
// occurrence; otherwise Value (and optionally Index/Last) selects one.
type HeaderDeletion struct {
	Name  string
	Value string
	Index int32
	Last  bool
	All   bool
}

// protectedHeaders MUST NOT be deleted per RFC 5293.
var protectedHeaders = map[string]struct{}{
	"received":       {},
	"auto-submitted": {},
}

// isValidHeaderName checks a field name against RFC 5322:
// any printable US-ASCII except ":".
func isValidHeaderName(name string) bool {
	if len(name) == 0 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 33 || c > 126 || c == ':' {
			return false
		}
	}
	return true
}

func isProtectedHeader(name string) bool {
	_, ok := protectedHeaders[strings.ToLower(name)]
	return ok
}

func (c *Context) execAddHeader(a AddHeader) {
	name := c.evalString(a.Name)
	if !isValidHeaderName(name) {
		// RFC 5293 section 6 recommends ignoring rather than failing.
		return
	}
	c.headerInsertions = append(c.headerInsertions, HeaderInsertion{
		Name:  name,
		Value: c.evalString(a.Value),
		Last:  a.Last,
	})
}

func (c *Context) execDeleteHeader(d DeleteHeader) error {
	name := c.evalString(d.Name)
	if !isValidHeaderName(name) || isProtectedHeader(name) {
		return nil
	}

	if len(d.Patterns) == 0 {
		c.headerDeletions = append(c.headerDeletions, HeaderDeletion{
			Name:  name,
			Index: d.Index,
			Last:  d.Last,
			All:   d.Index == 0,
		})
		return nil
	}

	values := c.headerWithEdits(0, name)
	if len(values) == 0 {
		return nil
	}

	m := d.Matcher
	m.Keys = d.Patterns

	if d.Index > 0 {
		idx := int(d.Index) - 1
		if d.Last {
			idx = len(values) - int(d.Index)
		}
		if idx < 0 || idx >= len(values) {
			return nil
		}
		ok, err := c.tryMatch(m, strings.TrimSpace(values[idx]))
		if err != nil || !ok {
			return err
		}
		c.headerDeletions = append(c.headerDeletions, HeaderDeletion{
			Name:  name,
			Value: values[idx],
			Index: d.Index,
			Last:  d.Last,
		})
		return nil
	}

	for _, val := range values {
		ok, err := c.tryMatch(m, strings.TrimSpace(val))
		if err != nil {
			return err
		}
		if ok {
			c.headerDeletions = append(c.headerDeletions, HeaderDeletion{
				Name:  name,
				Value: val,
			})
		}
	}
	return nil
}

// headerWithEdits reads a header of a part with the pending edits applied.
// Edits only ever target the top-level header.
func (c *Context) headerWithEdits(part int, name string) []string {
	values := c.message.headerValues(part, name)
	if part != 0 || (len(c.headerInsertions) == 0 && len(c.headerDeletions) == 0) {
		return values
	}

	result := make([]string, len(values))
	copy(result, values)

	for _, ins := range c.headerInsertions {
		if !strings.EqualFold(ins.Name, name) {
			continue
		}
		if ins.Last {
			result = append(result, ins.Value)
		} else {
			result = append([]string{ins.Value}, result...)
		}
	}
	for _, del := range c.headerDeletions {
		if !strings.EqualFold(del.Name, name) {
			continue
		}
		switch {
		case del.Index > 0:
			idx := int(del.Index) - 1
			if del.Last {
				idx = len(result) - int(del.Index)
			}
			if idx >= 0 && idx < len(result) {
				result = append(result[:idx], result[idx+1:]...)
			}
		case del.All:
			result = nil
		default:
			for i, v := range result {
				if v == del.Value {
					result = append(result[:i], result[i+1:]...)
					break
				}
			}
		}
	}
	return result
}

// HeaderInsertions exposes the pending addheader edits for the host.
func (c *Context) HeaderInsertions() []HeaderInsertion { return c.headerInsertions }

// HeaderDeletions exposes the pending deleteheader edits for the host.
func (c *Context) HeaderDeletions() []HeaderDeletion { return c.headerDeletions }
