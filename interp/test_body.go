package interp

import "strings"

// BodyTransform selects how the body test views the message (RFC 5173).
type BodyTransform uint8

const (
	BodyText BodyTransform = iota
	BodyRaw
	BodyContent
)

// TestBody matches against the message body.
type TestBody struct {
	Matcher      Matcher
	Transform    BodyTransform
	ContentTypes []StringItem
	IsNot        bool
}

func (t TestBody) exec(c *Context) TestResult {
	var values []string
	switch t.Transform {
	case BodyRaw:
		values = []string{string(c.message.RawBody())}
	case BodyText:
		for _, id := range c.message.textParts() {
			values = append(values, string(c.message.Parts[id].Body))
		}
	case BodyContent:
		types := c.evalStrings(t.ContentTypes)
		for id, part := range c.message.Parts {
			if len(part.Children) > 0 {
				continue
			}
			if contentTypeMatches(part.ContentType, types) {
				values = append(values, string(c.message.Parts[id].Body))
			}
		}
	}

	if t.Matcher.IsCount() {
		return boolResult(c.countMatches(t.Matcher, uint64(len(values))), t.IsNot)
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

// contentTypeMatches implements the RFC 5173 :content type selection: an
// empty string matches everything, "type" matches the main type and
// "type/subtype" matches exactly.
func contentTypeMatches(ct string, wanted []string) bool {
	for _, w := range wanted {
		w = strings.ToLower(w)
		switch {
		case w == "":
			return true
		case strings.ContainsRune(w, '/'):
			if ct == w {
				return true
			}
		default:
			if strings.HasPrefix(ct, w+"/") {
				return true
			}
		}
	}
	return false
}
