package interp

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
)

// Part is one node of the parsed MIME tree. Part 0 is the whole message.
type Part struct {
	Header      message.Header
	Body        []byte
	Children    []int
	Parent      int
	ContentType string // lowercase "type/subtype"
}

// Message is the parsed form of the raw message a context evaluates. The
// engine performs no I/O on it; delivery stays with the host.
type Message struct {
	Raw   []byte
	Parts []Part
}

// ParseMessage builds the part table. Unparseable input degrades to a
// single empty part so scripts still run to completion.
func ParseMessage(raw []byte) *Message {
	m := &Message{Raw: raw}
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		m.Parts = []Part{{Parent: -1}}
		return m
	}
	m.addEntity(ent, -1)
	return m
}

func (m *Message) addEntity(e *message.Entity, parent int) int {
	id := len(m.Parts)
	ct, _, _ := e.Header.ContentType()
	m.Parts = append(m.Parts, Part{
		Header:      e.Header,
		Parent:      parent,
		ContentType: strings.ToLower(ct),
	})
	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err != nil {
				break
			}
			cid := m.addEntity(child, id)
			m.Parts[id].Children = append(m.Parts[id].Children, cid)
		}
	} else {
		body, _ := io.ReadAll(e.Body)
		m.Parts[id].Body = body
	}
	return id
}

// Size is the raw message size in bytes.
func (m *Message) Size() int {
	return len(m.Raw)
}

// RawBody returns the undecoded message body (everything past the top-level
// header).
func (m *Message) RawBody() []byte {
	if i := bytes.Index(m.Raw, []byte("\r\n\r\n")); i >= 0 {
		return m.Raw[i+4:]
	}
	if i := bytes.Index(m.Raw, []byte("\n\n")); i >= 0 {
		return m.Raw[i+2:]
	}
	return nil
}

// headerValues returns the raw values of a header field of one part, in
// message order.
func (m *Message) headerValues(part int, key string) []string {
	if part < 0 || part >= len(m.Parts) {
		return nil
	}
	var out []string
	fields := m.Parts[part].Header.FieldsByKey(key)
	for fields.Next() {
		out = append(out, unfoldHeader(fields.Value()))
	}
	// FieldsByKey iterates newest-first; scripts expect message order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// unfoldHeader removes folding line breaks and outer whitespace so tests
// compare the logical field value.
func unfoldHeader(v string) string {
	if strings.ContainsAny(v, "\r\n") {
		v = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v)
	}
	return strings.TrimSpace(v)
}

// NestedPartIDs returns the ids of the parts nested below the given part:
// the whole subtree in depth-first order when all is set, direct children
// otherwise. The outermost foreverypart iterates the full subtree; nested
// loops descend one level at a time.
func (m *Message) NestedPartIDs(part int, all bool) []int {
	if part < 0 || part >= len(m.Parts) {
		return nil
	}
	if !all {
		ids := make([]int, len(m.Parts[part].Children))
		copy(ids, m.Parts[part].Children)
		return ids
	}
	var ids []int
	var walk func(int)
	walk = func(id int) {
		for _, child := range m.Parts[id].Children {
			ids = append(ids, child)
			walk(child)
		}
	}
	walk(part)
	return ids
}

// textParts returns ids of all text/* leaf parts, or the root part for
// non-MIME messages.
func (m *Message) textParts() []int {
	var out []int
	for id, p := range m.Parts {
		if len(p.Children) > 0 {
			continue
		}
		if p.ContentType == "" || strings.HasPrefix(p.ContentType, "text/") {
			out = append(out, id)
		}
	}
	return out
}
