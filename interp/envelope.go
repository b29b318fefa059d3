package interp

import "strings"

// Envelope names an SMTP envelope slot a value can be bound to.
type Envelope string

const (
	EnvelopeFrom              Envelope = "from"
	EnvelopeTo                Envelope = "to"
	EnvelopeOriginalRecipient Envelope = "orcpt"
	EnvelopeByTimeAbsolute    Envelope = "bytimeabsolute"
	EnvelopeByTimeRelative    Envelope = "bytimerelative"
	EnvelopeByMode            Envelope = "bymode"
	EnvelopeByTrace           Envelope = "bytrace"
	EnvelopeNotify            Envelope = "notify"
	EnvelopeRet               Envelope = "ret"
	EnvelopeEnvid             Envelope = "envid"
	EnvelopeAuth              Envelope = "auth"
)

// ParseEnvelope maps an envelope-part name from a script to a slot.
func ParseEnvelope(name string) Envelope {
	switch strings.ToLower(name) {
	case "from":
		return EnvelopeFrom
	case "to":
		return EnvelopeTo
	case "orcpt", "original-recipient":
		return EnvelopeOriginalRecipient
	case "notify":
		return EnvelopeNotify
	case "ret":
		return EnvelopeRet
	case "envid":
		return EnvelopeEnvid
	case "auth":
		return EnvelopeAuth
	case "bytimeabsolute":
		return EnvelopeByTimeAbsolute
	case "bytimerelative":
		return EnvelopeByTimeRelative
	case "bymode":
		return EnvelopeByMode
	case "bytrace":
		return EnvelopeByTrace
	}
	return Envelope(strings.ToLower(name))
}

type envelopeEntry struct {
	envelope Envelope
	value    string
}

// parseEnvelopeAddress validates and normalizes an RFC 5321 reverse/forward
// path. The null path <> normalizes to the empty string; source routes are
// stripped. Returns false for syntactically invalid addresses.
func parseEnvelopeAddress(addr string) (string, bool) {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == "<>" {
		return "", true
	}

	if strings.HasPrefix(addr, "<") && strings.HasSuffix(addr, ">") {
		addr = addr[1 : len(addr)-1]
		// Source route: <@relay1,@relay2:user@domain>.
		if strings.HasPrefix(addr, "@") {
			colon := strings.IndexByte(addr, ':')
			if colon == -1 {
				return "", false
			}
			addr = addr[colon+1:]
		}
	} else if strings.ContainsAny(addr, "<>") {
		return "", false
	}

	if addr == "" {
		return "", true
	}
	if strings.EqualFold(addr, "mailer-daemon") || strings.EqualFold(addr, "postmaster") {
		return addr, true
	}
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", false
	}
	return addr, true
}
