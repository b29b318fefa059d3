package interp

import "strings"

// Capability names a Sieve extension. The value is always the exact
// lowercase literal used in require; unknown names are preserved verbatim.
type Capability string

const (
	CapEnvelope          Capability = "envelope"
	CapEnvelopeDsn       Capability = "envelope-dsn"
	CapEnvelopeDeliverBy Capability = "envelope-deliverby"
	CapFileInto          Capability = "fileinto"
	CapEncodedCharacter  Capability = "encoded-character"
	CapBody              Capability = "body"
	CapConvert           Capability = "convert"
	CapCopy              Capability = "copy"
	CapRelational        Capability = "relational"
	CapDate              Capability = "date"
	CapIndex             Capability = "index"
	CapDuplicate         Capability = "duplicate"
	CapVariables         Capability = "variables"
	CapEditHeader        Capability = "editheader"
	CapForEveryPart      Capability = "foreverypart"
	CapMime              Capability = "mime"
	CapReplace           Capability = "replace"
	CapEnclose           Capability = "enclose"
	CapExtractText       Capability = "extracttext"
	CapEnotify           Capability = "enotify"
	CapRedirectDsn       Capability = "redirect-dsn"
	CapRedirectDeliverBy Capability = "redirect-deliverby"
	CapEnvironment       Capability = "environment"
	CapReject            Capability = "reject"
	CapEreject           Capability = "ereject"
	CapExtLists          Capability = "extlists"
	CapSubAddress        Capability = "subaddress"
	CapVacation          Capability = "vacation"
	CapVacationSeconds   Capability = "vacation-seconds"
	CapFcc               Capability = "fcc"
	CapMailbox           Capability = "mailbox"
	CapMailboxId         Capability = "mailboxid"
	CapMboxMetadata      Capability = "mboxmetadata"
	CapServerMetadata    Capability = "servermetadata"
	CapSpecialUse        Capability = "special-use"
	CapImap4Flags        Capability = "imap4flags"
	CapIhave             Capability = "ihave"
	CapImapSieve         Capability = "imapsieve"
	CapInclude           Capability = "include"
	CapRegex             Capability = "regex"
	CapSpamTest          Capability = "spamtest"
	CapSpamTestPlus      Capability = "spamtestplus"
	CapVirusTest         Capability = "virustest"

	CapComparatorElbonia      Capability = "comparator-elbonia"
	CapComparatorOctet        Capability = "comparator-i;octet"
	CapComparatorAsciiCaseMap Capability = "comparator-i;ascii-casemap"
	CapComparatorAsciiNumeric Capability = "comparator-i;ascii-numeric"
)

var knownCapabilities = map[Capability]struct{}{
	CapEnvelope: {}, CapEnvelopeDsn: {}, CapEnvelopeDeliverBy: {},
	CapFileInto: {}, CapEncodedCharacter: {}, CapBody: {}, CapConvert: {},
	CapCopy: {}, CapRelational: {}, CapDate: {}, CapIndex: {},
	CapDuplicate: {}, CapVariables: {}, CapEditHeader: {},
	CapForEveryPart: {}, CapMime: {}, CapReplace: {}, CapEnclose: {},
	CapExtractText: {}, CapEnotify: {}, CapRedirectDsn: {},
	CapRedirectDeliverBy: {}, CapEnvironment: {}, CapReject: {},
	CapEreject: {}, CapExtLists: {}, CapSubAddress: {}, CapVacation: {},
	CapVacationSeconds: {}, CapFcc: {}, CapMailbox: {}, CapMailboxId: {},
	CapMboxMetadata: {}, CapServerMetadata: {}, CapSpecialUse: {},
	CapImap4Flags: {}, CapIhave: {}, CapImapSieve: {}, CapInclude: {},
	CapRegex: {}, CapSpamTest: {}, CapSpamTestPlus: {}, CapVirusTest: {},
	CapComparatorElbonia: {}, CapComparatorOctet: {},
	CapComparatorAsciiCaseMap: {}, CapComparatorAsciiNumeric: {},
}

// ParseCapability maps a require literal to a capability. The original
// spelling of unknown names is preserved exactly.
func ParseCapability(name string) Capability {
	return Capability(name)
}

// Known reports whether the capability is a recognized extension. Unknown
// comparator-* names still count as comparator capabilities but are not
// known.
func (c Capability) Known() bool {
	_, ok := knownCapabilities[c]
	return ok
}

// IsComparator reports whether the capability declares a comparator, and
// returns the comparator name (the part after "comparator-").
func (c Capability) IsComparator() (string, bool) {
	s, ok := strings.CutPrefix(string(c), "comparator-")
	return s, ok
}

// AllCapabilities lists every known capability; useful for hosts that want
// to enable everything.
func AllCapabilities() []Capability {
	out := make([]Capability, 0, len(knownCapabilities))
	for c := range knownCapabilities {
		out = append(out, c)
	}
	return out
}
