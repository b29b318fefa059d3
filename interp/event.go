package interp

// Event is returned by Run, signaling either a side effect the host must
// execute or a request for external information. After handling it the host
// re-enters Run with an Input.
type Event interface {
	isEvent()
}

type EventKeep struct {
	Flags []string
}

type EventFileInto struct {
	Folder     string
	Flags      []string
	MailboxId  string
	SpecialUse string
	Copy       bool
	Create     bool
}

type EventRedirect struct {
	Address string
	Copy    bool
}

type EventReject struct {
	Reason  string
	Ereject bool
}

// EventFcc is the evaluated file-carbon-copy payload attached to notify and
// vacation events.
type EventFcc struct {
	Target     string
	Create     bool
	Flags      []string
	SpecialUse string
	MailboxId  string
}

type EventNotify struct {
	Method     string
	From       string
	Importance string
	Options    []string
	Message    string
	Fcc        *EventFcc
}

type EventVacation struct {
	Reason    string
	Subject   string
	From      string
	Handle    string
	Addresses []string
	Mime      bool
	Seconds   uint64
	Fcc       *EventFcc
}

type EventSetFlag struct{ Flags []string }
type EventAddFlag struct{ Flags []string }
type EventRemoveFlag struct{ Flags []string }

// EventDuplicateId asks the host whether Id was seen before (consulting its
// duplicate-tracking store) and to record it for Seconds. Seconds zero
// leaves the expiry to the host default.
type EventDuplicateId struct {
	Id      string
	Handle  string
	Seconds uint64
	Last    bool
}

// EventSpamTest asks the host to compare its spam score for the message
// against Value ("0".."10", or "0".."100" when Percent).
type EventSpamTest struct {
	Value   string
	Percent bool
}

// EventVirusTest asks the host to compare its virus status ("1".."5")
// against Value.
type EventVirusTest struct {
	Value string
}

// EventListContains asks the host whether any of Values is a member of any
// of the named external lists.
type EventListContains struct {
	Lists  []string
	Values []string
}

// EventEnvironmentGet asks the host whether the environment item Name
// matches any of Keys; emitted only when the runtime has no binding for
// Name.
type EventEnvironmentGet struct {
	Name string
	Keys []string
}

// EventIncludeScript asks the host to load a named script; the host then
// re-enters with InputScript.
type EventIncludeScript struct {
	Name     string
	Location Location
	Optional bool
}

// EventTestCommand is produced by External instructions; test harness only.
type EventTestCommand struct {
	Command string
	Params  []string
}

func (EventKeep) isEvent()           {}
func (EventFileInto) isEvent()       {}
func (EventRedirect) isEvent()       {}
func (EventReject) isEvent()         {}
func (EventNotify) isEvent()         {}
func (EventVacation) isEvent()       {}
func (EventSetFlag) isEvent()        {}
func (EventAddFlag) isEvent()        {}
func (EventRemoveFlag) isEvent()     {}
func (EventDuplicateId) isEvent()    {}
func (EventSpamTest) isEvent()       {}
func (EventVirusTest) isEvent()      {}
func (EventListContains) isEvent()   {}
func (EventEnvironmentGet) isEvent() {}
func (EventIncludeScript) isEvent()  {}
func (EventTestCommand) isEvent()    {}

// Input is the host's message to Run: the outcome of an external test or
// action, or a script loaded in response to EventIncludeScript.
type Input struct {
	result bool
	name   string
	script *Sieve
}

var (
	InputTrue  = Input{result: true}
	InputFalse = Input{result: false}
)

// InputScript delivers a compiled script for execution. The first call to
// Run on a fresh context uses this to supply the main script.
func InputScript(name string, script *Sieve) Input {
	return Input{name: name, script: script}
}
