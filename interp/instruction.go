package interp

// Instruction is one compiled node. Jump targets are absolute indices into
// the same instruction vector. Conditional jumps (Jz, Jnz, ForEveryPart) are
// strictly forward; the parser enforces this structurally and the run loop
// asserts it. The unconditional Jmp that closes a foreverypart body jumps
// back to the loop head.
type Instruction interface {
	isInstruction()
}

// VarRef names a variable assignment target: a compile-time local slot or a
// global by lowercase name.
type VarRef struct {
	Local bool
	Idx   uint16
	Name  string
}

// Modifier is a RFC 5229 set-modifier, applied highest precedence first.
type Modifier uint8

const (
	ModLower Modifier = iota
	ModUpper
	ModLowerFirst
	ModUpperFirst
	ModQuoteWildcard
	ModQuoteRegex
	ModEncodeURL
	ModLength
)

// Location selects the script storage a script is included from.
type Location uint8

const (
	LocationPersonal Location = iota
	LocationGlobal
)

// Fcc is the file-carbon-copy argument group shared by notify and vacation.
// If Create, Flags, SpecialUse or MailboxId is set, Target must be present;
// the parser rejects the command otherwise.
type Fcc struct {
	Target     StringItem
	Create     bool
	Flags      []StringItem
	SpecialUse *StringItem
	MailboxId  *StringItem
}

type Jz struct{ Pos uint32 }
type Jnz struct{ Pos uint32 }
type Jmp struct{ Pos uint32 }

// Test evaluates a test expression and stores the outcome in the context's
// test result, or suspends with an event.
type Test struct{ Expr TestExpr }

type Keep struct{ Flags []StringItem }

type FileInto struct {
	Folder     StringItem
	Flags      []StringItem
	MailboxId  *StringItem
	SpecialUse *StringItem
	Copy       bool
	Create     bool
}

type Redirect struct {
	Address StringItem
	Copy    bool
}

type Discard struct{}
type Stop struct{}

type Reject struct {
	Reason  StringItem
	Ereject bool
}

// ForEveryPart advances the MIME part cursor, or jumps past the loop body
// when the iterator is exhausted.
type ForEveryPart struct{ JzPos uint32 }

// ForEveryPartPush saves the part cursor and starts iterating the nested
// parts of the current scope.
type ForEveryPartPush struct{}

// ForEveryPartPop unwinds exactly Pops iteration frames (emitted by break).
type ForEveryPartPop struct{ Pops uint32 }

type Replace struct {
	Mime        bool
	Subject     *StringItem
	From        *StringItem
	Replacement StringItem
}

type Enclose struct {
	Subject *StringItem
	Headers []StringItem
	Value   StringItem
}

type ExtractText struct {
	Modifiers []Modifier
	First     uint64
	Dest      VarRef
}

type AddHeader struct {
	Last  bool
	Name  StringItem
	Value StringItem
}

type DeleteHeader struct {
	Matcher  Matcher
	Name     StringItem
	Patterns []StringItem
	Index    int32
	Last     bool
}

type Set struct {
	Modifiers []Modifier
	Dest      VarRef
	Value     StringItem
}

type Notify struct {
	Method     StringItem
	From       *StringItem
	Importance *StringItem
	Options    []StringItem
	Message    *StringItem
	Fcc        *Fcc
}

type Vacation struct {
	Reason    StringItem
	Subject   *StringItem
	From      *StringItem
	Handle    *StringItem
	Addresses []StringItem
	Mime      bool
	Seconds   uint64 // expiry in seconds; :days is stored multiplied out
	Fcc       *Fcc
}

type SetFlag struct {
	Var   *VarRef
	Flags []StringItem
}

type AddFlag struct {
	Var   *VarRef
	Flags []StringItem
}

type RemoveFlag struct {
	Var   *VarRef
	Flags []StringItem
}

type Include struct {
	Value    StringItem
	Location Location
	Once     bool
	Optional bool
}

type Return struct{}

type Require struct{ Capabilities []Capability }

type Convert struct {
	FromType StringItem
	ToType   StringItem
	Params   []StringItem
}

// Clear zero-lengthens a range of local variable slots and a bitmask of
// match variables, modeling lexical scope exit.
type Clear struct {
	LocalVarsIdx uint16
	LocalVarsNum uint16
	MatchVars    uint64
}

type Error struct{ Message StringItem }

type Invalid struct{ Name string }

// External is a host-defined command used by test harnesses; it evaluates
// its parameters and yields an EventTestCommand.
type External struct {
	Command string
	Params  []StringItem
}

func (Jz) isInstruction()               {}
func (Jnz) isInstruction()              {}
func (Jmp) isInstruction()              {}
func (Test) isInstruction()             {}
func (Keep) isInstruction()             {}
func (FileInto) isInstruction()         {}
func (Redirect) isInstruction()         {}
func (Discard) isInstruction()          {}
func (Stop) isInstruction()             {}
func (Reject) isInstruction()           {}
func (ForEveryPart) isInstruction()     {}
func (ForEveryPartPush) isInstruction() {}
func (ForEveryPartPop) isInstruction()  {}
func (Replace) isInstruction()          {}
func (Enclose) isInstruction()          {}
func (ExtractText) isInstruction()      {}
func (AddHeader) isInstruction()        {}
func (DeleteHeader) isInstruction()     {}
func (Set) isInstruction()              {}
func (Notify) isInstruction()           {}
func (Vacation) isInstruction()         {}
func (SetFlag) isInstruction()          {}
func (AddFlag) isInstruction()          {}
func (RemoveFlag) isInstruction()       {}
func (Include) isInstruction()          {}
func (Return) isInstruction()           {}
func (Require) isInstruction()          {}
func (Convert) isInstruction()          {}
func (Clear) isInstruction()            {}
func (Error) isInstruction()            {}
func (Invalid) isInstruction()          {}
func (External) isInstruction()         {}

// Sieve is an immutable compiled program. It may be shared read-only by any
// number of concurrent contexts.
type Sieve struct {
	Instructions []Instruction
	NumVars      uint16
	NumMatchVars uint16
	NumParts     uint16
}
