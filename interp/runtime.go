package interp

// Hard per-frame variable limits. Programs exceeding them are rejected when
// the script enters the context.
const (
	MaxLocalVariables = 512
	MaxMatchVariables = 63
)

// Limits bounds runaway scripts. Zero values mean "no limit" except where
// noted.
type Limits struct {
	// MaxNestedIncludes bounds the include stack depth.
	MaxNestedIncludes int
	// MaxIncludedScripts bounds the total number of distinct included
	// scripts cached during one evaluation.
	MaxIncludedScripts int
	// MaxInstructions bounds the total instructions executed per run.
	MaxInstructions int
	// MaxMessageSize caps the raw message size; a larger message fails
	// evaluation with IllegalAction when a script enters the context.
	MaxMessageSize int
	// MaxVariableLen truncates stored variable values.
	MaxVariableLen int
	// MaxRegexLen bounds :regex pattern length.
	MaxRegexLen int
}

func DefaultLimits() Limits {
	return Limits{
		MaxNestedIncludes:  3,
		MaxIncludedScripts: 10,
		MaxInstructions:    5000,
		MaxVariableLen:     4000,
		MaxRegexLen:        1000,
	}
}

// MailboxChecker is implemented by host policies that can answer
// mailboxexists / specialuse_exists. Without it the tests are optimistic.
type MailboxChecker interface {
	MailboxExists(mailbox string) bool
}

// MetadataReader is implemented by host policies that expose IMAP METADATA
// annotations. Without it metadata tests see no annotations.
type MetadataReader interface {
	Metadata(mailbox, annotation string) (string, bool)
}

// ListChecker is implemented by host policies that can answer external list
// validity (valid_ext_list). Membership tests always suspend with
// EventListContains.
type ListChecker interface {
	ListValid(list string) bool
}

// Runtime is the shared, immutable configuration for evaluations: allowed
// capabilities, execution limits and the comparator registry. One Runtime
// may back any number of concurrent contexts; do not mutate it after the
// first Context is created.
type Runtime struct {
	allowed map[Capability]struct{}

	Limits Limits

	// Environment holds RFC 5183 items by lowercase name. Items absent
	// here cause the environment test to suspend with EventEnvironmentGet.
	Environment map[string]string

	// SpamScore (0..10) and VirusScore (1..5) pre-seed the spamtest and
	// virustest results; -1 means unknown, making those tests suspend.
	SpamScore  int
	VirusScore int

	// Policy optionally implements MailboxChecker, MetadataReader and
	// ListChecker.
	Policy interface{}

	comparators map[Comparator]ComparatorFunc
}

// NewRuntime builds a runtime allowing exactly the given capabilities.
func NewRuntime(allowed []Capability, limits Limits) *Runtime {
	r := &Runtime{
		allowed:     make(map[Capability]struct{}, len(allowed)),
		Limits:      limits,
		Environment: map[string]string{},
		SpamScore:   -1,
		VirusScore:  -1,
		comparators: make(map[Comparator]ComparatorFunc, 4),
	}
	for _, c := range allowed {
		r.allowed[c] = struct{}{}
	}
	registerBuiltinComparators(r)
	return r
}

// AllowsCapability reports whether a required capability is accepted.
func (r *Runtime) AllowsCapability(c Capability) bool {
	_, ok := r.allowed[c]
	return ok
}

// RegisterComparator installs a comparator implementation. The engine only
// dispatches; hosts may add comparators declared via comparator-*
// capabilities.
func (r *Runtime) RegisterComparator(name Comparator, fn ComparatorFunc) {
	r.comparators[name] = fn
}

func (r *Runtime) comparator(name Comparator) (ComparatorFunc, bool) {
	fn, ok := r.comparators[name]
	return fn, ok
}
