package interp

// scriptFrame is one entry of the include call stack. Frames share the same
// immutable program values; the cache keeps them alive for re-entry.
type scriptFrame struct {
	script        *Sieve
	name          string
	prevPos       int
	prevVarsLocal []string
	prevVarsMatch []string
}

type partFrame struct {
	part int
	iter []int
}

// Context is the mutable per-message execution state. One context belongs
// to exactly one evaluation and must not be shared across goroutines.
type Context struct {
	runtime *Runtime
	message *Message

	pos        int
	testResult bool

	scriptStack []scriptFrame
	scriptCache map[string]*Sieve

	varsGlobal map[string]string
	varsLocal  []string
	varsMatch  []string

	part          int
	partIter      []int
	partIterStack []partFrame

	envelope []envelopeEntry

	headerInsertions []HeaderInsertion
	headerDeletions  []HeaderDeletion
	partReplacements []PartReplacement
	partDeletions    []int
	enclosures       []PartEnclosure
	partConversions  []PartConversion

	flags []string

	messageSize  int
	executed     int
	implicitKeep bool
}

// NewContext parses the raw message and prepares an execution state bound
// to the runtime. Supply the main script with the first Run(InputScript)
// call.
func NewContext(runtime *Runtime, rawMessage []byte) *Context {
	return &Context{
		runtime:      runtime,
		message:      ParseMessage(rawMessage),
		pos:          0,
		scriptCache:  map[string]*Sieve{},
		varsGlobal:   map[string]string{},
		messageSize:  len(rawMessage),
		implicitKeep: true,
	}
}

// SetEnvelope binds a value to an envelope slot. The value is parsed as an
// RFC 5321 path; invalid values are dropped.
func (c *Context) SetEnvelope(envelope Envelope, value string) {
	if parsed, ok := parseEnvelopeAddress(value); ok {
		c.envelope = append(c.envelope, envelopeEntry{envelope: envelope, value: parsed})
	}
}

// WithEnvelope is SetEnvelope in builder form.
func (c *Context) WithEnvelope(envelope Envelope, value string) *Context {
	c.SetEnvelope(envelope, value)
	return c
}

// ClearEnvelope removes all envelope bindings.
func (c *Context) ClearEnvelope() {
	c.envelope = nil
}

// Message exposes the parsed message.
func (c *Context) Message() *Message { return c.message }

// ImplicitKeep reports whether the implicit keep is still in effect; an
// executed fileinto or redirect without :copy, discard, or reject cancels
// it, while keep leaves it in effect.
func (c *Context) ImplicitKeep() bool { return c.implicitKeep }

// Run steps the interpreter until it completes, suspends with an event, or
// fails. A nil event with a nil error signals script completion. The host
// handles each event (or answers each external test) and re-enters with the
// matching Input.
func (c *Context) Run(in Input) (Event, error) {
	switch {
	case in.script != nil:
		script := in.script
		if int(script.NumVars) > MaxLocalVariables || int(script.NumMatchVars) > MaxMatchVariables {
			return nil, runtimeErr(IllegalAction, "variable limit exceeded")
		}
		if max := c.runtime.Limits.MaxMessageSize; max > 0 && c.messageSize > max {
			return nil, runtimeErr(IllegalAction, "message too large")
		}
		c.scriptCache[in.name] = script
		c.scriptStack = append(c.scriptStack, scriptFrame{
			script:        script,
			name:          in.name,
			prevPos:       c.pos,
			prevVarsLocal: c.varsLocal,
			prevVarsMatch: c.varsMatch,
		})
		c.varsLocal = make([]string, script.NumVars)
		c.varsMatch = make([]string, script.NumMatchVars)
		c.pos = 0
		c.testResult = false
	default:
		// XOR against the pending is_not recorded when the test suspended.
		c.testResult = c.testResult != in.result
	}

	if len(c.scriptStack) == 0 {
		return nil, nil
	}
	current := c.scriptStack[len(c.scriptStack)-1].script

	for {
		if c.pos >= len(current.Instructions) {
			// Implicit return at end of script.
			if s, done := c.popFrame(); done {
				return nil, nil
			} else {
				current = s
			}
			continue
		}
		if max := c.runtime.Limits.MaxInstructions; max > 0 && c.executed >= max {
			return nil, &RuntimeError{Kind: ScriptTooLong}
		}
		c.executed++

		switch instr := current.Instructions[c.pos].(type) {
		case Jz:
			if !c.testResult {
				if err := c.jump(int(instr.Pos), len(current.Instructions)); err != nil {
					return nil, err
				}
				continue
			}
		case Jnz:
			if c.testResult {
				if err := c.jump(int(instr.Pos), len(current.Instructions)); err != nil {
					return nil, err
				}
				continue
			}
		case Jmp:
			// Unconditional jumps may go backwards (foreverypart loops).
			if int(instr.Pos) == c.pos || int(instr.Pos) > len(current.Instructions) {
				return nil, runtimeErr(IllegalAction, "invalid jump target")
			}
			c.pos = int(instr.Pos)
			continue

		case Test:
			result := instr.Expr.exec(c)
			if result.Err != nil {
				return nil, result.Err
			}
			if result.Event != nil {
				c.pos++
				c.testResult = result.IsNot
				return result.Event, nil
			}
			c.testResult = result.Bool

		case Clear:
			if instr.LocalVarsNum > 0 {
				from, to := int(instr.LocalVarsIdx), int(instr.LocalVarsIdx+instr.LocalVarsNum)
				if to <= len(c.varsLocal) {
					for i := from; i < to; i++ {
						c.varsLocal[i] = ""
					}
				}
			}
			if instr.MatchVars != 0 {
				c.clearMatchVars(instr.MatchVars)
			}

		case Keep:
			c.pos++
			flags := c.evalFlags(instr.Flags)
			if flags == nil {
				flags = append([]string{}, c.flags...)
			}
			return EventKeep{Flags: flags}, nil

		case FileInto:
			c.pos++
			if !instr.Copy {
				c.implicitKeep = false
			}
			return EventFileInto{
				Folder:     c.evalString(instr.Folder),
				Flags:      c.evalFlags(instr.Flags),
				MailboxId:  c.evalOptString(instr.MailboxId),
				SpecialUse: c.evalOptString(instr.SpecialUse),
				Copy:       instr.Copy,
				Create:     instr.Create,
			}, nil

		case Redirect:
			c.pos++
			if !instr.Copy {
				c.implicitKeep = false
			}
			return EventRedirect{
				Address: c.evalString(instr.Address),
				Copy:    instr.Copy,
			}, nil

		case Discard:
			c.implicitKeep = false

		case Stop:
			c.scriptStack = nil
			return nil, nil

		case Reject:
			c.pos++
			c.implicitKeep = false
			return EventReject{
				Reason:  c.evalString(instr.Reason),
				Ereject: instr.Ereject,
			}, nil

		case ForEveryPart:
			if len(c.partIter) > 0 {
				c.part = c.partIter[0]
				c.partIter = c.partIter[1:]
			} else if len(c.partIterStack) > 0 {
				prev := c.partIterStack[len(c.partIterStack)-1]
				c.partIterStack = c.partIterStack[:len(c.partIterStack)-1]
				c.partIter = prev.iter
				c.part = prev.part
				if err := c.jump(int(instr.JzPos), len(current.Instructions)); err != nil {
					return nil, err
				}
				continue
			} else {
				c.part = 0
			}

		case ForEveryPartPush:
			// The outermost loop walks the entire subtree; nested loops
			// take only the parts directly below the current one.
			iter := c.message.NestedPartIDs(c.part, len(c.partIterStack) == 0)
			c.partIterStack = append(c.partIterStack, partFrame{part: c.part, iter: c.partIter})
			c.partIter = iter

		case ForEveryPartPop:
			for i := uint32(0); i < instr.Pops && len(c.partIterStack) > 0; i++ {
				prev := c.partIterStack[len(c.partIterStack)-1]
				c.partIterStack = c.partIterStack[:len(c.partIterStack)-1]
				c.partIter = prev.iter
				c.part = prev.part
			}

		case Replace:
			c.execReplace(instr)

		case Enclose:
			c.execEnclose(instr)

		case ExtractText:
			c.execExtractText(instr)

		case Convert:
			c.execConvert(instr)

		case AddHeader:
			c.execAddHeader(instr)

		case DeleteHeader:
			if err := c.execDeleteHeader(instr); err != nil {
				return nil, err
			}

		case Set:
			c.execSet(instr)

		case Notify:
			c.pos++
			return EventNotify{
				Method:     c.evalString(instr.Method),
				From:       c.evalOptString(instr.From),
				Importance: c.evalOptString(instr.Importance),
				Options:    c.evalStrings(instr.Options),
				Message:    c.evalOptString(instr.Message),
				Fcc:        c.evalFcc(instr.Fcc),
			}, nil

		case Vacation:
			c.pos++
			return EventVacation{
				Reason:    c.evalString(instr.Reason),
				Subject:   c.evalOptString(instr.Subject),
				From:      c.evalOptString(instr.From),
				Handle:    c.evalOptString(instr.Handle),
				Addresses: c.evalStrings(instr.Addresses),
				Mime:      instr.Mime,
				Seconds:   instr.Seconds,
				Fcc:       c.evalFcc(instr.Fcc),
			}, nil

		case SetFlag:
			flags := c.applyFlagOp(instr.Var, instr.Flags, flagsSet)
			c.pos++
			return EventSetFlag{Flags: flags}, nil

		case AddFlag:
			flags := c.applyFlagOp(instr.Var, instr.Flags, flagsAdd)
			c.pos++
			return EventAddFlag{Flags: flags}, nil

		case RemoveFlag:
			flags := c.applyFlagOp(instr.Var, instr.Flags, flagsRemove)
			c.pos++
			return EventRemoveFlag{Flags: flags}, nil

		case Include:
			name := c.evalString(instr.Value)
			for _, frame := range c.scriptStack {
				if frame.name == name {
					return nil, &RuntimeError{Kind: IncludeRecursionLimit}
				}
			}
			if max := c.runtime.Limits.MaxNestedIncludes; max > 0 && len(c.scriptStack) > max {
				return nil, &RuntimeError{Kind: IncludeRecursionLimit}
			}
			if script, ok := c.scriptCache[name]; ok {
				if instr.Once {
					break
				}
				c.scriptStack = append(c.scriptStack, scriptFrame{
					script:        script,
					name:          name,
					prevPos:       c.pos + 1,
					prevVarsLocal: c.varsLocal,
					prevVarsMatch: c.varsMatch,
				})
				c.varsLocal = make([]string, script.NumVars)
				c.varsMatch = make([]string, script.NumMatchVars)
				c.pos = 0
				current = script
				continue
			}
			if max := c.runtime.Limits.MaxIncludedScripts; max > 0 && len(c.scriptCache) >= max+1 {
				return nil, &RuntimeError{Kind: TooManyIncludes}
			}
			c.pos++
			return EventIncludeScript{
				Name:     name,
				Location: instr.Location,
				Optional: instr.Optional,
			}, nil

		case Return:
			if s, done := c.popFrame(); done {
				return nil, nil
			} else {
				current = s
			}
			continue

		case Require:
			for _, capability := range instr.Capabilities {
				if !c.runtime.AllowsCapability(capability) {
					kind := CapabilityNotAllowed
					if !capability.Known() {
						kind = CapabilityNotSupported
					}
					return nil, &RuntimeError{Kind: kind, Capability: capability}
				}
			}

		case Error:
			return nil, &RuntimeError{Kind: ScriptErrorMessage, Message: c.evalString(instr.Message)}

		case Invalid:
			return nil, &RuntimeError{Kind: InvalidInstruction, Name: instr.Name}

		case External:
			c.pos++
			return EventTestCommand{
				Command: instr.Command,
				Params:  c.evalStrings(instr.Params),
			}, nil
		}

		c.pos++
	}
}

// popFrame restores the caller's position and variables. done is true when
// the main script returned.
func (c *Context) popFrame() (*Sieve, bool) {
	frame := c.scriptStack[len(c.scriptStack)-1]
	c.scriptStack = c.scriptStack[:len(c.scriptStack)-1]
	c.pos = frame.prevPos
	c.varsLocal = frame.prevVarsLocal
	c.varsMatch = frame.prevVarsMatch
	if len(c.scriptStack) == 0 {
		return nil, true
	}
	return c.scriptStack[len(c.scriptStack)-1].script, false
}

// jump asserts the strictly-forward structural property before moving pos.
func (c *Context) jump(target, limit int) error {
	if target <= c.pos || target > limit {
		return runtimeErr(IllegalAction, "invalid jump target")
	}
	c.pos = target
	return nil
}
