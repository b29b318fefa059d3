// Package parser consumes tokens and lowers commands and tests directly
// into a linear instruction vector, patching forward references for jumps.
package parser

import (
	"fmt"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
)

type Options struct {
	MaxBlockNesting    int
	MaxTestNesting     int
	MaxVariableNameLen int
}

type loopFrame struct {
	name       string
	fepIdx     int
	endPatches []int
}

type scopeMark struct {
	names      int
	varsStart  uint16
	matchStart uint16
}

type Parser struct {
	tok  *lexer.Tokenizer
	opts *Options

	instr []interp.Instruction

	caps map[interp.Capability]struct{}

	localVars  map[string]uint16
	scopeVars  []string
	globalVars map[string]struct{}

	numVars      uint16
	numMatchVars uint16

	blockDepth int
	loops      []loopFrame

	partsDepth    int
	maxPartsDepth int
}

// Parse compiles a whole script into an immutable program.
func Parse(tok *lexer.Tokenizer, opts *Options) (*interp.Sieve, error) {
	p := &Parser{
		tok:        tok,
		opts:       opts,
		caps:       map[interp.Capability]struct{}{},
		localVars:  map[string]uint16{},
		globalVars: map[string]struct{}{},
	}
	for {
		ti, err := p.tok.Peek()
		if err != nil {
			return nil, err
		}
		if ti.Token == lexer.TokenEof {
			break
		}
		if err := p.parseCommand(); err != nil {
			return nil, err
		}
	}
	return &interp.Sieve{
		Instructions: p.instr,
		NumVars:      p.numVars,
		NumMatchVars: p.numMatchVars,
		NumParts:     uint16(p.maxPartsDepth),
	}, nil
}

func (p *Parser) emit(i interp.Instruction) int {
	p.instr = append(p.instr, i)
	return len(p.instr) - 1
}

// patchHere points earlier placeholder jumps at the next instruction.
func (p *Parser) patchHere(idxs []int) {
	target := uint32(len(p.instr))
	for _, i := range idxs {
		switch ins := p.instr[i].(type) {
		case interp.Jz:
			ins.Pos = target
			p.instr[i] = ins
		case interp.Jnz:
			ins.Pos = target
			p.instr[i] = ins
		case interp.Jmp:
			ins.Pos = target
			p.instr[i] = ins
		case interp.ForEveryPart:
			ins.JzPos = target
			p.instr[i] = ins
		}
	}
}

func (p *Parser) hasCap(c interp.Capability) bool {
	_, ok := p.caps[c]
	return ok
}

// require validates that a capability was declared before use, as RFC 5228
// mandates for the require command.
func (p *Parser) require(c interp.Capability, ti lexer.TokenInfo) error {
	if p.hasCap(c) {
		return nil
	}
	return lexer.ErrorAt(lexer.ErrMissingRequire, ti.Line, ti.Col,
		"missing require %q", string(c))
}

func (p *Parser) parseCommand() error {
	ti, err := p.tok.Next()
	if err != nil {
		return err
	}
	if ti.Token != lexer.TokenIdentifier {
		return ti.Expected("command")
	}

	switch ti.Word {
	case lexer.WordRequire:
		return p.parseRequire(ti)
	case lexer.WordIf:
		return p.parseIf(ti)
	case lexer.WordElsIf, lexer.WordElse:
		return ti.Expected("command")
	case lexer.WordKeep:
		return p.parseKeep(ti)
	case lexer.WordFileInto:
		return p.parseFileInto(ti)
	case lexer.WordRedirect:
		return p.parseRedirect(ti)
	case lexer.WordDiscard:
		return p.parseBare(interp.Discard{})
	case lexer.WordStop:
		return p.parseBare(interp.Stop{})
	case lexer.WordReject:
		return p.parseReject(ti, false)
	case lexer.WordEreject:
		return p.parseReject(ti, true)
	case lexer.WordError:
		return p.parseError(ti)
	case lexer.WordSet:
		return p.parseSet(ti)
	case lexer.WordAddHeader:
		return p.parseAddHeader(ti)
	case lexer.WordDeleteHeader:
		return p.parseDeleteHeader(ti)
	case lexer.WordNotify:
		return p.parseNotify(ti)
	case lexer.WordVacation:
		return p.parseVacation(ti)
	case lexer.WordInclude:
		return p.parseInclude(ti)
	case lexer.WordReturn:
		if err := p.require(interp.CapInclude, ti); err != nil {
			return err
		}
		return p.parseBare(interp.Return{})
	case lexer.WordGlobal:
		return p.parseGlobal(ti)
	case lexer.WordForEveryPart:
		return p.parseForEveryPart(ti)
	case lexer.WordBreak:
		return p.parseBreak(ti)
	case lexer.WordReplace:
		return p.parseReplace(ti)
	case lexer.WordEnclose:
		return p.parseEnclose(ti)
	case lexer.WordExtractText:
		return p.parseExtractText(ti)
	case lexer.WordConvert:
		return p.parseConvert(ti)
	case lexer.WordSetFlag:
		return p.parseFlagAction(ti, flagOpSet)
	case lexer.WordAddFlag:
		return p.parseFlagAction(ti, flagOpAdd)
	case lexer.WordRemoveFlag:
		return p.parseFlagAction(ti, flagOpRemove)
	}

	// Unknown commands lower to Invalid instructions so ihave-guarded
	// scripts still load; reaching one at run time is an error.
	name := ti.Text
	if name == "" {
		name = ti.Word.String()
	}
	if err := p.skipCommand(); err != nil {
		return err
	}
	p.emit(interp.Invalid{Name: name})
	return nil
}

// skipCommand consumes the remainder of an unrecognized command: everything
// up to the command terminator, including an attached block.
func (p *Parser) skipCommand() error {
	for {
		ti, err := p.tok.Next()
		if err != nil {
			return err
		}
		switch ti.Token {
		case lexer.TokenSemicolon:
			return nil
		case lexer.TokenCurlyOpen:
			depth := 1
			for depth > 0 {
				ti, err := p.tok.Next()
				if err != nil {
					return err
				}
				switch ti.Token {
				case lexer.TokenCurlyOpen:
					depth++
				case lexer.TokenCurlyClose:
					depth--
				case lexer.TokenEof:
					return ti.Expected("'}'")
				}
			}
			return nil
		case lexer.TokenEof:
			return ti.Expected("';'")
		}
	}
}

func (p *Parser) parseBare(i interp.Instruction) error {
	if _, err := p.tok.Expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	p.emit(i)
	return nil
}

func (p *Parser) parseRequire(ti lexer.TokenInfo) error {
	items, err := p.tok.ParseStrings(true)
	if err != nil {
		return err
	}
	caps := make([]interp.Capability, 0, len(items))
	for _, item := range items {
		c := interp.ParseCapability(item.Text)
		if p.hasCap(c) {
			return lexer.ErrorAt(lexer.ErrDuplicateRequire, item.Line, item.Col,
				"capability %q already required", item.Text)
		}
		p.caps[c] = struct{}{}
		caps = append(caps, c)
	}
	if _, err := p.tok.Expect(lexer.TokenSemicolon); err != nil {
		return err
	}
	p.emit(interp.Require{Capabilities: caps})
	return nil
}

func (p *Parser) parseIf(ti lexer.TokenInfo) error {
	var endPatches []int
	for {
		node, err := p.parseTest(0)
		if err != nil {
			return err
		}
		elsePatches, err := p.emitCond(node, false, false)
		if err != nil {
			return err
		}
		if err := p.parseBlock(); err != nil {
			return err
		}

		next, err := p.tok.Peek()
		if err != nil {
			return err
		}
		if next.Token == lexer.TokenIdentifier && next.Word == lexer.WordElsIf {
			if _, err := p.tok.Next(); err != nil {
				return err
			}
			endPatches = append(endPatches, p.emit(interp.Jmp{}))
			p.patchHere(elsePatches)
			continue
		}
		if next.Token == lexer.TokenIdentifier && next.Word == lexer.WordElse {
			if _, err := p.tok.Next(); err != nil {
				return err
			}
			endPatches = append(endPatches, p.emit(interp.Jmp{}))
			p.patchHere(elsePatches)
			if err := p.parseBlock(); err != nil {
				return err
			}
			break
		}
		p.patchHere(elsePatches)
		break
	}
	p.patchHere(endPatches)
	return nil
}

// parseBlock compiles `{ commands }`. Local variables and match groups
// first allocated inside the block are released with a Clear instruction at
// block exit.
func (p *Parser) parseBlock() error {
	open, err := p.tok.Expect(lexer.TokenCurlyOpen)
	if err != nil {
		return err
	}
	if p.blockDepth >= p.opts.MaxBlockNesting && p.opts.MaxBlockNesting > 0 {
		return lexer.ErrorAt(lexer.ErrNestingTooDeep, open.Line, open.Col, "block nesting too deep")
	}
	p.blockDepth++
	mark := scopeMark{names: len(p.scopeVars), varsStart: p.numVars, matchStart: p.numMatchVars}

	for {
		ti, err := p.tok.Peek()
		if err != nil {
			return err
		}
		if ti.Token == lexer.TokenCurlyClose {
			if _, err := p.tok.Next(); err != nil {
				return err
			}
			break
		}
		if ti.Token == lexer.TokenEof {
			return ti.Expected("'}'")
		}
		if err := p.parseCommand(); err != nil {
			return err
		}
	}
	p.blockDepth--

	newVars := p.numVars - mark.varsStart
	var matchMask uint64
	for i := mark.matchStart; i < p.numMatchVars && i < 64; i++ {
		matchMask |= 1 << uint(i)
	}
	if newVars > 0 || matchMask != 0 {
		p.emit(interp.Clear{
			LocalVarsIdx: mark.varsStart,
			LocalVarsNum: newVars,
			MatchVars:    matchMask,
		})
	}
	for _, name := range p.scopeVars[mark.names:] {
		delete(p.localVars, name)
	}
	p.scopeVars = p.scopeVars[:mark.names]
	return nil
}

func (p *Parser) parseForEveryPart(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapForEveryPart, ti); err != nil {
		return err
	}
	var name string
	next, err := p.tok.Peek()
	if err != nil {
		return err
	}
	if next.Token == lexer.TokenTag && next.Word == lexer.WordName {
		if _, err := p.tok.Next(); err != nil {
			return err
		}
		nameTok, err := p.tok.UnwrapString()
		if err != nil {
			return err
		}
		name = nameTok.Text
	}

	p.emit(interp.ForEveryPartPush{})
	top := len(p.instr)
	fepIdx := p.emit(interp.ForEveryPart{})

	p.partsDepth++
	if p.partsDepth > p.maxPartsDepth {
		p.maxPartsDepth = p.partsDepth
	}
	p.loops = append(p.loops, loopFrame{name: name, fepIdx: fepIdx})

	if err := p.parseBlock(); err != nil {
		return err
	}
	p.emit(interp.Jmp{Pos: uint32(top)})

	loop := p.loops[len(p.loops)-1]
	p.loops = p.loops[:len(p.loops)-1]
	p.partsDepth--
	p.patchHere(append(loop.endPatches, loop.fepIdx))
	return nil
}

func (p *Parser) parseBreak(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapForEveryPart, ti); err != nil {
		return err
	}
	var name string
	next, err := p.tok.Peek()
	if err != nil {
		return err
	}
	if next.Token == lexer.TokenTag && next.Word == lexer.WordName {
		if _, err := p.tok.Next(); err != nil {
			return err
		}
		nameTok, err := p.tok.UnwrapString()
		if err != nil {
			return err
		}
		name = nameTok.Text
	}
	if _, err := p.tok.Expect(lexer.TokenSemicolon); err != nil {
		return err
	}

	if len(p.loops) == 0 {
		return ti.Invalid("break outside foreverypart")
	}
	target := len(p.loops) - 1
	if name != "" {
		target = -1
		for i := len(p.loops) - 1; i >= 0; i-- {
			if p.loops[i].name == name {
				target = i
				break
			}
		}
		if target == -1 {
			return ti.Invalid(fmt.Sprintf("break: no foreverypart loop named %q", name))
		}
	}

	// Unwind every loop from the innermost through the target, then jump
	// past the target's end.
	pops := uint32(len(p.loops) - target)
	p.emit(interp.ForEveryPartPop{Pops: pops})
	p.loops[target].endPatches = append(p.loops[target].endPatches, p.emit(interp.Jmp{}))
	return nil
}

func (p *Parser) parseGlobal(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapInclude, ti); err != nil {
		return err
	}
	if err := p.require(interp.CapVariables, ti); err != nil {
		return err
	}
	items, err := p.tok.ParseStrings(true)
	if err != nil {
		return err
	}
	for _, item := range items {
		if !isVariableName(item.Text) {
			return item.Invalid("invalid variable name")
		}
		p.globalVars[lowerName(item.Text)] = struct{}{}
	}
	_, err = p.tok.Expect(lexer.TokenSemicolon)
	return err
}

func (p *Parser) noteMatchVars(n uint16) {
	if n > p.numMatchVars {
		p.numMatchVars = n
	}
}
