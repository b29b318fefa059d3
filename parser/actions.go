package parser

import (
	"strings"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
)

func lowerName(s string) string { return strings.ToLower(s) }

func (p *Parser) parseKeep(ti lexer.TokenInfo) error {
	keep := interp.Keep{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		if tag.Word != lexer.WordFlags {
			return tag.Expected("':flags'")
		}
		if err := p.require(interp.CapImap4Flags, *tag); err != nil {
			return err
		}
		if keep.Flags, err = p.stringListArg(true); err != nil {
			return err
		}
	}
	return p.parseBare(keep)
}

func (p *Parser) parseFileInto(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapFileInto, ti); err != nil {
		return err
	}
	fi := interp.FileInto{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordCopy:
			if err := p.require(interp.CapCopy, *tag); err != nil {
				return err
			}
			fi.Copy = true
		case lexer.WordCreate:
			if err := p.require(interp.CapMailbox, *tag); err != nil {
				return err
			}
			fi.Create = true
		case lexer.WordFlags:
			if err := p.require(interp.CapImap4Flags, *tag); err != nil {
				return err
			}
			if fi.Flags, err = p.stringListArg(true); err != nil {
				return err
			}
		case lexer.WordMailboxId:
			if err := p.require(interp.CapMailboxId, *tag); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			fi.MailboxId = &s
		case lexer.WordSpecialUse:
			if err := p.require(interp.CapSpecialUse, *tag); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			fi.SpecialUse = &s
		default:
			return tag.Expected("fileinto argument")
		}
	}
	var err error
	if fi.Folder, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(fi)
}

func (p *Parser) parseRedirect(ti lexer.TokenInfo) error {
	r := interp.Redirect{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		if tag.Word != lexer.WordCopy {
			return tag.Expected("':copy'")
		}
		if err := p.require(interp.CapCopy, *tag); err != nil {
			return err
		}
		r.Copy = true
	}
	var err error
	if r.Address, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(r)
}

func (p *Parser) parseReject(ti lexer.TokenInfo, ereject bool) error {
	cap := interp.CapReject
	if ereject {
		cap = interp.CapEreject
	}
	if err := p.require(cap, ti); err != nil {
		return err
	}
	reason, err := p.stringArg()
	if err != nil {
		return err
	}
	return p.parseBare(interp.Reject{Reason: reason, Ereject: ereject})
}

func (p *Parser) parseError(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapIhave, ti); err != nil {
		return err
	}
	msg, err := p.stringArg()
	if err != nil {
		return err
	}
	return p.parseBare(interp.Error{Message: msg})
}

// modifierTag maps set-modifier tags; :encodeurl comes from enotify.
func (p *Parser) modifierTag(tag lexer.TokenInfo) (interp.Modifier, bool, error) {
	switch tag.Word {
	case lexer.WordLower:
		return interp.ModLower, true, nil
	case lexer.WordUpper:
		return interp.ModUpper, true, nil
	case lexer.WordLowerFirst:
		return interp.ModLowerFirst, true, nil
	case lexer.WordUpperFirst:
		return interp.ModUpperFirst, true, nil
	case lexer.WordQuoteWildcard:
		return interp.ModQuoteWildcard, true, nil
	case lexer.WordQuoteRegex:
		if err := p.require(interp.CapRegex, tag); err != nil {
			return 0, false, err
		}
		return interp.ModQuoteRegex, true, nil
	case lexer.WordEncodeURL:
		if err := p.require(interp.CapEnotify, tag); err != nil {
			return 0, false, err
		}
		return interp.ModEncodeURL, true, nil
	case lexer.WordLength:
		return interp.ModLength, true, nil
	}
	return 0, false, nil
}

func (p *Parser) parseSet(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapVariables, ti); err != nil {
		return err
	}
	set := interp.Set{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		mod, ok, err := p.modifierTag(*tag)
		if err != nil {
			return err
		}
		if !ok {
			return tag.Expected("set modifier")
		}
		set.Modifiers = append(set.Modifiers, mod)
	}
	nameTok, err := p.tok.UnwrapString()
	if err != nil {
		return err
	}
	if set.Dest, err = p.allocVariable(nameTok.Text, nameTok); err != nil {
		return err
	}
	if set.Value, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(set)
}

func (p *Parser) parseAddHeader(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapEditHeader, ti); err != nil {
		return err
	}
	a := interp.AddHeader{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		if tag.Word != lexer.WordLast {
			return tag.Expected("':last'")
		}
		a.Last = true
	}
	var err error
	if a.Name, err = p.stringArg(); err != nil {
		return err
	}
	if a.Value, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(a)
}

func (p *Parser) parseDeleteHeader(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapEditHeader, ti); err != nil {
		return err
	}
	d := interp.DeleteHeader{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &d.Matcher); err != nil {
			return err
		} else if ok {
			continue
		}
		if ok, err := p.indexTag(*tag, &d.Index, &d.Last); err != nil {
			return err
		} else if ok {
			continue
		}
		return tag.Expected("deleteheader argument")
	}
	if d.Last && d.Index == 0 {
		return ti.Invalid(":last can only be specified with :index")
	}
	var err error
	if d.Name, err = p.stringArg(); err != nil {
		return err
	}
	next, err := p.tok.Peek()
	if err != nil {
		return err
	}
	if next.Token == lexer.TokenString || next.Token == lexer.TokenBracketOpen {
		if d.Patterns, err = p.stringListArg(true); err != nil {
			return err
		}
	}
	return p.parseBare(d)
}

/*
notify [":from" string]

	[":importance" <"1" / "2" / "3">]
	[":options" string-list]
	[":message" string]
	<method: string>
*/
func (p *Parser) parseNotify(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapEnotify, ti); err != nil {
		return err
	}

	var (
		method     *interp.StringItem
		from       *interp.StringItem
		importance *interp.StringItem
		message    *interp.StringItem
		options    []interp.StringItem

		fcc        *interp.StringItem
		create     bool
		flags      []interp.StringItem
		specialUse *interp.StringItem
		mailboxId  *interp.StringItem
	)

	for method == nil {
		next, err := p.tok.Next()
		if err != nil {
			return err
		}
		switch {
		case next.Token == lexer.TokenTag && next.Word == lexer.WordFrom:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			from = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordMessage:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			message = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordImportance:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			importance = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordOptions:
			if options, err = p.stringListArg(false); err != nil {
				return err
			}
		case next.Token == lexer.TokenTag && next.Word == lexer.WordCreate:
			if err := p.require(interp.CapMailbox, next); err != nil {
				return err
			}
			create = true
		case next.Token == lexer.TokenTag && next.Word == lexer.WordSpecialUse:
			if err := p.require(interp.CapSpecialUse, next); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			specialUse = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordMailboxId:
			if err := p.require(interp.CapMailboxId, next); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			mailboxId = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordFcc:
			if err := p.require(interp.CapFcc, next); err != nil {
				return err
			}
			fccTok, err := p.tok.UnwrapString()
			if err != nil {
				return err
			}
			s := p.compileString(fccTok.Text)
			fcc = &s
		case next.Token == lexer.TokenTag && next.Word == lexer.WordFlags:
			if err := p.require(interp.CapImap4Flags, next); err != nil {
				return err
			}
			if flags, err = p.stringListArg(true); err != nil {
				return err
			}
		case next.Token == lexer.TokenString:
			s := p.compileString(next.Text)
			method = &s
		default:
			return next.Expected("string")
		}
	}

	if fcc == nil && (create || len(flags) > 0 || specialUse != nil || mailboxId != nil) {
		return ti.Invalid("missing ':fcc' tag")
	}

	n := interp.Notify{
		Method:     *method,
		From:       from,
		Importance: importance,
		Options:    options,
		Message:    message,
	}
	if fcc != nil {
		n.Fcc = &interp.Fcc{
			Target:     *fcc,
			Create:     create,
			Flags:      flags,
			SpecialUse: specialUse,
			MailboxId:  mailboxId,
		}
	}
	return p.parseBare(n)
}

func (p *Parser) parseVacation(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapVacation, ti); err != nil {
		return err
	}

	v := interp.Vacation{}
	var (
		fcc        *interp.StringItem
		create     bool
		flags      []interp.StringItem
		specialUse *interp.StringItem
		mailboxId  *interp.StringItem
	)

	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordDays:
			num, err := p.tok.UnwrapNumber()
			if err != nil {
				return err
			}
			v.Seconds = num.Num * 86400
		case lexer.WordSeconds:
			if err := p.require(interp.CapVacationSeconds, *tag); err != nil {
				return err
			}
			num, err := p.tok.UnwrapNumber()
			if err != nil {
				return err
			}
			v.Seconds = num.Num
		case lexer.WordSubject:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			v.Subject = &s
		case lexer.WordFrom:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			v.From = &s
		case lexer.WordHandle:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			v.Handle = &s
		case lexer.WordAddresses:
			if v.Addresses, err = p.stringListArg(true); err != nil {
				return err
			}
		case lexer.WordMime:
			v.Mime = true
		case lexer.WordFcc:
			if err := p.require(interp.CapFcc, *tag); err != nil {
				return err
			}
			fccTok, err := p.tok.UnwrapString()
			if err != nil {
				return err
			}
			s := p.compileString(fccTok.Text)
			fcc = &s
		case lexer.WordCreate:
			if err := p.require(interp.CapMailbox, *tag); err != nil {
				return err
			}
			create = true
		case lexer.WordFlags:
			if err := p.require(interp.CapImap4Flags, *tag); err != nil {
				return err
			}
			if flags, err = p.stringListArg(true); err != nil {
				return err
			}
		case lexer.WordSpecialUse:
			if err := p.require(interp.CapSpecialUse, *tag); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			specialUse = &s
		case lexer.WordMailboxId:
			if err := p.require(interp.CapMailboxId, *tag); err != nil {
				return err
			}
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			mailboxId = &s
		default:
			return tag.Expected("vacation argument")
		}
	}

	if fcc == nil && (create || len(flags) > 0 || specialUse != nil || mailboxId != nil) {
		return ti.Invalid("missing ':fcc' tag")
	}
	if fcc != nil {
		v.Fcc = &interp.Fcc{
			Target:     *fcc,
			Create:     create,
			Flags:      flags,
			SpecialUse: specialUse,
			MailboxId:  mailboxId,
		}
	}

	var err error
	if v.Reason, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(v)
}

func (p *Parser) parseInclude(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapInclude, ti); err != nil {
		return err
	}
	inc := interp.Include{Location: interp.LocationPersonal}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordPersonal:
			inc.Location = interp.LocationPersonal
		case lexer.WordGlobal:
			inc.Location = interp.LocationGlobal
		case lexer.WordOnce:
			inc.Once = true
		case lexer.WordOptional:
			inc.Optional = true
		default:
			return tag.Expected("include argument")
		}
	}
	var err error
	if inc.Value, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(inc)
}

func (p *Parser) parseReplace(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapReplace, ti); err != nil {
		return err
	}
	r := interp.Replace{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordMime:
			r.Mime = true
		case lexer.WordSubject:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			r.Subject = &s
		case lexer.WordFrom:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			r.From = &s
		default:
			return tag.Expected("replace argument")
		}
	}
	var err error
	if r.Replacement, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(r)
}

func (p *Parser) parseEnclose(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapEnclose, ti); err != nil {
		return err
	}
	e := interp.Enclose{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordSubject:
			s, err := p.stringArg()
			if err != nil {
				return err
			}
			e.Subject = &s
		case lexer.WordHeaders:
			if e.Headers, err = p.stringListArg(true); err != nil {
				return err
			}
		default:
			return tag.Expected("enclose argument")
		}
	}
	var err error
	if e.Value, err = p.stringArg(); err != nil {
		return err
	}
	return p.parseBare(e)
}

func (p *Parser) parseExtractText(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapExtractText, ti); err != nil {
		return err
	}
	if err := p.require(interp.CapVariables, ti); err != nil {
		return err
	}
	e := interp.ExtractText{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return err
		}
		if tag == nil {
			break
		}
		if tag.Word == lexer.WordFirst {
			num, err := p.tok.UnwrapNumber()
			if err != nil {
				return err
			}
			e.First = num.Num
			continue
		}
		mod, ok, err := p.modifierTag(*tag)
		if err != nil {
			return err
		}
		if !ok {
			return tag.Expected("extracttext argument")
		}
		e.Modifiers = append(e.Modifiers, mod)
	}
	nameTok, err := p.tok.UnwrapString()
	if err != nil {
		return err
	}
	if e.Dest, err = p.allocVariable(nameTok.Text, nameTok); err != nil {
		return err
	}
	return p.parseBare(e)
}

func (p *Parser) parseConvert(ti lexer.TokenInfo) error {
	if err := p.require(interp.CapConvert, ti); err != nil {
		return err
	}
	c := interp.Convert{}
	var err error
	if c.FromType, err = p.stringArg(); err != nil {
		return err
	}
	if c.ToType, err = p.stringArg(); err != nil {
		return err
	}
	if c.Params, err = p.stringListArg(true); err != nil {
		return err
	}
	return p.parseBare(c)
}

const (
	flagOpSet = iota
	flagOpAdd
	flagOpRemove
)

// parseFlagAction handles setflag/addflag/removeflag:
// [<variablename: string>] <list-of-flags: string-list>.
func (p *Parser) parseFlagAction(ti lexer.TokenInfo, op int) error {
	if err := p.require(interp.CapImap4Flags, ti); err != nil {
		return err
	}
	first, err := p.tok.ParseStrings(true)
	if err != nil {
		return err
	}

	var (
		variable *interp.VarRef
		flags    []interp.StringItem
	)
	next, err := p.tok.Peek()
	if err != nil {
		return err
	}
	if next.Token == lexer.TokenString || next.Token == lexer.TokenBracketOpen {
		if err := p.require(interp.CapVariables, ti); err != nil {
			return err
		}
		if len(first) != 1 {
			return ti.Invalid("flag variable name must be a single string")
		}
		ref, err := p.allocVariable(first[0].Text, first[0])
		if err != nil {
			return err
		}
		variable = &ref
		if flags, err = p.stringListArg(true); err != nil {
			return err
		}
	} else {
		flags = make([]interp.StringItem, len(first))
		for i, f := range first {
			flags[i] = p.compileString(f.Text)
		}
	}

	var instr interp.Instruction
	switch op {
	case flagOpSet:
		instr = interp.SetFlag{Var: variable, Flags: flags}
	case flagOpAdd:
		instr = interp.AddFlag{Var: variable, Flags: flags}
	default:
		instr = interp.RemoveFlag{Var: variable, Flags: flags}
	}
	return p.parseBare(instr)
}
