package parser

import (
	"strings"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
)

const (
	nodeLeaf = iota
	nodeNot
	nodeAllOf
	nodeAnyOf
)

// testNode is the transient test AST; it is lowered to Test instructions
// and short-circuit jumps immediately after parsing.
type testNode struct {
	op       int
	leaf     interp.TestExpr
	children []testNode
}

func (p *Parser) parseTest(depth int) (testNode, error) {
	ti, err := p.tok.Next()
	if err != nil {
		return testNode{}, err
	}
	if ti.Token != lexer.TokenIdentifier {
		return testNode{}, ti.Expected("test")
	}
	if p.opts.MaxTestNesting > 0 && depth >= p.opts.MaxTestNesting {
		return testNode{}, lexer.ErrorAt(lexer.ErrNestingTooDeep, ti.Line, ti.Col, "test nesting too deep")
	}

	switch ti.Word {
	case lexer.WordAllOf, lexer.WordAnyOf:
		op := nodeAllOf
		if ti.Word == lexer.WordAnyOf {
			op = nodeAnyOf
		}
		if _, err := p.tok.Expect(lexer.TokenParenOpen); err != nil {
			return testNode{}, err
		}
		var children []testNode
		for {
			child, err := p.parseTest(depth + 1)
			if err != nil {
				return testNode{}, err
			}
			children = append(children, child)
			sep, err := p.tok.Next()
			if err != nil {
				return testNode{}, err
			}
			switch sep.Token {
			case lexer.TokenComma:
			case lexer.TokenParenClose:
				return testNode{op: op, children: children}, nil
			default:
				return testNode{}, sep.Expected("',' or ')'")
			}
		}
	case lexer.WordNot:
		child, err := p.parseTest(depth + 1)
		if err != nil {
			return testNode{}, err
		}
		return testNode{op: nodeNot, children: []testNode{child}}, nil
	case lexer.WordTrue:
		return leaf(interp.TestBool{Value: true}), nil
	case lexer.WordFalse:
		return leaf(interp.TestBool{}), nil
	case lexer.WordHeader:
		return p.parseHeaderTest(ti)
	case lexer.WordAddress:
		return p.parseAddressTest(ti)
	case lexer.WordEnvelope:
		return p.parseEnvelopeTest(ti)
	case lexer.WordExists:
		return p.parseExistsTest(ti)
	case lexer.WordSize:
		return p.parseSizeTest(ti)
	case lexer.WordString:
		return p.parseStringTest(ti)
	case lexer.WordBody:
		return p.parseBodyTest(ti)
	case lexer.WordDate:
		return p.parseDateTest(ti)
	case lexer.WordCurrentDate:
		return p.parseCurrentDateTest(ti)
	case lexer.WordDuplicate:
		return p.parseDuplicateTest(ti)
	case lexer.WordSpamTest:
		return p.parseSpamTestTest(ti)
	case lexer.WordVirusTest:
		return p.parseVirusTestTest(ti)
	case lexer.WordEnvironment:
		return p.parseEnvironmentTest(ti)
	case lexer.WordIhave:
		return p.parseIhaveTest(ti)
	case lexer.WordHasFlag:
		return p.parseHasFlagTest(ti)
	case lexer.WordMailboxExists:
		return p.parseMailboxExistsTest(ti, false)
	case lexer.WordSpecialUseExists:
		return p.parseMailboxExistsTest(ti, true)
	case lexer.WordMetadata:
		return p.parseMetadataTest(ti, false, false)
	case lexer.WordMetadataExists:
		return p.parseMetadataTest(ti, false, true)
	case lexer.WordServerMetadata:
		return p.parseMetadataTest(ti, true, false)
	case lexer.WordServerMetadataExists:
		return p.parseMetadataTest(ti, true, true)
	case lexer.WordValidExtList:
		return p.parseValidExtListTest(ti)
	case lexer.WordValidNotifyMethod:
		return p.parseValidNotifyMethodTest(ti)
	case lexer.WordNotifyMethodCapability:
		return p.parseNotifyMethodCapabilityTest(ti)
	}
	return testNode{}, lexer.ErrorAt(lexer.ErrUnknownCommand, ti.Line, ti.Col,
		"unknown test %q", ti.Text)
}

func leaf(t interp.TestExpr) testNode {
	return testNode{op: nodeLeaf, leaf: t}
}

// emitCond lowers a test tree into Test instructions followed by
// conditional jumps. It returns the indexes of placeholder jumps that the
// caller must patch to the branch target: jumps taken when the tree
// evaluates to branchIfTrue. The neg flag pushes pending negations down to
// the leaves (De Morgan), where they are recorded as is_not so suspended
// tests resume with the correct XOR.
func (p *Parser) emitCond(n testNode, neg, branchIfTrue bool) ([]int, error) {
	switch n.op {
	case nodeNot:
		return p.emitCond(n.children[0], !neg, branchIfTrue)
	case nodeLeaf:
		t := n.leaf
		if neg {
			t = interp.Not(t)
		}
		p.emit(interp.Test{Expr: t})
		if branchIfTrue {
			return []int{p.emit(interp.Jnz{})}, nil
		}
		return []int{p.emit(interp.Jz{})}, nil
	}

	op := n.op
	if neg {
		if op == nodeAllOf {
			op = nodeAnyOf
		} else {
			op = nodeAllOf
		}
	}

	var patches []int
	last := len(n.children) - 1
	switch {
	case op == nodeAllOf && !branchIfTrue:
		for _, child := range n.children {
			cp, err := p.emitCond(child, neg, false)
			if err != nil {
				return nil, err
			}
			patches = append(patches, cp...)
		}
	case op == nodeAllOf && branchIfTrue:
		var falsePatches []int
		for _, child := range n.children[:last] {
			cp, err := p.emitCond(child, neg, false)
			if err != nil {
				return nil, err
			}
			falsePatches = append(falsePatches, cp...)
		}
		cp, err := p.emitCond(n.children[last], neg, true)
		if err != nil {
			return nil, err
		}
		patches = cp
		p.patchHere(falsePatches)
	case op == nodeAnyOf && branchIfTrue:
		for _, child := range n.children {
			cp, err := p.emitCond(child, neg, true)
			if err != nil {
				return nil, err
			}
			patches = append(patches, cp...)
		}
	default: // anyof, branch if false
		var truePatches []int
		for _, child := range n.children[:last] {
			cp, err := p.emitCond(child, neg, true)
			if err != nil {
				return nil, err
			}
			truePatches = append(truePatches, cp...)
		}
		cp, err := p.emitCond(n.children[last], neg, false)
		if err != nil {
			return nil, err
		}
		patches = cp
		p.patchHere(truePatches)
	}
	return patches, nil
}

// nextTag consumes the next token if it is a tagged argument.
func (p *Parser) nextTag() (*lexer.TokenInfo, error) {
	ti, err := p.tok.Peek()
	if err != nil {
		return nil, err
	}
	if ti.Token != lexer.TokenTag {
		return nil, nil
	}
	if _, err := p.tok.Next(); err != nil {
		return nil, err
	}
	return &ti, nil
}

// matcherTag handles the MATCH-TYPE and COMPARATOR tags shared by all
// matcher-bearing tests.
func (p *Parser) matcherTag(ti lexer.TokenInfo, m *interp.Matcher) (bool, error) {
	switch ti.Word {
	case lexer.WordIs:
		m.Match = interp.MatchIs
	case lexer.WordContains:
		m.Match = interp.MatchContains
	case lexer.WordMatches:
		m.Match = interp.MatchMatches
	case lexer.WordRegex:
		if err := p.require(interp.CapRegex, ti); err != nil {
			return false, err
		}
		m.Match = interp.MatchRegex
	case lexer.WordCount, lexer.WordValue:
		if err := p.require(interp.CapRelational, ti); err != nil {
			return false, err
		}
		if ti.Word == lexer.WordCount {
			m.Match = interp.MatchCount
		} else {
			m.Match = interp.MatchValue
		}
		relTok, err := p.tok.UnwrapString()
		if err != nil {
			return false, err
		}
		rel, ok := interp.ParseRelational(relTok.Text)
		if !ok {
			return false, relTok.Invalid("invalid relation " + relTok.Text)
		}
		m.Relation = rel
	case lexer.WordComparator:
		cmpTok, err := p.tok.UnwrapString()
		if err != nil {
			return false, err
		}
		name := interp.Comparator(strings.ToLower(cmpTok.Text))
		switch name {
		case interp.ComparatorOctet, interp.ComparatorAsciiCaseMap:
			// Always available per RFC 5228.
		default:
			if err := p.require(interp.Capability("comparator-"+string(name)), cmpTok); err != nil {
				return false, err
			}
		}
		m.Comparator = name
	case lexer.WordList:
		if err := p.require(interp.CapExtLists, ti); err != nil {
			return false, err
		}
		m.Match = interp.MatchList
	default:
		return false, nil
	}
	return true, nil
}

func (p *Parser) addressPartTag(ti lexer.TokenInfo, part *interp.AddressPart) (bool, error) {
	switch ti.Word {
	case lexer.WordAll:
		*part = interp.AddressPartAll
	case lexer.WordLocalPart:
		*part = interp.AddressPartLocalPart
	case lexer.WordDomain:
		*part = interp.AddressPartDomain
	case lexer.WordUser:
		if err := p.require(interp.CapSubAddress, ti); err != nil {
			return false, err
		}
		*part = interp.AddressPartUser
	case lexer.WordDetail:
		if err := p.require(interp.CapSubAddress, ti); err != nil {
			return false, err
		}
		*part = interp.AddressPartDetail
	default:
		return false, nil
	}
	return true, nil
}

func (p *Parser) indexTag(ti lexer.TokenInfo, index *int32, last *bool) (bool, error) {
	switch ti.Word {
	case lexer.WordIndex:
		if err := p.require(interp.CapIndex, ti); err != nil {
			return false, err
		}
		num, err := p.tok.UnwrapNumber()
		if err != nil {
			return false, err
		}
		*index = int32(num.Num)
	case lexer.WordLast:
		*last = true
	default:
		return false, nil
	}
	return true, nil
}

func (p *Parser) mimeTag(ti lexer.TokenInfo, mime, anyChild *bool) (bool, error) {
	switch ti.Word {
	case lexer.WordMime:
		if err := p.require(interp.CapMime, ti); err != nil {
			return false, err
		}
		*mime = true
	case lexer.WordAnyChild:
		if err := p.require(interp.CapMime, ti); err != nil {
			return false, err
		}
		*anyChild = true
	default:
		return false, nil
	}
	return true, nil
}

// keyList consumes the trailing key list and binds it to the matcher,
// allocating match variables for :matches wildcards and :regex groups.
func (p *Parser) keyList(m *interp.Matcher) error {
	tis, err := p.tok.ParseStrings(true)
	if err != nil {
		return err
	}
	items := make([]interp.StringItem, len(tis))
	for i, ti := range tis {
		items[i] = p.compileString(ti.Text)
	}
	if m.Match == interp.MatchList {
		m.ListNames = items
		return nil
	}
	m.Keys = items
	if p.hasCap(interp.CapVariables) {
		switch m.Match {
		case interp.MatchMatches:
			for _, ti := range tis {
				p.noteMatchVars(countWildcards(ti.Text) + 1)
			}
		case interp.MatchRegex:
			for _, ti := range tis {
				p.noteMatchVars(countRegexGroups(ti.Text) + 1)
			}
		}
	}
	return nil
}

func countWildcards(s string) uint16 {
	var n uint16
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*', '?':
			n++
		}
	}
	return n
}

func countRegexGroups(s string) uint16 {
	var n uint16
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			if i+2 < len(s) && s[i+1] == '?' {
				continue
			}
			n++
		}
	}
	return n
}

func (p *Parser) parseHeaderTest(ti lexer.TokenInfo) (testNode, error) {
	t := interp.TestHeader{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.indexTag(*tag, &t.Index, &t.Last); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.mimeTag(*tag, &t.Mime, &t.AnyChild); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("header test argument")
	}
	var err error
	if t.Headers, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	if t.Last && t.Index == 0 {
		return testNode{}, ti.Invalid(":last requires :index")
	}
	return leaf(t), nil
}

func (p *Parser) parseAddressTest(ti lexer.TokenInfo) (testNode, error) {
	t := interp.TestAddress{Matcher: interp.NewMatcher(), AddressPart: interp.AddressPartAll}
	partCount := 0
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.addressPartTag(*tag, &t.AddressPart); err != nil {
			return testNode{}, err
		} else if ok {
			partCount++
			continue
		}
		if ok, err := p.indexTag(*tag, &t.Index, &t.Last); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.mimeTag(*tag, &t.Mime, &t.AnyChild); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("address test argument")
	}
	if partCount > 1 {
		return testNode{}, ti.Invalid("multiple address-parts are not allowed")
	}
	var err error
	if t.Headers, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseEnvelopeTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapEnvelope, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestEnvelope{Matcher: interp.NewMatcher(), AddressPart: interp.AddressPartAll}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.addressPartTag(*tag, &t.AddressPart); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("envelope test argument")
	}
	fields, err := p.tok.ParseStrings(true)
	if err != nil {
		return testNode{}, err
	}
	for _, field := range fields {
		switch strings.ToLower(field.Text) {
		case "from", "to", "auth":
		case "notify", "orcpt", "ret", "envid":
			if err := p.require(interp.CapEnvelopeDsn, field); err != nil {
				return testNode{}, err
			}
		case "bytimeabsolute", "bytimerelative", "bymode", "bytrace":
			if err := p.require(interp.CapEnvelopeDeliverBy, field); err != nil {
				return testNode{}, err
			}
		}
		t.Fields = append(t.Fields, p.compileString(field.Text))
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseExistsTest(ti lexer.TokenInfo) (testNode, error) {
	t := interp.TestExists{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.mimeTag(*tag, &t.Mime, &t.AnyChild); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("exists test argument")
	}
	var err error
	if t.Headers, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseSizeTest(ti lexer.TokenInfo) (testNode, error) {
	t := interp.TestSize{}
	var over, under bool
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordOver:
			over = true
		case lexer.WordUnder:
			under = true
		default:
			return testNode{}, tag.Expected("':over' or ':under'")
		}
	}
	if over == under {
		return testNode{}, ti.Invalid("size: either :under or :over is required")
	}
	t.Over = over
	num, err := p.tok.UnwrapNumber()
	if err != nil {
		return testNode{}, err
	}
	t.Limit = num.Num
	return leaf(t), nil
}

func (p *Parser) parseStringTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapVariables, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestString{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("string test argument")
	}
	var err error
	if t.Sources, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseBodyTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapBody, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestBody{Matcher: interp.NewMatcher(), Transform: interp.BodyText}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		switch tag.Word {
		case lexer.WordRaw:
			t.Transform = interp.BodyRaw
		case lexer.WordText:
			t.Transform = interp.BodyText
		case lexer.WordContent:
			t.Transform = interp.BodyContent
			var err error
			if t.ContentTypes, err = p.stringListArg(true); err != nil {
				return testNode{}, err
			}
		default:
			return testNode{}, tag.Expected("body test argument")
		}
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseDateTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapDate, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestDate{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if ok, err := p.indexTag(*tag, &t.Index, &t.Last); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		switch tag.Word {
		case lexer.WordZone:
			zone, err := p.stringArg()
			if err != nil {
				return testNode{}, err
			}
			t.Zone = &zone
		case lexer.WordOriginalZone:
			t.OriginalZone = true
		default:
			return testNode{}, tag.Expected("date test argument")
		}
	}
	var err error
	if t.Header, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if t.DatePart, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseCurrentDateTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapDate, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestCurrentDate{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if tag.Word == lexer.WordZone {
			zone, err := p.stringArg()
			if err != nil {
				return testNode{}, err
			}
			t.Zone = &zone
			continue
		}
		return testNode{}, tag.Expected("currentdate test argument")
	}
	var err error
	if t.DatePart, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseDuplicateTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapDuplicate, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestDuplicate{}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		switch tag.Word {
		case lexer.WordHandle:
			s, err := p.stringArg()
			if err != nil {
				return testNode{}, err
			}
			t.Handle = &s
		case lexer.WordHeader:
			s, err := p.stringArg()
			if err != nil {
				return testNode{}, err
			}
			t.Header = &s
		case lexer.WordUniqueId:
			s, err := p.stringArg()
			if err != nil {
				return testNode{}, err
			}
			t.UniqueId = &s
		case lexer.WordSeconds:
			num, err := p.tok.UnwrapNumber()
			if err != nil {
				return testNode{}, err
			}
			t.Seconds = num.Num
		case lexer.WordLast:
			t.Last = true
		default:
			return testNode{}, tag.Expected("duplicate test argument")
		}
	}
	if t.Header != nil && t.UniqueId != nil {
		return testNode{}, ti.Invalid("duplicate: :header and :uniqueid are mutually exclusive")
	}
	return leaf(t), nil
}

func (p *Parser) parseSpamTestTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapSpamTest, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestSpamTest{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		if tag.Word == lexer.WordPercent {
			if err := p.require(interp.CapSpamTestPlus, *tag); err != nil {
				return testNode{}, err
			}
			t.Percent = true
			continue
		}
		return testNode{}, tag.Expected("spamtest argument")
	}
	var err error
	if t.Value, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseVirusTestTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapVirusTest, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestVirusTest{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("virustest argument")
	}
	var err error
	if t.Value, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseEnvironmentTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapEnvironment, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestEnvironment{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("environment test argument")
	}
	var err error
	if t.Name, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseIhaveTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapIhave, ti); err != nil {
		return testNode{}, err
	}
	items, err := p.tok.ParseStrings(true)
	if err != nil {
		return testNode{}, err
	}
	t := interp.TestIhave{}
	for _, item := range items {
		t.Capabilities = append(t.Capabilities, interp.ParseCapability(item.Text))
	}
	return leaf(t), nil
}

func (p *Parser) parseHasFlagTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapImap4Flags, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestHasFlag{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("hasflag test argument")
	}
	first, err := p.stringListArg(true)
	if err != nil {
		return testNode{}, err
	}
	next, err := p.tok.Peek()
	if err != nil {
		return testNode{}, err
	}
	if next.Token == lexer.TokenString || next.Token == lexer.TokenBracketOpen {
		// Two positional lists: variables then keys.
		if err := p.require(interp.CapVariables, ti); err != nil {
			return testNode{}, err
		}
		t.Variables = first
		if err := p.keyList(&t.Matcher); err != nil {
			return testNode{}, err
		}
	} else {
		t.Matcher.Keys = first
	}
	return leaf(t), nil
}

func (p *Parser) parseMailboxExistsTest(ti lexer.TokenInfo, specialUse bool) (testNode, error) {
	cap := interp.CapMailbox
	if specialUse {
		cap = interp.CapSpecialUse
	}
	if err := p.require(cap, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestMailboxExists{SpecialUse: specialUse}
	first, err := p.stringListArg(true)
	if err != nil {
		return testNode{}, err
	}
	if specialUse {
		// specialuse_exists [<mailbox: string>] <special-use-attrs: list>
		next, perr := p.tok.Peek()
		if perr != nil {
			return testNode{}, perr
		}
		if next.Token == lexer.TokenString || next.Token == lexer.TokenBracketOpen {
			if t.Mailboxes, err = p.stringListArg(true); err != nil {
				return testNode{}, err
			}
			return leaf(t), nil
		}
	}
	t.Mailboxes = first
	return leaf(t), nil
}

func (p *Parser) parseMetadataTest(ti lexer.TokenInfo, server, existsOnly bool) (testNode, error) {
	cap := interp.CapMboxMetadata
	if server {
		cap = interp.CapServerMetadata
	}
	if err := p.require(cap, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestMetadata{Matcher: interp.NewMatcher(), ExistsOnly: existsOnly}
	if !existsOnly {
		for {
			tag, err := p.nextTag()
			if err != nil {
				return testNode{}, err
			}
			if tag == nil {
				break
			}
			if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
				return testNode{}, err
			} else if ok {
				continue
			}
			return testNode{}, tag.Expected("metadata test argument")
		}
	}
	if !server {
		mbx, err := p.stringArg()
		if err != nil {
			return testNode{}, err
		}
		t.Mailbox = &mbx
	}
	if existsOnly {
		var err error
		if t.Annotations, err = p.stringListArg(true); err != nil {
			return testNode{}, err
		}
		return leaf(t), nil
	}
	ann, err := p.stringArg()
	if err != nil {
		return testNode{}, err
	}
	t.Annotations = []interp.StringItem{ann}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseValidExtListTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapExtLists, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestValidExtList{}
	var err error
	if t.Lists, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseValidNotifyMethodTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapEnotify, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestValidNotifyMethod{}
	var err error
	if t.Methods, err = p.stringListArg(true); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}

func (p *Parser) parseNotifyMethodCapabilityTest(ti lexer.TokenInfo) (testNode, error) {
	if err := p.require(interp.CapEnotify, ti); err != nil {
		return testNode{}, err
	}
	t := interp.TestNotifyMethodCapability{Matcher: interp.NewMatcher()}
	for {
		tag, err := p.nextTag()
		if err != nil {
			return testNode{}, err
		}
		if tag == nil {
			break
		}
		if ok, err := p.matcherTag(*tag, &t.Matcher); err != nil {
			return testNode{}, err
		} else if ok {
			continue
		}
		return testNode{}, tag.Expected("notify_method_capability argument")
	}
	var err error
	if t.URI, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if t.Name, err = p.stringArg(); err != nil {
		return testNode{}, err
	}
	if err := p.keyList(&t.Matcher); err != nil {
		return testNode{}, err
	}
	return leaf(t), nil
}
