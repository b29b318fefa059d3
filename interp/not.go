package interp

// Not folds a negation into a test node. The parser uses this to push not
// prefixes down to the leaves so that short-circuit jump compilation never
// needs a dedicated negation instruction.
func Not(t TestExpr) TestExpr {
	switch t := t.(type) {
	case TestBool:
		t.IsNot = !t.IsNot
		return t
	case TestHeader:
		t.IsNot = !t.IsNot
		return t
	case TestAddress:
		t.IsNot = !t.IsNot
		return t
	case TestEnvelope:
		t.IsNot = !t.IsNot
		return t
	case TestExists:
		t.IsNot = !t.IsNot
		return t
	case TestSize:
		t.IsNot = !t.IsNot
		return t
	case TestString:
		t.IsNot = !t.IsNot
		return t
	case TestBody:
		t.IsNot = !t.IsNot
		return t
	case TestDate:
		t.IsNot = !t.IsNot
		return t
	case TestCurrentDate:
		t.IsNot = !t.IsNot
		return t
	case TestDuplicate:
		t.IsNot = !t.IsNot
		return t
	case TestSpamTest:
		t.IsNot = !t.IsNot
		return t
	case TestVirusTest:
		t.IsNot = !t.IsNot
		return t
	case TestEnvironment:
		t.IsNot = !t.IsNot
		return t
	case TestIhave:
		t.IsNot = !t.IsNot
		return t
	case TestHasFlag:
		t.IsNot = !t.IsNot
		return t
	case TestMailboxExists:
		t.IsNot = !t.IsNot
		return t
	case TestMetadata:
		t.IsNot = !t.IsNot
		return t
	case TestValidExtList:
		t.IsNot = !t.IsNot
		return t
	case TestValidNotifyMethod:
		t.IsNot = !t.IsNot
		return t
	case TestNotifyMethodCapability:
		t.IsNot = !t.IsNot
		return t
	}
	return t
}
