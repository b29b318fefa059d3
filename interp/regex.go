package interp

import (
	"rsc.io/binaryregexp"
)

// matchRegex evaluates a :regex key against a value. Patterns are compiled
// per use with binaryregexp so matching is byte-exact like the octet
// comparator; a failed compile is a runtime error, not a false result.
func (c *Context) matchRegex(pattern, value string) (bool, []string, error) {
	if max := c.runtime.Limits.MaxRegexLen; max > 0 && len(pattern) > max {
		return false, nil, runtimeErr(IllegalAction, "regex pattern too long")
	}
	re, err := binaryregexp.Compile(pattern)
	if err != nil {
		return false, nil, runtimeErr(IllegalAction, "regex: "+err.Error())
	}
	matches := re.FindStringSubmatch(value)
	if matches == nil {
		return false, nil, nil
	}
	return true, matches, nil
}
