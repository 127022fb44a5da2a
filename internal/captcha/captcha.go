// Package captcha implements the arithmetic challenge shown on the report
// form. It only slows down naive bots; the operands travel with the form.
package captcha

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Operand ranges of an issued challenge
const (
	MinA, MaxA = 1, 15
	MinB, MaxB = 1, 10
)

// Challenge is a pair of operands whose sum is the expected answer
type Challenge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Answer returns the expected answer
func (c Challenge) Answer() int {
	return c.A + c.B
}

// Issue returns a fresh challenge
func Issue() Challenge {
	return Challenge{
		A: MinA + rand.IntN(MaxA-MinA+1), //nolint:gosec // not a secret
		B: MinB + rand.IntN(MaxB-MinB+1), //nolint:gosec // not a secret
	}
}

// Verify checks the submitted answer against the submitted operands. Values
// are read leniently: leading digits count and garbage reads as zero. A
// missing answer never matches.
func Verify(val1, val2, ans string) bool {
	answer := -1
	if strings.TrimSpace(ans) != "" {
		answer = parseLeadingInt(ans)
	}
	return answer == parseLeadingInt(val1)+parseLeadingInt(val2)
}

// parseLeadingInt reads an optional sign and the leading decimal digits of
// s, returning 0 when there are none
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
