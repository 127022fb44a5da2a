package captcha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueRanges(t *testing.T) {
	t.Parallel()

	for range 500 {
		c := Issue()
		assert.GreaterOrEqual(t, c.A, MinA)
		assert.LessOrEqual(t, c.A, MaxA)
		assert.GreaterOrEqual(t, c.B, MinB)
		assert.LessOrEqual(t, c.B, MaxB)
		assert.Equal(t, c.A+c.B, c.Answer())
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		val1, val2, ans string
		want            bool
	}{
		{"correct", "7", "5", "12", true},
		{"wrong", "7", "5", "13", false},
		{"padded answer", "7", "5", " 12 ", true},
		{"missing answer", "7", "5", "", false},
		{"missing answer with zero sum", "", "", "", false},
		{"garbage operands read as zero", "x", "y", "0", true},
		{"leading digits", "7abc", "5", "12", true},
		{"negative answer", "1", "1", "-2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Verify(tt.val1, tt.val2, tt.ans))
		})
	}
}
