package sleuth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		raw  string
		want Verdict
		ok   bool
	}{
		{raw: "VERDICT: ANSWER_FOUND\nVALUE: 1.0", want: AnswerFound("1.0"), ok: true},
		{raw: "Verdict - answer found\nAnswer: VIPS_SIZE_BOTH ", want: AnswerFound("VIPS_SIZE_BOTH"), ok: true},
		{raw: "VERDICT: ANSWER_FOUND", want: Inconclusive(), ok: true},
		{raw: "VERDICT: DISCARD", want: Discard(""), ok: true},
		{raw: "<think>VERDICT: ANSWER_FOUND\nVALUE: 2</think>\nVERDICT: INCONCLUSIVE", want: Inconclusive(), ok: true},
		{raw: "VERDICT: ANSWER_FOUND\nVALUE:\nREASON: the page lists no default", want: Inconclusive(), ok: true},
		{raw: "VERDICT:\nDISCARD", ok: false},
		{raw: "VERDICT: MAYBE", ok: false},
		{raw: "the default is 1.0", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseVerdict(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "ANSWER_FOUND(1.0)", AnswerFound(" 1.0 ").String())
	assert.Equal(t, "DISCARD(off topic)", Discard("off topic").String())
	assert.Equal(t, "DISCARD", Discard("").String())
	assert.Equal(t, "INCONCLUSIVE", Verdict{}.String())
	assert.True(t, AnswerFound("x").Found())
	assert.False(t, Inconclusive().Found())
}

func TestToolResultRender(t *testing.T) {
	v := Discard("pricing page")
	assert.Equal(t, "NOT FOUND: no results\nAnalysis: DISCARD(pricing page)",
		ToolResult{Status: ToolNegative, Output: "no results", Verdict: &v}.Render())
	assert.Equal(t, "FAILED: tool x: timeout: timeout",
		ToolResult{Status: ToolFailed, Err: &ToolError{Tool: "x", Kind: ToolErrorTimeout, Err: ErrTimeout}}.Render())
	assert.Equal(t, "https://a.example", ToolResult{Status: ToolSuccess, Output: "https://a.example\n"}.Render())
}
