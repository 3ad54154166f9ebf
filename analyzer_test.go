package sleuth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMAnalyzerVerdicts(t *testing.T) {
	tests := []struct {
		reply string
		want  Verdict
	}{
		{reply: "VERDICT: ANSWER_FOUND\nVALUE: 1.0", want: AnswerFound("1.0")},
		{reply: "<think>hmm</think>VERDICT: DISCARD\nREASON: pricing page", want: Discard("pricing page")},
		{reply: "verdict: inconclusive", want: Inconclusive()},
		{reply: "The page is about something else.", want: Inconclusive()},
	}
	for _, tt := range tests {
		llm := &scriptedLLM{replies: []string{tt.reply}}
		a := NewLLMAnalyzer(llm, 0, nil)
		got, err := a.Analyze(context.Background(), "some document", "What is the default?")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.reply)
		assert.Contains(t, llm.prompts[0], "Question:\nWhat is the default?")
		assert.Contains(t, llm.prompts[0], "Document:\nsome document")
	}
}

func TestLLMAnalyzerTruncatesAndSkipsEmpty(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"VERDICT: INCONCLUSIVE"}}
	a := NewLLMAnalyzer(llm, 10, nil)

	v, err := a.Analyze(context.Background(), "  \n ", "q")
	require.NoError(t, err)
	assert.Equal(t, VerdictDiscard, v.Kind)
	assert.Empty(t, llm.prompts, "empty documents never reach the model")

	_, err = a.Analyze(context.Background(), strings.Repeat("x", 100), "q")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "Document:\n"+strings.Repeat("x", 10)+"\n")
	assert.NotContains(t, llm.prompts[0], strings.Repeat("x", 11))
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", TruncateUTF8("abc", 10))
	assert.Equal(t, "ab", TruncateUTF8("abc", 2))
	assert.Equal(t, "a", TruncateUTF8("aé", 2), "never splits a rune")
	assert.Equal(t, "aé", TruncateUTF8("aéb", 3))
	assert.Empty(t, TruncateUTF8("日本", 2))
	assert.Empty(t, TruncateUTF8("abc", -1))

	llm := &scriptedLLM{replies: []string{"VERDICT: INCONCLUSIVE"}}
	_, err := NewLLMAnalyzer(llm, 4, nil).Analyze(context.Background(), "日本語", "q")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "Document:\n日\n")
}

func TestLLMAnalyzerErrors(t *testing.T) {
	_, err := NewLLMAnalyzer(nil, 0, nil).Analyze(context.Background(), "doc", "q")
	assert.Error(t, err)

	_, err = NewLLMAnalyzer(&scriptedLLM{}, 0, nil).Analyze(context.Background(), "doc", "q")
	assert.ErrorContains(t, err, "analyzer")
}

func TestPatternAnalyzer(t *testing.T) {
	a, err := NewPatternAnalyzer(`size defaults to (\w+)`, "thumbnail")
	require.NoError(t, err)

	v, _ := a.Analyze(context.Background(), "vips_thumbnail: size defaults to VIPS_SIZE_BOTH", "")
	assert.Equal(t, AnswerFound("VIPS_SIZE_BOTH"), v)

	v, _ = a.Analyze(context.Background(), "an unrelated page", "")
	assert.Equal(t, VerdictDiscard, v.Kind)

	v, _ = a.Analyze(context.Background(), "thumbnail docs without the fact", "")
	assert.Equal(t, Inconclusive(), v)

	whole, err := NewPatternAnalyzer(`VIPS_SIZE_\w+`, "")
	require.NoError(t, err)
	v, _ = whole.Analyze(context.Background(), "use VIPS_SIZE_DOWN", "")
	assert.Equal(t, "VIPS_SIZE_DOWN", v.Value)

	_, err = NewPatternAnalyzer(`(`, "")
	assert.Error(t, err)
}
