package sleuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultAnalyzerContent is the number of bytes of a document passed to the
// analyzer model.
const DefaultAnalyzerContent = 24 * 1024

// LLMAnalyzer asks a language model whether a document answers the question.
type LLMAnalyzer struct {
	llm        LLMProvider
	maxContent int
	logger     *slog.Logger
}

// NewLLMAnalyzer wraps llm. maxContent <= 0 selects DefaultAnalyzerContent.
func NewLLMAnalyzer(llm LLMProvider, maxContent int, logger *slog.Logger) *LLMAnalyzer {
	if maxContent <= 0 {
		maxContent = DefaultAnalyzerContent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMAnalyzer{llm: llm, maxContent: maxContent, logger: logger.With("component", "analyzer")}
}

// Analyze implements ContentAnalyzer. A reply without a VERDICT line is
// treated as INCONCLUSIVE.
func (a *LLMAnalyzer) Analyze(ctx context.Context, content, question string) (Verdict, error) {
	if a.llm == nil {
		return Verdict{}, errors.New("analyzer model is not configured")
	}
	if strings.TrimSpace(content) == "" {
		return Discard("empty document"), nil
	}
	content = TruncateUTF8(content, a.maxContent)

	resp, err := a.llm.Generate(ctx, analyzerSystemPrompt, buildAnalyzerUserPrompt(content, question))
	if err != nil {
		return Verdict{}, fmt.Errorf("analyzer: %w", err)
	}
	raw := getContent(resp, a.logger, "analyzer")
	a.logger.DebugContext(ctx, "analyzer response", "text", raw)

	v, ok := ParseVerdict(raw)
	if !ok {
		return Inconclusive(), nil
	}
	return v, nil
}

// PatternAnalyzer finds answers with a regular expression. The first
// submatch, or the whole match when the pattern has no groups, is the
// answer. Documents that do not mention keyword are discarded.
type PatternAnalyzer struct {
	pattern *regexp.Regexp
	keyword string
}

// NewPatternAnalyzer compiles pattern. keyword may be empty.
func NewPatternAnalyzer(pattern, keyword string) (*PatternAnalyzer, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return &PatternAnalyzer{pattern: re, keyword: strings.ToLower(keyword)}, nil
}

// Analyze implements ContentAnalyzer.
func (p *PatternAnalyzer) Analyze(_ context.Context, content, _ string) (Verdict, error) {
	if p.keyword != "" && !strings.Contains(strings.ToLower(content), p.keyword) {
		return Discard(fmt.Sprintf("document does not mention %q", p.keyword)), nil
	}
	m := p.pattern.FindStringSubmatch(content)
	switch {
	case m == nil:
		return Inconclusive(), nil
	case len(m) > 1:
		return AnswerFound(m[1]), nil
	default:
		return AnswerFound(m[0]), nil
	}
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune.
func TruncateUTF8(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
