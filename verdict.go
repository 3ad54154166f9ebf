package sleuth

import (
	"fmt"
	"regexp"
	"strings"
)

// VerdictKind classifies the outcome of content analysis.
type VerdictKind string

const (
	VerdictAnswerFound  VerdictKind = "ANSWER_FOUND"
	VerdictDiscard      VerdictKind = "DISCARD"
	VerdictInconclusive VerdictKind = "INCONCLUSIVE"
)

// Verdict is the analysis step's judgment of a document.
type Verdict struct {
	Kind   VerdictKind
	Value  string
	Reason string
}

// AnswerFound returns a terminal verdict carrying the discovered value.
func AnswerFound(value string) Verdict {
	return Verdict{Kind: VerdictAnswerFound, Value: strings.TrimSpace(value)}
}

// Discard returns a verdict rejecting the document.
func Discard(reason string) Verdict {
	return Verdict{Kind: VerdictDiscard, Reason: strings.TrimSpace(reason)}
}

// Inconclusive returns a verdict that neither answers nor rejects.
func Inconclusive() Verdict {
	return Verdict{Kind: VerdictInconclusive}
}

// Found reports whether v is ANSWER_FOUND.
func (v Verdict) Found() bool {
	return v.Kind == VerdictAnswerFound
}

func (v Verdict) String() string {
	switch v.Kind {
	case VerdictAnswerFound:
		return fmt.Sprintf("%s(%s)", v.Kind, v.Value)
	case VerdictDiscard:
		if v.Reason != "" {
			return fmt.Sprintf("%s(%s)", v.Kind, v.Reason)
		}
		return string(v.Kind)
	case "":
		return string(VerdictInconclusive)
	default:
		return string(v.Kind)
	}
}

var (
	verdictLineRegex = regexp.MustCompile(`(?im)^[ \t]*verdict[ \t]*[:\-][ \t]*([a-z_ ]+?)[ \t]*$`) //nolint:gochecknoglobals
	valueLineRegex   = regexp.MustCompile(`(?im)^[ \t]*(?:value|answer)[ \t]*[:\-][ \t]*(\S.*)$`)   //nolint:gochecknoglobals
	reasonLineRegex  = regexp.MustCompile(`(?im)^[ \t]*reason[ \t]*[:\-][ \t]*(\S.*)$`)             //nolint:gochecknoglobals
)

// ParseVerdict reads the line protocol used by the LLM-backed analyzer and
// decision-makers:
//
//	VERDICT: ANSWER_FOUND
//	VALUE: 1.0
//
// ok is false when no VERDICT line is present.
func ParseVerdict(raw string) (Verdict, bool) {
	text := StripThinkBlocks(raw)
	m := verdictLineRegex.FindStringSubmatch(text)
	if len(m) != 2 {
		return Verdict{}, false
	}
	kind := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(m[1]), " ", "_"))
	switch VerdictKind(kind) {
	case VerdictAnswerFound:
		if vm := valueLineRegex.FindStringSubmatch(text); len(vm) == 2 {
			return AnswerFound(vm[1]), true
		}
		// A verdict without a value cannot end the run.
		return Inconclusive(), true
	case VerdictDiscard:
		reason := ""
		if rm := reasonLineRegex.FindStringSubmatch(text); len(rm) == 2 {
			reason = rm[1]
		}
		return Discard(reason), true
	case VerdictInconclusive:
		return Inconclusive(), true
	default:
		return Verdict{}, false
	}
}
