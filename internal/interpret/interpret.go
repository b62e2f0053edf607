// Package interpret extracts structured audit results from untrusted model
// output. Malformed output is an expected condition here: every path returns
// a usable value, never an error.
package interpret

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

// previewLen bounds how much raw text is echoed back in parse errors.
const previewLen = 300

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// flexInt tolerates numbers the model emits as strings or floats.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.value = int(n)
	f.set = true
	return nil
}

// rawFinding mirrors the JSON contract the prompts request from the model.
type rawFinding struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Line        flexInt  `json:"line"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
	Scenario    string   `json:"scenario"`
	Impact      string   `json:"impact"`
	Suggestion  string   `json:"suggestion"`
	Patch       string   `json:"patch"`
	Tests       []string `json:"tests"`
}

type rawOutcome struct {
	Score    *flexInt     `json:"score"`
	Findings []rawFinding `json:"findings"`
}

// Outcome interprets one audit response. On any parse failure it returns a
// degraded outcome with ParseSuccess=false and a non-empty ParseError; it
// never raises, so a single malformed response cannot sink a multi-audit
// request.
func Outcome(raw string) *domain.AuditOutcome {
	payload, ok := extractJSON(raw)
	if !ok {
		return degraded(raw, "no JSON object found in model response")
	}

	var ro rawOutcome
	if err := json.Unmarshal([]byte(payload), &ro); err != nil {
		return degraded(raw, fmt.Sprintf("invalid JSON: %v", err))
	}

	outcome := &domain.AuditOutcome{
		Findings:     make([]domain.Finding, 0, len(ro.Findings)),
		ParseSuccess: true,
	}
	if ro.Score != nil && ro.Score.set {
		score := clampScore(ro.Score.value)
		outcome.Score = &score
	}
	for _, rf := range ro.Findings {
		outcome.Findings = append(outcome.Findings, toFinding(rf))
	}
	return outcome
}

// SynthesisResult interprets the synthesis response. The second return is
// false when the response could not be parsed and the caller should fall
// back to a templated summary.
func SynthesisResult(raw string) (*domain.Synthesis, bool) {
	payload, ok := extractJSON(raw)
	if !ok {
		return nil, false
	}
	var syn domain.Synthesis
	if err := json.Unmarshal([]byte(payload), &syn); err != nil {
		return nil, false
	}
	switch syn.Verdict {
	case domain.VerdictApprove, domain.VerdictApproveWithChanges, domain.VerdictRequestChanges, domain.VerdictBlock:
	default:
		syn.Verdict = domain.VerdictApproveWithChanges
	}
	return &syn, true
}

// extractJSON locates the most plausible JSON object in raw text: a fenced
// code block first, then the text as-is, then the largest brace-delimited
// substring.
func extractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	// HTML means an upstream error page leaked through, not model output.
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return "", false
	}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil && json.Valid([]byte(m[1])) {
		return m[1], true
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func degraded(raw, reason string) *domain.AuditOutcome {
	preview := strings.TrimSpace(raw)
	if len(preview) > previewLen {
		// Back off to a rune boundary so the preview stays valid UTF-8.
		cut := previewLen
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	msg := reason
	if preview != "" {
		msg = fmt.Sprintf("%s; response begins: %s", reason, preview)
	}
	return &domain.AuditOutcome{
		Findings:     []domain.Finding{},
		ParseSuccess: false,
		ParseError:   msg,
	}
}

func toFinding(rf rawFinding) domain.Finding {
	f := domain.Finding{
		Type:        rf.Type,
		Severity:    normalizeSeverity(rf.Severity),
		Title:       rf.Title,
		Description: rf.Description,
		Evidence:    rf.Evidence,
		Scenario:    rf.Scenario,
		Impact:      rf.Impact,
		Suggestion:  rf.Suggestion,
		Patch:       rf.Patch,
		Tests:       rf.Tests,
	}
	if rf.Line.set {
		line := rf.Line.value
		f.Line = &line
	}
	return f
}

func normalizeSeverity(s string) domain.Severity {
	switch domain.Severity(strings.ToLower(strings.TrimSpace(s))) {
	case domain.SeverityCritical:
		return domain.SeverityCritical
	case domain.SeverityHigh:
		return domain.SeverityHigh
	case domain.SeverityMedium:
		return domain.SeverityMedium
	case domain.SeverityLow:
		return domain.SeverityLow
	default:
		return domain.SeverityInfo
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
