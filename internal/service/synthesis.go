package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/interpret"
)

const synthesisSystemPrompt = `You are an expert code auditor. Synthesize audit findings into a
concise executive summary for a reviewer deciding whether to merge a change.
Output only final answers in valid JSON when requested.`

const synthesisInstructions = `### Instructions:
1. Identify the top 3 most critical issues
2. Find patterns across findings
3. Prioritize recommendations
4. Give overall assessment

Output as JSON:
` + "```json" + `
{
  "executive_summary": "Brief overall assessment of code quality",
  "critical_issues": [
    {
      "title": "SQL Injection in user lookup",
      "audit": "security",
      "severity": "critical",
      "action_required": "Immediate fix needed"
    }
  ],
  "recommendations": [
    {
      "priority": 1,
      "action": "Fix SQL injection vulnerability",
      "impact": "high",
      "effort": "low"
    }
  ],
  "verdict": "REQUEST_CHANGES"
}
` + "```" + `

Verdict options: APPROVE, APPROVE_WITH_CHANGES, REQUEST_CHANGES, BLOCK`

const fallbackSummary = "Analysis complete. Review individual audit results."

// synthesize asks the provider for an executive summary across audit types.
// Any failure here degrades to a templated fallback; synthesis problems must
// never fail a request that already has per-type results.
func (o *Orchestrator) synthesize(ctx context.Context, req domain.AuditRequest, byType map[domain.AuditType]*domain.AuditOutcome, overall int) domain.Synthesis {
	prompt := buildSynthesisPrompt(req.Audits, byType)

	response, err := o.ai.Chat(ctx, synthesisSystemPrompt, prompt, req.Depth)
	if err != nil {
		slog.Warn("synthesis call failed, using fallback verdict", "error", err)
		return o.fallbackSynthesis(req.Audits, byType, overall, err.Error())
	}

	syn, ok := interpret.SynthesisResult(response)
	if !ok {
		slog.Warn("synthesis response unparseable, using fallback verdict")
		return o.fallbackSynthesis(req.Audits, byType, overall, "failed to parse synthesis response")
	}
	if syn.CriticalIssues == nil {
		syn.CriticalIssues = []domain.CriticalIssue{}
	}
	if syn.Recommendations == nil {
		syn.Recommendations = []domain.Recommendation{}
	}
	return *syn
}

// buildSynthesisPrompt condenses each audit type to its score, finding
// count, and top findings so the synthesis call stays small.
func buildSynthesisPrompt(order []domain.AuditType, byType map[domain.AuditType]*domain.AuditOutcome) string {
	type condensed struct {
		Score        int              `json:"score"`
		FindingCount int              `json:"finding_count"`
		Findings     []domain.Finding `json:"findings"`
	}

	summary := make(map[domain.AuditType]condensed, len(order))
	for _, t := range order {
		out := byType[t]
		score := neutralScore
		if out.Score != nil {
			score = *out.Score
		}
		top := out.Findings
		if len(top) > 3 {
			top = top[:3]
		}
		summary[t] = condensed{Score: score, FindingCount: len(out.Findings), Findings: top}
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		data = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("## Task: Synthesize Audit Findings\n\n")
	b.WriteString("You have completed multiple audits. Create an executive summary.\n\n")
	b.WriteString("### Audit Results:\n")
	b.Write(data)
	b.WriteString("\n\n")
	b.WriteString(synthesisInstructions)
	return b.String()
}

// fallbackSynthesis derives a verdict from the per-type scores when the
// synthesis call itself fails.
func (o *Orchestrator) fallbackSynthesis(order []domain.AuditType, byType map[domain.AuditType]*domain.AuditOutcome, overall int, reason string) domain.Synthesis {
	return domain.Synthesis{
		ExecutiveSummary: fallbackSummary,
		Verdict:          fallbackVerdict(order, byType, overall),
		CriticalIssues:   extractCriticalIssues(order, byType),
		Recommendations:  []domain.Recommendation{},
		Error:            reason,
	}
}

func fallbackVerdict(order []domain.AuditType, byType map[domain.AuditType]*domain.AuditOutcome, overall int) domain.Verdict {
	hasCritical := false
	highCount := 0
	for _, t := range order {
		for _, f := range byType[t].Findings {
			switch f.Severity {
			case domain.SeverityCritical:
				hasCritical = true
			case domain.SeverityHigh:
				highCount++
			}
		}
	}

	switch {
	case hasCritical || overall < 40:
		return domain.VerdictRequestChanges
	case overall < 80 || highCount >= 3:
		return domain.VerdictApproveWithChanges
	default:
		return domain.VerdictApprove
	}
}

// extractCriticalIssues lifts the worst findings into the fallback summary,
// capped at five.
func extractCriticalIssues(order []domain.AuditType, byType map[domain.AuditType]*domain.AuditOutcome) []domain.CriticalIssue {
	issues := []domain.CriticalIssue{}
	for _, t := range order {
		for _, f := range byType[t].Findings {
			if f.Severity != domain.SeverityCritical && f.Severity != domain.SeverityHigh {
				continue
			}
			title := f.Title
			if title == "" {
				title = f.Type
			}
			if title == "" {
				title = "Issue"
			}
			desc := f.Description
			if len(desc) > 100 {
				desc = desc[:100]
			}
			issues = append(issues, domain.CriticalIssue{
				Title:          fmt.Sprintf("%s: %s", title, desc),
				Audit:          string(t),
				Severity:       string(f.Severity),
				ActionRequired: "Review before merge",
			})
			if len(issues) == 5 {
				return issues
			}
		}
	}
	return issues
}
