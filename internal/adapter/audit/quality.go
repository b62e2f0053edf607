package audit

import (
	"context"
	"fmt"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/interpret"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

const qualityTask = `## Task: Code Quality Assessment`

const qualityInstructions = `### Instructions:
- Focus on maintainability risks introduced by the diff.
- Cite exact diff lines as evidence.
- Describe failure scenario and impact.
- Provide a concrete fix. Include a minimal unified diff patch if possible.
- Include a minimal test snippet if possible.
- Do not include chain-of-thought.

Output JSON only:
` + "```json" + `
{
  "findings": [
    {
      "type": "HIGH_COMPLEXITY",
      "severity": "medium",
      "line": 25,
      "title": "Function too complex",
      "description": "Function has 5 levels of nesting",
      "evidence": ["+    if a: ..."],
      "scenario": "Future changes are likely to introduce regressions.",
      "impact": "Harder reviews and higher bug rate.",
      "suggestion": "Extract nested logic into helper functions",
      "patch": "diff --git a/module.py b/module.py\n@@ ...\n",
      "tests": ["def test_helper_handles_edge_case():\n    ..."]
    }
  ],
  "score": 80
}
` + "```"

// QualityStrategy assesses maintainability of a diff.
type QualityStrategy struct {
	ai port.AIProvider
}

func NewQualityStrategy(ai port.AIProvider) *QualityStrategy {
	return &QualityStrategy{ai: ai}
}

func (s *QualityStrategy) Name() domain.AuditType { return domain.AuditQuality }
func (s *QualityStrategy) Description() string {
	return "Assess code structure, naming, and complexity"
}

func (s *QualityStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	response, err := s.ai.Chat(ctx, auditorSystemPrompt, buildPrompt(qualityTask, qualityInstructions, diff), depth)
	if err != nil {
		return nil, fmt.Errorf("quality audit: %w", err)
	}
	outcome := interpret.Outcome(response)
	outcome.ModelUsed = s.ai.ModelFor(depth)
	return outcome, nil
}
