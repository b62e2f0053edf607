package audit

import (
	"context"
	"fmt"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/interpret"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

const performanceTask = `## Task: Performance Impact Analysis`

const performanceInstructions = `### Instructions:
- Focus on performance regressions introduced by the diff.
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
      "type": "N_PLUS_ONE_QUERY",
      "severity": "high",
      "line": 30,
      "title": "N+1 query problem",
      "description": "Database query inside loop",
      "evidence": ["+    user = db.get_user(id)"],
      "scenario": "Large lists will trigger hundreds of queries.",
      "impact": "Slow page loads and timeouts.",
      "suggestion": "Use eager loading or batch query",
      "patch": "diff --git a/data.py b/data.py\n@@ ...\n",
      "tests": ["def test_query_count_is_bounded():\n    ..."]
    }
  ],
  "score": 75
}
` + "```"

// PerformanceStrategy looks for regressions in algorithmic and resource cost.
type PerformanceStrategy struct {
	ai port.AIProvider
}

func NewPerformanceStrategy(ai port.AIProvider) *PerformanceStrategy {
	return &PerformanceStrategy{ai: ai}
}

func (s *PerformanceStrategy) Name() domain.AuditType { return domain.AuditPerformance }
func (s *PerformanceStrategy) Description() string {
	return "Analyze algorithmic efficiency and resource usage"
}

func (s *PerformanceStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	response, err := s.ai.Chat(ctx, auditorSystemPrompt, buildPrompt(performanceTask, performanceInstructions, diff), depth)
	if err != nil {
		return nil, fmt.Errorf("performance audit: %w", err)
	}
	outcome := interpret.Outcome(response)
	outcome.ModelUsed = s.ai.ModelFor(depth)
	return outcome, nil
}
