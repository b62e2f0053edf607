package audit

import (
	"context"
	"fmt"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/interpret"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

const bestPracticesTask = `## Task: Best Practices Review`

const bestPracticesInstructions = `### Check for:
1. **Error Handling**: Try/catch, error messages
2. **Documentation**: Comments, docstrings
3. **Type Safety**: Type hints, validation
4. **Logging**: Appropriate log levels
5. **Testing**: Testable code structure
6. **Do not include chain-of-thought**

Output JSON only:
` + "```json" + `
{
  "findings": [
    {
      "type": "MISSING_ERROR_HANDLING",
      "severity": "medium",
      "line": 15,
      "title": "No error handling for API call",
      "description": "External API call without try/catch",
      "evidence": ["+    response = client.fetch(url)"],
      "scenario": "Transient API failures crash the request handler.",
      "impact": "User-facing 500 errors.",
      "suggestion": "Add try/catch with proper error handling",
      "patch": "diff --git a/service.py b/service.py\n@@ ...\n",
      "tests": ["def test_api_failure_returns_fallback():\n    ..."]
    }
  ],
  "score": 85
}
` + "```"

// BestPracticesStrategy reviews error handling, docs, and testing patterns.
type BestPracticesStrategy struct {
	ai port.AIProvider
}

func NewBestPracticesStrategy(ai port.AIProvider) *BestPracticesStrategy {
	return &BestPracticesStrategy{ai: ai}
}

func (s *BestPracticesStrategy) Name() domain.AuditType { return domain.AuditBestPractices }
func (s *BestPracticesStrategy) Description() string {
	return "Check error handling, documentation, and testing patterns"
}

func (s *BestPracticesStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	response, err := s.ai.Chat(ctx, auditorSystemPrompt, buildPrompt(bestPracticesTask, bestPracticesInstructions, diff), depth)
	if err != nil {
		return nil, fmt.Errorf("best practices audit: %w", err)
	}
	outcome := interpret.Outcome(response)
	outcome.ModelUsed = s.ai.ModelFor(depth)
	return outcome, nil
}
