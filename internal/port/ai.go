package port

import (
	"context"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

// AIProvider abstracts the inference backend. Implementations target any
// OpenAI-compatible chat completions API.
type AIProvider interface {
	// ModelFor returns the model identifier serving the given depth.
	ModelFor(depth domain.Depth) string

	// Chat sends a system and user prompt at the given depth and returns the
	// raw response text. The text is untrusted; callers must tolerate
	// malformed output. Failures are reported as *ProviderError.
	Chat(ctx context.Context, systemPrompt, userPrompt string, depth domain.Depth) (string, error)
}
