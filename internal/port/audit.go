package port

import (
	"context"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

// AuditStrategy defines one pluggable risk lens (Strategy Pattern).
// Each strategy renders its own prompt and interprets the provider response.
type AuditStrategy interface {
	// Name returns the audit type this strategy implements.
	Name() domain.AuditType

	// Description returns a human-readable description of the lens.
	Description() string

	// Audit analyzes one diff payload and returns its outcome. A degraded
	// (unparseable) response is data, not an error; only provider failures
	// are returned as errors.
	Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error)
}

// AuditEngine holds the registered strategies.
type AuditEngine struct {
	strategies map[domain.AuditType]AuditStrategy
}

// NewAuditEngine creates an engine with the given strategies.
func NewAuditEngine(strategies ...AuditStrategy) *AuditEngine {
	m := make(map[domain.AuditType]AuditStrategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &AuditEngine{strategies: m}
}

// Strategy returns the strategy for the given audit type.
func (e *AuditEngine) Strategy(t domain.AuditType) (AuditStrategy, error) {
	s, ok := e.strategies[t]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return s, nil
}

// Run executes the strategy registered for the given audit type.
func (e *AuditEngine) Run(ctx context.Context, t domain.AuditType, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	s, err := e.Strategy(t)
	if err != nil {
		return nil, err
	}
	return s.Audit(ctx, diff, depth)
}

// Available returns the registered audit types in canonical order.
func (e *AuditEngine) Available() []domain.AuditType {
	types := make([]domain.AuditType, 0, len(e.strategies))
	for _, t := range domain.AllAuditTypes {
		if _, ok := e.strategies[t]; ok {
			types = append(types, t)
		}
	}
	return types
}
