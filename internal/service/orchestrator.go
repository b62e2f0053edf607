// Package service contains the audit orchestration engine: validation,
// caching, fan-out across audit strategies, score synthesis.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arturoeanton/go-diff-auditor/internal/cache"
	"github.com/arturoeanton/go-diff-auditor/internal/diff"
	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

// neutralScore is reported when no audit type produced a usable score.
const neutralScore = 50

// defaultRunTimeout bounds the shared audit computation when no timeout is
// configured.
const defaultRunTimeout = 5 * time.Minute

// DefaultWeights is the per-audit-type weight table for the overall score.
var DefaultWeights = map[domain.AuditType]float64{
	domain.AuditSecurity:      0.40,
	domain.AuditQuality:       0.25,
	domain.AuditPerformance:   0.20,
	domain.AuditBestPractices: 0.15,
}

// Config tunes the orchestrator. Zero-value fields fall back to defaults.
type Config struct {
	Limits     diff.Limits
	ChunkChars int
	Weights    map[domain.AuditType]float64
	// Timeout bounds one whole audit computation end to end, independent of
	// any single caller's context.
	Timeout time.Duration
}

// Orchestrator coordinates one audit request end to end: it validates input,
// consults the cache, fans out one task per requested audit type, merges
// per-type outcomes, and synthesizes the verdict. A failure in one audit
// type never aborts the others.
type Orchestrator struct {
	engine  *port.AuditEngine
	ai      port.AIProvider
	results *cache.Cache
	cfg     Config
	flight  singleflight.Group
}

// NewOrchestrator wires the engine, synthesis provider, and result cache.
func NewOrchestrator(engine *port.AuditEngine, ai port.AIProvider, results *cache.Cache, cfg Config) *Orchestrator {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}
	return &Orchestrator{engine: engine, ai: ai, results: results, cfg: cfg}
}

// Weights returns the configured per-audit-type weight table.
func (o *Orchestrator) Weights() map[domain.AuditType]float64 { return o.cfg.Weights }

// Run executes one audit request. Concurrent requests sharing a fingerprint
// are coalesced so only the first pays for the provider calls.
func (o *Orchestrator) Run(ctx context.Context, req domain.AuditRequest) (*domain.AuditResult, error) {
	if err := o.normalize(&req); err != nil {
		return nil, err
	}

	fp := req.Fingerprint()
	if cached, ok := o.results.Get(fp); ok {
		slog.Info("cache hit for audit request", "fingerprint", fp[:12])
		return cached, nil
	}

	// The shared computation runs detached from the caller with its own
	// deadline: a leader that disconnects must not cancel work that
	// coalesced followers and the cache will consume. Each caller still
	// honors its own context while waiting.
	ch := o.flight.DoChan(fp, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.Timeout)
		defer cancel()
		return o.runUncached(runCtx, req, fp)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Info("coalesced duplicate audit request", "fingerprint", fp[:12])
		}
		return res.Val.(*domain.AuditResult), nil
	}
}

func (o *Orchestrator) normalize(req *domain.AuditRequest) error {
	if len(req.Audits) == 0 {
		req.Audits = append([]domain.AuditType(nil), domain.AllAuditTypes...)
	}
	seen := make(map[domain.AuditType]bool, len(req.Audits))
	for _, t := range req.Audits {
		if !domain.ValidAuditType(t) {
			return fmt.Errorf("%w: %q", port.ErrUnknownAuditType, t)
		}
		if seen[t] {
			return fmt.Errorf("%w: duplicate %q", port.ErrUnknownAuditType, t)
		}
		seen[t] = true
	}
	if req.Depth == "" {
		req.Depth = domain.DepthStandard
	}
	if !domain.ValidDepth(req.Depth) {
		return fmt.Errorf("%w: %q", port.ErrUnknownDepth, req.Depth)
	}
	return nil
}

func (o *Orchestrator) runUncached(ctx context.Context, req domain.AuditRequest, fp string) (*domain.AuditResult, error) {
	parsed, err := diff.Parse(req.Diff, o.cfg.Limits)
	if err != nil {
		return nil, err
	}

	chunks := diff.Split(parsed, o.cfg.ChunkChars)
	if len(chunks) > 1 {
		slog.Info("chunking diff for analysis", "chunks", len(chunks), "files", len(parsed.Files))
	}

	// Fan-out/fan-in: one task per audit type, all run to a terminal state.
	// Provider failures surface per type; siblings are never cancelled.
	outcomes := make([]*domain.AuditOutcome, len(req.Audits))
	done := make(chan int, len(req.Audits))
	for i, t := range req.Audits {
		go func(i int, t domain.AuditType) {
			outcomes[i] = o.runAuditType(ctx, t, chunks, req.Depth)
			done <- i
		}(i, t)
	}
	for range req.Audits {
		<-done
	}

	// A request-level deadline escalates; the result would be all failed
	// outcomes around a neutral score, and caching it would serve junk to
	// healthy retries for the full TTL.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byType := make(map[domain.AuditType]*domain.AuditOutcome, len(req.Audits))
	totalFindings := 0
	criticalFindings := 0
	for i, t := range req.Audits {
		byType[t] = outcomes[i]
		totalFindings += len(outcomes[i].Findings)
		for _, f := range outcomes[i].Findings {
			if f.Severity == domain.SeverityCritical {
				criticalFindings++
			}
		}
	}

	overall := o.overallScore(req.Audits, byType)
	synthesis := o.synthesize(ctx, req, byType, overall)

	languages := parsed.Languages
	if languages == nil {
		languages = []string{}
	}
	result := &domain.AuditResult{
		Summary: domain.Summary{
			OverallScore:     overall,
			RiskLevel:        domain.RiskLevelForScore(overall),
			TotalFindings:    totalFindings,
			CriticalFindings: criticalFindings,
		},
		Audits:    byType,
		Synthesis: synthesis,
		Metadata: domain.Metadata{
			FilesAnalyzed: len(parsed.Files),
			LinesAdded:    parsed.TotalAdded,
			LinesRemoved:  parsed.TotalRemoved,
			Languages:     languages,
		},
	}

	o.results.Put(fp, result)
	slog.Info("audit completed",
		"score", overall, "risk", result.Summary.RiskLevel,
		"findings", totalFindings, "verdict", synthesis.Verdict)
	return result, nil
}

// runAuditType runs one audit type over every chunk and merges the chunk
// outcomes: scores are mean-combined (rounded), findings concatenated in
// chunk order. Failures degrade to a failed outcome rather than an error.
func (o *Orchestrator) runAuditType(ctx context.Context, t domain.AuditType, chunks []diff.Chunk, depth domain.Depth) *domain.AuditOutcome {
	if len(chunks) == 1 {
		return o.runChunk(ctx, t, chunks[0].Text, depth)
	}

	merged := &domain.AuditOutcome{Findings: []domain.Finding{}, ParseSuccess: true}
	var scores []int
	var errs []string
	var model string
	for _, chunk := range chunks {
		out := o.runChunk(ctx, t, chunk.Text, depth)
		merged.Findings = append(merged.Findings, out.Findings...)
		if out.Score != nil {
			scores = append(scores, *out.Score)
		}
		if !out.ParseSuccess {
			merged.ParseSuccess = false
		}
		if out.Error != "" {
			errs = append(errs, out.Error)
		}
		if out.ModelUsed != "" {
			model = out.ModelUsed
		}
	}
	if len(scores) > 0 {
		mean := 0.0
		for _, s := range scores {
			mean += float64(s)
		}
		score := int(math.Round(mean / float64(len(scores))))
		merged.Score = &score
	}
	if !merged.ParseSuccess {
		merged.ParseError = "one or more chunks failed to parse"
	}
	merged.Error = strings.Join(errs, "; ")
	merged.ModelUsed = model
	return merged
}

func (o *Orchestrator) runChunk(ctx context.Context, t domain.AuditType, payload string, depth domain.Depth) *domain.AuditOutcome {
	outcome, err := o.engine.Run(ctx, t, payload, depth)
	if err != nil {
		slog.Error("audit type failed", "audit", t, "error", err)
		// ParseSuccess stays true: nothing was parsed, so there was no
		// parse failure to report. The Error field carries the cause.
		return &domain.AuditOutcome{Findings: []domain.Finding{}, ParseSuccess: true, Error: err.Error()}
	}
	if !outcome.ParseSuccess {
		slog.Warn("audit returned unparseable response", "audit", t)
	}
	return outcome
}

// overallScore computes the weighted mean over types that produced a score,
// renormalizing weights over that subset. With no scored types it falls
// back to the neutral midpoint.
func (o *Orchestrator) overallScore(order []domain.AuditType, byType map[domain.AuditType]*domain.AuditOutcome) int {
	var weightedSum, totalWeight float64
	for _, t := range order {
		out := byType[t]
		if out.Score == nil || out.Error != "" {
			continue
		}
		w := o.cfg.Weights[t]
		weightedSum += float64(*out.Score) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		slog.Warn("no valid audit scores available, using neutral score")
		return neutralScore
	}
	return int(weightedSum / totalWeight)
}
