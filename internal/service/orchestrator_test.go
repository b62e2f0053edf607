package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-diff-auditor/internal/cache"
	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
)

const testDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+
 func main() {
 }
`

// stubStrategy returns a fixed outcome or error for one audit type.
type stubStrategy struct {
	name    domain.AuditType
	outcome *domain.AuditOutcome
	err     error
	calls   atomic.Int32
}

func (s *stubStrategy) Name() domain.AuditType { return s.name }
func (s *stubStrategy) Description() string    { return string(s.name) + " lens" }

func (s *stubStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := *s.outcome
	return &out, nil
}

// stubAI serves only the synthesis call in these tests.
type stubAI struct {
	response string
	err      error
	calls    atomic.Int32
}

func (s *stubAI) ModelFor(depth domain.Depth) string { return "stub-model" }

func (s *stubAI) Chat(ctx context.Context, system, user string, depth domain.Depth) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func scored(score int, findings ...domain.Finding) *domain.AuditOutcome {
	return &domain.AuditOutcome{Score: &score, Findings: findings, ParseSuccess: true}
}

// sequenceStrategy returns one queued outcome (or error) per call, in order.
type sequenceStrategy struct {
	name     domain.AuditType
	outcomes []*domain.AuditOutcome
	errs     []error
	idx      atomic.Int32
}

func (s *sequenceStrategy) Name() domain.AuditType { return s.name }
func (s *sequenceStrategy) Description() string    { return string(s.name) + " lens" }

func (s *sequenceStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	i := int(s.idx.Add(1)) - 1
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	out := *s.outcomes[i]
	return &out, nil
}

// stalledStrategy blocks until its context ends.
type stalledStrategy struct {
	name  domain.AuditType
	calls atomic.Int32
}

func (s *stalledStrategy) Name() domain.AuditType { return s.name }
func (s *stalledStrategy) Description() string    { return string(s.name) + " lens" }

func (s *stalledStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedStrategy signals entry and blocks until released, ignoring its context.
type gatedStrategy struct {
	name    domain.AuditType
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *gatedStrategy) Name() domain.AuditType { return s.name }
func (s *gatedStrategy) Description() string    { return string(s.name) + " lens" }

func (s *gatedStrategy) Audit(ctx context.Context, diff string, depth domain.Depth) (*domain.AuditOutcome, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	<-s.release
	return scored(70), nil
}

func newTestOrchestrator(t *testing.T, cfg Config, ai port.AIProvider, strategies ...port.AuditStrategy) *Orchestrator {
	t.Helper()
	return NewOrchestrator(port.NewAuditEngine(strategies...), ai, cache.New(time.Minute, 16), cfg)
}

func TestRunWeightedScore(t *testing.T) {
	cfg := Config{Weights: map[domain.AuditType]float64{
		domain.AuditSecurity: 0.5,
		domain.AuditQuality:  0.3,
	}}
	o := newTestOrchestrator(t, cfg,
		&stubAI{err: errors.New("synthesis offline")},
		&stubStrategy{name: domain.AuditSecurity, outcome: scored(60)},
		&stubStrategy{name: domain.AuditQuality, outcome: scored(80)},
	)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity, domain.AuditQuality},
		Depth:  domain.DepthStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, 67, result.Summary.OverallScore, "(60*0.5 + 80*0.3) / 0.8 truncates to 67")
	assert.Equal(t, domain.RiskMedium, result.Summary.RiskLevel)
}

func TestRunPartialFailure(t *testing.T) {
	security := &stubStrategy{name: domain.AuditSecurity, err: errors.New("provider unavailable")}
	quality := &stubStrategy{name: domain.AuditQuality, outcome: scored(90)}
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")}, security, quality)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity, domain.AuditQuality},
	})
	require.NoError(t, err, "one failing audit type must not fail the request")

	sec := result.Audits[domain.AuditSecurity]
	require.NotNil(t, sec)
	assert.NotEmpty(t, sec.Error)
	assert.Nil(t, sec.Score)
	assert.True(t, sec.ParseSuccess, "a provider failure is not a parse failure")
	assert.Empty(t, sec.ParseError)

	qual := result.Audits[domain.AuditQuality]
	require.NotNil(t, qual)
	require.NotNil(t, qual.Score)
	assert.Equal(t, 90, *qual.Score)

	assert.Equal(t, 90, result.Summary.OverallScore, "failed types are excluded and weights renormalized")
	assert.Equal(t, int32(1), quality.calls.Load(), "sibling audits run despite a failure")
}

func TestRunAllFailNeutralScore(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")},
		&stubStrategy{name: domain.AuditSecurity, err: errors.New("boom")},
		&stubStrategy{name: domain.AuditQuality, err: errors.New("boom")},
	)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity, domain.AuditQuality},
	})
	require.NoError(t, err)
	assert.Equal(t, neutralScore, result.Summary.OverallScore, "with no usable scores the neutral midpoint is reported")
	assert.Equal(t, domain.RiskHigh, result.Summary.RiskLevel)
}

func TestRunDefaultsAuditsAndDepth(t *testing.T) {
	strategies := make([]port.AuditStrategy, 0, len(domain.AllAuditTypes))
	stubs := make(map[domain.AuditType]*stubStrategy)
	for _, name := range domain.AllAuditTypes {
		s := &stubStrategy{name: name, outcome: scored(85)}
		stubs[name] = s
		strategies = append(strategies, s)
	}
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")}, strategies...)

	result, err := o.Run(context.Background(), domain.AuditRequest{Diff: testDiff})
	require.NoError(t, err)
	assert.Len(t, result.Audits, len(domain.AllAuditTypes), "empty audit list should expand to every type")
	for name, s := range stubs {
		assert.Equal(t, int32(1), s.calls.Load(), "%s should have run", name)
	}
	assert.Equal(t, 85, result.Summary.OverallScore)
}

func TestRunRejectsBadInput(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, &stubAI{},
		&stubStrategy{name: domain.AuditSecurity, outcome: scored(85)})

	t.Run("unknown audit type", func(t *testing.T) {
		_, err := o.Run(context.Background(), domain.AuditRequest{
			Diff:   testDiff,
			Audits: []domain.AuditType{"style"},
		})
		assert.ErrorIs(t, err, port.ErrUnknownAuditType)
	})

	t.Run("duplicate audit type", func(t *testing.T) {
		_, err := o.Run(context.Background(), domain.AuditRequest{
			Diff:   testDiff,
			Audits: []domain.AuditType{domain.AuditSecurity, domain.AuditSecurity},
		})
		assert.ErrorIs(t, err, port.ErrUnknownAuditType)
	})

	t.Run("unknown depth", func(t *testing.T) {
		_, err := o.Run(context.Background(), domain.AuditRequest{
			Diff:   testDiff,
			Audits: []domain.AuditType{domain.AuditSecurity},
			Depth:  "thorough",
		})
		assert.ErrorIs(t, err, port.ErrUnknownDepth)
	})

	t.Run("empty diff", func(t *testing.T) {
		_, err := o.Run(context.Background(), domain.AuditRequest{
			Audits: []domain.AuditType{domain.AuditSecurity},
		})
		assert.ErrorIs(t, err, port.ErrEmptyDiff)
	})
}

func TestRunTimeoutEscalatesAndSkipsCache(t *testing.T) {
	s := &stalledStrategy{name: domain.AuditSecurity}
	results := cache.New(time.Minute, 16)
	o := NewOrchestrator(port.NewAuditEngine(s), &stubAI{err: errors.New("offline")}, results,
		Config{Timeout: 50 * time.Millisecond})
	req := domain.AuditRequest{Diff: testDiff, Audits: []domain.AuditType{domain.AuditSecurity}}

	_, err := o.Run(context.Background(), req)
	require.Error(t, err, "an expired deadline is a request-level failure, not a completed result")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, results.Len(), "timed-out results must not be cached")

	_, err = o.Run(context.Background(), req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), s.calls.Load(), "a retry must recompute, not read a poisoned cache entry")
}

func TestRunLeaderCancelDoesNotAbortComputation(t *testing.T) {
	s := &gatedStrategy{
		name:    domain.AuditSecurity,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	results := cache.New(time.Minute, 16)
	o := NewOrchestrator(port.NewAuditEngine(s), &stubAI{err: errors.New("offline")}, results, Config{})
	req := domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
		Depth:  domain.DepthStandard,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, req)
		errCh <- err
	}()

	<-s.entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled, "the cancelled caller gets its own context error")

	// The computation keeps running and caches its result for followers.
	close(s.release)
	fp := req.Fingerprint()
	require.Eventually(t, func() bool {
		_, ok := results.Get(fp)
		return ok
	}, 2*time.Second, 10*time.Millisecond, "the detached computation should complete and cache")

	result, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Audits[domain.AuditSecurity].Score)
	assert.Equal(t, 70, *result.Audits[domain.AuditSecurity].Score)
	assert.Equal(t, int32(1), s.calls.Load(), "followers reuse the leader's work")
}

const twoFileDiff = `diff --git a/a.go b/a.go
index 1111111..2222222 100644
--- a/a.go
+++ b/a.go
@@ -1,1 +1,2 @@
 package a
+var a = 1
diff --git a/b.go b/b.go
index 3333333..4444444 100644
--- a/b.go
+++ b/b.go
@@ -1,1 +1,2 @@
 package b
+var b = 2
`

func TestRunMergesChunkOutcomes(t *testing.T) {
	first := domain.Finding{Severity: domain.SeverityMedium, Title: "first", Description: "from chunk one"}
	second := domain.Finding{Severity: domain.SeverityLow, Title: "second", Description: "from chunk two"}
	s := &sequenceStrategy{
		name:     domain.AuditSecurity,
		outcomes: []*domain.AuditOutcome{scored(60, first), scored(81, second)},
	}
	// ChunkChars of 1 forces one chunk per file.
	o := newTestOrchestrator(t, Config{ChunkChars: 1}, &stubAI{err: errors.New("offline")}, s)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   twoFileDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), s.idx.Load(), "each chunk gets its own call")

	out := result.Audits[domain.AuditSecurity]
	require.NotNil(t, out.Score)
	assert.Equal(t, 71, *out.Score, "chunk scores 60 and 81 mean-combine to round(70.5) = 71")
	require.Len(t, out.Findings, 2)
	assert.Equal(t, "first", out.Findings[0].Title, "findings keep chunk order")
	assert.Equal(t, "second", out.Findings[1].Title)
	assert.True(t, out.ParseSuccess)
	assert.Empty(t, out.ParseError)
	assert.Empty(t, out.Error)
}

func TestRunMergesChunkProviderFailure(t *testing.T) {
	finding := domain.Finding{Severity: domain.SeverityHigh, Title: "first", Description: "x"}
	s := &sequenceStrategy{
		name:     domain.AuditSecurity,
		outcomes: []*domain.AuditOutcome{scored(60, finding), nil},
		errs:     []error{nil, errors.New("provider unavailable")},
	}
	o := newTestOrchestrator(t, Config{ChunkChars: 1}, &stubAI{err: errors.New("offline")}, s)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   twoFileDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)

	out := result.Audits[domain.AuditSecurity]
	require.NotNil(t, out.Score)
	assert.Equal(t, 60, *out.Score, "only the scored chunk contributes")
	require.Len(t, out.Findings, 1)
	assert.Contains(t, out.Error, "provider unavailable")
	assert.True(t, out.ParseSuccess, "a transport failure is not a parse failure")
	assert.Empty(t, out.ParseError)
}

func TestRunMergesChunkParseDegradation(t *testing.T) {
	degraded := &domain.AuditOutcome{
		Findings:   []domain.Finding{},
		ParseError: "no JSON object found in model response",
	}
	s := &sequenceStrategy{
		name:     domain.AuditSecurity,
		outcomes: []*domain.AuditOutcome{scored(60), degraded},
	}
	o := newTestOrchestrator(t, Config{ChunkChars: 1}, &stubAI{err: errors.New("offline")}, s)

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   twoFileDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)

	out := result.Audits[domain.AuditSecurity]
	assert.False(t, out.ParseSuccess)
	assert.Equal(t, "one or more chunks failed to parse", out.ParseError)
	require.NotNil(t, out.Score)
	assert.Equal(t, 60, *out.Score)
}

func TestRunCachesByFingerprint(t *testing.T) {
	security := &stubStrategy{name: domain.AuditSecurity, outcome: scored(70)}
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")}, security)

	req := domain.AuditRequest{Diff: testDiff, Audits: []domain.AuditType{domain.AuditSecurity}}

	first, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Same(t, first, second, "repeated identical requests should be served from cache")
	assert.Equal(t, int32(1), security.calls.Load(), "the provider should be consulted once")
}

func TestRunUsesSynthesisResponse(t *testing.T) {
	syn := &stubAI{response: `{
		"executive_summary": "Low risk refactor.",
		"critical_issues": [],
		"recommendations": [],
		"verdict": "APPROVE"
	}`}
	o := newTestOrchestrator(t, Config{}, syn,
		&stubStrategy{name: domain.AuditSecurity, outcome: scored(95)})

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApprove, result.Synthesis.Verdict)
	assert.Equal(t, "Low risk refactor.", result.Synthesis.ExecutiveSummary)
	assert.Empty(t, result.Synthesis.Error)
}

func TestRunSynthesisFallback(t *testing.T) {
	critical := domain.Finding{Severity: domain.SeverityCritical, Title: "Hardcoded secret", Description: "API key committed."}
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")},
		&stubStrategy{name: domain.AuditSecurity, outcome: scored(35, critical)})

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictRequestChanges, result.Synthesis.Verdict, "critical finding forces REQUEST_CHANGES in the fallback")
	assert.Equal(t, fallbackSummary, result.Synthesis.ExecutiveSummary)
	assert.NotEmpty(t, result.Synthesis.Error)
	require.Len(t, result.Synthesis.CriticalIssues, 1)
	assert.Contains(t, result.Synthesis.CriticalIssues[0].Title, "Hardcoded secret")
	assert.Equal(t, 1, result.Summary.CriticalFindings)
}

func TestRunMetadata(t *testing.T) {
	o := newTestOrchestrator(t, Config{}, &stubAI{err: errors.New("offline")},
		&stubStrategy{name: domain.AuditSecurity, outcome: scored(90)})

	result, err := o.Run(context.Background(), domain.AuditRequest{
		Diff:   testDiff,
		Audits: []domain.AuditType{domain.AuditSecurity},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata.FilesAnalyzed)
	assert.Equal(t, 1, result.Metadata.LinesAdded)
	assert.Equal(t, 0, result.Metadata.LinesRemoved)
	assert.Equal(t, []string{"go"}, result.Metadata.Languages)
}

func TestFallbackVerdictThresholds(t *testing.T) {
	order := []domain.AuditType{domain.AuditSecurity}

	outcomes := func(findings ...domain.Finding) map[domain.AuditType]*domain.AuditOutcome {
		return map[domain.AuditType]*domain.AuditOutcome{
			domain.AuditSecurity: {Findings: findings, ParseSuccess: true},
		}
	}
	high := func(n int) []domain.Finding {
		fs := make([]domain.Finding, n)
		for i := range fs {
			fs[i] = domain.Finding{Severity: domain.SeverityHigh, Title: fmt.Sprintf("issue %d", i)}
		}
		return fs
	}

	assert.Equal(t, domain.VerdictApprove, fallbackVerdict(order, outcomes(), 90))
	assert.Equal(t, domain.VerdictApproveWithChanges, fallbackVerdict(order, outcomes(), 79))
	assert.Equal(t, domain.VerdictApproveWithChanges, fallbackVerdict(order, outcomes(high(3)...), 90),
		"three high findings demote an otherwise clean score")
	assert.Equal(t, domain.VerdictRequestChanges, fallbackVerdict(order, outcomes(), 39))
	assert.Equal(t, domain.VerdictRequestChanges,
		fallbackVerdict(order, outcomes(domain.Finding{Severity: domain.SeverityCritical}), 95))
}
