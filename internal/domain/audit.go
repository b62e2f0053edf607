package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// AuditType is one risk lens applied to a diff.
type AuditType string

const (
	AuditSecurity      AuditType = "security"
	AuditQuality       AuditType = "quality"
	AuditPerformance   AuditType = "performance"
	AuditBestPractices AuditType = "best_practices"
)

// AllAuditTypes lists the supported audit types in canonical order.
var AllAuditTypes = []AuditType{AuditSecurity, AuditQuality, AuditPerformance, AuditBestPractices}

// ValidAuditType reports whether t is a supported audit type.
func ValidAuditType(t AuditType) bool {
	for _, a := range AllAuditTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Depth selects the quality/cost tier of the underlying model.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// ValidDepth reports whether d is a supported analysis depth.
func ValidDepth(d Depth) bool {
	return d == DepthQuick || d == DepthStandard || d == DepthDeep
}

// Severity of a single finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel summarizes the overall risk of a change.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore maps an overall score to a risk level. Higher scores
// mean safer changes, so the mapping runs inverse to the score.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	case score >= 40:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Verdict is the final categorical recommendation.
type Verdict string

const (
	VerdictApprove            Verdict = "APPROVE"
	VerdictApproveWithChanges Verdict = "APPROVE_WITH_CHANGES"
	VerdictRequestChanges     Verdict = "REQUEST_CHANGES"
	VerdictBlock              Verdict = "BLOCK"
)

// Finding is one issue reported by the inference provider. The payload is
// authored by the model; only its shape is validated, never its content.
type Finding struct {
	Type        string   `json:"type,omitempty"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Line        *int     `json:"line,omitempty"`
	Evidence    []string `json:"evidence,omitempty"`
	Scenario    string   `json:"scenario,omitempty"`
	Impact      string   `json:"impact,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Patch       string   `json:"patch,omitempty"`
	Tests       []string `json:"tests,omitempty"`
}

// AuditOutcome is the result of one audit type for one request.
// A nil Score means the audit produced no usable score (total failure
// or unparseable response).
type AuditOutcome struct {
	Score        *int      `json:"score"`
	Findings     []Finding `json:"findings"`
	ParseSuccess bool      `json:"parse_success"`
	ParseError   string    `json:"parse_error,omitempty"`
	Error        string    `json:"error,omitempty"`
	ModelUsed    string    `json:"model_used,omitempty"`
}

// AuditRequest is the fingerprintable unit of work.
type AuditRequest struct {
	Diff   string      `json:"diff"`
	Audits []AuditType `json:"audits"`
	Depth  Depth       `json:"depth"`
}

// Fingerprint returns a deterministic hash over diff text, audit-type set,
// and depth. The audit set is order-independent: requests differing only in
// audit order share a fingerprint.
func (r AuditRequest) Fingerprint() string {
	audits := make([]string, len(r.Audits))
	for i, a := range r.Audits {
		audits[i] = string(a)
	}
	sort.Strings(audits)
	h := sha256.Sum256([]byte(string(r.Depth) + "|" + strings.Join(audits, ",") + "|" + r.Diff))
	return hex.EncodeToString(h[:])
}

// Summary aggregates the per-type outcomes into one verdict line.
type Summary struct {
	OverallScore     int       `json:"overall_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	TotalFindings    int       `json:"total_findings"`
	CriticalFindings int       `json:"critical_findings"`
}

// CriticalIssue is one top issue surfaced by the synthesis step.
type CriticalIssue struct {
	Title          string `json:"title"`
	Audit          string `json:"audit,omitempty"`
	Severity       string `json:"severity,omitempty"`
	ActionRequired string `json:"action_required,omitempty"`
}

// Recommendation is one prioritized follow-up from the synthesis step.
type Recommendation struct {
	Priority int    `json:"priority,omitempty"`
	Action   string `json:"action"`
	Impact   string `json:"impact,omitempty"`
	Effort   string `json:"effort,omitempty"`
}

// Synthesis is the executive summary across all audit types.
type Synthesis struct {
	ExecutiveSummary string           `json:"executive_summary"`
	CriticalIssues   []CriticalIssue  `json:"critical_issues"`
	Recommendations  []Recommendation `json:"recommendations"`
	Verdict          Verdict          `json:"verdict"`
	Error            string           `json:"error,omitempty"`
}

// Metadata describes the analyzed diff.
type Metadata struct {
	FilesAnalyzed int      `json:"files_analyzed"`
	LinesAdded    int      `json:"lines_added"`
	LinesRemoved  int      `json:"lines_removed"`
	Languages     []string `json:"languages"`
}

// AuditResult is the complete response for one request. It is constructed
// once by the orchestrator, cached by fingerprint, and never mutated after
// caching.
type AuditResult struct {
	Summary   Summary                     `json:"summary"`
	Audits    map[AuditType]*AuditOutcome `json:"audits"`
	Synthesis Synthesis                   `json:"synthesis"`
	Metadata  Metadata                    `json:"metadata"`
}
