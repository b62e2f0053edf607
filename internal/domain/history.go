package domain

import "time"

// AuditRecord is one completed audit persisted to the history store.
// History is an operator convenience; the cache and limiter remain
// in-memory and are never persisted.
type AuditRecord struct {
	ID               string    `json:"id"`
	Fingerprint      string    `json:"fingerprint"`
	Depth            Depth     `json:"depth"`
	Audits           string    `json:"audits"` // comma-joined audit types
	OverallScore     int       `json:"overall_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Verdict          Verdict   `json:"verdict"`
	TotalFindings    int       `json:"total_findings"`
	CriticalFindings int       `json:"critical_findings"`
	FilesAnalyzed    int       `json:"files_analyzed"`
	CreatedAt        time.Time `json:"created_at"`
}
