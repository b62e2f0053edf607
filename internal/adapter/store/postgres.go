// Package store persists completed audit summaries for later inspection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

// PostgresStore records audit history. It is optional: the service runs
// fully in-memory when no database is configured.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, verifies it, and ensures the schema.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_history (
			id                UUID PRIMARY KEY,
			fingerprint       TEXT NOT NULL,
			depth             TEXT NOT NULL,
			audits            TEXT NOT NULL,
			overall_score     INT NOT NULL,
			risk_level        TEXT NOT NULL,
			verdict           TEXT NOT NULL,
			total_findings    INT NOT NULL,
			critical_findings INT NOT NULL,
			files_analyzed    INT NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveAudit inserts one completed audit record.
func (s *PostgresStore) SaveAudit(ctx context.Context, r *domain.AuditRecord) error {
	query := `INSERT INTO audit_history
		(id, fingerprint, depth, audits, overall_score, risk_level, verdict,
		 total_findings, critical_findings, files_analyzed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Fingerprint, r.Depth, r.Audits, r.OverallScore, r.RiskLevel,
		r.Verdict, r.TotalFindings, r.CriticalFindings, r.FilesAnalyzed,
	)
	if err != nil {
		return fmt.Errorf("save audit: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit records, most recent first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, fingerprint, depth, audits, overall_score, risk_level,
		verdict, total_findings, critical_findings, files_analyzed, created_at
		FROM audit_history ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var r domain.AuditRecord
		if err := rows.Scan(
			&r.ID, &r.Fingerprint, &r.Depth, &r.Audits, &r.OverallScore,
			&r.RiskLevel, &r.Verdict, &r.TotalFindings, &r.CriticalFindings,
			&r.FilesAnalyzed, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
