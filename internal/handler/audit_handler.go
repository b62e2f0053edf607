// Package handler exposes the audit API over Fiber.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/go-diff-auditor/internal/adapter/store"
	"github.com/arturoeanton/go-diff-auditor/internal/domain"
	"github.com/arturoeanton/go-diff-auditor/internal/port"
	"github.com/arturoeanton/go-diff-auditor/internal/service"
)

// AuditHandler handles diff audit endpoints.
type AuditHandler struct {
	orchestrator *service.Orchestrator
	engine       *port.AuditEngine
	ai           port.AIProvider
	history      *store.PostgresStore // nil when history is disabled
	timeout      time.Duration
}

// NewAuditHandler creates the audit handler. history may be nil.
func NewAuditHandler(orchestrator *service.Orchestrator, engine *port.AuditEngine, ai port.AIProvider, history *store.PostgresStore, timeout time.Duration) *AuditHandler {
	return &AuditHandler{
		orchestrator: orchestrator,
		engine:       engine,
		ai:           ai,
		history:      history,
		timeout:      timeout,
	}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Post("/audit/diff", h.AuditDiff)
	router.Get("/models", h.ListModels)
	router.Get("/audits", h.ListAudits)
}

// AuditRequestBody is the wire format consumed from the routing layer.
type AuditRequestBody struct {
	Diff   string   `json:"diff"`
	Audits []string `json:"audits"`
	Depth  string   `json:"depth"`
}

// AuditResponse is the wire format returned to the caller.
type AuditResponse struct {
	AuditID   string                                    `json:"audit_id"`
	Status    string                                    `json:"status"`
	Summary   domain.Summary                            `json:"summary"`
	Audits    map[domain.AuditType]*domain.AuditOutcome `json:"audits"`
	Synthesis domain.Synthesis                          `json:"synthesis"`
	Metadata  domain.Metadata                           `json:"metadata"`
}

// AuditDiff runs the requested audits against a unified diff and returns
// the synthesized verdict.
func (h *AuditHandler) AuditDiff(c fiber.Ctx) error {
	var body AuditRequestBody
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req := domain.AuditRequest{
		Diff:  body.Diff,
		Depth: domain.Depth(body.Depth),
	}
	for _, a := range body.Audits {
		req.Audits = append(req.Audits, domain.AuditType(a))
	}

	auditID := uuid.New().String()
	slog.Info("received audit request", "audit_id", auditID, "depth", body.Depth, "audits", body.Audits)

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	result, err := h.orchestrator.Run(ctx, req)
	if err != nil {
		switch {
		case port.IsInputError(err):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			slog.Error("audit timed out", "audit_id", auditID)
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "audit timed out; try reducing diff size or using quick depth",
			})
		default:
			slog.Error("audit failed", "audit_id", auditID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit failed"})
		}
	}

	h.recordHistory(auditID, req, result)

	return c.JSON(AuditResponse{
		AuditID:   auditID,
		Status:    "completed",
		Summary:   result.Summary,
		Audits:    result.Audits,
		Synthesis: result.Synthesis,
		Metadata:  result.Metadata,
	})
}

// recordHistory persists the audit summary asynchronously; history write
// failures never affect the response.
func (h *AuditHandler) recordHistory(auditID string, req domain.AuditRequest, result *domain.AuditResult) {
	if h.history == nil {
		return
	}
	audits := make([]string, len(req.Audits))
	for i, t := range req.Audits {
		audits[i] = string(t)
	}
	record := &domain.AuditRecord{
		ID:               auditID,
		Fingerprint:      req.Fingerprint(),
		Depth:            req.Depth,
		Audits:           strings.Join(audits, ","),
		OverallScore:     result.Summary.OverallScore,
		RiskLevel:        result.Summary.RiskLevel,
		Verdict:          result.Synthesis.Verdict,
		TotalFindings:    result.Summary.TotalFindings,
		CriticalFindings: result.Summary.CriticalFindings,
		FilesAnalyzed:    result.Metadata.FilesAnalyzed,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.history.SaveAudit(ctx, record); err != nil {
			slog.Error("failed to write audit history", "audit_id", auditID, "error", err)
		}
	}()
}

// ListModels returns the depth→model mapping.
func (h *AuditHandler) ListModels(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"models": fiber.Map{
			string(domain.DepthQuick):    h.ai.ModelFor(domain.DepthQuick),
			string(domain.DepthStandard): h.ai.ModelFor(domain.DepthStandard),
			string(domain.DepthDeep):     h.ai.ModelFor(domain.DepthDeep),
		},
		"default": h.ai.ModelFor(domain.DepthStandard),
	})
}

// ListAudits returns the audit-type catalog with descriptions and weights.
func (h *AuditHandler) ListAudits(c fiber.Ctx) error {
	weights := h.orchestrator.Weights()
	catalog := make([]fiber.Map, 0, len(domain.AllAuditTypes))
	for _, t := range h.engine.Available() {
		s, err := h.engine.Strategy(t)
		if err != nil {
			continue
		}
		catalog = append(catalog, fiber.Map{
			"id":          string(t),
			"description": s.Description(),
			"weight":      weights[t],
		})
	}
	return c.JSON(fiber.Map{"audits": catalog})
}
