package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-diff-auditor/internal/adapter/store"
	"github.com/arturoeanton/go-diff-auditor/internal/domain"
)

// HistoryHandler serves the persisted audit history.
type HistoryHandler struct {
	store *store.PostgresStore
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(s *store.PostgresStore) *HistoryHandler {
	return &HistoryHandler{store: s}
}

// Register sets up history routes.
func (h *HistoryHandler) Register(router fiber.Router) {
	router.Get("/history", h.ListRecent)
}

// ListRecent returns the most recent audit records.
func (h *HistoryHandler) ListRecent(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	records, err := h.store.ListRecent(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load history"})
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	return c.JSON(fiber.Map{"history": records})
}
