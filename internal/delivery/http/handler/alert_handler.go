package handler

import (
	"strconv"

	"smart-apply/internal/delivery/http/dto"
	"smart-apply/internal/delivery/http/middleware"
	"smart-apply/internal/pkg/response"
	"smart-apply/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type AlertHandler struct {
	uc usecase.AlertUsecase
}

func NewAlertHandler(uc usecase.AlertUsecase) *AlertHandler {
	return &AlertHandler{uc: uc}
}

func (h *AlertHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/alerts", h.ListAlerts)
}

func (h *AlertHandler) ListAlerts(c fiber.Ctx) error {
	userID, ok := c.Locals(middleware.CtxUserIDKey).(uuid.UUID)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	limit := parseQueryInt(c, "limit", 20)
	offset := parseQueryInt(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}

	alerts, err := h.uc.ListForUser(c.Context(), userID, limit, offset)
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}

	items := make([]dto.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, dto.AlertResponse{
			ID:         a.Record.ID,
			JobID:      a.Record.JobID,
			Title:      a.Title,
			Company:    a.Company,
			URL:        a.URL,
			MatchScore: a.Record.Score,
			NotifiedAt: a.Record.NotifiedAt,
		})
	}

	data := map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}

func parseQueryInt(c fiber.Ctx, key string, defaultVal int) int {
	s := c.Query(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
