package handler

import (
	"context"

	"smart-apply/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type HealthHandler struct {
	db interface{ Ping(ctx context.Context) error }
}

func NewHealthHandler(db interface{ Ping(ctx context.Context) error }) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/healthz", h.Healthz)
}

func (h *HealthHandler) Healthz(c fiber.Ctx) error {
	if h.db != nil {
		if err := h.db.Ping(c.Context()); err != nil {
			return response.Error(c, fiber.StatusServiceUnavailable, "database unreachable", nil)
		}
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]string{"status": "up"})
}
