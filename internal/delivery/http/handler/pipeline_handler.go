package handler

import (
	"errors"

	"smart-apply/internal/delivery/http/middleware"
	"smart-apply/internal/pkg/response"
	"smart-apply/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type PipelineHandler struct {
	uc usecase.PipelineUsecase
}

func NewPipelineHandler(uc usecase.PipelineUsecase) *PipelineHandler {
	return &PipelineHandler{uc: uc}
}

func (h *PipelineHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/pipeline/status", h.GetStatus)
	r.Post("/pipeline/run", h.TriggerRun)
}

func (h *PipelineHandler) GetStatus(c fiber.Ctx) error {
	status, err := h.uc.GetStatus(c.Context())
	if err != nil {
		return response.Error(c, fiber.StatusInternalServerError, "failed to get pipeline status", nil)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, status)
}

func (h *PipelineHandler) TriggerRun(c fiber.Ctx) error {
	if err := h.uc.Trigger(c.Context()); err != nil {
		if errors.Is(err, usecase.ErrPipelineBusy) {
			return middleware.NewAppError(fiber.StatusConflict, "Pipeline run already in progress", nil, err)
		}
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
	return response.Success(c, fiber.StatusAccepted, "run accepted", nil)
}
