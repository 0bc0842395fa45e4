package handler

import (
	"errors"

	"smart-apply/internal/cvparse"
	"smart-apply/internal/delivery/http/middleware"
	"smart-apply/internal/domain/user"
	"smart-apply/internal/pkg/response"
	useruc "smart-apply/internal/usecase/user"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// maxCVUploadBytes caps CV uploads at 10 MiB.
const maxCVUploadBytes = 10 << 20

type UserHandler struct {
	uc *useruc.Service
}

func NewUserHandler(uc *useruc.Service) *UserHandler {
	return &UserHandler{uc: uc}
}

func (h *UserHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/me", h.GetMe)
	r.Post("/me/cv", h.UploadCV)
}

func (h *UserHandler) GetMe(c fiber.Ctx) error {
	userID, ok := c.Locals(middleware.CtxUserIDKey).(uuid.UUID)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	usr, err := h.uc.GetMe(c.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return middleware.NewAppError(fiber.StatusNotFound, "User not found", nil, err)
		}
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, userToResponse(usr))
}

func (h *UserHandler) UploadCV(c fiber.Ctx) error {
	userID, ok := c.Locals(middleware.CtxUserIDKey).(uuid.UUID)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	fh, err := c.FormFile("cv")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Missing cv file", nil, err)
	}
	if fh.Size > maxCVUploadBytes {
		return middleware.NewAppError(fiber.StatusBadRequest, "CV file too large", nil, nil)
	}

	f, err := fh.Open()
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Unreadable cv file", nil, err)
	}
	defer f.Close()

	data, err := cvparse.ReadAllLimit(f, maxCVUploadBytes)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Unreadable cv file", nil, err)
	}

	usr, err := h.uc.UploadCV(c.Context(), userID, fh.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, useruc.ErrInvalidInput):
			return middleware.NewAppError(fiber.StatusBadRequest, "Unsupported or empty CV", nil, err)
		case errors.Is(err, user.ErrNotFound):
			return middleware.NewAppError(fiber.StatusNotFound, "User not found", nil, err)
		default:
			return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
		}
	}

	return response.Success(c, fiber.StatusOK, response.MessageOK, userToResponse(usr))
}
