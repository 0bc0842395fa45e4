package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	CVFilename string    `json:"cv_filename,omitempty"`
	HasCV      bool      `json:"has_cv"`
	CreatedAt  time.Time `json:"created_at"`
}
