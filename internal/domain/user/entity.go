package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string

	// CVText is the extracted plain text of the current CV. Replaced
	// wholesale on re-upload, never merged.
	CVText     string
	CVFilename string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CVEmbedding is the one current embedding of a user's CV.
type CVEmbedding struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Embedding []float64
	Model     string
	CreatedAt time.Time
}
