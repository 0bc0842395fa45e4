package match

import (
	"time"

	"github.com/google/uuid"
)

// Record is the append-only log entry proving a user was notified of a job.
// At most one record per (user, job) pair ever exists; the storage layer
// enforces this with a unique index.
type Record struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	JobID      uuid.UUID
	Score      float64
	NotifiedAt time.Time
	RunID      uuid.UUID
}
