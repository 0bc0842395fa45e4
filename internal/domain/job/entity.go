package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("job not found")

// Posting is one scraped job posting. Immutable once created: re-scraped
// duplicates are recognized by URL and not reprocessed.
type Posting struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	ExternalID  string
	Title       string
	Company     string
	Location    string
	Description string
	URL         string
	Embedding   []float64
	PostedAt    *time.Time
	FirstSeenAt time.Time
}
