package dto

import (
	"time"

	"github.com/google/uuid"
)

type AlertResponse struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Title      string    `json:"title"`
	Company    string    `json:"company,omitempty"`
	URL        string    `json:"url"`
	MatchScore float64   `json:"match_score"`
	NotifiedAt time.Time `json:"notified_at"`
}
