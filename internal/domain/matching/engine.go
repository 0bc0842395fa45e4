package matching

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/google/uuid"
)

// InvalidVectorError marks a pair whose vectors cannot be compared. Such
// pairs are skipped and logged; they never abort a batch.
type InvalidVectorError struct {
	Reason string
}

func (e *InvalidVectorError) Error() string {
	return "invalid vector: " + e.Reason
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped
// to [0,1] so it can be compared against the threshold directly.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, &InvalidVectorError{Reason: "empty vector"}
	}
	if len(a) != len(b) {
		return 0, &InvalidVectorError{Reason: fmt.Sprintf("dimension mismatch: %d vs %d", len(a), len(b))}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, &InvalidVectorError{Reason: "zero vector"}
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

// Candidate is a job posting not yet matched against the user, carrying its
// embedding vector.
type Candidate struct {
	JobID  uuid.UUID
	Vector []float64
}

// Intent is a tentative notification decision. It becomes a match record
// only after the notifier confirms delivery.
type Intent struct {
	UserID uuid.UUID
	JobID  uuid.UUID
	Score  float64
}

type BatchResult struct {
	Intents []Intent
	// Skipped counts pairs dropped for vector errors, for run observability.
	Skipped int
}

// RecordChecker answers whether a (user, job) pair has already been
// notified. The storage layer's unique index remains the final authority.
type RecordChecker interface {
	Exists(ctx context.Context, userID, jobID uuid.UUID) (bool, error)
}

type Engine struct {
	threshold float64
	records   RecordChecker
	log       *log.Logger
}

func NewEngine(threshold float64, records RecordChecker, logger *log.Logger) (*Engine, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("matching: threshold %v outside [0,1]", threshold)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{threshold: threshold, records: records, log: logger}, nil
}

// Match scores each candidate against the user's CV vector and returns one
// intent per new pair at or above the threshold, ordered by descending
// score (ties broken by job ID ascending). It mutates nothing: the caller
// owns the send+persist step.
func (e *Engine) Match(ctx context.Context, userID uuid.UUID, cvVector []float64, candidates []Candidate) (BatchResult, error) {
	if e == nil {
		return BatchResult{}, fmt.Errorf("nil engine")
	}
	if len(cvVector) == 0 {
		return BatchResult{}, &InvalidVectorError{Reason: "empty cv vector"}
	}

	res := BatchResult{Intents: make([]Intent, 0, len(candidates))}

	for _, c := range candidates {
		sim, err := CosineSimilarity(cvVector, c.Vector)
		if err != nil {
			res.Skipped++
			e.log.Printf("matcher status=skip user_id=%s job_id=%s err=%v", userID, c.JobID, err)
			continue
		}
		if sim < e.threshold {
			continue
		}

		// Idempotence guard: the candidate set may have been computed from
		// a stale snapshot.
		if e.records != nil {
			exists, err := e.records.Exists(ctx, userID, c.JobID)
			if err != nil {
				return BatchResult{}, err
			}
			if exists {
				continue
			}
		}

		res.Intents = append(res.Intents, Intent{UserID: userID, JobID: c.JobID, Score: sim})
	}

	sort.Slice(res.Intents, func(i, j int) bool {
		a, b := res.Intents[i], res.Intents[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return bytes.Compare(a.JobID[:], b.JobID[:]) < 0
	})

	return res, nil
}
