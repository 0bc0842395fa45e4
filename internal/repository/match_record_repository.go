package repository

import (
	"context"
	"time"

	"smart-apply/internal/database"
	"smart-apply/internal/domain/match"

	"github.com/google/uuid"
)

// Alert is a match record joined with the posting it refers to, for the
// alerts API.
type Alert struct {
	Record  match.Record
	Title   string
	Company string
	URL     string
}

type MatchRecordRepository interface {
	Exists(ctx context.Context, userID, jobID uuid.UUID) (bool, error)
	// Insert appends the record. A conflicting (user, job) pair returns
	// (false, nil): the uniqueness constraint firing proves dedup worked,
	// so it is success, not an error.
	Insert(ctx context.Context, rec match.Record) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Alert, error)
}

type PostgresMatchRecordRepository struct {
	db database.DB
}

func NewPostgresMatchRecordRepository(db database.DB) *PostgresMatchRecordRepository {
	return &PostgresMatchRecordRepository{db: db}
}

func (r *PostgresMatchRecordRepository) Exists(ctx context.Context, userID, jobID uuid.UUID) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM match_records WHERE user_id = $1 AND job_id = $2)`,
		userID, jobID,
	)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresMatchRecordRepository) Insert(ctx context.Context, rec match.Record) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.NotifiedAt.IsZero() {
		rec.NotifiedAt = time.Now().UTC()
	}

	var runID any
	if rec.RunID != uuid.Nil {
		runID = rec.RunID
	}

	n, err := r.db.Exec(ctx,
		`INSERT INTO match_records (id, user_id, job_id, match_score, notified_at, run_id)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (user_id, job_id) DO NOTHING`,
		rec.ID, rec.UserID, rec.JobID, rec.Score, rec.NotifiedAt, runID,
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresMatchRecordRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT m.id, m.user_id, m.job_id, m.match_score, m.notified_at,
			COALESCE(j.title, ''), COALESCE(j.company, ''), j.url
		 FROM match_records m
		 JOIN jobs j ON j.id = m.job_id
		 WHERE m.user_id = $1
		 ORDER BY m.notified_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.Record.ID, &a.Record.UserID, &a.Record.JobID, &a.Record.Score,
			&a.Record.NotifiedAt, &a.Title, &a.Company, &a.URL); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
