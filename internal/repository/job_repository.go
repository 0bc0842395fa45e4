package repository

import (
	"context"
	"database/sql"
	"errors"

	"smart-apply/internal/database"
	"smart-apply/internal/domain/job"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type JobRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (job.Posting, error)
	ListPendingEmbedding(ctx context.Context, limit int) ([]job.Posting, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error
	// ListCandidatesForUser returns embedded postings with no match record
	// for the user yet.
	ListCandidatesForUser(ctx context.Context, userID uuid.UUID, limit int) ([]job.Posting, error)
	CountJobs(ctx context.Context) (int64, error)
}

type PostgresJobRepository struct {
	db database.DB
}

func NewPostgresJobRepository(db database.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

const jobColumns = `id, source_id, COALESCE(external_job_id, ''), COALESCE(title, ''), COALESCE(company, ''),
	COALESCE(location, ''), COALESCE(description, ''), url, embedding, posted_at, first_seen_at`

func (r *PostgresJobRepository) GetByID(ctx context.Context, id uuid.UUID) (job.Posting, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanPosting(row)
}

func (r *PostgresJobRepository) ListPendingEmbedding(ctx context.Context, limit int) ([]job.Posting, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE embedding IS NULL ORDER BY first_seen_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPostings(rows)
}

func (r *PostgresJobRepository) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	n, err := r.db.Exec(ctx, `UPDATE jobs SET embedding = $2 WHERE id = $1`, id, embedding)
	if err != nil {
		return err
	}
	if n == 0 {
		return job.ErrNotFound
	}
	return nil
}

func (r *PostgresJobRepository) ListCandidatesForUser(ctx context.Context, userID uuid.UUID, limit int) ([]job.Posting, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs j
		 WHERE j.embedding IS NOT NULL
		   AND NOT EXISTS (
			SELECT 1 FROM match_records m WHERE m.user_id = $1 AND m.job_id = j.id
		   )
		 ORDER BY j.first_seen_at
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPostings(rows)
}

func (r *PostgresJobRepository) CountJobs(ctx context.Context) (int64, error) {
	var n int64
	row := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPosting(row database.Row) (job.Posting, error) {
	var p job.Posting
	if err := row.Scan(&p.ID, &p.SourceID, &p.ExternalID, &p.Title, &p.Company,
		&p.Location, &p.Description, &p.URL, &p.Embedding, &p.PostedAt, &p.FirstSeenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return job.Posting{}, job.ErrNotFound
		}
		return job.Posting{}, err
	}
	return p, nil
}

func collectPostings(rows database.Rows) ([]job.Posting, error) {
	out := make([]job.Posting, 0)
	for rows.Next() {
		var p job.Posting
		if err := rows.Scan(&p.ID, &p.SourceID, &p.ExternalID, &p.Title, &p.Company,
			&p.Location, &p.Description, &p.URL, &p.Embedding, &p.PostedAt, &p.FirstSeenAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
