package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart-apply/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNoPipelineRuns = errors.New("no pipeline runs")

type PipelineRun struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	JobsFetched  int
	MatchesFound int
	EmailsSent   int
	PairsSkipped int
}

type PipelineRunRepository interface {
	Create(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, run PipelineRun) error
	Latest(ctx context.Context) (PipelineRun, error)
}

type PostgresPipelineRunRepository struct {
	db database.DB
}

func NewPostgresPipelineRunRepository(db database.DB) *PostgresPipelineRunRepository {
	return &PostgresPipelineRunRepository{db: db}
}

func (r *PostgresPipelineRunRepository) Create(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO pipeline_runs (id, started_at, status) VALUES ($1,$2,$3)`,
		id, startedAt, "running",
	)
	return err
}

func (r *PostgresPipelineRunRepository) Finish(ctx context.Context, run PipelineRun) error {
	_, err := r.db.Exec(ctx,
		`UPDATE pipeline_runs SET
			finished_at = $2, status = $3, jobs_fetched = $4,
			matches_found = $5, emails_sent = $6, pairs_skipped = $7
		 WHERE id = $1`,
		run.ID, time.Now().UTC(), run.Status,
		run.JobsFetched, run.MatchesFound, run.EmailsSent, run.PairsSkipped,
	)
	return err
}

func (r *PostgresPipelineRunRepository) Latest(ctx context.Context) (PipelineRun, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, started_at, finished_at, status, jobs_fetched, matches_found, emails_sent, pairs_skipped
		 FROM pipeline_runs
		 ORDER BY started_at DESC
		 LIMIT 1`,
	)
	var run PipelineRun
	if err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.JobsFetched, &run.MatchesFound, &run.EmailsSent, &run.PairsSkipped); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return PipelineRun{}, ErrNoPipelineRuns
		}
		return PipelineRun{}, err
	}
	return run, nil
}
