package usecase

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"smart-apply/internal/pipeline"
	"smart-apply/internal/repository"
)

var ErrPipelineBusy = errors.New("pipeline run already in progress")

type PipelineStatus struct {
	TotalJobs       int64                   `json:"total_jobs"`
	DatabaseHealthy bool                    `json:"database_healthy"`
	RedisHealthy    bool                    `json:"redis_healthy"`
	LatestRun       *repository.PipelineRun `json:"latest_run,omitempty"`
	ServerTime      time.Time               `json:"server_time"`
}

type PipelineUsecase interface {
	// Trigger starts a run in the background; ErrPipelineBusy when one is
	// already executing.
	Trigger(ctx context.Context) error
	GetStatus(ctx context.Context) (*PipelineStatus, error)
}

type PipelineRunner struct {
	pipe  *pipeline.Pipeline
	jobs  repository.JobRepository
	runs  repository.PipelineRunRepository
	db    interface{ Ping(ctx context.Context) error }
	redis interface{ Ping(ctx context.Context) error }
	log   *log.Logger
	now   func() time.Time

	running atomic.Bool
}

func NewPipelineUsecase(
	pipe *pipeline.Pipeline,
	jobs repository.JobRepository,
	runs repository.PipelineRunRepository,
	db interface{ Ping(ctx context.Context) error },
	redis interface{ Ping(ctx context.Context) error },
	logger *log.Logger,
) *PipelineRunner {
	if logger == nil {
		logger = log.Default()
	}
	return &PipelineRunner{pipe: pipe, jobs: jobs, runs: runs, db: db, redis: redis, log: logger, now: time.Now}
}

func (u *PipelineRunner) Trigger(ctx context.Context) error {
	if u.pipe == nil {
		return ErrInternal
	}
	if !u.running.CompareAndSwap(false, true) {
		return ErrPipelineBusy
	}

	go func() {
		defer u.running.Store(false)
		// Detached from the request: the run outlives the HTTP call.
		if _, err := u.pipe.Run(context.Background()); err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				u.log.Printf("usecase=pipeline_trigger status=skipped reason=lock_held")
				return
			}
			u.log.Printf("usecase=pipeline_trigger status=error err=%v", err)
		}
	}()
	return nil
}

func (u *PipelineRunner) GetStatus(ctx context.Context) (*PipelineStatus, error) {
	total, err := u.jobs.CountJobs(ctx)
	if err != nil {
		return nil, ErrInternal
	}

	status := &PipelineStatus{
		TotalJobs:  total,
		ServerTime: u.now().UTC(),
	}

	latest, err := u.runs.Latest(ctx)
	if err == nil {
		status.LatestRun = &latest
	} else if !errors.Is(err, repository.ErrNoPipelineRuns) {
		return nil, ErrInternal
	}

	if u.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.DatabaseHealthy = u.db.Ping(pingCtx) == nil
		cancel()
	}
	if u.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.RedisHealthy = u.redis.Ping(pingCtx) == nil
		cancel()
	}

	return status, nil
}
