package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"smart-apply/internal/domain/match"
	"smart-apply/internal/domain/matching"
	"smart-apply/internal/domain/user"
	"smart-apply/internal/infrastructure/cache"
	"smart-apply/internal/notifier"
	"smart-apply/internal/repository"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when another pipeline run holds the lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Source is one scrape target. Run returns how many postings were newly
// inserted.
type Source struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Embedder turns text into a vector. Satisfied by embedding.Client and its
// retrying wrapper.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// RunLocker serializes pipeline runs. Satisfied by cache.Redis. Release only
// succeeds for the run that holds the lock.
type RunLocker interface {
	AcquireRunLock(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, runID string) error
}

// EmbeddingCache avoids re-embedding identical text. Satisfied by
// cache.Redis.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float64, bool, error)
	SetEmbedding(ctx context.Context, key string, vec []float64, ttl time.Duration) error
}

// EventSink receives run lifecycle events, e.g. the websocket hub.
type EventSink interface {
	Publish(event Event)
}

type Event struct {
	Type    string    `json:"type"`
	RunID   uuid.UUID `json:"run_id"`
	At      time.Time `json:"at"`
	Summary *Summary  `json:"summary,omitempty"`
}

type Summary struct {
	RunID        uuid.UUID `json:"run_id"`
	JobsFetched  int       `json:"jobs_fetched"`
	MatchesFound int       `json:"matches_found"`
	EmailsSent   int       `json:"emails_sent"`
	PairsSkipped int       `json:"pairs_skipped"`
}

type Pipeline struct {
	sources []Source

	jobs    repository.JobRepository
	users   repository.UserRepository
	cvEmb   repository.CVEmbeddingRepository
	matches repository.MatchRecordRepository
	runs    repository.PipelineRunRepository

	engine   *matching.Engine
	embedder Embedder
	sender   notifier.Sender

	locker RunLocker
	cache  EmbeddingCache
	events EventSink

	workers int
	lockTTL time.Duration

	log *log.Logger
}

type Deps struct {
	Sources []Source

	Jobs    repository.JobRepository
	Users   repository.UserRepository
	CVEmb   repository.CVEmbeddingRepository
	Matches repository.MatchRecordRepository
	Runs    repository.PipelineRunRepository

	Engine   *matching.Engine
	Embedder Embedder
	Sender   notifier.Sender

	Locker RunLocker
	Cache  EmbeddingCache
	Events EventSink

	Workers int
	Logger  *log.Logger
}

func New(d Deps) (*Pipeline, error) {
	if d.Jobs == nil || d.Users == nil || d.CVEmb == nil || d.Matches == nil || d.Runs == nil {
		return nil, fmt.Errorf("pipeline: missing repository")
	}
	if d.Engine == nil {
		return nil, fmt.Errorf("pipeline: missing matching engine")
	}
	if d.Embedder == nil {
		return nil, fmt.Errorf("pipeline: missing embedder")
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	return &Pipeline{
		sources:  d.Sources,
		jobs:     d.Jobs,
		users:    d.Users,
		cvEmb:    d.CVEmb,
		matches:  d.Matches,
		runs:     d.Runs,
		engine:   d.Engine,
		embedder: d.Embedder,
		sender:   d.Sender,
		locker:   d.Locker,
		cache:    d.Cache,
		events:   d.Events,
		workers:  d.Workers,
		lockTTL:  30 * time.Minute,
		log:      d.Logger,
	}, nil
}

// Run executes one full cycle: scrape, embed pending postings, match every
// CV against unseen postings, notify and persist. Only one run may execute
// at a time.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p == nil {
		return Summary{}, fmt.Errorf("nil pipeline")
	}

	runID := uuid.New()
	summary := Summary{RunID: runID}

	if p.locker != nil {
		ok, err := p.locker.AcquireRunLock(ctx, runID.String(), p.lockTTL)
		if err != nil {
			return summary, err
		}
		if !ok {
			return summary, ErrRunInProgress
		}
		defer func() {
			_ = p.locker.ReleaseRunLock(context.Background(), runID.String())
		}()
	}

	start := time.Now()
	if err := p.runs.Create(ctx, runID, start.UTC()); err != nil {
		return summary, err
	}

	p.log.Printf("pipeline=match run_id=%s status=started", runID)
	p.publish(Event{Type: "run_started", RunID: runID, At: start.UTC()})

	status := "finished"
	runErr := p.execute(ctx, runID, &summary)
	if runErr != nil {
		status = "failed"
	}

	finish := repository.PipelineRun{
		ID:           runID,
		Status:       status,
		JobsFetched:  summary.JobsFetched,
		MatchesFound: summary.MatchesFound,
		EmailsSent:   summary.EmailsSent,
		PairsSkipped: summary.PairsSkipped,
	}
	if err := p.runs.Finish(context.Background(), finish); err != nil {
		p.log.Printf("pipeline=match run_id=%s step=finish status=error err=%v", runID, err)
	}

	p.log.Printf("pipeline=match run_id=%s status=%s jobs_fetched=%d matches_found=%d emails_sent=%d pairs_skipped=%d duration=%s",
		runID, status, summary.JobsFetched, summary.MatchesFound, summary.EmailsSent, summary.PairsSkipped, time.Since(start))
	p.publish(Event{Type: "run_" + status, RunID: runID, At: time.Now().UTC(), Summary: &summary})

	return summary, runErr
}

func (p *Pipeline) execute(ctx context.Context, runID uuid.UUID, summary *Summary) error {
	fetched := p.runScrapers(ctx, runID)
	summary.JobsFetched = fetched

	if err := p.embedPending(ctx, runID); err != nil {
		return err
	}

	return p.matchAndNotify(ctx, runID, summary)
}

// runScrapers never fails the run: a dead source just means no new postings
// from it this cycle.
func (p *Pipeline) runScrapers(ctx context.Context, runID uuid.UUID) int {
	total := 0
	for _, src := range p.sources {
		if src.Run == nil {
			continue
		}
		stepStart := time.Now()
		n, err := src.Run(ctx)
		if err != nil {
			p.log.Printf("pipeline=match run_id=%s step=scrape source=%q status=error err=%v", runID, src.Name, err)
			continue
		}
		total += n
		p.log.Printf("pipeline=match run_id=%s step=scrape source=%q status=ok inserted=%d duration=%s", runID, src.Name, n, time.Since(stepStart))
	}
	return total
}

// embedPending vectorizes postings that have no embedding yet. Failures are
// logged and the posting stays pending for the next run.
func (p *Pipeline) embedPending(ctx context.Context, runID uuid.UUID) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batch, err := p.jobs.ListPendingEmbedding(ctx, 100)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		pool := NewWorkerPool(p.workers, p.workers*2)
		results := pool.Run(ctx)

		// Drain while submitting: a batch can exceed the result buffer, and
		// a full buffer blocks Submit with no way out.
		var failed int
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for r := range results {
				if r.Err != nil {
					failed++
				}
			}
		}()

		var embedded atomic.Int64
		for _, j := range batch {
			j := j
			pool.Submit(func(ctx context.Context) Result {
				vec, err := p.embedText(ctx, postingText(j.Title, j.Company, j.Location, j.Description))
				if err != nil {
					p.log.Printf("pipeline=match run_id=%s step=embed job_id=%s status=error err=%v", runID, j.ID, err)
					return Result{Err: err}
				}
				if err := p.jobs.SetEmbedding(ctx, j.ID, vec); err != nil {
					p.log.Printf("pipeline=match run_id=%s step=embed job_id=%s status=error err=%v", runID, j.ID, err)
					return Result{Err: err}
				}
				embedded.Add(1)
				return Result{}
			})
		}
		pool.Close()
		<-drained

		p.log.Printf("pipeline=match run_id=%s step=embed status=ok embedded=%d failed=%d", runID, embedded.Load(), failed)

		// Failed postings remain pending; without progress another pass
		// would loop on the same batch.
		if int(embedded.Load()) == 0 {
			return nil
		}
	}
}

func (p *Pipeline) matchAndNotify(ctx context.Context, runID uuid.UUID, summary *Summary) error {
	for off := 0; ; {
		users, err := p.users.ListWithCV(ctx, 200, off)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}

		for _, u := range users {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := p.matchUser(ctx, runID, u.ID, u.Name, u.Email, u.CVText, summary); err != nil {
				p.log.Printf("pipeline=match run_id=%s step=match user_id=%s status=error err=%v", runID, u.ID, err)
			}
		}

		off += len(users)
	}
}

func (p *Pipeline) matchUser(ctx context.Context, runID, userID uuid.UUID, name, email, cvText string, summary *Summary) error {
	cvVec, err := p.cvVector(ctx, userID, cvText)
	if err != nil {
		return err
	}

	postings, err := p.jobs.ListCandidatesForUser(ctx, userID, 500)
	if err != nil {
		return err
	}
	if len(postings) == 0 {
		return nil
	}

	candidates := make([]matching.Candidate, 0, len(postings))
	byID := make(map[uuid.UUID]int, len(postings))
	for i, posting := range postings {
		candidates = append(candidates, matching.Candidate{JobID: posting.ID, Vector: posting.Embedding})
		byID[posting.ID] = i
	}

	res, err := p.engine.Match(ctx, userID, cvVec, candidates)
	if err != nil {
		return err
	}
	summary.PairsSkipped += res.Skipped
	if len(res.Intents) == 0 {
		return nil
	}

	digest := notifier.DigestData{Name: name}
	for _, intent := range res.Intents {
		posting := postings[byID[intent.JobID]]
		digest.Matches = append(digest.Matches, notifier.DigestMatch{
			Title:    posting.Title,
			Company:  posting.Company,
			Location: posting.Location,
			Score:    intent.Score,
			URL:      posting.URL,
		})
	}

	// Send before persisting: losing the record risks one duplicate email
	// next run, losing the email loses the alert for good.
	if p.sender != nil {
		subject, html, err := notifier.RenderDigest(digest)
		if err != nil {
			return err
		}
		if err := p.sender.SendHTML(ctx, email, subject, html); err != nil {
			return err
		}
		summary.EmailsSent++
	}

	for _, intent := range res.Intents {
		inserted, err := p.matches.Insert(ctx, match.Record{
			UserID: intent.UserID,
			JobID:  intent.JobID,
			Score:  intent.Score,
			RunID:  runID,
		})
		if err != nil {
			// The pair stays unrecorded, so the next run may email it again;
			// that beats silently losing the alert.
			p.log.Printf("pipeline=match run_id=%s step=persist user_id=%s job_id=%s status=error err=%v", runID, intent.UserID, intent.JobID, err)
			continue
		}
		if !inserted {
			// A concurrent run recorded the pair first.
			p.log.Printf("pipeline=match run_id=%s step=persist user_id=%s job_id=%s status=duplicate", runID, intent.UserID, intent.JobID)
			continue
		}
		summary.MatchesFound++
	}

	p.log.Printf("pipeline=match run_id=%s step=match user_id=%s status=ok matches=%d skipped=%d", runID, userID, len(res.Intents), res.Skipped)
	return nil
}

// cvVector loads the stored CV embedding, re-embedding from the CV text when
// none exists yet (e.g. the embedding provider was down at upload time).
func (p *Pipeline) cvVector(ctx context.Context, userID uuid.UUID, cvText string) ([]float64, error) {
	stored, err := p.cvEmb.Get(ctx, userID)
	if err == nil {
		return stored.Embedding, nil
	}
	if !errors.Is(err, repository.ErrCVEmbeddingNotFound) {
		return nil, err
	}

	vec, err := p.embedText(ctx, cvText)
	if err != nil {
		return nil, err
	}
	if err := p.cvEmb.Replace(ctx, user.CVEmbedding{UserID: userID, Embedding: vec, Model: p.embedder.Model()}); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *Pipeline) embedText(ctx context.Context, text string) ([]float64, error) {
	key := cache.EmbeddingKey(p.embedder.Model(), text)
	if p.cache != nil {
		if vec, ok, err := p.cache.GetEmbedding(ctx, key); err == nil && ok {
			return vec, nil
		}
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		_ = p.cache.SetEmbedding(ctx, key, vec, 0)
	}
	return vec, nil
}

func (p *Pipeline) publish(e Event) {
	if p.events != nil {
		p.events.Publish(e)
	}
}

func postingText(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
