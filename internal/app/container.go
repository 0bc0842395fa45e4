package app

import (
	"context"
	"log"
	"time"

	"smart-apply/internal/config"
	"smart-apply/internal/database"
	"smart-apply/internal/database/migration"
	dbpostgres "smart-apply/internal/database/postgres"
	"smart-apply/internal/domain/matching"
	"smart-apply/internal/embedding"
	"smart-apply/internal/infrastructure/cache"
	"smart-apply/internal/notifier"
	"smart-apply/internal/pipeline"
	"smart-apply/internal/pkg/jwt"
	"smart-apply/internal/repository"
	"smart-apply/internal/retry"
	"smart-apply/internal/scraper"
	"smart-apply/internal/usecase"
	useruc "smart-apply/internal/usecase/user"
	"smart-apply/internal/ws"
)

// Container wires every dependency once for both the HTTP server and the
// background worker.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB    database.DB
	Redis *cache.Redis

	Users   repository.UserRepository
	CVEmb   repository.CVEmbeddingRepository
	Jobs    repository.JobRepository
	Matches repository.MatchRecordRepository
	Runs    repository.PipelineRunRepository

	JWT      jwt.Service
	Embedder pipeline.Embedder
	Hub      *ws.Hub
	Pipeline *pipeline.Pipeline

	AuthUC     usecase.AuthUsecase
	UserSvc    *useruc.Service
	AlertUC    usecase.AlertUsecase
	PipelineUC usecase.PipelineUsecase
}

func NewContainer(cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redis := cache.NewRedis(logger)

	users := repository.NewPostgresUserRepository(db)
	cvEmb := repository.NewPostgresCVEmbeddingRepository(db)
	jobs := repository.NewPostgresJobRepository(db)
	matches := repository.NewPostgresMatchRecordRepository(db)
	runs := repository.NewPostgresPipelineRunRepository(db)

	embedder := embedding.NewRetryingEmbedder(embedding.NewClient(cfg.Embeddings), retry.DefaultConfig(), logger)

	engine, err := matching.NewEngine(cfg.Matcher.SimilarityThreshold, matches, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sender := notifier.NewSMTPSender(cfg.SMTP, logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	gozambia := scraper.NewGoZambiaScraper(db, logger, cfg.Scraper.MaxDescriptionLength)
	greatzambia := scraper.NewGreatZambiaScraper(db, logger)
	sources := []pipeline.Source{
		{Name: gozambia.Name(), Run: func(ctx context.Context) (int, error) {
			return gozambia.Scrape(ctx, cfg.Scraper.GoZambiaMaxPages, cfg.Scraper.Workers)
		}},
		{Name: greatzambia.Name(), Run: func(ctx context.Context) (int, error) {
			return greatzambia.Scrape(ctx, cfg.Scraper.GreatZambiaMaxPages)
		}},
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Sources:  sources,
		Jobs:     jobs,
		Users:    users,
		CVEmb:    cvEmb,
		Matches:  matches,
		Runs:     runs,
		Engine:   engine,
		Embedder: embedder,
		Sender:   sender,
		Locker:   redis,
		Cache:    redis,
		Events:   hub,
		Workers:  cfg.Scraper.Workers,
		Logger:   logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	jwtSvc := jwt.NewHMACService(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiresIn,
		cfg.JWT.RefreshExpiresIn,
	)

	return &Container{
		Config: cfg,
		Logger: logger,

		DB:    db,
		Redis: redis,

		Users:   users,
		CVEmb:   cvEmb,
		Jobs:    jobs,
		Matches: matches,
		Runs:    runs,

		JWT:      jwtSvc,
		Embedder: embedder,
		Hub:      hub,
		Pipeline: pipe,

		AuthUC:     usecase.NewAuthUsecase(users, jwtSvc),
		UserSvc:    useruc.NewService(users, cvEmb, embedder, logger),
		AlertUC:    usecase.NewAlertUsecase(matches),
		PipelineUC: usecase.NewPipelineUsecase(pipe, jobs, runs, db, redis, logger),
	}, nil
}

// MigrateUp applies pending SQL migrations before serving traffic.
func (c *Container) MigrateUp(ctx context.Context) error {
	runner := migration.Runner{Dir: "migrations"}
	return runner.Run(ctx, c.DB.SQLDB())
}

func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
