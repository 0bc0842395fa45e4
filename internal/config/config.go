package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Embeddings EmbeddingsConfig
	Matcher    MatcherConfig
	SMTP       SMTPConfig
	Scraper    ScraperConfig
	Worker     WorkerConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type JWTConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
}

type EmbeddingsConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type MatcherConfig struct {
	SimilarityThreshold float64
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

type ScraperConfig struct {
	GoZambiaMaxPages     int
	GreatZambiaMaxPages  int
	Workers              int
	MaxDescriptionLength int
}

type WorkerConfig struct {
	Interval time.Duration
}

const defaultSimilarityThreshold = 0.70

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidThreshold   = errors.New("similarity threshold must be within [0,1]")
)

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE"),

		ConnectTimeout:        durationOrDefault(opt("DB_CONNECT_TIMEOUT"), 5*time.Second),
		PoolMaxConns:          int32(intOrDefault(opt("DB_POOL_MAX_CONNS"), 10)),
		PoolMinConns:          int32(intOrDefault(opt("DB_POOL_MIN_CONNS"), 0)),
		PoolMaxConnLifetime:   durationOrDefault(opt("DB_POOL_MAX_CONN_LIFETIME"), time.Hour),
		PoolMaxConnIdleTime:   durationOrDefault(opt("DB_POOL_MAX_CONN_IDLE_TIME"), 30*time.Minute),
		PoolHealthCheckPeriod: durationOrDefault(opt("DB_POOL_HEALTH_CHECK_PERIOD"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:     opt("JWT_ACCESS_SECRET"),
		RefreshSecret:    opt("JWT_REFRESH_SECRET"),
		AccessExpiresIn:  durationOrDefault(opt("JWT_ACCESS_EXPIRES_IN"), 15*time.Minute),
		RefreshExpiresIn: durationOrDefault(opt("JWT_REFRESH_EXPIRES_IN"), 7*24*time.Hour),
	}

	cfg.Embeddings = EmbeddingsConfig{
		BaseURL: opt("EMBEDDINGS_BASE_URL"),
		APIKey:  opt("EMBEDDINGS_API_KEY"),
		Model:   opt("EMBEDDINGS_MODEL"),
		Timeout: durationOrDefault(opt("EMBEDDINGS_TIMEOUT"), 30*time.Second),
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}

	threshold, err := thresholdFromEnv(opt("MATCH_THRESHOLD"))
	if err != nil {
		return Config{}, err
	}
	cfg.Matcher = MatcherConfig{SimilarityThreshold: threshold}

	cfg.SMTP = SMTPConfig{
		Host:     opt("SMTP_HOST"),
		Port:     opt("SMTP_PORT"),
		From:     opt("SMTP_FROM"),
		Password: opt("SMTP_PASSWORD"),
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == "" {
		cfg.SMTP.Port = "587"
	}

	cfg.Scraper = ScraperConfig{
		GoZambiaMaxPages:     intOrDefault(opt("GOZAMBIA_MAX_PAGES"), 3),
		GreatZambiaMaxPages:  intOrDefault(opt("GREATZAMBIA_MAX_PAGES"), 5),
		Workers:              intOrDefault(opt("SCRAPER_WORKERS"), 4),
		MaxDescriptionLength: intOrDefault(opt("MAX_DESCRIPTION_LENGTH"), 4000),
	}

	cfg.Worker = WorkerConfig{
		Interval: durationOrDefault(opt("WORKER_INTERVAL"), 6*time.Hour),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

// thresholdFromEnv parses MATCH_THRESHOLD. A value outside [0,1] is a fatal
// configuration error, not something to clamp at runtime.
func thresholdFromEnv(raw string) (float64, error) {
	if raw == "" {
		return defaultSimilarityThreshold, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("MATCH_THRESHOLD: %w", err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: got %v", errInvalidThreshold, v)
	}
	return v, nil
}

func intOrDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func durationOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
