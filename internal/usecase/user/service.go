package user

import (
	"context"
	"errors"
	"log"
	"strings"

	"smart-apply/internal/cvparse"
	"smart-apply/internal/domain/user"
	"smart-apply/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

type Service struct {
	users    repository.UserRepository
	cvEmb    repository.CVEmbeddingRepository
	embedder Embedder
	log      *log.Logger
}

func NewService(users repository.UserRepository, cvEmb repository.CVEmbeddingRepository, embedder Embedder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{users: users, cvEmb: cvEmb, embedder: embedder, log: logger}
}

func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (user.User, error) {
	usr, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}
	return sanitizeUser(usr), nil
}

// UploadCV replaces the user's CV wholesale. Existing match records are kept
// on purpose: a job already alerted stays alerted even if the new CV would
// no longer match it.
func (s *Service) UploadCV(ctx context.Context, userID uuid.UUID, filename string, data []byte) (user.User, error) {
	if len(data) == 0 {
		return user.User{}, ErrInvalidInput
	}

	text, err := cvparse.ExtractText(filename, data)
	if err != nil {
		return user.User{}, ErrInvalidInput
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return user.User{}, ErrInvalidInput
	}

	if err := s.users.ReplaceCV(ctx, userID, text, filename); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, ErrInternal
	}

	// Best effort: when the embedding provider is down the CV is still
	// stored and the next pipeline run re-embeds it.
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			s.log.Printf("usecase=upload_cv user_id=%s step=embed status=deferred err=%v", userID, err)
			_ = s.cvEmb.Delete(ctx, userID)
		} else if err := s.cvEmb.Replace(ctx, user.CVEmbedding{
			UserID:    userID,
			Embedding: vec,
			Model:     s.embedder.Model(),
		}); err != nil {
			s.log.Printf("usecase=upload_cv user_id=%s step=store_embedding status=error err=%v", userID, err)
		}
	}

	updated, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, ErrInternal
	}
	return sanitizeUser(updated), nil
}

func sanitizeUser(u user.User) user.User {
	u.PasswordHash = ""
	return u
}
