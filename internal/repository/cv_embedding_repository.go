package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smart-apply/internal/database"
	"smart-apply/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrCVEmbeddingNotFound = errors.New("cv embedding not found")

type CVEmbeddingRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (user.CVEmbedding, error)
	Replace(ctx context.Context, emb user.CVEmbedding) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type PostgresCVEmbeddingRepository struct {
	db database.DB
}

func NewPostgresCVEmbeddingRepository(db database.DB) *PostgresCVEmbeddingRepository {
	return &PostgresCVEmbeddingRepository{db: db}
}

func (r *PostgresCVEmbeddingRepository) Get(ctx context.Context, userID uuid.UUID) (user.CVEmbedding, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, embedding, model, created_at FROM cv_embeddings WHERE user_id = $1`,
		userID,
	)
	var emb user.CVEmbedding
	if err := row.Scan(&emb.ID, &emb.UserID, &emb.Embedding, &emb.Model, &emb.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return user.CVEmbedding{}, ErrCVEmbeddingNotFound
		}
		return user.CVEmbedding{}, err
	}
	return emb, nil
}

// Replace upserts the user's single CV embedding; a re-upload overwrites
// the previous vector wholesale.
func (r *PostgresCVEmbeddingRepository) Replace(ctx context.Context, emb user.CVEmbedding) error {
	if emb.ID == uuid.Nil {
		emb.ID = uuid.New()
	}
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO cv_embeddings (id, user_id, embedding, model, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			created_at = EXCLUDED.created_at`,
		emb.ID, emb.UserID, emb.Embedding, emb.Model, emb.CreatedAt,
	)
	return err
}

func (r *PostgresCVEmbeddingRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cv_embeddings WHERE user_id = $1`, userID)
	return err
}
