package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"smart-apply/internal/database"
	"smart-apply/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	Create(ctx context.Context, u user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ReplaceCV(ctx context.Context, id uuid.UUID, cvText, cvFilename string) error
	ListWithCV(ctx context.Context, limit, offset int) ([]user.User, error)
}

type PostgresUserRepository struct {
	db database.DB
}

func NewPostgresUserRepository(db database.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, COALESCE(name, ''), email, password_hash, COALESCE(cv_text, ''), COALESCE(cv_filename, ''), created_at, updated_at`

func (r *PostgresUserRepository) Create(ctx context.Context, u user.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash) VALUES ($1,$2,$3,$4)`,
		u.ID, strings.TrimSpace(u.Name), strings.TrimSpace(u.Email), u.PasswordHash,
	)
	return err
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.TrimSpace(email))
	return scanUser(row)
}

func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, strings.TrimSpace(email))
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// ReplaceCV swaps the user's CV text wholesale; the previous text is gone.
func (r *PostgresUserRepository) ReplaceCV(ctx context.Context, id uuid.UUID, cvText, cvFilename string) error {
	n, err := r.db.Exec(ctx,
		`UPDATE users SET cv_text = $2, cv_filename = $3, updated_at = $4 WHERE id = $1`,
		id, cvText, strings.TrimSpace(cvFilename), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListWithCV(ctx context.Context, limit, offset int) ([]user.User, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE cv_text IS NOT NULL AND cv_text <> ''
		 ORDER BY created_at
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CVText, &u.CVFilename, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanUser(row database.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CVText, &u.CVFilename, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}
