package usecase

import (
	"context"

	"smart-apply/internal/repository"

	"github.com/google/uuid"
)

type AlertUsecase interface {
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.Alert, error)
}

type Alerts struct {
	matches repository.MatchRecordRepository
}

func NewAlertUsecase(matches repository.MatchRecordRepository) *Alerts {
	return &Alerts{matches: matches}
}

func (u *Alerts) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.Alert, error) {
	alerts, err := u.matches.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, ErrInternal
	}
	return alerts, nil
}
