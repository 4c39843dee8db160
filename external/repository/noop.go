package repository

import (
	"context"

	"github.com/foxseedlab/roomcall/internal/repository"
)

// NoopRepository is used when no DATABASE_URL is configured.
type NoopRepository struct{}

func NewNoopRepository() repository.Repository {
	return NoopRepository{}
}

func (NoopRepository) StartReception(context.Context, repository.StartReceptionInput) error {
	return nil
}

func (NoopRepository) RecordSender(context.Context, repository.RecordSenderInput) error {
	return nil
}

func (NoopRepository) EndReception(context.Context, repository.EndReceptionInput) error {
	return nil
}

func (NoopRepository) ListRecentReceptions(context.Context, int) ([]repository.Reception, error) {
	return nil, nil
}
