package repository

import (
	"context"
	"time"
)

type StartReceptionInput struct {
	ID        string
	Kind      ReceptionKind
	RoomID    *int
	Port      int
	StartedAt time.Time
}

type RecordSenderInput struct {
	ReceptionID string
	SSRC        uint32
}

type EndReceptionInput struct {
	ReceptionID string
	EndedAt     time.Time
}

type Repository interface {
	StartReception(ctx context.Context, input StartReceptionInput) error
	RecordSender(ctx context.Context, input RecordSenderInput) error
	EndReception(ctx context.Context, input EndReceptionInput) error
	ListRecentReceptions(ctx context.Context, limit int) ([]Reception, error)
}
