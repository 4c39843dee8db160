package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/roomcall/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) StartReception(ctx context.Context, input repository.StartReceptionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO receptions (id, kind, room_id, port, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.ID, string(input.Kind), input.RoomID, input.Port, input.StartedAt)
	return err
}

func (r *PostgresRepository) RecordSender(ctx context.Context, input repository.RecordSenderInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE receptions SET sender_ssrc = $2 WHERE id = $1 AND sender_ssrc IS NULL`,
		input.ReceptionID, int64(input.SSRC))
	return err
}

func (r *PostgresRepository) EndReception(ctx context.Context, input repository.EndReceptionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE receptions SET ended_at = $2 WHERE id = $1`,
		input.ReceptionID, input.EndedAt)
	return err
}

func (r *PostgresRepository) ListRecentReceptions(ctx context.Context, limit int) ([]repository.Reception, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, kind::text, room_id, port, sender_ssrc, started_at, ended_at
		 FROM receptions ORDER BY started_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Reception
	for rows.Next() {
		var (
			rec     repository.Reception
			kind    string
			roomID  *int32
			ssrc    *int64
			endedAt *time.Time
		)
		if err := rows.Scan(&rec.ID, &kind, &roomID, &rec.Port, &ssrc, &rec.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		rec.Kind = repository.ReceptionKind(kind)
		if roomID != nil {
			id := int(*roomID)
			rec.RoomID = &id
		}
		if ssrc != nil {
			s := uint32(*ssrc)
			rec.SenderSSRC = &s
		}
		rec.EndedAt = endedAt
		list = append(list, rec)
	}
	return list, rows.Err()
}
