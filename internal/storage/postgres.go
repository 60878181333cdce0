package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProvider keeps room documents in the room_storage table
// (see internal/database/migrations).
type PostgresProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresProvider(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

var _ Provider = (*PostgresProvider)(nil)

func (p *PostgresProvider) Open(roomID string) Store {
	return &postgresStore{pool: p.pool, roomID: roomID}
}

type postgresStore struct {
	pool   *pgxpool.Pool
	roomID string
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM room_storage
		WHERE room_id = $1
		  AND key = $2
	`, s.roomID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_storage (room_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (room_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.roomID, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}
