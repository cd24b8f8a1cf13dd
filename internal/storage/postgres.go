package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Glassolution/berry/internal/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT   NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
    id         BIGSERIAL PRIMARY KEY,
    chat_id    BIGINT NOT NULL UNIQUE,
    tz         TEXT   NOT NULL DEFAULT 'UTC',
    created_at BIGINT NOT NULL
);`

// Postgres is the same kv/subscribers layout on a shared database.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Backend = (*Postgres)(nil)

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
        INSERT INTO kv (key, value, updated_at) VALUES ($1,$2,$3)
        ON CONFLICT (key) DO UPDATE SET value=excluded.value,
            updated_at=excluded.updated_at
    `, key, value, time.Now().Unix())
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE key=$1`, key)
	return err
}

func (p *Postgres) UpsertSubscriber(ctx context.Context, s *models.Subscriber) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	_, err := p.pool.Exec(ctx, `
        INSERT INTO subscribers (chat_id, tz, created_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (chat_id) DO UPDATE SET tz=excluded.tz
    `, s.ChatID, s.TZ, s.CreatedAt)
	return err
}

func (p *Postgres) GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	var s models.Subscriber
	err := p.pool.QueryRow(ctx, `
        SELECT id, chat_id, tz, created_at
        FROM subscribers WHERE chat_id=$1`, chatID,
	).Scan(&s.ID, &s.ChatID, &s.TZ, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, chat_id, tz, created_at FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Subscriber
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.ID, &s.ChatID, &s.TZ, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (p *Postgres) DeleteSubscriber(ctx context.Context, chatID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM subscribers WHERE chat_id=$1`, chatID)
	return err
}
