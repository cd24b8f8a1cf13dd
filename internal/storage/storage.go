package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Glassolution/berry/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// Backend is what the rest of the service needs from persistence: a flat
// key-value table plus the notification subscribers.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	UpsertSubscriber(ctx context.Context, s *models.Subscriber) error
	GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	DeleteSubscriber(ctx context.Context, chatID int64) error

	Close() error
}

type DB struct{ *sql.DB }

var _ Backend = (*DB)(nil)

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err = migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- kv --------------------------------------------------------------

func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO kv (key, value, updated_at) VALUES (?,?,?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value,
            updated_at=excluded.updated_at
    `, key, value, time.Now().Unix())
	return err
}

func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := d.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, key)
	return err
}

// ---------- subscribers -----------------------------------------------------

func (d *DB) UpsertSubscriber(ctx context.Context, s *models.Subscriber) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	_, err := d.ExecContext(ctx, `
        INSERT INTO subscribers (chat_id, tz, created_at)
        VALUES (?,?,?)
        ON CONFLICT(chat_id) DO UPDATE SET tz=excluded.tz
    `, s.ChatID, s.TZ, s.CreatedAt)
	return err
}

func (d *DB) GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	var s models.Subscriber

	err := d.QueryRowContext(ctx, `
        SELECT id, chat_id, tz, created_at
        FROM subscribers WHERE chat_id=?`, chatID,
	).Scan(&s.ID, &s.ChatID, &s.TZ, &s.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := d.QueryContext(ctx, `SELECT id, chat_id, tz, created_at FROM subscribers ORDER BY id`)
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

func (d *DB) DeleteSubscriber(ctx context.Context, chatID int64) error {
	_, err := d.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id=?`, chatID)
	return err
}
