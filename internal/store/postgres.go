package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS slots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	file_name  TEXT NOT NULL,
	size       BIGINT NOT NULL,
	sha256     TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_slots_expires_at ON slots(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) PutSlot(ctx context.Context, slot *Slot) error {
	id := uuid.New().String()
	var expires *time.Time
	if !slot.ExpiresAt.IsZero() {
		expires = &slot.ExpiresAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO slots (id, name, file_name, size, sha256, data, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (name) DO UPDATE SET id = $1, file_name = $3, size = $4, sha256 = $5,
		   data = $6, created_at = $7, expires_at = $8`,
		id, slot.Name, slot.FileName, slot.Size, slot.SHA256, slot.Data, slot.CreatedAt, expires,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: put slot %s", slot.Name)
	}
	slot.ID = id
	return nil
}

func (s *PostgresStore) GetSlot(ctx context.Context, name string) (*Slot, error) {
	var slot Slot
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, file_name, size, sha256, data, created_at, COALESCE(expires_at, 'epoch')
		 FROM slots WHERE name = $1 AND (expires_at IS NULL OR expires_at > now())`,
		name,
	).Scan(&slot.ID, &slot.Name, &slot.FileName, &slot.Size, &slot.SHA256, &slot.Data, &slot.CreatedAt, &slot.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrSlotNotFound, "postgres: get slot %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get slot %s", name)
	}
	slot.ExpiresAt = epochToZero(slot.ExpiresAt)
	return &slot, nil
}

func (s *PostgresStore) ListSlots(ctx context.Context) ([]Slot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, file_name, size, sha256, created_at, COALESCE(expires_at, 'epoch')
		 FROM slots WHERE expires_at IS NULL OR expires_at > now() ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list slots")
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.ID, &slot.Name, &slot.FileName, &slot.Size, &slot.SHA256, &slot.CreatedAt, &slot.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan slot")
		}
		slot.ExpiresAt = epochToZero(slot.ExpiresAt)
		out = append(out, slot)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list slots")
}

func (s *PostgresStore) DeleteSlot(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM slots WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete slot %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrSlotNotFound, "postgres: delete slot %s", name)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM slots`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear slots")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM slots WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired slots")
	}
	return int(tag.RowsAffected()), nil
}

func epochToZero(t time.Time) time.Time {
	if t.Unix() == 0 {
		return time.Time{}
	}
	return t
}
