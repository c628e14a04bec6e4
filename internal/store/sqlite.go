package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Times are stored as unix seconds; expires_at 0 means no expiry.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS slots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	file_name  TEXT NOT NULL,
	size       INTEGER NOT NULL,
	sha256     TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_slots_expires_at ON slots(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutSlot(ctx context.Context, slot *Slot) error {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (id, name, file_name, size, sha256, data, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET id = excluded.id, file_name = excluded.file_name,
		   size = excluded.size, sha256 = excluded.sha256, data = excluded.data,
		   created_at = excluded.created_at, expires_at = excluded.expires_at`,
		id, slot.Name, slot.FileName, slot.Size, slot.SHA256, slot.Data,
		slot.CreatedAt.Unix(), unixOrZero(slot.ExpiresAt),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: put slot %s", slot.Name)
	}
	slot.ID = id
	return nil
}

func (s *SQLiteStore) GetSlot(ctx context.Context, name string) (*Slot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, file_name, size, sha256, data, created_at, expires_at
		 FROM slots WHERE name = ? AND (expires_at = 0 OR expires_at > ?)`,
		name, s.now().Unix(),
	)
	var slot Slot
	var created, expires int64
	err := row.Scan(&slot.ID, &slot.Name, &slot.FileName, &slot.Size, &slot.SHA256, &slot.Data, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrSlotNotFound, "sqlite: get slot %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get slot %s", name)
	}
	slot.CreatedAt, slot.ExpiresAt = fromUnix(created), fromUnix(expires)
	return &slot, nil
}

func (s *SQLiteStore) ListSlots(ctx context.Context) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, file_name, size, sha256, created_at, expires_at
		 FROM slots WHERE expires_at = 0 OR expires_at > ? ORDER BY name`,
		s.now().Unix(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list slots")
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var slot Slot
		var created, expires int64
		if err := rows.Scan(&slot.ID, &slot.Name, &slot.FileName, &slot.Size, &slot.SHA256, &created, &expires); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan slot")
		}
		slot.CreatedAt, slot.ExpiresAt = fromUnix(created), fromUnix(expires)
		out = append(out, slot)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list slots")
}

func (s *SQLiteStore) DeleteSlot(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete slot %s", name)
	}
	return checkRowsAffected(res, name)
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM slots`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear slots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM slots WHERE expires_at > 0 AND expires_at <= ?`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired slots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrSlotNotFound, "slot %s", name)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
