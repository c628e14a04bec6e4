// Package store persists uploaded source files in named slots so they
// survive between CLI invocations and server restarts.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
)

// ErrSlotNotFound is returned when a slot is absent or expired.
var ErrSlotNotFound = eris.New("slot not found")

// Well-known slot names.
const (
	SlotPrimary   = "primary"
	SlotProcesses = "processes"
)

// Slot is a persisted upload. Data is empty in listings.
type Slot struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	FileName  string    `json:"file_name" yaml:"file_name"`
	Size      int64     `json:"size" yaml:"size"`
	SHA256    string    `json:"sha256" yaml:"sha256"`
	Data      []byte    `json:"-" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

// NewSlot builds a slot for data, filling size and checksum. ttl <= 0 means
// no expiry.
func NewSlot(name, fileName string, data []byte, ttl time.Duration) *Slot {
	sum := sha256.Sum256(data)
	now := time.Now().UTC().Truncate(time.Second)
	s := &Slot{
		Name:      name,
		FileName:  fileName,
		Size:      int64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
		Data:      data,
		CreatedAt: now,
	}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return s
}

// Store persists upload slots keyed by name.
type Store interface {
	// PutSlot inserts or replaces the slot with the same name and sets its ID.
	PutSlot(ctx context.Context, slot *Slot) error
	// GetSlot returns the slot with its data, or ErrSlotNotFound.
	GetSlot(ctx context.Context, name string) (*Slot, error)
	// ListSlots returns live slot metadata ordered by name.
	ListSlots(ctx context.Context) ([]Slot, error)
	DeleteSlot(ctx context.Context, name string) error
	Clear(ctx context.Context) (int, error)
	DeleteExpired(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the driver ("sqlite" or "postgres") and applies the
// schema.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "sqlite":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
