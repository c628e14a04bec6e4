package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestNewSlot(t *testing.T) {
	s := NewSlot(SlotPrimary, "cfem.csv", []byte("abc"), time.Hour)
	assert.Equal(t, int64(3), s.Size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", s.SHA256)
	assert.Equal(t, time.Hour, s.ExpiresAt.Sub(s.CreatedAt))

	assert.True(t, NewSlot("x", "", nil, 0).ExpiresAt.IsZero())
}

func TestSQLite_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	slot := NewSlot(SlotPrimary, "cfem.csv", []byte("Ano;UF\n2023;MG\n"), time.Hour)
	require.NoError(t, st.PutSlot(ctx, slot))
	assert.NotEmpty(t, slot.ID)

	got, err := st.GetSlot(ctx, SlotPrimary)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, got.ID)
	assert.Equal(t, "cfem.csv", got.FileName)
	assert.Equal(t, slot.Data, got.Data)
	assert.Equal(t, slot.SHA256, got.SHA256)
	assert.True(t, slot.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, slot.ExpiresAt.Equal(got.ExpiresAt))
}

func TestSQLite_PutReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotPrimary, "a.csv", []byte("a"), 0)))
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotPrimary, "b.csv", []byte("bb"), 0)))

	got, err := st.GetSlot(ctx, SlotPrimary)
	require.NoError(t, err)
	assert.Equal(t, "b.csv", got.FileName)
	assert.Equal(t, int64(2), got.Size)
	assert.True(t, got.ExpiresAt.IsZero())

	slots, err := st.ListSlots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetSlot(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSlotNotFound))
}

func TestSQLite_Expiry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotPrimary, "a.csv", []byte("a"), time.Hour)))
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotProcesses, "p.csv", []byte("p"), 0)))

	st.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := st.GetSlot(ctx, SlotPrimary)
	assert.True(t, errors.Is(err, ErrSlotNotFound))

	slots, err := st.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, SlotProcesses, slots[0].Name)
	assert.Nil(t, slots[0].Data)

	n, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_ListOrderedByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotProcesses, "p.csv", []byte("p"), 0)))
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotPrimary, "a.csv", []byte("a"), 0)))

	slots, err := st.ListSlots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, SlotPrimary, slots[0].Name)
	assert.Equal(t, SlotProcesses, slots[1].Name)
}

func TestSQLite_DeleteAndClear(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotPrimary, "a.csv", []byte("a"), 0)))
	require.NoError(t, st.PutSlot(ctx, NewSlot(SlotProcesses, "p.csv", []byte("p"), 0)))

	require.NoError(t, st.DeleteSlot(ctx, SlotPrimary))
	err := st.DeleteSlot(ctx, SlotPrimary)
	assert.True(t, errors.Is(err, ErrSlotNotFound))

	n, err := st.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	slots, err := st.ListSlots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "slots.db"), nil)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	slots, err := s.ListSlots(ctx)
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = Open(ctx, "mysql", "", nil)
	assert.ErrorContains(t, err, "unknown driver")
}
