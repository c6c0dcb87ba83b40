package save

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/scmvm/vm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "saves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(ticks uint64) *vm.Snapshot {
	return &vm.Snapshot{
		GlobalBase: 8,
		Globals:    []byte{1, 0, 0, 0, 2, 0, 0, 0},
		NextID:     1,
		Ticks:      ticks,
		Threads: []vm.ThreadSnapshot{{
			ID:             1,
			Name:           "MAIN",
			ProgramCounter: 0x120,
			Locals:         make([]byte, vm.LocalSlots*vm.VariableSize),
			WakeCounter:    250,
		}},
	}
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Put("default", "main.scm", testSnapshot(7))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "default", rec.Slot)
	assert.Equal(t, "main.scm", rec.Script)
	assert.Equal(t, uint64(7), rec.Ticks)
	assert.False(t, rec.CreatedAt.IsZero())

	snap, err := rec.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(7).Globals, snap.Globals)
	require.Len(t, snap.Threads, 1)
	assert.Equal(t, "MAIN", snap.Threads[0].Name)
	assert.Equal(t, int32(250), snap.Threads[0].WakeCounter)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Latest("nothing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(uuid.New()), ErrNotFound)
}

func TestLatestAndList(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Put("a", "main.scm", testSnapshot(1))
	require.NoError(t, err)
	_, err = s.Put("b", "main.scm", testSnapshot(2))
	require.NoError(t, err)
	last, err := s.Put("a", "main.scm", testSnapshot(3))
	require.NoError(t, err)

	rec, err := s.Latest("a")
	require.NoError(t, err)
	assert.Equal(t, last, rec.ID)
	assert.Equal(t, uint64(3), rec.Ticks)

	inA, err := s.List("a")
	require.NoError(t, err)
	require.Len(t, inA, 2)
	assert.Equal(t, uint64(3), inA[0].Ticks)
	assert.Equal(t, uint64(1), inA[1].Ticks)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Put("a", "main.scm", testSnapshot(1))
	require.NoError(t, err)
	require.NoError(t, s.Delete(id))

	_, err = s.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Put("a", "main.scm", testSnapshot(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.Ticks)
	assert.Equal(t, path, s.Path())
}
