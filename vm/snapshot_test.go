package vm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/scmvm/scm"
)

// counterProgram increments local 0 and $1 once per tick.
func counterProgram(base uint32) []byte {
	return scm.NewEmitter().
		Op(OpAddIntLVar).Local(0).Int8(1).
		Op(0x0008).Global(1).Int8(1).
		Op(OpWait).Int8(0).
		Op(OpGoto).Int32(int32(base)).
		Bytes()
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := buildFile(t, 64, nil, counterProgram)
	m, _ := newTestMachine(t, f)
	th := m.StartThread(int32(f.CodeSectionOffset()), false, 100)
	th.SetName("COUNTER")
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Execute(16))
	}
	m.StartThread(int32(f.CodeSectionOffset()), true)

	snap := m.Snapshot()
	require.Len(t, snap.Threads, 2)
	assert.Equal(t, "COUNTER", snap.Threads[0].Name)
	assert.True(t, snap.Threads[1].IsMission)

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	got, err := UnmarshalSnapshot(data)
	require.NoError(t, err)

	if diff := cmp.Diff(snap, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotEncodingIsDeterministic(t *testing.T) {
	f := buildFile(t, 64, nil, counterProgram)
	m, _ := newTestMachine(t, f)
	m.StartThread(int32(f.CodeSectionOffset()), false)
	require.NoError(t, m.Execute(0))

	a, err := MarshalSnapshot(m.Snapshot())
	require.NoError(t, err)
	b, err := MarshalSnapshot(m.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRestoreContinuesExecution(t *testing.T) {
	f := buildFile(t, 64, nil, counterProgram)
	m, _ := newTestMachine(t, f)
	m.StartThread(int32(f.CodeSectionOffset()), false)
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Execute(16))
	}

	restored, _ := newTestMachine(t, f)
	require.NoError(t, restored.Restore(m.Snapshot()))
	assert.Equal(t, m.Ticks(), restored.Ticks())
	assert.Equal(t, int32(4), restored.Global(1))

	require.NoError(t, m.Execute(16))
	require.NoError(t, restored.Execute(16))

	assert.Equal(t, m.Global(1), restored.Global(1))
	require.Len(t, restored.Threads(), 1)
	assert.Equal(t, m.Threads()[0].Local(0), restored.Threads()[0].Local(0))
	assert.Equal(t, m.Threads()[0].Local(TimerASlot), restored.Threads()[0].Local(TimerASlot))
	assert.Equal(t, m.Threads()[0].ProgramCounter, restored.Threads()[0].ProgramCounter)

	// ids keep increasing after a restore
	assert.Greater(t, restored.StartThread(0, false).ID, m.Threads()[0].ID)
}

func TestRestoreRejectsOtherLayout(t *testing.T) {
	small := buildFile(t, 64, nil, counterProgram)
	large := buildFile(t, 128, nil, counterProgram)
	m, _ := newTestMachine(t, small)
	other, _ := newTestMachine(t, large)

	err := other.Restore(m.Snapshot())
	assert.True(t, errors.Is(err, ErrSnapshotMismatch))
}

func TestRestoreRejectsBadThread(t *testing.T) {
	f := buildFile(t, 64, nil, counterProgram)
	m, _ := newTestMachine(t, f)
	m.StartThread(int32(f.CodeSectionOffset()), false)

	snap := m.Snapshot()
	snap.Threads[0].Locals = snap.Threads[0].Locals[:8]
	assert.ErrorIs(t, m.Restore(snap), ErrSnapshotMismatch)
}

func TestUnmarshalSnapshotGarbage(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte{0xFF, 0x00})
	assert.Error(t, err)
}
