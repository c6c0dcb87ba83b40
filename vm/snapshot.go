package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
)

// ErrSnapshotMismatch is returned when restoring a snapshot taken from a
// container with a different global section.
var ErrSnapshotMismatch = errors.New("snapshot does not match container")

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// ---------------------------------------------------------------------------
// Snapshot: serializable machine state
// ---------------------------------------------------------------------------

// Snapshot is the save state of a Machine: the global section and every
// live thread. The container and registry are not included.
type Snapshot struct {
	GlobalBase uint32           `cbor:"1,keyasint"`
	Globals    []byte           `cbor:"2,keyasint"`
	Threads    []ThreadSnapshot `cbor:"3,keyasint,omitempty"`
	NextID     uint64           `cbor:"4,keyasint"`
	Ticks      uint64           `cbor:"5,keyasint"`
	Elapsed    uint64           `cbor:"6,keyasint"`
}

// ThreadSnapshot is the saved state of one thread.
type ThreadSnapshot struct {
	ID             uint64                 `cbor:"1,keyasint"`
	Name           string                 `cbor:"2,keyasint"`
	BaseAddress    uint32                 `cbor:"3,keyasint"`
	ProgramCounter uint32                 `cbor:"4,keyasint"`
	Locals         []byte                 `cbor:"5,keyasint"`
	Calls          [CallStackDepth]uint32 `cbor:"6,keyasint"`
	StackDepth     int                    `cbor:"7,keyasint"`
	WakeCounter    int32                  `cbor:"8,keyasint"`

	ConditionCount  int  `cbor:"9,keyasint"`
	ConditionAND    bool `cbor:"10,keyasint"`
	ConditionMask   bool `cbor:"11,keyasint"`
	ConditionResult bool `cbor:"12,keyasint"`

	IsMission          bool `cbor:"13,keyasint"`
	DeathOrArrestCheck bool `cbor:"14,keyasint"`
	WastedOrBusted     bool `cbor:"15,keyasint"`
	AllowWaitSkip      bool `cbor:"16,keyasint"`
}

// Snapshot captures the machine state. Threads spawned during the last tick
// are included and become active on the first tick after a restore.
func (m *Machine) Snapshot() *Snapshot {
	s := &Snapshot{
		GlobalBase: m.globals.Base(),
		Globals:    append([]byte(nil), m.globals.Bytes()...),
		NextID:     m.nextID,
		Ticks:      m.ticks,
		Elapsed:    m.elapsed,
	}
	for _, t := range m.Threads() {
		if t.Finished {
			continue
		}
		s.Threads = append(s.Threads, ThreadSnapshot{
			ID:                 t.ID,
			Name:               t.Name,
			BaseAddress:        t.BaseAddress,
			ProgramCounter:     t.ProgramCounter,
			Locals:             append([]byte(nil), t.Locals.Bytes()...),
			Calls:              t.Calls,
			StackDepth:         t.StackDepth,
			WakeCounter:        t.WakeCounter,
			ConditionCount:     t.ConditionCount,
			ConditionAND:       t.ConditionAND,
			ConditionMask:      t.ConditionMask,
			ConditionResult:    t.ConditionResult,
			IsMission:          t.IsMission,
			DeathOrArrestCheck: t.DeathOrArrestCheck,
			WastedOrBusted:     t.WastedOrBusted,
			AllowWaitSkip:      t.AllowWaitSkip,
		})
	}
	return s
}

// Restore replaces the machine state with s. The snapshot must come from a
// container with the same global section layout.
func (m *Machine) Restore(s *Snapshot) error {
	if s.GlobalBase != m.globals.Base() || len(s.Globals) != m.globals.Len() {
		return fmt.Errorf("globals at 0x%X+%d, want 0x%X+%d: %w",
			s.GlobalBase, len(s.Globals), m.globals.Base(), m.globals.Len(), ErrSnapshotMismatch)
	}

	threads := make([]*Thread, 0, len(s.Threads))
	for _, ts := range s.Threads {
		if len(ts.Locals) != LocalSlots*VariableSize {
			return fmt.Errorf("thread %s: %d bytes of locals: %w", ts.Name, len(ts.Locals), ErrSnapshotMismatch)
		}
		if ts.StackDepth < 0 || ts.StackDepth > CallStackDepth {
			return fmt.Errorf("thread %s: stack depth %d: %w", ts.Name, ts.StackDepth, ErrSnapshotMismatch)
		}
		t := newThread(ts.ID, ts.ProgramCounter, ts.BaseAddress)
		copy(t.Locals.Bytes(), ts.Locals)
		t.Name = ts.Name
		t.Calls = ts.Calls
		t.StackDepth = ts.StackDepth
		t.WakeCounter = ts.WakeCounter
		t.ConditionCount = ts.ConditionCount
		t.ConditionAND = ts.ConditionAND
		t.ConditionMask = ts.ConditionMask
		t.ConditionResult = ts.ConditionResult
		t.IsMission = ts.IsMission
		t.DeathOrArrestCheck = ts.DeathOrArrestCheck
		t.WastedOrBusted = ts.WastedOrBusted
		t.AllowWaitSkip = ts.AllowWaitSkip
		threads = append(threads, t)
	}

	copy(m.globals.Bytes(), s.Globals)
	m.threads = nil
	m.pending = threads
	m.nextID = s.NextID
	m.ticks = s.Ticks
	m.elapsed = s.Elapsed

	m.logger.Info("snapshot restored", zap.Int("threads", len(threads)), zap.Uint64("ticks", s.Ticks))
	return nil
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
