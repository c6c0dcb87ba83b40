package vm

import "fmt"

const (
	// LocalSlots is the number of variable slots in a thread's arena.
	LocalSlots = 256

	// CallStackDepth bounds gosub nesting.
	CallStackDepth = 4

	// MaxThreadName is the longest name a thread can carry.
	MaxThreadName = 17

	// DefaultThreadName is assigned to threads until script_name runs.
	DefaultThreadName = "THREAD"

	// Local slots advanced by the engine every tick.
	TimerASlot = 16
	TimerBSlot = 17
)

// ThreadState is the scheduling state derived from a thread's wake counter.
type ThreadState uint8

const (
	StateRunnable  ThreadState = iota // wake counter is zero
	StateSuspended                    // wake counter is positive
	StateYielded                      // wake counter is -1
	StateFinished                     // ended or faulted
)

func (s ThreadState) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateSuspended:
		return "suspended"
	case StateYielded:
		return "yielded"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ---------------------------------------------------------------------------
// Thread: one cooperative script thread
// ---------------------------------------------------------------------------

// Thread is the complete state of one script pseudo-thread. Threads are owned
// by a Machine and advanced only by Machine.Execute.
type Thread struct {
	ID             uint64 // creation sequence, unique per Machine
	Name           string
	BaseAddress    uint32
	ProgramCounter uint32

	Locals *Arena

	Calls      [CallStackDepth]uint32
	StackDepth int

	// WakeCounter is the number of milliseconds before the thread runs
	// again. -1 marks a yield that lasts until the end of the current tick.
	WakeCounter int32

	// Condition block state.
	ConditionCount  int
	ConditionAND    bool
	ConditionMask   bool
	ConditionResult bool

	IsMission          bool
	DeathOrArrestCheck bool
	WastedOrBusted     bool
	AllowWaitSkip      bool
	Finished           bool
}

func newThread(id uint64, pc, base uint32) *Thread {
	return &Thread{
		ID:             id,
		Name:           DefaultThreadName,
		BaseAddress:    base,
		ProgramCounter: pc,
		Locals:         NewArena(0, make([]byte, LocalSlots*VariableSize)),
	}
}

// SetName renames the thread, truncating to MaxThreadName bytes.
func (t *Thread) SetName(name string) {
	if len(name) > MaxThreadName {
		name = name[:MaxThreadName]
	}
	t.Name = name
}

// State returns the scheduling state.
func (t *Thread) State() ThreadState {
	switch {
	case t.Finished:
		return StateFinished
	case t.WakeCounter < 0:
		return StateYielded
	case t.WakeCounter > 0:
		return StateSuspended
	}
	return StateRunnable
}

// PushCall saves a return address.
func (t *Thread) PushCall(ret uint32) error {
	if t.StackDepth >= CallStackDepth {
		return ErrCallStackOverflow
	}
	t.Calls[t.StackDepth] = ret
	t.StackDepth++
	return nil
}

// PopCall removes and returns the most recent return address.
func (t *Thread) PopCall() (uint32, error) {
	if t.StackDepth == 0 {
		return 0, ErrCallStackUnderflow
	}
	t.StackDepth--
	return t.Calls[t.StackDepth], nil
}

// Local returns local slot i as an integer.
func (t *Thread) Local(i int) int32 {
	return t.Locals.Int32(uint32(i) * VariableSize)
}

// SetLocal stores an integer in local slot i.
func (t *Thread) SetLocal(i int, v int32) {
	t.Locals.SetInt32(uint32(i)*VariableSize, v)
}

// Terminate ends the thread; no further instruction runs on it.
func (t *Thread) Terminate() {
	t.WakeCounter = -1
	t.Finished = true
}

func (t *Thread) String() string {
	return fmt.Sprintf("%s#%d@0x%X", t.Name, t.ID, t.ProgramCounter)
}
