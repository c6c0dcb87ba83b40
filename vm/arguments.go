package vm

import (
	"fmt"
	"math"

	"github.com/chazu/scmvm/scm"
)

// ---------------------------------------------------------------------------
// Arguments: the operand bundle of one invocation
// ---------------------------------------------------------------------------

// Arguments is passed to every opcode function. It is built for a single
// invocation and must not be retained after the function returns.
type Arguments struct {
	params  []Operand
	thread  *Thread
	machine *Machine
}

// NewArguments bundles operands for an invocation on thread t.
func NewArguments(m *Machine, t *Thread, params []Operand) *Arguments {
	return &Arguments{params: params, thread: t, machine: m}
}

func (a *Arguments) Len() int            { return len(a.params) }
func (a *Arguments) Thread() *Thread     { return a.thread }
func (a *Arguments) Machine() *Machine   { return a.machine }
func (a *Arguments) Operands() []Operand { return a.params }

// World returns the machine's world hooks.
func (a *Arguments) World() World { return a.machine.world }

// Operand returns operand i, or the end-of-list marker if i is out of range.
func (a *Arguments) Operand(i int) Operand {
	if i < 0 || i >= len(a.params) {
		return Operand{}
	}
	return a.params[i]
}

func (a *Arguments) arena(ref Ref) *Arena {
	if ref.Arena == ArenaLocal {
		return a.thread.Locals
	}
	return a.machine.globals
}

// Int reads operand i as an integer. References are read at call time, so a
// write through one operand is visible to a later read through another.
func (a *Arguments) Int(i int) int32 {
	op := a.Operand(i)
	if ref, ok := op.Ref(); ok {
		return a.arena(ref).Int32(ref.Address)
	}
	if v, ok := op.Immediate(); ok {
		return v
	}
	if v, ok := op.RealImmediate(); ok {
		return int32(v)
	}
	return 0
}

// Real reads operand i as a real number.
func (a *Arguments) Real(i int) float32 {
	op := a.Operand(i)
	if ref, ok := op.Ref(); ok {
		return a.arena(ref).Float32(ref.Address)
	}
	if v, ok := op.RealImmediate(); ok {
		return v
	}
	if v, ok := op.Immediate(); ok {
		return float32(v)
	}
	return 0
}

// Str returns the string literal at operand i.
func (a *Arguments) Str(i int) string {
	return a.Operand(i).Str()
}

// Bool reads operand i as an integer flag.
func (a *Arguments) Bool(i int) bool {
	return a.Int(i) != 0
}

// Raw returns the slot bits of operand i without conversion.
func (a *Arguments) Raw(i int) uint32 {
	op := a.Operand(i)
	if ref, ok := op.Ref(); ok {
		return a.arena(ref).Uint32(ref.Address)
	}
	if v, ok := op.RealImmediate(); ok {
		return math.Float32bits(v)
	}
	v, _ := op.Immediate()
	return uint32(v)
}

func (a *Arguments) target(i int) (*Arena, uint32, error) {
	if i >= len(a.params) {
		return nil, 0, fmt.Errorf("operand %d: %w", i, ErrMissingOperand)
	}
	ref, ok := a.params[i].Ref()
	if !ok {
		return nil, 0, fmt.Errorf("operand %d (%s): %w", i, a.params[i].Type, ErrNotLvalue)
	}
	return a.arena(ref), ref.Address, nil
}

// SetInt writes an integer through operand i, which must be a variable
// reference. Writes outside the arena are dropped.
func (a *Arguments) SetInt(i int, v int32) error {
	arena, addr, err := a.target(i)
	if err != nil {
		return err
	}
	arena.SetInt32(addr, v)
	return nil
}

// SetReal writes a real number through operand i.
func (a *Arguments) SetReal(i int, v float32) error {
	arena, addr, err := a.target(i)
	if err != nil {
		return err
	}
	arena.SetFloat32(addr, v)
	return nil
}

// SetBool writes 1 or 0 through operand i.
func (a *Arguments) SetBool(i int, v bool) error {
	var n int32
	if v {
		n = 1
	}
	return a.SetInt(i, n)
}

// Object resolves operand i as an object handle.
func (a *Arguments) Object(i int) (Object, bool) {
	return a.World().Object(a.Int(i))
}

// Player resolves operand i as a player slot.
func (a *Arguments) Player(i int) (Player, bool) {
	return a.World().Player(a.Int(i))
}

// Model resolves operand i as a model id. Negative ids index the container's
// model table and are translated by name through the world.
func (a *Arguments) Model(i int) (int32, bool) {
	id := a.Int(i)
	if id >= 0 {
		return id, true
	}
	name, ok := a.machine.file.Model(int(-id))
	if !ok {
		return 0, false
	}
	return a.World().ModelID(name)
}

// SetCondition records the outcome of a command that also reports a
// result, such as a check folded by a later jump.
func (a *Arguments) SetCondition(v bool) {
	a.thread.ConditionResult = v
}

// Is reports whether operand i has type t.
func (a *Arguments) Is(i int, t scm.Type) bool {
	return a.Operand(i).Type == t
}
