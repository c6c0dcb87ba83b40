package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chazu/scmvm/scm"
)

// call invokes opcode id directly with the given operands.
func call(t *testing.T, m *Machine, th *Thread, id uint16, ops ...Operand) error {
	t.Helper()
	fn, ok := m.Module().Resolve(id)
	require.True(t, ok, "opcode %04X not registered", id)
	args := NewArguments(m, th, ops)
	if fn.Kind == KindCondition {
		result, err := fn.Test(args)
		th.ConditionResult = result
		return err
	}
	return fn.Call(args)
}

func libraryMachine(t *testing.T, opts ...Option) (*Machine, *Thread) {
	t.Helper()
	f := buildFile(t, 64, nil, func(uint32) []byte { return wait(1000) })
	m, _ := newTestMachine(t, f, opts...)
	return m, newThread(1, 0, 0)
}

func TestIntegerArithmetic(t *testing.T) {
	m, th := libraryMachine(t)
	v := LocalOperand(0)

	steps := []struct {
		id    uint16
		value int32
		want  int32
	}{
		{0x0006, 10, 10}, // set
		{0x000A, 5, 15},  // add
		{0x000E, 3, 12},  // sub
		{0x0012, 2, 24},  // mult
		{0x0016, 5, 4},   // div
		{0x0016, -3, -1}, // div truncates toward zero
	}
	for _, s := range steps {
		require.NoError(t, call(t, m, th, s.id, v, IntOperand(s.value)))
		assert.Equal(t, s.want, th.Local(0), "opcode %04X", s.id)
	}
}

func TestRealArithmetic(t *testing.T) {
	m, th := libraryMachine(t)
	g := GlobalOperand(m.File().GlobalSectionOffset() + 4)
	read := func() float32 { return m.Globals().Float32(m.File().GlobalSectionOffset() + 4) }

	require.NoError(t, call(t, m, th, 0x0005, g, RealOperand(7.5)))
	assert.Equal(t, float32(7.5), read())
	require.NoError(t, call(t, m, th, 0x0009, g, RealOperand(0.5)))
	assert.Equal(t, float32(8), read())
	require.NoError(t, call(t, m, th, 0x000D, g, RealOperand(2)))
	assert.Equal(t, float32(6), read())
	require.NoError(t, call(t, m, th, 0x0011, g, RealOperand(1.5)))
	assert.Equal(t, float32(9), read())
	require.NoError(t, call(t, m, th, 0x0015, g, RealOperand(4)))
	assert.Equal(t, float32(2.25), read())
	require.NoError(t, call(t, m, th, 0x0015, g, RealOperand(0)))
	assert.True(t, math.IsInf(float64(read()), 1))
}

func TestIntegerDivisionByZero(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m, th := libraryMachine(t, WithLogger(zap.New(core)))
	th.SetLocal(0, 10)

	require.NoError(t, call(t, m, th, OpDivIntLVar, LocalOperand(0), IntOperand(0)))
	assert.Equal(t, int32(10), th.Local(0))
	assert.Equal(t, 1, logs.FilterMessage("integer division by zero").Len())
}

func TestAssignToImmediateFails(t *testing.T) {
	m, th := libraryMachine(t)

	err := call(t, m, th, OpSetVarInt, IntOperand(1), IntOperand(2))
	assert.True(t, errors.Is(err, ErrNotLvalue))
}

func TestVariableToVariable(t *testing.T) {
	m, th := libraryMachine(t)
	th.SetLocal(1, 77)
	th.Locals.SetFloat32(2*VariableSize, 3.25)

	require.NoError(t, call(t, m, th, 0x0084, LocalOperand(3), LocalOperand(1)))
	assert.Equal(t, int32(77), th.Local(3))
	require.NoError(t, call(t, m, th, 0x0086, LocalOperand(4), LocalOperand(2)))
	assert.Equal(t, float32(3.25), th.Locals.Float32(4*VariableSize))
}

func TestComparisons(t *testing.T) {
	m, th := libraryMachine(t)

	tests := []struct {
		id   uint16
		a, b Operand
		want bool
	}{
		{0x0018, IntOperand(5), IntOperand(3), true},
		{0x001A, IntOperand(3), IntOperand(5), false},
		{0x001F, IntOperand(3), IntOperand(3), false},
		{0x0020, RealOperand(1.5), RealOperand(1.25), true},
		{0x0027, RealOperand(-1), RealOperand(0), false},
		{0x0028, IntOperand(3), IntOperand(3), true},
		{0x002F, IntOperand(2), IntOperand(3), false},
		{0x0030, RealOperand(2), RealOperand(2), true},
		{0x0038, IntOperand(9), IntOperand(9), true},
		{0x003B, IntOperand(9), IntOperand(8), false},
		{0x0042, RealOperand(0.5), RealOperand(0.5), true},
		{0x0043, RealOperand(0.5), RealOperand(0.25), false},
	}
	for _, tt := range tests {
		require.NoError(t, call(t, m, th, tt.id, tt.a, tt.b))
		assert.Equal(t, tt.want, th.ConditionResult, "opcode %04X", tt.id)
	}
}

func TestComparisonReadsVariables(t *testing.T) {
	m, th := libraryMachine(t)
	th.SetLocal(0, 12)

	require.NoError(t, call(t, m, th, 0x0019, LocalOperand(0), IntOperand(11)))
	assert.True(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, 0x0039, LocalOperand(0), IntOperand(11)))
	assert.False(t, th.ConditionResult)
}

func TestScriptName(t *testing.T) {
	m, th := libraryMachine(t)

	require.NoError(t, call(t, m, th, OpScriptName, StringOperand("intro")))
	assert.Equal(t, "intro", th.Name)

	th.SetName("abcdefghijklmnopqrstuvwxyz")
	assert.Equal(t, "abcdefghijklmnopq", th.Name)
	assert.Len(t, th.Name, MaxThreadName)
}

func TestEndThread(t *testing.T) {
	m, th := libraryMachine(t)

	require.NoError(t, call(t, m, th, OpEndThread))
	assert.True(t, th.Finished)
	assert.Equal(t, int32(-1), th.WakeCounter)
	assert.Equal(t, StateFinished, th.State())
}

func TestDeathArrestFlags(t *testing.T) {
	m, th := libraryMachine(t)

	require.NoError(t, call(t, m, th, 0x0111, IntOperand(1)))
	assert.True(t, th.DeathOrArrestCheck)

	require.NoError(t, call(t, m, th, 0x0112))
	assert.False(t, th.ConditionResult)
	th.WastedOrBusted = true
	require.NoError(t, call(t, m, th, 0x0112))
	assert.True(t, th.ConditionResult)
}

func TestWorldPrimitives(t *testing.T) {
	world := &testWorld{
		objects: map[int32]*testPlayer{3: {handle: 3}, 4: {handle: 4, dead: true}},
		player:  &testPlayer{playing: true},
		models:  map[string]int32{"CHEETAH": 145},
		loaded:  map[int32]bool{145: true, 90: true},
	}
	m, th := libraryMachine(t, WithWorld(world))

	require.NoError(t, call(t, m, th, OpShakeCam, IntOperand(250)))
	assert.Equal(t, []int32{250}, world.shakes)

	for handle, dead := range map[int32]bool{3: false, 4: true, 5: true} {
		require.NoError(t, call(t, m, th, 0x0118, IntOperand(handle)))
		assert.Equal(t, dead, th.ConditionResult, "handle %d", handle)
	}

	require.NoError(t, call(t, m, th, 0x0256, IntOperand(0)))
	assert.True(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, 0x0256, IntOperand(1)))
	assert.False(t, th.ConditionResult)

	// Negative ids index the container's model table.
	require.NoError(t, call(t, m, th, 0x0248, IntOperand(-1)))
	assert.True(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, 0x0248, IntOperand(90)))
	assert.True(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, 0x0248, IntOperand(-7)))
	assert.False(t, th.ConditionResult)
}

func TestHasModelLoadedThroughBytecode(t *testing.T) {
	world := &testWorld{models: map[string]int32{"CHEETAH": 145}, loaded: map[int32]bool{145: true}}
	f := buildFile(t, 64, nil, func(uint32) []byte {
		return scm.NewEmitter().
			Op(0x0248).Int8(-1).
			Op(OpWait).Int16(1000).
			Bytes()
	})
	m, _ := newTestMachine(t, f, WithWorld(world))
	th := m.StartThread(int32(f.CodeSectionOffset()), false)

	require.NoError(t, m.Execute(0))
	assert.True(t, th.ConditionResult)
}

func TestNullWorld(t *testing.T) {
	m, th := libraryMachine(t)

	require.NoError(t, call(t, m, th, 0x0256, IntOperand(0)))
	assert.False(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, 0x0248, IntOperand(-1)))
	assert.False(t, th.ConditionResult)
	require.NoError(t, call(t, m, th, OpShakeCam, IntOperand(10)))
}
