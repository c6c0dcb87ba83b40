package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/scmvm/scm"
)

func TestModuleBindOverwrites(t *testing.T) {
	m := NewModule("test")
	m.Bind(0x0100, "first", 1, func(*Arguments) error { return nil })
	m.Bind(0x0100, "second", 2, func(*Arguments) error { return nil })

	fn, ok := m.Resolve(0x0100)
	require.True(t, ok)
	assert.Equal(t, "second", fn.Name)
	assert.Equal(t, 2, fn.Argc)
	assert.Equal(t, 1, m.Len())
}

func TestModuleResolveIgnoresNegateFlag(t *testing.T) {
	m := NewModule("test")
	m.BindCondition(0x0100, "cond", 0, func(*Arguments) (bool, error) { return true, nil })

	fn, ok := m.Resolve(0x8100)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0100), fn.ID)
	assert.Equal(t, KindCondition, fn.Kind)

	_, ok = m.Resolve(0x0101)
	assert.False(t, ok)
}

func TestModuleMerge(t *testing.T) {
	base := NewMainModule()
	patch := NewModule("patch")
	patch.Bind(OpWait, "patched_wait", 1, func(*Arguments) error { return nil })
	patch.Bind(0x0F10, "extra", 0, func(*Arguments) error { return nil })

	n := base.Len()
	base.Merge(patch)
	assert.Equal(t, n+1, base.Len())

	fn, _ := base.Resolve(OpWait)
	assert.Equal(t, "patched_wait", fn.Name)
}

func TestModuleIDsSorted(t *testing.T) {
	m := NewModule("test")
	for _, id := range []uint16{0x0300, 0x0001, 0x00D6} {
		m.Bind(id, "x", 0, nil)
	}
	assert.Equal(t, []uint16{0x0001, 0x00D6, 0x0300}, m.IDs())
}

func TestMainModuleContents(t *testing.T) {
	m := NewMainModule()
	assert.Equal(t, "main", m.Name())

	andor, ok := m.Resolve(OpAndOr)
	require.True(t, ok)
	assert.Equal(t, KindBlock, andor.Kind)

	start, ok := m.Resolve(OpStartThread)
	require.True(t, ok)
	assert.True(t, start.Variadic())
	assert.Equal(t, 1, start.FixedArgs())

	for id := uint16(0x0004); id <= 0x0017; id++ {
		fn, ok := m.Resolve(id)
		require.True(t, ok, "arithmetic %04X", id)
		assert.Equal(t, KindCommand, fn.Kind)
	}
	for id := uint16(0x0018); id <= 0x003B; id++ {
		fn, ok := m.Resolve(id)
		require.True(t, ok, "comparison %04X", id)
		assert.Equal(t, KindCondition, fn.Kind)
	}

	names := map[uint16]string{
		0x0004: "set_int_var",
		0x0007: "set_float_lvar",
		0x0010: "mult_int_var",
		0x0018: "is_int_var_number_greater",
		0x003A: "is_int_var_var_equal",
	}
	for id, want := range names {
		fn, _ := m.Resolve(id)
		assert.Equal(t, want, fn.Name)
	}
}

func TestModuleLookupDisassembles(t *testing.T) {
	f := buildFile(t, 64, nil, func(base uint32) []byte {
		return scm.NewEmitter().
			Op(OpAndOr).Int8(0).
			Not(0x0038).Global(1).Int8(4).
			Op(OpGotoIfFalse).Int32(int32(base)).
			Op(OpStartThread).Int32(-8).Local(2).End().
			Bytes()
	})
	m := NewMainModule()

	insts, err := f.Disassemble(f.CodeSectionOffset(), f.MainSize(), m.Lookup)
	require.NoError(t, err)
	require.Len(t, insts, 4)
	assert.Equal(t, "andor", insts[0].Name)
	assert.True(t, insts[1].Negated)
	assert.Equal(t, "is_int_var_number_equal", insts[1].Name)
	assert.Len(t, insts[3].Operands, 3)

	_, _, ok := m.Lookup(0x0F0F)
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "block", KindBlock.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
