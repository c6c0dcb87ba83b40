package vm

import (
	"errors"

	"go.uber.org/zap"

	"github.com/chazu/scmvm/scm"
)

// decode reads the operands of the instruction at pc and returns them with
// the offset of the next instruction. The terminator of a variable-length
// tail is consumed but not returned.
func (m *Machine) decode(t *Thread, fn *Function, pc uint32) ([]Operand, uint32, error) {
	params := make([]Operand, 0, fn.FixedArgs())
	next, err := m.file.DecodeOperands(pc+scm.OpcodeSize, fn.Argc, func(raw scm.RawOperand, at uint32) error {
		if raw.Type == scm.TypeEndOfArgList && fn.Variadic() {
			return nil
		}
		op, err := m.resolveOperand(t, raw, at)
		if err != nil {
			return err
		}
		params = append(params, op)
		return nil
	})
	if err == nil {
		return params, next, nil
	}

	var unknown *scm.UnknownTypeError
	var bounds *BoundsError
	switch {
	case errors.As(err, &unknown):
		return nil, pc, &UnknownTypeError{Type: unknown.Tag, Offset: unknown.Offset, Thread: t.Name}
	case errors.As(err, &bounds):
		return nil, pc, bounds
	}
	return nil, pc, &ThreadError{Thread: t.Name, Opcode: fn.ID, Offset: pc, Err: err}
}

func (m *Machine) resolveOperand(t *Thread, raw scm.RawOperand, at uint32) (Operand, error) {
	switch raw.Type {
	case scm.TypeGlobal:
		return m.globalRef(t, uint32(raw.Index), at)
	case scm.TypeLocal:
		return m.localRef(t, uint32(raw.Index), at)
	}
	return operandFromRaw(raw), nil
}

// globalRef builds a reference to global slot index. The address is computed
// even when the index is out of range.
func (m *Machine) globalRef(t *Thread, index uint32, at uint32) (Operand, error) {
	limit := m.file.GlobalsSize() / VariableSize
	if index >= limit {
		if err := m.outOfBounds(t, ArenaGlobal, index, limit, at); err != nil {
			return Operand{}, err
		}
	}
	return Operand{
		Type: scm.TypeGlobal,
		ref:  Ref{Arena: ArenaGlobal, Address: m.globalAddress(index)},
	}, nil
}

func (m *Machine) localRef(t *Thread, index uint32, at uint32) (Operand, error) {
	if index >= LocalSlots {
		if err := m.outOfBounds(t, ArenaLocal, index, LocalSlots, at); err != nil {
			return Operand{}, err
		}
	}
	return Operand{
		Type: scm.TypeLocal,
		ref:  Ref{Arena: ArenaLocal, Address: index * VariableSize},
	}, nil
}

func (m *Machine) outOfBounds(t *Thread, arena ArenaID, index, limit, at uint32) error {
	if m.bounds == BoundsStrict {
		return &BoundsError{Arena: arena, Index: index, Limit: limit, Offset: at, Thread: t.Name}
	}
	m.logger.Warn("variable index out of bounds",
		zap.Stringer("arena", arena),
		zap.Uint32("index", index),
		zap.Uint32("limit", limit),
		zap.String("thread", t.Name),
		zap.Uint32("pc", at))
	return nil
}
