package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/scmvm/scm"
)

// ---------------------------------------------------------------------------
// Thread fault types
// ---------------------------------------------------------------------------

var (
	ErrCallStackOverflow  = errors.New("call stack overflow")
	ErrCallStackUnderflow = errors.New("return with empty call stack")
	ErrMissingOperand     = errors.New("missing operand")
	ErrNotLvalue          = errors.New("operand is not a variable reference")
)

// IllegalInstructionError reports an opcode absent from the registry.
type IllegalInstructionError struct {
	Opcode uint16
	Offset uint32
	Thread string
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction 0x%04X encountered at offset 0x%04X on thread %s",
		e.Opcode, e.Offset, e.Thread)
}

// UnknownTypeError reports an operand tag outside the defined set.
type UnknownTypeError struct {
	Type   uint8
	Offset uint32
	Thread string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown data type 0x%X encountered at offset 0x%X on thread %s",
		e.Type, e.Offset, e.Thread)
}

func (e *UnknownTypeError) Unwrap() error { return scm.ErrUnknownType }

// BoundsError reports an out-of-range variable index under BoundsStrict.
type BoundsError struct {
	Arena  ArenaID
	Index  uint32
	Limit  uint32
	Offset uint32
	Thread string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s index %d out of bounds (limit %d) at offset 0x%X on thread %s",
		e.Arena, e.Index, e.Limit, e.Offset, e.Thread)
}

// ThreadError wraps a fault raised while a thread was executing an
// instruction.
type ThreadError struct {
	Thread string
	Opcode uint16
	Offset uint32
	Err    error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread %s: opcode 0x%04X at offset 0x%X: %v", e.Thread, e.Opcode, e.Offset, e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }
