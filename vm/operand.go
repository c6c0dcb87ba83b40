package vm

import (
	"fmt"

	"github.com/chazu/scmvm/scm"
)

// ---------------------------------------------------------------------------
// Operand: one decoded instruction operand
// ---------------------------------------------------------------------------

// Operand is a tagged value: an end-of-list marker, an integer or real
// immediate, a string literal, or a reference to a global or local variable.
// References carry an address, not a value; they are read through the
// machine's arenas when the opcode function runs.
type Operand struct {
	Type scm.Type

	// Implicit is set for strings detected without a tag byte.
	Implicit bool

	integer int32
	real    float32
	str     string
	ref     Ref
}

// IntOperand returns an int32 immediate operand.
func IntOperand(v int32) Operand {
	return Operand{Type: scm.TypeInt32, integer: v}
}

// RealOperand returns a float16 immediate operand.
func RealOperand(v float32) Operand {
	return Operand{Type: scm.TypeFloat16, real: v}
}

// StringOperand returns a string literal operand.
func StringOperand(s string) Operand {
	return Operand{Type: scm.TypeString, str: s}
}

// GlobalOperand references the global slot at container offset address.
func GlobalOperand(address uint32) Operand {
	return Operand{Type: scm.TypeGlobal, ref: Ref{Arena: ArenaGlobal, Address: address}}
}

// LocalOperand references local slot index.
func LocalOperand(index uint16) Operand {
	return Operand{Type: scm.TypeLocal, ref: Ref{Arena: ArenaLocal, Address: uint32(index) * VariableSize}}
}

// IsLvalue reports whether the operand can be assigned through.
func (o Operand) IsLvalue() bool {
	return o.Type == scm.TypeGlobal || o.Type == scm.TypeLocal
}

// IsEnd reports whether this is the end-of-list marker.
func (o Operand) IsEnd() bool {
	return o.Type == scm.TypeEndOfArgList
}

// Ref returns the referenced slot for lvalue operands.
func (o Operand) Ref() (Ref, bool) {
	return o.ref, o.IsLvalue()
}

// Immediate returns the integer immediate and whether the operand holds one.
func (o Operand) Immediate() (int32, bool) {
	switch o.Type {
	case scm.TypeInt8, scm.TypeInt16, scm.TypeInt32:
		return o.integer, true
	}
	return 0, false
}

// RealImmediate returns the real immediate and whether the operand holds one.
func (o Operand) RealImmediate() (float32, bool) {
	if o.Type == scm.TypeFloat16 {
		return o.real, true
	}
	return 0, false
}

// Str returns the string literal, or "" for other operands.
func (o Operand) Str() string {
	return o.str
}

func (o Operand) String() string {
	switch o.Type {
	case scm.TypeEndOfArgList:
		return "end"
	case scm.TypeInt8, scm.TypeInt16, scm.TypeInt32:
		return fmt.Sprintf("%d", o.integer)
	case scm.TypeFloat16:
		return fmt.Sprintf("%gf", o.real)
	case scm.TypeString:
		return fmt.Sprintf("%q", o.str)
	case scm.TypeGlobal:
		return fmt.Sprintf("$[0x%X]", o.ref.Address)
	case scm.TypeLocal:
		return fmt.Sprintf("%d@", o.ref.Address/VariableSize)
	}
	return o.Type.String()
}

// operandFromRaw converts a decoded immediate. Variable references are
// resolved by the machine, which knows the section offsets.
func operandFromRaw(raw scm.RawOperand) Operand {
	return Operand{
		Type:     raw.Type,
		Implicit: raw.Implicit,
		integer:  raw.Int,
		real:     raw.Real,
		str:      raw.Str,
	}
}
