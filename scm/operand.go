package scm

import (
	"encoding/binary"
	"fmt"
)

// RawOperand is one operand as stored in the code stream, before any
// variable reference has been resolved.
type RawOperand struct {
	Type Type

	// Implicit is set for strings detected from a tag byte above MaxTypeTag.
	Implicit bool

	Int   int32   // int8/int16/int32 immediates
	Real  float32 // float16 immediates
	Str   string  // string literals
	Index uint16  // global/local variable index
}

// UnknownTypeError is returned by DecodeOperand for a tag byte that is
// neither a defined type nor the start of an implicit string.
type UnknownTypeError struct {
	Tag    uint8
	Offset uint32
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown data type 0x%X at offset 0x%X", e.Tag, e.Offset)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// DecodeOperand decodes the operand at pc and returns it together with the
// offset of the byte following it.
func (f *File) DecodeOperand(pc uint32) (RawOperand, uint32, error) {
	tag, err := ReadAt[uint8](f, pc)
	if err != nil {
		return RawOperand{}, pc, err
	}

	var op RawOperand
	if tag > MaxTypeTag {
		// The tag byte is the first character of the string.
		op.Type = TypeString
		op.Implicit = true
	} else {
		op.Type = Type(tag)
		pc++
	}

	switch op.Type {
	case TypeEndOfArgList:
		return op, pc, nil
	case TypeInt8, TypeInt16, TypeInt32, TypeFloat16, TypeGlobal, TypeLocal, TypeString:
	default:
		return op, pc, &UnknownTypeError{Tag: tag, Offset: pc}
	}

	payload, err := f.Bytes(pc, op.Type.PayloadSize())
	if err != nil {
		return op, pc, err
	}

	switch op.Type {
	case TypeInt8:
		op.Int = int32(int8(payload[0]))
	case TypeInt16:
		op.Int = int32(int16(binary.LittleEndian.Uint16(payload)))
	case TypeInt32:
		op.Int = int32(binary.LittleEndian.Uint32(payload))
	case TypeFloat16:
		op.Real = float32(int16(binary.LittleEndian.Uint16(payload))) / 16
	case TypeGlobal, TypeLocal:
		op.Index = binary.LittleEndian.Uint16(payload)
	case TypeString:
		op.Str = cString(payload)
	}
	return op, pc + uint32(len(payload)), nil
}
