// Package scm reads and writes mission script containers.
//
// A container is a flat little-endian byte image: a chain of three jump
// headers locating the global variable section, the model table, the mission
// table and the code stream. Instructions are a uint16 opcode followed by
// tagged operands.
package scm

import "fmt"

// ---------------------------------------------------------------------------
// Operand type tags
// ---------------------------------------------------------------------------

// Type is the tag byte preceding an operand payload.
type Type uint8

const (
	TypeEndOfArgList Type = 0x00 // terminates a variable-length tail
	TypeInt32        Type = 0x01 // 4-byte signed immediate
	TypeGlobal       Type = 0x02 // 2-byte global variable index
	TypeLocal        Type = 0x03 // 2-byte local variable index
	TypeInt8         Type = 0x04 // 1-byte signed immediate
	TypeInt16        Type = 0x05 // 2-byte signed immediate
	TypeFloat16      Type = 0x06 // 2-byte fixed point, value / 16
	TypeString       Type = 0x09 // 8-byte inline string
)

// MaxTypeTag is the highest tag value. A tag byte above it is the first
// character of an untagged 8-byte string.
const MaxTypeTag = 42

// Payload sizes.
const (
	StringSize    = 8
	ModelNameSize = 24
	OpcodeSize    = 2
)

var typeNames = map[Type]string{
	TypeEndOfArgList: "end",
	TypeInt32:        "int32",
	TypeGlobal:       "global",
	TypeLocal:        "local",
	TypeInt8:         "int8",
	TypeInt16:        "int16",
	TypeFloat16:      "float16",
	TypeString:       "string",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(0x%02X)", uint8(t))
}

// Valid reports whether t is one of the defined tags.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// PayloadSize returns the number of bytes following the tag.
func (t Type) PayloadSize() int {
	switch t {
	case TypeInt8:
		return 1
	case TypeInt16, TypeFloat16, TypeGlobal, TypeLocal:
		return 2
	case TypeInt32:
		return 4
	case TypeString:
		return StringSize
	}
	return 0
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// Target identifies the game a container was compiled for. It is stored in
// the byte following the first jump header.
type Target uint8

const (
	TargetNone Target = 0x00
	TargetIII  Target = 0xC6
	TargetVC   Target = 0x6D
	TargetSA   Target = 0x73
)

func (t Target) String() string {
	switch t {
	case TargetNone:
		return "none"
	case TargetIII:
		return "gta3"
	case TargetVC:
		return "gtavc"
	case TargetSA:
		return "gtasa"
	}
	return fmt.Sprintf("target(0x%02X)", uint8(t))
}
