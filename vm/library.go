package vm

import "errors"

// Opcodes the engine and tests refer to by name.
const (
	OpNop          uint16 = 0x0000
	OpWait         uint16 = 0x0001
	OpGoto         uint16 = 0x0002
	OpShakeCam     uint16 = 0x0003
	OpSetVarInt    uint16 = 0x0004
	OpSetLVarInt   uint16 = 0x0006
	OpSetLVarFloat uint16 = 0x0007
	OpAddIntLVar   uint16 = 0x000A
	OpDivIntLVar   uint16 = 0x0016
	OpGotoIfTrue   uint16 = 0x004C
	OpGotoIfFalse  uint16 = 0x004D
	OpEndThread    uint16 = 0x004E
	OpStartThread  uint16 = 0x004F
	OpGosub        uint16 = 0x0050
	OpReturn       uint16 = 0x0051
	OpAndOr        uint16 = 0x00D6
	OpLaunch       uint16 = 0x00D7
	OpScriptName   uint16 = 0x03A4
	OpStartMission uint16 = 0x0417
)

// ErrBadConditionCount is returned by andor for a count outside 0-7 and 21-27.
var ErrBadConditionCount = errors.New("invalid condition count")

// NewMainModule returns a registry holding the main script opcodes.
func NewMainModule() *Module {
	m := NewModule("main")
	registerControlPrimitives(m)
	registerThreadPrimitives(m)
	registerArithmeticPrimitives(m)
	registerComparisonPrimitives(m)
	registerWorldPrimitives(m)
	return m
}
