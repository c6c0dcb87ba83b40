package scm

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Emitter: encodes instructions into a code stream
// ---------------------------------------------------------------------------

// Emitter appends encoded instructions and operands to a buffer. Methods
// return the receiver so instructions read as one chain per line.
type Emitter struct {
	buf bytes.Buffer
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Len returns the number of bytes emitted so far, which is the relative
// offset of the next instruction.
func (e *Emitter) Len() uint32 { return uint32(e.buf.Len()) }

// Bytes returns the encoded stream.
func (e *Emitter) Bytes() []byte { return e.buf.Bytes() }

// Op writes an opcode.
func (e *Emitter) Op(id uint16) *Emitter {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], id)
	e.buf.Write(b[:])
	return e
}

// Not writes an opcode with the negate-result flag set.
func (e *Emitter) Not(id uint16) *Emitter {
	return e.Op(id | 0x8000)
}

func (e *Emitter) Int8(v int8) *Emitter {
	e.buf.WriteByte(byte(TypeInt8))
	e.buf.WriteByte(byte(v))
	return e
}

func (e *Emitter) Int16(v int16) *Emitter {
	e.buf.WriteByte(byte(TypeInt16))
	e.u16(uint16(v))
	return e
}

func (e *Emitter) Int32(v int32) *Emitter {
	e.buf.WriteByte(byte(TypeInt32))
	e.u32(uint32(v))
	return e
}

// Float16 writes v as fixed point with four fractional bits.
func (e *Emitter) Float16(v float32) *Emitter {
	e.buf.WriteByte(byte(TypeFloat16))
	e.u16(uint16(int16(math.Round(float64(v) * 16))))
	return e
}

func (e *Emitter) Global(index uint16) *Emitter {
	e.buf.WriteByte(byte(TypeGlobal))
	e.u16(index)
	return e
}

func (e *Emitter) Local(index uint16) *Emitter {
	e.buf.WriteByte(byte(TypeLocal))
	e.u16(index)
	return e
}

// Str writes an explicitly tagged 8-byte string.
func (e *Emitter) Str(s string) *Emitter {
	e.buf.WriteByte(byte(TypeString))
	e.fixed(s, StringSize)
	return e
}

// Text writes an untagged 8-byte string. The first character must be above
// MaxTypeTag for a reader to detect it.
func (e *Emitter) Text(s string) *Emitter {
	e.fixed(s, StringSize)
	return e
}

// End terminates a variable-length operand tail.
func (e *Emitter) End() *Emitter {
	e.buf.WriteByte(byte(TypeEndOfArgList))
	return e
}

// Raw appends bytes verbatim.
func (e *Emitter) Raw(b ...byte) *Emitter {
	e.buf.Write(b)
	return e
}

func (e *Emitter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Emitter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Emitter) fixed(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	e.buf.Write(b)
}

// ---------------------------------------------------------------------------
// Builder: assembles a complete container
// ---------------------------------------------------------------------------

// Builder lays out a container: header chain, globals, model table, mission
// table, main code, then mission code.
type Builder struct {
	Target   Target
	Globals  []byte   // initial contents of the global section after the first header
	Models   []string // model table entries
	Main     []byte   // main script code
	Missions [][]byte // mission code blocks appended after main
}

func (b *Builder) modelHeaderOffset() uint32 {
	return headerSize + uint32(len(b.Globals))
}

func (b *Builder) missionHeaderOffset() uint32 {
	return b.modelHeaderOffset() + headerSize + 4 + uint32(len(b.Models))*ModelNameSize
}

// CodeOffset returns the absolute offset at which Main will be placed.
func (b *Builder) CodeOffset() uint32 {
	return b.missionHeaderOffset() + headerSize + missionHeaderSize + uint32(len(b.Missions))*4
}

// MissionOffset returns the absolute offset of mission i.
func (b *Builder) MissionOffset(i int) uint32 {
	off := b.CodeOffset() + uint32(len(b.Main))
	for _, m := range b.Missions[:i] {
		off += uint32(len(m))
	}
	return off
}

// Bytes encodes the container.
func (b *Builder) Bytes() []byte {
	e := NewEmitter()

	e.jump(b.modelHeaderOffset())
	e.buf.WriteByte(byte(b.Target))
	e.buf.Write(b.Globals)

	e.jump(b.missionHeaderOffset())
	e.buf.WriteByte(0)
	e.u32(uint32(len(b.Models)))
	for _, m := range b.Models {
		e.fixed(m, ModelNameSize)
	}

	e.jump(b.CodeOffset())
	e.buf.WriteByte(0)

	mainSize := b.CodeOffset() + uint32(len(b.Main))
	var largest uint32
	for _, m := range b.Missions {
		if uint32(len(m)) > largest {
			largest = uint32(len(m))
		}
	}
	e.u32(mainSize)
	e.u32(largest)
	e.u32(uint32(len(b.Missions)))
	for i := range b.Missions {
		e.u32(b.MissionOffset(i))
	}

	e.buf.Write(b.Main)
	for _, m := range b.Missions {
		e.buf.Write(m)
	}
	return e.Bytes()
}

// jump writes a header goto with an int32 target.
func (e *Emitter) jump(target uint32) {
	e.Op(JumpOpcode)
	e.buf.WriteByte(byte(TypeInt32))
	e.u32(target)
}
