package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VariableSize is the width of one variable slot in bytes.
const VariableSize = 4

// ---------------------------------------------------------------------------
// Ref: a variable address
// ---------------------------------------------------------------------------

// ArenaID selects the storage a reference points into.
type ArenaID uint8

const (
	ArenaGlobal ArenaID = iota + 1 // the machine's global section
	ArenaLocal                     // the issuing thread's locals
)

func (a ArenaID) String() string {
	switch a {
	case ArenaGlobal:
		return "global"
	case ArenaLocal:
		return "local"
	}
	return fmt.Sprintf("arena(%d)", uint8(a))
}

// Ref addresses a variable slot. Address is absolute within the arena's
// address space: global references keep the container offset of the slot,
// local references are byte offsets into the thread's locals.
type Ref struct {
	Arena   ArenaID
	Address uint32
}

// ---------------------------------------------------------------------------
// Arena: fixed-size variable storage
// ---------------------------------------------------------------------------

// Arena is pre-allocated byte storage addressed from a base offset. Accesses
// outside the arena read as zero and drop writes; decode-time validation is
// where out-of-range indexes are reported.
type Arena struct {
	base uint32
	data []byte
}

// NewArena wraps data so that data[0] has address base.
func NewArena(base uint32, data []byte) *Arena {
	return &Arena{base: base, data: data}
}

func (a *Arena) Base() uint32  { return a.base }
func (a *Arena) Len() int      { return len(a.data) }
func (a *Arena) Bytes() []byte { return a.data }

// Contains reports whether a full slot at addr lies inside the arena.
func (a *Arena) Contains(addr uint32) bool {
	if addr < a.base {
		return false
	}
	return uint64(addr-a.base)+VariableSize <= uint64(len(a.data))
}

func (a *Arena) slot(addr uint32) []byte {
	if !a.Contains(addr) {
		return nil
	}
	off := addr - a.base
	return a.data[off : off+VariableSize]
}

// Uint32 returns the raw slot bits at addr.
func (a *Arena) Uint32(addr uint32) uint32 {
	s := a.slot(addr)
	if s == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(s)
}

// SetUint32 stores raw slot bits; it reports false if addr is outside.
func (a *Arena) SetUint32(addr uint32, v uint32) bool {
	s := a.slot(addr)
	if s == nil {
		return false
	}
	binary.LittleEndian.PutUint32(s, v)
	return true
}

func (a *Arena) Int32(addr uint32) int32 {
	return int32(a.Uint32(addr))
}

func (a *Arena) SetInt32(addr uint32, v int32) bool {
	return a.SetUint32(addr, uint32(v))
}

func (a *Arena) Float32(addr uint32) float32 {
	return math.Float32frombits(a.Uint32(addr))
}

func (a *Arena) SetFloat32(addr uint32, v float32) bool {
	return a.SetUint32(addr, math.Float32bits(v))
}

// Reset zeroes the arena.
func (a *Arena) Reset() {
	clear(a.data)
}
