package scm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Header layout constants
const (
	jumpOpSize    = 2 + 1 + 4 // opcode + tag + int32 displacement
	jumpParamSize = 2 + 1     // displacement follows opcode + tag
	headerSize    = jumpOpSize + 1

	missionHeaderSize = 3 * 4 // mainSize + largest + count
)

// JumpOpcode is the goto instruction used by the header chain.
const JumpOpcode uint16 = 0x0002

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrTruncated   = errors.New("unexpected end of script data")
	ErrBadOffset   = errors.New("section offset out of order")
	ErrUnknownType = errors.New("unknown operand type")
)

// ParseError reports a malformed container. Section names the table being
// read and Offset the byte position of the failing read.
type ParseError struct {
	Section string
	Offset  uint64
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scm: %s at offset 0x%X: %v", e.Section, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// File is a parsed script container. It is immutable after Load; all reads
// are absolute so it may be shared between goroutines.
type File struct {
	data   []byte
	target Target

	models         []string
	missionOffsets []uint32

	mainSize           uint32
	missionLargestSize uint32

	globalSectionOffset  uint32
	modelSectionOffset   uint32
	missionSectionOffset uint32
	codeSectionOffset    uint32
}

// Open reads and parses the container at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Load(data)
}

// Read parses a container from r.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read script data: %w", err)
	}
	return Load(data)
}

// Load parses a container from data. The slice is retained; callers must not
// modify it afterwards.
func Load(data []byte) (*File, error) {
	f := &File{data: data}
	if err := f.readHeaders(); err != nil {
		return nil, err
	}
	if err := f.readModels(); err != nil {
		return nil, err
	}
	if err := f.readMissions(); err != nil {
		return nil, err
	}
	return f, nil
}

// u32 reads a header word with 64-bit bounds arithmetic so corrupt
// displacements cannot wrap.
func (f *File) u32(section string, off uint64) (uint32, error) {
	if off+4 > uint64(len(f.data)) {
		return 0, &ParseError{Section: section, Offset: off, Err: ErrTruncated}
	}
	return binary.LittleEndian.Uint32(f.data[off:]), nil
}

func (f *File) readHeaders() error {
	if len(f.data) < headerSize {
		return &ParseError{Section: "header", Offset: 0, Err: ErrTruncated}
	}
	f.target = Target(f.data[jumpOpSize])
	f.globalSectionOffset = headerSize

	d, err := f.u32("model header", jumpParamSize)
	if err != nil {
		return err
	}
	model := uint64(d) + headerSize

	d, err = f.u32("mission header", model-headerSize+jumpParamSize)
	if err != nil {
		return err
	}
	mission := uint64(d) + headerSize

	d, err = f.u32("code header", mission-headerSize+jumpParamSize)
	if err != nil {
		return err
	}
	code := uint64(d)

	switch {
	case mission < model:
		return &ParseError{Section: "mission header", Offset: mission, Err: ErrBadOffset}
	case code < mission:
		return &ParseError{Section: "code header", Offset: code, Err: ErrBadOffset}
	case code > uint64(len(f.data)):
		return &ParseError{Section: "code header", Offset: code, Err: ErrTruncated}
	}

	f.modelSectionOffset = uint32(model)
	f.missionSectionOffset = uint32(mission)
	f.codeSectionOffset = uint32(code)
	return nil
}

func (f *File) readModels() error {
	off := uint64(f.modelSectionOffset)
	count, err := f.u32("model table", off)
	if err != nil {
		return err
	}
	off += 4

	end := off + uint64(count)*ModelNameSize
	if end > uint64(len(f.data)) {
		return &ParseError{Section: "model table", Offset: off, Err: ErrTruncated}
	}

	f.models = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		f.models = append(f.models, cString(f.data[off:off+ModelNameSize]))
		off += ModelNameSize
	}
	return nil
}

func (f *File) readMissions() error {
	off := uint64(f.missionSectionOffset)
	if off+missionHeaderSize > uint64(len(f.data)) {
		return &ParseError{Section: "mission table", Offset: off, Err: ErrTruncated}
	}
	f.mainSize = binary.LittleEndian.Uint32(f.data[off:])
	f.missionLargestSize = binary.LittleEndian.Uint32(f.data[off+4:])
	count := binary.LittleEndian.Uint32(f.data[off+8:])
	off += missionHeaderSize

	if off+uint64(count)*4 > uint64(len(f.data)) {
		return &ParseError{Section: "mission table", Offset: off, Err: ErrTruncated}
	}

	f.missionOffsets = make([]uint32, count)
	for i := range f.missionOffsets {
		f.missionOffsets[i] = binary.LittleEndian.Uint32(f.data[off:])
		off += 4
	}
	return nil
}

// cString trims a fixed-width field at the first nul byte.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (f *File) Target() Target               { return f.target }
func (f *File) Models() []string             { return f.models }
func (f *File) MissionOffsets() []uint32     { return f.missionOffsets }
func (f *File) MainSize() uint32             { return f.mainSize }
func (f *File) MissionLargestSize() uint32   { return f.missionLargestSize }
func (f *File) GlobalSectionOffset() uint32  { return f.globalSectionOffset }
func (f *File) ModelSectionOffset() uint32   { return f.modelSectionOffset }
func (f *File) MissionSectionOffset() uint32 { return f.missionSectionOffset }
func (f *File) CodeSectionOffset() uint32    { return f.codeSectionOffset }
func (f *File) Size() int                    { return len(f.data) }

// GlobalsSize is the byte size of the global variable section.
func (f *File) GlobalsSize() uint32 {
	return f.modelSectionOffset - f.globalSectionOffset
}

// Model returns the model table entry at index.
func (f *File) Model(index int) (string, bool) {
	if index < 0 || index >= len(f.models) {
		return "", false
	}
	return f.models[index], true
}

// GlobalData returns a copy of the initial global variable section.
func (f *File) GlobalData() []byte {
	start, end := f.globalSectionOffset, f.modelSectionOffset
	if end > uint32(len(f.data)) {
		end = uint32(len(f.data))
	}
	out := make([]byte, f.GlobalsSize())
	copy(out, f.data[start:end])
	return out
}

// Bytes returns n bytes at offset without copying.
func (f *File) Bytes(offset uint32, n int) ([]byte, error) {
	end := uint64(offset) + uint64(n)
	if end > uint64(len(f.data)) {
		return nil, fmt.Errorf("read %d bytes at 0x%X: %w", n, offset, ErrTruncated)
	}
	return f.data[offset:end], nil
}

// Scalar is the set of fixed-width values readable from a container.
type Scalar interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32
}

// ReadAt decodes a little-endian T at an absolute offset. It keeps no
// position state.
func ReadAt[T Scalar](f *File, offset uint32) (T, error) {
	var v T
	n := binary.Size(v)
	b, err := f.Bytes(offset, n)
	if err != nil {
		return v, err
	}
	switch n {
	case 1:
		v = T(b[0])
	case 2:
		v = T(binary.LittleEndian.Uint16(b))
	case 4:
		v = T(binary.LittleEndian.Uint32(b))
	}
	return v, nil
}
