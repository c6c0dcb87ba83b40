package scm

import (
	"fmt"
	"strings"
)

// NegateFlag marks an opcode whose boolean result is inverted.
const NegateFlag uint16 = 0x8000

// DecodeOperands decodes the operand list of an instruction whose operands
// start at pc. A non-negative argc reads exactly argc operands; a negative
// argc reads -argc operands and then continues until an end-of-list tag.
// visit is called for every operand, including the terminator, with the
// offset it was read from. It returns the offset after the last operand.
func (f *File) DecodeOperands(pc uint32, argc int, visit func(op RawOperand, at uint32) error) (uint32, error) {
	variadic := argc < 0
	required := argc
	if variadic {
		required = -argc
	}

	for p := 0; p < required || variadic; p++ {
		at := pc
		op, next, err := f.DecodeOperand(pc)
		if err != nil {
			return pc, err
		}
		pc = next
		if op.Type == TypeEndOfArgList {
			variadic = false
		}
		if err := visit(op, at); err != nil {
			return pc, err
		}
	}
	return pc, nil
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Lookup resolves an opcode to its declared argument count and name.
type Lookup func(id uint16) (argc int, name string, ok bool)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   uint32
	Opcode   uint16
	Negated  bool
	Name     string
	Operands []RawOperand
	Size     uint32
}

// DecodeInstruction decodes the instruction at pc.
func (f *File) DecodeInstruction(pc uint32, lookup Lookup) (Instruction, error) {
	raw, err := ReadAt[uint16](f, pc)
	if err != nil {
		return Instruction{}, err
	}
	inst := Instruction{
		Offset:  pc,
		Opcode:  raw &^ NegateFlag,
		Negated: raw&NegateFlag != 0,
	}

	argc, name, ok := lookup(inst.Opcode)
	if !ok {
		return inst, fmt.Errorf("illegal instruction 0x%04X at offset 0x%X", inst.Opcode, pc)
	}
	inst.Name = name

	next, err := f.DecodeOperands(pc+OpcodeSize, argc, func(op RawOperand, _ uint32) error {
		inst.Operands = append(inst.Operands, op)
		return nil
	})
	if err != nil {
		return inst, err
	}
	inst.Size = next - pc
	return inst, nil
}

// Disassemble decodes instructions in [from, to). Decoding stops at the
// first error, returning what was decoded so far.
func (f *File) Disassemble(from, to uint32, lookup Lookup) ([]Instruction, error) {
	var out []Instruction
	for pc := from; pc < to; {
		inst, err := f.DecodeInstruction(pc, lookup)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
		pc += inst.Size
	}
	return out, nil
}

func (op RawOperand) String() string {
	switch op.Type {
	case TypeEndOfArgList:
		return "end"
	case TypeInt8, TypeInt16, TypeInt32:
		return fmt.Sprintf("%d", op.Int)
	case TypeFloat16:
		return fmt.Sprintf("%gf", op.Real)
	case TypeGlobal:
		return fmt.Sprintf("$%d", op.Index)
	case TypeLocal:
		return fmt.Sprintf("%d@", op.Index)
	case TypeString:
		if op.Implicit {
			return fmt.Sprintf("'%s'", op.Str)
		}
		return fmt.Sprintf("%q", op.Str)
	}
	return op.Type.String()
}

func (i Instruction) String() string {
	var sb strings.Builder
	if i.Negated {
		sb.WriteString("not ")
	}
	sb.WriteString(i.Name)
	for _, op := range i.Operands {
		sb.WriteByte(' ')
		sb.WriteString(op.String())
	}
	return sb.String()
}

// Listing formats instructions one per line with offset and opcode columns.
func Listing(insts []Instruction) string {
	var sb strings.Builder
	for _, inst := range insts {
		op := inst.Opcode
		if inst.Negated {
			op |= NegateFlag
		}
		sb.WriteString(fmt.Sprintf("%06X  %04X  %s\n", inst.Offset, op, inst.String()))
	}
	return sb.String()
}
