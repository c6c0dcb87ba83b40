package vm

import (
	"fmt"
	"sort"

	"github.com/chazu/scmvm/scm"
)

// ---------------------------------------------------------------------------
// Function: a registry entry
// ---------------------------------------------------------------------------

// Func implements a command opcode.
type Func func(args *Arguments) error

// CondFunc implements a condition opcode. Its result is subject to the
// negate flag and folded into the thread's condition block.
type CondFunc func(args *Arguments) (bool, error)

// Kind classifies how the engine treats a registered function.
type Kind uint8

const (
	KindCommand   Kind = iota // plain command
	KindCondition             // produces a boolean
	KindBlock                 // opens a condition block; never folded
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCondition:
		return "condition"
	case KindBlock:
		return "block"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Function describes an opcode. A negative Argc means at least -Argc
// operands followed by a variable tail terminated by end-of-list.
type Function struct {
	ID   uint16
	Name string
	Argc int
	Kind Kind
	Call Func
	Test CondFunc
}

// Variadic reports whether the operand list has a terminated tail.
func (f *Function) Variadic() bool { return f.Argc < 0 }

// FixedArgs returns the number of operands always present.
func (f *Function) FixedArgs() int {
	if f.Argc < 0 {
		return -f.Argc
	}
	return f.Argc
}

// ---------------------------------------------------------------------------
// Module: the opcode registry
// ---------------------------------------------------------------------------

// Module maps 15-bit opcode ids to functions. Registering an id twice
// replaces the earlier entry. A Module is populated before a Machine starts
// and is read-only while it runs.
type Module struct {
	name      string
	functions map[uint16]*Function
}

// NewModule creates an empty registry.
func NewModule(name string) *Module {
	return &Module{name: name, functions: make(map[uint16]*Function)}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Len returns the number of registered opcodes.
func (m *Module) Len() int { return len(m.functions) }

// Bind registers a command.
func (m *Module) Bind(id uint16, name string, argc int, fn Func) {
	m.register(&Function{Name: name, Argc: argc, Kind: KindCommand, Call: fn}, id)
}

// BindCondition registers a condition.
func (m *Module) BindCondition(id uint16, name string, argc int, test CondFunc) {
	m.register(&Function{Name: name, Argc: argc, Kind: KindCondition, Test: test}, id)
}

// BindBlock registers a condition-block opener such as andor.
func (m *Module) BindBlock(id uint16, name string, argc int, fn Func) {
	m.register(&Function{Name: name, Argc: argc, Kind: KindBlock, Call: fn}, id)
}

func (m *Module) register(fn *Function, id uint16) {
	id &^= scm.NegateFlag
	fn.ID = id
	m.functions[id] = fn
}

// Resolve looks up the function for id. The negate flag is ignored.
func (m *Module) Resolve(id uint16) (*Function, bool) {
	fn, ok := m.functions[id&^scm.NegateFlag]
	return fn, ok
}

// Merge copies every function of other into m, replacing existing ids.
func (m *Module) Merge(other *Module) {
	for id, fn := range other.functions {
		m.functions[id] = fn
	}
}

// IDs returns the registered ids in ascending order.
func (m *Module) IDs() []uint16 {
	ids := make([]uint16, 0, len(m.functions))
	for id := range m.functions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lookup adapts the registry for scm.Disassemble.
func (m *Module) Lookup(id uint16) (int, string, bool) {
	fn, ok := m.Resolve(id)
	if !ok {
		return 0, "", false
	}
	return fn.Argc, fn.Name, true
}
