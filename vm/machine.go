package vm

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chazu/scmvm/scm"
)

// ---------------------------------------------------------------------------
// Bounds policy
// ---------------------------------------------------------------------------

// BoundsPolicy selects how out-of-range variable indexes are handled.
type BoundsPolicy uint8

const (
	// BoundsLenient logs a warning and keeps the computed address. Reads
	// outside the arena yield zero and writes are dropped.
	BoundsLenient BoundsPolicy = iota

	// BoundsStrict terminates the thread with a *BoundsError.
	BoundsStrict
)

func (p BoundsPolicy) String() string {
	switch p {
	case BoundsLenient:
		return "lenient"
	case BoundsStrict:
		return "strict"
	}
	return fmt.Sprintf("bounds(%d)", uint8(p))
}

// ParseBoundsPolicy parses "lenient" or "strict". The empty string selects
// the default.
func ParseBoundsPolicy(s string) (BoundsPolicy, error) {
	switch strings.ToLower(s) {
	case "", "lenient":
		return BoundsLenient, nil
	case "strict":
		return BoundsStrict, nil
	}
	return BoundsLenient, fmt.Errorf("unknown bounds policy %q", s)
}

// ---------------------------------------------------------------------------
// Machine: the fetch-execute engine
// ---------------------------------------------------------------------------

// Machine runs the threads of one container. It is not safe for concurrent
// use; hosts serialize access through a single goroutine.
type Machine struct {
	file   *scm.File
	module *Module
	world  World

	logger      *zap.Logger
	bounds      BoundsPolicy
	traceThread string

	globals *Arena

	threads []*Thread // active, in creation order
	pending []*Thread // spawned during the current tick
	nextID  uint64

	ticks   uint64
	elapsed uint64 // milliseconds
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger. The machine logs under the "vm" name.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWorld sets the world hooks. The default is NullWorld.
func WithWorld(w World) Option {
	return func(m *Machine) {
		if w != nil {
			m.world = w
		}
	}
}

// WithBoundsPolicy sets the out-of-range index policy.
func WithBoundsPolicy(p BoundsPolicy) Option {
	return func(m *Machine) {
		m.bounds = p
	}
}

// WithTraceThread logs every instruction executed by threads whose name
// starts with name at debug level.
func WithTraceThread(name string) Option {
	return func(m *Machine) {
		m.traceThread = name
	}
}

// New creates a machine for file using the opcodes in module. The global
// section is copied, so several machines can share one file.
func New(file *scm.File, module *Module, opts ...Option) *Machine {
	m := &Machine{
		file:   file,
		module: module,
		world:  NullWorld{},
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("vm")
	m.globals = NewArena(file.GlobalSectionOffset(), file.GlobalData())
	return m
}

func (m *Machine) File() *scm.File     { return m.file }
func (m *Machine) Module() *Module     { return m.module }
func (m *Machine) World() World        { return m.world }
func (m *Machine) Globals() *Arena     { return m.globals }
func (m *Machine) Logger() *zap.Logger { return m.logger }
func (m *Machine) Ticks() uint64       { return m.ticks }
func (m *Machine) Elapsed() uint64     { return m.elapsed }

// Threads returns the active threads followed by those waiting for the next
// tick, in creation order.
func (m *Machine) Threads() []*Thread {
	out := make([]*Thread, 0, len(m.threads)+len(m.pending))
	out = append(out, m.threads...)
	return append(out, m.pending...)
}

// Thread finds a live thread by id.
func (m *Machine) Thread(id uint64) (*Thread, bool) {
	for _, t := range m.Threads() {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Global reads global slot index as an integer.
func (m *Machine) Global(index uint32) int32 {
	return m.globals.Int32(m.globalAddress(index))
}

// SetGlobal stores an integer in global slot index.
func (m *Machine) SetGlobal(index uint32, v int32) bool {
	return m.globals.SetInt32(m.globalAddress(index), v)
}

func (m *Machine) globalAddress(index uint32) uint32 {
	return m.file.GlobalSectionOffset() + index*VariableSize
}

// ResolveAddress turns a script address into an absolute offset. Negative
// addresses are relative to the thread's base address.
func (m *Machine) ResolveAddress(t *Thread, addr int32) uint32 {
	if addr >= 0 {
		return uint32(addr)
	}
	var base uint32
	if t != nil {
		base = t.BaseAddress
	}
	return uint32(int64(base) - int64(addr))
}

// StartThread creates a thread at address pc that becomes active on the
// next call to Execute. args are stored in local slots 0, 1, ...
func (m *Machine) StartThread(pc int32, mission bool, args ...int32) *Thread {
	raw := make([]uint32, len(args))
	for i, a := range args {
		raw[i] = uint32(a)
	}
	return m.Spawn(nil, pc, mission, raw)
}

// Spawn creates a thread on behalf of spawner, which may be nil. A negative
// pc is resolved against the spawner's base address and the new thread
// shares that base; mission threads are based at their own start. args are
// raw slot bits copied into local slots 0, 1, ...
func (m *Machine) Spawn(spawner *Thread, pc int32, mission bool, args []uint32) *Thread {
	start := m.ResolveAddress(spawner, pc)
	var base uint32
	if pc < 0 && spawner != nil {
		base = spawner.BaseAddress
	}
	if mission {
		base = start
	}

	m.nextID++
	t := newThread(m.nextID, start, base)
	t.IsMission = mission
	for i, a := range args {
		if i >= LocalSlots {
			break
		}
		t.Locals.SetUint32(uint32(i)*VariableSize, a)
	}
	m.pending = append(m.pending, t)

	m.logger.Debug("thread started",
		zap.Uint64("id", t.ID),
		zap.Uint32("pc", start),
		zap.Bool("mission", mission),
		zap.Int("args", len(args)))
	return t
}

// Execute advances every active thread by msPassed milliseconds and runs
// the runnable ones until they wait, yield or finish. Threads started during
// the previous tick join first; finished threads leave at the end. Faults
// terminate only the thread that raised them and are returned joined.
func (m *Machine) Execute(msPassed int) error {
	if len(m.pending) > 0 {
		m.threads = append(m.threads, m.pending...)
		m.pending = nil
	}

	var errs []error
	for _, t := range m.threads {
		if t.Finished {
			continue
		}
		if err := m.executeThread(t, msPassed); err != nil {
			t.Terminate()
			m.logger.Error("thread terminated",
				zap.String("thread", t.Name),
				zap.Uint32("pc", t.ProgramCounter),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	live := m.threads[:0]
	for _, t := range m.threads {
		if !t.Finished {
			live = append(live, t)
		}
	}
	clear(m.threads[len(live):])
	m.threads = live

	m.ticks++
	m.elapsed += uint64(max(msPassed, 0))
	return errors.Join(errs...)
}

func (m *Machine) executeThread(t *Thread, msPassed int) error {
	ms := int32(msPassed)
	t.SetLocal(TimerASlot, t.Local(TimerASlot)+ms)
	t.SetLocal(TimerBSlot, t.Local(TimerBSlot)+ms)

	if t.IsMission && t.DeathOrArrestCheck {
		if p, ok := m.world.ControlledPlayer(); ok && (p.Wasted() || p.Busted()) {
			t.WastedOrBusted = true
			t.StackDepth = 0
			t.ProgramCounter = t.Calls[0]
		}
	}

	if t.AllowWaitSkip && m.world.WaitSkipPressed() {
		t.WakeCounter = 0
		t.AllowWaitSkip = false
	}

	if t.WakeCounter > 0 {
		t.WakeCounter = max(t.WakeCounter-ms, 0)
	}
	if t.WakeCounter > 0 {
		return nil
	}

	for t.WakeCounter == 0 {
		if err := m.step(t); err != nil {
			return err
		}
		if t.Finished {
			break
		}
		if t.WakeCounter == -1 {
			t.WakeCounter = 0
			break
		}
	}
	return nil
}

// step executes the instruction at the thread's program counter.
func (m *Machine) step(t *Thread) error {
	pc := t.ProgramCounter
	raw, err := scm.ReadAt[uint16](m.file, pc)
	if err != nil {
		return &ThreadError{Thread: t.Name, Offset: pc, Err: err}
	}
	negated := raw&scm.NegateFlag != 0
	opcode := raw &^ scm.NegateFlag

	fn, ok := m.module.Resolve(opcode)
	if !ok {
		return &IllegalInstructionError{Opcode: opcode, Offset: pc, Thread: t.Name}
	}

	params, next, err := m.decode(t, fn, pc)
	if err != nil {
		return err
	}
	if m.tracing(t) {
		m.trace(t, fn, negated, params)
	}

	args := NewArguments(m, t, params)
	t.ProgramCounter = next

	switch fn.Kind {
	case KindCondition:
		result, err := fn.Test(args)
		if err != nil {
			return &ThreadError{Thread: t.Name, Opcode: opcode, Offset: pc, Err: err}
		}
		t.ConditionResult = result != negated
	default:
		if fn.Call != nil {
			if err := fn.Call(args); err != nil {
				return &ThreadError{Thread: t.Name, Opcode: opcode, Offset: pc, Err: err}
			}
		}
	}

	if t.ConditionCount > 0 && fn.Kind != KindBlock {
		t.ConditionCount--
		if t.ConditionAND {
			if !t.ConditionResult {
				t.ConditionMask = false
			}
		} else {
			t.ConditionMask = t.ConditionMask || t.ConditionResult
		}
		t.ConditionResult = t.ConditionMask
	}
	return nil
}

func (m *Machine) tracing(t *Thread) bool {
	return m.traceThread != "" && strings.HasPrefix(t.Name, m.traceThread)
}

func (m *Machine) trace(t *Thread, fn *Function, negated bool, params []Operand) {
	ops := make([]string, len(params))
	for i, p := range params {
		ops[i] = p.String()
	}
	m.logger.Debug("exec",
		zap.String("thread", t.Name),
		zap.Bool("cond", t.ConditionResult),
		zap.Uint32("pc", t.ProgramCounter),
		zap.String("opcode", fmt.Sprintf("%04X", fn.ID)),
		zap.String("name", fn.Name),
		zap.Bool("not", negated),
		zap.Strings("operands", ops))
}
