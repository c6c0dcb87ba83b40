package vm

import "fmt"

// ---------------------------------------------------------------------------
// Control flow primitives
// ---------------------------------------------------------------------------

func registerControlPrimitives(m *Module) {
	m.Bind(OpNop, "nop", 0, func(*Arguments) error {
		return nil
	})

	// wait 0 yields until the next tick.
	m.Bind(OpWait, "wait", 1, func(a *Arguments) error {
		t := a.Thread()
		if ms := a.Int(0); ms > 0 {
			t.WakeCounter = ms
		} else {
			t.WakeCounter = -1
		}
		return nil
	})

	m.Bind(OpGoto, "goto", 1, func(a *Arguments) error {
		jump(a)
		return nil
	})

	m.Bind(OpGotoIfTrue, "goto_if_true", 1, func(a *Arguments) error {
		if a.Thread().ConditionResult {
			jump(a)
		}
		return nil
	})

	m.Bind(OpGotoIfFalse, "goto_if_false", 1, func(a *Arguments) error {
		if !a.Thread().ConditionResult {
			jump(a)
		}
		return nil
	})

	m.Bind(OpGosub, "gosub", 1, func(a *Arguments) error {
		t := a.Thread()
		if err := t.PushCall(t.ProgramCounter); err != nil {
			return err
		}
		jump(a)
		return nil
	})

	m.Bind(OpReturn, "return", 0, func(a *Arguments) error {
		t := a.Thread()
		ret, err := t.PopCall()
		if err != nil {
			return err
		}
		t.ProgramCounter = ret
		return nil
	})

	// andor n: 0-7 opens an AND block over n+1 conditions, 21-27 an OR
	// block over n-19.
	m.BindBlock(OpAndOr, "andor", 1, func(a *Arguments) error {
		t := a.Thread()
		n := a.Int(0)
		switch {
		case n >= 0 && n <= 7:
			t.ConditionCount = int(n) + 1
			t.ConditionMask = true
			t.ConditionAND = true
		case n >= 21 && n <= 27:
			t.ConditionCount = int(n) - 19
			t.ConditionMask = false
			t.ConditionAND = false
		default:
			return fmt.Errorf("andor %d: %w", n, ErrBadConditionCount)
		}
		return nil
	})
}

// jump moves the thread to the address in operand 0.
func jump(a *Arguments) {
	t := a.Thread()
	t.ProgramCounter = a.Machine().ResolveAddress(t, a.Int(0))
}
