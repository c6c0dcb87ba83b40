package vm

import (
	"errors"
	"fmt"
)

// ErrNoSuchMission is returned by start_mission for an index outside the
// mission table.
var ErrNoSuchMission = errors.New("no such mission")

// ---------------------------------------------------------------------------
// Thread control primitives
// ---------------------------------------------------------------------------

func registerThreadPrimitives(m *Module) {
	m.Bind(OpEndThread, "end_thread", 0, func(a *Arguments) error {
		a.Thread().Terminate()
		return nil
	})

	// start_thread address [args...] copies the raw argument bits into the
	// new thread's first local slots.
	m.Bind(OpStartThread, "start_thread", -1, func(a *Arguments) error {
		args := make([]uint32, 0, max(a.Len()-1, 0))
		for i := 1; i < a.Len(); i++ {
			args = append(args, a.Raw(i))
		}
		a.Machine().Spawn(a.Thread(), a.Int(0), false, args)
		return nil
	})

	m.Bind(OpLaunch, "launch_mission", 1, func(a *Arguments) error {
		a.Machine().Spawn(a.Thread(), a.Int(0), true, nil)
		return nil
	})

	m.Bind(OpStartMission, "start_mission", 1, func(a *Arguments) error {
		index := a.Int(0)
		offsets := a.Machine().File().MissionOffsets()
		if index < 0 || int(index) >= len(offsets) {
			return fmt.Errorf("mission %d of %d: %w", index, len(offsets), ErrNoSuchMission)
		}
		a.Machine().Spawn(a.Thread(), int32(offsets[index]), true, nil)
		return nil
	})

	m.Bind(OpScriptName, "script_name", 1, func(a *Arguments) error {
		a.Thread().SetName(a.Str(0))
		return nil
	})

	m.Bind(0x0111, "set_wasted_busted_check", 1, func(a *Arguments) error {
		a.Thread().DeathOrArrestCheck = a.Bool(0)
		return nil
	})

	m.BindCondition(0x0112, "has_death_arrest_been_executed", 0, func(a *Arguments) (bool, error) {
		return a.Thread().WastedOrBusted, nil
	})

	// Like wait, but a wait-skip press from the world wakes the thread early.
	m.Bind(0x02A1, "skippable_wait", 1, func(a *Arguments) error {
		t := a.Thread()
		if ms := a.Int(0); ms > 0 {
			t.WakeCounter = ms
			t.AllowWaitSkip = true
		} else {
			t.WakeCounter = -1
		}
		return nil
	})
}
