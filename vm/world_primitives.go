package vm

// ---------------------------------------------------------------------------
// World primitives
// ---------------------------------------------------------------------------

func registerWorldPrimitives(m *Module) {
	m.Bind(OpShakeCam, "shake_cam", 1, func(a *Arguments) error {
		a.World().ShakeCamera(a.Int(0))
		return nil
	})

	// A handle with no object behind it counts as dead.
	m.BindCondition(0x0118, "is_char_dead", 1, func(a *Arguments) (bool, error) {
		obj, ok := a.Object(0)
		return !ok || obj.Dead(), nil
	})

	m.BindCondition(0x0256, "is_player_playing", 1, func(a *Arguments) (bool, error) {
		p, ok := a.Player(0)
		return ok && p.Playing(), nil
	})

	m.BindCondition(0x0248, "has_model_loaded", 1, func(a *Arguments) (bool, error) {
		id, ok := a.Model(0)
		return ok && a.World().ModelLoaded(id), nil
	})
}
