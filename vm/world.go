package vm

// ---------------------------------------------------------------------------
// World hooks
// ---------------------------------------------------------------------------

// Object is a game object addressed by a script handle.
type Object interface {
	Handle() int32
	Dead() bool
}

// Player is a player slot.
type Player interface {
	Object
	Playing() bool
	Wasted() bool
	Busted() bool
}

// World is the game state opcode functions operate on. Lookups return false
// when nothing is bound to the handle.
type World interface {
	Object(handle int32) (Object, bool)
	Player(slot int32) (Player, bool)
	ControlledPlayer() (Player, bool)
	ShakeCamera(ms int32)
	ModelID(name string) (int32, bool)
	ModelLoaded(id int32) bool
	WaitSkipPressed() bool
}

// NullWorld has no objects, no players and no models.
type NullWorld struct{}

var _ World = NullWorld{}

func (NullWorld) Object(int32) (Object, bool)      { return nil, false }
func (NullWorld) Player(int32) (Player, bool)      { return nil, false }
func (NullWorld) ControlledPlayer() (Player, bool) { return nil, false }
func (NullWorld) ShakeCamera(int32)                {}
func (NullWorld) ModelID(string) (int32, bool)     { return 0, false }
func (NullWorld) ModelLoaded(int32) bool           { return false }
func (NullWorld) WaitSkipPressed() bool            { return false }
