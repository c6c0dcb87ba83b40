package vm

import (
	"fmt"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Arithmetic primitives
// ---------------------------------------------------------------------------

// Each arithmetic family occupies four consecutive ids: integer global,
// float global, integer local, float local. Operand 0 is the target and
// operand 1 the value.
type arithmeticFamily struct {
	base  uint16
	verb  string
	ints  func(a *Arguments, target, value int32) (int32, bool)
	reals func(target, value float32) float32
}

var arithmeticFamilies = []arithmeticFamily{
	{
		base:  0x0004,
		verb:  "set",
		ints:  func(_ *Arguments, _, v int32) (int32, bool) { return v, true },
		reals: func(_, v float32) float32 { return v },
	},
	{
		base:  0x0008,
		verb:  "add",
		ints:  func(_ *Arguments, t, v int32) (int32, bool) { return t + v, true },
		reals: func(t, v float32) float32 { return t + v },
	},
	{
		base:  0x000C,
		verb:  "sub",
		ints:  func(_ *Arguments, t, v int32) (int32, bool) { return t - v, true },
		reals: func(t, v float32) float32 { return t - v },
	},
	{
		base:  0x0010,
		verb:  "mult",
		ints:  func(_ *Arguments, t, v int32) (int32, bool) { return t * v, true },
		reals: func(t, v float32) float32 { return t * v },
	},
	{
		base:  0x0014,
		verb:  "div",
		ints:  divideInt,
		reals: func(t, v float32) float32 { return t / v },
	},
}

// divideInt leaves the target unchanged on division by zero.
func divideInt(a *Arguments, target, value int32) (int32, bool) {
	if value == 0 {
		t := a.Thread()
		a.Machine().Logger().Warn("integer division by zero",
			zap.String("thread", t.Name),
			zap.Uint32("pc", t.ProgramCounter))
		return target, false
	}
	return target / value, true
}

func registerArithmeticPrimitives(m *Module) {
	for _, fam := range arithmeticFamilies {
		for i, scope := range []string{"var", "lvar"} {
			id := fam.base + uint16(i*2)
			m.Bind(id, fmt.Sprintf("%s_int_%s", fam.verb, scope), 2, intArithmetic(fam.ints))
			m.Bind(id+1, fmt.Sprintf("%s_float_%s", fam.verb, scope), 2, realArithmetic(fam.reals))
		}
	}

	m.Bind(0x0084, "set_int_var_to_var", 2, func(a *Arguments) error {
		return a.SetInt(0, a.Int(1))
	})

	m.Bind(0x0086, "set_float_var_to_var", 2, func(a *Arguments) error {
		return a.SetReal(0, a.Real(1))
	})
}

func intArithmetic(op func(a *Arguments, target, value int32) (int32, bool)) Func {
	return func(a *Arguments) error {
		v, ok := op(a, a.Int(0), a.Int(1))
		if !ok {
			return nil
		}
		return a.SetInt(0, v)
	}
}

func realArithmetic(op func(target, value float32) float32) Func {
	return func(a *Arguments) error {
		return a.SetReal(0, op(a.Real(0), a.Real(1)))
	}
}
