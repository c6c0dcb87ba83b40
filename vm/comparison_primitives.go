package vm

import "fmt"

// ---------------------------------------------------------------------------
// Comparison primitives
// ---------------------------------------------------------------------------

// Operand shapes of the greater-than families, in id order.
var orderedShapes = []string{
	"var_number", "lvar_number", "number_var", "number_lvar",
	"var_var", "lvar_lvar", "var_lvar", "lvar_var",
}

func registerComparisonPrimitives(m *Module) {
	for i, shape := range orderedShapes {
		id := uint16(i)
		m.BindCondition(0x0018+id, "is_int_"+shape+"_greater", 2, func(a *Arguments) (bool, error) {
			return a.Int(0) > a.Int(1), nil
		})
		m.BindCondition(0x0020+id, "is_float_"+shape+"_greater", 2, func(a *Arguments) (bool, error) {
			return a.Real(0) > a.Real(1), nil
		})
		m.BindCondition(0x0028+id, "is_int_"+shape+"_greater_or_equal", 2, func(a *Arguments) (bool, error) {
			return a.Int(0) >= a.Int(1), nil
		})
		m.BindCondition(0x0030+id, "is_float_"+shape+"_greater_or_equal", 2, func(a *Arguments) (bool, error) {
			return a.Real(0) >= a.Real(1), nil
		})
	}

	for i, shape := range []string{"var_number", "lvar_number", "var_var", "lvar_lvar"} {
		m.BindCondition(0x0038+uint16(i), fmt.Sprintf("is_int_%s_equal", shape), 2, func(a *Arguments) (bool, error) {
			return a.Int(0) == a.Int(1), nil
		})
	}

	for i, shape := range []string{"var_number", "lvar_number"} {
		m.BindCondition(0x0042+uint16(i), fmt.Sprintf("is_float_%s_equal", shape), 2, func(a *Arguments) (bool, error) {
			return a.Real(0) == a.Real(1), nil
		})
	}
}
