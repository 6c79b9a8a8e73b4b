package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevenleaf/ascendant/internal/game/dice"
)

func TestEvalFormula_Arithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1+2", 3},
		{"2*3+4", 10},
		{"2*(3+4)", 14},
		{"10/4", 2.5},
		{"-3+10", 7},
		{"0.9*50 + 0.3*10", 48},
	}
	for _, c := range cases {
		r, err := dice.EvalFormula(c.expr, nil, nil)
		require.NoError(t, err, "formula %q", c.expr)
		assert.InDelta(t, c.want, r.Total, 1e-9, "formula %q", c.expr)
	}
}

func TestEvalFormula_Variables(t *testing.T) {
	vars := dice.Bindings{"strength.mod": 40, "dexterity.mod": 12}
	r, err := dice.EvalFormula("0.9*@strength.mod + 0.3*@dexterity.mod", vars, nil)
	require.NoError(t, err)
	assert.InDelta(t, 39.6, r.Total, 1e-9)
}

func TestEvalFormula_UnknownVariableIsZero(t *testing.T) {
	r, err := dice.EvalFormula("5 + @no.such.binding", nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5, r.Total, 1e-9)
}

func TestEvalFormula_DiceToken(t *testing.T) {
	src := &seqSource{values: []int{2, 3, 4, 5}} // 4d6 rolls 3,4,5,6
	r, err := dice.EvalFormula("4d6 + @bonus", dice.Bindings{"bonus": 2}, src)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5, 6}, r.Rolls)
	assert.InDelta(t, 20, r.Total, 1e-9)
}

func TestEvalFormula_DiceTimesMultiplier(t *testing.T) {
	src := &seqSource{values: []int{5}} // every die rolls 6
	r, err := dice.EvalFormula("(2d6) * 1.5", nil, src)
	require.NoError(t, err)
	assert.InDelta(t, 18, r.Total, 1e-9)
}

func TestEvalFormula_SyntaxErrors(t *testing.T) {
	cases := []string{"", "1+", "(1+2", "2d", "1 & 2", "@"}
	for _, c := range cases {
		_, err := dice.EvalFormula(c, nil, nil)
		assert.Error(t, err, "formula %q should not evaluate", c)
	}
}

func TestEvalFormula_DivisionByZero(t *testing.T) {
	_, err := dice.EvalFormula("4/0", nil, nil)
	require.Error(t, err)
}

func TestEvalFormula_DiceWithoutSource(t *testing.T) {
	_, err := dice.EvalFormula("2d6", nil, nil)
	require.Error(t, err)
}
