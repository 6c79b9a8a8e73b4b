package skill_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/skill"
)

func TestBuildFormulas_KindTable(t *testing.T) {
	tests := []struct {
		kind      string
		primary   string
		secondary string
	}{
		{skill.KindDexWeapon, "dexterity", "strength"},
		{skill.KindStrWeapon, "strength", "dexterity"},
		{skill.KindPhysicalRanged, "dexterity", "perception"},
		{skill.KindMagicProjectile, "intelligence", "willpower"},
		{skill.KindMagicMelee, "intelligence", "strength"},
		{skill.KindWisdomDexterity, "wisdom", "dexterity"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			f, err := skill.BuildFormulas(&item.SkillDef{MathKind: tt.kind, Dice: "2d8", DiceBonus: 2})
			require.NoError(t, err)
			assert.Contains(t, f.Hit, "1d20")
			assert.Contains(t, f.Hit, "0.9 * @mods."+tt.primary)
			assert.Contains(t, f.Hit, "0.3 * @mods."+tt.secondary)
			assert.Contains(t, f.Damage, "(2d8) * 2")
			assert.Contains(t, f.Damage, "0.9 * @mods."+tt.primary)
		})
	}
}

func TestBuildFormulas_GenericHasNoHitRoll(t *testing.T) {
	f, err := skill.BuildFormulas(&item.SkillDef{MathKind: skill.KindGeneric, Dice: "3d4"})
	require.NoError(t, err)
	assert.Empty(t, f.Hit)
	assert.Equal(t, "(3d4) * 1", f.Damage)

	f, err = skill.BuildFormulas(&item.SkillDef{})
	require.NoError(t, err)
	assert.Empty(t, f.Hit, "missing math kind falls back to generic")
}

func TestBuildFormulas_UnknownKindRejected(t *testing.T) {
	_, err := skill.BuildFormulas(&item.SkillDef{MathKind: "psionic"})
	assert.Error(t, err)
}

func TestBuildFormulas_EvaluateWithModifiers(t *testing.T) {
	f, err := skill.BuildFormulas(&item.SkillDef{MathKind: skill.KindDexWeapon, Dice: "1d6"})
	require.NoError(t, err)

	vars := dice.Bindings{"mods.dexterity": 50, "mods.strength": 10}
	res, err := dice.EvalFormula(f.Hit, vars, &scriptSource{faces: []int{11}})
	require.NoError(t, err)
	assert.Equal(t, 11+0.9*50+0.3*10, res.Total)
}
