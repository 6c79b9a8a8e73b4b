// Package skill turns a skill activation into rolls, target selection, and
// authority intents: formula construction from ability modifiers, the
// resolution pipeline, tag dispatch, and chained follow-up skills.
package skill

import (
	"fmt"

	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Kind selects the hit/damage formula pair for a skill. Content definitions
// reference these names in their math_kind field.
const (
	KindDexWeapon       = "dex_weapon"
	KindStrWeapon       = "str_weapon"
	KindPhysicalRanged  = "physical_ranged"
	KindMagicProjectile = "magic_projectile"
	KindMagicMelee      = "magic_melee"
	KindWisdomDexterity = "wisdom_dexterity"
	KindGeneric         = "generic"
)

// abilityPair weights a primary and secondary ability into a formula with the
// fixed 0.9/0.3 coefficient split.
type abilityPair struct {
	primary   stats.Ability
	secondary stats.Ability
}

// kindTable maps each math kind to its ability pair. The generic kind is
// absent: it has no to-hit roll and no modifier weighting.
var kindTable = map[string]abilityPair{
	KindDexWeapon:       {stats.Dexterity, stats.Strength},
	KindStrWeapon:       {stats.Strength, stats.Dexterity},
	KindPhysicalRanged:  {stats.Dexterity, stats.Perception},
	KindMagicProjectile: {stats.Intelligence, stats.Willpower},
	KindMagicMelee:      {stats.Intelligence, stats.Strength},
	KindWisdomDexterity: {stats.Wisdom, stats.Dexterity},
}

// Formulas is the pair of formula strings built for one activation. Hit is
// empty for generic skills, which roll no attack.
type Formulas struct {
	Hit    string
	Damage string
}

// BuildFormulas assembles the to-hit and damage formula strings for a skill
// definition. Both draw ability modifiers from @mods.* bindings so the same
// strings evaluate against any caster.
//
// Postcondition: returns an error only for an unknown math kind.
func BuildFormulas(def *item.SkillDef) (Formulas, error) {
	diceExpr := def.Dice
	if diceExpr == "" {
		diceExpr = "1d6"
	}
	bonus := def.DiceBonus
	if bonus == 0 {
		bonus = 1
	}
	damageBase := fmt.Sprintf("(%s) * %g", diceExpr, bonus)

	if def.MathKind == "" || def.MathKind == KindGeneric {
		return Formulas{Damage: damageBase}, nil
	}
	pair, ok := kindTable[def.MathKind]
	if !ok {
		return Formulas{}, fmt.Errorf("skill: unknown math kind %q", def.MathKind)
	}
	weights := fmt.Sprintf("0.9 * @mods.%s + 0.3 * @mods.%s", pair.primary, pair.secondary)
	return Formulas{
		Hit:    fmt.Sprintf("1d20 + %s", weights),
		Damage: fmt.Sprintf("%s + %s", damageBase, weights),
	}, nil
}

// ModBindings exposes a derivation's ability modifiers as formula bindings
// under the mods.* namespace.
func ModBindings(d stats.Derived) dice.Bindings {
	vars := make(dice.Bindings, len(d.Abilities))
	for _, a := range stats.Abilities() {
		vars["mods."+string(a)] = float64(d.Modifier(a))
	}
	return vars
}
