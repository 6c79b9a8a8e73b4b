// Package stats implements the layered stat derivation pipeline: base values
// plus typed contributions in, final abilities, modifiers, resource maxima,
// defenses, and ranges out. Everything here is pure and deterministic.
package stats

// Ability identifies one of the nine base abilities.
type Ability string

const (
	Vitality     Ability = "vitality"
	Endurance    Ability = "endurance"
	Strength     Ability = "strength"
	Dexterity    Ability = "dexterity"
	Toughness    Ability = "toughness"
	Intelligence Ability = "intelligence"
	Willpower    Ability = "willpower"
	Wisdom       Ability = "wisdom"
	Perception   Ability = "perception"
)

// Abilities returns all nine abilities in canonical order.
func Abilities() []Ability {
	return []Ability{
		Vitality, Endurance, Strength, Dexterity, Toughness,
		Intelligence, Willpower, Wisdom, Perception,
	}
}

// Valid reports whether a is one of the nine known abilities.
func (a Ability) Valid() bool {
	switch a {
	case Vitality, Endurance, Strength, Dexterity, Toughness,
		Intelligence, Willpower, Wisdom, Perception:
		return true
	}
	return false
}

// Category classifies where a contribution came from. The derivation pipeline
// treats each category differently (see Derive).
type Category string

const (
	CategoryEquipment Category = "equipment"
	CategoryTitle     Category = "title"
	CategoryBlessing  Category = "blessing"
	CategoryTemporary Category = "temporary"
	CategoryPassive   Category = "passive"
)

// Op is the arithmetic operation a contribution applies.
type Op string

const (
	OpAdd      Op = "add"
	OpMultiply Op = "multiply"
	OpOverride Op = "override"
)

// Contribution is one typed modifier feeding the derivation pipeline.
// Contributions with an unknown ability or category are ignored (treated as
// zero) rather than failing the derivation.
type Contribution struct {
	Ability  Ability
	Category Category
	Op       Op
	Value    float64
}

// Defense identifies one of the four offensive defenses.
type Defense string

const (
	DefenseMelee  Defense = "melee"
	DefenseRanged Defense = "ranged"
	DefenseMind   Defense = "mind"
	DefenseSoul   Defense = "soul"
)

// Mitigation identifies one of the two damage mitigations.
type Mitigation string

const (
	MitigationArmor Mitigation = "armor"
	MitigationVeil  Mitigation = "veil"
)

// Input is everything Derive needs for one entity.
type Input struct {
	// Bases are the stored base ability values.
	Bases map[Ability]float64
	// Contributions are the active modifier contributions from the effect ledger.
	Contributions []Contribution
	// DefenseBonuses are flat defense adders from effects (keyed by defense).
	DefenseBonuses map[Defense]float64
	// MitigationBonuses are flat armor/veil values from effects and gear.
	MitigationBonuses map[Mitigation]float64
	// RaceRank is the entity's current race rank (drives the vitality scaling rule).
	RaceRank Rank
}

// AbilityDerivation is the per-ability breakdown trace. It is recomputed on
// every Derive call and never persisted.
type AbilityDerivation struct {
	Base            int
	TitleBonus      float64
	BlessingMult    float64
	BlessingAdd     float64
	Calculated      int
	EquipmentRaw    float64
	EquipmentCapped int
	Other           float64
	Final           int
	Modifier        int
}

// Derived is the full derived state for one entity.
type Derived struct {
	Abilities map[Ability]AbilityDerivation

	HealthMax  int
	ManaMax    int
	StaminaMax int

	Defenses    map[Defense]int
	Mitigations map[Mitigation]int

	CastingRange  int
	WalkRange     int
	SprintRange   int
	CarryCapacity int
}

// Modifier returns the derived modifier for ability a, or 0 if absent.
func (d Derived) Modifier(a Ability) int {
	return d.Abilities[a].Modifier
}

// Final returns the final value for ability a, or 0 if absent.
func (d Derived) Final(a Ability) int {
	return d.Abilities[a].Final
}
