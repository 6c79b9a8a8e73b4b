package stats

import "math"

// Equipment contribution caps.
const (
	perAbilityEquipCap = 0.30 // of the ability's calculated value
	globalEquipCap     = 0.20 // of the sum of all calculated values
)

// Derive runs the full derivation pipeline for one entity.
//
// Per ability: base (rounded) + title adds, then blessing multipliers and adds
// (rounded) give the calculated value; equipment adds are capped at 30% of
// calculated per ability and 20% of the calculated sum globally (proportional
// floor scaling); temporary/passive adds land in the other bucket; the final
// value is round(calculated + cappedEquipment + other).
//
// Derive never fails: contributions with unknown abilities, categories, or
// operations count as zero.
//
// Postcondition: for every ability, Final == Calculated + EquipmentCapped +
// round(Other), EquipmentCapped <= floor(0.30*Calculated), and the sum of all
// EquipmentCapped values <= floor(0.20 * sum of Calculated values).
func Derive(in Input) Derived {
	type buckets struct {
		title     float64
		blessMult float64
		blessAdd  float64
		equipment float64
		other     float64
	}
	acc := make(map[Ability]*buckets, 9)
	for _, a := range Abilities() {
		acc[a] = &buckets{blessMult: 1}
	}

	for _, c := range in.Contributions {
		b, ok := acc[c.Ability]
		if !ok {
			continue
		}
		switch c.Category {
		case CategoryTitle:
			if c.Op == OpAdd || c.Op == "" {
				b.title += c.Value
			}
		case CategoryBlessing:
			switch c.Op {
			case OpMultiply:
				b.blessMult *= c.Value
			case OpAdd, "":
				b.blessAdd += c.Value
			}
		case CategoryEquipment:
			if c.Op == OpAdd || c.Op == "" {
				b.equipment += c.Value
			}
		case CategoryTemporary, CategoryPassive:
			if c.Op == OpAdd || c.Op == "" {
				b.other += c.Value
			}
		}
	}

	out := Derived{
		Abilities:   make(map[Ability]AbilityDerivation, 9),
		Defenses:    make(map[Defense]int, 4),
		Mitigations: make(map[Mitigation]int, 2),
	}

	// First pass: calculated values and per-ability equipment caps.
	calculatedSum := 0
	cappedSum := 0
	capped := make(map[Ability]int, 9)
	for _, a := range Abilities() {
		b := acc[a]
		base := int(math.Round(in.Bases[a]))
		afterTitles := float64(base) + b.title
		calculated := int(math.Round(afterTitles*b.blessMult + b.blessAdd))

		perCap := int(math.Floor(perAbilityEquipCap * float64(calculated)))
		if perCap < 0 {
			perCap = 0
		}
		c := int(math.Floor(b.equipment))
		if c > perCap {
			c = perCap
		}
		if c < 0 {
			c = 0
		}

		capped[a] = c
		cappedSum += c
		calculatedSum += calculated

		out.Abilities[a] = AbilityDerivation{
			Base:         base,
			TitleBonus:   b.title,
			BlessingMult: b.blessMult,
			BlessingAdd:  b.blessAdd,
			Calculated:   calculated,
			EquipmentRaw: b.equipment,
			Other:        b.other,
		}
	}

	// Second pass: global 20% cap with proportional floor scaling.
	globalCap := int(math.Floor(globalEquipCap * float64(calculatedSum)))
	if globalCap < 0 {
		globalCap = 0
	}
	if cappedSum > globalCap && cappedSum > 0 {
		for _, a := range Abilities() {
			capped[a] = int(math.Floor(float64(capped[a]) * float64(globalCap) / float64(cappedSum)))
		}
	}

	// Third pass: finals and modifiers.
	for _, a := range Abilities() {
		d := out.Abilities[a]
		d.EquipmentCapped = capped[a]
		d.Final = int(math.Round(float64(d.Calculated) + float64(d.EquipmentCapped) + d.Other))
		d.Modifier = ModifierFor(a, d.Final, in.RaceRank)
		out.Abilities[a] = d
	}

	// Resource maxima.
	out.HealthMax = out.Modifier(Vitality)
	out.ManaMax = out.Modifier(Willpower)
	out.StaminaMax = out.Modifier(Endurance)

	// Defenses: weighted modifier pairs plus flat effect bonuses.
	defenseBase := map[Defense]float64{
		DefenseMelee:  (float64(out.Modifier(Dexterity)) + 0.3*float64(out.Modifier(Strength))) * 1.1,
		DefenseRanged: (0.3*float64(out.Modifier(Dexterity)) + float64(out.Modifier(Perception))) * 1.1,
		DefenseMind:   (float64(out.Modifier(Intelligence)) + 0.3*float64(out.Modifier(Wisdom))) * 1.1,
		DefenseSoul:   (float64(out.Modifier(Wisdom)) + 0.3*float64(out.Modifier(Willpower))) * 1.1,
	}
	for def, base := range defenseBase {
		out.Defenses[def] = int(math.Round(base)) + int(math.Round(in.DefenseBonuses[def]))
	}
	for _, m := range []Mitigation{MitigationArmor, MitigationVeil} {
		out.Mitigations[m] = int(math.Round(in.MitigationBonuses[m]))
	}

	// Movement, casting, and carry.
	out.CastingRange = int(math.Round(40 + float64(out.Modifier(Perception))/10))
	out.WalkRange = int(math.Round(35 + float64(out.Modifier(Endurance))/10))
	out.SprintRange = 2 * out.WalkRange
	out.CarryCapacity = int(math.Round(50 + float64(out.Modifier(Strength)) + 0.5*float64(out.Modifier(Endurance))))

	return out
}

// CarryWeight sums item weight times quantity, rounded to one decimal place.
func CarryWeight(weights []float64, quantities []int) float64 {
	total := 0.0
	for i, w := range weights {
		q := 1
		if i < len(quantities) {
			q = quantities[i]
		}
		total += w * float64(q)
	}
	return math.Round(total*10) / 10
}

// Encumbered reports whether carryWeight exceeds carryCapacity.
func Encumbered(carryWeight float64, carryCapacity int) bool {
	return carryWeight > float64(carryCapacity)
}
