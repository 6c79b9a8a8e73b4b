// Package item defines the static item catalogue: gear, skills, augments,
// progression templates, and flavor features, loaded from YAML definitions.
package item

import (
	"errors"
	"fmt"

	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Kind constants for Def.Kind.
const (
	KindGear     = "gear"
	KindSkill    = "skill"
	KindAugment  = "augment"
	KindTemplate = "template"
	KindFeature  = "feature"
)

// validKinds is the set of valid Def kinds.
var validKinds = map[string]bool{
	KindGear:     true,
	KindSkill:    true,
	KindAugment:  true,
	KindTemplate: true,
	KindFeature:  true,
}

// Tag labels one capability of a skill; a skill may carry several.
type Tag string

const (
	TagAttack      Tag = "attack"
	TagRestoration Tag = "restoration"
	TagBuff        Tag = "buff"
	TagDebuff      Tag = "debuff"
	TagRepair      Tag = "repair"
)

// validGearSlots names the recognised gear slots. Keep in sync with the
// slot capacity table in the equip package; a test there guards the pairing.
var validGearSlots = map[string]bool{
	"head":  true,
	"chest": true,
	"legs":  true,
	"feet":  true,
	"hand":  true,
	"neck":  true,
	"ring":  true,
	"back":  true,
	"waist": true,
}

// validTags is the set of recognised skill tags.
var validTags = map[Tag]bool{
	TagAttack:      true,
	TagRestoration: true,
	TagBuff:        true,
	TagDebuff:      true,
	TagRepair:      true,
}

// Resource names a spendable pool.
type Resource string

const (
	ResourceHealth  Resource = "health"
	ResourceStamina Resource = "stamina"
	ResourceMana    Resource = "mana"
)

// Def is the envelope for one catalogue entry. Exactly one kind-specific
// section must be populated, matching Kind.
type Def struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Kind        string  `yaml:"kind"`
	Weight      float64 `yaml:"weight"`

	Gear     *GearDef     `yaml:"gear,omitempty"`
	Skill    *SkillDef    `yaml:"skill,omitempty"`
	Augment  *AugmentDef  `yaml:"augment,omitempty"`
	Template *TemplateDef `yaml:"template,omitempty"`
	Feature  *FeatureDef  `yaml:"feature,omitempty"`
}

// GearDef is the equipment variant: a slottable item with bonuses and durability.
type GearDef struct {
	Slot      string `yaml:"slot"`
	Rarity    string `yaml:"rarity"`
	TwoHanded bool   `yaml:"two_handed"`
	// Progress drives durability.max and the weapon damage limit.
	Progress int    `yaml:"progress"`
	Material string `yaml:"material"`
	// Weapon marks hand-slot gear whose overstrike rule applies.
	Weapon bool `yaml:"weapon"`

	StatBonuses       map[stats.Ability]float64    `yaml:"stat_bonuses"`
	DefenseBonuses    map[stats.Defense]float64    `yaml:"defense_bonuses"`
	MitigationBonuses map[stats.Mitigation]float64 `yaml:"mitigation_bonuses"`

	GrantedSkills []string `yaml:"granted_skills"`
	AugmentSlots  int      `yaml:"augment_slots"`

	// RepairKit marks a consumable that restores durability when used.
	RepairKit    bool `yaml:"repair_kit"`
	RepairAmount int  `yaml:"repair_amount"`
}

// AttackConfig is the attack tag configuration of a skill.
type AttackConfig struct {
	// Defense selects which defense the to-hit roll is compared against.
	Defense stats.Defense `yaml:"defense"`
	// Magical selects veil mitigation instead of armor.
	Magical bool `yaml:"magical"`
	// WeaponItem names the equipped gear whose overstrike rule applies.
	WeaponItem string `yaml:"weapon_item"`
}

// RestorationConfig is the restoration tag configuration of a skill.
type RestorationConfig struct {
	Resource Resource `yaml:"resource"`
	// TargetSelf restores the caster instead of the selected target.
	TargetSelf bool `yaml:"target_self"`
}

// BuffConfig is the buff tag configuration of a skill. Attribute multipliers
// scale the shared damage roll into per-attribute changes.
type BuffConfig struct {
	Attributes map[stats.Ability]float64 `yaml:"attributes"`
	Stackable  bool                      `yaml:"stackable"`
	Duration   int                       `yaml:"duration"`
}

// DebuffConfig mirrors BuffConfig with negated values and an optional
// damage-over-time component.
type DebuffConfig struct {
	Attributes map[stats.Ability]float64 `yaml:"attributes"`
	Stackable  bool                      `yaml:"stackable"`
	Duration   int                       `yaml:"duration"`
	// DealsDamage applies the roll as immediate damage reduced only by the
	// target's toughness modifier, never armor or veil.
	DealsDamage bool `yaml:"deals_damage"`
	// DoT additionally attaches a per-round damage payload.
	DoT     bool `yaml:"dot"`
	Magical bool `yaml:"magical"`
}

// RepairConfig is the repair tag configuration of a skill. An empty material
// list matches all materials.
type RepairConfig struct {
	Materials []string `yaml:"materials"`
}

// AreaDef describes the optional area-of-effect template of a skill.
type AreaDef struct {
	// Shape is circle, cone, ray, or rect.
	Shape string `yaml:"shape"`
	// Size is the diameter (circle/rect diagonal) or length (cone/ray) in
	// grid units.
	Size float64 `yaml:"size"`
	// Angle is the cone opening angle in degrees; 0 uses the default.
	Angle float64 `yaml:"angle"`
	// Duration is how many rounds a placed template persists; 0 deletes it
	// immediately after resolution.
	Duration int `yaml:"duration"`
	// Allegiance filters qualifying targets: all, enemies, or allies.
	Allegiance string `yaml:"allegiance"`
}

// ChainDef names a follow-up skill and its trigger condition.
// Chain trigger conditions, evaluated against the attack tag's per-target
// hit result.
const (
	ChainAlways = "always"
	ChainOnHit  = "on-hit"
	ChainOnMiss = "on-miss"
)

type ChainDef struct {
	Skill string `yaml:"skill"`
	// Trigger is always, on-hit, or on-miss.
	Trigger string `yaml:"trigger"`
}

// SkillDef is the skill variant: roll configuration plus per-tag configs.
type SkillDef struct {
	Category string `yaml:"category"`
	// MathKind selects the hit/damage formula pair (see the skill package).
	MathKind string `yaml:"math_kind"`
	Tags     []Tag  `yaml:"tags"`
	Passive  bool   `yaml:"passive"`

	Resource Resource `yaml:"resource"`
	Cost     int      `yaml:"cost"`

	Dice      string  `yaml:"dice"`
	DiceBonus float64 `yaml:"dice_bonus"`

	Attack      *AttackConfig      `yaml:"attack,omitempty"`
	Restoration *RestorationConfig `yaml:"restoration,omitempty"`
	Buff        *BuffConfig        `yaml:"buff,omitempty"`
	Debuff      *DebuffConfig      `yaml:"debuff,omitempty"`
	Repair      *RepairConfig      `yaml:"repair,omitempty"`

	Area   *AreaDef   `yaml:"area,omitempty"`
	Chains []ChainDef `yaml:"chains,omitempty"`

	// Optional Lua hook names resolved by the scripting manager.
	OnCast string `yaml:"on_cast"`
	OnHit  string `yaml:"on_hit"`
}

// AugmentDef is the augment variant: bonuses granted to the host gear item.
type AugmentDef struct {
	StatBonuses       map[stats.Ability]float64    `yaml:"stat_bonuses"`
	DefenseBonuses    map[stats.Defense]float64    `yaml:"defense_bonuses"`
	MitigationBonuses map[stats.Mitigation]float64 `yaml:"mitigation_bonuses"`
}

// TemplateDef is the progression template variant: rank-keyed per-level stat
// gains and free-point grants for a race, class, or profession.
type TemplateDef struct {
	// Progression is race, class, or profession.
	Progression string `yaml:"progression"`
	// Gains maps rank → per-level ability gains.
	Gains map[stats.Rank]map[stats.Ability]float64 `yaml:"gains"`
	// FreePoints maps rank → free points granted per level.
	FreePoints map[stats.Rank]int `yaml:"free_points"`
}

// GainsForLevel returns the per-level ability gains and free points at level.
func (t *TemplateDef) GainsForLevel(level int) (map[stats.Ability]float64, int) {
	rank := stats.RankForLevel(level)
	return t.Gains[rank], t.FreePoints[rank]
}

// FeatureDef is the flavor-only variant.
type FeatureDef struct {
	Text string `yaml:"text"`
}

// Validate checks that the Def satisfies its invariants.
//
// Postcondition: returns nil iff the envelope and its kind section are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if !validKinds[d.Kind] {
		errs = append(errs, fmt.Errorf("Kind must be one of gear, skill, augment, template, feature; got %q", d.Kind))
	}
	if d.Weight < 0 {
		errs = append(errs, errors.New("Weight must be >= 0"))
	}

	switch d.Kind {
	case KindGear:
		if d.Gear == nil {
			errs = append(errs, errors.New("gear section is required when Kind is gear"))
		} else if d.Gear.Slot == "" {
			if !d.Gear.RepairKit {
				errs = append(errs, errors.New("gear.slot must not be empty"))
			}
		} else if !validGearSlots[d.Gear.Slot] {
			errs = append(errs, fmt.Errorf("gear.slot %q is not a recognised slot", d.Gear.Slot))
		}
	case KindSkill:
		if d.Skill == nil {
			errs = append(errs, errors.New("skill section is required when Kind is skill"))
		} else {
			errs = append(errs, d.Skill.validate()...)
		}
	case KindAugment:
		if d.Augment == nil {
			errs = append(errs, errors.New("augment section is required when Kind is augment"))
		}
	case KindTemplate:
		if d.Template == nil {
			errs = append(errs, errors.New("template section is required when Kind is template"))
		} else {
			switch d.Template.Progression {
			case "race", "class", "profession":
			default:
				errs = append(errs, fmt.Errorf("template.progression must be race, class, or profession; got %q", d.Template.Progression))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("item %q validation failed: %v", d.ID, errs)
	}
	return nil
}

func (s *SkillDef) validate() []error {
	var errs []error
	for _, tag := range s.Tags {
		if !validTags[tag] {
			errs = append(errs, fmt.Errorf("unknown tag %q", tag))
		}
	}
	if !s.Passive && len(s.Tags) == 0 {
		errs = append(errs, errors.New("non-passive skill must declare at least one tag"))
	}
	if s.Cost < 0 {
		errs = append(errs, errors.New("skill.cost must be >= 0"))
	}
	if s.Cost > 0 {
		switch s.Resource {
		case ResourceHealth, ResourceStamina, ResourceMana:
		default:
			errs = append(errs, fmt.Errorf("skill.resource must be health, stamina, or mana; got %q", s.Resource))
		}
	}
	if s.Area != nil {
		switch s.Area.Shape {
		case "circle", "cone", "ray", "rect":
		default:
			errs = append(errs, fmt.Errorf("area.shape must be circle, cone, ray, or rect; got %q", s.Area.Shape))
		}
	}
	for _, c := range s.Chains {
		switch c.Trigger {
		case ChainAlways, ChainOnHit, ChainOnMiss:
		default:
			errs = append(errs, fmt.Errorf("chain trigger must be always, on-hit, or on-miss; got %q", c.Trigger))
		}
	}
	return errs
}

// HasTag reports whether the skill carries the given tag.
func (s *SkillDef) HasTag(tag Tag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
