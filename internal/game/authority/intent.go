// Package authority serializes privileged mutations. Every change to an
// entity not owned by the acting participant travels here as an Intent;
// the single authority participant executes intents one at a time in
// arrival order, which structurally rules out lost-update races.
package authority

import (
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/item"
)

// Intent is one privileged mutation request. The concrete types below form
// a closed set; the router's execution switch covers all of them.
type Intent interface {
	isIntent()
}

// ApplyDamage subtracts health from a target.
type ApplyDamage struct {
	TargetID string
	Amount   int
	// SourceID identifies the attacker for the broadcast event.
	SourceID string
	// SkillName labels the broadcast event for notices.
	SkillName string
}

// RestoreResource adds to a target's resource pool, clamped at its maximum.
type RestoreResource struct {
	TargetID string
	Resource item.Resource
	Amount   int
}

// ApplyEffect inserts or merges a ledger effect on the target.
type ApplyEffect struct {
	TargetID string
	Spec     effect.Spec
}

// RemoveEffects deletes all of the target's effects sharing an origin.
type RemoveEffects struct {
	TargetID string
	OriginID string
}

// DegradeDurability subtracts durability from one of the target's items.
type DegradeDurability struct {
	TargetID string
	ItemID   string
	Amount   int
}

// RepairDistribute splits a repair amount across the target's damaged,
// material-matching equipped gear.
type RepairDistribute struct {
	TargetID  string
	Amount    int
	Materials []string
}

// PlaceTemplate registers a confirmed timed area template in the shared
// store. The store is touched only by the authority goroutine, so placement
// travels as an intent like every other shared mutation.
type PlaceTemplate struct {
	Template *area.Template
}

// DeleteTemplate removes a resolved or expired area template.
type DeleteTemplate struct {
	TemplateID string
}

// WearMitigatingGear degrades the target's equipped, non-weapon gear that
// carries the mitigation matching an incoming attack's damage type:
// armor pieces for physical damage, veil pieces for magical.
type WearMitigatingGear struct {
	TargetID string
	Amount   int
	Magical  bool
}

// SpendResource deducts a skill's resource cost from its caster.
type SpendResource struct {
	TargetID string
	Resource item.Resource
	Amount   int
}

// TurnEnd announces a turn boundary. The authority reacts with the
// idempotent round sweeps; everyone else observes and no-ops.
type TurnEnd struct {
	Round       int
	TurnActorID string
}

func (ApplyDamage) isIntent()        {}
func (RestoreResource) isIntent()    {}
func (ApplyEffect) isIntent()        {}
func (RemoveEffects) isIntent()      {}
func (DegradeDurability) isIntent()  {}
func (RepairDistribute) isIntent()   {}
func (PlaceTemplate) isIntent()      {}
func (DeleteTemplate) isIntent()     {}
func (WearMitigatingGear) isIntent() {}
func (SpendResource) isIntent()      {}
func (TurnEnd) isIntent()            {}
