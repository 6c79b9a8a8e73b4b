package equip

import (
	"errors"
	"sort"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// ErrNotRepairKit means the named consumable cannot repair gear.
var ErrNotRepairKit = errors.New("equip: item is not a repair kit")

// DurabilityForProgress derives an item's maximum durability from its
// progress rating.
func DurabilityForProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	return 2 * progress
}

// DamageLimit is the raw damage a weapon absorbs without degrading.
func DamageLimit(progress int) int {
	return 3 * progress
}

// SyncDurability recomputes max from the gear's progress rating and clamps
// the current value. A fresh instance (max previously zero) starts at full
// durability.
func SyncDurability(st *actor.ItemState, gear *item.GearDef) {
	max := DurabilityForProgress(gear.Progress)
	fresh := st.Durability.Max == 0
	st.Durability.Max = max
	if fresh || st.Durability.Value > max {
		st.Durability.Value = max
	}
	if st.Durability.Value < 0 {
		st.Durability.Value = 0
	}
}

// Degrade subtracts amount from an instance's durability, clamped at zero.
// Reaching zero disables the item's equipment effect without deleting the
// item. Returns whether the item broke on this call.
func Degrade(a *actor.Actor, instanceID string, amount int) (broke bool, err error) {
	st := a.Item(instanceID)
	if st == nil {
		return false, ErrUnknownItem
	}
	if amount <= 0 || st.Durability.Broken() {
		return false, nil
	}
	st.Durability.Value -= amount
	if st.Durability.Value <= 0 {
		st.Durability.Value = 0
		a.Ledger.SetDisabledByOrigin(st.ID, true)
		return true, nil
	}
	return false, nil
}

// restore adds amount to an instance's durability, clamped at max, and
// re-enables the equipment effect if the item climbs above zero. Returns
// the durability actually restored.
func restore(a *actor.Actor, st *actor.ItemState, amount int) int {
	if amount <= 0 {
		return 0
	}
	wasBroken := st.Durability.Broken()
	deficit := st.Durability.Max - st.Durability.Value
	if amount > deficit {
		amount = deficit
	}
	st.Durability.Value += amount
	if wasBroken && st.Durability.Value > 0 {
		a.Ledger.SetDisabledByOrigin(st.ID, false)
	}
	return amount
}

// Repair applies a repair kit to an owned item, restoring the kit's repair
// amount and consuming one unit of the kit's quantity. The kit instance is
// deleted when its quantity reaches zero.
func Repair(a *actor.Actor, reg *item.Registry, instanceID, kitID string) error {
	st := a.Item(instanceID)
	if st == nil {
		return ErrUnknownItem
	}
	kit := a.Item(kitID)
	if kit == nil {
		return ErrUnknownItem
	}
	kitDef, ok := reg.Get(kit.DefID)
	if !ok || kitDef.Gear == nil || !kitDef.Gear.RepairKit {
		return ErrNotRepairKit
	}

	restore(a, st, kitDef.Gear.RepairAmount)
	kit.Quantity--
	if kit.Quantity <= 0 {
		a.RemoveItem(kit.ID)
	}
	return nil
}

// RepairAllEquipped splits amount equally across the target's equipped,
// damaged gear whose material is on the allow-list (empty list matches all
// materials). Broken items revive mid-distribution once their share lifts
// them above zero. Returns the total durability restored.
func RepairAllEquipped(a *actor.Actor, reg *item.Registry, amount int, materials []string) int {
	if amount <= 0 {
		return 0
	}
	allowed := make(map[string]bool, len(materials))
	for _, m := range materials {
		allowed[m] = true
	}

	var damaged []*actor.ItemState
	for _, st := range a.EquippedItems() {
		def, ok := reg.Get(st.DefID)
		if !ok || def.Gear == nil {
			continue
		}
		if len(allowed) > 0 && !allowed[def.Gear.Material] {
			continue
		}
		if st.Durability.Value < st.Durability.Max {
			damaged = append(damaged, st)
		}
	}
	if len(damaged) == 0 {
		return 0
	}
	// Map iteration order is random; fix it so the remainder lands
	// deterministically.
	sort.Slice(damaged, func(i, j int) bool { return damaged[i].ID < damaged[j].ID })

	share := amount / len(damaged)
	remainder := amount % len(damaged)
	total := 0
	for i, st := range damaged {
		portion := share
		if i < remainder {
			portion++
		}
		total += restore(a, st, portion)
	}
	return total
}

// DegradeMitigating spreads incoming wear equally across the target's
// equipped, unbroken, non-weapon gear carrying the matching mitigation:
// armor pieces for physical damage, veil pieces for magical. Returns the
// total durability lost and the ids of items that broke.
func DegradeMitigating(a *actor.Actor, reg *item.Registry, amount int, magical bool) (int, []string) {
	if amount <= 0 {
		return 0, nil
	}
	mitigation := stats.MitigationArmor
	if magical {
		mitigation = stats.MitigationVeil
	}

	var exposed []*actor.ItemState
	for _, st := range a.EquippedItems() {
		def, ok := reg.Get(st.DefID)
		if !ok || def.Gear == nil || def.Gear.Weapon {
			continue
		}
		if def.Gear.MitigationBonuses[mitigation] <= 0 {
			continue
		}
		if st.Durability.Broken() {
			continue
		}
		exposed = append(exposed, st)
	}
	if len(exposed) == 0 {
		return 0, nil
	}
	sort.Slice(exposed, func(i, j int) bool { return exposed[i].ID < exposed[j].ID })

	share := amount / len(exposed)
	remainder := amount % len(exposed)
	total := 0
	var broken []string
	for i, st := range exposed {
		portion := share
		if i < remainder {
			portion++
		}
		if portion > st.Durability.Value {
			portion = st.Durability.Value
		}
		if portion <= 0 {
			continue
		}
		broke, err := Degrade(a, st.ID, portion)
		if err != nil {
			continue
		}
		total += portion
		if broke {
			broken = append(broken, st.ID)
		}
	}
	return total, broken
}

// GrantedSkills lists the skill ids granted by the actor's equipped,
// unbroken gear. A broken item withholds its skills until repaired.
func GrantedSkills(a *actor.Actor, reg *item.Registry) []string {
	var out []string
	seen := make(map[string]bool)
	for _, st := range a.EquippedItems() {
		if st.Durability.Broken() {
			continue
		}
		def, ok := reg.Get(st.DefID)
		if !ok || def.Gear == nil {
			continue
		}
		for _, id := range def.Gear.GrantedSkills {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Overstrike applies the weapon degradation rule: raw pre-mitigation damage
// above the weapon's damage limit degrades the weapon by the excess. Only
// gear marked as a weapon is subject to the rule. Returns the durability
// lost.
func Overstrike(a *actor.Actor, reg *item.Registry, weaponID string, rawDamage int) (int, error) {
	st := a.Item(weaponID)
	if st == nil {
		return 0, ErrUnknownItem
	}
	def, ok := reg.Get(st.DefID)
	if !ok || def.Gear == nil {
		return 0, ErrNotGear
	}
	if !def.Gear.Weapon {
		return 0, nil
	}
	limit := DamageLimit(def.Gear.Progress)
	excess := rawDamage - limit
	if excess <= 0 {
		return 0, nil
	}
	if _, err := Degrade(a, weaponID, excess); err != nil {
		return 0, err
	}
	return excess, nil
}
