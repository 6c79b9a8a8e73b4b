// Package equip owns the derived consequences of carrying gear: slot
// occupancy, the single equipment-category ledger effect each equipped item
// contributes, and durability arithmetic (degradation, breakage, repair,
// weapon overstrike).
package equip

import (
	"errors"
	"fmt"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

var (
	// ErrUnknownItem means the instance id is not owned by the actor.
	ErrUnknownItem = errors.New("equip: unknown item instance")
	// ErrNotGear means the item's definition has no gear section.
	ErrNotGear = errors.New("equip: item is not gear")
	// ErrSlotFull means the slot's capacity is already reached.
	ErrSlotFull = errors.New("equip: slot capacity reached")
	// ErrHandsOccupied means the two-handed exclusivity rule blocks the equip.
	ErrHandsOccupied = errors.New("equip: hand slots occupied")
)

// Equip marks an owned gear instance as equipped and synchronizes its
// equipment effect. Equipping an already-equipped item re-synchronizes the
// effect and succeeds.
//
// Hand-slot items enforce two-handed exclusivity on top of the capacity
// table: a two-handed item needs both hand slots free, and nothing can join
// a two-hander in the hands.
//
// Postcondition: on success the actor's ledger holds exactly one
// equipment-category effect originating from this instance.
func Equip(a *actor.Actor, reg *item.Registry, instanceID string) error {
	st, gear, err := gearState(a, reg, instanceID)
	if err != nil {
		return err
	}
	if !st.Equipped {
		if err := checkSlot(a, reg, gear); err != nil {
			return err
		}
		st.Equipped = true
		st.Slot = gear.Slot
	}
	SyncDurability(st, gear)
	return syncEffect(a, reg, st, gear)
}

// Unequip clears an instance's equipped state and removes its equipment
// effect. Unequipping an unequipped item is a no-op.
func Unequip(a *actor.Actor, instanceID string) error {
	st := a.Item(instanceID)
	if st == nil {
		return ErrUnknownItem
	}
	st.Equipped = false
	st.Slot = ""
	a.Ledger.RemoveByOrigin(st.ID)
	return nil
}

// DeleteItem removes an item instance entirely, dropping any equipment
// effect it contributed.
func DeleteItem(a *actor.Actor, instanceID string) bool {
	a.Ledger.RemoveByOrigin(instanceID)
	return a.RemoveItem(instanceID)
}

func gearState(a *actor.Actor, reg *item.Registry, instanceID string) (*actor.ItemState, *item.GearDef, error) {
	st := a.Item(instanceID)
	if st == nil {
		return nil, nil, ErrUnknownItem
	}
	def, ok := reg.Get(st.DefID)
	if !ok || def.Gear == nil {
		return nil, nil, ErrNotGear
	}
	return st, def.Gear, nil
}

// checkSlot validates slot capacity and the hand exclusivity rule against
// the actor's currently equipped items.
func checkSlot(a *actor.Actor, reg *item.Registry, gear *item.GearDef) error {
	capacity := Capacity(gear.Slot)
	if capacity == 0 {
		return fmt.Errorf("equip: unknown slot %q", gear.Slot)
	}

	occupied := 0
	twoHanderPresent := false
	for _, other := range a.EquippedItems() {
		if other.Slot != gear.Slot {
			continue
		}
		occupied++
		if gear.Slot == SlotHand {
			if def, ok := reg.Get(other.DefID); ok && def.Gear != nil && def.Gear.TwoHanded {
				twoHanderPresent = true
			}
		}
	}

	if gear.Slot == SlotHand {
		if twoHanderPresent {
			return ErrHandsOccupied
		}
		if gear.TwoHanded && occupied > 0 {
			return ErrHandsOccupied
		}
	}
	if occupied >= capacity {
		return ErrSlotFull
	}
	return nil
}

// syncEffect replaces the instance's equipment effect with one rebuilt from
// the gear bonuses plus every slotted augment's bonuses. A broken item keeps
// the entry disabled rather than deleted so repair can re-enable it.
func syncEffect(a *actor.Actor, reg *item.Registry, st *actor.ItemState, gear *item.GearDef) error {
	def, _ := reg.Get(st.DefID)

	changes := bonusChanges(gear.StatBonuses, gear.DefenseBonuses, gear.MitigationBonuses)
	for _, augID := range st.Augments {
		augState := a.Item(augID)
		if augState == nil {
			continue
		}
		augDef, ok := reg.Get(augState.DefID)
		if !ok || augDef.Augment == nil {
			continue
		}
		aug := augDef.Augment
		changes = append(changes, bonusChanges(aug.StatBonuses, aug.DefenseBonuses, aug.MitigationBonuses)...)
	}

	a.Ledger.RemoveByOrigin(st.ID)
	if len(changes) == 0 {
		return nil
	}
	a.Ledger.Apply(effect.Spec{
		Name:     def.Name,
		Origin:   st.ID,
		Category: stats.CategoryEquipment,
		Changes:  changes,
	}, 0)
	if st.Durability.Broken() {
		a.Ledger.SetDisabledByOrigin(st.ID, true)
	}
	return nil
}

func bonusChanges(abilities map[stats.Ability]float64, defenses map[stats.Defense]float64, mitigations map[stats.Mitigation]float64) []effect.Change {
	var changes []effect.Change
	for ability, v := range abilities {
		changes = append(changes, effect.Change{Path: effect.AbilityPath(ability), Op: stats.OpAdd, Value: v})
	}
	for defense, v := range defenses {
		changes = append(changes, effect.Change{Path: effect.DefensePath(defense), Op: stats.OpAdd, Value: v})
	}
	for mitigation, v := range mitigations {
		changes = append(changes, effect.Change{Path: effect.MitigationPath(mitigation), Op: stats.OpAdd, Value: v})
	}
	return changes
}

// SlotAugment slots an owned augment instance into an equipped host item and
// re-synchronizes the host's equipment effect.
func SlotAugment(a *actor.Actor, reg *item.Registry, hostID, augmentID string) error {
	host, gear, err := gearState(a, reg, hostID)
	if err != nil {
		return err
	}
	if len(host.Augments) >= gear.AugmentSlots {
		return fmt.Errorf("equip: no free augment slots on %s", host.DefID)
	}
	augState := a.Item(augmentID)
	if augState == nil {
		return ErrUnknownItem
	}
	augDef, ok := reg.Get(augState.DefID)
	if !ok || augDef.Augment == nil {
		return fmt.Errorf("equip: %s is not an augment", augState.DefID)
	}
	host.Augments = append(host.Augments, augmentID)
	if host.Equipped {
		return syncEffect(a, reg, host, gear)
	}
	return nil
}
