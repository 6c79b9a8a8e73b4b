package equip

// Canonical gear slot names. Content definitions must use these exactly;
// Registry validation rejects anything else.
const (
	SlotHead  = "head"
	SlotChest = "chest"
	SlotLegs  = "legs"
	SlotFeet  = "feet"
	SlotHand  = "hand"
	SlotNeck  = "neck"
	SlotRing  = "ring"
	SlotBack  = "back"
	SlotWaist = "waist"
)

// slotCapacity caps how many items may occupy each slot at once.
var slotCapacity = map[string]int{
	SlotHead:  1,
	SlotChest: 1,
	SlotLegs:  1,
	SlotFeet:  1,
	SlotHand:  2,
	SlotNeck:  1,
	SlotRing:  10,
	SlotBack:  1,
	SlotWaist: 1,
}

// Capacity returns the occupancy cap for a slot, or 0 for unknown slots.
func Capacity(slot string) int {
	return slotCapacity[slot]
}

// KnownSlot reports whether slot is a recognised gear slot name.
func KnownSlot(slot string) bool {
	_, ok := slotCapacity[slot]
	return ok
}
