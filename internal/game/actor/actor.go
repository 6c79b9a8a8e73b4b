// Package actor defines the runtime entity model: abilities, resource pools,
// progressions, owned items, and the attached effect ledger.
package actor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Kind classifies an entity.
type Kind string

const (
	KindCharacter Kind = "character"
	KindNPC       Kind = "npc"
	// KindFamiliar levels through its race progression only.
	KindFamiliar Kind = "familiar"
)

// Disposition is the three-way allegiance classification used by area
// targeting.
type Disposition string

const (
	DispositionFriendly Disposition = "friendly"
	DispositionHostile  Disposition = "hostile"
	DispositionNeutral  Disposition = "neutral"
)

// Position is a scene location in grid units.
type Position struct {
	X float64
	Y float64
}

// Pool is one resource pool. Current is always clamped to [Min, Max].
type Pool struct {
	Current int
	Min     int
	Max     int
}

// Set assigns Current, clamped to [Min, Max], and returns the applied delta.
func (p *Pool) Set(value int) int {
	before := p.Current
	if value > p.Max {
		value = p.Max
	}
	if value < p.Min {
		value = p.Min
	}
	p.Current = value
	return p.Current - before
}

// Add adjusts Current by delta with clamping and returns the applied delta,
// which may be smaller in magnitude than requested when near a bound.
func (p *Pool) Add(delta int) int {
	return p.Set(p.Current + delta)
}

// Progression tracks one advancement track (race, class, or profession).
type Progression struct {
	Level      int
	TemplateID string
}

// Rank returns the letter rank derived from the progression level.
func (p Progression) Rank() stats.Rank {
	return stats.RankForLevel(p.Level)
}

// Durability tracks an item instance's wear state.
type Durability struct {
	Value int
	Max   int
}

// Broken reports whether the item has no durability left.
func (d Durability) Broken() bool {
	return d.Value <= 0
}

// ItemState is one owned item instance. Definition data stays in the item
// registry; this carries only per-instance state.
type ItemState struct {
	ID         string // instance id
	DefID      string
	Quantity   int
	Durability Durability
	Equipped   bool
	Slot       string
	// Augments lists the instance ids of augments slotted into this item.
	Augments []string
}

// Actor is one entity: character, NPC, or familiar.
type Actor struct {
	ID          string
	Name        string
	Kind        Kind
	Disposition Disposition
	Hidden      bool
	OwnerID     string // participant that owns this entity
	Pos         Position

	Bases      map[stats.Ability]float64
	FreePoints int

	Race       Progression
	Class      Progression
	Profession Progression

	Health  Pool
	Stamina Pool
	Mana    Pool

	Ledger *effect.Ledger
	Items  map[string]*ItemState
}

// New creates an Actor with zeroed pools, an empty ledger, and no items.
//
// Precondition: name must be non-empty.
func New(name string, kind Kind, disposition Disposition) *Actor {
	bases := make(map[stats.Ability]float64, 9)
	for _, a := range stats.Abilities() {
		bases[a] = 0
	}
	return &Actor{
		ID:          uuid.NewString(),
		Name:        name,
		Kind:        kind,
		Disposition: disposition,
		Bases:       bases,
		Ledger:      effect.NewLedger(),
		Items:       make(map[string]*ItemState),
	}
}

// StatsInput assembles the derivation input from stored bases and the ledger.
func (a *Actor) StatsInput() stats.Input {
	contribs, defenses, mitigations := a.Ledger.Contributions()
	return stats.Input{
		Bases:             a.Bases,
		Contributions:     contribs,
		DefenseBonuses:    defenses,
		MitigationBonuses: mitigations,
		RaceRank:          a.Race.Rank(),
	}
}

// SyncPools updates resource maxima from a derivation, clamping current values.
//
// Postcondition: every pool's Current is within [Min, Max].
func (a *Actor) SyncPools(d stats.Derived) {
	a.Health.Max = d.HealthMax
	a.Mana.Max = d.ManaMax
	a.Stamina.Max = d.StaminaMax
	a.Health.Set(a.Health.Current)
	a.Mana.Set(a.Mana.Current)
	a.Stamina.Set(a.Stamina.Current)
}

// PoolFor returns the pool for a named resource.
func (a *Actor) PoolFor(r item.Resource) *Pool {
	switch r {
	case item.ResourceHealth:
		return &a.Health
	case item.ResourceStamina:
		return &a.Stamina
	case item.ResourceMana:
		return &a.Mana
	}
	return nil
}

// ApplyDamage subtracts amount from health, clamped at the pool minimum, and
// returns the health actually lost.
func (a *Actor) ApplyDamage(amount int) int {
	if amount < 0 {
		amount = 0
	}
	return -a.Health.Add(-amount)
}

// Restore adds amount to the named resource, clamped at the maximum, and
// returns the amount actually restored (less than requested near the cap).
func (a *Actor) Restore(r item.Resource, amount int) int {
	p := a.PoolFor(r)
	if p == nil || amount < 0 {
		return 0
	}
	return p.Add(amount)
}

// AllocateFreePoints moves amount free points into the base value of ability.
//
// Postcondition: returns an error and changes nothing when amount exceeds the
// available free points or the ability is unknown.
func (a *Actor) AllocateFreePoints(ability stats.Ability, amount int) error {
	if !ability.Valid() {
		return fmt.Errorf("unknown ability %q", ability)
	}
	if amount <= 0 {
		return fmt.Errorf("allocation must be positive, got %d", amount)
	}
	if amount > a.FreePoints {
		return fmt.Errorf("not enough free points: have %d, want %d", a.FreePoints, amount)
	}
	a.FreePoints -= amount
	a.Bases[ability] += float64(amount)
	return nil
}

// LevelUp advances the progression to targetLevel, applying the template's
// rank-keyed per-level gains to base values and banking free points.
//
// Precondition: prog must be one of &a.Race, &a.Class, &a.Profession.
func (a *Actor) LevelUp(prog *Progression, tpl *item.TemplateDef, targetLevel int) error {
	if tpl == nil {
		return fmt.Errorf("progression has no template")
	}
	if targetLevel <= prog.Level {
		return fmt.Errorf("target level %d must exceed current level %d", targetLevel, prog.Level)
	}
	for lvl := prog.Level + 1; lvl <= targetLevel; lvl++ {
		gains, freePoints := tpl.GainsForLevel(lvl)
		for ability, gain := range gains {
			if ability.Valid() {
				a.Bases[ability] += gain
			}
		}
		a.FreePoints += freePoints
	}
	prog.Level = targetLevel
	return nil
}

// AddItem creates an item instance for def and returns it.
func (a *Actor) AddItem(def *item.Def, quantity int) *ItemState {
	if quantity < 1 {
		quantity = 1
	}
	st := &ItemState{
		ID:       uuid.NewString(),
		DefID:    def.ID,
		Quantity: quantity,
	}
	a.Items[st.ID] = st
	return st
}

// RemoveItem deletes an item instance and returns whether it existed.
func (a *Actor) RemoveItem(instanceID string) bool {
	if _, ok := a.Items[instanceID]; !ok {
		return false
	}
	delete(a.Items, instanceID)
	return true
}

// Item returns the item instance with the given id, or nil.
func (a *Actor) Item(instanceID string) *ItemState {
	return a.Items[instanceID]
}

// EquippedItems returns all currently equipped item instances.
func (a *Actor) EquippedItems() []*ItemState {
	var out []*ItemState
	for _, st := range a.Items {
		if st.Equipped {
			out = append(out, st)
		}
	}
	return out
}

// CarryWeight sums definition weight times quantity over all owned items,
// rounded to one decimal.
func (a *Actor) CarryWeight(reg *item.Registry) float64 {
	var weights []float64
	var quantities []int
	for _, st := range a.Items {
		def, ok := reg.Get(st.DefID)
		if !ok {
			continue
		}
		weights = append(weights, def.Weight)
		quantities = append(quantities, st.Quantity)
	}
	return stats.CarryWeight(weights, quantities)
}
