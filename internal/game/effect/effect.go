// Package effect implements the active-effect ledger: timed, categorized
// modifier records attached to an entity, consumed by the stat pipeline as
// contribution inputs.
package effect

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Attribute path prefixes recognised by Contributions.
const (
	pathAbilities   = "abilities."
	pathDefenses    = "defenses."
	pathMitigations = "mitigations."
)

// Change is one (path, operation, value) mutation carried by an effect.
// Paths address derived-state attributes, e.g. "abilities.strength",
// "defenses.melee", "mitigations.armor".
type Change struct {
	Path  string
	Op    stats.Op
	Value float64
}

// DoT is a per-round damage payload that bypasses armor and veil.
type DoT struct {
	// Amount is the damage applied each round at the applier's turn.
	Amount int
	// Magical selects which durability degradation pathway incoming gear
	// damage would use; the DoT itself ignores both mitigations.
	Magical bool
	// AppliedBy is the actor whose turn triggers the tick.
	AppliedBy string
}

// Effect is one active ledger entry.
type Effect struct {
	ID       string
	Name     string
	Origin   string // id of the item or actor that created this effect
	Category stats.Category
	Changes  []Change

	// Duration is the lifetime in rounds; 0 means no round-based expiry.
	// Equipment-category effects never round-expire regardless of Duration.
	Duration   int
	StartRound int

	// Disabled suppresses the effect's contributions without deleting it
	// (broken gear keeps its entry so repair can re-enable it).
	Disabled bool

	Stackable bool
	DoT       *DoT
}

// Magnitude is the total strength used to compare competing non-stackable
// effects: the sum of absolute change values plus any DoT amount.
func (e *Effect) Magnitude() float64 {
	total := 0.0
	for _, c := range e.Changes {
		total += math.Abs(c.Value)
	}
	if e.DoT != nil {
		total += math.Abs(float64(e.DoT.Amount))
	}
	return total
}

// Expired reports whether the effect's round-based lifetime has elapsed.
// Equipment effects only expire by explicit removal.
func (e *Effect) Expired(currentRound int) bool {
	if e.Category == stats.CategoryEquipment || e.Duration <= 0 {
		return false
	}
	return currentRound-e.StartRound >= e.Duration
}

// Spec describes an effect to create or merge into a ledger.
type Spec struct {
	Name      string
	Origin    string
	Category  stats.Category
	Changes   []Change
	Duration  int
	Stackable bool
	DoT       *DoT
}

// newEffect materialises a Spec as a fresh ledger entry.
func newEffect(spec Spec, currentRound int) *Effect {
	e := &Effect{
		ID:         uuid.NewString(),
		Name:       spec.Name,
		Origin:     spec.Origin,
		Category:   spec.Category,
		Changes:    append([]Change(nil), spec.Changes...),
		Duration:   spec.Duration,
		StartRound: currentRound,
		Stackable:  spec.Stackable,
	}
	if spec.DoT != nil {
		dot := *spec.DoT
		e.DoT = &dot
	}
	return e
}

// AbilityPath returns the change path addressing an ability.
func AbilityPath(a stats.Ability) string {
	return pathAbilities + string(a)
}

// DefensePath returns the change path addressing a defense.
func DefensePath(d stats.Defense) string {
	return pathDefenses + string(d)
}

// MitigationPath returns the change path addressing a mitigation.
func MitigationPath(m stats.Mitigation) string {
	return pathMitigations + string(m)
}

// splitPath classifies a change path. Unrecognised paths yield ok == false
// and are silently skipped by Contributions.
func splitPath(path string) (kind, name string, ok bool) {
	switch {
	case strings.HasPrefix(path, pathAbilities):
		return "ability", strings.TrimPrefix(path, pathAbilities), true
	case strings.HasPrefix(path, pathDefenses):
		return "defense", strings.TrimPrefix(path, pathDefenses), true
	case strings.HasPrefix(path, pathMitigations):
		return "mitigation", strings.TrimPrefix(path, pathMitigations), true
	}
	return "", "", false
}
