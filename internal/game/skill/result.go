package skill

import "github.com/sevenleaf/ascendant/internal/game/dice"

// TargetOutcome records what one tag dispatch pass did to one target.
type TargetOutcome struct {
	TargetID string
	// AttackRolled is true when an attack tag ran against this target;
	// Hit is only meaningful then.
	AttackRolled bool
	Hit          bool
	// Damage is the post-mitigation damage submitted for this target.
	Damage int
	// Restored is the rolled restoration amount submitted for this target.
	Restored int
	// Repair is the rolled repair amount submitted for this target.
	Repair int
	// EffectsApplied counts buff/debuff intents submitted for this target.
	EffectsApplied int
}

// Result is the outcome of one skill activation.
type Result struct {
	SkillID string
	// Category carries the skill's display grouping for transport clients.
	Category string
	CasterID string

	// Aborted is true when the pipeline stopped before any mutation:
	// insufficient resource or cancelled placement.
	Aborted bool
	// Notices carries user-facing text: passive descriptions, abort
	// reasons, hit/miss summaries.
	Notices []string

	// HitRoll and DamageRoll are each evaluated exactly once; every tag
	// and every target shares these results.
	HitRoll    *dice.FormulaResult
	DamageRoll *dice.FormulaResult

	Targets []TargetOutcome
	// CostPaid is the resource amount actually deducted (zero on abort).
	CostPaid int
	// TemplateID is set when a timed area template was left in play.
	TemplateID string
	// Chained holds results of follow-up skills run by chain entries.
	Chained []*Result
}

func (r *Result) notice(text string) {
	r.Notices = append(r.Notices, text)
}

// outcomeFor returns the outcome entry for a target, creating it on first use.
func (r *Result) outcomeFor(targetID string) *TargetOutcome {
	for i := range r.Targets {
		if r.Targets[i].TargetID == targetID {
			return &r.Targets[i]
		}
	}
	r.Targets = append(r.Targets, TargetOutcome{TargetID: targetID})
	return &r.Targets[len(r.Targets)-1]
}
