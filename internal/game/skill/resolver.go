package skill

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/authority"
	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/equip"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Placer finalizes an area template through interactive user input. It is
// the one blocking step of the pipeline: it waits on pointer events with no
// timeout and returns area.ErrCancelled on explicit abort.
type Placer interface {
	Place(ctx context.Context, req area.Request) (*area.Template, error)
}

// Hooks runs optional scripted callbacks on cast and on hit. A nil Hooks
// disables them. Hook failures must never fail resolution.
type Hooks interface {
	OnCast(hook, skillID, casterID string)
	OnHit(hook, skillID, casterID, targetID string)
}

// ErrUnknownSkill means the skill id has no registered definition.
var ErrUnknownSkill = errors.New("skill: unknown skill")

// ErrUnknownCaster means the caster id resolves to no live actor.
var ErrUnknownCaster = errors.New("skill: unknown caster")

// Resolver runs the activation pipeline. It never mutates shared entities
// directly; every mutation leaves as an authority intent.
type Resolver struct {
	reg    *item.Registry
	dir    authority.Directory
	router *authority.Router
	roller *dice.Roller
	placer Placer
	hooks  Hooks
	log    *zap.Logger
}

// NewResolver wires a Resolver. hooks may be nil.
func NewResolver(reg *item.Registry, dir authority.Directory, router *authority.Router, roller *dice.Roller, placer Placer, hooks Hooks, log *zap.Logger) *Resolver {
	return &Resolver{
		reg:    reg,
		dir:    dir,
		router: router,
		roller: roller,
		placer: placer,
		hooks:  hooks,
		log:    log,
	}
}

// Resolve runs one skill activation end to end: formula construction,
// resource validation, a single hit and damage evaluation, optional area
// placement, tag dispatch per target, cost deduction, and chained skills.
//
// Postcondition: a non-nil Result is returned for every pipeline outcome
// including aborts; errors are reserved for unknown ids and malformed
// definitions.
func (r *Resolver) Resolve(ctx context.Context, skillID, casterID, explicitTargetID string) (*Result, error) {
	def, ok := r.reg.Skill(skillID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, skillID)
	}
	caster := r.dir.Actor(casterID)
	if caster == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCaster, casterID)
	}
	return r.resolve(ctx, def, caster, nil, explicitTargetID, true)
}

// resolve is the shared pipeline. presetTargets is non-nil for chained
// skills, which reuse the parent's target set, skip placement, and pay no
// cost. payCost false also skips the sufficiency check.
func (r *Resolver) resolve(ctx context.Context, def *item.Def, caster *actor.Actor, presetTargets []*actor.Actor, explicitTargetID string, payCost bool) (*Result, error) {
	sk := def.Skill
	res := &Result{SkillID: def.ID, Category: sk.Category, CasterID: caster.ID}

	if sk.Passive {
		if def.Description != "" {
			res.notice(def.Description)
		} else {
			res.notice(def.Name)
		}
		return res, nil
	}

	formulas, err := BuildFormulas(sk)
	if err != nil {
		// An unrecognised math kind is a content gap, not a dead skill:
		// degrade to the generic pair (no to-hit, flat damage roll).
		r.log.Warn("unknown math kind, using generic formulas",
			zap.String("skill", def.ID), zap.Error(err))
		generic := *sk
		generic.MathKind = KindGeneric
		formulas, _ = BuildFormulas(&generic)
	}

	derived := stats.Derive(caster.StatsInput())
	vars := ModBindings(derived)

	if payCost && sk.Cost > 0 {
		pool := caster.PoolFor(sk.Resource)
		if pool == nil || pool.Current < sk.Cost {
			res.Aborted = true
			res.notice(fmt.Sprintf("not enough %s", sk.Resource))
			return res, nil
		}
	}

	// One hit roll and one damage roll; every tag and target shares them.
	if formulas.Hit != "" {
		hit, err := r.roller.EvalFormula(formulas.Hit, vars)
		if err != nil {
			return nil, err
		}
		res.HitRoll = &hit
	}
	damage, err := r.roller.EvalFormula(formulas.Damage, vars)
	if err != nil {
		return nil, err
	}
	res.DamageRoll = &damage

	targets := presetTargets
	var template *area.Template
	if targets == nil {
		targets, template, err = r.selectTargets(ctx, sk, caster, explicitTargetID, derived, res)
		if err != nil || res.Aborted {
			return res, err
		}
	}

	for _, target := range targets {
		r.dispatchTags(def, caster, target, res)
	}

	if payCost && sk.Cost > 0 {
		if err := r.router.Submit(caster.ID, authority.SpendResource{
			TargetID: caster.ID,
			Resource: sk.Resource,
			Amount:   sk.Cost,
		}); err != nil {
			r.log.Warn("cost deduction dropped", zap.String("caster", caster.ID), zap.Error(err))
		}
		res.CostPaid = sk.Cost
	}

	if template != nil {
		if template.Duration > 0 {
			if err := r.router.Submit(caster.ID, authority.PlaceTemplate{Template: template}); err != nil {
				r.log.Warn("template registration dropped", zap.String("template", template.ID), zap.Error(err))
			}
			res.TemplateID = template.ID
		} else {
			// Instantaneous templates disappear right after resolution.
			_ = r.router.Submit(caster.ID, authority.DeleteTemplate{TemplateID: template.ID}) //nolint:errcheck
		}
	}

	if r.hooks != nil && sk.OnCast != "" {
		r.hooks.OnCast(sk.OnCast, def.ID, caster.ID)
	}

	if presetTargets == nil {
		r.runChains(ctx, sk, caster, targets, res)
	}
	return res, nil
}

// selectTargets resolves the target set: area placement for AOE skills,
// otherwise the explicit target (or the caster for self-targeting skills).
func (r *Resolver) selectTargets(ctx context.Context, sk *item.SkillDef, caster *actor.Actor, explicitTargetID string, derived stats.Derived, res *Result) ([]*actor.Actor, *area.Template, error) {
	if sk.Area != nil {
		tpl, err := r.placer.Place(ctx, area.Request{
			Spec: area.Spec{
				Shape:      area.Shape(sk.Area.Shape),
				Size:       sk.Area.Size,
				Angle:      sk.Area.Angle,
				Duration:   sk.Area.Duration,
				Allegiance: area.Allegiance(sk.Area.Allegiance),
			},
			CasterID:     caster.ID,
			CasterPos:    caster.Pos,
			CastingRange: float64(derived.CastingRange),
			CurrentRound: r.router.Round(),
		})
		switch {
		case errors.Is(err, area.ErrCancelled):
			res.Aborted = true
			res.notice("placement cancelled")
			return nil, nil, nil
		case errors.Is(err, area.ErrOutOfRange):
			res.Aborted = true
			res.notice("target area out of casting range")
			return nil, nil, nil
		case err != nil:
			return nil, nil, err
		}
		allegiance := area.Allegiance(sk.Area.Allegiance)
		if allegiance == "" {
			allegiance = area.AllegianceAll
		}
		return area.QualifyingTargets(tpl, caster, r.dir.Actors(), allegiance), tpl, nil
	}

	if explicitTargetID != "" {
		target := r.dir.Actor(explicitTargetID)
		if target == nil {
			res.Aborted = true
			res.notice("no such target")
			return nil, nil, nil
		}
		return []*actor.Actor{target}, nil, nil
	}
	// Self-targeting fallback: no explicit target means the caster.
	return []*actor.Actor{caster}, nil, nil
}

// dispatchTags runs every tag of the skill against one target, all sharing
// the single roll pair already evaluated.
func (r *Resolver) dispatchTags(def *item.Def, caster, target *actor.Actor, res *Result) {
	sk := def.Skill
	out := res.outcomeFor(target.ID)
	rolled := int(math.Round(res.DamageRoll.Total))

	for _, tag := range sk.Tags {
		switch tag {
		case item.TagAttack:
			r.dispatchAttack(def, caster, target, res, out, rolled)
		case item.TagRestoration:
			r.dispatchRestoration(sk, caster, target, out, rolled)
		case item.TagBuff:
			r.dispatchBuff(def, caster, target, out, rolled)
		case item.TagDebuff:
			r.dispatchDebuff(def, caster, target, out, rolled)
		case item.TagRepair:
			r.dispatchRepair(sk, caster, target, out, rolled)
		default:
			r.log.Warn("unknown skill tag", zap.String("skill", def.ID), zap.String("tag", string(tag)))
		}
	}
}

func (r *Resolver) dispatchAttack(def *item.Def, caster, target *actor.Actor, res *Result, out *TargetOutcome, raw int) {
	sk := def.Skill
	cfg := sk.Attack
	if cfg == nil {
		cfg = &item.AttackConfig{Defense: stats.DefenseMelee}
	}

	td := stats.Derive(target.StatsInput())
	defense := td.Defenses[cfg.Defense]

	out.AttackRolled = true
	// Generic skills roll no to-hit and land automatically.
	out.Hit = res.HitRoll == nil || res.HitRoll.Total >= float64(defense)
	if !out.Hit {
		res.notice(fmt.Sprintf("%s misses %s", def.Name, target.Name))
		return
	}

	mitigation := td.Mitigations[stats.MitigationArmor]
	if cfg.Magical {
		mitigation = td.Mitigations[stats.MitigationVeil]
	}
	dmg := raw - mitigation - td.Modifier(stats.Toughness)
	if dmg < 0 {
		dmg = 0
	}
	out.Damage = dmg

	// Whatever the mitigation absorbed wears the gear that provided it:
	// armor pieces against physical damage, veil pieces against magical.
	absorbed := mitigation
	if raw < absorbed {
		absorbed = raw
	}
	if absorbed > 0 {
		_ = r.router.Submit(caster.ID, authority.WearMitigatingGear{ //nolint:errcheck
			TargetID: target.ID,
			Amount:   absorbed,
			Magical:  cfg.Magical,
		})
	}

	if err := r.router.Submit(caster.ID, authority.ApplyDamage{
		TargetID:  target.ID,
		Amount:    dmg,
		SourceID:  caster.ID,
		SkillName: def.Name,
	}); err != nil {
		r.log.Warn("damage intent dropped", zap.String("target", target.ID), zap.Error(err))
	}
	res.notice(fmt.Sprintf("%s hits %s for %d", def.Name, target.Name, dmg))

	// Overstrike: raw pre-mitigation damage above the named weapon's limit
	// wears the caster's own weapon. The caster owns it, so no intent.
	if cfg.WeaponItem != "" {
		if weapon := equippedByDef(caster, cfg.WeaponItem); weapon != nil {
			if lost, err := equip.Overstrike(caster, r.reg, weapon.ID, raw); err == nil && lost > 0 {
				res.notice(fmt.Sprintf("%s strains under the blow (-%d durability)", cfg.WeaponItem, lost))
			}
		}
	}

	if r.hooks != nil && sk.OnHit != "" {
		r.hooks.OnHit(sk.OnHit, def.ID, caster.ID, target.ID)
	}
}

func (r *Resolver) dispatchRestoration(sk *item.SkillDef, caster, target *actor.Actor, out *TargetOutcome, rolled int) {
	cfg := sk.Restoration
	if cfg == nil {
		cfg = &item.RestorationConfig{Resource: item.ResourceHealth}
	}
	recipient := target
	if cfg.TargetSelf {
		recipient = caster
	}
	out.Restored = rolled
	if err := r.router.Submit(caster.ID, authority.RestoreResource{
		TargetID: recipient.ID,
		Resource: cfg.Resource,
		Amount:   rolled,
	}); err != nil {
		r.log.Warn("restore intent dropped", zap.String("target", recipient.ID), zap.Error(err))
	}
}

func (r *Resolver) dispatchBuff(def *item.Def, caster, target *actor.Actor, out *TargetOutcome, rolled int) {
	cfg := def.Skill.Buff
	if cfg == nil || len(cfg.Attributes) == 0 {
		return
	}
	spec := attributeEffect(def, caster, cfg.Attributes, rolled, 1, cfg.Stackable, cfg.Duration)
	if len(spec.Changes) == 0 {
		return
	}
	out.EffectsApplied++
	_ = r.router.Submit(caster.ID, authority.ApplyEffect{TargetID: target.ID, Spec: spec}) //nolint:errcheck
}

func (r *Resolver) dispatchDebuff(def *item.Def, caster, target *actor.Actor, out *TargetOutcome, rolled int) {
	cfg := def.Skill.Debuff
	if cfg == nil {
		return
	}
	spec := attributeEffect(def, caster, cfg.Attributes, rolled, -1, cfg.Stackable, cfg.Duration)

	if cfg.DealsDamage {
		// Immediate debuff damage bypasses armor and veil but not the
		// target's toughness reduction.
		td := stats.Derive(target.StatsInput())
		dmg := rolled - td.Modifier(stats.Toughness)
		if dmg < 0 {
			dmg = 0
		}
		out.Damage += dmg
		_ = r.router.Submit(caster.ID, authority.ApplyDamage{ //nolint:errcheck
			TargetID:  target.ID,
			Amount:    dmg,
			SourceID:  caster.ID,
			SkillName: def.Name,
		})
	}
	if cfg.DoT {
		spec.DoT = &effect.DoT{Amount: rolled, Magical: cfg.Magical, AppliedBy: caster.ID}
	}
	if len(spec.Changes) == 0 && spec.DoT == nil {
		return
	}
	out.EffectsApplied++
	_ = r.router.Submit(caster.ID, authority.ApplyEffect{TargetID: target.ID, Spec: spec}) //nolint:errcheck
}

func (r *Resolver) dispatchRepair(sk *item.SkillDef, caster, target *actor.Actor, out *TargetOutcome, rolled int) {
	cfg := sk.Repair
	if cfg == nil {
		cfg = &item.RepairConfig{}
	}
	out.Repair = rolled
	if err := r.router.Submit(caster.ID, authority.RepairDistribute{
		TargetID:  target.ID,
		Amount:    rolled,
		Materials: cfg.Materials,
	}); err != nil {
		r.log.Warn("repair intent dropped", zap.String("target", target.ID), zap.Error(err))
	}
}

// runChains executes follow-up skills at depth 1: they reuse the parent's
// target set filtered by trigger, pay no cost, and may not chain further.
func (r *Resolver) runChains(ctx context.Context, sk *item.SkillDef, caster *actor.Actor, targets []*actor.Actor, res *Result) {
	for _, chain := range sk.Chains {
		next, ok := r.reg.Skill(chain.Skill)
		if !ok {
			r.log.Warn("chain names unknown skill", zap.String("skill", chain.Skill))
			continue
		}

		var chained []*actor.Actor
		for _, target := range targets {
			out := res.outcomeFor(target.ID)
			switch chain.Trigger {
			case item.ChainOnHit:
				if !out.AttackRolled || !out.Hit {
					continue
				}
			case item.ChainOnMiss:
				if !out.AttackRolled || out.Hit {
					continue
				}
			}
			chained = append(chained, target)
		}
		if len(chained) == 0 {
			continue
		}

		sub, err := r.resolve(ctx, next, caster, chained, "", false)
		if err != nil {
			r.log.Warn("chained skill failed", zap.String("skill", chain.Skill), zap.Error(err))
			continue
		}
		res.Chained = append(res.Chained, sub)
	}
}

// attributeEffect builds the ledger spec for a buff or debuff: each
// configured multiplier scales the shared damage roll into one change.
func attributeEffect(def *item.Def, caster *actor.Actor, attributes map[stats.Ability]float64, rolled, sign int, stackable bool, duration int) effect.Spec {
	var changes []effect.Change
	for ability, mult := range attributes {
		value := float64(sign) * math.Round(float64(rolled)*mult)
		changes = append(changes, effect.Change{
			Path:  effect.AbilityPath(ability),
			Op:    stats.OpAdd,
			Value: value,
		})
	}
	return effect.Spec{
		Name:      def.Name,
		Origin:    caster.ID,
		Category:  stats.CategoryTemporary,
		Changes:   changes,
		Duration:  duration,
		Stackable: stackable,
	}
}

// equippedByDef finds the caster's equipped instance of a gear definition.
func equippedByDef(a *actor.Actor, defID string) *actor.ItemState {
	for _, st := range a.EquippedItems() {
		if st.DefID == defID {
			return st
		}
	}
	return nil
}
