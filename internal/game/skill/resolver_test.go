package skill_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/authority"
	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/equip"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/session"
	"github.com/sevenleaf/ascendant/internal/game/skill"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// scriptSource replays fixed die faces in order, then ones.
type scriptSource struct {
	faces []int
	i     int
}

func (s *scriptSource) Intn(n int) int {
	if s.i >= len(s.faces) {
		return 0
	}
	f := s.faces[s.i]
	s.i++
	if f > n {
		f = n
	}
	return f - 1
}

type directory map[string]*actor.Actor

func (d directory) Actor(id string) *actor.Actor { return d[id] }

func (d directory) Actors() []*actor.Actor {
	out := make([]*actor.Actor, 0, len(d))
	for _, a := range d {
		out = append(out, a)
	}
	return out
}

// fixedPlacer skips the interactive session and returns a canned template.
type fixedPlacer struct {
	tpl *area.Template
	err error
}

func (p fixedPlacer) Place(_ context.Context, req area.Request) (*area.Template, error) {
	if p.err != nil {
		return nil, p.err
	}
	t := *p.tpl
	t.Duration = req.Spec.Duration
	return &t, nil
}

type rig struct {
	resolver  *skill.Resolver
	router    *authority.Router
	templates *area.Store
	reg       *item.Registry
	observer  *session.Participant
	dir       directory
}

func newRig(t *testing.T, faces []int, placer skill.Placer, defs []*item.Def, actors ...*actor.Actor) *rig {
	t.Helper()
	reg := item.NewRegistry()
	for _, d := range defs {
		reg.Register(d)
	}
	dir := directory{}
	for _, a := range actors {
		dir[a.ID] = a
	}
	sessions := session.NewManager()
	gm, err := sessions.Join("gm", "GM", true)
	require.NoError(t, err)
	templates := area.NewStore()
	router := authority.NewRouter(sessions, dir, reg, templates, zap.NewNop())
	roller := dice.NewLoggedRoller(&scriptSource{faces: faces}, zap.NewNop())
	return &rig{
		resolver:  skill.NewResolver(reg, dir, router, roller, placer, nil, zap.NewNop()),
		router:    router,
		templates: templates,
		reg:       reg,
		observer:  gm,
		dir:       dir,
	}
}

func (r *rig) events(t *testing.T) []authority.Event {
	t.Helper()
	var out []authority.Event
	for {
		select {
		case data := <-r.observer.Entity.Events():
			var ev authority.Event
			require.NoError(t, json.Unmarshal(data, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newCaster(name string) *actor.Actor {
	a := actor.New(name, actor.KindCharacter, actor.DispositionFriendly)
	a.Health = actor.Pool{Current: 50, Max: 50}
	a.Mana = actor.Pool{Current: 20, Max: 20}
	a.Stamina = actor.Pool{Current: 20, Max: 20}
	return a
}

func newEnemy(name string, health int) *actor.Actor {
	a := actor.New(name, actor.KindNPC, actor.DispositionHostile)
	a.Health = actor.Pool{Current: health, Max: health}
	return a
}

func skillDef(id string, sk *item.SkillDef) *item.Def {
	return &item.Def{ID: id, Name: id, Kind: item.KindSkill, Skill: sk}
}

func TestResolve_PassiveSkillPostsTextOnly(t *testing.T) {
	caster := newCaster("sage")
	def := &item.Def{
		ID: "iron-will", Name: "Iron Will", Kind: item.KindSkill,
		Description: "Unshakable focus hardens the mind.",
		Skill:       &item.SkillDef{Passive: true},
	}
	r := newRig(t, nil, nil, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "iron-will", caster.ID, "")
	require.NoError(t, err)

	assert.False(t, res.Aborted)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "Unshakable")
	assert.Nil(t, res.HitRoll)
	assert.Nil(t, res.DamageRoll)
	r.router.Drain()
	assert.Empty(t, r.events(t), "no mutation from a passive skill")
}

func TestResolve_InsufficientResourceAbortsWithoutDeduction(t *testing.T) {
	caster := newCaster("mage")
	caster.Mana.Current = 5
	def := skillDef("bolt", &item.SkillDef{
		MathKind: skill.KindMagicProjectile,
		Tags:     []item.Tag{item.TagRestoration},
		Resource: item.ResourceMana,
		Cost:     10,
		Dice:     "4d6",
	})
	r := newRig(t, []int{10, 3, 3, 3, 3}, nil, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "bolt", caster.ID, "")
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "not enough mana")
	assert.Zero(t, res.CostPaid)
	r.router.Drain()
	assert.Equal(t, 5, caster.Mana.Current, "no deduction on abort")
}

func TestResolve_CostDeductedOnceAfterResolution(t *testing.T) {
	caster := newCaster("mage")
	def := skillDef("mend", &item.SkillDef{
		Category:    "restoration",
		MathKind:    skill.KindMagicProjectile,
		Tags:        []item.Tag{item.TagRestoration},
		Resource:    item.ResourceMana,
		Cost:        10,
		Dice:        "4d6",
		DiceBonus:   1,
		Restoration: &item.RestorationConfig{Resource: item.ResourceHealth, TargetSelf: true},
	})
	caster.Health.Current = 30
	r := newRig(t, []int{10, 3, 3, 3, 3}, nil, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "mend", caster.ID, "")
	require.NoError(t, err)
	r.router.Drain()

	// Hit and damage each evaluated exactly once.
	require.NotNil(t, res.HitRoll)
	assert.Len(t, res.HitRoll.Rolls, 1)
	require.NotNil(t, res.DamageRoll)
	assert.Len(t, res.DamageRoll.Rolls, 4)
	assert.Equal(t, []int{3, 3, 3, 3}, res.DamageRoll.Rolls)

	assert.Equal(t, 10, res.CostPaid)
	assert.Equal(t, 10, caster.Mana.Current, "20 mana minus cost 10")
	assert.Equal(t, 42, caster.Health.Current, "restored by the rolled 12")
	assert.Equal(t, "restoration", res.Category)
}

func TestResolve_UnknownMathKindFallsBackToGeneric(t *testing.T) {
	caster := newCaster("tinker")
	target := newEnemy("drone", 30)
	def := skillDef("zap", &item.SkillDef{
		MathKind: "psionic_lattice",
		Tags:     []item.Tag{item.TagAttack},
		Dice:     "2d6",
		Attack:   &item.AttackConfig{Defense: stats.DefenseMelee},
	})
	r := newRig(t, []int{4, 3}, nil, []*item.Def{def}, caster, target)

	res, err := r.resolver.Resolve(context.Background(), "zap", caster.ID, target.ID)
	require.NoError(t, err, "an unrecognised math kind degrades to generic math, it does not fail")
	r.router.Drain()

	assert.False(t, res.Aborted)
	require.Len(t, res.Targets, 1)
	assert.True(t, res.Targets[0].Hit, "generic math has no to-hit roll")
	assert.Equal(t, 7, res.Targets[0].Damage)
	assert.Equal(t, 23, target.Health.Current)
}

func TestResolve_AttackWearsDefenderArmor(t *testing.T) {
	caster := newCaster("duelist")
	target := newEnemy("bandit", 40)
	cuirass := &item.Def{
		ID: "cuirass", Name: "cuirass", Kind: item.KindGear,
		Gear: &item.GearDef{
			Slot: "chest", Progress: 10, Material: "iron",
			MitigationBonuses: map[stats.Mitigation]float64{stats.MitigationArmor: 3},
		},
	}
	def := skillDef("slash", &item.SkillDef{
		Tags:   []item.Tag{item.TagAttack},
		Dice:   "2d6",
		Attack: &item.AttackConfig{Defense: stats.DefenseMelee},
	})
	r := newRig(t, []int{6, 5}, nil, []*item.Def{def, cuirass}, caster, target)
	cstate := target.AddItem(cuirass, 1)
	require.NoError(t, equip.Equip(target, r.reg, cstate.ID))
	require.Equal(t, 20, cstate.Durability.Value)

	res, err := r.resolver.Resolve(context.Background(), "slash", caster.ID, target.ID)
	require.NoError(t, err)
	r.router.Drain()

	require.Len(t, res.Targets, 1)
	assert.Equal(t, 8, res.Targets[0].Damage, "raw 11 minus armor 3")
	assert.Equal(t, 32, target.Health.Current)
	// The 3 points the cuirass absorbed wear the cuirass.
	assert.Equal(t, 17, cstate.Durability.Value)
}

func TestResolve_AttackMitigationAndOverstrike(t *testing.T) {
	caster := newCaster("duelist")
	target := newEnemy("bandit", 40)
	// Flat armor, no abilities: defense 0, armor 3, toughness modifier 0.
	target.Ledger.Apply(effect.Spec{
		Name:     "hide armor",
		Origin:   "gear-hide",
		Category: stats.CategoryEquipment,
		Changes:  []effect.Change{{Path: effect.MitigationPath(stats.MitigationArmor), Op: stats.OpAdd, Value: 3}},
	}, 0)

	weapon := &item.Def{
		ID: "iron-sword", Name: "iron sword", Kind: item.KindGear,
		Gear: &item.GearDef{Slot: "hand", Progress: 3, Material: "iron", Weapon: true},
	}
	def := skillDef("slash", &item.SkillDef{
		MathKind: skill.KindDexWeapon,
		Tags:     []item.Tag{item.TagAttack},
		Dice:     "2d6",
		Attack:   &item.AttackConfig{Defense: stats.DefenseMelee, WeaponItem: "iron-sword"},
	})
	r := newRig(t, []int{15, 6, 5}, nil, []*item.Def{def, weapon}, caster, target)

	wstate := caster.AddItem(weapon, 1)
	wstate.Equipped = true
	wstate.Slot = "hand"
	wstate.Durability = actor.Durability{Value: 6, Max: 6}

	res, err := r.resolver.Resolve(context.Background(), "slash", caster.ID, target.ID)
	require.NoError(t, err)
	r.router.Drain()

	require.Len(t, res.Targets, 1)
	out := res.Targets[0]
	assert.True(t, out.Hit)
	// Raw 11 minus armor 3 minus toughness 0.
	assert.Equal(t, 8, out.Damage)
	assert.Equal(t, 32, target.Health.Current)

	// Damage limit 3x progress = 9; raw 11 wears the weapon by 2.
	assert.Equal(t, 4, wstate.Durability.Value)
}

func TestResolve_NonStackableBuffKeepsStronger(t *testing.T) {
	caster := newCaster("bard")
	ally := actor.New("knight", actor.KindCharacter, actor.DispositionFriendly)

	def := skillDef("war-chant", &item.SkillDef{
		Tags:      []item.Tag{item.TagBuff},
		Dice:      "1d20",
		DiceBonus: 1,
		Buff:      &item.BuffConfig{Attributes: map[stats.Ability]float64{stats.Strength: 1}, Duration: 3},
	})
	r := newRig(t, []int{15}, nil, []*item.Def{def}, caster, ally)

	// An earlier, stronger chant from the same caster is already active.
	ally.Ledger.Apply(effect.Spec{
		Name:     "war-chant",
		Origin:   caster.ID,
		Category: stats.CategoryTemporary,
		Changes:  []effect.Change{{Path: effect.AbilityPath(stats.Strength), Op: stats.OpAdd, Value: 20}},
		Duration: 3,
	}, 0)

	_, err := r.resolver.Resolve(context.Background(), "war-chant", caster.ID, ally.ID)
	require.NoError(t, err)
	r.router.Drain()

	existing := ally.Ledger.Find(caster.ID, "war-chant")
	require.NotNil(t, existing)
	require.Len(t, existing.Changes, 1)
	assert.Equal(t, 20.0, existing.Changes[0].Value, "weaker roll never downgrades")

	evs := r.events(t)
	require.NotEmpty(t, evs)
	assert.Contains(t, evs[len(evs)-1].Detail, "existing buff is stronger, no change")
}

func TestResolve_DebuffDamageIgnoresArmorAndVeil(t *testing.T) {
	caster := newCaster("alchemist")
	target := newEnemy("golem", 100)
	target.Bases[stats.Toughness] = 7
	// Heavy mitigation that must NOT reduce debuff damage.
	target.Ledger.Apply(effect.Spec{
		Name:     "plating",
		Origin:   "gear-plate",
		Category: stats.CategoryEquipment,
		Changes: []effect.Change{
			{Path: effect.MitigationPath(stats.MitigationArmor), Op: stats.OpAdd, Value: 100},
			{Path: effect.MitigationPath(stats.MitigationVeil), Op: stats.OpAdd, Value: 100},
		},
	}, 0)

	def := skillDef("acid-splash", &item.SkillDef{
		Tags: []item.Tag{item.TagDebuff},
		Dice: "1d100",
		Debuff: &item.DebuffConfig{
			DealsDamage: true,
			Magical:     true,
		},
	})
	r := newRig(t, []int{40}, nil, []*item.Def{def}, caster, target)

	res, err := r.resolver.Resolve(context.Background(), "acid-splash", caster.ID, target.ID)
	require.NoError(t, err)
	r.router.Drain()

	tough := stats.Derive(target.StatsInput()).Modifier(stats.Toughness)
	want := 40 - tough
	require.Len(t, res.Targets, 1)
	assert.Equal(t, want, res.Targets[0].Damage, "only toughness reduces debuff damage")
	assert.Equal(t, 100-want, target.Health.Current)
}

func TestResolve_AOECancelledCostsNothing(t *testing.T) {
	caster := newCaster("pyromancer")
	def := skillDef("firestorm", &item.SkillDef{
		MathKind: skill.KindMagicProjectile,
		Tags:     []item.Tag{item.TagAttack},
		Resource: item.ResourceMana,
		Cost:     8,
		Dice:     "6d6",
		Area:     &item.AreaDef{Shape: "circle", Size: 20, Allegiance: "enemies"},
	})
	r := newRig(t, []int{10, 1, 1, 1, 1, 1, 1}, fixedPlacer{err: area.ErrCancelled}, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "firestorm", caster.ID, "")
	require.NoError(t, err)
	r.router.Drain()

	assert.True(t, res.Aborted)
	assert.Zero(t, res.CostPaid)
	assert.Equal(t, 20, caster.Mana.Current, "cancelled placement costs nothing")
	assert.Empty(t, res.Targets)
}

func TestResolve_AOESharedRollAcrossTargets(t *testing.T) {
	caster := newCaster("pyromancer")
	a := newEnemy("imp-a", 30)
	b := newEnemy("imp-b", 30)
	a.Pos = actor.Position{X: 2, Y: 0}
	b.Pos = actor.Position{X: -2, Y: 0}

	tpl := &area.Template{ID: "blast", Shape: area.ShapeCircle, Size: 20, CasterID: "pyro"}
	def := skillDef("firestorm", &item.SkillDef{
		MathKind: skill.KindMagicProjectile,
		Tags:     []item.Tag{item.TagAttack},
		Resource: item.ResourceMana,
		Cost:     8,
		Dice:     "2d6",
		Attack:   &item.AttackConfig{Defense: stats.DefenseMind, Magical: true},
		Area:     &item.AreaDef{Shape: "circle", Size: 20, Allegiance: "enemies"},
	})
	r := newRig(t, []int{12, 4, 2}, fixedPlacer{tpl: tpl}, []*item.Def{def}, caster, a, b)

	res, err := r.resolver.Resolve(context.Background(), "firestorm", caster.ID, "")
	require.NoError(t, err)
	r.router.Drain()

	require.Len(t, res.Targets, 2, "both enemies inside the circle")
	assert.Equal(t, res.Targets[0].Damage, res.Targets[1].Damage, "one roll shared by every target")
	assert.Len(t, res.DamageRoll.Rolls, 2, "damage dice rolled exactly once")
	assert.Equal(t, caster.Mana.Max-8, caster.Mana.Current)
	assert.Equal(t, a.Health.Current, b.Health.Current)
}

func TestResolve_InstantaneousTemplateDeleted(t *testing.T) {
	caster := newCaster("pyromancer")
	tpl := &area.Template{ID: "flash", Shape: area.ShapeCircle, Size: 10}
	def := skillDef("flash", &item.SkillDef{
		Tags: []item.Tag{item.TagBuff},
		Dice: "1d4",
		Buff: &item.BuffConfig{Attributes: map[stats.Ability]float64{stats.Dexterity: 1}, Duration: 1},
		Area: &item.AreaDef{Shape: "circle", Size: 10, Allegiance: "allies", Duration: 0},
	})
	r := newRig(t, []int{2}, fixedPlacer{tpl: tpl}, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "flash", caster.ID, "")
	require.NoError(t, err)
	r.router.Drain()

	assert.Empty(t, res.TemplateID)
	assert.Empty(t, r.templates.All(), "instantaneous template never persists")
}

func TestResolve_TimedTemplatePersists(t *testing.T) {
	caster := newCaster("druid")
	tpl := &area.Template{ID: "brambles", Shape: area.ShapeCircle, Size: 15}
	def := skillDef("brambles", &item.SkillDef{
		Tags: []item.Tag{item.TagDebuff},
		Dice: "1d4",
		Debuff: &item.DebuffConfig{
			Attributes: map[stats.Ability]float64{stats.Dexterity: 1},
			Duration:   2,
		},
		Area: &item.AreaDef{Shape: "circle", Size: 15, Allegiance: "enemies", Duration: 3},
	})
	r := newRig(t, []int{2}, fixedPlacer{tpl: tpl}, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "brambles", caster.ID, "")
	require.NoError(t, err)
	r.router.Drain()

	require.NotEmpty(t, res.TemplateID)
	assert.Len(t, r.templates.All(), 1)
}

func TestResolve_ChainOnHitRunsWithoutCost(t *testing.T) {
	caster := newCaster("spellblade")
	target := newEnemy("wisp", 30)

	followup := skillDef("siphon", &item.SkillDef{
		Tags:        []item.Tag{item.TagRestoration},
		Resource:    item.ResourceMana,
		Cost:        5,
		Dice:        "1d6",
		Restoration: &item.RestorationConfig{Resource: item.ResourceHealth, TargetSelf: true},
	})
	def := skillDef("rend", &item.SkillDef{
		Tags:   []item.Tag{item.TagAttack},
		Dice:   "2d6",
		Attack: &item.AttackConfig{Defense: stats.DefenseMelee},
		Chains: []item.ChainDef{{Skill: "siphon", Trigger: item.ChainOnHit}},
	})
	caster.Health.Current = 40

	// Generic kind: no to-hit roll, automatic hit, then the chain's 1d6.
	r := newRig(t, []int{4, 4, 5}, nil, []*item.Def{def, followup}, caster, target)

	res, err := r.resolver.Resolve(context.Background(), "rend", caster.ID, target.ID)
	require.NoError(t, err)
	r.router.Drain()

	require.Len(t, res.Chained, 1)
	sub := res.Chained[0]
	assert.Zero(t, sub.CostPaid, "chained skills pay no resource cost")
	assert.Equal(t, caster.Mana.Max, caster.Mana.Current)
	assert.Equal(t, 45, caster.Health.Current, "siphon restored the chained 1d6 roll of 5")
	assert.Empty(t, sub.Chained, "chains do not recurse")
}

func TestResolve_ChainOnMissSkippedAfterHit(t *testing.T) {
	caster := newCaster("spellblade")
	target := newEnemy("wisp", 30)

	followup := skillDef("recover", &item.SkillDef{
		Tags:        []item.Tag{item.TagRestoration},
		Dice:        "1d6",
		Restoration: &item.RestorationConfig{Resource: item.ResourceStamina, TargetSelf: true},
	})
	def := skillDef("lunge", &item.SkillDef{
		Tags:   []item.Tag{item.TagAttack},
		Dice:   "1d6",
		Attack: &item.AttackConfig{Defense: stats.DefenseMelee},
		Chains: []item.ChainDef{{Skill: "recover", Trigger: item.ChainOnMiss}},
	})
	r := newRig(t, []int{4}, nil, []*item.Def{def, followup}, caster, target)

	res, err := r.resolver.Resolve(context.Background(), "lunge", caster.ID, target.ID)
	require.NoError(t, err)
	require.Len(t, res.Targets, 1)
	require.True(t, res.Targets[0].Hit)
	assert.Empty(t, res.Chained, "on-miss chain skipped after a hit")
}

func TestResolve_UnknownTargetAborts(t *testing.T) {
	caster := newCaster("duelist")
	def := skillDef("slash", &item.SkillDef{
		Tags:   []item.Tag{item.TagAttack},
		Dice:   "1d6",
		Attack: &item.AttackConfig{Defense: stats.DefenseMelee},
	})
	r := newRig(t, []int{4}, nil, []*item.Def{def}, caster)

	res, err := r.resolver.Resolve(context.Background(), "slash", caster.ID, "nobody")
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	require.Len(t, res.Notices, 1)
	assert.Contains(t, res.Notices[0], "no such target")
}

func TestResolve_UnknownSkillErrors(t *testing.T) {
	caster := newCaster("duelist")
	r := newRig(t, nil, nil, nil, caster)
	_, err := r.resolver.Resolve(context.Background(), "missing", caster.ID, "")
	assert.ErrorIs(t, err, skill.ErrUnknownSkill)
}
