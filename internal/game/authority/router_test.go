package authority_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/authority"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/equip"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/session"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

type directory map[string]*actor.Actor

func (d directory) Actor(id string) *actor.Actor { return d[id] }

func (d directory) Actors() []*actor.Actor {
	out := make([]*actor.Actor, 0, len(d))
	for _, a := range d {
		out = append(out, a)
	}
	return out
}

type rig struct {
	router    *authority.Router
	sessions  *session.Manager
	templates *area.Store
	reg       *item.Registry
	dir       directory
	observer  *session.Participant
}

func newRig(t *testing.T, actors ...*actor.Actor) *rig {
	t.Helper()
	dir := directory{}
	for _, a := range actors {
		dir[a.ID] = a
	}
	sessions := session.NewManager()
	gm, err := sessions.Join("gm", "GM", true)
	require.NoError(t, err)
	templates := area.NewStore()
	reg := item.NewRegistry()
	return &rig{
		router:    authority.NewRouter(sessions, dir, reg, templates, zap.NewNop()),
		sessions:  sessions,
		templates: templates,
		reg:       reg,
		dir:       dir,
		observer:  gm,
	}
}

// events decodes everything broadcast so far.
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

func newTarget(name string, health int) *actor.Actor {
	a := actor.New(name, actor.KindNPC, actor.DispositionHostile)
	a.Health = actor.Pool{Current: health, Max: health}
	return a
}

func TestRouter_ApplyDamageSerialized(t *testing.T) {
	target := newTarget("goblin", 30)
	r := newRig(t, target)

	require.NoError(t, r.router.Submit("p1", authority.ApplyDamage{TargetID: target.ID, Amount: 12, SourceID: "hero", SkillName: "slash"}))
	require.NoError(t, r.router.Submit("p2", authority.ApplyDamage{TargetID: target.ID, Amount: 12}))
	r.router.Drain()

	assert.Equal(t, 6, target.Health.Current, "both intents applied, no lost update")
	evs := r.events(t)
	require.Len(t, evs, 2)
	assert.Equal(t, "damage", evs[0].Kind)
	assert.Equal(t, 12, evs[0].Amount)
	assert.Equal(t, "slash", evs[0].Detail)
}

func TestRouter_RestoreReportsActualAmount(t *testing.T) {
	target := newTarget("cleric", 50)
	target.Health.Current = 45
	r := newRig(t, target)

	require.NoError(t, r.router.Submit("p1", authority.RestoreResource{TargetID: target.ID, Resource: item.ResourceHealth, Amount: 20}))
	r.router.Drain()

	assert.Equal(t, 50, target.Health.Current)
	evs := r.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, 5, evs[0].Amount, "clamped restore reports the applied amount")
}

func TestRouter_UnknownTargetIsLoggedNoOp(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.router.Submit("p1", authority.ApplyDamage{TargetID: "ghost", Amount: 5}))
	r.router.Drain()
	assert.Empty(t, r.events(t), "no broadcast for a dropped intent")
}

func TestRouter_EffectExpiryKeyedToTargetTurn(t *testing.T) {
	target := newTarget("knight", 40)
	bystander := newTarget("squire", 40)
	r := newRig(t, target, bystander)

	spec := effect.Spec{
		Name:     "battle focus",
		Origin:   "caster-1",
		Category: stats.CategoryTemporary,
		Changes:  []effect.Change{{Path: effect.AbilityPath(stats.Strength), Op: stats.OpAdd, Value: 5}},
		Duration: 2,
	}
	target.Ledger.Apply(spec, 1)
	bystander.Ledger.Apply(spec, 1)

	// Round 3 ends the target's turn: only the target sheds the effect.
	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 3, TurnActorID: target.ID}))
	r.router.Drain()

	assert.Empty(t, target.Ledger.All())
	assert.Len(t, bystander.Ledger.All(), 1, "expiry waits for the owner's turn")

	// Redundant notification is a no-op.
	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 3, TurnActorID: target.ID}))
	r.router.Drain()
	assert.Len(t, bystander.Ledger.All(), 1)
}

func TestRouter_DoTTicksOnApplierTurn(t *testing.T) {
	target := newTarget("victim", 60)
	r := newRig(t, target)

	target.Ledger.Apply(effect.Spec{
		Name:     "poison",
		Origin:   "skill-poison",
		Category: stats.CategoryTemporary,
		Duration: 5,
		DoT:      &effect.DoT{Amount: 8, AppliedBy: "assassin"},
	}, 1)

	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 2, TurnActorID: "assassin"}))
	r.router.Drain()
	assert.Equal(t, 52, target.Health.Current)

	// Someone else's turn ending does not tick the poison.
	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 2, TurnActorID: "bard"}))
	r.router.Drain()
	assert.Equal(t, 52, target.Health.Current)
}

func TestRouter_DoTReducedByToughness(t *testing.T) {
	target := newTarget("bruiser", 60)
	// Enough toughness for a positive modifier.
	target.Bases[stats.Toughness] = 600
	r := newRig(t, target)

	target.Ledger.Apply(effect.Spec{
		Name:     "acid",
		Origin:   "skill-acid",
		Category: stats.CategoryTemporary,
		Duration: 3,
		DoT:      &effect.DoT{Amount: 10, AppliedBy: "alchemist"},
	}, 1)

	derived := stats.Derive(target.StatsInput())
	want := 10 - derived.Modifier(stats.Toughness)
	if want < 0 {
		want = 0
	}

	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 2, TurnActorID: "alchemist"}))
	r.router.Drain()
	assert.Equal(t, 60-want, target.Health.Current)
}

func TestRouter_TemplateSweepOnTurnEnd(t *testing.T) {
	r := newRig(t)
	r.templates.Put(&area.Template{ID: "circle-1", Shape: area.ShapeCircle, Size: 10, Duration: 1, CreatedRound: 1})

	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 2, TurnActorID: "anyone"}))
	r.router.Drain()

	assert.Empty(t, r.templates.All())
	evs := r.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "template_expired", evs[0].Kind)
}

func TestRouter_RoundVisibleAcrossGoroutines(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.router.Run(ctx)

	require.NoError(t, r.router.Submit("gm", authority.TurnEnd{Round: 7, TurnActorID: "anyone"}))
	require.Eventually(t, func() bool { return r.router.Round() == 7 },
		time.Second, time.Millisecond, "round published by the Run goroutine")
}

func TestRouter_PlaceTemplateThroughIntent(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.router.Submit("p1", authority.PlaceTemplate{
		Template: &area.Template{ID: "cone-1", Shape: area.ShapeCone, Size: 15, Duration: 2, CreatedRound: 1},
	}))
	r.router.Drain()

	require.Len(t, r.templates.All(), 1)
	evs := r.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "template_placed", evs[0].Kind)
	assert.Equal(t, "cone-1", evs[0].Detail)
}

func TestRouter_WearMitigatingGearReportsWearAndBreaks(t *testing.T) {
	target := newTarget("knight", 40)
	r := newRig(t, target)
	r.reg.Register(&item.Def{
		ID:   "plate",
		Name: "plate",
		Kind: item.KindGear,
		Gear: &item.GearDef{
			Slot:              equip.SlotChest,
			Progress:          2,
			Material:          "iron",
			MitigationBonuses: map[stats.Mitigation]float64{stats.MitigationArmor: 4},
		},
	})
	def, ok := r.reg.Get("plate")
	require.True(t, ok)
	st := target.AddItem(def, 1)
	require.NoError(t, equip.Equip(target, r.reg, st.ID))

	require.NoError(t, r.router.Submit("p1", authority.WearMitigatingGear{TargetID: target.ID, Amount: 10}))
	r.router.Drain()

	assert.True(t, st.Durability.Broken(), "wear past remaining durability breaks the piece")
	evs := r.events(t)
	require.Len(t, evs, 2)
	assert.Equal(t, "gear_worn", evs[0].Kind)
	assert.Equal(t, -4, evs[0].Amount, "wear is capped at the remaining durability")
	assert.Equal(t, "item_broken", evs[1].Kind)
	assert.Equal(t, st.ID, evs[1].Detail)
}

func TestRouter_SpendResource(t *testing.T) {
	caster := newTarget("mage", 20)
	caster.Mana = actor.Pool{Current: 30, Max: 30}
	r := newRig(t, caster)

	require.NoError(t, r.router.Submit("p1", authority.SpendResource{TargetID: caster.ID, Resource: item.ResourceMana, Amount: 12}))
	r.router.Drain()
	assert.Equal(t, 18, caster.Mana.Current)
}
