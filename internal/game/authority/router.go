package authority

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/effect"
	"github.com/sevenleaf/ascendant/internal/game/equip"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/session"
	"github.com/sevenleaf/ascendant/internal/game/stats"
)

// Directory resolves entity ids to live actors. The engine implements it.
type Directory interface {
	Actor(id string) *actor.Actor
	Actors() []*actor.Actor
}

// Event is the update broadcast to every participant after an intent
// executes, JSON-encoded onto each participant's push channel.
type Event struct {
	Kind     string `json:"kind"`
	ActorID  string `json:"actor_id,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Round    int    `json:"round,omitempty"`
}

// ErrQueueFull means the intent queue is saturated and the intent was dropped.
var ErrQueueFull = errors.New("authority: intent queue full")

type envelope struct {
	from   string
	intent Intent
}

// Router executes privileged mutations one at a time. Exactly one Router
// runs per session, driven by the participant holding the authority role.
type Router struct {
	sessions  *session.Manager
	dir       Directory
	reg       *item.Registry
	templates *area.Store
	log       *zap.Logger

	intents chan envelope
	// round is written by the Run goroutine and read by resolver callers
	// on their own goroutines, hence atomic.
	round atomic.Int64
}

// NewRouter creates a Router with a buffered intent queue. An optional
// queueSize overrides the default capacity of 256.
func NewRouter(sessions *session.Manager, dir Directory, reg *item.Registry, templates *area.Store, log *zap.Logger, queueSize ...int) *Router {
	size := 256
	if len(queueSize) > 0 && queueSize[0] > 0 {
		size = queueSize[0]
	}
	return &Router{
		sessions:  sessions,
		dir:       dir,
		reg:       reg,
		templates: templates,
		log:       log,
		intents:   make(chan envelope, size),
	}
}

// Submit enqueues an intent for serialized execution. Fire-and-forget: the
// caller does not wait for the mutation; it observes the result through the
// broadcast event like every other participant.
func (r *Router) Submit(fromUID string, in Intent) error {
	select {
	case r.intents <- envelope{from: fromUID, intent: in}:
		return nil
	default:
		r.log.Warn("intent dropped", zap.String("from", fromUID))
		return ErrQueueFull
	}
}

// Run drains the intent queue until ctx is cancelled. It is the single
// writer for all shared entity state.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.intents:
			r.execute(env)
		}
	}
}

// Drain synchronously executes every queued intent. Test and single-process
// callers use it instead of a Run goroutine.
func (r *Router) Drain() {
	for {
		select {
		case env := <-r.intents:
			r.execute(env)
		default:
			return
		}
	}
}

// Round returns the last round announced via TurnEnd. Safe to call from
// any goroutine.
func (r *Router) Round() int {
	return int(r.round.Load())
}

func (r *Router) execute(env envelope) {
	switch in := env.intent.(type) {
	case ApplyDamage:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("apply_damage", in.TargetID)
			return
		}
		lost := target.ApplyDamage(in.Amount)
		r.broadcast(Event{Kind: "damage", ActorID: in.TargetID, SourceID: in.SourceID, Amount: lost, Detail: in.SkillName})

	case RestoreResource:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("restore", in.TargetID)
			return
		}
		restored := target.Restore(in.Resource, in.Amount)
		r.broadcast(Event{Kind: "restore", ActorID: in.TargetID, Amount: restored, Detail: string(in.Resource)})

	case ApplyEffect:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("apply_effect", in.TargetID)
			return
		}
		outcome, applied := target.Ledger.Apply(in.Spec, r.Round())
		detail := applied.Name + ": " + outcome.String()
		if outcome == effect.OutcomeKeptExisting {
			detail = applied.Name + ": existing buff is stronger, no change"
		}
		r.broadcast(Event{Kind: "effect", ActorID: in.TargetID, Detail: detail})

	case RemoveEffects:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("remove_effects", in.TargetID)
			return
		}
		removed := target.Ledger.RemoveByOrigin(in.OriginID)
		r.broadcast(Event{Kind: "effects_removed", ActorID: in.TargetID, Amount: len(removed)})

	case DegradeDurability:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("degrade", in.TargetID)
			return
		}
		broke, err := equip.Degrade(target, in.ItemID, in.Amount)
		if err != nil {
			r.log.Warn("degrade failed", zap.String("item", in.ItemID), zap.Error(err))
			return
		}
		ev := Event{Kind: "durability", ActorID: in.TargetID, Amount: -in.Amount, Detail: in.ItemID}
		if broke {
			ev.Kind = "item_broken"
		}
		r.broadcast(ev)

	case RepairDistribute:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("repair", in.TargetID)
			return
		}
		restored := equip.RepairAllEquipped(target, r.reg, in.Amount, in.Materials)
		r.broadcast(Event{Kind: "repair", ActorID: in.TargetID, Amount: restored})

	case PlaceTemplate:
		if in.Template == nil {
			return
		}
		r.templates.Put(in.Template)
		r.broadcast(Event{Kind: "template_placed", Detail: in.Template.ID})

	case DeleteTemplate:
		r.templates.Delete(in.TemplateID)
		r.broadcast(Event{Kind: "template_deleted", Detail: in.TemplateID})

	case WearMitigatingGear:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("wear", in.TargetID)
			return
		}
		lost, broken := equip.DegradeMitigating(target, r.reg, in.Amount, in.Magical)
		if lost > 0 {
			r.broadcast(Event{Kind: "gear_worn", ActorID: in.TargetID, Amount: -lost})
		}
		for _, id := range broken {
			r.broadcast(Event{Kind: "item_broken", ActorID: in.TargetID, Detail: id})
		}

	case SpendResource:
		target := r.dir.Actor(in.TargetID)
		if target == nil {
			r.unknownTarget("spend", in.TargetID)
			return
		}
		pool := target.PoolFor(in.Resource)
		if pool == nil {
			return
		}
		pool.Add(-in.Amount)
		r.broadcast(Event{Kind: "spend", ActorID: in.TargetID, Amount: in.Amount, Detail: string(in.Resource)})

	case TurnEnd:
		r.turnEnd(in)
	}
}

// turnEnd runs the round-boundary sweeps. All three are idempotent, so a
// redundant TurnEnd for the same turn is harmless.
func (r *Router) turnEnd(in TurnEnd) {
	r.round.Store(int64(in.Round))

	// Effect expiry is keyed to the effect's target: only the actor whose
	// turn just ended sheds expired effects.
	if target := r.dir.Actor(in.TurnActorID); target != nil {
		for _, expired := range target.Ledger.TickExpiry(in.Round) {
			r.broadcast(Event{Kind: "effect_expired", ActorID: in.TurnActorID, Detail: expired.Name, Round: in.Round})
		}
	}

	// Damage over time ticks when the *applier's* turn ends, wherever its
	// effects landed. It bypasses armor and veil but not toughness.
	for _, target := range r.dir.Actors() {
		for _, e := range target.Ledger.DoTsAppliedBy(in.TurnActorID) {
			derived := stats.Derive(target.StatsInput())
			dmg := e.DoT.Amount - derived.Modifier(stats.Toughness)
			if dmg <= 0 {
				continue
			}
			lost := target.ApplyDamage(dmg)
			r.broadcast(Event{Kind: "dot", ActorID: target.ID, SourceID: in.TurnActorID, Amount: lost, Detail: e.Name, Round: in.Round})
		}
	}

	for _, t := range r.templates.Sweep(in.Round) {
		r.broadcast(Event{Kind: "template_expired", Detail: t.ID, Round: in.Round})
	}
}

func (r *Router) unknownTarget(kind, id string) {
	r.log.Warn("intent for unknown target", zap.String("kind", kind), zap.String("target", id))
}

func (r *Router) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("event encode failed", zap.Error(err))
		return
	}
	r.sessions.Broadcast(data)
}
