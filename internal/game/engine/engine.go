// Package engine assembles the ruleset pipeline behind one facade: the
// actor directory, session membership, the authority router, the skill
// resolver, and scripted hooks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/config"
	"github.com/sevenleaf/ascendant/internal/game/actor"
	"github.com/sevenleaf/ascendant/internal/game/area"
	"github.com/sevenleaf/ascendant/internal/game/authority"
	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/game/equip"
	"github.com/sevenleaf/ascendant/internal/game/item"
	"github.com/sevenleaf/ascendant/internal/game/session"
	"github.com/sevenleaf/ascendant/internal/game/skill"
	"github.com/sevenleaf/ascendant/internal/game/stats"
	"github.com/sevenleaf/ascendant/internal/scripting"
)

// Authorization errors.
var (
	// ErrNotOwner means the participant neither owns the entity nor holds
	// the authority role.
	ErrNotOwner = errors.New("engine: participant does not control entity")
	// ErrNotAuthority means the operation is reserved for the authority.
	ErrNotAuthority = errors.New("engine: authority role required")
	// ErrSessionFull means the participant cap is reached.
	ErrSessionFull = errors.New("engine: session full")
	// ErrUnknownActor means no live actor has the given id.
	ErrUnknownActor = errors.New("engine: unknown actor")
)

// Options configures a new Engine.
type Options struct {
	Config   config.Config
	Registry *item.Registry
	// Scripts is optional; nil disables Lua hooks.
	Scripts *scripting.Manager
	Logger  *zap.Logger
}

// Engine is the single-process assembly of the ruleset. It owns the live
// actor directory and wires every subsystem to the authority router.
type Engine struct {
	log       *zap.Logger
	reg       *item.Registry
	roller    *dice.Roller
	sessions  *session.Manager
	templates *area.Store
	router    *authority.Router
	resolver  *skill.Resolver
	placer    *InputPlacer
	scripts   *scripting.Manager

	maxParticipants int

	mu     sync.RWMutex
	actors map[string]*actor.Actor
}

// New assembles an Engine from options.
//
// Precondition: opts.Registry and opts.Logger must be non-nil.
func New(opts Options) *Engine {
	e := &Engine{
		log:             opts.Logger,
		reg:             opts.Registry,
		roller:          dice.NewLoggedRoller(dice.NewCryptoSource(), opts.Logger),
		sessions:        session.NewManager(),
		templates:       area.NewStore(),
		scripts:         opts.Scripts,
		maxParticipants: opts.Config.Session.MaxParticipants,
		actors:          make(map[string]*actor.Actor),
	}
	e.placer = NewInputPlacer(e.sessions, opts.Config.Engine.PlacementTimeout)
	e.router = authority.NewRouter(e.sessions, e, e.reg, e.templates, opts.Logger,
		opts.Config.Engine.IntentQueueSize)

	var hooks skill.Hooks
	if e.scripts != nil {
		e.scripts.GetActor = e.actorInfo
		e.scripts.Notice = e.notice
		hooks = e.scripts
	}
	e.resolver = skill.NewResolver(e.reg, e, e.router, e.roller,
		e.placer, hooks, opts.Logger)
	return e
}

// Run drives the authority loop until ctx is cancelled. Exactly one Run per
// Engine.
func (e *Engine) Run(ctx context.Context) {
	e.router.Run(ctx)
}

// Drain synchronously executes queued intents; single-process and test use.
func (e *Engine) Drain() {
	e.router.Drain()
}

// Router exposes the authority router for transports that submit intents
// directly (turn advancement, manual adjustments).
func (e *Engine) Router() *authority.Router {
	return e.router
}

// Sessions exposes session membership for transports.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Actor implements authority.Directory.
func (e *Engine) Actor(id string) *actor.Actor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actors[id]
}

// Actors implements authority.Directory.
func (e *Engine) Actors() []*actor.Actor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*actor.Actor, 0, len(e.actors))
	for _, a := range e.actors {
		out = append(out, a)
	}
	return out
}

// AddActor registers a live actor, deriving its stats so resource maxima
// are populated before first use.
func (e *Engine) AddActor(a *actor.Actor) {
	a.SyncPools(stats.Derive(a.StatsInput()))
	e.mu.Lock()
	e.actors[a.ID] = a
	e.mu.Unlock()
}

// RemoveActor drops an actor from the live directory.
func (e *Engine) RemoveActor(id string) {
	e.mu.Lock()
	delete(e.actors, id)
	e.mu.Unlock()
}

// Join adds a participant to the session, subject to the participant cap.
func (e *Engine) Join(uid, name string, authorityRole bool) (*session.Participant, error) {
	if e.maxParticipants > 0 && e.sessions.Count() >= e.maxParticipants {
		return nil, ErrSessionFull
	}
	return e.sessions.Join(uid, name, authorityRole)
}

// Leave removes a participant.
func (e *Engine) Leave(uid string) error {
	return e.sessions.Leave(uid)
}

// ClaimActor assigns ownership of an actor to a participant.
func (e *Engine) ClaimActor(uid, actorID string) error {
	if e.Actor(actorID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
	}
	return e.sessions.AssignActor(uid, actorID)
}

// controls reports whether the participant may act as the given entity:
// owners and the authority both qualify.
func (e *Engine) controls(uid, actorID string) error {
	p := e.sessions.Get(uid)
	if p == nil {
		return fmt.Errorf("engine: unknown participant %q", uid)
	}
	if p.Authority || p.OwnsActor(actorID) {
		return nil
	}
	return ErrNotOwner
}

// ActivateSkill runs one skill activation on behalf of a participant.
// The activation evaluates locally; every shared-state mutation it produces
// is routed through the authority. A skill granted by gear is only usable
// while a granting item is equipped and unbroken.
func (e *Engine) ActivateSkill(ctx context.Context, uid, skillID, casterID, targetID string) (*skill.Result, error) {
	if err := e.controls(uid, casterID); err != nil {
		return nil, err
	}
	if name, locked := e.gearLocked(skillID, casterID); locked {
		res := &skill.Result{SkillID: skillID, CasterID: casterID, Aborted: true}
		res.Notices = append(res.Notices, fmt.Sprintf("requires %s equipped", name))
		return res, nil
	}
	return e.resolver.Resolve(ctx, skillID, casterID, targetID)
}

// AvailableSkills lists the skill ids the actor's equipped, unbroken gear
// grants.
func (e *Engine) AvailableSkills(actorID string) ([]string, error) {
	a := e.Actor(actorID)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
	}
	return equip.GrantedSkills(a, e.reg), nil
}

// gearLocked reports whether the skill is gear-granted and the caster lacks
// a working granting item. Skills no gear grants are never locked.
func (e *Engine) gearLocked(skillID, casterID string) (grantor string, locked bool) {
	for _, def := range e.reg.All() {
		if def.Gear == nil {
			continue
		}
		for _, granted := range def.Gear.GrantedSkills {
			if granted != skillID {
				continue
			}
			grantor = def.Name
			if a := e.Actor(casterID); a != nil {
				for _, id := range equip.GrantedSkills(a, e.reg) {
					if id == skillID {
						return "", false
					}
				}
			}
		}
	}
	return grantor, grantor != ""
}

// DeriveStats returns the full derived view for an actor.
func (e *Engine) DeriveStats(actorID string) (stats.Derived, error) {
	a := e.Actor(actorID)
	if a == nil {
		return stats.Derived{}, fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
	}
	return stats.Derive(a.StatsInput()), nil
}

// EquipItem equips an owned item instance and refreshes derived pools.
func (e *Engine) EquipItem(uid, actorID, instanceID string) error {
	a, err := e.controlled(uid, actorID)
	if err != nil {
		return err
	}
	if err := equip.Equip(a, e.reg, instanceID); err != nil {
		return err
	}
	a.SyncPools(stats.Derive(a.StatsInput()))
	return nil
}

// UnequipItem removes an equipped item and refreshes derived pools.
func (e *Engine) UnequipItem(uid, actorID, instanceID string) error {
	a, err := e.controlled(uid, actorID)
	if err != nil {
		return err
	}
	if err := equip.Unequip(a, instanceID); err != nil {
		return err
	}
	a.SyncPools(stats.Derive(a.StatsInput()))
	return nil
}

// RepairItem applies a repair kit to one damaged item.
func (e *Engine) RepairItem(uid, actorID, instanceID, kitID string) error {
	a, err := e.controlled(uid, actorID)
	if err != nil {
		return err
	}
	return equip.Repair(a, e.reg, instanceID, kitID)
}

// SlotAugment slots an augment item into a host gear instance.
func (e *Engine) SlotAugment(uid, actorID, hostID, augmentID string) error {
	a, err := e.controlled(uid, actorID)
	if err != nil {
		return err
	}
	return equip.SlotAugment(a, e.reg, hostID, augmentID)
}

// EndTurn announces the end of an actor's turn for the given round. Only
// the authority advances turns; expiry ticks and DoTs flow from here.
func (e *Engine) EndTurn(uid string, round int, turnActorID string) error {
	p := e.sessions.Get(uid)
	if p == nil || !p.Authority {
		return ErrNotAuthority
	}
	return e.router.Submit(uid, authority.TurnEnd{Round: round, TurnActorID: turnActorID})
}

// FeedPlacement delivers a pointer event to an active placement session.
func (e *Engine) FeedPlacement(casterID string, ev area.Event) error {
	return e.placer.Feed(casterID, ev)
}

// actorInfo snapshots an actor for Lua scripts.
func (e *Engine) actorInfo(id string) *scripting.ActorInfo {
	a := e.Actor(id)
	if a == nil {
		return nil
	}
	level := a.Class.Level
	if level == 0 {
		level = a.Race.Level
	}
	return &scripting.ActorInfo{
		ID:          a.ID,
		Name:        a.Name,
		Health:      a.Health.Current,
		MaxHealth:   a.Health.Max,
		Disposition: string(a.Disposition),
		Level:       level,
	}
}

// notice pushes a user-facing message to the actor's owning participant.
func (e *Engine) notice(actorID, msg string) {
	p := e.sessions.OwnerOf(actorID)
	if p == nil {
		return
	}
	data := []byte(fmt.Sprintf(`{"kind":"notice","actor_id":%q,"detail":%q}`, actorID, msg))
	if err := p.Entity.Push(data); err != nil {
		e.log.Debug("notice dropped", zap.String("actor", actorID), zap.Error(err))
	}
}

// controlled resolves an actor after an ownership check.
func (e *Engine) controlled(uid, actorID string) (*actor.Actor, error) {
	if err := e.controls(uid, actorID); err != nil {
		return nil, err
	}
	a := e.Actor(actorID)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActor, actorID)
	}
	return a, nil
}
