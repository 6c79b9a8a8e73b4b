package effect

import "github.com/sevenleaf/ascendant/internal/game/stats"

// ApplyOutcome reports what Apply did with a Spec.
type ApplyOutcome int

const (
	// OutcomeCreated means a new ledger entry was created.
	OutcomeCreated ApplyOutcome = iota
	// OutcomeMerged means the spec was folded into an existing stackable entry.
	OutcomeMerged
	// OutcomeReplaced means a stronger spec replaced a weaker non-stackable entry.
	OutcomeReplaced
	// OutcomeKeptExisting means the existing non-stackable entry was stronger;
	// nothing changed and the caller should surface a notice.
	OutcomeKeptExisting
)

// String returns the outcome label used in chat notices.
func (o ApplyOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeMerged:
		return "merged"
	case OutcomeReplaced:
		return "replaced"
	case OutcomeKeptExisting:
		return "kept existing"
	default:
		return "unknown"
	}
}

// Ledger is the set of active effects on one entity.
// It is not safe for concurrent use; the authority serialises access.
type Ledger struct {
	effects map[string]*Effect // id → effect
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{effects: make(map[string]*Effect)}
}

// find returns the active effect matching (origin, name), or nil.
func (l *Ledger) find(origin, name string) *Effect {
	for _, e := range l.effects {
		if e.Origin == origin && e.Name == name {
			return e
		}
	}
	return nil
}

// Apply creates, merges, or rejects an effect per the spec's stacking mode.
//
// Non-stackable: an existing (origin, name) entry is replaced only when the
// new magnitude is strictly greater, otherwise nothing changes.
// Stackable: changes merge into the existing entry by (path, op) key with
// magnitudes added together, the DoT amount merges additively, and the
// duration window restarts at currentRound.
//
// Postcondition: returns the outcome and the live ledger entry (the existing
// one for OutcomeKeptExisting).
func (l *Ledger) Apply(spec Spec, currentRound int) (ApplyOutcome, *Effect) {
	existing := l.find(spec.Origin, spec.Name)
	if existing == nil {
		e := newEffect(spec, currentRound)
		l.effects[e.ID] = e
		return OutcomeCreated, e
	}

	if !spec.Stackable {
		incoming := newEffect(spec, currentRound)
		if incoming.Magnitude() > existing.Magnitude() {
			delete(l.effects, existing.ID)
			l.effects[incoming.ID] = incoming
			return OutcomeReplaced, incoming
		}
		return OutcomeKeptExisting, existing
	}

	// Merge changes by (path, op).
	for _, c := range spec.Changes {
		merged := false
		for i := range existing.Changes {
			if existing.Changes[i].Path == c.Path && existing.Changes[i].Op == c.Op {
				existing.Changes[i].Value += c.Value
				merged = true
				break
			}
		}
		if !merged {
			existing.Changes = append(existing.Changes, c)
		}
	}
	if spec.DoT != nil {
		if existing.DoT == nil {
			dot := *spec.DoT
			existing.DoT = &dot
		} else {
			existing.DoT.Amount += spec.DoT.Amount
		}
	}
	if spec.Duration > 0 {
		existing.Duration = spec.Duration
	}
	existing.StartRound = currentRound
	return OutcomeMerged, existing
}

// Restore inserts a persisted effect verbatim, keeping its ID, start round,
// and disabled flag. Storage rehydration only; Apply handles live stacking.
func (l *Ledger) Restore(e *Effect) {
	l.effects[e.ID] = e
}

// Get returns the effect with the given id, or nil.
func (l *Ledger) Get(id string) *Effect {
	return l.effects[id]
}

// Find returns the active effect matching (origin, name), or nil.
func (l *Ledger) Find(origin, name string) *Effect {
	return l.find(origin, name)
}

// Remove deletes the effect with the given id. Not-present is a no-op.
func (l *Ledger) Remove(id string) {
	delete(l.effects, id)
}

// RemoveByOrigin deletes every effect created by originID and returns them.
//
// Postcondition: no remaining effect has Origin == originID.
func (l *Ledger) RemoveByOrigin(originID string) []*Effect {
	var removed []*Effect
	for id, e := range l.effects {
		if e.Origin == originID {
			removed = append(removed, e)
			delete(l.effects, id)
		}
	}
	return removed
}

// SetDisabledByOrigin flips the disabled flag on every effect from originID.
// Used when gear breaks (durability zero) and when it is repaired.
func (l *Ledger) SetDisabledByOrigin(originID string, disabled bool) {
	for _, e := range l.effects {
		if e.Origin == originID {
			e.Disabled = disabled
		}
	}
}

// TickExpiry removes and returns all effects whose round lifetime has elapsed.
// Called once when this entity's turn ends; safe to call redundantly since an
// expired effect is deleted on the first call.
func (l *Ledger) TickExpiry(currentRound int) []*Effect {
	var expired []*Effect
	for id, e := range l.effects {
		if e.Expired(currentRound) {
			expired = append(expired, e)
			delete(l.effects, id)
		}
	}
	return expired
}

// DoTsAppliedBy returns the enabled effects carrying a DoT payload applied by
// the given actor. The authority calls this at the applier's turn.
func (l *Ledger) DoTsAppliedBy(applierID string) []*Effect {
	var out []*Effect
	for _, e := range l.effects {
		if !e.Disabled && e.DoT != nil && e.DoT.AppliedBy == applierID {
			out = append(out, e)
		}
	}
	return out
}

// All returns a snapshot slice of all effects, including disabled ones.
func (l *Ledger) All() []*Effect {
	out := make([]*Effect, 0, len(l.effects))
	for _, e := range l.effects {
		out = append(out, e)
	}
	return out
}

// Contributions converts the enabled ledger entries into stat-pipeline inputs.
// Unrecognised paths and abilities are skipped, never errors.
func (l *Ledger) Contributions() (contribs []stats.Contribution, defenses map[stats.Defense]float64, mitigations map[stats.Mitigation]float64) {
	defenses = make(map[stats.Defense]float64)
	mitigations = make(map[stats.Mitigation]float64)
	for _, e := range l.effects {
		if e.Disabled {
			continue
		}
		for _, c := range e.Changes {
			kind, name, ok := splitPath(c.Path)
			if !ok {
				continue
			}
			switch kind {
			case "ability":
				a := stats.Ability(name)
				if !a.Valid() {
					continue
				}
				contribs = append(contribs, stats.Contribution{
					Ability:  a,
					Category: e.Category,
					Op:       c.Op,
					Value:    c.Value,
				})
			case "defense":
				if c.Op == stats.OpAdd || c.Op == "" {
					defenses[stats.Defense(name)] += c.Value
				}
			case "mitigation":
				if c.Op == stats.OpAdd || c.Op == "" {
					mitigations[stats.Mitigation(name)] += c.Value
				}
			}
		}
	}
	return contribs, defenses, mitigations
}
