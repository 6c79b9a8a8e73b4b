package area

import (
	"errors"
	"math"

	"github.com/sevenleaf/ascendant/internal/game/actor"
)

// Placement errors surfaced as user-facing notices by the skill resolver.
var (
	// ErrCancelled means the user aborted placement; no state changed.
	ErrCancelled = errors.New("area: placement cancelled")
	// ErrOutOfRange means the shape cannot be placed within casting range.
	ErrOutOfRange = errors.New("area: placement out of casting range")
)

// EventKind classifies one pointer/key input during placement.
type EventKind int

const (
	// EventMove updates the live preview to a new pointer position.
	EventMove EventKind = iota
	// EventConfirm finalizes the template at the current preview state.
	EventConfirm
	// EventCancel aborts placement (secondary click or escape).
	EventCancel
)

// Event is one input during an interactive placement session.
type Event struct {
	Kind EventKind
	Pos  actor.Position
}

// Request describes one placement session.
type Request struct {
	Spec         Spec
	CasterID     string
	CasterPos    actor.Position
	CastingRange float64
	CurrentRound int
}

// Place runs an interactive placement session, consuming events until one
// confirms or cancels. It blocks on the events channel with no timeout; only
// an explicit cancel (or channel close) ends it early.
//
// Directed shapes (cone/ray) are anchored at the caster and range-checked
// before the session starts; the pointer only aims them. Placed shapes
// (circle/rect) follow the pointer and are range-checked at confirm time
// against the caster-to-center distance.
//
// preview, when non-nil, is invoked with the candidate template after every
// move event.
//
// Postcondition: returns a finalized Template, or ErrCancelled /
// ErrOutOfRange with no state change.
func Place(req Request, events <-chan Event, preview func(*Template)) (*Template, error) {
	if req.Spec.Directed() && req.Spec.Size > req.CastingRange {
		return nil, ErrOutOfRange
	}

	t := newTemplate(req.Spec, req.CasterID, req.CasterPos, req.CurrentRound)
	if !req.Spec.Directed() {
		// Placed shapes start centered on the caster until the pointer moves.
		t.Origin = req.CasterPos
	}

	for ev := range events {
		switch ev.Kind {
		case EventMove:
			if req.Spec.Directed() {
				dx := ev.Pos.X - req.CasterPos.X
				dy := ev.Pos.Y - req.CasterPos.Y
				if dx != 0 || dy != 0 {
					t.Direction = math.Atan2(dy, dx)
				}
			} else {
				t.Origin = ev.Pos
			}
			if preview != nil {
				preview(t)
			}

		case EventConfirm:
			if !req.Spec.Directed() {
				dist := math.Hypot(t.Origin.X-req.CasterPos.X, t.Origin.Y-req.CasterPos.Y)
				if dist > req.CastingRange {
					return nil, ErrOutOfRange
				}
			}
			return t, nil

		case EventCancel:
			return nil, ErrCancelled
		}
	}
	// Channel closed without a confirm: treat as cancellation.
	return nil, ErrCancelled
}
