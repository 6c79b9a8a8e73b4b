// Package area implements area-of-effect templates: shape geometry, the
// interactive placement session, and target qualification.
package area

import (
	"math"

	"github.com/google/uuid"

	"github.com/sevenleaf/ascendant/internal/game/actor"
)

// Shape identifies a template geometry.
type Shape string

const (
	ShapeCircle Shape = "circle"
	ShapeCone   Shape = "cone"
	ShapeRay    Shape = "ray"
	ShapeRect   Shape = "rect"
)

// Allegiance selects which dispositions qualify inside a template.
type Allegiance string

const (
	AllegianceAll     Allegiance = "all"
	AllegianceEnemies Allegiance = "enemies"
	AllegianceAllies  Allegiance = "allies"
)

// Geometry defaults, in grid units.
const (
	// DefaultConeAngle is the cone opening angle in degrees when a skill
	// does not configure one.
	DefaultConeAngle = 53.13
	// rayHalfWidth is half the fixed width of a ray template.
	rayHalfWidth = 2.5
)

// Spec describes the template a skill wants placed.
type Spec struct {
	Shape Shape
	// Size is the circle diameter, rect diagonal, or cone/ray length.
	Size float64
	// Angle is the cone opening angle in degrees; 0 uses DefaultConeAngle.
	Angle float64
	// Duration is the persistence in rounds; 0 means instantaneous.
	Duration int
	// Allegiance filters qualifying targets.
	Allegiance Allegiance
}

// Directed reports whether the shape originates at the caster and is aimed
// (cone/ray) rather than placed at a point (circle/rect).
func (s Spec) Directed() bool {
	return s.Shape == ShapeCone || s.Shape == ShapeRay
}

// Template is one finalized (or previewed) area template.
type Template struct {
	ID     string
	Shape  Shape
	Size   float64
	Angle  float64 // degrees; cones only
	Origin actor.Position
	// Direction is the aim angle in radians; cones and rays only.
	Direction float64

	CasterID     string
	Duration     int
	CreatedRound int
}

// newTemplate builds a template from a spec anchored at origin.
func newTemplate(spec Spec, casterID string, origin actor.Position, currentRound int) *Template {
	angle := spec.Angle
	if angle <= 0 {
		angle = DefaultConeAngle
	}
	return &Template{
		ID:           uuid.NewString(),
		Shape:        spec.Shape,
		Size:         spec.Size,
		Angle:        angle,
		Origin:       origin,
		CasterID:     casterID,
		Duration:     spec.Duration,
		CreatedRound: currentRound,
	}
}

// Expired reports whether a timed template's lifetime has elapsed.
// Instantaneous templates (Duration 0) are deleted at resolution, not swept.
func (t *Template) Expired(currentRound int) bool {
	return t.Duration > 0 && currentRound-t.CreatedRound >= t.Duration
}

// Contains tests a point against the finalized shape. The boundary is
// inclusive for every shape: a point exactly on the edge qualifies.
func (t *Template) Contains(p actor.Position) bool {
	dx := p.X - t.Origin.X
	dy := p.Y - t.Origin.Y
	dist := math.Hypot(dx, dy)

	switch t.Shape {
	case ShapeCircle:
		return dist <= t.Size/2

	case ShapeCone:
		if dist > t.Size {
			return false
		}
		if dist == 0 {
			return true
		}
		diff := angleDiff(math.Atan2(dy, dx), t.Direction)
		half := t.Angle * math.Pi / 180 / 2
		return diff <= half

	case ShapeRay:
		// Project onto the ray axis; along must land on the segment and the
		// perpendicular offset within the fixed half width.
		along := dx*math.Cos(t.Direction) + dy*math.Sin(t.Direction)
		if along < 0 || along > t.Size {
			return false
		}
		perp := math.Abs(-dx*math.Sin(t.Direction) + dy*math.Cos(t.Direction))
		return perp <= rayHalfWidth

	case ShapeRect:
		// An axis-aligned square whose diagonal is Size, centered on Origin.
		half := t.Size / math.Sqrt2 / 2
		return math.Abs(dx) <= half && math.Abs(dy) <= half
	}
	return false
}

// angleDiff returns the absolute smallest difference between two angles.
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return math.Abs(d)
}

// QualifyingTargets returns the candidates whose center point lies inside the
// template, filtered by allegiance relative to the caster. Hidden actors are
// always excluded. A neutral caster matches nothing under enemies or allies.
func QualifyingTargets(t *Template, caster *actor.Actor, candidates []*actor.Actor, allegiance Allegiance) []*actor.Actor {
	var out []*actor.Actor
	for _, c := range candidates {
		if c.Hidden {
			continue
		}
		if !t.Contains(c.Pos) {
			continue
		}
		switch allegiance {
		case AllegianceEnemies:
			if caster.Disposition == actor.DispositionNeutral || c.Disposition == caster.Disposition ||
				c.Disposition == actor.DispositionNeutral {
				continue
			}
		case AllegianceAllies:
			if caster.Disposition == actor.DispositionNeutral || c.Disposition != caster.Disposition {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// Store tracks persisted timed templates for round-boundary sweeping.
// It is not safe for concurrent use; the authority serialises access.
type Store struct {
	templates map[string]*Template
}

// NewStore creates an empty template Store.
func NewStore() *Store {
	return &Store{templates: make(map[string]*Template)}
}

// Put registers a timed template.
func (s *Store) Put(t *Template) {
	s.templates[t.ID] = t
}

// Delete removes a template by id. Not-present is a no-op.
func (s *Store) Delete(id string) {
	delete(s.templates, id)
}

// Sweep removes and returns all templates expired at currentRound. Safe to
// call redundantly.
func (s *Store) Sweep(currentRound int) []*Template {
	var expired []*Template
	for id, t := range s.templates {
		if t.Expired(currentRound) {
			expired = append(expired, t)
			delete(s.templates, id)
		}
	}
	return expired
}

// All returns a snapshot of the stored templates.
func (s *Store) All() []*Template {
	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out
}
