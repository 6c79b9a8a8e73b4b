package stats

import "math"

// Sigmoid curve constants. Modifier growth is flat at low ability values,
// steepest around 500, and saturates near 3735.
const (
	sigmoidBase   = 6000.0
	sigmoidFactor = 0.001
	sigmoidOffset = 500.0
	sigmoidAdjust = -2265.0
)

// Sigmoid returns the unscaled, unrounded modifier curve value for an ability
// final value. Negative inputs are mathematically valid and intentionally not
// clamped.
func Sigmoid(value int) float64 {
	return sigmoidBase/(1+math.Exp(-sigmoidFactor*(float64(value)-sigmoidOffset))) + sigmoidAdjust
}

// ModifierFor returns the rounded derived modifier for ability a at the given
// final value. Toughness is always scaled to half the curve; vitality is
// scaled by 1.25 when the race rank is the designated mid tier.
func ModifierFor(a Ability, value int, raceRank Rank) int {
	curve := Sigmoid(value)
	switch {
	case a == Toughness:
		curve *= 0.5
	case a == Vitality && raceRank == RankE:
		curve *= 1.25
	}
	return int(math.Round(curve))
}
