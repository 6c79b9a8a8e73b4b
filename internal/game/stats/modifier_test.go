package stats_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/sevenleaf/ascendant/internal/game/stats"
)

func TestSigmoid_KnownPoints(t *testing.T) {
	// Midpoint of the curve: 6000/2 - 2265 = 735.
	assert.InDelta(t, 735, stats.Sigmoid(500), 1e-9)
	// Near zero at the origin.
	assert.InDelta(t, 0, stats.Sigmoid(0), 1)
}

func TestSigmoid_MonotonicNonDecreasing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(-1000, 5000).Draw(t, "a")
		b := rapid.IntRange(-1000, 5000).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(t, stats.Sigmoid(a), stats.Sigmoid(b))
		assert.LessOrEqual(t,
			stats.ModifierFor(stats.Strength, a, stats.RankNone),
			stats.ModifierFor(stats.Strength, b, stats.RankNone),
		)
	})
}

func TestModifierFor_ToughnessIsHalfCurve(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.IntRange(-500, 3000).Draw(t, "v")
		want := int(math.Round(stats.Sigmoid(v) * 0.5))
		assert.Equal(t, want, stats.ModifierFor(stats.Toughness, v, stats.RankNone))
	})
}

func TestModifierFor_VitalityScalesOnlyAtMidTierRank(t *testing.T) {
	v := 800
	plain := int(math.Round(stats.Sigmoid(v)))
	boosted := int(math.Round(stats.Sigmoid(v) * 1.25))

	assert.Equal(t, plain, stats.ModifierFor(stats.Vitality, v, stats.RankG))
	assert.Equal(t, boosted, stats.ModifierFor(stats.Vitality, v, stats.RankE))
	assert.Equal(t, plain, stats.ModifierFor(stats.Vitality, v, stats.RankD))
	// Other abilities are unaffected by rank.
	assert.Equal(t, plain, stats.ModifierFor(stats.Wisdom, v, stats.RankE))
}

func TestRankForLevel_Breakpoints(t *testing.T) {
	cases := []struct {
		level int
		want  stats.Rank
	}{
		{0, stats.RankNone},
		{1, stats.RankG},
		{9, stats.RankG},
		{10, stats.RankF},
		{25, stats.RankE},
		{49, stats.RankE},
		{50, stats.RankD},
		{100, stats.RankC},
		{150, stats.RankB},
		{200, stats.RankA},
		{250, stats.RankS},
		{9999, stats.RankS},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, stats.RankForLevel(c.level), "level %d", c.level)
	}
}
