package stats

// Rank is the coarse letter-graded tier derived from a progression level.
type Rank string

const (
	RankNone Rank = ""
	RankG    Rank = "G"
	RankF    Rank = "F"
	RankE    Rank = "E"
	RankD    Rank = "D"
	RankC    Rank = "C"
	RankB    Rank = "B"
	RankA    Rank = "A"
	RankS    Rank = "S"
)

// rankBreakpoints maps the minimum level of each rank, lowest first.
// The table is monotonic: a level always maps to exactly one rank.
var rankBreakpoints = []struct {
	minLevel int
	rank     Rank
}{
	{1, RankG},
	{10, RankF},
	{25, RankE},
	{50, RankD},
	{100, RankC},
	{150, RankB},
	{200, RankA},
	{250, RankS},
}

// RankForLevel returns the rank for a progression level. Levels below 1
// return RankNone.
func RankForLevel(level int) Rank {
	r := RankNone
	for _, bp := range rankBreakpoints {
		if level >= bp.minLevel {
			r = bp.rank
		}
	}
	return r
}
