package bracket

import (
	"cmp"
	"slices"
)

type Round struct {
	Number  int     `json:"number"`
	Matches []Match `json:"matches"`
}

// GroupRounds splits a bracket into rounds, ordered by round number and
// match index.
func GroupRounds(matches []Match) []Round {
	byRound := make(map[int][]Match)
	var roundNums []int

	for _, m := range matches {
		if _, exists := byRound[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		byRound[m.Round] = append(byRound[m.Round], m)
	}

	slices.Sort(roundNums)

	rounds := make([]Round, 0, len(roundNums))
	for _, r := range roundNums {
		ms := byRound[r]
		slices.SortFunc(ms, func(a, b Match) int { return cmp.Compare(a.Index, b.Index) })
		rounds = append(rounds, Round{Number: r, Matches: ms})
	}
	return rounds
}
