package bracket

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, matches []Match, round, index int) Match {
	t.Helper()
	pos := indexAt(matches, round, index)
	require.GreaterOrEqual(t, pos, 0, "no match at round %d index %d", round, index)
	return matches[pos]
}

func teamIn(t *testing.T, s Slot) Team {
	t.Helper()
	team, ok := s.Team()
	require.True(t, ok, "slot is empty")
	return team
}

// play decides every decidable match, letting pick choose the winner, until
// nothing is left to decide.
func play(t *testing.T, matches []Match, pick func(Match) Team) ([]Match, bool) {
	t.Helper()
	completed := false
	for {
		progressed := false
		for _, m := range matches {
			if m.Winner.IsFilled() || waitingForOpponent(matches, m) {
				continue
			}
			if !m.Team1.IsFilled() && !m.Team2.IsFilled() {
				continue
			}
			res, err := Advance(matches, m.ID, pick(m).ID)
			require.NoError(t, err)
			matches, completed = res.Matches, res.Completed
			progressed = true
			break
		}
		if !progressed {
			return matches, completed
		}
	}
}

func stronger(m Match) Team {
	t1, ok1 := m.Team1.Team()
	t2, ok2 := m.Team2.Team()
	if !ok2 || (ok1 && t1.SeedWeight() <= t2.SeedWeight()) {
		return t1
	}
	return t2
}

func TestAdvance_WinnerMovesToParentSlot(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(4), WeightedSeeding{})
	require.NoError(t, err)

	m0 := find(t, matches, 1, 0)
	m1 := find(t, matches, 1, 1)
	w0 := teamIn(t, m0.Team2)
	w1 := teamIn(t, m1.Team1)

	res, err := Advance(matches, m0.ID, w0.ID)
	require.NoError(t, err)
	assert.False(t, res.Completed)
	require.NotNil(t, res.Next)
	assert.True(t, res.Next.Team1.Holds(w0.ID))
	assert.False(t, res.Next.Team2.IsFilled())
	assert.True(t, res.Match.Winner.Holds(w0.ID))
	assert.Equal(t, MatchDecided, res.Match.State())

	res, err = Advance(res.Matches, m1.ID, w1.ID)
	require.NoError(t, err)
	final := find(t, res.Matches, 2, 0)
	assert.True(t, final.Team1.Holds(w0.ID))
	assert.True(t, final.Team2.Holds(w1.ID))
	assert.Equal(t, MatchReady, final.State())
}

func TestAdvance_InvalidWinnerLeavesBracketUnchanged(t *testing.T) {
	teams := weightedTeams(4)
	matches, err := Build(uuid.New(), teams, WeightedSeeding{})
	require.NoError(t, err)

	before, err := json.Marshal(matches)
	require.NoError(t, err)

	m0 := find(t, matches, 1, 0)
	outsider := teamIn(t, find(t, matches, 1, 1).Team1)

	res, err := Advance(matches, m0.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrInvalidWinner)
	assert.Nil(t, res)

	_, err = Advance(matches, m0.ID, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidWinner)

	after, err := json.Marshal(matches)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdvance_MatchNotFound(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(2), WeightedSeeding{})
	require.NoError(t, err)

	_, err = Advance(matches, uuid.New(), teamIn(t, matches[0].Team1).ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestAdvance_DoesNotMutateInput(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(4), WeightedSeeding{})
	require.NoError(t, err)
	snapshot := slices.Clone(matches)

	m0 := find(t, matches, 1, 0)
	_, err = Advance(matches, m0.ID, teamIn(t, m0.Team1).ID)
	require.NoError(t, err)

	assert.Equal(t, snapshot, matches)
}

func TestAdvance_FullBracketOfEight(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(8), WeightedSeeding{})
	require.NoError(t, err)

	// Team1 always wins, remember who lost their first match
	eliminated := map[uuid.UUID]bool{}
	for _, m := range matches {
		if m.Round == 1 {
			eliminated[teamIn(t, m.Team2).ID] = true
		}
	}

	result, completed := play(t, matches, func(m Match) Team { return teamIn(t, m.Team1) })
	assert.True(t, completed)
	assert.True(t, IsComplete(result))

	final := find(t, result, 3, 0)
	assert.Equal(t, MatchDecided, final.State())

	decidedFinals := 0
	for _, m := range result {
		if m.Round == 3 && m.State() == MatchDecided {
			decidedFinals++
		}
		if m.Round == 1 {
			continue
		}
		for _, s := range []Slot{m.Team1, m.Team2, m.Winner} {
			team := teamIn(t, s)
			assert.False(t, eliminated[team.ID], "%s advanced after losing", team.Name)
		}
	}
	assert.Equal(t, 1, decidedFinals)

	champion, ok := Champion(result)
	require.True(t, ok)
	assert.True(t, final.Winner.Holds(champion.ID))
}

func TestAdvance_TopSeedsMeetOnlyInFinal(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		matches, err := Build(uuid.New(), weightedTeams(n), WeightedSeeding{})
		require.NoError(t, err)

		result, completed := play(t, matches, stronger)
		require.True(t, completed)

		last := RoundCount(n)
		for _, m := range result {
			t1, t2 := teamIn(t, m.Team1), teamIn(t, m.Team2)
			topTwo := (t1.Name == "1" && t2.Name == "2") || (t1.Name == "2" && t2.Name == "1")
			if m.Round == last {
				assert.True(t, topTwo, "n=%d final should be seed 1 against seed 2", n)
			} else {
				assert.False(t, topTwo, "n=%d seeds 1 and 2 met in round %d", n, m.Round)
			}
		}
	}
}

func TestAdvance_Idempotent(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(8), WeightedSeeding{})
	require.NoError(t, err)
	m := find(t, matches, 1, 3)
	winner := teamIn(t, m.Team2)

	once, err := Advance(matches, m.ID, winner.ID)
	require.NoError(t, err)
	twice, err := Advance(once.Matches, m.ID, winner.ID)
	require.NoError(t, err)

	assert.Equal(t, once.Matches, twice.Matches)
	assert.True(t, twice.Next.Team2.Holds(winner.ID))
}

func TestAdvance_ChangingWinnerReplacesParentSlot(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(4), WeightedSeeding{})
	require.NoError(t, err)
	m := find(t, matches, 1, 1)
	first, second := teamIn(t, m.Team1), teamIn(t, m.Team2)

	res, err := Advance(matches, m.ID, first.ID)
	require.NoError(t, err)
	res, err = Advance(res.Matches, m.ID, second.ID)
	require.NoError(t, err)

	final := find(t, res.Matches, 2, 0)
	assert.True(t, final.Team2.Holds(second.ID))
	assert.False(t, final.Team1.IsFilled())
	assert.True(t, find(t, res.Matches, 1, 1).Winner.Holds(second.ID))
}

func TestAdvance_WinnerLockedOnceParentDecided(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(4), WeightedSeeding{})
	require.NoError(t, err)

	result, completed := play(t, matches, func(m Match) Team { return teamIn(t, m.Team1) })
	require.True(t, completed)

	m0 := find(t, result, 1, 0)
	_, err = Advance(result, m0.ID, teamIn(t, m0.Team2).ID)
	assert.ErrorIs(t, err, ErrWinnerLocked)

	res, err := Advance(result, m0.ID, teamIn(t, m0.Team1).ID)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	// The final itself can be overwritten, it has no downstream match
	final := find(t, result, 2, 0)
	res, err = Advance(result, final.ID, teamIn(t, final.Team2).ID)
	require.NoError(t, err)
	assert.Nil(t, res.Next)
	assert.True(t, res.Completed)
	champion, _ := Champion(res.Matches)
	assert.Equal(t, teamIn(t, final.Team2).ID, champion.ID)
}

func TestAdvance_WaitsForOpponent(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(4), WeightedSeeding{})
	require.NoError(t, err)
	m0 := find(t, matches, 1, 0)
	winner := teamIn(t, m0.Team1)

	res, err := Advance(matches, m0.ID, winner.ID)
	require.NoError(t, err)

	final := find(t, res.Matches, 2, 0)
	_, err = Advance(res.Matches, final.ID, winner.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestAdvance_ByeNeedsExplicitWinner(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(5), WeightedSeeding{})
	require.NoError(t, err)
	require.Equal(t, 3, MatchesInRound(5, 1))

	bye := find(t, matches, 1, 2)
	require.True(t, bye.IsBye())
	solo := teamIn(t, bye.Team1)
	assert.Equal(t, "3", solo.Name)

	// Nothing moves on its own
	parent := find(t, matches, 2, 1)
	assert.False(t, parent.Team1.IsFilled())
	_, err = Advance(matches, parent.ID, solo.ID)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	res, err := Advance(matches, bye.ID, solo.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, res.Next.Round)
	assert.Equal(t, 1, res.Next.Index)
	assert.True(t, res.Next.Team1.Holds(solo.ID))

	// Round 2 index 1 has no second feeder, so it can be decided right away
	res, err = Advance(res.Matches, parent.ID, solo.ID)
	require.NoError(t, err)
	assert.True(t, find(t, res.Matches, 3, 0).Team2.Holds(solo.ID))

	result, completed := play(t, res.Matches, stronger)
	assert.True(t, completed)
	champion, ok := Champion(result)
	require.True(t, ok)
	assert.Equal(t, "1", champion.Name)
}

func TestAdvance_MissingParentIsInconsistent(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(8), WeightedSeeding{})
	require.NoError(t, err)

	broken := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Round == 2 && m.Index == 0
	})
	m0 := find(t, broken, 1, 0)

	_, err = Advance(broken, m0.ID, teamIn(t, m0.Team1).ID)
	assert.ErrorIs(t, err, ErrInconsistentBracket)
}

func TestChampion_Undecided(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(3), WeightedSeeding{})
	require.NoError(t, err)

	_, ok := Champion(matches)
	assert.False(t, ok)
	_, ok = Champion(nil)
	assert.False(t, ok)
	assert.False(t, IsComplete(nil))
}
