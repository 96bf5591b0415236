package bracket

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Advancement is the outcome of recording one match result
type Advancement struct {
	// Matches is the whole bracket after the update
	Matches []Match
	// Match is the decided match
	Match Match
	// Next is the match the winner moved into, nil when Match is the final
	Next *Match
	// Completed is set once every match in the bracket has a winner
	Completed bool
}

// Advance records winnerID as the winner of matchID and moves the winner into
// the next round. The parent of (round, index) is (round+1, index/2); even
// indices feed team1, odd indices feed team2. Byes are never resolved
// automatically. The input slice is left untouched, also on error.
func Advance(matches []Match, matchID, winnerID uuid.UUID) (*Advancement, error) {
	pos := slices.IndexFunc(matches, func(m Match) bool { return m.ID == matchID })
	if pos < 0 {
		return nil, ErrMatchNotFound
	}
	current := matches[pos]

	winner, slot := current.slotFor(winnerID)
	if slot == 0 {
		return nil, ErrInvalidWinner
	}
	if waitingForOpponent(matches, current) {
		return nil, ErrMatchNotReady
	}

	parentPos := -1
	if current.Round < finalRound(matches) {
		parentPos = indexAt(matches, current.Round+1, current.Index/2)
		if parentPos < 0 {
			return nil, fmt.Errorf("%w: no match at round %d index %d", ErrInconsistentBracket, current.Round+1, current.Index/2)
		}
		if matches[parentPos].Winner.IsFilled() && !current.Winner.Holds(winnerID) {
			return nil, ErrWinnerLocked
		}
	}

	updated := slices.Clone(matches)
	updated[pos].Winner = winner

	result := &Advancement{Matches: updated}
	if parentPos >= 0 {
		// Overwriting in place also replaces a previously advanced winner,
		// the slot depends on the index only
		if current.Index%2 == 0 {
			updated[parentPos].Team1 = winner
		} else {
			updated[parentPos].Team2 = winner
		}
		next := updated[parentPos]
		result.Next = &next
	}

	result.Match = updated[pos]
	result.Completed = IsComplete(updated)
	return result, nil
}

// IsComplete reports whether every match of a non-empty bracket has a winner
func IsComplete(matches []Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if !m.Winner.IsFilled() {
			return false
		}
	}
	return true
}

// Champion returns the winner of the final, if it has been decided.
func Champion(matches []Match) (Team, bool) {
	pos := indexAt(matches, finalRound(matches), 0)
	if pos < 0 {
		return Team{}, false
	}
	return matches[pos].Winner.Team()
}

// waitingForOpponent reports an empty slot that an existing earlier match
// will still fill. Round 1 byes have no feeder and can be decided.
func waitingForOpponent(matches []Match, m Match) bool {
	if m.Round <= 1 {
		return false
	}
	if !m.Team1.IsFilled() && indexAt(matches, m.Round-1, 2*m.Index) >= 0 {
		return true
	}
	if !m.Team2.IsFilled() && indexAt(matches, m.Round-1, 2*m.Index+1) >= 0 {
		return true
	}
	return false
}

func finalRound(matches []Match) int {
	last := 0
	for _, m := range matches {
		last = max(last, m.Round)
	}
	return last
}

func indexAt(matches []Match, round, index int) int {
	return slices.IndexFunc(matches, func(m Match) bool {
		return m.Round == round && m.Index == index
	})
}
