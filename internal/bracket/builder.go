package bracket

import (
	"fmt"
	"math/bits"

	"github.com/google/uuid"
)

// RoundCount is ceil(log2(n)), the number of rounds a bracket of n teams needs.
func RoundCount(n int) int {
	if n < 2 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// MatchesInRound is the number of matches in the given 1-based round for n teams
func MatchesInRound(n, round int) int {
	if round < 1 || round > RoundCount(n) {
		return 0
	}
	count := (n + 1) / 2
	for r := 1; r < round; r++ {
		count = (count + 1) / 2
	}
	return count
}

// Build creates every match of a single elimination bracket. Round 1 is filled
// from the seeded roster, later rounds start empty and are filled by Advance.
// Matches are returned ordered by round, then index.
func Build(tournamentID uuid.UUID, teams []Team, seeder Seeder) ([]Match, error) {
	if len(teams) < 2 {
		return nil, ErrInsufficientParticipants
	}

	seen := make(map[uuid.UUID]struct{}, len(teams))
	for _, t := range teams {
		if _, ok := seen[t.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	seeded := seeder.Seed(teams)
	if len(seeded) != len(teams) {
		return nil, fmt.Errorf("%w: seeding returned %d teams for %d", ErrInconsistentBracket, len(seeded), len(teams))
	}

	totalRounds := RoundCount(len(teams))
	firstRoundCount := MatchesInRound(len(teams), 1)
	matches := make([]Match, 0, firstRoundCount*2)

	for i := 0; i < firstRoundCount; i++ {
		m := Match{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Round:        1,
			Index:        i,
			Team1:        Filled(seeded[2*i]),
		}
		// No opponent means a bye, it still needs a winner to be declared
		if 2*i+1 < len(seeded) {
			m.Team2 = Filled(seeded[2*i+1])
		}
		matches = append(matches, m)
	}

	for r := 2; r <= totalRounds; r++ {
		matchesInCurrentRound := MatchesInRound(len(teams), r)
		for i := 0; i < matchesInCurrentRound; i++ {
			matches = append(matches, Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				Round:        r,
				Index:        i,
			})
		}
	}

	if final := MatchesInRound(len(teams), totalRounds); final != 1 {
		return nil, fmt.Errorf("%w: final round has %d matches", ErrInconsistentBracket, final)
	}

	return matches, nil
}
