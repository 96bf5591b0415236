package bracket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRounds(t *testing.T) {
	matches, err := Build(uuid.New(), weightedTeams(5), WeightedSeeding{})
	require.NoError(t, err)

	// Shuffle the order a store might return
	reversed := make([]Match, len(matches))
	for i, m := range matches {
		reversed[len(matches)-1-i] = m
	}

	rounds := GroupRounds(reversed)
	require.Len(t, rounds, 3)

	for i, round := range rounds {
		assert.Equal(t, i+1, round.Number)
		assert.Len(t, round.Matches, MatchesInRound(5, i+1))
		for j, m := range round.Matches {
			assert.Equal(t, j, m.Index)
		}
	}

	assert.Empty(t, GroupRounds(nil))
}
