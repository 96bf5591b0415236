package events

import (
	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/google/uuid"
)

// BracketBuilt is emitted after a tournament (re)start replaced the whole bracket.
// Matches is empty when the bracket was discarded.
type BracketBuilt struct {
	TournamentID uuid.UUID
	Status       bracket.TournamentStatus
	Matches      []bracket.Match
}

// MatchDecided is emitted after a winner was recorded.
type MatchDecided struct {
	TournamentID uuid.UUID
	Match        bracket.Match
	Next         *bracket.Match
	Completed    bool
}

// MatchUpdated is emitted when match details other than the result change.
type MatchUpdated struct {
	TournamentID uuid.UUID
	Match        bracket.Match
}
