package bracket

import "errors"

var (
	ErrInsufficientParticipants = errors.New("at least 2 teams are needed to build a bracket")
	ErrDuplicateParticipant     = errors.New("team appears more than once in the roster")
	ErrMatchNotFound            = errors.New("match not found")
	ErrInvalidWinner            = errors.New("winner is not part of this match")
	ErrMatchNotReady            = errors.New("match is still waiting for an opponent")
	ErrWinnerLocked             = errors.New("next match is already decided, winner can no longer change")
	ErrInconsistentBracket      = errors.New("bracket is inconsistent")
)
