package bracket

import (
	"encoding/json"

	"github.com/google/uuid"
)

type MatchState string

const (
	MatchUnfilled MatchState = "unfilled"
	MatchReady    MatchState = "ready"
	MatchDecided  MatchState = "decided"
)

// Slot is one side of a match. The zero value is an unfilled slot, which is
// not the same thing as an eliminated team.
type Slot struct {
	team   Team
	filled bool
}

func Filled(t Team) Slot {
	return Slot{team: t, filled: true}
}

func Empty() Slot {
	return Slot{}
}

func (s Slot) Team() (Team, bool) {
	return s.team, s.filled
}

func (s Slot) IsFilled() bool {
	return s.filled
}

// Holds reports whether the slot is filled by the team with the given id
func (s Slot) Holds(id uuid.UUID) bool {
	return s.filled && s.team.ID == id
}

// TeamID returns nil for an unfilled slot, which is what the store persists.
func (s Slot) TeamID() *uuid.UUID {
	if !s.filled {
		return nil
	}
	id := s.team.ID
	return &id
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.filled {
		return []byte("null"), nil
	}
	return json.Marshal(s.team)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Empty()
		return nil
	}
	var t Team
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*s = Filled(t)
	return nil
}

type Match struct {
	ID           uuid.UUID `json:"id"`
	TournamentID uuid.UUID `json:"tournamentId"`

	// Position in the bracket, (Round, Index) is unique within a tournament
	Round int `json:"round"`
	Index int `json:"matchIndex"`

	Team1  Slot `json:"team1"`
	Team2  Slot `json:"team2"`
	Winner Slot `json:"winner"`

	CourtNumber *string `json:"courtNumber,omitempty"`
	MatchTime   *string `json:"matchTime,omitempty"`
}

func (m Match) State() MatchState {
	switch {
	case m.Winner.IsFilled():
		return MatchDecided
	case m.Team1.IsFilled() && m.Team2.IsFilled():
		return MatchReady
	default:
		return MatchUnfilled
	}
}

// IsBye reports a first round match that was created with a single occupant.
func (m Match) IsBye() bool {
	return m.Round == 1 && m.Team1.IsFilled() != m.Team2.IsFilled()
}

func (m Match) slotFor(id uuid.UUID) (Slot, int) {
	switch {
	case m.Team1.Holds(id):
		return m.Team1, 1
	case m.Team2.Holds(id):
		return m.Team2, 2
	default:
		return Slot{}, 0
	}
}
