package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentUpcoming  TournamentStatus = "upcoming"
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentUpcoming, TournamentActive, TournamentCompleted:
		return true
	}
	return false
}

type Tournament struct {
	ID     uuid.UUID        `db:"id" json:"id"`
	Name   string           `db:"name" json:"name"`
	Month  string           `db:"month" json:"month"`
	Year   string           `db:"year" json:"year"`
	Status TournamentStatus `db:"status" json:"status"`
	// Incremented on every bracket mutation, used as an optimistic lock
	BracketVersion int       `db:"bracket_version" json:"bracketVersion"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// StatusAfter is the status a tournament with a bracket should have.
func StatusAfter(completed bool) TournamentStatus {
	if completed {
		return TournamentCompleted
	}
	return TournamentActive
}
