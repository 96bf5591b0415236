package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

type Team struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Name    string    `db:"name" json:"name"`
	Players Roster    `db:"players" json:"players"`
	// Lower is stronger. Nil means the team was registered without a seed.
	Weight *float64 `db:"weight" json:"weight"`
}

// SeedWeight returns the weight used for ordering, unweighted teams sort last.
func (t Team) SeedWeight() float64 {
	if t.Weight == nil {
		return math.Inf(1)
	}
	return *t.Weight
}

// Roster is stored as a JSON array in a single text column
type Roster []string

func (r Roster) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Roster) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Roster{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("roster: unsupported column type %T", src)
	}

	var players []string
	if err := json.Unmarshal(raw, &players); err != nil {
		return fmt.Errorf("roster: %w", err)
	}
	*r = players
	return nil
}
