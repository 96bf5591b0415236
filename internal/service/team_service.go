package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/AdamBeresnev/padel-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	minWeight = 1.0
	maxWeight = 5.0
)

type TeamService struct {
	db          *sqlx.DB
	store       *store.TeamStore
	tournaments *TournamentService
}

func NewTeamService(db *sqlx.DB, store *store.TeamStore, tournaments *TournamentService) *TeamService {
	return &TeamService{db: db, store: store, tournaments: tournaments}
}

type TeamInput struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
	Weight  *float64 `json:"weight"`
}

func (in TeamInput) normalize() (TeamInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrValidationFailed)
	}
	if len([]rune(in.Name)) > maxNameLength {
		return in, fmt.Errorf("%w: name must be at most %d characters", ErrValidationFailed, maxNameLength)
	}

	players := make([]string, 0, len(in.Players))
	for _, p := range in.Players {
		if p = strings.TrimSpace(p); p != "" {
			players = append(players, p)
		}
	}
	in.Players = players

	if in.Weight != nil {
		if err := validateWeight(*in.Weight); err != nil {
			return in, err
		}
	}
	return in, nil
}

// Weights live in [1, 5] in steps of 0.1
func validateWeight(w float64) error {
	if math.IsNaN(w) || w < minWeight || w > maxWeight {
		return fmt.Errorf("%w: weight must be between %.0f and %.0f", ErrValidationFailed, minWeight, maxWeight)
	}
	scaled := w * 10
	if math.Abs(scaled-math.Round(scaled)) > 1e-9 {
		return fmt.Errorf("%w: weight allows at most one decimal", ErrValidationFailed)
	}
	return nil
}

func (s *TeamService) CreateTeam(ctx context.Context, in TeamInput) (*bracket.Team, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	team := &bracket.Team{
		ID:      uuid.New(),
		Name:    in.Name,
		Players: bracket.Roster(in.Players),
		Weight:  in.Weight,
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	slog.Info("team created", "team_id", team.ID, "name", team.Name)
	return team, nil
}

func (s *TeamService) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	team, err := s.store.GetTeam(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeamNotFound
	}
	return team, err
}

func (s *TeamService) ListTeams(ctx context.Context) ([]bracket.Team, error) {
	return s.store.ListTeams(ctx)
}

// UpdateTeam changes name, players and weight. Existing brackets keep their
// seeding until the tournament is restarted.
func (s *TeamService) UpdateTeam(ctx context.Context, id uuid.UUID, in TeamInput) (*bracket.Team, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	team := &bracket.Team{ID: id, Name: in.Name, Players: bracket.Roster(in.Players), Weight: in.Weight}
	if err := s.store.UpdateTeam(ctx, team); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	return team, nil
}

// DeleteTeam removes the team from every tournament it is registered in,
// rebuilding or discarding the affected brackets, and then deletes it.
func (s *TeamService) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	tournamentIDs, err := s.tournaments.store.TournamentsWithTeam(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list tournaments of team: %w", err)
	}

	unlock, err := s.tournaments.locks.LockAll(ctx, tournamentIDs)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := s.tournaments.store.TournamentsWithTeamTx(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("failed to list tournaments of team: %w", err)
	}
	for _, tid := range current {
		if !slices.Contains(tournamentIDs, tid) {
			// Registered somewhere after the locks were taken
			return ErrStaleBracket
		}
	}

	var built []events.BracketBuilt
	for _, tid := range current {
		tournament, err := s.tournaments.getTournamentTx(ctx, tx, tid)
		if err != nil {
			return err
		}
		if err := s.tournaments.store.RemoveTeamTx(ctx, tx, tid, id); err != nil {
			return fmt.Errorf("failed to unregister team: %w", err)
		}
		ev, err := s.tournaments.refreshBracketTx(ctx, tx, tournament)
		if err != nil {
			return err
		}
		if ev != nil {
			built = append(built, *ev)
		}
	}

	if err := s.store.DeleteTeamTx(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, ev := range built {
		s.tournaments.publish(ev)
	}
	slog.Info("team deleted", "team_id", id, "tournaments", len(current))
	return nil
}
