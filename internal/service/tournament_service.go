package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/AdamBeresnev/padel-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const maxNameLength = 50

type TournamentService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	teams  *store.TeamStore
	seeder bracket.Seeder
	locks  *TournamentLocks
	bus    *events.Bus
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, teams *store.TeamStore, seeder bracket.Seeder, locks *TournamentLocks, bus *events.Bus) *TournamentService {
	return &TournamentService{db: db, store: store, teams: teams, seeder: seeder, locks: locks, bus: bus}
}

type TournamentInput struct {
	Name  string `json:"name"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

func (in TournamentInput) normalize() (TournamentInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Month = strings.TrimSpace(in.Month)
	in.Year = strings.TrimSpace(in.Year)

	switch {
	case in.Name == "":
		return in, fmt.Errorf("%w: name is required", ErrValidationFailed)
	case len([]rune(in.Name)) > maxNameLength:
		return in, fmt.Errorf("%w: name must be at most %d characters", ErrValidationFailed, maxNameLength)
	case in.Month == "":
		return in, fmt.Errorf("%w: month is required", ErrValidationFailed)
	case in.Year == "":
		return in, fmt.Errorf("%w: year is required", ErrValidationFailed)
	}
	return in, nil
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Teams      []bracket.Team      `json:"teams"`
	Matches    []bracket.Match     `json:"matches"`
	Rounds     []bracket.Round     `json:"rounds"`
	Champion   *bracket.Team       `json:"champion"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, in TournamentInput) (*bracket.Tournament, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	tournament := &bracket.Tournament{
		ID:     uuid.New(),
		Name:   in.Name,
		Month:  in.Month,
		Year:   in.Year,
		Status: bracket.TournamentUpcoming,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("tournament created", "tournament_id", tournament.ID, "name", tournament.Name)
	return s.GetTournament(ctx, tournament.ID)
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	return s.store.ListTournaments(ctx)
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	return tournament, err
}

// GetTournamentData loads the tournament, its roster and its bracket concurrently
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	var data TournamentData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.GetTournament(gctx, id)
		data.Tournament = t
		return err
	})
	g.Go(func() error {
		teams, err := s.store.GetRoster(gctx, id)
		data.Teams = teams
		return err
	})
	g.Go(func() error {
		matches, err := s.store.GetMatches(gctx, id)
		data.Matches = matches
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.Rounds = bracket.GroupRounds(data.Matches)
	if champion, ok := bracket.Champion(data.Matches); ok {
		data.Champion = &champion
	}
	return &data, nil
}

func (s *TournamentService) GetRoster(ctx context.Context, id uuid.UUID) ([]bracket.Team, error) {
	if _, err := s.GetTournament(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetRoster(ctx, id)
}

func (s *TournamentService) GetMatches(ctx context.Context, id uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.GetTournament(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetMatches(ctx, id)
}

func (s *TournamentService) UpdateTournament(ctx context.Context, id uuid.UUID, in TournamentInput) (*bracket.Tournament, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament := &bracket.Tournament{ID: id, Name: in.Name, Month: in.Month, Year: in.Year}
	if err := s.store.UpdateTournamentDetails(ctx, tx, tournament); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetTournament(ctx, id)
}

func (s *TournamentService) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.store.DeleteTournament(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("tournament deleted", "tournament_id", id)
	return nil
}

// UpdateStatus overrides the tournament status without touching the bracket.
// The new status must still agree with the bracket: upcoming only without
// one, active only with one, completed only once every match is decided.
func (s *TournamentService) UpdateStatus(ctx context.Context, id uuid.UUID, status bracket.TournamentStatus) (*bracket.Tournament, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.getTournamentTx(ctx, tx, id); err != nil {
		return nil, err
	}
	matches, err := s.store.GetMatchesTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	if err := checkStatus(status, matches); err != nil {
		return nil, err
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetTournament(ctx, id)
}

// StartTournament builds a fresh bracket from the current roster. Starting
// an already started tournament discards every recorded result.
func (s *TournamentService) StartTournament(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.getTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	roster, err := s.store.GetRosterTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	if len(roster) < 2 {
		return nil, bracket.ErrInsufficientParticipants
	}

	ev, err := s.rebuildTx(ctx, tx, tournament)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(ev)
	slog.Info("tournament started", "tournament_id", id, "teams", len(roster), "matches", len(ev.Matches))
	return s.GetTournamentData(ctx, id)
}

func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID, teamID uuid.UUID) ([]bracket.Team, error) {
	return s.changeRoster(ctx, tournamentID, func(tx *sqlx.Tx, roster []bracket.Team) error {
		if slices.ContainsFunc(roster, func(t bracket.Team) bool { return t.ID == teamID }) {
			return ErrTeamAlreadyRegistered
		}
		if _, err := s.teams.GetTeamTx(ctx, tx, teamID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTeamNotFound
			}
			return err
		}
		return s.store.AddTeamTx(ctx, tx, tournamentID, teamID)
	})
}

func (s *TournamentService) UnregisterTeam(ctx context.Context, tournamentID, teamID uuid.UUID) ([]bracket.Team, error) {
	return s.changeRoster(ctx, tournamentID, func(tx *sqlx.Tx, _ []bracket.Team) error {
		err := s.store.RemoveTeamTx(ctx, tx, tournamentID, teamID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotRegistered
		}
		return err
	})
}

// changeRoster applies change to the roster and keeps an existing bracket in
// line with the new roster
func (s *TournamentService) changeRoster(ctx context.Context, tournamentID uuid.UUID, change func(tx *sqlx.Tx, roster []bracket.Team) error) ([]bracket.Team, error) {
	unlock, err := s.locks.Lock(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.getTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	roster, err := s.store.GetRosterTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	if err := change(tx, roster); err != nil {
		return nil, err
	}

	ev, err := s.refreshBracketTx(ctx, tx, tournament)
	if err != nil {
		return nil, err
	}

	roster, err = s.store.GetRosterTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if ev != nil {
		s.publish(*ev)
	}
	return roster, nil
}

// refreshBracketTx rebuilds the bracket of a tournament whose roster changed.
// Tournaments without a bracket are left alone.
func (s *TournamentService) refreshBracketTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) (*events.BracketBuilt, error) {
	matches, err := s.store.GetMatchesTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ev, err := s.rebuildTx(ctx, tx, tournament)
	if err != nil {
		return nil, err
	}
	slog.Info("bracket rebuilt after roster change", "tournament_id", tournament.ID, "matches", len(ev.Matches), "status", ev.Status)
	return &ev, nil
}

// rebuildTx replaces the bracket with one built from the stored roster. With
// fewer than two teams the bracket is discarded and the tournament goes back
// to upcoming.
func (s *TournamentService) rebuildTx(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) (events.BracketBuilt, error) {
	ev := events.BracketBuilt{TournamentID: tournament.ID}

	roster, err := s.store.GetRosterTx(ctx, tx, tournament.ID)
	if err != nil {
		return ev, fmt.Errorf("failed to get roster: %w", err)
	}

	if len(roster) < 2 {
		ev.Status = bracket.TournamentUpcoming
		ev.Matches = []bracket.Match{}
		if err := s.store.DeleteMatchesTx(ctx, tx, tournament.ID); err != nil {
			return ev, fmt.Errorf("failed to delete matches: %w", err)
		}
	} else {
		matches, err := bracket.Build(tournament.ID, roster, s.seeder)
		if err != nil {
			return ev, err
		}
		ev.Status = bracket.TournamentActive
		ev.Matches = matches
		if err := s.store.ReplaceMatchesTx(ctx, tx, tournament.ID, matches); err != nil {
			return ev, fmt.Errorf("failed to store bracket: %w", err)
		}
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, ev.Status); err != nil {
		return ev, fmt.Errorf("failed to update tournament status: %w", err)
	}
	if err := bumpVersionTx(ctx, s.store, tx, tournament); err != nil {
		return ev, err
	}
	return ev, nil
}

func (s *TournamentService) getTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return tournament, nil
}

func checkStatus(status bracket.TournamentStatus, matches []bracket.Match) error {
	switch {
	case status == bracket.TournamentUpcoming && len(matches) > 0:
		return fmt.Errorf("%w: restart or clear the bracket instead", ErrStatusConflict)
	case status != bracket.TournamentUpcoming && len(matches) == 0:
		return fmt.Errorf("%w: start the tournament first", ErrStatusConflict)
	case status == bracket.TournamentCompleted && !bracket.IsComplete(matches):
		return fmt.Errorf("%w: matches are still undecided", ErrStatusConflict)
	}
	return nil
}

func (s *TournamentService) publish(ev events.BracketBuilt) {
	events.Publish(s.bus, ev)
}

func bumpVersionTx(ctx context.Context, st *store.TournamentStore, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	err := st.BumpBracketVersionTx(ctx, tx, tournament.ID, tournament.BracketVersion)
	if errors.Is(err, store.ErrVersionConflict) {
		return ErrStaleBracket
	}
	if err != nil {
		return fmt.Errorf("failed to bump bracket version: %w", err)
	}
	tournament.BracketVersion++
	return nil
}
