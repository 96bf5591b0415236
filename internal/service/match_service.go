package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/AdamBeresnev/padel-bracket/internal/store"
	"github.com/AdamBeresnev/padel-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db    *sqlx.DB
	store *store.TournamentStore
	locks *TournamentLocks
	bus   *events.Bus
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, locks *TournamentLocks, bus *events.Bus) *MatchService {
	return &MatchService{db: db, store: store, locks: locks, bus: bus}
}

type ScheduleInput struct {
	CourtNumber string `json:"courtNumber"`
	MatchTime   string `json:"matchTime"`
}

// AdvanceWinner records the winner of a match and moves them into the next
// round. Both matches, the tournament status and the bracket version are
// written in one transaction.
func (s *MatchService) AdvanceWinner(ctx context.Context, matchID, winnerID uuid.UUID) (*bracket.Advancement, error) {
	tournamentID, err := s.tournamentOf(ctx, matchID)
	if err != nil {
		return nil, err
	}

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

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, s.logInconsistent(tournamentID, fmt.Errorf("failed to get matches: %w", err))
	}

	res, err := bracket.Advance(matches, matchID, winnerID)
	if err != nil {
		return nil, s.logInconsistent(tournamentID, err)
	}

	if err := s.store.UpdateMatchTx(ctx, tx, res.Match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if res.Next != nil {
		if err := s.store.UpdateMatchTx(ctx, tx, *res.Next); err != nil {
			return nil, fmt.Errorf("failed to update next match: %w", err)
		}
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournamentID, bracket.StatusAfter(res.Completed)); err != nil {
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}
	if err := bumpVersionTx(ctx, s.store, tx, tournament); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("match decided",
		"tournament_id", tournamentID,
		"match_id", matchID,
		"round", res.Match.Round,
		"winner_id", winnerID,
		"completed", res.Completed,
	)
	events.Publish(s.bus, events.MatchDecided{
		TournamentID: tournamentID,
		Match:        res.Match,
		Next:         res.Next,
		Completed:    res.Completed,
	})
	return res, nil
}

// UpdateSchedule sets the court and time of a match. Blank values clear them.
func (s *MatchService) UpdateSchedule(ctx context.Context, matchID uuid.UUID, in ScheduleInput) (*bracket.Match, error) {
	tournamentID, err := s.tournamentOf(ctx, matchID)
	if err != nil {
		return nil, err
	}

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

	matches, err := s.store.GetMatchesTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	pos := slices.IndexFunc(matches, func(m bracket.Match) bool { return m.ID == matchID })
	if pos < 0 {
		return nil, bracket.ErrMatchNotFound
	}

	match := matches[pos]
	match.CourtNumber = utils.StringOrNil(in.CourtNumber)
	match.MatchTime = utils.StringOrNil(in.MatchTime)

	if err := s.store.UpdateMatchTx(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	events.Publish(s.bus, events.MatchUpdated{TournamentID: tournamentID, Match: match})
	return &match, nil
}

func (s *MatchService) tournamentOf(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	id, err := s.store.GetMatchTournamentID(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, bracket.ErrMatchNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get match: %w", err)
	}
	return id, nil
}

func (s *MatchService) logInconsistent(tournamentID uuid.UUID, err error) error {
	if errors.Is(err, bracket.ErrInconsistentBracket) {
		slog.Error("bracket is inconsistent, leaving it unchanged", "tournament_id", tournamentID, "error", err)
	}
	return err
}
