package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type matchRow struct {
	ID           uuid.UUID  `db:"id"`
	TournamentID uuid.UUID  `db:"tournament_id"`
	RoundNumber  int        `db:"round_number"`
	MatchIndex   int        `db:"match_index"`
	Team1ID      *uuid.UUID `db:"team_1_id"`
	Team2ID      *uuid.UUID `db:"team_2_id"`
	WinnerID     *uuid.UUID `db:"winner_id"`
	CourtNumber  *string    `db:"court_number"`
	MatchTime    *string    `db:"match_time"`
}

func toRow(m bracket.Match) matchRow {
	return matchRow{
		ID:           m.ID,
		TournamentID: m.TournamentID,
		RoundNumber:  m.Round,
		MatchIndex:   m.Index,
		Team1ID:      m.Team1.TeamID(),
		Team2ID:      m.Team2.TeamID(),
		WinnerID:     m.Winner.TeamID(),
		CourtNumber:  m.CourtNumber,
		MatchTime:    m.MatchTime,
	}
}

const (
	matchesQuery = `SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, match_index ASC`
	// Every team a bracket references, registered or not
	matchTeamsQuery = `SELECT DISTINCT t.id, t.name, t.players, t.weight FROM teams t
        JOIN matches m ON t.id IN (m.team_1_id, m.team_2_id, m.winner_id)
        WHERE m.tournament_id = ?`
	insertMatchQuery = `INSERT INTO matches (id, tournament_id, round_number, match_index, team_1_id, team_2_id, winner_id, court_number, match_time)
        VALUES (:id, :tournament_id, :round_number, :match_index, :team_1_id, :team_2_id, :winner_id, :court_number, :match_time)`
	updateMatchQuery = `UPDATE matches SET
        team_1_id = :team_1_id,
        team_2_id = :team_2_id,
        winner_id = :winner_id,
        court_number = :court_number,
        match_time = :match_time
        WHERE id = :id AND tournament_id = :tournament_id`
)

// ReplaceMatchesTx discards the stored bracket of the tournament and stores matches instead
func (s *TournamentStore) ReplaceMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, matches []bracket.Match) error {
	if err := s.DeleteMatchesTx(ctx, tx, tournamentID); err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	rows := make([]matchRow, len(matches))
	for i, m := range matches {
		if m.TournamentID != tournamentID {
			return fmt.Errorf("match %s belongs to tournament %s", m.ID, m.TournamentID)
		}
		rows[i] = toRow(m)
	}
	_, err := tx.NamedExecContext(ctx, insertMatchQuery, rows)
	return err
}

func (s *TournamentStore) DeleteMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ?", tournamentID)
	return err
}

// UpdateMatchTx writes the slots, winner and schedule of one match
func (s *TournamentStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match bracket.Match) error {
	res, err := tx.NamedExecContext(ctx, updateMatchQuery, toRow(match))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return loadMatches(ctx, s.db, tournamentID)
}

func (s *TournamentStore) GetMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	return loadMatches(ctx, tx, tournamentID)
}

// GetMatchTournamentID finds the tournament a match belongs to
func (s *TournamentStore) GetMatchTournamentID(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.GetContext(ctx, &id, "SELECT tournament_id FROM matches WHERE id = ?", matchID)
	return id, err
}

func loadMatches(ctx context.Context, q sqlx.QueryerContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var rows []matchRow
	if err := sqlx.SelectContext(ctx, q, &rows, matchesQuery, tournamentID); err != nil {
		return nil, err
	}

	var teams []bracket.Team
	if err := sqlx.SelectContext(ctx, q, &teams, matchTeamsQuery, tournamentID); err != nil {
		return nil, err
	}
	teamMap := make(map[uuid.UUID]bracket.Team, len(teams))
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	slot := func(id *uuid.UUID) (bracket.Slot, error) {
		if id == nil {
			return bracket.Empty(), nil
		}
		team, ok := teamMap[*id]
		if !ok {
			return bracket.Slot{}, fmt.Errorf("%w: unknown team %s", bracket.ErrInconsistentBracket, *id)
		}
		return bracket.Filled(team), nil
	}

	matches := make([]bracket.Match, 0, len(rows))
	for _, r := range rows {
		m := bracket.Match{
			ID:           r.ID,
			TournamentID: r.TournamentID,
			Round:        r.RoundNumber,
			Index:        r.MatchIndex,
			CourtNumber:  r.CourtNumber,
			MatchTime:    r.MatchTime,
		}
		var err error
		if m.Team1, err = slot(r.Team1ID); err != nil {
			return nil, err
		}
		if m.Team2, err = slot(r.Team2ID); err != nil {
			return nil, err
		}
		if m.Winner, err = slot(r.WinnerID); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}
