package store

import (
	"context"
	"errors"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrVersionConflict means another writer changed the bracket since it was read
var ErrVersionConflict = errors.New("bracket was modified concurrently")

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const getTournamentQuery = "SELECT * FROM tournaments WHERE id = ?"

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, month, year, status, bracket_version)
        VALUES (:id, :name, :month, :year, :status, :bracket_version)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, getTournamentQuery, id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := tx.GetContext(ctx, &tournament, getTournamentQuery, id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC, rowid DESC")
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentDetails(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	res, err := tx.NamedExecContext(ctx, `UPDATE tournaments SET name = :name, month = :month, year = :year
        WHERE id = :id`, tournament)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// BumpBracketVersionTx moves the bracket version from expected to expected+1.
// It fails with ErrVersionConflict if the stored version moved in between.
func (s *TournamentStore) BumpBracketVersionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, expected int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE tournaments SET bracket_version = bracket_version + 1 WHERE id = ? AND bracket_version = ?",
		id, expected)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return ErrVersionConflict
	}
	return nil
}

func (s *TournamentStore) DeleteTournament(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM tournaments WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// AddTeamTx appends the team to the end of the tournament roster
func (s *TournamentStore) AddTeamTx(ctx context.Context, tx *sqlx.Tx, tournamentID, teamID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tournament_teams (tournament_id, team_id, position)
        SELECT ?, ?, COALESCE(MAX(position), 0) + 1 FROM tournament_teams WHERE tournament_id = ?`,
		tournamentID, teamID, tournamentID)
	return err
}

func (s *TournamentStore) RemoveTeamTx(ctx context.Context, tx *sqlx.Tx, tournamentID, teamID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM tournament_teams WHERE tournament_id = ? AND team_id = ?", tournamentID, teamID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const rosterQuery = `SELECT t.id, t.name, t.players, t.weight FROM teams t
    JOIN tournament_teams tt ON tt.team_id = t.id
    WHERE tt.tournament_id = ? ORDER BY tt.position ASC`

// GetRoster returns the registered teams in registration order
func (s *TournamentStore) GetRoster(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := s.db.SelectContext(ctx, &teams, rosterQuery, tournamentID)
	return teams, err
}

func (s *TournamentStore) GetRosterTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := tx.SelectContext(ctx, &teams, rosterQuery, tournamentID)
	return teams, err
}

const tournamentsWithTeamQuery = "SELECT tournament_id FROM tournament_teams WHERE team_id = ? ORDER BY tournament_id"

// TournamentsWithTeam lists the tournaments the team is registered in
func (s *TournamentStore) TournamentsWithTeam(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids, tournamentsWithTeamQuery, teamID)
	return ids, err
}

func (s *TournamentStore) TournamentsWithTeamTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, tournamentsWithTeamQuery, teamID)
	return ids, err
}
