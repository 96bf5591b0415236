package store

import (
	"context"
	"database/sql"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TeamStore struct {
	db *sqlx.DB
}

const (
	teamColumns     = "id, name, players, weight"
	getTeamQuery    = "SELECT " + teamColumns + " FROM teams WHERE id = ?"
	listTeamsQuery  = "SELECT " + teamColumns + " FROM teams ORDER BY rowid ASC"
	createTeamQuery = `
		INSERT INTO teams (id, name, players, weight) VALUES
		(:id, :name, :players, :weight)
	`
	updateTeamQuery = `
		UPDATE teams SET
		name = :name,
		players = :players,
		weight = :weight
		WHERE id = :id
	`
	deleteTeamQuery = "DELETE FROM teams WHERE id = ?"
)

func NewTeamStore(db *sqlx.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	err := s.db.GetContext(ctx, &team, getTeamQuery, id)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TeamStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	err := tx.GetContext(ctx, &team, getTeamQuery, id)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TeamStore) ListTeams(ctx context.Context) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := s.db.SelectContext(ctx, &teams, listTeamsQuery)
	return teams, err
}

func (s *TeamStore) CreateTeam(ctx context.Context, team *bracket.Team) error {
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, team)
	return err
}

func (s *TeamStore) UpdateTeam(ctx context.Context, team *bracket.Team) error {
	res, err := s.db.NamedExecContext(ctx, updateTeamQuery, team)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteTeamTx removes the team and, through the schema, its tournament registrations.
// Matches referencing the team must be removed first.
func (s *TeamStore) DeleteTeamTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, deleteTeamQuery, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// expectAffected turns an update that touched nothing into sql.ErrNoRows
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
