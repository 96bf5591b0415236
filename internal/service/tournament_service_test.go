package service

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/AdamBeresnev/padel-bracket/internal/store"
	"github.com/AdamBeresnev/padel-bracket/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a throwaway SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := sqlx.Connect("sqlite3", "file:"+path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	require.NoError(t, err, "Failed to connect to test DB")

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type testEnv struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	tournaments *TournamentService
	teams       *TeamService
	matches     *MatchService
	recorder    *recorder
}

// recorder collects the events published during a test
type recorder struct {
	mu      sync.Mutex
	built   []events.BracketBuilt
	decided []events.MatchDecided
	updated []events.MatchUpdated
}

func (r *recorder) builtEvents() []events.BracketBuilt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.BracketBuilt(nil), r.built...)
}

func (r *recorder) decidedEvents() []events.MatchDecided {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.MatchDecided(nil), r.decided...)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus()
	rec := &recorder{}
	events.Subscribe(bus, func(ev events.BracketBuilt) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.built = append(rec.built, ev)
	})
	events.Subscribe(bus, func(ev events.MatchDecided) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.decided = append(rec.decided, ev)
	})
	events.Subscribe(bus, func(ev events.MatchUpdated) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.updated = append(rec.updated, ev)
	})

	tournamentStore := store.NewTournamentStore(db)
	locks := NewTournamentLocks()
	tournaments := NewTournamentService(db, tournamentStore, store.NewTeamStore(db), bracket.WeightedSeeding{}, locks, bus)

	return &testEnv{
		db:          db,
		store:       tournamentStore,
		tournaments: tournaments,
		teams:       NewTeamService(db, store.NewTeamStore(db), tournaments),
		matches:     NewMatchService(db, tournamentStore, locks, bus),
		recorder:    rec,
	}
}

// seedTournament creates a tournament with n registered teams weighted 1..n
func (e *testEnv) seedTournament(t *testing.T, n int) (*bracket.Tournament, []bracket.Team) {
	t.Helper()
	ctx := context.Background()

	tournament, err := e.tournaments.CreateTournament(ctx, TournamentInput{Name: "Spring Open", Month: "april", Year: "2026"})
	require.NoError(t, err)

	teams := make([]bracket.Team, n)
	for i := range teams {
		team, err := e.teams.CreateTeam(ctx, TeamInput{
			Name:    "Team " + strconv.Itoa(i+1),
			Players: []string{"a", "b"},
			Weight:  utils.Ptr(float64(i%5 + 1)),
		})
		require.NoError(t, err)
		teams[i] = *team

		_, err = e.tournaments.RegisterTeam(ctx, tournament.ID, team.ID)
		require.NoError(t, err)
	}
	return tournament, teams
}

func TestCreateTournament_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input TournamentInput
	}{
		{"missing name", TournamentInput{Name: "  ", Month: "may", Year: "2026"}},
		{"missing month", TournamentInput{Name: "Cup", Year: "2026"}},
		{"missing year", TournamentInput{Name: "Cup", Month: "may"}},
		{"name too long", TournamentInput{Name: string(make([]byte, 51)), Month: "may", Year: "2026"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tournaments.CreateTournament(ctx, tc.input)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}

	created, err := env.tournaments.CreateTournament(ctx, TournamentInput{Name: " Cup ", Month: "may", Year: "2026"})
	require.NoError(t, err)
	assert.Equal(t, "Cup", created.Name)
	assert.Equal(t, bracket.TournamentUpcoming, created.Status)

	updated, err := env.tournaments.UpdateTournament(ctx, created.ID, TournamentInput{Name: "Cup II", Month: "june", Year: "2026"})
	require.NoError(t, err)
	assert.Equal(t, "Cup II", updated.Name)
	assert.Equal(t, "june", updated.Month)

	_, err = env.tournaments.UpdateTournament(ctx, uuid.New(), TournamentInput{Name: "x", Month: "m", Year: "y"})
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestStartTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, teams := env.seedTournament(t, 5)

	data, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, bracket.TournamentActive, data.Tournament.Status)
	assert.Equal(t, 1, data.Tournament.BracketVersion)
	assert.Len(t, data.Teams, 5)
	require.Len(t, data.Matches, 6)
	require.Len(t, data.Rounds, 3)
	assert.Len(t, data.Rounds[0].Matches, 3)
	assert.Nil(t, data.Champion)

	// Strongest team opens against the weakest
	assert.True(t, data.Matches[0].Team1.Holds(teams[0].ID))
	assert.True(t, data.Matches[0].Team2.Holds(teams[4].ID))
	assert.True(t, data.Matches[2].IsBye())

	built := env.recorder.builtEvents()
	require.Len(t, built, 1)
	assert.Equal(t, tournament.ID, built[0].TournamentID)
	assert.Equal(t, bracket.TournamentActive, built[0].Status)
	assert.Len(t, built[0].Matches, 6)

	// Restarting replaces the bracket
	restarted, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, restarted.Tournament.BracketVersion)
	assert.NotEqual(t, data.Matches[0].ID, restarted.Matches[0].ID)
}

func TestStartTournament_InsufficientParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, 1)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	assert.ErrorIs(t, err, bracket.ErrInsufficientParticipants)

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, data.Matches)
	assert.Equal(t, bracket.TournamentUpcoming, data.Tournament.Status)
	assert.Equal(t, 0, data.Tournament.BracketVersion)
	assert.Empty(t, env.recorder.builtEvents())

	_, err = env.tournaments.StartTournament(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestRegisterTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, teams := env.seedTournament(t, 2)

	_, err := env.tournaments.RegisterTeam(ctx, tournament.ID, teams[0].ID)
	assert.ErrorIs(t, err, ErrTeamAlreadyRegistered)

	_, err = env.tournaments.RegisterTeam(ctx, tournament.ID, uuid.New())
	assert.ErrorIs(t, err, ErrTeamNotFound)

	_, err = env.tournaments.RegisterTeam(ctx, uuid.New(), teams[0].ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = env.tournaments.UnregisterTeam(ctx, tournament.ID, uuid.New())
	assert.ErrorIs(t, err, ErrTeamNotRegistered)

	roster, err := env.tournaments.UnregisterTeam(ctx, tournament.ID, teams[0].ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, teams[1].ID, roster[0].ID)

	// No bracket yet, so nothing was built
	assert.Empty(t, env.recorder.builtEvents())
}

func TestRosterChangeRebuildsBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, teams := env.seedTournament(t, 4)

	data, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	_, err = env.matches.AdvanceWinner(ctx, data.Matches[0].ID, teams[0].ID)
	require.NoError(t, err)

	late, err := env.teams.CreateTeam(ctx, TeamInput{Name: "Late", Weight: utils.Ptr(4.5)})
	require.NoError(t, err)
	roster, err := env.tournaments.RegisterTeam(ctx, tournament.ID, late.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 5)

	data, err = env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, data.Matches, 6)
	for _, m := range data.Matches {
		assert.False(t, m.Winner.IsFilled(), "results are discarded on rebuild")
	}
	assert.Equal(t, bracket.TournamentActive, data.Tournament.Status)

	for _, team := range teams[:4] {
		_, err = env.tournaments.UnregisterTeam(ctx, tournament.ID, team.ID)
		require.NoError(t, err)
	}

	data, err = env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, data.Teams, 1)
	assert.Empty(t, data.Matches)
	assert.Equal(t, bracket.TournamentUpcoming, data.Tournament.Status)

	built := env.recorder.builtEvents()
	last := built[len(built)-1]
	assert.Empty(t, last.Matches)
	assert.Equal(t, bracket.TournamentUpcoming, last.Status)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, teams := env.seedTournament(t, 2)

	// No bracket yet
	for _, status := range []bracket.TournamentStatus{bracket.TournamentActive, bracket.TournamentCompleted} {
		_, err := env.tournaments.UpdateStatus(ctx, tournament.ID, status)
		assert.ErrorIs(t, err, ErrStatusConflict, "status %s", status)
	}
	updated, err := env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentUpcoming)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentUpcoming, updated.Status)

	data, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)
	final := data.Matches[0]

	_, err = env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentUpcoming)
	assert.ErrorIs(t, err, ErrStatusConflict)
	_, err = env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentCompleted)
	assert.ErrorIs(t, err, ErrStatusConflict, "final is undecided")

	_, err = env.matches.AdvanceWinner(ctx, final.ID, teams[0].ID)
	require.NoError(t, err)

	// Reopening a decided bracket is allowed
	updated, err = env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentActive)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentActive, updated.Status)
	updated, err = env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentCompleted)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, updated.Status)

	_, err = env.tournaments.UpdateStatus(ctx, tournament.ID, bracket.TournamentStatus("paused"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = env.tournaments.UpdateStatus(ctx, uuid.New(), bracket.TournamentActive)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestDeleteTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, 3)

	_, err := env.tournaments.StartTournament(ctx, tournament.ID)
	require.NoError(t, err)

	require.NoError(t, env.tournaments.DeleteTournament(ctx, tournament.ID))
	assert.ErrorIs(t, env.tournaments.DeleteTournament(ctx, tournament.ID), ErrTournamentNotFound)

	_, err = env.tournaments.GetTournamentData(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	list, err := env.tournaments.ListTournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Teams are global and survive the tournament
	teams, err := env.teams.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 3)
}
