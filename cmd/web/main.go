package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/config"
	"github.com/AdamBeresnev/padel-bracket/internal/db"
	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/AdamBeresnev/padel-bracket/internal/live"
	"github.com/AdamBeresnev/padel-bracket/internal/service"
	"github.com/AdamBeresnev/padel-bracket/internal/store"
	"github.com/jmoiron/sqlx"
)

type application struct {
	tournaments *service.TournamentService
	teams       *service.TeamService
	matches     *service.MatchService
	hub         *live.Hub
}

func newApplication(database *sqlx.DB, seeder bracket.Seeder, bus *events.Bus, hub *live.Hub) *application {
	tournamentStore := store.NewTournamentStore(database)
	teamStore := store.NewTeamStore(database)
	locks := service.NewTournamentLocks()

	tournaments := service.NewTournamentService(database, tournamentStore, teamStore, seeder, locks, bus)
	return &application{
		tournaments: tournaments,
		teams:       service.NewTeamService(database, teamStore, tournaments),
		matches:     service.NewMatchService(database, tournamentStore, locks, bus),
		hub:         hub,
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	seeder, err := bracket.NewSeeder(cfg.Seeding)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	hub := live.NewHub()
	go hub.Run(ctx)
	defer hub.Subscribe(bus)()

	app := newApplication(database, seeder, bus, hub)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr, "seeding", cfg.Seeding)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
