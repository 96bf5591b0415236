package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/padel-bracket/internal/bracket"
	"github.com/AdamBeresnev/padel-bracket/internal/httputil"
	"github.com/AdamBeresnev/padel-bracket/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/teams", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			teams, err := app.teams.ListTeams(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to list teams", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, teams)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in service.TeamInput
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			team, err := app.teams.CreateTeam(r.Context(), in)
			if err != nil {
				writeServiceError(w, "Failed to create team", err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, team)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := parseID(w, r, "id", "Invalid team ID")
			if !ok {
				return
			}
			team, err := app.teams.GetTeam(r.Context(), id)
			if err != nil {
				writeServiceError(w, "Failed to get team", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, team)
		})

		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := parseID(w, r, "id", "Invalid team ID")
			if !ok {
				return
			}
			var in service.TeamInput
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			team, err := app.teams.UpdateTeam(r.Context(), id, in)
			if err != nil {
				writeServiceError(w, "Failed to update team", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, team)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := parseID(w, r, "id", "Invalid team ID")
			if !ok {
				return
			}
			if err := app.teams.DeleteTeam(r.Context(), id); err != nil {
				writeServiceError(w, "Failed to delete team", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/api/tournaments", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := app.tournaments.ListTournaments(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to list tournaments", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, tournaments)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in service.TournamentInput
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			tournament, err := app.tournaments.CreateTournament(r.Context(), in)
			if err != nil {
				writeServiceError(w, "Failed to create tournament", err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, tournament)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				data, err := app.tournaments.GetTournamentData(r.Context(), id)
				if err != nil {
					writeServiceError(w, "Failed to get tournament", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, data)
			})

			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				var in service.TournamentInput
				if err := httputil.DecodeJSON(w, r, &in); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				tournament, err := app.tournaments.UpdateTournament(r.Context(), id, in)
				if err != nil {
					writeServiceError(w, "Failed to update tournament", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, tournament)
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				if err := app.tournaments.DeleteTournament(r.Context(), id); err != nil {
					writeServiceError(w, "Failed to delete tournament", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Put("/status", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				var in struct {
					Status bracket.TournamentStatus `json:"status"`
				}
				if err := httputil.DecodeJSON(w, r, &in); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				tournament, err := app.tournaments.UpdateStatus(r.Context(), id, in.Status)
				if err != nil {
					writeServiceError(w, "Failed to update tournament status", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, tournament)
			})

			r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				data, err := app.tournaments.StartTournament(r.Context(), id)
				if err != nil {
					writeServiceError(w, "Failed to start tournament", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, data)
			})

			r.Get("/teams", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				teams, err := app.tournaments.GetRoster(r.Context(), id)
				if err != nil {
					writeServiceError(w, "Failed to get roster", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, teams)
			})

			r.Post("/teams", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				var in struct {
					TeamID uuid.UUID `json:"teamId"`
				}
				if err := httputil.DecodeJSON(w, r, &in); err != nil {
					httputil.BadRequest(w, err.Error(), err)
					return
				}
				teams, err := app.tournaments.RegisterTeam(r.Context(), id, in.TeamID)
				if err != nil {
					writeServiceError(w, "Failed to register team", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, teams)
			})

			r.Delete("/teams/{teamId}", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				teamID, ok := parseID(w, r, "teamId", "Invalid team ID")
				if !ok {
					return
				}
				teams, err := app.tournaments.UnregisterTeam(r.Context(), id, teamID)
				if err != nil {
					writeServiceError(w, "Failed to unregister team", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, teams)
			})

			r.Get("/matches", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r, "id", "Invalid tournament ID")
				if !ok {
					return
				}
				matches, err := app.tournaments.GetMatches(r.Context(), id)
				if err != nil {
					writeServiceError(w, "Failed to get matches", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, matches)
			})
		})
	})

	r.Route("/api/matches/{id}", func(r chi.Router) {
		r.Post("/winner", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := parseID(w, r, "id", "Invalid match ID")
			if !ok {
				return
			}
			var in struct {
				WinnerID uuid.UUID `json:"winnerId"`
			}
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			res, err := app.matches.AdvanceWinner(r.Context(), matchID, in.WinnerID)
			if err != nil {
				writeServiceError(w, "Failed to advance winner", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]any{
				"match":     res.Match,
				"next":      res.Next,
				"completed": res.Completed,
			})
		})

		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := parseID(w, r, "id", "Invalid match ID")
			if !ok {
				return
			}
			var in service.ScheduleInput
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			match, err := app.matches.UpdateSchedule(r.Context(), matchID, in)
			if err != nil {
				writeServiceError(w, "Failed to update match", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, match)
		})
	})

	r.Get("/ws/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id", "Invalid tournament ID")
		if !ok {
			return
		}
		if _, err := app.tournaments.GetTournament(r.Context(), id); err != nil {
			writeServiceError(w, "Failed to get tournament", err)
			return
		}
		app.hub.ServeWs(w, r, id, func(ctx context.Context) (any, error) {
			return app.tournaments.GetTournamentData(ctx, id)
		})
	})

	return r
}

func parseID(w http.ResponseWriter, r *http.Request, param, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httputil.BadRequest(w, msg, err)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service and bracket errors to HTTP responses
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrTournamentNotFound),
		errors.Is(err, service.ErrTeamNotFound),
		errors.Is(err, service.ErrTeamNotRegistered),
		errors.Is(err, bracket.ErrMatchNotFound):
		httputil.NotFound(w, err.Error(), err)
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrInsufficientParticipants):
		httputil.BadRequest(w, err.Error(), err)
	case errors.Is(err, service.ErrTeamAlreadyRegistered),
		errors.Is(err, service.ErrStaleBracket),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, bracket.ErrMatchNotReady),
		errors.Is(err, bracket.ErrWinnerLocked):
		httputil.Conflict(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}
