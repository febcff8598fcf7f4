package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(api *API, wsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Post("/matches", api.CreateMatch)
	r.Get("/matches/{matchID}", api.GetMatch)
	r.Post("/matches/{matchID}/formation", api.SubmitFormation)
	r.Post("/matches/{matchID}/turns", api.SubmitTurn)
	r.Get("/matches/{matchID}/turns", api.TurnHistory)
	r.Get("/matches/{matchID}/snapshot", api.Snapshot)
	r.Post("/matches/{matchID}/goals", api.RecordGoal)
	r.Get("/participants/{participantID}/matches", api.Matches)
	r.Get("/participants/{participantID}/matches/pending", api.PendingMatches)
	r.Get("/healthz", Healthz)
	r.Get("/ws/{matchID}/{participantID}", wsHandler)
	return r
}
