package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/internal/bus"
	"github.com/avillagra/turnball/internal/store"
	"github.com/avillagra/turnball/pkg/types"
)

// Store is everything the HTTP surface needs from the datastore.
type Store interface {
	CreateMatch(ctx context.Context, home, away uuid.UUID) (*types.MatchInfo, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*types.MatchInfo, error)
	SubmitFormation(ctx context.Context, matchID uuid.UUID, req types.FormationRequest) (*types.FormationAck, error)
	SubmitTurn(ctx context.Context, matchID uuid.UUID, req types.TurnRequest) (*types.TurnInfo, error)
	BuildSnapshot(ctx context.Context, matchID uuid.UUID) (*types.Snapshot, error)
	TurnHistory(ctx context.Context, matchID uuid.UUID) ([]types.TurnInfo, error)
	RecordGoal(ctx context.Context, matchID, scorer uuid.UUID) (int, int, error)
	MatchesFor(ctx context.Context, participant uuid.UUID) ([]types.MatchInfo, error)
	PendingMatchesFor(ctx context.Context, participant uuid.UUID) ([]types.MatchInfo, error)
}

type API struct {
	store Store
	bus   *bus.Registry
	log   *zap.Logger
}

func New(st Store, reg *bus.Registry, log *zap.Logger) *API {
	return &API{store: st, bus: reg, log: log}
}

func (a *API) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req types.CreateMatchRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := a.store.CreateMatch(r.Context(), req.Home, req.Away)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, m)
}

func (a *API) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	m, err := a.store.GetMatch(r.Context(), matchID)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, m)
}

func (a *API) SubmitFormation(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req types.FormationRequest
	if !decode(w, r, &req) {
		return
	}
	ack, err := a.store.SubmitFormation(r.Context(), matchID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	if ack.Started {
		a.publish(r.Context(), matchID, types.SignalStart)
	}
	respond(w, http.StatusOK, ack)
}

func (a *API) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req types.TurnRequest
	if !decode(w, r, &req) {
		return
	}
	turn, err := a.store.SubmitTurn(r.Context(), matchID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.publish(r.Context(), matchID, types.SignalTurnFinished)
	respond(w, http.StatusCreated, turn)
}

func (a *API) TurnHistory(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	turns, err := a.store.TurnHistory(r.Context(), matchID)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, turns)
}

func (a *API) Snapshot(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	snap, err := a.store.BuildSnapshot(r.Context(), matchID)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, snap)
}

func (a *API) RecordGoal(w http.ResponseWriter, r *http.Request) {
	matchID, ok := pathID(w, r, "matchID")
	if !ok {
		return
	}
	var req types.GoalRequest
	if !decode(w, r, &req) {
		return
	}
	home, away, err := a.store.RecordGoal(r.Context(), matchID, req.Scorer)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]int{"score_home": home, "score_away": away})
}

func (a *API) Matches(w http.ResponseWriter, r *http.Request) {
	participant, ok := pathID(w, r, "participantID")
	if !ok {
		return
	}
	matches, err := a.store.MatchesFor(r.Context(), participant)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, matches)
}

func (a *API) PendingMatches(w http.ResponseWriter, r *http.Request) {
	participant, ok := pathID(w, r, "participantID")
	if !ok {
		return
	}
	matches, err := a.store.PendingMatchesFor(r.Context(), participant)
	if err != nil {
		a.fail(w, err)
		return
	}
	respond(w, http.StatusOK, matches)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// publish pushes a lightweight signal followed by the fresh snapshot on
// the match's topic. The snapshot also becomes the topic's lag-recovery
// cache.
func (a *API) publish(ctx context.Context, matchID uuid.UUID, signal string) {
	snap, err := a.store.BuildSnapshot(ctx, matchID)
	if err != nil {
		a.log.Warn("snapshot publish failed",
			zap.String("match", matchID.String()), zap.Error(err))
		return
	}
	a.bus.Publish(matchID, types.Envelope{Kind: types.KindSignal, Signal: signal})
	a.bus.Publish(matchID, types.Envelope{Kind: types.KindSnapshot, Snapshot: snap})
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrOutOfTurn), errors.Is(err, store.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrSequenceConflict), errors.Is(err, store.ErrMatchNotPlaying):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

type validator interface{ Validate() error }

func decode(w http.ResponseWriter, r *http.Request, dst validator) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return false
	}
	if err := dst.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad "+name)
		return uuid.Nil, false
	}
	return id, true
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
