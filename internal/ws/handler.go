// Package ws runs one session per websocket connection: an outbound
// relay (topic -> socket), an inbound relay (socket -> topic) and a
// keepalive ping. Admission is gated on the participant having a
// formation on record for the match.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/avillagra/turnball/internal/bus"
	"github.com/avillagra/turnball/pkg/types"
)

const (
	writeTimeout  = 3 * time.Second
	pingInterval  = 30 * time.Second
	maxFrameBytes = 4096
)

// Inbound relays are advisory nudges between peers; anything chattier
// than this is dropped.
const (
	relayRate  = 5
	relayBurst = 10
)

// Store is the slice of the datastore a session needs.
type Store interface {
	HasFormation(ctx context.Context, matchID, participant uuid.UUID) (bool, error)
	BuildSnapshot(ctx context.Context, matchID uuid.UUID) (*types.Snapshot, error)
}

func Handler(st Store, reg *bus.Registry, clock clockwork.Clock, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
		if err != nil {
			http.Error(w, "bad match id", http.StatusBadRequest)
			return
		}
		participant, err := uuid.Parse(chi.URLParam(r, "participantID"))
		if err != nil {
			http.Error(w, "bad participant id", http.StatusBadRequest)
			return
		}

		member, err := st.HasFormation(r.Context(), matchID, participant)
		if err != nil {
			http.Error(w, "membership check failed", http.StatusInternalServerError)
			return
		}
		if !member {
			// Refuse the upgrade outright; no formation, no session.
			http.Error(w, "no formation on record for this match", http.StatusForbidden)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log.Info("session open",
			zap.String("match", matchID.String()),
			zap.String("participant", participant.String()))

		sub := reg.Subscribe(matchID)
		defer sub.Close()

		sess := &session{
			conn:        conn,
			sub:         sub,
			store:       st,
			reg:         reg,
			clock:       clock,
			log:         log,
			matchID:     matchID,
			participant: participant,
		}

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error { return sess.outbound(ctx) })
		g.Go(func() error { return sess.inbound(ctx) })
		if err := g.Wait(); err != nil && ctx.Err() == nil {
			log.Debug("session ended", zap.Error(err))
		}

		log.Info("session closed",
			zap.String("match", matchID.String()),
			zap.String("participant", participant.String()))
	}
}

type session struct {
	conn        *websocket.Conn
	sub         *bus.Subscription
	store       Store
	reg         *bus.Registry
	clock       clockwork.Clock
	log         *zap.Logger
	matchID     uuid.UUID
	participant uuid.UUID
}

// outbound drains the subscription into the socket. A lagged
// subscription gets the freshest cached snapshot instead of the
// messages it missed.
func (s *session) outbound(ctx context.Context) error {
	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.Chan():
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}

		case env, ok := <-s.sub.C():
			if !ok {
				return nil
			}
			// Self-echo suppression: a client never sees its own relay.
			if env.Kind == types.KindRelay && env.From == s.participant {
				break
			}
			if err := s.write(ctx, env); err != nil {
				return err
			}
		}

		if s.sub.Lagged() {
			if err := s.recoverLag(ctx); err != nil {
				return err
			}
		}
	}
}

// recoverLag pushes the last known full snapshot. Missed broadcasts are
// not replayed; a snapshot supersedes them all.
func (s *session) recoverLag(ctx context.Context) error {
	snap := s.reg.CachedSnapshot(s.matchID)
	if snap == nil {
		var err error
		snap, err = s.store.BuildSnapshot(ctx, s.matchID)
		if err != nil {
			s.log.Warn("lag recovery snapshot failed", zap.Error(err))
			return nil
		}
	}
	s.log.Warn("session lagged, pushing snapshot",
		zap.String("match", s.matchID.String()),
		zap.String("participant", s.participant.String()),
		zap.Int("last_sequence", snap.LastSequence))
	return s.write(ctx, types.Envelope{Kind: types.KindSnapshot, Snapshot: snap})
}

// inbound forwards client text to the topic as advisory relays tagged
// with this session's identity. Never treated as authoritative state.
func (s *session) inbound(ctx context.Context) error {
	lim := rate.NewLimiter(rate.Limit(relayRate), relayBurst)
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}
		if typ != websocket.MessageText || len(data) > maxFrameBytes {
			continue
		}
		if !lim.Allow() {
			s.log.Debug("relay throttled", zap.String("participant", s.participant.String()))
			continue
		}
		s.reg.Publish(s.matchID, types.Envelope{
			Kind: types.KindRelay,
			From: s.participant,
			Text: string(data),
		})
	}
}

func (s *session) write(ctx context.Context, env types.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, payload)
}
