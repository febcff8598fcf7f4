// Package game holds the client-side session context (identity, match,
// pending payload) and the interface to the physics/rendering runtime.
// One Session per simulated client, no package globals, so tests can
// run several clients in one process.
package game

import (
	"errors"

	"github.com/google/uuid"
)

var ErrNotInMatch = errors.New("session identity is not a participant of the match")

type Session struct {
	MatchID uuid.UUID
	Self    uuid.UUID
	Home    uuid.UUID
	Away    uuid.UUID

	pending PendingQueue
}

func NewSession(matchID, self, home, away uuid.UUID) (*Session, error) {
	if self != home && self != away {
		return nil, ErrNotInMatch
	}
	return &Session{MatchID: matchID, Self: self, Home: home, Away: away}, nil
}

func (s *Session) IsHome() bool { return s.Self == s.Home }

func (s *Session) Opponent() uuid.UUID {
	if s.IsHome() {
		return s.Away
	}
	return s.Home
}

func (s *Session) Pending() *PendingQueue { return &s.pending }
