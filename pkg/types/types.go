// Package types holds the wire contracts shared by the backend and the
// game client: request bodies, the snapshot payload and the websocket
// envelope. Validation happens here, before anything touches a
// transaction.
package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	StatusForming  MatchStatus = "forming"
	StatusPlaying  MatchStatus = "playing"
	StatusFinished MatchStatus = "finished"
)

// MaxPieces caps the piece list of a single turn payload. Each side
// fields five disks, so anything past ten is garbage.
const MaxPieces = 10

var (
	ErrMissingParticipant = errors.New("participant is required")
	ErrMissingFormation   = errors.New("formation is required")
	ErrEmptyPieces        = errors.New("piece list is empty")
	ErrTooManyPieces      = errors.New("piece list too long")
	ErrSameParticipant    = errors.New("a match needs two distinct participants")
)

// PiecePosition is one disk on the board. Owner is assigned by the
// backend when the turn is recorded; whatever the client puts there is
// ignored.
type PiecePosition struct {
	ID    int       `json:"id"`
	Owner uuid.UUID `json:"owner"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
}

type CreateMatchRequest struct {
	Home uuid.UUID `json:"home"`
	Away uuid.UUID `json:"away"`
}

func (r CreateMatchRequest) Validate() error {
	if r.Home == uuid.Nil || r.Away == uuid.Nil {
		return ErrMissingParticipant
	}
	if r.Home == r.Away {
		return ErrSameParticipant
	}
	return nil
}

type FormationRequest struct {
	Participant uuid.UUID `json:"participant"`
	Formation   string    `json:"formation"`
}

func (r FormationRequest) Validate() error {
	if r.Participant == uuid.Nil {
		return ErrMissingParticipant
	}
	if r.Formation == "" {
		return ErrMissingFormation
	}
	return nil
}

// TurnRequest is the resulting board of one completed turn. ExtraTurn
// marks a submission fired with the extra-turn effect: the holder does
// not rotate.
type TurnRequest struct {
	Participant uuid.UUID       `json:"participant"`
	Pieces      []PiecePosition `json:"pieces"`
	ExtraTurn   bool            `json:"extra_turn,omitempty"`
}

func (r TurnRequest) Validate() error {
	if r.Participant == uuid.Nil {
		return ErrMissingParticipant
	}
	if len(r.Pieces) == 0 {
		return ErrEmptyPieces
	}
	if len(r.Pieces) > MaxPieces {
		return ErrTooManyPieces
	}
	return nil
}

type GoalRequest struct {
	Scorer uuid.UUID `json:"scorer"`
}

func (r GoalRequest) Validate() error {
	if r.Scorer == uuid.Nil {
		return ErrMissingParticipant
	}
	return nil
}

type MatchInfo struct {
	ID         uuid.UUID   `json:"id"`
	Home       uuid.UUID   `json:"home"`
	Away       uuid.UUID   `json:"away"`
	Status     MatchStatus `json:"status"`
	ScoreHome  int         `json:"score_home"`
	ScoreAway  int         `json:"score_away"`
	TurnHolder uuid.UUID   `json:"turn_holder"` // uuid.Nil before the match starts
	CreatedAt  time.Time   `json:"created_at"`
}

type FormationInfo struct {
	Participant uuid.UUID `json:"participant"`
	Formation   string    `json:"formation"`
	StartOrder  int       `json:"start_order"` // 0 until the coin flip
}

type TurnInfo struct {
	Sequence    int             `json:"sequence"`
	Participant uuid.UUID       `json:"participant"`
	Pieces      []PiecePosition `json:"pieces"`
	PlayedAt    time.Time       `json:"played_at"`
}

// FormationAck is the response to a formation submission. Started is
// true only on the request that completed the pair and ran the coin
// flip.
type FormationAck struct {
	Started     bool      `json:"started"`
	FirstHolder uuid.UUID `json:"first_holder"`
}

// Snapshot is the full self-consistent view of a match. LastSequence is
// the highest ledger sequence included; clients use it as their
// dedupe watermark. A formation-only snapshot (fewer than two choices
// on record) carries an empty turn list and a Nil NextTurnHolder.
type Snapshot struct {
	MatchID        uuid.UUID       `json:"match_id"`
	Home           uuid.UUID       `json:"home"`
	Away           uuid.UUID       `json:"away"`
	Status         MatchStatus     `json:"status"`
	ScoreHome      int             `json:"score_home"`
	ScoreAway      int             `json:"score_away"`
	Formations     []FormationInfo `json:"formations"`
	Turns          []TurnInfo      `json:"turns"`
	NextTurnHolder uuid.UUID       `json:"next_turn_holder"`
	LastSequence   int             `json:"last_sequence"`
}

type EnvelopeKind string

const (
	KindSignal   EnvelopeKind = "signal"
	KindSnapshot EnvelopeKind = "snapshot"
	KindRelay    EnvelopeKind = "relay"
)

const (
	SignalStart        = "start"
	SignalTurnFinished = "turn_finished"
)

// Envelope is the one message shape that travels over a match's
// websocket. Signals prompt the client to re-fetch a snapshot over the
// HTTP read path; snapshot envelopes carry the full payload (lag
// recovery); relays are advisory peer text, never authoritative.
type Envelope struct {
	Kind     EnvelopeKind `json:"kind"`
	From     uuid.UUID    `json:"from,omitempty"`
	Signal   string       `json:"signal,omitempty"`
	Snapshot *Snapshot    `json:"snapshot,omitempty"`
	Text     string       `json:"text,omitempty"`
}
