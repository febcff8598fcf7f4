package store

import "errors"

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotParticipant  = errors.New("not a participant of this match")
	ErrMatchNotPlaying = errors.New("match is not in play")
	ErrOutOfTurn       = errors.New("not this participant's turn")

	// ErrSequenceConflict means two submissions raced for the same
	// sequence number. Retryable, but only after the caller refreshes
	// its view from a new snapshot.
	ErrSequenceConflict = errors.New("turn sequence conflict")
)
