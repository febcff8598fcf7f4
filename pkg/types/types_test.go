package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestValidation(t *testing.T) {
	p := uuid.New()
	pieces := []PiecePosition{{ID: 0, X: 1, Y: 2}}
	tooMany := make([]PiecePosition, MaxPieces+1)

	tests := []struct {
		name string
		req  interface{ Validate() error }
		want error
	}{
		{"create ok", CreateMatchRequest{Home: p, Away: uuid.New()}, nil},
		{"create missing away", CreateMatchRequest{Home: p}, ErrMissingParticipant},
		{"create same participant", CreateMatchRequest{Home: p, Away: p}, ErrSameParticipant},
		{"formation ok", FormationRequest{Participant: p, Formation: "1-2-1-1"}, nil},
		{"formation missing name", FormationRequest{Participant: p}, ErrMissingFormation},
		{"formation missing participant", FormationRequest{Formation: "1-2-1-1"}, ErrMissingParticipant},
		{"turn ok", TurnRequest{Participant: p, Pieces: pieces}, nil},
		{"turn empty pieces", TurnRequest{Participant: p}, ErrEmptyPieces},
		{"turn too many pieces", TurnRequest{Participant: p, Pieces: tooMany}, ErrTooManyPieces},
		{"turn missing participant", TurnRequest{Pieces: pieces}, ErrMissingParticipant},
		{"goal ok", GoalRequest{Scorer: p}, nil},
		{"goal missing scorer", GoalRequest{}, ErrMissingParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), tt.want)
		})
	}
}
