package game

import "github.com/google/uuid"

// PieceState is one disk as the physics runtime sees it.
type PieceState struct {
	ID    int
	Owner uuid.UUID
	X, Y  float64
	VX    float64
	VY    float64
}

// Board is the physics/rendering runtime. The synchronization core
// treats it purely as a state sink/source: it reads positions and
// velocities, shoves pieces, and rebuilds the whole board from a
// snapshot.
type Board interface {
	Pieces() []PieceState
	ApplyImpulse(id int, ix, iy float64)
	SetRestitution(id int, coeff float64)
	// Reset despawns everything and rebuilds from the given pieces.
	Reset(pieces []PieceState)
}
