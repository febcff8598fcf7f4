package game

import "github.com/google/uuid"

// DefaultFormation is also the fallback for unknown names.
const DefaultFormation = "1-2-1-1"

// PiecesPerSide is how many disks each formation fields.
const PiecesPerSide = 5

// Starting positions are given for the right-hand side; the left side
// mirrors X.
var layouts = map[string][][2]float64{
	"1-2-1-1": {{400, 0}, {300, 100}, {300, -100}, {200, 0}, {100, 0}},
	"2-2-1":   {{400, 100}, {400, -100}, {250, 100}, {250, -100}, {100, 0}},
	"1-1-3":   {{300, 150}, {300, 0}, {300, -150}, {200, 0}, {400, 0}},
	"2-1-1-1": {{400, 100}, {400, -100}, {300, 0}, {200, 0}, {100, 0}},
}

// Formations lists the known layout names.
func Formations() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	return names
}

// Layout places one side's starting disks. baseID keeps piece ids
// distinct between the two sides.
func Layout(formation string, left bool, owner uuid.UUID, baseID int) []PieceState {
	positions, ok := layouts[formation]
	if !ok {
		positions = layouts[DefaultFormation]
	}
	flip := 1.0
	if left {
		flip = -1.0
	}
	pieces := make([]PieceState, len(positions))
	for i, p := range positions {
		pieces[i] = PieceState{
			ID:    baseID + i,
			Owner: owner,
			X:     p[0] * flip,
			Y:     p[1],
		}
	}
	return pieces
}
