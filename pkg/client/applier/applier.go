// Package applier reconciles authoritative snapshots into local client
// state. Snapshots may arrive more than once and out of order (socket
// push, lag recovery, polling fallback); the sequence watermark makes
// application idempotent.
package applier

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/pkg/client/game"
	"github.com/avillagra/turnball/pkg/client/turnstate"
	"github.com/avillagra/turnball/pkg/types"
)

type Applier struct {
	sess    *game.Session
	board   game.Board
	machine *turnstate.Machine
	log     *zap.Logger

	last                 int
	started              bool
	scoreHome, scoreAway int

	// OnStart fires once, on the first snapshot that shows the match
	// playing.
	OnStart func(snap *types.Snapshot)
}

func New(sess *game.Session, board game.Board, machine *turnstate.Machine, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{sess: sess, board: board, machine: machine, log: log, last: -1}
}

func (a *Applier) Score() (home, away int) { return a.scoreHome, a.scoreAway }

// Apply reconciles one snapshot. It reports whether the snapshot was
// taken; snapshots for the wrong match, for a match not yet playing, or
// at or below the current watermark are dropped.
func (a *Applier) Apply(snap *types.Snapshot) bool {
	if snap == nil || snap.MatchID != a.sess.MatchID {
		return false
	}
	if snap.Status != types.StatusPlaying || snap.NextTurnHolder == uuid.Nil {
		a.log.Debug("snapshot ignored, match not playing",
			zap.String("status", string(snap.Status)))
		return false
	}
	if snap.LastSequence <= a.last {
		a.log.Debug("snapshot dropped by watermark",
			zap.Int("have", a.last),
			zap.Int("got", snap.LastSequence))
		return false
	}
	a.last = snap.LastSequence

	a.board.Reset(a.boardState(snap))
	a.scoreHome, a.scoreAway = snap.ScoreHome, snap.ScoreAway

	if snap.NextTurnHolder == a.sess.Self {
		a.machine.BeginTurn()
	} else {
		a.machine.EndTurn()
	}

	if !a.started {
		a.started = true
		if a.OnStart != nil {
			a.OnStart(snap)
		}
	}
	a.log.Debug("snapshot applied",
		zap.Int("sequence", snap.LastSequence),
		zap.Bool("my_turn", snap.NextTurnHolder == a.sess.Self))
	return true
}

// boardState derives the piece layout: the last recorded turn if there
// is one, otherwise the two starting formations (home on the left).
func (a *Applier) boardState(snap *types.Snapshot) []game.PieceState {
	if n := len(snap.Turns); n > 0 {
		last := snap.Turns[n-1]
		pieces := make([]game.PieceState, len(last.Pieces))
		for i, p := range last.Pieces {
			pieces[i] = game.PieceState{ID: p.ID, Owner: p.Owner, X: p.X, Y: p.Y}
		}
		return pieces
	}

	formations := map[uuid.UUID]string{}
	for _, f := range snap.Formations {
		formations[f.Participant] = f.Formation
	}
	pieces := game.Layout(formations[snap.Home], true, snap.Home, 0)
	pieces = append(pieces, game.Layout(formations[snap.Away], false, snap.Away, game.PiecesPerSide)...)
	return pieces
}
