package turnstate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avillagra/turnball/pkg/client/game"
	"github.com/avillagra/turnball/pkg/types"
)

// fakeBoard is a minimal physics stand-in: impulses set velocity
// directly and Settle zeroes everything.
type fakeBoard struct {
	pieces      []game.PieceState
	restitution map[int]float64
}

func newFakeBoard(pieces ...game.PieceState) *fakeBoard {
	return &fakeBoard{pieces: pieces, restitution: map[int]float64{}}
}

func (b *fakeBoard) Pieces() []game.PieceState { return b.pieces }

func (b *fakeBoard) ApplyImpulse(id int, ix, iy float64) {
	for i := range b.pieces {
		if b.pieces[i].ID == id {
			b.pieces[i].VX += ix
			b.pieces[i].VY += iy
		}
	}
}

func (b *fakeBoard) SetRestitution(id int, coeff float64) { b.restitution[id] = coeff }

func (b *fakeBoard) Reset(pieces []game.PieceState) { b.pieces = pieces }

func (b *fakeBoard) settle() {
	for i := range b.pieces {
		b.pieces[i].VX, b.pieces[i].VY = 0, 0
	}
}

func twoPlayerSetup(t *testing.T) (*game.Session, *fakeBoard, *Machine) {
	t.Helper()
	self, opp := uuid.New(), uuid.New()
	sess, err := game.NewSession(uuid.New(), self, self, opp)
	require.NoError(t, err)
	board := newFakeBoard(
		game.PieceState{ID: 0, Owner: opp, X: -100},
		game.PieceState{ID: 1, Owner: self, X: 100},
		game.PieceState{ID: 2, Owner: self, X: 200},
	)
	return sess, board, New(sess, board, nil)
}

func TestBeginTurnSelectsOwnPiece(t *testing.T) {
	_, _, m := twoPlayerSetup(t)
	m.BeginTurn()
	assert.True(t, m.MyTurn())
	assert.Equal(t, PhaseSelecting, m.Phase())
	assert.Equal(t, 1, m.Selected())
}

func TestInputsGatedOnMyTurn(t *testing.T) {
	_, board, m := twoPlayerSetup(t)

	// No turn granted: aiming and releasing are inert.
	m.Aim(1, 0)
	m.Charge(0.5)
	m.Release()
	assert.Equal(t, PhaseIdle, m.Phase())
	for _, p := range board.Pieces() {
		assert.Zero(t, p.VX)
	}
}

func TestReleaseAppliesImpulse(t *testing.T) {
	_, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(0.5)
	m.Release()

	assert.Equal(t, PhaseInMotion, m.Phase())
	var moved game.PieceState
	for _, p := range board.Pieces() {
		if p.ID == 1 {
			moved = p
		}
	}
	assert.InDelta(t, 0.5*baseImpulse, moved.VX, 0.001)
	assert.Zero(t, moved.VY)
}

func TestChargeIsCapped(t *testing.T) {
	_, _, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(0, 1)
	m.Charge(5)
	assert.Equal(t, 1.0, m.Power())
}

func TestSpeedBoostScalesImpulse(t *testing.T) {
	_, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(1)
	m.ArmEffect(EffectSpeedBoost)
	m.Release()

	for _, p := range board.Pieces() {
		if p.ID == 1 {
			assert.InDelta(t, baseImpulse*boostFactor, p.VX, 0.001)
		}
	}
}

func TestDoubleBounceSetsRestitution(t *testing.T) {
	_, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(0.3)
	m.ArmEffect(EffectDoubleBounce)
	m.Release()

	assert.Equal(t, bounceCoeff, board.restitution[1])
}

func TestStepWaitsForSettling(t *testing.T) {
	sess, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(0.5)
	m.Release()

	// Pieces still moving: no payload yet.
	assert.Nil(t, m.Step())
	assert.Equal(t, PhaseInMotion, m.Phase())

	board.settle()
	req := m.Step()
	require.NotNil(t, req)
	assert.Equal(t, sess.Self, req.Participant)
	assert.Len(t, req.Pieces, 3)
	assert.False(t, req.ExtraTurn)
	assert.Equal(t, PhasePendingSend, m.Phase())
	assert.False(t, m.MyTurn())

	// The payload landed on the pending queue.
	assert.False(t, sess.Pending().Empty())
	assert.Same(t, req, sess.Pending().Take())

	// Settled once; no duplicate payload on later frames.
	assert.Nil(t, m.Step())

	// Settle returns the machine to idle after the payload is handled.
	m.Settle()
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestExtraTurnMarksPayload(t *testing.T) {
	_, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(0.5)
	m.ArmEffect(EffectExtraTurn)
	m.Release()

	board.settle()
	req := m.Step()
	require.NotNil(t, req)
	assert.True(t, req.ExtraTurn)
}

func TestEndTurnCancelsAim(t *testing.T) {
	_, _, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.EndTurn()

	assert.False(t, m.MyTurn())
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Equal(t, -1, m.Selected())
}

func TestEndTurnKeepsShotInMotion(t *testing.T) {
	sess, board, m := twoPlayerSetup(t)
	m.BeginTurn()
	m.Aim(1, 0)
	m.Charge(0.5)
	m.Release()

	// An authoritative update revokes the turn mid-flight; the payload
	// is still produced when the board settles.
	m.EndTurn()
	assert.Equal(t, PhaseInMotion, m.Phase())

	board.settle()
	require.NotNil(t, m.Step())
	assert.False(t, sess.Pending().Empty())
}

func TestCyclePieceSkipsOpponent(t *testing.T) {
	_, _, m := twoPlayerSetup(t)
	m.BeginTurn()
	require.Equal(t, 1, m.Selected())

	m.CyclePiece()
	assert.Equal(t, 2, m.Selected())
	m.CyclePiece()
	assert.Equal(t, 1, m.Selected())
}

func TestPendingQueueSingleSlot(t *testing.T) {
	var q game.PendingQueue
	a := &types.TurnRequest{}
	b := &types.TurnRequest{}

	assert.True(t, q.Put(a))
	assert.False(t, q.Put(b))

	got := q.Take()
	assert.Same(t, a, got)
	assert.True(t, q.Empty())

	// Restore refills only an empty slot.
	q.Restore(got)
	assert.False(t, q.Empty())
	q.Restore(b)
	assert.Same(t, a, q.Take())
}
