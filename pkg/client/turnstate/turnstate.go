// Package turnstate drives one client's turn lifecycle: selecting and
// aiming while the turn is mine, watching the physics settle after a
// shot, and producing the turn payload exactly once per turn. All
// inputs are hard-gated on the my-turn flag so a client can never
// submit out of turn by accident.
package turnstate

import (
	"math"

	"go.uber.org/zap"

	"github.com/avillagra/turnball/pkg/client/game"
	"github.com/avillagra/turnball/pkg/types"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSelecting   Phase = "selecting"
	PhaseAiming      Phase = "aiming"
	PhaseInMotion    Phase = "in_motion"
	PhasePendingSend Phase = "pending_send"
)

// Effect is a power-up armed for the next shot. Effects are consumed on
// release.
type Effect uint8

const (
	EffectSpeedBoost Effect = 1 << iota
	EffectDoubleBounce
	EffectExtraTurn
)

const (
	baseImpulse = 800.0
	boostFactor = 1.5
	bounceCoeff = 2.0

	// StopThreshold is the per-piece speed below which the board counts
	// as settled.
	StopThreshold = 0.5
)

// Machine owns the local turn state for one session. It is not
// goroutine-safe; callers drive it from the game loop.
type Machine struct {
	sess  *game.Session
	board game.Board
	log   *zap.Logger

	phase      Phase
	myTurn     bool
	selected   int
	aimX, aimY float64
	power      float64
	effect     Effect
	skipSwitch bool
}

func New(sess *game.Session, board game.Board, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{sess: sess, board: board, log: log, phase: PhaseIdle, selected: -1}
}

func (m *Machine) Phase() Phase   { return m.phase }
func (m *Machine) MyTurn() bool   { return m.myTurn }
func (m *Machine) Selected() int  { return m.selected }
func (m *Machine) Power() float64 { return m.power }
func (m *Machine) Armed() Effect  { return m.effect }

// BeginTurn grants the turn and auto-selects a piece so there is always
// a valid selection while the turn is live.
func (m *Machine) BeginTurn() {
	m.myTurn = true
	m.phase = PhaseSelecting
	m.power = 0
	m.effect = 0
	m.skipSwitch = false
	m.selected = m.pickOwnPiece()
	m.log.Debug("turn granted", zap.Int("selected", m.selected))
}

// EndTurn revokes the turn, discarding any selection or aim in flight.
// A shot already in motion keeps settling; its payload still belongs to
// this client.
func (m *Machine) EndTurn() {
	m.myTurn = false
	if m.phase == PhaseSelecting || m.phase == PhaseAiming {
		m.phase = PhaseIdle
		m.selected = -1
		m.power = 0
	}
}

func (m *Machine) pickOwnPiece() int {
	pieces := m.board.Pieces()
	for _, p := range pieces {
		if p.Owner == m.sess.Self {
			return p.ID
		}
	}
	// The ledger stamps every piece with its submitter, so after the
	// opponent's turn all owners read as theirs. Fall back to any piece.
	if len(pieces) > 0 {
		return pieces[0].ID
	}
	return -1
}

// CyclePiece moves the selection to the next piece this client owns.
func (m *Machine) CyclePiece() {
	if !m.myTurn || m.phase == PhaseInMotion || m.phase == PhasePendingSend {
		return
	}
	pieces := m.board.Pieces()
	if len(pieces) == 0 {
		return
	}
	start := -1
	for i, p := range pieces {
		if p.ID == m.selected {
			start = i
			break
		}
	}
	for off := 1; off <= len(pieces); off++ {
		p := pieces[(start+off+len(pieces))%len(pieces)]
		if p.Owner == m.sess.Self {
			m.selected = p.ID
			return
		}
	}
	m.selected = pieces[(start+1+len(pieces))%len(pieces)].ID
}

// Aim updates the shot direction. The vector is clamped to unit length.
func (m *Machine) Aim(dx, dy float64) {
	if !m.myTurn || m.phase == PhaseInMotion || m.phase == PhasePendingSend || m.selected < 0 {
		return
	}
	if n := math.Hypot(dx, dy); n > 1 {
		dx, dy = dx/n, dy/n
	}
	m.aimX, m.aimY = dx, dy
	m.phase = PhaseAiming
}

// Charge accumulates shot power, capped at 1.
func (m *Machine) Charge(delta float64) {
	if !m.myTurn || m.phase != PhaseAiming {
		return
	}
	m.power += delta
	if m.power > 1 {
		m.power = 1
	}
	if m.power < 0 {
		m.power = 0
	}
}

// ArmEffect toggles a power-up for the next release.
func (m *Machine) ArmEffect(e Effect) {
	if !m.myTurn || m.phase == PhaseInMotion || m.phase == PhasePendingSend {
		return
	}
	m.effect ^= e
}

// Release fires the selected piece. Effects are applied and consumed
// here: boost scales the impulse, double bounce raises the piece's
// restitution, extra turn marks the payload so the holder does not
// rotate.
func (m *Machine) Release() {
	if !m.myTurn || m.phase != PhaseAiming || m.selected < 0 || m.power <= 0 {
		return
	}
	dx, dy := m.aimX, m.aimY
	if n := math.Hypot(dx, dy); n > 0 {
		dx, dy = dx/n, dy/n
	} else {
		return
	}
	speed := m.power * baseImpulse
	if m.effect&EffectSpeedBoost != 0 {
		speed *= boostFactor
	}
	if m.effect&EffectDoubleBounce != 0 {
		m.board.SetRestitution(m.selected, bounceCoeff)
	}
	if m.effect&EffectExtraTurn != 0 {
		m.skipSwitch = true
	}
	m.board.ApplyImpulse(m.selected, dx*speed, dy*speed)
	m.log.Debug("shot released",
		zap.Int("piece", m.selected),
		zap.Float64("speed", speed),
		zap.Bool("extra_turn", m.skipSwitch))
	m.phase = PhaseInMotion
	m.power = 0
	m.effect = 0
}

// Step polls the board once per frame. When a shot in motion settles
// (every piece under StopThreshold) it builds the turn payload, parks
// it on the session's pending queue and returns it for transmission.
// All other frames return nil.
func (m *Machine) Step() *types.TurnRequest {
	if m.phase != PhaseInMotion {
		return nil
	}
	pieces := m.board.Pieces()
	for _, p := range pieces {
		if math.Hypot(p.VX, p.VY) >= StopThreshold {
			return nil
		}
	}

	positions := make([]types.PiecePosition, len(pieces))
	for i, p := range pieces {
		positions[i] = types.PiecePosition{ID: p.ID, Owner: p.Owner, X: p.X, Y: p.Y}
	}
	req := &types.TurnRequest{
		Participant: m.sess.Self,
		Pieces:      positions,
		ExtraTurn:   m.skipSwitch,
	}

	m.phase = PhasePendingSend
	m.myTurn = false
	m.selected = -1
	m.skipSwitch = false
	if !m.sess.Pending().Put(req) {
		m.log.Warn("pending slot occupied, new payload not queued")
	}
	return req
}

// Settle resets the machine to idle once the pending payload has been
// handled, whatever the outcome.
func (m *Machine) Settle() {
	if m.phase == PhasePendingSend {
		m.phase = PhaseIdle
	}
}
