package game

import (
	"sync"

	"github.com/avillagra/turnball/pkg/types"
)

// PendingQueue holds at most one unsent turn payload. It is filled when
// the turn state machine completes a turn and emptied only once the
// payload is actually transmitted (or deliberately discarded after a
// sequencing conflict).
type PendingQueue struct {
	mu   sync.Mutex
	turn *types.TurnRequest
}

// Put stores the payload. It reports false, leaving the slot untouched,
// if one is already waiting.
func (q *PendingQueue) Put(t *types.TurnRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.turn != nil {
		return false
	}
	q.turn = t
	return true
}

// Take removes and returns the pending payload, or nil. The caller owns
// it from here; on a transport failure it goes back via Restore.
func (q *PendingQueue) Take() *types.TurnRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.turn
	q.turn = nil
	return t
}

// Restore puts a payload back after a failed transmission, unless a
// newer one has arrived meanwhile.
func (q *PendingQueue) Restore(t *types.TurnRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.turn == nil {
		q.turn = t
	}
}

func (q *PendingQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.turn = nil
}

func (q *PendingQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.turn == nil
}
