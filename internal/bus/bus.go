// Package bus is the in-memory notification fan-out: one bounded
// broadcast topic per match, created on the first subscriber and
// dropped with the last one. Publishing never blocks on a slow
// consumer; a subscriber that falls behind gets its lag flag set and is
// expected to recover from the cached snapshot instead of a replay.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/pkg/types"
)

// DefaultBuffer is the per-subscriber channel depth. Small on purpose:
// the unit of truth is a snapshot, not the event backlog.
const DefaultBuffer = 16

type Registry struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*topic
	buf    int
	log    *zap.Logger
}

type topic struct {
	subs   map[*Subscription]struct{}
	cached *types.Snapshot
}

type Subscription struct {
	matchID uuid.UUID
	ch      chan types.Envelope
	lagged  atomic.Bool
	reg     *Registry
}

type Option func(*Registry)

// WithBuffer overrides the per-subscriber channel depth.
func WithBuffer(n int) Option {
	return func(r *Registry) { r.buf = n }
}

func NewRegistry(log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		topics: make(map[uuid.UUID]*topic),
		buf:    DefaultBuffer,
		log:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe attaches a new consumer to the match's topic, creating the
// topic if this is the first one.
func (r *Registry) Subscribe(matchID uuid.UUID) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.topics[matchID]
	if t == nil {
		t = &topic{subs: make(map[*Subscription]struct{})}
		r.topics[matchID] = t
		r.log.Debug("topic created", zap.String("match", matchID.String()))
	}
	sub := &Subscription{matchID: matchID, ch: make(chan types.Envelope, r.buf), reg: r}
	t.subs[sub] = struct{}{}
	return sub
}

// Publish fans the envelope out to every subscriber of the match. No
// topic means nobody is listening and the envelope is dropped. A full
// subscriber channel marks that subscriber lagged instead of blocking
// or disconnecting it. Snapshot envelopes also refresh the topic cache.
func (r *Registry) Publish(matchID uuid.UUID, env types.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.topics[matchID]
	if t == nil {
		return
	}
	if env.Kind == types.KindSnapshot && env.Snapshot != nil {
		t.cached = env.Snapshot
	}
	for sub := range t.subs {
		select {
		case sub.ch <- env:
		default:
			sub.lagged.Store(true)
			r.log.Warn("subscriber lagging", zap.String("match", matchID.String()))
		}
	}
}

// CachedSnapshot returns the last snapshot published on the match's
// topic, or nil.
func (r *Registry) CachedSnapshot(matchID uuid.UUID) *types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.topics[matchID]; t != nil {
		return t.cached
	}
	return nil
}

// Subscribers reports how many sessions are attached to the match.
func (r *Registry) Subscribers(matchID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.topics[matchID]; t != nil {
		return len(t.subs)
	}
	return 0
}

// C is the subscriber's receive side. It is closed by Close.
func (s *Subscription) C() <-chan types.Envelope { return s.ch }

// Lagged reports and clears the overflow flag in one step.
func (s *Subscription) Lagged() bool { return s.lagged.Swap(false) }

// Close detaches the subscription and discards the topic when it was
// the last one. Safe to call more than once.
func (s *Subscription) Close() {
	r := s.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.topics[s.matchID]
	if t == nil {
		return
	}
	if _, ok := t.subs[s]; !ok {
		return
	}
	delete(t.subs, s)
	close(s.ch)
	if len(t.subs) == 0 {
		delete(r.topics, s.matchID)
		r.log.Debug("topic discarded", zap.String("match", s.matchID.String()))
	}
}
