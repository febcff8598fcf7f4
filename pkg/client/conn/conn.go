// Package conn keeps one client attached to the backend: a websocket
// for push notifications with an HTTP polling fallback, plus the write
// path for formation and turn submissions. The pending turn payload is
// cleared only once the backend has actually accepted or rejected it.
package conn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/pkg/client/applier"
	"github.com/avillagra/turnball/pkg/client/game"
	"github.com/avillagra/turnball/pkg/types"
)

// pollEvery paces the snapshot polling fallback and the redial
// attempts while the socket is down.
const pollEvery = 3 * time.Second

// ErrConflict reports that the backend already holds a turn at the
// sequence this payload would have taken. The local payload has been
// discarded and a fresh snapshot requested; do not resend.
var ErrConflict = errors.New("turn sequence already taken")

type Manager struct {
	sess    *game.Session
	applier *applier.Applier
	baseURL string
	http    *http.Client
	clock   clockwork.Clock
	log     *zap.Logger
}

func New(sess *game.Session, ap *applier.Applier, baseURL string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sess:    sess,
		applier: ap,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		clock:   clockwork.NewRealClock(),
		log:     log,
	}
}

// WithClock swaps the clock used for poll and redial timers.
func (m *Manager) WithClock(c clockwork.Clock) *Manager {
	m.clock = c
	return m
}

// Run keeps the notification channel alive until the context is
// cancelled. While the socket is down it falls back to polling the
// snapshot endpoint so the client never stops making progress.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, _, err := websocket.Dial(ctx, m.wsURL(), nil)
		if err != nil {
			m.log.Warn("dial failed, polling until redial", zap.Error(err))
			if err := m.pollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.log.Warn("poll failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.clock.After(pollEvery):
			}
			continue
		}
		m.log.Info("socket connected")
		// Catch up on anything missed while disconnected.
		_ = m.RefreshSnapshot(ctx)
		err = m.readLoop(ctx, c)
		c.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn("socket closed, redialing", zap.Error(err))
	}
}

func (m *Manager) readLoop(ctx context.Context, c *websocket.Conn) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.log.Warn("bad envelope", zap.Error(err))
			continue
		}
		switch env.Kind {
		case types.KindSnapshot:
			m.applier.Apply(env.Snapshot)
		case types.KindSignal:
			switch env.Signal {
			case types.SignalStart, types.SignalTurnFinished:
				if err := m.RefreshSnapshot(ctx); err != nil {
					m.log.Warn("snapshot refresh failed", zap.Error(err))
				}
			default:
				m.log.Debug("unknown signal", zap.String("signal", env.Signal))
			}
		case types.KindRelay:
			m.log.Debug("peer relay", zap.String("text", env.Text))
		}
	}
}

// pollOnce is the no-socket fallback: fetch and apply one snapshot.
func (m *Manager) pollOnce(ctx context.Context) error {
	return m.RefreshSnapshot(ctx)
}

// RefreshSnapshot fetches the authoritative snapshot over HTTP and
// feeds it to the applier.
func (m *Manager) RefreshSnapshot(ctx context.Context) error {
	url := fmt.Sprintf("%s/matches/%s/snapshot", m.baseURL, m.sess.MatchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot fetch: status %d", resp.StatusCode)
	}
	var snap types.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}
	m.applier.Apply(&snap)
	return nil
}

// SubmitFormation posts the formation choice.
func (m *Manager) SubmitFormation(ctx context.Context, formation string) (*types.FormationAck, error) {
	body := types.FormationRequest{Participant: m.sess.Self, Formation: formation}
	url := fmt.Sprintf("%s/matches/%s/formation", m.baseURL, m.sess.MatchID)
	resp, err := m.post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("formation: status %d", resp.StatusCode)
	}
	var ack types.FormationAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SubmitTurn transmits the pending turn payload, if any. Transport
// failures and server errors put the payload back for retry; a
// sequencing conflict discards it and triggers a snapshot refresh so
// local state realigns with the ledger.
func (m *Manager) SubmitTurn(ctx context.Context) error {
	turn := m.sess.Pending().Take()
	if turn == nil {
		return nil
	}
	url := fmt.Sprintf("%s/matches/%s/turns", m.baseURL, m.sess.MatchID)
	resp, err := m.post(ctx, url, turn)
	if err != nil {
		m.sess.Pending().Restore(turn)
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusCreated:
		m.log.Info("turn accepted")
		return nil
	case resp.StatusCode == http.StatusConflict:
		m.log.Warn("turn conflicted, discarding payload")
		if err := m.RefreshSnapshot(ctx); err != nil {
			m.log.Warn("post-conflict refresh failed", zap.Error(err))
		}
		return ErrConflict
	case resp.StatusCode >= 500:
		m.sess.Pending().Restore(turn)
		return fmt.Errorf("turn submit: status %d", resp.StatusCode)
	default:
		// 4xx other than conflict means the payload itself is bad.
		// Retrying it verbatim cannot succeed.
		return fmt.Errorf("turn rejected: status %d", resp.StatusCode)
	}
}

func (m *Manager) post(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.http.Do(req)
}

func (m *Manager) wsURL() string {
	return fmt.Sprintf("%s/ws/%s/%s", m.baseURL, m.sess.MatchID, m.sess.Self)
}
