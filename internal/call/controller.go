package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/domain"
)

var (
	ErrNoIncomingCall = errors.New("no incoming call")
	ErrCallBusy       = errors.New("call already in progress")
)

// CloseFunc notifies the owning UI that the call reached a terminal
// state. It runs for every terminal transition, local or remote.
type CloseFunc func(final State, session *domain.CallSession)

// Controller owns one call session from the incoming event until a
// terminal state. After a terminal state the owner calls Reset before
// the next call can be taken.
type Controller struct {
	signaler Signaler
	media    MediaStarter
	settings AppSettings

	mu        sync.Mutex
	state     State
	session   *domain.CallSession
	accepting bool
	mediaSess MediaSession
	onClose   CloseFunc
}

func NewController(signaler Signaler, media MediaStarter, settings AppSettings) *Controller {
	return &Controller{
		signaler: signaler,
		media:    media,
		settings: settings,
		state:    StateIdle,
	}
}

// OnClose registers the UI close callback. Call before wiring events.
func (c *Controller) OnClose(fn CloseFunc) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Session() *domain.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// HandleIncoming moves Idle to Incoming. While a call is in flight a
// second incoming event is logged and dropped; the SDK's own protocol
// times the remote caller out.
func (c *Controller) HandleIncoming(sess domain.CallSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		log.Warn().Str("module", "call").Str("session", string(sess.SessionID)).
			Str("state", c.state.String()).Msg("incoming call while busy, dropped")
		return
	}
	c.state = StateIncoming
	s := sess
	c.session = &s
	log.Info().Str("module", "call").Str("session", string(sess.SessionID)).
		Str("type", string(sess.Type)).Str("from", string(sess.Sender)).Msg("incoming call")
}

// Accept is two-phase: signal acceptance, then init media and start the
// session bound to the caller's render target. A second Accept while
// the first is in flight is a no-op. Phase-2 failure still closes the
// call locally: a half-accepted call is worse than a dropped one.
func (c *Controller) Accept(ctx context.Context, target RenderTarget) error {
	c.mu.Lock()
	if c.state != StateIncoming || c.accepting {
		state := c.state
		c.mu.Unlock()
		if state == StateAccepting || state == StateIncoming {
			// Double-click guard.
			return nil
		}
		return ErrNoIncomingCall
	}
	c.accepting = true
	c.state = StateAccepting
	sess := *c.session
	c.mu.Unlock()

	if err := c.signaler.AcceptCall(ctx, sess.SessionID); err != nil {
		log.Error().Err(err).Str("module", "call").Str("session", string(sess.SessionID)).Msg("accept signal failed")
		c.closeOut(StateIdle, nil)
		return fmt.Errorf("accept call: %w", err)
	}

	if err := c.media.Init(c.settings); err != nil {
		log.Error().Err(err).Str("module", "call").Str("session", string(sess.SessionID)).Msg("media init failed")
		c.closeOut(StateIdle, nil)
		return fmt.Errorf("media init: %w", err)
	}

	ms, err := c.media.StartSession(ctx, sess.SessionID, SessionSettings{Type: sess.Type}, target)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Str("session", string(sess.SessionID)).Msg("media session start failed")
		c.closeOut(StateIdle, nil)
		return fmt.Errorf("start session: %w", err)
	}

	c.mu.Lock()
	if c.state != StateAccepting {
		// Remote ended the call while media was starting; the cleanup
		// path already ran, so release the fresh session here.
		c.mu.Unlock()
		ms.Close()
		return nil
	}
	c.state = StateOngoing
	c.accepting = false
	c.mediaSess = ms
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("session", string(sess.SessionID)).Msg("call ongoing")
	return nil
}

// Reject sends the fixed reason code. A reject failure is logged and
// the local UI still closes.
func (c *Controller) Reject(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIncoming {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	sess := *c.session
	c.mu.Unlock()

	if err := c.signaler.RejectCall(ctx, sess.SessionID, ReasonBusy); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("session", string(sess.SessionID)).Msg("reject signal failed")
	}
	c.closeOut(StateRejected, &sess)
	return nil
}

// HandleRemoteCancelled handles the caller hanging up before the admin
// answered.
func (c *Controller) HandleRemoteCancelled(id domain.CallSessionID) {
	c.mu.Lock()
	if c.state != StateIncoming || c.session == nil || c.session.SessionID != id {
		c.mu.Unlock()
		return
	}
	sess := *c.session
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("session", string(id)).Msg("remote cancelled")
	c.closeOut(StateCancelled, &sess)
}

// HandleRemoteEnded is tolerated from any state and runs the same
// cleanup path as a local end.
func (c *Controller) HandleRemoteEnded(id domain.CallSessionID) {
	c.mu.Lock()
	if c.state == StateIdle || c.session == nil || c.session.SessionID != id {
		c.mu.Unlock()
		return
	}
	sess := *c.session
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("session", string(id)).Msg("remote ended")
	c.closeOut(StateEnded, &sess)
}

// End is the local hangup for an ongoing call.
func (c *Controller) End() error {
	c.mu.Lock()
	if c.state != StateOngoing {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	sess := *c.session
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("session", string(sess.SessionID)).Msg("local end")
	c.closeOut(StateEnded, &sess)
	return nil
}

// Reset returns a terminal controller to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() && c.state != StateIdle {
		log.Warn().Str("module", "call").Str("state", c.state.String()).Msg("reset from non-terminal state ignored")
		return
	}
	c.state = StateIdle
	c.session = nil
	c.accepting = false
}

// closeOut is the single cleanup path for every terminal transition. It
// releases the media session, moves to the final state and notifies the
// owning UI.
func (c *Controller) closeOut(final State, sess *domain.CallSession) {
	c.mu.Lock()
	ms := c.mediaSess
	c.mediaSess = nil
	c.accepting = false
	c.state = final
	if final == StateIdle {
		c.session = nil
	}
	onClose := c.onClose
	c.mu.Unlock()

	if ms != nil {
		ms.Close()
	}
	if onClose != nil {
		onClose(final, sess)
	}
}
