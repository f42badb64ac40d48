// Package rtc is the pion-backed implementation of the media-session
// API. Only session start/stop lives here; the media transport itself
// belongs to pion.
package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/iseeyou-platform/realtime/internal/call"
	"github.com/iseeyou-platform/realtime/internal/domain"
)

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Engine implements call.MediaStarter. Init may run again before each
// session; it refreshes the configuration in place.
type Engine struct {
	mu     sync.Mutex
	cfg    webrtc.Configuration
	inited bool
}

func NewEngine() *Engine {
	return &Engine{cfg: DefaultConfig()}
}

func (e *Engine) Init(settings call.AppSettings) error {
	if settings.AppID == "" || settings.AuthKey == "" {
		return errors.New("missing app identity")
	}
	e.mu.Lock()
	e.cfg = DefaultConfig()
	e.inited = true
	e.mu.Unlock()
	log.Info().Str("module", "call.rtc").Str("app", settings.AppID).Str("region", settings.Region).Msg("media engine initialized")
	return nil
}

func (e *Engine) StartSession(ctx context.Context, id domain.CallSessionID, settings call.SessionSettings, target call.RenderTarget) (call.MediaSession, error) {
	e.mu.Lock()
	inited := e.inited
	cfg := e.cfg
	e.mu.Unlock()
	if !inited {
		return nil, errors.New("media engine not initialized")
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	sess := &session{pc: pc, id: id}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "call.rtc").
			Str("session", string(id)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if target != nil {
			target.TrackStarted(track.Kind().String(), track.ID())
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "call.rtc").Str("session", string(id)).Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			if target != nil {
				target.TrackEnded(string(id))
			}
		}
	})

	if settings.Type == domain.CallVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		_ = pc.Close()
		return nil, err
	}

	log.Info().Str("module", "call.rtc").Str("session", string(id)).Str("type", string(settings.Type)).Msg("media session started")
	return sess, nil
}

type session struct {
	pc *webrtc.PeerConnection
	id domain.CallSessionID

	mu     sync.Mutex
	closed bool
}

func (s *session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "call.rtc").Str("session", string(s.id)).Msg("close error")
		return
	}
	log.Info().Str("module", "call.rtc").Str("session", string(s.id)).Msg("media session closed")
}
