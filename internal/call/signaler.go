package call

import (
	"context"

	"github.com/iseeyou-platform/realtime/internal/domain"
)

// RejectReason is the fixed reason code sent with a local rejection.
type RejectReason string

const ReasonBusy RejectReason = "busy"

// AppSettings identifies this deployment to the call SDK.
type AppSettings struct {
	AppID   string
	Region  string
	AuthKey string
}

// Signaler is the slice of the external call SDK this core consumes.
// The SDK's own protocol reconciles the remote party's view; nothing
// here is retried.
type Signaler interface {
	AcceptCall(ctx context.Context, id domain.CallSessionID) error
	RejectCall(ctx context.Context, id domain.CallSessionID, reason RejectReason) error
}

// SessionSettings configures one media session start.
type SessionSettings struct {
	Type domain.CallType
}

// RenderTarget is where an ongoing call surfaces its remote media. The
// console UI owns rendering; this core only reports track lifecycle.
type RenderTarget interface {
	TrackStarted(kind, trackID string)
	TrackEnded(trackID string)
}

// MediaSession is a started media session. Ownership passes to the
// controller's cleanup path, which must Close it exactly once.
type MediaSession interface {
	Close()
}

// MediaStarter is the media-session API: Init may be called again
// before each session to refresh SDK state.
type MediaStarter interface {
	Init(settings AppSettings) error
	StartSession(ctx context.Context, id domain.CallSessionID, settings SessionSettings, target RenderTarget) (MediaSession, error)
}
