package domain

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

type CallSessionID string

// CallSession is the signaling-level handle for one call attempt,
// distinct from the media transport it may later open.
type CallSession struct {
	SessionID  CallSessionID `json:"sessionId"`
	Type       CallType      `json:"type"`
	Sender     UserID        `json:"sender"`
	SenderName string        `json:"senderName,omitempty"`
}
