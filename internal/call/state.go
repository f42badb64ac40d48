// Package call drives the call-acceptance lifecycle on top of the
// collaborator-owned signaling SDK and the media-session API.
package call

// State is the call lifecycle position. Rejected, Cancelled and Ended
// are terminal; the owner resets to Idle before the next call.
type State int

const (
	StateIdle State = iota
	StateIncoming
	StateAccepting
	StateOngoing
	StateRejected
	StateCancelled
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIncoming:
		return "incoming"
	case StateAccepting:
		return "accepting"
	case StateOngoing:
		return "ongoing"
	case StateRejected:
		return "rejected"
	case StateCancelled:
		return "cancelled"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Terminal reports whether the owner must Reset before a new call can
// be taken.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateCancelled || s == StateEnded
}
