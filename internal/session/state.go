// README: Consumer session states and the allowed transitions between them.
package session

type State string

const (
	StateIdle               State = "idle"
	StateConnecting         State = "connecting"
	StateStreaming          State = "streaming"
	StateComplete           State = "complete"
	StateFallbackPending    State = "fallback_pending"
	StateFallbackRequesting State = "fallback_requesting"
	StateFailed             State = "failed"
)

// AllowedTransitions represents the session state flow as code.
// Connecting loops back to itself when an attempt dies before its first event.
var AllowedTransitions = map[State][]State{
	StateIdle:               {StateConnecting, StateFallbackPending},
	StateConnecting:         {StateStreaming, StateConnecting, StateFallbackPending, StateFailed},
	StateStreaming:          {StateComplete, StateConnecting, StateFallbackPending, StateFailed},
	StateFallbackPending:    {StateFallbackRequesting},
	StateFallbackRequesting: {StateComplete, StateFailed},
}

func CanTransition(from, to State) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}
