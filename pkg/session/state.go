package session

// State tracks where a session is in its lifecycle. Transitions:
// Connected -> Streaming -> Responding -> Streaming ... -> Closed.
type State int32

const (
	StateConnected State = iota
	StateStreaming
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateStreaming:
		return "STREAMING"
	case StateResponding:
		return "RESPONDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
