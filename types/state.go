package types

// ConnectionState is the small state machine driven by poll results:
// closed -> connecting -> connected <-> error. closed is both the initial and
// the terminal state.
type ConnectionState int

const (
	ConnectionClosed ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionError
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionClosed:
		return "closed"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionError:
		return "error"
	default:
		return "unknown"
	}
}
