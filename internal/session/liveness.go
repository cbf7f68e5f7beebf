package session

// Liveness is the state of the connection indicator.
type Liveness int

const (
	Disconnected Liveness = iota
	Connected
)

func (l Liveness) String() string {
	if l == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// Liveness derives the indicator state. It is Connected only while a send session is established.
func (s Snapshot) Liveness() Liveness {
	if s.Connected {
		return Connected
	}
	return Disconnected
}

// CanShare reports whether a share action would do anything.
func (s Snapshot) CanShare() bool {
	return s.SelectedPath != "" && !s.Connected && s.Role == Idle
}

// CanReceive reports whether a receive action may start.
// A finished receive still in its grace delay does not block the next one.
func (s Snapshot) CanReceive() bool {
	return s.Role == Idle || (s.Role == Receiving && s.Completing)
}
