package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultTotal is the progress total used before any real sample arrives.
const DefaultTotal int64 = 100

// DefaultGraceDelay lets a completion animation finish before the progress indicator is hidden.
const DefaultGraceDelay = 500 * time.Millisecond

var (
	ErrPathLocked      = errors.New("selected path cannot change while connected")
	ErrReceiving       = errors.New("cannot select a file to share while receiving")
	ErrBusy            = errors.New("a transfer is already in progress")
	ErrNotSending      = errors.New("ticket can only be set while sending")
	ErrStaleGeneration = errors.New("event belongs to a superseded session")
)

type Role int

const (
	Idle Role = iota
	Sending
	Receiving
)

func (r Role) String() string {
	switch r {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Receiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Progress is the last known sample for the active role. Values are stored raw.
type Progress struct {
	Done  int64
	Total int64
}

func defaultProgress() Progress {
	return Progress{Done: 0, Total: DefaultTotal}
}

// Percent returns done/total*100 clamped to [0,100]. A non-positive total yields 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Done) / float64(p.Total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// IsTerminal reports whether the sample marks completion.
func (p Progress) IsTerminal() bool {
	return p.Done >= p.Total
}

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	SelectedPath   string
	Role           Role
	Connected      bool
	Ticket         string
	Progress       Progress
	TransferActive bool
	Generation     uint64
	// Completing is set while the session sits out its grace delay.
	Completing bool
}

// Store is the single source of truth for the current session.
// All mutations are serialized by mu.
type Store struct {
	mu sync.Mutex

	selectedPath   string
	role           Role
	connected      bool
	ticket         string
	progress       Progress
	transferActive bool
	generation     uint64

	graceDelay time.Duration
	graceTimer *time.Timer
	graceSeq   uint64

	subscribers map[chan Snapshot]struct{}
}

func NewStore(graceDelay time.Duration) *Store {
	if graceDelay < 0 {
		graceDelay = 0
	}
	return &Store{
		progress:    defaultProgress(),
		graceDelay:  graceDelay,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		SelectedPath:   s.selectedPath,
		Role:           s.role,
		Connected:      s.connected,
		Ticket:         s.ticket,
		Progress:       s.progress,
		TransferActive: s.transferActive,
		Generation:     s.generation,
		Completing:     s.graceTimer != nil,
	}
}

// SetPath replaces the selected path. It leaves the state untouched while connected or receiving.
func (s *Store) SetPath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrPathLocked
	}
	if s.role == Receiving {
		return ErrReceiving
	}
	if s.selectedPath == path {
		return nil
	}
	s.selectedPath = path
	s.publishLocked()
	return nil
}

// SetConnected sets the connection flag. Setting it to false also clears the ticket
// and resets progress.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConnectedLocked(connected)
	s.publishLocked()
}

func (s *Store) setConnectedLocked(connected bool) {
	s.connected = connected
	if connected {
		return
	}
	s.ticket = ""
	s.resetProgressLocked()
}

// SetTicket installs the ticket issued for session gen.
func (s *Store) SetTicket(gen uint64, ticket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStaleGeneration
	}
	if s.role != Sending {
		return ErrNotSending
	}
	s.ticket = ticket
	s.publishLocked()
	return nil
}

// RecordProgress applies a sample belonging to session gen.
func (s *Store) RecordProgress(gen uint64, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.role == Idle {
		return ErrStaleGeneration
	}

	s.progress = p
	if p.IsTerminal() {
		s.armGraceLocked()
	} else {
		s.transferActive = true
		s.cancelGraceLocked()
	}
	s.publishLocked()
	return nil
}

// BeginSession starts a new session for role and returns its generation.
// Only one active role is allowed at a time. A receive that already
// finished and is only waiting out its grace delay can be taken over by a new receive.
func (s *Store) BeginSession(role Role) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == Idle {
		return 0, errors.New("cannot begin an idle session")
	}
	if s.role != Idle && !s.receiveSettlingLocked(role) {
		return 0, ErrBusy
	}

	s.cancelGraceLocked()
	s.generation++
	s.ticket = ""
	s.transferActive = false
	s.progress = defaultProgress()
	s.role = role
	if role == Sending {
		s.connected = true
	}
	slog.Debug("session started", "role", role, "generation", s.generation)
	s.publishLocked()
	return s.generation, nil
}

func (s *Store) receiveSettlingLocked(next Role) bool {
	return next == Receiving && s.role == Receiving && s.graceTimer != nil
}

// AbortSession rolls session gen back to idle after a failed engine call.
// The selected path is kept.
func (s *Store) AbortSession(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.cancelGraceLocked()
	s.role = Idle
	s.transferActive = false
	s.setConnectedLocked(false)
	s.publishLocked()
}

// FinishSession handles an engine call for gen that returned successfully.
// A receive session goes idle after the grace delay even if no terminal sample arrived.
func (s *Store) FinishSession(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.role != Receiving {
		return
	}
	if s.graceTimer != nil {
		return
	}
	s.armGraceLocked()
	s.publishLocked()
}

// Disconnect is the hard stop. It drops the send session, the ticket and the selected path.
// A running receive session is left alone.
func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role == Sending {
		s.cancelGraceLocked()
		s.generation++
		s.role = Idle
		s.transferActive = false
	}
	s.setConnectedLocked(false)
	s.selectedPath = ""
	s.publishLocked()
}

// resetProgressLocked leaves receive progress alone; it belongs to the receive session.
func (s *Store) resetProgressLocked() {
	if s.role == Receiving {
		return
	}
	s.progress = defaultProgress()
}

func (s *Store) armGraceLocked() {
	s.cancelGraceLocked()
	s.graceSeq++
	seq, gen := s.graceSeq, s.generation
	s.graceTimer = time.AfterFunc(s.graceDelay, func() {
		s.expireGrace(gen, seq)
	})
}

func (s *Store) cancelGraceLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.graceSeq++
}

func (s *Store) expireGrace(gen, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.graceSeq || gen != s.generation {
		return
	}
	s.graceTimer = nil
	s.transferActive = false
	s.progress.Done = 0
	if s.role == Receiving {
		s.role = Idle
	}
	s.publishLocked()
}

// Close stops pending timers and closes all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelGraceLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
