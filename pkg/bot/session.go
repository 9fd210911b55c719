package bot

import (
	"sync"
	"time"

	"github.com/voxnotes/meetingbot/pkg/log"
	"github.com/voxnotes/meetingbot/pkg/platform"
	"github.com/voxnotes/meetingbot/pkg/relay"
)

// Status represents the lifecycle state of an automated participant.
type Status int

const (
	StatusJoining Status = iota
	StatusActive
	StatusLeaving
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "joining"
	case StatusActive:
		return "active"
	case StatusLeaving:
		return "leaving"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DriverHandle is the slice of the browser driver a session owns. It is
// exclusively owned by its session, never shared, and released exactly
// once.
type DriverHandle interface {
	Close() error
}

// Session is one automated participant inside a conferencing session.
type Session struct {
	MeetingID string
	Platform  platform.Platform
	StartTime time.Time

	mu        sync.Mutex
	status    Status
	driver    DriverHandle
	forwarder *relay.Forwarder

	closeOnce sync.Once
}

func newSession(meetingID string, p platform.Platform) *Session {
	return &Session{
		MeetingID: meetingID,
		Platform:  p,
		StartTime: time.Now(),
		status:    StatusJoining,
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// transition moves the session from one expected state to another, and
// reports whether it happened. A failed compare means another path (a
// racing leave, a crash) got there first.
func (s *Session) transition(from, to Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != from {
		return false
	}
	s.status = to
	return true
}

func (s *Session) attachDriver(d DriverHandle) {
	s.mu.Lock()
	s.driver = d
	s.mu.Unlock()
}

func (s *Session) attachForwarder(f *relay.Forwarder) {
	s.mu.Lock()
	s.forwarder = f
	s.mu.Unlock()
}

// Forwarder returns the session's relay forwarder, nil before install.
func (s *Session) Forwarder() *relay.Forwarder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forwarder
}

// CloseDriver releases the session's driver handle. Runs at most once per
// session, regardless of how many paths (leave, failed join, crash,
// shutdown) request it.
func (s *Session) CloseDriver() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		d := s.driver
		s.mu.Unlock()

		if d == nil {
			return
		}
		if err := d.Close(); err != nil {
			log.Errorf("Error closing driver for meeting %s: %v", s.MeetingID, err)
		}
	})
}

// Summary is the externally visible view of a session. It never exposes
// the driver handle.
type Summary struct {
	MeetingID string            `json:"meeting_id"`
	Platform  platform.Platform `json:"platform"`
	StartTime time.Time         `json:"start_time"`
	Status    string            `json:"status"`
}

// Summary snapshots the session for status queries.
func (s *Session) Summary() Summary {
	return Summary{
		MeetingID: s.MeetingID,
		Platform:  s.Platform,
		StartTime: s.StartTime,
		Status:    s.Status().String(),
	}
}
