package bot

import (
	"sort"
	"sync"
)

// Registry is the single authoritative map from normalized meeting id to
// session. All session-state mutation flows through the orchestrator and
// this registry; no other component keeps a second copy.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register stores the session under its meeting id. At most one session
// may exist per id; a second registration fails with ErrDuplicateSession.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.MeetingID]; exists {
		return ErrDuplicateSession
	}
	r.sessions[s.MeetingID] = s
	return nil
}

// Lookup returns the session for a meeting id.
func (r *Registry) Lookup(meetingID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[meetingID]
	return s, ok
}

// RemoveSession removes the entry for meetingID only if it still holds
// this exact session, and reports whether it did. Guards the reconcile
// paths: a late join or crash callback must never evict a successor
// session registered under the same id.
func (r *Registry) RemoveSession(meetingID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[meetingID]
	if !ok || current != s {
		return false
	}
	delete(r.sessions, meetingID)
	return true
}

// Contains reports whether this exact session is still registered.
func (r *Registry) Contains(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	current, ok := r.sessions[s.MeetingID]
	return ok && current == s
}

// List returns a point-in-time snapshot of session summaries, ordered by
// meeting id for stable output.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].MeetingID < summaries[j].MeetingID
	})
	return summaries
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
