package audio

import (
	"sync"
	"time"

	"github.com/voxnotes/meetingbot/pkg/log"
)

// Subscriber represents a client subscribed to captured audio chunks
type Subscriber struct {
	ID           string
	MeetingID    string // Filter by meeting id (empty for all meetings)
	Channel      chan *Chunk
	LastActivity time.Time
	connected    bool
	mutex        sync.RWMutex
}

// NewSubscriber creates a new audio subscriber
func NewSubscriber(id string, bufferSize int) *Subscriber {
	return &Subscriber{
		ID:           id,
		Channel:      make(chan *Chunk, bufferSize),
		LastActivity: time.Now(),
		connected:    true,
	}
}

// SetMeetingFilter sets the meeting id filter
func (s *Subscriber) SetMeetingFilter(meetingID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.MeetingID = meetingID
}

// ShouldReceive checks if the subscriber should receive this chunk
func (s *Subscriber) ShouldReceive(chunk *Chunk) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.connected {
		return false
	}
	if s.MeetingID != "" && s.MeetingID != chunk.MeetingID {
		return false
	}
	return true
}

// Send sends a chunk to the subscriber (non-blocking)
func (s *Subscriber) Send(chunk *Chunk) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected {
		return false
	}

	select {
	case s.Channel <- chunk:
		s.LastActivity = time.Now()
		return true
	default:
		// Channel is full, drop the chunk
		log.Warnf("Dropping chunk for subscriber %s (channel full)", s.ID)
		return false
	}
}

// Close closes the subscriber
func (s *Subscriber) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		s.connected = false
		close(s.Channel)
	}
}

// IsConnected returns whether the subscriber is connected
func (s *Subscriber) IsConnected() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.connected
}

// Bus fans captured audio chunks out to subscribers
type Bus struct {
	subscribers map[string]*Subscriber
	mutex       sync.RWMutex
	stats       BusStats
}

// BusStats holds statistics for the audio bus
type BusStats struct {
	TotalChunks       uint64
	DroppedChunks     uint64
	ActiveSubscribers int
	LastChunkTime     time.Time
}

// NewBus creates a new audio bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe adds a new subscriber to the bus
func (b *Bus) Subscribe(subscriber *Subscriber) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers[subscriber.ID] = subscriber
	b.stats.ActiveSubscribers = len(b.subscribers)

	log.Infof("Added subscriber: %s (total: %d)", subscriber.ID, b.stats.ActiveSubscribers)
}

// Unsubscribe removes a subscriber from the bus
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if subscriber, exists := b.subscribers[subscriberID]; exists {
		subscriber.Close()
		delete(b.subscribers, subscriberID)
		b.stats.ActiveSubscribers = len(b.subscribers)

		log.Infof("Removed subscriber: %s (total: %d)", subscriberID, b.stats.ActiveSubscribers)
	}
}

// Publish publishes an audio chunk to all matching subscribers
func (b *Bus) Publish(chunk *Chunk) bool {
	b.mutex.RLock()
	subscribers := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.ShouldReceive(chunk) {
			subscribers = append(subscribers, sub)
		}
	}
	b.mutex.RUnlock()

	b.mutex.Lock()
	b.stats.TotalChunks++
	b.stats.LastChunkTime = time.Now()
	b.mutex.Unlock()

	if len(subscribers) == 0 {
		return true // No subscribers, but not an error
	}

	sent := 0
	for _, subscriber := range subscribers {
		if !subscriber.IsConnected() {
			continue
		}

		if subscriber.Send(chunk) {
			sent++
		} else {
			b.mutex.Lock()
			b.stats.DroppedChunks++
			b.mutex.Unlock()
		}
	}

	return sent > 0
}

// GetStats returns bus statistics
func (b *Bus) GetStats() BusStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	stats := b.stats
	stats.ActiveSubscribers = len(b.subscribers)
	return stats
}

// GetSubscriberCount returns the number of active subscribers
func (b *Bus) GetSubscriberCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subscribers)
}

// CleanupInactiveSubscribers removes subscribers that haven't been active for a while
func (b *Bus) CleanupInactiveSubscribers(timeout time.Duration) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()
	removed := 0

	for id, subscriber := range b.subscribers {
		if !subscriber.IsConnected() || now.Sub(subscriber.LastActivity) > timeout {
			subscriber.Close()
			delete(b.subscribers, id)
			removed++
			log.Infof("Cleaned up inactive subscriber: %s", id)
		}
	}

	if removed > 0 {
		b.stats.ActiveSubscribers = len(b.subscribers)
	}

	return removed
}

// Shutdown closes all subscribers and shuts down the bus
func (b *Bus) Shutdown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	log.Info("Shutting down audio bus")

	for _, subscriber := range b.subscribers {
		subscriber.Close()
	}

	b.subscribers = make(map[string]*Subscriber)
	b.stats.ActiveSubscribers = 0
}
