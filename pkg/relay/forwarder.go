package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/voxnotes/meetingbot/pkg/audio"
	"github.com/voxnotes/meetingbot/pkg/log"
)

// pagePayload is the JSON the injected tap pushes through the sink binding.
type pagePayload struct {
	Rate  int    `json:"rate"`
	Audio string `json:"audio"` // base64 S16LE samples
}

// chunkEnvelope is the outbound wire format per forwarded chunk.
type chunkEnvelope struct {
	MeetingID  string    `json:"meeting_id"`
	Timestamp  time.Time `json:"timestamp"`
	SampleRate int       `json:"sample_rate"`
	Audio      string    `json:"audio"` // base64 S16LE samples
}

// Stats counts what one forwarder has done so far.
type Stats struct {
	ChunksReceived  uint64    `json:"chunks_received"`
	ChunksForwarded uint64    `json:"chunks_forwarded"`
	ChunksDropped   uint64    `json:"chunks_dropped"`
	BytesReceived   uint64    `json:"bytes_received"`
	LastChunkTime   time.Time `json:"last_chunk_time"`
}

// Forwarder is the host-side consumer of one session's audio tap. Each
// decoded chunk is published to the local bus and pushed to the external
// transcription endpoint. Delivery is fire-and-forget per chunk: a failed
// call is logged, counted, and dropped; it never blocks the next chunk and
// never touches session state.
type Forwarder struct {
	meetingID string
	endpoint  string
	bus       *audio.Bus
	client    *http.Client

	mu    sync.Mutex
	stats Stats
}

// NewForwarder creates a forwarder posting to <baseURL>/audio.
func NewForwarder(meetingID, baseURL string, bus *audio.Bus) *Forwarder {
	return &Forwarder{
		meetingID: meetingID,
		endpoint:  baseURL + "/audio",
		bus:       bus,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

// HandleChunk decodes one page payload and relays it. Installed as the
// driver's sink callback, so it runs once per captured chunk.
func (f *Forwarder) HandleChunk(payload string) {
	var msg pagePayload
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		metricDecodeFailures.Inc()
		log.Warnf("Undecodable tap payload for meeting %s: %v", f.meetingID, err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		metricDecodeFailures.Inc()
		log.Warnf("Undecodable tap samples for meeting %s: %v", f.meetingID, err)
		return
	}

	chunk := &audio.Chunk{
		MeetingID:  f.meetingID,
		Timestamp:  time.Now(),
		SampleRate: msg.Rate,
		Data:       data,
	}

	f.mu.Lock()
	f.stats.ChunksReceived++
	f.stats.BytesReceived += uint64(len(data))
	f.stats.LastChunkTime = chunk.Timestamp
	f.mu.Unlock()

	if f.bus != nil {
		f.bus.Publish(chunk)
	}

	go f.forward(chunk)
}

func (f *Forwarder) forward(chunk *audio.Chunk) {
	if err := f.post(chunk); err != nil {
		metricChunksDropped.Inc()
		f.mu.Lock()
		f.stats.ChunksDropped++
		f.mu.Unlock()
		log.Warnf("Dropping audio chunk for meeting %s: %v", f.meetingID, err)
		return
	}

	metricChunksForwarded.Inc()
	f.mu.Lock()
	f.stats.ChunksForwarded++
	f.mu.Unlock()
}

func (f *Forwarder) post(chunk *audio.Chunk) error {
	envelope := chunkEnvelope{
		MeetingID:  chunk.MeetingID,
		Timestamp:  chunk.Timestamp,
		SampleRate: chunk.SampleRate,
		Audio:      base64.StdEncoding.EncodeToString(chunk.Data),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}

	resp, err := f.client.Post(f.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transcription endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transcription endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// GetStats returns a snapshot of the forwarder's counters.
func (f *Forwarder) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
