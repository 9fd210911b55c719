package audio

import (
	"encoding/binary"
	"time"
)

// Chunk is one fixed-size unit of captured meeting audio. Data is raw PCM
// (S16LE) exactly as produced inside the page; no resampling happens on the
// way out. Chunk size is constant for the lifetime of a session so the
// downstream consumer can assume uniform framing.
type Chunk struct {
	MeetingID  string    `json:"meeting_id"`
	Timestamp  time.Time `json:"timestamp"`
	SampleRate int       `json:"sample_rate"`
	Data       []byte    `json:"data"`
}

// BinaryHeaderSize is the fixed prefix of an encoded chunk:
// capture timestamp (unix microseconds, 8 bytes) + sample rate (4 bytes).
const BinaryHeaderSize = 8 + 4

// Encode serializes the chunk for WebSocket transmission. The meeting id is
// not part of the frame; observers subscribe per meeting.
func (c *Chunk) Encode() []byte {
	buf := make([]byte, BinaryHeaderSize+len(c.Data))
	c.EncodeInto(buf)
	return buf
}

// EncodeInto writes the encoded frame into buf, which must be at least
// BinaryHeaderSize+len(c.Data) bytes. Lets hot paths reuse pooled buffers.
func (c *Chunk) EncodeInto(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.Timestamp.UnixMicro()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.SampleRate))
	copy(buf[BinaryHeaderSize:], c.Data)
}

// Duration reports how much audio the chunk carries, assuming mono S16LE.
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}
