package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestChunk_Encode(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		chunk    Chunk
		wantSize int
	}{
		{
			chunk: Chunk{
				MeetingID:  "123456789",
				Timestamp:  ts,
				SampleRate: 16000,
				Data:       []byte{1, 2, 3, 4, 5},
			},
			wantSize: BinaryHeaderSize + 5,
		},
		{
			chunk: Chunk{
				MeetingID:  "abc-defg-hij",
				Timestamp:  ts,
				SampleRate: 48000,
				Data:       []byte{},
			},
			wantSize: BinaryHeaderSize,
		},
	}

	for i, test := range tests {
		got := test.chunk.Encode()

		if len(got) != test.wantSize {
			t.Errorf("Test %d: len(encoded) = %d, want %d", i, len(got), test.wantSize)
		}

		gotMicros := int64(binary.LittleEndian.Uint64(got[0:8]))
		if gotMicros != test.chunk.Timestamp.UnixMicro() {
			t.Errorf("Test %d: decoded timestamp = %d, want %d", i, gotMicros, test.chunk.Timestamp.UnixMicro())
		}

		gotRate := int(binary.LittleEndian.Uint32(got[8:12]))
		if gotRate != test.chunk.SampleRate {
			t.Errorf("Test %d: decoded sample rate = %d, want %d", i, gotRate, test.chunk.SampleRate)
		}

		if !bytes.Equal(got[BinaryHeaderSize:], test.chunk.Data) {
			t.Errorf("Test %d: decoded data = %v, want %v", i, got[BinaryHeaderSize:], test.chunk.Data)
		}
	}
}

func TestChunk_Duration(t *testing.T) {
	tests := []struct {
		name     string
		chunk    Chunk
		expected time.Duration
	}{
		{"quarter second at 16k", Chunk{SampleRate: 16000, Data: make([]byte, 8192)}, 256 * time.Millisecond},
		{"empty", Chunk{SampleRate: 16000}, 0},
		{"zero rate", Chunk{Data: make([]byte, 8192)}, 0},
	}

	for _, test := range tests {
		if got := test.chunk.Duration(); got != test.expected {
			t.Errorf("%s: Duration() = %v, want %v", test.name, got, test.expected)
		}
	}
}

func TestBus_PublishFiltersByMeeting(t *testing.T) {
	bus := NewBus()

	matched := NewSubscriber("matched", 10)
	matched.SetMeetingFilter("123456789")
	other := NewSubscriber("other", 10)
	other.SetMeetingFilter("999999999")
	all := NewSubscriber("all", 10)

	bus.Subscribe(matched)
	bus.Subscribe(other)
	bus.Subscribe(all)

	chunk := &Chunk{MeetingID: "123456789", Timestamp: time.Now(), SampleRate: 16000, Data: []byte{0, 1}}
	if !bus.Publish(chunk) {
		t.Fatal("Publish returned false with matching subscribers")
	}

	select {
	case got := <-matched.Channel:
		if got.MeetingID != "123456789" {
			t.Errorf("matched subscriber got chunk for meeting %q", got.MeetingID)
		}
	default:
		t.Error("matched subscriber received nothing")
	}

	select {
	case <-other.Channel:
		t.Error("subscriber with different filter received a chunk")
	default:
	}

	select {
	case <-all.Channel:
	default:
		t.Error("unfiltered subscriber received nothing")
	}
}

func TestBus_PublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := NewSubscriber("slow", 1)
	sub.SetMeetingFilter("m1")
	bus.Subscribe(sub)

	chunk := &Chunk{MeetingID: "m1", Data: []byte{1}}
	bus.Publish(chunk)
	bus.Publish(chunk) // channel full, dropped

	stats := bus.GetStats()
	if stats.DroppedChunks != 1 {
		t.Errorf("DroppedChunks = %d, want 1", stats.DroppedChunks)
	}
	if stats.TotalChunks != 2 {
		t.Errorf("TotalChunks = %d, want 2", stats.TotalChunks)
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := NewSubscriber("s1", 1)
	bus.Subscribe(sub)
	bus.Unsubscribe("s1")

	if sub.IsConnected() {
		t.Error("subscriber still connected after Unsubscribe")
	}
	if _, ok := <-sub.Channel; ok {
		t.Error("channel not closed after Unsubscribe")
	}
	if bus.GetSubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", bus.GetSubscriberCount())
	}
}
