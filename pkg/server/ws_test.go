package server

import (
	"encoding/binary"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxnotes/meetingbot/pkg/audio"
	"github.com/voxnotes/meetingbot/pkg/config"
)

func wsTestConfig() *config.Config {
	return &config.Config{
		AudioSampleRate: 16000,
		WebSocket: config.WebSocketConfig{
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  30 * time.Second,
			PingInterval: 10 * time.Second,
		},
	}
}

func dialAudioStream(t *testing.T, bus *audio.Bus, meetingID string) (*websocket.Conn, func()) {
	t.Helper()

	ws := NewWebSocketServer(bus, wsTestConfig())
	srv := NewHTTPServer(&stubManager{}, ws)
	httpSrv := httptest.NewServer(srv)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws/audio/" + meetingID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		httpSrv.Close()
		t.Fatalf("dial: %v", err)
	}

	return conn, func() {
		conn.Close()
		httpSrv.Close()
	}
}

func TestWebSocket_AudioFormatFirst(t *testing.T) {
	bus := audio.NewBus()
	conn, done := dialAudioStream(t, bus, "123456789")
	defer done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("first message type = %d, want text", msgType)
	}

	var format AudioFormatMessage
	if err := json.Unmarshal(data, &format); err != nil {
		t.Fatalf("decode format message: %v", err)
	}
	if format.Type != MessageTypeAudioFormat {
		t.Errorf("type = %q, want %q", format.Type, MessageTypeAudioFormat)
	}
	if format.SampleRate != 16000 || format.Channels != 1 || format.SampleFormat != "s16le" {
		t.Errorf("format = %+v", format)
	}
}

func TestWebSocket_StreamsChunksForMeeting(t *testing.T) {
	bus := audio.NewBus()
	conn, done := dialAudioStream(t, bus, "123456789")
	defer done()

	// Consume the leading format message.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read format: %v", err)
	}

	// Wait until the subscriber is registered before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for bus.GetSubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	samples := []byte{0x01, 0x02, 0x03, 0x04}
	bus.Publish(&audio.Chunk{
		MeetingID:  "other-meeting",
		Timestamp:  time.Now(),
		SampleRate: 16000,
		Data:       []byte{0xFF, 0xFF},
	})
	bus.Publish(&audio.Chunk{
		MeetingID:  "123456789",
		Timestamp:  time.Now(),
		SampleRate: 16000,
		Data:       samples,
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", msgType)
	}
	if len(frame) != audio.BinaryHeaderSize+len(samples) {
		t.Fatalf("frame length = %d, want %d", len(frame), audio.BinaryHeaderSize+len(samples))
	}

	rate := binary.LittleEndian.Uint32(frame[8:12])
	if rate != 16000 {
		t.Errorf("frame sample rate = %d, want 16000", rate)
	}
	if got := frame[audio.BinaryHeaderSize:]; string(got) != string(samples) {
		t.Errorf("frame payload = %v, want %v (other meeting's chunk leaked?)", got, samples)
	}
}

func TestWebSocket_ErrorMessageOnBusShutdown(t *testing.T) {
	bus := audio.NewBus()
	conn, done := dialAudioStream(t, bus, "123456789")
	defer done()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read format: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for bus.GetSubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	bus.Shutdown()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read after shutdown: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", msgType)
	}

	var errMsg ErrorMessage
	if err := json.Unmarshal(data, &errMsg); err != nil {
		t.Fatalf("decode error message: %v", err)
	}
	if errMsg.Type != MessageTypeError {
		t.Errorf("type = %q, want %q", errMsg.Type, MessageTypeError)
	}
	if errMsg.Error == "" {
		t.Error("error message missing reason")
	}
}

func TestWebSocket_UnsubscribesOnClose(t *testing.T) {
	bus := audio.NewBus()
	conn, done := dialAudioStream(t, bus, "123456789")
	defer done()

	deadline := time.Now().Add(2 * time.Second)
	for bus.GetSubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bus.GetSubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", bus.GetSubscriberCount())
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for bus.GetSubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bus.GetSubscriberCount() != 0 {
		t.Error("subscriber still registered after disconnect")
	}
}
