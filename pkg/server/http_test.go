package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voxnotes/meetingbot/pkg/bot"
	"github.com/voxnotes/meetingbot/pkg/browser"
	"github.com/voxnotes/meetingbot/pkg/platform"
	"github.com/voxnotes/meetingbot/pkg/relay"
)

// stubManager scripts orchestrator behaviour per test.
type stubManager struct {
	joinErr     error
	leaveErr    error
	scheduleErr error
	sessions    []bot.Summary
	stats       relay.Stats

	joined    []bot.JoinRequest
	left      []string
	scheduled []time.Time
}

func (m *stubManager) RequestJoin(ctx context.Context, req bot.JoinRequest) (bot.Summary, error) {
	m.joined = append(m.joined, req)
	if m.joinErr != nil {
		return bot.Summary{}, m.joinErr
	}
	return bot.Summary{
		MeetingID: "123456789",
		Platform:  platform.Zoom,
		StartTime: time.Now(),
		Status:    "active",
	}, nil
}

func (m *stubManager) RequestLeave(meetingID string) error {
	m.left = append(m.left, meetingID)
	return m.leaveErr
}

func (m *stubManager) ListActive() []bot.Summary {
	return m.sessions
}

func (m *stubManager) GetSession(meetingID string) (bot.Summary, relay.Stats, error) {
	for _, s := range m.sessions {
		if s.MeetingID == meetingID {
			return s, m.stats, nil
		}
	}
	return bot.Summary{}, relay.Stats{}, fmt.Errorf("meeting %s: %w", meetingID, bot.ErrSessionNotFound)
}

func (m *stubManager) ScheduleJoin(req bot.JoinRequest, at time.Time) (bot.ScheduleAck, error) {
	m.scheduled = append(m.scheduled, at)
	if m.scheduleErr != nil {
		return bot.ScheduleAck{}, m.scheduleErr
	}
	return bot.ScheduleAck{MeetingID: "123456789", Platform: platform.Zoom, ScheduledTime: at}, nil
}

func (m *stubManager) GetMeetingCount() int {
	return len(m.sessions)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestJoinMeeting(t *testing.T) {
	m := &stubManager{}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/meetings", bot.JoinRequest{
		Platform:   "zoom",
		MeetingURL: "https://zoom.us/j/123456789",
		Password:   "pw",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var summary bot.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if summary.MeetingID != "123456789" || summary.Status != "active" {
		t.Errorf("summary = %+v", summary)
	}

	if len(m.joined) != 1 || m.joined[0].Password != "pw" {
		t.Errorf("manager received %+v", m.joined)
	}
}

func TestJoinMeeting_BadBody(t *testing.T) {
	srv := NewHTTPServer(&stubManager{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/meetings", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestJoinMeeting_MissingURL(t *testing.T) {
	srv := NewHTTPServer(&stubManager{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/meetings", bot.JoinRequest{Platform: "zoom"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestJoinMeeting_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"unsupported platform", fmt.Errorf("platform %q: %w", "webex", bot.ErrUnsupportedPlatform), http.StatusBadRequest},
		{"duplicate", fmt.Errorf("meeting 1: %w", bot.ErrDuplicateSession), http.StatusConflict},
		{"step timeout", &platform.StepError{
			Platform: platform.Zoom,
			Step:     "join_button",
			Timeout:  true,
			Err:      browser.ErrElementTimeout,
		}, http.StatusBadGateway},
		{"cancelled during join", fmt.Errorf("meeting 1: %w", bot.ErrSessionNotFound), http.StatusNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			srv := NewHTTPServer(&stubManager{joinErr: test.err}, nil)

			rec := doRequest(t, srv, http.MethodPost, "/api/meetings", bot.JoinRequest{
				Platform:   "zoom",
				MeetingURL: "https://zoom.us/j/1",
			})
			if rec.Code != test.expected {
				t.Errorf("status = %d, want %d", rec.Code, test.expected)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error("error body missing message")
			}
		})
	}
}

func TestListMeetings(t *testing.T) {
	m := &stubManager{sessions: []bot.Summary{
		{MeetingID: "123456789", Platform: platform.Zoom, Status: "active", StartTime: time.Now()},
		{MeetingID: "abc-defg-hij", Platform: platform.GoogleMeet, Status: "joining", StartTime: time.Now()},
	}}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/meetings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var list []bot.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d summaries, want 2", len(list))
	}
}

func TestGetMeetingStatus(t *testing.T) {
	m := &stubManager{
		sessions: []bot.Summary{
			{MeetingID: "123456789", Platform: platform.Zoom, Status: "active", StartTime: time.Now()},
		},
		stats: relay.Stats{ChunksReceived: 42, ChunksForwarded: 40, ChunksDropped: 2},
	}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/meetings/123456789", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		MeetingID string      `json:"meeting_id"`
		Status    string      `json:"status"`
		Relay     relay.Stats `json:"relay"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.MeetingID != "123456789" || body.Status != "active" {
		t.Errorf("body = %+v", body)
	}
	if body.Relay.ChunksReceived != 42 || body.Relay.ChunksDropped != 2 {
		t.Errorf("relay stats = %+v", body.Relay)
	}
}

func TestGetMeetingStatus_NotFound(t *testing.T) {
	srv := NewHTTPServer(&stubManager{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/meetings/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLeaveMeeting(t *testing.T) {
	m := &stubManager{}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodDelete, "/api/meetings/123456789", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(m.left) != 1 || m.left[0] != "123456789" {
		t.Errorf("manager received %v", m.left)
	}
}

func TestLeaveMeeting_NotFound(t *testing.T) {
	m := &stubManager{leaveErr: fmt.Errorf("meeting x: %w", bot.ErrSessionNotFound)}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodDelete, "/api/meetings/x", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestScheduleMeeting(t *testing.T) {
	m := &stubManager{}
	srv := NewHTTPServer(m, nil)

	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	rec := doRequest(t, srv, http.MethodPost, "/api/schedules", ScheduleRequest{
		JoinRequest:   bot.JoinRequest{Platform: "zoom", MeetingURL: "https://zoom.us/j/123456789"},
		ScheduledTime: at,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var ack bot.ScheduleAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !ack.ScheduledTime.Equal(at) {
		t.Errorf("ack time = %s, want %s", ack.ScheduledTime, at)
	}
	if len(m.scheduled) != 1 {
		t.Errorf("manager received %d schedules, want 1", len(m.scheduled))
	}
}

func TestScheduleMeeting_Validation(t *testing.T) {
	srv := NewHTTPServer(&stubManager{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/schedules", ScheduleRequest{
		JoinRequest: bot.JoinRequest{Platform: "zoom", MeetingURL: "https://zoom.us/j/1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing scheduled_time: status = %d, want 400", rec.Code)
	}

	past := &stubManager{scheduleErr: fmt.Errorf("2020-01-01T00:00:00Z: %w", bot.ErrPastSchedule)}
	srv = NewHTTPServer(past, nil)
	rec = doRequest(t, srv, http.MethodPost, "/api/schedules", ScheduleRequest{
		JoinRequest:   bot.JoinRequest{Platform: "zoom", MeetingURL: "https://zoom.us/j/1"},
		ScheduledTime: time.Now().Add(-time.Hour),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("past schedule: status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	m := &stubManager{sessions: []bot.Summary{{MeetingID: "1"}}}
	srv := NewHTTPServer(m, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status       string `json:"status"`
		MeetingCount int    `json:"meeting_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" || body.MeetingCount != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewHTTPServer(&stubManager{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
