package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxnotes/meetingbot/pkg/bot"
	"github.com/voxnotes/meetingbot/pkg/log"
	"github.com/voxnotes/meetingbot/pkg/platform"
	"github.com/voxnotes/meetingbot/pkg/relay"
)

// MeetingManager is the slice of the orchestrator the API layer uses.
type MeetingManager interface {
	RequestJoin(ctx context.Context, req bot.JoinRequest) (bot.Summary, error)
	RequestLeave(meetingID string) error
	ListActive() []bot.Summary
	GetSession(meetingID string) (bot.Summary, relay.Stats, error)
	ScheduleJoin(req bot.JoinRequest, at time.Time) (bot.ScheduleAck, error)
	GetMeetingCount() int
}

// HTTPServer handles REST API requests
type HTTPServer struct {
	manager  MeetingManager
	wsServer *WebSocketServer
	router   *mux.Router
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(manager MeetingManager, wsServer *WebSocketServer) *HTTPServer {
	server := &HTTPServer{
		manager:  manager,
		wsServer: wsServer,
		router:   mux.NewRouter(),
	}
	server.registerRoutes()
	return server
}

// ServeHTTP implements the http.Handler interface
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Infof("Received request: %s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the API routes
func (s *HTTPServer) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router.HandleFunc("/api/meetings", s.handleJoinMeeting).Methods(http.MethodPost)
	s.router.HandleFunc("/api/meetings", s.handleListMeetings).Methods(http.MethodGet)
	s.router.HandleFunc("/api/meetings/{meeting_id}", s.handleGetMeetingStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/meetings/{meeting_id}", s.handleLeaveMeeting).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/schedules", s.handleScheduleMeeting).Methods(http.MethodPost)

	if s.wsServer != nil {
		s.router.HandleFunc("/ws/audio/{meeting_id}", s.wsServer.HandleConnection)
	}
}

// ScheduleRequest is the request body for a deferred join.
type ScheduleRequest struct {
	bot.JoinRequest
	ScheduledTime time.Time `json:"scheduled_time"`
}

// handleJoinMeeting handles joining a new meeting
func (s *HTTPServer) handleJoinMeeting(w http.ResponseWriter, r *http.Request) {
	var req bot.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MeetingURL == "" {
		writeJSONError(w, http.StatusBadRequest, "meeting_url is required")
		return
	}

	summary, err := s.manager.RequestJoin(r.Context(), req)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// handleListMeetings handles listing all meetings
func (s *HTTPServer) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListActive())
}

// handleGetMeetingStatus handles getting a single meeting's status
func (s *HTTPServer) handleGetMeetingStatus(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["meeting_id"]

	summary, stats, err := s.manager.GetSession(meetingID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"meeting_id": summary.MeetingID,
		"platform":   summary.Platform,
		"status":     summary.Status,
		"start_time": summary.StartTime,
		"relay":      stats,
	})
}

// handleLeaveMeeting handles leaving a meeting
func (s *HTTPServer) handleLeaveMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["meeting_id"]

	if err := s.manager.RequestLeave(meetingID); err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// handleScheduleMeeting handles registering a deferred join
func (s *HTTPServer) handleScheduleMeeting(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MeetingURL == "" {
		writeJSONError(w, http.StatusBadRequest, "meeting_url is required")
		return
	}
	if req.ScheduledTime.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "scheduled_time is required")
		return
	}

	ack, err := s.manager.ScheduleJoin(req.JoinRequest, req.ScheduledTime)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ack)
}

// handleHealth returns health status for the process manager
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"meeting_count": s.manager.GetMeetingCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeMappedError translates orchestrator errors into API status codes.
func writeMappedError(w http.ResponseWriter, err error) {
	var stepErr *platform.StepError

	switch {
	case errors.Is(err, bot.ErrUnsupportedPlatform), errors.Is(err, bot.ErrPastSchedule):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bot.ErrDuplicateSession):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, bot.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stepErr):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
