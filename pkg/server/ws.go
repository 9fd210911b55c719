package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/voxnotes/meetingbot/pkg/audio"
	"github.com/voxnotes/meetingbot/pkg/config"
	"github.com/voxnotes/meetingbot/pkg/log"
)

const clientQueueSize = 256

// WebSocketServer streams captured meeting audio to WebSocket clients
type WebSocketServer struct {
	upgrader     websocket.Upgrader
	audioBus     *audio.Bus
	config       *config.Config
	clients      map[string]*Client
	clientsMutex sync.RWMutex
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(audioBus *audio.Bus, cfg *config.Config) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		audioBus: audioBus,
		config:   cfg,
		clients:  make(map[string]*Client),
	}
}

// HandleConnection handles incoming WebSocket connections
func (s *WebSocketServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	meetingID := mux.Vars(r)["meeting_id"]
	if meetingID == "" {
		http.Error(w, "meeting_id is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	client := NewClient(conn, s.audioBus, s.config)
	s.addClient(client)

	log.Infof("WebSocket client connected: %s for meeting: %s", client.ID, meetingID)

	client.Process(meetingID)

	s.removeClient(client.ID)
	log.Infof("WebSocket client disconnected: %s", client.ID)
}

// CloseAll disconnects every streaming client.
func (s *WebSocketServer) CloseAll() {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()

	for id, client := range s.clients {
		client.conn.Close()
		delete(s.clients, id)
	}
}

// addClient adds a client to the server's list
func (s *WebSocketServer) addClient(client *Client) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	s.clients[client.ID] = client
}

// removeClient removes a client from the server's list
func (s *WebSocketServer) removeClient(clientID string) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	delete(s.clients, clientID)
}

// Client represents a single WebSocket client
type Client struct {
	ID         string
	conn       *websocket.Conn
	audioBus   *audio.Bus
	config     *config.Config
	subscriber *audio.Subscriber
	sendChan   chan interface{} // []byte (JSON) or *audio.Chunk
	stopChan   chan struct{}
}

// NewClient creates a new client
func NewClient(conn *websocket.Conn, audioBus *audio.Bus, cfg *config.Config) *Client {
	return &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		audioBus: audioBus,
		config:   cfg,
		sendChan: make(chan interface{}, clientQueueSize),
		stopChan: make(chan struct{}),
	}
}

// Process subscribes the client to its meeting's audio and pumps chunks
// until the connection drops. Blocks for the lifetime of the connection.
func (c *Client) Process(meetingID string) {
	c.subscriber = audio.NewSubscriber(c.ID, clientQueueSize)
	c.subscriber.SetMeetingFilter(meetingID)
	c.audioBus.Subscribe(c.subscriber)
	defer c.audioBus.Unsubscribe(c.ID)

	go c.writePump()
	go c.readPump()

	formatMsg, err := CreateAudioFormatMessage(c.config.AudioSampleRate)
	if err == nil {
		c.sendChan <- formatMsg
	}

	for chunk := range c.subscriber.Channel {
		select {
		case c.sendChan <- chunk:
		default:
			log.Warnf("Dropping chunk for client %s (send channel full)", c.ID)
		}
	}

	// Subscriber closed out from under the client (bus shutdown or idle
	// sweep); tell the client why before the connection drops.
	if errMsg, err := CreateErrorMessage("audio stream closed", websocket.CloseGoingAway); err == nil {
		select {
		case c.sendChan <- errMsg:
		default:
		}
	}
	close(c.sendChan)
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
		close(c.stopChan)
	}()

	// Ping ticker to keep connection alive
	pingTicker := time.NewTicker(c.config.WebSocket.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case message, ok := <-c.sendChan:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			switch msg := message.(type) {
			case []byte:
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WebSocket.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Errorf("Error writing text message to WebSocket: %v", err)
					return
				}
			case *audio.Chunk:
				// WriteMessage copies the frame to the wire before
				// returning, so a pooled buffer is safe here.
				frame := audio.GetBuffer(audio.BinaryHeaderSize + len(msg.Data))
				msg.EncodeInto(frame)
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WebSocket.WriteTimeout))
				err := c.conn.WriteMessage(websocket.BinaryMessage, frame)
				audio.PutBuffer(frame)
				if err != nil {
					log.Errorf("Error writing audio to WebSocket: %v", err)
					return
				}
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WebSocket.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Errorf("Error sending ping to WebSocket: %v", err)
				return
			}
			log.Debugf("Sent ping to client %s", c.ID)

		case <-c.stopChan:
			return
		}
	}
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.subscriber.Close()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.config.WebSocket.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.WebSocket.ReadTimeout))
		log.Debugf("Received pong from client %s", c.ID)
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket read error: %v", err)
			}
			break
		}
		// Any inbound message resets the deadline, not just pongs.
		c.conn.SetReadDeadline(time.Now().Add(c.config.WebSocket.ReadTimeout))
	}
}
