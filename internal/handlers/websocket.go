package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every message sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// LogEntry is a log line formatted for the live console
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// WebSocketHandler streams pipeline events and log lines to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	stageThrottler   *rate.Limiter // Rate limiter for pipeline_stage events
	serverInstanceID string        // Unique ID per startup - clients clear state on change
}

// NewWebSocketHandler creates the WebSocket handler and subscribes it to
// the pipeline event bus.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	// Throttlers are only created when explicitly configured. A nil
	// throttler means every event is broadcast.
	if config != nil && len(config.ThrottleIntervals) > 0 {
		if intervalStr, ok := config.ThrottleIntervals["pipeline_stage"]; ok {
			if duration, err := time.ParseDuration(intervalStr); err == nil {
				h.stageThrottler = rate.NewLimiter(rate.Every(duration), 1)
				logger.Debug().
					Str("event_type", "pipeline_stage").
					Str("interval", intervalStr).
					Msg("Throttler initialized for pipeline_stage events")
			} else {
				logger.Warn().
					Err(err).
					Str("interval", intervalStr).
					Msg("Failed to parse pipeline_stage throttle interval - throttler disabled")
			}
		}
	}

	if eventService != nil {
		h.subscribeToPipelineEvents()
	}

	return h
}

// subscribeToPipelineEvents forwards bus events to connected clients
func (h *WebSocketHandler) subscribeToPipelineEvents() {
	forward := func(ctx context.Context, event interfaces.Event) error {
		if event.Type == interfaces.EventPipelineStage && h.stageThrottler != nil && !h.stageThrottler.Allow() {
			return nil
		}
		h.BroadcastEvent(string(event.Type), event.Payload)
		return nil
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventPipelineStarted,
		interfaces.EventPipelineStage,
		interfaces.EventPipelineCompleted,
		interfaces.EventJobApproved,
		interfaces.EventJobRejected,
	} {
		if err := h.eventService.Subscribe(eventType, forward); err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe WebSocket forwarder")
		}
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendHello sends the server instance ID to a newly connected client
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"serverInstanceId": h.serverInstanceID,
			"version":          common.GetVersion(),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello")
		}
	}
}

// BroadcastLog sends a log line to all connected clients.
// NOTE: never log from this path - a log here feeds back through the
// WebSocket writer and loops.
func (h *WebSocketHandler) BroadcastLog(entry LogEntry) {
	h.broadcast(WSMessage{Type: "log", Payload: entry}, true)
}

// BroadcastEvent sends a pipeline event to all connected clients
func (h *WebSocketHandler) BroadcastEvent(eventType string, payload interface{}) {
	h.broadcast(WSMessage{Type: eventType, Payload: payload}, false)
}

func (h *WebSocketHandler) broadcast(msg WSMessage, quiet bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		if !quiet {
			h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		}
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil && !quiet {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
