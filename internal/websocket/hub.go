package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/mirror"
	"github.com/satriahrh/mirror-of-truth/internal/presenter"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 1024 // 1MB for camera frames

	// Time allowed for a start/stop command to reach the controller.
	commandTimeout = 5 * time.Second

	// Time allowed for a tip to be synthesized and streamed.
	narrationTimeout = 30 * time.Second
)

// ErrHubClosed is returned when a client connects after the hub stopped
var ErrHubClosed = errors.New("websocket hub closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Mirrors builds the controller serving one connected client
type Mirrors interface {
	NewController(sessionID string, camera repositories.Camera) *mirror.Controller
}

// Narrator turns a tip into streamed audio
type Narrator interface {
	Narrate(ctx context.Context, tip string) (contentType string, audio <-chan []byte, err error)
}

// Hub maintains the set of active clients, one per mirror session.
type Hub struct {
	// Registered clients, keyed by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	mirrors   Mirrors
	narrator  Narrator
	catalog   *catalog.Catalog
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. narrator may be nil.
func NewHub(mirrors Mirrors, narrator Narrator, c *catalog.Catalog, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		mirrors:    mirrors,
		narrator:   narrator,
		catalog:    c,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx is cancelled every client is
// disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.sessionID]; ok && old != client {
				h.logger.Info("Session reconnected, closing previous client",
					zap.String("sessionID", client.sessionID))
				old.closeSend()
			}
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
			}
			h.mu.Unlock()
			client.closeSend()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected reports whether a client is attached to sessionID
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and its mirror.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send   chan WriteData
	sendMu sync.Mutex
	closed bool

	sessionID string
	logger    *zap.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	camera     *ClientCamera
	controller *mirror.Controller

	narration atomic.Bool
	narrating atomic.Bool
}

// HandleWebSocketWithAuth upgrades the request for an authenticated session
// and attaches a fresh mirror controller to it.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, sessionID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := hub.newClient(conn, sessionID)

	select {
	case hub.register <- client:
	case <-hub.done:
		client.cancel()
		conn.Close()
		return ErrHubClosed
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.forwardStates()
	go client.readPump()

	return nil
}

func (h *Hub) newClient(conn *websocket.Conn, sessionID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan WriteData, 256),
		sessionID: sessionID,
		logger:    h.logger.With(zap.String("sessionID", sessionID)),
		ctx:       ctx,
		cancel:    cancel,
	}
	client.camera = NewClientCamera(client, client.logger)
	client.controller = h.mirrors.NewController(sessionID, client.camera)
	go client.controller.Run(ctx)
	return client
}

// readPump pumps messages from the websocket connection to the controller.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		<-c.controller.Done()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			c.closeSend()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forwardStates sends every published snapshot to the peer until the
// controller exits.
func (c *Client) forwardStates() {
	states, unsubscribe := c.controller.Subscribe()
	defer unsubscribe()

	var lastTip string
	for state := range states {
		view := presenter.Render(state, c.hub.catalog)
		c.sendJSON(CreateStateMessage(c.sessionID, state, view))

		if state.Tip == lastTip {
			continue
		}
		lastTip = state.Tip
		if state.HasTip() {
			c.maybeNarrate(state.Tip)
		}
	}
}

// processMessage processes incoming JSON messages from the browser
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "Message could not be processed", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ControlMessage:
		c.handleControl(msg.Type)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	case *CameraGrantedMessage:
		c.camera.Granted(msg.Width, msg.Height)
	case *CameraDeniedMessage:
		c.logger.Info("Client camera denied",
			zap.String("reason", msg.Reason),
			zap.String("details", msg.Details))
		c.camera.Denied(msg.Reason)
	case *CameraEndedMessage:
		c.cameraEnded(msg.Reason)
	case *NarrationMessage:
		if msg.Enabled && c.hub.narrator == nil {
			c.sendJSON(CreateErrorMessage("narration_unavailable", "Tip narration is not configured", ""))
			return
		}
		c.narration.Store(msg.Enabled)
		c.logger.Info("Narration toggled", zap.Bool("enabled", msg.Enabled))
	}
}

func (c *Client) handleControl(t MessageType) {
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	var err error
	switch t {
	case MessageTypeStart:
		err = c.controller.Start(ctx)
	case MessageTypeStartDemo:
		err = c.controller.StartDemo(ctx)
	case MessageTypeStop:
		err = c.controller.Stop(ctx)
	}

	switch {
	case err == nil:
	case errors.Is(err, mirror.ErrInvalidTransition):
		c.sendJSON(CreateErrorMessage("invalid_transition",
			"Mirror cannot "+string(t)+" while "+string(c.controller.Snapshot().Mode), ""))
	default:
		c.logger.Warn("Mirror command failed", zap.String("command", string(t)), zap.Error(err))
		c.sendJSON(CreateErrorMessage("command_failed", "Mirror command failed", err.Error()))
	}
}

// cameraEnded falls back to demo mode when the running camera goes away
func (c *Client) cameraEnded(reason string) {
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	c.logger.Info("Client camera ended", zap.String("reason", reason))
	if err := c.controller.CameraLost(ctx, entities.ParseCameraErrorKind(reason)); err != nil {
		c.logger.Warn("Failed to report lost camera", zap.Error(err))
	}
}

// processFrame handles a binary camera frame
func (c *Client) processFrame(data []byte) {
	if len(data) == 0 {
		return
	}
	if !c.camera.PushFrame(data) {
		c.logger.Debug("Dropping frame without an active camera stream", zap.Int("size", len(data)))
	}
}

func (c *Client) maybeNarrate(tip string) {
	if !c.narration.Load() || c.hub.narrator == nil {
		return
	}
	if !c.narrating.CompareAndSwap(false, true) {
		c.logger.Debug("Narration in progress, skipping tip")
		return
	}
	go func() {
		defer c.narrating.Store(false)
		c.narrate(tip)
	}()
}

func (c *Client) narrate(tip string) {
	ctx, cancel := context.WithTimeout(c.ctx, narrationTimeout)
	defer cancel()

	contentType, audio, err := c.hub.narrator.Narrate(ctx, tip)
	if err != nil {
		c.logger.Warn("Failed to narrate tip", zap.Error(err))
		c.sendJSON(CreateErrorMessage("narration_failed", "Tip could not be narrated", err.Error()))
		return
	}

	c.sendJSON(&TipAudioStartMessage{
		BaseMessage: newBase(MessageTypeTipAudioStart),
		Tip:         tip,
		ContentType: contentType,
	})
	total := 0
	for chunk := range audio {
		total += len(chunk)
		c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: chunk})
	}
	c.sendJSON(&TipAudioEndMessage{
		BaseMessage: newBase(MessageTypeTipAudioEnd),
		Bytes:       total,
	})

	c.logger.Debug("Tip narrated", zap.Int("bytes", total))
}

func (c *Client) sendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return false
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// enqueue never blocks: a full buffer drops the message
func (c *Client) enqueue(msg WriteData) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("Send buffer full, dropping message", zap.Int("type", msg.Type))
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// State returns the mirror state of a connected session
func (h *Hub) State(sessionID string) (entities.MirrorState, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[sessionID]
	if !ok {
		return entities.MirrorState{}, false
	}
	return client.controller.Snapshot(), true
}
