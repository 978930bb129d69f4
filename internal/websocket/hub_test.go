package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"math/rand/v2"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/adapters/detector"
	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/domain/repositories"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/mirror"
)

type testMirrors struct {
	gate *detector.Gate
	cfg  mirror.Config
}

func (m *testMirrors) NewController(sessionID string, camera repositories.Camera) *mirror.Controller {
	machine := mirror.NewStateMachine(catalog.MustDefault(), rand.New(rand.NewPCG(1, 2)))
	return mirror.NewController(sessionID, machine, camera, m.gate, nil, m.cfg, zap.NewNop())
}

type fakeNarrator struct {
	chunks [][]byte
	tips   chan string
}

func (n *fakeNarrator) Narrate(ctx context.Context, tip string) (string, <-chan []byte, error) {
	select {
	case n.tips <- tip:
	default:
	}
	audio := make(chan []byte, len(n.chunks))
	for _, c := range n.chunks {
		audio <- c
	}
	close(audio)
	return "audio/mpeg", audio, nil
}

type wsMessage struct {
	binary bool
	data   []byte
	fields map[string]interface{}
}

func (m wsMessage) msgType() string {
	if m.fields == nil {
		return ""
	}
	s, _ := m.fields["type"].(string)
	return s
}

func (m wsMessage) state() map[string]interface{} {
	s, _ := m.fields["state"].(map[string]interface{})
	return s
}

type testServer struct {
	hub    *Hub
	server *httptest.Server
	cancel context.CancelFunc
}

func setupTestServer(t *testing.T, narrator Narrator) *testServer {
	t.Helper()
	logger := zap.NewNop()

	gate := detector.NewGate(detector.NewMockDetector(7), time.Second, logger)
	gate.Start(context.Background())

	cfg := mirror.DefaultConfig()
	cfg.LiveInterval = 20 * time.Millisecond
	cfg.DemoInterval = 20 * time.Millisecond
	cfg.AcquireTimeout = 2 * time.Second

	hub := NewHub(&testMirrors{gate: gate, cfg: cfg}, narrator, catalog.MustDefault(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, c.QueryParam("session"), logger)
	})
	server := httptest.NewServer(e)

	ts := &testServer{hub: hub, server: server, cancel: cancel}
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("WebSocket connection failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, pred func(wsMessage) bool) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read message: %v", err)
		}
		msg := wsMessage{binary: messageType == websocket.BinaryMessage, data: data}
		if !msg.binary {
			if err := json.Unmarshal(data, &msg.fields); err != nil {
				t.Fatalf("Invalid JSON from server: %v", err)
			}
		}
		if pred(msg) {
			return msg
		}
	}
}

func byType(want MessageType) func(wsMessage) bool {
	return func(m wsMessage) bool { return m.msgType() == string(want) }
}

func stateWith(pred func(map[string]interface{}) bool) func(wsMessage) bool {
	return func(m wsMessage) bool {
		return m.msgType() == string(MessageTypeState) && pred(m.state())
	}
}

func modeIs(mode entities.Mode) func(map[string]interface{}) bool {
	return func(s map[string]interface{}) bool { return s["mode"] == string(mode) }
}

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48)), nil); err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	return buf.Bytes()
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&testMirrors{}, nil, catalog.MustDefault(), zap.NewNop())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub register channels not initialized")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", hub.ClientCount())
	}
}

func TestHub_InitialStateAndDemo(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-demo")

	first := readUntil(t, conn, byType(MessageTypeState))
	if first.state()["mode"] != string(entities.ModeOff) {
		t.Errorf("Expected initial mode off, got %v", first.state()["mode"])
	}
	if view := first.fields["view"].(map[string]interface{}); view["status"] != "Start your mirror to begin emotion detection" {
		t.Errorf("Unexpected initial status %v", view["status"])
	}

	sendJSON(t, conn, map[string]string{"type": "start_demo"})
	committed := readUntil(t, conn, stateWith(func(s map[string]interface{}) bool {
		commits, _ := s["commits"].(float64)
		return s["mode"] == string(entities.ModeDemo) && commits > 0
	}))
	confidence := committed.state()["confidence"].(float64)
	if confidence < 0.6 || confidence > 1.0 {
		t.Errorf("Demo confidence %f out of range", confidence)
	}

	if state, ok := ts.hub.State("session-demo"); !ok || state.Mode != entities.ModeDemo {
		t.Errorf("Expected hub to report demo mode, got %v (%v)", state.Mode, ok)
	}

	sendJSON(t, conn, map[string]string{"type": "start"})
	errMsg := readUntil(t, conn, byType(MessageTypeError))
	if errMsg.fields["error_code"] != "invalid_transition" {
		t.Errorf("Expected invalid_transition, got %v", errMsg.fields["error_code"])
	}

	sendJSON(t, conn, map[string]string{"type": "stop"})
	readUntil(t, conn, stateWith(modeIs(entities.ModeOff)))
}

func TestHub_LiveCameraFlow(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-live")

	sendJSON(t, conn, map[string]string{"type": "start"})
	request := readUntil(t, conn, byType(MessageTypeCameraRequest))
	if request.fields["width"] != float64(640) || request.fields["height"] != float64(480) {
		t.Errorf("Expected a 640x480 request, got %v", request.fields)
	}

	sendJSON(t, conn, map[string]interface{}{"type": "camera_granted", "width": 640, "height": 480})
	readUntil(t, conn, stateWith(modeIs(entities.ModeLive)))

	if err := conn.WriteMessage(websocket.BinaryMessage, jpegFrame(t)); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}
	readUntil(t, conn, stateWith(func(s map[string]interface{}) bool {
		commits, _ := s["commits"].(float64)
		return s["mode"] == string(entities.ModeLive) && commits > 0 && s["face_present"] == true
	}))

	sendJSON(t, conn, map[string]string{"type": "stop"})
	readUntil(t, conn, byType(MessageTypeCameraRelease))
}

func TestHub_CameraDeniedFallsBackToDemo(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-denied")

	sendJSON(t, conn, map[string]string{"type": "start"})
	readUntil(t, conn, byType(MessageTypeCameraRequest))

	sendJSON(t, conn, map[string]string{"type": "camera_denied", "reason": "permission"})
	demo := readUntil(t, conn, stateWith(modeIs(entities.ModeDemo)))
	if demo.state()["last_error"] != "permission" {
		t.Errorf("Expected last_error permission, got %v", demo.state()["last_error"])
	}
	view := demo.fields["view"].(map[string]interface{})
	if notice, _ := view["notice"].(string); notice == "" {
		t.Error("Expected a notice for the camera failure")
	}
}

func TestHub_CameraEndedFallsBackToDemo(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-ended")

	sendJSON(t, conn, map[string]string{"type": "start"})
	readUntil(t, conn, byType(MessageTypeCameraRequest))
	sendJSON(t, conn, map[string]interface{}{"type": "camera_granted", "width": 640, "height": 480})
	readUntil(t, conn, stateWith(modeIs(entities.ModeLive)))

	sendJSON(t, conn, map[string]string{"type": "camera_ended"})
	readUntil(t, conn, byType(MessageTypeCameraRelease))
	demo := readUntil(t, conn, stateWith(modeIs(entities.ModeDemo)))
	if demo.state()["last_error"] != "device" {
		t.Errorf("Expected last_error device, got %v", demo.state()["last_error"])
	}
	if demo.state()["camera_active"] != false {
		t.Error("Expected the camera to be inactive")
	}
}

func TestHub_PingAndInvalidMessages(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-ping")

	sendJSON(t, conn, map[string]string{"type": "ping", "data": "test-ping"})
	pong := readUntil(t, conn, byType(MessageTypePong))
	if pong.fields["data"] != "test-ping" {
		t.Errorf("Expected pong data test-ping, got %v", pong.fields["data"])
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{invalid json}`)); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
	errMsg := readUntil(t, conn, byType(MessageTypeError))
	if errMsg.fields["error_code"] != "invalid_message" {
		t.Errorf("Expected invalid_message, got %v", errMsg.fields["error_code"])
	}

	sendJSON(t, conn, map[string]interface{}{"type": "narration", "enabled": true})
	unavailable := readUntil(t, conn, byType(MessageTypeError))
	if unavailable.fields["error_code"] != "narration_unavailable" {
		t.Errorf("Expected narration_unavailable, got %v", unavailable.fields["error_code"])
	}
}

func TestHub_NarratesTips(t *testing.T) {
	narrator := &fakeNarrator{
		chunks: [][]byte{[]byte("ID3"), []byte("audio")},
		tips:   make(chan string, 16),
	}
	ts := setupTestServer(t, narrator)
	conn := ts.dial(t, "session-voice")

	sendJSON(t, conn, map[string]interface{}{"type": "narration", "enabled": true})
	sendJSON(t, conn, map[string]string{"type": "start_demo"})

	start := readUntil(t, conn, byType(MessageTypeTipAudioStart))
	if start.fields["content_type"] != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %v", start.fields["content_type"])
	}
	if tip, _ := start.fields["tip"].(string); tip == "" {
		t.Error("Expected the narrated tip in tip_audio_start")
	}

	var audio []byte
	end := readUntil(t, conn, func(m wsMessage) bool {
		if m.binary {
			audio = append(audio, m.data...)
			return false
		}
		return m.msgType() == string(MessageTypeTipAudioEnd)
	})
	if string(audio) != "ID3audio" {
		t.Errorf("Expected streamed audio, got %q", audio)
	}
	if end.fields["bytes"] != float64(len("ID3audio")) {
		t.Errorf("Unexpected byte count %v", end.fields["bytes"])
	}
}

func TestHub_ReconnectReplacesClient(t *testing.T) {
	ts := setupTestServer(t, nil)

	first := ts.dial(t, "session-same")
	readUntil(t, first, byType(MessageTypeState))

	second := ts.dial(t, "session-same")
	readUntil(t, second, byType(MessageTypeState))

	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	if ts.hub.ClientCount() != 1 {
		t.Errorf("Expected one client for the session, got %d", ts.hub.ClientCount())
	}

	sendJSON(t, second, map[string]string{"type": "ping"})
	readUntil(t, second, byType(MessageTypePong))
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := ts.dial(t, "session-gone")
	readUntil(t, conn, byType(MessageTypeState))

	if !ts.hub.Connected("session-gone") {
		t.Fatal("Expected session to be connected")
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for ts.hub.Connected("session-gone") {
		if time.Now().After(deadline) {
			t.Fatal("Client was not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
