package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/satriahrh/mirror-of-truth/internal/api"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/presenter"
	ws "github.com/satriahrh/mirror-of-truth/internal/websocket"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check a running mirror server end to end",
	Long: `Create a session on a running server, connect to its websocket, run the
mirror in demo mode for a while and print every state it reports.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().String("url", "http://localhost:8080", "Base URL of the mirror server")
	probeCmd.Flags().Duration("duration", 10*time.Second, "How long to watch demo mode")
}

func runProbe(cmd *cobra.Command, args []string) error {
	serverURL := strings.TrimRight(mustGetString(cmd, "url"), "/")
	duration := mustGetDuration(cmd, "duration")
	out := cmd.OutOrStdout()

	// Step 1: Create a session
	resp, err := http.Post(serverURL+"/api/v1/sessions", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("session request failed with status %d", resp.StatusCode)
	}
	var session api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("failed to decode session response: %w", err)
	}
	fmt.Fprintf(out, "✓ Session %s created\n", session.SessionID)

	// Step 2: Connect to WebSocket with token
	wsURL, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"
	q := wsURL.Query()
	q.Set("token", session.Token)
	wsURL.RawQuery = q.Encode()

	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		if wsResp != nil {
			return fmt.Errorf("websocket connection failed with status %d: %w", wsResp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer conn.Close()
	fmt.Fprintln(out, "✓ WebSocket connected")

	// Step 3: Ping, then watch demo mode
	for _, msg := range []ws.MessageType{ws.MessageTypePing, ws.MessageTypeStartDemo} {
		if err := conn.WriteJSON(map[string]string{"type": string(msg)}); err != nil {
			return fmt.Errorf("failed to send %s: %w", msg, err)
		}
	}

	terminal := presenter.NewTerminal(out, catalog.MustDefault())
	deadline := time.Now().Add(duration)
	states, pong := 0, false
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				break
			}
			return fmt.Errorf("failed to read message: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			return fmt.Errorf("server sent invalid JSON: %w", err)
		}
		switch base.Type {
		case ws.MessageTypePong:
			pong = true
		case ws.MessageTypeState:
			var msg ws.StateMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return fmt.Errorf("failed to decode state: %w", err)
			}
			states++
			if err := terminal.Show(msg.State); err != nil {
				return err
			}
		case ws.MessageTypeError:
			fmt.Fprintf(out, "! server error: %s\n", data)
		}
	}

	// Step 4: Stop the mirror
	if err := conn.WriteJSON(map[string]string{"type": string(ws.MessageTypeStop)}); err != nil {
		return fmt.Errorf("failed to send stop: %w", err)
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	if !pong {
		return fmt.Errorf("no pong received within %s", duration)
	}
	if states == 0 {
		return fmt.Errorf("no state received within %s", duration)
	}
	fmt.Fprintf(out, "✓ Received %d states\n", states)
	return nil
}
