package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/mirror-of-truth/domain/entities"
	"github.com/satriahrh/mirror-of-truth/internal/presenter"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types
const (
	MessageTypeStart         MessageType = "start"
	MessageTypeStartDemo     MessageType = "start_demo"
	MessageTypeStop          MessageType = "stop"
	MessageTypePing          MessageType = "ping"
	MessageTypeCameraGranted MessageType = "camera_granted"
	MessageTypeCameraDenied  MessageType = "camera_denied"
	MessageTypeCameraEnded   MessageType = "camera_ended"
	MessageTypeNarration     MessageType = "narration"
)

// Outbound message types
const (
	MessageTypeState         MessageType = "state"
	MessageTypeCameraRequest MessageType = "camera_request"
	MessageTypeCameraRelease MessageType = "camera_release"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
	MessageTypeTipAudioStart MessageType = "tip_audio_start"
	MessageTypeTipAudioEnd   MessageType = "tip_audio_end"
)

// Largest frame dimension a client may report
const maxFrameDimension = 4096

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// ControlMessage is a start, start_demo or stop command
type ControlMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// CameraGrantedMessage reports that the browser opened its camera.
// Width and height are the actual track settings, zero when unknown.
type CameraGrantedMessage struct {
	BaseMessage
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CameraDeniedMessage reports a failed getUserMedia call
type CameraDeniedMessage struct {
	BaseMessage
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// CameraEndedMessage reports that a granted camera stopped on its own,
// e.g. the device was unplugged or the user revoked access
type CameraEndedMessage struct {
	BaseMessage
	Reason string `json:"reason"`
}

// NarrationMessage toggles spoken tips
type NarrationMessage struct {
	BaseMessage
	Enabled bool `json:"enabled"`
}

// StateMessage carries a mirror snapshot and its rendered view
type StateMessage struct {
	BaseMessage
	SessionID string               `json:"session_id"`
	State     entities.MirrorState `json:"state"`
	View      presenter.View       `json:"view"`
}

// CameraRequestMessage asks the browser to open its camera
type CameraRequestMessage struct {
	BaseMessage
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CameraReleaseMessage asks the browser to stop all camera tracks
type CameraReleaseMessage struct {
	BaseMessage
}

// TipAudioStartMessage precedes the binary audio of a spoken tip
type TipAudioStartMessage struct {
	BaseMessage
	Tip         string `json:"tip"`
	ContentType string `json:"content_type"`
}

// TipAudioEndMessage follows the last audio chunk of a spoken tip
type TipAudioEndMessage struct {
	BaseMessage
	Bytes int `json:"bytes"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeStart, MessageTypeStartDemo, MessageTypeStop:
		return &ControlMessage{BaseMessage: base}, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeCameraGranted:
		var msg CameraGrantedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid camera granted message: %w", err)
		}
		if err := v.validateCameraGranted(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeCameraDenied:
		var msg CameraDeniedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid camera denied message: %w", err)
		}
		if msg.Reason == "" {
			msg.Reason = string(entities.CameraErrorUnknown)
		}
		return &msg, nil

	case MessageTypeCameraEnded:
		var msg CameraEndedMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid camera ended message: %w", err)
		}
		if msg.Reason == "" {
			msg.Reason = string(entities.CameraErrorDevice)
		}
		return &msg, nil

	case MessageTypeNarration:
		var msg NarrationMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid narration message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateCameraGranted(msg *CameraGrantedMessage) error {
	if msg.Width < 0 || msg.Width > maxFrameDimension {
		return fmt.Errorf("width must be between 0 and %d", maxFrameDimension)
	}
	if msg.Height < 0 || msg.Height > maxFrameDimension {
		return fmt.Errorf("height must be between 0 and %d", maxFrameDimension)
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateStateMessage wraps a snapshot together with its view
func CreateStateMessage(sessionID string, state entities.MirrorState, view presenter.View) *StateMessage {
	return &StateMessage{
		BaseMessage: newBase(MessageTypeState),
		SessionID:   sessionID,
		State:       state,
		View:        view,
	}
}
