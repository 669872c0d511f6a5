// Package protocol defines the WebSocket message types exchanged between an
// audio client and the avatar server, and between the server and dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/features"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeFeatures MessageType = "features" // Pre-computed audio features for one tick
	TypeMic      MessageType = "mic"      // Raw microphone audio
	TypePending  MessageType = "message"  // Transcript line waiting to be shown
	TypeClear    MessageType = "clear"    // Drop the pending transcript line
	TypeReset    MessageType = "reset"    // Re-initialize the session's avatar
	TypeConfig   MessageType = "config"   // Switch configuration preset

	// Server → Client messages
	TypeSession MessageType = "session" // Sent once after connect
	TypeFrame   MessageType = "frame"   // Per-tick avatar decision
	TypeError   MessageType = "error"   // Request could not be handled

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// FeaturesData carries one tick of pre-computed features. Frame is optional;
// the server numbers frames itself when it is zero.
type FeaturesData struct {
	features.Frame
	Number int64 `json:"frame,omitempty"`
}

// MicData contains microphone audio
type MicData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 16000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// PendingData is a transcript line. It stays pending for every following
// frame until replaced or cleared.
type PendingData = avatar.PendingMessage

// ConfigData selects a configuration preset for the session.
type ConfigData struct {
	Preset string `json:"preset"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// SessionData describes a newly opened session.
type SessionData struct {
	ID        string `json:"id"`
	Preset    string `json:"preset"`
	FrameRate int    `json:"frame_rate"`
}

// FrameData is the avatar decision for one tick, tagged with its session.
type FrameData struct {
	Session string `json:"session"`
	avatar.FrameOutput
}

// ErrorData describes a rejected request.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadMessage = "bad_message"
	ErrCodeBadAudio   = "bad_audio"
	ErrCodeBadConfig  = "bad_config"
	ErrCodeInternal   = "internal"
)

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
