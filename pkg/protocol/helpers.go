package protocol

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/features"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFeaturesMessage creates a features message
func NewFeaturesMessage(f features.Frame, frame int64) (*Message, error) {
	return NewMessage(TypeFeatures, FeaturesData{Frame: f, Number: frame})
}

// NewMicMessage creates a microphone audio message
func NewMicMessage(pcmData []byte, sampleRate int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(pcmData),
	})
}

// NewPendingMessage creates a transcript message
func NewPendingMessage(msg avatar.PendingMessage) (*Message, error) {
	return NewMessage(TypePending, msg)
}

// NewSessionMessage creates a session announcement
func NewSessionMessage(id, preset string, frameRate int) (*Message, error) {
	return NewMessage(TypeSession, SessionData{ID: id, Preset: preset, FrameRate: frameRate})
}

// NewFrameMessage creates a per-tick frame message
func NewFrameMessage(session string, out avatar.FrameOutput) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{Session: session, FrameOutput: out})
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Code: code, Message: message})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFeaturesData extracts features from a message
func (m *Message) GetFeaturesData() (*FeaturesData, error) {
	var data FeaturesData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMicData extracts mic data from a message
func (m *Message) GetMicData() (*MicData, error) {
	var data MicData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeMicData decodes the base64 audio data
func (mic *MicData) DecodeMicData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// Samples decodes the audio into PCM16 samples
func (mic *MicData) Samples() ([]int16, error) {
	raw, err := mic.DecodeMicData()
	if err != nil {
		return nil, err
	}
	return features.BytesToSamples(raw), nil
}

// GetPendingData extracts a transcript line from a message
func (m *Message) GetPendingData() (*PendingData, error) {
	var data PendingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConfigData extracts a preset selection from a message
func (m *Message) GetConfigData() (*ConfigData, error) {
	var data ConfigData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionData extracts session info from a message
func (m *Message) GetSessionData() (*SessionData, error) {
	var data SessionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame output from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error details from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
