package bridge

import (
	"encoding/json"
	"fmt"
)

// Signal types carried over the bridge. The hosted page script speaks the
// same vocabulary.
const (
	TypeContentNavigate      = "content:navigate"
	TypeContentReady         = "content:ready"
	TypeContentExecute       = "content:execute"
	TypeContentExecuteResult = "content:execute-result"
	TypeSurfaceSync          = "surface:sync"
	TypeSurfaceActivate      = "surface:activate"
	TypeQuickInputSubmit     = "quick-input:submit"
	TypeQuickInputHide       = "quick-input:hide"
	TypeQuickInputCancel     = "quick-input:cancel"
	TypeAuthNavigated        = "auth:navigated"
	TypeError                = "error"
)

// Frame is the JSON envelope every bridge message travels in.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeFrame marshals a typed payload into a wire frame.
func EncodeFrame(frameType string, payload any) ([]byte, error) {
	if frameType == "" {
		return nil, fmt.Errorf("bridge: frame type is empty")
	}
	frame := Frame{Type: frameType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("bridge: marshal %s payload: %w", frameType, err)
		}
		frame.Payload = raw
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal %s frame: %w", frameType, err)
	}
	return data, nil
}

// DecodeFrame parses a wire frame, rejecting envelopes without a type.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("bridge: decode frame: %w", err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("bridge: frame missing type")
	}
	return frame, nil
}
