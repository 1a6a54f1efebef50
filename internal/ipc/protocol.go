package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Commands accepted over the activation endpoint. A second application
// instance uses them to hand its intent to the running instance before
// exiting.
const (
	// CommandActivate restores and focuses the main window.
	CommandActivate = "activate"
	// CommandQuickInput opens the quick input window.
	CommandQuickInput = "quick-input"
)

// Request is a single activation command.
type Request struct {
	Command string `json:"command"`
	// Text optionally pre-fills the quick input field.
	Text string `json:"text,omitempty"`
}

// Response reports whether the running instance accepted the command.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler processes an activation request inside the running instance.
type Handler interface {
	Execute(req Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req Request) Response

// Execute implements Handler.
func (f HandlerFunc) Execute(req Request) Response { return f(req) }

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	if req.Command == "" {
		return Request{}, errors.New("missing command")
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	err := json.Unmarshal(raw, &resp)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// readDelimitedFrame reads one newline-delimited frame. Frames larger than
// maxBytes are rejected; a frame terminated by EOF instead of a newline is
// still accepted.
func readDelimitedFrame(reader *bufio.Reader, maxBytes int) ([]byte, error) {
	raw, err := reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("frame exceeds %d bytes", maxBytes)
	}
	if errors.Is(err, io.EOF) {
		if len(raw) == 0 {
			return nil, io.EOF
		}
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}
