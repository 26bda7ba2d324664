package sse

import (
	"encoding/json"
	"time"
)

// Event types emitted by the stream itself.
const (
	EventTypeConnected = "connected"
	EventTypeError     = "error"
)

// Event is one published message.
type Event struct {
	ID    string    `json:"id,omitempty"`
	Type  string    `json:"type"`
	Topic string    `json:"topic"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

// frame is an encoded event ready to be written to a stream.
type frame struct {
	event string
	data  []byte
}

func encode(e Event) (frame, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return frame{}, err
	}
	return frame{event: e.Type, data: data}, nil
}
