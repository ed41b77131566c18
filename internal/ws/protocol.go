package ws

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoEvent = errors.New("message has no event name")

// WSMessage is the envelope used in both directions.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundMessage keeps the payload raw so the hub can decode it per event.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeMessage(frame []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return inboundMessage{}, err
	}
	msg.Event = strings.TrimSpace(msg.Event)
	if msg.Event == "" {
		return inboundMessage{}, errNoEvent
	}
	return msg, nil
}

func encodeMessage(event string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{Event: event, Data: payload})
}
