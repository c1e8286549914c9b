package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type EventKind string

const (
	EventMessagesUpsert   EventKind = "messages.upsert"
	EventMessagesUpdate   EventKind = "messages.update"
	EventConnectionUpdate EventKind = "connection.update"
	EventQRCodeUpdated    EventKind = "qrcode.updated"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Envelope is the outer body of a provider webhook delivery.
type Envelope struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
	DateTime string          `json:"date_time,omitempty"`
	Sender   string          `json:"sender,omitempty"`
}

// ParseEnvelope decodes a webhook body. An empty event name is malformed.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if strings.TrimSpace(env.Event) == "" {
		return nil, ErrMalformedEvent
	}
	return &env, nil
}

// Kind normalizes "MESSAGES_UPSERT" and "messages.upsert" alike.
func (e *Envelope) Kind() EventKind {
	kind := strings.ToLower(strings.TrimSpace(e.Event))
	return EventKind(strings.ReplaceAll(kind, "_", "."))
}

// Items splits data into individual objects; a batch array yields one entry per element.
func (e *Envelope) Items() []json.RawMessage {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{trimmed}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}
	return items
}
