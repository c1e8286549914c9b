package domain

import (
	"context"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("conversation message not found")

type Sender string

const (
	SenderClient Sender = "client"
	SenderAgent  Sender = "agent"
)

// MessageType is the closed set of content kinds a conversation message can carry.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeUnknown  MessageType = "unknown"
)

const StatusRead = "read"

// Message is one entry of a tenant's conversation history with a client.
type Message struct {
	ID                string      `json:"id"`
	TenantID          string      `json:"tenant_id"`
	ClientID          string      `json:"client_id"`
	Phone             string      `json:"phone"`
	Sender            Sender      `json:"sender"`
	Type              MessageType `json:"message_type"`
	Text              string      `json:"text"`
	MediaURL          string      `json:"media_url,omitempty"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	Status            string      `json:"status,omitempty"`
	Read              bool        `json:"read"`
	Timestamp         time.Time   `json:"timestamp"`
	CreatedAt         time.Time   `json:"created_at"`
}

type MessageRepository interface {
	// Save inserts the message. When ProviderMessageID is set and already stored for the
	// tenant, nothing is written, inserted is false and msg.ID is set to the stored row.
	Save(ctx context.Context, msg *Message) (inserted bool, err error)

	// UpdateStatus correlates by provider id. A missing row is not an error.
	UpdateStatus(ctx context.Context, tenantID, providerMessageID, status string, read bool) (updated bool, err error)

	ListByClient(ctx context.Context, tenantID, clientID string, limit int) ([]*Message, error)
}
