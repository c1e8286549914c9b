package evolution

import "strings"

// ConnectionState is the provider session state, normalized to three values.
type ConnectionState string

const (
	StateOpen       ConnectionState = "open"
	StateClose      ConnectionState = "close"
	StateConnecting ConnectionState = "connecting"
)

// ErrorKind explains why a status probe reported close.
type ErrorKind string

const (
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindError    ErrorKind = "error"
)

// InstanceResult is what create-or-connect yields.
type InstanceResult struct {
	Status      ConnectionState `json:"status"`
	QRCode      string          `json:"qrcode,omitempty"`
	PairingCode string          `json:"pairing_code,omitempty"`
}

type QRResult struct {
	QRCode      string `json:"qrcode,omitempty"`
	PairingCode string `json:"pairing_code,omitempty"`
}

type ConnectionStatus struct {
	State       ConnectionState `json:"state"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
}

type SendTextRequest struct {
	Number      string `json:"number"`
	Text        string `json:"text"`
	Delay       int    `json:"delay,omitempty"`
	LinkPreview bool   `json:"linkPreview,omitempty"`
}

// SendMediaRequest.Media is either a public URL or base64 content.
type SendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"` // image, video, audio, document
	Mimetype  string `json:"mimetype,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
}

type Button struct {
	Type        string `json:"type"`
	DisplayText string `json:"displayText"`
	ID          string `json:"id,omitempty"`
}

type SendButtonsRequest struct {
	Number      string   `json:"number"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Footer      string   `json:"footer,omitempty"`
	Buttons     []Button `json:"buttons"`
}

type SendResult struct {
	MessageID string `json:"message_id"`
	RemoteJID string `json:"remote_jid"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// WebhookEvents are the provider events the CRM subscribes to.
var WebhookEvents = []string{
	"MESSAGES_UPSERT",
	"MESSAGES_UPDATE",
	"CONNECTION_UPDATE",
	"QRCODE_UPDATED",
}

func normalizeState(raw string) ConnectionState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "connected":
		return StateOpen
	case "connecting", "qrcode":
		return StateConnecting
	default:
		return StateClose
	}
}

// NormalizeState maps any provider spelling of a session state onto open, close or connecting.
func NormalizeState(raw string) ConnectionState {
	return normalizeState(raw)
}
