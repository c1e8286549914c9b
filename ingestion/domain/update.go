package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StatusUpdate is one entry of a messages.update delivery.
type StatusUpdate struct {
	Key       *MessageKey    `json:"key"`
	KeyID     string         `json:"keyId"`
	MessageID string         `json:"messageId"`
	RemoteJID string         `json:"remoteJid"`
	FromMe    bool           `json:"fromMe"`
	Status    DeliveryStatus `json:"status"`
	Update    *struct {
		Status DeliveryStatus `json:"status"`
	} `json:"update"`
}

// ProviderMessageID prefers the key id, which is what messages.upsert stored.
func (u StatusUpdate) ProviderMessageID() string {
	if u.Key != nil && u.Key.ID != "" {
		return u.Key.ID
	}
	if u.KeyID != "" {
		return u.KeyID
	}
	return u.MessageID
}

// Delivery returns the lowercased status and whether it means read.
func (u StatusUpdate) Delivery() (string, bool) {
	status := u.Status
	if status == "" && u.Update != nil {
		status = u.Update.Status
	}
	s := strings.ToLower(string(status))
	return s, s == "read"
}

// DeliveryStatus accepts the string form ("READ") or the numeric ack level.
type DeliveryStatus string

var ackNames = map[int]DeliveryStatus{
	0: "error",
	1: "pending",
	2: "server_ack",
	3: "delivery_ack",
	4: "read",
	5: "played",
}

func (s *DeliveryStatus) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		*s = DeliveryStatus(text)
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		*s = ""
		return nil
	}
	*s = ackNames[n]
	return nil
}

// ConnectionData is the body of connection.update.
type ConnectionData struct {
	State        string `json:"state"`
	StatusReason int    `json:"statusReason"`
	Wuid         string `json:"wuid"`
	ProfileName  string `json:"profileName"`
}

// QRCodeData is the body of qrcode.updated.
type QRCodeData struct {
	QRCode struct {
		Base64      string `json:"base64"`
		Code        string `json:"code"`
		PairingCode string `json:"pairingCode"`
	} `json:"qrcode"`
}
