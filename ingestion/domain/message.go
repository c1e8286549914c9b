package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UnsupportedText stands in for messages with nothing extractable.
const UnsupportedText = "[mensagem não suportada]"

type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

type textContent struct {
	Text string `json:"text"`
}

type mediaContent struct {
	Caption  string `json:"caption"`
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	FileName string `json:"fileName"`
}

// MessagePayload mirrors the provider's "message" object. At most one variant is
// expected; Classify decides which one wins when several are present.
type MessagePayload struct {
	Conversation        string        `json:"conversation"`
	ExtendedTextMessage *textContent  `json:"extendedTextMessage"`
	ImageMessage        *mediaContent `json:"imageMessage"`
	VideoMessage        *mediaContent `json:"videoMessage"`
	AudioMessage        *mediaContent `json:"audioMessage"`
	DocumentMessage     *mediaContent `json:"documentMessage"`
	StickerMessage      *mediaContent `json:"stickerMessage"`

	EphemeralMessage *struct {
		Message *MessagePayload `json:"message"`
	} `json:"ephemeralMessage"`
	DocumentWithCaptionMessage *struct {
		Message *MessagePayload `json:"message"`
	} `json:"documentWithCaptionMessage"`
}

// MessageData is one entry of a messages.upsert delivery.
type MessageData struct {
	Key              MessageKey      `json:"key"`
	PushName         string          `json:"pushName"`
	Message          *MessagePayload `json:"message"`
	MessageType      string          `json:"messageType"`
	MessageTimestamp Timestamp       `json:"messageTimestamp"`
	MediaURL         string          `json:"mediaUrl"`
	Status           string          `json:"status"`
}

// Timestamp accepts epoch seconds as a number, a numeric string, or a protobuf Long object.
type Timestamp int64

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*t = 0
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		var long struct {
			Low  int64 `json:"low"`
			High int64 `json:"high"`
		}
		if err := json.Unmarshal(b, &long); err != nil {
			return err
		}
		*t = Timestamp(long.High<<32 | (long.Low & 0xffffffff))
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*t = 0
		return nil
	}
	*t = Timestamp(int64(n))
	return nil
}

// Time returns the timestamp in UTC, or fallback when it is absent.
func (t Timestamp) Time(fallback time.Time) time.Time {
	if t <= 0 {
		return fallback.UTC()
	}
	return time.Unix(int64(t), 0).UTC()
}
