package domain

import "strings"

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindSticker  Kind = "sticker"
	KindUnknown  Kind = "unknown"
)

// MessageContent is the normalized form of an inbound message.
// Text is never empty: it falls back to UnsupportedText.
type MessageContent struct {
	Kind     Kind
	Text     string
	MediaURL string
	Mimetype string
	FileName string
}

// Classify maps the provider payload onto exactly one Kind. Text variants win over
// media, then image, video, audio, document, sticker. mediaURL is the top level
// URL some providers attach when they store media themselves.
func Classify(p *MessagePayload, mediaURL string) MessageContent {
	p = unwrap(p)
	if p == nil {
		return MessageContent{Kind: KindUnknown, Text: UnsupportedText}
	}

	var content MessageContent
	switch {
	case strings.TrimSpace(p.Conversation) != "":
		content = MessageContent{Kind: KindText, Text: p.Conversation}
	case p.ExtendedTextMessage != nil && strings.TrimSpace(p.ExtendedTextMessage.Text) != "":
		content = MessageContent{Kind: KindText, Text: p.ExtendedTextMessage.Text}
	case p.ImageMessage != nil:
		content = fromMedia(KindImage, p.ImageMessage)
	case p.VideoMessage != nil:
		content = fromMedia(KindVideo, p.VideoMessage)
	case p.AudioMessage != nil:
		content = fromMedia(KindAudio, p.AudioMessage)
	case p.DocumentMessage != nil:
		content = fromMedia(KindDocument, p.DocumentMessage)
		if content.Text == "" {
			content.Text = strings.TrimSpace(p.DocumentMessage.FileName)
		}
	case p.StickerMessage != nil:
		content = fromMedia(KindSticker, p.StickerMessage)
	default:
		content = MessageContent{Kind: KindUnknown}
	}

	if mediaURL = strings.TrimSpace(mediaURL); mediaURL != "" && content.Kind != KindText {
		content.MediaURL = mediaURL
	}
	content.Text = strings.TrimSpace(content.Text)
	if content.Text == "" {
		content.Text = UnsupportedText
	}
	return content
}

func fromMedia(kind Kind, m *mediaContent) MessageContent {
	return MessageContent{
		Kind:     kind,
		Text:     m.Caption,
		MediaURL: m.URL,
		Mimetype: m.Mimetype,
		FileName: m.FileName,
	}
}

// unwrap peels ephemeral and document-with-caption envelopes.
func unwrap(p *MessagePayload) *MessagePayload {
	for depth := 0; p != nil && depth < 4; depth++ {
		switch {
		case p.EphemeralMessage != nil && p.EphemeralMessage.Message != nil:
			p = p.EphemeralMessage.Message
		case p.DocumentWithCaptionMessage != nil && p.DocumentWithCaptionMessage.Message != nil:
			p = p.DocumentWithCaptionMessage.Message
		default:
			return p
		}
	}
	return p
}
