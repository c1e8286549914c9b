package utils

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// PhoneFromJID strips the provider domain (and device suffix) from a WhatsApp JID.
// "5511999998888@s.whatsapp.net" -> "5511999998888".
func PhoneFromJID(jid string) string {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return ""
	}
	if parsed, err := types.ParseJID(jid); err == nil && parsed.User != "" {
		return parsed.User
	}
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

// IsGroupJID reports whether jid belongs to a group chat.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@"+types.GroupServer)
}

// IsBroadcastJID reports status updates and broadcast lists.
func IsBroadcastJID(jid string) bool {
	return strings.HasSuffix(jid, "@"+types.BroadcastServer)
}

// NormalizePhone keeps only digits, so "+55 (11) 99999-8888" and a full JID
// both become "5511999998888".
func NormalizePhone(raw string) string {
	if strings.Contains(raw, "@") {
		raw = PhoneFromJID(raw)
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}
