package evolution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AzielCF/az-crm/pkg/utils"
)

// Chat lookups are passthroughs: the provider's shapes vary across versions, so
// records are returned as raw JSON objects.

func (c *Client) FetchMessages(ctx context.Context, instanceID, remoteJID string, limit int) ([]json.RawMessage, error) {
	query := url.Values{}
	if remoteJID != "" {
		query.Set("remoteJid", remoteJID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var raw json.RawMessage
	if err := c.do(ctx, "fetch messages", http.MethodGet, "/chat/fetchMessages/"+escape(instanceID), query, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapRecords(raw, "messages"), nil
}

func (c *Client) FindChats(ctx context.Context, instanceID string) ([]json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "find chats", http.MethodGet, "/chat/findChats/"+escape(instanceID), nil, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapRecords(raw, "chats"), nil
}

func (c *Client) FindContact(ctx context.Context, instanceID, phone string) ([]json.RawMessage, error) {
	query := url.Values{}
	if phone != "" {
		query.Set("number", utils.PhoneFromJID(phone))
	}

	var raw json.RawMessage
	if err := c.do(ctx, "find contact", http.MethodGet, "/chat/findContact/"+escape(instanceID), query, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapRecords(raw, "contacts"), nil
}

// unwrapRecords accepts either a bare array or {"<key>": {"records": [...]}} / {"<key>": [...]}.
func unwrapRecords(raw json.RawMessage, key string) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(inner, &list); err == nil {
		return list
	}
	var paged struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(inner, &paged); err == nil {
		return paged.Records
	}
	return nil
}
