package evolution

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/AzielCF/az-crm/pkg/utils"
)

type sendResponse struct {
	Key              MessageKey  `json:"key"`
	Status           string      `json:"status"`
	MessageTimestamp json.Number `json:"messageTimestamp"`
}

func (r sendResponse) toResult() SendResult {
	ts, _ := r.MessageTimestamp.Int64()
	return SendResult{
		MessageID: r.Key.ID,
		RemoteJID: r.Key.RemoteJID,
		Status:    r.Status,
		Timestamp: ts,
	}
}

func (c *Client) SendText(ctx context.Context, instanceID string, req SendTextRequest) (SendResult, error) {
	req.Number = utils.PhoneFromJID(req.Number)
	var resp sendResponse
	if err := c.do(ctx, "send text", http.MethodPost, "/message/sendText/"+escape(instanceID), nil, req, &resp); err != nil {
		return SendResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) SendMedia(ctx context.Context, instanceID string, req SendMediaRequest) (SendResult, error) {
	req.Number = utils.PhoneFromJID(req.Number)
	var resp sendResponse
	if err := c.do(ctx, "send media", http.MethodPost, "/message/sendMedia/"+escape(instanceID), nil, req, &resp); err != nil {
		return SendResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) SendButtons(ctx context.Context, instanceID string, req SendButtonsRequest) (SendResult, error) {
	req.Number = utils.PhoneFromJID(req.Number)
	for i := range req.Buttons {
		if req.Buttons[i].Type == "" {
			req.Buttons[i].Type = "reply"
		}
	}
	var resp sendResponse
	if err := c.do(ctx, "send buttons", http.MethodPost, "/message/sendButtons/"+escape(instanceID), nil, req, &resp); err != nil {
		return SendResult{}, err
	}
	return resp.toResult(), nil
}

func (c *Client) MarkMessageAsRead(ctx context.Context, instanceID string, keys ...MessageKey) error {
	body := map[string]any{"readMessages": keys}
	return c.do(ctx, "mark as read", http.MethodPost, "/chat/markMessageAsRead/"+escape(instanceID), nil, body, nil)
}
