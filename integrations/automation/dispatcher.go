package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

// Trigger is the payload posted to the workflow endpoint for each inbound message.
type Trigger struct {
	ConversationID string `json:"conversation_id"`
	Phone          string `json:"phone"`
	Message        string `json:"message"`
	ClientID       string `json:"client_id"`
	TenantID       string `json:"tenant_id"`
	PushName       string `json:"push_name,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	Instance       string `json:"instance,omitempty"`
}

// PauseChecker reports whether a tenant has automation switched off.
type PauseChecker interface {
	IsAutomationPaused(ctx context.Context, tenantID string) (bool, error)
}

type Config struct {
	WorkflowURL string
	Token       string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Dispatcher forwards inbound messages to the external workflow engine.
// Failures are logged and never returned: the message is already stored.
type Dispatcher struct {
	url        string
	token      string
	httpClient *http.Client
	pauses     PauseChecker
}

func NewDispatcher(cfg Config, pauses PauseChecker) *Dispatcher {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Dispatcher{
		url:        strings.TrimSpace(cfg.WorkflowURL),
		token:      cfg.Token,
		httpClient: client,
		pauses:     pauses,
	}
}

// Enabled is false when no workflow URL is configured.
func (d *Dispatcher) Enabled() bool {
	return d.url != ""
}

// Dispatch reports whether the trigger was delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger Trigger) bool {
	log := logrus.WithFields(logrus.Fields{
		"tenant_id":       trigger.TenantID,
		"conversation_id": trigger.ConversationID,
	})

	paused, err := d.pauses.IsAutomationPaused(ctx, trigger.TenantID)
	if err != nil {
		log.WithError(err).Warn("[AUTOMATION] could not read pause flag, skipping dispatch")
		return false
	}
	if paused {
		log.Info("[AUTOMATION] automation paused for tenant, skipping")
		return false
	}

	if !d.Enabled() {
		log.Warn("[AUTOMATION] workflow URL not configured, skipping")
		return false
	}

	if err := d.post(ctx, trigger); err != nil {
		log.WithError(err).Error("[AUTOMATION] dispatch failed")
		return false
	}

	log.Debug("[AUTOMATION] trigger delivered")
	return true
}

// post unifica la creación y ejecución de la petición al workflow.
func (d *Dispatcher) post(ctx context.Context, trigger Trigger) error {
	body, err := json.Marshal(trigger)
	if err != nil {
		return &pkgError.AutomationError{TenantID: trigger.TenantID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return &pkgError.AutomationError{TenantID: trigger.TenantID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &pkgError.AutomationError{TenantID: trigger.TenantID, Err: err}
	}
	defer resp.Body.Close()

	// Only the status matters.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgError.AutomationError{
			TenantID: trigger.TenantID,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}
	return nil
}
