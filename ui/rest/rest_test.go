package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	convDomain "github.com/AzielCF/az-crm/conversations/domain"
	"github.com/AzielCF/az-crm/ingestion/domain"
	instanceApp "github.com/AzielCF/az-crm/instances/application"
	instanceDomain "github.com/AzielCF/az-crm/instances/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/msgworker"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/AzielCF/az-crm/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu   sync.Mutex
	seen []*domain.Envelope
	err  error
}

func (f *fakePipeline) Handle(_ context.Context, env *domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, env)
	return f.err
}

type fakeConnections struct {
	connectErr error
	polling    bool
	resetFor   string
}

func (f *fakeConnections) Connect(_ context.Context, tenantID string) (*instanceApp.ConnectResult, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &instanceApp.ConnectResult{
		InstanceID: "crm-" + tenantID,
		Status:     instanceDomain.StatusConnecting,
		QRCode:     "data:image/png;base64,AAAA",
		Polling:    f.polling,
	}, nil
}

func (f *fakeConnections) Status(_ context.Context, tenantID string) (*instanceApp.ConnectionView, error) {
	return &instanceApp.ConnectionView{TenantID: tenantID, Connected: true, ConnectedPhone: "5511999999999"}, nil
}

func (f *fakeConnections) RefreshStatus(_ context.Context, tenantID string) (*instanceApp.ConnectionView, error) {
	return nil, &pkgError.GatewayError{Op: "status", ProviderStatus: 502, Message: "provider down"}
}

func (f *fakeConnections) Reset(_ context.Context, tenantID string) error {
	f.resetFor = tenantID
	return nil
}

type fakeMessages struct {
	sentTo   string
	sentText string
}

func (f *fakeMessages) SendText(_ context.Context, tenantID, phone, text string) (*convDomain.Message, error) {
	f.sentTo, f.sentText = phone, text
	return &convDomain.Message{ID: "m1", TenantID: tenantID, Phone: phone, Text: text, Sender: convDomain.SenderAgent}, nil
}

func (f *fakeMessages) History(_ context.Context, tenantID, clientID string, limit int) ([]*convDomain.Message, error) {
	return []*convDomain.Message{{ID: "m1", TenantID: tenantID, ClientID: clientID, Text: "hola"}}, nil
}

type fakeSwitch struct {
	paused map[string]bool
}

func (f *fakeSwitch) SetAutomationPaused(_ context.Context, tenantID string, paused bool) error {
	if tenantID == "missing" {
		return tenantDomain.ErrTenantNotFound
	}
	f.paused[tenantID] = paused
	return nil
}

type fakeProbe bool

func (p fakeProbe) HealthCheck(context.Context) bool { return bool(p) }

type fakeStats struct{}

func (fakeStats) Stats() msgworker.PoolStats {
	return msgworker.PoolStats{NumWorkers: 4, QueueSize: 100, TotalProcessed: 7}
}

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.Recovery())
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, int((5 * time.Second).Milliseconds()))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestWebhook_Receive(t *testing.T) {
	pipeline := &fakePipeline{}
	app := newTestApp()
	InitRestWebhook(app, pipeline)

	status, body := doJSON(t, app, http.MethodPost, "/webhooks/evolution", map[string]any{
		"event":    "messages.upsert",
		"instance": "crm-demo",
		"data":     map[string]any{"key": map[string]any{"remoteJid": "5511@s.whatsapp.net"}},
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	require.Len(t, pipeline.seen, 1)
	assert.Equal(t, "crm-demo", pipeline.seen[0].Instance)
}

func TestWebhook_MalformedBodyIsDropped(t *testing.T) {
	pipeline := &fakePipeline{}
	app := newTestApp()
	InitRestWebhook(app, pipeline)

	status, body := doJSON(t, app, http.MethodPost, "/webhooks/evolution", "{not json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = doJSON(t, app, http.MethodPost, "/webhooks/evolution", map[string]any{"instance": "crm-demo", "data": map[string]any{}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, pipeline.seen)
}

func TestWebhook_PipelineFailureAsksForRedelivery(t *testing.T) {
	pipeline := &fakePipeline{err: &pkgError.PersistenceError{Op: "save message", Err: errors.New("db down")}}
	app := newTestApp()
	InitRestWebhook(app, pipeline)

	status, body := doJSON(t, app, http.MethodPost, "/webhooks/evolution", map[string]any{"event": "MESSAGES_UPSERT"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "event could not be processed", body["error"])
	assert.NotContains(t, body["error"], "db down")
}

func TestWebhook_Ping(t *testing.T) {
	app := newTestApp()
	InitRestWebhook(app, &fakePipeline{})

	status, body := doJSON(t, app, http.MethodGet, "/webhooks/evolution", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["message"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestWhatsApp_Connect(t *testing.T) {
	app := newTestApp()
	InitRestWhatsApp(app, &fakeConnections{polling: true}, &fakeMessages{}, &fakeSwitch{paused: map[string]bool{}})

	status, body := doJSON(t, app, http.MethodPost, "/tenants/t1/whatsapp/connect", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", body["code"])
	results := body["results"].(map[string]any)
	assert.Equal(t, "crm-t1", results["instance_id"])
	assert.Equal(t, true, results["polling"])
}

func TestWhatsApp_ErrorsAreRenderedByKind(t *testing.T) {
	app := newTestApp()
	InitRestWhatsApp(app, &fakeConnections{connectErr: pkgError.NotFoundError("tenant not found")}, &fakeMessages{}, &fakeSwitch{paused: map[string]bool{}})

	status, body := doJSON(t, app, http.MethodPost, "/tenants/nope/whatsapp/connect", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND_ERROR", body["code"])

	status, body = doJSON(t, app, http.MethodPost, "/tenants/t1/whatsapp/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body["message"], "provider down")
}

func TestWhatsApp_StatusAndReset(t *testing.T) {
	connections := &fakeConnections{}
	app := newTestApp()
	InitRestWhatsApp(app, connections, &fakeMessages{}, &fakeSwitch{paused: map[string]bool{}})

	status, body := doJSON(t, app, http.MethodGet, "/tenants/t1/whatsapp/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["results"].(map[string]any)["connected"])

	status, _ = doJSON(t, app, http.MethodPost, "/tenants/t1/whatsapp/reset", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t1", connections.resetFor)
}

func TestWhatsApp_SendTextValidatesBody(t *testing.T) {
	messages := &fakeMessages{}
	app := newTestApp()
	InitRestWhatsApp(app, &fakeConnections{}, messages, &fakeSwitch{paused: map[string]bool{}})

	status, body := doJSON(t, app, http.MethodPost, "/tenants/t1/whatsapp/send", map[string]any{"phone": "5511999999999"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Empty(t, messages.sentTo)

	status, body = doJSON(t, app, http.MethodPost, "/tenants/t1/whatsapp/send", map[string]any{
		"phone":   "5511999999999",
		"message": "Olá!",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5511999999999", messages.sentTo)
	assert.Equal(t, "Olá!", messages.sentText)
	assert.Equal(t, "agent", body["results"].(map[string]any)["sender"])
}

func TestWhatsApp_AutomationSwitch(t *testing.T) {
	sw := &fakeSwitch{paused: map[string]bool{}}
	app := newTestApp()
	InitRestWhatsApp(app, &fakeConnections{}, &fakeMessages{}, sw)

	status, _ := doJSON(t, app, http.MethodPut, "/tenants/t1/automation", map[string]any{"paused": true})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, sw.paused["t1"])

	status, _ = doJSON(t, app, http.MethodPut, "/tenants/missing/automation", map[string]any{"paused": true})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWhatsApp_History(t *testing.T) {
	app := newTestApp()
	InitRestWhatsApp(app, &fakeConnections{}, &fakeMessages{}, &fakeSwitch{paused: map[string]bool{}})

	status, body := doJSON(t, app, http.MethodGet, "/tenants/t1/clients/c1/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].(map[string]any)["client_id"])
}

func TestHealth(t *testing.T) {
	app := newTestApp()
	InitRestHealth(app, fakeProbe(false), fakeStats{})

	status, body := doJSON(t, app, http.MethodGet, "/health/gateway", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "GATEWAY_UNAVAILABLE", body["code"])

	status, body = doJSON(t, app, http.MethodGet, "/health/automation", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 7, body["total_processed"])

	up := newTestApp()
	InitRestHealth(up, fakeProbe(true), nil)
	status, _ = doJSON(t, up, http.MethodGet, "/health/gateway", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, up, http.MethodGet, "/health/automation", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
