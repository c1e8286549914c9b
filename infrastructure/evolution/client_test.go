package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

// newProvider starts a fake provider answering with handler and records every request.
func newProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recordedRequest) {
	t.Helper()
	var calls []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, APIKey: r.Header.Get("apikey")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.Body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key"})
	require.NoError(t, err)
	return client, &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewClient_MissingConfigIsConfigurationError(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://evo.example.com"})
	var cfgErr pkgError.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	_, err = NewClient(Config{APIKey: "k"})
	require.True(t, errors.As(err, &cfgErr))
}

func TestCreateOrConnectInstance_ReturnsQRFromCreate(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"instance":{"instanceName":"crm-demo","status":"connecting"},"qrcode":{"code":"2@abc","base64":"data:image/png;base64,AAAA"}}`)
	})

	res, err := client.CreateOrConnectInstance(context.Background(), "crm-demo")
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, res.Status)
	assert.Equal(t, "data:image/png;base64,AAAA", res.QRCode)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/instance/create", call.Path)
	assert.Equal(t, "test-key", call.APIKey)
	assert.Equal(t, "crm-demo", call.Body["instanceName"])
	assert.Equal(t, true, call.Body["qrcode"])
}

func TestCreateOrConnectInstance_FallsBackToConnectWhenNameTaken(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/instance/create" {
			writeJSON(w, http.StatusForbidden, `{"status":403,"error":"Forbidden","response":{"message":["This name \"crm-demo\" is already in use."]}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"instance":{"instanceName":"crm-demo","state":"open"}}`)
	})

	res, err := client.CreateOrConnectInstance(context.Background(), "crm-demo")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, res.Status)
	assert.Empty(t, res.QRCode)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/instance/connect/crm-demo", (*calls)[1].Path)
}

func TestCreateOrConnectInstance_OtherFailuresAreGatewayErrors(t *testing.T) {
	client, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
	})

	_, err := client.CreateOrConnectInstance(context.Background(), "crm-demo")
	gwErr, ok := pkgError.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, gwErr.ProviderStatus)
	assert.Equal(t, "boom", gwErr.Message)
}

func TestFetchQRCode_NeverFails(t *testing.T) {
	client, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"already connected"}`)
	})
	assert.Equal(t, QRResult{}, client.FetchQRCode(context.Background(), "crm-demo"))
}

func TestFetchQRCode_RendersRawCode(t *testing.T) {
	client, _ := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"pairingCode":"WZYEH1YY","code":"2@raw-code-only","count":1}`)
	})

	res := client.FetchQRCode(context.Background(), "crm-demo")
	assert.True(t, strings.HasPrefix(res.QRCode, pngDataURIPrefix))
	assert.Equal(t, "WZYEH1YY", res.PairingCode)
}

func TestGetConnectionStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   ConnectionStatus
	}{
		{"open with owner", http.StatusOK, `{"instance":{"instanceName":"crm-demo","state":"open","ownerJid":"5511999998888@s.whatsapp.net"}}`,
			ConnectionStatus{State: StateOpen, PhoneNumber: "5511999998888"}},
		{"connecting", http.StatusOK, `{"instance":{"state":"connecting"}}`, ConnectionStatus{State: StateConnecting}},
		{"closed", http.StatusOK, `{"instance":{"state":"close"}}`, ConnectionStatus{State: StateClose}},
		{"not found", http.StatusNotFound, `{"message":"instance does not exist"}`, ConnectionStatus{State: StateClose, ErrorKind: ErrorKindNotFound}},
		{"unauthorized", http.StatusUnauthorized, `{}`, ConnectionStatus{State: StateClose, ErrorKind: ErrorKindError}},
		{"server error", http.StatusBadGateway, `oops`, ConnectionStatus{State: StateClose, ErrorKind: ErrorKindError}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			assert.Equal(t, tc.want, client.GetConnectionStatus(context.Background(), "crm-demo"))
			assert.Equal(t, "/instance/connectionState/crm-demo", (*calls)[0].Path)
		})
	}
}

func TestGetConnectionStatus_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := NewClient(Config{BaseURL: base, APIKey: "k"})
	require.NoError(t, err)

	got := client.GetConnectionStatus(context.Background(), "crm-demo")
	assert.Equal(t, ConnectionStatus{State: StateClose, ErrorKind: ErrorKindError}, got)
	assert.False(t, client.HealthCheck(context.Background()))
}

func TestRegisterWebhook(t *testing.T) {
	var hits int32
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusCreated, `{}`)
	})
	ctx := context.Background()

	for _, loopback := range []string{"http://localhost:3000/webhooks/evolution", "http://127.0.0.1/webhooks/evolution", "http://[::1]:8080/x"} {
		require.NoError(t, client.RegisterWebhook(ctx, loopback, "crm-demo"))
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits), "loopback URLs must not reach the provider")

	require.NoError(t, client.RegisterWebhook(ctx, "https://crm.example.com/webhooks/evolution", "crm-demo"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "/webhook/set/crm-demo", (*calls)[0].Path)
	hook := (*calls)[0].Body["webhook"].(map[string]any)
	assert.Equal(t, "https://crm.example.com/webhooks/evolution", hook["url"])
	assert.Equal(t, true, hook["enabled"])
}

func TestSendText_NormalizesNumberAndParsesKey(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"key":{"remoteJid":"5511999998888@s.whatsapp.net","fromMe":true,"id":"BAE5"},"status":"PENDING","messageTimestamp":"1717000000"}`)
	})

	res, err := client.SendText(context.Background(), "crm-demo", SendTextRequest{Number: "5511999998888@s.whatsapp.net", Text: "Olá"})
	require.NoError(t, err)
	assert.Equal(t, "BAE5", res.MessageID)
	assert.Equal(t, int64(1717000000), res.Timestamp)

	call := (*calls)[0]
	assert.Equal(t, "/message/sendText/crm-demo", call.Path)
	assert.Equal(t, "5511999998888", call.Body["number"])
	assert.Equal(t, "Olá", call.Body["text"])
}

func TestSendMedia(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"key":{"id":"IMG1"}}`)
	})

	res, err := client.SendMedia(context.Background(), "crm-demo", SendMediaRequest{
		Number:    "5511999998888:12@s.whatsapp.net",
		MediaType: "image",
		Media:     "https://cdn.example.com/a.jpg",
		Caption:   "cardápio",
	})
	require.NoError(t, err)
	assert.Equal(t, "IMG1", res.MessageID)

	call := (*calls)[0]
	assert.Equal(t, "/message/sendMedia/crm-demo", call.Path)
	assert.Equal(t, "image", call.Body["mediatype"])
	assert.Equal(t, "cardápio", call.Body["caption"])
}

func TestSendButtons_DefaultsButtonType(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"key":{"id":"BTN1"}}`)
	})

	_, err := client.SendButtons(context.Background(), "crm-demo", SendButtonsRequest{
		Number:  "5511999998888",
		Title:   "Confirmar?",
		Buttons: []Button{{DisplayText: "Sim", ID: "yes"}},
	})
	require.NoError(t, err)

	buttons := (*calls)[0].Body["buttons"].([]any)
	assert.Equal(t, "reply", buttons[0].(map[string]any)["type"])
}

func TestLogoutAndDelete_PropagateGatewayErrors(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"not found"}`)
	})
	ctx := context.Background()

	err := client.Logout(ctx, "crm-demo")
	gwErr, ok := pkgError.AsGatewayError(err)
	require.True(t, ok)
	assert.True(t, gwErr.IsNotFound())

	require.Error(t, client.DeleteInstance(ctx, "crm-demo"))
	assert.Equal(t, http.MethodDelete, (*calls)[0].Method)
	assert.Equal(t, "/instance/logout/crm-demo", (*calls)[0].Path)
	assert.Equal(t, "/instance/delete/crm-demo", (*calls)[1].Path)
}

func TestChatLookups_UnwrapRecords(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/fetchMessages/crm-demo":
			writeJSON(w, http.StatusOK, `{"messages":{"total":1,"records":[{"id":"m1"}]}}`)
		case "/chat/findChats/crm-demo":
			writeJSON(w, http.StatusOK, `[{"id":"c1"},{"id":"c2"}]`)
		default:
			writeJSON(w, http.StatusOK, `{"contacts":[{"id":"p1"}]}`)
		}
	})
	ctx := context.Background()

	msgs, err := client.FetchMessages(ctx, "crm-demo", "5511999998888@s.whatsapp.net", 20)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Contains(t, (*calls)[0].Query, "limit=20")

	chats, err := client.FindChats(ctx, "crm-demo")
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	contacts, err := client.FindContact(ctx, "crm-demo", "5511999998888@s.whatsapp.net")
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, "number=5511999998888", (*calls)[2].Query)
}

func TestMarkMessageAsRead(t *testing.T) {
	client, calls := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"message":"Read messages","read":"success"}`)
	})

	err := client.MarkMessageAsRead(context.Background(), "crm-demo", MessageKey{RemoteJID: "5511999998888@s.whatsapp.net", ID: "ABC1"})
	require.NoError(t, err)
	assert.Equal(t, "/chat/markMessageAsRead/crm-demo", (*calls)[0].Path)
	assert.Len(t, (*calls)[0].Body["readMessages"], 1)
}
