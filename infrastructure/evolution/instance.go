package evolution

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

type qrPayload struct {
	PairingCode string `json:"pairingCode"`
	Code        string `json:"code"`
	Base64      string `json:"base64"`
	Count       int    `json:"count"`
}

type instanceInfo struct {
	InstanceName string `json:"instanceName"`
	Status       string `json:"status"`
	State        string `json:"state"`
	Owner        string `json:"owner"`
	OwnerJID     string `json:"ownerJid"`
	Number       string `json:"number"`
}

func (i instanceInfo) phone() string {
	for _, candidate := range []string{i.OwnerJID, i.Owner, i.Number} {
		if p := utils.PhoneFromJID(candidate); p != "" {
			return p
		}
	}
	return ""
}

// connectResponse covers both shapes of /instance/connect: a QR payload, or the
// instance block when the session is already open.
type connectResponse struct {
	qrPayload
	Instance *instanceInfo `json:"instance"`
}

type createResponse struct {
	Instance instanceInfo `json:"instance"`
	QRCode   *qrPayload   `json:"qrcode"`
}

// CreateOrConnectInstance creates the instance, or reconnects it when the provider says it already exists.
func (c *Client) CreateOrConnectInstance(ctx context.Context, instanceID string) (InstanceResult, error) {
	body := map[string]any{
		"instanceName": instanceID,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	}

	var created createResponse
	err := c.do(ctx, "create instance", http.MethodPost, "/instance/create", nil, body, &created)
	if err == nil {
		result := InstanceResult{Status: normalizeState(firstNonEmpty(created.Instance.Status, created.Instance.State))}
		if created.QRCode != nil {
			result.QRCode = renderQR(*created.QRCode)
			result.PairingCode = created.QRCode.PairingCode
		}
		return result, nil
	}

	if !isAlreadyExists(err) {
		return InstanceResult{}, err
	}

	logrus.Debugf("[EVOLUTION] instance %s already exists, connecting instead", instanceID)

	var connected connectResponse
	if err := c.do(ctx, "connect instance", http.MethodGet, "/instance/connect/"+escape(instanceID), nil, nil, &connected); err != nil {
		return InstanceResult{}, err
	}
	return connected.toResult(), nil
}

func (r connectResponse) toResult() InstanceResult {
	if r.Instance != nil && normalizeState(firstNonEmpty(r.Instance.State, r.Instance.Status)) == StateOpen {
		return InstanceResult{Status: StateOpen}
	}
	qr := renderQR(r.qrPayload)
	status := StateClose
	if qr != "" {
		status = StateConnecting
	}
	return InstanceResult{Status: status, QRCode: qr, PairingCode: r.PairingCode}
}

// FetchQRCode never fails; providers answer 400 when a session is open or a code was already issued.
func (c *Client) FetchQRCode(ctx context.Context, instanceID string) QRResult {
	var resp connectResponse
	if err := c.do(ctx, "fetch qrcode", http.MethodGet, "/instance/connect/"+escape(instanceID), nil, nil, &resp); err != nil {
		logrus.WithError(err).Debugf("[EVOLUTION] no QR code available for %s", instanceID)
		return QRResult{}
	}
	return QRResult{QRCode: renderQR(resp.qrPayload), PairingCode: resp.PairingCode}
}

// GetConnectionStatus never fails: 404 maps to not_found, anything else to error.
func (c *Client) GetConnectionStatus(ctx context.Context, instanceID string) ConnectionStatus {
	var resp struct {
		Instance instanceInfo `json:"instance"`
		State    string       `json:"state"`
	}
	err := c.do(ctx, "connection state", http.MethodGet, "/instance/connectionState/"+escape(instanceID), nil, nil, &resp)
	if err != nil {
		if gwErr, ok := pkgError.AsGatewayError(err); ok && gwErr.IsNotFound() {
			return ConnectionStatus{State: StateClose, ErrorKind: ErrorKindNotFound}
		}
		logrus.WithError(err).Debugf("[EVOLUTION] status probe failed for %s", instanceID)
		return ConnectionStatus{State: StateClose, ErrorKind: ErrorKindError}
	}

	status := ConnectionStatus{State: normalizeState(firstNonEmpty(resp.Instance.State, resp.State))}
	if status.State == StateOpen {
		status.PhoneNumber = resp.Instance.phone()
	}
	return status
}

func (c *Client) Logout(ctx context.Context, instanceID string) error {
	return c.do(ctx, "logout", http.MethodDelete, "/instance/logout/"+escape(instanceID), nil, nil, nil)
}

func (c *Client) DeleteInstance(ctx context.Context, instanceID string) error {
	return c.do(ctx, "delete instance", http.MethodDelete, "/instance/delete/"+escape(instanceID), nil, nil, nil)
}

// RegisterWebhook points the instance at webhookURL. Loopback URLs are skipped:
// the provider could never reach them.
func (c *Client) RegisterWebhook(ctx context.Context, webhookURL, instanceID string) error {
	if isLoopbackURL(webhookURL) {
		logrus.Infof("[EVOLUTION] skipping webhook registration for %s: %s is not reachable by the provider", instanceID, webhookURL)
		return nil
	}

	body := map[string]any{
		"webhook": map[string]any{
			"enabled":  true,
			"url":      webhookURL,
			"byEvents": false,
			"base64":   false,
			"events":   WebhookEvents,
		},
	}
	return c.do(ctx, "set webhook", http.MethodPost, "/webhook/set/"+escape(instanceID), nil, body, nil)
}

// HealthCheck reports whether the provider root answers 2xx.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.do(ctx, "health", http.MethodGet, "/", nil, nil, nil) == nil
}

func isAlreadyExists(err error) bool {
	gwErr, ok := pkgError.AsGatewayError(err)
	if !ok {
		return false
	}
	if gwErr.ProviderStatus == http.StatusForbidden || gwErr.ProviderStatus == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(gwErr.Message), "already in use")
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
