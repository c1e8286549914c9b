// Package evolution is a typed client for the Evolution API WhatsApp provider.
// It never leaks transport errors: every failure is a *pkgError.GatewayError,
// and the status/QR probes never fail at all.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgError "github.com/AzielCF/az-crm/pkg/error"
)

const defaultTimeout = 15 * time.Second

// Config is the immutable provider configuration injected at construction.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional, for tests
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient validates cfg before any call is made.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, pkgError.ConfigurationError("evolution base URL is not configured")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, pkgError.ConfigurationError("evolution API key is not configured")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    httpClient,
	}, nil
}

// do performs one call; no retries. dest may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &pkgError.GatewayError{Op: op, Message: fmt.Sprintf("failed to marshal body: %v", err)}
		}
		bodyReader = bytes.NewReader(b)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return &pkgError.GatewayError{Op: op, Message: err.Error()}
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &pkgError.GatewayError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &pkgError.GatewayError{Op: op, ProviderStatus: resp.StatusCode, Message: errorMessage(data)}
	}

	if dest != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return &pkgError.GatewayError{Op: op, ProviderStatus: resp.StatusCode, Message: fmt.Sprintf("invalid response body: %v", err)}
		}
	}
	return nil
}

// errorMessage pulls the human readable part out of the provider's error envelope.
func errorMessage(data []byte) string {
	var envelope struct {
		Error    string `json:"error"`
		Message  any    `json:"message"`
		Response struct {
			Message any `json:"message"`
		} `json:"response"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		for _, candidate := range []any{envelope.Response.Message, envelope.Message} {
			switch v := candidate.(type) {
			case string:
				if v != "" {
					return v
				}
			case []any:
				if len(v) > 0 {
					return fmt.Sprint(v...)
				}
			}
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

func escape(instanceID string) string {
	return url.PathEscape(instanceID)
}
