package error

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayError is the normalized form of any failure talking to the WhatsApp provider.
// ProviderStatus is zero when the request never got a response (network failure).
type GatewayError struct {
	Op             string
	ProviderStatus int
	Message        string
}

func (err *GatewayError) Error() string {
	if err.ProviderStatus == 0 {
		return fmt.Sprintf("gateway %s failed: %s", err.Op, err.Message)
	}
	return fmt.Sprintf("gateway %s failed: status=%d %s", err.Op, err.ProviderStatus, err.Message)
}

func (err *GatewayError) ErrCode() string {
	return "GATEWAY_ERROR"
}

func (err *GatewayError) StatusCode() int {
	return http.StatusBadGateway
}

// IsNotFound reports whether the provider answered 404.
func (err *GatewayError) IsNotFound() bool {
	return err.ProviderStatus == http.StatusNotFound
}

// AsGatewayError unwraps err into a *GatewayError when possible.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
