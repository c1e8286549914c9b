package error

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError_AsAndNotFound(t *testing.T) {
	base := &GatewayError{Op: "connectionState", ProviderStatus: http.StatusNotFound, Message: "instance missing"}
	wrapped := fmt.Errorf("refresh: %w", base)

	gwErr, ok := AsGatewayError(wrapped)
	assert.True(t, ok)
	assert.True(t, gwErr.IsNotFound())
	assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode())
	assert.Contains(t, gwErr.Error(), "status=404")
}

func TestGatewayError_NetworkFailureMessage(t *testing.T) {
	err := &GatewayError{Op: "create", Message: "connection refused"}
	assert.Equal(t, "gateway create failed: connection refused", err.Error())
	assert.False(t, err.IsNotFound())
}

func TestPersistenceError_Unwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Op: "save message", Err: cause}
	assert.ErrorIs(t, err, cause)

	var generic GenericError = err
	assert.Equal(t, "PERSISTENCE_ERROR", generic.ErrCode())
}

func TestRequestErrors_RenderAsGenericErrors(t *testing.T) {
	cases := []struct {
		err    GenericError
		code   string
		status int
	}{
		{NotFoundError("tenant not found"), "NOT_FOUND_ERROR", http.StatusNotFound},
		{ValidationError("phone is required"), "VALIDATION_ERROR", http.StatusBadRequest},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("handler: %w", tc.err)

		var generic GenericError
		assert.True(t, errors.As(wrapped, &generic))
		assert.Equal(t, tc.code, generic.ErrCode())
		assert.Equal(t, tc.status, generic.StatusCode())
		assert.Equal(t, tc.err.Error(), generic.Error())
	}
}
