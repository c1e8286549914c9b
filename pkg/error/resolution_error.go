package error

import (
	"fmt"
	"net/http"
)

// ResolutionError means a tenant or client lookup found nothing.
// The affected event is logged and abandoned.
type ResolutionError struct {
	Kind string
	Key  string
}

func (err *ResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve %s for %q", err.Kind, err.Key)
}

func (err *ResolutionError) ErrCode() string {
	return "RESOLUTION_ERROR"
}

func (err *ResolutionError) StatusCode() int {
	return http.StatusNotFound
}
