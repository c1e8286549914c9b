package error

import (
	"fmt"
	"net/http"
)

// PersistenceError wraps a failed store write. It is propagated so the webhook
// delivery reports failure and the provider redelivers.
type PersistenceError struct {
	Op  string
	Err error
}

func (err *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", err.Op, err.Err)
}

func (err *PersistenceError) Unwrap() error {
	return err.Err
}

func (err *PersistenceError) ErrCode() string {
	return "PERSISTENCE_ERROR"
}

func (err *PersistenceError) StatusCode() int {
	return http.StatusInternalServerError
}
