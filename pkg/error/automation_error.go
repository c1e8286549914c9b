package error

import "fmt"

// AutomationError describes a failed workflow dispatch. It is only ever logged.
type AutomationError struct {
	TenantID string
	Status   int
	Err      error
}

func (err *AutomationError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("automation dispatch for tenant %s failed: %v", err.TenantID, err.Err)
	}
	return fmt.Sprintf("automation dispatch for tenant %s failed: status=%d", err.TenantID, err.Status)
}

func (err *AutomationError) Unwrap() error {
	return err.Err
}
