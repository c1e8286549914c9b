package domain

import (
	"context"
	"errors"
	"time"
)

var ErrInstanceNotFound = errors.New("instance record not found")

// Status is the locally stored connection state of an instance.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusError        Status = "error"
)

// ProviderState is what the provider reports for a session.
type ProviderState string

const (
	StateOpen       ProviderState = "open"
	StateClose      ProviderState = "close"
	StateConnecting ProviderState = "connecting"
)

// ErrorKind qualifies a close state that came from a failed status query.
type ErrorKind string

const (
	ErrorKindNone     ErrorKind = ""
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindError    ErrorKind = "error"
)

// InstanceRecord is the upserted snapshot of one provider session, keyed by InstanceID.
type InstanceRecord struct {
	InstanceID     string     `json:"instance_id"`
	TenantID       string     `json:"tenant_id"`
	Status         Status     `json:"status"`
	QRCode         string     `json:"qr_code,omitempty"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Observation is one piece of provider truth handed to the reconciler.
type Observation struct {
	TenantID   string
	InstanceID string
	State      ProviderState
	Phone      string
	ErrorKind  ErrorKind
	QRCode     string
	Reset      bool   // explicit user reset
	Source     string // poll, webhook, provisioning, reset; for logs only
}

type InstanceRepository interface {
	Upsert(ctx context.Context, record *InstanceRecord) error
	GetByInstanceID(ctx context.Context, instanceID string) (*InstanceRecord, error)
	GetByTenantID(ctx context.Context, tenantID string) (*InstanceRecord, error)
}

// TenantCache is an optional read-through cache for instance -> tenant lookups.
type TenantCache interface {
	GetTenantID(ctx context.Context, instanceID string) (string, bool)
	SetTenantID(ctx context.Context, instanceID, tenantID string)
	Forget(ctx context.Context, instanceID string)
}

// AllocationLock serializes instance id generation per tenant across processes.
type AllocationLock interface {
	Acquire(ctx context.Context, tenantID string, ttl time.Duration) (release func(), acquired bool, err error)
}
