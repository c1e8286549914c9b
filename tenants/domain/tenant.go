package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInstanceIDTaken is returned when another tenant already owns the instance id.
	ErrInstanceIDTaken = errors.New("instance id already assigned to another tenant")
)

// Tenant is a customer business. Only the fields the WhatsApp core touches are modelled here;
// the rest of the row belongs to the CRM.
type Tenant struct {
	ID               string    `json:"id"`
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	InstanceID       string    `json:"instance_id,omitempty"` // empty until provisioned
	Connected        bool      `json:"connected"`
	ConnectedPhone   string    `json:"connected_phone,omitempty"`
	AutomationPaused bool      `json:"automation_paused"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByInstanceID(ctx context.Context, instanceID string) (*Tenant, error)

	// AssignInstanceID writes instanceID only if the tenant has none yet.
	// It returns false when the row already carried an id.
	AssignInstanceID(ctx context.Context, tenantID, instanceID string) (bool, error)

	UpdateConnection(ctx context.Context, tenantID string, connected bool, phone string) error
	SetAutomationPaused(ctx context.Context, tenantID string, paused bool) error
	IsAutomationPaused(ctx context.Context, tenantID string) (bool, error)
}
