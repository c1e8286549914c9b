package domain

import "context"

// ClientFilter define los criterios para listar clientes de un tenant
type ClientFilter struct {
	TenantID string
	Search   string
	Limit    int
	Offset   int
}

// ClientRepository define las operaciones de persistencia para clientes
type ClientRepository interface {
	// Create inserts the client. It returns ErrDuplicateClient when (tenant, phone) already exists.
	Create(ctx context.Context, client *Client) error
	GetByID(ctx context.Context, tenantID, id string) (*Client, error)

	// FindByPhone returns the oldest client for (tenant, phone).
	FindByPhone(ctx context.Context, tenantID, phone string) (*Client, error)

	UpdateName(ctx context.Context, tenantID, id, name string) error
	List(ctx context.Context, filter ClientFilter) ([]*Client, error)
}
