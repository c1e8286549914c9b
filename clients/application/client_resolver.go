package application

import (
	"context"
	"errors"
	"strings"

	"github.com/AzielCF/az-crm/clients/domain"
	"github.com/sirupsen/logrus"
)

// ClientResolver encuentra o crea el cliente de un mensaje entrante.
type ClientResolver struct {
	clientRepo domain.ClientRepository
}

func NewClientResolver(clientRepo domain.ClientRepository) *ClientResolver {
	return &ClientResolver{clientRepo: clientRepo}
}

// ResolveOrCreate returns the client for (tenant, phone), creating it with pushName
// (or a phone based placeholder) when missing. A concurrent creator winning the
// insert is not an error: the row it wrote is returned.
func (r *ClientResolver) ResolveOrCreate(ctx context.Context, tenantID, phone, pushName string) (*domain.Client, bool, error) {
	client, err := r.clientRepo.FindByPhone(ctx, tenantID, phone)
	if err == nil {
		return client, false, nil
	}
	if !errors.Is(err, domain.ErrClientNotFound) {
		return nil, false, err
	}

	name := strings.TrimSpace(pushName)
	if name == "" {
		name = domain.PlaceholderName(phone)
	}

	client = &domain.Client{TenantID: tenantID, Phone: phone, Name: name}
	err = r.clientRepo.Create(ctx, client)
	switch {
	case err == nil:
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "client_id": client.ID}).
			Infof("[ClientResolver] Client CREATED: %s (%s)", name, phone)
		return client, true, nil
	case errors.Is(err, domain.ErrDuplicateClient):
		existing, findErr := r.clientRepo.FindByPhone(ctx, tenantID, phone)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	default:
		return nil, false, err
	}
}

// Get obtiene un cliente por su ID
func (r *ClientResolver) Get(ctx context.Context, tenantID, id string) (*domain.Client, error) {
	return r.clientRepo.GetByID(ctx, tenantID, id)
}

// List lista los clientes de un tenant
func (r *ClientResolver) List(ctx context.Context, filter domain.ClientFilter) ([]*domain.Client, error) {
	return r.clientRepo.List(ctx, filter)
}

// Rename actualiza el nombre visible de un cliente
func (r *ClientResolver) Rename(ctx context.Context, tenantID, id, name string) error {
	return r.clientRepo.UpdateName(ctx, tenantID, id, strings.TrimSpace(name))
}
