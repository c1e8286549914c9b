package application

import (
	"context"

	"github.com/AzielCF/az-crm/infrastructure/evolution"
)

// Gateway is the slice of the provider client the connection flow needs.
type Gateway interface {
	CreateOrConnectInstance(ctx context.Context, instanceID string) (evolution.InstanceResult, error)
	FetchQRCode(ctx context.Context, instanceID string) evolution.QRResult
	GetConnectionStatus(ctx context.Context, instanceID string) evolution.ConnectionStatus
	Logout(ctx context.Context, instanceID string) error
	RegisterWebhook(ctx context.Context, webhookURL, instanceID string) error
}
