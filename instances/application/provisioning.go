package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-crm/infrastructure/evolution"
	"github.com/AzielCF/az-crm/instances/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	tenantDomain "github.com/AzielCF/az-crm/tenants/domain"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ConnectResult is what the UI gets back from a connect request.
type ConnectResult struct {
	InstanceID  string        `json:"instance_id"`
	Status      domain.Status `json:"status"`
	QRCode      string        `json:"qr_code,omitempty"`
	PairingCode string        `json:"pairing_code,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Polling     bool          `json:"polling"`
}

// ConnectionView is the stored connection state of a tenant.
type ConnectionView struct {
	TenantID       string                 `json:"tenant_id"`
	Connected      bool                   `json:"connected"`
	ConnectedPhone string                 `json:"connected_phone,omitempty"`
	ConnectedSince string                 `json:"connected_since,omitempty"`
	Polling        bool                   `json:"polling"`
	Instance       *domain.InstanceRecord `json:"instance,omitempty"`
}

// ProvisioningService drives the QR connection flow for a tenant.
type ProvisioningService struct {
	gateway    Gateway
	resolver   *Resolver
	reconciler *Reconciler
	instances  domain.InstanceRepository
	tenants    tenantDomain.TenantRepository
	poller     *Poller
	webhookURL string
}

func NewProvisioningService(
	gateway Gateway,
	resolver *Resolver,
	reconciler *Reconciler,
	instances domain.InstanceRepository,
	tenants tenantDomain.TenantRepository,
	poller *Poller,
	webhookURL string,
) *ProvisioningService {
	return &ProvisioningService{
		gateway:    gateway,
		resolver:   resolver,
		reconciler: reconciler,
		instances:  instances,
		tenants:    tenants,
		poller:     poller,
		webhookURL: webhookURL,
	}
}

// Connect creates or reuses the tenant's instance and either starts a QR poll
// or records an already open session.
func (s *ProvisioningService) Connect(ctx context.Context, tenantID string) (*ConnectResult, error) {
	instanceID, err := s.resolver.EnsureInstanceID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantDomain.ErrTenantNotFound) {
			return nil, pkgError.NotFoundError("tenant not found")
		}
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "instance_id": instanceID})

	created, createErr := s.gateway.CreateOrConnectInstance(ctx, instanceID)
	if createErr != nil {
		log.WithError(createErr).Warn("[PROVISIONING] create/connect failed, trying QR fetch")
	}

	qr, pairing := created.QRCode, created.PairingCode
	if qr == "" && created.Status != evolution.StateOpen {
		fetched := s.gateway.FetchQRCode(ctx, instanceID)
		qr, pairing = fetched.QRCode, fetched.PairingCode
	}

	switch {
	case qr != "":
		if _, err := s.reconciler.Reconcile(ctx, domain.Observation{
			TenantID:   tenantID,
			InstanceID: instanceID,
			State:      domain.StateConnecting,
			QRCode:     qr,
			Source:     "provisioning",
		}); err != nil {
			return nil, err
		}
		s.registerWebhook(ctx, instanceID)
		s.startPolling(tenantID, instanceID)

		log.Info("[PROVISIONING] QR code issued, waiting for scan")
		return &ConnectResult{
			InstanceID:  instanceID,
			Status:      domain.StatusConnecting,
			QRCode:      qr,
			PairingCode: pairing,
			Polling:     true,
		}, nil

	case created.Status == evolution.StateOpen:
		status := s.gateway.GetConnectionStatus(ctx, instanceID)
		record, err := s.reconciler.Reconcile(ctx, domain.Observation{
			TenantID:   tenantID,
			InstanceID: instanceID,
			State:      domain.StateOpen,
			Phone:      status.PhoneNumber,
			Source:     "provisioning",
		})
		if err != nil {
			return nil, err
		}
		s.registerWebhook(ctx, instanceID)

		log.Info("[PROVISIONING] instance already connected")
		return &ConnectResult{
			InstanceID:  instanceID,
			Status:      domain.StatusOpen,
			PhoneNumber: record.PhoneNumber,
		}, nil
	}

	if createErr != nil {
		return nil, createErr
	}
	return nil, &pkgError.GatewayError{Op: "connect", Message: "the provider returned neither a QR code nor an open session, please try again"}
}

func (s *ProvisioningService) startPolling(tenantID, instanceID string) {
	s.poller.Start(tenantID, func(ctx context.Context, attempt int) bool {
		status := s.gateway.GetConnectionStatus(ctx, instanceID)
		if ctx.Err() != nil {
			return true
		}

		switch {
		case status.State == evolution.StateOpen:
			if _, err := s.reconciler.Reconcile(ctx, domain.Observation{
				TenantID:   tenantID,
				InstanceID: instanceID,
				State:      domain.StateOpen,
				Phone:      status.PhoneNumber,
				Source:     "poll",
			}); err != nil {
				logrus.WithError(err).Errorf("[PROVISIONING] failed to record open session for %s", instanceID)
			}
			s.registerWebhook(ctx, instanceID)
			logrus.Infof("[PROVISIONING] %s connected after %d attempt(s)", instanceID, attempt)
			return true

		case status.ErrorKind == evolution.ErrorKindNotFound:
			if _, err := s.reconciler.Reconcile(ctx, domain.Observation{
				TenantID:   tenantID,
				InstanceID: instanceID,
				State:      domain.StateClose,
				ErrorKind:  domain.ErrorKindNotFound,
				Source:     "poll",
			}); err != nil {
				logrus.WithError(err).Errorf("[PROVISIONING] failed to record missing instance %s", instanceID)
			}
			logrus.Warnf("[PROVISIONING] %s vanished on the provider, stopping poll", instanceID)
			return true
		}
		return false
	})
}

// registerWebhook is best effort.
func (s *ProvisioningService) registerWebhook(ctx context.Context, instanceID string) {
	if s.webhookURL == "" {
		return
	}
	if err := s.gateway.RegisterWebhook(ctx, s.webhookURL, instanceID); err != nil {
		logrus.WithError(err).Warnf("[PROVISIONING] webhook registration failed for %s", instanceID)
	}
}

// RefreshStatus re-queries the provider once and reconciles what it says.
func (s *ProvisioningService) RefreshStatus(ctx context.Context, tenantID string) (*ConnectionView, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.InstanceID == "" {
		return s.Status(ctx, tenantID)
	}

	status := s.gateway.GetConnectionStatus(ctx, tenant.InstanceID)
	if status.ErrorKind == evolution.ErrorKindError {
		return nil, &pkgError.GatewayError{Op: "connection state", Message: "the provider could not be reached, please try again"}
	}

	if _, err := s.reconciler.Reconcile(ctx, domain.Observation{
		TenantID:   tenantID,
		InstanceID: tenant.InstanceID,
		State:      domain.ProviderState(status.State),
		Phone:      status.PhoneNumber,
		ErrorKind:  domain.ErrorKind(status.ErrorKind),
		Source:     "refresh",
	}); err != nil {
		return nil, err
	}
	if status.State == evolution.StateOpen {
		s.poller.Stop(tenantID)
	}
	return s.Status(ctx, tenantID)
}

// Status reads stored state only; it never calls the provider.
func (s *ProvisioningService) Status(ctx context.Context, tenantID string) (*ConnectionView, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	view := &ConnectionView{
		TenantID:       tenant.ID,
		Connected:      tenant.Connected,
		ConnectedPhone: tenant.ConnectedPhone,
		Polling:        s.poller.Running(tenantID),
	}

	if tenant.InstanceID == "" {
		return view, nil
	}
	record, err := s.instances.GetByInstanceID(ctx, tenant.InstanceID)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.Instance = record
	if record.Status == domain.StatusOpen && record.ConnectedAt != nil {
		view.ConnectedSince = humanize.Time(*record.ConnectedAt)
	}
	return view, nil
}

// Reset logs the session out (ignoring provider errors) and forces the stored state to disconnected.
func (s *ProvisioningService) Reset(ctx context.Context, tenantID string) error {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return err
	}

	s.poller.Stop(tenantID)

	if tenant.InstanceID != "" {
		logoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.gateway.Logout(logoutCtx, tenant.InstanceID); err != nil {
			logrus.WithError(err).Infof("[PROVISIONING] logout of %s failed, resetting anyway", tenant.InstanceID)
		}
		cancel()
		s.resolver.Forget(ctx, tenant.InstanceID)
	}

	_, err = s.reconciler.Reconcile(ctx, domain.Observation{
		TenantID:   tenantID,
		InstanceID: tenant.InstanceID,
		Reset:      true,
		Source:     "reset",
	})
	return err
}

// Close stops every running poll.
func (s *ProvisioningService) Close() {
	s.poller.Close()
}

func (s *ProvisioningService) tenant(ctx context.Context, tenantID string) (*tenantDomain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantDomain.ErrTenantNotFound) {
			return nil, pkgError.NotFoundError("tenant not found")
		}
		return nil, err
	}
	return tenant, nil
}
